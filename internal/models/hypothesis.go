package models

// HypothesisType is the taxonomy tag for a candidate explanation.
type HypothesisType string

const (
	HypothesisPermission    HypothesisType = "permission_issue"
	HypothesisConfiguration HypothesisType = "configuration_error"
	HypothesisTimeout       HypothesisType = "timeout"
	HypothesisCapacity      HypothesisType = "capacity_issue"
	HypothesisLatency       HypothesisType = "high_latency"
	HypothesisOutage        HypothesisType = "resource_outage"
	HypothesisCodeDefect    HypothesisType = "code_defect"
	HypothesisUnknown       HypothesisType = "unknown"
)

// Hypothesis is a candidate explanation for the observed symptom. Evidence
// holds indexes into the investigation FactLog, never copies.
type Hypothesis struct {
	Type        HypothesisType `json:"type"`
	Description string         `json:"description"`
	Confidence  float64        `json:"confidence"`
	Evidence    []int          `json:"evidence"`
}

// RootCauseAnalysis separates the initiating condition from downstream
// symptoms. Primary is nil when the evidence was insufficient to name one.
type RootCauseAnalysis struct {
	Primary      *Hypothesis  `json:"primary"`
	Contributing []Hypothesis `json:"contributing"`
	Confidence   float64      `json:"confidence"`
	Summary      string       `json:"summary"`
}

// AdvicePriority orders remediation advice.
type AdvicePriority string

const (
	PriorityHigh   AdvicePriority = "high"
	PriorityMedium AdvicePriority = "medium"
	PriorityLow    AdvicePriority = "low"
)

// AdviceCategory groups remediation advice by the kind of change required.
type AdviceCategory string

const (
	CategoryConfiguration AdviceCategory = "configuration"
	CategoryCode          AdviceCategory = "code"
	CategoryPermissions   AdviceCategory = "permissions"
	CategoryCapacity      AdviceCategory = "capacity"
	CategoryOther         AdviceCategory = "other"
)

// Advice is a single remediation suggestion attached to a report.
type Advice struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Priority    AdvicePriority `json:"priority"`
	Category    AdviceCategory `json:"category"`
}
