package models

import "time"

// Status captures the overall outcome of an investigation run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Severity captures impact levels derived from the root cause analysis.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// InvestigationReport is the sole externally serialized artifact of a run.
// Its JSON field names are the stable wire contract for downstream
// presentation layers. Reports are immutable after assembly.
type InvestigationReport struct {
	RunID              string            `json:"run_id"`
	Status             Status            `json:"status"`
	Resources          []ResourceRef     `json:"resources"`
	Facts              []Fact            `json:"facts"`
	Hypotheses         []Hypothesis      `json:"hypotheses"`
	RootCause          RootCauseAnalysis `json:"root_cause"`
	Advice             []Advice          `json:"advice"`
	StartedAt          time.Time         `json:"started_at"`
	EndedAt            time.Time         `json:"ended_at"`
	Severity           Severity          `json:"severity"`
	SeverityConfidence float64           `json:"severity_confidence"`
}

// Duration reports how long the investigation ran.
func (r InvestigationReport) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}
