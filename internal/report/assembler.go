package report

import (
	"time"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

// highSeverityTypes are root causes that warrant at least high severity
// regardless of confidence.
var highSeverityTypes = map[models.HypothesisType]bool{
	models.HypothesisPermission: true,
	models.HypothesisOutage:     true,
}

// criticalConfidence is the confidence at which a high-severity root cause
// escalates to critical.
const criticalConfidence = 0.85

// Input bundles everything the assembler folds into a report.
type Input struct {
	RunID      string
	Status     models.Status
	Resources  *models.ResourceSet
	Facts      []models.Fact
	Hypotheses []models.Hypothesis
	RootCause  models.RootCauseAnalysis
	Advice     []models.Advice
	StartedAt  time.Time
}

// Assemble builds the final investigation report. Severity derives from the
// primary root cause's type and confidence; with no primary it stays low.
func Assemble(in Input) models.InvestigationReport {
	severity, sevConf := deriveSeverity(in.RootCause)
	var resources []models.ResourceRef
	if in.Resources != nil {
		resources = in.Resources.Refs()
	}
	return models.InvestigationReport{
		RunID:              in.RunID,
		Status:             in.Status,
		Resources:          resources,
		Facts:              in.Facts,
		Hypotheses:         in.Hypotheses,
		RootCause:          in.RootCause,
		Advice:             in.Advice,
		StartedAt:          in.StartedAt.UTC(),
		EndedAt:            time.Now().UTC(),
		Severity:           severity,
		SeverityConfidence: sevConf,
	}
}

// Failed builds the minimal report emitted when an investigation cannot
// run: input errors, empty resolution, or a fatal internal fault.
func Failed(runID string, startedAt time.Time, facts []models.Fact, summary string) models.InvestigationReport {
	return Assemble(Input{
		RunID:     runID,
		Status:    models.StatusFailed,
		Facts:     facts,
		RootCause: models.RootCauseAnalysis{Summary: summary},
		StartedAt: startedAt,
	})
}

func deriveSeverity(rca models.RootCauseAnalysis) (models.Severity, float64) {
	if rca.Primary == nil {
		return models.SeverityLow, rca.Confidence
	}
	conf := rca.Confidence
	switch {
	case highSeverityTypes[rca.Primary.Type] && conf >= criticalConfidence:
		return models.SeverityCritical, conf
	case highSeverityTypes[rca.Primary.Type]:
		return models.SeverityHigh, conf
	case conf >= 0.7:
		return models.SeverityHigh, conf
	case conf >= 0.4:
		return models.SeverityMedium, conf
	default:
		return models.SeverityLow, conf
	}
}
