package synthesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

// LowConfidenceThreshold is the confidence at or below which the analysis
// summary must state that the evidence is inconclusive.
const LowConfidenceThreshold = 0.35

// rootShaped marks the hypothesis types that name a cause rather than a
// symptom. Symptom-shaped types (timeout, high_latency, unknown) only lead
// an analysis when no cause-shaped hypothesis exists.
var rootShaped = map[models.HypothesisType]bool{
	models.HypothesisPermission:    true,
	models.HypothesisConfiguration: true,
	models.HypothesisOutage:        true,
	models.HypothesisCodeDefect:    true,
	models.HypothesisCapacity:      true,
}

// Selector picks the primary root cause out of a hypothesis set.
type Selector struct{}

func NewSelector() *Selector { return &Selector{} }

// Select partitions hypotheses into cause-shaped and symptom-shaped,
// promotes the strongest cause-shaped one to primary, and demotes the
// rest to contributing factors. With no hypotheses at all it returns an
// inconclusive analysis with no primary.
func (s *Selector) Select(hyps []models.Hypothesis, facts []models.Fact) models.RootCauseAnalysis {
	if len(hyps) == 0 {
		conf := 0.2
		if len(facts) == 0 {
			conf = 0
		}
		return models.RootCauseAnalysis{
			Confidence: conf,
			Summary:    "no hypothesis could be formed; evidence is insufficient to establish a root cause",
		}
	}

	sorted := make([]models.Hypothesis, len(hyps))
	copy(sorted, hyps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Confidence > sorted[j].Confidence })

	primaryIdx := -1
	for i := range sorted {
		if rootShaped[sorted[i].Type] {
			primaryIdx = i
			break
		}
	}
	if primaryIdx == -1 {
		primaryIdx = 0
	}

	primary := sorted[primaryIdx]
	contributing := make([]models.Hypothesis, 0, len(sorted)-1)
	for i := range sorted {
		if i != primaryIdx {
			contributing = append(contributing, sorted[i])
		}
	}

	return models.RootCauseAnalysis{
		Primary:      &primary,
		Contributing: contributing,
		Confidence:   primary.Confidence,
		Summary:      s.summarize(primary, contributing),
	}
}

func (s *Selector) summarize(primary models.Hypothesis, contributing []models.Hypothesis) string {
	var b strings.Builder
	if primary.Confidence <= LowConfidenceThreshold {
		b.WriteString("evidence is insufficient for a definitive conclusion; leading hypothesis: ")
	}
	b.WriteString(primary.Description)
	if n := len(contributing); n > 0 {
		b.WriteString(fmt.Sprintf(" (%d contributing factor(s) identified)", n))
	}
	return b.String()
}
