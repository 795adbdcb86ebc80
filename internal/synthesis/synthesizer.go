package synthesis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

// Synthesizer turns a body of collected facts into ranked hypotheses.
type Synthesizer interface {
	Synthesize(ctx context.Context, facts []models.Fact) ([]models.Hypothesis, error)
}

const (
	// MaxHypotheses bounds the number of hypotheses a synthesis pass emits.
	MaxHypotheses = 3
	// ScarceEvidenceThreshold is the fact count below which confidence is capped.
	ScarceEvidenceThreshold = 3
	// ScarceEvidenceCap is the confidence ceiling under scarce evidence.
	ScarceEvidenceCap = 0.4
	// ConfidenceCeiling keeps heuristic calibration away from certainty.
	ConfidenceCeiling = 0.97
)

// signature ties a hypothesis type to the phrases that support it.
// Earlier entries win ranking ties.
type signature struct {
	hypType models.HypothesisType
	phrases []string
}

var signatures = []signature{
	{models.HypothesisPermission, []string{"access denied", "accessdenied", "not authorized", "unauthorized", "forbidden", "permission", "missing permissions"}},
	{models.HypothesisOutage, []string{"outage", "service disruption", "unavailable", "unreachable", "provider incident", "internal server error"}},
	{models.HypothesisConfiguration, []string{"misconfigur", "invalid configuration", "configuration changed", "recent change", "environment variable", "env var", "dead_letter", "no dead-letter"}},
	{models.HypothesisCapacity, []string{"throttl", "rate exceeded", "too many requests", "429", "concurrency limit", "capacity", "falling behind", "backlog"}},
	{models.HypothesisTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{models.HypothesisCodeDefect, []string{"exception", "panic", "nil pointer", "stack trace", "segfault"}},
	{models.HypothesisLatency, []string{"slow", "latency", "p99", "anomal"}},
}

// allClear marks baseline facts that assert the absence of a problem; they
// never support a hypothesis.
var allClear = []string{"no active provider incidents", "no recent configuration changes", "no abnormal signals"}

// Heuristic is the deterministic synthesizer. It matches fact contents
// against a fixed phrase taxonomy and calibrates confidence from the
// strength and breadth of the supporting evidence.
type Heuristic struct{}

func NewHeuristic() *Heuristic { return &Heuristic{} }

func (h *Heuristic) Synthesize(_ context.Context, facts []models.Fact) ([]models.Hypothesis, error) {
	type bucket struct {
		rank      int
		hypType   models.HypothesisType
		evidence  []int
		top       float64
		topIdx    int
		allErrors bool
	}

	buckets := make(map[models.HypothesisType]*bucket)
	for i, fact := range facts {
		text := strings.ToLower(fact.Content)
		if errMsg, ok := fact.Metadata[models.MetadataError].(string); ok {
			text += " " + strings.ToLower(errMsg)
		}
		if matchesAny(text, allClear) {
			continue
		}
		for rank, sig := range signatures {
			if !matchesAny(text, sig.phrases) {
				continue
			}
			b := buckets[sig.hypType]
			if b == nil {
				b = &bucket{rank: rank, hypType: sig.hypType, topIdx: i, allErrors: true}
				buckets[sig.hypType] = b
			}
			b.evidence = append(b.evidence, i)
			if !fact.IsError() {
				b.allErrors = false
			}
			if fact.Confidence > b.top {
				b.top = fact.Confidence
				b.topIdx = i
			}
		}
	}

	if len(buckets) == 0 {
		return h.degraded(facts), nil
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		ci, cj := calibrate(ordered[i].top, len(ordered[i].evidence)), calibrate(ordered[j].top, len(ordered[j].evidence))
		if ci != cj {
			return ci > cj
		}
		return ordered[i].rank < ordered[j].rank
	})

	hyps := make([]models.Hypothesis, 0, MaxHypotheses)
	for _, b := range ordered {
		if len(hyps) == MaxHypotheses {
			break
		}
		conf := calibrate(b.top, len(b.evidence))
		if b.allErrors {
			// Hypotheses built purely on collection failures inherit the
			// failure-evidence ceiling.
			conf = min(conf, models.ErrorFactMaxConfidence)
		}
		hyps = append(hyps, models.Hypothesis{
			Type:        b.hypType,
			Description: describe(b.hypType, len(b.evidence), facts[b.topIdx].Content),
			Confidence:  conf,
			Evidence:    b.evidence,
		})
	}
	return CapScarce(hyps, len(facts)), nil
}

// degraded emits a single low-confidence hypothesis when nothing in the
// taxonomy matched, so downstream selection still has something to report.
func (h *Heuristic) degraded(facts []models.Fact) []models.Hypothesis {
	evidence := make([]int, 0, len(facts))
	top := 0.0
	for i, fact := range facts {
		evidence = append(evidence, i)
		if fact.IsError() && fact.Confidence > top {
			top = fact.Confidence
		}
	}
	if len(evidence) == 0 {
		return nil
	}
	return []models.Hypothesis{{
		Type:        models.HypothesisUnknown,
		Description: fmt.Sprintf("no recognizable failure signature across %d fact(s); evidence is inconclusive", len(evidence)),
		Confidence:  min(models.ErrorFactMaxConfidence, max(top, 0.2)),
		Evidence:    evidence,
	}}
}

// calibrate scores a hypothesis from its strongest supporter and rewards
// each corroborating fact with a small boost, never reaching certainty.
func calibrate(top float64, supporters int) float64 {
	if supporters < 1 {
		return 0
	}
	conf := top * (0.92 + 0.08*float64(supporters-1))
	if conf > ConfidenceCeiling {
		conf = ConfidenceCeiling
	}
	if conf < 0 {
		conf = 0
	}
	return conf
}

// CapScarce enforces the scarce-evidence ceiling on a hypothesis slice.
func CapScarce(hyps []models.Hypothesis, factCount int) []models.Hypothesis {
	if factCount >= ScarceEvidenceThreshold {
		return hyps
	}
	for i := range hyps {
		if hyps[i].Confidence > ScarceEvidenceCap {
			hyps[i].Confidence = ScarceEvidenceCap
		}
	}
	return hyps
}

func describe(t models.HypothesisType, supporters int, strongest string) string {
	label := map[models.HypothesisType]string{
		models.HypothesisPermission:    "a permission or policy issue",
		models.HypothesisConfiguration: "a configuration error",
		models.HypothesisTimeout:       "operation timeouts",
		models.HypothesisCapacity:      "throttling or capacity exhaustion",
		models.HypothesisLatency:       "elevated latency",
		models.HypothesisOutage:        "a provider or dependency outage",
		models.HypothesisCodeDefect:    "an application code defect",
		models.HypothesisUnknown:       "an undetermined failure",
	}[t]
	if supporters == 1 {
		return fmt.Sprintf("1 fact points to %s: %s", label, strongest)
	}
	return fmt.Sprintf("%d facts point to %s; strongest signal: %s", supporters, label, strongest)
}

func matchesAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
