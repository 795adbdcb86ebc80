package synthesis

import (
	"context"
	"testing"
	"time"

	"github.com/faultlinehq/faultline-engine/internal/models"
	"github.com/faultlinehq/faultline-engine/internal/reasoning"
)

type stubUnit struct {
	inf reasoning.Inference
	err error
}

func (s *stubUnit) Infer(_ context.Context, _ reasoning.Payload) (reasoning.Inference, error) {
	return s.inf, s.err
}

func fourFacts() []models.Fact {
	return []models.Fact{
		models.NewFact("compute-function", "AccessDenied on orders-queue", 0.9),
		models.NewFact("queue", "delivery failures rising", 0.8),
		models.NewFact("change_history", "recent change to checkout-handler", 0.85),
		models.NewFact("provider_health", "no active provider incidents reported", 0.8),
	}
}

func TestGroundedAcceptsValidInference(t *testing.T) {
	unit := &stubUnit{inf: reasoning.Inference{Hypotheses: []models.Hypothesis{
		{Type: models.HypothesisPermission, Description: "role lost sqs:SendMessage", Confidence: 0.88, Evidence: []int{0, 1}},
	}}}

	hyps, err := NewGrounded(unit, 0, nil).Synthesize(context.Background(), fourFacts())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(hyps) != 1 || hyps[0].Type != models.HypothesisPermission {
		t.Fatalf("expected the unit's hypothesis to pass the audit, got %+v", hyps)
	}
}

func TestGroundedDropsDanglingCitations(t *testing.T) {
	unit := &stubUnit{inf: reasoning.Inference{Hypotheses: []models.Hypothesis{
		{Type: models.HypothesisPermission, Description: "cites a fact that does not exist", Confidence: 0.9, Evidence: []int{99}},
		{Type: models.HypothesisConfiguration, Description: "valid citation", Confidence: 0.7, Evidence: []int{2}},
	}}}

	hyps, err := NewGrounded(unit, 0, nil).Synthesize(context.Background(), fourFacts())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(hyps) != 1 || hyps[0].Type != models.HypothesisConfiguration {
		t.Fatalf("dangling citation must be dropped, got %+v", hyps)
	}
}

func TestGroundedRejectsUncitedAndUnknownTypes(t *testing.T) {
	unit := &stubUnit{inf: reasoning.Inference{Hypotheses: []models.Hypothesis{
		{Type: models.HypothesisPermission, Description: "no citations at all", Confidence: 0.9},
		{Type: models.HypothesisType("cosmic_rays"), Description: "not in the taxonomy", Confidence: 0.9, Evidence: []int{0}},
		{Type: models.HypothesisOutage, Description: "confidence out of range", Confidence: 1.4, Evidence: []int{0}},
	}}}

	hyps, err := NewGrounded(unit, 0, nil).Synthesize(context.Background(), fourFacts())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	// Nothing survives the audit, so the heuristic takes over; its output
	// is grounded by construction.
	for _, h := range hyps {
		if len(h.Evidence) == 0 {
			t.Fatalf("fallback hypothesis %s cites no evidence", h.Type)
		}
	}
}

func TestGroundedFallsBackWhenUnitUnavailable(t *testing.T) {
	unit := &stubUnit{err: reasoning.ErrUnavailable}

	hyps, err := NewGrounded(unit, 0, nil).Synthesize(context.Background(), fourFacts())
	if err != nil {
		t.Fatalf("fallback must not surface the unit error: %v", err)
	}
	if len(hyps) == 0 {
		t.Fatal("heuristic fallback should still produce hypotheses")
	}
	if hyps[0].Type != models.HypothesisPermission {
		t.Fatalf("expected heuristic permission hypothesis, got %s", hyps[0].Type)
	}
}

func TestGroundedAppliesScarcityCap(t *testing.T) {
	unit := &stubUnit{inf: reasoning.Inference{Hypotheses: []models.Hypothesis{
		{Type: models.HypothesisPermission, Description: "confident on thin evidence", Confidence: 0.95, Evidence: []int{0}},
	}}}
	facts := fourFacts()[:1]

	hyps, err := NewGrounded(unit, 0, nil).Synthesize(context.Background(), facts)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if hyps[0].Confidence > ScarceEvidenceCap {
		t.Fatalf("scarce evidence must cap even reasoned confidence, got %f", hyps[0].Confidence)
	}
}

// blockingUnit holds its call open until the caller's context expires.
type blockingUnit struct{}

func (blockingUnit) Infer(ctx context.Context, _ reasoning.Payload) (reasoning.Inference, error) {
	<-ctx.Done()
	return reasoning.Inference{}, ctx.Err()
}

func TestGroundedBoundsSlowUnitInvocation(t *testing.T) {
	g := NewGrounded(blockingUnit{}, 10*time.Millisecond, nil)

	start := time.Now()
	hyps, err := g.Synthesize(context.Background(), fourFacts())
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("timeout must degrade to the heuristic, not surface: %v", err)
	}
	if len(hyps) == 0 {
		t.Fatal("heuristic fallback should still produce hypotheses")
	}
	if elapsed > time.Second {
		t.Fatalf("slow unit was not cut off by the per-invocation timeout; took %v", elapsed)
	}
}

func TestGroundedNilUnitUsesHeuristic(t *testing.T) {
	hyps, err := NewGrounded(nil, 0, nil).Synthesize(context.Background(), fourFacts())
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(hyps) == 0 {
		t.Fatal("expected heuristic output")
	}
}
