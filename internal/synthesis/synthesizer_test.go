package synthesis

import (
	"context"
	"errors"
	"testing"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

func TestHeuristicSingleStrongFact(t *testing.T) {
	facts := []models.Fact{
		models.NewFact("compute-function", "AccessDenied: not authorized to perform sqs:SendMessage", 0.9),
		models.NewFact("provider_health", "no active provider incidents reported", 0.8),
		models.NewFact("change_history", "no recent configuration changes recorded", 0.7),
	}

	hyps, err := NewHeuristic().Synthesize(context.Background(), facts)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(hyps) == 0 {
		t.Fatal("expected at least one hypothesis")
	}
	if hyps[0].Type != models.HypothesisPermission {
		t.Fatalf("expected permission_issue, got %s", hyps[0].Type)
	}
	if hyps[0].Confidence < 0.8 {
		t.Fatalf("a single decisive 0.9 fact should calibrate to at least 0.8, got %f", hyps[0].Confidence)
	}
}

func TestHeuristicEveryHypothesisCitesEvidence(t *testing.T) {
	facts := []models.Fact{
		models.NewFact("compute-function", "operation timed out after 3s", 0.8),
		models.NewFact("queue", "throttled: rate exceeded on orders-queue", 0.85),
		models.NewFact("compute-function", "unhandled exception in handler, stack trace follows", 0.75),
		models.NewFact("gateway", "p99 elevated, responses slow", 0.7),
	}

	hyps, err := NewHeuristic().Synthesize(context.Background(), facts)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(hyps) == 0 || len(hyps) > MaxHypotheses {
		t.Fatalf("expected 1..%d hypotheses, got %d", MaxHypotheses, len(hyps))
	}
	for _, h := range hyps {
		if len(h.Evidence) == 0 {
			t.Fatalf("hypothesis %s cites no evidence", h.Type)
		}
		for _, idx := range h.Evidence {
			if idx < 0 || idx >= len(facts) {
				t.Fatalf("hypothesis %s cites out-of-range index %d", h.Type, idx)
			}
		}
	}
	for i := 1; i < len(hyps); i++ {
		if hyps[i].Confidence > hyps[i-1].Confidence {
			t.Fatal("hypotheses must be ordered by confidence")
		}
	}
}

func TestHeuristicScarceEvidenceCap(t *testing.T) {
	facts := []models.Fact{
		models.NewFact("compute-function", "AccessDenied on orders-queue", 0.95),
	}

	hyps, err := NewHeuristic().Synthesize(context.Background(), facts)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(hyps) == 0 {
		t.Fatal("expected a hypothesis")
	}
	if hyps[0].Confidence > ScarceEvidenceCap {
		t.Fatalf("fewer than %d facts must cap confidence at %.1f, got %f",
			ScarceEvidenceThreshold, ScarceEvidenceCap, hyps[0].Confidence)
	}
}

func TestHeuristicFailureEvidenceStaysCapped(t *testing.T) {
	facts := []models.Fact{
		models.NewErrorFact("compute-function", "evidence collection failed for checkout-handler", errors.New("network unreachable")),
		models.NewErrorFact("queue", "evidence collection failed for orders-queue", errors.New("connection refused, service unavailable")),
		models.NewErrorFact("provider_health", "provider health check failed", errors.New("gateway unavailable")),
	}

	hyps, err := NewHeuristic().Synthesize(context.Background(), facts)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	for _, h := range hyps {
		if h.Confidence > models.ErrorFactMaxConfidence {
			t.Fatalf("hypothesis %s built only on failure evidence scored %f", h.Type, h.Confidence)
		}
	}
}

func TestHeuristicAllClearFactsSupportNothing(t *testing.T) {
	facts := []models.Fact{
		models.NewFact("provider_health", "no active provider incidents reported", 0.8),
		models.NewFact("change_history", "no recent configuration changes recorded", 0.7),
		models.NewFact("queue", "queue:orders-queue shows no abnormal signals", 0.6),
	}

	hyps, err := NewHeuristic().Synthesize(context.Background(), facts)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	for _, h := range hyps {
		if h.Type != models.HypothesisUnknown {
			t.Fatalf("all-clear facts produced hypothesis %s", h.Type)
		}
	}
}

func TestHeuristicCorroborationRaisesConfidence(t *testing.T) {
	single := []models.Fact{
		models.NewFact("compute-function", "request timed out", 0.7),
		models.NewFact("x", "padding one", 0.5),
		models.NewFact("x", "padding two", 0.5),
	}
	corroborated := append([]models.Fact{
		models.NewFact("gateway", "upstream timeout observed", 0.7),
	}, single...)

	one, _ := NewHeuristic().Synthesize(context.Background(), single)
	two, _ := NewHeuristic().Synthesize(context.Background(), corroborated)

	if len(one) == 0 || len(two) == 0 {
		t.Fatal("expected hypotheses from both runs")
	}
	if two[0].Confidence <= one[0].Confidence {
		t.Fatalf("corroborating fact should raise confidence: %f vs %f",
			two[0].Confidence, one[0].Confidence)
	}
}

func TestHeuristicNoFacts(t *testing.T) {
	hyps, err := NewHeuristic().Synthesize(context.Background(), nil)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(hyps) != 0 {
		t.Fatalf("no facts means no hypotheses, got %d", len(hyps))
	}
}
