package synthesis

import (
	"context"
	"log/slog"
	"time"

	"github.com/faultlinehq/faultline-engine/internal/metrics"
	"github.com/faultlinehq/faultline-engine/internal/models"
	"github.com/faultlinehq/faultline-engine/internal/reasoning"
)

// defaultInferTimeout bounds a single reasoning-unit call when no timeout
// is configured, so one slow call cannot eat the whole execution budget.
const defaultInferTimeout = 30 * time.Second

var validTypes = map[models.HypothesisType]bool{
	models.HypothesisPermission:    true,
	models.HypothesisConfiguration: true,
	models.HypothesisTimeout:       true,
	models.HypothesisCapacity:      true,
	models.HypothesisLatency:       true,
	models.HypothesisOutage:        true,
	models.HypothesisCodeDefect:    true,
	models.HypothesisUnknown:       true,
}

// Grounded delegates synthesis to a reasoning unit and audits the result:
// every hypothesis must cite existing facts, carry a known type, and keep
// its confidence in range. Anything that fails the audit is dropped, and
// if nothing survives the deterministic heuristic takes over.
type Grounded struct {
	unit     reasoning.Unit
	timeout  time.Duration
	fallback *Heuristic
	logger   *slog.Logger
}

func NewGrounded(unit reasoning.Unit, timeout time.Duration, logger *slog.Logger) *Grounded {
	if timeout <= 0 {
		timeout = defaultInferTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Grounded{unit: unit, timeout: timeout, fallback: NewHeuristic(), logger: logger}
}

func (g *Grounded) Synthesize(ctx context.Context, facts []models.Fact) ([]models.Hypothesis, error) {
	if g.unit == nil {
		return g.fallback.Synthesize(ctx, facts)
	}

	inferCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	inf, err := g.unit.Infer(inferCtx, reasoning.Payload{Facts: facts})
	if err != nil {
		g.logger.Warn("reasoning unit failed, using heuristic synthesis", "error", err)
		metrics.ObserveReasoningFallback()
		return g.fallback.Synthesize(ctx, facts)
	}

	kept := make([]models.Hypothesis, 0, MaxHypotheses)
	for _, h := range inf.Hypotheses {
		if len(kept) == MaxHypotheses {
			break
		}
		if !g.audit(h, len(facts)) {
			g.logger.Warn("dropping ungrounded hypothesis", "type", h.Type, "evidence", h.Evidence)
			continue
		}
		kept = append(kept, h)
	}
	if len(kept) == 0 {
		g.logger.Warn("no hypothesis survived grounding audit, using heuristic synthesis")
		metrics.ObserveReasoningFallback()
		return g.fallback.Synthesize(ctx, facts)
	}
	return CapScarce(kept, len(facts)), nil
}

func (g *Grounded) audit(h models.Hypothesis, factCount int) bool {
	if !validTypes[h.Type] || h.Description == "" {
		return false
	}
	if h.Confidence < 0 || h.Confidence > 1 {
		return false
	}
	if len(h.Evidence) == 0 {
		return false
	}
	for _, idx := range h.Evidence {
		if idx < 0 || idx >= factCount {
			return false
		}
	}
	return true
}
