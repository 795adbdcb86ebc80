package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/faultlinehq/faultline-engine/internal/config"
	"github.com/faultlinehq/faultline-engine/internal/evidence"
	"github.com/faultlinehq/faultline-engine/internal/metrics"
	"github.com/faultlinehq/faultline-engine/internal/models"
	"github.com/faultlinehq/faultline-engine/internal/report"
	"github.com/faultlinehq/faultline-engine/internal/resolve"
	"github.com/faultlinehq/faultline-engine/internal/synthesis"
)

// Engine runs investigations end to end: resolve targets, gather evidence,
// drive the specialist hand-off loop, synthesize hypotheses, select the
// root cause, and assemble the report.
type Engine struct {
	resolver     *resolve.Resolver
	gatherer     *evidence.Gatherer
	orchestrator *Orchestrator
	synthesizer  synthesis.Synthesizer
	selector     *synthesis.Selector
	advisor      *synthesis.Advisor
	cfg          config.InvestigationConfig
	logger       *slog.Logger
}

func New(resolver *resolve.Resolver, gatherer *evidence.Gatherer, orchestrator *Orchestrator, synthesizer synthesis.Synthesizer, advisor *synthesis.Advisor, cfg config.InvestigationConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		resolver:     resolver,
		gatherer:     gatherer,
		orchestrator: orchestrator,
		synthesizer:  synthesizer,
		selector:     synthesis.NewSelector(),
		advisor:      advisor,
		cfg:          cfg,
		logger:       logger,
	}
}

// Investigate runs one investigation. It never returns an error: degraded
// outcomes travel through the report's status field and error facts, which
// is the only failure channel consumers see.
func (e *Engine) Investigate(ctx context.Context, req models.ParsedRequest) (rep models.InvestigationReport) {
	runID := uuid.NewString()
	started := time.Now()
	logger := e.logger.With("run_id", runID)

	handoffs := 0
	defer func() {
		metrics.ObserveInvestigation(rep.Duration(), string(rep.Status), handoffs, len(rep.Facts))
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("investigation panicked", "panic", r)
			rep = report.Failed(runID, started, nil,
				fmt.Sprintf("investigation aborted by internal fault: %v", r))
		}
	}()

	if req.Empty() {
		logger.Warn("rejecting empty investigation request")
		return report.Failed(runID, started, nil,
			"request named no resources, traces, or error messages to investigate")
	}

	if e.cfg.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ExecutionTimeout)
		defer cancel()
	}

	logger.Info("investigation started", "request", req.Summary())

	log := evidence.NewFactLog()
	for _, msg := range req.ErrorMessages {
		log.Append(models.NewFact(models.SourceRequest,
			fmt.Sprintf("reported error: %s", msg), 0.95))
	}

	set := e.resolver.Resolve(ctx, req, log)
	if set.Len() == 0 {
		logger.Warn("no resources resolved from request")
		return report.Failed(runID, started, log.Snapshot(),
			"no investigable resources could be resolved from the request")
	}

	e.gatherer.Gather(ctx, set, req, log)
	run := e.orchestrator.Run(ctx, log, set, req)
	handoffs = run.Handoffs

	facts := log.Snapshot()
	hyps, err := e.synthesizer.Synthesize(ctx, facts)
	if err != nil {
		logger.Warn("synthesis degraded", "error", err)
	}
	rca := e.selector.Select(hyps, facts)
	advice := e.advisor.Advise(rca, facts)

	status := models.StatusCompleted
	if run.Partial {
		status = models.StatusPartial
	}

	rep = report.Assemble(report.Input{
		RunID:      runID,
		Status:     status,
		Resources:  set,
		Facts:      facts,
		Hypotheses: hyps,
		RootCause:  rca,
		Advice:     advice,
		StartedAt:  started,
	})
	logger.Info("investigation finished",
		"status", status,
		"handoffs", run.Handoffs,
		"facts", len(facts),
		"confidence", rca.Confidence,
		"duration", rep.Duration())
	return rep
}
