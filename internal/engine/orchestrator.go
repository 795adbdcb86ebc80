package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/faultlinehq/faultline-engine/internal/config"
	"github.com/faultlinehq/faultline-engine/internal/evidence"
	"github.com/faultlinehq/faultline-engine/internal/models"
)

// Forced-termination reasons recorded in the orchestrator's log fact.
const (
	reasonUnknownRole     = "hand-off to unknown role"
	reasonSelfHandoff     = "specialist handed off to itself"
	reasonEntryReentry    = "hand-off back to entry triage"
	reasonRepeatVisit     = "hand-off to an already-visited role"
	reasonHandoffBudget   = "hand-off budget exhausted"
	reasonIterationBudget = "iteration budget exhausted"
	reasonDeadline        = "investigation deadline exceeded"
	reasonSpecialistError = "specialist returned an error"
	reasonNoSpecialist    = "no specialist registered for role"
)

// RunResult summarises an orchestration pass.
type RunResult struct {
	Findings     map[string]any
	Visited      []Role
	Handoffs     int
	Forced       bool
	ForcedReason string

	// Partial marks runs cut short by a budget or deadline rather than a
	// clean hand-off to synthesis.
	Partial bool
}

// Orchestrator drives the specialist hand-off loop. Specialists never talk
// to each other; every transfer of control passes through the guards here.
type Orchestrator struct {
	registry *Registry
	cfg      config.InvestigationConfig
	logger   *slog.Logger
}

func NewOrchestrator(registry *Registry, cfg config.InvestigationConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{registry: registry, cfg: cfg, logger: logger}
}

// Run executes the hand-off loop starting at entry triage and returns when
// control reaches the synthesis stage, cleanly or by forced redirect.
func (o *Orchestrator) Run(ctx context.Context, log *evidence.FactLog, set *models.ResourceSet, req models.ParsedRequest) RunResult {
	res := RunResult{Findings: make(map[string]any)}
	visited := make(map[Role]bool)
	current := RoleEntry

	for iteration := 0; current != RoleTerminal; iteration++ {
		if iteration >= o.cfg.MaxIterations {
			o.force(log, &res, current, current, reasonIterationBudget, true)
			break
		}
		if ctx.Err() != nil {
			o.force(log, &res, current, current, reasonDeadline, true)
			break
		}

		visited[current] = true
		res.Visited = append(res.Visited, current)

		spec, ok := o.registry.Specialist(current)
		if !ok {
			o.force(log, &res, current, current, reasonNoSpecialist, false)
			break
		}

		hand, err := o.step(ctx, spec, log, set, req, res.Findings)
		if err != nil {
			log.Append(models.NewErrorFact(models.SourceOrchestrator,
				fmt.Sprintf("specialist %s failed", current), err))
			o.force(log, &res, current, current, reasonSpecialistError, false)
			break
		}

		log.AppendBatch(hand.Facts)
		o.acceptFindings(log, &res, current, hand)
		o.mergeDelta(res.Findings, current, hand.Delta)

		next := hand.Next
		if next == "" {
			next = RoleTerminal
		}

		switch {
		case !KnownRole(next):
			o.force(log, &res, current, next, reasonUnknownRole, false)
			return res
		case next == current:
			o.force(log, &res, current, next, reasonSelfHandoff, false)
			return res
		case next == RoleEntry:
			o.force(log, &res, current, next, reasonEntryReentry, false)
			return res
		case next != RoleTerminal && visited[next]:
			o.force(log, &res, current, next, reasonRepeatVisit, false)
			return res
		case res.Handoffs+1 > o.cfg.MaxHandoffs:
			o.force(log, &res, current, next, reasonHandoffBudget, true)
			return res
		}

		res.Handoffs++
		o.logger.Debug("hand-off accepted",
			"from", current, "to", next, "handoffs", res.Handoffs, "message", hand.Message)
		current = next
	}
	return res
}

// step runs one specialist under the per-step timeout against a snapshot
// of the shared context.
func (o *Orchestrator) step(ctx context.Context, spec Specialist, log *evidence.FactLog, set *models.ResourceSet, req models.ParsedRequest, findings map[string]any) (Handoff, error) {
	stepCtx := ctx
	if o.cfg.PerStepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, o.cfg.PerStepTimeout)
		defer cancel()
	}
	facts := log.Snapshot()
	view := ContextView{
		Facts:     facts,
		BaseIndex: len(facts),
		Findings:  cloneFindings(findings),
		Resources: set.Refs(),
		Request:   req,
	}
	return spec.Analyze(stepCtx, view)
}

// acceptFindings validates finding citations against the log after the
// hand-off's facts were appended. Findings without valid evidence are
// rejected and recorded as protocol violations, not fatal ones.
func (o *Orchestrator) acceptFindings(log *evidence.FactLog, res *RunResult, from Role, hand Handoff) {
	for _, finding := range hand.Findings {
		if !citationsValid(finding.Evidence, log.Len()) {
			log.Append(models.NewFact(models.SourceOrchestrator,
				fmt.Sprintf("rejected finding %q from %s: no valid evidence citation", finding.Key, from), 1.0).
				WithMetadata("violation", "uncited_finding"))
			o.logger.Warn("rejected uncited finding", "role", from, "key", finding.Key)
			continue
		}
		key := finding.Key
		if key == "" {
			key = fmt.Sprintf("%s.finding", from)
		}
		res.Findings[key] = map[string]any{
			"summary":  finding.Summary,
			"evidence": finding.Evidence,
		}
	}
}

func citationsValid(evidenceRefs []int, logLen int) bool {
	if len(evidenceRefs) == 0 {
		return false
	}
	for _, ref := range evidenceRefs {
		if ref < 0 || ref >= logLen {
			return false
		}
	}
	return true
}

// mergeDelta folds a specialist's context delta into the shared findings.
// Under the union policy existing keys are preserved and the colliding
// value is stored under a role-qualified key; under replace the newcomer
// wins.
func (o *Orchestrator) mergeDelta(findings map[string]any, from Role, delta map[string]any) {
	for k, v := range delta {
		if o.cfg.ContextMerge == config.MergeReplace {
			findings[k] = v
			continue
		}
		if _, exists := findings[k]; exists {
			findings[fmt.Sprintf("%s.%s", from, k)] = v
			continue
		}
		findings[k] = v
	}
}

// force redirects control to the synthesis stage and records why. Budget
// and deadline exhaustion mark the run partial; protocol violations do not.
func (o *Orchestrator) force(log *evidence.FactLog, res *RunResult, from, attempted Role, reason string, partial bool) {
	res.Forced = true
	res.ForcedReason = reason
	res.Partial = res.Partial || partial

	fact := models.NewFact(models.SourceOrchestrator,
		fmt.Sprintf("investigation forcibly redirected to synthesis: %s", reason), 1.0).
		WithMetadata("forced", true).
		WithMetadata("from", string(from))
	if attempted != from {
		fact = fact.WithMetadata("attempted", string(attempted))
	}
	log.Append(fact)
	o.logger.Warn("forced redirect to synthesis", "from", from, "attempted", attempted, "reason", reason)
}
