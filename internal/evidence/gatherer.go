package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/faultlinehq/faultline-engine/internal/metrics"
	"github.com/faultlinehq/faultline-engine/internal/models"
	"github.com/faultlinehq/faultline-engine/internal/repo"
)

// Collector inspects one resource and returns raw facts about it. Each
// implementation is a thin adapter over a provider API; a failure is
// reported as an error, never a panic.
type Collector interface {
	Collect(ctx context.Context, ref models.ResourceRef, req models.ParsedRequest) ([]models.Fact, error)
}

// HealthSource reports active provider-side incidents.
type HealthSource interface {
	ActiveIncidents(ctx context.Context) ([]repo.Incident, error)
}

// ChangeSource reports recent configuration changes for a set of resources.
type ChangeSource interface {
	ChangeEvents(ctx context.Context, refs []models.ResourceRef) ([]repo.ChangeEvent, error)
}

// Registry maps resource kinds to their specialist collector.
type Registry struct {
	collectors map[models.ResourceKind]Collector
	fallback   Collector
}

// NewRegistry builds a Registry; fallback handles kinds with no dedicated
// collector and may be nil.
func NewRegistry(fallback Collector) *Registry {
	return &Registry{
		collectors: make(map[models.ResourceKind]Collector),
		fallback:   fallback,
	}
}

// Register binds a collector to a resource kind, replacing any previous binding.
func (r *Registry) Register(kind models.ResourceKind, c Collector) {
	r.collectors[kind] = c
}

// For returns the collector responsible for a kind, falling back when none
// is registered. The second result is false when nothing can collect it.
func (r *Registry) For(kind models.ResourceKind) (Collector, bool) {
	if c, ok := r.collectors[kind]; ok {
		return c, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Gatherer runs the evidence-collection stage: two global prechecks first,
// then one bounded concurrent task per resource. It always returns; every
// failure degrades into an error Fact on the log.
type Gatherer struct {
	registry       *Registry
	health         HealthSource
	changes        ChangeSource
	maxConcurrency int
	perStepTimeout time.Duration
	logger         *slog.Logger
}

// NewGatherer wires the collection stage. health and changes may be nil when
// the gateway is not configured; each absence is recorded as an error Fact.
func NewGatherer(registry *Registry, health HealthSource, changes ChangeSource, maxConcurrency int, perStepTimeout time.Duration, logger *slog.Logger) *Gatherer {
	if maxConcurrency <= 0 {
		maxConcurrency = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gatherer{
		registry:       registry,
		health:         health,
		changes:        changes,
		maxConcurrency: maxConcurrency,
		perStepTimeout: perStepTimeout,
		logger:         logger,
	}
}

// Gather fills the log. Ordering guarantee: provider-health Facts, then
// change-history Facts, then per-resource Facts. Relative order across
// resources is unspecified; facts from one collector invocation stay
// contiguous.
func (g *Gatherer) Gather(ctx context.Context, set *models.ResourceSet, req models.ParsedRequest, log *FactLog) {
	g.checkProviderHealth(ctx, log)
	g.checkChangeHistory(ctx, set, log)

	refs := set.Refs()
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.maxConcurrency)

	for _, ref := range refs {
		ref := ref
		group.Go(func() error {
			// Failures stay local to this resource: convert to an error
			// Fact and report success so sibling collectors keep running.
			facts := g.collectOne(groupCtx, ref, req)
			log.AppendBatch(facts)
			return nil
		})
	}
	// Workers never return errors; Wait is a pure barrier.
	_ = group.Wait()
}

func (g *Gatherer) collectOne(ctx context.Context, ref models.ResourceRef, req models.ParsedRequest) []models.Fact {
	collector, ok := g.registry.For(ref.Kind)
	if !ok {
		return []models.Fact{models.NewErrorFact(
			string(ref.Kind),
			fmt.Sprintf("no collector available for %s", ref),
			fmt.Errorf("unsupported resource kind %s", ref.Kind),
		)}
	}

	stepCtx := ctx
	if g.perStepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, g.perStepTimeout)
		defer cancel()
	}

	facts, err := collector.Collect(stepCtx, ref, req)
	if err != nil {
		g.logger.Warn("collector failed",
			slog.String("resource", ref.String()),
			slog.Any("error", err))
		metrics.ObserveCollectorFailure()
		return []models.Fact{models.NewErrorFact(
			string(ref.Kind),
			fmt.Sprintf("evidence collection failed for %s", ref),
			err,
		)}
	}
	return facts
}

func (g *Gatherer) checkProviderHealth(ctx context.Context, log *FactLog) {
	if g.health == nil {
		log.Append(models.NewErrorFact(models.SourceProviderHealth,
			"provider health not checked: no health source configured",
			fmt.Errorf("health source unavailable")))
		return
	}

	incidents, err := g.health.ActiveIncidents(ctx)
	if err != nil {
		g.logger.Warn("provider health check failed", slog.Any("error", err))
		log.Append(models.NewErrorFact(models.SourceProviderHealth, "provider health check failed", err))
		return
	}
	if len(incidents) == 0 {
		log.Append(models.NewFact(models.SourceProviderHealth, "no active provider incidents reported", 0.8))
		return
	}
	for _, in := range incidents {
		fact := models.NewFact(models.SourceProviderHealth,
			fmt.Sprintf("active provider incident on %s: %s", in.Service, in.Summary), 0.95)
		fact = fact.WithMetadata("service", in.Service)
		fact = fact.WithMetadata("incident_status", in.Status)
		log.Append(fact)
	}
}

func (g *Gatherer) checkChangeHistory(ctx context.Context, set *models.ResourceSet, log *FactLog) {
	if g.changes == nil {
		log.Append(models.NewErrorFact(models.SourceChangeHistory,
			"change history not checked: no change source configured",
			fmt.Errorf("change source unavailable")))
		return
	}

	events, err := g.changes.ChangeEvents(ctx, set.Refs())
	if err != nil {
		g.logger.Warn("change history lookup failed", slog.Any("error", err))
		log.Append(models.NewErrorFact(models.SourceChangeHistory, "change history lookup failed", err))
		return
	}
	if len(events) == 0 {
		log.Append(models.NewFact(models.SourceChangeHistory, "no recent configuration changes recorded", 0.7))
		return
	}
	for _, ev := range events {
		fact := models.NewFact(models.SourceChangeHistory,
			fmt.Sprintf("recent change to %s: %s", ev.Resource, ev.Summary), 0.85)
		fact = fact.WithMetadata("resource", ev.Resource)
		if ev.Actor != "" {
			fact = fact.WithMetadata("actor", ev.Actor)
		}
		if !ev.ChangedAt.IsZero() {
			fact = fact.WithMetadata("changed_at", ev.ChangedAt.Format(time.RFC3339))
		}
		log.Append(fact)
	}
}
