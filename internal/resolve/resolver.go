// Package resolve expands a ParsedRequest into the deduplicated set of
// resources an investigation will examine.
package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/faultlinehq/faultline-engine/internal/evidence"
	"github.com/faultlinehq/faultline-engine/internal/models"
)

// TraceWalker expands a distributed trace into the resources it touched.
type TraceWalker interface {
	WalkTrace(ctx context.Context, traceID string) ([]models.ResourceRef, error)
}

// Resolver combines explicitly named targets with trace discovery.
type Resolver struct {
	walker TraceWalker
	logger *slog.Logger
}

// NewResolver constructs a Resolver; walker may be nil when no trace
// infrastructure is configured.
func NewResolver(walker TraceWalker, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{walker: walker, logger: logger}
}

// Resolve seeds the set with the request's primary targets and unions in
// resources discovered by walking each trace. Trace failures never abort
// resolution: they degrade into low-confidence Facts on the log.
func (r *Resolver) Resolve(ctx context.Context, req models.ParsedRequest, log *evidence.FactLog) *models.ResourceSet {
	set := models.NewResourceSet(req.PrimaryTargets...)

	for _, traceID := range req.TraceIDs {
		if r.walker == nil {
			log.Append(models.NewErrorFact(models.SourceTraceWalk,
				fmt.Sprintf("trace %s not walked: no trace walker configured", traceID),
				fmt.Errorf("trace walker unavailable")))
			continue
		}

		refs, err := r.walker.WalkTrace(ctx, traceID)
		if err != nil {
			r.logger.Warn("trace walk failed", slog.String("trace_id", traceID), slog.Any("error", err))
			log.Append(models.NewErrorFact(models.SourceTraceWalk,
				fmt.Sprintf("trace %s could not be walked", traceID), err))
			continue
		}

		added := 0
		for _, ref := range refs {
			if set.Add(ref) {
				added++
			}
		}
		if added > 0 {
			log.Append(models.NewFact(models.SourceTraceWalk,
				fmt.Sprintf("trace %s touched %d distinct resource(s)", traceID, added), 0.9))
		}
	}

	return set
}
