package engine

import (
	"context"
	"maps"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

// ContextView is the read-only snapshot a specialist works from. Facts is
// a point-in-time copy of the investigation log; BaseIndex is the log
// length at snapshot time, so a specialist can predict the indexes its own
// new facts will receive (BaseIndex, BaseIndex+1, ...).
type ContextView struct {
	Facts     []models.Fact
	BaseIndex int
	Findings  map[string]any
	Resources []models.ResourceRef
	Request   models.ParsedRequest
}

// Finding is a conclusion a specialist declares on hand-off. Evidence holds
// fact-log indexes; a finding that cites none is rejected by the
// orchestrator's guards.
type Finding struct {
	Key      string
	Summary  string
	Evidence []int
}

// Handoff is the only way a specialist returns control. Facts are appended
// to the shared log before guards run; Delta is merged into the shared
// findings map under the configured merge policy.
type Handoff struct {
	Next     Role
	Message  string
	Facts    []models.Fact
	Findings []Finding
	Delta    map[string]any
}

// Specialist is one analysis stage. It must not mutate the view; all
// output travels through the returned Handoff.
type Specialist interface {
	Analyze(ctx context.Context, view ContextView) (Handoff, error)
}

// SpecialistFunc adapts a function to the Specialist interface.
type SpecialistFunc func(ctx context.Context, view ContextView) (Handoff, error)

func (f SpecialistFunc) Analyze(ctx context.Context, view ContextView) (Handoff, error) {
	return f(ctx, view)
}

// Registry maps roles to their specialist implementations.
type Registry struct {
	specialists map[Role]Specialist
}

func NewRegistry() *Registry {
	return &Registry{specialists: make(map[Role]Specialist)}
}

func (r *Registry) Register(role Role, s Specialist) {
	r.specialists[role] = s
}

func (r *Registry) Specialist(role Role) (Specialist, bool) {
	s, ok := r.specialists[role]
	return s, ok
}

func cloneFindings(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	maps.Copy(out, src)
	return out
}
