package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ResourceKind enumerates the cloud resource categories the engine understands.
type ResourceKind string

const (
	KindFunction   ResourceKind = "compute-function"
	KindAPIGateway ResourceKind = "api-gateway"
	KindQueue      ResourceKind = "queue"
	KindTopic      ResourceKind = "topic"
	KindWorkflow   ResourceKind = "workflow"
	KindTable      ResourceKind = "table"
	KindRole       ResourceKind = "role"
	KindBucket     ResourceKind = "bucket"
	KindNetwork    ResourceKind = "network"
	KindOther      ResourceKind = "other"
)

// ResourceRef identifies a single cloud resource implicated in an investigation.
type ResourceRef struct {
	Kind   ResourceKind `json:"kind"`
	Name   string       `json:"name"`
	ARN    string       `json:"arn,omitempty"`
	Region string       `json:"region,omitempty"`
}

// Key returns the deduplication identity: the ARN when present, otherwise
// the (kind, name, region) tuple.
func (r ResourceRef) Key() string {
	if r.ARN != "" {
		return r.ARN
	}
	return fmt.Sprintf("%s/%s/%s", r.Kind, r.Name, r.Region)
}

// String renders a short human-readable identifier for log lines and Facts.
func (r ResourceRef) String() string {
	if r.ARN != "" {
		return r.ARN
	}
	return string(r.Kind) + ":" + r.Name
}

// ResourceSet is a deduplicated set of ResourceRefs. Insertion order is
// preserved so investigation order stays deterministic.
type ResourceSet struct {
	refs  []ResourceRef
	index map[string]struct{}
}

// NewResourceSet builds a set seeded with the provided refs.
func NewResourceSet(refs ...ResourceRef) *ResourceSet {
	s := &ResourceSet{index: make(map[string]struct{})}
	for _, r := range refs {
		s.Add(r)
	}
	return s
}

// Add inserts a ref unless an equal resource is already present.
// It reports whether the ref was added.
func (s *ResourceSet) Add(r ResourceRef) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	key := r.Key()
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = struct{}{}
	s.refs = append(s.refs, r)
	return true
}

// Refs returns the members in insertion order. The slice is a copy.
func (s *ResourceSet) Refs() []ResourceRef {
	if s == nil {
		return nil
	}
	out := make([]ResourceRef, len(s.refs))
	copy(out, s.refs)
	return out
}

// Len reports the number of distinct resources.
func (s *ResourceSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.refs)
}

// Contains reports whether an equal resource is already a member.
func (s *ResourceSet) Contains(r ResourceRef) bool {
	if s == nil || s.index == nil {
		return false
	}
	_, ok := s.index[r.Key()]
	return ok
}

// MarshalJSON renders the set as a plain array, which is the wire shape.
func (s *ResourceSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.refs)
}

// UnmarshalJSON rebuilds the set (with dedup) from an array.
func (s *ResourceSet) UnmarshalJSON(data []byte) error {
	var refs []ResourceRef
	if err := json.Unmarshal(data, &refs); err != nil {
		return err
	}
	*s = *NewResourceSet(refs...)
	return nil
}

// ParsedRequest is the canonical form of an investigation request.
// It is immutable once produced by the normalizer.
type ParsedRequest struct {
	PrimaryTargets  []ResourceRef     `json:"primary_targets"`
	TraceIDs        []string          `json:"trace_ids"`
	ErrorMessages   []string          `json:"error_messages"`
	BusinessContext map[string]string `json:"business_context,omitempty"`
}

// Empty reports whether the request carries nothing actionable.
func (p ParsedRequest) Empty() bool {
	return len(p.PrimaryTargets) == 0 && len(p.TraceIDs) == 0 && len(p.ErrorMessages) == 0
}

// Summary renders a one-line description of the request for prompts and logs.
func (p ParsedRequest) Summary() string {
	parts := make([]string, 0, 3)
	if n := len(p.PrimaryTargets); n > 0 {
		names := make([]string, 0, n)
		for _, t := range p.PrimaryTargets {
			names = append(names, t.String())
		}
		parts = append(parts, "targets: "+strings.Join(names, ", "))
	}
	if len(p.TraceIDs) > 0 {
		parts = append(parts, "traces: "+strings.Join(p.TraceIDs, ", "))
	}
	if len(p.ErrorMessages) > 0 {
		parts = append(parts, fmt.Sprintf("%d reported error(s)", len(p.ErrorMessages)))
	}
	if len(parts) == 0 {
		return "empty request"
	}
	return strings.Join(parts, "; ")
}
