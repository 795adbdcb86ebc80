package models

import "time"

// Well-known Fact sources. Collectors use their registry name; these cover
// the engine-internal producers.
const (
	SourceTraceWalk      = "trace_walk"
	SourceProviderHealth = "provider_health"
	SourceChangeHistory  = "change_history"
	SourceRequest        = "request"
	SourceOrchestrator   = "orchestrator"
)

// Well-known Fact metadata keys.
const (
	// MetadataError carries a collaborator failure description.
	MetadataError = "error"
	// MetadataRoleARN marks a Fact that references an attached IAM role;
	// specialists use it to escalate to permissions analysis.
	MetadataRoleARN = "role_arn"
)

// ErrorFactMaxConfidence caps the confidence of Facts that record a
// collaborator failure rather than an observation.
const ErrorFactMaxConfidence = 0.3

// Fact is an atomic, source-attributed, confidence-scored observation.
// Facts are append-only: once recorded they are never edited, only
// superseded by newer Facts.
type Fact struct {
	Source     string         `json:"source"`
	Content    string         `json:"content"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// NewFact builds an observation Fact with a clamped confidence.
func NewFact(source, content string, confidence float64) Fact {
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return Fact{
		Source:     source,
		Content:    content,
		Confidence: confidence,
		Timestamp:  time.Now().UTC(),
	}
}

// NewErrorFact records a collaborator failure as evidence. The confidence is
// capped so degraded data never outweighs real observations.
func NewErrorFact(source, content string, err error) Fact {
	f := NewFact(source, content, ErrorFactMaxConfidence)
	f.Metadata = map[string]any{MetadataError: err.Error()}
	return f
}

// IsError reports whether the Fact records a collaborator failure.
func (f Fact) IsError() bool {
	if f.Metadata == nil {
		return false
	}
	_, ok := f.Metadata[MetadataError]
	return ok
}

// WithMetadata returns a copy of the Fact with the key set. The receiver is
// unchanged; Facts stay immutable once appended.
func (f Fact) WithMetadata(key string, value any) Fact {
	meta := make(map[string]any, len(f.Metadata)+1)
	for k, v := range f.Metadata {
		meta[k] = v
	}
	meta[key] = value
	f.Metadata = meta
	return f
}
