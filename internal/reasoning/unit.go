package reasoning

import (
	"context"
	"errors"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

// Unit is a pluggable hypothesis generator. Implementations must ground
// every hypothesis in the payload's facts; callers validate the citations
// and discard anything that does not check out.
type Unit interface {
	Infer(ctx context.Context, payload Payload) (Inference, error)
}

var (
	// ErrUnavailable reports that the reasoning backend could not be reached.
	ErrUnavailable = errors.New("reasoning: backend unavailable")
	// ErrMalformed reports that the backend answered with output that
	// could not be parsed into hypotheses.
	ErrMalformed = errors.New("reasoning: malformed response")
)

// Payload is the evidence bundle handed to a reasoning unit. Fact order is
// significant: hypotheses cite facts by their position in this slice.
type Payload struct {
	Facts     []models.Fact        `json:"facts"`
	Resources []models.ResourceRef `json:"resources"`
	Narrative string               `json:"narrative,omitempty"`
}

// Inference is the structured answer a reasoning unit returns.
type Inference struct {
	Hypotheses []models.Hypothesis `json:"hypotheses"`
}
