// Package normalize turns raw investigation requests into the canonical
// ParsedRequest consumed by the rest of the pipeline.
package normalize

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

// RawRequest is the loose shape accepted at the service boundary: free text
// plus optional structured fields.
type RawRequest struct {
	Description   string            `json:"description"`
	Targets       []string          `json:"targets"`
	TraceIDs      []string          `json:"trace_ids"`
	ErrorMessages []string          `json:"error_messages"`
	Context       map[string]string `json:"context"`
}

// ErrEmptyRequest signals a request with nothing actionable in it. This is
// the only input that terminates an investigation before evidence collection.
var ErrEmptyRequest = fmt.Errorf("request contains no targets, traces, or error messages")

var (
	arnPattern     = regexp.MustCompile(`arn:[a-z0-9-]+:[a-z0-9-]+:[a-z0-9-]*:[0-9]*:[^\s"',]+`)
	tracePattern   = regexp.MustCompile(`\b1-[0-9a-fA-F]{8}-[0-9a-fA-F]{24}\b`)
	errorLineWords = []string{"error", "exception", "failed", "failure", "timeout", "timed out", "denied", "throttl", "refused", "5xx"}
)

// serviceKinds maps an ARN service segment to a resource kind.
var serviceKinds = map[string]models.ResourceKind{
	"lambda":      models.KindFunction,
	"apigateway":  models.KindAPIGateway,
	"execute-api": models.KindAPIGateway,
	"sqs":         models.KindQueue,
	"sns":         models.KindTopic,
	"states":      models.KindWorkflow,
	"dynamodb":    models.KindTable,
	"iam":         models.KindRole,
	"s3":          models.KindBucket,
	"ec2":         models.KindNetwork,
}

// Normalize converts a raw request into an immutable ParsedRequest.
func Normalize(raw RawRequest) (models.ParsedRequest, error) {
	targets := models.NewResourceSet()
	for _, t := range raw.Targets {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		targets.Add(refFromTarget(t))
	}
	for _, arn := range arnPattern.FindAllString(raw.Description, -1) {
		targets.Add(RefFromARN(arn))
	}

	traceSet := make(map[string]struct{})
	traces := make([]string, 0, len(raw.TraceIDs))
	appendTrace := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" {
			return
		}
		if _, ok := traceSet[id]; ok {
			return
		}
		traceSet[id] = struct{}{}
		traces = append(traces, id)
	}
	for _, id := range raw.TraceIDs {
		appendTrace(id)
	}
	for _, id := range tracePattern.FindAllString(raw.Description, -1) {
		appendTrace(id)
	}

	errs := make([]string, 0, len(raw.ErrorMessages))
	for _, msg := range raw.ErrorMessages {
		if msg = strings.TrimSpace(msg); msg != "" {
			errs = append(errs, msg)
		}
	}
	errs = append(errs, errorLines(raw.Description)...)

	parsed := models.ParsedRequest{
		PrimaryTargets: targets.Refs(),
		TraceIDs:       traces,
		ErrorMessages:  errs,
	}
	if len(raw.Context) > 0 {
		parsed.BusinessContext = make(map[string]string, len(raw.Context))
		for k, v := range raw.Context {
			parsed.BusinessContext[k] = v
		}
	}

	if parsed.Empty() {
		return models.ParsedRequest{}, ErrEmptyRequest
	}
	return parsed, nil
}

// RefFromARN derives a ResourceRef from an opaque ARN-style identifier.
func RefFromARN(arn string) models.ResourceRef {
	parts := strings.SplitN(arn, ":", 6)
	ref := models.ResourceRef{Kind: models.KindOther, ARN: arn, Name: arn}
	if len(parts) < 6 {
		return ref
	}
	if kind, ok := serviceKinds[parts[2]]; ok {
		ref.Kind = kind
	}
	ref.Region = parts[3]

	resource := parts[5]
	if idx := strings.LastIndexAny(resource, ":/"); idx >= 0 && idx+1 < len(resource) {
		ref.Name = resource[idx+1:]
	} else {
		ref.Name = resource
	}
	return ref
}

func refFromTarget(target string) models.ResourceRef {
	if strings.HasPrefix(target, "arn:") {
		return RefFromARN(target)
	}
	// Bare names: kind is unknown until trace walking or collection refines it.
	return models.ResourceRef{Kind: models.KindOther, Name: target}
}

func errorLines(description string) []string {
	var out []string
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		for _, kw := range errorLineWords {
			if strings.Contains(lower, kw) {
				out = append(out, line)
				break
			}
		}
	}
	return out
}
