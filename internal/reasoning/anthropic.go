package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const systemPrompt = `You are an incident root-cause analyst. You receive a JSON
payload with a numbered list of facts gathered from a cloud environment.
Respond with JSON only, in the shape {"hypotheses":[{"type":...,"description":...,
"confidence":...,"evidence":[...]}]}. Allowed types: permission_issue,
configuration_error, timeout, capacity_issue, high_latency, resource_outage,
code_defect, unknown. Emit at most 3 hypotheses, ordered by confidence.
Every hypothesis must cite the zero-based indexes of the facts that support it
in "evidence". Never cite evidence that is not in the payload and never invent
resources or failure modes the facts do not show.`

// AnthropicUnit asks the Anthropic Messages API to reason over evidence.
type AnthropicUnit struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// AnthropicConfig carries the tunables for the Anthropic reasoning unit.
type AnthropicConfig struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

// NewAnthropicUnit builds a reasoning unit backed by the Anthropic API.
// An empty API key falls back to the ANTHROPIC_API_KEY environment variable.
func NewAnthropicUnit(cfg AnthropicConfig) *AnthropicUnit {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5-20250929"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return &AnthropicUnit{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Infer implements Unit.
func (u *AnthropicUnit) Infer(ctx context.Context, payload Payload) (Inference, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Inference{}, fmt.Errorf("%w: encode payload: %v", ErrMalformed, err)
	}

	resp, err := u.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(u.model),
		MaxTokens: u.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(string(body))),
		},
	})
	if err != nil {
		return Inference{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var text strings.Builder
	for i := range resp.Content {
		if resp.Content[i].Type == "text" {
			text.WriteString(resp.Content[i].Text)
		}
	}

	var inf Inference
	if err := json.Unmarshal([]byte(extractJSON(text.String())), &inf); err != nil {
		return Inference{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(inf.Hypotheses) == 0 {
		return Inference{}, fmt.Errorf("%w: no hypotheses in response", ErrMalformed)
	}
	return inf, nil
}

// extractJSON tolerates prose or code fences around the JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
