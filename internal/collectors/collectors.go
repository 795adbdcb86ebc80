// Package collectors holds the built-in specialist collectors: thin
// per-resource-kind adapters over the observability gateway that turn raw
// signals into Facts.
package collectors

import (
	"context"
	"fmt"
	"strings"

	"github.com/faultlinehq/faultline-engine/internal/evidence"
	"github.com/faultlinehq/faultline-engine/internal/models"
	"github.com/faultlinehq/faultline-engine/internal/repo"
)

// SignalSource is the slice of the gateway client the collectors depend on.
type SignalSource interface {
	ResourceConfig(ctx context.Context, ref models.ResourceRef) (map[string]any, error)
	RecentLogs(ctx context.Context, ref models.ResourceRef) ([]repo.LogLine, error)
	MetricSeries(ctx context.Context, ref models.ResourceRef) ([]repo.MetricPoint, error)
}

// Config keys the collectors understand across resource kinds.
const (
	configKeyExecutionRole = "execution_role"
	configKeyTimeout       = "timeout_seconds"
	configKeyDLQ           = "dead_letter_target"
)

// NewDefaultRegistry wires one collector per supported resource kind, all
// backed by the same signal source.
func NewDefaultRegistry(source SignalSource) *evidence.Registry {
	generic := &signalCollector{source: source}
	registry := evidence.NewRegistry(generic)
	registry.Register(models.KindFunction, &functionCollector{signalCollector{source: source}})
	registry.Register(models.KindQueue, &queueCollector{signalCollector{source: source}})
	registry.Register(models.KindTopic, &queueCollector{signalCollector{source: source}})
	registry.Register(models.KindRole, &roleCollector{signalCollector{source: source}})
	return registry
}

// signalCollector is the shared config+logs+metrics pass every kind gets.
type signalCollector struct {
	source SignalSource
}

func (c *signalCollector) Collect(ctx context.Context, ref models.ResourceRef, req models.ParsedRequest) ([]models.Fact, error) {
	if c.source == nil {
		return nil, fmt.Errorf("no signal source configured")
	}
	facts, _, err := c.collectSignals(ctx, ref)
	return facts, err
}

// collectSignals also hands the fetched metric series back so kind-specific
// collectors can inspect it without a second gateway call.
func (c *signalCollector) collectSignals(ctx context.Context, ref models.ResourceRef) ([]models.Fact, []repo.MetricPoint, error) {
	var facts []models.Fact
	source := string(ref.Kind)

	cfg, cfgErr := c.source.ResourceConfig(ctx, ref)
	if cfgErr == nil {
		facts = append(facts, configFacts(source, ref, cfg)...)
	}

	lines, logErr := c.source.RecentLogs(ctx, ref)
	if logErr == nil {
		facts = append(facts, logFacts(source, ref, lines)...)
	}

	points, metricErr := c.source.MetricSeries(ctx, ref)
	if metricErr == nil {
		facts = append(facts, metricFacts(source, ref, points)...)
	}

	// Only a total blackout is a collector failure; any single signal
	// missing just narrows the evidence.
	if cfgErr != nil && logErr != nil && metricErr != nil {
		return nil, nil, fmt.Errorf("all signals unavailable for %s: %w", ref, cfgErr)
	}
	if len(facts) == 0 {
		facts = append(facts, models.NewFact(source,
			fmt.Sprintf("%s shows no abnormal signals", ref), 0.6))
	}
	return facts, points, nil
}

func configFacts(source string, ref models.ResourceRef, cfg map[string]any) []models.Fact {
	var facts []models.Fact

	if role, ok := cfg[configKeyExecutionRole].(string); ok && role != "" {
		fact := models.NewFact(source,
			fmt.Sprintf("%s runs with execution role %s", ref, role), 0.85)
		fact = fact.WithMetadata(models.MetadataRoleARN, role)
		facts = append(facts, fact)
	}
	if timeout, ok := asFloat(cfg[configKeyTimeout]); ok && timeout <= 3 {
		facts = append(facts, models.NewFact(source,
			fmt.Sprintf("%s has a tight timeout of %.0fs configured", ref, timeout), 0.75))
	}
	if dlq, ok := cfg[configKeyDLQ].(string); ok && dlq == "" {
		facts = append(facts, models.NewFact(source,
			fmt.Sprintf("%s has no dead-letter target configured", ref), 0.7))
	}
	return facts
}

func logFacts(source string, ref models.ResourceRef, lines []repo.LogLine) []models.Fact {
	var facts []models.Fact
	for _, line := range lines {
		level := strings.ToUpper(line.Level)
		if level != "ERROR" && level != "FATAL" && level != "WARN" {
			continue
		}
		confidence := 0.9
		if level == "WARN" {
			confidence = 0.6
		}
		fact := models.NewFact(source, fmt.Sprintf("%s logged: %s", ref, line.Message), confidence)
		if !line.Timestamp.IsZero() {
			fact.Timestamp = line.Timestamp
		}
		if role := roleFromMessage(line.Message); role != "" {
			fact = fact.WithMetadata(models.MetadataRoleARN, role)
		}
		facts = append(facts, fact)
	}
	return facts
}

func metricFacts(source string, ref models.ResourceRef, points []repo.MetricPoint) []models.Fact {
	var facts []models.Fact
	for _, anomaly := range detectMetricAnomalies(points, 0) {
		facts = append(facts, models.NewFact(source,
			fmt.Sprintf("%s metric %s spiked to %.2f (%.1f standard deviations above normal)",
				ref, anomaly.Metric, anomaly.Value, anomaly.Score), 0.8))
	}
	return facts
}

// roleFromMessage pulls an IAM role ARN out of a log line, if present.
func roleFromMessage(message string) string {
	idx := strings.Index(message, "arn:")
	if idx < 0 {
		return ""
	}
	token := message[idx:]
	if end := strings.IndexAny(token, " \t\"'"); end >= 0 {
		token = token[:end]
	}
	if !strings.Contains(token, ":role/") {
		return ""
	}
	return strings.TrimRight(token, ".,;")
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// functionCollector adds compute-function specific checks on top of the
// shared signal pass.
type functionCollector struct {
	signalCollector
}

func (c *functionCollector) Collect(ctx context.Context, ref models.ResourceRef, req models.ParsedRequest) ([]models.Fact, error) {
	facts, _, err := c.collectSignals(ctx, ref)
	if err != nil {
		return nil, err
	}
	for _, msg := range req.ErrorMessages {
		lower := strings.ToLower(msg)
		if strings.Contains(lower, strings.ToLower(ref.Name)) && strings.Contains(lower, "timeout") {
			facts = append(facts, models.NewFact(string(ref.Kind),
				fmt.Sprintf("reported error names %s and mentions a timeout", ref), 0.75))
		}
	}
	return facts, nil
}

// queueCollector adds messaging-specific checks (consumer lag, redrive).
type queueCollector struct {
	signalCollector
}

func (c *queueCollector) Collect(ctx context.Context, ref models.ResourceRef, req models.ParsedRequest) ([]models.Fact, error) {
	facts, points, err := c.collectSignals(ctx, ref)
	if err != nil {
		return nil, err
	}
	for _, p := range points {
		if p.Metric == "oldest_message_age_seconds" && p.Value > 300 {
			facts = append(facts, models.NewFact(string(ref.Kind),
				fmt.Sprintf("%s oldest message is %.0fs old, consumers are falling behind", ref, p.Value), 0.85))
			break
		}
	}
	return facts, nil
}

// roleCollector inspects IAM roles; configuration is the dominant signal.
type roleCollector struct {
	signalCollector
}

func (c *roleCollector) Collect(ctx context.Context, ref models.ResourceRef, req models.ParsedRequest) ([]models.Fact, error) {
	if c.source == nil {
		return nil, fmt.Errorf("no signal source configured")
	}

	cfg, err := c.source.ResourceConfig(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("role configuration unavailable for %s: %w", ref, err)
	}

	var facts []models.Fact
	source := string(ref.Kind)
	if policies, ok := cfg["attached_policies"].([]any); ok {
		facts = append(facts, models.NewFact(source,
			fmt.Sprintf("%s has %d attached polic(ies)", ref, len(policies)), 0.8))
	}
	if missing, ok := cfg["missing_permissions"].([]any); ok && len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, m := range missing {
			if s, ok := m.(string); ok {
				names = append(names, s)
			}
		}
		facts = append(facts, models.NewFact(source,
			fmt.Sprintf("%s is missing permissions: %s", ref, strings.Join(names, ", ")), 0.9))
	}
	if len(facts) == 0 {
		facts = append(facts, models.NewFact(source,
			fmt.Sprintf("%s configuration shows no obvious gaps", ref), 0.6))
	}
	return facts, nil
}
