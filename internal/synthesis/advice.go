package synthesis

import (
	"errors"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

// AdviceRule is a single operator-authored remediation rule.
type AdviceRule struct {
	ID     string      `yaml:"id"`
	Match  RuleMatch   `yaml:"match"`
	Advice []RuleEntry `yaml:"advice"`
}

// RuleMatch defines optional attributes for rule matching. Empty fields
// match anything.
type RuleMatch struct {
	HypothesisType string   `yaml:"hypothesis_type"`
	FactContains   []string `yaml:"fact_contains"`
}

// RuleEntry is the advice payload a rule emits when it matches.
type RuleEntry struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Priority    string `yaml:"priority"`
	Category    string `yaml:"category"`
}

type ruleFile struct {
	Rules []AdviceRule `yaml:"rules"`
}

// Advisor turns a root-cause analysis into actionable advice, combining a
// built-in catalog keyed by hypothesis type with an optional YAML rule pack.
type Advisor struct {
	rules  []AdviceRule
	logger *slog.Logger
}

// NewAdvisor loads the rule pack at path. An empty or missing path yields
// an advisor with only the built-in catalog.
func NewAdvisor(path string, logger *slog.Logger) (*Advisor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	adv := &Advisor{logger: logger}
	if path == "" {
		return adv, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Warn("advice rule pack not found, using built-in catalog only", "path", path)
			return adv, nil
		}
		return nil, err
	}
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	adv.rules = f.Rules
	return adv, nil
}

// Advise produces a deduplicated advice list for the analysis. Primary
// hypothesis advice comes first, then contributing factors, then rule-pack
// matches.
func (a *Advisor) Advise(rca models.RootCauseAnalysis, facts []models.Fact) []models.Advice {
	if rca.Primary == nil {
		return []models.Advice{{
			Title:       "Expand evidence sources",
			Description: "No root cause could be established from the available evidence. Enable structured logging and tracing on the affected resources and re-run the investigation.",
			Priority:    models.PriorityLow,
			Category:    models.CategoryOther,
		}}
	}

	out := make([]models.Advice, 0, 4)
	seen := make(map[string]bool)
	add := func(items ...models.Advice) {
		for _, item := range items {
			if seen[item.Title] {
				continue
			}
			seen[item.Title] = true
			out = append(out, item)
		}
	}

	add(builtinAdvice(rca.Primary.Type)...)
	for _, c := range rca.Contributing {
		add(builtinAdvice(c.Type)...)
	}
	for _, rule := range a.rules {
		if !a.ruleMatches(rule, rca, facts) {
			continue
		}
		for _, e := range rule.Advice {
			add(models.Advice{
				Title:       e.Title,
				Description: e.Description,
				Priority:    models.AdvicePriority(e.Priority),
				Category:    models.AdviceCategory(e.Category),
			})
		}
	}
	return out
}

func (a *Advisor) ruleMatches(rule AdviceRule, rca models.RootCauseAnalysis, facts []models.Fact) bool {
	if t := rule.Match.HypothesisType; t != "" {
		if string(rca.Primary.Type) != t && !contributingHasType(rca.Contributing, t) {
			return false
		}
	}
	for _, needle := range rule.Match.FactContains {
		if !anyFactContains(facts, needle) {
			return false
		}
	}
	return true
}

func contributingHasType(hyps []models.Hypothesis, t string) bool {
	for _, h := range hyps {
		if string(h.Type) == t {
			return true
		}
	}
	return false
}

func anyFactContains(facts []models.Fact, needle string) bool {
	needle = strings.ToLower(needle)
	for _, f := range facts {
		if strings.Contains(strings.ToLower(f.Content), needle) {
			return true
		}
	}
	return false
}

func builtinAdvice(t models.HypothesisType) []models.Advice {
	switch t {
	case models.HypothesisPermission:
		return []models.Advice{{
			Title:       "Review the execution role's policies",
			Description: "Grant the denied action to the execution role, scoped to the specific resource that rejected the call. Prefer adding a narrow inline policy over broad managed policies.",
			Priority:    models.PriorityHigh,
			Category:    models.CategoryPermissions,
		}}
	case models.HypothesisConfiguration:
		return []models.Advice{{
			Title:       "Audit recent configuration changes",
			Description: "Compare the current resource configuration against the last known-good deployment and roll back the offending change.",
			Priority:    models.PriorityHigh,
			Category:    models.CategoryConfiguration,
		}}
	case models.HypothesisTimeout:
		return []models.Advice{{
			Title:       "Raise timeouts or trim the critical path",
			Description: "Increase the timeout on the failing call, or remove slow synchronous dependencies from the request path.",
			Priority:    models.PriorityMedium,
			Category:    models.CategoryConfiguration,
		}}
	case models.HypothesisCapacity:
		return []models.Advice{{
			Title:       "Request a quota increase or add backpressure",
			Description: "Throttling indicates the workload exceeds provisioned capacity. Raise the relevant limit or smooth the traffic with batching and retries with jitter.",
			Priority:    models.PriorityHigh,
			Category:    models.CategoryCapacity,
		}}
	case models.HypothesisLatency:
		return []models.Advice{{
			Title:       "Profile the slow dependency",
			Description: "Latency is elevated without a hard failure. Inspect downstream call durations and cold-start behavior to locate the slow hop.",
			Priority:    models.PriorityMedium,
			Category:    models.CategoryOther,
		}}
	case models.HypothesisOutage:
		return []models.Advice{{
			Title:       "Track the provider incident",
			Description: "The failure correlates with a provider-side disruption. Monitor the provider status feed and defer remediation until the incident resolves; consider a regional failover if one exists.",
			Priority:    models.PriorityHigh,
			Category:    models.CategoryOther,
		}}
	case models.HypothesisCodeDefect:
		return []models.Advice{{
			Title:       "Inspect the failing code path",
			Description: "Stack traces point at an application defect. Reproduce with the captured trace IDs and ship a fix or roll back the last deployment.",
			Priority:    models.PriorityHigh,
			Category:    models.CategoryCode,
		}}
	default:
		return []models.Advice{{
			Title:       "Gather more evidence",
			Description: "The failure signature is ambiguous. Capture request-level traces and structured error logs on the affected resources.",
			Priority:    models.PriorityLow,
			Category:    models.CategoryOther,
		}}
	}
}
