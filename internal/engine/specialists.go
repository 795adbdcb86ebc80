package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

// Findings keys the built-in specialists agree on.
const (
	findingTriageTarget       = "triage_target"
	findingPermissionsChecked = "permissions_checked"
)

var errorWords = []string{"error", "fail", "denied", "unauthorized", "timeout", "timed out", "exception", "throttl", "unavailable", "5xx"}

// DefaultRegistry wires the built-in specialist roster.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(RoleEntry, SpecialistFunc(entryTriage))
	r.Register(RoleFunction, newKindSpecialist(RoleFunction, "function", models.KindFunction))
	r.Register(RoleGateway, newKindSpecialist(RoleGateway, "API gateway", models.KindAPIGateway))
	r.Register(RoleMessaging, newKindSpecialist(RoleMessaging, "messaging", models.KindQueue, models.KindTopic))
	r.Register(RoleWorkflow, newKindSpecialist(RoleWorkflow, "workflow", models.KindWorkflow))
	r.Register(RoleStorage, newKindSpecialist(RoleStorage, "storage", models.KindTable, models.KindBucket))
	r.Register(RoleNetwork, newKindSpecialist(RoleNetwork, "network", models.KindNetwork))
	r.Register(RolePermissions, SpecialistFunc(permissionsAnalysis))
	return r
}

// entryTriage scores each resource by the error signal referencing it and
// hands off to the specialist for the strongest one. Ties resolve to the
// earlier resource in discovery order.
func entryTriage(_ context.Context, view ContextView) (Handoff, error) {
	if len(view.Resources) == 0 {
		return Handoff{
			Next:    RoleTerminal,
			Message: "no resources to triage",
			Facts: []models.Fact{models.NewFact(models.SourceOrchestrator,
				"triage found no resources to analyse", 0.5)},
		}, nil
	}

	best := view.Resources[0]
	bestScore := -1.0
	var bestEvidence []int
	for _, ref := range view.Resources {
		score, evidence := errorSignal(view.Facts, ref)
		if score > bestScore {
			best, bestScore, bestEvidence = ref, score, evidence
		}
	}

	next := RoleForKind(best.Kind)
	hand := Handoff{
		Next:    next,
		Message: fmt.Sprintf("strongest error signal on %s", best),
		Facts: []models.Fact{models.NewFact(models.SourceOrchestrator,
			fmt.Sprintf("triage selected %s for deep analysis (signal score %.2f)", best, bestScore), 0.8)},
		Delta: map[string]any{findingTriageTarget: best.String()},
	}
	if len(bestEvidence) > 0 {
		hand.Findings = []Finding{{
			Key:      "triage",
			Summary:  fmt.Sprintf("%s carries the strongest error signal", best),
			Evidence: bestEvidence,
		}}
	}
	return hand, nil
}

// errorSignal sums the confidence of error-flavoured facts that mention
// the resource and returns the indexes that contributed.
func errorSignal(facts []models.Fact, ref models.ResourceRef) (float64, []int) {
	score := 0.0
	var evidence []int
	for i, fact := range facts {
		if ref.Name == "" || !strings.Contains(fact.Content, ref.Name) {
			continue
		}
		lower := strings.ToLower(fact.Content)
		errorFlavoured := fact.IsError()
		for _, w := range errorWords {
			if strings.Contains(lower, w) {
				errorFlavoured = true
				break
			}
		}
		if !errorFlavoured {
			continue
		}
		score += fact.Confidence
		evidence = append(evidence, i)
	}
	return score, evidence
}

// kindSpecialist is the shared implementation behind the per-kind analysis
// roles. It condenses the facts about its resources into a finding and
// escalates to permissions analysis when the evidence implicates an
// execution role.
type kindSpecialist struct {
	role  Role
	label string
	kinds map[models.ResourceKind]bool
}

func newKindSpecialist(role Role, label string, kinds ...models.ResourceKind) *kindSpecialist {
	m := make(map[models.ResourceKind]bool, len(kinds))
	for _, k := range kinds {
		m[k] = true
	}
	return &kindSpecialist{role: role, label: label, kinds: m}
}

func (s *kindSpecialist) Analyze(_ context.Context, view ContextView) (Handoff, error) {
	evidence, top := s.relevantFacts(view)
	if len(evidence) == 0 {
		return Handoff{
			Next:    RoleTerminal,
			Message: fmt.Sprintf("no %s evidence to analyse", s.label),
			Facts: []models.Fact{models.NewFact(string(s.role),
				fmt.Sprintf("no facts reference the %s resources under investigation", s.label), 0.5)},
		}, nil
	}

	summary := fmt.Sprintf("%s analysis: %d relevant fact(s); dominant signal: %s",
		s.label, len(evidence), view.Facts[top].Content)
	hand := Handoff{
		Next:    RoleTerminal,
		Message: fmt.Sprintf("%s analysis complete", s.label),
		Facts:   []models.Fact{models.NewFact(string(s.role), summary, 0.7)},
		Findings: []Finding{{
			Key:      string(s.role),
			Summary:  summary,
			Evidence: evidence,
		}},
		Delta: map[string]any{"dominant_signal": view.Facts[top].Content},
	}

	if s.role != RolePermissions && !alreadyChecked(view.Findings) {
		if roleARN, ok := implicatedRole(view.Facts, evidence); ok {
			hand.Next = RolePermissions
			hand.Message = fmt.Sprintf("%s evidence implicates execution role %s", s.label, roleARN)
			hand.Delta["implicated_role"] = roleARN
		}
	}
	return hand, nil
}

// relevantFacts returns sorted indexes of facts mentioning this
// specialist's resources, plus the index of the strongest observation.
func (s *kindSpecialist) relevantFacts(view ContextView) (evidence []int, top int) {
	names := make([]string, 0, len(view.Resources))
	for _, ref := range view.Resources {
		if s.kinds[ref.Kind] && ref.Name != "" {
			names = append(names, ref.Name)
		}
	}
	seen := make(map[int]bool)
	topConf := -1.0
	for i, fact := range view.Facts {
		for _, name := range names {
			if !strings.Contains(fact.Content, name) {
				continue
			}
			if !seen[i] {
				seen[i] = true
				evidence = append(evidence, i)
			}
			if !fact.IsError() && fact.Confidence > topConf {
				topConf, top = fact.Confidence, i
			}
			break
		}
	}
	if topConf < 0 && len(evidence) > 0 {
		top = evidence[0]
	}
	sort.Ints(evidence)
	return evidence, top
}

func alreadyChecked(findings map[string]any) bool {
	checked, _ := findings[findingPermissionsChecked].(bool)
	return checked
}

// implicatedRole scans cited facts for an execution-role reference left by
// the evidence collectors.
func implicatedRole(facts []models.Fact, evidence []int) (string, bool) {
	for _, idx := range evidence {
		if arn, ok := facts[idx].Metadata[models.MetadataRoleARN].(string); ok && arn != "" {
			return arn, true
		}
	}
	return "", false
}

// permissionsAnalysis inspects access-control evidence. It is always a
// leaf: control returns to synthesis afterwards.
func permissionsAnalysis(_ context.Context, view ContextView) (Handoff, error) {
	var evidence []int
	topConf := -1.0
	top := -1
	for i, fact := range view.Facts {
		lower := strings.ToLower(fact.Content)
		if strings.Contains(lower, "denied") || strings.Contains(lower, "unauthorized") ||
			strings.Contains(lower, "permission") || strings.Contains(lower, "policy") ||
			strings.Contains(lower, "role") {
			evidence = append(evidence, i)
			if fact.Confidence > topConf {
				topConf, top = fact.Confidence, i
			}
		}
	}

	hand := Handoff{
		Next:    RoleTerminal,
		Message: "permissions analysis complete",
		Delta:   map[string]any{findingPermissionsChecked: true},
	}
	if len(evidence) == 0 {
		hand.Facts = []models.Fact{models.NewFact(string(RolePermissions),
			"no access-control evidence found despite escalation", 0.5)}
		return hand, nil
	}

	summary := fmt.Sprintf("permissions analysis: %d access-control fact(s); strongest: %s",
		len(evidence), view.Facts[top].Content)
	hand.Facts = []models.Fact{models.NewFact(string(RolePermissions), summary, 0.75)}
	hand.Findings = []Finding{{
		Key:      string(RolePermissions),
		Summary:  summary,
		Evidence: evidence,
	}}
	return hand, nil
}
