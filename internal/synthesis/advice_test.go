package synthesis

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

func permissionRCA() models.RootCauseAnalysis {
	primary := models.Hypothesis{
		Type:       models.HypothesisPermission,
		Confidence: 0.9,
		Evidence:   []int{0},
	}
	return models.RootCauseAnalysis{Primary: &primary, Confidence: 0.9}
}

func TestAdviseBuiltinForPrimaryType(t *testing.T) {
	advisor, err := NewAdvisor("", nil)
	if err != nil {
		t.Fatalf("advisor: %v", err)
	}

	advice := advisor.Advise(permissionRCA(), nil)

	if len(advice) == 0 {
		t.Fatal("expected built-in advice")
	}
	if advice[0].Category != models.CategoryPermissions {
		t.Fatalf("permission root cause should yield permissions advice, got %s", advice[0].Category)
	}
	if advice[0].Priority != models.PriorityHigh {
		t.Fatalf("expected high priority, got %s", advice[0].Priority)
	}
}

func TestAdviseWithoutPrimary(t *testing.T) {
	advisor, _ := NewAdvisor("", nil)

	advice := advisor.Advise(models.RootCauseAnalysis{Confidence: 0.2}, nil)

	if len(advice) != 1 {
		t.Fatalf("inconclusive analysis gets exactly one suggestion, got %d", len(advice))
	}
	if advice[0].Priority != models.PriorityLow {
		t.Fatalf("expected low priority, got %s", advice[0].Priority)
	}
}

func TestAdviseRulePackMatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	rules := `rules:
  - id: sqs-send-denied
    match:
      hypothesis_type: permission_issue
      fact_contains:
        - "sqs:sendmessage"
    advice:
      - title: Grant sqs:SendMessage to the producer role
        description: Add the action scoped to the queue ARN.
        priority: high
        category: permissions
`
	if err := os.WriteFile(path, []byte(rules), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	advisor, err := NewAdvisor(path, nil)
	if err != nil {
		t.Fatalf("advisor: %v", err)
	}

	facts := []models.Fact{
		models.NewFact("compute-function", "AccessDenied: not authorized to perform sqs:SendMessage", 0.9),
	}
	advice := advisor.Advise(permissionRCA(), facts)

	found := false
	for _, a := range advice {
		if a.Title == "Grant sqs:SendMessage to the producer role" {
			found = true
		}
	}
	if !found {
		t.Fatalf("rule-pack advice missing: %+v", advice)
	}
}

func TestAdviseRulePackNoMatchWithoutFact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	rules := `rules:
  - id: needs-fact
    match:
      hypothesis_type: permission_issue
      fact_contains:
        - "a phrase nothing contains"
    advice:
      - title: Should not appear
        description: x
        priority: low
        category: other
`
	if err := os.WriteFile(path, []byte(rules), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	advisor, _ := NewAdvisor(path, nil)
	advice := advisor.Advise(permissionRCA(), nil)

	for _, a := range advice {
		if a.Title == "Should not appear" {
			t.Fatal("rule matched without its required fact")
		}
	}
}

func TestNewAdvisorMissingFileIsNotFatal(t *testing.T) {
	advisor, err := NewAdvisor(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	if err != nil {
		t.Fatalf("missing rule pack must not be fatal: %v", err)
	}
	if advisor == nil {
		t.Fatal("expected a working advisor")
	}
}

func TestAdviseDeduplicatesByTitle(t *testing.T) {
	primary := models.Hypothesis{Type: models.HypothesisPermission, Confidence: 0.9, Evidence: []int{0}}
	contributing := models.Hypothesis{Type: models.HypothesisPermission, Confidence: 0.6, Evidence: []int{1}}
	rca := models.RootCauseAnalysis{Primary: &primary, Contributing: []models.Hypothesis{contributing}, Confidence: 0.9}

	advisor, _ := NewAdvisor("", nil)
	advice := advisor.Advise(rca, nil)

	seen := make(map[string]int)
	for _, a := range advice {
		seen[a.Title]++
		if seen[a.Title] > 1 {
			t.Fatalf("advice %q duplicated", a.Title)
		}
	}
}
