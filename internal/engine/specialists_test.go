package engine

import (
	"context"
	"testing"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

func TestEntryTriagePicksStrongestErrorSignal(t *testing.T) {
	view := ContextView{
		Facts: []models.Fact{
			models.NewFact("function", "checkout-handler invoked 120 times", 0.9),
			models.NewFact("function", "AccessDenied error from orders-queue", 0.9),
			models.NewFact("queue", "orders-queue delivery failed twice", 0.8),
		},
		BaseIndex: 3,
		Resources: []models.ResourceRef{
			{Kind: models.KindFunction, Name: "checkout-handler"},
			{Kind: models.KindQueue, Name: "orders-queue"},
		},
	}

	hand, err := entryTriage(context.Background(), view)
	if err != nil {
		t.Fatalf("entry triage: %v", err)
	}
	if hand.Next != RoleMessaging {
		t.Fatalf("expected hand-off to messaging analysis, got %s", hand.Next)
	}
	if hand.Delta[findingTriageTarget] != "queue:orders-queue" {
		t.Fatalf("triage target delta wrong: %v", hand.Delta)
	}
	if len(hand.Findings) != 1 || len(hand.Findings[0].Evidence) == 0 {
		t.Fatalf("triage must cite its evidence, got %+v", hand.Findings)
	}
}

func TestEntryTriageTieBreaksOnDiscoveryOrder(t *testing.T) {
	view := ContextView{
		Facts: []models.Fact{
			models.NewFact("function", "fn-a reported a timeout", 0.7),
			models.NewFact("function", "fn-b reported a timeout", 0.7),
		},
		BaseIndex: 2,
		Resources: []models.ResourceRef{
			{Kind: models.KindFunction, Name: "fn-a"},
			{Kind: models.KindFunction, Name: "fn-b"},
		},
	}

	hand, err := entryTriage(context.Background(), view)
	if err != nil {
		t.Fatalf("entry triage: %v", err)
	}
	if hand.Delta[findingTriageTarget] != "compute-function:fn-a" {
		t.Fatalf("tie must resolve to the first resource, got %v", hand.Delta[findingTriageTarget])
	}
}

func TestEntryTriageWithoutResources(t *testing.T) {
	hand, err := entryTriage(context.Background(), ContextView{})
	if err != nil {
		t.Fatalf("entry triage: %v", err)
	}
	if hand.Next != RoleTerminal {
		t.Fatalf("no resources must route to synthesis, got %s", hand.Next)
	}
}

func TestKindSpecialistEscalatesToPermissions(t *testing.T) {
	roleFact := models.NewFact("function", "AccessDenied for checkout-handler", 0.9).
		WithMetadata(models.MetadataRoleARN, "arn:aws:iam::1:role/checkout-exec")
	view := ContextView{
		Facts:     []models.Fact{roleFact},
		BaseIndex: 1,
		Findings:  map[string]any{},
		Resources: []models.ResourceRef{{Kind: models.KindFunction, Name: "checkout-handler"}},
	}

	spec := newKindSpecialist(RoleFunction, "function", models.KindFunction)
	hand, err := spec.Analyze(context.Background(), view)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if hand.Next != RolePermissions {
		t.Fatalf("role-implicating evidence must escalate to permissions analysis, got %s", hand.Next)
	}
	if hand.Delta["implicated_role"] != "arn:aws:iam::1:role/checkout-exec" {
		t.Fatalf("implicated role missing from delta: %v", hand.Delta)
	}
}

func TestKindSpecialistSkipsPermissionsWhenAlreadyChecked(t *testing.T) {
	roleFact := models.NewFact("function", "AccessDenied for checkout-handler", 0.9).
		WithMetadata(models.MetadataRoleARN, "arn:aws:iam::1:role/checkout-exec")
	view := ContextView{
		Facts:     []models.Fact{roleFact},
		BaseIndex: 1,
		Findings:  map[string]any{findingPermissionsChecked: true},
		Resources: []models.ResourceRef{{Kind: models.KindFunction, Name: "checkout-handler"}},
	}

	spec := newKindSpecialist(RoleFunction, "function", models.KindFunction)
	hand, err := spec.Analyze(context.Background(), view)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if hand.Next != RoleTerminal {
		t.Fatalf("permissions already checked, expected synthesis, got %s", hand.Next)
	}
}

func TestKindSpecialistWithoutEvidence(t *testing.T) {
	view := ContextView{
		Facts:     []models.Fact{models.NewFact("queue", "orders-queue is healthy", 0.6)},
		BaseIndex: 1,
		Findings:  map[string]any{},
		Resources: []models.ResourceRef{{Kind: models.KindTable, Name: "sessions"}},
	}

	spec := newKindSpecialist(RoleStorage, "storage", models.KindTable)
	hand, err := spec.Analyze(context.Background(), view)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if hand.Next != RoleTerminal {
		t.Fatalf("expected synthesis, got %s", hand.Next)
	}
	if len(hand.Findings) != 0 {
		t.Fatal("no evidence must mean no finding")
	}
	if len(hand.Facts) != 1 {
		t.Fatal("the absence of evidence is itself recorded as a fact")
	}
}

func TestPermissionsAnalysisReportsAccessControlEvidence(t *testing.T) {
	view := ContextView{
		Facts: []models.Fact{
			models.NewFact("function", "AccessDenied: not authorized to perform sqs:SendMessage", 0.9),
			models.NewFact("change_history", "recent change to orders-queue by deploy-bot", 0.7),
		},
		BaseIndex: 2,
		Findings:  map[string]any{},
	}

	hand, err := permissionsAnalysis(context.Background(), view)
	if err != nil {
		t.Fatalf("permissions analysis: %v", err)
	}
	if hand.Next != RoleTerminal {
		t.Fatalf("permissions analysis is a leaf, got %s", hand.Next)
	}
	if hand.Delta[findingPermissionsChecked] != true {
		t.Fatal("permissions analysis must mark itself done")
	}
	if len(hand.Findings) != 1 || len(hand.Findings[0].Evidence) == 0 {
		t.Fatalf("expected one cited finding, got %+v", hand.Findings)
	}
}

func TestRoleForKindFallsBackToSynthesis(t *testing.T) {
	if got := RoleForKind(models.KindOther); got != RoleTerminal {
		t.Fatalf("unmapped kinds route to synthesis, got %s", got)
	}
	if got := RoleForKind(models.KindQueue); got != RoleMessaging {
		t.Fatalf("queue routes to messaging analysis, got %s", got)
	}
}
