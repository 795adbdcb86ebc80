package normalize

import (
	"errors"
	"testing"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

func TestNormalizeExtractsARNsFromDescription(t *testing.T) {
	raw := RawRequest{
		Description: "Checkout is failing.\n" +
			"Invocation error on arn:aws:lambda:eu-west-1:123456789012:function:checkout-fn after deploy.",
	}

	parsed, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.PrimaryTargets) != 1 {
		t.Fatalf("expected 1 target, got %d", len(parsed.PrimaryTargets))
	}
	target := parsed.PrimaryTargets[0]
	if target.Kind != models.KindFunction {
		t.Fatalf("expected compute-function kind, got %s", target.Kind)
	}
	if target.Name != "checkout-fn" {
		t.Fatalf("expected name checkout-fn, got %s", target.Name)
	}
	if target.Region != "eu-west-1" {
		t.Fatalf("expected region eu-west-1, got %s", target.Region)
	}
	if len(parsed.ErrorMessages) != 1 {
		t.Fatalf("expected the error line to be captured, got %v", parsed.ErrorMessages)
	}
}

func TestNormalizeExtractsTraceIDs(t *testing.T) {
	raw := RawRequest{
		Description: "Requests for trace 1-581cf771-a006649127e371903a2de979 are timing out",
		TraceIDs:    []string{"1-581cf771-a006649127e371903a2de979", "custom-trace"},
	}

	parsed, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.TraceIDs) != 2 {
		t.Fatalf("expected deduplicated trace ids, got %v", parsed.TraceIDs)
	}
	if parsed.TraceIDs[0] != "1-581cf771-a006649127e371903a2de979" {
		t.Fatalf("expected explicit trace id first, got %v", parsed.TraceIDs)
	}
}

func TestNormalizeDeduplicatesTargets(t *testing.T) {
	arn := "arn:aws:sqs:us-east-1:123456789012:orders-queue"
	raw := RawRequest{
		Targets:     []string{arn},
		Description: "Consumers stalled on " + arn + " with age alarms firing",
	}

	parsed, err := Normalize(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed.PrimaryTargets) != 1 {
		t.Fatalf("expected dedup to single target, got %d", len(parsed.PrimaryTargets))
	}
	if parsed.PrimaryTargets[0].Kind != models.KindQueue {
		t.Fatalf("expected queue kind, got %s", parsed.PrimaryTargets[0].Kind)
	}
}

func TestNormalizeBareNameTarget(t *testing.T) {
	parsed, err := Normalize(RawRequest{Targets: []string{"orders-service"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.PrimaryTargets[0].Kind != models.KindOther {
		t.Fatalf("bare names resolve to kind other, got %s", parsed.PrimaryTargets[0].Kind)
	}
}

func TestNormalizeEmptyRequest(t *testing.T) {
	_, err := Normalize(RawRequest{Description: "everything is fine"})
	if !errors.Is(err, ErrEmptyRequest) {
		t.Fatalf("expected ErrEmptyRequest, got %v", err)
	}
}

func TestRefFromARNRoleAndTable(t *testing.T) {
	role := RefFromARN("arn:aws:iam::123456789012:role/checkout-exec")
	if role.Kind != models.KindRole || role.Name != "checkout-exec" {
		t.Fatalf("unexpected role ref: %+v", role)
	}

	table := RefFromARN("arn:aws:dynamodb:us-east-1:123456789012:table/orders")
	if table.Kind != models.KindTable || table.Name != "orders" {
		t.Fatalf("unexpected table ref: %+v", table)
	}
}
