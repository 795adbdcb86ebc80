package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestResourceRefKey(t *testing.T) {
	withARN := ResourceRef{Kind: KindQueue, Name: "q", ARN: "arn:aws:sqs:us-east-1:123:q"}
	if withARN.Key() != withARN.ARN {
		t.Fatalf("key = %q, want the ARN", withARN.Key())
	}
	bare := ResourceRef{Kind: KindQueue, Name: "q", Region: "us-east-1"}
	if bare.Key() != "queue/q/us-east-1" {
		t.Fatalf("key = %q", bare.Key())
	}
}

func TestResourceRefString(t *testing.T) {
	bare := ResourceRef{Kind: KindFunction, Name: "checkout-handler"}
	if bare.String() != "compute-function:checkout-handler" {
		t.Fatalf("string = %q", bare.String())
	}
}

func TestResourceSetDedupAndOrder(t *testing.T) {
	set := NewResourceSet()
	a := ResourceRef{Kind: KindQueue, Name: "a"}
	b := ResourceRef{Kind: KindQueue, Name: "b"}

	if !set.Add(a) || !set.Add(b) {
		t.Fatal("first insertions must succeed")
	}
	if set.Add(a) {
		t.Fatal("duplicate insertion must report false")
	}

	refs := set.Refs()
	if len(refs) != 2 || refs[0].Name != "a" || refs[1].Name != "b" {
		t.Fatalf("insertion order lost: %+v", refs)
	}
	if !set.Contains(a) || set.Contains(ResourceRef{Kind: KindQueue, Name: "c"}) {
		t.Fatal("membership wrong")
	}
}

func TestResourceSetNilSafe(t *testing.T) {
	var set *ResourceSet
	if set.Len() != 0 || set.Refs() != nil || set.Contains(ResourceRef{Name: "x"}) {
		t.Fatal("nil set must behave as empty")
	}
}

func TestResourceSetJSONRoundTrip(t *testing.T) {
	set := NewResourceSet(
		ResourceRef{Kind: KindQueue, Name: "a"},
		ResourceRef{Kind: KindQueue, Name: "a"},
		ResourceRef{Kind: KindTable, Name: "b"},
	)

	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back ResourceSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Len() != 2 {
		t.Fatalf("len = %d, want 2", back.Len())
	}
}

func TestParsedRequestEmpty(t *testing.T) {
	if !(ParsedRequest{}).Empty() {
		t.Fatal("zero request must be empty")
	}
	if (ParsedRequest{ErrorMessages: []string{"boom"}}).Empty() {
		t.Fatal("request with an error message is not empty")
	}
}

func TestNewFactClampsConfidence(t *testing.T) {
	if got := NewFact("s", "c", 1.5).Confidence; got != 1 {
		t.Fatalf("confidence = %v, want 1", got)
	}
	if got := NewFact("s", "c", -0.1).Confidence; got != 0 {
		t.Fatalf("confidence = %v, want 0", got)
	}
}

func TestNewErrorFactCapsConfidence(t *testing.T) {
	f := NewErrorFact("collector", "logs unavailable", errTest)
	if f.Confidence != ErrorFactMaxConfidence {
		t.Fatalf("confidence = %v, want %v", f.Confidence, ErrorFactMaxConfidence)
	}
	if !f.IsError() {
		t.Fatal("error fact must report IsError")
	}
}

func TestWithMetadataLeavesReceiverUnchanged(t *testing.T) {
	orig := NewFact("s", "c", 0.5)
	copied := orig.WithMetadata("k", "v")

	if orig.Metadata != nil {
		t.Fatal("receiver mutated")
	}
	if copied.Metadata["k"] != "v" {
		t.Fatal("metadata not set on copy")
	}
}

var errTest = errors.New("always fails")
