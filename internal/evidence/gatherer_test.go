package evidence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/faultlinehq/faultline-engine/internal/models"
	"github.com/faultlinehq/faultline-engine/internal/repo"
)

type stubCollector struct {
	facts []models.Fact
	err   error
}

func (s *stubCollector) Collect(ctx context.Context, ref models.ResourceRef, req models.ParsedRequest) ([]models.Fact, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Fact, 0, len(s.facts))
	for _, f := range s.facts {
		out = append(out, f.WithMetadata("resource", ref.String()))
	}
	return out, nil
}

type stubHealth struct {
	incidents []repo.Incident
	err       error
}

func (s *stubHealth) ActiveIncidents(context.Context) ([]repo.Incident, error) {
	return s.incidents, s.err
}

type stubChanges struct {
	events []repo.ChangeEvent
	err    error
}

func (s *stubChanges) ChangeEvents(context.Context, []models.ResourceRef) ([]repo.ChangeEvent, error) {
	return s.events, s.err
}

func testSet(n int) *models.ResourceSet {
	set := models.NewResourceSet()
	for i := 0; i < n; i++ {
		set.Add(models.ResourceRef{Kind: models.KindFunction, Name: fmt.Sprintf("fn-%d", i)})
	}
	return set
}

func TestGatherIsolatesFailingCollector(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(models.KindFunction, &stubCollector{facts: []models.Fact{models.NewFact("function", "healthy", 0.7)}})
	registry.Register(models.KindTable, &stubCollector{err: fmt.Errorf("simulated outage")})

	set := testSet(3)
	set.Add(models.ResourceRef{Kind: models.KindTable, Name: "orders"})

	log := NewFactLog()
	g := NewGatherer(registry, &stubHealth{}, &stubChanges{}, 4, time.Second, nil)
	g.Gather(context.Background(), set, models.ParsedRequest{}, log)

	var okFacts, errFacts int
	for _, f := range log.Snapshot() {
		switch {
		case f.Source == string(models.KindTable) && f.IsError():
			errFacts++
			if f.Confidence > models.ErrorFactMaxConfidence {
				t.Fatalf("error fact confidence %v exceeds cap", f.Confidence)
			}
		case f.Content == "healthy":
			okFacts++
		}
	}
	if okFacts != 3 {
		t.Fatalf("expected 3 healthy facts from surviving collectors, got %d", okFacts)
	}
	if errFacts != 1 {
		t.Fatalf("expected exactly one error fact for the failed collector, got %d", errFacts)
	}
}

func TestGatherPrechecksPrecedeResourceFacts(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(models.KindFunction, &stubCollector{facts: []models.Fact{models.NewFact("function", "resource fact", 0.7)}})

	log := NewFactLog()
	g := NewGatherer(registry,
		&stubHealth{incidents: []repo.Incident{{Service: "compute", Summary: "degraded invocations"}}},
		&stubChanges{events: []repo.ChangeEvent{{Resource: "fn-0", Summary: "env var changed"}}},
		2, time.Second, nil)
	g.Gather(context.Background(), testSet(2), models.ParsedRequest{}, log)

	facts := log.Snapshot()
	if facts[0].Source != models.SourceProviderHealth {
		t.Fatalf("expected provider_health fact first, got %s", facts[0].Source)
	}
	if facts[1].Source != models.SourceChangeHistory {
		t.Fatalf("expected change_history fact second, got %s", facts[1].Source)
	}
	for _, f := range facts[2:] {
		if f.Source == models.SourceProviderHealth || f.Source == models.SourceChangeHistory {
			t.Fatalf("precheck fact appeared after per-resource collection: %+v", f)
		}
	}
}

func TestGatherAllCollectorsFailStillReturnsFacts(t *testing.T) {
	registry := NewRegistry(nil)
	registry.Register(models.KindFunction, &stubCollector{err: fmt.Errorf("network unreachable")})

	log := NewFactLog()
	g := NewGatherer(registry,
		&stubHealth{err: fmt.Errorf("network unreachable")},
		&stubChanges{err: fmt.Errorf("network unreachable")},
		2, time.Second, nil)
	g.Gather(context.Background(), testSet(2), models.ParsedRequest{}, log)

	facts := log.Snapshot()
	if len(facts) == 0 {
		t.Fatal("expected error facts even when everything fails")
	}
	for _, f := range facts {
		if !f.IsError() {
			t.Fatalf("expected only error facts, got %+v", f)
		}
	}
}

func TestGatherUnsupportedKindBecomesErrorFact(t *testing.T) {
	registry := NewRegistry(nil)

	set := models.NewResourceSet(models.ResourceRef{Kind: models.KindNetwork, Name: "vpc-1"})
	log := NewFactLog()
	g := NewGatherer(registry, &stubHealth{}, &stubChanges{}, 2, time.Second, nil)
	g.Gather(context.Background(), set, models.ParsedRequest{}, log)

	found := false
	for _, f := range log.Snapshot() {
		if f.Source == string(models.KindNetwork) && f.IsError() {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an error fact for the unsupported resource kind")
	}
}
