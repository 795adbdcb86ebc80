package history

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

// Miner mines frequency-based failure patterns from archived reports:
// which root-cause types recur, against which resource kinds, and how
// confident the engine has been about them.
type Miner struct {
	store  *Store
	logger *slog.Logger
}

func NewMiner(store *Store, logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{store: store, logger: logger}
}

type aggregate struct {
	count    int
	confSum  float64
	kinds    map[models.ResourceKind]int
	lastSeen time.Time
}

// Mine aggregates the archive into patterns ordered by prevalence.
// Reports without a primary root cause are skipped.
func (m *Miner) Mine() []models.FailurePattern {
	reports := m.store.List(time.Time{})
	if len(reports) == 0 {
		return nil
	}

	aggs := make(map[models.HypothesisType]*aggregate)
	considered := 0
	for _, rep := range reports {
		if rep.RootCause.Primary == nil {
			continue
		}
		considered++
		t := rep.RootCause.Primary.Type
		agg := aggs[t]
		if agg == nil {
			agg = &aggregate{kinds: make(map[models.ResourceKind]int)}
			aggs[t] = agg
		}
		agg.count++
		agg.confSum += rep.RootCause.Confidence
		for _, ref := range rep.Resources {
			agg.kinds[ref.Kind]++
		}
		if rep.StartedAt.After(agg.lastSeen) {
			agg.lastSeen = rep.StartedAt
		}
	}
	if considered == 0 {
		return nil
	}

	patterns := make([]models.FailurePattern, 0, len(aggs))
	for t, agg := range aggs {
		patterns = append(patterns, models.FailurePattern{
			ID:             fmt.Sprintf("pattern-%s", t),
			Name:           fmt.Sprintf("recurring %s", t),
			Description:    "mined from archived investigation reports",
			HypothesisType: t,
			ResourceKinds:  agg.topKinds(3),
			Occurrences:    agg.count,
			Prevalence:     float64(agg.count) / float64(considered),
			MeanConfidence: agg.confSum / float64(agg.count),
			LastSeen:       agg.lastSeen,
		})
	}
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Prevalence != patterns[j].Prevalence {
			return patterns[i].Prevalence > patterns[j].Prevalence
		}
		return patterns[i].ID < patterns[j].ID
	})
	m.logger.Debug("mined failure patterns", "patterns", len(patterns), "reports", considered)
	return patterns
}

func (a *aggregate) topKinds(n int) []models.ResourceKind {
	kinds := make([]models.ResourceKind, 0, len(a.kinds))
	for k := range a.kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if a.kinds[kinds[i]] != a.kinds[kinds[j]] {
			return a.kinds[kinds[i]] > a.kinds[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	if len(kinds) > n {
		kinds = kinds[:n]
	}
	return kinds
}
