// Package evidence owns the investigation FactLog and the concurrent
// evidence-gathering stage that fills it.
package evidence

import (
	"sync"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

// FactLog is the append-only, single-writer-guarded record of everything an
// investigation has observed. Insertion order is the causal order of
// discovery and is meaningful for earliest-failure reasoning. Facts are
// never removed or mutated after being appended.
type FactLog struct {
	mu    sync.RWMutex
	facts []models.Fact
}

// NewFactLog returns an empty log.
func NewFactLog() *FactLog {
	return &FactLog{}
}

// Append records a single Fact and returns its index, which is the stable
// reference hypotheses use as evidence.
func (l *FactLog) Append(f models.Fact) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.facts = append(l.facts, f)
	return len(l.facts) - 1
}

// AppendBatch records a slice of Facts as one atomic append, preserving the
// slice's internal order, and returns the index of the first appended Fact.
// Concurrent collectors use this so facts from one invocation never
// interleave with another's.
func (l *FactLog) AppendBatch(facts []models.Fact) int {
	if len(facts) == 0 {
		return l.Len()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	first := len(l.facts)
	l.facts = append(l.facts, facts...)
	return first
}

// Len reports the number of recorded Facts.
func (l *FactLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.facts)
}

// Fact returns the Fact at index i and whether the index is valid.
func (l *FactLog) Fact(i int) (models.Fact, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.facts) {
		return models.Fact{}, false
	}
	return l.facts[i], true
}

// Snapshot returns a copy of the log contents in insertion order.
func (l *FactLog) Snapshot() []models.Fact {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.Fact, len(l.facts))
	copy(out, l.facts)
	return out
}
