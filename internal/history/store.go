package history

import (
	"sync"
	"time"

	"github.com/faultlinehq/faultline-engine/internal/models"
)

// Store is a bounded, in-memory archive of finished investigation reports,
// newest first. When the bound is exceeded the oldest report is evicted.
type Store struct {
	mu      sync.RWMutex
	limit   int
	reports []models.InvestigationReport
	byID    map[string]int
}

// NewStore builds a Store holding at most limit reports. A non-positive
// limit falls back to 128.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 128
	}
	return &Store{limit: limit, byID: make(map[string]int)}
}

// Add archives a finished report.
func (s *Store) Add(rep models.InvestigationReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reports = append([]models.InvestigationReport{rep}, s.reports...)
	if len(s.reports) > s.limit {
		s.reports = s.reports[:s.limit]
	}
	s.reindex()
}

// Get returns the report with the given run ID.
func (s *Store) Get(runID string) (models.InvestigationReport, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[runID]
	if !ok {
		return models.InvestigationReport{}, false
	}
	return s.reports[idx], true
}

// List returns archived reports newest first. A non-zero since filters out
// reports that started before it.
func (s *Store) List(since time.Time) []models.InvestigationReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.InvestigationReport, 0, len(s.reports))
	for _, rep := range s.reports {
		if !since.IsZero() && rep.StartedAt.Before(since) {
			continue
		}
		out = append(out, rep)
	}
	return out
}

// Len reports how many reports are archived.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.reports)
}

func (s *Store) reindex() {
	s.byID = make(map[string]int, len(s.reports))
	for i, rep := range s.reports {
		s.byID[rep.RunID] = i
	}
}
