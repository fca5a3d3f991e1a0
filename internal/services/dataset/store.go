// Package dataset holds the records the dashboard currently works on.
package dataset

import (
	"log"
	"sync"
	"time"

	"clinicdash/internal/models"
)

// Store keeps API and CSV records apart so that a CSV import can be
// cleared without refetching from the practice-management API. Readers
// always receive copies.
type Store struct {
	mu           sync.RWMutex
	api          []models.VisitRecord
	csv          []models.VisitRecord
	apiConnected bool
	lastUpdated  time.Time
	now          func() time.Time
}

// New creates an empty store
func New() *Store {
	return &Store{now: time.Now}
}

// Snapshot returns a copy of every record, API records first
func (s *Store) Snapshot() []models.VisitRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.VisitRecord, 0, len(s.api)+len(s.csv))
	out = append(out, s.api...)
	out = append(out, s.csv...)
	return out
}

// ReplaceAPI swaps in a fresh set of API records, dropping repeated ones
// the same way the loader does
func (s *Store) ReplaceAPI(records []models.VisitRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.api = models.Deduplicate(withSource(records, models.SourceAPI))
	s.apiConnected = true
	s.lastUpdated = s.now()
	if removed := len(records) - len(s.api); removed > 0 {
		log.Printf("Dataset: skipped %d duplicate API records", removed)
	}
	log.Printf("Dataset: %d API records loaded", len(s.api))
}

// AppendCSV adds committed CSV records, skipping any whose hash is already
// present among the CSV records. It returns how many were added.
func (s *Store) AppendCSV(records []models.VisitRecord) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(s.csv))
	for i := range s.csv {
		if h, ok := s.csv[i].ComputeHash(); ok {
			seen[h] = true
		}
	}

	added := 0
	for _, r := range withSource(records, models.SourceCSV) {
		h, ok := r.ComputeHash()
		if ok && seen[h] {
			continue
		}
		if ok {
			seen[h] = true
		}
		s.csv = append(s.csv, r)
		added++
	}

	if skipped := len(records) - added; skipped > 0 {
		log.Printf("Dataset: skipped %d duplicate CSV records", skipped)
	}
	s.lastUpdated = s.now()
	return added
}

// ClearCSV drops every CSV record
func (s *Store) ClearCSV() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.csv = nil
	s.lastUpdated = s.now()
}

// Reset empties the store and marks the API as disconnected
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.api = nil
	s.csv = nil
	s.apiConnected = false
	s.lastUpdated = s.now()
}

// Status reports what the store holds
func (s *Store) Status() models.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]models.VisitRecord, 0, len(s.api)+len(s.csv))
	all = append(append(all, s.api...), s.csv...)
	set := models.NewRecordSet(all)

	return models.Status{
		APIConnected: s.apiConnected,
		CSVLoaded:    len(s.csv) > 0,
		APIRecords:   len(s.api),
		CSVRecords:   len(s.csv),
		TotalRecords: set.Len(),
		MinDate:      set.MinDate(),
		MaxDate:      set.MaxDate(),
		LastUpdated:  s.lastUpdated,
	}
}

func withSource(records []models.VisitRecord, source models.RecordSource) []models.VisitRecord {
	out := make([]models.VisitRecord, len(records))
	copy(out, records)
	for i := range out {
		out[i].Source = source
	}
	return out
}
