package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinicdash/internal/models"
)

var (
	ErrSessionNotFound = errors.New("import session not found")
	ErrRowNotFound     = errors.New("row not found")
	ErrUnknownField    = errors.New("unknown field")

	// ErrImportBlocked is returned by Commit while error rows remain
	ErrImportBlocked = errors.New("import has rows with errors")
)

// Session is a draft import whose rows can be edited before commit
type Session struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Summary   Summary   `json:"summary"`
	Result    *Result   `json:"result"`
}

// Manager holds draft import sessions in memory
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewManager creates an empty session manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create parses an upload into a new draft session
func (m *Manager) Create(filename string, r io.Reader) (*Session, error) {
	result, err := Parse(r)
	if err != nil {
		return nil, err
	}

	now := m.now()
	s := &Session{
		ID:        uuid.NewString(),
		Filename:  filename,
		CreatedAt: now,
		UpdatedAt: now,
		Result:    result,
		Summary:   result.Summary(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	log.Printf("Import %s: %s parsed %d rows (%d errors, %d warnings)",
		s.ID, filename, s.Summary.Rows, s.Summary.Errors, s.Summary.Warnings)
	return s.copy(), nil
}

// Get returns a copy of a session
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.copy(), nil
}

// List returns every open session without rows, oldest first
func (m *Manager) List() []Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, Session{ID: s.ID, Filename: s.Filename, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt, Summary: s.Summary})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// UpdateRow replaces fields on the row with the given CSV line number and
// revalidates the whole session, since a change can create or clear a
// duplicate elsewhere.
func (m *Manager) UpdateRow(id string, line int, fields map[string]string) (*Session, error) {
	for field := range fields {
		if _, ok := columnMappings[field]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	row := s.Result.row(line)
	if row == nil {
		return nil, fmt.Errorf("%w: line %d", ErrRowNotFound, line)
	}
	for field, value := range fields {
		row.Fields[field] = strings.TrimSpace(value)
	}

	s.Result.revalidate()
	s.Summary = s.Result.Summary()
	s.UpdatedAt = m.now()
	return s.copy(), nil
}

// Commit closes the session and returns its valid records. While any row
// has an error the commit is refused unless skipInvalid is set, in which
// case error rows are dropped.
func (m *Manager) Commit(id string, skipInvalid bool) ([]models.VisitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if s.Summary.Invalid > 0 && !skipInvalid {
		return nil, fmt.Errorf("%w: %d of %d rows", ErrImportBlocked, s.Summary.Invalid, s.Summary.Rows)
	}

	records := s.Result.ValidRecords()
	delete(m.sessions, id)

	log.Printf("Import %s committed %d records (%d skipped)", id, len(records), s.Summary.Invalid)
	return records, nil
}

// Discard drops a session
func (m *Manager) Discard(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, id)
	return nil
}

// Expire drops sessions untouched for longer than maxAge and returns how
// many were dropped
func (m *Manager) Expire(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	expired := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			expired++
		}
	}
	return expired
}

// RunJanitor expires stale sessions every interval until ctx is done
func (m *Manager) RunJanitor(ctx context.Context, interval, maxAge time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := m.Expire(maxAge); n > 0 {
				log.Printf("Expired %d stale import sessions", n)
			}
		}
	}
}

func (r *Result) row(line int) *Row {
	for i := range r.Rows {
		if r.Rows[i].Line == line {
			return &r.Rows[i]
		}
	}
	return nil
}

func (s *Session) copy() *Session {
	c := *s
	c.Result = s.Result.clone()
	return &c
}
