package goals

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"clinicdash/internal/models"
	"clinicdash/internal/services/storage"
)

// StorageKey names the goals file in the settings directory
const StorageKey = "clinic-dashboard-staff-goals"

var (
	ErrGoalNotFound = errors.New("goal not found")
	ErrInvalidGoal  = errors.New("invalid goal")
)

// Store keeps staff goals in memory and writes them through storage on
// every change.
type Store struct {
	mu    sync.RWMutex
	store *storage.Storage
	path  string
	goals []models.StaffGoal
	now   func() time.Time
}

// New creates a goal store backed by <settingsDir>/clinic-dashboard-staff-goals.json
func New(store *storage.Storage, settingsDir string) *Store {
	return &Store{
		store: store,
		path:  filepath.Join(settingsDir, StorageKey+".json"),
		now:   time.Now,
	}
}

// Load reads the goals file. A missing or empty file yields the sample
// goals, which are not written until the first edit.
func (s *Store) Load() error {
	var goals []models.StaffGoal
	err := s.store.ReadJSON(s.path, &goals)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load goals: %w", err)
	}

	if len(goals) == 0 {
		goals = SampleGoals(s.now())
		log.Printf("No staff goals saved - using %d sample goals", len(goals))
	}

	s.mu.Lock()
	s.goals = goals
	s.mu.Unlock()
	return nil
}

// List returns a copy of all goals
func (s *Store) List() []models.StaffGoal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.StaffGoal, len(s.goals))
	copy(out, s.goals)
	return out
}

// Get returns the goal with the given id
func (s *Store) Get(id string) (models.StaffGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.StaffGoal{}, fmt.Errorf("%w: %s", ErrGoalNotFound, id)
	}
	return s.goals[i], nil
}

// Add validates and stores a new goal
func (s *Store) Add(g models.StaffGoal) (models.StaffGoal, error) {
	if err := Validate(g); err != nil {
		return models.StaffGoal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	g.ID = uuid.NewString()
	g.CreatedAt = now
	g.UpdatedAt = now

	next := append(append([]models.StaffGoal(nil), s.goals...), g)
	if err := s.save(next); err != nil {
		return models.StaffGoal{}, err
	}
	return g, nil
}

// Update replaces the goal with the given id
func (s *Store) Update(id string, g models.StaffGoal) (models.StaffGoal, error) {
	if err := Validate(g); err != nil {
		return models.StaffGoal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.StaffGoal{}, fmt.Errorf("%w: %s", ErrGoalNotFound, id)
	}

	g.ID = id
	g.CreatedAt = s.goals[i].CreatedAt
	g.UpdatedAt = s.now()

	next := append([]models.StaffGoal(nil), s.goals...)
	next[i] = g
	if err := s.save(next); err != nil {
		return models.StaffGoal{}, err
	}
	return g, nil
}

// Delete removes the goal with the given id
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrGoalNotFound, id)
	}

	next := append(append([]models.StaffGoal(nil), s.goals[:i]...), s.goals[i+1:]...)
	return s.save(next)
}

// save writes goals and swaps them in only when the write succeeded.
// Callers hold s.mu.
func (s *Store) save(goals []models.StaffGoal) error {
	if err := s.store.WriteJSON(s.path, goals); err != nil {
		return fmt.Errorf("failed to save goals: %w", err)
	}
	s.goals = goals
	return nil
}

func (s *Store) indexOf(id string) int {
	for i := range s.goals {
		if s.goals[i].ID == id {
			return i
		}
	}
	return -1
}

// Validate checks a goal's required fields and ranges
func Validate(g models.StaffGoal) error {
	if strings.TrimSpace(g.StaffName) == "" {
		return fmt.Errorf("%w: staff name is required", ErrInvalidGoal)
	}
	if _, err := time.Parse("2006-01", g.Month); err != nil {
		return fmt.Errorf("%w: month must be YYYY-MM, got %q", ErrInvalidGoal, g.Month)
	}
	if g.RevenueTarget < 0 || g.VisitTarget < 0 || g.NewPatientTarget < 0 || g.UnitPriceTarget < 0 {
		return fmt.Errorf("%w: targets must not be negative", ErrInvalidGoal)
	}
	for _, rate := range []float64{g.NewRateTarget, g.RepeatRateTarget} {
		if rate < 0 || rate > 100 {
			return fmt.Errorf("%w: rate targets must be between 0 and 100", ErrInvalidGoal)
		}
	}
	return nil
}

// SampleGoals returns the two illustrative goals shown before any are saved
func SampleGoals(now time.Time) []models.StaffGoal {
	month := models.MonthKey(now)
	return []models.StaffGoal{
		{
			ID:               "sample-1",
			StaffName:        "山田 花子",
			ClinicName:       "横浜院",
			Month:            month,
			RevenueTarget:    3000000,
			VisitTarget:      120,
			NewPatientTarget: 30,
			NewRateTarget:    25,
			UnitPriceTarget:  25000,
			RepeatRateTarget: 70,
			Note:             "サンプル目標",
			CreatedAt:        now,
			UpdatedAt:        now,
		},
		{
			ID:               "sample-2",
			StaffName:        "佐藤 太郎",
			ClinicName:       "大宮院",
			Month:            month,
			RevenueTarget:    2000000,
			VisitTarget:      100,
			NewPatientTarget: 20,
			NewRateTarget:    20,
			UnitPriceTarget:  20000,
			RepeatRateTarget: 75,
			Note:             "サンプル目標",
			CreatedAt:        now,
			UpdatedAt:        now,
		},
	}
}
