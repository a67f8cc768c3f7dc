package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cppla/moodboard/models"
)

// MemoryStore is an in-process EntryStore. It enforces the same (user, day)
// uniqueness as the database index, under its mutex.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  uint
	entries map[uint]models.MoodEntry
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[uint]models.MoodEntry{}}
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (s *MemoryStore) FindInRange(_ context.Context, userID uint, from, to time.Time) (*models.MoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.UserID == userID && inRange(e.Day, from, to) {
			found := e
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListBefore(_ context.Context, userID uint, before time.Time, limit int) ([]models.MoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.MoodEntry{}
	for _, e := range s.entries {
		if e.UserID == userID && e.Day.Before(before) {
			out = append(out, e)
		}
	}
	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].Day.After(out[j].Day) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) FindOwned(_ context.Context, userID, id uint) (*models.MoodEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.UserID != userID {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (s *MemoryStore) Create(_ context.Context, entry *models.MoodEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.UserID == entry.UserID && e.Day.Equal(entry.Day) {
			return ErrDuplicate
		}
	}
	s.nextID++
	now := time.Now()
	entry.ID = s.nextID
	entry.CreatedAt = now
	entry.UpdatedAt = now
	s.entries[entry.ID] = *entry
	return nil
}

func (s *MemoryStore) UpdateInRange(_ context.Context, entry *models.MoodEntry, from, to time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entries[entry.ID]
	if !ok || stored.UserID != entry.UserID || !inRange(stored.Day, from, to) {
		return ErrNotFound
	}
	stored.Emojis = entry.Emojis
	stored.ImageURL = entry.ImageURL
	stored.ColorTheme = entry.ColorTheme
	stored.Note = entry.Note
	stored.UpdatedAt = time.Now()
	s.entries[entry.ID] = stored
	entry.UpdatedAt = stored.UpdatedAt
	return nil
}

func (s *MemoryStore) DeleteInRange(_ context.Context, userID, id uint, from, to time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.entries[id]
	if !ok || stored.UserID != userID || !inRange(stored.Day, from, to) {
		return ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

// Put stores entry as-is, bypassing uniqueness checks. Intended for seeding past days in tests and fixtures.
func (s *MemoryStore) Put(entry models.MoodEntry) models.MoodEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == 0 {
		s.nextID++
		entry.ID = s.nextID
	} else if entry.ID > s.nextID {
		s.nextID = entry.ID
	}
	s.entries[entry.ID] = entry
	return entry
}

// Len reports how many entries are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
