// Package store persists mood entries.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/cppla/moodboard/models"
)

var (
	// ErrNotFound is returned when no entry matches the owner/id (and window) predicate.
	ErrNotFound = errors.New("mood entry not found")
	// ErrDuplicate is returned when an insert violates the unique (user_id, day) index.
	ErrDuplicate = errors.New("mood entry already exists for this day")
)

// EntryStore stores mood entries. Every lookup that takes an id also takes the owner,
// so ownership is part of the query predicate.
type EntryStore interface {
	// FindInRange returns the owner's entry whose day falls in [from, to).
	FindInRange(ctx context.Context, userID uint, from, to time.Time) (*models.MoodEntry, error)
	// ListBefore returns up to limit entries with day < before, newest first.
	ListBefore(ctx context.Context, userID uint, before time.Time, limit int) ([]models.MoodEntry, error)
	// FindOwned returns the entry with the given id if it belongs to userID.
	FindOwned(ctx context.Context, userID, id uint) (*models.MoodEntry, error)
	// Create inserts entry and fills its ID and timestamps.
	Create(ctx context.Context, entry *models.MoodEntry) error
	// UpdateInRange writes the mutable fields of entry provided the stored row still
	// belongs to entry.UserID and its day is in [from, to).
	UpdateInRange(ctx context.Context, entry *models.MoodEntry, from, to time.Time) error
	// DeleteInRange removes the owner's entry provided its day is in [from, to).
	DeleteInRange(ctx context.Context, userID, id uint, from, to time.Time) error
}
