// Package services holds the daily mood record rules: one entry per user per
// calendar day, and only today's entry may change.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cppla/moodboard/metrics"
	"github.com/cppla/moodboard/models"
	"github.com/cppla/moodboard/store"
	"github.com/cppla/moodboard/utils"
)

const (
	// HistoryLimit caps how many past entries a dashboard returns.
	HistoryLimit = 30
	// MaxNoteLength is counted in characters, not bytes.
	MaxNoteLength   = 200
	maxEmojisLength = 64
	maxColorLength  = 32
	maxURLLength    = 1024
)

// EntryInput is the payload for creating today's entry.
type EntryInput struct {
	Emojis     string `json:"emojis"`
	ImageURL   string `json:"imageUrl"`
	ColorTheme string `json:"colorTheme"`
	Note       string `json:"note"`
}

// EntryPatch carries the fields to change; nil fields are left untouched.
type EntryPatch struct {
	Emojis     *string `json:"emojis"`
	ImageURL   *string `json:"imageUrl"`
	ColorTheme *string `json:"colorTheme"`
	Note       *string `json:"note"`
}

// Dashboard is today's entry (nil when absent) plus past entries, newest first.
type Dashboard struct {
	Today   *models.MoodEntry  `json:"today"`
	History []models.MoodEntry `json:"history"`
}

// MoodService applies the daily record rules on top of an EntryStore.
type MoodService struct {
	store  store.EntryStore
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a MoodService.
type Option func(*MoodService)

// WithClock overrides the wall clock used to decide which day is today.
func WithClock(now func() time.Time) Option {
	return func(s *MoodService) { s.now = now }
}

// WithLocation sets the time zone calendar days are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *MoodService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger used for store failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *MoodService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewMoodService creates a service over st. Defaults: time.Now, time.Local, no-op logger.
func NewMoodService(st store.EntryStore, opts ...Option) *MoodService {
	s := &MoodService{
		store:  st,
		loc:    time.Local,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today returns the current day interval.
func (s *MoodService) Today() (time.Time, time.Time) {
	return DayBoundary(s.now(), s.loc)
}

// DayKey identifies the current calendar day, e.g. "2024-05-12".
func (s *MoodService) DayKey() string {
	start, _ := s.Today()
	return start.Format("2006-01-02")
}

// GetTodayAndHistory returns the owner's entry for today and up to HistoryLimit earlier entries.
func (s *MoodService) GetTodayAndHistory(ctx context.Context, ownerID uint) (*Dashboard, error) {
	start, next := s.Today()

	dash := &Dashboard{History: []models.MoodEntry{}}
	today, err := s.store.FindInRange(ctx, ownerID, start, next)
	switch {
	case err == nil:
		dash.Today = s.present(today)
	case !errors.Is(err, store.ErrNotFound):
		return nil, s.unavailable("list", err, zap.Uint("user_id", ownerID))
	}

	past, err := s.store.ListBefore(ctx, ownerID, start, HistoryLimit)
	if err != nil {
		return nil, s.unavailable("list", err, zap.Uint("user_id", ownerID))
	}
	for i := range past {
		dash.History = append(dash.History, *s.present(&past[i]))
	}

	metrics.RecordOperation("list", "ok")
	return dash, nil
}

// Get returns one of the owner's entries regardless of its day.
func (s *MoodService) Get(ctx context.Context, ownerID, entryID uint) (*models.MoodEntry, error) {
	entry, err := s.store.FindOwned(ctx, ownerID, entryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RecordOperation("get", "not_found")
			return nil, ErrNotFound
		}
		return nil, s.unavailable("get", err, zap.Uint("user_id", ownerID), zap.Uint("entry_id", entryID))
	}
	metrics.RecordOperation("get", "ok")
	return s.present(entry), nil
}

// CreateToday stores the owner's entry for today. The existence check is
// optimistic; the store's unique (user, day) index decides races, and both
// paths report ErrDuplicateEntry.
func (s *MoodService) CreateToday(ctx context.Context, ownerID uint, in EntryInput) (*models.MoodEntry, error) {
	entry := &models.MoodEntry{
		Emojis:     strings.TrimSpace(in.Emojis),
		ImageURL:   strings.TrimSpace(in.ImageURL),
		ColorTheme: colorOrDefault(in.ColorTheme),
		Note:       strings.TrimSpace(in.Note),
	}
	if err := validate(entry); err != nil {
		metrics.RecordOperation("create", "invalid")
		return nil, err
	}

	start, next := s.Today()
	_, err := s.store.FindInRange(ctx, ownerID, start, next)
	switch {
	case err == nil:
		metrics.RecordOperation("create", "duplicate")
		return nil, ErrDuplicateEntry
	case !errors.Is(err, store.ErrNotFound):
		return nil, s.unavailable("create", err, zap.Uint("user_id", ownerID))
	}

	entry.UserID = ownerID
	entry.Day = start
	if err := s.store.Create(ctx, entry); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			metrics.RecordOperation("create", "duplicate")
			return nil, ErrDuplicateEntry
		}
		return nil, s.unavailable("create", err, zap.Uint("user_id", ownerID))
	}

	metrics.RecordOperation("create", "ok")
	return s.present(entry), nil
}

// UpdateToday applies patch to the owner's entry if it is today's.
func (s *MoodService) UpdateToday(ctx context.Context, ownerID, entryID uint, patch EntryPatch) (*models.MoodEntry, error) {
	start, next := s.Today()
	entry, err := s.loadMutable(ctx, "update", ownerID, entryID, start, next)
	if err != nil {
		return nil, err
	}

	// only supplied fields are cleaned; stored values are kept byte for byte
	if patch.Emojis != nil {
		entry.Emojis = strings.TrimSpace(*patch.Emojis)
	}
	if patch.ImageURL != nil {
		entry.ImageURL = strings.TrimSpace(*patch.ImageURL)
	}
	if patch.ColorTheme != nil {
		entry.ColorTheme = colorOrDefault(*patch.ColorTheme)
	}
	if patch.Note != nil {
		entry.Note = strings.TrimSpace(*patch.Note)
	}
	if err := validate(entry); err != nil {
		metrics.RecordOperation("update", "invalid")
		return nil, err
	}

	if err := s.store.UpdateInRange(ctx, entry, start, next); err != nil {
		return nil, s.lostWindow(ctx, "update", err, ownerID, entryID)
	}

	metrics.RecordOperation("update", "ok")
	return s.present(entry), nil
}

// DeleteToday removes the owner's entry if it is today's.
func (s *MoodService) DeleteToday(ctx context.Context, ownerID, entryID uint) error {
	start, next := s.Today()
	if _, err := s.loadMutable(ctx, "delete", ownerID, entryID, start, next); err != nil {
		return err
	}
	if err := s.store.DeleteInRange(ctx, ownerID, entryID, start, next); err != nil {
		return s.lostWindow(ctx, "delete", err, ownerID, entryID)
	}
	metrics.RecordOperation("delete", "ok")
	return nil
}

// loadMutable fetches the owned entry and checks it is inside [start, next).
func (s *MoodService) loadMutable(ctx context.Context, op string, ownerID, entryID uint, start, next time.Time) (*models.MoodEntry, error) {
	entry, err := s.store.FindOwned(ctx, ownerID, entryID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			metrics.RecordOperation(op, "not_found")
			return nil, ErrNotFound
		}
		return nil, s.unavailable(op, err, zap.Uint("user_id", ownerID), zap.Uint("entry_id", entryID))
	}
	if !within(entry.Day, start, next) {
		metrics.RecordOperation(op, "out_of_window")
		return nil, ErrOutOfWindow
	}
	return entry, nil
}

// lostWindow classifies a failed conditional write. The row matched at load
// time, so a miss now means it was deleted or the day rolled over in between.
func (s *MoodService) lostWindow(ctx context.Context, op string, err error, ownerID, entryID uint) error {
	if !errors.Is(err, store.ErrNotFound) {
		return s.unavailable(op, err, zap.Uint("user_id", ownerID), zap.Uint("entry_id", entryID))
	}
	if _, findErr := s.store.FindOwned(ctx, ownerID, entryID); findErr == nil {
		metrics.RecordOperation(op, "out_of_window")
		return ErrOutOfWindow
	}
	metrics.RecordOperation(op, "not_found")
	return ErrNotFound
}

func (s *MoodService) unavailable(op string, err error, fields ...zap.Field) error {
	metrics.RecordOperation(op, "error")
	s.logger.Error("record store failure", append(fields, zap.String("op", op), zap.Error(err))...)
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

// present returns a copy of entry with Day expressed in the service location.
func (s *MoodService) present(entry *models.MoodEntry) *models.MoodEntry {
	out := *entry
	out.Day = out.Day.In(s.loc)
	return &out
}

func colorOrDefault(color string) string {
	if color = strings.TrimSpace(color); color == "" {
		return models.DefaultColorTheme
	}
	return color
}

// validate checks the user-editable fields of entry without modifying them.
// Notes are plain text: anything that parses as an HTML tag is rejected rather than dropped.
func validate(entry *models.MoodEntry) error {
	if entry.Emojis == "" {
		return invalid("emojis", "emojis are required")
	}
	if utf8.RuneCountInString(entry.Emojis) > maxEmojisLength {
		return invalid("emojis", fmt.Sprintf("emojis must be %d characters or less", maxEmojisLength))
	}
	if entry.Note == "" {
		return invalid("note", "note is required")
	}
	if utils.ContainsMarkup(entry.Note) {
		return invalid("note", "note must be plain text without HTML tags")
	}
	if utf8.RuneCountInString(entry.Note) > MaxNoteLength {
		return invalid("note", fmt.Sprintf("note must be %d characters or less", MaxNoteLength))
	}
	if entry.ImageURL != "" && !validImageURL(entry.ImageURL) {
		return invalid("imageUrl", "imageUrl must be a valid http(s) URL")
	}
	if utf8.RuneCountInString(entry.ColorTheme) > maxColorLength {
		return invalid("colorTheme", "colorTheme is too long")
	}
	return nil
}

func validImageURL(raw string) bool {
	if len(raw) > maxURLLength {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
