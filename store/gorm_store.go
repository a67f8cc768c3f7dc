package store

import (
	"context"
	"errors"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/cppla/moodboard/models"
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// GormStore is the EntryStore backed by a relational database through GORM.
// Times are written in UTC so SQLite's text comparison orders them correctly.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an opened GORM handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindInRange(ctx context.Context, userID uint, from, to time.Time) (*models.MoodEntry, error) {
	var entry models.MoodEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND day >= ? AND day < ?", userID, from.UTC(), to.UTC()).
		Order("day ASC").
		First(&entry).Error
	if err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (s *GormStore) ListBefore(ctx context.Context, userID uint, before time.Time, limit int) ([]models.MoodEntry, error) {
	entries := []models.MoodEntry{}
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND day < ?", userID, before.UTC()).
		Order("day DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, translate(err)
	}
	return entries, nil
}

func (s *GormStore) FindOwned(ctx context.Context, userID, id uint) (*models.MoodEntry, error) {
	var entry models.MoodEntry
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&entry).Error; err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

func (s *GormStore) Create(ctx context.Context, entry *models.MoodEntry) error {
	entry.Day = entry.Day.UTC()
	return translate(s.db.WithContext(ctx).Create(entry).Error)
}

func (s *GormStore) UpdateInRange(ctx context.Context, entry *models.MoodEntry, from, to time.Time) error {
	entry.UpdatedAt = time.Now()
	res := s.db.WithContext(ctx).
		Model(&models.MoodEntry{}).
		Where("id = ? AND user_id = ? AND day >= ? AND day < ?", entry.ID, entry.UserID, from.UTC(), to.UTC()).
		Updates(map[string]interface{}{
			"emojis":      entry.Emojis,
			"image_url":   entry.ImageURL,
			"color_theme": entry.ColorTheme,
			"note":        entry.Note,
			"updated_at":  entry.UpdatedAt,
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) DeleteInRange(ctx context.Context, userID, id uint, from, to time.Time) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND day >= ? AND day < ?", id, userID, from.UTC(), to.UTC()).
		Delete(&models.MoodEntry{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// translate maps driver errors onto the store sentinels and passes others through.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case IsDuplicateKey(err):
		return ErrDuplicate
	default:
		return err
	}
}

// IsDuplicateKey reports whether err is a unique constraint violation from any supported driver.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
		return true
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
