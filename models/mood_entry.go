package models

import "time"

// DefaultColorTheme is applied when an entry is created without a color.
const DefaultColorTheme = "#667eea"

// MoodEntry is one user's mood record for one calendar day.
// Day holds the start of that day in the service time zone; (UserID, Day) is unique.
type MoodEntry struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:uidx_user_day,priority:1;index:idx_user_day_desc,priority:1" json:"userId"`
	Emojis     string    `gorm:"size:255;not null" json:"emojis"`
	ImageURL   string    `gorm:"size:1024;not null;default:''" json:"imageUrl"`
	ColorTheme string    `gorm:"size:32;not null;default:'#667eea'" json:"colorTheme"`
	Note       string    `gorm:"size:1024;not null" json:"note"`
	Day        time.Time `gorm:"not null;uniqueIndex:uidx_user_day,priority:2;index:idx_user_day_desc,priority:2,sort:desc" json:"day"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// TableName pins the table name used by both the GORM store and raw queries.
func (MoodEntry) TableName() string {
	return "mood_entries"
}
