package domain

import "time"

// FeedRefresh records one attempt to refresh the ServiceTags cache.
type FeedRefresh struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Reason  string `gorm:"size:32;not null" json:"reason"`
	Attempt int    `gorm:"not null;default:1" json:"attempt"`
	Success bool   `gorm:"not null;index" json:"success"`

	// ChangeNumber and TagCount describe the published snapshot; both are
	// empty for failed attempts.
	ChangeNumber *int64 `json:"change_number"`
	TagCount     int    `gorm:"not null;default:0" json:"tag_count"`

	Error      string    `gorm:"type:text;not null;default:''" json:"error,omitempty"`
	DurationMs int64     `gorm:"not null" json:"duration_ms"`
	StartedAt  time.Time `gorm:"not null;index" json:"started_at"`
}
