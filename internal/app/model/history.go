package model

import "time"

// HistoryEntry records content a link previously displayed. Entries are
// immutable after creation; the reaction processor deletes them in batches
// when reverting a rejected post.
type HistoryEntry struct {
	ID     uint `gorm:"primaryKey"`
	LinkID uint `gorm:"index;not null"`

	PostURL          string `gorm:"type:text;not null"`
	PostThumbnailURL string `gorm:"type:text"`
	PostDescription  string `gorm:"type:text"`
	SetByID          *uint

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}
