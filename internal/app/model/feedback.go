package model

import "time"

// NotificationKind classifies what produced a notification.
type NotificationKind string

const (
	NotificationPostResponse   NotificationKind = "post_response"
	NotificationSurrenderEvent NotificationKind = "surrender_event"
)

// Notification is a best-effort message shown to a user on their next visit.
type Notification struct {
	ID        uint             `gorm:"primaryKey"`
	UserID    uint             `gorm:"index;not null"`
	Kind      NotificationKind `gorm:"size:32;not null"`
	Text      string           `gorm:"type:text;not null"`
	LinkRef   string           `gorm:"size:255"`
	CreatedAt time.Time        `gorm:"autoCreateTime"`
}

// Comment is a line in a link's chat sidebar. The reaction processor writes
// short-form entries here so the conversation keeps a record of reactions.
type Comment struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	LinkID    uint      `gorm:"index;not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// ClimaxLog is the count-increment record written when a viewer reacts with
// a climax: attributed to the link owner and credited to the setter.
type ClimaxLog struct {
	ID         uint      `gorm:"primaryKey"`
	UserID     uint      `gorm:"index;not null"`
	CausedByID *uint     `gorm:"index"`
	Rating     int       `gorm:"not null;default:3"`
	Ruined     bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}
