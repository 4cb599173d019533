package model

import "time"

// TrackLevel grades a tracking event.
type TrackLevel string

const (
	TrackRegular   TrackLevel = "regular"
	TrackError     TrackLevel = "error"
	TrackNefarious TrackLevel = "nefarious"
	TrackVisit     TrackLevel = "visit"
)

// TrackEvent is an analytics event published to JetStream and persisted by
// the track consumer. Details is a flattened JSON object.
type TrackEvent struct {
	ID        string     `json:"id" gorm:"primaryKey;size:36"`
	Name      string     `json:"name" gorm:"size:128;not null;index"`
	Level     TrackLevel `json:"level" gorm:"size:16;not null"`
	Details   string     `json:"details" gorm:"type:text"`
	LinkID    *uint      `json:"link_id,omitempty" gorm:"index"`
	OwnerID   *uint      `json:"owner_id,omitempty"`
	UserID    *uint      `json:"user_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

const (
	TrackStreamName     = "TRACKING"
	TrackStreamSubject  = "tracking.events"
	TrackConsumerName   = "track-logger"
	TrackStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
