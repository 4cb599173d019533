package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Reaction is the viewer's judgment on the content currently shown by a link.
type Reaction string

const (
	ReactionNone     Reaction = ""
	ReactionAccepted Reaction = "accepted"
	ReactionRejected Reaction = "rejected"
	ReactionClimaxed Reaction = "climaxed"
)

// Valid reports whether r is one of the known reaction kinds.
func (r Reaction) Valid() bool {
	switch r {
	case ReactionNone, ReactionAccepted, ReactionRejected, ReactionClimaxed:
		return true
	}
	return false
}

// Capability names a permission attached to a link. Presence-only, no value.
type Capability string

const (
	// CapabilityShowVideos permits motion content (webm/mp4/gif) on the link.
	CapabilityShowVideos Capability = "can_show_videos"
	// CapabilityKinkAligned biases searches toward the owner's kink tags.
	CapabilityKinkAligned Capability = "is_kink_aligned"
)

// Valid reports whether c is one of the enumerated capability names.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityShowVideos, CapabilityKinkAligned:
		return true
	}
	return false
}

// LinkCapability is a capability row owned by exactly one link.
type LinkCapability struct {
	ID     uint       `gorm:"primaryKey"`
	LinkID uint       `gorm:"index;not null"`
	Name   Capability `gorm:"size:32;not null"`
}

// KinkTag is a named preference attached to a user.
type KinkTag struct {
	ID     uint   `gorm:"primaryKey"`
	UserID uint   `gorm:"index;not null"`
	Name   string `gorm:"size:64;not null"`
}

// User carries the minimum account data the core needs: a display name and
// the kink tags consulted during query compilation.
type User struct {
	ID       uint      `gorm:"primaryKey"`
	Username string    `gorm:"size:64;uniqueIndex;not null"`
	Kinks    []KinkTag `gorm:"foreignKey:UserID"`
}

// Link is one controllable content-display slot with its filtering rules.
type Link struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"index;not null"`
	User   User
	// SetByID is the account currently controlling the link, nil when unclaimed.
	SetByID *uint

	PostURL          string `gorm:"type:text"`
	PostThumbnailURL string `gorm:"type:text"`
	PostDescription  string `gorm:"type:text"`

	Reaction     Reaction `gorm:"size:16;not null;default:''"`
	ReactionNote string   `gorm:"type:text"`

	Terms     string `gorm:"type:text"`
	Blacklist string `gorm:"type:text"`
	Theme     string `gorm:"size:128"`
	MinScore  int    `gorm:"not null;default:0"`

	Capabilities []LinkCapability `gorm:"foreignKey:LinkID"`

	LastPing            time.Time
	LastPingUserAgent   string `gorm:"type:text"`
	LiveClientStartedAt *time.Time

	Expires      *time.Time `gorm:"index"`
	NeverExpires bool       `gorm:"not null;default:false"`
	FriendsOnly  bool       `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// HasCapability reports whether the link carries the named capability.
func (l *Link) HasCapability(name Capability) bool {
	for _, c := range l.Capabilities {
		if c.Name == name {
			return true
		}
	}
	return false
}

// KinkNames returns the owner's kink tag names in declaration order.
func (l *Link) KinkNames() []string {
	names := make([]string, 0, len(l.User.Kinks))
	for _, k := range l.User.Kinks {
		names = append(names, k.Name)
	}
	return names
}

const (
	pingOnlineWindow       = time.Minute
	liveClientOnlineWindow = 7 * 24 * time.Hour
)

// Online reports whether the link has a connected client: either a ping
// within the last minute or a persistent client started within seven days.
func (l *Link) Online(now time.Time) bool {
	if now.Sub(l.LastPing) < pingOnlineWindow {
		return true
	}
	return l.LiveClientStartedAt != nil && now.Sub(*l.LiveClientStartedAt) < liveClientOnlineWindow
}

// Expired reports whether the link's expiry has passed.
func (l *Link) Expired(now time.Time) bool {
	if l.NeverExpires || l.Expires == nil {
		return false
	}
	return now.After(*l.Expires)
}

var (
	ErrExpiryRequired = errors.New("expires is required unless never_expires is set")
	ErrThemeMultiTag  = errors.New("theme must be only 1 tag")
	ErrThemeOperator  = errors.New("theme must not contain filter or sort tags, use the minimum score setting instead")
)

// Validate enforces the link invariants before persistence.
func (l *Link) Validate() error {
	if !l.NeverExpires && l.Expires == nil {
		return ErrExpiryRequired
	}
	if strings.ContainsAny(l.Theme, " \t\n") {
		return ErrThemeMultiTag
	}
	if strings.Contains(l.Theme, ":") {
		return ErrThemeOperator
	}
	if l.MinScore < 0 || l.MinScore > 300 {
		return fmt.Errorf("min_score must be between 0 and 300, got %d", l.MinScore)
	}
	if !l.Reaction.Valid() {
		return fmt.Errorf("unknown reaction %q", l.Reaction)
	}
	for _, c := range l.Capabilities {
		if !c.Name.Valid() {
			return fmt.Errorf("unknown capability %q", c.Name)
		}
	}
	return nil
}
