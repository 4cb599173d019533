package repository

import (
	"context"
	"errors"
	"time"

	"github.com/mirefox/wallcast/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that the requested link does not exist.
	ErrLinkNotFound = errors.New("link not found")
)

// LinkRepository defines the data access contract for links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.Link) error
	// GetByID loads a link with its capabilities and the owner's kinks, the
	// full context query compilation needs.
	GetByID(ctx context.Context, id uint) (*model.Link, error)
	Update(ctx context.Context, link *model.Link) error
	SetCapabilities(ctx context.Context, link *model.Link, caps []model.Capability) error
	// ClearExpiredContent blanks the displayed content of links whose expiry
	// has passed. Returns how many links were cleared.
	ClearExpiredContent(ctx context.Context, now time.Time) (int64, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.Link) error {
	return r.db.WithContext(ctx).Create(link).Error
}

func (r *linkRepository) GetByID(ctx context.Context, id uint) (*model.Link, error) {
	var link model.Link
	err := r.db.WithContext(ctx).
		Preload("Capabilities").
		Preload("User.Kinks").
		Preload("User").
		First(&link, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) Update(ctx context.Context, link *model.Link) error {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("id = ?", link.ID).
		Updates(map[string]interface{}{
			"set_by_id":              link.SetByID,
			"post_url":               link.PostURL,
			"post_thumbnail_url":     link.PostThumbnailURL,
			"post_description":       link.PostDescription,
			"reaction":               link.Reaction,
			"reaction_note":          link.ReactionNote,
			"terms":                  link.Terms,
			"blacklist":              link.Blacklist,
			"theme":                  link.Theme,
			"min_score":              link.MinScore,
			"last_ping":              link.LastPing,
			"last_ping_user_agent":   link.LastPingUserAgent,
			"live_client_started_at": link.LiveClientStartedAt,
			"expires":                link.Expires,
			"never_expires":          link.NeverExpires,
			"friends_only":           link.FriendsOnly,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrLinkNotFound
	}
	return r.db.WithContext(ctx).First(link, link.ID).Error
}

func (r *linkRepository) SetCapabilities(ctx context.Context, link *model.Link, caps []model.Capability) error {
	rows := make([]model.LinkCapability, 0, len(caps))
	for _, name := range caps {
		rows = append(rows, model.LinkCapability{LinkID: link.ID, Name: name})
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("link_id = ?", link.ID).Delete(&model.LinkCapability{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return err
	}

	link.Capabilities = rows
	return nil
}

func (r *linkRepository) ClearExpiredContent(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Link{}).
		Where("never_expires = ? AND expires IS NOT NULL AND expires < ? AND post_url <> ''", false, now).
		Updates(map[string]interface{}{
			"post_url":           "",
			"post_thumbnail_url": "",
			"post_description":   "",
		})
	return result.RowsAffected, result.Error
}
