package repository

import (
	"context"
	"errors"

	"github.com/mirefox/wallcast/internal/app/model"
	"gorm.io/gorm"
)

// ReactionTx is the set of writes the reaction processor performs. All calls
// within one InTransaction invocation commit or roll back together, so a
// rejected reaction can never delete history without also reverting content.
type ReactionTx interface {
	SaveLink(link *model.Link) error
	DeleteHistoryByURL(linkID uint, postURL string) error
	// LatestHistoryExcluding returns the most recent entry for the link whose
	// post URL differs from postURL, or nil when none remains.
	LatestHistoryExcluding(linkID uint, postURL string) (*model.HistoryEntry, error)
	CreateNotification(n *model.Notification) error
	CreateComment(c *model.Comment) error
	CreateClimaxLog(cl *model.ClimaxLog) error
}

// ReactionStore runs reaction side effects inside a database transaction.
type ReactionStore interface {
	InTransaction(ctx context.Context, fn func(tx ReactionTx) error) error
}

type reactionStore struct {
	db *gorm.DB
}

// NewReactionStore returns a GORM-backed ReactionStore.
func NewReactionStore(db *gorm.DB) ReactionStore {
	return &reactionStore{db: db}
}

func (s *reactionStore) InTransaction(ctx context.Context, fn func(tx ReactionTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&reactionTx{db: tx})
	})
}

type reactionTx struct {
	db *gorm.DB
}

func (t *reactionTx) SaveLink(link *model.Link) error {
	return t.db.Model(&model.Link{}).
		Where("id = ?", link.ID).
		Updates(map[string]interface{}{
			"post_url":           link.PostURL,
			"post_thumbnail_url": link.PostThumbnailURL,
			"post_description":   link.PostDescription,
			"reaction":           link.Reaction,
			"reaction_note":      link.ReactionNote,
		}).Error
}

func (t *reactionTx) DeleteHistoryByURL(linkID uint, postURL string) error {
	return t.db.
		Where("link_id = ? AND post_url = ?", linkID, postURL).
		Delete(&model.HistoryEntry{}).Error
}

func (t *reactionTx) LatestHistoryExcluding(linkID uint, postURL string) (*model.HistoryEntry, error) {
	var entry model.HistoryEntry
	err := t.db.
		Where("link_id = ? AND post_url <> ?", linkID, postURL).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

func (t *reactionTx) CreateNotification(n *model.Notification) error {
	return t.db.Create(n).Error
}

func (t *reactionTx) CreateComment(c *model.Comment) error {
	return t.db.Create(c).Error
}

func (t *reactionTx) CreateClimaxLog(cl *model.ClimaxLog) error {
	return t.db.Create(cl).Error
}
