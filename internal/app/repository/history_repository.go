package repository

import (
	"context"

	"github.com/mirefox/wallcast/internal/app/model"
	"gorm.io/gorm"
)

// HistoryRepository is append/query access to a link's prior content.
type HistoryRepository interface {
	Append(ctx context.Context, entry *model.HistoryEntry) error
	ListByLink(ctx context.Context, linkID uint, limit int) ([]model.HistoryEntry, error)
}

type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository returns a GORM-backed HistoryRepository.
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) Append(ctx context.Context, entry *model.HistoryEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *historyRepository) ListByLink(ctx context.Context, linkID uint, limit int) ([]model.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var entries []model.HistoryEntry
	err := r.db.WithContext(ctx).
		Where("link_id = ?", linkID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
