package repository

import (
	"context"

	"github.com/mirefox/wallcast/internal/app/model"
	"gorm.io/gorm"
)

// TrackEventRepository persists analytics events drained from JetStream.
type TrackEventRepository interface {
	Create(ctx context.Context, event *model.TrackEvent) error
}

type trackEventRepository struct {
	db *gorm.DB
}

// NewTrackEventRepository returns a GORM-backed TrackEventRepository.
func NewTrackEventRepository(db *gorm.DB) TrackEventRepository {
	return &trackEventRepository{db: db}
}

func (r *trackEventRepository) Create(ctx context.Context, event *model.TrackEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}
