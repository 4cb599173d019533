package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mirefox/wallcast/internal/app/model"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// TrackContext carries the request-scoped identifiers attached to every
// tracking event. Passed explicitly, never read from ambient state.
type TrackContext struct {
	Action  string
	LinkID  *uint
	OwnerID *uint
	UserID  *uint
}

// Tracker publishes analytics events to the JetStream tracking stream.
// Delivery is fire-and-forget: failures are logged, never propagated.
type Tracker struct {
	js     nats.JetStreamContext
	logger *zap.Logger
}

// NewTracker creates a tracking event publisher.
func NewTracker(js nats.JetStreamContext, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{js: js, logger: logger}
}

// Track publishes one event.
func (t *Tracker) Track(ctx context.Context, level model.TrackLevel, name string, tc TrackContext, details map[string]string) {
	if t == nil || t.js == nil {
		return
	}

	all := make(map[string]string, len(details)+1)
	for k, v := range details {
		all[k] = v
	}
	if tc.Action != "" {
		all["_action"] = tc.Action
	}

	encoded, err := json.Marshal(all)
	if err != nil {
		t.logger.Error("failed to encode tracking details", zap.Error(err))
		return
	}

	event := model.TrackEvent{
		ID:        uuid.New().String(),
		Name:      name,
		Level:     level,
		Details:   string(encoded),
		LinkID:    tc.LinkID,
		OwnerID:   tc.OwnerID,
		UserID:    tc.UserID,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		t.logger.Error("failed to encode tracking event", zap.Error(err))
		return
	}

	if _, err := t.js.Publish(model.TrackStreamSubject, data); err != nil {
		t.logger.Error("failed to publish tracking event",
			zap.String("name", name), zap.Error(err))
	}
}

// Error implements search.EventSink so the posts client can report upstream
// failures through the tracking stream.
func (t *Tracker) Error(ctx context.Context, name string, details map[string]string) {
	t.Track(ctx, model.TrackError, name, TrackContext{}, details)
}
