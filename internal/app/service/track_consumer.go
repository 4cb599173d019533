package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mirefox/wallcast/internal/app/model"
	"github.com/mirefox/wallcast/internal/app/repository"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// TrackConsumer drains the JetStream tracking stream into Postgres.
type TrackConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   repository.TrackEventRepository
}

// NewTrackConsumer creates a tracking event consumer.
func NewTrackConsumer(js nats.JetStreamContext, logger *zap.Logger, repo repository.TrackEventRepository) *TrackConsumer {
	return &TrackConsumer{js: js, logger: logger, repo: repo}
}

// Start ensures the stream and durable consumer exist, then begins consuming.
func (c *TrackConsumer) Start() error {
	_, err := c.js.StreamInfo(model.TrackStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.TrackStreamName,
			Subjects: []string{model.TrackStreamSubject},
			MaxBytes: model.TrackStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.TrackStreamName, model.TrackConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.TrackStreamName, &nats.ConsumerConfig{
			Durable:   model.TrackConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.TrackStreamSubject, model.TrackConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

func (c *TrackConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch tracking messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var event model.TrackEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				c.logger.Error("failed to unmarshal tracking event", zap.Error(err))
				msg.Nak()
				continue
			}

			if err := c.repo.Create(ctx, &event); err != nil {
				c.logger.Error("failed to store tracking event",
					zap.String("id", event.ID),
					zap.String("name", event.Name),
					zap.Error(err))
				msg.Nak()
				continue
			}

			c.logger.Debug("tracking event stored",
				zap.String("id", event.ID),
				zap.String("name", event.Name),
				zap.String("level", string(event.Level)),
			)

			msg.Ack()
		}
	}
}
