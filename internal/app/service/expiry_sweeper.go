package service

import (
	"context"
	"time"

	"github.com/mirefox/wallcast/internal/app/repository"
	"go.uber.org/zap"
)

// ExpirySweeper periodically blanks the content of links whose expiry has
// passed, so controllers cannot keep driving a lapsed link.
type ExpirySweeper struct {
	logger   *zap.Logger
	links    repository.LinkRepository
	interval time.Duration
	stopChan chan struct{}
}

// NewExpirySweeper creates an expiry sweeper.
func NewExpirySweeper(logger *zap.Logger, links repository.LinkRepository) *ExpirySweeper {
	return &ExpirySweeper{
		logger:   logger,
		links:    links,
		interval: time.Minute,
		stopChan: make(chan struct{}),
	}
}

// Start begins the periodic sweep.
func (s *ExpirySweeper) Start() {
	go s.run()
}

// Stop halts the sweep loop.
func (s *ExpirySweeper) Stop() {
	close(s.stopChan)
}

func (s *ExpirySweeper) run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopChan:
			s.logger.Info("expiry sweeper stopped")
			return
		}
	}
}

func (s *ExpirySweeper) sweep() {
	ctx := context.Background()

	cleared, err := s.links.ClearExpiredContent(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error("failed to clear expired link content", zap.Error(err))
		return
	}

	if cleared > 0 {
		s.logger.Info("cleared content of expired links", zap.Int64("count", cleared))
	}
}
