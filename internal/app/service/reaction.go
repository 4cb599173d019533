package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/mirefox/wallcast/internal/app/model"
	"github.com/mirefox/wallcast/internal/app/repository"
	metrics "github.com/mirefox/wallcast/internal/infra/prometheus"
	"go.uber.org/zap"
)

// ReactionService applies a viewer's reaction to a link: notification to the
// setter, history-log comments, climax accounting, and content reversion on
// rejection. All writes for one reaction commit atomically, and reactions on
// the same link are serialized so two concurrent rejections cannot both
// revert from a stale history snapshot.
type ReactionService struct {
	store  repository.ReactionStore
	logger *zap.Logger

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

// NewReactionService builds a ReactionService.
func NewReactionService(store repository.ReactionStore, logger *zap.Logger) *ReactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReactionService{
		store:  store,
		logger: logger,
		locks:  make(map[uint]*sync.Mutex),
	}
}

func (s *ReactionService) linkLock(id uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// Process runs the reaction state machine for one event. The link must be
// loaded with its owner; the returned link carries any content reversion.
// Persistence of the reaction itself happens here; broadcasting the changed
// link is the caller's job.
func (s *ReactionService) Process(ctx context.Context, link *model.Link, kind model.Reaction, note string) (*model.Link, error) {
	if kind == model.ReactionNone || !kind.Valid() {
		return nil, fmt.Errorf("reaction: unknown kind %q", kind)
	}

	lock := s.linkLock(link.ID)
	lock.Lock()
	defer lock.Unlock()

	link.Reaction = kind
	link.ReactionNote = note

	err := s.store.InTransaction(ctx, func(tx repository.ReactionTx) error {
		if err := s.notifySetter(tx, link); err != nil {
			return err
		}
		if err := s.logReaction(tx, link); err != nil {
			return err
		}
		if kind == model.ReactionClimaxed {
			if err := tx.CreateClimaxLog(&model.ClimaxLog{
				UserID:     link.UserID,
				CausedByID: link.SetByID,
				Rating:     3,
				Ruined:     false,
			}); err != nil {
				return err
			}
		}
		if kind == model.ReactionRejected {
			if err := s.revertContent(tx, link); err != nil {
				return err
			}
		}
		return tx.SaveLink(link)
	})
	if err != nil {
		return nil, fmt.Errorf("reaction: process %s on link %d: %w", kind, link.ID, err)
	}

	metrics.ReactionsProcessed.WithLabelValues(string(kind)).Inc()
	s.logger.Info("reaction processed",
		zap.Uint("link_id", link.ID),
		zap.String("kind", string(kind)),
	)

	return link, nil
}

func (s *ReactionService) notifySetter(tx repository.ReactionTx, link *model.Link) error {
	if link.SetByID == nil {
		return nil
	}

	var text string
	switch link.Reaction {
	case model.ReactionAccepted:
		text = fmt.Sprintf("%s loved your post!", link.User.Username)
	case model.ReactionRejected:
		text = fmt.Sprintf("%s did not like your post.", link.User.Username)
	case model.ReactionClimaxed:
		text = fmt.Sprintf("%s came to your post!", link.User.Username)
	}
	if link.ReactionNote != "" {
		text = fmt.Sprintf("%s %q", text, link.ReactionNote)
	}

	return tx.CreateNotification(&model.Notification{
		UserID:  *link.SetByID,
		Kind:    model.NotificationPostResponse,
		Text:    text,
		LinkRef: fmt.Sprintf("/links/%d", link.ID),
	})
}

func (s *ReactionService) logReaction(tx repository.ReactionTx, link *model.Link) error {
	var summary string
	switch link.Reaction {
	case model.ReactionAccepted:
		summary = fmt.Sprintf("> loved it! %s", link.PostURL)
	case model.ReactionRejected:
		summary = fmt.Sprintf("> hated it. %s", link.PostURL)
	case model.ReactionClimaxed:
		summary = fmt.Sprintf("> came to it! %s", link.PostURL)
	}

	if err := tx.CreateComment(&model.Comment{
		UserID:  link.UserID,
		LinkID:  link.ID,
		Content: summary,
	}); err != nil {
		return err
	}

	if link.ReactionNote == "" {
		return nil
	}
	return tx.CreateComment(&model.Comment{
		UserID:  link.UserID,
		LinkID:  link.ID,
		Content: link.ReactionNote,
	})
}

// revertContent drops history entries duplicating the rejected post, then
// falls back to the most recent remaining entry, or clears the link when the
// history is exhausted.
func (s *ReactionService) revertContent(tx repository.ReactionTx, link *model.Link) error {
	if err := tx.DeleteHistoryByURL(link.ID, link.PostURL); err != nil {
		return err
	}

	previous, err := tx.LatestHistoryExcluding(link.ID, link.PostURL)
	if err != nil {
		return err
	}

	if previous != nil {
		link.PostURL = previous.PostURL
		link.PostThumbnailURL = previous.PostThumbnailURL
	} else {
		link.PostURL = ""
		link.PostThumbnailURL = ""
	}
	return nil
}
