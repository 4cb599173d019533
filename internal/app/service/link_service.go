package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mirefox/wallcast/internal/app/model"
	"github.com/mirefox/wallcast/internal/app/repository"
	"go.uber.org/zap"
)

// LinkService defines behaviour-level operations on links.
type LinkService interface {
	GetLink(ctx context.Context, id uint) (*model.Link, error)
	UpdateLink(ctx context.Context, id uint, input UpdateLinkInput) (*model.Link, error)
	SetContent(ctx context.Context, id uint, input SetContentInput) (*model.Link, error)
	Ping(ctx context.Context, id uint, input PingInput) (*model.Link, error)
}

type linkService struct {
	links       repository.LinkRepository
	history     repository.HistoryRepository
	broadcaster *Broadcaster
	logger      *zap.Logger
}

// NewLinkService returns a service implementation backed by the given
// repositories. broadcaster may be nil in tests.
func NewLinkService(links repository.LinkRepository, history repository.HistoryRepository, broadcaster *Broadcaster, logger *zap.Logger) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		links:       links,
		history:     history,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// UpdateLinkInput captures fields that can be changed on an existing link.
type UpdateLinkInput struct {
	Terms               *string
	Blacklist           *string
	Theme               *string
	MinScore            *int
	Expires             *time.Time
	NeverExpires        *bool
	FriendsOnly         *bool
	LiveClientStartedAt *time.Time
	ReactionNote        *string
	Capabilities        []model.Capability
}

// SetContentInput carries a new post chosen by a controller.
type SetContentInput struct {
	PostURL          string
	PostThumbnailURL string
	PostDescription  string
	SetByID          *uint
}

// PingInput carries the client identification headers recorded on presence
// updates.
type PingInput struct {
	UserAgent             string
	JoihowClient          string
	WallpaperEngineClient string
}

func (s *linkService) GetLink(ctx context.Context, id uint) (*model.Link, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (s *linkService) UpdateLink(ctx context.Context, id uint, input UpdateLinkInput) (*model.Link, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}
	before := *link

	if input.Terms != nil {
		link.Terms = *input.Terms
	}
	if input.Blacklist != nil {
		link.Blacklist = *input.Blacklist
	}
	if input.Theme != nil {
		link.Theme = *input.Theme
	}
	if input.MinScore != nil {
		link.MinScore = *input.MinScore
	}
	if input.Expires != nil {
		link.Expires = input.Expires
	}
	if input.NeverExpires != nil {
		link.NeverExpires = *input.NeverExpires
	}
	if input.FriendsOnly != nil {
		link.FriendsOnly = *input.FriendsOnly
	}
	if input.LiveClientStartedAt != nil {
		link.LiveClientStartedAt = input.LiveClientStartedAt
	}
	if input.ReactionNote != nil {
		link.ReactionNote = *input.ReactionNote
	}

	if err := link.Validate(); err != nil {
		return nil, fmt.Errorf("validate link: %w", err)
	}

	if err := s.links.Update(ctx, link); err != nil {
		return nil, fmt.Errorf("update link: %w", err)
	}
	if input.Capabilities != nil {
		if err := s.links.SetCapabilities(ctx, link, input.Capabilities); err != nil {
			return nil, fmt.Errorf("update link capabilities: %w", err)
		}
	}

	s.broadcastIfChanged(ctx, &before, link)
	return link, nil
}

func (s *linkService) SetContent(ctx context.Context, id uint, input SetContentInput) (*model.Link, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}
	before := *link

	// The outgoing post becomes a history entry the reaction machine can
	// revert to later.
	if link.PostURL != "" {
		if err := s.history.Append(ctx, &model.HistoryEntry{
			LinkID:           link.ID,
			PostURL:          link.PostURL,
			PostThumbnailURL: link.PostThumbnailURL,
			PostDescription:  link.PostDescription,
			SetByID:          link.SetByID,
		}); err != nil {
			return nil, fmt.Errorf("append history: %w", err)
		}
	}

	link.PostURL = input.PostURL
	link.PostThumbnailURL = input.PostThumbnailURL
	link.PostDescription = input.PostDescription
	link.SetByID = input.SetByID
	link.Reaction = model.ReactionNone
	link.ReactionNote = ""

	if err := s.links.Update(ctx, link); err != nil {
		return nil, fmt.Errorf("set content: %w", err)
	}

	s.broadcastIfChanged(ctx, &before, link)
	return link, nil
}

func (s *linkService) Ping(ctx context.Context, id uint, input PingInput) (*model.Link, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load link: %w", err)
	}
	before := *link

	link.LastPing = time.Now().UTC()
	link.LastPingUserAgent = composeUserAgent(input)

	if err := s.links.Update(ctx, link); err != nil {
		return nil, fmt.Errorf("record ping: %w", err)
	}

	s.broadcastIfChanged(ctx, &before, link)
	return link, nil
}

// composeUserAgent folds the client identification headers into the stored
// user agent string.
func composeUserAgent(input PingInput) string {
	parts := make([]string, 0, 3)
	if input.UserAgent != "" {
		parts = append(parts, input.UserAgent)
	}
	if input.JoihowClient != "" {
		parts = append(parts, input.JoihowClient)
	}
	if input.WallpaperEngineClient != "" {
		parts = append(parts, "Wallpaper-Engine-Client/"+input.WallpaperEngineClient)
	}
	return strings.Join(parts, " ")
}

// broadcastIfChanged publishes the link when a triggering field changed.
// Broadcast delivery is best effort and never fails the mutation.
func (s *linkService) broadcastIfChanged(ctx context.Context, before, after *model.Link) {
	if s.broadcaster == nil {
		return
	}
	changed := ChangedBroadcastFields(before, after)
	if len(changed) == 0 {
		return
	}
	if err := s.broadcaster.BroadcastLink(ctx, after); err != nil {
		s.logger.Error("link broadcast failed",
			zap.Uint("link_id", after.ID),
			zap.Strings("changed", changed),
			zap.Error(err),
		)
	}
}
