package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mirefox/wallcast/internal/app/model"
	"github.com/mirefox/wallcast/internal/app/repository"
	metrics "github.com/mirefox/wallcast/internal/infra/prometheus"
	"go.uber.org/zap"
)

// LinkBroadcast is the payload pushed to a link's channel whenever a
// broadcast-triggering field changes.
type LinkBroadcast struct {
	Success          bool       `json:"success"`
	ID               uint       `json:"id"`
	Expires          *time.Time `json:"expires"`
	Terms            string     `json:"terms"`
	Blacklist        string     `json:"blacklist"`
	PostURL          string     `json:"post_url"`
	PostThumbnailURL string     `json:"post_thumbnail_url"`
	PostDescription  string     `json:"post_description"`
	ResponseType     string     `json:"response_type"`
	ResponseText     string     `json:"response_text"`
	SetBy            *string    `json:"set_by"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// BroadcastFailure replaces the payload when assembly fails. The triggering
// mutation is not rolled back.
type BroadcastFailure struct {
	Success bool   `json:"success"`
	Why     string `json:"why"`
}

// ChangedBroadcastFields compares the broadcast-triggering fields of two
// link snapshots and returns the names that differ. Pure function; the
// caller publishes when the result is non-empty.
func ChangedBroadcastFields(before, after *model.Link) []string {
	var changed []string
	add := func(name string, differs bool) {
		if differs {
			changed = append(changed, name)
		}
	}

	add("blacklist", before.Blacklist != after.Blacklist)
	add("terms", before.Terms != after.Terms)
	add("theme", before.Theme != after.Theme)
	add("response_text", before.ReactionNote != after.ReactionNote)
	add("last_ping_user_agent", before.LastPingUserAgent != after.LastPingUserAgent)
	add("live_client_started_at", !timePtrEqual(before.LiveClientStartedAt, after.LiveClientStartedAt))
	add("expires", !timePtrEqual(before.Expires, after.Expires))
	add("never_expires", before.NeverExpires != after.NeverExpires)
	add("friends_only", before.FriendsOnly != after.FriendsOnly)
	add("post_url", before.PostURL != after.PostURL)

	return changed
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// Publisher is the transport broadcasts go out on. *nats.Conn satisfies it.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Broadcaster assembles and publishes per-link update payloads.
type Broadcaster struct {
	pub    Publisher
	users  repository.UserRepository
	logger *zap.Logger
}

// NewBroadcaster builds a Broadcaster.
func NewBroadcaster(pub Publisher, users repository.UserRepository, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{pub: pub, users: users, logger: logger}
}

// LinkSubject is the per-link channel name.
func LinkSubject(linkID uint) string {
	return fmt.Sprintf("link.%d", linkID)
}

// BroadcastLink publishes the link's current state to its channel. If the
// payload cannot be assembled the explicit failure shape is published
// instead; the update that triggered the broadcast stays committed.
func (b *Broadcaster) BroadcastLink(ctx context.Context, link *model.Link) error {
	payload, err := b.assemble(ctx, link)
	if err != nil {
		b.logger.Error("broadcast payload assembly failed",
			zap.Uint("link_id", link.ID), zap.Error(err))
		payload = BroadcastFailure{Success: false, Why: "Fetching link failed."}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("broadcast: encode link %d: %w", link.ID, err)
	}

	if err := b.pub.Publish(LinkSubject(link.ID), data); err != nil {
		return fmt.Errorf("broadcast: publish link %d: %w", link.ID, err)
	}

	metrics.BroadcastsPublished.Inc()
	return nil
}

func (b *Broadcaster) assemble(ctx context.Context, link *model.Link) (interface{}, error) {
	var setBy *string
	if link.SetByID != nil {
		setter, err := b.users.GetByID(ctx, *link.SetByID)
		if err != nil {
			return nil, fmt.Errorf("resolve setter %d: %w", *link.SetByID, err)
		}
		setBy = &setter.Username
	}

	return LinkBroadcast{
		Success:          true,
		ID:               link.ID,
		Expires:          link.Expires,
		Terms:            link.Terms,
		Blacklist:        link.Blacklist,
		PostURL:          link.PostURL,
		PostThumbnailURL: link.PostThumbnailURL,
		PostDescription:  link.PostDescription,
		ResponseType:     string(link.Reaction),
		ResponseText:     link.ReactionNote,
		SetBy:            setBy,
		UpdatedAt:        link.UpdatedAt,
	}, nil
}
