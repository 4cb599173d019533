package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mirefox/wallcast/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

type fakeUserRepo struct {
	users map[uint]*model.User
	err   error
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id uint) (*model.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	user, ok := r.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return user, nil
}

func TestChangedBroadcastFields(t *testing.T) {
	now := time.Now()
	later := now.Add(time.Hour)

	base := func() *model.Link {
		return &model.Link{ID: 1, Blacklist: "dog", Terms: "be nice", Theme: "winter", Expires: &now}
	}

	t.Run("no changes", func(t *testing.T) {
		a, b := base(), base()
		assert.Empty(t, ChangedBroadcastFields(a, b))
	})

	t.Run("non trigger field ignored", func(t *testing.T) {
		a, b := base(), base()
		b.MinScore = 100
		assert.Empty(t, ChangedBroadcastFields(a, b))
	})

	t.Run("each trigger field detected", func(t *testing.T) {
		cases := map[string]func(*model.Link){
			"blacklist":     func(l *model.Link) { l.Blacklist = "cat" },
			"terms":         func(l *model.Link) { l.Terms = "changed" },
			"theme":         func(l *model.Link) { l.Theme = "summer" },
			"response_text": func(l *model.Link) { l.ReactionNote = "wow" },
			"expires":       func(l *model.Link) { l.Expires = &later },
			"never_expires": func(l *model.Link) { l.NeverExpires = true },
			"friends_only":  func(l *model.Link) { l.FriendsOnly = true },
			"post_url":      func(l *model.Link) { l.PostURL = "https://files.example/x.png" },
		}
		for field, mutate := range cases {
			a, b := base(), base()
			mutate(b)
			changed := ChangedBroadcastFields(a, b)
			require.Len(t, changed, 1, "field %s", field)
			assert.Equal(t, field, changed[0])
		}
	})
}

func TestBroadcastLinkPublishesPayload(t *testing.T) {
	pub := &fakePublisher{}
	setBy := uint(9)
	users := &fakeUserRepo{users: map[uint]*model.User{9: {ID: 9, Username: "vex"}}}
	b := NewBroadcaster(pub, users, nil)

	link := &model.Link{
		ID:        42,
		SetByID:   &setBy,
		Terms:     "be nice",
		Blacklist: "dog",
		PostURL:   "https://files.example/x.png",
		Reaction:  model.ReactionAccepted,
	}

	require.NoError(t, b.BroadcastLink(context.Background(), link))
	require.Len(t, pub.subjects, 1)
	assert.Equal(t, "link.42", pub.subjects[0])

	var payload LinkBroadcast
	require.NoError(t, json.Unmarshal(pub.payloads[0], &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, uint(42), payload.ID)
	assert.Equal(t, "https://files.example/x.png", payload.PostURL)
	assert.Equal(t, "accepted", payload.ResponseType)
	require.NotNil(t, payload.SetBy)
	assert.Equal(t, "vex", *payload.SetBy)
}

func TestBroadcastLinkNilSetter(t *testing.T) {
	pub := &fakePublisher{}
	b := NewBroadcaster(pub, &fakeUserRepo{}, nil)

	require.NoError(t, b.BroadcastLink(context.Background(), &model.Link{ID: 5}))

	var payload LinkBroadcast
	require.NoError(t, json.Unmarshal(pub.payloads[0], &payload))
	assert.True(t, payload.Success)
	assert.Nil(t, payload.SetBy)
}

func TestBroadcastLinkAssemblyFailure(t *testing.T) {
	pub := &fakePublisher{}
	setBy := uint(9)
	users := &fakeUserRepo{err: errors.New("db down")}
	b := NewBroadcaster(pub, users, nil)

	link := &model.Link{ID: 42, SetByID: &setBy}
	require.NoError(t, b.BroadcastLink(context.Background(), link))

	var payload BroadcastFailure
	require.NoError(t, json.Unmarshal(pub.payloads[0], &payload))
	assert.False(t, payload.Success)
	assert.Equal(t, "Fetching link failed.", payload.Why)
}

func TestBroadcastLinkPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("nats gone")}
	b := NewBroadcaster(pub, &fakeUserRepo{}, nil)

	err := b.BroadcastLink(context.Background(), &model.Link{ID: 5})
	require.Error(t, err)
}
