package service

import (
	"context"
	"errors"
	"testing"

	"github.com/mirefox/wallcast/internal/app/model"
	"github.com/mirefox/wallcast/internal/app/repository"
)

// mockReactionStore runs the transaction body against an in-memory history,
// discarding all writes when the body returns an error.
type mockReactionStore struct {
	history []model.HistoryEntry

	saveLinkErr error

	savedLink     *model.Link
	notifications []model.Notification
	comments      []model.Comment
	climaxes      []model.ClimaxLog
}

func (m *mockReactionStore) InTransaction(ctx context.Context, fn func(tx repository.ReactionTx) error) error {
	tx := &mockReactionTx{store: m, history: append([]model.HistoryEntry(nil), m.history...)}
	if err := fn(tx); err != nil {
		return err
	}
	m.history = tx.history
	m.savedLink = tx.savedLink
	m.notifications = append(m.notifications, tx.notifications...)
	m.comments = append(m.comments, tx.comments...)
	m.climaxes = append(m.climaxes, tx.climaxes...)
	return nil
}

type mockReactionTx struct {
	store   *mockReactionStore
	history []model.HistoryEntry

	savedLink     *model.Link
	notifications []model.Notification
	comments      []model.Comment
	climaxes      []model.ClimaxLog
}

func (t *mockReactionTx) SaveLink(link *model.Link) error {
	if t.store.saveLinkErr != nil {
		return t.store.saveLinkErr
	}
	clone := *link
	t.savedLink = &clone
	return nil
}

func (t *mockReactionTx) DeleteHistoryByURL(linkID uint, postURL string) error {
	kept := t.history[:0]
	for _, entry := range t.history {
		if entry.LinkID == linkID && entry.PostURL == postURL {
			continue
		}
		kept = append(kept, entry)
	}
	t.history = kept
	return nil
}

func (t *mockReactionTx) LatestHistoryExcluding(linkID uint, postURL string) (*model.HistoryEntry, error) {
	for i := len(t.history) - 1; i >= 0; i-- {
		entry := t.history[i]
		if entry.LinkID == linkID && entry.PostURL != postURL {
			return &entry, nil
		}
	}
	return nil, nil
}

func (t *mockReactionTx) CreateNotification(n *model.Notification) error {
	t.notifications = append(t.notifications, *n)
	return nil
}

func (t *mockReactionTx) CreateComment(c *model.Comment) error {
	t.comments = append(t.comments, *c)
	return nil
}

func (t *mockReactionTx) CreateClimaxLog(cl *model.ClimaxLog) error {
	t.climaxes = append(t.climaxes, *cl)
	return nil
}

func reactionLink() *model.Link {
	setBy := uint(9)
	return &model.Link{
		ID:      1,
		UserID:  7,
		User:    model.User{ID: 7, Username: "ailurus"},
		SetByID: &setBy,
		PostURL: "https://files.example/A.png",
	}
}

func TestReactionRejectedRevertsToPrevious(t *testing.T) {
	store := &mockReactionStore{
		history: []model.HistoryEntry{
			{ID: 1, LinkID: 1, PostURL: "https://files.example/A.png"},
			{ID: 2, LinkID: 1, PostURL: "https://files.example/B.png", PostThumbnailURL: "https://thumbs.example/B.png"},
			{ID: 3, LinkID: 1, PostURL: "https://files.example/A.png"},
		},
	}
	svc := NewReactionService(store, nil)

	link, err := svc.Process(context.Background(), reactionLink(), model.ReactionRejected, "")
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if link.PostURL != "https://files.example/B.png" {
		t.Fatalf("expected revert to B, got %q", link.PostURL)
	}
	if link.PostThumbnailURL != "https://thumbs.example/B.png" {
		t.Fatalf("expected B thumbnail, got %q", link.PostThumbnailURL)
	}
	for _, entry := range store.history {
		if entry.PostURL == "https://files.example/A.png" {
			t.Fatal("entries matching the rejected post must be deleted")
		}
	}
	if store.savedLink == nil || store.savedLink.PostURL != link.PostURL {
		t.Fatal("reverted link must be saved in the same transaction")
	}
}

func TestReactionRejectedWithEmptyHistoryClearsContent(t *testing.T) {
	store := &mockReactionStore{
		history: []model.HistoryEntry{
			{ID: 1, LinkID: 1, PostURL: "https://files.example/A.png"},
		},
	}
	svc := NewReactionService(store, nil)

	link, err := svc.Process(context.Background(), reactionLink(), model.ReactionRejected, "")
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if link.PostURL != "" || link.PostThumbnailURL != "" {
		t.Fatalf("expected cleared content, got %q / %q", link.PostURL, link.PostThumbnailURL)
	}
}

func TestReactionAcceptedNotifiesAndLogs(t *testing.T) {
	store := &mockReactionStore{}
	svc := NewReactionService(store, nil)

	_, err := svc.Process(context.Background(), reactionLink(), model.ReactionAccepted, "great pick")
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if len(store.notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(store.notifications))
	}
	n := store.notifications[0]
	if n.UserID != 9 {
		t.Fatalf("notification must address the setter, got user %d", n.UserID)
	}
	if n.Text != `ailurus loved your post! "great pick"` {
		t.Fatalf("unexpected notification text: %q", n.Text)
	}

	if len(store.comments) != 2 {
		t.Fatalf("expected summary + note comments, got %d", len(store.comments))
	}
	if store.comments[0].Content != "> loved it! https://files.example/A.png" {
		t.Fatalf("unexpected summary comment: %q", store.comments[0].Content)
	}
	if store.comments[1].Content != "great pick" {
		t.Fatalf("unexpected note comment: %q", store.comments[1].Content)
	}
	if len(store.climaxes) != 0 {
		t.Fatal("accepted must not write a climax log")
	}
}

func TestReactionRejectedWithoutNoteSingleComment(t *testing.T) {
	store := &mockReactionStore{}
	svc := NewReactionService(store, nil)

	_, err := svc.Process(context.Background(), reactionLink(), model.ReactionRejected, "")
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if store.notifications[0].Text != "ailurus did not like your post." {
		t.Fatalf("unexpected notification text: %q", store.notifications[0].Text)
	}
	if len(store.comments) != 1 {
		t.Fatalf("expected only the summary comment, got %d", len(store.comments))
	}
}

func TestReactionClimaxedWritesClimaxLog(t *testing.T) {
	store := &mockReactionStore{}
	svc := NewReactionService(store, nil)

	_, err := svc.Process(context.Background(), reactionLink(), model.ReactionClimaxed, "")
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}

	if store.notifications[0].Text != "ailurus came to your post!" {
		t.Fatalf("unexpected notification text: %q", store.notifications[0].Text)
	}
	if len(store.climaxes) != 1 {
		t.Fatalf("expected 1 climax log, got %d", len(store.climaxes))
	}
	cl := store.climaxes[0]
	if cl.UserID != 7 {
		t.Fatalf("climax log must belong to the owner, got %d", cl.UserID)
	}
	if cl.CausedByID == nil || *cl.CausedByID != 9 {
		t.Fatal("climax log must credit the setter")
	}
}

func TestReactionWithoutSetterSkipsNotification(t *testing.T) {
	store := &mockReactionStore{}
	svc := NewReactionService(store, nil)

	link := reactionLink()
	link.SetByID = nil

	_, err := svc.Process(context.Background(), link, model.ReactionAccepted, "")
	if err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if len(store.notifications) != 0 {
		t.Fatal("no setter means no notification")
	}
}

func TestReactionUnknownKindRejected(t *testing.T) {
	svc := NewReactionService(&mockReactionStore{}, nil)

	if _, err := svc.Process(context.Background(), reactionLink(), model.Reaction("meh"), ""); err == nil {
		t.Fatal("expected error for unknown reaction kind")
	}
	if _, err := svc.Process(context.Background(), reactionLink(), model.ReactionNone, ""); err == nil {
		t.Fatal("expected error for the none reaction")
	}
}

func TestReactionFailureIsAtomic(t *testing.T) {
	store := &mockReactionStore{
		history: []model.HistoryEntry{
			{ID: 1, LinkID: 1, PostURL: "https://files.example/A.png"},
			{ID: 2, LinkID: 1, PostURL: "https://files.example/B.png"},
		},
		saveLinkErr: errors.New("db gone"),
	}
	svc := NewReactionService(store, nil)

	_, err := svc.Process(context.Background(), reactionLink(), model.ReactionRejected, "")
	if err == nil {
		t.Fatal("expected transaction failure to surface")
	}

	// Nothing from the rolled-back transaction may leak out.
	if len(store.history) != 2 {
		t.Fatalf("history must be untouched after rollback, got %d entries", len(store.history))
	}
	if len(store.notifications) != 0 || len(store.comments) != 0 {
		t.Fatal("side effects must be rolled back with the transaction")
	}
}
