package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mirefox/wallcast/internal/app/model"
	"github.com/mirefox/wallcast/internal/search"
)

type fakeCache struct {
	store    map[string][]search.Post
	ttls     map[string]time.Duration
	readErr  error
	writeErr error
	reads    int
	writes   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		store: make(map[string][]search.Post),
		ttls:  make(map[string]time.Duration),
	}
}

func (f *fakeCache) Read(ctx context.Context, key string) ([]search.Post, error) {
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	posts, ok := f.store[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return posts, nil
}

func (f *fakeCache) Write(ctx context.Context, key string, posts []search.Post, ttl time.Duration) error {
	f.writes++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.store[key] = posts
	f.ttls[key] = ttl
	return nil
}

type fakeFetcher struct {
	fn      func(ctx context.Context, tags, after, before string, limit int) ([]search.Post, error)
	fetches int
}

func (f *fakeFetcher) Fetch(ctx context.Context, tags, after, before string, limit int) ([]search.Post, error) {
	f.fetches++
	if f.fn != nil {
		return f.fn(ctx, tags, after, before, limit)
	}
	return []search.Post{}, nil
}

func postWithExt(id int64, ext string) search.Post {
	return search.Post{ID: id, File: search.PostFile{Ext: ext, URL: "https://files.example/" + ext}}
}

func TestCacheKeyDeterministic(t *testing.T) {
	a := CacheKey("cat -flash", "b_12", "", 15, false)
	b := CacheKey("cat -flash", "b_12", "", 15, false)
	if a != b {
		t.Fatalf("expected identical keys, got %q vs %q", a, b)
	}

	if CacheKey("cat -flash", "", "", 15, false) == CacheKey("cat -flash", "", "", 15, true) {
		t.Fatal("allowMotion must be part of the key")
	}
	if a != "v1/tagresults/cat+-flash/b_12//15/false" {
		t.Fatalf("unexpected key shape: %q", a)
	}
}

func TestResultTTL(t *testing.T) {
	tests := []struct {
		tags string
		want time.Duration
	}{
		{"cat forest", 45 * time.Minute},
		{"order:random forest", time.Minute},
		{"ORDER:RANDOM forest", time.Minute},
		{"cat Order:Random", time.Minute},
	}
	for _, tt := range tests {
		if got := ResultTTL(tt.tags); got != tt.want {
			t.Fatalf("ResultTTL(%q) = %v, want %v", tt.tags, got, tt.want)
		}
	}
}

func TestFilterMotion(t *testing.T) {
	posts := []search.Post{
		postWithExt(1, "png"),
		postWithExt(2, "webm"),
		postWithExt(3, "webp"),
		postWithExt(4, "mp4"),
	}

	kept := FilterMotion(posts, false)
	if len(kept) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(kept))
	}
	if kept[0].File.Ext != "png" || kept[1].File.Ext != "webp" {
		t.Fatalf("expected [png webp] in order, got [%s %s]", kept[0].File.Ext, kept[1].File.Ext)
	}
	if len(posts) != 4 {
		t.Fatal("input slice must not be mutated")
	}

	all := FilterMotion(posts, true)
	if len(all) != 4 {
		t.Fatalf("motion allowed must keep everything, got %d", len(all))
	}
}

func TestGetResultsCacheHitSkipsFetch(t *testing.T) {
	cache := newFakeCache()
	fetcher := &fakeFetcher{}
	svc := NewResultService(cache, fetcher, nil)

	key := CacheKey("cat", "", "", 15, true)
	cache.store[key] = []search.Post{postWithExt(1, "png")}

	posts, err := svc.GetResults(context.Background(), "cat", "", "", nil, 15)
	if err != nil {
		t.Fatalf("GetResults error: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != 1 {
		t.Fatalf("expected cached snapshot, got %+v", posts)
	}
	if fetcher.fetches != 0 {
		t.Fatal("cache hit must not hit the upstream")
	}
}

func TestGetResultsFetchesFiltersAndCaches(t *testing.T) {
	cache := newFakeCache()
	fetcher := &fakeFetcher{
		fn: func(ctx context.Context, tags, after, before string, limit int) ([]search.Post, error) {
			return []search.Post{postWithExt(1, "png"), postWithExt(2, "webm")}, nil
		},
	}
	svc := NewResultService(cache, fetcher, nil)

	link := testLink() // no capabilities: motion disallowed

	posts, err := svc.GetResults(context.Background(), "cat", "", "", link, 15)
	if err != nil {
		t.Fatalf("GetResults error: %v", err)
	}
	if len(posts) != 1 || posts[0].File.Ext != "png" {
		t.Fatalf("expected filtered [png], got %+v", posts)
	}

	key := CacheKey("cat -flash -animated", "", "", 15, false)
	cached, ok := cache.store[key]
	if !ok {
		t.Fatalf("expected snapshot cached under %q", key)
	}
	if len(cached) != 1 {
		t.Fatal("cache must hold the filtered snapshot")
	}
	if cache.ttls[key] != 45*time.Minute {
		t.Fatalf("expected 45m TTL, got %v", cache.ttls[key])
	}
}

func TestGetResultsRandomOrderShortTTL(t *testing.T) {
	cache := newFakeCache()
	fetcher := &fakeFetcher{
		fn: func(ctx context.Context, tags, after, before string, limit int) ([]search.Post, error) {
			return []search.Post{postWithExt(1, "png")}, nil
		},
	}
	svc := NewResultService(cache, fetcher, nil)

	if _, err := svc.GetResults(context.Background(), "order:random forest", "", "", nil, 15); err != nil {
		t.Fatalf("GetResults error: %v", err)
	}

	key := CacheKey("order:random forest", "", "", 15, true)
	if cache.ttls[key] != time.Minute {
		t.Fatalf("randomized ordering must get a 1m TTL, got %v", cache.ttls[key])
	}
}

func TestGetResultsUpstreamFailure(t *testing.T) {
	cache := newFakeCache()
	fetcher := &fakeFetcher{
		fn: func(ctx context.Context, tags, after, before string, limit int) ([]search.Post, error) {
			return nil, search.ErrUpstreamUnavailable
		},
	}
	svc := NewResultService(cache, fetcher, nil)

	posts, err := svc.GetResults(context.Background(), "cat", "", "", nil, 15)
	if !errors.Is(err, search.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
	if posts != nil {
		t.Fatal("unavailable must not be reported as an empty result")
	}
	if cache.writes != 0 {
		t.Fatal("failures must never be cached")
	}
}

func TestGetResultsEmptyNotCached(t *testing.T) {
	cache := newFakeCache()
	fetcher := &fakeFetcher{
		fn: func(ctx context.Context, tags, after, before string, limit int) ([]search.Post, error) {
			return []search.Post{}, nil
		},
	}
	svc := NewResultService(cache, fetcher, nil)

	posts, err := svc.GetResults(context.Background(), "cat", "", "", nil, 15)
	if err != nil {
		t.Fatalf("GetResults error: %v", err)
	}
	if posts == nil || len(posts) != 0 {
		t.Fatalf("expected empty slice, got %v", posts)
	}
	if cache.writes != 0 {
		t.Fatal("empty results must never be cached")
	}
}

func TestGetResultsCacheErrorDegradesToMiss(t *testing.T) {
	cache := newFakeCache()
	cache.readErr = errors.New("redis down")
	cache.writeErr = errors.New("redis down")
	fetcher := &fakeFetcher{
		fn: func(ctx context.Context, tags, after, before string, limit int) ([]search.Post, error) {
			return []search.Post{postWithExt(1, "png")}, nil
		},
	}
	svc := NewResultService(cache, fetcher, nil)

	posts, err := svc.GetResults(context.Background(), "cat", "", "", nil, 15)
	if err != nil {
		t.Fatalf("cache failure must not fail the request: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("expected fetched posts, got %v", posts)
	}
}

func TestGetResultsDefaultLimit(t *testing.T) {
	cache := newFakeCache()
	var gotLimit int
	fetcher := &fakeFetcher{
		fn: func(ctx context.Context, tags, after, before string, limit int) ([]search.Post, error) {
			gotLimit = limit
			return []search.Post{}, nil
		},
	}
	svc := NewResultService(cache, fetcher, nil)

	if _, err := svc.GetResults(context.Background(), "cat", "", "", nil, 0); err != nil {
		t.Fatalf("GetResults error: %v", err)
	}
	if gotLimit != DefaultResultLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultResultLimit, gotLimit)
	}
}

func TestGetPost(t *testing.T) {
	cache := newFakeCache()
	fetcher := &fakeFetcher{
		fn: func(ctx context.Context, tags, after, before string, limit int) ([]search.Post, error) {
			if tags != "id:42" || limit != 1 {
				t.Fatalf("unexpected fetch: tags=%q limit=%d", tags, limit)
			}
			return []search.Post{postWithExt(42, "png")}, nil
		},
	}
	svc := NewResultService(cache, fetcher, nil)

	post, err := svc.GetPost(context.Background(), 42, nil)
	if err != nil {
		t.Fatalf("GetPost error: %v", err)
	}
	if post == nil || post.ID != 42 {
		t.Fatalf("expected post 42, got %+v", post)
	}
}

func TestGetResultsPropagatesLinkContext(t *testing.T) {
	cache := newFakeCache()
	var gotTags string
	fetcher := &fakeFetcher{
		fn: func(ctx context.Context, tags, after, before string, limit int) ([]search.Post, error) {
			gotTags = tags
			return []search.Post{}, nil
		},
	}
	svc := NewResultService(cache, fetcher, nil)

	link := testLink(
		withCapabilities(model.CapabilityKinkAligned),
		withKinks("foo"),
		func(l *model.Link) {
			l.Blacklist = "dog"
			l.Theme = "winter"
			l.MinScore = 50
		},
	)

	if _, err := svc.GetResults(context.Background(), "cat", "", "", link, 15); err != nil {
		t.Fatalf("GetResults error: %v", err)
	}
	if gotTags != "cat -flash winter -dog score:>50 -animated ~foo" {
		t.Fatalf("unexpected compiled tags: %q", gotTags)
	}
}
