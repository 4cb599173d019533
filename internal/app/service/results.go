package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/mirefox/wallcast/internal/app/model"
	metrics "github.com/mirefox/wallcast/internal/infra/prometheus"
	"github.com/mirefox/wallcast/internal/search"
	"go.uber.org/zap"
)

// ErrCacheMiss is returned by ResultCache.Read when no fresh snapshot exists.
var ErrCacheMiss = errors.New("result cache miss")

// ResultCache stores filtered result-set snapshots keyed by compiled-query
// signature. Implementations are expected to evict by TTL.
type ResultCache interface {
	Read(ctx context.Context, key string) ([]search.Post, error)
	Write(ctx context.Context, key string, posts []search.Post, ttl time.Duration) error
}

// PostFetcher is the upstream search dependency of ResultService.
type PostFetcher interface {
	Fetch(ctx context.Context, tags, after, before string, limit int) ([]search.Post, error)
}

const (
	// DefaultResultLimit is the page size used when a caller passes none.
	DefaultResultLimit = 15

	randomOrderTTL = time.Minute
	resultTTL      = 45 * time.Minute

	fetchTimeout = 20 * time.Second
)

// randomOrder detects randomized upstream ordering. Those snapshots get a
// short TTL, otherwise identical keys would return frozen "random" results.
var randomOrder = regexp.MustCompile(`(?i)order:random`)

// stillImageExts are the only file extensions allowed when a link may not
// show motion content.
var stillImageExts = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"bmp":  {},
	"webp": {},
}

// CacheKey derives the cache signature for one compiled query. Pure: equal
// inputs always produce equal keys.
func CacheKey(compiledTags, after, before string, limit int, allowMotion bool) string {
	return fmt.Sprintf("v1/tagresults/%s/%s/%s/%d/%t",
		url.QueryEscape(compiledTags), after, before, limit, allowMotion)
}

// ResultTTL picks the snapshot lifetime for a compiled tag string.
func ResultTTL(compiledTags string) time.Duration {
	if randomOrder.MatchString(compiledTags) {
		return randomOrderTTL
	}
	return resultTTL
}

// FilterMotion drops posts whose file type is not a still image. With motion
// allowed the input is returned as-is; the input slice is never mutated.
func FilterMotion(posts []search.Post, allowMotion bool) []search.Post {
	if allowMotion {
		return posts
	}
	kept := make([]search.Post, 0, len(posts))
	for _, post := range posts {
		if _, ok := stillImageExts[post.File.Ext]; ok {
			kept = append(kept, post)
		}
	}
	return kept
}

// ResultService runs the retrieval pipeline: compile, cache read, upstream
// fetch, media filter, cache write.
type ResultService struct {
	cache   ResultCache
	fetcher PostFetcher
	logger  *zap.Logger
}

// NewResultService builds a ResultService. A nil logger falls back to nop.
func NewResultService(cache ResultCache, fetcher PostFetcher, logger *zap.Logger) *ResultService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{cache: cache, fetcher: fetcher, logger: logger}
}

// GetResults returns posts for a raw tag query under a link's filter rules.
// link may be nil for anonymous searches. It returns an error only when the
// upstream is unavailable; an empty slice means the query matched nothing.
// Cache read/write failures degrade to miss/skip and never fail the request.
func (s *ResultService) GetResults(ctx context.Context, rawTags, after, before string, link *model.Link, limit int) ([]search.Post, error) {
	if limit <= 0 {
		limit = DefaultResultLimit
	}

	compiled, allowMotion := CompileQuery(rawTags, link)
	key := CacheKey(compiled, after, before, limit, allowMotion)

	cached, err := s.cache.Read(ctx, key)
	if err == nil {
		metrics.ResultCacheHits.Inc()
		return cached, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("result cache read failed, treating as miss",
			zap.String("key", key), zap.Error(err))
	}
	metrics.ResultCacheMisses.Inc()

	fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	posts, err := s.fetcher.Fetch(fetchCtx, compiled, after, before, limit)
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.UpstreamFetches.WithLabelValues("success").Inc()

	if len(posts) == 0 {
		// Empty and malformed results are never cached.
		return []search.Post{}, nil
	}

	filtered := FilterMotion(posts, allowMotion)
	if err := s.cache.Write(ctx, key, filtered, ResultTTL(compiled)); err != nil {
		s.logger.Warn("result cache write failed, skipping",
			zap.String("key", key), zap.Error(err))
	}

	return filtered, nil
}

// GetPost looks up a single upstream post by id under a link's rules.
func (s *ResultService) GetPost(ctx context.Context, postID int64, link *model.Link) (*search.Post, error) {
	results, err := s.GetResults(ctx, fmt.Sprintf("id:%d", postID), "", "", link, 1)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// PossiblePostCount estimates how many posts a link's bare filter rules
// match, sampled from one oversized page.
func (s *ResultService) PossiblePostCount(ctx context.Context, link *model.Link) (int, error) {
	results, err := s.GetResults(ctx, "", "", "", link, 150)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}
