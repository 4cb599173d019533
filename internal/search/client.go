package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUpstreamUnavailable signals a non-success status from the upstream
// posts API. Callers must treat it as "unavailable", never as "no results".
var ErrUpstreamUnavailable = errors.New("upstream posts api unavailable")

const defaultRequestTimeout = 15 * time.Second

// EventSink receives structured failure events from the client. The service
// layer plugs its tracker in here.
type EventSink interface {
	Error(ctx context.Context, name string, details map[string]string)
}

// Client fetches posts from an imageboard-style upstream API.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	logger    *zap.Logger
	events    EventSink
}

// Config carries the upstream endpoint settings.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// NewClient builds a posts client. A nil logger falls back to zap.NewNop,
// a nil sink disables failure events.
func NewClient(cfg Config, logger *zap.Logger, events EventSink) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
		events:    events,
	}
}

// cursorDigits extracts the digit characters of an opaque pagination cursor.
// A cursor with no digits yields "" and produces no page segment.
func cursorDigits(cursor string) string {
	var b strings.Builder
	for _, r := range cursor {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BuildURL assembles the upstream request URL for the compiled tag string.
// Tags must already be the compiled form; escaping happens here.
func (c *Client) BuildURL(tags, after, before string, limit int) string {
	u := fmt.Sprintf("%s/posts.json?tags=%s", c.baseURL, url.QueryEscape(tags))
	if digits := cursorDigits(after); digits != "" {
		u += "&page=b" + digits
	}
	if digits := cursorDigits(before); digits != "" {
		u += "&page=a" + digits
	}
	return u + fmt.Sprintf("&limit=%d", limit)
}

// Fetch performs the upstream request. A non-2xx status returns
// ErrUpstreamUnavailable; a success body without a posts array is an empty
// successful result.
func (c *Client) Fetch(ctx context.Context, tags, after, before string, limit int) ([]Post, error) {
	reqURL := c.BuildURL(tags, after, before, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		c.reportFailure(ctx, 0, reqURL, err)
		return nil, fmt.Errorf("search: %w: %w", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		c.reportFailure(ctx, resp.StatusCode, reqURL, nil)
		return nil, fmt.Errorf("search: %w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.reportFailure(ctx, resp.StatusCode, reqURL, err)
		return nil, fmt.Errorf("search: %w: read body: %w", ErrUpstreamUnavailable, err)
	}

	return decodePosts(body), nil
}

// decodePosts tolerates missing or wrong-shaped posts fields: both decode to
// an empty successful result rather than an error.
func decodePosts(body []byte) []Post {
	var envelope struct {
		Posts json.RawMessage `json:"posts"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return []Post{}
	}
	if len(envelope.Posts) == 0 {
		return []Post{}
	}
	var posts []Post
	if err := json.Unmarshal(envelope.Posts, &posts); err != nil {
		return []Post{}
	}
	if posts == nil {
		return []Post{}
	}
	return posts
}

func (c *Client) reportFailure(ctx context.Context, status int, reqURL string, cause error) {
	c.logger.Error("posts api fetch failed",
		zap.Int("status", status),
		zap.String("url", reqURL),
		zap.Error(cause),
	)
	if c.events == nil {
		return
	}
	details := map[string]string{
		"status": fmt.Sprintf("%d", status),
		"url":    reqURL,
	}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	c.events.Error(ctx, "posts_api_fail", details)
}
