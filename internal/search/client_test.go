package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	names   []string
	details []map[string]string
}

func (s *captureSink) Error(ctx context.Context, name string, details map[string]string) {
	s.names = append(s.names, name)
	s.details = append(s.details, details)
}

func newTestClient(baseURL string, sink EventSink) *Client {
	return NewClient(Config{
		BaseURL:   baseURL,
		UserAgent: "wallcast test client",
	}, nil, sink)
}

func TestCursorDigits(t *testing.T) {
	tests := []struct {
		cursor string
		want   string
	}{
		{"b_1234", "1234"},
		{"1234", "1234"},
		{"", ""},
		{"abc", ""},
		{"a1b2c3", "123"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cursorDigits(tt.cursor), "cursor %q", tt.cursor)
	}
}

func TestBuildURL(t *testing.T) {
	c := newTestClient("https://boards.example", nil)

	t.Run("tags are escaped", func(t *testing.T) {
		u := c.BuildURL("cat -flash score:>50", "", "", 15)
		assert.Equal(t, "https://boards.example/posts.json?tags=cat+-flash+score%3A%3E50&limit=15", u)
	})

	t.Run("after cursor becomes page=b", func(t *testing.T) {
		u := c.BuildURL("cat", "b_1234", "", 15)
		assert.Contains(t, u, "&page=b1234")
	})

	t.Run("before cursor becomes page=a", func(t *testing.T) {
		u := c.BuildURL("cat", "", "a_77", 15)
		assert.Contains(t, u, "&page=a77")
	})

	t.Run("non numeric cursor yields no page segment", func(t *testing.T) {
		u := c.BuildURL("cat", "abc", "", 15)
		assert.NotContains(t, u, "page=")
	})
}

func TestFetchSuccess(t *testing.T) {
	var gotUA, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"posts":[{"id":11,"file":{"ext":"png","url":"https://files.example/11.png"},"description":"a cat"}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	posts, err := c.Fetch(context.Background(), "cat", "b_12", "", 15)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, int64(11), posts[0].ID)
	assert.Equal(t, "png", posts[0].File.Ext)
	assert.Equal(t, "wallcast test client", gotUA)
	assert.Contains(t, gotQuery, "page=b12")
	assert.Contains(t, gotQuery, "limit=15")
}

func TestFetchNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := &captureSink{}
	c := newTestClient(srv.URL, sink)

	posts, err := c.Fetch(context.Background(), "cat", "", "", 15)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.Nil(t, posts)

	require.Len(t, sink.names, 1)
	assert.Equal(t, "posts_api_fail", sink.names[0])
	assert.Equal(t, "500", sink.details[0]["status"])
}

func TestFetchMissingPostsField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	posts, err := c.Fetch(context.Background(), "cat", "", "", 15)
	require.NoError(t, err)
	require.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestFetchWrongShapedPostsField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"posts":"nope"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL, nil)
	posts, err := c.Fetch(context.Background(), "cat", "", "", 15)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestFetchUnreachableUpstream(t *testing.T) {
	sink := &captureSink{}
	c := newTestClient("http://127.0.0.1:1", sink)

	_, err := c.Fetch(context.Background(), "cat", "", "", 15)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	require.Len(t, sink.names, 1)
}
