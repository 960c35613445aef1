package pinboard

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
)

type staticToken string

func (s staticToken) AuthToken(context.Context) (string, error) { return string(s), nil }

type noToken struct{}

func (noToken) AuthToken(context.Context) (string, error) { return "", domain.ErrUnauthorized }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL + "/v1/"}, staticToken("bob:ABC"), logger.NewNop())
	require.NoError(t, err)
	return c
}

func TestExchangeToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/user/api_token", strings.TrimSuffix(r.URL.Path, "/"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Empty(t, r.URL.Query().Get("auth_token"))

		user, pass, ok := r.BasicAuth()
		if !ok || user != "bob" || pass != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"result":"ABC123"}`))
	})

	token, err := c.ExchangeToken(context.Background(), "bob", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", token)

	_, err = c.ExchangeToken(context.Background(), "bob", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestExchangeTokenMalformed(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "not json", status: http.StatusOK, body: "<html>"},
		{name: "empty result", status: http.StatusOK, body: `{"result":""}`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: ""},
		{name: "server error", status: http.StatusInternalServerError, body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.ExchangeToken(context.Background(), "bob", "pw")
			assert.ErrorIs(t, err, domain.ErrUnknown)
			assert.NotErrorIs(t, err, domain.ErrRateLimitExceeded)
		})
	}
}

func TestStatusPolicy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "done", status: http.StatusOK, body: `{"result_code":"done"}`, want: nil},
		{name: "not done", status: http.StatusOK, body: `{"result_code":"item not found"}`, want: domain.ErrUnknown},
		{name: "unauthorized", status: http.StatusUnauthorized, want: domain.ErrUnauthorized},
		{name: "rate limited", status: http.StatusTooManyRequests, want: domain.ErrRateLimitExceeded},
		{name: "server error", status: http.StatusInternalServerError, want: domain.ErrUnknown},
		{name: "teapot", status: http.StatusTeapot, want: domain.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := c.Delete(context.Background(), "https://example.com")
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAddOrUpdateParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v1/posts/add", r.URL.Path)
		assert.Equal(t, "bob:ABC", q.Get("auth_token"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "https://go.dev/?a=1&b=2", q.Get("url"))
		assert.Equal(t, "Go", q.Get("description"))
		assert.Equal(t, "The Go site", q.Get("extended"))
		assert.Equal(t, "go lang", q.Get("tags"))
		assert.Equal(t, "no", q.Get("shared"))
		assert.Equal(t, "yes", q.Get("toread"))
		assert.Equal(t, "yes", q.Get("replace"))
		_, _ = w.Write([]byte(`{"result_code":"done"}`))
	})

	err := c.AddOrUpdate(context.Background(), &domain.Bookmark{
		URL:         "https://go.dev/?a=1&b=2",
		Title:       "Go",
		Description: "The Go site",
		Tags:        "go lang",
		Private:     true,
		Unread:      true,
	})
	require.NoError(t, err)
}

func TestListAll(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/posts/all", r.URL.Path)
		_, _ = w.Write([]byte(`[
			{"href":"https://a.example","description":"A","extended":"first","meta":"m1","hash":"h1",
			 "time":"2024-03-01T10:20:30Z","shared":"no","toread":"yes","tags":"x y"},
			{"href":"https://b.example","description":"B","extended":"","meta":"m2","hash":"h2",
			 "time":"garbage","shared":"yes","toread":"no","tags":""},
			{"href":"https://c.example","description":"C","meta":"m3","time":"2024-03-01T10:20:30Z"}
		]`))
	})
	fixed := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	posts, err := c.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, posts, 3)

	a := posts[0]
	assert.Equal(t, "https://a.example", a.URL)
	assert.Equal(t, "A", a.Title)
	assert.Equal(t, "first", a.Description)
	assert.Equal(t, "m1", a.Fingerprint)
	assert.True(t, a.Private)
	assert.True(t, a.Unread)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 20, 30, 0, time.UTC), a.ModifiedAt)

	b := posts[1]
	assert.False(t, b.Private)
	assert.False(t, b.Unread)
	assert.Equal(t, fixed, b.ModifiedAt, "unparseable time falls back to now")

	assert.True(t, posts[2].Private, "missing shared flag is private")
	assert.False(t, posts[2].Unread)

	bm := a.Bookmark()
	assert.True(t, bm.Fingerprint.Matches("m1"))
}

func TestNoSessionSkipsNetwork(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL}, noToken{}, logger.NewNop())
	require.NoError(t, err)

	_, err = c.ListAll(context.Background())
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
	assert.False(t, called)
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "ftp://example.com"}, noToken{}, logger.NewNop())
	assert.Error(t, err)
}
