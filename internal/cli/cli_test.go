package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/pinsync/internal/app"
	"github.com/MrSnakeDoc/pinsync/internal/config"
	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

// fakePinboard serves the subset of the v1 API the client uses.
type fakePinboard struct {
	mu    sync.Mutex
	posts map[string]map[string]string
	seq   int
	calls []string
}

func newFakePinboard(t *testing.T) (*fakePinboard, *httptest.Server) {
	t.Helper()
	f := &fakePinboard{posts: map[string]map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakePinboard) seed(href, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.posts[href] = map[string]string{
		"href":        href,
		"description": title,
		"meta":        fmt.Sprintf("m%d", f.seq),
		"time":        "2024-05-01T10:00:00Z",
		"shared":      "yes",
		"toread":      "no",
	}
}

func (f *fakePinboard) post(href string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.posts[href]
}

func (f *fakePinboard) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1"), "/")
	f.calls = append(f.calls, path)
	q := r.URL.Query()

	if path == "/user/api_token" {
		if user, pass, ok := r.BasicAuth(); !ok || user != "bob" || pass != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"result":"ABC"}`))
		return
	}
	if q.Get("auth_token") != "bob:ABC" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch path {
	case "/posts/add":
		f.seq++
		f.posts[q.Get("url")] = map[string]string{
			"href":        q.Get("url"),
			"description": q.Get("description"),
			"extended":    q.Get("extended"),
			"tags":        q.Get("tags"),
			"shared":      q.Get("shared"),
			"toread":      q.Get("toread"),
			"meta":        fmt.Sprintf("m%d", f.seq),
			"time":        time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		}
		_, _ = w.Write([]byte(`{"result_code":"done"}`))
	case "/posts/delete":
		delete(f.posts, q.Get("url"))
		_, _ = w.Write([]byte(`{"result_code":"done"}`))
	case "/posts/all":
		all := make([]map[string]string, 0, len(f.posts))
		for _, p := range f.posts {
			all = append(all, p)
		}
		sort.Slice(all, func(i, j int) bool { return all[i]["href"] < all[j]["href"] })
		_ = json.NewEncoder(w).Encode(all)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type harness struct {
	t      *testing.T
	remote *fakePinboard
	cfg    *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	remote, srv := newFakePinboard(t)
	dir := t.TempDir()
	return &harness{
		t:      t,
		remote: remote,
		cfg: &config.Config{
			APIBaseURL:      srv.URL + "/v1",
			APITimeout:      5 * time.Second,
			SyncRateLimit:   5 * time.Minute,
			StoreBackend:    config.StoreSQLite,
			SQLitePath:      filepath.Join(dir, "bookmarks.db"),
			PreferencesFile: filepath.Join(dir, "preferences.yaml"),
			CredentialsKey:  "secret",
			CredentialsFile: filepath.Join(dir, "credentials.yaml"),
		},
	}
}

// run executes one CLI invocation against the harness state.
func (h *harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	opts := &RootOptions{
		Runtime: func(ctx context.Context, _ bool) (*app.Runtime, error) {
			return app.NewRuntime(ctx, h.cfg, logger.NewNop())
		},
	}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (h *harness) login() {
	h.t.Helper()
	out, err := h.run("hunter2\n", "login", "bob", "--password-stdin")
	require.NoError(h.t, err, out)
}

func (h *harness) list(args ...string) []*domain.Bookmark {
	h.t.Helper()
	out, err := h.run("", append([]string{"list", "--format", "json"}, args...)...)
	require.NoError(h.t, err, out)

	var resp struct {
		Status string             `json:"status"`
		Data   []*domain.Bookmark `json:"data"`
	}
	require.NoError(h.t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(h.t, "ok", resp.Status)
	return resp.Data
}

func urls(bs []*domain.Bookmark) []string {
	out := make([]string, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.URL)
	}
	sort.Strings(out)
	return out
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "pinsync", cmd.Use)

	for _, name := range []string{"serve", "login", "logout", "status", "sync", "list", "add", "edit", "delete", "prefs"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "list", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoginRunsInitialSync(t *testing.T) {
	h := newHarness(t)
	h.remote.seed("https://a.example", "A")
	h.remote.seed("https://b.example", "B")

	out, err := h.run("hunter2\n", "login", "bob", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as bob")

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, urls(h.list()))

	out, err = h.run("", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "bookmarks:  2")
	assert.NotContains(t, out, "never")
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "login", "bob", "--password", "nope")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	out, err := h.run("", "status", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"logged_in":false`)
}

func TestLoginPrompt(t *testing.T) {
	h := newHarness(t)
	out, err := h.run("hunter2\n", "login", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "Password: ")
	assert.Contains(t, out, "logged in as bob")
}

func TestSyncRequiresLogin(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "sync")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestSyncHonoursRateLimit(t *testing.T) {
	h := newHarness(t)
	h.login()
	h.remote.seed("https://late.example", "Late")

	out, err := h.run("", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "already up to date")
	assert.Empty(t, h.list())

	h.cfg.SyncRateLimit = time.Nanosecond
	out, err = h.run("", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "synced, 1 bookmark")
	assert.Equal(t, []string{"https://late.example"}, urls(h.list()))
}

func TestAddEditDelete(t *testing.T) {
	h := newHarness(t)
	h.login()

	out, err := h.run("", "add", "https://go.dev", "--title", "Go", "--tags", "lang go", "--unread")
	require.NoError(t, err, out)
	assert.Contains(t, out, "added https://go.dev")

	remote := h.remote.post("https://go.dev")
	require.NotNil(t, remote)
	assert.Equal(t, "Go", remote["description"])
	assert.Equal(t, "yes", remote["toread"])
	assert.Equal(t, "yes", remote["shared"])

	unread := h.list("--unread")
	require.Len(t, unread, 1)
	assert.Equal(t, "lang go", unread[0].Tags)
	assert.Empty(t, h.list("--unread=false"))

	out, err = h.run("", "edit", "https://go.dev", "--unread=false", "--title", "The Go language")
	require.NoError(t, err, out)
	assert.Equal(t, "no", h.remote.post("https://go.dev")["toread"])
	assert.Equal(t, "lang go", h.remote.post("https://go.dev")["tags"], "unchanged fields are kept")

	found := h.list("-q", "language")
	require.Len(t, found, 1)
	assert.Equal(t, "The Go language", found[0].Title)

	out, err = h.run("", "delete", "https://go.dev")
	require.NoError(t, err, out)
	assert.Nil(t, h.remote.post("https://go.dev"))
	assert.Empty(t, h.list())
}

func TestAddUsesPreferenceDefaults(t *testing.T) {
	h := newHarness(t)
	h.login()

	_, err := h.run("", "prefs", "set", "default_private", "true")
	require.NoError(t, err)

	_, err = h.run("", "add", "https://secret.example")
	require.NoError(t, err)
	assert.Equal(t, "no", h.remote.post("https://secret.example")["shared"])

	_, err = h.run("", "add", "https://public.example", "--private=false")
	require.NoError(t, err)
	assert.Equal(t, "yes", h.remote.post("https://public.example")["shared"])
}

func TestAddRejectsInvalidURL(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "add", "not a url")
	assert.ErrorIs(t, err, domain.ErrInvalidBookmark)
}

func TestAddFailsWhenLoggedOut(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "add", "https://go.dev")
	assert.ErrorIs(t, err, domain.ErrServerError)
	assert.Empty(t, h.list(), "the optimistic write is rolled back")
}

func TestEditNeedsAChange(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "edit", "https://go.dev")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")
}

func TestDeleteUnknown(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("", "delete", "https://missing.example")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLogoutClearsMirror(t *testing.T) {
	h := newHarness(t)
	h.remote.seed("https://a.example", "A")
	h.login()
	require.Len(t, h.list(), 1)

	out, err := h.run("", "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "logged out")
	assert.Empty(t, h.list())

	_, err = h.run("", "sync")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestPrefs(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "prefs", "set", "use_reader_view", "yes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want true or false")

	_, err = h.run("", "prefs", "set", "colour", "true")
	require.Error(t, err)

	out, err = h.run("", "prefs", "set", "use_reader_view", "true")
	require.NoError(t, err)
	assert.Regexp(t, `use_reader_view\s+true`, out)

	out, err = h.run("", "prefs", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"use_reader_view":true`)
	assert.Contains(t, out, `"default_unread":false`)
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, fmt.Errorf("posts/all: %w", domain.ErrUnauthorized))
	assert.Contains(t, buf.String(), "Error: ")
	assert.Contains(t, buf.String(), "pinsync login")
}

func TestPrinterText(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{Format: "text", Out: &buf, Err: &buf}
	require.NoError(t, p.Bookmarks([]*domain.Bookmark{{
		URL:         "https://go.dev",
		Tags:        "lang go",
		Unread:      true,
		Description: "home",
	}}))

	out := buf.String()
	assert.Contains(t, out, "https://go.dev\n")
	assert.Contains(t, out, "[unread,pending]")
	assert.Contains(t, out, "#lang #go")
	assert.Contains(t, out, "  home")
}
