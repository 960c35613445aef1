package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/engine"
	"github.com/MrSnakeDoc/pinsync/internal/httpserver/deps"
)

const maxBodyBytes = 64 << 10

type listResponse struct {
	Count     int                `json:"count"`
	Bookmarks []*domain.Bookmark `json:"bookmarks"`
}

type createRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Unread      *bool  `json:"unread"`
	Private     *bool  `json:"private"`
}

// ListBookmarks serves GET /bookmarks?q=&unread=&private=.
func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := domain.Filter{Text: q.Get("q")}

		var err error
		if f.Unread, err = optionalBool(q, "unread"); err != nil {
			badRequest(w, err.Error())
			return
		}
		if f.Private, err = optionalBool(q, "private"); err != nil {
			badRequest(w, err.Error())
			return
		}

		bookmarks, err := d.Store.List(r.Context(), f)
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Count: len(bookmarks), Bookmarks: bookmarks})
	}
}

// CreateBookmark serves POST /bookmarks. Omitted flags take the
// default_unread and default_private preferences.
func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			badRequest(w, "invalid json body")
			return
		}
		if err := validateURL(req.URL); err != nil {
			badRequest(w, err.Error())
			return
		}

		prefs := d.Preferences.Preferences()
		nb := engine.NewBookmark{
			URL:         req.URL,
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			Unread:      prefs.DefaultUnread,
			Private:     prefs.DefaultPrivate,
		}
		if req.Unread != nil {
			nb.Unread = *req.Unread
		}
		if req.Private != nil {
			nb.Private = *req.Private
		}

		if !await(w, r, d, d.Engine.Add(nb)) {
			return
		}
		respondWithBookmark(w, r, d, http.StatusCreated, nb.URL)
	}
}

// UpdateBookmark serves PATCH /bookmarks?url=.
func UpdateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			badRequest(w, "url query parameter is required")
			return
		}

		var patch domain.Patch
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&patch); err != nil {
			badRequest(w, "invalid json body")
			return
		}
		if patch.Empty() {
			badRequest(w, "nothing to update")
			return
		}

		current, err := d.Store.Get(r.Context(), target)
		if err != nil {
			writeError(w, d, err)
			return
		}

		if !await(w, r, d, d.Engine.Edit(*current, patch)) {
			return
		}
		respondWithBookmark(w, r, d, http.StatusOK, target)
	}
}

// DeleteBookmark serves DELETE /bookmarks?url=.
func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := r.URL.Query().Get("url")
		if target == "" {
			badRequest(w, "url query parameter is required")
			return
		}

		current, err := d.Store.Get(r.Context(), target)
		if err != nil {
			writeError(w, d, err)
			return
		}

		if !await(w, r, d, d.Engine.Delete(*current)) {
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func respondWithBookmark(w http.ResponseWriter, r *http.Request, d deps.Deps, status int, rawURL string) {
	b, err := d.Store.Get(r.Context(), rawURL)
	if err != nil {
		writeError(w, d, err)
		return
	}
	writeJSON(w, status, b)
}

func optionalBool(q url.Values, key string) (*bool, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid boolean for %s: %q", key, raw)
	}
	return &v, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid url: %q", raw)
	}
	return nil
}
