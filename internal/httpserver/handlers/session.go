package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/pinsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	LoggedIn bool   `json:"logged_in"`
	Username string `json:"username,omitempty"`
	SyncID   string `json:"sync_id,omitempty"`
}

// Login exchanges the password for a token. The initial sync runs in the
// background; its id is returned so clients can follow it on /events.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
			badRequest(w, "invalid json body")
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Username == "" || req.Password == "" {
			badRequest(w, "username and password are required")
			return
		}

		task, err := d.Account.LogIn(r.Context(), req.Username, req.Password)
		if err != nil {
			writeError(w, d, err)
			return
		}

		d.Logger.Info("login via api",
			logger.String("username", req.Username),
			logger.String("remote_ip", r.RemoteAddr))

		writeJSON(w, http.StatusCreated, sessionResponse{
			LoggedIn: true,
			Username: req.Username,
			SyncID:   task.ID(),
		})
	}
}

func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Account.LogOut(r.Context()); err != nil {
			writeError(w, d, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Session(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, err := d.Account.Username(r.Context())
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, sessionResponse{LoggedIn: name != "", Username: name})
	}
}
