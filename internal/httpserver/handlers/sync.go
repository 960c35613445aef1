package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/httpserver/deps"
)

type syncResponse struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	LastSync string `json:"last_full_sync"`
}

// Sync serves POST /sync. Inside the rate limit interval it answers 200
// without contacting the remote.
func Sync(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loggedIn, err := d.Account.LoggedIn(r.Context())
		if err != nil {
			writeError(w, d, err)
			return
		}
		if !loggedIn {
			writeError(w, d, domain.ErrUnauthorized)
			return
		}

		task := d.Engine.Sync()
		if !await(w, r, d, task) {
			return
		}
		writeJSON(w, http.StatusOK, syncResponse{
			ID:       task.ID(),
			Status:   "done",
			LastSync: d.Preferences.LastFullSync().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
}
