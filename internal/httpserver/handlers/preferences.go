package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/pinsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pinsync/internal/settings"
)

func GetPreferences(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Preferences.Preferences())
	}
}

// PutPreferences replaces every preference; omitted fields become false.
func PutPreferences(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var prefs settings.Preferences
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&prefs); err != nil {
			badRequest(w, "invalid json body")
			return
		}
		if err := d.Preferences.SetPreferences(prefs); err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	}
}
