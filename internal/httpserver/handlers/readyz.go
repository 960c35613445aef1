package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/pinsync/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready      bool              `json:"ready"`
	Components map[string]string `json:"components"`
	Busy       bool              `json:"engine_busy"`
}

func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := readyzResponse{
			Ready:      true,
			Components: map[string]string{},
			Busy:       d.Engine.Busy(),
		}

		if err := d.Store.Ping(ctx); err != nil {
			resp.Ready = false
			resp.Components["store"] = err.Error()
		} else {
			resp.Components["store"] = "ok"
		}

		if d.RedisClient != nil {
			if err := d.RedisClient.Ping(ctx).Err(); err != nil {
				resp.Ready = false
				resp.Components["redis"] = err.Error()
			} else {
				resp.Components["redis"] = "ok"
			}
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}
