package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/pinsync/internal/engine"
	"github.com/MrSnakeDoc/pinsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
)

const keepAliveInterval = 25 * time.Second

type engineEvent struct {
	ID    string `json:"id"`
	Op    string `json:"op"`
	At    string `json:"at"`
	Error string `json:"error,omitempty"`
}

// Events streams engine and store notifications as Server-Sent Events:
// sync_started, sync_finished and bookmarks_changed.
func Events(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		// Streams outlive the server write timeout.
		if err := rc.SetWriteDeadline(time.Time{}); err != nil {
			d.Logger.Debug("cannot clear write deadline", logger.Error(err))
		}

		ctx := r.Context()
		changes, err := d.Store.Subscribe(ctx)
		if err != nil {
			writeError(w, d, err)
			return
		}
		events := d.Engine.Subscribe(ctx)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			d.Logger.Warn("event stream not flushable", logger.Error(err))
			return
		}

		keepAlive := time.NewTicker(keepAliveInterval)
		defer keepAlive.Stop()

		for {
			var err error
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				err = writeEvent(w, ev.Kind.String(), toEngineEvent(ev))
			case c, ok := <-changes:
				if !ok {
					return
				}
				err = writeEvent(w, "bookmarks_changed", c)
			case <-keepAlive.C:
				_, err = fmt.Fprint(w, ": keep-alive\n\n")
			}
			if err == nil {
				err = rc.Flush()
			}
			if err != nil {
				d.Logger.Debug("event stream closed", logger.Error(err))
				return
			}
		}
	}
}

func toEngineEvent(ev engine.Event) engineEvent {
	out := engineEvent{
		ID: ev.ID,
		Op: string(ev.Op),
		At: ev.At.UTC().Format(time.RFC3339Nano),
	}
	if ev.Err != nil {
		out.Error = ev.Err.Error()
	}
	return out
}

func writeEvent(w http.ResponseWriter, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
