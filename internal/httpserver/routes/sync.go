package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/pinsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pinsync/internal/httpserver/handlers"
)

func init() { Register(registerSync) }

func registerSync(r chi.Router, d deps.Deps) {
	r.Post("/sync", handlers.Sync(d))
	r.Get("/events", handlers.Events(d))
}
