package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/pinsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pinsync/internal/httpserver/handlers"
)

func init() { Register(registerPreferences) }

func registerPreferences(r chi.Router, d deps.Deps) {
	r.Get("/preferences", handlers.GetPreferences(d))
	r.Put("/preferences", handlers.PutPreferences(d))
}
