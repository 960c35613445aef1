package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/pinsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pinsync/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/pinsync/internal/httpserver/mw"
)

func init() { Register(registerSession) }

func registerSession(r chi.Router, d deps.Deps) {
	loginLimit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.LoginBurst,
		RefillPerIPPerMin: d.LoginRefillPerMin,
		MaxEntries:        10_000,
		TrustProxy:        d.TrustProxy,
	})

	r.Route("/session", func(r chi.Router) {
		r.Get("/", handlers.Session(d))
		r.With(loginLimit).Post("/", handlers.Login(d))
		r.Delete("/", handlers.Logout(d))
	})
}
