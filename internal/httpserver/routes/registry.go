// Package routes holds the HTTP route groups. Each file registers its
// group from init; the server mounts them all at once.
package routes

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/pinsync/internal/httpserver/deps"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type group struct {
	reg Registrar
	mws []Middleware
}

var groups []group

// Register adds a route group. mws wrap only that group.
func Register(reg Registrar, mws ...Middleware) {
	groups = append(groups, group{reg: reg, mws: mws})
}

// RegisterAll mounts every group on r, in registration order.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, g := range groups {
		if len(g.mws) == 0 {
			g.reg(r, d)
			continue
		}
		g.reg(r.With(g.mws...), d)
	}
}

// List returns "METHOD /path" for every mounted route, sorted.
func List(r chi.Routes) []string {
	var out []string
	_ = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		out = append(out, method+" "+route)
		return nil
	})
	sort.Strings(out)
	return out
}
