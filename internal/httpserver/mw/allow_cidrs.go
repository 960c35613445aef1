package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/pinsync/internal/logger"
	"github.com/MrSnakeDoc/pinsync/internal/utils"
)

// AllowOnlyCIDRS restricts every route to the given IPs and CIDRs. An
// empty list lets everything through; a list that fails to parse denies
// everything. trustProxy resolves the client from proxy headers, for
// origins only reachable through a trusted tunnel.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	set, err := utils.ParseCIDRSet(allowed)
	if err != nil {
		log.Error("invalid allow list, denying all requests", logger.Error(err))
		return func(http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(w, http.StatusForbidden, "forbidden")
			})
		}
	}
	if set.Len() == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	log.Debug("allow list enabled", logger.Int("rules", set.Len()), logger.Bool("trust_proxy", trustProxy))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := utils.ClientAddr(r, trustProxy)
			if !ok || !set.Contains(addr) {
				log.Warn("request outside allow list",
					logger.String("client_ip", utils.ClientIP(r, trustProxy)),
					logger.String("path", r.URL.Path))
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}` + "\n"))
}
