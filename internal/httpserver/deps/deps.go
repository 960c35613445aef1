package deps

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/pinsync/internal/account"
	"github.com/MrSnakeDoc/pinsync/internal/engine"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
	"github.com/MrSnakeDoc/pinsync/internal/settings"
	"github.com/MrSnakeDoc/pinsync/internal/store"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	AllowedCIDRS   []string      // IPs allowed to reach the API
	TrustProxy     bool          // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RequestTimeout time.Duration // how long a request waits for its engine task before answering 202

	LoginBurst        int // login attempts allowed at once per client IP
	LoginRefillPerMin int // login attempts regained per minute

	Engine      *engine.Engine
	Account     *account.Manager
	Store       store.Store
	Preferences *settings.File
	RedisClient *redis.Client // nil unless a Redis backed component is configured
}
