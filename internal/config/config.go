package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/pinsync/internal/utils"
)

// Store backends accepted by PINSYNC_STORE.
const (
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request budget for the HTTP API (ex: 30s)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Remote bookmarking service
	APIBaseURL    string        // ex: "https://api.pinboard.in/v1"
	APITimeout    time.Duration // per remote call (ex: 30s)
	SyncRateLimit time.Duration // minimum gap between two full syncs (default: 5m)
	SyncInterval  time.Duration // scheduler tick, 0 disables background sync

	// Local state
	StoreBackend    string // "redis" | "sqlite" | "memory"
	SQLitePath      string // bookmarks database when StoreBackend=sqlite
	PreferencesFile string // YAML file holding preferences and the last sync time
	CredentialsKey  string // secret sealing the stored session
	CredentialsFile string // sealed session file unless StoreBackend is redis or memory

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedCIDRS []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)

	LoginBurst        int // login attempts allowed at once per client
	LoginRefillPerMin int // login attempts regained per minute
}

func Load() *Config {
	dataDir := defaultDir("XDG_DATA_HOME", ".local/share")
	configDir := defaultDir("XDG_CONFIG_HOME", ".config")

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("PINSYNC_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("PINSYNC_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("PINSYNC_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  getenv("PINSYNC_LOG_LEVEL", "info"),
		PrettyLog: mustBool("PINSYNC_PRETTY_LOG", true),

		// Remote
		APIBaseURL:    getenv("PINSYNC_API_BASE_URL", "https://api.pinboard.in/v1"),
		APITimeout:    mustDuration("PINSYNC_API_TIMEOUT", 30*time.Second),
		SyncRateLimit: mustDuration("PINSYNC_SYNC_RATE_LIMIT", 5*time.Minute),
		SyncInterval:  mustDuration("PINSYNC_SYNC_INTERVAL", 15*time.Minute),

		// Local state
		StoreBackend:    strings.ToLower(getenv("PINSYNC_STORE", StoreSQLite)),
		SQLitePath:      getenv("PINSYNC_SQLITE_PATH", filepath.Join(dataDir, "bookmarks.db")),
		PreferencesFile: getenv("PINSYNC_PREFERENCES_FILE", filepath.Join(configDir, "preferences.yaml")),
		CredentialsKey:  requireEnv("PINSYNC_CREDENTIALS_KEY"),
		CredentialsFile: getenv("PINSYNC_CREDENTIALS_FILE", filepath.Join(configDir, "credentials.yaml")),

		// Redis settings
		RedisAddr:             getenv("PINSYNC_REDIS_ADDR", "localhost:6379"),
		RedisUser:             getenv("PINSYNC_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("PINSYNC_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("PINSYNC_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("PINSYNC_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("PINSYNC_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("PINSYNC_TRUST_PROXY", false),

		LoginBurst:        getenvInt("PINSYNC_LOGIN_BURST", 5),
		LoginRefillPerMin: getenvInt("PINSYNC_LOGIN_REFILL_PER_MIN", 5),
	}

	switch cfg.StoreBackend {
	case StoreRedis, StoreSQLite, StoreMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: PINSYNC_STORE must be one of redis, sqlite, memory (got %q)", cfg.StoreBackend))
	}

	if _, err := utils.ParseCIDRSet(cfg.AllowedCIDRS); err != nil {
		panic(fmt.Sprintf("❌ FATAL: PINSYNC_ALLOWED_CIDRS: %v", err))
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: PINSYNC_REDIS_PASSWORD is required when PINSYNC_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.CredentialsKey = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// SafeLoad is Load for interactive callers: a FATAL panic becomes an error.
func SafeLoad() (cfg *Config, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return Load(), nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// defaultDir resolves an XDG base directory, falling back to $HOME/<fallback>.
func defaultDir(xdgKey, fallback string) string {
	if v := os.Getenv(xdgKey); v != "" {
		return filepath.Join(v, "pinsync")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "pinsync"
	}
	return filepath.Join(home, fallback, "pinsync")
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
