package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/pinsync/internal/account"
	"github.com/MrSnakeDoc/pinsync/internal/config"
	"github.com/MrSnakeDoc/pinsync/internal/credentials"
	"github.com/MrSnakeDoc/pinsync/internal/engine"
	"github.com/MrSnakeDoc/pinsync/internal/httpserver"
	"github.com/MrSnakeDoc/pinsync/internal/httpserver/deps"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
	"github.com/MrSnakeDoc/pinsync/internal/pinboard"
	"github.com/MrSnakeDoc/pinsync/internal/redis"
	"github.com/MrSnakeDoc/pinsync/internal/scheduler"
	"github.com/MrSnakeDoc/pinsync/internal/settings"
	"github.com/MrSnakeDoc/pinsync/internal/store"
	"github.com/MrSnakeDoc/pinsync/internal/store/memory"
	redisstore "github.com/MrSnakeDoc/pinsync/internal/store/redis"
	"github.com/MrSnakeDoc/pinsync/internal/store/sqlite"
	"github.com/MrSnakeDoc/pinsync/internal/utils"
	"github.com/MrSnakeDoc/pinsync/internal/version"
)

// Runtime is the wired object graph shared by the CLI commands and the
// HTTP server. Close releases everything it opened.
type Runtime struct {
	Config  *config.Config
	Logger  logger.Logger
	Redis   *goredis.Client // nil unless the redis backend is selected
	Store   store.Store
	Prefs   *settings.File
	Vault   *credentials.Vault
	Remote  *pinboard.Client
	Engine  *engine.Engine
	Account *account.Manager

	stopEngine context.CancelFunc
}

// NewRuntime opens the configured backends and starts the engine worker.
func NewRuntime(ctx context.Context, cfg *config.Config, log logger.Logger) (_ *Runtime, err error) {
	rt := &Runtime{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	sealer, err := credentials.NewSealer(cfg.CredentialsKey)
	if err != nil {
		return nil, err
	}

	var secrets credentials.Store
	switch cfg.StoreBackend {
	case config.StoreRedis:
		rt.Redis, err = redis.New(ctx, redis.OptionsFromConfig(cfg), log)
		if err != nil {
			return nil, err
		}
		rt.Store = redisstore.NewStore(rt.Redis, log)
		secrets = credentials.NewRedisStore(rt.Redis, sealer)
	case config.StoreSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		rt.Store = db
		secrets = credentials.NewFileStore(cfg.CredentialsFile, sealer)
	case config.StoreMemory:
		rt.Store = memory.New()
		secrets = credentials.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	log.Info("store opened", logger.String("backend", cfg.StoreBackend))

	rt.Prefs, err = settings.Open(cfg.PreferencesFile)
	if err != nil {
		return nil, err
	}
	rt.Vault = credentials.NewVault(secrets)

	rt.Remote, err = pinboard.NewClient(pinboard.Options{
		BaseURL: cfg.APIBaseURL,
		Timeout: cfg.APITimeout,
	}, rt.Vault, log)
	if err != nil {
		return nil, err
	}

	rt.Engine = engine.New(rt.Store, rt.Remote, rt.Prefs, log, engine.Options{RateLimit: cfg.SyncRateLimit})
	engineCtx, cancel := context.WithCancel(context.Background())
	rt.stopEngine = cancel
	rt.Engine.Start(engineCtx)

	rt.Account = account.NewManager(rt.Remote, rt.Vault, rt.Engine, rt.Prefs, log)
	return rt, nil
}

// Close stops the engine, then closes the store and the Redis client.
func (rt *Runtime) Close() {
	if rt.Engine != nil {
		rt.Engine.Stop()
		rt.stopEngine()
	}
	if rt.Store != nil {
		utils.CloseLogged(rt.Store, rt.Logger, "store")
	}
	if rt.Redis != nil {
		utils.CloseLogged(rt.Redis, rt.Logger, "redis")
	}
}

// App runs the HTTP API and the background sync scheduler.
type App struct {
	rt        *Runtime
	logger    logger.Logger
	server    *httpserver.Server
	scheduler *scheduler.SyncScheduler
	trigger   chan struct{}
}

func New(rt *Runtime) *App {
	cfg := rt.Config

	d := deps.Deps{
		Logger:            rt.Logger,
		StartTime:         time.Now(),
		Version:           version.Version,
		Commit:            version.Commit,
		BuildDate:         version.BuildDate,
		GoVersion:         version.GoVersion,
		AllowedCIDRS:      cfg.AllowedCIDRS,
		TrustProxy:        cfg.TrustProxy,
		RequestTimeout:    cfg.RequestTimeout,
		LoginBurst:        cfg.LoginBurst,
		LoginRefillPerMin: cfg.LoginRefillPerMin,
		Engine:            rt.Engine,
		Account:           rt.Account,
		Store:             rt.Store,
		Preferences:       rt.Prefs,
		RedisClient:       rt.Redis,
	}

	trigger := make(chan struct{}, 1)
	return &App{
		rt:        rt,
		logger:    rt.Logger,
		server:    httpserver.New(cfg, rt.Logger, d),
		scheduler: scheduler.NewSyncScheduler(rt.Engine, rt.Account, rt.Logger, cfg.SyncInterval, trigger),
		trigger:   trigger,
	}
}

// Run serves until SIGINT or SIGTERM. SIGHUP asks the scheduler for an
// immediate sync.
func (a *App) Run(ctx context.Context) error {
	cfg := a.rt.Config
	a.logger.Infof("🚀 Starting pinsync %s on %s", version.String(), cfg.ListenPort)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				select {
				case a.trigger <- struct{}{}:
				default:
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	a.scheduler.Start(ctx)
	a.logger.Info("sync scheduler started", logger.Duration("interval", cfg.SyncInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	a.scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("failed to stop server: %w", err))
	}

	if runErr == nil {
		a.logger.Info("✅ pinsync stopped cleanly")
	}
	return runErr
}
