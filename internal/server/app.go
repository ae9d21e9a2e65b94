// Package server wires the relay together: configuration, logging, the
// durable store with its migrations, the viewer cache, and the HTTP
// endpoint, plus graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/sealdm/sealdm/internal/logging"
	"github.com/sealdm/sealdm/internal/server/cache"
	"github.com/sealdm/sealdm/internal/server/config"
	"github.com/sealdm/sealdm/internal/server/history"
	"github.com/sealdm/sealdm/internal/server/httpapi"
	"github.com/sealdm/sealdm/internal/server/relay"
	"github.com/sealdm/sealdm/internal/server/repositories/repomanager"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	api    *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	if err := repos.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store := newStore(cfg, logger)
	registry := relay.NewRegistry()
	sync := cache.NewSync(store, cfg.CacheTTL, cfg.CacheCap)

	rl := relay.New(db, repos, registry, sync, logger, cfg.SecretKey, cfg.CallTimeout)
	hist := history.NewService(db, repos, store, logger, cfg.CacheTTL, cfg.CallTimeout)
	api := httpapi.New(rl, hist, registry, logger, cfg.SecretKey)

	return &App{config: cfg, logger: logger, db: db, api: api}, nil
}

// newStore selects the cache backend: Redis when an address is configured,
// otherwise the in-process store.
func newStore(cfg *config.Config, logger logging.Logger) cache.Store {
	if cfg.RedisAddr == "" {
		logger.Info(context.Background(), "no redis address configured, using in-process cache")
		return cache.NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return cache.NewRedisStore(client)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	fiberApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.api.Router(fiberApp)

	go func() {
		<-ctx.Done()
		if err := fiberApp.ShutdownWithTimeout(shutdownTimeout); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "http endpoint listening", "addr", app.config.EndpointAddrHTTP)
	if err := fiberApp.Listen(app.config.EndpointAddrHTTP); err != nil {
		app.logger.Error(ctx, "http server error", "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting sealdm relay")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "stopped")
}
