// Zenithd is the satellite tracking and pass prediction daemon.
//
// It loads configuration, warms the element-set cache from disk and the
// network, starts the HTTP API with the live tracking WebSocket, and runs
// the scheduled element refresh. Shutdown is handled gracefully on SIGINT
// or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/pflag"

	"github.com/nickng9/zenith/internal/api"
	"github.com/nickng9/zenith/internal/auth"
	"github.com/nickng9/zenith/internal/config"
	"github.com/nickng9/zenith/internal/predict"
	"github.com/nickng9/zenith/internal/tle"
	"github.com/nickng9/zenith/internal/ws"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "Path to config TOML (empty: built-in defaults)")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides config)")
	)
	pflag.Parse()

	// .env is optional; real env vars win either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}
	if *bind != "" {
		cfg.Server.Bind = *bind
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Logging.Level),
	}))

	authCfg, err := loadAuthConfig(cfg, logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	sources := make([]tle.Source, 0, len(cfg.Satellites))
	for _, s := range cfg.Satellites {
		sources = append(sources, tle.Source{SatelliteID: s.ID, NoradID: s.NoradID})
	}

	store := tle.NewStore(cfg.TLE.StoreDir)
	fetcher := tle.NewHTTPFetcher(cfg.TLE.SourceURL, sources)
	cache := tle.NewCache(fetcher, logger, tle.CacheOptions{
		Store:        store,
		MaxAge:       cfg.TLE.MaxAge(),
		FetchTimeout: cfg.TLE.FetchTimeout(),
	})

	// Warm the cache from disk so a restart serves immediately.
	if sets, err := store.LoadAll(); err != nil {
		logger.Warn("loading stored element sets failed", "error", err)
	} else if len(sets) > 0 {
		cache.Seed(sets)
		logger.Info("loaded element sets from disk", "count", len(sets))
	}

	engine := predict.NewEngine(cache, sources, logger, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial refresh so the first request does not pay fetch latency.
	// Failure is non-fatal; the cache refetches on demand.
	go func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if n, err := engine.RefreshAll(refreshCtx); err != nil {
			logger.Warn("startup element refresh incomplete", "updated", n, "error", err)
		} else {
			logger.Info("startup element refresh complete", "updated", n)
		}
	}()

	// Scheduled refresh keeps elements fresh ahead of demand.
	sched := cron.New()
	if _, err := sched.AddFunc(cfg.TLE.RefreshCron, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		if n, err := engine.RefreshAll(refreshCtx); err != nil {
			logger.Warn("scheduled element refresh incomplete", "updated", n, "error", err)
		} else {
			logger.Info("scheduled element refresh complete", "updated", n)
		}
	}); err != nil {
		logger.Error("invalid tle.refresh_cron", "spec", cfg.TLE.RefreshCron, "error", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	var hub *ws.Hub
	if cfg.Live.Enabled {
		hub = ws.NewHub(nil)
		go hub.Run(ctx)
		go broadcastSubpoints(ctx, engine, hub, time.Duration(cfg.Live.IntervalSeconds)*time.Second, logger)
	}

	srv := api.NewServer(cfg, authCfg, engine, hub, logger)

	go func() {
		logger.Info("starting server",
			"addr", cfg.Server.Bind,
			"auth_enabled", authCfg.Enabled,
			"satellites", len(sources),
			"live_enabled", cfg.Live.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// broadcastSubpoints publishes each satellite's current ground position to
// the live hub at the configured interval.
func broadcastSubpoints(ctx context.Context, engine *predict.Engine, hub *ws.Hub, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, src := range engine.Satellites() {
				sp, err := engine.Subpoint(ctx, src.SatelliteID, time.Time{})
				if err != nil {
					logger.Debug("live subpoint unavailable", "satellite_id", src.SatelliteID, "error", err)
					continue
				}
				hub.BroadcastJSON(map[string]any{
					"type":     "subpoint",
					"subpoint": sp,
				})
			}
		}
	}
}

func loadAuthConfig(cfg config.Config, logger *slog.Logger) (auth.Config, error) {
	out := auth.Config{Enabled: cfg.Auth.Enabled}
	if out.Enabled {
		out.Token = os.Getenv("ZENITH_AUTH_TOKEN")
		if out.Token == "" {
			return out, errors.New("ZENITH_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}
	return out, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
