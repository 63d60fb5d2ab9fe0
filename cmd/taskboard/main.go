package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"taskboard/internal/cache"
	"taskboard/internal/cli"
	"taskboard/internal/core"
	apphttp "taskboard/internal/http"
	"taskboard/internal/log"
	"taskboard/internal/middleware/ratelimit"
	"taskboard/internal/services"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	res := cli.InitBackend(context.Background(), logger, cfg)
	store := res.Backend
	loc := cfg.Location()

	cacheManager := cache.NewManager()
	var reportCache cache.Cache[core.StatsReport]
	if cfg.StatsCacheTTL > 0 {
		lru := cache.NewLRUCache[core.StatsReport](16, cfg.StatsCacheTTL)
		cacheManager.Register(lru)
		reportCache = lru
	}
	cacheManager.StartCleanup(time.Minute)

	stats := services.NewStatsService(store, reportCache, services.StatsConfig{Location: loc})
	todos := services.NewTodoService(store, res.Publisher, stats)
	categories := services.NewCategoryService(store, res.Publisher, stats)

	rl := ratelimit.DefaultConfig()
	rl.RequestsPerMinute = cfg.RateLimitPerMinute

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Todos:      todos,
		Categories: categories,
		Stats:      stats,
		Snapshots:  store,
		Health:     store,
		Logger:     logger,
		Location:   loc,
		RateLimit:  rl,
	})

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cacheManager.Stop()
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting taskboard server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"timezone", loc.String(),
		"events_enabled", res.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
