package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"kplays-api/internal/cache"
	"kplays-api/internal/config"
	"kplays-api/internal/events"
	"kplays-api/internal/handler"
	"kplays-api/internal/logging"
	"kplays-api/internal/middleware"
	"kplays-api/internal/repository"
	"kplays-api/internal/router"
	"kplays-api/internal/search"
	"kplays-api/internal/service"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.MustLoad()
	logging.Setup(cfg.App)

	slog.Info("starting kplays api", "version", cfg.App.Version, "env", cfg.App.Environment)

	if err := run(cfg); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store
	store, err := repository.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()
	slog.Info("store initialized", "type", cfg.Database.Type)

	// Redis is only dialled when something is configured to use it.
	redisClient := connectRedis(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	appCache, err := openCache(cfg, redisClient)
	if err != nil {
		return err
	}
	defer appCache.Close()

	// Sessions get their own cache so quota drops and pattern
	// invalidation never sign the admin out.
	var sessionCache cache.Cache = cache.NewMemoryCache(cache.WithName("sessions"))
	if redisClient != nil && cfg.Cache.Type == "redis" {
		sessionCache = cache.NewRedisCache(redisClient, cfg.Cache.KeyPrefix+":sessions")
	}
	sessionCache = cache.NewInstrumented(sessionCache, "sessions")
	defer sessionCache.Close()

	// View markers are kept apart from the page cache so a full quota never
	// drops them. Expired local markers are purged hourly.
	var viewCache cache.Cache
	if redisClient != nil && cfg.Cache.Type == "redis" {
		viewCache = cache.NewRedisCache(redisClient, cfg.Cache.KeyPrefix+":views")
	} else {
		local := cache.NewMemoryCache(cache.WithName("views"))
		viewCache = local
		viewSweeper := service.NewRefreshScheduler("view-markers", func(ctx context.Context) error {
			if n := local.Sweep(); n > 0 {
				slog.Debug("expired view markers purged", "count", n)
			}
			return nil
		}, service.RefreshConfig{Interval: time.Hour, InitialDelay: time.Hour})
		viewSweeper.Start()
		defer viewSweeper.Stop()
	}
	defer viewCache.Close()

	// Change notifications
	var broker events.Broker = events.NewMemoryBroker()
	if cfg.Events.Type == "redis" && redisClient != nil {
		broker = events.NewRedisBroker(redisClient, cfg.Cache.KeyPrefix)
		slog.Info("redis event broker initialized")
	}
	defer broker.Close()

	// Counters
	counters := service.NewDirectCounters(store)
	var counterBuffer *cache.CounterBuffer
	if cfg.Counters.Buffered && redisClient != nil {
		counterBuffer = cache.NewCounterBuffer(redisClient, cache.CounterBufferConfig{
			FlushInterval: cfg.Counters.FlushInterval,
			KeyPrefix:     cfg.Cache.KeyPrefix,
		}, service.CreateFlushFunc(store))
		counters = service.NewBufferedCounters(counterBuffer)
	}

	// Search
	var index *search.Index
	if cfg.Search.Enabled {
		index, err = search.NewIndex()
		if err != nil {
			return err
		}
		defer index.Close()
	}

	// Services
	games := service.NewGameService(store, appCache, counters, index, broker, service.GameServiceConfig{
		ListTTL:    cfg.Cache.ListTTL,
		DetailTTL:  cfg.Cache.DetailTTL,
		ViewWindow: cfg.Cache.ViewWindow,
		Views:      viewCache,
	})
	if err := games.RebuildIndex(ctx); err != nil {
		slog.Warn("initial index build failed", "error", err)
	}

	auth := service.NewAuthService(store, sessionCache, service.AuthConfig{
		AdminEmail:        cfg.App.AdminEmail,
		AdminPasswordHash: cfg.App.AdminPasswordHash,
		SessionTTL:        cfg.Session.TTL,
	})
	if cfg.App.AdminEmail == "" || cfg.App.AdminPasswordHash == "" {
		slog.Warn("ADMIN_EMAIL or ADMIN_PASSWORD_HASH is not set, admin endpoints are locked")
	}

	admin := service.NewAdminService(store, appCache, broker, cfg.Cache.ListTTL)
	maintenance := service.NewMaintenanceService(store, appCache, broker)
	analytics := service.NewAnalyticsService()

	youtube := service.NewYouTubeService(service.YouTubeConfig{
		APIKey:       cfg.YouTube.APIKey,
		ChannelQuery: cfg.YouTube.ChannelQuery,
		ChannelID:    cfg.YouTube.ChannelID,
		BaseURL:      cfg.YouTube.BaseURL,
		FeedURL:      cfg.YouTube.FeedURL,
		CacheTTL:     cfg.YouTube.CacheTTL,
	}, appCache, &http.Client{Timeout: 20 * time.Second})

	galleryRefresher := service.NewRefreshScheduler("youtube-gallery", func(ctx context.Context) error {
		_, err := youtube.Refresh(ctx)
		return err
	}, service.RefreshConfig{Interval: cfg.YouTube.RefreshInterval})
	galleryRefresher.Start()
	defer galleryRefresher.Stop()

	watchCtx, stopWatch := context.WithCancel(context.Background())
	var watchers sync.WaitGroup
	for name, watch := range map[string]func(context.Context) error{
		"games": games.Watch,
		"admin": admin.Watch,
	} {
		watchers.Add(1)
		go func() {
			defer watchers.Done()
			if err := watch(watchCtx); err != nil {
				slog.Error("watcher stopped", "watcher", name, "error", err)
			}
		}()
	}

	// Handlers
	checks := map[string]handler.Pinger{"database": store}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	gameHandler := handler.NewGameHandler(games, broker)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}

	r := router.New(router.Config{
		Handler:          handler.New(cfg.App.Name, cfg.App.Version, checks),
		GameHandler:      gameHandler,
		StatsHandler:     handler.NewStatsHandler(service.NewStatsService(store), youtube),
		RequestHandler:   handler.NewRequestHandler(service.NewRequestService(store)),
		AnalyticsHandler: handler.NewAnalyticsHandler(analytics),
		AuthHandler:      handler.NewAuthHandler(auth),
		AdminHandler: handler.NewAdminHandler(handler.AdminHandlerConfig{
			Admin:       admin,
			Maintenance: maintenance,
			Store:       store,
			Buffer:      counterBuffer,
			Index:       index,
			DBType:      cfg.Database.Type,
			CacheType:   cfg.Cache.Type,
		}),
		SessionMiddleware: middleware.NewSessionMiddleware(auth),
		AdminMiddleware:   middleware.NewAdminMiddleware(auth),
		MetricsPath:       metricsPath,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	srv.RegisterOnShutdown(gameHandler.CloseStreams)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	stopWatch()
	watchers.Wait()

	// Flush buffered counters before the store closes.
	if counterBuffer != nil {
		slog.Info("flushing counter buffer")
		_ = counterBuffer.Close()
	}
	return nil
}

func connectRedis(cfg *config.Config) *redis.Client {
	needed := cfg.Cache.Type == "redis" || cfg.Events.Type == "redis" || cfg.Counters.Buffered
	if !needed {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddress(),
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, falling back to in-process components", "addr", cfg.Cache.RedisAddress(), "error", err)
		_ = client.Close()
		return nil
	}

	slog.Info("redis client initialized", "addr", cfg.Cache.RedisAddress())
	return client
}

func openCache(cfg *config.Config, client *redis.Client) (cache.Cache, error) {
	var c cache.Cache
	switch {
	case cfg.Cache.Type == "redis" && client != nil:
		c = cache.NewRedisCache(client, cfg.Cache.KeyPrefix)
	case cfg.Cache.Type == "bolt":
		if err := os.MkdirAll(filepath.Dir(cfg.Cache.BoltPath), 0o755); err != nil {
			return nil, err
		}
		bc, err := cache.NewBoltCache(cfg.Cache.BoltPath, cache.WithQuota(cfg.Cache.QuotaBytes), cache.WithName("app"))
		if err != nil {
			return nil, err
		}
		c = bc
	default:
		c = cache.NewMemoryCache(cache.WithQuota(cfg.Cache.QuotaBytes), cache.WithName("app"))
	}

	slog.Info("cache initialized", "type", cfg.Cache.Type)
	return cache.NewInstrumented(c, "app"), nil
}
