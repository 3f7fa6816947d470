package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yyozen/linkgate/internal/config"
	"github.com/yyozen/linkgate/internal/handler"
	"github.com/yyozen/linkgate/internal/middleware"
	"github.com/yyozen/linkgate/internal/repository"
	"github.com/yyozen/linkgate/internal/service"
	"github.com/yyozen/linkgate/pkg/cache"
	"github.com/yyozen/linkgate/pkg/clicks"
	"github.com/yyozen/linkgate/pkg/clienthash"
	"github.com/yyozen/linkgate/pkg/dedup"
	"github.com/yyozen/linkgate/pkg/geoip"
	"github.com/yyozen/linkgate/pkg/ratelimit"
)

func main() {
	// .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		zap.NewExample().Fatal("logger init failed", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("gateway exited", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: cfg.Redis.DialTimeout,
		ReadTimeout: cfg.Redis.ReadTimeout,
	})
	defer func() { _ = redisClient.Close() }()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return err
	}

	kv := cache.NewRedisCache(redisClient)
	repo := repository.NewLinkRepository(db, logger)
	resolver := service.NewResolver(repo, kv, cfg.Links.CacheTTL, cfg.Links.NegativeTTL, logger)
	engine := service.NewEngine(resolver, cfg.Links.NotFoundURL, cfg.Links.ExpiredURL, cfg.Links.OGProxyURL, logger)

	hasher := clienthash.New(cfg.Clicks.IPHashSalt)
	limiter := ratelimit.NewSlidingWindowLimiter(redisClient, cfg.RateLimit.Limit, cfg.RateLimit.Window, logger)

	geo := geoip.New(geoip.Config{
		DatabaseURL:    cfg.GeoIP.DatabaseURL,
		MinSizeBytes:   cfg.GeoIP.MinSizeBytes,
		FetchTimeout:   cfg.GeoIP.FetchTimeout,
		RetryCooldown:  cfg.GeoIP.RetryCooldown,
		CacheTTL:       cfg.GeoIP.CacheTTL,
		StaleThreshold: cfg.GeoIP.StaleThreshold,
	}, kv, logger)
	defer func() { _ = geo.Close() }()

	emitter := clicks.NewEmitter(cfg.Clicks.Brokers, cfg.Clicks.Topic, logger)
	recorder := clicks.NewRecorder(
		dedup.New(kv, cfg.Clicks.DedupTTL, logger),
		geo,
		emitter,
		hasher,
		cfg.Clicks.RecordTimeout,
		logger,
	)

	redirects := handler.NewRedirectHandler(engine, recorder, logger)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", handler.Health).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/expired", handler.ExpiredPage).Methods(http.MethodGet)
	r.HandleFunc("/not-found", handler.NotFoundPage).Methods(http.MethodGet)

	slugChain := middleware.Metrics(
		middleware.RateLimit(limiter, hasher)(http.HandlerFunc(redirects.Redirect)))
	r.Handle("/{slug:[a-zA-Z0-9_-]+}", slugChain).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("server shutdown incomplete", zap.Error(err))
	}
	// Drain in-flight click processing before closing the broker connection.
	if err := recorder.Close(ctx); err != nil {
		logger.Warn("click pipeline drain incomplete", zap.Error(err))
	}
	if err := emitter.Close(); err != nil {
		logger.Warn("emitter close failed", zap.Error(err))
	}
	logger.Info("gateway stopped")
	return nil
}
