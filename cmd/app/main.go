package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"chatrelay/internal/chat"
	"chatrelay/internal/config"
	"chatrelay/internal/credential"
	"chatrelay/internal/dispatch"
	"chatrelay/internal/fallback"
	"chatrelay/internal/gemini"
	"chatrelay/internal/httpserver"
	"chatrelay/internal/observability"
	"chatrelay/internal/prompts"
	"chatrelay/internal/session"
	"chatrelay/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.ServiceName, cfg.AppEnv)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, observability.TracingConfig{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Prod:        cfg.IsProd(),
	}, logger)
	if err != nil {
		logger.Error("tracing setup failed", slog.String("error", err.Error()))
	}

	configErr := cfg.Validate()
	if configErr != nil {
		// процесс стартует, чтобы /api/test-env показал, чего не хватает
		logger.Error("configuration incomplete", slog.String("error", configErr.Error()))
	}

	metrics := observability.NewMetrics()

	catalog, err := prompts.Load(cfg.PromptsPath)
	if err != nil {
		logger.Error("failed to load prompts", slog.String("path", cfg.PromptsPath), slog.String("error", err.Error()))
	}

	store, closeStore, storeErr := openStore(ctx, cfg.Store, logger)
	defer closeStore()

	keys := cfg.Gemini.Credentials()
	pool := credential.FromStrings(keys, credential.WithOverloadObserver(metrics.SetOverloaded))
	metrics.SetPoolSize(pool.Size())

	httpClient := transport.NewHTTPClient(cfg.RequestTimeout, "key")
	geminiClient := gemini.NewClient(cfg.Gemini, httpClient)
	model := gemini.Describe(geminiClient.Model())
	if !model.Known {
		logger.Warn("unknown gemini model, requests are sent as configured", slog.String("model", model.ID))
	}
	logger.Info("credential pool ready",
		slog.Int("credentials", pool.Size()),
		slog.String("model", model.Name))

	engine := dispatch.NewEngine(dispatch.Config{
		Pool:      pool,
		Generator: geminiClient,
		Fallback:  fallback.NewResponder(personaVoices(catalog), fallback.DefaultMarker),
		Budget:    cfg.PromptBudget,
		Logger:    logger,
		Metrics:   metrics,
	})

	svc := chat.NewService(chat.ServiceConfig{
		Store:      store,
		Prompts:    catalog,
		Dispatcher: engine,
		StoreErr:   storeErr,
		ConfigErr:  configErr,
		Logger:     logger,
	})

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Logger:  logger,
		Service: svc,
		EnvReport: func() any {
			return struct {
				config.EnvReport
				Pool  credential.Snapshot `json:"credentialPool"`
				Model gemini.ModelInfo    `json:"model"`
			}{cfg.Report(), pool.Snapshot(), model}
		},
		Metrics:         metrics,
		CORSOrigins:     cfg.CORSAllowOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		ServiceName:     cfg.ServiceName,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout*time.Duration(max(pool.Size(), 1)) + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server starting", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// openStore подключает хранилище сессий выбранного типа. Ошибка конфигурации
// или подключения не останавливает процесс: операции чата вернут ErrConfiguration.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (session.Store, func(), error) {
	noop := func() {}
	if err := cfg.Validate(); err != nil {
		return nil, noop, err
	}

	switch cfg.Backend {
	case config.StoreBackendMemory:
		store := session.NewMemoryStore(cfg.SessionTTL)
		if cfg.SessionTTL > 0 {
			go sweepExpired(ctx, store, cfg.SessionTTL, logger)
		}
		logger.Info("session store ready", slog.String("backend", cfg.Backend))
		return store, noop, nil

	case config.StoreBackendRedis:
		rdb, err := session.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, noop, err
		}
		if err := session.WaitReady(ctx, cfg.Backend, cfg.ConnectWait, func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}); err != nil {
			_ = rdb.Close()
			logger.Error("redis unavailable", slog.String("error", err.Error()))
			return nil, noop, err
		}
		logger.Info("session store ready", slog.String("backend", cfg.Backend))
		return session.NewRedisStore(rdb, cfg.SessionTTL), func() { _ = rdb.Close() }, nil

	default:
		pool, err := session.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		if err := session.WaitReady(ctx, cfg.Backend, cfg.ConnectWait, pool.Ping); err != nil {
			pool.Close()
			logger.Error("postgres unavailable", slog.String("error", err.Error()))
			return nil, noop, err
		}
		store := session.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			logger.Error("schema setup failed", slog.String("error", err.Error()))
			return nil, noop, err
		}
		logger.Info("session store ready", slog.String("backend", cfg.Backend))
		return store, pool.Close, nil
	}
}

func sweepExpired(ctx context.Context, store *session.MemoryStore, ttl time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := store.ClearExpired(ctx, now); n > 0 {
				logger.Debug("expired sessions removed", slog.Int("count", n))
			}
		}
	}
}

func personaVoices(catalog *prompts.Catalog) map[string]fallback.Voice {
	out := make(map[string]fallback.Voice)
	for name, v := range catalog.Voices() {
		switch fallback.Voice(strings.ToLower(v)) {
		case fallback.VoiceHinglish:
			out[name] = fallback.VoiceHinglish
		case fallback.VoiceEnglish:
			out[name] = fallback.VoiceEnglish
		}
	}
	return out
}
