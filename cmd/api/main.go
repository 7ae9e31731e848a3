package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/cache"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/config"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/database"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/events"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/features"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/fraud"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/handler"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/logging"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/metrics"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/middleware"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/realtime"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/service"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/stream"
	"github.com/UtkarshSingh-06/AI-Powered-Payment-Fraud-Detection-System/internal/tracing"
)

var version = "dev"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "fraud-api",
		Short:         "Payment fraud detection API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	tracer, err := tracing.InitTracing(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
		Environment: cfg.Environment,
		Version:     version,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	metrics.StartDBStatsCollector(ctx, db.SQL(), 15*time.Second)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	rules := fraud.DefaultRules()
	rules.Location = loc
	engine := fraud.NewEngine(rules)

	flags := features.NewManager()
	flags.Register(features.DashboardCache, cfg.Cache.Enabled, "Serve analytics dashboards from the cache")
	flags.Register(features.RealtimeAlerts, cfg.Realtime.Enabled, "Push scoring events to WebSocket clients")
	flags.Register(features.DecisionStream, cfg.Kafka.Enabled, "Publish decision log entries to Kafka")

	var dashboardCache cache.Cache
	if cfg.Redis.Enabled {
		rc, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "fraud:")
		if err != nil {
			return err
		}
		defer rc.Close()
		dashboardCache = rc
	} else {
		dashboardCache = cache.NewInMemoryCache()
	}

	bus := events.NewManager(true, logger)
	defer bus.Shutdown()

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)
	enabled := func(name string) func() bool {
		return func() bool { return flags.IsEnabled(name) }
	}
	alerts := realtime.EventHandler(hub, enabled(features.RealtimeAlerts))
	bus.Subscribe(events.EventTransactionScored, alerts)
	bus.Subscribe(events.EventFraudAlert, alerts)
	bus.Subscribe(events.EventTransactionOverridden, alerts)

	if cfg.Kafka.Enabled {
		pub, err := stream.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			return err
		}
		// Drain in-flight handlers before the producer flushes.
		defer func() {
			bus.Shutdown()
			pub.Close(10 * time.Second)
		}()
		decisions := stream.DecisionHandler(pub, enabled(features.DecisionStream))
		bus.Subscribe(events.EventTransactionScored, decisions)
		bus.Subscribe(events.EventTransactionOverridden, decisions)
	}

	svc := service.NewService(db, engine, service.Options{
		Events:   bus,
		Cache:    dashboardCache,
		CacheTTL: cfg.Cache.TTL,
		Flags:    flags,
		Tracer:   tracer,
		Logger:   logger,
	})
	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Server.MaxRequestBodySize,
		Flags:       flags,
		Health:      db,
	})

	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.TracingMiddleware())
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(cfg.Server.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h.Routes(r)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/ws", hub.HandleWebSocket)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting HTTP server",
			zap.String("addr", server.Addr),
			zap.String("database", cfg.Database.Path),
			zap.String("timezone", loc.String()),
			zap.Bool("redis", cfg.Redis.Enabled),
			zap.Bool("kafka", cfg.Kafka.Enabled),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
