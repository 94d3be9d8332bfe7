package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rpggio/phasetrack/internal/app"
	"github.com/rpggio/phasetrack/internal/catalog"
	"github.com/rpggio/phasetrack/internal/config"
	"github.com/rpggio/phasetrack/internal/events"
	"github.com/rpggio/phasetrack/internal/ratelimit"
	"github.com/rpggio/phasetrack/internal/storage"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "phasetrack",
	Short:         "Product planning progress tracker",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and MCP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger, closeLog := newLogger(cfg.Log, os.Stdout)
	defer closeLog()

	cat, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Store, true, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	publisher, closePublisher, err := newPublisher(cfg.Events, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	limiter, closeLimiter := newRateLimiter(cfg.RateLimit, logger)
	defer closeLimiter()

	services := app.NewServices(store, cat, publisher, logger)
	handler := services.Handler(app.HandlerOptions{
		Auth:       cfg.Auth,
		RateLimit:  limiter,
		Ready:      store.Ping,
		MCPEnabled: cfg.Server.MCPEnabled,
		Version:    version,
		Logger:     logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			"addr", addr,
			"store", store.Driver,
			"auth", cfg.Auth.Enabled,
			"mcp", cfg.Server.MCPEnabled,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer, cfg.Server.ShutdownTimeout)
	return nil
}

func loadCatalog(cfg config.CatalogConfig) (*catalog.Catalog, error) {
	if cfg.Path == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

func newPublisher(cfg config.EventsConfig, logger *slog.Logger) (events.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		return events.NopPublisher{}, func() {}, nil
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		return nil, nil, fmt.Errorf("connect amqp: %w", err)
	}
	logger.Info("publishing events", "exchange", cfg.Exchange)
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.Warn("close amqp publisher", "error", err)
		}
	}, nil
}

func newRateLimiter(cfg config.RateLimitConfig, logger *slog.Logger) (func(http.Handler) http.Handler, func()) {
	if !cfg.Enabled {
		return nil, func() {}
	}
	if cfg.Store == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		limiter := ratelimit.New(ratelimit.NewRedisStore(rdb, "phasetrack:ratelimit:"), cfg.Window, cfg.Max, logger)
		return limiter.Middleware, func() { _ = rdb.Close() }
	}
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), cfg.Window, cfg.Max, logger)
	return limiter.Middleware, func() {}
}

func waitForShutdown(logger *slog.Logger, server *http.Server, timeout time.Duration) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// newLogger builds the process logger. A configured log path replaces out
// with a size-capped file.
func newLogger(cfg config.LogConfig, out io.Writer) (*slog.Logger, func()) {
	closeFn := func() {}
	if cfg.Path != "" {
		fileWriter, file, err := newLogFileWriter(cfg.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
		} else {
			out = fileWriter
			closeFn = func() { _ = file.Close() }
		}
	}

	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler), closeFn
}

func parseLogLevel(level string) slog.Level {
	switch level {
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
