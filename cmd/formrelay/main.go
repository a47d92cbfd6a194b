package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/formrelay/formrelay/internal/config"
	"github.com/formrelay/formrelay/internal/dispatch"
	"github.com/formrelay/formrelay/internal/pipeline"
	"github.com/formrelay/formrelay/internal/server"
	"github.com/formrelay/formrelay/internal/spamgate"
	"github.com/formrelay/formrelay/internal/storage"
	"github.com/formrelay/formrelay/internal/storage/memory"
	"github.com/formrelay/formrelay/internal/storage/sqlite"
	"github.com/formrelay/formrelay/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdownTracer, err := telemetry.InitTracer("formrelay", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	store, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	sender, err := buildSender(cfg.SMTP)
	if err != nil {
		log.Fatalf("Failed to configure mail transport: %v", err)
	}

	dispatcher := dispatch.New(sender, cfg.SMTP.From, cfg.SMTP.Timeout, logger)
	gates := spamgate.NewFactory(cfg.Captcha, &http.Client{}, logger)
	pipe := pipeline.New(gates, dispatcher, store, logger)
	limiter := server.NewRateLimiter(cfg.RateLimit.GlobalPerSecond, cfg.RateLimit.GlobalBurst)

	srv := server.New(cfg.Server.Port, cfg.Server.RequestTimeout, logger)
	submit := server.NewSubmitHandler(cfg, pipe, limiter, logger)
	srv.Router.Post("/api/v1/form/{formID}", submit.Handle)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("formrelay started",
		slog.Int("port", cfg.Server.Port),
		slog.Int("forms", len(cfg.Forms)),
		slog.String("storage", cfg.Storage.Type),
		slog.String("mail_transport", sender.Name()),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case <-sigChan:
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func openStore(cfg config.StorageConfig) (storage.SubmissionStore, error) {
	switch cfg.Type {
	case "memory":
		return memory.New(), nil
	default:
		return sqlite.New(cfg.SQLite.Path)
	}
}

func buildSender(cfg config.SMTPConfig) (dispatch.Sender, error) {
	if cfg.Provider == "stdout" {
		return dispatch.NewStdoutSender(), nil
	}
	return dispatch.NewSMTPSender(cfg)
}

func logLevel(level string) slog.Level {
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
