package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"limit-tg-bot/internal/config"
	"limit-tg-bot/internal/forcesub"
	"limit-tg-bot/internal/gateway"
	"limit-tg-bot/internal/quota"
	"limit-tg-bot/internal/schedule"
	"limit-tg-bot/internal/telegram"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	var logLevel slog.Level
	switch cfg.Logging.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if cfg.Logging.JSONFormat {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Open stores
	quotaStore, err := quota.NewSQLiteStore(cfg.Storage.Path, quota.Defaults{
		MessageLimit: cfg.Quota.DefaultLimit,
		MuteEnabled:  true,
		MuteTime:     "5m",
	})
	if err != nil {
		logger.Error("failed to open quota store", "error", err)
		os.Exit(1)
	}
	defer quotaStore.Close()

	forceStore, err := forcesub.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		logger.Error("failed to open force-sub store", "error", err)
		os.Exit(1)
	}
	defer forceStore.Close()

	// Initialize Telegram API client and gateway
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error("failed to create bot api", "error", err)
		os.Exit(1)
	}
	gw := gateway.NewTelegram(api, logger)

	// Scheduler for deferred cleanup jobs
	sched := schedule.New(logger)

	reporter := telegram.NewReporter(gw, cfg.Telegram.LogChatID, logger)
	access := telegram.NewAccess(cfg.Telegram.OwnerID, quotaStore, logger)

	tracker := quota.NewTracker(quotaStore, gw, sched, reporter, cfg.Quota.NoticeTTL, logger)
	verifier := forcesub.NewVerifier(forceStore, quotaStore, gw, sched, forcesub.Config{
		MuteDuration: cfg.ForceSub.MuteDuration,
		NoticeTTL:    cfg.ForceSub.NoticeTTL,
		WelcomeTTL:   cfg.ForceSub.WelcomeTTL,
		OwnerID:      cfg.Telegram.OwnerID,
	}, logger)

	updateHandler := telegram.NewHandler(api, gw, access, tracker, verifier, quotaStore, forceStore, reporter, logger)
	bot := telegram.NewBot(api, cfg.Telegram, updateHandler, logger)

	// Create root context with cancellation
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	// WaitGroup for tracking active goroutines
	var wg sync.WaitGroup

	// Start bot in goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := bot.Run(rootCtx); err != nil && err != context.Canceled {
			logger.Error("bot error", "error", err)
		}
	}()

	logger.Info("bot started",
		"owner_id", cfg.Telegram.OwnerID,
		"storage_path", cfg.Storage.Path,
	)

	reporter.Report(rootCtx, "🚀 Bot restarted successfully.")

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutdown signal received", "signal", sig)

	// Cancel root context to signal all goroutines
	rootCancel()

	// Stop deferred jobs before closing stores
	sched.Stop(5 * time.Second)

	// Wait for graceful shutdown with timeout
	shutdownTimeout := 30 * time.Second
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}
}
