package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"fashion-fit-bot/internal/config"
	"fashion-fit-bot/internal/gemini"
	"fashion-fit-bot/internal/handlers"
	"fashion-fit-bot/internal/httpclient"
	"fashion-fit-bot/internal/mediagroup"
	"fashion-fit-bot/internal/session"
	"fashion-fit-bot/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := cfg.ValidateBot(); err != nil {
		panic(err)
	}

	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
		Logger:     debugLogger(cfg, logger),
	})

	tg, err := telegram.New(telegram.Options{
		Token:            cfg.TelegramToken,
		HTTPClient:       httpClient,
		Logger:           logger,
		Debug:            cfg.Debug,
		MaxDownloadBytes: cfg.MaxUploadBytes,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gen, err := gemini.New(ctx, gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		Model:      cfg.GeminiModel,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("gemini init failed", "err", err)
		os.Exit(1)
	}

	sessions := session.NewStore(session.Options{
		IdleTTL: cfg.SessionIdleTTL,
	})

	handler := handlers.New(handlers.Options{
		Telegram:  tg,
		Generator: gen,
		Sessions:  sessions,
		Logger:    logger,
	})

	// Each update, album and generation holds one slot until it finishes.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(cfg.MaxConcurrent + 1)

	eg.Go(func() error {
		pruneSessions(egCtx, sessions, logger)
		return nil
	})

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce: cfg.MediaGroupDebounce,
		OnFlush: func(album mediagroup.Album) {
			eg.Go(func() error {
				reqCtx, cancel := context.WithTimeout(egCtx, cfg.RequestTimeout)
				defer cancel()

				handler.HandleAlbum(reqCtx, album)
				return nil
			})
		},
	})
	defer aggregator.Close()
	handler.SetMediaGroupAggregator(aggregator)

	logger.Info("bot started",
		"username", tg.Username(),
		"model", gen.Model(),
		"max_concurrent", cfg.MaxConcurrent,
	)

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})

	for {
		select {
		case <-egCtx.Done():
			logger.Info("shutting down")
			tg.StopUpdates()
			aggregator.Close()
			_ = eg.Wait()
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				stop()
				_ = eg.Wait()
				return
			}

			eg.Go(func() error {
				reqCtx, cancel := context.WithTimeout(egCtx, cfg.RequestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
				return nil
			})
		}
	}
}

func pruneSessions(ctx context.Context, sessions *session.Store, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Prune(); n > 0 {
				logger.Debug("idle sessions pruned", "count", n, "remaining", sessions.Len())
			}
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}

func debugLogger(cfg config.Config, logger *slog.Logger) *slog.Logger {
	if !cfg.Debug {
		return nil
	}
	return logger.With("component", "http")
}
