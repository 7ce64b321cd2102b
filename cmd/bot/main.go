package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	appealrouter "github.com/set-night/appealrouter"
	"github.com/set-night/appealrouter/internal/config"
	"github.com/set-night/appealrouter/internal/handler"
	"github.com/set-night/appealrouter/internal/metrics"
	"github.com/set-night/appealrouter/internal/middleware"
	"github.com/set-night/appealrouter/internal/repository"
	"github.com/set-night/appealrouter/internal/service"
	"github.com/set-night/appealrouter/internal/telegram"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("bot exited with error", "error", err)
		os.Exit(1)
	}
	slog.Info("bot stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config) error {
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Load persisted state
	registry := service.NewGroupRegistry(store)
	if err := registry.Load(ctx); err != nil {
		return fmt.Errorf("load groups: %w", err)
	}
	cache := service.NewAppealCache(store)
	if err := cache.Load(ctx); err != nil {
		return fmt.Errorf("load appeals: %w", err)
	}
	slog.Info("state loaded",
		"merchant_groups", len(registry.ListMerchants()),
		"trader_groups", len(registry.ListTraders()),
		"open_appeals", cache.Len(),
	)

	// Handler pointer for use in default handler closure
	var h *handler.Handler

	// Create bot
	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(),
			middleware.Logging(),
			middleware.RateLimit(middleware.NewChatLimiter(cfg.RateLimitPerMinute), registry.IsMerchant),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			h.HandleMessage(ctx, b, update)
		}),
	}

	b, err := bot.New(cfg.BotToken, opts...)
	if err != nil {
		return fmt.Errorf("create bot: %w", err)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("get bot info: %w", err)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	// Initialize telegram logger
	tgLogger := telegram.NewTelegramLogger(b, cfg)

	// Initialize services
	appeals := service.NewAppealService(service.AppealDeps{
		Messenger: telegram.NewMessenger(b),
		Status:    service.NewStatusClient(cfg.StatusAPIURL, service.NewStatusHTTPClient(cfg)),
		Registry:  registry,
		Cache:     cache,
		Stash:     service.NewMediaStash(config.MediaStashTTL),
		Matcher:   service.NewMatcher(cfg.MultiWordNicknames),
		Reporter:  tgLogger,
		Policy:    service.DefaultAppealPolicy(),
	})

	// Initialize handler
	h = handler.New(handler.Deps{
		Bot:         b,
		Cfg:         cfg,
		Registry:    registry,
		Appeals:     appeals,
		TgLogger:    tgLogger,
		BotUsername: me.Username,
	})

	// Register all handlers
	h.Register()

	g, gctx := errgroup.WithContext(ctx)

	// Start reminder scheduler
	scheduler := service.NewReminderScheduler(appeals, config.SweepPeriod)
	g.Go(func() error {
		return scheduler.Run(gctx)
	})

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			metrics.Serve(gctx, cfg.MetricsAddr)
			return nil
		})
	}

	// Start bot
	g.Go(func() error {
		slog.Info("starting bot", "username", me.Username, "id", me.ID)
		b.Start(gctx)
		return nil
	})

	return g.Wait()
}

// openStore returns the document store selected by STORAGE_DRIVER and a
// function releasing its resources.
func openStore(ctx context.Context, cfg *config.Config) (service.DocumentStore, func(), error) {
	if cfg.StorageDriver != config.StoragePostgres {
		store, err := repository.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open file store: %w", err)
		}
		slog.Info("using file storage", "dir", cfg.DataDir)
		return store, func() {}, nil
	}

	migrations, err := fs.Sub(appealrouter.MigrationsFS, "migrations")
	if err != nil {
		return nil, nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	store, err := repository.OpenPostgres(ctx, cfg.DatabaseURL, migrations)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres store: %w", err)
	}
	slog.Info("using postgres storage")
	return store, store.Close, nil
}
