// Command bot runs the subscription seller: the Telegram chat surface, the
// provider webhook server, and the background sweeps, all in one process.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"subgate/internal/api/handlers"
	"subgate/internal/billing"
	"subgate/internal/bot"
	"subgate/internal/config"
	"subgate/internal/core"
	"subgate/internal/db"
	"subgate/internal/external"
	"subgate/internal/notifications"
	"subgate/internal/payments"
	"subgate/internal/scheduler"
	"subgate/internal/subscriptions"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	userRepo := db.NewUserRepository(pool)
	paymentRepo := db.NewPaymentRepository(pool)
	subscriptionRepo := db.NewSubscriptionRepository(pool)
	catalog := billing.NewStaticCatalog()

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token.Unmask())
	if err != nil {
		return fmt.Errorf("initializing telegram bot: %w", err)
	}
	logger.Info("telegram bot authorized", "username", botAPI.Self.UserName)

	provider := external.NewYooKassaClient(
		&http.Client{Timeout: cfg.Provider.Timeout},
		external.YooKassaConfig{
			ShopID:    cfg.Provider.ShopID,
			SecretKey: cfg.Provider.SecretKey,
			BaseURL:   cfg.Provider.BaseURL,
			Logger:    logger,
		},
	)

	sink := notifications.NewTelegramSink(botAPI, logger)
	subSvc := subscriptions.NewService(subscriptionRepo, catalog, logger)
	extStore := payments.NewPgxExtensionStore(pool, catalog, logger)
	paySvc := payments.NewService(
		paymentRepo, extStore, provider, catalog, sink, cfg.Provider.ReturnURL, logger,
	)

	server, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	server.HealthProbes = []core.HealthProbe{core.DatabaseProbe{Pool: pool}}
	server.RouteRegistrars = []core.RouteRegistrar{
		handlers.NewWebhookHandler(paySvc, logger).RegisterRoutes,
	}
	server.MountRoutes()

	httpSrv := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweeper := scheduler.NewSweeper(subSvc, paySvc, paymentRepo, cfg.Sweep.Interval, logger)
	chat := bot.NewHandler(botAPI, userRepo, paySvc, subSvc, catalog, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("webhook server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("webhook server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := sweeper.Run(ctx); !errors.Is(err, context.Canceled) {
			return fmt.Errorf("sweeper: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := chat.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("telegram poller: %w", err)
		}
		return nil
	})

	logger.Info("service started", "environment", cfg.Environment)

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("service stopped")
	return nil
}

// newLogger builds the process-wide structured logger. Production gets JSON
// output; development gets the human-readable text handler.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// newPool opens a pgx connection pool with the configured tuning and
// verifies connectivity before the process commits to starting.
func newPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}

	pc.MaxConns = int32(cfg.MaxConns)
	pc.MinConns = int32(cfg.MinConns)
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	pc.ConnConfig.ConnectTimeout = cfg.AcquireTimeout

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}
