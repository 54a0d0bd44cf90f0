package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dialog-bot/internal/bot"
	"dialog-bot/internal/config"
	"dialog-bot/internal/dialog"
	"dialog-bot/internal/storage"
	storageredis "dialog-bot/internal/storage/redis"
	"dialog-bot/pkg/redis"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot (the default command)",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, zapLogger, err := bootstrap()
	if err != nil {
		return err
	}
	defer zapLogger.Sync()

	ctx := cmd.Context()

	store, err := openStore(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Error("Failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
		return err
	}
	defer store.Close()

	hello, err := dialog.NewHello(zapLogger)
	if err != nil {
		zapLogger.Error("Failed to build dialog", zap.Error(err))
		return err
	}

	tgBot, err := bot.New(cfg, hello, store, zapLogger)
	if err != nil {
		zapLogger.Error("Failed to create bot", zap.Error(err))
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           tgBot.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tgBot.Start(gctx)
	})
	g.Go(func() error {
		zapLogger.Info("Listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		zapLogger.Error("Bot stopped with error", zap.Error(err))
		return err
	}

	zapLogger.Info("Bot shutdown gracefully")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	switch cfg.StoreDriver {
	case storage.DriverMemory:
		return storage.NewMemory(), nil

	case storage.DriverPostgres:
		pg, err := storage.NewPostgresStorage(ctx, cfg.Database.Postgres(), log)
		if err != nil {
			return nil, err
		}
		return pg, nil

	case storage.DriverRedis:
		client := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		if err := client.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return storageredis.New(client, cfg.Redis.TTL, log), nil

	default:
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownDriver, cfg.StoreDriver)
	}
}
