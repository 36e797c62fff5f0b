package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ishbor_bitrix/internal/bitrix"
	"ishbor_bitrix/internal/config"
	"ishbor_bitrix/internal/logger"
	"ishbor_bitrix/internal/repo"
	"ishbor_bitrix/internal/server"
	"ishbor_bitrix/internal/telegram"
	"ishbor_bitrix/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zl := logger.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		zl.Fatal("pgxpool.New", zap.Error(err))
	}
	defer pool.Close()

	files := repo.NewFilesRepository(pool)
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = files.Migrate(migrateCtx)
	cancel()
	if err != nil {
		zl.Fatal("migrate", zap.Error(err))
	}

	tg, err := telegram.NewClient(
		cfg.Telegram.BotToken,
		cfg.Telegram.APIBaseURL,
		cfg.Telegram.FileBaseURL,
		cfg.Telegram.MetaTimeout,
		cfg.Telegram.DownloadTimeout,
		zl.Named("telegram"),
	)
	if err != nil {
		zl.Fatal("telegram client", zap.Error(err))
	}

	bx := bitrix.NewClient(cfg.Bitrix.WebhookBaseURL, cfg.Bitrix.LookupRetries, zl.Named("bitrix"))

	pipeline := webhook.NewService(bx, tg, files, cfg, zl.Named("webhook"))
	httpServer := server.New(pipeline, files, zl.Named("http"))

	if err := httpServer.Run(ctx, cfg.ListenAddr); err != nil {
		zl.Fatal("http server", zap.Error(err))
	}

	zl.Info("shutdown complete")
}
