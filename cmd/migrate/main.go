// Command migrate moves a user's records out of the deprecated
// one-item-per-memory layout into their consolidated document.
package main

import (
	"context"
	"flag"
	"time"

	"recall-backend/infrastructure/config"
	"recall-backend/infrastructure/di"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	userID := flag.String("user", "", "identifier of the user to migrate")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall migration deadline")
	flag.Parse()

	_ = godotenv.Load()

	if *userID == "" {
		zap.NewExample().Fatal("missing required -user flag")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		zap.NewExample().Fatal("failed to initialize application", zap.Error(err))
	}
	defer container.Shutdown()

	logger := container.Logger
	if err := container.MemoryRepository.MigrateLegacyIfPresent(ctx, *userID); err != nil {
		logger.Fatal("migration failed", zap.String("user_id", *userID), zap.Error(err))
	}
	logger.Info("migration complete", zap.String("user_id", *userID))
}
