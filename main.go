package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	apiServer "clinsight/internal/api"
	"clinsight/internal/config"
	"clinsight/internal/container"
	"clinsight/internal/logging"
	"clinsight/ui"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.NewZapLogger(appConfig.Logging)
	defer logger.Sync()

	c, err := container.New(appConfig, logger)
	if err != nil {
		logger.Fatal("failed to create container", zap.Error(err))
	}
	if err := c.Init(context.Background()); err != nil {
		logger.Fatal("failed to initialize container", zap.Error(err))
	}
	defer c.Shutdown(context.Background())

	server := apiServer.NewServer(c.Composer, c.PrivacyEngine, c.Reports, logger)

	console, err := ui.NewConsole(c.Reports, c.PrivacyEngine, appConfig.Server.GinMode, logger)
	if err != nil {
		logger.Fatal("failed to initialize console", zap.Error(err))
	}

	go func() {
		if err := console.Start(appConfig.Server.ConsolePort); err != nil {
			logger.Error("console stopped", zap.Error(err))
		}
	}()

	logger.Info("clinsight starting",
		zap.String("source", appConfig.Source.Kind),
		zap.String("api_port", appConfig.Server.APIPort),
		zap.String("console_port", appConfig.Server.ConsolePort),
		zap.Float64("privacy_budget", appConfig.Privacy.TotalBudget))

	if err := server.Start(appConfig.Server.APIPort); err != nil {
		logger.Fatal("API server stopped", zap.Error(err))
	}
}
