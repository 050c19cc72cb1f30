package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/DanielTwine/smartshare/internal/config"
	"github.com/DanielTwine/smartshare/internal/db"
	"github.com/DanielTwine/smartshare/internal/handlers"
	"github.com/DanielTwine/smartshare/internal/logger"
	"github.com/DanielTwine/smartshare/internal/middleware"
	"github.com/DanielTwine/smartshare/internal/services"
	"github.com/DanielTwine/smartshare/internal/storage"
	"github.com/DanielTwine/smartshare/internal/store"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET must be set")
	}

	mongoDB, err := db.Connect(cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}

	blobs, err := storage.NewMinioStorage(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		logger.Fatal("failed to connect to MinIO", zap.Error(err))
	}

	shareStore := store.NewMongoStore(mongoDB)
	vault := services.NewVault(shareStore, blobs, cfg.BaseURL)
	authService := services.NewAuthService(mongoDB, cfg.JWTSecret)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	janitor := services.NewJanitor(shareStore, blobs, cfg.JanitorInterval, cfg.JanitorRetention)
	janitor.Start(ctx)

	app := fiber.New()
	app.Use(fiberlogger.New())
	app.Use(cors.New())

	handlers.RegisterRoutes(app,
		handlers.NewFileHandler(vault),
		handlers.NewAuthHandler(authService),
		middleware.Auth(cfg.JWTSecret))

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		_ = app.Shutdown()
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}

	janitor.Wait()
}
