package main // Entry point package

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/token-registry/internal/config"
	"github.com/iliyamo/token-registry/internal/database"
	"github.com/iliyamo/token-registry/internal/handler"
	"github.com/iliyamo/token-registry/internal/middleware"
	"github.com/iliyamo/token-registry/internal/queue"
	"github.com/iliyamo/token-registry/internal/repository"
	"github.com/iliyamo/token-registry/internal/router"
	"github.com/iliyamo/token-registry/internal/service"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	tokenRepo := repository.NewTokenRepo(db)
	assocRepo := repository.NewAssociationRepo(db)

	tokenSvc := service.NewTokenService(logger, tokenRepo)
	assocSvc := service.NewAssociationService(logger, tokenSvc, assocRepo)

	// Background purge of expired token rows. Validation enforces
	// expiry on its own, so the sweep only reclaims storage.
	sweeper := service.NewSweeper(logger, tokenRepo, cfg.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	// Event consumer appends lifecycle events to the audit log. It
	// reconnects forever on its own.
	go queue.StartConsumer(logger)

	// Redis is optional: a nil client disables the response cache.
	rdb := config.NewRedisClient()
	if rdb == nil {
		logger.Warn("redis unavailable, response cache disabled")
	}
	cache := middleware.NewResponseCache(config.LoadCacheConfig(), rdb)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI: true, LogStatus: true, LogMethod: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))

	router.RegisterRoutes(e)
	router.RegisterTokens(e, handler.NewTokenHandler(logger, tokenSvc))
	router.RegisterAuth(e, handler.NewAuthHandler(logger, tokenSvc))
	router.RegisterAssociations(e, handler.NewAssociationHandler(logger, assocSvc), cache)

	addr := ":" + cfg.Port
	logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
