package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"userdirectory/docs"
	"userdirectory/internal/auth"
	"userdirectory/internal/cache"
	"userdirectory/internal/config"
	"userdirectory/internal/db"
	"userdirectory/internal/handler"
	"userdirectory/internal/logger"
	"userdirectory/internal/model"
	"userdirectory/internal/repository"
	"userdirectory/internal/router"
	"userdirectory/internal/service"
)

// @title User Directory API
// @version 1.0
// @description User records with validation, normalization and JWT authentication.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if err := logger.Setup(cfg.LogLevel, cfg.LogFormat); err != nil {
		logrus.Fatalf("logger: %v", err)
	}

	userRepo, closeStore, err := openUserRepository(ctx, cfg)
	if err != nil {
		logrus.Fatalf("database init: %v", err)
	}
	defer closeStore()

	cacheClient := cache.New(cache.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
		Prefix:   "userdirectory:",
	})
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		logrus.WithError(err).Warn("redis unreachable, continuing without cache")
	}

	jwtService := auth.NewJWTService(cfg.JWTSecret)
	tokenStore := auth.NewTokenStore(cacheClient)

	userService := service.NewUserService(userRepo, cacheClient, model.NewValidator())
	authService := service.NewAuthService(userRepo, jwtService, tokenStore)

	userHandler := handler.NewUserHandler(userService)
	authHandler := handler.NewAuthHandler(authService)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, jwtService, tokenStore, userHandler, authHandler)

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}
	logrus.Infof("Swagger documentation available at: http://%s/swagger/index.html", docs.SwaggerInfo.Host)

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server start: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("server shutdown")
	}
}

// openUserRepository picks the storage backend named by DB_DRIVER.
func openUserRepository(ctx context.Context, cfg *config.Config) (repository.UserRepository, func(), error) {
	if cfg.DBDriver == db.DriverMongo {
		mongoDB, err := db.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		if cfg.ResetDB {
			logrus.Warn("RESET_DB=true detected, dropping users collection")
			if err := mongoDB.Collection(repository.UsersCollection).Drop(ctx); err != nil {
				return nil, nil, err
			}
		}
		if err := repository.EnsureUserIndexes(ctx, mongoDB); err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
				logrus.WithError(err).Warn("mongo disconnect")
			}
		}
		return repository.NewMongoUserRepository(mongoDB), closeFn, nil
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(gormDB, cfg.ResetDB); err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return repository.NewUserRepository(gormDB), closeFn, nil
}
