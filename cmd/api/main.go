// @title                       User Directory API
// @version                     1.0
// @description                 Stores users keyed by US zip code and enriches them with location data.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/99minutos/user-directory/docs"
	"github.com/99minutos/user-directory/internal/api"
	"github.com/99minutos/user-directory/internal/core/ports"
	"github.com/99minutos/user-directory/internal/core/service"
	mongostore "github.com/99minutos/user-directory/internal/infrastructure/db/mongo"
	redisstore "github.com/99minutos/user-directory/internal/infrastructure/db/redis"
	"github.com/99minutos/user-directory/internal/infrastructure/geocoding"
	"github.com/99minutos/user-directory/internal/pkg/config"
	"github.com/99minutos/user-directory/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		bootLog := logger.New(logger.Options{})
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: "user-directory",
	})

	repo, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("store unavailable")
	}
	defer closeStore()

	locations := geocoding.NewClient(geocoding.Config{
		BaseURL: cfg.Weather.BaseURL,
		APIKey:  cfg.Weather.APIKey,
		Timeout: cfg.Weather.Timeout,
	}, log)

	e := api.NewRouter(api.RouterConfig{
		Service:        service.NewUserService(repo, locations, log),
		Store:          repo,
		StoreDriver:    cfg.Store.Driver,
		Logger:         log,
		Environment:    cfg.Env,
		Production:     cfg.IsProduction(),
		JWTSecret:      cfg.AuthJWTSecret,
		AllowedOrigins: cfg.AllowedOrigins(),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Str("store", cfg.Store.Driver).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openStore connects the backend selected by STORE_DRIVER and returns a
// closer for it.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.UserRepository, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		client, err := redisstore.Connect(ctx, redisstore.Config{
			URL:      cfg.Store.URL,
			Username: cfg.Store.Username,
			Password: cfg.Store.Password,
		})
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			if err := client.Close(); err != nil {
				log.Error().Err(err).Msg("redis close failed")
			}
		}
		return redisstore.NewUserRepository(client), closer, nil

	default:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.Store.URL,
			Database: cfg.Store.Database,
			Username: cfg.Store.Username,
			Password: cfg.Store.Password,
		})
		if err != nil {
			return nil, nil, err
		}
		repo := mongostore.NewUserRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn().Err(err).Msg("could not ensure user indexes")
		}
		closer := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				log.Error().Err(err).Msg("mongo disconnect failed")
			}
		}
		return repo, closer, nil
	}
}
