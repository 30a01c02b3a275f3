package main

import (
	"botdesk/internal/api/handlers"
	"botdesk/internal/app"
	"botdesk/internal/auth"
	"botdesk/internal/clock"
	"botdesk/internal/config"
	"botdesk/internal/logger"
	"botdesk/internal/repository/postgres"
	"botdesk/internal/service/assistant"
	"botdesk/internal/service/chatplatform"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

func main() {
	appConfig, err := config.LoadConfig()
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to load configuration")
	}
	logger.SetLevel(os.Getenv("LOG_LEVEL"))

	database, err := postgres.NewPostgresDB(appConfig.Database)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize database")
	}
	defer database.Close()

	if appConfig.Provider.StubMode {
		logger.Log.Warn("Provider stub mode enabled, no assistant provider calls will be made")
	}

	deps := app.NewConfig(
		database,
		appConfig,
		assistant.NewFactory(appConfig.Provider),
		chatplatform.NewClient(appConfig.Chat),
		clock.Real{},
	)
	tokens := auth.NewTokenManager(appConfig.Auth)

	srv := &http.Server{
		Addr:         ":" + appConfig.Server.Port,
		Handler:      handlers.NewRouter(deps, tokens),
		ReadTimeout:  appConfig.Server.ReadTimeout,
		WriteTimeout: appConfig.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(logrus.Fields{
			"port":         appConfig.Server.Port,
			"poll_timeout": time.Duration(appConfig.Runs.MaxPollAttempts) * appConfig.Runs.PollInterval,
		}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Fatal("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
		return
	}
	logger.Log.Info("Server stopped")
}
