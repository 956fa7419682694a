package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/AnshRaj112/echoes-backend/internal/config"
	"github.com/AnshRaj112/echoes-backend/internal/database"
	"github.com/AnshRaj112/echoes-backend/internal/routes"
	"github.com/AnshRaj112/echoes-backend/internal/services"
	"github.com/AnshRaj112/echoes-backend/pkg/logger"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger.Init(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	logrus.Info("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI()); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to PostgreSQL")
	}
	defer database.DisconnectPostgres()

	logrus.Info("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer database.DisconnectRedis()

	services.ConfigureSessions(cfg.SessionSecret, cfg.IsProduction())

	// Attachments go to Cloudinary when credentials are present, otherwise to UPLOAD_DIR
	services.Attachments = services.NewLocalStore(cfg.UploadDir)
	if cfg.CloudinaryEnabled() {
		cld, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			logrus.WithError(err).Warn("Failed to initialize Cloudinary, storing attachments locally")
		} else {
			services.Attachments = cld
			logrus.Info("Cloudinary attachment store enabled")
		}
	} else {
		logrus.WithField("dir", cfg.UploadDir).Info("Storing attachments locally")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes.NewRouter(cfg),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logrus.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Environment}).Info("Echoes backend running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("Graceful shutdown failed")
	}
}
