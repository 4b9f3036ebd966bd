package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/sumarokov-vp/estate-sync/config"
	"github.com/sumarokov-vp/estate-sync/internal/api"
	"github.com/sumarokov-vp/estate-sync/internal/apiclient"
	"github.com/sumarokov-vp/estate-sync/internal/database"
	"github.com/sumarokov-vp/estate-sync/internal/geocoding"
	"github.com/sumarokov-vp/estate-sync/internal/images"
	"github.com/sumarokov-vp/estate-sync/internal/mapper"
	"github.com/sumarokov-vp/estate-sync/internal/property"
	"github.com/sumarokov-vp/estate-sync/internal/scheduler"
	"github.com/sumarokov-vp/estate-sync/internal/syncer"
	"github.com/sumarokov-vp/estate-sync/internal/webhook"
)

func main() {
	// A missing .env is fine, the environment itself still applies.
	godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}
	logger.Infof("Using database at: %s", cfg.DatabasePath)

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	logger.Info("Running database migrations...")
	if err := db.RunMigrations(); err != nil {
		logger.WithError(err).Fatal("Failed to run database migrations")
	}

	client := apiclient.NewClient(cfg.APIBaseURL, cfg.APIKey, logger)
	if !client.IsConfigured() {
		logger.Warn("MLS API is not configured, running local-only")
	}

	attrs := mapper.NewAttributeCache(db, func(ctx context.Context) ([]byte, error) {
		return client.Get(ctx, "/properties/attributes", nil)
	}, logger)
	propertyMapper := mapper.NewMapper(db, logger)

	imageService := images.NewService(db, client, logger)
	syncService := syncer.NewService(db, client, propertyMapper, attrs, imageService, logger, cfg.Sync.PageSize)
	dispatcher := webhook.NewDispatcher(db, syncService, logger)

	geocoder := geocoding.NewGeocoder(cfg.YandexGeocoderKey, logger, filepath.Join(cfg.CacheDir, "geocode"))
	propertyService := property.NewService(db, syncService, client, geocoder, logger, cfg.AutoPush, cfg.DefaultCityCode)

	handler := api.NewHandler(db, logger, propertyService, syncService, imageService, attrs, dispatcher, cfg.WebhookSecret)

	router := gin.Default()
	router.Use(cors.Default())
	api.SetupRoutes(router, handler)

	jobs := scheduler.New(cfg, db, syncService, logger)
	if err := jobs.Start(context.Background()); err != nil {
		logger.WithError(err).Fatal("Failed to start scheduler")
	}
	defer jobs.Stop()

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Infof("Starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		logger.WithError(err).Fatal("Server failed to start")
	}
}
