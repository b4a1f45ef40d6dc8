package main

import (
	"log"

	"github.com/edulane/scoring-review-service/internal/cache"
	"github.com/edulane/scoring-review-service/internal/config"
	"github.com/edulane/scoring-review-service/internal/handlers"
	"github.com/edulane/scoring-review-service/internal/models"
	"github.com/edulane/scoring-review-service/internal/repositories/postgres"
	"github.com/edulane/scoring-review-service/internal/services"
	"github.com/edulane/scoring-review-service/internal/utils"
	"github.com/edulane/scoring-review-service/internal/validator"
	"github.com/edulane/scoring-review-service/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var logger utils.Logger
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		logger = utils.NewDefaultLogger()
	} else {
		logger = utils.NewDevelopmentLogger()
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.Question{}, &models.StudentResponseRow{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	publisher, err := cfg.Events.CreateEventPublisher(utils.ToSlogLogger(logger))
	if err != nil {
		log.Fatalf("failed to create event publisher: %v", err)
	}
	defer publisher.Close()

	repo := postgres.NewRepository(db)
	cacheService := cache.NewRedisCache(redisClient)
	v := validator.New()

	reviewService := services.NewReviewService(repo, cacheService, publisher, logger)
	importService := services.NewImportService(logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.LoggerMiddleware(logger))

	handlerManager := handlers.NewHandlerManager(reviewService, importService, v, cfg, logger)
	handlerManager.SetupRoutes(router)

	logger.Info("Starting scoring review service", "port", cfg.Port, "environment", cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
