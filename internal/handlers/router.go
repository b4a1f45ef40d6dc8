package handlers

import (
	"github.com/edulane/scoring-review-service/internal/config"
	"github.com/edulane/scoring-review-service/internal/services"
	"github.com/edulane/scoring-review-service/internal/utils"
	"github.com/edulane/scoring-review-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type HandlerManager struct {
	scoringHandler *ScoringHandler
}

func NewHandlerManager(
	reviewService services.ReviewService,
	importService services.ImportService,
	validator *validator.Validator,
	cfg *config.Config,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		scoringHandler: NewScoringHandler(reviewService, importService, validator, cfg, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "scoring-review-service",
		})
	})

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		scoring := v1.Group("/scoring")
		{
			// Documents
			scoring.GET("/question-data", hm.scoringHandler.GetQuestionData)
			scoring.POST("/questions/:question_id/activate", hm.scoringHandler.ActivateQuestion)
			scoring.POST("/import", hm.scoringHandler.ImportDocument)

			// CSV artifacts
			scoring.GET("/example-csv", hm.scoringHandler.DownloadExampleCSV)
			scoring.GET("/csv-instructions", hm.scoringHandler.DownloadCSVInstructions)

			// Review session
			scoring.POST("/responses/:response_id/score", hm.scoringHandler.SetScore)
			scoring.POST("/accept-ai-scores", hm.scoringHandler.AcceptAIScores)
			scoring.GET("/stats", hm.scoringHandler.GetStats)

			// Persistence
			scoring.POST("/save-scores", hm.scoringHandler.SaveScores)
			scoring.POST("/submit-scores", hm.scoringHandler.SubmitScores)
		}
	}
}
