package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/edulane/scoring-review-service/internal/config"
	apperrors "github.com/edulane/scoring-review-service/internal/errors"
	"github.com/edulane/scoring-review-service/internal/models"
	"github.com/edulane/scoring-review-service/internal/services"
	"github.com/edulane/scoring-review-service/internal/utils"
	"github.com/edulane/scoring-review-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type ScoringHandler struct {
	BaseHandler
	reviewService services.ReviewService
	importService services.ImportService
	validator     *validator.Validator
	cfg           *config.Config
}

type SetScoreRequest struct {
	Part  string            `json:"part" validate:"required,score_part"`
	Value models.ScoreValue `json:"value"`
}

type SetScoreResponse struct {
	ResponseID int                 `json:"response_id"`
	Score      models.TeacherScore `json:"score"`
	Stats      models.ScoringStats `json:"stats"`
}

type ImportResponse struct {
	AssignmentName string              `json:"assignment_name,omitempty"`
	StudentsLoaded int                 `json:"students_loaded"`
	Stats          models.ScoringStats `json:"stats"`
}

func NewScoringHandler(
	reviewService services.ReviewService,
	importService services.ImportService,
	validator *validator.Validator,
	cfg *config.Config,
	logger utils.Logger,
) *ScoringHandler {
	return &ScoringHandler{
		BaseHandler:   NewBaseHandler(logger),
		reviewService: reviewService,
		importService: importService,
		validator:     validator,
		cfg:           cfg,
	}
}

// GetQuestionData returns the active question document
// @Summary Get question data
// @Description Returns the active question, model answer and AI-scored student responses, loading the default question when no document is active
// @Tags scoring
// @Produce json
// @Success 200 {object} models.QuestionDocument
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /scoring/question-data [get]
func (h *ScoringHandler) GetQuestionData(c *gin.Context) {
	doc := h.reviewService.ActiveDocument()
	if doc == nil {
		var err error
		doc, err = h.reviewService.ActivateDefault(c.Request.Context())
		if err != nil {
			h.handleServiceError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, doc)
}

// ActivateQuestion switches the review session to another stored question
// @Summary Activate question
// @Description Makes the given question the review subject, resetting all teacher scores
// @Tags scoring
// @Produce json
// @Param question_id path uint true "Question ID"
// @Success 200 {object} models.QuestionDocument
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /scoring/questions/{question_id}/activate [post]
func (h *ScoringHandler) ActivateQuestion(c *gin.Context) {
	questionID, err := strconv.ParseUint(c.Param("question_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid question_id",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Activating question", "question_id", questionID)

	doc, err := h.reviewService.ActivateQuestion(c.Request.Context(), uint(questionID))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

// ImportDocument ingests an uploaded CSV/XLSX file and activates it
// @Summary Import spreadsheet
// @Description Parses an uploaded CSV or Excel file into a question document and makes it the review subject
// @Tags scoring
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV or XLSX file"
// @Success 200 {object} SuccessResponse{data=ImportResponse}
// @Failure 400 {object} ErrorResponse
// @Router /scoring/import [post]
func (h *ScoringHandler) ImportDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Missing file upload",
			Details: err.Error(),
		})
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing document", "filename", header.Filename, "size", header.Size)

	doc, err := h.importService.ParseFile(file, header.Filename)
	if err != nil {
		var pe *services.ParseError
		if errors.As(err, &pe) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: pe.Error(),
				Details: pe,
				Code:    string(pe.Kind),
			})
			return
		}
		if errors.Is(err, services.ErrUnsupportedFileFormat) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Unsupported file format, upload a .csv or .xlsx file",
				Details: err.Error(),
			})
			return
		}
		h.RespondWithError(c, http.StatusInternalServerError, "Failed to process file", err)
		return
	}

	doc = h.reviewService.ActivateImported(c.Request.Context(), doc)

	h.RespondWithSuccess(c, http.StatusOK, "Document imported", ImportResponse{
		AssignmentName: doc.AssignmentName,
		StudentsLoaded: len(doc.StudentResponses),
		Stats:          h.reviewService.Stats(),
	})
}

// SetScore applies a single teacher score edit
// @Summary Set score
// @Description Sets one field of a response's teacher score; the total is recomputed when both parts are known
// @Tags scoring
// @Accept json
// @Produce json
// @Param response_id path int true "Response ID"
// @Param score body SetScoreRequest true "Score edit"
// @Success 200 {object} SetScoreResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /scoring/responses/{response_id}/score [post]
func (h *ScoringHandler) SetScore(c *gin.Context) {
	responseID, err := strconv.Atoi(c.Param("response_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid response_id",
			Details: err.Error(),
		})
		return
	}

	var req SetScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: apperrors.ToValidationErrors(err),
		})
		return
	}

	score, err := h.reviewService.SetScore(c.Request.Context(), responseID, models.ScorePart(req.Part), req.Value)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SetScoreResponse{
		ResponseID: responseID,
		Score:      score,
		Stats:      h.reviewService.Stats(),
	})
}

// AcceptAIScores copies every AI score over the teacher scores
// @Summary Accept AI scores
// @Description Overwrites all teacher scores with the AI-suggested scores
// @Tags scoring
// @Produce json
// @Success 200 {object} SuccessResponse{data=models.ScoringStats}
// @Failure 409 {object} ErrorResponse
// @Router /scoring/accept-ai-scores [post]
func (h *ScoringHandler) AcceptAIScores(c *gin.Context) {
	h.LogRequest(c, "Accepting AI scores")

	if err := h.reviewService.AcceptAIScores(c.Request.Context()); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "AI scores accepted", h.reviewService.Stats())
}

// GetStats returns scoring progress for the active document
// @Summary Get scoring stats
// @Tags scoring
// @Produce json
// @Success 200 {object} models.ScoringStats
// @Router /scoring/stats [get]
func (h *ScoringHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.reviewService.Stats())
}

// SaveScores persists the current teacher scores
// @Summary Save scores
// @Description Best-effort persist of the current teacher scores; the session keeps its state on failure
// @Tags scoring
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /scoring/save-scores [post]
func (h *ScoringHandler) SaveScores(c *gin.Context) {
	h.LogRequest(c, "Saving scores")

	if err := h.reviewService.SaveScores(c.Request.Context()); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Scores saved successfully", nil)
}

// SubmitScores persists and finalizes the current teacher scores
// @Summary Submit scores
// @Description Persists the current teacher scores and marks the batch as submitted
// @Tags scoring
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /scoring/submit-scores [post]
func (h *ScoringHandler) SubmitScores(c *gin.Context) {
	h.LogRequest(c, "Submitting scores")

	if err := h.reviewService.SubmitScores(c.Request.Context()); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, "Scores submitted successfully", nil)
}

// DownloadExampleCSV serves the example spreadsheet teachers start from
// @Summary Download example CSV
// @Tags scoring
// @Produce text/csv
// @Success 200 {file} file
// @Router /scoring/example-csv [get]
func (h *ScoringHandler) DownloadExampleCSV(c *gin.Context) {
	c.FileAttachment(h.cfg.ExampleCSVPath, "example.csv")
}

// DownloadCSVInstructions serves the human-readable format instructions
// @Summary Download CSV format instructions
// @Tags scoring
// @Produce text/markdown
// @Success 200 {file} file
// @Router /scoring/csv-instructions [get]
func (h *ScoringHandler) DownloadCSVInstructions(c *gin.Context) {
	c.FileAttachment(h.cfg.CSVInstructionsPath, "csv-format-instructions.md")
}

// handleServiceError maps service errors onto HTTP status codes
func (h *ScoringHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Resource not found",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrNoActiveDocument):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "No active question document",
			Details: err.Error(),
		})
	case services.IsValidation(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrScoreSaveFailed), errors.Is(err, services.ErrScoreSubmitFailed):
		// Session state survives; the teacher can retry
		h.RespondWithError(c, http.StatusBadGateway, "Failed to persist scores, please retry", err)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
