package repositories

import (
	"context"
	"errors"

	"github.com/edulane/scoring-review-service/internal/models"
	"gorm.io/gorm"
)

// Repository bundles the persistence collaborators of the review core.
type Repository interface {
	Question() QuestionRepository
	Score() ScoreRepository
}

type QuestionRepository interface {
	// GetDocument loads a question and its responses as a review document.
	GetDocument(ctx context.Context, questionID uint) (*models.QuestionDocument, error)

	// GetDefaultDocument loads the oldest stored question, used when the
	// review UI opens without a question selected. Returns the question id
	// alongside the document.
	GetDefaultDocument(ctx context.Context) (*models.QuestionDocument, uint, error)

	// SaveDocument persists an imported document. Response ids in doc are
	// rewritten in place to the stored row ids so that score lookups keep
	// working against the persisted rows.
	SaveDocument(ctx context.Context, doc *models.QuestionDocument) (uint, error)
}

type ScoreRepository interface {
	// SaveTeacherScores upserts the teacher score of each listed response.
	// Safe to call repeatedly with the same payload.
	SaveTeacherScores(ctx context.Context, scores []models.ScoreSubmission) error

	// MarkSubmitted finalizes the score batch of the given question.
	MarkSubmitted(ctx context.Context, questionID uint) error
}

// IsNotFoundError checks if error represents a missing row
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
