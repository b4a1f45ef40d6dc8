package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/edulane/scoring-review-service/internal/models"
	"github.com/edulane/scoring-review-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{db: db}
}

func (r *repository) Question() repositories.QuestionRepository {
	return &questionRepository{db: r.db}
}

func (r *repository) Score() repositories.ScoreRepository {
	return &scoreRepository{db: r.db}
}

// ===== QUESTION REPOSITORY =====

type questionRepository struct {
	db *gorm.DB
}

func (r *questionRepository) GetDocument(ctx context.Context, questionID uint) (*models.QuestionDocument, error) {
	var question models.Question
	err := r.db.WithContext(ctx).
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("student_responses.id ASC")
		}).
		First(&question, questionID).Error
	if err != nil {
		return nil, err
	}

	return documentFromRows(&question)
}

func (r *questionRepository) GetDefaultDocument(ctx context.Context) (*models.QuestionDocument, uint, error) {
	var question models.Question
	err := r.db.WithContext(ctx).
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("student_responses.id ASC")
		}).
		Order("questions.id ASC").
		First(&question).Error
	if err != nil {
		return nil, 0, err
	}

	doc, err := documentFromRows(&question)
	if err != nil {
		return nil, 0, err
	}
	return doc, question.ID, nil
}

func (r *questionRepository) SaveDocument(ctx context.Context, doc *models.QuestionDocument) (uint, error) {
	var questionID uint

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		modelAnswer, err := json.Marshal(doc.ModelAnswer)
		if err != nil {
			return fmt.Errorf("failed to serialize model answer: %w", err)
		}

		question := models.Question{
			Content:        doc.Question,
			AssignmentName: doc.AssignmentName,
			ModelAnswer:    modelAnswer,
		}
		if err := tx.Create(&question).Error; err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}
		questionID = question.ID

		for i := range doc.StudentResponses {
			row, err := responseToRow(question.ID, &doc.StudentResponses[i])
			if err != nil {
				return err
			}
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("failed to create student response: %w", err)
			}
			// Session score lookups must target the persisted rows
			doc.StudentResponses[i].ID = int(row.ID)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return questionID, nil
}

// ===== SCORE REPOSITORY =====

type scoreRepository struct {
	db *gorm.DB
}

func (r *scoreRepository) SaveTeacherScores(ctx context.Context, scores []models.ScoreSubmission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range scores {
			payload, err := json.Marshal(item.Score)
			if err != nil {
				return fmt.Errorf("failed to serialize teacher score: %w", err)
			}

			result := tx.Model(&models.StudentResponseRow{}).
				Where("id = ?", item.StudentID).
				Update("teacher_score", payload)
			if result.Error != nil {
				return fmt.Errorf("failed to save teacher score for response %d: %w", item.StudentID, result.Error)
			}
			if result.RowsAffected == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	})
}

func (r *scoreRepository) MarkSubmitted(ctx context.Context, questionID uint) error {
	return r.db.WithContext(ctx).
		Model(&models.StudentResponseRow{}).
		Where("question_id = ?", questionID).
		Update("submitted", true).Error
}

// ===== ROW MAPPING =====

func documentFromRows(question *models.Question) (*models.QuestionDocument, error) {
	doc := &models.QuestionDocument{
		Question:       question.Content,
		AssignmentName: question.AssignmentName,
	}

	if err := json.Unmarshal(question.ModelAnswer, &doc.ModelAnswer); err != nil {
		return nil, fmt.Errorf("corrupt model answer for question %d: %w", question.ID, err)
	}

	for i := range question.Responses {
		row := &question.Responses[i]
		response := models.StudentResponse{
			ID:         int(row.ID),
			Name:       row.StudentName,
			Confidence: row.Confidence,
		}

		if err := json.Unmarshal(row.Response, &response.Response); err != nil {
			return nil, fmt.Errorf("corrupt response for row %d: %w", row.ID, err)
		}
		if err := json.Unmarshal(row.AIScore, &response.AIScore); err != nil {
			return nil, fmt.Errorf("corrupt ai score for row %d: %w", row.ID, err)
		}
		if len(row.FeatureImportance) > 0 {
			if err := json.Unmarshal(row.FeatureImportance, &response.FeatureImportance); err != nil {
				return nil, fmt.Errorf("corrupt feature importance for row %d: %w", row.ID, err)
			}
		}
		if len(row.SimilarResponses) > 0 {
			if err := json.Unmarshal(row.SimilarResponses, &response.SimilarResponses); err != nil {
				return nil, fmt.Errorf("corrupt similar responses for row %d: %w", row.ID, err)
			}
		}

		doc.StudentResponses = append(doc.StudentResponses, response)
	}

	return doc, nil
}

func responseToRow(questionID uint, response *models.StudentResponse) (*models.StudentResponseRow, error) {
	answer, err := json.Marshal(response.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize response: %w", err)
	}
	aiScore, err := json.Marshal(response.AIScore)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize ai score: %w", err)
	}
	importance, err := json.Marshal(response.FeatureImportance)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize feature importance: %w", err)
	}

	row := &models.StudentResponseRow{
		QuestionID:        questionID,
		StudentName:       response.Name,
		Response:          answer,
		AIScore:           aiScore,
		Confidence:        response.Confidence,
		FeatureImportance: importance,
	}

	if len(response.SimilarResponses) > 0 {
		similar, err := json.Marshal(response.SimilarResponses)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize similar responses: %w", err)
		}
		row.SimilarResponses = similar
	}

	return row, nil
}
