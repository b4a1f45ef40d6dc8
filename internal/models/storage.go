package models

import (
	"time"

	"gorm.io/datatypes"
)

// Question is the persisted form of a question plus its model answer. The
// answer keeps the jsonb layout of the review UI so rows round-trip through
// QuestionDocument without a mapping table.
type Question struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	Content        string         `json:"content" gorm:"not null;type:text"`
	AssignmentName string         `json:"assignment_name" gorm:"size:200"`
	ModelAnswer    datatypes.JSON `json:"model_answer" gorm:"not null;type:jsonb"` // TwoPartAnswer

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Responses []StudentResponseRow `json:"responses" gorm:"foreignKey:QuestionID"`
}

func (Question) TableName() string {
	return "questions"
}

// StudentResponseRow is the persisted form of one AI-scored student response.
// Structured fields are jsonb; Submitted flips when a score batch is
// finalized.
type StudentResponseRow struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	QuestionID  uint   `json:"question_id" gorm:"not null;index"`
	StudentName string `json:"student_name" gorm:"not null;size:200"`

	Response          datatypes.JSON `json:"response" gorm:"not null;type:jsonb"`  // TwoPartAnswer
	AIScore           datatypes.JSON `json:"ai_score" gorm:"not null;type:jsonb"`  // Score
	Confidence        int            `json:"confidence" gorm:"not null"`
	FeatureImportance datatypes.JSON `json:"feature_importance" gorm:"type:jsonb"` // FeatureImportance
	SimilarResponses  datatypes.JSON `json:"similar_responses" gorm:"type:jsonb"`  // []SimilarResponse

	TeacherScore datatypes.JSON `json:"teacher_score" gorm:"type:jsonb"` // TeacherScore, null until saved
	Submitted    bool           `json:"submitted" gorm:"default:false;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StudentResponseRow) TableName() string {
	return "student_responses"
}
