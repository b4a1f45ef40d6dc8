package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// AnswerPart is one graded segment of a two-part answer: the fixed sentence
// prefix plus the continuation that gets graded.
type AnswerPart struct {
	Prefix     string `json:"prefix"`
	Completion string `json:"completion"`
}

type TwoPartAnswer struct {
	Part1 AnswerPart `json:"part1" validate:"required"`
	Part2 AnswerPart `json:"part2" validate:"required"`
}

// Score is an AI-produced score. Part scores are 0-1, total is 0-2. The total
// is expected to be part1+part2 but comes from the model as-is and is not
// recomputed here.
type Score struct {
	Part1 float64 `json:"part1" validate:"min=0,max=1"`
	Part2 float64 `json:"part2" validate:"min=0,max=1"`
	Total float64 `json:"total" validate:"min=0,max=2"`
}

type ImportanceLevel string

const (
	ImportanceLow    ImportanceLevel = "low"
	ImportanceMedium ImportanceLevel = "medium"
	ImportanceHigh   ImportanceLevel = "high"
)

func (l ImportanceLevel) Valid() bool {
	switch l {
	case ImportanceLow, ImportanceMedium, ImportanceHigh:
		return true
	}
	return false
}

// WordImportance marks how strongly a token influenced the AI score.
// Display-only data; nothing in this service computes with it.
type WordImportance struct {
	Word       string          `json:"word"`
	Importance ImportanceLevel `json:"importance" validate:"importance_level"`
}

type FeatureImportance struct {
	Part1 []WordImportance `json:"part1"`
	Part2 []WordImportance `json:"part2"`
}

// SimilarResponse is an exemplar answer shown next to a student response for
// comparison.
type SimilarResponse struct {
	Part1 string `json:"part1"`
	Part2 string `json:"part2"`
	Score Score  `json:"score"`
}

type StudentResponse struct {
	ID                int               `json:"id"`
	Name              string            `json:"name"`
	Response          TwoPartAnswer     `json:"response"`
	AIScore           Score             `json:"aiScore"`
	Confidence        int               `json:"confidence"`
	FeatureImportance FeatureImportance `json:"featureImportance"`
	SimilarResponses  []SimilarResponse `json:"similarResponses,omitempty"`
}

// QuestionDocument is the unit of review: one question, its model answer and
// the AI-scored student responses. Response order is display order only;
// identity is carried by StudentResponse.ID, unique within a document.
type QuestionDocument struct {
	Question         string            `json:"question"`
	AssignmentName   string            `json:"assignmentName,omitempty"`
	ModelAnswer      TwoPartAnswer     `json:"modelAnswer"`
	StudentResponses []StudentResponse `json:"studentResponses"`
}

// Response returns the student response with the given id, or nil.
func (d *QuestionDocument) Response(id int) *StudentResponse {
	for i := range d.StudentResponses {
		if d.StudentResponses[i].ID == id {
			return &d.StudentResponses[i]
		}
	}
	return nil
}

// ScoreValue is a teacher-entered score field: either unset or a number.
// The zero value is unset. On the wire it accepts the legacy union the review
// UI sends (a number, a numeric string, or "" for unset) and always emits
// null for unset, so "0" and "not scored yet" can never be confused.
type ScoreValue struct {
	value float64
	set   bool
}

func ScoreOf(v float64) ScoreValue {
	return ScoreValue{value: v, set: true}
}

func UnsetScore() ScoreValue {
	return ScoreValue{}
}

func (s ScoreValue) IsSet() bool {
	return s.set
}

// Value returns the numeric score, or 0 when unset. Check IsSet first when
// the distinction matters.
func (s ScoreValue) Value() float64 {
	return s.value
}

func (s ScoreValue) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

func (s *ScoreValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ScoreValue{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		if str == "" {
			*s = ScoreValue{}
			return nil
		}
		v, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return fmt.Errorf("score value %q is not a number", str)
		}
		*s = ScoreValue{value: v, set: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("score value must be a number, a numeric string or null: %w", err)
	}
	*s = ScoreValue{value: v, set: true}
	return nil
}

// TeacherScore is the human score of record for one student response. Fields
// start unset on document activation and change only through review edits.
type TeacherScore struct {
	Part1 ScoreValue `json:"part1"`
	Part2 ScoreValue `json:"part2"`
	Total ScoreValue `json:"total"`
}

// ScorePart names the field a single score edit targets.
type ScorePart string

const (
	ScorePartOne   ScorePart = "part1"
	ScorePartTwo   ScorePart = "part2"
	ScorePartTotal ScorePart = "total"
)

func (p ScorePart) Valid() bool {
	switch p {
	case ScorePartOne, ScorePartTwo, ScorePartTotal:
		return true
	}
	return false
}

type ScoringStats struct {
	TotalStudents   int `json:"total_students"`
	ScoredStudents  int `json:"scored_students"`
	PendingStudents int `json:"pending_students"`
}

// ScoreSubmission is one entry of the save/submit payload.
type ScoreSubmission struct {
	StudentID int          `json:"student_id"`
	Score     TeacherScore `json:"score"`
}
