package events

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
)

type ScoringEventType string

const (
	// EventScoresSaved fires on a best-effort save of the current teacher scores.
	EventScoresSaved ScoringEventType = "scoring.scores_saved"
	// EventScoresSubmitted fires when a score batch is finalized.
	EventScoresSubmitted ScoringEventType = "scoring.scores_submitted"
	// EventDocumentImported fires when a spreadsheet import replaces the
	// active question document.
	EventDocumentImported ScoringEventType = "scoring.document_imported"
)

// ScoringEvent is the payload published to downstream consumers (gradebook
// sync, notification service). It carries counts rather than the scores
// themselves; consumers that need score data read it from storage.
type ScoringEvent struct {
	ID        string           `json:"id"`
	Type      ScoringEventType `json:"type"`
	Source    string           `json:"source"`
	Version   string           `json:"version"`
	Timestamp time.Time        `json:"timestamp"`

	QuestionID   uint `json:"question_id"`
	StudentCount int  `json:"student_count"`
	ScoredCount  int  `json:"scored_count"`
}

func NewScoringEvent(eventType ScoringEventType, questionID uint, studentCount, scoredCount int) *ScoringEvent {
	return &ScoringEvent{
		ID:           watermill.NewUUID(),
		Type:         eventType,
		Source:       "scoring-review-service",
		Version:      "1.0",
		Timestamp:    time.Now().UTC(),
		QuestionID:   questionID,
		StudentCount: studentCount,
		ScoredCount:  scoredCount,
	}
}
