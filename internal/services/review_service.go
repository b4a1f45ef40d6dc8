package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edulane/scoring-review-service/internal/cache"
	"github.com/edulane/scoring-review-service/internal/events"
	"github.com/edulane/scoring-review-service/internal/models"
	"github.com/edulane/scoring-review-service/internal/repositories"
	"github.com/edulane/scoring-review-service/internal/utils"
)

const (
	documentCacheKeyPrefix = "scoring:question:"
	documentCacheTTL       = 10 * time.Minute
)

// ReviewService owns the review session: the active question document and the
// teacher score of every student response in it. Activating a document resets
// all teacher scores to unset; there is no merge across activations.
//
// Edits arrive one at a time from a single reviewing teacher; the mutex only
// serializes the HTTP mux on top of that assumption.
type ReviewService interface {
	// ActivateDocument makes doc the review subject and resets all teacher
	// scores. questionID is the storage id, 0 for unpersisted fixtures.
	ActivateDocument(ctx context.Context, questionID uint, doc *models.QuestionDocument)

	// ActivateDefault loads and activates the oldest stored question.
	ActivateDefault(ctx context.Context) (*models.QuestionDocument, error)

	// ActivateQuestion loads and activates a stored question by id.
	ActivateQuestion(ctx context.Context, questionID uint) (*models.QuestionDocument, error)

	// ActivateImported persists an imported document, then activates it.
	// Persistence failure is reported in logs but does not block the review
	// session; the teacher can keep scoring offline.
	ActivateImported(ctx context.Context, doc *models.QuestionDocument) *models.QuestionDocument

	// ActiveDocument returns the current document, or nil.
	ActiveDocument() *models.QuestionDocument

	SetScore(ctx context.Context, responseID int, part models.ScorePart, value models.ScoreValue) (models.TeacherScore, error)
	AcceptAIScores(ctx context.Context) error
	GetScore(responseID int) (models.TeacherScore, error)
	Stats() models.ScoringStats

	SaveScores(ctx context.Context) error
	SubmitScores(ctx context.Context) error
}

type reviewService struct {
	repo      repositories.Repository
	cache     cache.CacheService
	publisher events.EventPublisher
	logger    utils.Logger

	mu         sync.Mutex
	questionID uint
	doc        *models.QuestionDocument
	scores     map[int]models.TeacherScore
}

func NewReviewService(
	repo repositories.Repository,
	cacheService cache.CacheService,
	publisher events.EventPublisher,
	logger utils.Logger,
) ReviewService {
	return &reviewService{
		repo:      repo,
		cache:     cacheService,
		publisher: publisher,
		logger:    logger,
	}
}

// cachedDocument is the Redis representation of a stored question document.
type cachedDocument struct {
	QuestionID uint                     `json:"question_id"`
	Document   *models.QuestionDocument `json:"document"`
}

// ===== DOCUMENT ACTIVATION =====

func (s *reviewService) ActivateDocument(ctx context.Context, questionID uint, doc *models.QuestionDocument) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.questionID = questionID
	s.doc = doc
	s.scores = make(map[int]models.TeacherScore, len(doc.StudentResponses))
	for _, response := range doc.StudentResponses {
		s.scores[response.ID] = models.TeacherScore{}
	}

	s.logger.InfoContext(ctx, "Activated question document",
		"question_id", questionID,
		"students", len(doc.StudentResponses))
}

func (s *reviewService) ActivateDefault(ctx context.Context) (*models.QuestionDocument, error) {
	return s.loadAndActivate(ctx, documentCacheKeyPrefix+"default", func() (*models.QuestionDocument, uint, error) {
		return s.repo.Question().GetDefaultDocument(ctx)
	})
}

func (s *reviewService) ActivateQuestion(ctx context.Context, questionID uint) (*models.QuestionDocument, error) {
	key := fmt.Sprintf("%s%d", documentCacheKeyPrefix, questionID)
	return s.loadAndActivate(ctx, key, func() (*models.QuestionDocument, uint, error) {
		doc, err := s.repo.Question().GetDocument(ctx, questionID)
		return doc, questionID, err
	})
}

func (s *reviewService) loadAndActivate(ctx context.Context, cacheKey string, load func() (*models.QuestionDocument, uint, error)) (*models.QuestionDocument, error) {
	var cached cachedDocument
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil && cached.Document != nil {
		s.ActivateDocument(ctx, cached.QuestionID, cached.Document)
		return cached.Document, nil
	}

	doc, questionID, err := load()
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to load question document: %w", err)
	}

	if err := s.cache.Set(ctx, cacheKey, cachedDocument{QuestionID: questionID, Document: doc}, documentCacheTTL); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache question document", "error", err)
	}

	s.ActivateDocument(ctx, questionID, doc)
	return doc, nil
}

func (s *reviewService) ActivateImported(ctx context.Context, doc *models.QuestionDocument) *models.QuestionDocument {
	questionID, err := s.repo.Question().SaveDocument(ctx, doc)
	if err != nil {
		// The session works off the in-memory document either way; ids stay
		// the synthetic import ids when persistence is unavailable.
		s.logger.ErrorContext(ctx, "Failed to persist imported document, continuing unpersisted", "error", err)
	}

	if err := s.cache.DeletePattern(ctx, documentCacheKeyPrefix+"*"); err != nil {
		s.logger.WarnContext(ctx, "Failed to invalidate document cache", "error", err)
	}

	s.ActivateDocument(ctx, questionID, doc)
	s.publish(ctx, events.NewScoringEvent(events.EventDocumentImported, questionID, len(doc.StudentResponses), 0))

	return doc
}

func (s *reviewService) ActiveDocument() *models.QuestionDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// ===== SCORE RECONCILIATION =====

func (s *reviewService) SetScore(ctx context.Context, responseID int, part models.ScorePart, value models.ScoreValue) (models.TeacherScore, error) {
	if !part.Valid() {
		return models.TeacherScore{}, fmt.Errorf("%w: invalid score part %q", ErrValidationFailed, part)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return models.TeacherScore{}, ErrNoActiveDocument
	}
	score, ok := s.scores[responseID]
	if !ok {
		return models.TeacherScore{}, &UnknownResponseError{ResponseID: responseID}
	}

	switch part {
	case models.ScorePartTotal:
		// Manual override, parts stay as they are
		score.Total = value
	case models.ScorePartOne:
		score.Part1 = value
		if value.IsSet() && score.Part2.IsSet() {
			score.Total = models.ScoreOf(value.Value() + score.Part2.Value())
		}
	case models.ScorePartTwo:
		score.Part2 = value
		if value.IsSet() && score.Part1.IsSet() {
			score.Total = models.ScoreOf(score.Part1.Value() + value.Value())
		}
	}
	// Reverting a part to unset leaves the total standing; totals are only
	// recomputed on the transition into "both parts known".

	s.scores[responseID] = score

	s.logger.DebugContext(ctx, "Teacher score updated",
		"response_id", responseID,
		"part", string(part),
		"set", value.IsSet())

	return score, nil
}

func (s *reviewService) AcceptAIScores(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return ErrNoActiveDocument
	}

	for _, response := range s.doc.StudentResponses {
		s.scores[response.ID] = models.TeacherScore{
			Part1: models.ScoreOf(response.AIScore.Part1),
			Part2: models.ScoreOf(response.AIScore.Part2),
			Total: models.ScoreOf(response.AIScore.Total),
		}
	}

	s.logger.InfoContext(ctx, "AI scores accepted for all responses",
		"question_id", s.questionID,
		"students", len(s.doc.StudentResponses))

	return nil
}

func (s *reviewService) GetScore(responseID int) (models.TeacherScore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	score, ok := s.scores[responseID]
	if !ok {
		return models.TeacherScore{}, &UnknownResponseError{ResponseID: responseID}
	}
	return score, nil
}

func (s *reviewService) Stats() models.ScoringStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

// A response counts as scored as soon as its total is set, no matter how the
// total came to be; part-level completeness is irrelevant.
func (s *reviewService) statsLocked() models.ScoringStats {
	stats := models.ScoringStats{TotalStudents: len(s.scores)}
	for _, score := range s.scores {
		if score.Total.IsSet() {
			stats.ScoredStudents++
		}
	}
	stats.PendingStudents = stats.TotalStudents - stats.ScoredStudents
	return stats
}

// ===== PERSISTENCE BOUNDARY =====

func (s *reviewService) SaveScores(ctx context.Context) error {
	payload, questionID, stats, err := s.snapshot()
	if err != nil {
		return err
	}

	if err := s.repo.Score().SaveTeacherScores(ctx, payload); err != nil {
		// Session state is untouched; the teacher can retry
		return fmt.Errorf("%w: %v", ErrScoreSaveFailed, err)
	}

	s.publish(ctx, events.NewScoringEvent(events.EventScoresSaved, questionID, stats.TotalStudents, stats.ScoredStudents))
	return nil
}

func (s *reviewService) SubmitScores(ctx context.Context) error {
	payload, questionID, stats, err := s.snapshot()
	if err != nil {
		return err
	}

	if err := s.repo.Score().SaveTeacherScores(ctx, payload); err != nil {
		return fmt.Errorf("%w: %v", ErrScoreSubmitFailed, err)
	}
	if err := s.repo.Score().MarkSubmitted(ctx, questionID); err != nil {
		return fmt.Errorf("%w: %v", ErrScoreSubmitFailed, err)
	}

	s.publish(ctx, events.NewScoringEvent(events.EventScoresSubmitted, questionID, stats.TotalStudents, stats.ScoredStudents))
	return nil
}

// snapshot copies the score payload out under the lock so persistence calls
// run without holding up edits.
func (s *reviewService) snapshot() ([]models.ScoreSubmission, uint, models.ScoringStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil, 0, models.ScoringStats{}, ErrNoActiveDocument
	}

	payload := make([]models.ScoreSubmission, 0, len(s.doc.StudentResponses))
	for _, response := range s.doc.StudentResponses {
		payload = append(payload, models.ScoreSubmission{
			StudentID: response.ID,
			Score:     s.scores[response.ID],
		})
	}

	return payload, s.questionID, s.statsLocked(), nil
}

func (s *reviewService) publish(ctx context.Context, event *events.ScoringEvent) {
	if err := s.publisher.PublishScoringEvent(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish scoring event",
			"event_type", event.Type,
			"error", err)
	}
}
