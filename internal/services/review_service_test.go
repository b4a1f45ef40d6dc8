package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/edulane/scoring-review-service/internal/cache"
	"github.com/edulane/scoring-review-service/internal/events"
	"github.com/edulane/scoring-review-service/internal/models"
	"github.com/edulane/scoring-review-service/internal/repositories"
	"github.com/edulane/scoring-review-service/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ===== MOCKS =====

type MockQuestionRepository struct {
	mock.Mock
}

func (m *MockQuestionRepository) GetDocument(ctx context.Context, questionID uint) (*models.QuestionDocument, error) {
	args := m.Called(ctx, questionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QuestionDocument), args.Error(1)
}

func (m *MockQuestionRepository) GetDefaultDocument(ctx context.Context) (*models.QuestionDocument, uint, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).(*models.QuestionDocument), args.Get(1).(uint), args.Error(2)
}

func (m *MockQuestionRepository) SaveDocument(ctx context.Context, doc *models.QuestionDocument) (uint, error) {
	args := m.Called(ctx, doc)
	return args.Get(0).(uint), args.Error(1)
}

type MockScoreRepository struct {
	mock.Mock
}

func (m *MockScoreRepository) SaveTeacherScores(ctx context.Context, scores []models.ScoreSubmission) error {
	args := m.Called(ctx, scores)
	return args.Error(0)
}

func (m *MockScoreRepository) MarkSubmitted(ctx context.Context, questionID uint) error {
	args := m.Called(ctx, questionID)
	return args.Error(0)
}

type mockRepository struct {
	question *MockQuestionRepository
	score    *MockScoreRepository
}

func (r *mockRepository) Question() repositories.QuestionRepository { return r.question }
func (r *mockRepository) Score() repositories.ScoreRepository      { return r.score }

// memoryCache is a map-backed CacheService for tests.
type memoryCache struct {
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = payload
	return nil
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	payload, ok := c.entries[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	delete(c.entries, key)
	return nil
}

func (c *memoryCache) DeletePattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

// ===== FIXTURES =====

func twoStudentDocument() *models.QuestionDocument {
	return &models.QuestionDocument{
		Question: "What causes inflation?",
		ModelAnswer: models.TwoPartAnswer{
			Part1: models.AnswerPart{Prefix: "Inflation is mainly caused by", Completion: " too much money chasing too few goods."},
			Part2: models.AnswerPart{Prefix: "Central banks respond by", Completion: " raising interest rates."},
		},
		StudentResponses: []models.StudentResponse{
			{
				ID:   10,
				Name: "Emma",
				Response: models.TwoPartAnswer{
					Part1: models.AnswerPart{Prefix: "Inflation is mainly caused by", Completion: " rising prices."},
					Part2: models.AnswerPart{Prefix: "Central banks respond by", Completion: " raising rates."},
				},
				AIScore:    models.Score{Part1: 1, Part2: 0.5, Total: 1.5},
				Confidence: 88,
			},
			{
				ID:   11,
				Name: "Daan",
				Response: models.TwoPartAnswer{
					Part1: models.AnswerPart{Prefix: "Inflation is mainly caused by", Completion: " printing money."},
					Part2: models.AnswerPart{Prefix: "Central banks respond by", Completion: " doing something."},
				},
				AIScore:    models.Score{Part1: 0.5, Part2: 0, Total: 0.5},
				Confidence: 71,
			},
		},
	}
}

type reviewFixture struct {
	service   ReviewService
	question  *MockQuestionRepository
	score     *MockScoreRepository
	cache     *memoryCache
	publisher *events.MockEventPublisher
}

func newReviewFixture() *reviewFixture {
	question := new(MockQuestionRepository)
	score := new(MockScoreRepository)
	memCache := newMemoryCache()
	publisher := events.NewMockEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)))

	service := NewReviewService(
		&mockRepository{question: question, score: score},
		memCache,
		publisher,
		utils.NewDevelopmentLogger(),
	)

	return &reviewFixture{
		service:   service,
		question:  question,
		score:     score,
		cache:     memCache,
		publisher: publisher,
	}
}

// ===== ACTIVATION =====

func TestActivateDocument_ResetsScores(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()

	fx.service.ActivateDocument(ctx, 1, twoStudentDocument())
	_, err := fx.service.SetScore(ctx, 10, models.ScorePartTotal, models.ScoreOf(2))
	require.NoError(t, err)
	assert.Equal(t, models.ScoringStats{TotalStudents: 2, ScoredStudents: 1, PendingStudents: 1}, fx.service.Stats())

	// Re-activating drops every previous edit
	fx.service.ActivateDocument(ctx, 1, twoStudentDocument())
	assert.Equal(t, models.ScoringStats{TotalStudents: 2, ScoredStudents: 0, PendingStudents: 2}, fx.service.Stats())

	score, err := fx.service.GetScore(10)
	require.NoError(t, err)
	assert.False(t, score.Part1.IsSet())
	assert.False(t, score.Part2.IsSet())
	assert.False(t, score.Total.IsSet())
}

func TestActivateQuestion_CacheHitSkipsRepository(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()

	fx.question.On("GetDocument", ctx, uint(5)).Return(twoStudentDocument(), nil).Once()

	doc, err := fx.service.ActivateQuestion(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, doc.StudentResponses, 2)

	// Second activation is served from cache; the mock would panic on a
	// second repository call.
	doc, err = fx.service.ActivateQuestion(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, doc.StudentResponses, 2)

	fx.question.AssertExpectations(t)
}

func TestActivateDefault_NotFound(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()

	fx.question.On("GetDefaultDocument", ctx).Return(nil, uint(0), gorm.ErrRecordNotFound)

	doc, err := fx.service.ActivateDefault(ctx)
	assert.Nil(t, doc)
	assert.ErrorIs(t, err, ErrQuestionNotFound)
}

func TestActivateImported_PersistsAndPublishes(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	doc := twoStudentDocument()

	fx.cache.entries["scoring:question:5"] = []byte(`{}`)
	fx.question.On("SaveDocument", ctx, doc).Return(uint(7), nil)

	result := fx.service.ActivateImported(ctx, doc)
	assert.Same(t, doc, result)
	assert.Equal(t, models.ScoringStats{TotalStudents: 2, ScoredStudents: 0, PendingStudents: 2}, fx.service.Stats())

	// Stale cached documents are invalidated
	assert.Empty(t, fx.cache.entries)

	published := fx.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventDocumentImported, published[0].Type)
	assert.Equal(t, uint(7), published[0].QuestionID)
	assert.Equal(t, 2, published[0].StudentCount)

	fx.question.AssertExpectations(t)
}

func TestActivateImported_SessionSurvivesPersistenceFailure(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	doc := twoStudentDocument()

	fx.question.On("SaveDocument", ctx, doc).Return(uint(0), errors.New("database down"))

	result := fx.service.ActivateImported(ctx, doc)
	assert.Same(t, doc, result)

	// Review keeps working against the in-memory document
	score, err := fx.service.SetScore(ctx, 10, models.ScorePartTotal, models.ScoreOf(2))
	require.NoError(t, err)
	assert.Equal(t, 2.0, score.Total.Value())
}

// ===== SCORE RECONCILIATION =====

func TestSetScore_AutoTotalBothOrders(t *testing.T) {
	ctx := context.Background()

	orders := map[string][2]models.ScorePart{
		"part1 first": {models.ScorePartOne, models.ScorePartTwo},
		"part2 first": {models.ScorePartTwo, models.ScorePartOne},
	}
	values := map[models.ScorePart]float64{
		models.ScorePartOne: 1,
		models.ScorePartTwo: 0.5,
	}

	for name, order := range orders {
		t.Run(name, func(t *testing.T) {
			fx := newReviewFixture()
			fx.service.ActivateDocument(ctx, 1, twoStudentDocument())

			score, err := fx.service.SetScore(ctx, 10, order[0], models.ScoreOf(values[order[0]]))
			require.NoError(t, err)
			assert.False(t, score.Total.IsSet(), "one part alone must not produce a total")

			score, err = fx.service.SetScore(ctx, 10, order[1], models.ScoreOf(values[order[1]]))
			require.NoError(t, err)
			require.True(t, score.Total.IsSet())
			assert.Equal(t, 1.5, score.Total.Value())
		})
	}
}

func TestSetScore_ZeroIsAValue(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	fx.service.ActivateDocument(ctx, 1, twoStudentDocument())

	_, err := fx.service.SetScore(ctx, 10, models.ScorePartOne, models.ScoreOf(1))
	require.NoError(t, err)
	score, err := fx.service.SetScore(ctx, 10, models.ScorePartTwo, models.ScoreOf(0))
	require.NoError(t, err)

	require.True(t, score.Total.IsSet())
	assert.Equal(t, 1.0, score.Total.Value())
	assert.Equal(t, models.ScoringStats{TotalStudents: 2, ScoredStudents: 1, PendingStudents: 1}, fx.service.Stats())
}

func TestSetScore_ManualTotalOverride(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	fx.service.ActivateDocument(ctx, 1, twoStudentDocument())

	_, err := fx.service.SetScore(ctx, 10, models.ScorePartOne, models.ScoreOf(1))
	require.NoError(t, err)
	_, err = fx.service.SetScore(ctx, 10, models.ScorePartTwo, models.ScoreOf(1))
	require.NoError(t, err)

	score, err := fx.service.SetScore(ctx, 10, models.ScorePartTotal, models.ScoreOf(0.5))
	require.NoError(t, err)
	assert.Equal(t, 0.5, score.Total.Value())
	// Parts keep their values under a manual total
	assert.Equal(t, 1.0, score.Part1.Value())
	assert.Equal(t, 1.0, score.Part2.Value())
}

func TestSetScore_RevertingPartKeepsTotal(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	fx.service.ActivateDocument(ctx, 1, twoStudentDocument())

	_, err := fx.service.SetScore(ctx, 10, models.ScorePartOne, models.ScoreOf(1))
	require.NoError(t, err)
	_, err = fx.service.SetScore(ctx, 10, models.ScorePartTwo, models.ScoreOf(0.5))
	require.NoError(t, err)

	score, err := fx.service.SetScore(ctx, 10, models.ScorePartOne, models.UnsetScore())
	require.NoError(t, err)
	assert.False(t, score.Part1.IsSet())
	require.True(t, score.Total.IsSet())
	assert.Equal(t, 1.5, score.Total.Value())

	// The response still counts as scored
	assert.Equal(t, models.ScoringStats{TotalStudents: 2, ScoredStudents: 1, PendingStudents: 1}, fx.service.Stats())
}

func TestSetScore_UnknownResponse(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	fx.service.ActivateDocument(ctx, 1, twoStudentDocument())

	_, err := fx.service.SetScore(ctx, 99, models.ScorePartOne, models.ScoreOf(1))

	var unknownErr *UnknownResponseError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, 99, unknownErr.ResponseID)

	// Failed edits leave the session untouched
	assert.Equal(t, models.ScoringStats{TotalStudents: 2, ScoredStudents: 0, PendingStudents: 2}, fx.service.Stats())
}

func TestSetScore_NoActiveDocument(t *testing.T) {
	fx := newReviewFixture()

	_, err := fx.service.SetScore(context.Background(), 10, models.ScorePartOne, models.ScoreOf(1))
	assert.ErrorIs(t, err, ErrNoActiveDocument)
}

func TestSetScore_InvalidPart(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	fx.service.ActivateDocument(ctx, 1, twoStudentDocument())

	_, err := fx.service.SetScore(ctx, 10, models.ScorePart("part3"), models.ScoreOf(1))
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestAcceptAIScores_CopiesVerbatim(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	fx.service.ActivateDocument(ctx, 1, twoStudentDocument())

	// A prior manual edit gets overwritten by the bulk accept
	_, err := fx.service.SetScore(ctx, 10, models.ScorePartTotal, models.ScoreOf(0))
	require.NoError(t, err)

	require.NoError(t, fx.service.AcceptAIScores(ctx))

	score, err := fx.service.GetScore(10)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score.Part1.Value())
	assert.Equal(t, 0.5, score.Part2.Value())
	assert.Equal(t, 1.5, score.Total.Value())

	score, err = fx.service.GetScore(11)
	require.NoError(t, err)
	assert.Equal(t, 0.5, score.Part1.Value())
	assert.Equal(t, 0.0, score.Part2.Value())
	assert.Equal(t, 0.5, score.Total.Value())

	assert.Equal(t, models.ScoringStats{TotalStudents: 2, ScoredStudents: 2, PendingStudents: 0}, fx.service.Stats())
}

func TestAcceptAIScores_NoActiveDocument(t *testing.T) {
	fx := newReviewFixture()
	assert.ErrorIs(t, fx.service.AcceptAIScores(context.Background()), ErrNoActiveDocument)
}

func TestScoringWorkflow_StatsTransitions(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	fx.service.ActivateDocument(ctx, 1, twoStudentDocument())

	_, err := fx.service.SetScore(ctx, 10, models.ScorePartOne, models.ScoreOf(1))
	require.NoError(t, err)
	assert.Equal(t, models.ScoringStats{TotalStudents: 2, ScoredStudents: 0, PendingStudents: 2}, fx.service.Stats())

	score, err := fx.service.SetScore(ctx, 10, models.ScorePartTwo, models.ScoreOf(0))
	require.NoError(t, err)
	assert.Equal(t, 1.0, score.Part1.Value())
	assert.Equal(t, 0.0, score.Part2.Value())
	assert.Equal(t, 1.0, score.Total.Value())
	assert.Equal(t, models.ScoringStats{TotalStudents: 2, ScoredStudents: 1, PendingStudents: 1}, fx.service.Stats())

	_, err = fx.service.SetScore(ctx, 11, models.ScorePartTotal, models.ScoreOf(2))
	require.NoError(t, err)
	assert.Equal(t, models.ScoringStats{TotalStudents: 2, ScoredStudents: 2, PendingStudents: 0}, fx.service.Stats())
}

// ===== PERSISTENCE BOUNDARY =====

func TestSaveScores_PersistsSnapshotAndPublishes(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	fx.service.ActivateDocument(ctx, 3, twoStudentDocument())

	_, err := fx.service.SetScore(ctx, 10, models.ScorePartTotal, models.ScoreOf(1.5))
	require.NoError(t, err)

	var captured []models.ScoreSubmission
	fx.score.On("SaveTeacherScores", ctx, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).([]models.ScoreSubmission)
	}).Return(nil)

	require.NoError(t, fx.service.SaveScores(ctx))

	require.Len(t, captured, 2)
	assert.Equal(t, 10, captured[0].StudentID)
	assert.Equal(t, 1.5, captured[0].Score.Total.Value())
	assert.Equal(t, 11, captured[1].StudentID)
	assert.False(t, captured[1].Score.Total.IsSet())

	published := fx.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventScoresSaved, published[0].Type)
	assert.Equal(t, uint(3), published[0].QuestionID)
	assert.Equal(t, 2, published[0].StudentCount)
	assert.Equal(t, 1, published[0].ScoredCount)

	fx.score.AssertExpectations(t)
}

func TestSaveScores_FailureKeepsSessionState(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	fx.service.ActivateDocument(ctx, 3, twoStudentDocument())

	_, err := fx.service.SetScore(ctx, 10, models.ScorePartTotal, models.ScoreOf(2))
	require.NoError(t, err)

	fx.score.On("SaveTeacherScores", ctx, mock.Anything).Return(errors.New("connection refused"))

	err = fx.service.SaveScores(ctx)
	assert.ErrorIs(t, err, ErrScoreSaveFailed)

	// Edits survive the failed save so the teacher can retry
	score, err := fx.service.GetScore(10)
	require.NoError(t, err)
	assert.Equal(t, 2.0, score.Total.Value())
	assert.Empty(t, fx.publisher.GetPublishedEvents())
}

func TestSaveScores_NoActiveDocument(t *testing.T) {
	fx := newReviewFixture()
	assert.ErrorIs(t, fx.service.SaveScores(context.Background()), ErrNoActiveDocument)
}

func TestSubmitScores_MarksSubmitted(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	fx.service.ActivateDocument(ctx, 3, twoStudentDocument())

	require.NoError(t, fx.service.AcceptAIScores(ctx))

	fx.score.On("SaveTeacherScores", ctx, mock.Anything).Return(nil)
	fx.score.On("MarkSubmitted", ctx, uint(3)).Return(nil)

	require.NoError(t, fx.service.SubmitScores(ctx))

	published := fx.publisher.GetPublishedEvents()
	require.Len(t, published, 1)
	assert.Equal(t, events.EventScoresSubmitted, published[0].Type)
	assert.Equal(t, 2, published[0].ScoredCount)

	fx.score.AssertExpectations(t)
}

func TestSubmitScores_MarkFailureReported(t *testing.T) {
	fx := newReviewFixture()
	ctx := context.Background()
	fx.service.ActivateDocument(ctx, 3, twoStudentDocument())

	fx.score.On("SaveTeacherScores", ctx, mock.Anything).Return(nil)
	fx.score.On("MarkSubmitted", ctx, uint(3)).Return(errors.New("connection refused"))

	err := fx.service.SubmitScores(ctx)
	assert.ErrorIs(t, err, ErrScoreSubmitFailed)
	assert.Empty(t, fx.publisher.GetPublishedEvents())
}
