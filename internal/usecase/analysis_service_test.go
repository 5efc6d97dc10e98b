package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxiscan/backend/internal/domain"
)

// MockExtractionClient is a mock implementation of domain.ExtractionClient
type MockExtractionClient struct {
	completion string
	err        error
	calls      int
	lastPrompt string
	lastImage  string
}

func (m *MockExtractionClient) Extract(ctx context.Context, prompt, imageDataURI string) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	m.lastImage = imageDataURI
	if m.err != nil {
		return "", m.err
	}
	return m.completion, nil
}

// MockSummaryClient is a mock implementation of domain.SummaryClient
type MockSummaryClient struct {
	completion string
	err        error
	calls      int
	lastPrompt string
}

func (m *MockSummaryClient) Summarize(ctx context.Context, prompt string) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.completion, nil
}

// MockHazardSource is a mock implementation of HazardSource
type MockHazardSource struct {
	hazards []domain.HazardRecord
	err     error
	calls   int
}

func (m *MockHazardSource) Hazards(ctx context.Context) ([]domain.HazardRecord, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hazards, nil
}

// MockAnalysisRepository is an in-memory domain.AnalysisRepository
type MockAnalysisRepository struct {
	records   map[string]*domain.AnalysisRecord
	order     []string
	insertErr error
	readErr   error
}

func NewMockAnalysisRepository() *MockAnalysisRepository {
	return &MockAnalysisRepository{records: make(map[string]*domain.AnalysisRecord)}
}

func (m *MockAnalysisRepository) Insert(ctx context.Context, record *domain.AnalysisRecord) (string, error) {
	if m.insertErr != nil {
		return "", m.insertErr
	}
	id := fmt.Sprintf("id-%d", len(m.order)+1)
	stored := *record
	stored.ID = id
	stored.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	record.CreatedAt = stored.CreatedAt
	m.records[id] = &stored
	m.order = append(m.order, id)
	return id, nil
}

func (m *MockAnalysisRepository) GetByID(ctx context.Context, id, userID string) (*domain.AnalysisRecord, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	r, ok := m.records[id]
	if !ok || r.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (m *MockAnalysisRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.AnalysisRecord, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []domain.AnalysisRecord
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		if r := m.records[m.order[i]]; r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	events []*domain.AnalysisCompletedEvent
	err    error
}

func (m *MockEventPublisher) PublishAnalysisCompleted(ctx context.Context, event *domain.AnalysisCompletedEvent) error {
	m.events = append(m.events, event)
	return m.err
}

const (
	testUser  = "user-123"
	testImage = "data:image/jpeg;base64,/9j/4AAQSkZJRg=="
)

type pipelineFixture struct {
	extractor *MockExtractionClient
	summarize *MockSummaryClient
	hazards   *MockHazardSource
	repo      *MockAnalysisRepository
	publisher *MockEventPublisher
	service   *AnalysisService
}

func newPipelineFixture() *pipelineFixture {
	f := &pipelineFixture{
		extractor: &MockExtractionClient{
			completion: "```json\n{\"productName\":\"Daily Lotion\",\"category\":\"cosmetic\",\"ingredients\":[\"Water\",\"Methylparaben\"]}\n```",
		},
		summarize: &MockSummaryClient{
			completion: `Here you go: {"summary":"Contains methylparaben, a suspected endocrine disruptor."} Stay safe!`,
		},
		hazards: &MockHazardSource{
			hazards: []domain.HazardRecord{
				{Name: "methylparaben", HazardScore: 4, HazardType: "endocrine", Description: "Suspected endocrine disruptor"},
			},
		},
		repo:      NewMockAnalysisRepository(),
		publisher: &MockEventPublisher{},
	}
	f.service = NewAnalysisService(f.extractor, f.summarize, f.hazards, f.repo, f.publisher, AnalysisServiceConfig{})
	return f
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind, stage string) {
	t.Helper()
	var ae *domain.AnalysisError
	require.True(t, errors.As(err, &ae), "error %v is not an AnalysisError", err)
	assert.Equal(t, kind, ae.Kind)
	assert.Equal(t, stage, ae.Stage)
}

func TestAnalyze_Success(t *testing.T) {
	f := newPipelineFixture()

	id, err := f.service.Analyze(context.Background(), testUser, testImage)
	require.NoError(t, err)
	assert.Equal(t, "id-1", id)

	assert.Equal(t, testImage, f.extractor.lastImage)
	assert.Equal(t, extractionPrompt, f.extractor.lastPrompt)

	record, err := f.service.GetAnalysis(context.Background(), testUser, id)
	require.NoError(t, err)
	assert.Equal(t, testUser, record.UserID)
	assert.Equal(t, "Daily Lotion", record.ProductName)
	assert.Equal(t, "Unknown", record.Brand)
	assert.Equal(t, domain.CategoryCosmetic, record.Category)
	assert.Equal(t, []string{"Water", "Methylparaben"}, record.Ingredients)
	assert.Equal(t, 20.0, record.Toxiscore)
	assert.Equal(t, domain.ColorRed, record.ColorCode)
	assert.Equal(t, []domain.FlaggedIngredient{
		{Name: "Methylparaben", Reason: "Suspected endocrine disruptor", HazardScore: 4},
	}, record.FlaggedIngredients)
	assert.Equal(t, "Contains methylparaben, a suspected endocrine disruptor.", record.Summary)
	require.NotNil(t, record.Alternatives)
	assert.Empty(t, record.Alternatives)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, id, f.publisher.events[0].AnalysisID)
	assert.Equal(t, domain.ColorRed, f.publisher.events[0].ColorCode)
	assert.False(t, f.publisher.events[0].CreatedAt.IsZero())
}

func TestAnalyze_SummaryPromptCarriesScoreAndFlagged(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.service.Analyze(context.Background(), testUser, testImage)
	require.NoError(t, err)

	prompt := f.summarize.lastPrompt
	assert.Contains(t, prompt, "Daily Lotion")
	assert.Contains(t, prompt, "ToxiScore: 20/100")
	assert.Contains(t, prompt, "Flagged ingredients: Methylparaben")
}

func TestAnalyze_NoMatchesIsSafe(t *testing.T) {
	f := newPipelineFixture()
	f.extractor.completion = `{"productName":"Mild Soap","brand":"Acme","category":"cleaning","ingredients":["Water","Glycerin"]}`

	id, err := f.service.Analyze(context.Background(), testUser, testImage)
	require.NoError(t, err)

	record := f.repo.records[id]
	assert.Equal(t, 80.0, record.Toxiscore)
	assert.Equal(t, domain.ColorGreen, record.ColorCode)
	assert.Empty(t, record.FlaggedIngredients)
	assert.Equal(t, "Acme", record.Brand)
	assert.Contains(t, f.summarize.lastPrompt, "Flagged ingredients: none")
}

func TestAnalyze_Unauthorized(t *testing.T) {
	for _, user := range []string{"", "   "} {
		f := newPipelineFixture()

		_, err := f.service.Analyze(context.Background(), user, testImage)
		requireKind(t, err, domain.KindUnauthorized, "authenticate")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
		assert.Equal(t, 0, f.extractor.calls, "no inference without a user")
	}
}

func TestAnalyze_MissingImage(t *testing.T) {
	f := newPipelineFixture()

	_, err := f.service.Analyze(context.Background(), testUser, "")
	requireKind(t, err, domain.KindInvalidRequest, "extract")
	assert.Equal(t, 0, f.extractor.calls)
}

func TestAnalyze_ExtractionInferenceFailure(t *testing.T) {
	f := newPipelineFixture()
	f.extractor.err = fmt.Errorf("%w: status 503", domain.ErrInferenceFailure)

	_, err := f.service.Analyze(context.Background(), testUser, testImage)
	requireKind(t, err, domain.KindInference, "extract")
	assert.ErrorIs(t, err, domain.ErrInferenceFailure)
	assert.Equal(t, 1, f.extractor.calls, "no retries")
	assert.Equal(t, 0, f.hazards.calls)
	assert.Empty(t, f.repo.records)
}

func TestAnalyze_InvalidExtraction(t *testing.T) {
	manyIngredients := make([]string, 501)
	for i := range manyIngredients {
		manyIngredients[i] = fmt.Sprintf("\"unlisted compound %d\"", i)
	}

	tests := []struct {
		name       string
		completion string
	}{
		{"missing category", `{"productName":"Lotion","ingredients":["Water"]}`},
		{"unknown category", `{"productName":"Lotion","category":"toy","ingredients":["Water"]}`},
		{"no JSON at all", "Sorry, I cannot read this label."},
		{"model reports unreadable", `{"error":"unreadable"}`},
		{"too many ingredients", `{"productName":"Lotion","category":"food","ingredients":[` + strings.Join(manyIngredients, ",") + `]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture()
			f.extractor.completion = tt.completion

			_, err := f.service.Analyze(context.Background(), testUser, testImage)
			requireKind(t, err, domain.KindInvalidExtraction, "validate_extraction")
			assert.Equal(t, 0, f.hazards.calls, "aborts before matching")
			assert.Equal(t, 0, f.summarize.calls)
			assert.Empty(t, f.repo.records)
			assert.Contains(t, domain.KindOf(err).Message(), "clearer")
		})
	}
}

func TestAnalyze_ReferenceStoreFailure(t *testing.T) {
	f := newPipelineFixture()
	f.hazards.err = errors.New("connection refused")

	_, err := f.service.Analyze(context.Background(), testUser, testImage)
	requireKind(t, err, domain.KindReferenceStore, "match")
	assert.Equal(t, 0, f.summarize.calls)
}

func TestAnalyze_SummaryInferenceFailure(t *testing.T) {
	f := newPipelineFixture()
	f.summarize.err = fmt.Errorf("%w: timeout", domain.ErrInferenceFailure)

	_, err := f.service.Analyze(context.Background(), testUser, testImage)
	requireKind(t, err, domain.KindInference, "summarize")
	assert.Empty(t, f.repo.records)
}

func TestAnalyze_InvalidSummary(t *testing.T) {
	tests := []struct {
		name       string
		completion string
	}{
		{"missing summary", `{"alternatives":[]}`},
		{"score out of range", `{"summary":"ok","alternatives":[{"name":"a","brand":"b","score":140}]}`},
		{"no JSON", "The product looks fine."},
		{"summary too long", `{"summary":"` + strings.Repeat("x", 1001) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture()
			f.summarize.completion = tt.completion

			_, err := f.service.Analyze(context.Background(), testUser, testImage)
			requireKind(t, err, domain.KindInvalidSummary, "validate_summary")
			assert.Empty(t, f.repo.records)
			assert.Empty(t, f.publisher.events)
		})
	}
}

func TestAnalyze_PersistenceFailure(t *testing.T) {
	f := newPipelineFixture()
	f.repo.insertErr = errors.New("unique violation")

	_, err := f.service.Analyze(context.Background(), testUser, testImage)
	requireKind(t, err, domain.KindPersistence, "persist")
	assert.Empty(t, f.publisher.events, "nothing published without a stored record")
}

func TestAnalyze_PublishFailureDoesNotFailRequest(t *testing.T) {
	f := newPipelineFixture()
	f.publisher.err = errors.New("channel closed")

	id, err := f.service.Analyze(context.Background(), testUser, testImage)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Len(t, f.repo.records, 1)
}

func TestAnalyze_NilPublisher(t *testing.T) {
	f := newPipelineFixture()
	svc := NewAnalysisService(f.extractor, f.summarize, f.hazards, f.repo, nil, AnalysisServiceConfig{EnableDebugLogging: true})

	_, err := svc.Analyze(context.Background(), testUser, testImage)
	assert.NoError(t, err)
}

func TestAnalyze_SummaryAlternatives(t *testing.T) {
	f := newPipelineFixture()
	f.summarize.completion = "```json\n" +
		`{"summary":"Swap for a paraben-free lotion.","alternatives":[{"name":"Bare Lotion","brand":"Calm Co","score":91}]}` +
		"\n```"

	id, err := f.service.Analyze(context.Background(), testUser, testImage)
	require.NoError(t, err)

	assert.Equal(t, []domain.Alternative{{Name: "Bare Lotion", Brand: "Calm Co", Score: 91}}, f.repo.records[id].Alternatives)
}

func TestGetAnalysis(t *testing.T) {
	f := newPipelineFixture()
	id, err := f.service.Analyze(context.Background(), testUser, testImage)
	require.NoError(t, err)

	t.Run("requires a user", func(t *testing.T) {
		_, err := f.service.GetAnalysis(context.Background(), "", id)
		requireKind(t, err, domain.KindUnauthorized, "authenticate")
	})

	t.Run("hides other users' records", func(t *testing.T) {
		_, err := f.service.GetAnalysis(context.Background(), "someone-else", id)
		requireKind(t, err, domain.KindNotFound, "read")
	})

	t.Run("maps store failures", func(t *testing.T) {
		f.repo.readErr = errors.New("db down")
		defer func() { f.repo.readErr = nil }()

		_, err := f.service.GetAnalysis(context.Background(), testUser, id)
		requireKind(t, err, domain.KindPersistence, "read")
	})
}

func TestListAnalyses(t *testing.T) {
	f := newPipelineFixture()
	for i := 0; i < 3; i++ {
		_, err := f.service.Analyze(context.Background(), testUser, testImage)
		require.NoError(t, err)
	}

	t.Run("newest first", func(t *testing.T) {
		records, err := f.service.ListAnalyses(context.Background(), testUser, 0)
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "id-3", records[0].ID)
	})

	t.Run("respects limit", func(t *testing.T) {
		records, err := f.service.ListAnalyses(context.Background(), testUser, 2)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("empty history is an empty list", func(t *testing.T) {
		records, err := f.service.ListAnalyses(context.Background(), "new-user", 10)
		require.NoError(t, err)
		require.NotNil(t, records)
		assert.Empty(t, records)
	})

	t.Run("requires a user", func(t *testing.T) {
		_, err := f.service.ListAnalyses(context.Background(), "", 10)
		requireKind(t, err, domain.KindUnauthorized, "authenticate")
	})
}
