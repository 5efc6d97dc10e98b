package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/apex/log"

	"github.com/toxiscan/backend/internal/domain"
	"github.com/toxiscan/backend/internal/infrastructure/metrics"
)

// Pipeline stage names, used in errors, logs, and metrics
const (
	stageAuthenticate    = "authenticate"
	stageExtract         = "extract"
	stageValidateExtract = "validate_extraction"
	stageMatch           = "match"
	stageSummarize       = "summarize"
	stageValidateSummary = "validate_summary"
	stagePersist         = "persist"
	stageRead            = "read"
)

// History page sizes
const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HazardSource supplies the hazard reference set in a stable order
type HazardSource interface {
	Hazards(ctx context.Context) ([]domain.HazardRecord, error)
}

// AnalysisServiceConfig holds configuration for the analysis service
type AnalysisServiceConfig struct {
	EnableDebugLogging bool
}

// AnalysisService runs the label analysis pipeline and serves stored results
type AnalysisService struct {
	extractor  domain.ExtractionClient
	summarizer domain.SummaryClient
	hazards    HazardSource
	repo       domain.AnalysisRepository
	publisher  domain.EventPublisher
	validator  *SchemaValidator
	matcher    *MatchingService
	debug      bool
}

// NewAnalysisService creates a new analysis service with dependencies.
// publisher may be nil when no downstream consumers are configured.
func NewAnalysisService(
	extractor domain.ExtractionClient,
	summarizer domain.SummaryClient,
	hazards HazardSource,
	repo domain.AnalysisRepository,
	publisher domain.EventPublisher,
	config AnalysisServiceConfig,
) *AnalysisService {
	return &AnalysisService{
		extractor:  extractor,
		summarizer: summarizer,
		hazards:    hazards,
		repo:       repo,
		publisher:  publisher,
		validator:  NewSchemaValidator(),
		matcher:    NewMatchingService(MatchConfig{EnableDebugLogging: config.EnableDebugLogging}),
		debug:      config.EnableDebugLogging,
	}
}

// Analyze runs the full pipeline for one label photo and returns the stored record id.
// Flow: authenticate -> extract -> validate -> match -> score -> summarize -> validate -> persist.
// Any failure aborts the run and nothing is stored; errors are *domain.AnalysisError.
func (s *AnalysisService) Analyze(ctx context.Context, userID, image string) (string, error) {
	start := time.Now()

	record, err := s.run(ctx, userID, image)
	if err != nil {
		kind := domain.KindOf(err)
		metrics.AnalysesTotal.WithLabelValues(kind.String()).Inc()

		entry := log.WithError(err).WithFields(log.Fields{
			"user": userID,
			"kind": kind.String(),
		})
		var ae *domain.AnalysisError
		if errors.As(err, &ae) {
			entry = entry.WithField("stage", ae.Stage)
		}
		entry.Warn("analysis failed")
		return "", err
	}

	metrics.AnalysesTotal.WithLabelValues("success").Inc()
	metrics.FlaggedIngredients.Observe(float64(len(record.FlaggedIngredients)))

	log.WithFields(log.Fields{
		"id":        record.ID,
		"user":      record.UserID,
		"product":   record.ProductName,
		"toxiscore": record.Toxiscore,
		"color":     record.ColorCode,
		"flagged":   len(record.FlaggedIngredients),
		"elapsed":   time.Since(start).String(),
	}).Info("analysis stored")

	s.publish(ctx, record)

	return record.ID, nil
}

func (s *AnalysisService) run(ctx context.Context, userID, image string) (*domain.AnalysisRecord, error) {
	// 1. Authenticate
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewAnalysisError(domain.KindUnauthorized, stageAuthenticate, domain.ErrUnauthorized)
	}
	if strings.TrimSpace(image) == "" {
		return nil, domain.NewAnalysisError(domain.KindInvalidRequest, stageExtract, domain.ErrInvalidRequest)
	}

	// 2. Extract
	done := observeStage(stageExtract)
	completion, err := s.extractor.Extract(ctx, extractionPrompt, image)
	done()
	if err != nil {
		return nil, domain.NewAnalysisError(domain.KindInference, stageExtract, err)
	}

	// 3. Validate extraction
	extraction, err := s.parseExtraction(completion)
	if err != nil {
		return nil, domain.NewAnalysisError(domain.KindInvalidExtraction, stageValidateExtract, err)
	}
	if s.debug {
		log.WithFields(log.Fields{
			"product":     extraction.ProductName,
			"category":    extraction.Category,
			"ingredients": len(extraction.Ingredients),
		}).Debug("[PIPELINE] extraction validated")
	}

	// 4. Match
	done = observeStage(stageMatch)
	hazards, err := s.hazards.Hazards(ctx)
	if err != nil {
		done()
		return nil, domain.NewAnalysisError(domain.KindReferenceStore, stageMatch, err)
	}
	match, err := s.matcher.MatchIngredients(ctx, extraction.Ingredients, hazards)
	done()
	if err != nil {
		return nil, domain.NewAnalysisError(domain.KindUnknown, stageMatch, err)
	}

	// 5. Score
	score := CalculateScore(match.MatchedCount, match.SumHazard)

	// 6. Summarize
	done = observeStage(stageSummarize)
	completion, err = s.summarizer.Summarize(ctx, buildSummaryPrompt(extraction, score, match.Flagged))
	done()
	if err != nil {
		return nil, domain.NewAnalysisError(domain.KindInference, stageSummarize, err)
	}

	// 7. Validate summary
	summary, err := s.parseSummary(completion)
	if err != nil {
		return nil, domain.NewAnalysisError(domain.KindInvalidSummary, stageValidateSummary, err)
	}

	// 8. Persist
	record := &domain.AnalysisRecord{
		UserID:             userID,
		ProductName:        extraction.ProductName,
		Brand:              extraction.Brand,
		Category:           extraction.Category,
		Ingredients:        extraction.Ingredients,
		Toxiscore:          score.Toxiscore,
		ColorCode:          score.ColorCode,
		FlaggedIngredients: match.Flagged,
		Summary:            summary.Summary,
		Alternatives:       summary.Alternatives,
	}

	done = observeStage(stagePersist)
	id, err := s.repo.Insert(ctx, record)
	done()
	if err != nil {
		return nil, domain.NewAnalysisError(domain.KindPersistence, stagePersist, err)
	}
	record.ID = id

	return record, nil
}

func (s *AnalysisService) parseExtraction(completion string) (*domain.RawExtraction, error) {
	payload, err := locateJSONObject(completion)
	if err != nil {
		return nil, err
	}
	return s.validator.ValidateExtraction(payload)
}

func (s *AnalysisService) parseSummary(completion string) (*domain.SummaryResult, error) {
	payload, err := locateJSONObject(completion)
	if err != nil {
		return nil, err
	}
	return s.validator.ValidateSummary(payload)
}

// publish notifies downstream consumers. The record is already stored, so
// failures are logged and never change the outcome.
func (s *AnalysisService) publish(ctx context.Context, record *domain.AnalysisRecord) {
	if s.publisher == nil {
		return
	}

	event := &domain.AnalysisCompletedEvent{
		AnalysisID:  record.ID,
		UserID:      record.UserID,
		ProductName: record.ProductName,
		Toxiscore:   record.Toxiscore,
		ColorCode:   record.ColorCode,
		CreatedAt:   record.CreatedAt,
	}
	if err := s.publisher.PublishAnalysisCompleted(ctx, event); err != nil {
		metrics.EventPublishErrorsTotal.Inc()
		log.WithError(err).WithField("id", record.ID).Error("failed to publish analysis.completed")
	}
}

// GetAnalysis returns one of the caller's stored analyses
func (s *AnalysisService) GetAnalysis(ctx context.Context, userID, id string) (*domain.AnalysisRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewAnalysisError(domain.KindUnauthorized, stageAuthenticate, domain.ErrUnauthorized)
	}

	record, err := s.repo.GetByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewAnalysisError(domain.KindNotFound, stageRead, err)
		}
		return nil, domain.NewAnalysisError(domain.KindPersistence, stageRead, err)
	}
	return record, nil
}

// ListAnalyses returns the caller's most recent analyses, newest first.
// limit <= 0 selects the default; larger values are capped.
func (s *AnalysisService) ListAnalyses(ctx context.Context, userID string, limit int) ([]domain.AnalysisRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.NewAnalysisError(domain.KindUnauthorized, stageAuthenticate, domain.ErrUnauthorized)
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, domain.NewAnalysisError(domain.KindPersistence, stageRead, err)
	}
	if records == nil {
		records = []domain.AnalysisRecord{}
	}
	return records, nil
}

// observeStage starts a stage timer; call the returned func when the stage ends
func observeStage(stage string) func() {
	start := time.Now()
	return func() {
		metrics.StageDurationSeconds.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
