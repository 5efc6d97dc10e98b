package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toxiscan/backend/internal/domain"
	"github.com/toxiscan/backend/internal/infrastructure/cache"
	"github.com/toxiscan/backend/internal/infrastructure/inference"
)

// The stub provider and the memory cache must carry a run end to end
func TestAnalyze_WithStubProvider(t *testing.T) {
	ctx := context.Background()
	memory := cache.NewMemoryCache()
	defer memory.Close()

	store := &MockHazardRepository{hazards: []domain.HazardRecord{
		{Name: "methylparaben", HazardScore: 4, HazardType: "endocrine", Description: "Suspected endocrine disruptor"},
		{Name: "fragrance", HazardScore: 3, HazardType: "allergen", Description: "Undisclosed mixture"},
		{Name: "sodium hypochlorite", HazardScore: 4, HazardType: "irritant", Description: "Bleach"},
		{Name: "palm oil", HazardScore: 1, HazardType: "environmental", Description: "Deforestation"},
		{Name: "phenoxyethanol", HazardScore: 2, HazardType: "preservative", Description: "Irritant at high doses"},
	}}
	stub := inference.NewStubClient()
	repo := NewMockAnalysisRepository()
	service := NewAnalysisService(stub, stub, NewHazardCatalog(memory, store, 0), repo, nil, AnalysisServiceConfig{})

	images := []string{
		"data:image/jpeg;base64,AAAA",
		"data:image/jpeg;base64,BBBB",
		"data:image/jpeg;base64,CCCC",
		"data:image/jpeg;base64,DDDD",
	}
	for _, image := range images {
		id, err := service.Analyze(ctx, testUser, image)
		require.NoError(t, err, "image %s", image)

		record, err := service.GetAnalysis(ctx, testUser, id)
		require.NoError(t, err)
		assert.Equal(t, "Stub Labs", record.Brand)
		assert.GreaterOrEqual(t, record.Toxiscore, 0.0)
		assert.LessOrEqual(t, record.Toxiscore, 100.0)
		assert.NotEmpty(t, record.Summary)
		assert.Len(t, record.Alternatives, 1)
	}

	assert.Equal(t, 1, store.calls, "reference set served from cache after the first run")
}
