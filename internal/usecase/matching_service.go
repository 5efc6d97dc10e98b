package usecase

import (
	"context"
	"strings"

	"github.com/apex/log"

	"github.com/toxiscan/backend/internal/domain"
)

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	EnableDebugLogging bool
}

// MatchingService reconciles extracted ingredient names against the hazard reference set
type MatchingService struct {
	enableDebugLogging bool
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	return &MatchingService{
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// MatchIngredients flags every extracted ingredient that corresponds to a hazard record.
//
// Names are compared lowercased and trimmed, by substring containment in either
// direction. The first record in reference order that satisfies the test wins, even
// when a later record would be more specific. Unmatched ingredients are dropped and
// duplicates are matched independently.
func (s *MatchingService) MatchIngredients(
	ctx context.Context,
	ingredients []string,
	hazards []domain.HazardRecord,
) (*domain.MatchResult, error) {
	result := &domain.MatchResult{
		Flagged: make([]domain.FlaggedIngredient, 0),
	}

	if len(hazards) == 0 {
		return result, nil
	}

	// Normalize the reference names once per call
	normalized := make([]string, len(hazards))
	for i, h := range hazards {
		normalized[i] = normalizeIngredient(h.Name)
	}

	for _, ingredient := range ingredients {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		idx := firstMatch(normalizeIngredient(ingredient), normalized)
		if idx < 0 {
			continue
		}

		hazard := hazards[idx]
		if s.enableDebugLogging {
			log.WithFields(log.Fields{
				"ingredient": ingredient,
				"hazard":     hazard.Name,
				"score":      hazard.HazardScore,
			}).Debug("[MATCH] flagged ingredient")
		}

		result.Flagged = append(result.Flagged, domain.FlaggedIngredient{
			Name:        ingredient,
			Reason:      hazard.Description,
			HazardScore: hazard.HazardScore,
		})
		result.MatchedCount++
		result.SumHazard += hazard.HazardScore
	}

	return result, nil
}

// firstMatch returns the index of the first reference name that contains, or is
// contained in, the ingredient; -1 if none does.
func firstMatch(ingredient string, references []string) int {
	for i, ref := range references {
		if strings.Contains(ingredient, ref) || strings.Contains(ref, ingredient) {
			return i
		}
	}
	return -1
}

// normalizeIngredient lowercases and trims a name for comparison
func normalizeIngredient(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}
