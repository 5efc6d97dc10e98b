package usecase

import "github.com/toxiscan/backend/internal/domain"

// Score tiers and scaling
const (
	greenThreshold  = 70.0
	yellowThreshold = 40.0
	hazardWeight    = 20.0 // hazard score 5 maps to 0, hazard score 1 maps to 80
	defaultHazard   = 1.0  // used when nothing matched
)

// CalculateScore derives the ToxiScore and its tier from matched hazard data.
// avgHazard falls back to 1 when nothing matched, so a product with no known
// hazards scores 80 (green).
func CalculateScore(matchedCount, sumHazard int) domain.ScoreResult {
	avgHazard := defaultHazard
	if matchedCount > 0 {
		avgHazard = float64(sumHazard) / float64(matchedCount)
	}

	score := clamp(100-avgHazard*hazardWeight, 0, 100)

	return domain.ScoreResult{
		Toxiscore: score,
		ColorCode: colorFor(score),
	}
}

func colorFor(score float64) domain.ColorCode {
	switch {
	case score >= greenThreshold:
		return domain.ColorGreen
	case score >= yellowThreshold:
		return domain.ColorYellow
	default:
		return domain.ColorRed
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
