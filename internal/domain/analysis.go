package domain

import "time"

// ColorCode is the traffic-light tier derived from a ToxiScore
type ColorCode string

const (
	ColorGreen  ColorCode = "green"
	ColorYellow ColorCode = "yellow"
	ColorRed    ColorCode = "red"
)

// ScoreResult holds the computed ToxiScore and its tier
type ScoreResult struct {
	Toxiscore float64   `json:"toxiscore"` // 0-100, higher is safer
	ColorCode ColorCode `json:"colorCode"`
}

// Alternative is a safer product suggested by the summary model
type Alternative struct {
	Name  string `json:"name"`
	Brand string `json:"brand"`
	Score int    `json:"score"`
}

// SummaryResult is the validated natural-language verdict
type SummaryResult struct {
	Summary      string        `json:"summary"`
	Alternatives []Alternative `json:"alternatives"`
}

// AnalysisRecord is the persisted result of one pipeline run
type AnalysisRecord struct {
	ID                 string              `json:"id"`
	UserID             string              `json:"userId"`
	ProductName        string              `json:"productName"`
	Brand              string              `json:"brand"`
	Category           Category            `json:"category"`
	Ingredients        []string            `json:"ingredients"`
	Toxiscore          float64             `json:"toxiscore"`
	ColorCode          ColorCode           `json:"colorCode"`
	FlaggedIngredients []FlaggedIngredient `json:"flaggedIngredients"`
	Summary            string              `json:"summary"`
	Alternatives       []Alternative       `json:"alternatives"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// AnalyzeRequest is the body of an analysis request
type AnalyzeRequest struct {
	Image string `json:"image" binding:"required"`
}

// AnalyzeResponse is returned once a record has been stored
type AnalyzeResponse struct {
	ProductID string `json:"productId"`
}

// AnalysisCompletedEvent is published after a record has been stored
type AnalysisCompletedEvent struct {
	AnalysisID  string    `json:"analysisId"`
	UserID      string    `json:"userId"`
	ProductName string    `json:"productName"`
	Toxiscore   float64   `json:"toxiscore"`
	ColorCode   ColorCode `json:"colorCode"`
	CreatedAt   time.Time `json:"createdAt"`
}
