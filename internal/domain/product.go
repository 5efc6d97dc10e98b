package domain

// Category is the product family reported by the extraction model
type Category string

const (
	CategoryFood           Category = "food"
	CategoryCosmetic       Category = "cosmetic"
	CategoryCleaning       Category = "cleaning"
	CategoryPharmaceutical Category = "pharmaceutical"
)

// DefaultBrand is stored when the label carries no readable brand
const DefaultBrand = "Unknown"

// RawExtraction is the validated product data read from a label photo
type RawExtraction struct {
	ProductName string   `json:"productName"`
	Brand       string   `json:"brand"`
	Category    Category `json:"category"`
	Ingredients []string `json:"ingredients"`
}

// HazardRecord is one entry of the hazard reference set
type HazardRecord struct {
	Name        string `json:"name"`
	HazardScore int    `json:"hazardScore"` // 1-5
	HazardType  string `json:"hazardType"`
	Description string `json:"description"`
}

// FlaggedIngredient is an extracted ingredient matched to a hazard record
type FlaggedIngredient struct {
	Name        string `json:"name"`
	Reason      string `json:"reason"`
	HazardScore int    `json:"hazardScore"`
}

// MatchResult is the outcome of reconciling ingredients against the hazard set
type MatchResult struct {
	Flagged      []FlaggedIngredient `json:"flagged"`
	MatchedCount int                 `json:"matchedCount"`
	SumHazard    int                 `json:"sumHazard"`
}
