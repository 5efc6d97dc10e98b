package usecase

import (
	"fmt"
	"strings"

	"github.com/toxiscan/backend/internal/domain"
)

// extractionPrompt is sent together with the label photo
const extractionPrompt = `You are a product label reader. Read the label in the image and return ONLY a JSON object with this exact shape:
{
  "productName": "<product name as printed, 1-200 characters>",
  "brand": "<brand name, up to 100 characters; omit if not visible>",
  "category": "<one of: food, cosmetic, cleaning, pharmaceutical>",
  "ingredients": ["<ingredient 1>", "<ingredient 2>", "..."]
}
Rules:
- List every ingredient in the order printed on the label, one entry per ingredient, each 1-100 characters.
- Do not translate, merge, or invent ingredients.
- If the label or ingredient list cannot be read, return {"error": "unreadable"}.
- Output JSON only, no commentary.`

// maxPromptFlagged caps how many flagged names are embedded in the summary prompt
const maxPromptFlagged = 50

// buildSummaryPrompt embeds the product name, score, and flagged ingredient names
func buildSummaryPrompt(extraction *domain.RawExtraction, score domain.ScoreResult, flagged []domain.FlaggedIngredient) string {
	names := make([]string, 0, len(flagged))
	for i, f := range flagged {
		if i == maxPromptFlagged {
			break
		}
		names = append(names, strings.TrimSpace(f.Name))
	}

	flaggedText := "none"
	if len(names) > 0 {
		flaggedText = strings.Join(names, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Product: %s (brand: %s, category: %s)\n", extraction.ProductName, extraction.Brand, extraction.Category)
	fmt.Fprintf(&b, "ToxiScore: %.0f/100 (%s; higher is safer)\n", score.Toxiscore, score.ColorCode)
	fmt.Fprintf(&b, "Flagged ingredients: %s\n\n", flaggedText)
	b.WriteString(`Write a short, factual safety summary for a shopper and suggest up to 5 safer alternative products in the same category.
Return ONLY a JSON object with this exact shape:
{
  "summary": "<at most 1000 characters>",
  "alternatives": [{"name": "<up to 200 characters>", "brand": "<up to 100 characters>", "score": <integer 0-100>}]
}`)

	return b.String()
}
