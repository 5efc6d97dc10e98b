package inference

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/toxiscan/backend/internal/domain"
)

// Chat completion wire types, OpenAI-compatible
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type textPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type imageURL struct {
	URL string `json:"url"`
}

type imagePart struct {
	Type     string   `json:"type"`
	ImageURL imageURL `json:"image_url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// newVisionRequest builds a request with the prompt and image in one user turn
func newVisionRequest(model, prompt, imageDataURI string, maxTokens int) chatRequest {
	return chatRequest{
		Model: model,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []any{
					textPart{Type: "text", Text: prompt},
					imagePart{Type: "image_url", ImageURL: imageURL{URL: imageDataURI}},
				},
			},
		},
		MaxTokens: maxTokens,
	}
}

// newTextRequest builds a plain text request
func newTextRequest(model, prompt string, maxTokens int) chatRequest {
	return chatRequest{
		Model:     model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		MaxTokens: maxTokens,
	}
}

// completionText pulls the first choice's text out of a response body.
// Content may be a string or an array of text parts.
func completionText(body []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: malformed completion body: %v", domain.ErrInferenceFailure, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", domain.ErrInferenceFailure)
	}

	raw := resp.Choices[0].Message.Content
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var parts []textPart
		if err := json.Unmarshal(raw, &parts); err != nil {
			return "", fmt.Errorf("%w: unsupported completion content", domain.ErrInferenceFailure)
		}
		var b strings.Builder
		for _, p := range parts {
			if p.Type == "text" {
				b.WriteString(p.Text)
			}
		}
		text = b.String()
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty completion", domain.ErrInferenceFailure)
	}
	return text, nil
}
