package usecase

import (
	"encoding/json"
	"strings"

	"github.com/toxiscan/backend/internal/domain"
)

const codeFence = "```"

// locateJSONObject finds the JSON object in a model completion.
// Models wrap their answer in a fenced code block, surround it with prose, or
// return it bare; all three forms are accepted. The first well-formed object wins.
func locateJSONObject(completion string) ([]byte, error) {
	text := strings.TrimSpace(completion)

	if fenced, ok := fencedBlock(text); ok {
		if obj, ok := firstObject(fenced); ok {
			return obj, nil
		}
	}

	if obj, ok := firstObject(text); ok {
		return obj, nil
	}

	return nil, domain.ErrNoJSONObject
}

// fencedBlock returns the body of the first ``` block with any language tag removed
func fencedBlock(text string) (string, bool) {
	start := strings.Index(text, codeFence)
	if start == -1 {
		return "", false
	}
	rest := text[start+len(codeFence):]

	end := strings.Index(rest, codeFence)
	if end == -1 {
		return "", false
	}
	body := rest[:end]

	// Drop the info string ("json", "JSON", ...) on the opening line
	if nl := strings.Index(body, "\n"); nl >= 0 && !strings.Contains(body[:nl], "{") {
		body = body[nl+1:]
	}

	return strings.TrimSpace(body), true
}

// firstObject scans for the first balanced {...} span that is valid JSON
func firstObject(text string) ([]byte, bool) {
	for i := 0; i < len(text); i++ {
		if text[i] != '{' {
			continue
		}
		end := matchingBrace(text, i)
		if end < 0 {
			continue
		}
		candidate := text[i : end+1]
		if json.Valid([]byte(candidate)) {
			return []byte(candidate), true
		}
	}
	return nil, false
}

// matchingBrace returns the index of the brace closing the one at open,
// skipping braces inside JSON strings; -1 if it never closes.
func matchingBrace(text string, open int) int {
	depth := 0
	inString := false
	escaped := false

	for i := open; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
