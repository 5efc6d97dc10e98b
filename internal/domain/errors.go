package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when no verified user is attached to a request
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrRateLimited is returned when rate limit is exceeded
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInferenceFailure is returned when the inference endpoint call fails
	ErrInferenceFailure = errors.New("inference request failed")

	// ErrNoJSONObject is returned when a completion contains no JSON object
	ErrNoJSONObject = errors.New("no JSON object found in completion")

	// ErrNotFound is returned when a record does not exist or belongs to another user
	ErrNotFound = errors.New("record not found")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when cache service is unavailable
	ErrCacheUnavailable = errors.New("cache service unavailable")
)

// ErrorKind classifies pipeline failures for callers.
// The string form is part of the HTTP error contract.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindUnauthorized
	KindInvalidRequest
	KindRateLimited
	KindInference
	KindInvalidExtraction
	KindInvalidSummary
	KindReferenceStore
	KindPersistence
	KindNotFound
)

var kindNames = map[ErrorKind]string{
	KindUnknown:           "internal_error",
	KindUnauthorized:      "unauthorized",
	KindInvalidRequest:    "invalid_request",
	KindRateLimited:       "rate_limited",
	KindInference:         "inference_error",
	KindInvalidExtraction: "invalid_extraction",
	KindInvalidSummary:    "invalid_summary",
	KindReferenceStore:    "reference_store_error",
	KindPersistence:       "persistence_error",
	KindNotFound:          "not_found",
}

// Existing clients match on substrings of these messages ("clearer", "image", "read",
// "sign in", "Unauthorized", "Too many requests"); keep them stable.
var kindMessages = map[ErrorKind]string{
	KindUnknown:           "Something went wrong. Please try again.",
	KindUnauthorized:      "Unauthorized: please sign in to analyze products.",
	KindInvalidRequest:    "A valid product image is required.",
	KindRateLimited:       "Too many requests. Please wait a moment and try again.",
	KindInference:         "The analysis service is temporarily unavailable. Please try again.",
	KindInvalidExtraction: "We couldn't read the product label. Please take a clearer image of the ingredients and try again.",
	KindInvalidSummary:    "We couldn't read the analysis result for this image. Please try again with a clearer photo.",
	KindReferenceStore:    "The ingredient database is temporarily unavailable. Please try again.",
	KindPersistence:       "Failed to save the analysis. Please try again.",
	KindNotFound:          "Analysis not found.",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindUnknown]
}

// Message returns the user-facing text for the kind
func (k ErrorKind) Message() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return kindMessages[KindUnknown]
}

// AnalysisError is a failure of one pipeline stage
type AnalysisError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// NewAnalysisError wraps err with a kind and the stage it happened in
func NewAnalysisError(kind ErrorKind, stage string, err error) *AnalysisError {
	return &AnalysisError{Kind: kind, Stage: stage, Err: err}
}

// KindOf reports the kind carried by err. Bare sentinels are classified too so
// that adapters returning them directly still map to a stable kind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrInferenceFailure):
		return KindInference
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	return KindUnknown
}

// ValidationError describes the first rule a model payload violated
type ValidationError struct {
	Schema string // "extraction" or "summary"
	Field  string // JSON path, e.g. "ingredients[3]"; empty for whole-document failures
	Rule   string // required, type, json, min_length, max_length, min_items, max_items, enum, min, max
	Detail string
}

func (e *ValidationError) Error() string {
	field := e.Field
	if field == "" {
		field = "(root)"
	}
	if e.Detail == "" {
		return fmt.Sprintf("%s schema: field %s violates %s", e.Schema, field, e.Rule)
	}
	return fmt.Sprintf("%s schema: field %s violates %s: %s", e.Schema, field, e.Rule, e.Detail)
}
