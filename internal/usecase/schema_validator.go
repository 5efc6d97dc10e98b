package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/toxiscan/backend/internal/domain"
)

// Schema names reported in validation errors
const (
	ExtractionSchema = "extraction"
	SummarySchema    = "summary"
)

// extractionPayload mirrors the extraction contract. Unknown keys are ignored.
type extractionPayload struct {
	ProductName string   `json:"productName" validate:"required,min=1,max=200"`
	Brand       *string  `json:"brand" validate:"omitempty,max=100"`
	Category    string   `json:"category" validate:"required,oneof=food cosmetic cleaning pharmaceutical"`
	Ingredients []string `json:"ingredients" validate:"required,min=1,max=500,dive,min=1,max=100"`
}

type summaryPayload struct {
	Summary      *string              `json:"summary" validate:"required,max=1000"`
	Alternatives []alternativePayload `json:"alternatives" validate:"max=10,dive"`
}

type alternativePayload struct {
	Name  *string `json:"name" validate:"required,max=200"`
	Brand *string `json:"brand" validate:"required,max=100"`
	Score *int    `json:"score" validate:"required,min=0,max=100"`
}

// SchemaValidator checks untrusted model output against the extraction and summary contracts
type SchemaValidator struct {
	validate *validator.Validate
}

// NewSchemaValidator creates a validator that reports fields by their JSON names
func NewSchemaValidator() *SchemaValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &SchemaValidator{validate: v}
}

// ValidateExtraction decodes and validates an extraction payload.
// Absent or null brand becomes "Unknown".
func (v *SchemaValidator) ValidateExtraction(payload []byte) (*domain.RawExtraction, error) {
	var p extractionPayload
	if err := v.decode(ExtractionSchema, payload, &p); err != nil {
		return nil, err
	}

	brand := domain.DefaultBrand
	if p.Brand != nil {
		brand = *p.Brand
	}

	return &domain.RawExtraction{
		ProductName: p.ProductName,
		Brand:       brand,
		Category:    domain.Category(p.Category),
		Ingredients: p.Ingredients,
	}, nil
}

// ValidateSummary decodes and validates a summary payload.
// Absent or null alternatives become an empty list.
func (v *SchemaValidator) ValidateSummary(payload []byte) (*domain.SummaryResult, error) {
	var p summaryPayload
	if err := v.decode(SummarySchema, payload, &p); err != nil {
		return nil, err
	}

	alternatives := make([]domain.Alternative, 0, len(p.Alternatives))
	for _, a := range p.Alternatives {
		alternatives = append(alternatives, domain.Alternative{
			Name:  *a.Name,
			Brand: *a.Brand,
			Score: *a.Score,
		})
	}

	return &domain.SummaryResult{
		Summary:      *p.Summary,
		Alternatives: alternatives,
	}, nil
}

// decode unmarshals payload into dst and runs the struct rules
func (v *SchemaValidator) decode(schema string, payload []byte, dst interface{}) error {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return &domain.ValidationError{Schema: schema, Rule: "type", Detail: "expected a JSON object"}
	}

	if err := json.Unmarshal(trimmed, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &domain.ValidationError{
				Schema: schema,
				Field:  typeErr.Field,
				Rule:   "type",
				Detail: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value),
			}
		}
		return &domain.ValidationError{Schema: schema, Rule: "json", Detail: err.Error()}
	}

	if err := v.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return toValidationError(schema, fieldErrs[0])
		}
		return &domain.ValidationError{Schema: schema, Rule: "invalid", Detail: err.Error()}
	}

	return nil
}

// toValidationError converts a validator field error into the domain error
func toValidationError(schema string, fe validator.FieldError) *domain.ValidationError {
	// Namespace is "<struct>.<path>"; drop the Go type name
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}

	rule := fe.Tag()
	switch fe.Tag() {
	case "oneof":
		rule = "enum"
	case "min", "max":
		switch fe.Kind() {
		case reflect.String:
			rule = fe.Tag() + "_length"
		case reflect.Slice, reflect.Array, reflect.Map:
			rule = fe.Tag() + "_items"
		}
	}

	detail := ""
	if fe.Param() != "" {
		detail = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
	}

	return &domain.ValidationError{
		Schema: schema,
		Field:  field,
		Rule:   rule,
		Detail: detail,
	}
}
