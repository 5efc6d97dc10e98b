package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/toxiscan/backend/internal/domain"
)

const (
	insertAnalysisQuery = `INSERT INTO product_analyses
    (user_id, product_name, brand, category, ingredients, toxiscore, color_code, flagged_ingredients, summary, alternatives)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, created_at`

	analysisColumns = `id, user_id, product_name, brand, category, ingredients, toxiscore, color_code, flagged_ingredients, summary, alternatives, created_at`

	getAnalysisQuery = `SELECT ` + analysisColumns + ` FROM product_analyses WHERE id = $1 AND user_id = $2`

	listAnalysesQuery = `SELECT ` + analysisColumns + ` FROM product_analyses WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`
)

// AnalysisRepository stores analysis records. Records are insert-only.
type AnalysisRepository struct {
	db *sql.DB
}

// NewAnalysisRepository creates an analysis repository
func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Insert stores the record and returns its generated id.
// record.CreatedAt is set from the stored row.
func (r *AnalysisRepository) Insert(ctx context.Context, record *domain.AnalysisRecord) (string, error) {
	ingredients, err := marshalList(record.Ingredients)
	if err != nil {
		return "", fmt.Errorf("encode ingredients: %w", err)
	}
	flagged, err := marshalList(record.FlaggedIngredients)
	if err != nil {
		return "", fmt.Errorf("encode flagged ingredients: %w", err)
	}
	alternatives, err := marshalList(record.Alternatives)
	if err != nil {
		return "", fmt.Errorf("encode alternatives: %w", err)
	}

	var id string
	err = r.db.QueryRowContext(ctx, insertAnalysisQuery,
		record.UserID,
		record.ProductName,
		record.Brand,
		string(record.Category),
		string(ingredients),
		record.Toxiscore,
		string(record.ColorCode),
		string(flagged),
		record.Summary,
		string(alternatives),
	).Scan(&id, &record.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("insert product_analyses: %w", err)
	}

	return id, nil
}

// GetByID returns the record with id owned by userID, or domain.ErrNotFound
func (r *AnalysisRepository) GetByID(ctx context.Context, id, userID string) (*domain.AnalysisRecord, error) {
	row := r.db.QueryRowContext(ctx, getAnalysisQuery, id, userID)

	record, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// ListByUser returns up to limit records for userID, newest first
func (r *AnalysisRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.AnalysisRecord, error) {
	rows, err := r.db.QueryContext(ctx, listAnalysesQuery, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query product_analyses: %w", err)
	}
	defer rows.Close()

	records := make([]domain.AnalysisRecord, 0)
	for rows.Next() {
		record, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product_analyses: %w", err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (*domain.AnalysisRecord, error) {
	var (
		record                             domain.AnalysisRecord
		category, color                    string
		ingredients, flagged, alternatives []byte
	)

	err := row.Scan(
		&record.ID,
		&record.UserID,
		&record.ProductName,
		&record.Brand,
		&category,
		&ingredients,
		&record.Toxiscore,
		&color,
		&flagged,
		&record.Summary,
		&alternatives,
		&record.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan product_analyses: %w", err)
	}

	record.Category = domain.Category(category)
	record.ColorCode = domain.ColorCode(color)

	if err := unmarshalList(ingredients, &record.Ingredients); err != nil {
		return nil, fmt.Errorf("decode ingredients: %w", err)
	}
	if err := unmarshalList(flagged, &record.FlaggedIngredients); err != nil {
		return nil, fmt.Errorf("decode flagged ingredients: %w", err)
	}
	if err := unmarshalList(alternatives, &record.Alternatives); err != nil {
		return nil, fmt.Errorf("decode alternatives: %w", err)
	}
	if record.Ingredients == nil {
		record.Ingredients = []string{}
	}
	if record.FlaggedIngredients == nil {
		record.FlaggedIngredients = []domain.FlaggedIngredient{}
	}
	if record.Alternatives == nil {
		record.Alternatives = []domain.Alternative{}
	}

	return &record, nil
}

// marshalList encodes a slice as a JSON array; nil becomes []
func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func unmarshalList[T any](data []byte, out *[]T) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
