package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/toxiscan/backend/internal/domain"
)

const listHazardsQuery = `SELECT name, hazard_score, hazard_type, description FROM hazardous_ingredients ORDER BY id`

// HazardRepository reads the hazard reference table
type HazardRepository struct {
	db *sql.DB
}

// NewHazardRepository creates a hazard repository
func NewHazardRepository(db *sql.DB) *HazardRepository {
	return &HazardRepository{db: db}
}

// ListHazards returns every reference record ordered by id
func (r *HazardRepository) ListHazards(ctx context.Context) ([]domain.HazardRecord, error) {
	rows, err := r.db.QueryContext(ctx, listHazardsQuery)
	if err != nil {
		return nil, fmt.Errorf("query hazardous_ingredients: %w", err)
	}
	defer rows.Close()

	hazards := make([]domain.HazardRecord, 0)
	for rows.Next() {
		var h domain.HazardRecord
		if err := rows.Scan(&h.Name, &h.HazardScore, &h.HazardType, &h.Description); err != nil {
			return nil, fmt.Errorf("scan hazardous_ingredients: %w", err)
		}
		hazards = append(hazards, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hazardous_ingredients: %w", err)
	}

	return hazards, nil
}
