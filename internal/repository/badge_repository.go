package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
)

// BadgeRepository reads badge definitions.
type BadgeRepository struct {
	db *sqlx.DB
}

// NewBadgeRepository constructs the repository.
func NewBadgeRepository(db *sqlx.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// ListActive returns enabled badge definitions.
func (r *BadgeRepository) ListActive(ctx context.Context) ([]models.BadgeDefinition, error) {
	const query = `SELECT code, name, description, rules, active FROM badge_definitions WHERE active = TRUE ORDER BY code ASC`
	defs := []models.BadgeDefinition{}
	if err := r.db.SelectContext(ctx, &defs, query); err != nil {
		return nil, fmt.Errorf("list badge definitions: %w", err)
	}
	return defs, nil
}
