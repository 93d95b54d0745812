package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
)

// UserRepository resolves platform users for notification fan-out.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// ListActiveIDsByRole returns active user ids holding any of the roles.
func (r *UserRepository) ListActiveIDsByRole(ctx context.Context, roles ...models.UserRole) ([]string, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	values := make([]string, len(roles))
	for i, role := range roles {
		values[i] = string(role)
	}
	const query = `SELECT id FROM users WHERE active = TRUE AND role = ANY($1) ORDER BY id ASC`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, pq.Array(values)); err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return ids, nil
}

// PromoteurUserID returns the account owner of a promoteur.
func (r *UserRepository) PromoteurUserID(ctx context.Context, promoteurID string) (string, error) {
	var userID string
	if err := r.db.GetContext(ctx, &userID, `SELECT user_id FROM promoteurs WHERE id = $1`, promoteurID); err != nil {
		return "", err
	}
	return userID, nil
}
