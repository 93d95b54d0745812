package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
	"github.com/noah-isme/promoteur-trust-api/pkg/database"
)

const promoteurColumns = `id, user_id, company_name, kyc_status, trust_score, subscription_status, profile_complete,
       badges, total_projects, completed_projects, average_response_time, version, trust_score_updated_at,
       created_at, updated_at`

const restrictionColumns = `id, promoteur_id, project_id, type, code, reason, applied_at, expires_at`

// PromoteurRepository persists promoteur accounts and their restrictions.
type PromoteurRepository struct {
	db *sqlx.DB
}

// NewPromoteurRepository constructs the repository.
func NewPromoteurRepository(db *sqlx.DB) *PromoteurRepository {
	return &PromoteurRepository{db: db}
}

// exec returns the transaction bound to ctx, or the pool.
func (r *PromoteurRepository) exec(ctx context.Context) sqlx.ExtContext {
	return database.Executor(ctx, r.db)
}

// GetByID fetches a promoteur together with its restrictions.
func (r *PromoteurRepository) GetByID(ctx context.Context, id string) (*models.Promoteur, error) {
	query := `SELECT ` + promoteurColumns + ` FROM promoteurs WHERE id = $1`
	var promoteur models.Promoteur
	if err := sqlx.GetContext(ctx, r.exec(ctx), &promoteur, query, id); err != nil {
		return nil, err
	}
	restrictions, err := r.ListRestrictions(ctx, id)
	if err != nil {
		return nil, err
	}
	promoteur.Restrictions = restrictions
	return &promoteur, nil
}

// ListIDs returns every promoteur identifier ordered by creation.
func (r *PromoteurRepository) ListIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM promoteurs ORDER BY created_at ASC`); err != nil {
		return nil, fmt.Errorf("list promoteur ids: %w", err)
	}
	return ids, nil
}

// PromoteurScore is a light projection used by bulk score adjustments.
type PromoteurScore struct {
	ID         string `db:"id"`
	TrustScore int    `db:"trust_score"`
}

// ListScores returns the current score of every promoteur.
func (r *PromoteurRepository) ListScores(ctx context.Context) ([]PromoteurScore, error) {
	var scores []PromoteurScore
	if err := r.db.SelectContext(ctx, &scores, `SELECT id, trust_score FROM promoteurs ORDER BY created_at ASC`); err != nil {
		return nil, fmt.Errorf("list promoteur scores: %w", err)
	}
	return scores, nil
}

// PromoteurSummary feeds admin reports.
type PromoteurSummary struct {
	ID                 string                    `db:"id"`
	CompanyName        string                    `db:"company_name"`
	TrustScore         int                       `db:"trust_score"`
	SubscriptionStatus models.SubscriptionStatus `db:"subscription_status"`
	ActiveRestrictions int                       `db:"active_restrictions"`
}

// ListSummaries returns every promoteur with its count of non-expired restrictions.
func (r *PromoteurRepository) ListSummaries(ctx context.Context, now time.Time) ([]PromoteurSummary, error) {
	const query = `SELECT p.id, p.company_name, p.trust_score, p.subscription_status,
       COUNT(pr.id) FILTER (WHERE pr.expires_at IS NULL OR pr.expires_at > $1) AS active_restrictions
FROM promoteurs p
LEFT JOIN promoteur_restrictions pr ON pr.promoteur_id = p.id
GROUP BY p.id
ORDER BY p.trust_score DESC, p.company_name ASC`
	var rows []PromoteurSummary
	if err := r.db.SelectContext(ctx, &rows, query, now); err != nil {
		return nil, fmt.Errorf("list promoteur summaries: %w", err)
	}
	return rows, nil
}

// UpdateTrustScore persists a new score and bumps the row version.
func (r *PromoteurRepository) UpdateTrustScore(ctx context.Context, id string, score int, at time.Time) error {
	const query = `UPDATE promoteurs SET trust_score = $2, trust_score_updated_at = $3, updated_at = $3, version = version + 1
WHERE id = $1`
	return r.execOne(ctx, "update trust score", query, id, score, at)
}

// UpdateSubscriptionStatus changes the subscription state.
func (r *PromoteurRepository) UpdateSubscriptionStatus(ctx context.Context, id string, status models.SubscriptionStatus) error {
	const query = `UPDATE promoteurs SET subscription_status = $2, updated_at = NOW(), version = version + 1 WHERE id = $1`
	return r.execOne(ctx, "update subscription status", query, id, status)
}

// UpdateBadges replaces the badge list.
func (r *PromoteurRepository) UpdateBadges(ctx context.Context, id string, badges []string) error {
	const query = `UPDATE promoteurs SET badges = $2, updated_at = NOW(), version = version + 1 WHERE id = $1`
	return r.execOne(ctx, "update badges", query, id, pq.StringArray(badges))
}

// ListRestrictions returns all restrictions of a promoteur, oldest first.
func (r *PromoteurRepository) ListRestrictions(ctx context.Context, promoteurID string) ([]models.Restriction, error) {
	query := `SELECT ` + restrictionColumns + ` FROM promoteur_restrictions WHERE promoteur_id = $1 ORDER BY applied_at ASC`
	restrictions := []models.Restriction{}
	if err := sqlx.SelectContext(ctx, r.exec(ctx), &restrictions, query, promoteurID); err != nil {
		return nil, fmt.Errorf("list restrictions: %w", err)
	}
	return restrictions, nil
}

// AddRestriction appends a restriction entry.
func (r *PromoteurRepository) AddRestriction(ctx context.Context, restriction *models.Restriction) error {
	if restriction.ID == "" {
		restriction.ID = uuid.NewString()
	}
	if restriction.AppliedAt.IsZero() {
		restriction.AppliedAt = time.Now().UTC()
	}
	const query = `INSERT INTO promoteur_restrictions (id, promoteur_id, project_id, type, code, reason, applied_at, expires_at)
VALUES (:id, :promoteur_id, :project_id, :type, :code, :reason, :applied_at, :expires_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(ctx), query, restriction); err != nil {
		return fmt.Errorf("add restriction: %w", err)
	}
	return nil
}

// HasActiveRestriction reports whether a non-expired restriction with the code exists.
func (r *PromoteurRepository) HasActiveRestriction(ctx context.Context, promoteurID, code string, now time.Time) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM promoteur_restrictions
WHERE promoteur_id = $1 AND code = $2 AND (expires_at IS NULL OR expires_at > $3))`
	var exists bool
	if err := sqlx.GetContext(ctx, r.exec(ctx), &exists, query, promoteurID, code, now); err != nil {
		return false, fmt.Errorf("check restriction: %w", err)
	}
	return exists, nil
}

// RemoveRestriction deletes a single restriction by id.
func (r *PromoteurRepository) RemoveRestriction(ctx context.Context, promoteurID, restrictionID string) error {
	const query = `DELETE FROM promoteur_restrictions WHERE id = $1 AND promoteur_id = $2`
	return r.execOne(ctx, "remove restriction", query, restrictionID, promoteurID)
}

// ListPromoteursWithExpiredRestrictions returns ids owning at least one expired restriction.
func (r *PromoteurRepository) ListPromoteursWithExpiredRestrictions(ctx context.Context, now time.Time) ([]string, error) {
	const query = `SELECT DISTINCT promoteur_id FROM promoteur_restrictions WHERE expires_at IS NOT NULL AND expires_at <= $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, now); err != nil {
		return nil, fmt.Errorf("list expired restrictions: %w", err)
	}
	return ids, nil
}

// DeleteExpiredRestrictions removes and returns expired restrictions of a promoteur.
func (r *PromoteurRepository) DeleteExpiredRestrictions(ctx context.Context, promoteurID string, now time.Time) ([]models.Restriction, error) {
	query := `DELETE FROM promoteur_restrictions WHERE promoteur_id = $1 AND expires_at IS NOT NULL AND expires_at <= $2
RETURNING ` + restrictionColumns
	removed := []models.Restriction{}
	if err := sqlx.SelectContext(ctx, r.exec(ctx), &removed, query, promoteurID, now); err != nil {
		return nil, fmt.Errorf("delete expired restrictions: %w", err)
	}
	return removed, nil
}

func (r *PromoteurRepository) execOne(ctx context.Context, op, query string, args ...interface{}) error {
	result, err := r.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
