package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
)

const snapshotColumns = `id, promoteur_id, score, breakdown, gaming_detected, created_at`

// SnapshotRepository stores the append-only trust score history.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs the repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create appends a snapshot.
func (r *SnapshotRepository) Create(ctx context.Context, snapshot *models.TrustScoreSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO trust_score_snapshots (id, promoteur_id, score, breakdown, gaming_detected, created_at)
VALUES (:id, :promoteur_id, :score, :breakdown, :gaming_detected, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, snapshot); err != nil {
		return fmt.Errorf("create trust snapshot: %w", err)
	}
	return nil
}

// Latest returns the most recent snapshot or sql.ErrNoRows.
func (r *SnapshotRepository) Latest(ctx context.Context, promoteurID string) (*models.TrustScoreSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM trust_score_snapshots WHERE promoteur_id = $1
ORDER BY created_at DESC LIMIT 1`
	var snapshot models.TrustScoreSnapshot
	if err := r.db.GetContext(ctx, &snapshot, query, promoteurID); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListByPromoteur returns up to limit snapshots, newest first.
func (r *SnapshotRepository) ListByPromoteur(ctx context.Context, promoteurID string, limit int) ([]models.TrustScoreSnapshot, error) {
	if limit <= 0 || limit > 365 {
		limit = 30
	}
	query := `SELECT ` + snapshotColumns + ` FROM trust_score_snapshots WHERE promoteur_id = $1
ORDER BY created_at DESC LIMIT $2`
	snapshots := []models.TrustScoreSnapshot{}
	if err := r.db.SelectContext(ctx, &snapshots, query, promoteurID, limit); err != nil {
		return nil, fmt.Errorf("list trust snapshots: %w", err)
	}
	return snapshots, nil
}

// ListSince returns snapshots created at or after since, oldest first.
func (r *SnapshotRepository) ListSince(ctx context.Context, promoteurID string, since time.Time) ([]models.TrustScoreSnapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM trust_score_snapshots WHERE promoteur_id = $1 AND created_at >= $2
ORDER BY created_at ASC`
	snapshots := []models.TrustScoreSnapshot{}
	if err := r.db.SelectContext(ctx, &snapshots, query, promoteurID, since); err != nil {
		return nil, fmt.Errorf("list trust snapshots since: %w", err)
	}
	return snapshots, nil
}
