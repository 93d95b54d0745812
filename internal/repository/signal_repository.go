package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
)

// SignalRepository aggregates document and lead data feeding the trust score.
type SignalRepository struct {
	db *sqlx.DB
}

// NewSignalRepository constructs the repository.
func NewSignalRepository(db *sqlx.DB) *SignalRepository {
	return &SignalRepository{db: db}
}

// DocumentStats counts a promoteur's documents by status.
func (r *SignalRepository) DocumentStats(ctx context.Context, promoteurID string) (models.DocumentStats, error) {
	const query = `SELECT COUNT(*) AS total,
       COUNT(*) FILTER (WHERE status = 'verified') AS verified,
       COUNT(*) FILTER (WHERE status = 'expired') AS expired,
       COUNT(*) FILTER (WHERE status = 'missing') AS missing,
       COUNT(*) FILTER (WHERE status = 'rejected') AS rejected
FROM documents WHERE promoteur_id = $1`
	var stats models.DocumentStats
	if err := r.db.GetContext(ctx, &stats, query, promoteurID); err != nil {
		return models.DocumentStats{}, fmt.Errorf("document stats: %w", err)
	}
	return stats, nil
}

// MissedSLACount counts leads answered later than the SLA, or still unanswered past it.
func (r *SignalRepository) MissedSLACount(ctx context.Context, promoteurID string, slaHours float64, now time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM leads
WHERE promoteur_id = $1 AND (
    (first_response_at IS NOT NULL AND EXTRACT(EPOCH FROM (first_response_at - created_at)) / 3600 > $2)
 OR (first_response_at IS NULL AND EXTRACT(EPOCH FROM ($3 - created_at)) / 3600 > $2)
)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, promoteurID, slaHours, now); err != nil {
		return 0, fmt.Errorf("missed sla count: %w", err)
	}
	return count, nil
}
