package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
	"github.com/noah-isme/promoteur-trust-api/pkg/database"
)

const trustConfigColumns = `id, name, version, is_active, settings, created_by, created_at`

// TrustConfigRepository persists versioned trust score configurations.
type TrustConfigRepository struct {
	db *sqlx.DB
}

// NewTrustConfigRepository constructs the repository.
func NewTrustConfigRepository(db *sqlx.DB) *TrustConfigRepository {
	return &TrustConfigRepository{db: db}
}

// GetActive returns the active configuration or sql.ErrNoRows.
func (r *TrustConfigRepository) GetActive(ctx context.Context) (*models.TrustScoreConfig, error) {
	query := `SELECT ` + trustConfigColumns + ` FROM trust_score_configs WHERE is_active = TRUE
ORDER BY created_at DESC LIMIT 1`
	var cfg models.TrustScoreConfig
	if err := r.db.GetContext(ctx, &cfg, query); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetByID fetches a configuration by identifier.
func (r *TrustConfigRepository) GetByID(ctx context.Context, id string) (*models.TrustScoreConfig, error) {
	query := `SELECT ` + trustConfigColumns + ` FROM trust_score_configs WHERE id = $1`
	var cfg models.TrustScoreConfig
	if err := r.db.GetContext(ctx, &cfg, query, id); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// List returns every configuration, newest first.
func (r *TrustConfigRepository) List(ctx context.Context) ([]models.TrustScoreConfig, error) {
	query := `SELECT ` + trustConfigColumns + ` FROM trust_score_configs ORDER BY name ASC, version DESC`
	configs := []models.TrustScoreConfig{}
	if err := r.db.SelectContext(ctx, &configs, query); err != nil {
		return nil, fmt.Errorf("list trust configs: %w", err)
	}
	return configs, nil
}

// Create inserts an inactive configuration, assigning the next version for its name.
func (r *TrustConfigRepository) Create(ctx context.Context, cfg *models.TrustScoreConfig) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var current int
		if err := tx.GetContext(ctx, &current, `SELECT COALESCE(MAX(version), 0) FROM trust_score_configs WHERE name = $1`, cfg.Name); err != nil {
			return fmt.Errorf("next trust config version: %w", err)
		}
		if cfg.ID == "" {
			cfg.ID = uuid.NewString()
		}
		cfg.Version = current + 1
		cfg.IsActive = false
		if cfg.CreatedAt.IsZero() {
			cfg.CreatedAt = time.Now().UTC()
		}
		const query = `INSERT INTO trust_score_configs (id, name, version, is_active, settings, created_by, created_at)
VALUES (:id, :name, :version, :is_active, :settings, :created_by, :created_at)`
		if _, err := tx.NamedExecContext(ctx, query, cfg); err != nil {
			return fmt.Errorf("create trust config: %w", err)
		}
		return nil
	})
}

// Activate deactivates every configuration and activates the given one atomically.
func (r *TrustConfigRepository) Activate(ctx context.Context, id string) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE trust_score_configs SET is_active = FALSE WHERE is_active = TRUE`); err != nil {
			return fmt.Errorf("deactivate trust configs: %w", err)
		}
		result, err := tx.ExecContext(ctx, `UPDATE trust_score_configs SET is_active = TRUE WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("activate trust config: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("check activate rows: %w", err)
		}
		if rows == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}
