package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
	"github.com/noah-isme/promoteur-trust-api/pkg/database"
)

const projectColumns = `id, promoteur_id, title, status, publication_status, is_featured, created_at, updated_at`

// ProjectRepository reads projects and their updates, and applies sanction side effects.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// ListByPromoteur returns the projects owned by a promoteur.
func (r *ProjectRepository) ListByPromoteur(ctx context.Context, promoteurID string) ([]models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE promoteur_id = $1 ORDER BY created_at ASC`
	projects := []models.Project{}
	if err := r.db.SelectContext(ctx, &projects, query, promoteurID); err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// ListSanctionable returns published projects in an active construction phase.
func (r *ProjectRepository) ListSanctionable(ctx context.Context) ([]models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects
WHERE status = ANY($1) AND publication_status = $2 ORDER BY promoteur_id, created_at ASC`
	projects := []models.Project{}
	if err := r.db.SelectContext(ctx, &projects, query, pq.Array(models.ConstructionStatuses), models.PublicationPublished); err != nil {
		return nil, fmt.Errorf("list sanctionable projects: %w", err)
	}
	return projects, nil
}

// LatestUpdateAt returns the most recent update time of a project. When since is set, only
// updates at or after it are considered; publishedOnly restricts to published updates.
// A nil result means no matching update.
func (r *ProjectRepository) LatestUpdateAt(ctx context.Context, projectID string, since *time.Time, publishedOnly bool) (*time.Time, error) {
	query := `SELECT MAX(created_at) FROM project_updates WHERE project_id = $1
AND ($2::timestamptz IS NULL OR created_at >= $2)
AND ($3 = FALSE OR status = 'published')`
	var latest sql.NullTime
	if err := r.db.GetContext(ctx, &latest, query, projectID, since, publishedOnly); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest project update: %w", err)
	}
	if !latest.Valid {
		return nil, nil
	}
	ts := latest.Time
	return &ts, nil
}

// ListUpdatesSince returns updates created at or after since, oldest first.
func (r *ProjectRepository) ListUpdatesSince(ctx context.Context, projectID string, since time.Time) ([]models.ProjectUpdate, error) {
	const query = `SELECT id, project_id, status, created_at FROM project_updates
WHERE project_id = $1 AND created_at >= $2 ORDER BY created_at ASC`
	updates := []models.ProjectUpdate{}
	if err := r.db.SelectContext(ctx, &updates, query, projectID, since); err != nil {
		return nil, fmt.Errorf("list project updates: %w", err)
	}
	return updates, nil
}

// SetStatus changes the project status.
func (r *ProjectRepository) SetStatus(ctx context.Context, projectID, status string) error {
	const query = `UPDATE projects SET status = $2, updated_at = NOW() WHERE id = $1`
	if _, err := database.Executor(ctx, r.db).ExecContext(ctx, query, projectID, status); err != nil {
		return fmt.Errorf("set project status: %w", err)
	}
	return nil
}

// SetFeatured toggles the featured flag.
func (r *ProjectRepository) SetFeatured(ctx context.Context, projectID string, featured bool) error {
	const query = `UPDATE projects SET is_featured = $2, updated_at = NOW() WHERE id = $1`
	if _, err := database.Executor(ctx, r.db).ExecContext(ctx, query, projectID, featured); err != nil {
		return fmt.Errorf("set project featured: %w", err)
	}
	return nil
}
