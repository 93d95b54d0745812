package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
	"github.com/noah-isme/promoteur-trust-api/pkg/database"
)

const appealColumns = `id, promoteur_id, project_id, restriction_id, type, reason, description, original_action,
       status, level, assigned_to, submitted_at, deadline, escalated_at, escalation_reason, review_notes,
       decision, resolved_at, updated_at`

var openAppealStatuses = []string{
	string(models.AppealStatusPending),
	string(models.AppealStatusUnderReview),
	string(models.AppealStatusEscalated),
}

// AppealRepository persists sanction appeals.
type AppealRepository struct {
	db *sqlx.DB
}

// NewAppealRepository constructs the repository.
func NewAppealRepository(db *sqlx.DB) *AppealRepository {
	return &AppealRepository{db: db}
}

// Create inserts a new appeal.
func (r *AppealRepository) Create(ctx context.Context, appeal *models.Appeal) error {
	if appeal.ID == "" {
		appeal.ID = uuid.NewString()
	}
	if appeal.Status == "" {
		appeal.Status = models.AppealStatusPending
	}
	if appeal.SubmittedAt.IsZero() {
		appeal.SubmittedAt = time.Now().UTC()
	}
	appeal.UpdatedAt = appeal.SubmittedAt
	const query = `INSERT INTO appeals
	(id, promoteur_id, project_id, restriction_id, type, reason, description, original_action, status, level,
	 assigned_to, submitted_at, deadline, escalated_at, escalation_reason, review_notes, decision, resolved_at, updated_at)
	VALUES (:id, :promoteur_id, :project_id, :restriction_id, :type, :reason, :description, :original_action, :status, :level,
	 :assigned_to, :submitted_at, :deadline, :escalated_at, :escalation_reason, :review_notes, :decision, :resolved_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, appeal); err != nil {
		return fmt.Errorf("create appeal: %w", err)
	}
	return nil
}

// GetByID fetches an appeal by identifier.
func (r *AppealRepository) GetByID(ctx context.Context, id string) (*models.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals WHERE id = $1`
	var appeal models.Appeal
	if err := r.db.GetContext(ctx, &appeal, query, id); err != nil {
		return nil, err
	}
	return &appeal, nil
}

// HasOpenForRestriction reports whether a non-terminal appeal already contests the restriction.
func (r *AppealRepository) HasOpenForRestriction(ctx context.Context, restrictionID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM appeals WHERE restriction_id = $1 AND status = ANY($2))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, restrictionID, pq.Array(openAppealStatuses)); err != nil {
		return false, fmt.Errorf("check open appeal: %w", err)
	}
	return exists, nil
}

// List returns appeals matching the filter, most recent first.
func (r *AppealRepository) List(ctx context.Context, filter models.AppealFilter) ([]models.Appeal, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(`SELECT ` + appealColumns + ` FROM appeals`)

	conditions := make([]string, 0, 4)
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			statuses[i] = string(status)
		}
		args = append(args, pq.Array(statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.PromoteurID != "" {
		args = append(args, filter.PromoteurID)
		conditions = append(conditions, fmt.Sprintf("promoteur_id = $%d", len(args)))
	}
	if filter.Level > 0 {
		args = append(args, filter.Level)
		conditions = append(conditions, fmt.Sprintf("level = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY submitted_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	appeals := []models.Appeal{}
	if err := r.db.SelectContext(ctx, &appeals, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list appeals: %w", err)
	}
	return appeals, nil
}

// ListOverdue returns non-terminal appeals whose deadline has passed.
func (r *AppealRepository) ListOverdue(ctx context.Context, now time.Time) ([]models.Appeal, error) {
	query := `SELECT ` + appealColumns + ` FROM appeals WHERE status = ANY($1) AND deadline < $2 ORDER BY deadline ASC`
	appeals := []models.Appeal{}
	if err := r.db.SelectContext(ctx, &appeals, query, pq.Array(openAppealStatuses), now); err != nil {
		return nil, fmt.Errorf("list overdue appeals: %w", err)
	}
	return appeals, nil
}

// Update persists the mutable workflow columns, guarded on the status the caller read.
// A concurrent transition makes the update match no row and yields sql.ErrNoRows.
func (r *AppealRepository) Update(ctx context.Context, appeal *models.Appeal, expected models.AppealStatus) error {
	const query = `UPDATE appeals SET status = :status, level = :level, assigned_to = :assigned_to, deadline = :deadline,
	escalated_at = :escalated_at, escalation_reason = :escalation_reason, review_notes = :review_notes,
	decision = :decision, resolved_at = :resolved_at, updated_at = :updated_at
	WHERE id = :id AND status = :expected_status`
	result, err := sqlx.NamedExecContext(ctx, database.Executor(ctx, r.db), query, map[string]interface{}{
		"id":                appeal.ID,
		"status":            appeal.Status,
		"level":             appeal.Level,
		"assigned_to":       appeal.AssignedTo,
		"deadline":          appeal.Deadline,
		"escalated_at":      appeal.EscalatedAt,
		"escalation_reason": appeal.EscalationReason,
		"review_notes":      appeal.ReviewNotes,
		"decision":          appeal.Decision,
		"resolved_at":       appeal.ResolvedAt,
		"updated_at":        appeal.UpdatedAt,
		"expected_status":   expected,
	})
	if err != nil {
		return fmt.Errorf("update appeal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check appeal update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
