package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promoteur-trust-api/internal/models"
)

var appealRowColumns = []string{"id", "promoteur_id", "project_id", "restriction_id", "type", "reason", "description",
	"original_action", "status", "level", "assigned_to", "submitted_at", "deadline", "escalated_at", "escalation_reason",
	"review_notes", "decision", "resolved_at", "updated_at"}

func TestAppealRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAppealRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO appeals")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	now := time.Now().UTC()
	appeal := &models.Appeal{
		PromoteurID:   "prom-1",
		RestrictionID: "res-1",
		Type:          models.RestrictionSuspension,
		Reason:        "travaux en cours",
		Level:         models.AppealLevelN1,
		Deadline:      now.Add(72 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), appeal))
	require.NotEmpty(t, appeal.ID)
	require.Equal(t, models.AppealStatusPending, appeal.Status)

	original := `{"restrictionId":"res-1","type":"suspension","code":"no-updates-90days","reason":"x","appliedAt":"2026-01-02T03:04:05Z"}`
	notes := `[{"authorId":"admin-1","note":"photos reçues","createdAt":"2026-01-03T00:00:00Z"}]`
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, promoteur_id, project_id, restriction_id")).
		WithArgs(appeal.ID).
		WillReturnRows(sqlmock.NewRows(appealRowColumns).
			AddRow(appeal.ID, "prom-1", nil, "res-1", "suspension", "travaux en cours", "", []byte(original), "under-review", 1,
				"admin-1", now, appeal.Deadline, nil, nil, []byte(notes), nil, nil, now))

	found, err := repo.GetByID(context.Background(), appeal.ID)
	require.NoError(t, err)
	require.Equal(t, models.AppealStatusUnderReview, found.Status)
	require.Equal(t, "res-1", found.OriginalAction.RestrictionID)
	require.Len(t, found.ReviewNotes, 1)
	require.Nil(t, found.Decision)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppealRepositoryHasOpenForRestriction(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAppealRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM appeals WHERE restriction_id = $1")).
		WithArgs("res-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	open, err := repo.HasOpenForRestriction(context.Background(), "res-1")
	require.NoError(t, err)
	require.False(t, open)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppealRepositoryListBuildsFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAppealRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM appeals WHERE status = ANY($1) AND promoteur_id = $2 AND level = $3 ORDER BY submitted_at DESC LIMIT 50 OFFSET 0")).
		WithArgs(sqlmock.AnyArg(), "prom-1", 2).
		WillReturnRows(sqlmock.NewRows(appealRowColumns))

	appeals, err := repo.List(context.Background(), models.AppealFilter{
		Status:      []models.AppealStatus{models.AppealStatusEscalated},
		PromoteurID: "prom-1",
		Level:       2,
	})
	require.NoError(t, err)
	require.Empty(t, appeals)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppealRepositoryUpdateGuardsStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewAppealRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE appeals SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	appeal := &models.Appeal{ID: "app-1", Status: models.AppealStatusUnderReview, Level: 1, UpdatedAt: time.Now()}
	err := repo.Update(context.Background(), appeal, models.AppealStatusPending)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
