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

func TestTrustConfigRepositoryCreateAssignsNextVersion(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewTrustConfigRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(version), 0) FROM trust_score_configs")).
		WithArgs("strict").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trust_score_configs")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	cfg := models.DefaultTrustScoreConfig()
	cfg.Name = "strict"
	require.NoError(t, repo.Create(context.Background(), &cfg))
	require.Equal(t, 3, cfg.Version)
	require.False(t, cfg.IsActive)
	require.NotEmpty(t, cfg.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrustConfigRepositoryActivateIsAtomic(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewTrustConfigRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE trust_score_configs SET is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE trust_score_configs SET is_active = TRUE WHERE id = $1")).
		WithArgs("cfg-2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.Activate(context.Background(), "cfg-2"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE trust_score_configs SET is_active = FALSE")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE trust_score_configs SET is_active = TRUE WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	err := repo.Activate(context.Background(), "missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTrustConfigRepositoryGetActiveDecodesSettings(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewTrustConfigRepository(db)
	settings := `{"weights":{"kyc":40,"documents":20,"updates":10,"responseTime":10,"completion":10,"badges":10},
"updateFrequency":{"idealDays":5,"minimumDays":10,"maxPenaltyDays":20},
"responseTime":{"excellentHours":1,"goodHours":4,"acceptableHours":12},
"gamingDetection":{"suspiciousPatternsEnabled":false,"maxDailyUpdates":3,"minUpdateIntervalHours":1},
"bonuses":{"completeProfile":2},"penalties":{"missedSLA":1}}`
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, version, is_active, settings")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "version", "is_active", "settings", "created_by", "created_at"}).
			AddRow("cfg-1", "strict", 2, true, []byte(settings), nil, time.Now()))

	cfg, err := repo.GetActive(context.Background())
	require.NoError(t, err)
	require.Equal(t, float64(40), cfg.Settings.Weights.KYC)
	require.Equal(t, 20, cfg.Settings.UpdateFrequency.MaxPenaltyDays)
	require.False(t, cfg.Settings.GamingDetection.SuspiciousPatternsEnabled)
	require.Nil(t, cfg.CreatedBy)
	require.NoError(t, mock.ExpectationsWereMet())
}
