package database

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/promoteur-trust-api/pkg/config"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestWithTxCommits(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE trust_score_configs").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := WithTx(context.Background(), db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(context.Background(), "UPDATE trust_score_configs SET is_active = FALSE")
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err := WithTx(context.Background(), db, func(*sqlx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDSNDefaultsSSLMode(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "trust", Name: "promoteurs"})
	assert.Contains(t, dsn, "sslmode=disable")
	assert.Contains(t, dsn, "dbname=promoteurs")
}

func TestTransactorBindsExecutorAndRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM promoteur_restrictions").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE appeals").WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	assert.Same(t, db, Executor(context.Background(), db))

	err := NewTransactor(db).InTx(context.Background(), func(ctx context.Context) error {
		exec := Executor(ctx, db)
		_, isTx := exec.(*sqlx.Tx)
		require.True(t, isTx)
		if _, err := exec.ExecContext(ctx, "DELETE FROM promoteur_restrictions WHERE id = $1", "r-1"); err != nil {
			return err
		}
		_, err := exec.ExecContext(ctx, "UPDATE appeals SET status = $1", "approved")
		return err
	})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactorNestedCallJoinsOuterTx(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit()

	tr := NewTransactor(db)
	err := tr.InTx(context.Background(), func(ctx context.Context) error {
		outer := Executor(ctx, db)
		return tr.InTx(ctx, func(inner context.Context) error {
			assert.Same(t, outer, Executor(inner, db))
			return nil
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
