package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/macrocorr/internal/persistence"
)

func mockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestPanelRepo_SaveSnapshot(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewPanelRepo(db, 5*time.Second)

	v := 1.5
	snapshot := persistence.PanelSnapshot{
		RunID:     "run-123",
		Mode:      "returns",
		CreatedAt: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		Columns:   []string{"SPX"},
		Dates:     []time.Time{time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)},
		Cells:     map[string][]*float64{"SPX": {&v}},
	}

	mock.ExpectExec("INSERT INTO panel_snapshots").
		WithArgs(snapshot.RunID, snapshot.Mode, snapshot.CreatedAt,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveSnapshot(context.Background(), snapshot))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPanelRepo_SaveSnapshotRequiresRunID(t *testing.T) {
	db, _ := mockDB(t)
	repo := NewPanelRepo(db, 5*time.Second)

	err := repo.SaveSnapshot(context.Background(), persistence.PanelSnapshot{})
	require.Error(t, err)
}

func TestCorrelationRepo_SaveCorrelation(t *testing.T) {
	db, mock := mockDB(t)
	repo := NewCorrelationRepo(db, 5*time.Second)

	one := 1.0
	record := persistence.CorrelationRecord{
		RunID:     "run-123",
		CreatedAt: time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
		Lookback:  120,
		Labels:    []string{"SPX"},
		Coef:      [][]*float64{{&one}},
	}

	mock.ExpectExec("INSERT INTO correlation_matrices").
		WithArgs(record.RunID, record.CreatedAt, record.Lookback,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SaveCorrelation(context.Background(), record))
	require.NoError(t, mock.ExpectationsWereMet())
}
