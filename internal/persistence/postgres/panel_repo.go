package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sawpanic/macrocorr/internal/persistence"
)

// panelRepo implements PanelRepo for PostgreSQL.
type panelRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPanelRepo creates a new PostgreSQL panel repository.
func NewPanelRepo(db *sqlx.DB, timeout time.Duration) persistence.PanelRepo {
	return &panelRepo{db: db, timeout: timeout}
}

// SaveSnapshot upserts a panel snapshot keyed by run id.
func (r *panelRepo) SaveSnapshot(ctx context.Context, snapshot persistence.PanelSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if snapshot.RunID == "" {
		return fmt.Errorf("panel snapshot requires a run id")
	}

	columnsJSON, err := json.Marshal(snapshot.Columns)
	if err != nil {
		return fmt.Errorf("failed to marshal columns: %w", err)
	}
	datesJSON, err := json.Marshal(snapshot.Dates)
	if err != nil {
		return fmt.Errorf("failed to marshal dates: %w", err)
	}
	cellsJSON, err := json.Marshal(snapshot.Cells)
	if err != nil {
		return fmt.Errorf("failed to marshal cells: %w", err)
	}

	query := `
		INSERT INTO panel_snapshots (run_id, mode, created_at, columns, dates, cells)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			created_at = EXCLUDED.created_at,
			columns = EXCLUDED.columns,
			dates = EXCLUDED.dates,
			cells = EXCLUDED.cells`

	if _, err := r.db.ExecContext(ctx, query,
		snapshot.RunID, snapshot.Mode, snapshot.CreatedAt,
		columnsJSON, datesJSON, cellsJSON); err != nil {
		return fmt.Errorf("failed to upsert panel snapshot: %w", err)
	}
	return nil
}

// correlationRepo implements CorrelationRepo for PostgreSQL.
type correlationRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewCorrelationRepo creates a new PostgreSQL correlation repository.
func NewCorrelationRepo(db *sqlx.DB, timeout time.Duration) persistence.CorrelationRepo {
	return &correlationRepo{db: db, timeout: timeout}
}

// SaveCorrelation upserts a static correlation matrix keyed by run id.
func (r *correlationRepo) SaveCorrelation(ctx context.Context, record persistence.CorrelationRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	labelsJSON, err := json.Marshal(record.Labels)
	if err != nil {
		return fmt.Errorf("failed to marshal labels: %w", err)
	}
	coefJSON, err := json.Marshal(record.Coef)
	if err != nil {
		return fmt.Errorf("failed to marshal coefficients: %w", err)
	}

	query := `
		INSERT INTO correlation_matrices (run_id, created_at, lookback_months, labels, coefficients)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			lookback_months = EXCLUDED.lookback_months,
			labels = EXCLUDED.labels,
			coefficients = EXCLUDED.coefficients`

	if _, err := r.db.ExecContext(ctx, query,
		record.RunID, record.CreatedAt, record.Lookback, labelsJSON, coefJSON); err != nil {
		return fmt.Errorf("failed to upsert correlation matrix: %w", err)
	}
	return nil
}
