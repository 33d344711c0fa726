package persistence

import (
	"context"
	"time"
)

// PanelSnapshot is the persisted form of one run's merged monthly panel,
// stored for reproducibility alongside the CSV artifact.
type PanelSnapshot struct {
	RunID     string    `db:"run_id"`
	Mode      string    `db:"mode"`
	CreatedAt time.Time `db:"created_at"`
	Columns   []string
	Dates     []time.Time
	// Cells maps column name to values aligned with Dates; nil entries
	// mark missing months (NaN does not survive JSON).
	Cells map[string][]*float64
}

// CorrelationRecord is the persisted static correlation matrix of one run.
type CorrelationRecord struct {
	RunID     string    `db:"run_id"`
	CreatedAt time.Time `db:"created_at"`
	Lookback  int       `db:"lookback_months"`
	Labels    []string
	Coef      [][]*float64
}

// PanelRepo stores panel snapshots.
type PanelRepo interface {
	SaveSnapshot(ctx context.Context, snapshot PanelSnapshot) error
}

// CorrelationRepo stores static correlation matrices.
type CorrelationRepo interface {
	SaveCorrelation(ctx context.Context, record CorrelationRecord) error
}

// Repository bundles all repos behind one handle.
type Repository struct {
	Panels       PanelRepo
	Correlations CorrelationRepo
}
