package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/macrocorr/internal/persistence"
	"github.com/sawpanic/macrocorr/internal/persistence/postgres"
)

// Config holds database connection configuration. Persistence is off the
// critical path and disabled unless configured explicitly.
type Config struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	Enabled         bool          `yaml:"enabled"`
}

// DefaultConfig returns reasonable defaults for database connections.
func DefaultConfig() Config {
	return Config{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		QueryTimeout:    30 * time.Second,
		Enabled:         false,
	}
}

// Manager manages the database connection and repository instances.
type Manager struct {
	db     *sqlx.DB
	config Config
	repos  *persistence.Repository
}

// NewManager connects to PostgreSQL when enabled; a disabled config yields
// a manager with no repositories.
func NewManager(config Config) (*Manager, error) {
	if !config.Enabled {
		return &Manager{config: config}, nil
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("database enabled but no DSN configured")
	}

	conn, err := sqlx.Connect("postgres", config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	conn.SetMaxOpenConns(config.MaxOpenConns)
	conn.SetMaxIdleConns(config.MaxIdleConns)
	conn.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	log.Info().Int("max_open", config.MaxOpenConns).Msg("Connected to PostgreSQL")
	return &Manager{
		db:     conn,
		config: config,
		repos: &persistence.Repository{
			Panels:       postgres.NewPanelRepo(conn, config.QueryTimeout),
			Correlations: postgres.NewCorrelationRepo(conn, config.QueryTimeout),
		},
	}, nil
}

// Repos returns the repository bundle, nil when persistence is disabled.
func (m *Manager) Repos() *persistence.Repository {
	return m.repos
}

// Enabled reports whether persistence is active.
func (m *Manager) Enabled() bool {
	return m.repos != nil
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}
	return m.db.Close()
}
