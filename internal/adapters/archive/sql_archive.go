package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ghalamif/bearingsim/internal/domain"
	"github.com/ghalamif/bearingsim/internal/ports"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config selects where window summaries are kept. An empty Driver disables archiving.
type Config struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

func (c *Config) Enabled() bool { return c.Driver != "" }

func (c *Config) ApplyDefaults() {
	if c.Table == "" {
		c.Table = "anomaly_summaries"
	}
}

func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	switch c.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported driver %q (postgres, sqlite)", c.Driver)
	}
	if c.DSN == "" {
		return errors.New("dsn is required")
	}
	if !tableNamePattern.MatchString(c.Table) {
		return fmt.Errorf("invalid table name %q", c.Table)
	}
	return nil
}

// SQLArchive appends one row per published summary.
type SQLArchive struct {
	db     *sql.DB
	driver string
	table  string
}

// Open connects with database/sql and makes sure the table exists.
func Open(ctx context.Context, cfg Config) (*SQLArchive, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect %s archive: %w", cfg.Driver, err)
	}

	a := NewSQLArchive(db, cfg.Driver, cfg.Table)
	if err := a.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func NewSQLArchive(db *sql.DB, driver, table string) *SQLArchive {
	return &SQLArchive{db: db, driver: driver, table: table}
}

func (a *SQLArchive) Name() string { return a.driver + ":" + a.table }

func (a *SQLArchive) EnsureSchema(ctx context.Context) error {
	idCol := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if a.driver == "postgres" {
		idCol = "id BIGSERIAL PRIMARY KEY"
	}
	_, err := a.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS "+a.table+" ("+
		idCol+", display_key TEXT NOT NULL, epoch_millis BIGINT NOT NULL, total BIGINT NOT NULL)")
	if err != nil {
		return fmt.Errorf("create %s: %w", a.table, err)
	}
	return nil
}

func (a *SQLArchive) Record(ctx context.Context, s domain.Summary) error {
	query := "INSERT INTO " + a.table + " (display_key, epoch_millis, total) VALUES (?, ?, ?)"
	if a.driver == "postgres" {
		query = "INSERT INTO " + a.table + " (display_key, epoch_millis, total) VALUES ($1, $2, $3)"
	}
	if _, err := a.db.ExecContext(ctx, query, s.DisplayKey, s.EpochMillis, s.Total); err != nil {
		return fmt.Errorf("archive summary %s: %w", s.DisplayKey, err)
	}
	return nil
}

// Totals returns the archived running totals in insertion order.
func (a *SQLArchive) Totals(ctx context.Context) ([]int64, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT total FROM "+a.table+" ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (a *SQLArchive) Close() error { return a.db.Close() }

var _ ports.Archive = (*SQLArchive)(nil)
