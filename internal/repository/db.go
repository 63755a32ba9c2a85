package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB is an open run ledger. Postgres DSNs go through a pgx pool; anything
// else is treated as a SQLite path (":memory:" included).
type DB struct {
	drv     *entsql.Driver
	pool    *pgxpool.Pool
	dialect string
}

// Dialect returns the ent dialect name in use.
func (db *DB) Dialect() string { return db.dialect }

func (db *DB) builder() *entsql.DialectBuilder { return entsql.Dialect(db.dialect) }

// IsPostgres reports whether dsn addresses a Postgres server.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to the ledger database.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("open ledger: empty DSN")
	}
	if IsPostgres(cfg.DSN) {
		return openPostgres(ctx, cfg, logger)
	}
	return openSQLite(ctx, cfg, logger)
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "fichas"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database", "dialect", dialect.Postgres)
	return &DB{drv: entsql.OpenDB(dialect.Postgres, db), pool: pool, dialect: dialect.Postgres}, nil
}

var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 10000",
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	path := strings.TrimPrefix(strings.TrimPrefix(cfg.DSN, "sqlite://"), "sqlite:")
	memory := path == ":memory:"
	logger.Info("connecting to database", "dialect", dialect.SQLite, "path", path)

	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("open ledger: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	// Pragmas and ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := append([]string(nil), sqlitePragmas...)
	if !memory {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL", "PRAGMA synchronous = NORMAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("open ledger: %s: %w", p, err)
		}
	}
	logger.Info("successfully connected to database", "dialect", dialect.SQLite)
	return &DB{drv: entsql.OpenDB(dialect.SQLite, db), dialect: dialect.SQLite}, nil
}

// Close closes the database connections gracefully
func (db *DB) Close(logger *slog.Logger) {
	if db == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if err := db.drv.Close(); err != nil {
		logger.Error("failed to close database driver", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var err error
	if db.pool != nil {
		err = db.pool.Ping(ctx)
	} else {
		err = db.drv.DB().PingContext(ctx)
	}
	if err != nil {
		logger.Error("database ping failed", "error", err)
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

const (
	tableJobs    = "document_job"
	tableRecords = "extracted_record"
)

// Timestamps are stored as fixed-width UTC text so that ordering by the
// column is chronological in both dialects.
const timeLayout = "2006-01-02T15:04:05.000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS document_job (
		id            TEXT PRIMARY KEY,
		run_id        TEXT NOT NULL,
		source_path   TEXT NOT NULL,
		content_hash  TEXT NOT NULL,
		mode          TEXT NOT NULL,
		status        TEXT NOT NULL,
		record_count  INTEGER NOT NULL DEFAULT 0,
		suppressed    INTEGER NOT NULL DEFAULT 0,
		started_at    TEXT NOT NULL,
		finished_at   TEXT,
		error_message TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS document_job_content_hash ON document_job (content_hash, status)`,
	`CREATE TABLE IF NOT EXISTS extracted_record (
		job_id           TEXT NOT NULL REFERENCES document_job (id) ON DELETE CASCADE,
		record_index     INTEGER NOT NULL,
		source_id        TEXT NOT NULL,
		extracted_at     TEXT NOT NULL,
		fields_json      TEXT NOT NULL,
		extraction_error TEXT,
		PRIMARY KEY (job_id, record_index)
	)`,
}

// Migrate creates the ledger tables when missing.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := db.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
