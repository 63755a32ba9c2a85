package server

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/core"
	repo "github.com/joseph-ayodele/fichas/internal/repository"
)

// ConnectLedger opens and migrates the run ledger. An empty DSN disables it
// and returns nil values without error.
func ConnectLedger(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*repo.DB, *core.Ledger, error) {
	if cfg.DSN == "" {
		logger.Info("run ledger disabled: DB_URL not set")
		return nil, nil, nil
	}

	db, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.DSN,
		MaxConns:         cfg.MaxConns,
		MinConns:         cfg.MinConns,
		MaxConnLifetime:  cfg.MaxConnLifetime,
		MaxConnIdleTime:  cfg.MaxConnIdleTime,
		DialTimeout:      cfg.DialTimeout,
		StatementTimeout: cfg.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		db.Close(logger)
		return nil, nil, err
	}

	logger.Info("successfully connected to database", "dialect", db.Dialect())
	return db, &core.Ledger{
		Jobs:    repo.NewDocumentJobRepository(db, logger),
		Records: repo.NewRecordRepository(db, logger),
	}, nil
}
