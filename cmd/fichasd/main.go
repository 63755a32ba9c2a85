package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/export"
	"github.com/joseph-ayodele/fichas/internal/metrics"
	"github.com/joseph-ayodele/fichas/internal/server"
)

func main() {
	force := flag.Bool("force", false, "re-extract documents already in the ledger")
	flag.Parse()

	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stdout, cfg.LogLevel)
	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	// Context with signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, ledger, err := server.ConnectLedger(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("creating run ledger", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	// Healthcheck DB on startup
	checks := map[string]metrics.HealthFunc{
		"inbox":  server.DirCheck(cfg.Server.InboxDir),
		"outbox": server.DirCheck(cfg.Server.OutboxDir),
	}
	if db != nil {
		if err := db.HealthCheck(ctx, 3*time.Second, logger); err != nil {
			logger.Error("DB health failed", "error", err)
			os.Exit(1)
		}
		logger.Info("DB health OK")
		checks["ledger"] = server.LedgerCheck(db, logger)
	}

	pipeline, err := server.NewPipeline(cfg, ledger, *force, logger)
	if err != nil {
		logger.Error("failed to build extraction pipeline", "error", err)
		os.Exit(1)
	}
	outbox := server.NewOutbox(cfg.Server.OutboxDir, pipeline.Export, export.NewService(logger), logger)

	srv := server.New(server.Config{
		GRPCAddr:    cfg.Server.GRPCAddr,
		MetricsAddr: cfg.Server.MetricsAddr,
		InboxDir:    cfg.Server.InboxDir,
		Debounce:    cfg.Server.Debounce,
		Workers:     cfg.Server.QueueWorkers,
		QueueSize:   cfg.Server.QueueSize,
	}, pipeline.Processor, outbox, checks, logger)

	logger.Info("fichasd starting",
		"grpc_addr", cfg.Server.GRPCAddr,
		"metrics_addr", cfg.Server.MetricsAddr,
		"inbox", cfg.Server.InboxDir,
		"outbox", cfg.Server.OutboxDir,
		"run_id", srv.RunID(),
	)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}
