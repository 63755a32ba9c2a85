package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/fichas/internal/metrics"
	repo "github.com/joseph-ayodele/fichas/internal/repository"
)

// ServiceName is the grpc health service name reported next to "".
const ServiceName = "fichas.Extractor"

// LedgerCheck adapts the ledger ping to a health check.
func LedgerCheck(db *repo.DB, logger *slog.Logger) metrics.HealthFunc {
	return func(ctx context.Context) error {
		return db.HealthCheck(ctx, time.Second, logger)
	}
}

// DirCheck fails when dir is not an accessible directory.
func DirCheck(dir string) metrics.HealthFunc {
	return func(context.Context) error {
		return ensureDir(dir, false)
	}
}

// monitorHealth runs checks every interval and flips the grpc serving
// status accordingly until ctx ends.
func monitorHealth(ctx context.Context, hs *health.Server, checks map[string]metrics.HealthFunc, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	last := healthpb.HealthCheckResponse_SERVING
	apply := func() {
		status := healthpb.HealthCheckResponse_SERVING
		cctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		for name, check := range checks {
			if err := check(cctx); err != nil {
				logger.Warn("health.check.failed", "check", name, "err", err)
				status = healthpb.HealthCheckResponse_NOT_SERVING
			}
		}
		if status != last {
			logger.Info("health.status.changed", "status", status.String())
			last = status
		}
		hs.SetServingStatus("", status)
		hs.SetServingStatus(ServiceName, status)
	}

	apply()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			apply()
		}
	}
}
