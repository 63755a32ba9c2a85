// Package server runs the extraction daemon: an inbox watcher feeding the
// document queue, an outbox writer, grpc health and a metrics endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/fichas/internal/core/async"
	"github.com/joseph-ayodele/fichas/internal/ingest"
	"github.com/joseph-ayodele/fichas/internal/metrics"
)

// Config holds daemon settings.
type Config struct {
	GRPCAddr       string
	MetricsAddr    string
	InboxDir       string
	Debounce       time.Duration
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
	HealthInterval time.Duration
	DrainTimeout   time.Duration
}

type Server struct {
	cfg       Config
	processor async.DocumentProcessor
	outbox    *Outbox
	checks    map[string]metrics.HealthFunc
	logger    *slog.Logger
	runID     string
}

func New(cfg Config, processor async.DocumentProcessor, outbox *Outbox, checks map[string]metrics.HealthFunc, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 30 * time.Second
	}
	if checks == nil {
		checks = map[string]metrics.HealthFunc{}
	}
	return &Server{
		cfg:       cfg,
		processor: processor,
		outbox:    outbox,
		checks:    checks,
		logger:    logger,
		runID:     uuid.NewString(),
	}
}

// RunID identifies the jobs of this daemon process in the ledger.
func (s *Server) RunID() string { return s.runID }

// Run listens on the configured addresses and serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	grpcLis, err := net.Listen("tcp", s.cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	var metricsLis net.Listener
	if s.cfg.MetricsAddr != "" {
		metricsLis, err = net.Listen("tcp", s.cfg.MetricsAddr)
		if err != nil {
			_ = grpcLis.Close()
			return fmt.Errorf("listen metrics: %w", err)
		}
	}
	return s.Serve(ctx, grpcLis, metricsLis)
}

// Serve runs the daemon on the given listeners. A nil metricsLis disables
// the HTTP endpoint. On return every queued document has been processed or
// DrainTimeout has passed.
func (s *Server) Serve(ctx context.Context, grpcLis, metricsLis net.Listener) error {
	if err := ensureDir(s.cfg.InboxDir, true); err != nil {
		return err
	}
	if err := ensureDir(s.outbox.dir, true); err != nil {
		return err
	}

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	var httpServer *http.Server
	if metricsLis != nil {
		httpServer = &http.Server{
			Handler:           metrics.NewRouter(s.checks),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	queue := async.NewProcessorQueue(s.processor, s.logger,
		async.WithWorkers(s.cfg.Workers),
		async.WithQueueSize(s.cfg.QueueSize),
		async.WithProcessTimeout(s.cfg.ProcessTimeout),
		async.WithResultHandler(s.outbox.Handle),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("grpc.serving", "addr", grpcLis.Addr().String())
		return grpcServer.Serve(grpcLis)
	})
	if httpServer != nil {
		g.Go(func() error {
			s.logger.Info("metrics.serving", "addr", metricsLis.Addr().String())
			if err := httpServer.Serve(metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		monitorHealth(gctx, hs, s.checks, s.cfg.HealthInterval, s.logger)
		return nil
	})
	g.Go(func() error {
		return WatchInbox(gctx, ingest.WatchConfig{
			Roots:       []string{s.cfg.InboxDir},
			InitialScan: true,
			Debounce:    s.cfg.Debounce,
		}, queue, s.runID, s.logger)
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down...")
		hs.Shutdown()
		grpcServer.GracefulStop()
		if httpServer != nil {
			sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(sctx); err != nil {
				s.logger.Warn("metrics shutdown failed", "err", err)
			}
		}
		return nil
	})
	err := g.Wait()

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.DrainTimeout)
	defer cancel()
	queue.Shutdown(dctx)
	s.logger.Info("stopped.")
	return err
}

func ensureDir(dir string, create bool) error {
	if dir == "" {
		return errors.New("directory not configured")
	}
	if create {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	st, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}
