package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/fichas/internal/core/async"
	"github.com/joseph-ayodele/fichas/internal/ingest"
)

// WatchInbox enqueues every document the watcher reports until ctx ends or
// the queue closes. Watcher errors are logged and do not stop the loop.
func WatchInbox(ctx context.Context, cfg ingest.WatchConfig, queue async.Queue, runID string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Logger = logger
	events, errs, err := ingest.StartWatcher(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("inbox.watching", "roots", cfg.Roots, "run_id", runID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case werr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("inbox.watch.error", "err", werr)
		case path, ok := <-events:
			if !ok {
				return nil
			}
			job := async.Job{Path: path, RunID: runID, SubmittedAt: time.Now()}
			if err := queue.Enqueue(ctx, job); err != nil {
				if errors.Is(err, async.ErrQueueClosed) {
					return nil
				}
				if ctx.Err() != nil {
					return nil
				}
				logger.Error("inbox.enqueue.failed", "path", path, "err", err)
				continue
			}
			logger.Info("inbox.enqueued", "path", path)
		}
	}
}
