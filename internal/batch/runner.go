// Package batch runs one extraction pass over files and directories and
// writes a single export.
package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/core"
	"github.com/joseph-ayodele/fichas/internal/export"
	"github.com/joseph-ayodele/fichas/internal/extract"
	"github.com/joseph-ayodele/fichas/internal/ingest"
	"github.com/joseph-ayodele/fichas/internal/metrics"
)

// DocumentProcessor is the part of core.Processor the runner drives.
type DocumentProcessor interface {
	Process(ctx context.Context, doc ingest.Document) (core.DocumentResult, error)
}

// Exporter writes the combined records.
type Exporter interface {
	WriteFile(ctx context.Context, path string, records []extract.Record, opts export.Options) error
}

// Request describes one run.
type Request struct {
	Inputs []string
	// Output is the export path. Empty skips the export.
	Output string
	Export export.Options
}

// Summary is the outcome of a run. Records stay available when the export
// fails.
type Summary struct {
	RunID     string
	Documents []core.DocumentResult
	Failures  []ingest.Failure
	Stats     ingest.DirStats
	Records   []extract.Record
	Processed int
	Skipped   int
	Empty     int
	Failed    int
	Output    string
	ExportErr error
	Elapsed   time.Duration
}

type Runner struct {
	logger    *slog.Logger
	ingestor  ingest.Ingestor
	processor DocumentProcessor
	exporter  Exporter
}

func NewRunner(logger *slog.Logger, ingestor ingest.Ingestor, processor DocumentProcessor, exporter Exporter) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger, ingestor: ingestor, processor: processor, exporter: exporter}
}

// Run processes every document of req in input order. A failed document is
// counted and the run continues. The returned error is either a collection
// error, a cancellation, or the export failure (also kept in ExportErr).
func (r *Runner) Run(ctx context.Context, req Request) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString()}
	ctx = common.WithRunID(ctx, sum.RunID)
	r.logger.Info("batch.started", "run_id", sum.RunID, "inputs", req.Inputs)

	docs, failures, stats, err := r.ingestor.Collect(ctx, req.Inputs)
	sum.Failures, sum.Stats = failures, stats
	if err != nil {
		r.logger.Error("batch.collect.failed", "run_id", sum.RunID, "err", err)
		return sum, err
	}
	for _, f := range failures {
		r.logger.Warn("batch.input.failed", "path", f.Path, "err", f.Err)
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, err
		}
		res, err := r.processor.Process(ctx, doc)
		sum.Documents = append(sum.Documents, res)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				sum.Elapsed = time.Since(start)
				return sum, err
			}
			sum.Failed++
			continue
		}
		switch res.Status {
		case constants.JobStatusSkipped:
			sum.Skipped++
		case constants.JobStatusNoRecords:
			sum.Empty++
		default:
			sum.Processed++
		}
		sum.Records = append(sum.Records, res.Records...)
	}

	if req.Output != "" {
		format := string(req.Export.Format)
		if format == "" {
			format = string(export.FormatXLSX)
		}
		err := r.exporter.WriteFile(ctx, req.Output, sum.Records, req.Export)
		metrics.ObserveExport(format, err)
		if err != nil {
			sum.ExportErr = err
		} else {
			sum.Output = req.Output
		}
	}

	sum.Elapsed = time.Since(start)
	r.logger.Info("batch.completed",
		"run_id", sum.RunID,
		"documents", len(docs),
		"processed", sum.Processed,
		"skipped", sum.Skipped,
		"empty", sum.Empty,
		"failed", sum.Failed,
		"records", len(sum.Records),
		"output", sum.Output,
		"elapsed_ms", sum.Elapsed.Milliseconds(),
	)
	return sum, sum.ExportErr
}
