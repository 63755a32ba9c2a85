package server

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/core"
	"github.com/joseph-ayodele/fichas/internal/core/async"
	"github.com/joseph-ayodele/fichas/internal/export"
	"github.com/joseph-ayodele/fichas/internal/extract"
	"github.com/joseph-ayodele/fichas/internal/metrics"
)

// Exporter writes one document's records.
type Exporter interface {
	WriteFile(ctx context.Context, path string, records []extract.Record, opts export.Options) error
}

// Outbox writes one export file per extracted document.
type Outbox struct {
	dir      string
	opts     export.Options
	exporter Exporter
	logger   *slog.Logger
	now      func() time.Time
}

func NewOutbox(dir string, opts export.Options, exporter Exporter, logger *slog.Logger) *Outbox {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Format == "" {
		opts.Format = export.FormatXLSX
	}
	return &Outbox{dir: dir, opts: opts, exporter: exporter, logger: logger, now: time.Now}
}

// Path returns the export path for a source document:
// "<outbox>/<stem>_<timestamp>.<ext>".
func (o *Outbox) Path(source string, at time.Time) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(o.dir, export.FileName(stem, o.opts.Format, at))
}

// Handle is the queue result handler. Failed documents and documents
// without records produce no file.
func (o *Outbox) Handle(ctx context.Context, job async.Job, res core.DocumentResult, err error) {
	if err != nil {
		return
	}
	if res.Status == constants.JobStatusNoRecords || len(res.Records) == 0 {
		o.logger.Info("outbox.skipped", "path", job.Path, "status", res.Status)
		return
	}
	target := o.Path(job.Path, o.now())
	werr := o.exporter.WriteFile(ctx, target, res.Records, o.opts)
	metrics.ObserveExport(string(o.opts.Format), werr)
	if werr != nil {
		o.logger.Error("outbox.write.failed", "path", job.Path, "target", target, "err", werr)
		return
	}
	o.logger.Info("outbox.write.ok", "path", job.Path, "target", target, "records", len(res.Records))
}
