package core

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/core/assemble"
	"github.com/joseph-ayodele/fichas/internal/core/fields"
	"github.com/joseph-ayodele/fichas/internal/core/normalize"
	"github.com/joseph-ayodele/fichas/internal/core/segment"
	"github.com/joseph-ayodele/fichas/internal/entity"
	"github.com/joseph-ayodele/fichas/internal/extract"
	"github.com/joseph-ayodele/fichas/internal/ingest"
	"github.com/joseph-ayodele/fichas/internal/metrics"
	"github.com/joseph-ayodele/fichas/internal/repository"
)

// SpanExtractor turns one span into fields. Implementations must be safe
// for concurrent use.
type SpanExtractor interface {
	Extract(span extract.RecordSpan) fields.Result
}

// Ledger persists document jobs and their records. Both repositories are
// required when a ledger is configured.
type Ledger struct {
	Jobs    repository.DocumentJobRepository
	Records repository.RecordRepository
}

// Options tune a Processor.
type Options struct {
	Workers int
	Mode    constants.Mode
	// Force re-extracts documents whose content already succeeded in the ledger.
	Force bool
	Now   func() time.Time
}

// DocumentResult is the outcome of one document.
type DocumentResult struct {
	Path       string
	SourceID   string
	JobID      uuid.UUID
	Mode       constants.Mode
	Status     constants.JobStatus
	Records    []extract.Record
	Suppressed int
	Failed     int
	Elapsed    time.Duration
	Err        error
}

// Processor coordinates normalize, segment, extract and assemble for one
// document at a time.
type Processor struct {
	logger     *slog.Logger
	normalizer *normalize.Normalizer
	segmenter  *segment.Segmenter
	extractor  SpanExtractor
	assembler  *assemble.Assembler
	ingestor   *ingest.FSIngestor
	ledger     *Ledger
	opts       Options
}

func NewProcessor(
	logger *slog.Logger,
	normalizer *normalize.Normalizer,
	segmenter *segment.Segmenter,
	extractor SpanExtractor,
	ledger *Ledger,
	opts Options,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Mode == "" {
		opts.Mode = constants.ModeAuto
	}
	if ledger != nil && (ledger.Jobs == nil || ledger.Records == nil) {
		ledger = nil
	}
	return &Processor{
		logger:     logger,
		normalizer: normalizer,
		segmenter:  segmenter,
		extractor:  extractor,
		assembler:  assemble.New(opts.Now),
		ingestor:   ingest.NewFSIngestor(logger),
		ledger:     ledger,
		opts:       opts,
	}
}

// ProcessFile hashes path and processes it.
func (p *Processor) ProcessFile(ctx context.Context, path string) (DocumentResult, error) {
	doc, err := p.ingestor.Describe(ctx, path)
	if err != nil {
		res := DocumentResult{Path: path, SourceID: filepath.Base(path), Status: constants.JobStatusFailed, Err: err}
		p.logger.Error("document.describe.failed", "path", path, "err", err)
		return res, err
	}
	return p.Process(ctx, doc)
}

// Process extracts the records of doc. A failed document reports its error
// in the result and as the returned error; it never panics.
func (p *Processor) Process(ctx context.Context, doc ingest.Document) (DocumentResult, error) {
	start := time.Now()
	res, err := p.process(ctx, doc)
	res.Elapsed = time.Since(start)
	metrics.ObserveDocument(string(res.Mode), string(res.Status), len(res.Records), res.Suppressed, res.Elapsed)
	return res, err
}

func (p *Processor) process(ctx context.Context, doc ingest.Document) (DocumentResult, error) {
	res := DocumentResult{
		Path:     doc.Path,
		SourceID: filepath.Base(doc.Path),
		Mode:     p.opts.Mode.Resolve(constants.FormatForPath(doc.Path)),
	}
	ctx = common.WithSourceID(ctx, res.SourceID)

	if p.ledger != nil && !p.opts.Force && doc.HashHex != "" {
		if prev, ok := p.previous(ctx, doc); ok {
			res.JobID, res.Status, res.Records = prev.job.ID, constants.JobStatusSkipped, prev.records
			p.logger.Info("document.extract.skipped",
				"path", doc.Path,
				"previous_job", prev.job.ID,
				"records", len(prev.records),
			)
			return res, nil
		}
	}

	if p.ledger != nil {
		job, err := p.ledger.Jobs.Start(ctx, common.RunIDFromContext(ctx), doc.Path, doc.HashHex, res.Mode)
		if err != nil {
			p.logger.Warn("ledger.start.failed", "path", doc.Path, "err", err)
		} else {
			res.JobID = job.ID
		}
	}

	stream, err := p.normalizer.Normalize(ctx, doc.Path, res.Mode)
	if err != nil {
		return p.fail(ctx, res, err)
	}
	res.Mode = stream.Mode

	spans := p.segmenter.Segment(stream)
	if len(spans) == 0 {
		res.Status = constants.JobStatusNoRecords
		p.logger.Warn("document.extract.norecords", "path", doc.Path, "mode", res.Mode)
		if res.JobID != uuid.Nil {
			if err := p.ledger.Jobs.FinishNoRecords(ctx, res.JobID); err != nil {
				p.logger.Warn("ledger.finish.failed", "job_id", res.JobID, "err", err)
			}
		}
		return res, nil
	}

	records, stats, err := p.ExtractSpans(ctx, res.SourceID, spans)
	if err != nil {
		return p.fail(ctx, res, err)
	}
	res.Records, res.Suppressed, res.Failed = records, stats.Suppressed, stats.Failed
	res.Status = constants.JobStatusExtracted

	if res.JobID != uuid.Nil {
		if err := p.ledger.Records.SaveRecords(ctx, res.JobID, records); err != nil {
			p.logger.Warn("ledger.records.failed", "job_id", res.JobID, "err", err)
		} else if err := p.ledger.Jobs.FinishSuccess(ctx, res.JobID, len(records), stats.Suppressed); err != nil {
			p.logger.Warn("ledger.finish.failed", "job_id", res.JobID, "err", err)
		}
	}

	p.logger.Info("document.extract.ok",
		"path", doc.Path,
		"mode", res.Mode,
		"spans", len(spans),
		"records", len(records),
		"suppressed", stats.Suppressed,
		"failed_spans", stats.Failed,
	)
	return res, nil
}

func (p *Processor) fail(ctx context.Context, res DocumentResult, err error) (DocumentResult, error) {
	res.Status, res.Err = constants.JobStatusFailed, err
	p.logger.Error("document.extract.failed", "path", res.Path, "mode", res.Mode, "err", err)
	if res.JobID != uuid.Nil {
		// The job row is closed even when ctx was cancelled.
		fctx := context.WithoutCancel(ctx)
		if ferr := p.ledger.Jobs.FinishFailure(fctx, res.JobID, err.Error()); ferr != nil {
			p.logger.Warn("ledger.finish.failed", "job_id", res.JobID, "err", ferr)
		}
	}
	return res, err
}

type previousRun struct {
	job     *entity.DocumentJob
	records []extract.Record
}

func (p *Processor) previous(ctx context.Context, doc ingest.Document) (previousRun, bool) {
	job, err := p.ledger.Jobs.FindSucceededByHash(ctx, doc.HashHex)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			p.logger.Warn("ledger.lookup.failed", "path", doc.Path, "err", err)
		}
		return previousRun{}, false
	}
	stored, err := p.ledger.Records.ListRecords(ctx, job.ID)
	if err != nil {
		p.logger.Warn("ledger.records.failed", "job_id", job.ID, "err", err)
		return previousRun{}, false
	}
	sourceID := filepath.Base(doc.Path)
	records := make([]extract.Record, 0, len(stored))
	for _, s := range stored {
		fm := extract.NewFieldMap()
		for _, f := range s.Fields {
			fm.SetIfEmpty(f.Key, f.Value)
		}
		records = append(records, extract.NewRecord(fm, sourceID, s.RecordIndex, s.ExtractedAt.Local(), s.ExtractionError))
	}
	return previousRun{job: job, records: records}, true
}

// SpanStats summarizes one ExtractSpans call.
type SpanStats struct {
	Suppressed int
	Failed     int
}

// ExtractSpans extracts spans on at most Workers goroutines. Each worker
// writes its pre-assigned slot, so the records keep span order. A worker
// panic yields a record carrying an extraction error. Once ctx is done no
// new span is dispatched; spans already running are drained and ctx.Err()
// is returned. Spans whose indexes are not strictly ascending are rejected
// with assemble.ErrSeqInvalid.
func (p *Processor) ExtractSpans(ctx context.Context, sourceID string, spans []extract.RecordSpan) ([]extract.Record, SpanStats, error) {
	at := p.assembler.Now()
	records := make([]extract.Record, len(spans))
	suppressed := make([]int, len(spans))
	failed := make([]bool, len(spans))

	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i, span := range spans {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			records[i], suppressed[i], failed[i] = p.extractOne(sourceID, span, at)
			return nil
		})
	}
	_ = g.Wait()

	var stats SpanStats
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}
	if err := assemble.CheckOrder(records); err != nil {
		return nil, stats, err
	}
	for i := range spans {
		stats.Suppressed += suppressed[i]
		if failed[i] {
			stats.Failed++
		}
	}
	return records, stats, nil
}

func (p *Processor) extractOne(sourceID string, span extract.RecordSpan, at time.Time) (rec extract.Record, suppressed int, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("document.span.panic", "source_id", sourceID, "record_index", span.Index, "panic", r)
			metrics.SpanFailed()
			rec, suppressed, failed = p.assembler.Failed(nil, sourceID, span.Index, at, r), 0, true
		}
	}()
	res := p.extractor.Extract(span)
	return p.assembler.Assemble(res.Fields, sourceID, span.Index, at), res.Suppressed(), false
}
