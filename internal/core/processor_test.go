package core

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/core/assemble"
	"github.com/joseph-ayodele/fichas/internal/core/fields"
	"github.com/joseph-ayodele/fichas/internal/core/normalize"
	"github.com/joseph-ayodele/fichas/internal/core/segment"
	"github.com/joseph-ayodele/fichas/internal/extract"
	"github.com/joseph-ayodele/fichas/internal/repository"
)

type jitterExtractor struct {
	panicAt int
}

func (e jitterExtractor) Extract(span extract.RecordSpan) fields.Result {
	time.Sleep(time.Duration(rand.IntN(2000)) * time.Microsecond)
	if span.Index == e.panicAt {
		panic("boom")
	}
	fm := extract.NewFieldMap()
	fm.SetIfEmpty("span", strconv.Itoa(span.Index))
	return fields.Result{Fields: fm}
}

type pagesReader struct {
	pages []string
	err   error
}

func (r *pagesReader) ReadTableCells(context.Context, string) ([]extract.RawCell, error) {
	return nil, errors.New("not a table document")
}

func (r *pagesReader) ReadPages(context.Context, string) ([]string, error) {
	return r.pages, r.err
}

func newSpans(n int) []extract.RecordSpan {
	spans := make([]extract.RecordSpan, n)
	for i := range spans {
		spans[i] = extract.RecordSpan{Mode: constants.ModeFlat, Index: i + 1}
	}
	return spans
}

func TestExtractSpansKeepsOrder(t *testing.T) {
	p := NewProcessor(nil, nil, nil, jitterExtractor{}, nil, Options{Workers: 8})

	records, stats, err := p.ExtractSpans(context.Background(), "fichas.pdf", newSpans(50))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 50 || stats.Failed != 0 {
		t.Fatalf("got %d records, %d failed", len(records), stats.Failed)
	}
	for i, r := range records {
		if r.Index() != i+1 || r.Value("span") != strconv.Itoa(i+1) {
			t.Fatalf("slot %d holds record %d (span=%s)", i, r.Index(), r.Value("span"))
		}
	}
	if err := assemble.CheckOrder(records); err != nil {
		t.Error(err)
	}
	first := records[0].ExtractedAt()
	for _, r := range records {
		if !r.ExtractedAt().Equal(first) {
			t.Fatal("records of one document must share extracted_at")
		}
	}
}

func TestExtractSpansRejectsUnorderedSpans(t *testing.T) {
	p := NewProcessor(nil, nil, nil, jitterExtractor{}, nil, Options{Workers: 2})
	spans := newSpans(3)
	spans[2].Index = 2

	records, _, err := p.ExtractSpans(context.Background(), "fichas.pdf", spans)
	if !errors.Is(err, assemble.ErrSeqInvalid) {
		t.Fatalf("expected ErrSeqInvalid, got %v", err)
	}
	if records != nil {
		t.Errorf("expected no records, got %d", len(records))
	}
}

func TestExtractSpansRecoversPanic(t *testing.T) {
	p := NewProcessor(nil, nil, nil, jitterExtractor{panicAt: 3}, nil, Options{Workers: 2})

	records, stats, err := p.ExtractSpans(context.Background(), "fichas.pdf", newSpans(5))
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 5 || stats.Failed != 1 {
		t.Fatalf("got %d records, %d failed", len(records), stats.Failed)
	}
	bad := records[2]
	if bad.Index() != 3 || bad.ExtractionError() != "extraction failed: boom" || bad.FieldCount() != 0 {
		t.Errorf("unexpected failed record: index=%d err=%q fields=%d", bad.Index(), bad.ExtractionError(), bad.FieldCount())
	}
	if records[3].ExtractionError() != "" || records[3].Value("span") != "4" {
		t.Error("span after the panic must still be extracted")
	}
}

func TestExtractSpansCancelled(t *testing.T) {
	p := NewProcessor(nil, nil, nil, jitterExtractor{}, nil, Options{Workers: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := p.ExtractSpans(ctx, "fichas.pdf", newSpans(10)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

const twoFichas = "Empresa Modelo LTDA\n" +
	"Código Contrato Nome do(a) trabalhador(a)\n" +
	"1042 7 JOSÉ DA SILVA\n" +
	"CPF: 111.222.333-44\n" +
	"Código Contrato Nome do(a) trabalhador(a)\n" +
	"1043 8 MARIA SOUZA\n"

func newTestProcessor(t *testing.T, reader *pagesReader, ledger *Ledger, force bool) *Processor {
	t.Helper()
	return NewProcessor(
		nil,
		normalize.NewNormalizer(reader, nil),
		segment.New(nil, nil),
		fields.NewExtractor(nil, nil, fields.DefaultOptions(), nil),
		ledger,
		Options{Workers: 4, Force: force},
	)
}

func newLedger(t *testing.T) (*Ledger, repository.DocumentJobRepository) {
	t.Helper()
	ctx := context.Background()
	db, err := repository.Open(ctx, repository.Config{DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close(nil) })
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	jobs := repository.NewDocumentJobRepository(db, nil)
	return &Ledger{Jobs: jobs, Records: repository.NewRecordRepository(db, nil)}, jobs
}

func writeDoc(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("%PDF-1.4 "+name), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcessFileWithLedger(t *testing.T) {
	ctx := common.WithRunID(context.Background(), "run-test")
	ledger, jobs := newLedger(t)
	reader := &pagesReader{pages: []string{twoFichas}}
	path := writeDoc(t, "fichas.pdf")

	res, err := newTestProcessor(t, reader, ledger, false).ProcessFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != constants.JobStatusExtracted || len(res.Records) != 2 || res.Mode != constants.ModeFlat {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := res.Records[1].Value("nome"); got != "MARIA SOUZA" {
		t.Errorf("record 2 nome = %q", got)
	}
	if got := res.Records[0].Value("cpf"); got != "111.222.333-44" {
		t.Errorf("record 1 cpf = %q", got)
	}
	job, err := jobs.Get(ctx, res.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != string(constants.JobStatusExtracted) || job.RecordCount != 2 || job.RunID != "run-test" {
		t.Errorf("ledger job = %+v", job)
	}

	again, err := newTestProcessor(t, &pagesReader{err: errors.New("must not be read")}, ledger, false).ProcessFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != constants.JobStatusSkipped || again.JobID != res.JobID || len(again.Records) != 2 {
		t.Fatalf("expected dedup from ledger, got %+v", again)
	}
	if again.Records[0].Value("nome") != "JOSÉ DA SILVA" || again.Records[1].Index() != 2 {
		t.Error("stored records were not restored in order")
	}

	forced, err := newTestProcessor(t, reader, ledger, true).ProcessFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if forced.Status != constants.JobStatusExtracted || forced.JobID == res.JobID {
		t.Errorf("force must start a new job, got %+v", forced)
	}
}

func TestProcessFileNoRecords(t *testing.T) {
	ledger, jobs := newLedger(t)
	reader := &pagesReader{pages: []string{"Relatório sem fichas\nPágina 1 de 1"}}

	res, err := newTestProcessor(t, reader, ledger, false).ProcessFile(context.Background(), writeDoc(t, "vazio.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != constants.JobStatusNoRecords || len(res.Records) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	counts, err := jobs.CountByStatus(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if counts[constants.JobStatusNoRecords] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestProcessFileUnreadable(t *testing.T) {
	ledger, jobs := newLedger(t)
	reader := &pagesReader{err: errors.New("xref table broken")}

	res, err := newTestProcessor(t, reader, ledger, false).ProcessFile(context.Background(), writeDoc(t, "quebrado.pdf"))
	if !errors.Is(err, common.ErrDocumentUnreadable) {
		t.Fatalf("expected ErrDocumentUnreadable, got %v", err)
	}
	if res.Status != constants.JobStatusFailed || !errors.Is(res.Err, common.ErrDocumentUnreadable) {
		t.Errorf("unexpected result %+v", res)
	}
	job, err := jobs.Get(context.Background(), res.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != string(constants.JobStatusFailed) || job.ErrorMessage == nil {
		t.Errorf("ledger job = %+v", job)
	}
}

func TestProcessFileWithoutLedger(t *testing.T) {
	res, err := newTestProcessor(t, &pagesReader{pages: []string{twoFichas}}, nil, false).
		ProcessFile(context.Background(), writeDoc(t, "fichas.pdf"))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Records) != 2 || res.Records[0].SourceID() != "fichas.pdf" {
		t.Errorf("unexpected result %+v", res)
	}
}
