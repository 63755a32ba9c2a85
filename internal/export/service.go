package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/extract"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatTXT  Format = "txt"
)

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch f := Format(constants.NormalizeExt(strings.TrimSpace(s))); f {
	case FormatXLSX, FormatCSV, FormatTXT:
		return f, nil
	case "":
		return FormatXLSX, nil
	default:
		return "", common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown export format %q", s), common.ErrInvalidInput)
	}
}

// Options controls one export. Zero values take the per-format defaults:
// csv uses ';' with a UTF-8 BOM, txt uses '|' without one.
type Options struct {
	Format    Format
	Delimiter rune
	BOM       *bool
	SheetName string
	Priority  []string
}

func (o *Options) defaults() {
	if o.Format == "" {
		o.Format = FormatXLSX
	}
	if o.Delimiter == 0 {
		o.Delimiter = ';'
		if o.Format == FormatTXT {
			o.Delimiter = '|'
		}
	}
	if o.BOM == nil {
		bom := o.Format == FormatCSV
		o.BOM = &bom
	}
	if o.SheetName == "" {
		o.SheetName = "Fichas"
	}
	if o.Priority == nil {
		o.Priority = constants.DefaultPriorityColumns
	}
}

// ParseDelimiter returns the single rune in s, or 0 for an empty string.
func ParseDelimiter(s string) (rune, error) {
	if s == "" {
		return 0, nil
	}
	if s == `\t` {
		return '\t', nil
	}
	r, size := utf8.DecodeRuneInString(s)
	if size != len(s) || r == utf8.RuneError || r == '"' || r == '\n' || r == '\r' {
		return 0, common.NewAppError(common.CodeConfig, fmt.Sprintf("invalid delimiter %q", s), common.ErrInvalidInput)
	}
	return r, nil
}

// Service writes records as spreadsheets or delimited text.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Columns orders the header: priority columns that occur in the data, in the
// given order, then every other key in first-seen order.
func Columns(records []extract.Record, priority []string) []string {
	seen := make(map[string]bool)
	var rest []string
	for _, r := range records {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	cols := make([]string, 0, len(rest))
	taken := make(map[string]bool, len(priority))
	for _, p := range priority {
		if seen[p] && !taken[p] {
			cols = append(cols, p)
			taken[p] = true
		}
	}
	for _, k := range rest {
		if !taken[k] {
			cols = append(cols, k)
		}
	}
	return cols
}

// Render returns the encoded export.
func (s *Service) Render(ctx context.Context, records []extract.Record, opts Options) ([]byte, error) {
	opts.defaults()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cols := Columns(records, opts.Priority)
	switch opts.Format {
	case FormatXLSX:
		return renderXLSX(records, cols, opts.SheetName)
	case FormatCSV, FormatTXT:
		return renderDelimited(records, cols, opts.Delimiter, *opts.BOM)
	default:
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown export format %q", opts.Format), common.ErrInvalidInput)
	}
}

// WriteFile renders records to path. Failures wrap common.ErrExportFailure;
// the caller's records are left untouched.
func (s *Service) WriteFile(ctx context.Context, path string, records []extract.Record, opts Options) error {
	start := time.Now()
	opts.defaults()

	data, err := s.Render(ctx, records, opts)
	if err != nil {
		s.logger.Error("export.render.failed", "path", path, "format", opts.Format, "err", err)
		return common.ExportError(path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			s.logger.Error("export.write.failed", "path", path, "err", err)
			return common.ExportError(path, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		s.logger.Error("export.write.failed", "path", path, "err", err)
		return common.ExportError(path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		s.logger.Error("export.write.failed", "path", path, "err", err)
		return common.ExportError(path, err)
	}

	s.logger.Info("export."+string(opts.Format)+".ok",
		"path", path,
		"rows", len(records),
		"bytes", len(data),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// FileName builds "<prefix>_<timestamp>.<ext>".
func FileName(prefix string, format Format, at time.Time) string {
	if format == "" {
		format = FormatXLSX
	}
	return fmt.Sprintf("%s_%s.%s", prefix, at.Format("20060102_150405"), format)
}

func renderXLSX(records []extract.Record, cols []string, sheet string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	f.SetActiveSheet(index)

	widths := make([]int, len(cols))
	for i, h := range cols {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(sheet, cell, h); err != nil {
			return nil, fmt.Errorf("xlsx header: %w", err)
		}
		widths[i] = utf8.RuneCountInString(h)
	}

	for r, rec := range records {
		row := r + 2
		for i, col := range cols {
			v, ok := rec.Get(col)
			if !ok {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			if col == constants.KeyRecordIndex {
				err = f.SetCellValue(sheet, cell, rec.Index())
			} else {
				// Stored as text so CPF, PIS and CEP keep their leading zeros.
				err = f.SetCellStr(sheet, cell, v)
			}
			if err != nil {
				return nil, fmt.Errorf("xlsx cell %s: %w", cell, err)
			}
			if n := utf8.RuneCountInString(v); n > widths[i] {
				widths[i] = n
			}
		}
	}

	if len(cols) > 0 {
		if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
			last, _ := excelize.CoordinatesToCellName(len(cols), 1)
			_ = f.SetCellStyle(sheet, "A1", last, style)
		}
		_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	}
	for i, w := range widths {
		name, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, name, name, float64(min(max(w, 8), 60)+2))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func renderDelimited(records []extract.Record, cols []string, delim rune, bom bool) ([]byte, error) {
	var buf bytes.Buffer
	if bom {
		buf.WriteString("\uFEFF")
	}
	w := csv.NewWriter(&buf)
	w.Comma = delim
	if err := w.Write(cols); err != nil {
		return nil, fmt.Errorf("delimited header: %w", err)
	}
	row := make([]string, len(cols))
	for _, rec := range records {
		for i, col := range cols {
			row[i] = rec.Value(col)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("delimited row %d: %w", rec.Index(), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("delimited flush: %w", err)
	}
	return buf.Bytes(), nil
}
