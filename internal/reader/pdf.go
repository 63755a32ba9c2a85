package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/fichas/internal/common"
)

var errNoText = errors.New("no text layer")

// readPDF extracts page text with the row reader and falls back to a raw
// content-stream scan when that yields nothing.
func (r *Reader) readPDF(ctx context.Context, path string) ([]string, error) {
	pages, err := readPDFRows(ctx, path)
	if err == nil {
		r.logger.Debug("reader.pdf.rows", "path", path, "pages", len(pages))
		return pages, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	if r.cfg.DisablePDFFallback {
		return nil, common.UnreadableError(path, err)
	}
	r.logger.Info("reader.pdf.fallback", "path", path, "reason", err)

	pages, ferr := readPDFContentStreams(ctx, path)
	if ferr != nil {
		r.logger.Warn("reader.pdf.failed", "path", path, "err", ferr)
		return nil, common.UnreadableError(path, errors.Join(err, ferr))
	}
	return pages, nil
}

// readPDFRows groups text runs by baseline, top of page first.
func readPDFRows(ctx context.Context, path string) (pages []string, err error) {
	defer func() {
		if p := recover(); p != nil {
			pages, err = nil, fmt.Errorf("pdf reader panic: %v", p)
		}
	}()

	f, rd, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := 0
	for i := 1; i <= rd.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := rd.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		text := renderRows(rows)
		total += len(strings.TrimSpace(text))
		pages = append(pages, text)
	}
	if total == 0 {
		return nil, errNoText
	}
	return pages, nil
}

func renderRows(rows pdf.Rows) string {
	sorted := make([]*pdf.Row, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			sorted = append(sorted, row)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position > sorted[j].Position })

	var b strings.Builder
	for _, row := range sorted {
		runs := make([]pdf.Text, len(row.Content))
		copy(runs, row.Content)
		sort.SliceStable(runs, func(i, j int) bool { return runs[i].X < runs[j].X })

		var line strings.Builder
		for _, t := range runs {
			if line.Len() > 0 && !strings.HasSuffix(line.String(), " ") && !strings.HasPrefix(t.S, " ") {
				line.WriteByte(' ')
			}
			line.WriteString(t.S)
		}
		b.WriteString(strings.Join(strings.Fields(line.String()), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// readPDFContentStreams decodes the Tj/TJ strings of each page content stream.
func readPDFContentStreams(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}

	var pages []string
	total := 0
	for pageNr := 1; pageNr <= pctx.PageCount; pageNr++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rd, err := pdfcpu.ExtractPageContent(pctx, pageNr)
		if err != nil || rd == nil {
			pages = append(pages, "")
			continue
		}
		data, err := io.ReadAll(rd)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		text := textFromContentStream(data)
		total += len(text)
		pages = append(pages, text)
	}
	if total == 0 {
		return nil, errNoText
	}
	return pages, nil
}

var pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)

// textFromContentStream keeps one output line per text-positioning step.
func textFromContentStream(data []byte) string {
	var b strings.Builder
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		switch {
		case len(line) == 0:
		case bytes.HasSuffix(line, []byte("Tj")), bytes.HasSuffix(line, []byte("TJ")):
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				b.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("'")) && bytes.Contains(line, []byte("(")):
			b.WriteByte('\n')
			for _, m := range pdfStringRe.FindAllSubmatch(line, -1) {
				b.WriteString(decodePDFString(m[1]))
			}
		case bytes.HasSuffix(line, []byte("Td")), bytes.HasSuffix(line, []byte("TD")), bytes.Equal(line, []byte("T*")):
			b.WriteByte('\n')
		case bytes.Equal(line, []byte("ET")):
			b.WriteByte('\n')
		}
	}
	var out []string
	for _, l := range strings.Split(b.String(), "\n") {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// decodePDFString resolves backslash escapes of a PDF literal string.
// Bytes are read as PDFDocEncoding, which matches Latin-1 for the accented
// letters used in Portuguese forms.
func decodePDFString(raw []byte) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			b.WriteRune(rune(c))
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case '\\', '(', ')':
			b.WriteByte(raw[i])
		default:
			if raw[i] < '0' || raw[i] > '7' {
				b.WriteRune(rune(raw[i]))
				continue
			}
			val := int(raw[i] - '0')
			for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
				i++
				val = val*8 + int(raw[i]-'0')
			}
			b.WriteRune(rune(val & 0xff))
		}
	}
	return b.String()
}
