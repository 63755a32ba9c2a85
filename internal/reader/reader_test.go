package reader

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/fichas/internal/common"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// writeDocx builds a minimal .docx whose body is the given WordprocessingML.
func writeDocx(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
			`<Default Extension="xml" ContentType="application/xml"/>` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`,
		"_rels/.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml":            `<?xml version="1.0" encoding="UTF-8"?><w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func para(runs ...string) string {
	var b strings.Builder
	b.WriteString("<w:p>")
	for _, r := range runs {
		b.WriteString("<w:r><w:t xml:space=\"preserve\">" + r + "</w:t></w:r>")
	}
	b.WriteString("</w:p>")
	return b.String()
}

func cell(paras ...string) string {
	return "<w:tc>" + strings.Join(paras, "") + "</w:tc>"
}

func TestReadTableCells(t *testing.T) {
	nested := "<w:tbl><w:tr>" + cell(para("interno")) + "</w:tr></w:tbl>"
	body := para("Ficha de registro") +
		"<w:tbl>" +
		"<w:tr>" + cell(para("Código"), para("1042")) + cell(para("Nome do(a) trabalhador(a)"), para("JOSÉ &amp; FILHOS")) + "</w:tr>" +
		"<w:tr>" + cell(para("CPF"), para("123.456", ".789-00")) + cell(para("Obs"), nested) + "</w:tr>" +
		"</w:tbl>" +
		"<w:tbl><w:tr>" + cell("<w:p><w:r><w:t>A</w:t><w:tab/><w:t>B</w:t><w:br/><w:t>C</w:t></w:r></w:p>") +
		cell(`<w:p><w:pPr><w:tabs><w:tab w:val="left" w:pos="720"/></w:tabs></w:pPr><w:r><w:t>SAO PAULO</w:t></w:r></w:p>`) +
		"</w:tr></w:tbl>"
	path := writeDocx(t, t.TempDir(), "fichas.docx", body)

	cells, err := New(Config{}, nil).ReadTableCells(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		table, row int
		text       string
	}{
		{0, 0, "Código\n1042"},
		{0, 0, "Nome do(a) trabalhador(a)\nJOSÉ & FILHOS"},
		{0, 1, "CPF\n123.456.789-00"},
		{0, 1, "Obs\ninterno"},
		{1, 0, "A\tB\nC"},
		{1, 0, "SAO PAULO"},
	}
	if len(cells) != len(want) {
		t.Fatalf("got %d cells: %+v", len(cells), cells)
	}
	for i, w := range want {
		c := cells[i]
		if c.Table != w.table || c.Row != w.row || c.Text != w.text {
			t.Errorf("cell %d = %+v, want table=%d row=%d text=%q", i, c, w.table, w.row, w.text)
		}
	}
}

func TestReadDocxPages(t *testing.T) {
	body := para("Código Contrato Nome do(a) trabalhador(a)") +
		`<w:p><w:pPr><w:tabs><w:tab w:val="right" w:pos="9000"/></w:tabs></w:pPr><w:r><w:t>1 2 ANA</w:t></w:r></w:p>` +
		`<w:p><w:r><w:br w:type="page"/></w:r></w:p>` +
		"<w:tbl><w:tr>" + cell(para("Código"), para("3")) + "</w:tr></w:tbl>"
	path := writeDocx(t, t.TempDir(), "fichas.docx", body)

	pages, err := New(Config{}, nil).ReadPages(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 2 {
		t.Fatalf("got %d pages: %q", len(pages), pages)
	}
	if !strings.Contains(pages[0], "\n1 2 ANA\n") || strings.Contains(pages[0], "\t") || strings.Contains(pages[0], "Código\n3") {
		t.Errorf("page 1 = %q", pages[0])
	}
	if !strings.Contains(pages[1], "Código\n3") {
		t.Errorf("page 2 = %q", pages[1])
	}
}

// writePDF builds a one-page PDF with one text line per entry.
func writePDF(t *testing.T, dir, name string, lines []string) string {
	t.Helper()
	var content bytes.Buffer
	content.WriteString("BT\n/F1 12 Tf\n72 720 Td\n")
	for i, l := range lines {
		if i > 0 {
			content.WriteString("0 -20 Td\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", l)
	}
	content.WriteString("ET\n")

	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadPDFPages(t *testing.T) {
	path := writePDF(t, t.TempDir(), "fichas.pdf", []string{"Codigo Contrato Nome", "10 20 FULANO DE TAL"})

	pages, err := New(Config{}, nil).ReadPages(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages", len(pages))
	}
	first := strings.Index(pages[0], "Codigo Contrato Nome")
	second := strings.Index(pages[0], "FULANO DE TAL")
	if first < 0 || second < 0 || second < first {
		t.Errorf("page text = %q", pages[0])
	}
}

func TestUnreadableDocuments(t *testing.T) {
	dir := t.TempDir()
	garbage := func(name string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("this is not a real document"), 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}
	r := New(Config{}, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"corrupt docx cells", func() error { _, err := r.ReadTableCells(ctx, garbage("a.docx")); return err }},
		{"corrupt docx pages", func() error { _, err := r.ReadPages(ctx, garbage("b.docx")); return err }},
		{"corrupt pdf", func() error { _, err := r.ReadPages(ctx, garbage("c.pdf")); return err }},
		{"missing file", func() error { _, err := r.ReadPages(ctx, filepath.Join(dir, "missing.pdf")); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, common.ErrDocumentUnreadable) {
				t.Errorf("expected ErrDocumentUnreadable, got %v", err)
			}
		})
	}
}

func TestReadTableCellsRejectsPDF(t *testing.T) {
	path := writePDF(t, t.TempDir(), "x.pdf", []string{"Codigo 1"})
	_, err := New(Config{}, nil).ReadTableCells(context.Background(), path)
	if !errors.Is(err, common.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestMaxFileBytes(t *testing.T) {
	path := writePDF(t, t.TempDir(), "big.pdf", []string{"Codigo 1"})
	_, err := New(Config{MaxFileBytes: 10}, nil).ReadPages(context.Background(), path)
	if !errors.Is(err, common.ErrDocumentUnreadable) {
		t.Errorf("expected ErrDocumentUnreadable, got %v", err)
	}
}

func TestTextFromContentStream(t *testing.T) {
	stream := []byte("BT\n/F1 10 Tf\n(Nome da m\\343e) Tj\n0 -12 Td\n[(MA) -20 (RIA)] TJ\nET\n")
	got := textFromContentStream(stream)
	if got != "Nome da mãe\nMARIA" {
		t.Errorf("textFromContentStream = %q", got)
	}
}
