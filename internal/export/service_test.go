package export

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/extract"
)

var testTime = time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)

func record(index int, kv ...string) extract.Record {
	fm := extract.NewFieldMap()
	for i := 0; i+1 < len(kv); i += 2 {
		fm.SetIfEmpty(kv[i], kv[i+1])
	}
	return extract.NewRecord(fm, "fichas.docx", index, testTime, "")
}

func sampleRecords() []extract.Record {
	return []extract.Record{
		record(1, "codigo", "10", "nome", "ANA", "cpf", "012.345.678-90"),
		record(2, "sexo", "Feminino", "nome", "BIA; SOUZA"),
	}
}

func TestColumns(t *testing.T) {
	got := Columns(sampleRecords(), []string{"record_index", "nome", "cpf", "data_rescisao", "nome"})
	want := []string{"record_index", "nome", "cpf", "codigo", "source_id", "extracted_at", "sexo"}
	if !slices.Equal(got, want) {
		t.Errorf("Columns() = %v, want %v", got, want)
	}
	if cols := Columns(nil, []string{"nome"}); len(cols) != 0 {
		t.Errorf("no records should give no columns, got %v", cols)
	}
}

func TestRenderCSV(t *testing.T) {
	data, err := NewService(nil).Render(context.Background(), sampleRecords(), Options{Format: FormatCSV, Priority: []string{"nome"}})
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\uFEFF")) {
		t.Fatal("csv export should start with a UTF-8 BOM")
	}
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(data), "\uFEFF")), "\n")
	if lines[0] != "nome;codigo;cpf;source_id;record_index;extracted_at;sexo" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != `"BIA; SOUZA";;;fichas.docx;2;2025-05-06 07:08:09;Feminino` {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestRenderTXT(t *testing.T) {
	data, err := NewService(nil).Render(context.Background(), sampleRecords()[:1], Options{Format: FormatTXT, Priority: []string{}})
	if err != nil {
		t.Fatal(err)
	}
	if bytes.HasPrefix(data, []byte("\uFEFF")) {
		t.Error("txt export must not carry a BOM")
	}
	want := "codigo|nome|cpf|source_id|record_index|extracted_at\n10|ANA|012.345.678-90|fichas.docx|1|2025-05-06 07:08:09\n"
	if string(data) != want {
		t.Errorf("txt =\n%q\nwant\n%q", data, want)
	}
}

func TestRenderDelimiterOverride(t *testing.T) {
	noBOM := false
	data, err := NewService(nil).Render(context.Background(), sampleRecords()[:1], Options{Format: FormatCSV, Delimiter: ',', BOM: &noBOM, Priority: []string{}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "codigo,nome,cpf,") {
		t.Errorf("csv = %q", data)
	}
}

func TestWriteFileXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "fichas.xlsx")
	if err := NewService(nil).WriteFile(context.Background(), path, sampleRecords(), Options{}); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if name := f.GetSheetName(0); name != "Fichas" {
		t.Errorf("sheet = %q", name)
	}
	rows, err := f.GetRows("Fichas")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows", len(rows))
	}
	if !slices.Equal(rows[0][:4], []string{"record_index", "source_id", "nome", "cpf"}) {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][3] != "012.345.678-90" {
		t.Errorf("cpf cell = %q", rows[1][3])
	}
	if rows[2][0] != "2" {
		t.Errorf("record_index cell = %q", rows[2][0])
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind")
	}
}

func TestWriteFileFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	records := sampleRecords()
	err := NewService(nil).WriteFile(context.Background(), filepath.Join(blocker, "out.csv"), records, Options{Format: FormatCSV})
	if !errors.Is(err, common.ErrExportFailure) {
		t.Fatalf("expected ErrExportFailure, got %v", err)
	}
	if len(records) != 2 || records[0].Value("nome") != "ANA" {
		t.Error("records must survive a failed export")
	}
}

func TestParseFormatAndDelimiter(t *testing.T) {
	for in, want := range map[string]Format{"": FormatXLSX, "CSV": FormatCSV, ".txt": FormatTXT, "xlsx": FormatXLSX} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("ods"); !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}

	if r, err := ParseDelimiter(`\t`); err != nil || r != '\t' {
		t.Errorf("ParseDelimiter(\\t) = %q, %v", r, err)
	}
	if r, err := ParseDelimiter(""); err != nil || r != 0 {
		t.Errorf("ParseDelimiter(\"\") = %q, %v", r, err)
	}
	if _, err := ParseDelimiter(";;"); err == nil {
		t.Error("expected error for two-character delimiter")
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("fichas_extraidas", FormatCSV, testTime); got != "fichas_extraidas_20250506_070809.csv" {
		t.Errorf("FileName = %q", got)
	}
}
