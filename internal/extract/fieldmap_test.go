package extract

import (
	"slices"
	"testing"
	"time"

	"github.com/joseph-ayodele/fichas/constants"
)

func TestFieldMapFirstNonEmptyWins(t *testing.T) {
	m := NewFieldMap()
	if m.SetIfEmpty("nome", "") {
		t.Fatal("empty value must not be stored")
	}
	if !m.SetIfEmpty("nome", "A") {
		t.Fatal("first value should be stored")
	}
	if m.SetIfEmpty("nome", "B") {
		t.Fatal("second value must not overwrite")
	}
	if v, _ := m.Get("nome"); v != "A" {
		t.Errorf("nome = %q, want A", v)
	}
}

func TestFieldMapOverrideKeepsPosition(t *testing.T) {
	var m FieldMap
	m.SetIfEmpty("cidade", "CAMPINAS")
	m.SetIfEmpty("cep", "13000-000")
	m.Override("cidade", "SOROCABA")
	if got := m.Keys(); !slices.Equal(got, []string{"cidade", "cep"}) {
		t.Errorf("keys = %v", got)
	}
	if v, _ := m.Get("cidade"); v != "SOROCABA" {
		t.Errorf("cidade = %q, want SOROCABA", v)
	}
}

func TestRecordKeysAndMetadata(t *testing.T) {
	m := NewFieldMap()
	m.SetIfEmpty("nome", "MARIA")
	m.SetIfEmpty("cpf", "123.456.789-00")
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	r := NewRecord(m, "fichas.docx", 4, at, "")

	m.SetIfEmpty("rg", "mutated after build")
	if r.FieldCount() != 2 {
		t.Errorf("record must not see later map writes, got %d fields", r.FieldCount())
	}

	want := []string{"nome", "cpf", constants.KeySourceID, constants.KeyRecordIndex, constants.KeyExtractedAt}
	if got := r.Keys(); !slices.Equal(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if v := r.Value(constants.KeyRecordIndex); v != "4" {
		t.Errorf("record_index = %q", v)
	}
	if v := r.Value(constants.KeyExtractedAt); v != "2024-03-01 09:30:00" {
		t.Errorf("extracted_at = %q", v)
	}
	if _, ok := r.Get(constants.KeyExtractionError); ok {
		t.Errorf("extraction_error should be absent")
	}
}
