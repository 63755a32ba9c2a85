package segment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/extract"
)

func TestSegmentFlatCounts(t *testing.T) {
	record := func(i int) string {
		return fmt.Sprintf("Código Contrato Nome do(a) trabalhador(a)\n%d 1 FULANO %d\nCPF: 000.000.000-%02d\n", i, i, i)
	}
	tests := []struct {
		name string
		text string
		want int
	}{
		{"no marker", "relatório gerencial sem registros", 0},
		{"three markers", record(1) + record(2) + record(3), 3},
		{"lead without labels is dropped", "EMPRESA XYZ LTDA\n" + record(1) + record(2), 2},
		{"lead with a label is kept", "Nome da mãe: ANA\n" + record(1) + record(2), 3},
		{"loose markers", "Código 10\nNome do pai: A\nCódigo\n11\nNome do pai: B", 2},
		{"trailing header without data is dropped", record(1) + "Código Contrato Nome", 1},
		{"trailing full header without data is dropped", record(1) + record(2) + "Código Contrato Nome do(a) trabalhador(a)\n", 2},
		{"trailing loose code without data is dropped", "Código 10\nNome do pai: A\nCódigo 11", 1},
		{"single-line trailing record is kept", record(1) + "Código Contrato Nome 2 2 BIA", 2},
	}
	s := New(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := s.Segment(extract.Stream{Mode: constants.ModeFlat, Text: tt.text})
			if len(spans) != tt.want {
				t.Fatalf("got %d spans, want %d", len(spans), tt.want)
			}
			for i, sp := range spans {
				if sp.Index != i+1 {
					t.Errorf("span %d has index %d", i, sp.Index)
				}
				if sp.Mode != constants.ModeFlat {
					t.Errorf("span %d mode %s", i, sp.Mode)
				}
			}
		})
	}
}

func TestSegmentFlatSpanBoundaries(t *testing.T) {
	text := "Código Contrato Nome\n1 1 ANA\nCódigo Contrato Nome\n2 2 BIA"
	spans := New(nil, nil).Segment(extract.Stream{Mode: constants.ModeFlat, Text: text})
	if len(spans) != 2 {
		t.Fatalf("got %d spans", len(spans))
	}
	if spans[0].Text != "Código Contrato Nome\n1 1 ANA" {
		t.Errorf("first span = %q", spans[0].Text)
	}
	if !strings.HasSuffix(spans[1].Text, "2 2 BIA") {
		t.Errorf("second span = %q", spans[1].Text)
	}
}

func TestSegmentTable(t *testing.T) {
	cells := func(code, name string, row int) []extract.RawCell {
		return []extract.RawCell{
			{Row: row, Text: "Código\n" + code},
			{Row: row, Text: "Nome do(a) trabalhador(a)\n" + name},
			{Row: row + 1, Text: "CPF\n111.222.333-44"},
			{Row: row + 1, Text: "Sexo\nFeminino"},
		}
	}
	var stream []extract.RawCell
	stream = append(stream, cells("1", "ANA", 0)...)
	stream = append(stream, cells("2", "BIA", 0)...)
	stream = append(stream, extract.RawCell{Row: 0, Text: "Código\n3"}, extract.RawCell{Row: 0, Text: "Sexo\nMasculino"})

	spans := New(nil, nil).Segment(extract.Stream{Mode: constants.ModeTable, Cells: stream})
	if len(spans) != 2 {
		t.Fatalf("got %d spans, want 2 (trailing span with two fields is dropped)", len(spans))
	}
	if len(spans[0].Cells) != 4 || spans[0].Cells[0].Text != "Código\n1" {
		t.Errorf("first span cells = %+v", spans[0].Cells)
	}
	if spans[1].Index != 2 || spans[1].Cells[1].Text != "Nome do(a) trabalhador(a)\nBIA" {
		t.Errorf("second span = %+v", spans[1])
	}
	if !strings.Contains(spans[1].Text, "Sexo\nFeminino") {
		t.Errorf("span text should join its cells, got %q", spans[1].Text)
	}
}

func TestSegmentTableTriggerNeedsPopulatedSpan(t *testing.T) {
	stream := []extract.RawCell{
		{Text: "Código\n1"},
		{Text: "Nome do(a) trabalhador(a)\nANA"},
		{Text: "Observação livre"},
		{Text: "CPF\n1"},
		{Text: "RG\n2"},
	}
	spans := New(nil, nil).Segment(extract.Stream{Mode: constants.ModeTable, Cells: stream})
	if len(spans) != 1 || len(spans[0].Cells) != 5 {
		t.Fatalf("a trigger inside a sparse span must not split it: %+v", spans)
	}
}

func TestSegmentEmptyStream(t *testing.T) {
	s := New(nil, nil)
	if got := s.Segment(extract.Stream{Mode: constants.ModeTable}); len(got) != 0 {
		t.Errorf("empty table stream gave %d spans", len(got))
	}
	if got := s.Segment(extract.Stream{Mode: constants.ModeFlat}); len(got) != 0 {
		t.Errorf("empty flat stream gave %d spans", len(got))
	}
}
