// Package segment splits a normalized stream into per-employee record spans.
package segment

import (
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/core/fields"
	"github.com/joseph-ayodele/fichas/internal/extract"
)

// minPopulated is the number of populated cells a table span needs before a
// trigger label may close it, and the number the final span needs to be kept.
const minPopulated = 2

// Segmenter splits streams into record spans.
type Segmenter struct {
	dict   *fields.Dictionary
	logger *slog.Logger
}

// New creates a segmenter. A nil dict uses the built-in dictionary.
func New(dict *fields.Dictionary, logger *slog.Logger) *Segmenter {
	if dict == nil {
		dict = fields.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{dict: dict, logger: logger}
}

// Segment returns the spans of s with 1-based indexes in document order.
// A stream without any record start yields no spans.
func (s *Segmenter) Segment(stream extract.Stream) []extract.RecordSpan {
	var spans []extract.RecordSpan
	if stream.Mode == constants.ModeTable {
		spans = s.segmentCells(stream.Cells)
	} else {
		spans = s.segmentText(stream.Text)
	}
	for i := range spans {
		spans[i].Index = i + 1
	}
	s.logger.Debug("segment.ok", "mode", stream.Mode, "spans", len(spans))
	return spans
}

func (s *Segmenter) segmentCells(cells []extract.RawCell) []extract.RecordSpan {
	var (
		spans     []extract.RecordSpan
		current   []extract.RawCell
		populated int
	)
	flush := func() {
		if populated > minPopulated {
			spans = append(spans, tableSpan(current))
		}
		current, populated = nil, 0
	}
	for _, c := range cells {
		if populated > minPopulated && s.dict.ContainsTrigger(c.Text) {
			flush()
		}
		current = append(current, c)
		if s.isPopulated(c.Text) {
			populated++
		}
	}
	flush()
	return spans
}

func (s *Segmenter) isPopulated(text string) bool {
	label, _, ok := fields.SplitCell(text)
	if !ok {
		return false
	}
	_, known := s.dict.Lookup(label)
	return known
}

func tableSpan(cells []extract.RawCell) extract.RecordSpan {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = c.Text
	}
	return extract.RecordSpan{
		Mode:  constants.ModeTable,
		Cells: cells,
		Text:  strings.Join(parts, "\n"),
	}
}

func (s *Segmenter) segmentText(text string) []extract.RecordSpan {
	locs := fields.FindMarkers(text)
	if len(locs) == 0 {
		return nil
	}
	var spans []extract.RecordSpan
	if lead := strings.TrimSpace(text[:locs[0][0]]); lead != "" && s.dict.ContainsLabel(lead) {
		spans = append(spans, extract.RecordSpan{Mode: constants.ModeFlat, Text: lead})
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		} else if headerOnly(text[loc[1]:end]) {
			s.logger.Debug("segment.trailing.dropped", "text", strings.TrimSpace(text[loc[0]:end]))
			break
		}
		spans = append(spans, extract.RecordSpan{
			Mode: constants.ModeFlat,
			Text: strings.TrimSpace(text[loc[0]:end]),
		})
	}
	return spans
}

// headerOnly reports whether the text following the last marker carries no
// record data: nothing below the marker line, and only header words on it.
func headerOnly(rest string) bool {
	head, body, _ := strings.Cut(rest, "\n")
	if strings.TrimSpace(body) != "" {
		return false
	}
	return !strings.ContainsAny(head, "0123456789:")
}
