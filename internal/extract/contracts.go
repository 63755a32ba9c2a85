package extract

import (
	"context"

	"github.com/joseph-ayodele/fichas/constants"
)

// DocumentReader is the collaborator that opens a source document.
// Implementations return errors wrapping common.ErrDocumentUnreadable.
type DocumentReader interface {
	// ReadTableCells returns every table cell in document order.
	ReadTableCells(ctx context.Context, path string) ([]RawCell, error)
	// ReadPages returns the plain text of each page in order.
	ReadPages(ctx context.Context, path string) ([]string, error)
}

// RawCell is one table cell. Row is the zero-based row index within its
// source table; Table is the ordinal of that table in the document.
type RawCell struct {
	Table int
	Row   int
	Text  string
}

// Stream is a normalized document ready for segmentation.
// Cells is set in table mode, Text in flat-text mode.
type Stream struct {
	Mode  constants.Mode
	Cells []RawCell
	Text  string
}

// Empty reports whether the stream carries no content at all.
func (s Stream) Empty() bool {
	return len(s.Cells) == 0 && s.Text == ""
}

// RecordSpan is the slice of a stream believed to describe one employee.
// Index is 1-based and assigned in segment order.
type RecordSpan struct {
	Mode  constants.Mode
	Cells []RawCell
	Text  string
	Index int
}
