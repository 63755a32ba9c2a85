// Package normalize turns a source document into the stream the segmenter reads.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/core/fields"
	"github.com/joseph-ayodele/fichas/internal/extract"
)

// Normalizer reads documents through a DocumentReader.
type Normalizer struct {
	reader extract.DocumentReader
	logger *slog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(reader extract.DocumentReader, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{reader: reader, logger: logger}
}

// Normalize reads path in the given mode. Auto resolves by file format.
// Reader failures wrap common.ErrDocumentUnreadable.
func (n *Normalizer) Normalize(ctx context.Context, path string, mode constants.Mode) (extract.Stream, error) {
	format := constants.FormatForPath(path)
	if format == "" {
		return extract.Stream{}, common.NewAppError(common.CodeUnsupportedFormat, path, common.ErrUnsupportedFormat)
	}
	mode = mode.Resolve(format)

	switch mode {
	case constants.ModeTable:
		cells, err := n.reader.ReadTableCells(ctx, path)
		if err != nil {
			return extract.Stream{}, unreadable(path, err)
		}
		cells = CleanCells(cells)
		n.logger.Debug("normalize.table.ok", "path", path, "cells", len(cells))
		return extract.Stream{Mode: mode, Cells: cells}, nil
	default:
		pages, err := n.reader.ReadPages(ctx, path)
		if err != nil {
			return extract.Stream{}, unreadable(path, err)
		}
		text := FlatText(pages)
		n.logger.Debug("normalize.flat.ok", "path", path, "pages", len(pages), "chars", len(text))
		return extract.Stream{Mode: constants.ModeFlat, Text: text}, nil
	}
}

func unreadable(path string, err error) error {
	if errors.Is(err, common.ErrDocumentUnreadable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("normalize %s: %w", path, err)
	}
	return common.UnreadableError(path, err)
}

// CleanCells normalizes cell text and drops cells that are blank.
func CleanCells(cells []extract.RawCell) []extract.RawCell {
	out := make([]extract.RawCell, 0, len(cells))
	for _, c := range cells {
		c.Text = strings.TrimSpace(cleanText(c.Text))
		if c.Text == "" {
			continue
		}
		out = append(out, c)
	}
	return out
}

var pageArtifact = regexp.MustCompile(`(?im)^[ \t]*(?:P[áa]gina|Page|P[áa]g\.)[ \t]*\d+[ \t]*(?:de|of|/)[ \t]*\d+[ \t]*$`)

// FlatText joins pages into one text, removes page numbering lines and form
// feeds, and drops whatever precedes the first record marker. Text without
// any marker is returned cleaned but otherwise whole.
func FlatText(pages []string) string {
	text := cleanText(strings.Join(pages, "\n"))
	text = pageArtifact.ReplaceAllString(text, "")
	return TrimLeading(text)
}

// TrimLeading cuts text up to the first record-opening marker.
func TrimLeading(text string) string {
	if locs := fields.FindMarkers(text); len(locs) > 0 {
		return text[locs[0][0]:]
	}
	return text
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\f", "\n")
	return norm.NFC.String(s)
}
