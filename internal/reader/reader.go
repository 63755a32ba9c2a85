// Package reader opens .docx and .pdf fichas for the normalizer.
package reader

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/extract"
)

// Config tunes the readers.
type Config struct {
	// MaxFileBytes rejects larger files before parsing. Zero disables the check.
	MaxFileBytes int64
	// DisablePDFFallback skips the content-stream scan when the row reader fails.
	DisablePDFFallback bool
}

func (c *Config) defaults() {
	if c.MaxFileBytes == 0 {
		c.MaxFileBytes = 200 << 20
	}
}

// Reader implements extract.DocumentReader for DOCX and PDF files,
// choosing the strategy from the file extension.
type Reader struct {
	cfg    Config
	logger *slog.Logger
}

var _ extract.DocumentReader = (*Reader)(nil)

// New creates a reader.
func New(cfg Config, logger *slog.Logger) *Reader {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{cfg: cfg, logger: logger}
}

// ReadTableCells returns the cells of every top-level table of a DOCX file.
// PDFs have no table structure and are rejected.
func (r *Reader) ReadTableCells(ctx context.Context, path string) ([]extract.RawCell, error) {
	if err := r.precheck(ctx, path); err != nil {
		return nil, err
	}
	switch constants.FormatForPath(path) {
	case constants.FormatDOCX:
		cells, err := readDocxCells(path)
		if err != nil {
			r.logger.Warn("reader.docx.failed", "path", path, "err", err)
			return nil, common.UnreadableError(path, err)
		}
		r.logger.Debug("reader.docx.cells", "path", path, "cells", len(cells))
		return cells, nil
	case constants.FormatPDF:
		return nil, common.NewAppError(common.CodeUnsupportedFormat, path+": table mode needs a .docx", common.ErrUnsupportedFormat)
	default:
		return nil, common.NewAppError(common.CodeUnsupportedFormat, path, common.ErrUnsupportedFormat)
	}
}

// ReadPages returns the text of each page.
func (r *Reader) ReadPages(ctx context.Context, path string) ([]string, error) {
	if err := r.precheck(ctx, path); err != nil {
		return nil, err
	}
	switch constants.FormatForPath(path) {
	case constants.FormatDOCX:
		pages, err := readDocxPages(path)
		if err != nil {
			r.logger.Warn("reader.docx.failed", "path", path, "err", err)
			return nil, common.UnreadableError(path, err)
		}
		return pages, nil
	case constants.FormatPDF:
		return r.readPDF(ctx, path)
	default:
		return nil, common.NewAppError(common.CodeUnsupportedFormat, path, common.ErrUnsupportedFormat)
	}
}

func (r *Reader) precheck(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(path)
	if err != nil {
		return common.UnreadableError(path, err)
	}
	if info.IsDir() {
		return common.UnreadableError(path, fmt.Errorf("is a directory"))
	}
	if r.cfg.MaxFileBytes > 0 && info.Size() > r.cfg.MaxFileBytes {
		return common.UnreadableError(path, fmt.Errorf("file size %d exceeds limit %d", info.Size(), r.cfg.MaxFileBytes))
	}
	return nil
}
