package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/common"
)

// FSIngestor reads from the local filesystem.
type FSIngestor struct {
	SkipHidden bool
	logger     *slog.Logger
}

func NewFSIngestor(logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{SkipHidden: true, logger: logger}
}

// Describe resolves path, checks its extension and hashes its content.
func (i *FSIngestor) Describe(ctx context.Context, path string) (Document, error) {
	var out Document

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, err
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		i.logger.Debug("ingest.unsupported", "path", abs, "ext", ext)
		return out, common.NewAppError(common.CodeUnsupportedFormat, abs, common.ErrUnsupportedFormat)
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return out, err
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.logger.Warn("ingest.close.failed", "path", abs, "error", err)
		}
	}(f)

	st, err := f.Stat()
	if err != nil {
		return out, err
	}
	if st.IsDir() {
		return out, fmt.Errorf("%s: is a directory", abs)
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return out, fmt.Errorf("hash %s: %w", abs, err)
	}

	return Document{
		Path:    abs,
		Ext:     ext,
		Format:  constants.FormatForPath(abs),
		Size:    st.Size(),
		HashHex: hex.EncodeToString(h.Sum(nil)),
		ModTime: st.ModTime(),
	}, nil
}

// Collect expands inputs in order. Files are taken as given; directories are
// walked in lexical order keeping eligible documents only.
func (i *FSIngestor) Collect(ctx context.Context, inputs []string) ([]Document, []Failure, DirStats, error) {
	var (
		docs     []Document
		failures []Failure
		stats    DirStats
	)
	if len(inputs) == 0 {
		return nil, nil, stats, errors.New("no input paths")
	}

	add := func(path string) {
		stats.Matched++
		doc, err := i.Describe(ctx, path)
		if err != nil {
			failures = append(failures, Failure{Path: path, Err: err.Error()})
			stats.Failed++
			return
		}
		docs = append(docs, doc)
	}

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return docs, failures, stats, err
		}
		in = strings.TrimSpace(in)
		st, err := os.Stat(in)
		if err != nil {
			stats.Scanned++
			stats.Failed++
			failures = append(failures, Failure{Path: in, Err: err.Error()})
			continue
		}
		if !st.IsDir() {
			stats.Scanned++
			add(in)
			continue
		}
		err = filepath.WalkDir(in, func(path string, d fs.DirEntry, walkErr error) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats.Scanned++
			if walkErr != nil {
				failures = append(failures, Failure{Path: path, Err: walkErr.Error()})
				stats.Failed++
				return nil
			}
			if path != in && i.SkipHidden && IsHidden(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				stats.Skipped++
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !AllowedExt(filepath.Ext(path)) {
				return nil
			}
			if constants.IsLockFile(path) {
				i.logger.Debug("ingest.lockfile.skipped", "path", path)
				stats.Skipped++
				return nil
			}
			add(path)
			return nil
		})
		if err != nil {
			return docs, failures, stats, fmt.Errorf("walk: %w", err)
		}
	}
	i.logger.Info("ingest.collect.ok",
		"documents", len(docs),
		"scanned", stats.Scanned,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return docs, failures, stats, nil
}
