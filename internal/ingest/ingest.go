package ingest

import (
	"context"
	"time"
)

// Document is a discovered source file ready for extraction.
type Document struct {
	Path    string
	Ext     string
	Format  string
	Size    int64
	HashHex string
	ModTime time.Time
}

// Failure is an input that could not be turned into a Document.
type Failure struct {
	Path string
	Err  string
}

// DirStats summarizes a collection pass.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// Ingestor is the behavior the batch runner depends on.
type Ingestor interface {
	// Describe stats and hashes a single file.
	Describe(ctx context.Context, path string) (Document, error)
	// Collect expands files and directories into Documents.
	Collect(ctx context.Context, inputs []string) ([]Document, []Failure, DirStats, error)
}
