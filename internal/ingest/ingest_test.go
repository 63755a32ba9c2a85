package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/common"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "Fichas.DOCX")
	writeFile(t, path, "conteudo")

	doc, err := NewFSIngestor(nil).Describe(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte("conteudo"))
	if doc.HashHex != hex.EncodeToString(sum[:]) {
		t.Errorf("hash = %s", doc.HashHex)
	}
	if doc.Ext != "docx" || doc.Format != constants.FormatDOCX || doc.Size != 8 {
		t.Errorf("unexpected document %+v", doc)
	}

	other := filepath.Join(dir, "notas.txt")
	writeFile(t, other, "x")
	if _, err := NewFSIngestor(nil).Describe(context.Background(), other); !errors.Is(err, common.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.pdf"), "b")
	writeFile(t, filepath.Join(dir, "a.docx"), "a")
	writeFile(t, filepath.Join(dir, "~$a.docx"), "lock")
	writeFile(t, filepath.Join(dir, ".oculto.pdf"), "h")
	writeFile(t, filepath.Join(dir, "leia.txt"), "t")
	writeFile(t, filepath.Join(dir, "sub", "c.pdf"), "c")
	writeFile(t, filepath.Join(dir, ".git", "d.pdf"), "d")
	explicit := filepath.Join(t.TempDir(), "solto.pdf")
	writeFile(t, explicit, "e")
	missing := filepath.Join(dir, "nao-existe.pdf")

	docs, failures, stats, err := NewFSIngestor(nil).Collect(context.Background(), []string{dir, explicit, missing})
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, d := range docs {
		names = append(names, filepath.Base(d.Path))
	}
	want := []string{"a.docx", "b.pdf", "c.pdf", "solto.pdf"}
	if !slices.Equal(names, want) {
		t.Errorf("collected %v, want %v", names, want)
	}
	if len(failures) != 1 || failures[0].Path != missing {
		t.Errorf("failures = %+v", failures)
	}
	if stats.Matched != 4 || stats.Skipped != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCollectRequiresInputs(t *testing.T) {
	if _, _, _, err := NewFSIngestor(nil).Collect(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestEligible(t *testing.T) {
	tests := map[string]bool{
		"/in/fichas.docx":   true,
		"/in/fichas.PDF":    true,
		"/in/~$fichas.docx": false,
		"/in/.fichas.pdf":   false,
		"/in/fichas.doc":    false,
	}
	for p, want := range tests {
		if got := Eligible(p); got != want {
			t.Errorf("Eligible(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestWatcherDebounce(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "antigo.pdf")
	writeFile(t, existing, "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    50 * time.Millisecond,
	})
	if err != nil {
		t.Fatal(err)
	}

	next := func() string {
		t.Helper()
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watcher event")
			return ""
		}
	}
	if got := next(); got != existing {
		t.Fatalf("initial scan emitted %q", got)
	}

	fresh := filepath.Join(dir, "novo.docx")
	for i := 0; i < 3; i++ {
		writeFile(t, fresh, "parte")
	}
	writeFile(t, filepath.Join(dir, "~$novo.docx"), "lock")
	if got := next(); got != fresh {
		t.Fatalf("got %q, want %q", got, fresh)
	}
	select {
	case p := <-events:
		t.Errorf("unexpected extra event %q", p)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	for range events {
	}
}

func TestWatcherRequiresRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}); err == nil {
		t.Fatal("expected error")
	}
}
