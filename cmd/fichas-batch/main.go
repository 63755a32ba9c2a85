package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joseph-ayodele/fichas/internal/batch"
	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/export"
	"github.com/joseph-ayodele/fichas/internal/ingest"
	"github.com/joseph-ayodele/fichas/internal/server"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// Parse CLI flags; any flag given overrides the matching env setting
	var (
		dir          = flag.String("dir", "", "directory to process fichas from")
		out          = flag.String("out", "", "output file path (defaults to fichas_<timestamp>.<format> in FICHAS_OUTPUT_DIR)")
		format       = flag.String("format", "", "export format: xlsx, csv or txt")
		delimiter    = flag.String("delimiter", "", `csv/txt delimiter (single character, \t for tab)`)
		bom          = flag.String("bom", "", "write a UTF-8 BOM (true/false)")
		mode         = flag.String("mode", "", "extraction mode: auto, table or flat")
		workers      = flag.Int("workers", 0, "span extraction workers per document")
		threshold    = flag.Int("threshold", 0, "first table row of the employee address block")
		keepUnmapped = flag.Bool("keep-unmapped", false, "keep unknown 'label: value' pairs")
		profilePath  = flag.String("profile", "", "layout profile (YAML)")
		dbURL        = flag.String("db", "", "run ledger DSN (sqlite path or postgres:// URL)")
		inmem        = flag.Bool("inmem", false, "use in-memory SQLite ledger")
		force        = flag.Bool("force", false, "re-extract documents already in the ledger")
	)
	flag.Parse()

	inputs := flag.Args()
	if *dir != "" {
		inputs = append([]string{*dir}, inputs...)
	}
	if len(inputs) == 0 {
		printError("Error: give --dir or at least one file or directory\n")
		os.Exit(1)
	}

	cfg := common.LoadConfig()
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["format"] {
		cfg.Export.Format = *format
	}
	if set["delimiter"] {
		cfg.Export.Delimiter = *delimiter
	}
	if set["bom"] {
		b, err := strconv.ParseBool(*bom)
		if err != nil {
			printError("Error: invalid --bom value %q\n", *bom)
			os.Exit(1)
		}
		cfg.Export.BOM = &b
	}
	if set["mode"] {
		cfg.Extract.Mode = *mode
	}
	if set["workers"] {
		cfg.Extract.Workers = *workers
	}
	if set["threshold"] {
		cfg.Extract.ResidentialRowThreshold = *threshold
	}
	if set["keep-unmapped"] {
		cfg.Extract.KeepUnmapped = *keepUnmapped
	}
	if set["profile"] {
		cfg.Extract.ProfilePath = *profilePath
	}
	if set["db"] {
		cfg.Database.DSN = *dbURL
	}
	if *inmem {
		cfg.Database.DSN = ":memory:"
	}
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := common.NewLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, ledger, err := server.ConnectLedger(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close(logger)

	pipeline, err := server.NewPipeline(cfg, ledger, *force, logger)
	if err != nil {
		logger.Error("failed to build extraction pipeline", "error", err)
		os.Exit(1)
	}

	if *out == "" {
		*out = filepath.Join(cfg.Export.OutputDir, export.FileName("fichas", pipeline.Export.Format, time.Now()))
	}

	runner := batch.NewRunner(logger, ingest.NewFSIngestor(logger), pipeline.Processor, export.NewService(logger))
	sum, err := runner.Run(ctx, batch.Request{Inputs: inputs, Output: *out, Export: pipeline.Export})

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Documents found: %d\n", len(sum.Documents))
	fmt.Printf("- Extracted: %d\n", sum.Processed)
	fmt.Printf("- Already in ledger: %d\n", sum.Skipped)
	fmt.Printf("- Without fichas: %d\n", sum.Empty)
	fmt.Printf("- Failures: %d\n", sum.Failed+len(sum.Failures))
	fmt.Printf("- Records: %d\n", len(sum.Records))
	for _, d := range sum.Documents {
		if d.Err != nil {
			fmt.Printf("  ! %s: %v\n", d.Path, d.Err)
		}
	}
	for _, f := range sum.Failures {
		fmt.Printf("  ! %s: %s\n", f.Path, f.Err)
	}
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("- Output: %s\n", sum.Output)
}
