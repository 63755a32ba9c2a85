package server

import (
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/fichas/constants"
	"github.com/joseph-ayodele/fichas/internal/common"
	"github.com/joseph-ayodele/fichas/internal/core"
	"github.com/joseph-ayodele/fichas/internal/core/fields"
	"github.com/joseph-ayodele/fichas/internal/core/normalize"
	"github.com/joseph-ayodele/fichas/internal/core/segment"
	"github.com/joseph-ayodele/fichas/internal/export"
	"github.com/joseph-ayodele/fichas/internal/profile"
	"github.com/joseph-ayodele/fichas/internal/reader"
)

// Pipeline is the extraction stack built from configuration.
type Pipeline struct {
	Processor *core.Processor
	Export    export.Options
	Profile   *profile.Profile
}

// NewPipeline loads the layout profile (when configured) and wires reader,
// normalizer, segmenter and extractor into a processor. The dictionary and
// options are built once and shared by every document.
func NewPipeline(cfg *common.Config, ledger *core.Ledger, force bool, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var prof *profile.Profile
	if cfg.Extract.ProfilePath != "" {
		p, err := profile.Load(cfg.Extract.ProfilePath)
		if err != nil {
			logger.Error("failed to load layout profile", "path", cfg.Extract.ProfilePath, "error", err)
			return nil, err
		}
		prof = p
		logger.Info("layout profile loaded", "path", cfg.Extract.ProfilePath, "name", p.Name, "extra_labels", len(p.ExtraLabels))
	}

	dict, err := prof.Dictionary()
	if err != nil {
		return nil, err
	}
	opts := prof.ExtractorOptions(fields.Options{
		ResidentialRowThreshold: cfg.Extract.ResidentialRowThreshold,
		KeepUnmapped:            cfg.Extract.KeepUnmapped,
	})

	mode, ok := constants.ParseMode(cfg.Extract.Mode)
	if !ok {
		return nil, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown mode %q", cfg.Extract.Mode), common.ErrInvalidInput)
	}

	exportOpts, err := ExportOptions(cfg.Export)
	if err != nil {
		return nil, err
	}
	exportOpts.Priority = prof.Priority()

	proc := core.NewProcessor(
		logger,
		normalize.NewNormalizer(reader.New(reader.Config{}, logger), logger),
		segment.New(dict, logger),
		fields.NewExtractor(dict, nil, opts, logger),
		ledger,
		core.Options{Workers: cfg.Extract.Workers, Mode: mode, Force: force},
	)
	return &Pipeline{Processor: proc, Export: exportOpts, Profile: prof}, nil
}

// ExportOptions converts the export settings.
func ExportOptions(cfg common.ExportConfig) (export.Options, error) {
	format, err := export.ParseFormat(cfg.Format)
	if err != nil {
		return export.Options{}, err
	}
	delim, err := export.ParseDelimiter(cfg.Delimiter)
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{Format: format, Delimiter: delim, BOM: cfg.BOM}, nil
}
