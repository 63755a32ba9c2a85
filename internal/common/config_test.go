package common

import (
	"errors"
	"strings"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("FICHAS_EXPORT_FORMAT", "")
	t.Setenv("FICHAS_ROW_THRESHOLD", "")
	t.Setenv("FICHAS_MODE", "")

	cfg := LoadConfig()
	if cfg.Extract.ResidentialRowThreshold != 15 {
		t.Errorf("threshold = %d, want 15", cfg.Extract.ResidentialRowThreshold)
	}
	if cfg.Export.Format != "xlsx" {
		t.Errorf("format = %q, want xlsx", cfg.Export.Format)
	}
	if cfg.Extract.Mode != "auto" {
		t.Errorf("mode = %q, want auto", cfg.Extract.Mode)
	}
	if cfg.Export.BOM != nil {
		t.Errorf("BOM should be unset by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("FICHAS_ROW_THRESHOLD", "12")
	t.Setenv("FICHAS_CSV_BOM", "false")
	t.Setenv("FICHAS_WORKERS", "not-a-number")

	cfg := LoadConfig()
	if cfg.Extract.ResidentialRowThreshold != 12 {
		t.Errorf("threshold = %d, want 12", cfg.Extract.ResidentialRowThreshold)
	}
	if cfg.Export.BOM == nil || *cfg.Export.BOM {
		t.Errorf("BOM = %v, want explicit false", cfg.Export.BOM)
	}
	if cfg.Extract.Workers < 1 {
		t.Errorf("invalid FICHAS_WORKERS should fall back to NumCPU, got %d", cfg.Extract.Workers)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad format", func(c *Config) { c.Export.Format = "ods" }, "FICHAS_EXPORT_FORMAT"},
		{"bad mode", func(c *Config) { c.Extract.Mode = "ocr" }, "FICHAS_MODE"},
		{"negative threshold", func(c *Config) { c.Extract.ResidentialRowThreshold = -1 }, "FICHAS_ROW_THRESHOLD"},
		{"long delimiter", func(c *Config) { c.Export.Delimiter = ";;" }, "FICHAS_CSV_DELIMITER"},
		{"bad level", func(c *Config) { c.LogLevel = "trace" }, "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("error should wrap ErrInvalidInput")
			}
		})
	}
}

func TestValidateServer(t *testing.T) {
	cfg := LoadConfig()
	cfg.Server.QueueWorkers = 0
	if err := cfg.ValidateServer(); err == nil || !strings.Contains(err.Error(), "FICHAS_QUEUE_WORKERS") {
		t.Fatalf("expected queue workers error, got %v", err)
	}
}
