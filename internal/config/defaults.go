package config

import "github.com/hyperjump/doctext/internal/extract"

// DefaultDatabasePath is relative to the home directory.
const DefaultDatabasePath = ".local/share/doctext/extractions.db"

// DefaultExtensions are the file extensions the watcher hands to the extractor.
var DefaultExtensions = []string{".pdf", ".docx", ".doc"}

// ApplyDefaults fills zero values in cfg.
func ApplyDefaults(cfg *Config) {
	cfg.Extraction.ApplyDefaults()
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = DefaultDatabasePath
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = append([]string(nil), DefaultExtensions...)
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{Extraction: extract.DefaultConfig()}
	ApplyDefaults(cfg)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, ".")
	return cfg
}

// MaxUploadBytes returns the request body limit for uploads.
func (s ServerConfig) MaxUploadBytes(extractionMaxMB int) int64 {
	mb := s.MaxUploadMB
	if mb <= 0 {
		mb = extractionMaxMB + 1
	}
	return int64(mb) << 20
}
