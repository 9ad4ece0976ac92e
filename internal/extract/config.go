package extract

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds the extraction limits and strategy settings.
type Config struct {
	MaxFileSizeMB    int              `yaml:"max_file_size_mb"`
	MaxTextLength    int              `yaml:"max_text_length"`
	TempDir          string           `yaml:"temp_dir"`
	PDFToTextPath    string           `yaml:"pdftotext_path"`
	DisablePDFToText bool             `yaml:"disable_pdftotext"`
	ToolTimeout      time.Duration    `yaml:"tool_timeout"`
	LibraryEnabled   *bool            `yaml:"library_enabled"`
	Encodings        []string         `yaml:"encodings"`
	Classifier       ClassifierConfig `yaml:"classifier"`
}

// ClassifierConfig holds the validity thresholds. Zero values are replaced by defaults.
type ClassifierConfig struct {
	MinLength            int     `yaml:"min_length"`
	MaxMetadataHits      int     `yaml:"max_metadata_hits"`
	MaxNonPrintableRatio float64 `yaml:"max_non_printable_ratio"`
	MinWords             int     `yaml:"min_words"`
	MinMeanWordLength    float64 `yaml:"min_mean_word_length"`
	MaxMeanWordLength    float64 `yaml:"max_mean_word_length"`
}

// Defaults used when a Config field is unset.
const (
	DefaultMaxFileSizeMB = 50
	DefaultMaxTextLength = 15000
	DefaultToolTimeout   = 30 * time.Second
)

// DefaultEncodings are the single-byte candidates tried when input is not valid UTF-8.
var DefaultEncodings = []string{"ISO-8859-1", "windows-1252", "ISO-8859-2", "windows-1250"}

// DefaultConfig returns a Config with every field set to its default.
func DefaultConfig() Config {
	var c Config
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero values in c.
func (c *Config) ApplyDefaults() {
	if c.MaxFileSizeMB <= 0 {
		c.MaxFileSizeMB = DefaultMaxFileSizeMB
	}
	if c.MaxTextLength <= 0 {
		c.MaxTextLength = DefaultMaxTextLength
	}
	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = DefaultToolTimeout
	}
	if c.LibraryEnabled == nil {
		t := true
		c.LibraryEnabled = &t
	}
	if len(c.Encodings) == 0 {
		c.Encodings = append([]string(nil), DefaultEncodings...)
	}
	c.Classifier.ApplyDefaults()
}

// Fingerprint describes the settings that shape extraction output. Two configs with the same
// fingerprint produce the same result for the same input on the same host.
func (c Config) Fingerprint() string {
	c.ApplyDefaults()
	cl := c.Classifier
	return fmt.Sprintf("max_text=%d;encodings=%s;pdftotext=%t:%s;library=%t;classifier=%d,%d,%g,%d,%g,%g",
		c.MaxTextLength, strings.Join(c.Encodings, ","),
		!c.DisablePDFToText, c.PDFToTextPath, c.LibraryEnabledOrDefault(),
		cl.MinLength, cl.MaxMetadataHits, cl.MaxNonPrintableRatio, cl.MinWords, cl.MinMeanWordLength, cl.MaxMeanWordLength)
}

// LibraryEnabledOrDefault reports whether the PDF library strategy runs; true when unset.
func (c *Config) LibraryEnabledOrDefault() bool {
	if c.LibraryEnabled != nil {
		return *c.LibraryEnabled
	}
	return true
}

// ApplyDefaults fills zero thresholds in c.
func (c *ClassifierConfig) ApplyDefaults() {
	if c.MinLength <= 0 {
		c.MinLength = 100
	}
	if c.MaxMetadataHits <= 0 {
		c.MaxMetadataHits = 2
	}
	if c.MaxNonPrintableRatio <= 0 {
		c.MaxNonPrintableRatio = 0.10
	}
	if c.MinWords <= 0 {
		c.MinWords = 20
	}
	if c.MinMeanWordLength <= 0 {
		c.MinMeanWordLength = 2
	}
	if c.MaxMeanWordLength <= 0 {
		c.MaxMeanWordLength = 12
	}
}

// MaxFileSizeBytes is MaxFileSizeMB in bytes.
func (c *Config) MaxFileSizeBytes() int64 {
	return int64(c.MaxFileSizeMB) * 1024 * 1024
}
