package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/doctext/internal/cli"
	"github.com/hyperjump/doctext/internal/config"
	"github.com/hyperjump/doctext/internal/extract"
	"github.com/hyperjump/doctext/internal/models"
)

const sentence = "The quick brown fox jumps over the lazy dog near the river bank. "

func writeDocx(t *testing.T, path, text string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Extraction: extract.Config{DisablePDFToText: true, TempDir: dir},
		Storage:    config.StorageConfig{DatabasePath: filepath.Join(dir, "extractions.db")},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after files are moved first",
			args:     []string{"report.pdf", "-json"},
			expected: []string{"-json", "report.pdf"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-mimetype", "application/pdf", "scan.bin"},
			expected: []string{"-mimetype", "application/pdf", "scan.bin"},
		},
		{
			name:     "files only returns unchanged",
			args:     []string{"a.pdf", "b.docx"},
			expected: []string{"a.pdf", "b.docx"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple files then flags",
			args:     []string{"a.pdf", "b.pdf", "-preview", "80"},
			expected: []string{"-preview", "80", "a.pdf", "b.pdf"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
extraction:
  max_file_size_mb: 10
storage:
  database_path: "./test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug || cfg.Extraction.MaxFileSizeMB != 10 {
		t.Errorf("unexpected config: debug=%v max=%d", cfg.Debug, cfg.Extraction.MaxFileSizeMB)
	}
}

func TestLoadConfig_defaultsWithoutFile(t *testing.T) {
	if _, err := os.Stat(defaultConfigPath); err == nil {
		t.Skip("system config present")
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != "" {
		t.Errorf("resolved = %q, want empty for built-in defaults", resolved)
	}
	if cfg.Extraction.MaxFileSizeMB != 50 || cfg.Extraction.MaxTextLength != 15000 {
		t.Errorf("defaults not applied: %+v", cfg.Extraction)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}

	if _, _, err := loadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestExtractPaths(t *testing.T) {
	cfg := testConfig(t)
	components, err := initializeComponents(cfg, zap.NewNop(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()

	dir := t.TempDir()
	good := filepath.Join(dir, "letter.docx")
	writeDocx(t, good, strings.Repeat(sentence, 4))
	folder := filepath.Join(dir, "inbox")
	if err := os.MkdirAll(folder, 0755); err != nil {
		t.Fatal(err)
	}
	writeDocx(t, filepath.Join(folder, "memo.docx"), strings.Repeat(sentence, 3))
	writeDocx(t, filepath.Join(folder, "short.docx"), "too short")
	if err := os.WriteFile(filepath.Join(folder, "skip.txt"), []byte("not a document"), 0600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	failed, err := extractPaths(context.Background(), components.Ingest, []string{good, folder}, "", cfg.Watch.Extensions, cli.OutputJSON, 0, &out)
	if err != nil {
		t.Fatal(err)
	}
	if failed != 1 {
		t.Errorf("failed = %d, want 1", failed)
	}
	dec := json.NewDecoder(&out)
	var recs []models.Extraction
	for dec.More() {
		var rec models.Extraction
		if err := dec.Decode(&rec); err != nil {
			t.Fatal(err)
		}
		recs = append(recs, rec)
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if recs[0].Filename != "letter.docx" || !recs[0].Success {
		t.Errorf("first record = %+v", recs[0])
	}

	if _, err := extractPaths(context.Background(), components.Ingest, []string{filepath.Join(dir, "missing.pdf")}, "", nil, cli.OutputText, 0, &out); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestExtractPaths_explicitMimetype(t *testing.T) {
	cfg := testConfig(t)
	components, err := initializeComponents(cfg, zap.NewNop(), false)
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()

	path := filepath.Join(t.TempDir(), "upload.bin")
	writeDocx(t, path, strings.Repeat(sentence, 4))

	var out bytes.Buffer
	failed, err := extractPaths(context.Background(), components.Ingest, []string{path}, extract.MimeDOCX, nil, cli.OutputText, 20, &out)
	if err != nil {
		t.Fatal(err)
	}
	if failed != 0 {
		t.Errorf("failed = %d\n%s", failed, out.String())
	}
	if !strings.Contains(out.String(), "method: docx") || !strings.Contains(out.String(), "The quick brown fox ...") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
}

func TestLocalStatusAndWriteStatus(t *testing.T) {
	cfg := testConfig(t)
	components, err := initializeComponents(cfg, zap.NewNop(), true)
	if err != nil {
		t.Fatal(err)
	}
	defer components.Close()

	path := filepath.Join(t.TempDir(), "letter.docx")
	writeDocx(t, path, strings.Repeat(sentence, 4))
	if _, err := components.Ingest.ExtractFile(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	status, err := localStatus(context.Background(), cfg, components)
	if err != nil {
		t.Fatal(err)
	}
	if status.Extractions != 1 || len(status.Methods) != 4 || status.DiskUsageBytes == nil {
		t.Errorf("status = %+v", status)
	}

	var out bytes.Buffer
	if err := writeStatus(&out, status, cli.OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"extractions:        1", "max_file_size_mb:   50", "# pdf methods", "pdftotext  unavailable"} {
		if !strings.Contains(out.String(), sub) {
			t.Errorf("status output missing %q:\n%s", sub, out.String())
		}
	}
}
