package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/hyperjump/doctext/internal/extract"
	"github.com/hyperjump/doctext/internal/models"
	"github.com/hyperjump/doctext/internal/storage"
)

const sentence = "The quick brown fox jumps over the lazy dog near the river bank. "

// docx returns a minimal .docx whose single paragraph holds text.
func docx(t *testing.T, text string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	doc := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>` + text + `</w:t></w:r></w:p></w:body></w:document>`
	if _, err := fw.Write([]byte(doc)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testService(t *testing.T, cfg extract.Config, withStore bool) (*Service, storage.Storage) {
	t.Helper()
	cfg.DisablePDFToText = true
	cfg.TempDir = t.TempDir()
	var store storage.Storage
	if withStore {
		s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = s.Close() })
		store = s
	}
	return NewService(extract.NewExtractor(cfg), store), store
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".pdf", []string{".pdf", ".docx"}, true},
		{".PDF", []string{".pdf"}, true},
		{".docx", []string{"docx"}, true},
		{".txt", []string{".pdf"}, false},
		{"", []string{".pdf"}, false},
	}
	for _, tt := range tests {
		if got := ExtensionAllowed(tt.ext, tt.allowed); got != tt.want {
			t.Errorf("ExtensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func TestResolveMimetype(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		filename string
		data     []byte
		want     string
	}{
		{"declared wins", "application/pdf", "report.docx", nil, extract.MimePDF},
		{"declared with params", "Application/PDF; name=x", "", nil, extract.MimePDF},
		{"extension", "application/octet-stream", "Report.DOCX", nil, extract.MimeDOCX},
		{"legacy extension", "", "memo.doc", nil, extract.MimeDOC},
		{"sniffed pdf", "application/octet-stream", "upload", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"), extract.MimePDF},
		{"unsupported declared kept", "image/png", "picture", []byte("plain words"), "image/png"},
		{"unsupported declared beats extension", "image/png", "x.pdf", nil, "image/png"},
		{"unsupported declared beats content", "text/plain", "upload", []byte("%PDF-1.4\n"), "text/plain"},
		{"sniffed unsupported", "", "notes", []byte("plain words here"), "text/plain"},
		{"nothing known", "", "", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveMimetype(tt.declared, tt.filename, tt.data); got != tt.want {
				t.Errorf("ResolveMimetype = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractBytes_noStore(t *testing.T) {
	svc, _ := testService(t, extract.Config{}, false)
	rec, err := svc.ExtractBytes(context.Background(), "letter.docx", "", docx(t, strings.Repeat(sentence, 4)))
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Success || rec.Method != extract.MethodDOCX {
		t.Fatalf("record = %+v", rec)
	}
	if rec.ID == "" || !strings.HasPrefix(rec.ContentID, "sha256:") {
		t.Errorf("id %q content id %q", rec.ID, rec.ContentID)
	}
	if rec.Mimetype != extract.MimeDOCX || rec.Cached {
		t.Errorf("mimetype %q cached %v", rec.Mimetype, rec.Cached)
	}
}

func TestExtractBytes_cachesSuccess(t *testing.T) {
	svc, store := testService(t, extract.Config{}, true)
	ctx := context.Background()
	data := docx(t, strings.Repeat(sentence, 4))

	first, err := svc.ExtractBytes(ctx, "a.docx", "", data)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Error("first extraction reported as cached")
	}
	second, err := svc.ExtractBytes(ctx, "b.docx", extract.MimeDOCX, data)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || second.ID != first.ID || second.Text != first.Text {
		t.Errorf("second = %+v, want cached copy of %s", second, first.ID)
	}
	n, err := store.CountExtractions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("stored %d records, want 1", n)
	}
}

func TestExtractBytes_cacheKeyedBySettings(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	newService := func(maxText int) *Service {
		return NewService(extract.NewExtractor(extract.Config{MaxTextLength: maxText, DisablePDFToText: true}), store)
	}
	ctx := context.Background()
	data := docx(t, strings.Repeat(sentence, 20))

	long, err := newService(5000).ExtractBytes(ctx, "long.docx", "", data)
	if err != nil {
		t.Fatal(err)
	}
	if !long.Success || utf8.RuneCountInString(long.Text) <= 300 {
		t.Fatalf("first extraction = %+v", long)
	}

	short, err := newService(300).ExtractBytes(ctx, "long.docx", "", data)
	if err != nil {
		t.Fatal(err)
	}
	if short.Cached || short.ContentID == long.ContentID {
		t.Errorf("result from other settings reused: cached=%v", short.Cached)
	}
	if n := utf8.RuneCountInString(short.Text); n > 300 {
		t.Errorf("text has %d runes, limit 300", n)
	}

	again, err := newService(300).ExtractBytes(ctx, "long.docx", "", data)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Cached || again.ID != short.ID {
		t.Errorf("same settings should hit the cache: %+v", again)
	}
}

func TestExtractBytes_failuresNotReused(t *testing.T) {
	svc, store := testService(t, extract.Config{}, true)
	ctx := context.Background()
	data := docx(t, "too short")

	for i := 0; i < 2; i++ {
		rec, err := svc.ExtractBytes(ctx, "short.docx", "", data)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Success || rec.Cached || rec.ErrorKind != extract.KindNoTextExtracted {
			t.Errorf("attempt %d: %+v", i, rec)
		}
	}
	n, err := store.CountExtractions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("stored %d records, want 2", n)
	}
}

func TestExtractFile(t *testing.T) {
	svc, _ := testService(t, extract.Config{}, false)
	dir := t.TempDir()
	path := filepath.Join(dir, "memo.docx")
	if err := os.WriteFile(path, docx(t, strings.Repeat(sentence, 4)), 0600); err != nil {
		t.Fatal(err)
	}
	rec, err := svc.ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Success || rec.Filename != "memo.docx" {
		t.Errorf("record = %+v", rec)
	}

	if _, err := svc.ExtractFile(context.Background(), dir); err == nil {
		t.Error("expected error for directory")
	}
	if _, err := svc.ExtractFile(context.Background(), filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtractFile_tooLarge(t *testing.T) {
	svc, _ := testService(t, extract.Config{MaxFileSizeMB: 1}, false)
	path := filepath.Join(t.TempDir(), "big.pdf")
	if err := os.WriteFile(path, make([]byte, 1024*1024+1), 0600); err != nil {
		t.Fatal(err)
	}
	rec, err := svc.ExtractFile(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Success || rec.ErrorKind != extract.KindFileTooLarge {
		t.Errorf("record = %+v", rec)
	}
	if rec.Size != 1024*1024+1 || rec.Mimetype != extract.MimePDF {
		t.Errorf("size %d mimetype %q", rec.Size, rec.Mimetype)
	}
}

func TestExtractDirectory(t *testing.T) {
	svc, _ := testService(t, extract.Config{}, false)
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := os.MkdirAll(sub, 0755); err != nil {
		t.Fatal(err)
	}
	good := docx(t, strings.Repeat(sentence, 4))
	for _, p := range []string{filepath.Join(dir, "a.docx"), filepath.Join(sub, "b.docx")} {
		if err := os.WriteFile(p, good, 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip me"), 0600); err != nil {
		t.Fatal(err)
	}

	var seen []string
	n, err := svc.ExtractDirectory(context.Background(), dir, []string{".docx"}, func(path string, e *models.Extraction) {
		seen = append(seen, filepath.Base(path))
		if !e.Success {
			t.Errorf("%s failed: %s", path, e.Error)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || len(seen) != 2 {
		t.Errorf("extracted %d files (%v), want 2", n, seen)
	}

	if _, err := svc.ExtractDirectory(context.Background(), filepath.Join(dir, "a.docx"), nil, nil); err == nil {
		t.Error("expected error for non-directory")
	}
}

func TestExtractDirectory_cancelled(t *testing.T) {
	svc, _ := testService(t, extract.Config{}, false)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.docx"), docx(t, sentence), 0600); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.ExtractDirectory(ctx, dir, nil, nil); err == nil {
		t.Error("expected context error")
	}
}
