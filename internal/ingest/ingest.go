// Package ingest runs documents through the extractor and records the results.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/doctext/internal/extract"
	"github.com/hyperjump/doctext/internal/fileid"
	"github.com/hyperjump/doctext/internal/models"
	"github.com/hyperjump/doctext/internal/storage"
)

// extensionMimetypes maps file extensions to the mimetypes the extractor accepts.
var extensionMimetypes = map[string]string{
	".pdf":  extract.MimePDF,
	".docx": extract.MimeDOCX,
	".doc":  extract.MimeDOC,
}

// Service extracts documents and caches successful results in storage.
type Service struct {
	extractor *extract.Extractor
	store     storage.Storage
	logger    *zap.Logger
	now       func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets a logger for extraction events.
func WithLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// NewService creates a service. store may be nil, in which case nothing is cached or recorded.
func NewService(extractor *extract.Extractor, store storage.Storage, opts ...ServiceOption) *Service {
	s := &Service{
		extractor: extractor,
		store:     store,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Extractor returns the underlying extractor.
func (s *Service) Extractor() *extract.Extractor {
	return s.extractor
}

// ResolveMimetype picks the mimetype to extract data as. A declared mimetype is authoritative
// unless it is empty or application/octet-stream; only then are the filename extension and
// content sniffing consulted. An unsupported result is returned as is so the extractor can
// reject it.
func ResolveMimetype(declared, filename string, data []byte) string {
	declared = extract.NormalizeMimetype(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if mt, ok := extensionMimetypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	if len(data) == 0 {
		return declared
	}
	detected := mimetype.Detect(data)
	for m := detected; m != nil; m = m.Parent() {
		if mt := extract.NormalizeMimetype(m.String()); extract.IsSupportedMimetype(mt) {
			return mt
		}
	}
	return extract.NormalizeMimetype(detected.String())
}

// ExtractBytes extracts data, reusing a cached successful result for identical content.
// Every fresh extraction is recorded when a store is configured.
func (s *Service) ExtractBytes(ctx context.Context, filename, declaredMimetype string, data []byte) (*models.Extraction, error) {
	mt := ResolveMimetype(declaredMimetype, filename, data)
	contentID := fileid.ContentID(data, mt, s.extractor.Config().Fingerprint())

	if s.store != nil && len(data) > 0 {
		cached, err := s.store.FindByContentID(ctx, contentID)
		switch {
		case err == nil:
			s.logger.Debug("extraction cache hit", zap.String("filename", filename), zap.String("id", cached.ID))
			cached.Cached = true
			return cached, nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("cache lookup: %w", err)
		}
	}

	res := s.extractor.Extract(ctx, extract.Request{
		Data:     data,
		Mimetype: mt,
		Size:     int64(len(data)),
		Filename: filename,
	})
	return s.record(ctx, contentID, filename, mt, int64(len(data)), res)
}

// ExtractFile reads and extracts the file at path. Oversized files are rejected from their
// size alone without being read.
func (s *Service) ExtractFile(ctx context.Context, path string) (*models.Extraction, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	name := filepath.Base(absPath)
	cfg := s.extractor.Config()
	if info.Size() > cfg.MaxFileSizeBytes() {
		mt := ResolveMimetype("", name, nil)
		res := s.extractor.Extract(ctx, extract.Request{Mimetype: mt, Size: info.Size(), Filename: name})
		return s.record(ctx, "", name, mt, info.Size(), res)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return s.ExtractBytes(ctx, name, "", data)
}

// ExtractDirectory walks dir recursively and extracts each regular file whose extension is in
// allowedExts (all files when empty). fn, when non-nil, receives every record. Returns the
// number of files extracted and the first error encountered, if any.
func (s *Service) ExtractDirectory(ctx context.Context, dir string, allowedExts []string, fn func(path string, e *models.Extraction)) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if len(allowedExts) > 0 && !ExtensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		// Resolve symlinks so only regular files are read
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		rec, extractErr := s.ExtractFile(ctx, path)
		if extractErr != nil {
			return extractErr
		}
		if fn != nil {
			fn(path, rec)
		}
		n++
		return nil
	})
	return n, err
}

func (s *Service) record(ctx context.Context, contentID, filename, mt string, size int64, res extract.Result) (*models.Extraction, error) {
	rec := models.FromResult(uuid.NewString(), contentID, filename, mt, size, res, s.now())
	if res.Success {
		s.logger.Info("document extracted",
			zap.String("id", rec.ID),
			zap.String("filename", filename),
			zap.String("method", res.Method),
			zap.Int("length", len(res.Text)),
		)
	} else {
		s.logger.Info("document extraction failed",
			zap.String("id", rec.ID),
			zap.String("filename", filename),
			zap.String("error_kind", string(res.Kind)),
		)
	}
	if s.store == nil {
		return rec, nil
	}
	if err := s.store.CreateExtraction(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store extraction: %w", err)
	}
	return rec, nil
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and the leading dot.
func ExtensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
