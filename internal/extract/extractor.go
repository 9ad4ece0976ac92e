// Package extract recovers plain text from PDF, DOCX and legacy Word documents.
package extract

import (
	"context"
	"errors"
	"mime"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Extractor extracts plain text from document bytes. It holds no per-call state and is safe
// for concurrent use.
type Extractor struct {
	cfg      Config
	logger   *zap.Logger
	lookPath func(string) (string, error)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger used for strategy diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExtractor returns an Extractor for cfg. Unset fields take their defaults.
func NewExtractor(cfg Config, opts ...Option) *Extractor {
	cfg.ApplyDefaults()
	e := &Extractor{
		cfg:      cfg,
		logger:   zap.NewNop(),
		lookPath: exec.LookPath,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Extract checks the request limits and dispatches on mimetype.
// The size check runs first and never touches Data; the mimetype check runs before the empty check.
func (e *Extractor) Extract(ctx context.Context, req Request) Result {
	size := req.Size
	if n := int64(len(req.Data)); n > size {
		size = n
	}
	if size > e.cfg.MaxFileSizeBytes() {
		return failure(KindFileTooLarge, errorMessage(KindFileTooLarge, e.cfg.MaxFileSizeMB), nil)
	}

	mimetype := NormalizeMimetype(req.Mimetype)
	if !IsSupportedMimetype(mimetype) {
		return failure(KindUnsupportedMimetype, errorMessage(KindUnsupportedMimetype, e.cfg.MaxFileSizeMB), nil)
	}
	if len(req.Data) == 0 {
		return failure(KindEmptyFile, errorMessage(KindEmptyFile, e.cfg.MaxFileSizeMB), nil)
	}

	log := e.logger.With(zap.String("mimetype", mimetype), zap.Int64("size", size))
	if req.Filename != "" {
		log = log.With(zap.String("filename", req.Filename))
	}
	log.Debug("extracting")

	var res Result
	if IsPDF(mimetype) {
		res = e.extractPDF(ctx, req.Data)
	} else {
		res = e.extractWord(req.Data, mimetype)
	}
	if res.Success {
		log.Debug("extracted", zap.String("method", res.Method), zap.Int("length", len(res.Text)))
	} else {
		log.Debug("extraction failed", zap.String("error_kind", string(res.Kind)), zap.Strings("methods_used", res.MethodsUsed))
	}
	return res
}

// ExtractBytes is Extract for callers that have only the bytes and a mimetype.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte, mimetype string) Result {
	return e.Extract(ctx, Request{Data: data, Mimetype: mimetype})
}

// extractWord runs the DOCX or DOC extractor and the shared normalize and classify steps.
func (e *Extractor) extractWord(data []byte, mimetype string) Result {
	var (
		raw    string
		method string
	)
	switch mimetype {
	case MimeDOCX:
		method = MethodDOCX
		text, err := extractDOCX(data)
		if err != nil {
			if errors.Is(err, errDocxPartMissing) {
				e.logger.Debug("docx has no main part", zap.Error(err))
				return failure(KindNoTextExtracted, errorMessage(KindNoTextExtracted, e.cfg.MaxFileSizeMB), []string{method})
			}
			if strings.TrimSpace(text) == "" {
				e.logger.Debug("docx decode failed", zap.Error(err))
				return failure(KindDecodeError, errorMessage(KindDecodeError, e.cfg.MaxFileSizeMB), []string{method})
			}
			e.logger.Debug("docx partially decoded", zap.Error(err))
		}
		raw = text
	default:
		method = MethodDOC
		raw = extractDOC(data)
	}

	text, verdict := e.finish([]byte(raw))
	if !verdict.Pass {
		e.logger.Debug("word output rejected", zap.String("method", method), zap.String("reason", verdict.Reason))
		return failure(KindNoTextExtracted, errorMessage(KindNoTextExtracted, e.cfg.MaxFileSizeMB), []string{method})
	}
	return ok(text, method, []string{method})
}

// finish normalizes a candidate and classifies the result.
func (e *Extractor) finish(raw []byte) (string, Verdict) {
	text := Normalize(raw, e.cfg.Encodings, e.cfg.MaxTextLength)
	return text, Classify(text, e.cfg.Classifier)
}

// Availability lists the PDF strategies usable on this host, in cascade order.
func (e *Extractor) Availability(_ context.Context) []MethodStatus {
	tool := e.pdfToTextPath()
	return []MethodStatus{
		{Method: MethodPDFToText, Available: tool != "", Path: tool},
		{Method: MethodLibrary, Available: e.cfg.LibraryEnabledOrDefault()},
		{Method: MethodStream, Available: true},
		{Method: MethodRaw, Available: true},
	}
}

// MethodStatus reports whether one PDF strategy can run.
type MethodStatus struct {
	Method    string `json:"method"`
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
}

// SupportedMimetypes returns the mimetypes Extract accepts.
func SupportedMimetypes() []string {
	return []string{MimePDF, MimeDOCX, MimeDOC}
}

// NormalizeMimetype lower-cases m and drops any parameters.
func NormalizeMimetype(m string) string {
	if mt, _, err := mime.ParseMediaType(m); err == nil {
		return mt
	}
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}

// IsSupportedMimetype reports whether m is a PDF or Word mimetype.
func IsSupportedMimetype(m string) bool {
	return IsPDF(m) || IsWord(m)
}

// IsPDF reports whether m is the PDF mimetype.
func IsPDF(m string) bool {
	return NormalizeMimetype(m) == MimePDF
}

// IsWord reports whether m is a DOCX or legacy Word mimetype.
func IsWord(m string) bool {
	switch NormalizeMimetype(m) {
	case MimeDOCX, MimeDOC:
		return true
	}
	return false
}
