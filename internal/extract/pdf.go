package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// minRecoveredChars is the number of non-whitespace characters the stream and raw
// strategies must recover before their output is considered.
const minRecoveredChars = 50

// errSkipped marks a strategy that is not available on this host.
var errSkipped = errors.New("strategy not available")

// pdfStrategy is one way of recovering text from a PDF. run returns errSkipped when the
// strategy cannot run at all; any other error means it ran and produced nothing.
type pdfStrategy struct {
	name string
	run  func(ctx context.Context, data []byte) ([]byte, error)
}

func (e *Extractor) pdfStrategies() []pdfStrategy {
	return []pdfStrategy{
		{MethodPDFToText, e.runPDFToText},
		{MethodLibrary, e.runLibrary},
		{MethodStream, e.runStreams},
		{MethodRaw, e.runRaw},
	}
}

// extractPDF runs the strategies in priority order and returns the first output that
// survives normalization and classification.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) Result {
	var tried []string
	for _, s := range e.pdfStrategies() {
		if err := ctx.Err(); err != nil {
			e.logger.Debug("pdf extraction cancelled", zap.Error(err))
			break
		}
		raw, err := s.run(ctx, data)
		if errors.Is(err, errSkipped) {
			continue
		}
		tried = append(tried, s.name)
		if err != nil {
			e.logger.Debug("pdf strategy failed", zap.String("method", s.name), zap.Error(err))
			continue
		}
		text, verdict := e.finish(raw)
		if !verdict.Pass {
			e.logger.Debug("pdf strategy output rejected",
				zap.String("method", s.name),
				zap.String("reason", verdict.Reason),
				zap.Int("length", verdict.Length),
				zap.Int("metadata_hits", verdict.MetadataHits),
			)
			continue
		}
		e.logger.Debug("pdf strategy succeeded", zap.String("method", s.name), zap.Int("length", verdict.Length))
		return ok(text, s.name, tried)
	}
	return failure(KindNoTextExtracted, errorMessage(KindNoTextExtracted, e.cfg.MaxFileSizeMB), tried)
}

// runLibrary parses the document with ledongthuc/pdf and concatenates page text.
func (e *Extractor) runLibrary(_ context.Context, data []byte) (out []byte, err error) {
	if !e.cfg.LibraryEnabledOrDefault() {
		return nil, errSkipped
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("pdf library panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Debug("pdf library page failed", zap.Int("page", i), zap.Error(err))
			continue
		}
		buf.WriteString(text)
		buf.WriteByte('\n')
	}
	if strings.TrimSpace(buf.String()) == "" {
		return nil, errors.New("no page text")
	}
	return buf.Bytes(), nil
}

// runStreams decompresses and tokenizes every content stream.
func (e *Extractor) runStreams(_ context.Context, data []byte) ([]byte, error) {
	fragments := e.streamFragments(data)
	if len(fragments) == 0 {
		return nil, errors.New("no stream yielded text")
	}
	text := strings.Join(fragments, "\n")
	if n := nonSpaceCount(text); n < minRecoveredChars {
		return nil, fmt.Errorf("only %d characters recovered from streams", n)
	}
	return []byte(text), nil
}

// streamFragments returns the decoded text of each stream that yielded any.
func (e *Extractor) streamFragments(data []byte) []string {
	var fragments []string
	for i, s := range findStreams(data) {
		decoded, step := decompress(s.data, s.filter)
		text := tokenizeContent(decoded)
		if strings.TrimSpace(text) == "" {
			continue
		}
		e.logger.Debug("stream yielded text",
			zap.Int("stream", i),
			zap.Stringer("filter", s.filter),
			zap.String("inflate", step),
			zap.Int("bytes", len(text)),
		)
		fragments = append(fragments, text)
	}
	return fragments
}

// runRaw tokenizes text blocks found directly in the undecompressed buffer.
func (e *Extractor) runRaw(_ context.Context, data []byte) ([]byte, error) {
	text := tokenizeContent(data)
	if n := nonSpaceCount(text); n < minRecoveredChars {
		return nil, fmt.Errorf("only %d characters recovered from raw scan", n)
	}
	return []byte(text), nil
}

func nonSpaceCount(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
