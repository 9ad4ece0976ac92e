package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// pdfToTextPath returns the external tool to run, or "" when none is usable.
// A configured path wins; otherwise "pdftotext" is looked up on PATH.
func (e *Extractor) pdfToTextPath() string {
	if e.cfg.DisablePDFToText {
		return ""
	}
	name := e.cfg.PDFToTextPath
	if name == "" {
		name = "pdftotext"
	}
	path, err := e.lookPath(name)
	if err != nil {
		return ""
	}
	return path
}

// runPDFToText writes data to a temp file, runs `tool <input> <output>` and reads the output back.
// Both temp files are removed on every return path. The process is killed when ToolTimeout expires.
func (e *Extractor) runPDFToText(ctx context.Context, data []byte) ([]byte, error) {
	tool := e.pdfToTextPath()
	if tool == "" {
		return nil, errSkipped
	}

	in, err := os.CreateTemp(e.cfg.TempDir, "doctext-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create input file: %w", err)
	}
	inPath := in.Name()
	defer os.Remove(inPath)
	_, writeErr := in.Write(data)
	closeErr := in.Close()
	if writeErr != nil {
		return nil, fmt.Errorf("write input file: %w", writeErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close input file: %w", closeErr)
	}

	out, err := os.CreateTemp(e.cfg.TempDir, "doctext-*.txt")
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	outPath := out.Name()
	defer os.Remove(outPath)
	_ = out.Close()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.ToolTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, tool, inPath, outPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s timed out after %s: %w", tool, e.cfg.ToolTimeout, ctx.Err())
		}
		e.logger.Debug("pdftotext output", zap.ByteString("output", output))
		return nil, fmt.Errorf("run %s: %w", tool, err)
	}

	text, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("read output file: %w", err)
	}
	return text, nil
}
