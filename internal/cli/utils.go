// Package cli provides CLI output helpers for doctext.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/hyperjump/doctext/internal/extract"
	"github.com/hyperjump/doctext/internal/models"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

// WriteExtraction writes one extraction record to w. In text format, preview > 0 limits the
// printed text to that many characters; JSON always carries the full record.
func WriteExtraction(w io.Writer, rec *models.Extraction, format OutputFormat, preview int) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	}
	writeExtractionText(w, rec, preview)
	return nil
}

func writeExtractionText(w io.Writer, rec *models.Extraction, preview int) {
	name := rec.Filename
	if name == "" {
		name = rec.ID
	}
	fmt.Fprintf(w, "=== %s (%s, %d bytes)\n", name, rec.Mimetype, rec.Size)
	if !rec.Success {
		fmt.Fprintf(w, "error [%s]: %s\n", rec.ErrorKind, rec.Error)
		if len(rec.MethodsUsed) > 0 {
			fmt.Fprintf(w, "tried: %s\n", strings.Join(rec.MethodsUsed, ", "))
		}
		fmt.Fprintln(w)
		return
	}
	cached := ""
	if rec.Cached {
		cached = " (cached)"
	}
	fmt.Fprintf(w, "method: %s%s | %d characters\n", rec.Method, cached, utf8.RuneCountInString(rec.Text))
	fmt.Fprintf(w, "\n%s\n\n", Truncate(rec.Text, preview))
}

// WriteMethods writes the PDF strategy availability report to w.
func WriteMethods(w io.Writer, methods []extract.MethodStatus, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(methods)
	}
	for _, m := range methods {
		state := "unavailable"
		if m.Available {
			state = "available"
		}
		if m.Path != "" {
			fmt.Fprintf(w, "%-10s %s (%s)\n", m.Method, state, m.Path)
		} else {
			fmt.Fprintf(w, "%-10s %s\n", m.Method, state)
		}
	}
	return nil
}

// Truncate truncates s to maxLen characters and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	n := 0
	for i := range s {
		if n == maxLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}
