// Package models defines the extraction records stored and served by doctext.
package models

import (
	"time"

	"github.com/hyperjump/doctext/internal/extract"
)

// Extraction is one extraction call with its request metadata and result.
type Extraction struct {
	ID          string            `json:"id" db:"id"`
	ContentID   string            `json:"content_id" db:"content_id"`
	Filename    string            `json:"filename,omitempty" db:"filename"`
	Mimetype    string            `json:"mimetype" db:"mimetype"`
	Size        int64             `json:"size" db:"size"`
	Success     bool              `json:"success" db:"success"`
	Text        string            `json:"text" db:"text"`
	ErrorKind   extract.ErrorKind `json:"error_kind,omitempty" db:"error_kind"`
	Error       string            `json:"error,omitempty" db:"error"`
	Method      string            `json:"method,omitempty" db:"method"`
	MethodsUsed []string          `json:"methods_used,omitempty" db:"methods_used"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	// Cached is set on records served from the store instead of a fresh extraction.
	Cached bool `json:"cached" db:"-"`
}

// ExtractionSummary is an Extraction without its text, for listings.
type ExtractionSummary struct {
	ID         string            `json:"id"`
	Filename   string            `json:"filename,omitempty"`
	Mimetype   string            `json:"mimetype"`
	Size       int64             `json:"size"`
	Success    bool              `json:"success"`
	ErrorKind  extract.ErrorKind `json:"error_kind,omitempty"`
	Method     string            `json:"method,omitempty"`
	TextLength int               `json:"text_length"`
	CreatedAt  time.Time         `json:"created_at"`
}

// FromResult builds an Extraction from an engine result.
func FromResult(id, contentID, filename, mimetype string, size int64, res extract.Result, now time.Time) *Extraction {
	return &Extraction{
		ID:          id,
		ContentID:   contentID,
		Filename:    filename,
		Mimetype:    mimetype,
		Size:        size,
		Success:     res.Success,
		Text:        res.Text,
		ErrorKind:   res.Kind,
		Error:       res.Error,
		Method:      res.Method,
		MethodsUsed: res.MethodsUsed,
		CreatedAt:   now.UTC(),
	}
}

// Result converts the record back into the engine result shape.
func (e *Extraction) Result() extract.Result {
	return extract.Result{
		Success:     e.Success,
		Text:        e.Text,
		Error:       e.Error,
		Kind:        e.ErrorKind,
		Method:      e.Method,
		MethodsUsed: e.MethodsUsed,
	}
}

// Summary drops the text from e.
func (e *Extraction) Summary() ExtractionSummary {
	return ExtractionSummary{
		ID:         e.ID,
		Filename:   e.Filename,
		Mimetype:   e.Mimetype,
		Size:       e.Size,
		Success:    e.Success,
		ErrorKind:  e.ErrorKind,
		Method:     e.Method,
		TextLength: len([]rune(e.Text)),
		CreatedAt:  e.CreatedAt,
	}
}
