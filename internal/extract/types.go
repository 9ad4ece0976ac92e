package extract

import "fmt"

// Supported mimetypes.
const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeDOC  = "application/msword"
)

// Method names reported in Result.Method and Result.MethodsUsed.
const (
	MethodPDFToText = "pdftotext"
	MethodLibrary   = "library"
	MethodStream    = "stream"
	MethodRaw       = "raw"
	MethodDOCX      = "docx"
	MethodDOC       = "doc"
)

// ErrorKind classifies a failed extraction.
type ErrorKind string

const (
	KindFileTooLarge        ErrorKind = "FileTooLarge"
	KindUnsupportedMimetype ErrorKind = "UnsupportedMimetype"
	KindEmptyFile           ErrorKind = "EmptyFile"
	KindNoTextExtracted     ErrorKind = "NoTextExtracted"
	KindDecodeError         ErrorKind = "DecodeError"
)

// Request is a single document to extract. Data is never modified.
type Request struct {
	Data     []byte
	Mimetype string
	// Size is the declared size in bytes. The larger of Size and len(Data) is checked against the limit.
	Size     int64
	Filename string
}

// Result is the outcome of one extraction call.
type Result struct {
	Success     bool      `json:"success"`
	Text        string    `json:"text"`
	Error       string    `json:"error"`
	Kind        ErrorKind `json:"error_kind,omitempty"`
	Method      string    `json:"method,omitempty"`
	MethodsUsed []string  `json:"methods_used,omitempty"`
}

func ok(text, method string, tried []string) Result {
	return Result{Success: true, Text: text, Method: method, MethodsUsed: tried}
}

func failure(kind ErrorKind, msg string, tried []string) Result {
	return Result{Kind: kind, Error: msg, MethodsUsed: tried}
}

// errorMessage returns the user-facing message for kind.
func errorMessage(kind ErrorKind, maxSizeMB int) string {
	switch kind {
	case KindFileTooLarge:
		return fmt.Sprintf("File is too large. Maximum size is %d MB.", maxSizeMB)
	case KindUnsupportedMimetype:
		return "Invalid file type. Only PDF and Word documents are supported."
	case KindEmptyFile:
		return "File is empty."
	case KindDecodeError:
		return "Failed to extract text from document. The file may be corrupted."
	default:
		return "Could not extract readable text from this document. PDF files may be scanned or image-based, " +
			"encrypted, or use unsupported encoding. Word files must contain actual text content."
	}
}
