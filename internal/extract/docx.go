package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// docxDocumentXMLPath is the default path to the main document body inside a .docx zip.
const docxDocumentXMLPath = "word/document.xml"

// contentTypesPath is the path to [Content_Types].xml in OOXML packages.
const contentTypesPath = "[Content_Types].xml"

// docxMainContentType is the content type for the main document in DOCX files.
const docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"

// wordprocessingNS is the WordprocessingML namespace of w:p, w:t and friends.
const wordprocessingNS = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"

// maxDocumentXMLSize caps how much of the main part is read.
const maxDocumentXMLSize = 256 << 20

// errDocxPartMissing means the archive opened but holds no main document part.
var errDocxPartMissing = errors.New("main document part not found")

// partNameRe extracts PartName from Override elements in [Content_Types].xml.
var partNameRe = regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"`)

// partNameRe2 handles the case where ContentType appears before PartName.
var partNameRe2 = regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxMainContentType) + `"[^>]+PartName="([^"]+)"`)

// findDocxMainDocumentPath finds the main document path from [Content_Types].xml.
// Returns the path without leading slash, or empty string if not found.
func findDocxMainDocumentPath(zr *zip.Reader) string {
	f := findZipEntry(zr, contentTypesPath)
	if f == nil {
		return ""
	}
	content, err := readZipEntry(f, 1<<20)
	if err != nil {
		return ""
	}
	if m := partNameRe.FindSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(string(m[1]), "/")
	}
	if m := partNameRe2.FindSubmatch(content); len(m) > 1 {
		return strings.TrimPrefix(string(m[1]), "/")
	}
	return ""
}

func findZipEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func readZipEntry(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, limit))
}

// extractDOCX returns the paragraph text of a .docx archive, one paragraph per line.
// Tabs and line breaks inside a run are kept. Paragraphs with no text are skipped.
// When the XML turns malformed part way, the text gathered so far is returned with the error.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	docPath := findDocxMainDocumentPath(zr)
	f := findZipEntry(zr, docPath)
	if f == nil {
		f = findZipEntry(zr, docxDocumentXMLPath)
	}
	if f == nil {
		return "", fmt.Errorf("extract DOCX: %w", errDocxPartMissing)
	}
	docXML, err := readZipEntry(f, maxDocumentXMLSize)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: read %s: %w", f.Name, err)
	}

	paragraphs, err := docxParagraphs(docXML)
	text := strings.Join(paragraphs, "\n")
	if err != nil {
		return text, fmt.Errorf("extract DOCX: parse %s: %w", f.Name, err)
	}
	return text, nil
}

// docxParagraphs walks the document XML and collects the text of each w:p.
// Paragraphs nest through text boxes, so open paragraphs are kept on a stack.
func docxParagraphs(docXML []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(docXML))
	var (
		out    []string
		stack  []*strings.Builder
		inText bool
	)
	current := func() *strings.Builder {
		if len(stack) == 0 {
			return nil
		}
		return stack[len(stack)-1]
	}
	flush := func(b *strings.Builder) {
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
	}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			for _, b := range stack {
				flush(b)
			}
			return out, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if !isWordElement(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "p":
				stack = append(stack, &strings.Builder{})
			case "t":
				inText = true
			case "tab":
				if b := current(); b != nil {
					b.WriteByte('\t')
				}
			case "br", "cr":
				if b := current(); b != nil {
					b.WriteByte('\n')
				}
			}
		case xml.EndElement:
			if !isWordElement(t.Name) {
				continue
			}
			switch t.Name.Local {
			case "p":
				if b := current(); b != nil {
					stack = stack[:len(stack)-1]
					flush(b)
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				if b := current(); b != nil {
					b.Write(t)
				}
			}
		}
	}
	for _, b := range stack {
		flush(b)
	}
	return out, nil
}

// isWordElement accepts the WordprocessingML namespace, and unqualified names from documents
// that omit the namespace declaration.
func isWordElement(n xml.Name) bool {
	return n.Space == wordprocessingNS || n.Space == "" || n.Space == "w"
}
