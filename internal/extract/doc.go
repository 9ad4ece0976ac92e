package extract

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/richardlehane/mscfb"
	"golang.org/x/text/encoding/charmap"
)

// minDocRun is the shortest printable byte run kept from a legacy Word body.
const minDocRun = 3

// minDocLine is the length a kept line must exceed.
const minDocLine = 5

// docLineRe accepts lines made only of letters, digits, whitespace and common punctuation.
var docLineRe = regexp.MustCompile(`^[\p{L}\p{N}_\s.,;:!?'"()\-]+$`)

// wordDocumentBody returns the WordDocument stream of an OLE2 compound file, or the whole
// buffer when data is not a compound file or has no such stream.
func wordDocumentBody(data []byte) (body []byte) {
	defer func() {
		if recover() != nil {
			body = data
		}
	}()
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return data
	}
	for {
		entry, err := doc.Next()
		if err != nil {
			return data
		}
		if entry.Name != "WordDocument" {
			continue
		}
		stream, err := io.ReadAll(entry)
		if err != nil || len(stream) == 0 {
			return data
		}
		return stream
	}
}

// extractDOC recovers readable lines from a legacy Word file. It is a heuristic: the body is
// scanned for printable single-byte runs and for UTF-16LE runs, and the richer of the two
// line sets wins.
func extractDOC(data []byte) string {
	body := wordDocumentBody(data)
	single := filterDocLines(singleByteRuns(body))
	wide := filterDocLines(utf16Runs(body))
	if len(wide) > len(single) {
		return wide
	}
	return single
}

// singleByteRuns splits body on every byte outside 32–126 and 160–255 and decodes each run
// of at least minDocRun bytes as Windows-1252.
func singleByteRuns(body []byte) []string {
	dec := charmap.Windows1252.NewDecoder()
	var runs []string
	start := -1
	emit := func(end int) {
		if start >= 0 && end-start >= minDocRun {
			if s, err := dec.Bytes(body[start:end]); err == nil {
				runs = append(runs, strings.TrimSpace(string(s)))
			}
		}
		start = -1
	}
	for i, c := range body {
		if (c >= 32 && c <= 126) || c >= 160 {
			if start < 0 {
				start = i
			}
			continue
		}
		emit(i)
	}
	emit(len(body))
	return runs
}

// utf16Runs collects runs of little-endian code units whose high byte is zero and whose low
// byte is printable Latin-1.
func utf16Runs(body []byte) []string {
	var (
		runs []string
		cur  []rune
	)
	emit := func() {
		if len(cur) >= minDocRun {
			runs = append(runs, strings.TrimSpace(string(cur)))
		}
		cur = cur[:0]
	}
	for i := 0; i+1 < len(body); i += 2 {
		lo, hi := body[i], body[i+1]
		if hi == 0 && ((lo >= 32 && lo <= 126) || lo >= 160) {
			cur = append(cur, rune(lo))
			continue
		}
		emit()
	}
	emit()
	return runs
}

func filterDocLines(runs []string) string {
	var kept []string
	for _, line := range runs {
		if len([]rune(line)) > minDocLine && docLineRe.MatchString(line) {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
