package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

var (
	horizontalSpaceRe = regexp.MustCompile(`[ \t]+`)
	spaceAroundLFRe   = regexp.MustCompile(` ?\n ?`)
	manyNewlinesRe    = regexp.MustCompile(`\n{3,}`)
)

// sentenceBoundaryRatio is the share of the budget a sentence cut must keep.
const sentenceBoundaryRatio = 0.8

// Normalize converts recovered bytes into storable UTF-8 text of at most maxLen runes.
// encodings lists the single-byte candidates tried when raw is not valid UTF-8.
func Normalize(raw []byte, encodings []string, maxLen int) string {
	text := decodeText(raw, encodings)
	text = cleanText(text)
	return Truncate(text, maxLen)
}

// decodeText returns raw as UTF-8. Valid UTF-8 is returned as-is; otherwise the first candidate
// whose decoding has no C1 controls or undefined code points wins, with ISO-8859-1 as last resort.
func decodeText(raw []byte, encodings []string) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	for _, name := range encodings {
		enc := lookupEncoding(name)
		if enc == nil {
			continue
		}
		out, err := enc.NewDecoder().Bytes(raw)
		if err != nil || !utf8.Valid(out) {
			continue
		}
		if s := string(out); cleanDecoding(s) {
			return s
		}
	}
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	return string(out)
}

func lookupEncoding(name string) encoding.Encoding {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8", "ascii", "us-ascii":
		return nil
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1
	case "windows-1252", "cp1252":
		return charmap.Windows1252
	case "iso-8859-2", "latin2":
		return charmap.ISO8859_2
	case "windows-1250", "cp1250":
		return charmap.Windows1250
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil
	}
	return enc
}

func cleanDecoding(s string) bool {
	for _, r := range s {
		if r == utf8.RuneError || (r >= 0x80 && r <= 0x9F) {
			return false
		}
	}
	return true
}

// cleanText strips the BOM and control characters, normalizes line endings and whitespace,
// and replaces code points that are unsafe to store with '?'.
func cleanText(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r < 0x20 || (r >= 0x7F && r <= 0x9F):
			// NUL, C0, DEL and C1 controls are dropped.
		case !storableRune(r):
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	text = b.String()

	text = horizontalSpaceRe.ReplaceAllString(text, " ")
	text = spaceAroundLFRe.ReplaceAllString(text, "\n")
	text = manyNewlinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// storableRune reports whether r is inside the XML/database-safe character range.
// Input is valid UTF-8 by now, so U+FFFD only appears where the source had it and is kept.
func storableRune(r rune) bool {
	switch {
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= 0x10FFFF:
		return true
	}
	return false
}

// Truncate limits text to maxLen runes. When a cut is needed it ends after the last '.' if that
// keeps at least 80% of the budget, otherwise it hard-cuts. The result is always a prefix of text.
// maxLen <= 0 disables truncation.
func Truncate(text string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	runes := []rune(text)[:maxLen]
	minKeep := int(float64(maxLen) * sentenceBoundaryRatio)
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] != '.' {
			continue
		}
		if i+1 >= minKeep {
			return string(runes[:i+1])
		}
		break
	}
	return string(runes)
}
