package extract

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// metadataSignatures match PDF object syntax that leaks into output when a parse degenerates.
var metadataSignatures = []*regexp.Regexp{
	regexp.MustCompile(`\b\d+\s+\d+\s+obj\b`),
	regexp.MustCompile(`\bendobj\b`),
	regexp.MustCompile(`\bendstream\b`),
	regexp.MustCompile(`/FlateDecode`),
	regexp.MustCompile(`/Filter\b`),
	regexp.MustCompile(`/Length\b`),
	regexp.MustCompile(`/Type\s*/`),
	regexp.MustCompile(`/Font\b`),
	regexp.MustCompile(`/BaseFont\b`),
	regexp.MustCompile(`/Resources\b`),
	regexp.MustCompile(`/MediaBox\b`),
	regexp.MustCompile(`/ProcSet\b`),
	regexp.MustCompile(`/Encoding\b`),
	regexp.MustCompile(`\bxref\b`),
	regexp.MustCompile(`\btrailer\b`),
	regexp.MustCompile(`\bstartxref\b`),
	regexp.MustCompile(`/Root\b`),
	regexp.MustCompile(`%PDF-\d`),
	regexp.MustCompile(`<<\s*/`),
}

// Verdict is the classifier decision plus the scores behind it.
type Verdict struct {
	Pass              bool    `json:"pass"`
	Reason            string  `json:"reason,omitempty"`
	Length            int     `json:"length"`
	MetadataHits      int     `json:"metadata_hits"`
	NonPrintableRatio float64 `json:"non_printable_ratio"`
	WordCount         int     `json:"word_count"`
	MeanWordLength    float64 `json:"mean_word_length"`
}

// Classify decides whether text is document prose rather than leaked format syntax or binary noise.
// Rules are checked in order and the first failing rule is reported in Reason.
func Classify(text string, cfg ClassifierConfig) Verdict {
	cfg.ApplyDefaults()
	text = strings.TrimSpace(text)

	v := Verdict{Length: utf8.RuneCountInString(text)}
	if v.Length < cfg.MinLength {
		v.Reason = "too short"
		return v
	}

	v.MetadataHits = countMetadataHits(text)
	if v.MetadataHits > cfg.MaxMetadataHits {
		v.Reason = "format metadata"
		return v
	}

	v.NonPrintableRatio = nonPrintableRatio(text)
	if v.NonPrintableRatio > cfg.MaxNonPrintableRatio {
		v.Reason = "non-printable content"
		return v
	}

	words := strings.Fields(text)
	v.WordCount = len(words)
	if v.WordCount < cfg.MinWords {
		v.Reason = "too few words"
		return v
	}

	total := 0
	for _, w := range words {
		total += utf8.RuneCountInString(w)
	}
	v.MeanWordLength = float64(total) / float64(v.WordCount)
	if v.MeanWordLength < cfg.MinMeanWordLength || v.MeanWordLength > cfg.MaxMeanWordLength {
		v.Reason = "implausible word length"
		return v
	}

	v.Pass = true
	return v
}

// IsValidText is Classify reduced to its pass/fail outcome.
func IsValidText(text string, cfg ClassifierConfig) bool {
	return Classify(text, cfg).Pass
}

func countMetadataHits(text string) int {
	hits := 0
	for _, re := range metadataSignatures {
		hits += len(re.FindAllStringIndex(text, -1))
	}
	return hits
}

func nonPrintableRatio(text string) float64 {
	total, bad := 0, 0
	for _, r := range text {
		total++
		if !proseRune(r) {
			bad++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(bad) / float64(total)
}

// proseRune accepts printable ASCII, common whitespace, Latin letters and marks,
// Latin-1 symbols and general punctuation (typographic quotes and dashes).
func proseRune(r rune) bool {
	switch {
	case r == '\n' || r == '\t' || r == '\r':
		return true
	case r >= 0x20 && r <= 0x7E:
		return true
	case r >= 0xA0 && r <= 0xFF:
		return true
	case r >= 0x2010 && r <= 0x205E:
		return true
	case r == 0x20AC:
		return true
	}
	return unicode.Is(unicode.Latin, r) || unicode.Is(unicode.Mn, r)
}
