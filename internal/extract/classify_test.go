package extract

import (
	"strings"
	"testing"
)

func TestClassify(t *testing.T) {
	cfg := ClassifierConfig{}
	tests := []struct {
		name   string
		text   string
		pass   bool
		reason string
	}{
		{"prose", prose(3), true, ""},
		{"too short", "Hello world.", false, "too short"},
		{"metadata", prose(3) + " 5 0 obj << /Type /Font /BaseFont /Helvetica >> endobj", false, "format metadata"},
		{"binary", prose(3) + strings.Repeat("\x01\x02", 60), false, "non-printable content"},
		{"one long token", strings.Repeat("a", 150), false, "too few words"},
		{"long words", strings.TrimSpace(strings.Repeat("abcdefghijklmnopqrst ", 25)), false, "implausible word length"},
		{"single letters", strings.TrimSpace(strings.Repeat("a ", 80)), false, "implausible word length"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Classify(tt.text, cfg)
			if v.Pass != tt.pass || v.Reason != tt.reason {
				t.Errorf("Classify = pass %v reason %q, want pass %v reason %q (verdict %+v)",
					v.Pass, v.Reason, tt.pass, tt.reason, v)
			}
		})
	}
}

func TestClassify_metadataMonotonic(t *testing.T) {
	cfg := ClassifierConfig{}
	for _, text := range []string{prose(2), prose(5), prose(20)} {
		if !IsValidText(text, cfg) {
			t.Fatalf("baseline rejected: %q", text)
		}
		leaked := text + " /FlateDecode /FlateDecode /FlateDecode"
		if IsValidText(leaked, cfg) {
			t.Errorf("text with three /FlateDecode markers accepted (len %d)", len(text))
		}
	}
}

func TestClassify_nonLatinCountsAsNonPrintable(t *testing.T) {
	text := prose(2) + " " + strings.Repeat("привет ", 10)
	v := Classify(text, ClassifierConfig{})
	if v.Pass {
		t.Errorf("expected rejection, got %+v", v)
	}
	if v.NonPrintableRatio == 0 {
		t.Errorf("non-printable ratio not measured: %+v", v)
	}
}

func TestClassify_customThresholds(t *testing.T) {
	cfg := ClassifierConfig{MinLength: 5, MinWords: 2}
	if !IsValidText("Hello world again", cfg) {
		t.Error("short text rejected with lowered thresholds")
	}
}
