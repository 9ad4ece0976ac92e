package extract

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Hello world", "Hello world"},
		{"bom", "\uFEFFHello", "Hello"},
		{"crlf", "one\r\ntwo\rthree", "one\ntwo\nthree"},
		{"controls", "a\x00b\x07c\x1bd\x7fe", "abcde"},
		{"tab collapsed", "col1\tcol2", "col1 col2"},
		{"horizontal runs", "a  \t  b", "a b"},
		{"space around newline", "a \n b", "a\nb"},
		{"many newlines", "a\n\n\n\n\nb", "a\n\nb"},
		{"trim", "  \n padded \n  ", "padded"},
		{"latin1", "caf\xe9", "café"},
		{"windows-1252 quotes", "\x93quoted\x94", "“quoted”"},
		{"utf8 kept", "naïve façade", "naïve façade"},
		{"noncharacter replaced", "a\uFFFEb", "a?b"},
		{"noncharacters replaced", "c\uFFFFd x\uFFFEy", "c?d x?y"},
		{"replacement char kept", "a\uFFFDb", "a\uFFFDb"},
		{"private use kept", "a\uE000b", "a\uE000b"},
		{"supplementary kept", "a\U0010FFFFb \U0001F600", "a\U0010FFFFb \U0001F600"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize([]byte(tt.in), DefaultEncodings, 0)
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_outputIsClean(t *testing.T) {
	raw := []byte("\xff\xfe\x00binary\x01\x02 junk \xc3\x28 and \uffff end")
	got := Normalize(raw, DefaultEncodings, 0)
	if !utf8.ValidString(got) {
		t.Fatalf("invalid UTF-8: %q", got)
	}
	for _, r := range got {
		if r < 0x20 && r != '\n' && r != '\t' {
			t.Errorf("control character %U in %q", r, got)
		}
		if r >= 0x7F && r <= 0x9F {
			t.Errorf("C1 control %U in %q", r, got)
		}
	}
}

func TestNormalize_encodingOrder(t *testing.T) {
	// 0x8A is Š in windows-1252 and a C1 control in ISO-8859-1.
	got := Normalize([]byte("\x8Akoda"), []string{"ISO-8859-1", "windows-1252"}, 0)
	if got != "Škoda" {
		t.Errorf("got %q, want %q", got, "Škoda")
	}
	// An unknown candidate is skipped.
	got = Normalize([]byte("caf\xe9"), []string{"no-such-charset", "latin1"}, 0)
	if got != "café" {
		t.Errorf("got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	sentenceEnd := strings.Repeat("a", 85) + "." + strings.Repeat("b", 50)
	early := strings.Repeat("a", 10) + "." + strings.Repeat("b", 150)

	tests := []struct {
		name   string
		text   string
		maxLen int
		want   string
	}{
		{"short", "abc", 10, "abc"},
		{"no limit", sentenceEnd, 0, sentenceEnd},
		{"sentence boundary", sentenceEnd, 100, sentenceEnd[:86]},
		{"hard cut", early, 100, early[:100]},
		{"runes", strings.Repeat("é", 20), 5, strings.Repeat("é", 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.text, tt.maxLen)
			if got != tt.want {
				t.Errorf("Truncate = %q, want %q", got, tt.want)
			}
			if !strings.HasPrefix(tt.text, got) {
				t.Errorf("result is not a prefix")
			}
			if tt.maxLen > 0 && utf8.RuneCountInString(got) > tt.maxLen {
				t.Errorf("result has %d runes, limit %d", utf8.RuneCountInString(got), tt.maxLen)
			}
		})
	}
}
