package extract

import (
	"strings"
)

type operandKind int

const (
	operandOther operandKind = iota
	operandString
	operandArray
)

type operand struct {
	kind operandKind
	text string
}

// tokenizeContent decodes the text painted by every BT … ET block in data.
// Blocks are joined with a space. Unknown operators and malformed operands are skipped.
// Outside text objects the bytes are not tokenized, so data may be a whole file.
func tokenizeContent(data []byte) string {
	var (
		parts    []string
		block    strings.Builder
		inText   bool
		operands []operand
	)
	endBlock := func() {
		if s := block.String(); strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
		block.Reset()
		operands = operands[:0]
		inText = false
	}
	emit := func(frag string, newline bool) {
		switch {
		case newline:
			block.WriteByte('\n')
		case block.Len() > 0:
			block.WriteByte(' ')
		}
		block.WriteString(frag)
	}

	for i := 0; i < len(data); {
		if !inText {
			if isKeywordAt(data, i, "BT") {
				inText = true
				i += 2
			} else {
				i++
			}
			continue
		}

		c := data[i]
		switch {
		case isPDFSpace(c):
			i++
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '(':
			body, next := scanLiteral(data, i)
			operands = append(operands, operand{kind: operandString, text: unescapeLiteral(body)})
			i = next
		case c == '<' && i+1 < len(data) && data[i+1] == '<', c == '>' && i+1 < len(data) && data[i+1] == '>':
			i += 2
		case c == '<':
			body, next := scanHex(data, i)
			operands = append(operands, operand{kind: operandString, text: decodeHex(body)})
			i = next
		case c == '/':
			i++
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
			operands = append(operands, operand{kind: operandOther})
		case c == '[':
			text, next := scanArray(data, i)
			operands = append(operands, operand{kind: operandArray, text: text})
			i = next
		case isPDFDelimiter(c):
			i++
		default:
			start := i
			for i < len(data) && !isPDFSpace(data[i]) && !isPDFDelimiter(data[i]) {
				i++
			}
			tok := string(data[start:i])
			if c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') || tok == "true" || tok == "false" || tok == "null" {
				operands = append(operands, operand{kind: operandOther})
				continue
			}
			var last operand
			if len(operands) > 0 {
				last = operands[len(operands)-1]
			}
			switch tok {
			case "ET", "endstream":
				endBlock()
				continue
			case "Tj", "'", "\"":
				if last.kind == operandString {
					emit(last.text, tok != "Tj")
				}
			case "TJ":
				if last.kind == operandArray {
					emit(last.text, false)
				}
			}
			operands = operands[:0]
		}
	}
	if inText {
		endBlock()
	}
	return strings.Join(parts, " ")
}

// scanLiteral returns the body of the literal string opening at data[start] and the index after
// its closing parenthesis. Balanced inner parentheses belong to the body. An unterminated
// literal runs to the end of data.
func scanLiteral(data []byte, start int) ([]byte, int) {
	depth := 0
	for i := start; i < len(data); i++ {
		switch data[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return data[start+1 : i], i + 1
			}
		}
	}
	return data[start+1:], len(data)
}

// scanHex returns the body of the hex string opening at data[start] and the index after '>'.
func scanHex(data []byte, start int) ([]byte, int) {
	for i := start + 1; i < len(data); i++ {
		if data[i] == '>' {
			return data[start+1 : i], i + 1
		}
	}
	return data[start+1:], len(data)
}

// scanArray concatenates the string items of the array opening at data[start]; kerning numbers
// are skipped. It returns the index after the closing bracket.
func scanArray(data []byte, start int) (string, int) {
	var b strings.Builder
	i := start + 1
	for i < len(data) {
		switch c := data[i]; {
		case c == ']':
			return b.String(), i + 1
		case c == '(':
			body, next := scanLiteral(data, i)
			b.WriteString(unescapeLiteral(body))
			i = next
		case c == '<' && (i+1 >= len(data) || data[i+1] != '<'):
			body, next := scanHex(data, i)
			b.WriteString(decodeHex(body))
			i = next
		default:
			i++
		}
	}
	return b.String(), len(data)
}

// isKeywordAt reports whether kw occurs at data[i] as a whole token.
func isKeywordAt(data []byte, i int, kw string) bool {
	if i+len(kw) > len(data) || string(data[i:i+len(kw)]) != kw {
		return false
	}
	if i > 0 && !isPDFSpace(data[i-1]) && !isPDFDelimiter(data[i-1]) {
		return false
	}
	end := i + len(kw)
	return end == len(data) || isPDFSpace(data[end]) || isPDFDelimiter(data[end])
}

func isPDFSpace(c byte) bool {
	switch c {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isPDFDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

// unescapeLiteral resolves the escape sequences of a PDF literal string body.
func unescapeLiteral(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			b.WriteByte(c)
			continue
		}
		i++
		c = raw[i]
		switch c {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case '(', ')', '\\':
			b.WriteByte(c)
		case '\r':
			// Line continuation.
			if i+1 < len(raw) && raw[i+1] == '\n' {
				i++
			}
		case '\n':
		default:
			if c < '0' || c > '7' {
				b.WriteByte(c)
				continue
			}
			v := int(c - '0')
			for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
				i++
				v = v*8 + int(raw[i]-'0')
			}
			b.WriteByte(byte(v))
		}
	}
	return b.String()
}

// decodeHex maps a hex string body to text. Printable ASCII passes through, CR and LF become a
// newline and every other byte becomes a space.
func decodeHex(raw []byte) string {
	digits := make([]byte, 0, len(raw)+1)
	for _, c := range raw {
		if hexVal(c) >= 0 {
			digits = append(digits, c)
		}
	}
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	var b strings.Builder
	b.Grow(len(digits) / 2)
	for i := 0; i < len(digits); i += 2 {
		v := byte(hexVal(digits[i])<<4 | hexVal(digits[i+1]))
		switch {
		case v >= 32 && v <= 126:
			b.WriteByte(v)
		case v == 10 || v == 13:
			b.WriteByte('\n')
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func hexVal(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}
