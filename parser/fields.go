package parser

import (
	"strconv"
	"strings"
)

// logicalLine is one rule line after joining backslash continuations.
type logicalLine struct {
	text string
	num  int // physical line number of the first fragment
}

// logicalLines splits the corpus into logical lines. A trailing unescaped
// backslash joins the next physical line.
func logicalLines(input string) []logicalLine {
	physical := strings.Split(input, "\n")
	lines := make([]logicalLine, 0, len(physical))

	var pending strings.Builder
	pendingNum := 0
	for i, raw := range physical {
		raw = strings.TrimSuffix(raw, "\r")
		if pending.Len() == 0 {
			pendingNum = i + 1
		}
		if endsWithContinuation(raw) {
			pending.WriteString(raw[:len(raw)-1])
			continue
		}
		pending.WriteString(raw)
		lines = append(lines, logicalLine{text: pending.String(), num: pendingNum})
		pending.Reset()
	}
	if pending.Len() > 0 {
		lines = append(lines, logicalLine{text: pending.String(), num: pendingNum})
	}
	return lines
}

// endsWithContinuation reports whether the line ends in an unescaped
// backslash.
func endsWithContinuation(s string) bool {
	n := 0
	for n < len(s) && s[len(s)-1-n] == '\\' {
		n++
	}
	return n%2 == 1
}

// splitField splits text at the first unescaped whitespace, returning the
// field and the remainder with leading whitespace trimmed.
func splitField(text string) (string, string) {
	escaped := false
	for i := 0; i < len(text); i++ {
		if escaped {
			escaped = false
			continue
		}
		switch text[i] {
		case '\\':
			escaped = true
		case ' ', '\t':
			return text[:i], strings.TrimLeft(text[i:], " \t")
		}
	}
	return text, ""
}

// unescape decodes the escape sequences libmagic operands and messages use:
// octal (\NNN), hex (\xN, \xNN), the common control escapes, and
// backslash-anything for a literal character.
func unescape(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			out = append(out, c)
			continue
		}
		i++
		if i >= len(s) {
			return nil, errUnterminated
		}
		switch s[i] {
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'v':
			out = append(out, '\v')
		case 'e':
			out = append(out, 0x1b)
		case 'x':
			j := i + 1
			for j < len(s) && j <= i+2 && isHexDigit(s[j]) {
				j++
			}
			if j == i+1 {
				return nil, errUnterminated
			}
			v, _ := strconv.ParseUint(s[i+1:j], 16, 8)
			out = append(out, byte(v))
			i = j - 1
		case '0', '1', '2', '3', '4', '5', '6', '7':
			j := i
			for j < len(s) && j < i+3 && s[j] >= '0' && s[j] <= '7' {
				j++
			}
			v, _ := strconv.ParseUint(s[i:j], 8, 16)
			out = append(out, byte(v))
			i = j - 1
		default:
			// \\, \>, \(, \  and friends: the character itself.
			out = append(out, s[i])
		}
	}
	return out, nil
}

// parseNumeric parses a libmagic numeric literal: decimal, 0x hex, or
// leading-zero octal, with an optional sign and an optional L suffix.
func parseNumeric(text string) (int64, error) {
	text = strings.TrimSpace(text)
	neg := false
	if strings.HasPrefix(text, "-") {
		neg = true
		text = text[1:]
	} else if strings.HasPrefix(text, "+") {
		text = text[1:]
	}
	text = strings.TrimSuffix(text, "L")
	if text == "" {
		return 0, strconv.ErrSyntax
	}
	base := 10
	switch {
	case strings.HasPrefix(text, "0x"), strings.HasPrefix(text, "0X"):
		base = 16
		text = text[2:]
	case len(text) > 1 && text[0] == '0':
		base = 8
		text = text[1:]
	}
	v, err := strconv.ParseUint(text, base, 64)
	if err != nil {
		return 0, err
	}
	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
