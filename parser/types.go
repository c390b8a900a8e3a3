package parser

import (
	"strings"

	"github.com/softwired/margo/ast"
)

// parseType parses the type field of a rule line: the base keyword plus
// the width/endianness/flags/transforms encoded in it.
func parseType(s string, line int) (ast.ValueSpec, *CompileError) {
	switch s {
	case "name":
		return ast.ValueSpec{Kind: ast.KindName}, nil
	case "use":
		return ast.ValueSpec{Kind: ast.KindUse}, nil
	case "default":
		return ast.ValueSpec{Kind: ast.KindDefault}, nil
	case "clear":
		return ast.ValueSpec{Kind: ast.KindClear}, nil
	}
	base, _, _ := strings.Cut(s, "/")
	switch base {
	case "string", "ustring":
		return parseStringType(s, line)
	case "pstring":
		return parsePStringType(s, line)
	case "search":
		return parseSearchType(s, line)
	case "regex":
		return parseRegexType(s, line)
	}
	return parseIntegerType(s, line)
}

func parseStringFlags(flags string, search bool, line int) (ast.StringFlags, *CompileError) {
	var f ast.StringFlags
	for i := 0; i < len(flags); i++ {
		switch flags[i] {
		case 'c':
			f.LowerInsensitive = true
		case 'C':
			f.UpperInsensitive = true
		case 'B', 'W':
			f.CompactWhitespace = true
		case 'b', 'w':
			f.OptionalBlanks = true
		case 't', 'T':
			f.Trim = true
		case 's':
			if !search {
				return f, compileErr(line, ErrUnknownType, "string flag %q", flags[i:i+1])
			}
			f.MatchToStart = true
		default:
			return f, compileErr(line, ErrUnknownType, "string flag %q", flags[i:i+1])
		}
	}
	return f, nil
}

func parseStringType(s string, line int) (ast.ValueSpec, *CompileError) {
	spec := ast.ValueSpec{Kind: ast.KindString}
	if _, flags, ok := strings.Cut(s, "/"); ok {
		f, err := parseStringFlags(flags, false, line)
		if err != nil {
			return spec, err
		}
		spec.Flags = f
	}
	return spec, nil
}

// parsePStringType parses pstring with its length-prefix modifiers:
// B (1 byte), H/h (2 bytes big/little), L/l (4 bytes big/little), and J
// (the count includes the prefix itself).
func parsePStringType(s string, line int) (ast.ValueSpec, *CompileError) {
	spec := ast.ValueSpec{Kind: ast.KindPString, Width: 1, Endian: ast.Big}
	_, mods, ok := strings.Cut(s, "/")
	if !ok {
		return spec, nil
	}
	for i := 0; i < len(mods); i++ {
		switch mods[i] {
		case 'B':
			spec.Width, spec.Endian = 1, ast.Big
		case 'H':
			spec.Width, spec.Endian = 2, ast.Big
		case 'h':
			spec.Width, spec.Endian = 2, ast.Little
		case 'L':
			spec.Width, spec.Endian = 4, ast.Big
		case 'l':
			spec.Width, spec.Endian = 4, ast.Little
		case 'J':
			spec.CountIncludesPrefix = true
		default:
			return spec, compileErr(line, ErrUnknownType, "pstring modifier %q", mods[i:i+1])
		}
	}
	return spec, nil
}

// parseSearchType parses search/N, search/N/flags, search/flags/N, and the
// undocumented fused search/bN form some corpora use.
func parseSearchType(s string, line int) (ast.ValueSpec, *CompileError) {
	spec := ast.ValueSpec{Kind: ast.KindSearch}
	parts := strings.Split(s, "/")[1:]
	for _, part := range parts {
		if part == "" {
			continue
		}
		// split a fused flags+number part like "b64"
		cut := 0
		for cut < len(part) && !isDigit(part[cut]) {
			cut++
		}
		flagPart, numPart := part[:cut], part[cut:]
		if flagPart != "" {
			f, err := parseStringFlags(flagPart, true, line)
			if err != nil {
				return spec, err
			}
			spec.Flags = f
		}
		if numPart != "" {
			n, err := parseNumeric(numPart)
			if err != nil || n <= 0 {
				return spec, compileErr(line, ErrUnknownType, "search window %q", part)
			}
			spec.Window = int(n)
		}
	}
	return spec, nil
}

// parseRegexType parses regex/N and the c/s/l/T flags; a trailing b flag
// (with optional digits) is accepted and ignored, as in the reference
// corpora.
func parseRegexType(s string, line int) (ast.ValueSpec, *CompileError) {
	spec := ast.ValueSpec{Kind: ast.KindRegex}
	_, rest, ok := strings.Cut(s, "/")
	if !ok {
		return spec, nil
	}
	i := 0
	for i < len(rest) && isDigit(rest[i]) {
		i++
	}
	if i > 0 {
		n, err := parseNumeric(rest[:i])
		if err != nil || n <= 0 {
			return spec, compileErr(line, ErrUnknownType, "regex window %q", rest)
		}
		spec.Window = int(n)
	}
	for ; i < len(rest); i++ {
		switch rest[i] {
		case 'c':
			spec.Flags.LowerInsensitive = true
			spec.Flags.UpperInsensitive = true
		case 's':
			spec.Flags.MatchToStart = true
		case 'l':
			spec.Flags.LimitLines = true
		case 'T':
			spec.Flags.Trim = true
		case 'b':
			for i+1 < len(rest) && isDigit(rest[i+1]) {
				i++
			}
		default:
			return spec, compileErr(line, ErrUnknownType, "regex flag %q", rest[i:i+1])
		}
	}
	return spec, nil
}

var integerWidths = map[string]int{
	"byte":  1,
	"short": 2,
	"long":  4,
	"quad":  8,
}

// parseIntegerType parses the numeric type keywords: an optional u prefix,
// an optional le/be byte-order prefix, a base width keyword, and optional
// &mask, /divisor, %modulus transform suffixes.
func parseIntegerType(s string, line int) (ast.ValueSpec, *CompileError) {
	spec := ast.ValueSpec{Kind: ast.KindInteger, Endian: ast.Native}
	keyword := s
	if i := strings.IndexAny(s, "&/%"); i > 0 {
		keyword = s[:i]
		if err := parseTransforms(s[i:], &spec, line); err != nil {
			return spec, err
		}
	}
	if strings.HasPrefix(keyword, "u") {
		spec.Unsigned = true
		keyword = keyword[1:]
	}
	switch {
	case strings.HasPrefix(keyword, "le"):
		spec.Endian = ast.Little
		keyword = keyword[2:]
	case strings.HasPrefix(keyword, "be"):
		spec.Endian = ast.Big
		keyword = keyword[2:]
	}
	w, ok := integerWidths[keyword]
	if !ok {
		return spec, compileErr(line, ErrUnknownType, "%q", s)
	}
	spec.Width = w
	return spec, nil
}

func parseTransforms(s string, spec *ast.ValueSpec, line int) *CompileError {
	for len(s) > 0 {
		op := s[0]
		rest := s[1:]
		end := strings.IndexAny(rest, "&/%")
		if end < 0 {
			end = len(rest)
		}
		n, err := parseNumeric(rest[:end])
		if err != nil || n < 0 {
			return compileErr(line, ErrUnknownType, "transform operand %q", rest[:end])
		}
		switch op {
		case '&':
			spec.Mask = uint64(n)
		case '/':
			if n == 0 {
				return compileErr(line, ErrUnknownType, "divide by zero transform")
			}
			spec.Div = uint64(n)
		case '%':
			if n == 0 {
				return compileErr(line, ErrUnknownType, "modulus by zero transform")
			}
			spec.Mod = uint64(n)
		}
		s = rest[end:]
	}
	return nil
}

func widthMask(w int) uint64 {
	if w >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (8 * w)) - 1
}

var intOperators = map[byte]ast.Operator{
	'=': ast.OpEqual,
	'!': ast.OpNotEqual,
	'>': ast.OpGreater,
	'<': ast.OpLess,
	'&': ast.OpAnd,
	'^': ast.OpXor,
}

// parseIntOperand parses the operator+operand field of an integer test.
// The operand is stored as raw two's complement within the test's width.
func parseIntOperand(field string, width int, line int) (ast.Operator, uint64, *CompileError) {
	if field == "x" {
		return ast.OpAlways, 0, nil
	}
	op := ast.OpEqual
	if o, ok := intOperators[field[0]]; ok {
		op = o
		field = field[1:]
		field = strings.TrimPrefix(field, "=") // tolerate != and ==
	}
	complement := false
	if strings.HasPrefix(field, "~") {
		complement = true
		field = field[1:]
	}
	n, err := parseNumeric(field)
	if err != nil {
		return op, 0, compileErr(line, ErrBadOperand, "bad integer operand %q", field)
	}
	v := uint64(n) & widthMask(width)
	if complement {
		v = ^v & widthMask(width)
	}
	return op, v, nil
}

// parseStringOperand parses the operator+operand field of a string-family
// test and decodes the operand's escapes.
func parseStringOperand(field string, line int) (ast.Operator, []byte, *CompileError) {
	if field == "x" {
		return ast.OpAlways, nil, nil
	}
	op := ast.OpEqual
	switch field[0] {
	case '=':
		field = field[1:]
	case '!':
		op = ast.OpNotEqual
		field = strings.TrimPrefix(field[1:], "=")
	case '>':
		op = ast.OpGreater
		field = field[1:]
	case '<':
		op = ast.OpLess
		field = field[1:]
	}
	b, err := unescape(field)
	if err != nil {
		return op, nil, compileErr(line, ErrBadEscape, "%q", field)
	}
	return op, b, nil
}
