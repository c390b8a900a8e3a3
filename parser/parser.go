// Package parser compiles magic signature corpora into rule trees.
//
// The corpus format is line-oriented: each test line carries an offset
// field, a type field, an operator+operand field, and an optional message,
// nested by a leading run of '>' characters. Annotation lines (!:mime,
// !:ext, !:strength) attach to the most recent test.
package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/softwired/margo/ast"
)

// Parser compiles corpus text into an *ast.RuleSet.
type Parser struct{}

// New creates a parser.
func New() *Parser {
	return &Parser{}
}

// Parse compiles a corpus from a string. Failures are *CompileError; no
// partial rule set is returned.
func (p *Parser) Parse(input string) (*ast.RuleSet, error) {
	rs := &ast.RuleSet{Named: make(map[string]int)}
	st := &parseState{rs: rs}

	for _, ln := range logicalLines(input) {
		text := strings.TrimLeft(ln.text, " \t")
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var cerr *CompileError
		if strings.HasPrefix(text, "!:") {
			cerr = st.parseAnnotation(text, ln.num)
		} else {
			cerr = st.parseTestLine(text, ln.num)
		}
		if cerr != nil {
			return nil, cerr
		}
	}

	// `use` targets may be declared later in the corpus; check them once
	// the whole corpus is in.
	for _, u := range st.uses {
		if _, ok := rs.Named[u.name]; !ok {
			return nil, compileErr(u.line, ErrUndefinedName, "%q", u.name)
		}
	}

	log.Debug().
		Int("rules", len(rs.Rules)).
		Int("named", len(rs.Named)).
		Msg("parsed magic corpus")
	return rs, nil
}

// ParseFile compiles a corpus from a file.
func (p *Parser) ParseFile(filename string) (*ast.RuleSet, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	return p.Parse(string(content))
}

type pendingUse struct {
	line int
	name string
}

type parseState struct {
	rs      *ast.RuleSet
	stack   []*ast.Test // stack[i] = most recent test at level i on the current path
	current *ast.Test   // annotation target
	curRule *ast.Rule
	uses    []pendingUse
}

func (st *parseState) parseTestLine(text string, line int) *CompileError {
	level := 0
	for level < len(text) && text[level] == '>' {
		level++
	}

	offField, rest := splitField(text[level:])
	if rest == "" {
		return compileErr(line, ErrMalformedLine, "missing type field")
	}
	typeField, rest := splitField(rest)
	if rest == "" {
		return compileErr(line, ErrMalformedLine, "missing operand field")
	}
	opField, message := splitField(rest)

	offset, cerr := parseOffset(offField, line)
	if cerr != nil {
		return cerr
	}
	spec, cerr := parseType(typeField, line)
	if cerr != nil {
		return cerr
	}

	// Some corpora separate a bare operator from its operand with
	// whitespace; rejoin them.
	if len(opField) == 1 && strings.ContainsAny(opField, "<>=!&^~") && message != "" {
		var next string
		next, message = splitField(message)
		opField += next
	}

	test := &ast.Test{Line: line, Level: level, Offset: offset, Value: spec}

	switch spec.Kind {
	case ast.KindName:
		if level != 0 {
			return compileErr(line, ErrMisplacedName, "%q", opField)
		}
		if _, dup := st.rs.Named[opField]; dup {
			return compileErr(line, ErrDuplicateName, "%q", opField)
		}
		test.Op = ast.OpAlways
		test.Operand.Name = opField

	case ast.KindUse:
		name := opField
		switch {
		case strings.HasPrefix(name, `\^`):
			test.Operand.FlipEndian = true
			name = name[2:]
		case strings.HasPrefix(name, "^"):
			test.Operand.FlipEndian = true
			name = name[1:]
		}
		if name == "" {
			return compileErr(line, ErrBadOperand, "use without a rule name")
		}
		test.Op = ast.OpAlways
		test.Operand.Name = name
		st.uses = append(st.uses, pendingUse{line: line, name: name})

	case ast.KindDefault, ast.KindClear:
		test.Op = ast.OpAlways

	case ast.KindInteger:
		op, v, cerr := parseIntOperand(opField, spec.Width, line)
		if cerr != nil {
			return cerr
		}
		test.Op = op
		test.Operand.Uint = v

	case ast.KindRegex:
		if opField == "x" {
			test.Op = ast.OpAlways
			break
		}
		op := ast.OpEqual
		pat := opField
		if strings.HasPrefix(pat, "!") {
			op = ast.OpNotEqual
			pat = pat[1:]
		}
		b, err := unescape(pat)
		if err != nil {
			return compileErr(line, ErrBadEscape, "%q", pat)
		}
		test.Op = op
		test.Operand.Bytes = b

	default: // string, pstring, search
		op, b, cerr := parseStringOperand(opField, line)
		if cerr != nil {
			return cerr
		}
		test.Op = op
		test.Operand.Bytes = b
	}

	if message != "" {
		b, err := unescape(message)
		if err != nil {
			return compileErr(line, ErrBadEscape, "message")
		}
		test.Message = string(b)
		if cerr := validateMessage(spec.Kind, test.Message, line); cerr != nil {
			return cerr
		}
	}

	if level == 0 {
		rule := &ast.Rule{Root: test}
		if spec.Kind == ast.KindName {
			rule.Name = test.Operand.Name
			st.rs.Named[rule.Name] = len(st.rs.Rules)
		}
		st.rs.Rules = append(st.rs.Rules, rule)
		st.stack = append(st.stack[:0], test)
		st.curRule = rule
	} else {
		if len(st.stack) == 0 || level > len(st.stack) {
			return compileErr(line, ErrLevelJump, "level %d after maximum %d", level, len(st.stack)-1)
		}
		parent := st.stack[level-1]
		parent.Children = append(parent.Children, test)
		st.stack = append(st.stack[:level], test)
	}
	st.current = test
	return nil
}

func (st *parseState) parseAnnotation(text string, line int) *CompileError {
	field, rest := splitField(text)
	switch strings.TrimPrefix(field, "!:") {
	case "apple":
		// recognized, discarded
		return nil

	case "mime":
		if st.current == nil {
			return compileErr(line, ErrBadAnnotation, "mime before any test")
		}
		val, _ := splitField(rest)
		if val == "" {
			return compileErr(line, ErrBadAnnotation, "empty mime")
		}
		if st.current.Mime != "" {
			return compileErr(line, ErrBadAnnotation, "duplicate mime %q", val)
		}
		st.current.Mime = val
		return nil

	case "ext":
		if st.current == nil {
			return compileErr(line, ErrBadAnnotation, "ext before any test")
		}
		val, _ := splitField(rest)
		if val == "" {
			return compileErr(line, ErrBadAnnotation, "empty ext list")
		}
		st.current.Extensions = append(st.current.Extensions, strings.Split(val, "/")...)
		return nil

	case "strength":
		if st.curRule == nil {
			return compileErr(line, ErrBadStrength, "strength before any rule")
		}
		val, _ := splitField(rest)
		if val == "" || !strings.ContainsAny(val[:1], "+-*/") {
			return compileErr(line, ErrBadStrength, "%q", rest)
		}
		op := val[0]
		operand := strings.TrimSpace(val[1:])
		if operand == "" {
			// operator and value separated by whitespace
			operand, _ = splitField(strings.TrimLeft(rest[1:], " \t"))
		}
		n, err := parseNumeric(operand)
		if err != nil || n < 0 || (n == 0 && (op == '*' || op == '/')) {
			return compileErr(line, ErrBadStrength, "%q", rest)
		}
		st.curRule.StrengthOp = op
		st.curRule.StrengthVal = n
		return nil

	default:
		return compileErr(line, ErrBadAnnotation, "%q", field)
	}
}

// validateMessage checks the printf-style placeholders of a message
// against the test's value kind: at most one conversion, %s only after
// string-family tests, numeric verbs only after integer tests.
func validateMessage(kind ast.Kind, msg string, line int) *CompileError {
	count := 0
	for i := 0; i < len(msg); i++ {
		if msg[i] != '%' {
			continue
		}
		i++
		if i < len(msg) && msg[i] == '%' {
			continue
		}
		for i < len(msg) && strings.IndexByte("-+ 0#'", msg[i]) >= 0 {
			i++
		}
		for i < len(msg) && isDigit(msg[i]) {
			i++
		}
		if i < len(msg) && msg[i] == '.' {
			i++
			for i < len(msg) && isDigit(msg[i]) {
				i++
			}
		}
		for i < len(msg) && strings.IndexByte("lhqj", msg[i]) >= 0 {
			i++
		}
		if i >= len(msg) {
			return compileErr(line, ErrBadPlaceholder, "unterminated placeholder")
		}
		count++
		verb := msg[i]
		var ok bool
		switch kind {
		case ast.KindString, ast.KindPString, ast.KindSearch, ast.KindRegex:
			ok = verb == 's'
		case ast.KindInteger:
			ok = strings.IndexByte("diuxXoc", verb) >= 0
		}
		if !ok {
			return compileErr(line, ErrBadPlaceholder, "%%%c", verb)
		}
	}
	if count > 1 {
		return compileErr(line, ErrBadPlaceholder, "multiple placeholders")
	}
	return nil
}
