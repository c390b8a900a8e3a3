package parser

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/softwired/margo/ast"
)

// Indirect offset expressions like (0x3c.l), (&4,s+0x20) or (16.L*4+19)
// are the one part of a rule line with real expression structure, so they
// get a participle grammar instead of ad hoc splitting.

type indirectGrammar struct {
	Rel  string         `parser:"'(' @('&' '&'?)?"`
	Neg  bool           `parser:"@'-'?"`
	Base string         `parser:"@Number"`
	Sign *string        `parser:"( @('.' | ',')"`
	Type *string        `parser:"  @Letter )?"`
	Ops  []*indirectOpG `parser:"@@* ')'"`
}

type indirectOpG struct {
	Op    string        `parser:"@('*' | '/' | '&' | '+' | '-')"`
	Value *indirectNumG `parser:"( @@"`
	Paren *indirectNumG `parser:"| '(' @@ ')' )"`
}

type indirectNumG struct {
	Neg bool   `parser:"@'-'?"`
	Num string `parser:"@Number"`
}

var indirectLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Number", Pattern: `0[xX][0-9A-Fa-f]+L?|[0-9]+L?`},
	{Name: "Letter", Pattern: `[A-Za-z]`},
	{Name: "Punct", Pattern: `[().,*/&+-]`},
})

var indirectParser = participle.MustBuild[indirectGrammar](
	participle.Lexer(indirectLexer),
)

// parseOffset parses the offset field of a rule line.
func parseOffset(field string, line int) (ast.OffsetSpec, *CompileError) {
	switch {
	case strings.HasPrefix(field, "("):
		return parseIndirect(field, line)
	case strings.HasPrefix(field, "&&"):
		n, err := parseNumeric(field[2:])
		if err != nil || n < 0 {
			return nil, compileErr(line, ErrBadOffset, "bad back-reference %q", field)
		}
		return ast.BackReference{Back: int(n)}, nil
	case strings.HasPrefix(field, "&"):
		n, err := parseNumeric(field[1:])
		if err != nil {
			return nil, compileErr(line, ErrBadOffset, "bad relative offset %q", field)
		}
		return ast.RelativeOffset{Delta: n}, nil
	case strings.HasPrefix(field, "-"):
		n, err := parseNumeric(field[1:])
		if err != nil || n < 0 {
			return nil, compileErr(line, ErrBadOffset, "bad offset %q", field)
		}
		return ast.AbsoluteOffset{Offset: n, FromEnd: true}, nil
	default:
		n, err := parseNumeric(field)
		if err != nil || n < 0 {
			return nil, compileErr(line, ErrBadOffset, "bad offset %q", field)
		}
		return ast.AbsoluteOffset{Offset: n}, nil
	}
}

func parseIndirect(field string, line int) (ast.OffsetSpec, *CompileError) {
	g, err := indirectParser.ParseString("", field)
	if err != nil {
		return nil, compileErr(line, ErrBadOffset, "bad indirect offset %q: %v", field, err)
	}

	base, err2 := indirectBase(g)
	if err2 != nil {
		return nil, compileErr(line, ErrBadOffset, "bad indirect offset %q: %v", field, err2)
	}

	width, endian, err2 := indirectType(g.Type)
	if err2 != nil {
		return nil, compileErr(line, ErrBadOffset, "bad indirect offset %q: %v", field, err2)
	}

	spec := ast.IndirectOffset{
		Base:   base,
		Width:  width,
		Endian: endian,
		Signed: g.Sign != nil && *g.Sign == ",",
	}
	for _, op := range g.Ops {
		num := op.Value
		if num == nil {
			num = op.Paren
		}
		n, err := parseNumeric(num.Num)
		if err != nil {
			return nil, compileErr(line, ErrBadOffset, "bad indirect operand %q", field)
		}
		if num.Neg {
			n = -n
		}
		if op.Op == "/" && n == 0 {
			return nil, compileErr(line, ErrBadOffset, "indirect offset divides by zero")
		}
		spec.Ops = append(spec.Ops, ast.IndirectOp{Op: op.Op[0], Operand: n})
	}
	return spec, nil
}

func indirectBase(g *indirectGrammar) (ast.OffsetSpec, error) {
	n, err := parseNumeric(g.Base)
	if err != nil {
		return nil, err
	}
	if g.Neg {
		n = -n
	}
	switch g.Rel {
	case "&&":
		if n < 0 {
			return nil, fmt.Errorf("negative back-reference %d", n)
		}
		return ast.BackReference{Back: int(n)}, nil
	case "&":
		return ast.RelativeOffset{Delta: n}, nil
	default:
		if n < 0 {
			return ast.AbsoluteOffset{Offset: -n, FromEnd: true}, nil
		}
		return ast.AbsoluteOffset{Offset: n}, nil
	}
}

// indirectType maps the type character of an indirect offset to a width
// and byte order. Lowercase is little-endian, uppercase big-endian; the
// default is a big-endian long.
func indirectType(t *string) (int, ast.Endianness, error) {
	if t == nil {
		return 4, ast.Big, nil
	}
	c := (*t)[0]
	endian := ast.Big
	if c >= 'a' && c <= 'z' {
		endian = ast.Little
	}
	switch c | 0x20 {
	case 'b', 'c':
		return 1, endian, nil
	case 's', 'h':
		return 2, endian, nil
	case 'i', 'l':
		return 4, endian, nil
	case 'q', 'e', 'f', 'g':
		return 8, endian, nil
	default:
		return 0, ast.Native, fmt.Errorf("unsupported type specifier %q", *t)
	}
}
