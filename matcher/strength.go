package matcher

import "github.com/softwired/margo/ast"

const (
	baseStrength   = 20
	strengthFactor = 10
)

// ruleStrength computes a rule's effective strength: the root test's
// selectivity on top of the base, then the declared adjustment.
func ruleStrength(r *ast.Rule) int {
	s := baseStrength + testStrength(r.Root)
	switch r.StrengthOp {
	case '+':
		s += int(r.StrengthVal)
	case '-':
		s -= int(r.StrengthVal)
	case '*':
		s *= int(r.StrengthVal)
	case '/':
		s /= int(r.StrengthVal)
	}
	if s < 0 {
		s = 0
	}
	return s
}

// testStrength scores how selective a single test is: wider values and
// longer literals score higher, inequalities and bit tests lower, and an
// always-true test contributes nothing.
func testStrength(t *ast.Test) int {
	var v int
	switch t.Value.Kind {
	case ast.KindInteger:
		v = t.Value.Width * strengthFactor
	case ast.KindString, ast.KindPString, ast.KindSearch:
		v = len(t.Operand.Bytes) * strengthFactor
	case ast.KindRegex:
		v = literalLength(t.Operand.Bytes) * strengthFactor
	default:
		return 0
	}
	switch t.Op {
	case ast.OpEqual, ast.OpNotEqual:
		v += strengthFactor
	case ast.OpGreater, ast.OpLess:
		v -= 2 * strengthFactor
	case ast.OpAnd, ast.OpXor:
		v -= strengthFactor
	case ast.OpAlways:
		return 0
	}
	return v
}

// literalLength counts the pattern bytes that match themselves, so a
// regex's strength reflects how selective its fixed text is.
func literalLength(pat []byte) int {
	n := 0
	for i := 0; i < len(pat); i++ {
		switch pat[i] {
		case '\\':
			i++
			n++
		case '[':
			for i < len(pat) && pat[i] != ']' {
				if pat[i] == '\\' {
					i++
				}
				i++
			}
		case '.', '*', '+', '?', ']', '(', ')', '{', '}', '|', '^', '$':
		default:
			n++
		}
	}
	return n
}
