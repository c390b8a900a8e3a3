package matcher

import "github.com/softwired/margo/ast"

// compareInt evaluates an integer operator. Inequalities respect the
// declared signedness; the bit operators test operand bits set and clear
// respectively.
func compareInt(op ast.Operator, v, operand uint64, width int, unsigned bool) bool {
	switch op {
	case ast.OpEqual:
		return v == operand
	case ast.OpNotEqual:
		return v != operand
	case ast.OpGreater:
		if unsigned {
			return v > operand
		}
		return signExtend(v, width) > signExtend(operand, width)
	case ast.OpLess:
		if unsigned {
			return v < operand
		}
		return signExtend(v, width) < signExtend(operand, width)
	case ast.OpAnd:
		return v&operand != 0
	case ast.OpXor:
		return v&operand == 0
	case ast.OpAlways:
		return true
	}
	return false
}

// matchStringAt matches pat against data at p under the string comparison
// flags, returning how many data bytes the match consumed. Both sides
// normalize identically: case folding is one-directional per flag, and
// blank handling follows the whitespace flags.
func matchStringAt(data []byte, p int, pat []byte, f ast.StringFlags) (int, bool) {
	if p < 0 || p > len(data) {
		return 0, false
	}
	i := p
	if f.Trim {
		for i < len(data) && (data[i] == ' ' || data[i] == '\t') {
			i++
		}
	}
	for j := 0; j < len(pat); j++ {
		b := pat[j]
		if b == ' ' && (f.CompactWhitespace || f.OptionalBlanks) {
			n := 0
			for i < len(data) && data[i] == ' ' {
				i++
				n++
			}
			if n == 0 && !f.OptionalBlanks {
				return 0, false
			}
			continue
		}
		if i >= len(data) {
			return 0, false
		}
		c := data[i]
		if c != b {
			switch {
			case f.LowerInsensitive && b >= 'a' && b <= 'z' && c == b-0x20:
			case f.UpperInsensitive && b >= 'A' && b <= 'Z' && c == b+0x20:
			default:
				return 0, false
			}
		}
		i++
	}
	return i - p, true
}
