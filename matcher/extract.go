package matcher

import (
	"bytes"

	"github.com/softwired/margo/ast"
)

// extracted is a successful read: the consumed byte range plus the typed
// value for message rendering.
type extracted struct {
	start, end int
	num        uint64
	bytes      []byte
}

// evalValue extracts the test's typed value at off and compares it; a
// false return covers both out-of-bounds reads and failed comparisons.
func (r *Rules) evalValue(ct *compiledTest, ctx *evalCtx, off int) (extracted, bool) {
	switch ct.test.Value.Kind {
	case ast.KindInteger:
		return evalInteger(ct.test, ctx, off)
	case ast.KindString:
		return evalString(ct.test, ctx, off)
	case ast.KindPString:
		return evalPString(ct.test, ctx, off)
	case ast.KindSearch:
		return evalSearch(ct, ctx, off)
	case ast.KindRegex:
		return evalRegex(ct, ctx, off)
	case ast.KindName, ast.KindDefault, ast.KindClear:
		if off < 0 {
			return extracted{}, false
		}
		return extracted{start: off, end: off}, true
	}
	return extracted{}, false
}

func evalInteger(t *ast.Test, ctx *evalCtx, off int) (extracted, bool) {
	raw, ok := readUint(ctx.buf, off, t.Value.Width, order(t.Value.Endian, ctx.flip))
	if !ok {
		return extracted{}, false
	}
	v := transform(raw, &t.Value)
	if !compareInt(t.Op, v, t.Operand.Uint, t.Value.Width, t.Value.Unsigned) {
		return extracted{}, false
	}
	return extracted{start: off, end: off + t.Value.Width, num: v}, true
}

// transform applies the declared integer transforms in their fixed order:
// mask, then division, then modulus.
func transform(v uint64, spec *ast.ValueSpec) uint64 {
	m := widthMask(spec.Width)
	if spec.Mask != 0 {
		v &= spec.Mask
	}
	if spec.Div != 0 {
		if spec.Unsigned {
			v /= spec.Div
		} else {
			v = uint64(signExtend(v, spec.Width) / int64(spec.Div))
		}
	}
	if spec.Mod != 0 {
		if spec.Unsigned {
			v %= spec.Mod
		} else {
			v = uint64(signExtend(v, spec.Width) % int64(spec.Mod))
		}
	}
	return v & m
}

func evalString(t *ast.Test, ctx *evalCtx, off int) (extracted, bool) {
	buf := ctx.buf
	if off < 0 || off > len(buf) {
		return extracted{}, false
	}
	switch t.Op {
	case ast.OpAlways:
		end := off
		for end < len(buf) && buf[end] != 0 && end-off < maxStringRead {
			end++
		}
		return extracted{start: off, end: end, bytes: buf[off:end]}, true

	case ast.OpEqual, ast.OpNotEqual:
		n, ok := matchStringAt(buf, off, t.Operand.Bytes, t.Value.Flags)
		if t.Op == ast.OpNotEqual {
			if ok {
				return extracted{}, false
			}
			return extracted{start: off, end: off}, true
		}
		if !ok {
			return extracted{}, false
		}
		return extracted{start: off, end: off + n, bytes: buf[off : off+n]}, true

	case ast.OpGreater, ast.OpLess:
		end := off + len(t.Operand.Bytes)
		if end > len(buf) {
			return extracted{}, false
		}
		c := bytes.Compare(buf[off:end], t.Operand.Bytes)
		if (t.Op == ast.OpGreater && c <= 0) || (t.Op == ast.OpLess && c >= 0) {
			return extracted{}, false
		}
		return extracted{start: off, end: end, bytes: buf[off:end]}, true
	}
	return extracted{}, false
}

// evalPString reads a length-prefixed string: the prefix integer gives
// the payload length, and a match consumes prefix and payload both.
func evalPString(t *ast.Test, ctx *evalCtx, off int) (extracted, bool) {
	w := t.Value.Width
	raw, ok := readUint(ctx.buf, off, w, order(t.Value.Endian, ctx.flip))
	if !ok {
		return extracted{}, false
	}
	n := int(raw)
	if t.Value.CountIncludesPrefix {
		n -= w
	}
	start := off + w
	if n < 0 || n > len(ctx.buf)-start {
		return extracted{}, false
	}
	payload := ctx.buf[start : start+n]

	var matched bool
	switch t.Op {
	case ast.OpAlways:
		matched = true
	case ast.OpEqual, ast.OpNotEqual:
		c, ok := matchStringAt(payload, 0, t.Operand.Bytes, t.Value.Flags)
		eq := ok && c == len(payload)
		matched = eq == (t.Op == ast.OpEqual)
	case ast.OpGreater:
		matched = bytes.Compare(payload, t.Operand.Bytes) > 0
	case ast.OpLess:
		matched = bytes.Compare(payload, t.Operand.Bytes) < 0
	}
	if !matched {
		return extracted{}, false
	}
	return extracted{start: off, end: start + n, bytes: payload}, true
}

// evalSearch scans up to the declared number of start positions for the
// pattern. The found position, not the window start, becomes the match
// offset.
func evalSearch(ct *compiledTest, ctx *evalCtx, off int) (extracted, bool) {
	t := ct.test
	buf := ctx.buf
	if off < 0 || off > len(buf) {
		return extracted{}, false
	}
	if t.Op == ast.OpAlways {
		return extracted{start: off, end: off}, true
	}

	pat := t.Operand.Bytes
	limit := off + ct.window // exclusive bound on candidate start positions
	pos, consumed := -1, 0

	if ct.search != nil {
		hi := limit - 1 + len(pat)
		if hi > len(buf) {
			hi = len(buf)
		}
		if hi > off {
			iter := ct.search.IterOverlappingByte(buf[off:hi])
			if m := iter.Next(); m != nil {
				pos, consumed = off+m.Start(), len(pat)
			}
		}
	} else {
		for p := off; p < limit && p <= len(buf); p++ {
			if n, ok := matchStringAt(buf, p, pat, t.Value.Flags); ok {
				pos, consumed = p, n
				break
			}
		}
	}

	if t.Op == ast.OpNotEqual {
		if pos >= 0 {
			return extracted{}, false
		}
		return extracted{start: off, end: off}, true
	}
	if pos < 0 {
		return extracted{}, false
	}
	end := pos + consumed
	if t.Value.Flags.MatchToStart {
		end = pos
	}
	return extracted{start: pos, end: end, bytes: buf[pos : pos+consumed]}, true
}

func evalRegex(ct *compiledTest, ctx *evalCtx, off int) (extracted, bool) {
	t := ct.test
	buf := ctx.buf
	if off < 0 || off > len(buf) {
		return extracted{}, false
	}
	if t.Op == ast.OpAlways {
		return extracted{start: off, end: off}, true
	}

	hi := off + ct.window
	if hi > len(buf) {
		hi = len(buf)
	}
	region := buf[off:hi]
	loc := ct.re.FindIndex(region)

	if t.Op == ast.OpNotEqual {
		if loc != nil {
			return extracted{}, false
		}
		return extracted{start: off, end: off}, true
	}
	if loc == nil {
		return extracted{}, false
	}
	m := region[loc[0]:loc[1]]
	if t.Value.Flags.Trim {
		m = bytes.TrimSpace(m)
	}
	end := off + loc[1]
	if t.Value.Flags.MatchToStart {
		end = off + loc[0]
	}
	return extracted{start: off + loc[0], end: end, bytes: m}, true
}
