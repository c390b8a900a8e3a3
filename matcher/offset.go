package matcher

import (
	"encoding/binary"

	"github.com/softwired/margo/ast"
)

var hostLittle = binary.NativeEndian.Uint16([]byte{0x01, 0x00}) == 1

// order maps a declared endianness to a byte order, honoring a use
// inversion: big and little swap, native flips to the opposite of the
// host order.
func order(e ast.Endianness, flip bool) binary.ByteOrder {
	little := e == ast.Little || (e == ast.Native && hostLittle)
	if flip {
		little = !little
	}
	if little {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// readUint reads a width-byte unsigned integer at off, failing soft when
// the buffer is too short.
func readUint(buf []byte, off, width int, bo binary.ByteOrder) (uint64, bool) {
	if off < 0 || width > len(buf) || off > len(buf)-width {
		return 0, false
	}
	switch width {
	case 1:
		return uint64(buf[off]), true
	case 2:
		return uint64(bo.Uint16(buf[off:])), true
	case 4:
		return uint64(bo.Uint32(buf[off:])), true
	case 8:
		return bo.Uint64(buf[off:]), true
	}
	return 0, false
}

// signExtend interprets the low width bytes of v as a signed integer.
func signExtend(v uint64, width int) int64 {
	shift := 64 - 8*uint(width)
	return int64(v<<shift) >> shift
}

func widthMask(w int) uint64 {
	if w >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << (8 * w)) - 1
}

// resolveOffset computes the concrete position a test reads from. A false
// return is a soft failure: the test simply does not match.
func (ctx *evalCtx) resolveOffset(spec ast.OffsetSpec) (int, bool) {
	switch s := spec.(type) {
	case ast.AbsoluteOffset:
		if s.FromEnd {
			off := len(ctx.buf) - int(s.Offset)
			if off < 0 {
				return 0, false
			}
			return off, true
		}
		return ctx.base + int(s.Offset), true

	case ast.RelativeOffset:
		off := ctx.lastEnd + int(s.Delta)
		if off < 0 {
			return 0, false
		}
		return off, true

	case ast.BackReference:
		n := len(ctx.captures) - 1 - s.Back
		if n < 0 {
			return 0, false
		}
		return ctx.captures[n].start, true

	case ast.IndirectOffset:
		base, ok := ctx.resolveOffset(s.Base)
		if !ok {
			return 0, false
		}
		raw, ok := readUint(ctx.buf, base, s.Width, order(s.Endian, ctx.flip))
		if !ok {
			return 0, false
		}
		v := int64(raw)
		if s.Signed {
			v = signExtend(raw, s.Width)
		}
		for _, op := range s.Ops {
			switch op.Op {
			case '*':
				v *= op.Operand
			case '/':
				v /= op.Operand
			case '&':
				v &= op.Operand
			case '+':
				v += op.Operand
			case '-':
				v -= op.Operand
			}
		}
		if v < 0 || v > int64(len(ctx.buf)) {
			return 0, false
		}
		return int(v), true
	}
	return 0, false
}
