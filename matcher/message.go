package matcher

import (
	"fmt"
	"strings"

	"github.com/softwired/margo/ast"
)

// renderMessage substitutes the extracted value into the test's message
// template. Placeholder/type agreement was validated at parse time.
func renderMessage(t *ast.Test, ext extracted) string {
	msg := t.Message
	if msg == "" {
		return ""
	}
	format, verb, ok := goFormat(msg)
	if !ok {
		return strings.ReplaceAll(msg, "%%", "%")
	}
	switch verb {
	case 's':
		return fmt.Sprintf(format, ext.bytes)
	case 'c':
		return fmt.Sprintf(format, rune(byte(ext.num)))
	case 'u', 'x', 'X', 'o':
		// C printf reads these as unsigned no matter the declared type.
		return fmt.Sprintf(format, ext.num)
	}
	if t.Value.Unsigned {
		return fmt.Sprintf(format, ext.num)
	}
	return fmt.Sprintf(format, signExtend(ext.num, t.Value.Width))
}

// goFormat rewrites the message's single printf-style conversion into a
// Go fmt conversion: C length modifiers drop, %u and %i become %d, the
// ' grouping flag drops. The returned verb is the original one, so the
// caller can pick the argument's signedness the way C printf does. ok is
// false when the message has no conversion.
func goFormat(msg string) (string, byte, bool) {
	var b strings.Builder
	b.Grow(len(msg) + 1)
	verb := byte(0)
	for i := 0; i < len(msg); i++ {
		c := msg[i]
		b.WriteByte(c)
		if c != '%' || i+1 >= len(msg) {
			continue
		}
		if msg[i+1] == '%' {
			b.WriteByte('%')
			i++
			continue
		}
		i++
		for i < len(msg) && strings.IndexByte("-+ 0#'.0123456789", msg[i]) >= 0 {
			if msg[i] != '\'' {
				b.WriteByte(msg[i])
			}
			i++
		}
		for i < len(msg) && strings.IndexByte("lhqj", msg[i]) >= 0 {
			i++
		}
		if i >= len(msg) {
			return "", 0, false
		}
		verb = msg[i]
		mapped := verb
		switch mapped {
		case 'u', 'i':
			mapped = 'd'
		}
		b.WriteByte(mapped)
	}
	if verb == 0 {
		return "", 0, false
	}
	return b.String(), verb, true
}

// buildResult assembles the final description and annotation set from the
// matched path. Fragments join with a single space unless the next one
// opens with a backspace, which suppresses the separator. Annotations
// declared by the invoking rule beat ones inherited through use; within
// each group the deepest declaration wins.
func buildResult(path []pathNode, strength int) *Result {
	res := &Result{Strength: strength}
	var b strings.Builder
	var mimeOwn, mimeUsed string
	var extOwn, extUsed []string

	for _, n := range path {
		res.Path = append(res.Path, n.test)

		if frag := n.frag; frag != "" {
			if strings.HasPrefix(frag, "\b") {
				frag = frag[1:]
			} else if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(frag)
		}

		if n.test.Mime != "" {
			if n.embedded {
				mimeUsed = n.test.Mime
			} else {
				mimeOwn = n.test.Mime
			}
		}
		if len(n.test.Extensions) > 0 {
			if n.embedded {
				extUsed = n.test.Extensions
			} else {
				extOwn = n.test.Extensions
			}
		}
	}

	res.Description = b.String()
	res.Mime = mimeOwn
	if res.Mime == "" {
		res.Mime = mimeUsed
	}
	res.Extensions = extOwn
	if len(res.Extensions) == 0 {
		res.Extensions = extUsed
	}
	return res
}
