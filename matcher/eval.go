package matcher

import (
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/softwired/margo/ast"
)

// capture records the byte range a matched test consumed, for
// back-references.
type capture struct {
	start, end int
}

type useKey struct {
	rule int
	base int
}

// evalCtx is the per-call evaluation state. Every Match call builds its
// own; the compiled Rules are never written to.
type evalCtx struct {
	buf      []byte
	base     int // offset 0 of the tree under evaluation, rebased by use
	lastEnd  int
	captures []capture
	flip     bool
	depth    int
	onStack  map[useKey]bool
}

// pathNode is one matched test plus its rendered message fragment.
type pathNode struct {
	test     *ast.Test
	frag     string
	embedded bool // matched inside a use subtree
}

// Match evaluates every top-level rule against buf and returns the
// strongest match, or nil when nothing matches. Equal strengths keep
// corpus order.
func (r *Rules) Match(buf []byte) *Result {
	var best *Result
	for i := range r.rules {
		res := r.matchRule(i, buf)
		if res == nil {
			continue
		}
		if best == nil || res.Strength > best.Strength {
			best = res
		}
	}
	return best
}

// MatchAll returns every matching top-level rule, strongest first; equal
// strengths keep corpus order.
func (r *Rules) MatchAll(buf []byte) []*Result {
	var out []*Result
	for i := range r.rules {
		if res := r.matchRule(i, buf); res != nil {
			out = append(out, res)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Strength > out[j].Strength
	})
	return out
}

func (r *Rules) matchRule(idx int, buf []byte) *Result {
	cr := r.rules[idx]
	if cr.name != "" {
		// named rules only match through use
		return nil
	}
	ctx := &evalCtx{buf: buf, onStack: make(map[useKey]bool)}
	var path []pathNode
	if !r.evalTest(cr.root, ctx, &path, false) {
		return nil
	}
	res := buildResult(path, cr.strength)
	log.Trace().
		Str("description", res.Description).
		Int("strength", res.Strength).
		Msg("rule matched")
	return res
}

// evalTest matches one node and, on success, walks its children: the
// first matching child is taken and later siblings are not tried. A
// failed subtree leaves the context exactly as it found it.
func (r *Rules) evalTest(ct *compiledTest, ctx *evalCtx, path *[]pathNode, embedded bool) bool {
	off, ok := ctx.resolveOffset(ct.test.Offset)
	if !ok {
		return false
	}

	if ct.test.Value.Kind == ast.KindUse {
		return r.evalUse(ct, ctx, off, path, embedded)
	}

	ext, ok := r.evalValue(ct, ctx, off)
	if !ok {
		return false
	}

	ctx.captures = append(ctx.captures, capture{start: ext.start, end: ext.end})
	switch ct.test.Value.Kind {
	case ast.KindDefault, ast.KindClear:
		// zero-length, the cursor stays put
	default:
		ctx.lastEnd = ext.end
	}
	*path = append(*path, pathNode{
		test:     ct.test,
		frag:     renderMessage(ct.test, ext),
		embedded: embedded,
	})

	r.evalChildren(ct, ctx, path, embedded)
	return true
}

func (r *Rules) evalChildren(ct *compiledTest, ctx *evalCtx, path *[]pathNode, embedded bool) {
	savedEnd, savedCaps := ctx.lastEnd, len(ctx.captures)
	for _, child := range ct.children {
		n := len(*path)
		if r.evalTest(child, ctx, path, embedded) {
			return
		}
		*path = (*path)[:n]
		ctx.lastEnd = savedEnd
		ctx.captures = ctx.captures[:savedCaps]
	}
}

// evalUse evaluates a named rule's tree with its offset 0 rebased to the
// invocation offset. Recursion is bounded by depth and by a repeated
// (rule, offset) pair on the active chain; hitting either bound is a soft
// non-match.
func (r *Rules) evalUse(ct *compiledTest, ctx *evalCtx, off int, path *[]pathNode, embedded bool) bool {
	if ctx.depth >= maxUseDepth {
		return false
	}
	key := useKey{rule: ct.use, base: off}
	if ctx.onStack[key] {
		return false
	}

	n := len(*path)
	*path = append(*path, pathNode{test: ct.test, frag: renderMessage(ct.test, extracted{}), embedded: embedded})

	savedBase, savedFlip := ctx.base, ctx.flip
	ctx.base = off
	if ct.test.Operand.FlipEndian {
		ctx.flip = !ctx.flip
	}
	ctx.depth++
	ctx.onStack[key] = true

	ok := r.evalTest(r.rules[ct.use].root, ctx, path, true)

	delete(ctx.onStack, key)
	ctx.depth--
	ctx.base, ctx.flip = savedBase, savedFlip

	if !ok {
		*path = (*path)[:n]
		return false
	}
	r.evalChildren(ct, ctx, path, embedded)
	return true
}
