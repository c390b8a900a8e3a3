package matcher

import (
	"fmt"
	"strings"

	ahocorasick "github.com/pgavlin/aho-corasick"
	"github.com/rs/zerolog/log"
	"github.com/wasilibs/go-re2/experimental"

	"github.com/softwired/margo/ast"
)

// Compile turns a parsed ruleset into matchable Rules: search automatons
// and regexes are built up front, use references resolve to rule indexes,
// and each top-level rule gets its effective strength.
func Compile(rs *ast.RuleSet) (*Rules, error) {
	r := &Rules{
		rules: make([]*compiledRule, 0, len(rs.Rules)),
		named: make(map[string]int, len(rs.Named)),
	}
	for name, idx := range rs.Named {
		r.named[name] = idx
	}

	var searches, regexes int
	for _, rule := range rs.Rules {
		root, err := r.compileTest(rule.Root, &searches, &regexes)
		if err != nil {
			return nil, err
		}
		r.rules = append(r.rules, &compiledRule{
			name:     rule.Name,
			root:     root,
			strength: ruleStrength(rule),
		})
	}

	log.Debug().
		Int("rules", len(r.rules)).
		Int("automatons", searches).
		Int("regexes", regexes).
		Msg("compiled ruleset")
	return r, nil
}

func (r *Rules) compileTest(t *ast.Test, searches, regexes *int) (*compiledTest, error) {
	ct := &compiledTest{test: t, use: -1}

	switch t.Value.Kind {
	case ast.KindUse:
		idx, ok := r.named[t.Operand.Name]
		if !ok {
			return nil, fmt.Errorf("line %d: use of undefined rule %q", t.Line, t.Operand.Name)
		}
		ct.use = idx

	case ast.KindSearch:
		ct.window = clampWindow(t.Value.Window)
		if ac, ok := buildSearchAutomaton(t); ok {
			ct.search = ac
			*searches++
		}

	case ast.KindRegex:
		w := defaultWindow
		if t.Value.Window != 0 {
			w = clampWindow(t.Value.Window)
			if t.Value.Flags.LimitLines {
				if w > maxWindow/lineLength {
					w = maxWindow / lineLength
				}
				w *= lineLength
			}
		}
		ct.window = w
		if t.Op != ast.OpAlways {
			re, err := experimental.CompileLatin1(regexSource(t))
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid regex: %w", t.Line, err)
			}
			ct.re = re
			*regexes++
		}
	}

	for _, child := range t.Children {
		cc, err := r.compileTest(child, searches, regexes)
		if err != nil {
			return nil, err
		}
		ct.children = append(ct.children, cc)
	}
	return ct, nil
}

// clampWindow applies the default and the overflow-safe upper bound to a
// declared window.
func clampWindow(w int) int {
	if w <= 0 {
		return defaultWindow
	}
	if w > maxWindow {
		return maxWindow
	}
	return w
}

// buildSearchAutomaton builds an automaton for a search test whose flags
// it can express. Whitespace-folding and one-sided case-folding searches
// fall back to the scalar scan at evaluation time.
func buildSearchAutomaton(t *ast.Test) (*ahocorasick.AhoCorasick, bool) {
	if t.Op != ast.OpEqual && t.Op != ast.OpNotEqual {
		return nil, false
	}
	f := t.Value.Flags
	if f.CompactWhitespace || f.OptionalBlanks || f.Trim {
		return nil, false
	}
	insensitive := f.LowerInsensitive || f.UpperInsensitive
	if insensitive && !(f.LowerInsensitive && f.UpperInsensitive) {
		return nil, false
	}
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: insensitive,
		MatchKind:            ahocorasick.StandardMatch,
		DFA:                  true,
	})
	ac := builder.BuildByte([][]byte{t.Operand.Bytes})
	return &ac, true
}

// regexSource translates a rule pattern to RE2 syntax: anchors bind to
// line boundaries, case folding comes from the c flag, and {,N}
// quantifiers gain their implicit zero bound.
func regexSource(t *ast.Test) string {
	prefix := "(?m)"
	if t.Value.Flags.LowerInsensitive && t.Value.Flags.UpperInsensitive {
		prefix = "(?im)"
	}
	return prefix + fixCommaQuantifiers(string(t.Operand.Bytes))
}

// fixCommaQuantifiers rewrites {,N} to {0,N} because RE2 treats {,N}
// as literal text rather than a quantifier.
func fixCommaQuantifiers(pattern string) string {
	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		if pattern[i] == '\\' && i+1 < len(pattern) {
			b.WriteByte(pattern[i])
			b.WriteByte(pattern[i+1])
			i++
			continue
		}
		if pattern[i] == '{' && i+1 < len(pattern) && pattern[i+1] == ',' {
			b.WriteString("{0")
			continue
		}
		b.WriteByte(pattern[i])
	}
	return b.String()
}
