// Package matcher evaluates compiled magic rulesets against byte buffers.
package matcher

import (
	ahocorasick "github.com/pgavlin/aho-corasick"
	regexp "github.com/wasilibs/go-re2"

	"github.com/softwired/margo/ast"
)

const (
	// defaultWindow bounds search and regex scans when the rule declares
	// no window of its own.
	defaultWindow = 8192

	// lineLength converts a line-counted regex window to bytes.
	lineLength = 80

	// maxWindow caps a declared scan window so adding it to an offset
	// cannot overflow.
	maxWindow = 1 << 30

	// maxStringRead caps how far an always-true string test reads when
	// collecting the value for its message.
	maxStringRead = 8192

	// maxUseDepth bounds recursion through use references.
	maxUseDepth = 32
)

// Result is one successful classification.
type Result struct {
	Description string
	Mime        string
	Extensions  []string
	Strength    int

	// Path is the matched chain of tests, root to deepest.
	Path []*ast.Test
}

// compiledTest is one test node with its evaluation artifacts attached.
type compiledTest struct {
	test     *ast.Test
	children []*compiledTest

	search *ahocorasick.AhoCorasick // search tests the automaton can express
	re     *regexp.Regexp           // regex tests
	use    int                      // rules index of the use target, else -1
	window int                      // search/regex window in bytes
}

// compiledRule is one top-level rule tree plus its effective strength.
type compiledRule struct {
	name     string
	root     *compiledTest
	strength int
}

// Rules holds a compiled ruleset ready for matching. It is immutable and
// safe to share across concurrent matches.
type Rules struct {
	rules []*compiledRule
	named map[string]int
}

// Stats returns the number of top-level rules and of named rules.
func (r *Rules) Stats() (rules, named int) {
	return len(r.rules), len(r.named)
}
