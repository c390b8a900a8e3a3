// Package ast defines the rule tree types for magic signature corpora.
package ast

// RuleSet represents a parsed corpus: an ordered forest of top-level rules
// plus a symbol table for name-declared rules. It is immutable after
// parsing and safe to share across concurrent evaluations.
type RuleSet struct {
	Rules []*Rule
	// Named maps a declared rule name to its index in Rules. Named rules
	// are only reachable through `use`; they never match on their own.
	Named map[string]int
}

// Rule represents one top-level rule tree.
type Rule struct {
	// Name is non-empty for rules declared with the `name` keyword.
	Name string
	Root *Test

	// StrengthOp adjusts the computed base strength: one of '+', '-',
	// '*', '/' with StrengthVal as operand, or 0 when undeclared.
	StrengthOp  byte
	StrengthVal int64
}

// Test represents a single test line and its nested refinements.
type Test struct {
	Line    int // corpus line number, for diagnostics
	Level   int // nesting depth; 0 = top-level
	Offset  OffsetSpec
	Value   ValueSpec
	Op      Operator
	Operand Operand
	Message string

	// Annotations attached to this test by !:mime / !:ext directives.
	Mime       string
	Extensions []string

	Children []*Test // level is exactly Level+1, tried in order
}

// Endianness selects the byte order of an integer read.
type Endianness int

const (
	Native Endianness = iota
	Little
	Big
)

// Kind discriminates what a test reads (or does) at its offset.
type Kind int

const (
	KindInteger Kind = iota
	KindString
	KindPString
	KindSearch
	KindRegex
	KindName    // declares a named rule; structural, never matched directly
	KindUse     // invokes a named rule at the resolved offset
	KindDefault // matches whenever reached
	KindClear   // recognized for corpus compatibility; matches, no effect
)

// Operator is the comparison applied between the extracted value and the
// operand.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreater
	OpLess
	OpAnd    // transformed & operand != 0
	OpXor    // transformed & operand == 0: every operand bit clear
	OpAlways // `x`: true whenever extraction succeeded
)

// StringFlags are the string/search comparison modifiers.
type StringFlags struct {
	LowerInsensitive  bool // c: lowercase in the operand matches either case
	UpperInsensitive  bool // C: uppercase in the operand matches either case
	CompactWhitespace bool // W/B: runs of whitespace compare as one
	OptionalBlanks    bool // w/b: operand blanks may be absent in the data
	Trim              bool // T: leading whitespace skipped
	MatchToStart      bool // s (search/regex): offset updates to match start
	LimitLines        bool // l (regex): window counts lines, not bytes
}

// ValueSpec describes the typed value a test extracts.
type ValueSpec struct {
	Kind     Kind
	Width    int // integer byte width, or pstring prefix width
	Endian   Endianness
	Unsigned bool
	Flags    StringFlags

	// Window bounds search/regex scans, in bytes (or lines with
	// Flags.LimitLines). Zero means the parser's default.
	Window int

	// CountIncludesPrefix marks pstring/J: the length prefix counts
	// itself.
	CountIncludesPrefix bool

	// Integer transforms, applied mask then divide then modulus.
	// Zero means not declared.
	Mask, Div, Mod uint64
}

// Operand is the literal a test compares against.
type Operand struct {
	// Bytes holds the decoded literal for string kinds, or the pattern
	// source for regex kind.
	Bytes []byte
	// Uint holds the integer literal as raw two's complement within the
	// declared width.
	Uint uint64
	// Name is the target of a use test or the declared name of a name
	// test.
	Name string
	// FlipEndian is set on `use \^name`: the invoked subtree reads with
	// inverted byte order.
	FlipEndian bool
}

// OffsetSpec is the closed set of offset expressions.
type OffsetSpec interface{ offsetSpec() }

// AbsoluteOffset is a fixed position; FromEnd counts back from the end of
// the buffer.
type AbsoluteOffset struct {
	Offset  int64
	FromEnd bool
}

func (AbsoluteOffset) offsetSpec() {}

// RelativeOffset is Delta bytes past the end of the last matched field.
type RelativeOffset struct {
	Delta int64
}

func (RelativeOffset) offsetSpec() {}

// BackReference is the start offset of the capture Back tests ago
// (0 = most recent).
type BackReference struct {
	Back int
}

func (BackReference) offsetSpec() {}

// IndirectOffset reads an integer at Base and derives the final offset
// from it by applying Ops left to right.
type IndirectOffset struct {
	Base   OffsetSpec // AbsoluteOffset, RelativeOffset, or BackReference
	Width  int
	Endian Endianness
	Signed bool
	Ops    []IndirectOp
}

func (IndirectOffset) offsetSpec() {}

// IndirectOp is one post-read arithmetic step of an indirect offset:
// Op is one of '*', '/', '&', '+', '-'.
type IndirectOp struct {
	Op      byte
	Operand int64
}
