package parser

import (
	"errors"
	"fmt"
)

// ErrKind classifies a compile failure.
type ErrKind string

const (
	ErrMalformedLine  ErrKind = "malformed line"
	ErrBadOffset      ErrKind = "malformed offset"
	ErrUnknownType    ErrKind = "unknown type"
	ErrBadOperand     ErrKind = "malformed operand"
	ErrBadEscape      ErrKind = "unterminated escape"
	ErrLevelJump      ErrKind = "illegal level jump"
	ErrDuplicateName  ErrKind = "duplicate name"
	ErrUndefinedName  ErrKind = "undefined name"
	ErrBadAnnotation  ErrKind = "misplaced annotation"
	ErrBadPlaceholder ErrKind = "invalid message placeholder"
	ErrMisplacedName  ErrKind = "name not at top level"
	ErrBadStrength    ErrKind = "malformed strength"
)

// CompileError is a hard parse failure. No partial rule set accompanies it.
type CompileError struct {
	Line   int
	Kind   ErrKind
	Detail string
}

func (e *CompileError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("line %d: %s", e.Line, e.Kind)
	}
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Kind, e.Detail)
}

var errUnterminated = errors.New("unterminated escape sequence")

func compileErr(line int, kind ErrKind, format string, args ...any) *CompileError {
	return &CompileError{Line: line, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
