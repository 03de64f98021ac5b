// Package diag defines the compile-time diagnostic model shared by pkg/hir,
// pkg/mir, and pkg/compiler. Compilation never panics (I1): every error path
// below HIR/MIR construction appends a Diagnostic and continues, letting the
// compiler report as many problems as it can find in one pass.
package diag

import (
	"fmt"

	"github.com/machine-dialect/mdc/pkg/ast"
)

// Severity distinguishes a hard compile failure from an informational note.
type Severity int

const (
	// Error prevents bytecode from being emitted.
	Error Severity = iota
	// Warning is reported but does not block compilation.
	Warning
	// Info is purely advisory (e.g. UnreachableCode).
	Info
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "info"
	}
}

// Kind enumerates the compile-time diagnostic kinds of §7.
type Kind int

const (
	SyntaxError Kind = iota
	UnknownIdentifier
	TypeMismatch
	ArityMismatch
	DuplicateParameter
	UnreachableCode
)

func (k Kind) String() string {
	switch k {
	case SyntaxError:
		return "SyntaxError"
	case UnknownIdentifier:
		return "UnknownIdentifier"
	case TypeMismatch:
		return "TypeMismatch"
	case ArityMismatch:
		return "ArityMismatch"
	case DuplicateParameter:
		return "DuplicateParameter"
	case UnreachableCode:
		return "UnreachableCode"
	default:
		return "Unknown"
	}
}

// Diagnostic is one reported problem, located in the original source.
type Diagnostic struct {
	Pos      ast.Position
	Severity Severity
	Kind     Kind
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s: %s (%s)", d.Pos.Line, d.Pos.Column, d.Severity, d.Message, d.Kind)
}

// Bag accumulates diagnostics across a compilation pass. It is the type
// pkg/hir and pkg/mir both thread through their lowering/analysis passes
// instead of returning an error on the first problem found.
type Bag struct {
	items []Diagnostic
}

// Add appends a diagnostic.
func (b *Bag) Add(pos ast.Position, sev Severity, kind Kind, format string, args ...interface{}) {
	b.items = append(b.items, Diagnostic{
		Pos:      pos,
		Severity: sev,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
	})
}

// Errorf is shorthand for Add with Error severity.
func (b *Bag) Errorf(pos ast.Position, kind Kind, format string, args ...interface{}) {
	b.Add(pos, Error, kind, format, args...)
}

// HasErrors reports whether any Error-severity diagnostic was recorded.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Items returns the accumulated diagnostics in recording order.
func (b *Bag) Items() []Diagnostic {
	return b.items
}
