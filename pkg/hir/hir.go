// Package hir implements the desugared, typed tree the MIR builder consumes:
// synonyms collapsed to one canonical node each, conditional expressions
// turned into explicit Select nodes, for-each loops desugared to indexed
// while loops, and Set-Using calls resolved to a concrete argument list in
// parameter order.
package hir

import "github.com/machine-dialect/mdc/pkg/ast"

// Type reuses the AST's type-annotation enum; the HIR's "Any-typed fallback"
// pass (see Lower) simply leaves every expression it cannot pin down at
// ast.TypeAny rather than introducing a parallel type representation.
type Type = ast.TypeAnnotation

// Program is a lowered compilation unit: hoisted utility definitions plus
// the top-level statement sequence that runs when the module is invoked.
type Program struct {
	Utilities  []*Utility
	Statements []Statement
}

// Param is one lowered utility parameter.
type Param struct {
	Name     string
	Type     Type
	Required bool
	Default  Expression // nil when Required is true
}

// Utility is a lowered callable (Utility/Interaction, synonyms collapsed).
type Utility struct {
	Name       string
	Params     []*Param
	Body       []Statement
	OutputType Type
	HasOutput  bool
	Pos        ast.Position
}

// Statement is implemented by every lowered statement kind.
type Statement interface {
	Pos() ast.Position
	stmtNode()
}

// Expression is implemented by every lowered expression kind; every node
// carries a resolved Type, defaulting to ast.TypeAny when lowering cannot
// pin down anything more specific.
type Expression interface {
	Pos() ast.Position
	Type() Type
	exprNode()
}

// --- Statements --------------------------------------------------------

// SetStmt assigns Value to Name, covering both `Set` and the lowered form of
// `Set-Using`.
type SetStmt struct {
	Name  string
	Value Expression
	P     ast.Position
}

func (s *SetStmt) Pos() ast.Position { return s.P }
func (s *SetStmt) stmtNode()         {}

// GiveBackStmt returns Value from the enclosing utility call.
type GiveBackStmt struct {
	Value Expression
	P     ast.Position
}

func (g *GiveBackStmt) Pos() ast.Position { return g.P }
func (g *GiveBackStmt) stmtNode()         {}

// SayStmt prints Value to the output sink (Say/Tell, collapsed).
type SayStmt struct {
	Value Expression
	P     ast.Position
}

func (s *SayStmt) Pos() ast.Position { return s.P }
func (s *SayStmt) stmtNode()         {}

// IfStmt is the collapsed If/When, Else/Otherwise conditional.
type IfStmt struct {
	Cond Expression
	Then []Statement
	Else []Statement
	P    ast.Position
}

func (i *IfStmt) Pos() ast.Position { return i.P }
func (i *IfStmt) stmtNode()         {}

// WhileStmt is a condition-tested loop; also the desugared target of
// ForEachStmt (see Lower).
type WhileStmt struct {
	Cond Expression
	Body []Statement
	P    ast.Position
}

func (w *WhileStmt) Pos() ast.Position { return w.P }
func (w *WhileStmt) stmtNode()         {}

// ExprStmt is an expression evaluated for effect (a bare Call/Use).
type ExprStmt struct {
	Expr Expression
	P    ast.Position
}

func (e *ExprStmt) Pos() ast.Position { return e.P }
func (e *ExprStmt) stmtNode()         {}

// ListAppendStmt is `Add Value to List` (§4.2 Data group's ListAppend).
type ListAppendStmt struct {
	List  Expression
	Value Expression
	P     ast.Position
}

func (s *ListAppendStmt) Pos() ast.Position { return s.P }
func (s *ListAppendStmt) stmtNode()         {}

// ListRemoveStmt is `Remove Value from List`; the VM raises NotFound (§7) if
// no element loosely equal (Eq) to Value is present.
type ListRemoveStmt struct {
	List  Expression
	Value Expression
	P     ast.Position
}

func (s *ListRemoveStmt) Pos() ast.Position { return s.P }
func (s *ListRemoveStmt) stmtNode()         {}

// ListInsertStmt is `Insert Value at position Position in List` (1-based,
// like every other list index in §4.5).
type ListInsertStmt struct {
	List     Expression
	Position Expression
	Value    Expression
	P        ast.Position
}

func (s *ListInsertStmt) Pos() ast.Position { return s.P }
func (s *ListInsertStmt) stmtNode()         {}

// IndexSetStmt is `Set item Index of Collection to Value` (ListSet) or a
// dictionary key assignment (DictSet). Both collapse to one statement kind
// because the VM already dispatches List vs. Dictionary dynamically for
// reads (IndexExpr/OpIndex); mutation follows the same shape.
type IndexSetStmt struct {
	Collection Expression
	Index      Expression
	Value      Expression
	P          ast.Position
}

func (s *IndexSetStmt) Pos() ast.Position { return s.P }
func (s *IndexSetStmt) stmtNode()         {}

// --- Expressions --------------------------------------------------------

type baseExpr struct {
	P ast.Position
	T Type
}

func (b baseExpr) Pos() ast.Position { return b.P }
func (b baseExpr) Type() Type        { return b.T }

// Identifier is a variable reference.
type Identifier struct {
	baseExpr
	Name string
}

func (*Identifier) exprNode() {}

// IntLit is a whole-number literal.
type IntLit struct {
	baseExpr
	Value int64
}

func (*IntLit) exprNode() {}

// FloatLit is a floating-point literal.
type FloatLit struct {
	baseExpr
	Value float64
}

func (*FloatLit) exprNode() {}

// StringLit is a text literal.
type StringLit struct {
	baseExpr
	Value string
}

func (*StringLit) exprNode() {}

// URLLit is a URL literal (preserves its tag distinctly from StringLit).
type URLLit struct {
	baseExpr
	Value string
}

func (*URLLit) exprNode() {}

// BoolLit is a Yes/No literal.
type BoolLit struct {
	baseExpr
	Value bool
}

func (*BoolLit) exprNode() {}

// EmptyLit is the Empty literal.
type EmptyLit struct {
	baseExpr
}

func (*EmptyLit) exprNode() {}

// MissingArgLit stands in for a required parameter the call site did not
// supply. It lowers to a distinct runtime sentinel (value.MissingValue)
// rather than Empty, so callFunction can tell "caller passed Empty" apart
// from "caller passed nothing" and raise MissingRequiredParameter (§4.5, §8).
type MissingArgLit struct {
	baseExpr
	Param string // parameter name, for the runtime error message
}

func (*MissingArgLit) exprNode() {}

// Prefix is unary `-`/`not`.
type Prefix struct {
	baseExpr
	Op      string
	Operand Expression
}

func (*Prefix) exprNode() {}

// Infix is a binary arithmetic/comparison/equality/logical operator.
type Infix struct {
	baseExpr
	Op    string
	Left  Expression
	Right Expression
}

func (*Infix) exprNode() {}

// Select is the lowered form of `A if C else B`.
type Select struct {
	baseExpr
	Cond Expression
	Then Expression
	Else Expression
}

func (*Select) exprNode() {}

// Call is a utility invocation with arguments already resolved into
// parameter order (positional and named binding modes both collapse here).
type Call struct {
	baseExpr
	Callee string
	Args   []Expression
}

func (*Call) exprNode() {}

// ListLit is an ordered/unordered list literal.
type ListLit struct {
	baseExpr
	Elements []Expression
}

func (*ListLit) exprNode() {}

// DictEntry is one key/value pair of a DictLit.
type DictEntry struct {
	Key   string
	Value Expression
}

// DictLit is a named-list literal.
type DictLit struct {
	baseExpr
	Entries []DictEntry
}

func (*DictLit) exprNode() {}

// IndexExpr reads one element of a list by position; introduced by lowering
// ForEachStmt and also reachable directly once the AST contract grows list
// subscripting syntax.
type IndexExpr struct {
	baseExpr
	Collection Expression
	Index      Expression
}

func (*IndexExpr) exprNode() {}

// LenExpr yields the element count of a list; used by the ForEachStmt
// desugaring's loop guard.
type LenExpr struct {
	baseExpr
	Collection Expression
}

func (*LenExpr) exprNode() {}
