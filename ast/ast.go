// Package ast defines the syntax tree produced by the parser, the resolver
// annotations attached to it, and the canonical source printer.
package ast

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// MakeSpan creates a span from start and end positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// ---------------------------------------------------------------------------
// Program
// ---------------------------------------------------------------------------

// Program is the root of a parsed script (or eval / Function body).
type Program struct {
	SpanVal    Span
	Body       []Stmt
	Strict     bool
	SourceName string
	Source     string
	Comments   *CommentMap // nil unless comments were retained

	// Set by the resolver.
	Scope     *ScopeInfo      // program-level lexical frame (may need no frame)
	VarNames  []string        // hoisted var names declared on the variable object
	FuncDecls []*FunctionDecl // hoisted top-level function declarations
	Eval      bool            // compiled as eval code
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Identifier is a reference to (or declaration of) a name.
type Identifier struct {
	SpanVal Span
	Name    string
	Binding Binding // set by the resolver
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

// NumberLiteral is a numeric literal.
type NumberLiteral struct {
	SpanVal Span
	Value   float64
	Raw     string
}

func (n *NumberLiteral) Span() Span { return n.SpanVal }
func (n *NumberLiteral) node()      {}
func (n *NumberLiteral) expr()      {}

// StringLiteral is a string literal with escapes already decoded.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// BoolLiteral is true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// NullLiteral is null.
type NullLiteral struct {
	SpanVal Span
}

func (n *NullLiteral) Span() Span { return n.SpanVal }
func (n *NullLiteral) node()      {}
func (n *NullLiteral) expr()      {}

// RegExpLiteral is /pattern/flags.
type RegExpLiteral struct {
	SpanVal Span
	Pattern string
	Flags   string
}

func (n *RegExpLiteral) Span() Span { return n.SpanVal }
func (n *RegExpLiteral) node()      {}
func (n *RegExpLiteral) expr()      {}

// TemplateLiteral is `a${b}c`. len(Cooked) == len(Exprs)+1.
type TemplateLiteral struct {
	SpanVal Span
	Cooked  []string
	Raw     []string
	Exprs   []Expr
}

func (n *TemplateLiteral) Span() Span { return n.SpanVal }
func (n *TemplateLiteral) node()      {}
func (n *TemplateLiteral) expr()      {}

// ThisExpr is the this keyword.
type ThisExpr struct {
	SpanVal Span
}

func (n *ThisExpr) Span() Span { return n.SpanVal }
func (n *ThisExpr) node()      {}
func (n *ThisExpr) expr()      {}

// ArrayLiteral is [a, , b]. A nil element is a hole.
type ArrayLiteral struct {
	SpanVal  Span
	Elements []Expr
}

func (n *ArrayLiteral) Span() Span { return n.SpanVal }
func (n *ArrayLiteral) node()      {}
func (n *ArrayLiteral) expr()      {}

// PropertyKind distinguishes object literal members.
type PropertyKind int

const (
	PropertyInit PropertyKind = iota
	PropertyGet
	PropertySet
)

// Property is one member of an object literal.
type Property struct {
	SpanVal   Span
	Kind      PropertyKind
	Key       string // static key (identifier, string, or canonical number)
	Computed  Expr   // non-nil for [expr]: value
	Value     Expr   // for getters/setters, a *FunctionLiteral
	Shorthand bool
}

// ObjectLiteral is {a: 1, get b() {}}.
type ObjectLiteral struct {
	SpanVal    Span
	Properties []*Property
}

func (n *ObjectLiteral) Span() Span { return n.SpanVal }
func (n *ObjectLiteral) node()      {}
func (n *ObjectLiteral) expr()      {}

// FunctionKind distinguishes declarations, expressions and arrows.
type FunctionKind int

const (
	FunctionDeclaration FunctionKind = iota
	FunctionExpression
	ArrowFunction
	GetterFunction
	SetterFunction
)

// FunctionLiteral is any function form. Declarations wrap it in a
// FunctionDecl statement.
type FunctionLiteral struct {
	SpanVal  Span
	Kind     FunctionKind
	Name     *Identifier // nil for anonymous functions
	Params   []*Identifier
	Body     []Stmt
	ExprBody bool // arrow function with an expression body: Body is one ReturnStmt
	Strict   bool
	Source   string // original text, used by Function.prototype.toString

	Info *FunctionInfo // set by the resolver
}

func (n *FunctionLiteral) Span() Span { return n.SpanVal }
func (n *FunctionLiteral) node()      {}
func (n *FunctionLiteral) expr()      {}

// UnaryExpr is a prefix operator application other than ++/--.
type UnaryExpr struct {
	SpanVal Span
	Op      Op
	X       Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// UpdateExpr is ++x, x++, --x or x--.
type UpdateExpr struct {
	SpanVal Span
	Op      Op // OpInc or OpDec
	Prefix  bool
	X       Expr
}

func (n *UpdateExpr) Span() Span { return n.SpanVal }
func (n *UpdateExpr) node()      {}
func (n *UpdateExpr) expr()      {}

// BinaryExpr is an arithmetic, bitwise, relational or equality operation.
type BinaryExpr struct {
	SpanVal Span
	Op      Op
	X       Expr
	Y       Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// LogicalExpr is &&, || or ??.
type LogicalExpr struct {
	SpanVal Span
	Op      Op
	X       Expr
	Y       Expr
}

func (n *LogicalExpr) Span() Span { return n.SpanVal }
func (n *LogicalExpr) node()      {}
func (n *LogicalExpr) expr()      {}

// AssignExpr is target = value or a compound assignment. Op is OpAssign for
// plain assignment, otherwise the underlying binary operator.
type AssignExpr struct {
	SpanVal Span
	Op      Op
	Target  Expr // *Identifier, *MemberExpr or *IndexExpr
	Value   Expr
}

func (n *AssignExpr) Span() Span { return n.SpanVal }
func (n *AssignExpr) node()      {}
func (n *AssignExpr) expr()      {}

// ConditionalExpr is test ? cons : alt.
type ConditionalExpr struct {
	SpanVal Span
	Test    Expr
	Cons    Expr
	Alt     Expr
}

func (n *ConditionalExpr) Span() Span { return n.SpanVal }
func (n *ConditionalExpr) node()      {}
func (n *ConditionalExpr) expr()      {}

// CallExpr is callee(args).
type CallExpr struct {
	SpanVal    Span
	Callee     Expr
	Args       []Expr
	DirectEval bool // set by the resolver for eval(...) calls
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// NewExpr is new callee(args).
type NewExpr struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *NewExpr) Span() Span { return n.SpanVal }
func (n *NewExpr) node()      {}
func (n *NewExpr) expr()      {}

// MemberExpr is object.name.
type MemberExpr struct {
	SpanVal  Span
	Object   Expr
	Property string
}

func (n *MemberExpr) Span() Span { return n.SpanVal }
func (n *MemberExpr) node()      {}
func (n *MemberExpr) expr()      {}

// IndexExpr is object[index].
type IndexExpr struct {
	SpanVal Span
	Object  Expr
	Index   Expr
}

func (n *IndexExpr) Span() Span { return n.SpanVal }
func (n *IndexExpr) node()      {}
func (n *IndexExpr) expr()      {}

// SequenceExpr is a, b, c.
type SequenceExpr struct {
	SpanVal Span
	List    []Expr
}

func (n *SequenceExpr) Span() Span { return n.SpanVal }
func (n *SequenceExpr) node()      {}
func (n *SequenceExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// DeclKind is the declaration keyword of a binding.
type DeclKind int

const (
	DeclVar DeclKind = iota
	DeclLet
	DeclConst
	DeclFunction
	DeclParam
	DeclCatch
	DeclArguments
	DeclSelf // name of a named function expression
)

func (k DeclKind) String() string {
	switch k {
	case DeclVar:
		return "var"
	case DeclLet:
		return "let"
	case DeclConst:
		return "const"
	case DeclFunction:
		return "function"
	case DeclParam:
		return "param"
	case DeclCatch:
		return "catch"
	case DeclArguments:
		return "arguments"
	case DeclSelf:
		return "self"
	}
	return "unknown"
}

// IsLexical reports whether bindings of this kind are block scoped and
// subject to the temporal dead zone.
func (k DeclKind) IsLexical() bool {
	return k == DeclLet || k == DeclConst
}

// VarDeclarator is one name = init pair.
type VarDeclarator struct {
	SpanVal Span
	Name    *Identifier
	Init    Expr
}

// VarDecl is var/let/const a = 1, b.
type VarDecl struct {
	SpanVal Span
	Kind    DeclKind
	Decls   []*VarDeclarator
}

func (n *VarDecl) Span() Span { return n.SpanVal }
func (n *VarDecl) node()      {}
func (n *VarDecl) stmt()      {}

// FunctionDecl is a function declaration statement.
type FunctionDecl struct {
	SpanVal Span
	Func    *FunctionLiteral

	// AnnexB is set by the resolver for sloppy-mode block-level declarations:
	// the function-scoped var that receives the value when the declaration
	// is evaluated.
	AnnexB *Identifier
}

func (n *FunctionDecl) Span() Span { return n.SpanVal }
func (n *FunctionDecl) node()      {}
func (n *FunctionDecl) stmt()      {}

// ExprStmt is an expression used as a statement.
type ExprStmt struct {
	SpanVal Span
	X       Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// BlockStmt is { ... }.
type BlockStmt struct {
	SpanVal   Span
	Body      []Stmt
	Scope     *ScopeInfo      // set by the resolver; nil when no frame is needed
	FuncDecls []*FunctionDecl // hoisted block-level function declarations
}

func (n *BlockStmt) Span() Span { return n.SpanVal }
func (n *BlockStmt) node()      {}
func (n *BlockStmt) stmt()      {}

// EmptyStmt is a lone semicolon.
type EmptyStmt struct {
	SpanVal Span
}

func (n *EmptyStmt) Span() Span { return n.SpanVal }
func (n *EmptyStmt) node()      {}
func (n *EmptyStmt) stmt()      {}

// IfStmt is if (test) cons else alt.
type IfStmt struct {
	SpanVal Span
	Test    Expr
	Cons    Stmt
	Alt     Stmt
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// ForStmt is for (init; test; update) body.
type ForStmt struct {
	SpanVal Span
	Init    Node // *VarDecl, Expr, or nil
	Test    Expr
	Update  Expr
	Body    Stmt
	Scope   *ScopeInfo // loop-head lexical frame (let/const init)
}

func (n *ForStmt) Span() Span { return n.SpanVal }
func (n *ForStmt) node()      {}
func (n *ForStmt) stmt()      {}

// ForInStmt is for (left in right) body, or for-of when Of is set.
type ForInStmt struct {
	SpanVal Span
	Left    Node // *VarDecl with one declarator, or an assignment target Expr
	Right   Expr
	Body    Stmt
	Of      bool
	Scope   *ScopeInfo // per-iteration frame for let/const heads
}

func (n *ForInStmt) Span() Span { return n.SpanVal }
func (n *ForInStmt) node()      {}
func (n *ForInStmt) stmt()      {}

// WhileStmt is while (test) body.
type WhileStmt struct {
	SpanVal Span
	Test    Expr
	Body    Stmt
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// DoWhileStmt is do body while (test).
type DoWhileStmt struct {
	SpanVal Span
	Body    Stmt
	Test    Expr
}

func (n *DoWhileStmt) Span() Span { return n.SpanVal }
func (n *DoWhileStmt) node()      {}
func (n *DoWhileStmt) stmt()      {}

// BreakStmt is break [label].
type BreakStmt struct {
	SpanVal Span
	Label   string
}

func (n *BreakStmt) Span() Span { return n.SpanVal }
func (n *BreakStmt) node()      {}
func (n *BreakStmt) stmt()      {}

// ContinueStmt is continue [label].
type ContinueStmt struct {
	SpanVal Span
	Label   string
}

func (n *ContinueStmt) Span() Span { return n.SpanVal }
func (n *ContinueStmt) node()      {}
func (n *ContinueStmt) stmt()      {}

// ReturnStmt is return [arg].
type ReturnStmt struct {
	SpanVal Span
	Arg     Expr
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// ThrowStmt is throw arg.
type ThrowStmt struct {
	SpanVal Span
	Arg     Expr
}

func (n *ThrowStmt) Span() Span { return n.SpanVal }
func (n *ThrowStmt) node()      {}
func (n *ThrowStmt) stmt()      {}

// TryStmt is try block [catch (param) handler] [finally finalizer].
type TryStmt struct {
	SpanVal    Span
	Block      *BlockStmt
	Param      *Identifier // nil for catch without binding or no catch
	Handler    *BlockStmt  // nil when there is no catch clause
	Finalizer  *BlockStmt  // nil when there is no finally clause
	CatchScope *ScopeInfo  // frame holding the catch parameter
}

func (n *TryStmt) Span() Span { return n.SpanVal }
func (n *TryStmt) node()      {}
func (n *TryStmt) stmt()      {}

// SwitchCase is one case (Test != nil) or default clause.
type SwitchCase struct {
	SpanVal Span
	Test    Expr
	Body    []Stmt
}

// SwitchStmt is switch (disc) { cases }.
type SwitchStmt struct {
	SpanVal   Span
	Disc      Expr
	Cases     []*SwitchCase
	Scope     *ScopeInfo
	FuncDecls []*FunctionDecl
}

func (n *SwitchStmt) Span() Span { return n.SpanVal }
func (n *SwitchStmt) node()      {}
func (n *SwitchStmt) stmt()      {}

// LabeledStmt is label: body.
type LabeledStmt struct {
	SpanVal Span
	Label   string
	Body    Stmt
}

func (n *LabeledStmt) Span() Span { return n.SpanVal }
func (n *LabeledStmt) node()      {}
func (n *LabeledStmt) stmt()      {}

// WithStmt is with (object) body.
type WithStmt struct {
	SpanVal Span
	Object  Expr
	Body    Stmt
}

func (n *WithStmt) Span() Span { return n.SpanVal }
func (n *WithStmt) node()      {}
func (n *WithStmt) stmt()      {}

// DebuggerStmt is the debugger statement.
type DebuggerStmt struct {
	SpanVal Span
}

func (n *DebuggerStmt) Span() Span { return n.SpanVal }
func (n *DebuggerStmt) node()      {}
func (n *DebuggerStmt) stmt()      {}
