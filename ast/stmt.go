package ast

// DeclarationKind distinguishes the three declaration forms a Scope
// record tracks, plus the three binding forms the analyzer synthesizes
// for parameters, function declarations and catch-clause parameters.
type DeclarationKind int

const (
	KindVar DeclarationKind = iota
	KindLet
	KindConst
	KindParam
	KindFunction
	KindCatch
)

// VariableDeclarator binds Id to the value of Init (nil if omitted).
type VariableDeclarator struct {
	base
	Id   *Identifier
	Init Node
}

func (*VariableDeclarator) Type() string { return "VariableDeclarator" }

// VariableDeclaration is a `var`/`let`/`const` statement; `var` and
// `function` declarations hoist, `let`/`const` stay block-scoped
// (Pass 1).
type VariableDeclaration struct {
	base
	Kind         DeclarationKind
	Declarations []*VariableDeclarator
}

func (*VariableDeclaration) Type() string { return "VariableDeclaration" }

// BlockStatement forms a scope (Scope record) for its `let`/
// `const`/catch bindings and lowers to a Wasm `block`.
type BlockStatement struct {
	base
	Body []Node
}

func (*BlockStatement) Type() string { return "BlockStatement" }

// ExpressionStatement discards the value of its Expression.
type ExpressionStatement struct {
	base
	Expression Node
}

func (*ExpressionStatement) Type() string { return "ExpressionStatement" }

// IfStatement lowers to `if/else/end`.
type IfStatement struct {
	base
	Test       Node
	Consequent Node
	Alternate  Node // nil if no else branch
}

func (*IfStatement) Type() string { return "IfStatement" }

// WhileStatement lowers to a `loop` inside an outer `block` labeled for
// `break`.
type WhileStatement struct {
	base
	Test Node
	Body Node
}

func (*WhileStatement) Type() string { return "WhileStatement" }

// DoWhileStatement is WhileStatement with the test at the bottom of the
// loop body.
type DoWhileStatement struct {
	base
	Test Node
	Body Node
}

func (*DoWhileStatement) Type() string { return "DoWhileStatement" }

// ForStatement is the classic three-clause for loop; any clause may be nil.
type ForStatement struct {
	base
	Init   Node // VariableDeclaration or expression statement, or nil
	Test   Node
	Update Node
	Body   Node
}

func (*ForStatement) Type() string { return "ForStatement" }

// ReturnStatement emits its Argument's (value, type-id) pair and a Wasm
// `return`. Argument is nil for a bare `return`.
type ReturnStatement struct {
	base
	Argument Node
}

func (*ReturnStatement) Type() string { return "ReturnStatement" }

// BreakStatement / ContinueStatement target the enclosing loop/switch,
// or the named Label if present.
type BreakStatement struct {
	base
	Label string
}

func (*BreakStatement) Type() string { return "BreakStatement" }

type ContinueStatement struct {
	base
	Label string
}

func (*ContinueStatement) Type() string { return "ContinueStatement" }

// LabeledStatement names Body so break/continue can target it.
type LabeledStatement struct {
	base
	Label string
	Body  Node
}

func (*LabeledStatement) Type() string { return "LabeledStatement" }

// ThrowStatement lowers to `throw <tag>`.
type ThrowStatement struct {
	base
	Argument Node
}

func (*ThrowStatement) Type() string { return "ThrowStatement" }

// CatchClause binds Param (nil for a parameterless catch) in its own
// scope.
type CatchClause struct {
	base
	Param *Identifier
	Body  *BlockStatement
}

func (*CatchClause) Type() string { return "CatchClause" }

// TryStatement lowers to `try`/`catch`/`catch_all`/`end`.
// Handler and Finalizer may each be nil, but not both.
type TryStatement struct {
	base
	Block     *BlockStatement
	Handler   *CatchClause
	Finalizer *BlockStatement
}

func (*TryStatement) Type() string { return "TryStatement" }

// SwitchCase is one `case`/`default` arm of a SwitchStatement. Test is
// nil for the default arm.
type SwitchCase struct {
	base
	Test        Node
	Consequent  []Node
}

func (*SwitchCase) Type() string { return "SwitchCase" }

// SwitchStatement lowers to a cascade of typed equality tests branching
// into a shared block.
type SwitchStatement struct {
	base
	Discriminant Node
	Cases        []*SwitchCase
}

func (*SwitchStatement) Type() string { return "SwitchStatement" }
