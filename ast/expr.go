package ast

// BinaryExpression covers the arithmetic and comparison operators the
// code generator's expression lowering table handles.
type BinaryExpression struct {
	base
	Operator string // "+", "-", "*", "/", "%", "==", "<", etc.
	Left     Node
	Right    Node
}

func (*BinaryExpression) Type() string { return "BinaryExpression" }

// LogicalExpression is "&&" or "||", lowered via short-circuiting
// block/branch-if.
type LogicalExpression struct {
	base
	Operator string
	Left     Node
	Right    Node
}

func (*LogicalExpression) Type() string { return "LogicalExpression" }

// UnaryExpression is "-", "!", "typeof", or "void".
type UnaryExpression struct {
	base
	Operator string
	Argument Node
}

func (*UnaryExpression) Type() string { return "UnaryExpression" }

// UpdateExpression is "++"/"--", prefix or postfix.
type UpdateExpression struct {
	base
	Operator string
	Prefix   bool
	Argument Node
}

func (*UpdateExpression) Type() string { return "UpdateExpression" }

// AssignmentExpression assigns Right to Left, optionally compounded
// ("+=", "-=", ...).
type AssignmentExpression struct {
	base
	Operator string
	Left     Node
	Right    Node
}

func (*AssignmentExpression) Type() string { return "AssignmentExpression" }

// ConditionalExpression is the ternary `test ? consequent : alternate`.
type ConditionalExpression struct {
	base
	Test       Node
	Consequent Node
	Alternate  Node
}

func (*ConditionalExpression) Type() string { return "ConditionalExpression" }

// CallExpression invokes Callee with Arguments, left-to-right.
type CallExpression struct {
	base
	Callee    Node
	Arguments []Node
}

func (*CallExpression) Type() string { return "CallExpression" }

// NewExpression is `new Callee(Arguments)`.
type NewExpression struct {
	base
	Callee    Node
	Arguments []Node
}

func (*NewExpression) Type() string { return "NewExpression" }

// MemberExpression is `Object.Property` or, when Computed, `Object[Property]`.
type MemberExpression struct {
	base
	Object   Node
	Property Node
	Computed bool
}

func (*MemberExpression) Type() string { return "MemberExpression" }

// ArrayExpression is an array literal.
type ArrayExpression struct {
	base
	Elements []Node
}

func (*ArrayExpression) Type() string { return "ArrayExpression" }

// Property is one key/value pair of an ObjectExpression.
type Property struct {
	base
	Key      Node
	Value    Node
	Computed bool
}

func (*Property) Type() string { return "Property" }

// ObjectExpression is an object literal.
type ObjectExpression struct {
	base
	Properties []*Property
}

func (*ObjectExpression) Type() string { return "ObjectExpression" }

// FunctionExpression / FunctionDeclaration share a shape; Declaration
// additionally binds Id in the enclosing scope at discovery time
// (Pass 1).
type Function struct {
	base
	Id        *Identifier // nil for anonymous function expressions
	Params    []*Identifier
	Body      *BlockStatement
	Async     bool
	Generator bool
}

// FunctionDeclaration hoists Id to the nearest enclosing function or
// program root.
type FunctionDeclaration struct{ Function }

func (*FunctionDeclaration) Type() string { return "FunctionDeclaration" }

// FunctionExpression does not hoist; it is lowered wherever it appears.
type FunctionExpression struct{ Function }

func (*FunctionExpression) Type() string { return "FunctionExpression" }

// ArrowFunctionExpression is a FunctionExpression variant with no `Id`.
type ArrowFunctionExpression struct{ Function }

func (*ArrowFunctionExpression) Type() string { return "ArrowFunctionExpression" }
