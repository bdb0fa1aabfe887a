package analyzer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmlang/compiler/ast"
)

func ident(name string) *ast.Identifier { return &ast.Identifier{Name: name} }

func num(v float64) *ast.Literal { return &ast.Literal{Kind: ast.LiteralNumber, Num: v} }

// program builds: let x = 10; { let x = 20; print(x); } print(x);
// The inner `x` must be renamed since it shadows the outer one; the
// outer stays `x`.
func TestShadowedBindingIsRenamed(t *testing.T) {
	innerDecl := &ast.VariableDeclaration{Kind: ast.KindLet, Declarations: []*ast.VariableDeclarator{
		{Id: ident("x"), Init: num(20)},
	}}
	innerRef := ident("x")
	inner := &ast.BlockStatement{Body: []ast.Node{
		innerDecl,
		&ast.ExpressionStatement{Expression: &ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{innerRef}}},
	}}
	outerRef := ident("x")
	prog := &ast.Program{Body: []ast.Node{
		&ast.VariableDeclaration{Kind: ast.KindLet, Declarations: []*ast.VariableDeclarator{
			{Id: ident("x"), Init: num(10)},
		}},
		inner,
		&ast.ExpressionStatement{Expression: &ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{outerRef}}},
	}}

	_, err := Analyze(prog)
	require.NoError(t, err)

	outerDecl := prog.Body[0].(*ast.VariableDeclaration).Declarations[0].Id
	require.Equal(t, "x", outerDecl.Name)
	require.Equal(t, "x", outerRef.Name)

	require.Equal(t, "x#1", innerDecl.Declarations[0].Id.Name)
	require.Equal(t, "x#1", innerRef.Name)
}

// let x = 1; let x = 2; in the same scope must fail.
func TestSameScopeLetRedeclarationFails(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		&ast.VariableDeclaration{Kind: ast.KindLet, Declarations: []*ast.VariableDeclarator{{Id: ident("x"), Init: num(1)}}},
		&ast.VariableDeclaration{Kind: ast.KindLet, Declarations: []*ast.VariableDeclarator{{Id: ident("x"), Init: num(2)}}},
	}}
	_, err := Analyze(prog)
	require.Error(t, err)
}

// var declared twice in the same scope is allowed.
func TestVarRedeclarationAllowed(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		&ast.VariableDeclaration{Kind: ast.KindVar, Declarations: []*ast.VariableDeclarator{{Id: ident("x"), Init: num(1)}}},
		&ast.VariableDeclaration{Kind: ast.KindVar, Declarations: []*ast.VariableDeclarator{{Id: ident("x"), Init: num(2)}}},
	}}
	_, err := Analyze(prog)
	require.NoError(t, err)
}

// function f(n) { if (n < 2) return n; return f(n-1) + f(n-2); }
// exercises var/function hoisting plus a recursive self-reference.
func TestFunctionDeclarationHoistsAndSelfReferences(t *testing.T) {
	nParam := ident("n")
	fnRef1 := ident("f")
	fnRef2 := ident("f")
	fn := &ast.FunctionDeclaration{Function: ast.Function{
		Id:     ident("f"),
		Params: []*ast.Identifier{nParam},
		Body: &ast.BlockStatement{Body: []ast.Node{
			&ast.IfStatement{
				Test:       &ast.BinaryExpression{Operator: "<", Left: ident("n"), Right: num(2)},
				Consequent: &ast.ReturnStatement{Argument: ident("n")},
			},
			&ast.ReturnStatement{Argument: &ast.BinaryExpression{
				Operator: "+",
				Left:     &ast.CallExpression{Callee: fnRef1, Arguments: []ast.Node{&ast.BinaryExpression{Operator: "-", Left: ident("n"), Right: num(1)}}},
				Right:    &ast.CallExpression{Callee: fnRef2, Arguments: []ast.Node{&ast.BinaryExpression{Operator: "-", Left: ident("n"), Right: num(2)}}},
			}},
		}},
	}}
	call := &ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{
		&ast.CallExpression{Callee: ident("f"), Arguments: []ast.Node{num(10)}},
	}}
	prog := &ast.Program{Body: []ast.Node{fn, &ast.ExpressionStatement{Expression: call}}}

	info, err := Analyze(prog)
	require.NoError(t, err)
	require.Equal(t, "f", fnRef1.Name)
	require.Equal(t, "f", fnRef2.Name)
	_, ok := info.Program.Names["f"]
	require.True(t, ok)
}

// let c = (function(){ let n = 0; return function(){ n += 1; return n; }; })();
// exercises capture flagging for the closure cell (Closures).
func TestInnerFunctionReferenceMarksCapture(t *testing.T) {
	nRef := ident("n")
	inner := &ast.FunctionExpression{Function: ast.Function{
		Body: &ast.BlockStatement{Body: []ast.Node{
			&ast.ExpressionStatement{Expression: &ast.AssignmentExpression{Operator: "+=", Left: nRef, Right: num(1)}},
			&ast.ReturnStatement{Argument: ident("n")},
		}},
	}}
	outer := &ast.FunctionExpression{Function: ast.Function{
		Body: &ast.BlockStatement{Body: []ast.Node{
			&ast.VariableDeclaration{Kind: ast.KindLet, Declarations: []*ast.VariableDeclarator{{Id: ident("n"), Init: num(0)}}},
			&ast.ReturnStatement{Argument: inner},
		}},
	}}
	prog := &ast.Program{Body: []ast.Node{
		&ast.VariableDeclaration{Kind: ast.KindLet, Declarations: []*ast.VariableDeclarator{
			{Id: ident("c"), Init: &ast.CallExpression{Callee: outer}},
		}},
	}}

	info, err := Analyze(prog)
	require.NoError(t, err)
	outerScope := info.Scopes[outer]
	b, ok := outerScope.Names["n"]
	require.True(t, ok)
	require.True(t, b.Captured)
	require.Equal(t, "n", nRef.Name)

	innerScope := info.Scopes[inner]
	require.Equal(t, []string{"n"}, info.Captures[innerScope])
}

func TestUnresolvedReferenceLeftAsGlobalAccess(t *testing.T) {
	ref := ident("undeclaredGlobal")
	prog := &ast.Program{Body: []ast.Node{
		&ast.ExpressionStatement{Expression: &ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{ref}}},
	}}
	_, err := Analyze(prog)
	require.NoError(t, err)
	require.Equal(t, "undeclaredGlobal", ref.Name)
}

func TestEvalCallSiteRecordsScopeChain(t *testing.T) {
	evalCall := &ast.CallExpression{Callee: ident("eval"), Arguments: []ast.Node{&ast.Literal{Kind: ast.LiteralString, Str: "1+1"}}}
	block := &ast.BlockStatement{Body: []ast.Node{&ast.ExpressionStatement{Expression: evalCall}}}
	prog := &ast.Program{Body: []ast.Node{block}}

	info, err := Analyze(prog)
	require.NoError(t, err)
	chain, ok := info.EvalSites[evalCall]
	require.True(t, ok)
	require.GreaterOrEqual(t, len(chain), 2)
}

func TestAnalyzeIsIdempotent(t *testing.T) {
	innerDecl := &ast.VariableDeclaration{Kind: ast.KindLet, Declarations: []*ast.VariableDeclarator{{Id: ident("x"), Init: num(20)}}}
	inner := &ast.BlockStatement{Body: []ast.Node{innerDecl}}
	prog := &ast.Program{Body: []ast.Node{
		&ast.VariableDeclaration{Kind: ast.KindLet, Declarations: []*ast.VariableDeclarator{{Id: ident("x"), Init: num(10)}}},
		inner,
	}}
	_, err := Analyze(prog)
	require.NoError(t, err)
	nameAfterFirst := innerDecl.Declarations[0].Id.Name

	_, err = Analyze(prog)
	require.NoError(t, err)
	require.Equal(t, nameAfterFirst, innerDecl.Declarations[0].Id.Name)
}
