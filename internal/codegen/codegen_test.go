package codegen

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmlang/compiler/ast"
	"github.com/wasmlang/compiler/internal/analyzer"
	"github.com/wasmlang/compiler/internal/config"
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/types"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

func ident(name string) *ast.Identifier { return &ast.Identifier{Name: name} }

func num(v float64) *ast.Literal { return &ast.Literal{Kind: ast.LiteralNumber, Num: v} }

func str(v string) *ast.Literal { return &ast.Literal{Kind: ast.LiteralString, Str: v} }

func exprStmt(n ast.Node) *ast.ExpressionStatement { return &ast.ExpressionStatement{Expression: n} }

func letDecl(name string, init ast.Node) *ast.VariableDeclaration {
	return &ast.VariableDeclaration{Kind: ast.KindLet, Declarations: []*ast.VariableDeclarator{
		{Id: ident(name), Init: init},
	}}
}

// generate runs the full analyzer + generator pipeline over prog, the way
// the compiler package's own Compile entry point does, so these tests
// exercise the same path real source goes through.
func generate(t *testing.T, prog *ast.Program) *ir.Module {
	t.Helper()
	info, err := analyzer.Analyze(prog)
	require.NoError(t, err)
	m, err := Generate(prog, info, config.Default())
	require.NoError(t, err)
	return m
}

func countOpcode(ins []ir.Instruction, code wasmcore.Opcode) int {
	n := 0
	for _, i := range ins {
		if i.Code == code {
			n++
		}
	}
	return n
}

// let x = 1; print(x + 2);
func TestSimpleArithmeticAndHostCall(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		letDecl("x", num(1)),
		exprStmt(&ast.CallExpression{
			Callee:    ident("print"),
			Arguments: []ast.Node{&ast.BinaryExpression{Operator: "+", Left: ident("x"), Right: num(2)}},
		}),
	}}
	m := generate(t, prog)
	main, ok := m.FunctionByName("#main")
	require.True(t, ok)
	require.Equal(t, ir.Lowered, main.State)
	require.True(t, main.TwoResults())
	// print is the sole import, so the call target resolves to index 0.
	require.Len(t, m.Imports, 1)
	require.Equal(t, "print", m.Imports[0].Name)
}

// function add(a, b) { return a + b; } add(1, 2);
// exercises a top-level declared function reserved ahead of #main, called
// by direct name and exported per every declared top-level function.
func TestTopLevelFunctionDeclarationIsReservedAndExported(t *testing.T) {
	fn := &ast.FunctionDeclaration{Function: ast.Function{
		Id:     ident("add"),
		Params: []*ast.Identifier{ident("a"), ident("b")},
		Body: &ast.BlockStatement{Body: []ast.Node{
			&ast.ReturnStatement{Argument: &ast.BinaryExpression{Operator: "+", Left: ident("a"), Right: ident("b")}},
		}},
	}}
	prog := &ast.Program{Body: []ast.Node{
		fn,
		exprStmt(&ast.CallExpression{Callee: ident("add"), Arguments: []ast.Node{num(1), num(2)}}),
	}}
	m := generate(t, prog)
	add, ok := m.FunctionByName("add")
	require.True(t, ok)
	require.Equal(t, "add", add.Exported)
	require.Equal(t, ir.Lowered, add.State)
	// (value, type) per param, no trailing env slot: add captures nothing.
	require.Len(t, add.Params, 4)
}

// let c = (function() {
//   let count = 0;
//   return function() { count = count + 1; return count; };
// })();
// c();
// traces the IIFE-factory pattern: count becomes a heap cell shared
// between the inlined factory prologue and the returned literal.
func TestClosureFactoryPatternTracesAndCapturesCell(t *testing.T) {
	inner := &ast.FunctionExpression{Function: ast.Function{
		Body: &ast.BlockStatement{Body: []ast.Node{
			&ast.ExpressionStatement{Expression: &ast.AssignmentExpression{
				Operator: "=",
				Left:     ident("count"),
				Right:    &ast.BinaryExpression{Operator: "+", Left: ident("count"), Right: num(1)},
			}},
			&ast.ReturnStatement{Argument: ident("count")},
		}},
	}}
	factory := &ast.FunctionExpression{Function: ast.Function{
		Body: &ast.BlockStatement{Body: []ast.Node{
			letDecl("count", num(0)),
			&ast.ReturnStatement{Argument: inner},
		}},
	}}
	iife := &ast.CallExpression{Callee: factory}
	prog := &ast.Program{Body: []ast.Node{
		letDecl("c", iife),
		exprStmt(&ast.CallExpression{Callee: ident("c"), Arguments: nil}),
	}}
	m := generate(t, prog)
	// One reserved literal function (the inner closure) besides #main;
	// the factory itself is never compiled as a callable function. The
	// cell allocation also reserves the internal #alloc helper, which is
	// not a source function and is not counted here.
	var sourceFns []*ir.Function
	for _, f := range m.Functions {
		if !f.Internal {
			sourceFns = append(sourceFns, f)
		}
	}
	require.Len(t, sourceFns, 2)
	var innerFn *ir.Function
	for _, f := range sourceFns {
		if f.Name != "#main" {
			innerFn = f
		}
	}
	require.NotNil(t, innerFn)
	require.Equal(t, ir.Lowered, innerFn.State)
	// One captured name ("count") means one trailing $env param.
	require.Len(t, innerFn.Params, 1)
	require.Equal(t, wasmcore.ValueTypeI32, innerFn.Params[0])
}

// function outer(x) { return function() { return x; }; }
// the returned literal captures a parameter of the enclosing function,
// which newFuncCtx must promote from a plain local pair to a heap cell.
func TestCapturedParameterIsPromotedToCell(t *testing.T) {
	returned := &ast.FunctionExpression{Function: ast.Function{
		Body: &ast.BlockStatement{Body: []ast.Node{
			&ast.ReturnStatement{Argument: ident("x")},
		}},
	}}
	outer := &ast.FunctionDeclaration{Function: ast.Function{
		Id:     ident("outer"),
		Params: []*ast.Identifier{ident("x")},
		Body: &ast.BlockStatement{Body: []ast.Node{
			&ast.ReturnStatement{Argument: returned},
		}},
	}}
	prog := &ast.Program{Body: []ast.Node{outer}}
	m := generate(t, prog)
	outerFn, ok := m.FunctionByName("outer")
	require.True(t, ok)
	require.Equal(t, ir.Lowered, outerFn.State)
	foundCell := false
	for _, l := range outerFn.Locals {
		if l.Name == "$cell_x" {
			foundCell = true
		}
	}
	require.True(t, foundCell, "captured parameter x must be promoted to a heap cell local")
}

// while (i < 3) { if (i == 1) { continue; } if (i == 2) { break; } i = i + 1; }
// exercises the block/loop/block nesting and that unlabeled break/continue
// reach the nearest loop frame regardless of any label on it.
func TestWhileLoopBreakAndContinue(t *testing.T) {
	body := &ast.BlockStatement{Body: []ast.Node{
		&ast.IfStatement{
			Test:       &ast.BinaryExpression{Operator: "==", Left: ident("i"), Right: num(1)},
			Consequent: &ast.BlockStatement{Body: []ast.Node{&ast.ContinueStatement{}}},
		},
		&ast.IfStatement{
			Test:       &ast.BinaryExpression{Operator: "==", Left: ident("i"), Right: num(2)},
			Consequent: &ast.BlockStatement{Body: []ast.Node{&ast.BreakStatement{}}},
		},
		exprStmt(&ast.AssignmentExpression{
			Operator: "=",
			Left:     ident("i"),
			Right:    &ast.BinaryExpression{Operator: "+", Left: ident("i"), Right: num(1)},
		}),
	}}
	loop := &ast.LabeledStatement{Label: "outer", Body: &ast.WhileStatement{
		Test: &ast.BinaryExpression{Operator: "<", Left: ident("i"), Right: num(3)},
		Body: body,
	}}
	prog := &ast.Program{Body: []ast.Node{
		letDecl("i", num(0)),
		loop,
	}}
	m := generate(t, prog)
	main, _ := m.FunctionByName("#main")
	require.Equal(t, ir.Lowered, main.State)
	require.GreaterOrEqual(t, countOpcode(main.Instructions, wasmcore.OpcodeLoop), 1)
	require.GreaterOrEqual(t, countOpcode(main.Instructions, wasmcore.OpcodeBr), 2)
}

// for (let i = 0; i < 3; i = i + 1) { print(i); }
func TestForLoopLowersInitTestUpdate(t *testing.T) {
	loop := &ast.ForStatement{
		Init: letDecl("i", num(0)),
		Test: &ast.BinaryExpression{Operator: "<", Left: ident("i"), Right: num(3)},
		Update: &ast.AssignmentExpression{
			Operator: "=",
			Left:     ident("i"),
			Right:    &ast.BinaryExpression{Operator: "+", Left: ident("i"), Right: num(1)},
		},
		Body: &ast.BlockStatement{Body: []ast.Node{
			exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{ident("i")}}),
		}},
	}
	prog := &ast.Program{Body: []ast.Node{loop}}
	m := generate(t, prog)
	main, _ := m.FunctionByName("#main")
	require.Equal(t, ir.Lowered, main.State)
}

// switch (x) { case 1: print(1); case 2: print(2); break; default: print(0); }
// "1" falls through into "2"'s body once matched (sticky OR), and default
// is the last case so it is allowed.
func TestSwitchFallthrough(t *testing.T) {
	sw := &ast.SwitchStatement{
		Discriminant: ident("x"),
		Cases: []*ast.SwitchCase{
			{Test: num(1), Consequent: []ast.Node{
				exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{num(1)}}),
			}},
			{Test: num(2), Consequent: []ast.Node{
				exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{num(2)}}),
				&ast.BreakStatement{},
			}},
			{Test: nil, Consequent: []ast.Node{
				exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{num(0)}}),
			}},
		},
	}
	prog := &ast.Program{Body: []ast.Node{letDecl("x", num(1)), sw}}
	m := generate(t, prog)
	main, _ := m.FunctionByName("#main")
	require.Equal(t, ir.Lowered, main.State)
}

// a non-last default case is rejected (a deliberate narrowing: see
// lowerSwitch's doc comment).
func TestSwitchDefaultMustBeLast(t *testing.T) {
	sw := &ast.SwitchStatement{
		Discriminant: ident("x"),
		Cases: []*ast.SwitchCase{
			{Test: nil, Consequent: []ast.Node{exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{num(0)}})}},
			{Test: num(1), Consequent: []ast.Node{exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{num(1)}})}},
		},
	}
	prog := &ast.Program{Body: []ast.Node{letDecl("x", num(1)), sw}}
	info, err := analyzer.Analyze(prog)
	require.NoError(t, err)
	_, err = Generate(prog, info, config.Default())
	require.Error(t, err)
}

// try { throw "boom"; } catch (e) { print(e); } finally { print("done"); }
func TestTryCatchFinally(t *testing.T) {
	tryStmt := &ast.TryStatement{
		Block: &ast.BlockStatement{Body: []ast.Node{
			&ast.ThrowStatement{Argument: str("boom")},
		}},
		Handler: &ast.CatchClause{
			Param: ident("e"),
			Body: &ast.BlockStatement{Body: []ast.Node{
				exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{ident("e")}}),
			}},
		},
		Finalizer: &ast.BlockStatement{Body: []ast.Node{
			exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{str("done")}}),
		}},
	}
	prog := &ast.Program{Body: []ast.Node{tryStmt}}
	m := generate(t, prog)
	main, _ := m.FunctionByName("#main")
	require.Equal(t, ir.Lowered, main.State)
	require.Len(t, m.Tags, 1)
	require.Equal(t, "#exception", m.Tags[0].Name)
	require.Equal(t, 1, countOpcode(main.Instructions, wasmcore.OpcodeThrow))
	require.Equal(t, 1, countOpcode(main.Instructions, wasmcore.OpcodeCatch))
	require.Equal(t, 1, countOpcode(main.Instructions, wasmcore.OpcodeCatchAll))
	require.Equal(t, 1, countOpcode(main.Instructions, wasmcore.OpcodeRethrow))
}

// try { print(1); } catch (e) {} with no finalizer takes the simpler
// lowerTryCatch-only path.
func TestTryCatchWithoutFinalizer(t *testing.T) {
	tryStmt := &ast.TryStatement{
		Block: &ast.BlockStatement{Body: []ast.Node{
			exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{num(1)}}),
		}},
		Handler: &ast.CatchClause{Body: &ast.BlockStatement{}},
	}
	prog := &ast.Program{Body: []ast.Node{tryStmt}}
	m := generate(t, prog)
	main, _ := m.FunctionByName("#main")
	require.Equal(t, ir.Lowered, main.State)
	require.Equal(t, 0, countOpcode(main.Instructions, wasmcore.OpcodeCatchAll))
}

// let a = [1, 2]; a.push(3); a[0] = a[0] + 1;
func TestArrayLiteralPushAndIndexAssign(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		letDecl("a", &ast.ArrayExpression{Elements: []ast.Node{num(1), num(2)}}),
		exprStmt(&ast.CallExpression{
			Callee:    &ast.MemberExpression{Object: ident("a"), Property: ident("push")},
			Arguments: []ast.Node{num(3)},
		}),
		exprStmt(&ast.AssignmentExpression{
			Operator: "=",
			Left:     &ast.MemberExpression{Object: ident("a"), Property: num(0), Computed: true},
			Right: &ast.BinaryExpression{
				Operator: "+",
				Left:     &ast.MemberExpression{Object: ident("a"), Property: num(0), Computed: true},
				Right:    num(1),
			},
		}),
	}}
	m := generate(t, prog)
	main, _ := m.FunctionByName("#main")
	require.Equal(t, ir.Lowered, main.State)
}

// let o = { x: 1, y: 2 }; print(o.x);
func TestObjectLiteralPropertyRead(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		letDecl("o", &ast.ObjectExpression{Properties: []*ast.Property{
			{Key: ident("x"), Value: num(1)},
			{Key: ident("y"), Value: num(2)},
		}}),
		exprStmt(&ast.CallExpression{
			Callee:    ident("print"),
			Arguments: []ast.Node{&ast.MemberExpression{Object: ident("o"), Property: ident("x")}},
		}),
	}}
	m := generate(t, prog)
	main, _ := m.FunctionByName("#main")
	require.Equal(t, ir.Lowered, main.State)
}

// calling a function value that was never assigned through the traced
// closure-factory/bare-literal pattern is an UnsupportedError: this core
// has no call_indirect/table to dispatch through.
func TestUnresolvableCallTargetIsUnsupported(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		letDecl("f", &ast.ConditionalExpression{
			Test:       ident("cond"),
			Consequent: &ast.FunctionExpression{Function: ast.Function{Body: &ast.BlockStatement{}}},
			Alternate:  &ast.FunctionExpression{Function: ast.Function{Body: &ast.BlockStatement{}}},
		}),
		letDecl("cond", &ast.Literal{Kind: ast.LiteralBoolean, Bool: true}),
		exprStmt(&ast.CallExpression{Callee: ident("f"), Arguments: nil}),
	}}
	info, err := analyzer.Analyze(prog)
	require.NoError(t, err)
	_, err = Generate(prog, info, config.Default())
	require.Error(t, err)
}

// obj[expr] computed property reads are unsupported: pointer-identity key
// matching cannot generally work for a non-literal computed key.
func TestComputedObjectPropertyReadIsUnsupported(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		letDecl("o", &ast.ObjectExpression{Properties: []*ast.Property{{Key: ident("x"), Value: num(1)}}}),
		letDecl("k", str("x")),
		exprStmt(&ast.CallExpression{
			Callee:    ident("print"),
			Arguments: []ast.Node{&ast.MemberExpression{Object: ident("o"), Property: ident("k"), Computed: true}},
		}),
	}}
	info, err := analyzer.Analyze(prog)
	require.NoError(t, err)
	_, err = Generate(prog, info, config.Default())
	require.Error(t, err)
}

// a nested function declaration that captures an outer variable is
// unsupported; only the closure-expression-initializer pattern captures.
func TestNestedFunctionDeclarationCapturingOuterIsUnsupported(t *testing.T) {
	outer := &ast.FunctionDeclaration{Function: ast.Function{
		Id: ident("outer"),
		Body: &ast.BlockStatement{Body: []ast.Node{
			letDecl("x", num(1)),
			&ast.FunctionDeclaration{Function: ast.Function{
				Id:   ident("inner"),
				Body: &ast.BlockStatement{Body: []ast.Node{&ast.ReturnStatement{Argument: ident("x")}}},
			}},
			&ast.ReturnStatement{Argument: num(0)},
		}},
	}}
	prog := &ast.Program{Body: []ast.Node{outer}}
	info, err := analyzer.Analyze(prog)
	require.NoError(t, err)
	_, err = Generate(prog, info, config.Default())
	require.Error(t, err)
}

// typeof/void/!/- unary operators round-trip through the generator
// without error.
func TestUnaryOperators(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{
			&ast.UnaryExpression{Operator: "typeof", Argument: num(1)},
		}}),
		exprStmt(&ast.UnaryExpression{Operator: "void", Argument: num(1)}),
		exprStmt(&ast.UnaryExpression{Operator: "!", Argument: &ast.Literal{Kind: ast.LiteralBoolean, Bool: false}}),
		exprStmt(&ast.UnaryExpression{Operator: "-", Argument: num(1)}),
	}}
	m := generate(t, prog)
	main, _ := m.FunctionByName("#main")
	require.Equal(t, ir.Lowered, main.State)
}

// let i = 0; i++; ++i; matches the prefix/postfix UpdateExpression forms.
func TestUpdateExpressionPrefixAndPostfix(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		letDecl("i", num(0)),
		exprStmt(&ast.UpdateExpression{Operator: "++", Argument: ident("i"), Prefix: false}),
		exprStmt(&ast.UpdateExpression{Operator: "++", Argument: ident("i"), Prefix: true}),
	}}
	m := generate(t, prog)
	main, _ := m.FunctionByName("#main")
	require.Equal(t, ir.Lowered, main.State)
}

// with config.Closures off, the generator gets a zero-value Info and must
// still lower non-capturing code without consulting any scope/capture
// data, addressing every variable as a plain local by its source name.
func TestGenerateWithClosuresDisabled(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		letDecl("x", num(1)),
		exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{ident("x")}}),
	}}
	cfg := config.Default()
	cfg.Closures = false
	info := &analyzer.Info{Program: &analyzer.Scope{}}
	m, err := Generate(prog, info, cfg)
	require.NoError(t, err)
	main, ok := m.FunctionByName("#main")
	require.True(t, ok)
	require.Equal(t, ir.Lowered, main.State)
}

// confirms the runtime value-type id pushed for a number literal matches
// types.Number, the convention every (value, type) pair in this module
// relies on.
func TestNumberLiteralPushesNumberTypeTag(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{num(42)}}),
	}}
	m := generate(t, prog)
	main, _ := m.FunctionByName("#main")
	found := false
	for _, i := range main.Instructions {
		if i.Code == wasmcore.OpcodeI32Const && len(i.Operands) == 1 && i.Operands[0] == int64(types.Number) {
			found = true
		}
	}
	require.True(t, found)
}
