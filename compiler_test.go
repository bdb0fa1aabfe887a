package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmlang/compiler/ast"
	"github.com/wasmlang/compiler/internal/analyzer"
	"github.com/wasmlang/compiler/internal/codegen"
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/telemetry"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

func ident(name string) *ast.Identifier { return &ast.Identifier{Name: name} }

func num(v float64) *ast.Literal { return &ast.Literal{Kind: ast.LiteralNumber, Num: v} }

func exprStmt(n ast.Node) *ast.ExpressionStatement { return &ast.ExpressionStatement{Expression: n} }

func letDecl(name string, init ast.Node) *ast.VariableDeclaration {
	return &ast.VariableDeclaration{Kind: ast.KindLet, Declarations: []*ast.VariableDeclarator{
		{Id: ident(name), Init: init},
	}}
}

// let x = 1; print(x + 2);
func TestCompileEndToEnd(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		letDecl("x", num(1)),
		exprStmt(&ast.CallExpression{
			Callee:    ident("print"),
			Arguments: []ast.Node{&ast.BinaryExpression{Operator: "+", Left: ident("x"), Right: num(2)}},
		}),
	}}

	result, err := Compile(prog, DefaultConfig(), nil)
	require.NoError(t, err)
	require.Equal(t, wasmcore.Magic[:], result.Binary[0:4])
	require.Equal(t, wasmcore.Version[:], result.Binary[4:8])
	var names []telemetry.Stage
	for _, s := range result.Report.Stages {
		names = append(names, s.Stage)
	}
	require.Equal(t, []telemetry.Stage{
		telemetry.StageAnalyze, telemetry.StageGenerate, telemetry.StageOptimize, telemetry.StageAssemble,
	}, names)
}

func TestCompileReturnsStageError(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		exprStmt(&ast.CallExpression{Callee: ident("notAFunction"), Arguments: nil}),
	}}

	_, err := Compile(prog, DefaultConfig(), nil)
	require.Error(t, err)
}

func TestCompileJSONRoundTrips(t *testing.T) {
	doc := []byte(`{
		"type": "Program",
		"body": [
			{"type": "ExpressionStatement", "expression": {
				"type": "CallExpression",
				"callee": {"type": "Identifier", "name": "print"},
				"arguments": [{"type": "Literal", "value": 42}]
			}}
		]
	}`)

	result, err := CompileJSON(doc, DefaultConfig(), nil)
	require.NoError(t, err)
	require.Equal(t, wasmcore.Magic[:], result.Binary[0:4])
}

func TestCompileWithNoHostImports(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		letDecl("x", num(1)),
	}}

	result, err := Compile(prog, DefaultConfig(), nil)
	require.NoError(t, err)
	require.NotEmpty(t, result.Binary)
}

// let x = 10; for (let i = 0; i < 3; i = i + 1) x = x + i; print(x);
// x ends up 10 + 0 + 1 + 2 == 13. This only checks that the pipeline
// accepts the loop and assembles a valid binary — it does not execute
// the result, so it cannot observe the `13` itself (no Wasm runtime is
// wired into this module; see DESIGN.md).
func TestCompileForLoopSumScenario(t *testing.T) {
	loop := &ast.ForStatement{
		Init: letDecl("i", num(0)),
		Test: &ast.BinaryExpression{Operator: "<", Left: ident("i"), Right: num(3)},
		Update: &ast.AssignmentExpression{
			Operator: "=", Left: ident("i"),
			Right: &ast.BinaryExpression{Operator: "+", Left: ident("i"), Right: num(1)},
		},
		Body: &ast.BlockStatement{Body: []ast.Node{
			exprStmt(&ast.AssignmentExpression{
				Operator: "=", Left: ident("x"),
				Right: &ast.BinaryExpression{Operator: "+", Left: ident("x"), Right: ident("i")},
			}),
		}},
	}
	prog := &ast.Program{Body: []ast.Node{
		letDecl("x", num(10)),
		loop,
		exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{ident("x")}}),
	}}

	result, err := Compile(prog, DefaultConfig(), nil)
	require.NoError(t, err)
	require.Equal(t, wasmcore.Magic[:], result.Binary[0:4])
}

// function f(n) { if (n < 2) return n; return f(n-1) + f(n-2); } print(f(10));
// a recursive Fibonacci scenario (f(10) == 55). Structural-only,
// same caveat as TestCompileForLoopSumScenario.
func TestCompileRecursiveFibonacciScenario(t *testing.T) {
	fib := &ast.FunctionDeclaration{Function: ast.Function{
		Id:     ident("f"),
		Params: []*ast.Identifier{ident("n")},
		Body: &ast.BlockStatement{Body: []ast.Node{
			&ast.IfStatement{
				Test:       &ast.BinaryExpression{Operator: "<", Left: ident("n"), Right: num(2)},
				Consequent: &ast.BlockStatement{Body: []ast.Node{&ast.ReturnStatement{Argument: ident("n")}}},
			},
			&ast.ReturnStatement{Argument: &ast.BinaryExpression{
				Operator: "+",
				Left: &ast.CallExpression{Callee: ident("f"), Arguments: []ast.Node{
					&ast.BinaryExpression{Operator: "-", Left: ident("n"), Right: num(1)},
				}},
				Right: &ast.CallExpression{Callee: ident("f"), Arguments: []ast.Node{
					&ast.BinaryExpression{Operator: "-", Left: ident("n"), Right: num(2)},
				}},
			}},
		}},
	}}
	prog := &ast.Program{Body: []ast.Node{
		fib,
		exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{
			&ast.CallExpression{Callee: ident("f"), Arguments: []ast.Node{num(10)}},
		}}),
	}}

	result, err := Compile(prog, DefaultConfig(), nil)
	require.NoError(t, err)
	m, err := buildModule(prog)
	require.NoError(t, err)
	fn, ok := m.FunctionByName("f")
	require.True(t, ok)
	require.Equal(t, ir.Lowered, fn.State)
	require.Equal(t, wasmcore.Magic[:], result.Binary[0:4])
}

// let c = (function(){ let n = 0; return function(){ n += 1; return n; }; })();
// print(c()); print(c()); print(c());
// a closure-counter scenario (outputs 1, 2, 3). Structural-only:
// asserts the program compiles and the binary starts with the Wasm magic.
func TestCompileClosureCounterScenario(t *testing.T) {
	inner := &ast.FunctionExpression{Function: ast.Function{
		Body: &ast.BlockStatement{Body: []ast.Node{
			exprStmt(&ast.AssignmentExpression{
				Operator: "+=", Left: ident("n"), Right: num(1),
			}),
			&ast.ReturnStatement{Argument: ident("n")},
		}},
	}}
	factory := &ast.FunctionExpression{Function: ast.Function{
		Body: &ast.BlockStatement{Body: []ast.Node{
			letDecl("n", num(0)),
			&ast.ReturnStatement{Argument: inner},
		}},
	}}
	prog := &ast.Program{Body: []ast.Node{
		letDecl("c", &ast.CallExpression{Callee: factory}),
		exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{
			&ast.CallExpression{Callee: ident("c")},
		}}),
		exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{
			&ast.CallExpression{Callee: ident("c")},
		}}),
		exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{
			&ast.CallExpression{Callee: ident("c")},
		}}),
	}}

	result, err := Compile(prog, DefaultConfig(), nil)
	require.NoError(t, err)
	require.Equal(t, wasmcore.Magic[:], result.Binary[0:4])
}

// try { throw 42; } catch (e) { print(e); }
// a try/catch scenario (outputs 42). Structural-only: asserts the
// program compiles and the generated IR module declares the single
// #exception tag.
func TestCompileTryCatchScenario(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		&ast.TryStatement{
			Block: &ast.BlockStatement{Body: []ast.Node{
				&ast.ThrowStatement{Argument: num(42)},
			}},
			Handler: &ast.CatchClause{
				Param: ident("e"),
				Body: &ast.BlockStatement{Body: []ast.Node{
					exprStmt(&ast.CallExpression{Callee: ident("print"), Arguments: []ast.Node{ident("e")}}),
				}},
			},
		},
	}}

	result, err := Compile(prog, DefaultConfig(), nil)
	require.NoError(t, err)
	require.Equal(t, wasmcore.Magic[:], result.Binary[0:4])
	m, err := buildModule(prog)
	require.NoError(t, err)
	require.Len(t, m.Tags, 1)
	require.Equal(t, "#exception", m.Tags[0].Name)
}

// opt-passes=0 vs opt-passes=2 on the `print(1 + 2)` scenario: the
// optimizer's peephole rewrites only take effect when OptPasses > 0,
// so the opt-passes=2 binary must be
// strictly smaller; both remain structurally valid.
func TestCompileOptPassesShrinksBinarySize(t *testing.T) {
	prog := &ast.Program{Body: []ast.Node{
		exprStmt(&ast.CallExpression{
			Callee:    ident("print"),
			Arguments: []ast.Node{&ast.BinaryExpression{Operator: "+", Left: num(1), Right: num(2)}},
		}),
	}}

	unoptCfg := DefaultConfig()
	unoptCfg.OptPasses = 0
	unopt, err := Compile(prog, unoptCfg, nil)
	require.NoError(t, err)

	optCfg := DefaultConfig()
	optCfg.OptPasses = 2
	opt, err := Compile(prog, optCfg, nil)
	require.NoError(t, err)

	require.Equal(t, wasmcore.Magic[:], unopt.Binary[0:4])
	require.Equal(t, wasmcore.Magic[:], opt.Binary[0:4])
	require.Less(t, len(opt.Binary), len(unopt.Binary))
}

// buildModule replays analyze+generate (without optimize/assemble) so a
// test can inspect the IR directly, the way internal/codegen's own tests
// do via their local `generate` helper.
func buildModule(prog *ast.Program) (*ir.Module, error) {
	info, err := analyzer.Analyze(prog)
	if err != nil {
		return nil, err
	}
	return codegen.Generate(prog, info, DefaultConfig())
}
