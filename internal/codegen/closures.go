package codegen

import (
	"github.com/wasmlang/compiler/ast"
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/types"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

// functionLiteralBody extracts the embedded ast.Function from a function
// literal node, or nil if n is not one.
func functionLiteralBody(n ast.Node) *ast.Function {
	switch v := n.(type) {
	case *ast.FunctionExpression:
		return &v.Function
	case *ast.ArrowFunctionExpression:
		return &v.Function
	}
	return nil
}

// reserveLiteral reserves the ir.Function for a function-literal node,
// memoized so the same literal is never reserved twice whether it is
// reached through closure tracing or through ordinary expression lowering
// (Closures).
func (g *Generator) reserveLiteral(owner ast.Node, fn *ast.Function) *ir.Function {
	if existing, ok := g.litFn[owner]; ok {
		return existing
	}
	irFn := g.reserveNamedFunction(g.nextAnonName(), fn, owner)
	g.litFn[owner] = irFn
	return irFn
}

// traceClosureTarget recognizes the two initializer shapes that resolve
// to a statically callable closure target: a bare function literal, or
// an immediately-invoked, zero-argument function expression whose body
// returns one. inlineStmts is the factory's leading statements (empty
// unless the IIFE shape matched) — the caller must lower them into its
// own function before the literal's captures are read, since this core
// never actually compiles the factory as a callable function of its own
// (Closures: traced patterns only, single-level nesting).
func (g *Generator) traceClosureTarget(init ast.Node) (litNode ast.Node, litBody *ast.Function, inlineStmts []ast.Node) {
	if body := functionLiteralBody(init); body != nil {
		return init, body, nil
	}
	call, ok := init.(*ast.CallExpression)
	if !ok || len(call.Arguments) != 0 {
		return nil, nil, nil
	}
	factory := functionLiteralBody(call.Callee)
	if factory == nil || len(factory.Params) != 0 || factory.Body == nil {
		return nil, nil, nil
	}
	for i, s := range factory.Body.Body {
		ret, ok := s.(*ast.ReturnStatement)
		if !ok {
			continue
		}
		if body := functionLiteralBody(ret.Argument); body != nil {
			return ret.Argument, body, factory.Body.Body[:i]
		}
		break
	}
	return nil, nil, nil
}

// lowerVariableInit lowers a declarator's initializer and stores the
// result into uniqueName, tracing the closure-factory pattern first so a
// later direct call through this binding resolves statically.
func (fc *funcCtx) lowerVariableInit(uniqueName string, init ast.Node) error {
	if init == nil {
		fc.declareLocal(uniqueName)
		return nil
	}
	if litNode, litBody, inlineStmts := fc.gen.traceClosureTarget(init); litNode != nil {
		for _, s := range inlineStmts {
			if err := fc.lowerStmt(s); err != nil {
				return err
			}
		}
		target := fc.gen.reserveLiteral(litNode, litBody)
		fc.gen.closureTarget[uniqueName] = target
		if err := fc.emitClosureValue(litNode, target); err != nil {
			return err
		}
		fc.assignLocal(uniqueName)
		fc.declHint[uniqueName] = types.HintOf(types.Function)
		return nil
	}
	fc.declHint[uniqueName] = fc.typeHint(init)
	if err := fc.lowerExpr(init); err != nil {
		return err
	}
	fc.assignLocal(uniqueName)
	return nil
}

// lowerFunctionLiteralValue lowers a function literal reached as an
// ordinary expression (e.g. a callback argument) rather than through a
// traced variable initializer. Its captures, if any, must already be
// live cells in the current function (Closures).
func (fc *funcCtx) lowerFunctionLiteralValue(n ast.Node) error {
	body := functionLiteralBody(n)
	target := fc.gen.reserveLiteral(n, body)
	return fc.emitClosureValue(n, target)
}

// emitClosureValue builds target's environment record — one i32 cell
// pointer per captured name, laid out in the same order bindEnv reads
// them back in (Closures) — and pushes the resulting
// (envPtr, Function) pair. A target with no captures needs no record at
// all; its env pointer is simply absent from the call's argument list.
func (fc *funcCtx) emitClosureValue(node ast.Node, target *ir.Function) error {
	captures := fc.gen.funcEnv[target]
	if len(captures) == 0 {
		fc.fn.Emit(
			ir.F64Const(0),
			ir.Simple(wasmcore.OpcodeI32Const, int64(types.Function)),
		)
		return nil
	}
	alloc := fc.gen.reg.Alloc()
	env := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeI32Const, int64(len(captures)*4)),
		ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(alloc.Index)} }),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(env)),
	)
	for i, name := range captures {
		cell, ok := fc.cellSlot[name]
		if !ok {
			return unsupported(node, "closure capture %q is not available in the enclosing scope", name)
		}
		fc.fn.Emit(
			ir.Simple(wasmcore.OpcodeLocalGet, int64(env)),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(cell)),
			ir.Simple(wasmcore.OpcodeI32Store, 0, int64(i*4)),
		)
	}
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalGet, int64(env)),
		ir.Simple(wasmcore.OpcodeF64ConvertI32S),
		ir.Simple(wasmcore.OpcodeI32Const, int64(types.Function)),
	)
	return nil
}
