package codegen

import (
	"github.com/wasmlang/compiler/ast"
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/types"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

// lowerStmt lowers one statement, leaving the value stack exactly as it
// was on entry (Statement lowering).
func (fc *funcCtx) lowerStmt(n ast.Node) error {
	switch v := n.(type) {
	case *ast.VariableDeclaration:
		return fc.lowerVariableDeclaration(v)
	case *ast.BlockStatement:
		return fc.lowerBlockStatement(v)
	case *ast.ExpressionStatement:
		return fc.lowerExpressionStatement(v)
	case *ast.IfStatement:
		return fc.lowerIf(v)
	case *ast.WhileStatement:
		return fc.lowerWhile(v, "")
	case *ast.DoWhileStatement:
		return fc.lowerDoWhile(v, "")
	case *ast.ForStatement:
		return fc.lowerFor(v, "")
	case *ast.ReturnStatement:
		return fc.lowerReturn(v)
	case *ast.BreakStatement:
		return fc.lowerBreak(v)
	case *ast.ContinueStatement:
		return fc.lowerContinue(v)
	case *ast.LabeledStatement:
		return fc.lowerLabeled(v)
	case *ast.ThrowStatement:
		return fc.lowerThrow(v)
	case *ast.TryStatement:
		return fc.lowerTry(v)
	case *ast.SwitchStatement:
		return fc.lowerSwitch(v)
	case *ast.FunctionDeclaration:
		return fc.lowerNestedFunctionDeclaration(v)
	}
	return unsupported(n, "unsupported statement %q", n.Type())
}

func (fc *funcCtx) lowerVariableDeclaration(v *ast.VariableDeclaration) error {
	for _, d := range v.Declarations {
		if err := fc.lowerVariableInit(d.Id.Name, d.Init); err != nil {
			return err
		}
	}
	return nil
}

// lowerBlockStatement opens a plain Wasm `block` : it is
// never itself a break/continue target, but still occupies one level of
// branch depth for anything inside it that branches past it.
func (fc *funcCtx) lowerBlockStatement(v *ast.BlockStatement) error {
	fc.pushFrame(frameOpaque, "")
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.BlockTypeEmpty)))
	for _, s := range v.Body {
		if err := fc.lowerStmt(s); err != nil {
			return err
		}
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeEnd))
	fc.popFrame()
	return nil
}

func (fc *funcCtx) lowerExpressionStatement(v *ast.ExpressionStatement) error {
	if err := fc.lowerExpr(v.Expression); err != nil {
		return err
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeDrop), ir.Simple(wasmcore.OpcodeDrop))
	return nil
}

// pushCondition collapses the (value, type) pair currently on top of the
// stack into a plain i32 truthiness test, for every construct (`if`,
// `while`'s test, ...) that consumes a condition.
func (fc *funcCtx) pushCondition() error {
	toBool := fc.gen.toBoolFn
	if toBool == nil {
		toBool = fc.gen.toBoolean()
		fc.gen.toBoolFn = toBool
	}
	fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(toBool.Index)} }))
	return nil
}

func (fc *funcCtx) lowerIf(v *ast.IfStatement) error {
	if err := fc.lowerExpr(v.Test); err != nil {
		return err
	}
	if err := fc.pushCondition(); err != nil {
		return err
	}
	fc.pushFrame(frameOpaque, "")
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.BlockTypeEmpty)))
	if err := fc.lowerStmt(v.Consequent); err != nil {
		return err
	}
	if v.Alternate != nil {
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeElse))
		if err := fc.lowerStmt(v.Alternate); err != nil {
			return err
		}
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeEnd))
	fc.popFrame()
	return nil
}

// lowerWhile lowers `while (test) body` as an outer block (the break
// target) wrapping a loop whose top re-checks test, wrapping in turn an
// inner block around body (the continue target) so `continue` skips the
// rest of body without skipping the re-test.
func (fc *funcCtx) lowerWhile(v *ast.WhileStatement, label string) error {
	fc.pushFrame(frameBlock, label)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.BlockTypeEmpty)))
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeLoop, int64(wasmcore.BlockTypeEmpty)))
	if err := fc.lowerExpr(v.Test); err != nil {
		return err
	}
	if err := fc.pushCondition(); err != nil {
		return err
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32Eqz), ir.Simple(wasmcore.OpcodeBrIf, 1))
	fc.pushFrame(frameLoop, label)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.BlockTypeEmpty)))
	if err := fc.lowerStmt(v.Body); err != nil {
		return err
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeEnd))
	fc.popFrame()
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeBr, 0),
		ir.Simple(wasmcore.OpcodeEnd),
		ir.Simple(wasmcore.OpcodeEnd),
	)
	fc.popFrame()
	return nil
}

// lowerDoWhile mirrors lowerWhile with the test moved to the bottom,
// branching back conditionally instead of falling through unconditionally.
func (fc *funcCtx) lowerDoWhile(v *ast.DoWhileStatement, label string) error {
	fc.pushFrame(frameBlock, label)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.BlockTypeEmpty)))
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeLoop, int64(wasmcore.BlockTypeEmpty)))
	fc.pushFrame(frameLoop, label)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.BlockTypeEmpty)))
	if err := fc.lowerStmt(v.Body); err != nil {
		return err
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeEnd))
	fc.popFrame()
	if err := fc.lowerExpr(v.Test); err != nil {
		return err
	}
	if err := fc.pushCondition(); err != nil {
		return err
	}
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeBrIf, 0),
		ir.Simple(wasmcore.OpcodeEnd),
		ir.Simple(wasmcore.OpcodeEnd),
	)
	fc.popFrame()
	return nil
}

// lowerFor desugars the three-clause for loop into the same
// block/loop/block shape as lowerWhile, running Update between the
// continue target's end and the branch back to the loop's top so
// `continue` still runs Update before re-testing.
func (fc *funcCtx) lowerFor(v *ast.ForStatement, label string) error {
	if v.Init != nil {
		if err := fc.lowerForInit(v.Init); err != nil {
			return err
		}
	}
	fc.pushFrame(frameBlock, label)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.BlockTypeEmpty)))
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeLoop, int64(wasmcore.BlockTypeEmpty)))
	if v.Test != nil {
		if err := fc.lowerExpr(v.Test); err != nil {
			return err
		}
		if err := fc.pushCondition(); err != nil {
			return err
		}
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32Eqz), ir.Simple(wasmcore.OpcodeBrIf, 1))
	}
	fc.pushFrame(frameLoop, label)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.BlockTypeEmpty)))
	if err := fc.lowerStmt(v.Body); err != nil {
		return err
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeEnd))
	fc.popFrame()
	if v.Update != nil {
		if err := fc.lowerExpr(v.Update); err != nil {
			return err
		}
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeDrop), ir.Simple(wasmcore.OpcodeDrop))
	}
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeBr, 0),
		ir.Simple(wasmcore.OpcodeEnd),
		ir.Simple(wasmcore.OpcodeEnd),
	)
	fc.popFrame()
	return nil
}

// lowerForInit lowers a for-loop's Init clause, which the grammar allows
// to be either a VariableDeclaration or a bare expression.
func (fc *funcCtx) lowerForInit(n ast.Node) error {
	if decl, ok := n.(*ast.VariableDeclaration); ok {
		return fc.lowerVariableDeclaration(decl)
	}
	if err := fc.lowerExpr(n); err != nil {
		return err
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeDrop), ir.Simple(wasmcore.OpcodeDrop))
	return nil
}

func (fc *funcCtx) lowerReturn(v *ast.ReturnStatement) error {
	if v.Argument == nil {
		fc.fn.Emit(ir.F64Const(0), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Undefined)))
	} else if err := fc.lowerExpr(v.Argument); err != nil {
		return err
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeReturn))
	return nil
}

func (fc *funcCtx) lowerBreak(v *ast.BreakStatement) error {
	depth, ok := fc.branchDepth(v.Label, false)
	if !ok {
		return unsupported(v, "break has no enclosing loop, switch, or label to target")
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeBr, int64(depth)))
	return nil
}

func (fc *funcCtx) lowerContinue(v *ast.ContinueStatement) error {
	depth, ok := fc.branchDepth(v.Label, true)
	if !ok {
		return unsupported(v, "continue has no enclosing loop to target")
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeBr, int64(depth)))
	return nil
}

// lowerLabeled attaches Label to the loop's own break/continue frames
// when Body is a loop, so `break outer`/`continue outer` work the same
// as their unlabeled forms one level in; for any other statement, Label
// only supports `break` (JS forbids `continue` to a non-loop label) via
// a plain wrapping block.
func (fc *funcCtx) lowerLabeled(v *ast.LabeledStatement) error {
	switch body := v.Body.(type) {
	case *ast.WhileStatement:
		return fc.lowerWhile(body, v.Label)
	case *ast.DoWhileStatement:
		return fc.lowerDoWhile(body, v.Label)
	case *ast.ForStatement:
		return fc.lowerFor(body, v.Label)
	}
	fc.pushFrame(frameBlock, v.Label)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.BlockTypeEmpty)))
	if err := fc.lowerStmt(v.Body); err != nil {
		return err
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeEnd))
	fc.popFrame()
	return nil
}

func (fc *funcCtx) lowerThrow(v *ast.ThrowStatement) error {
	if err := fc.lowerExpr(v.Argument); err != nil {
		return err
	}
	tag := fc.gen.exceptionTag()
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeThrow, int64(tag.Index)))
	return nil
}

// lowerTry lowers try/catch/finally to the Wasm exception-handling
// proposal's try/catch/catch_all/end . A Finalizer runs
// both on the normal fall-through path and, via a wrapping catch_all
// that rethrows, on every exceptional path — including one the Handler
// itself raises.
func (fc *funcCtx) lowerTry(v *ast.TryStatement) error {
	if v.Finalizer == nil {
		return fc.lowerTryCatch(v.Block, v.Handler)
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeTry, int64(wasmcore.BlockTypeEmpty)))
	fc.pushFrame(frameOpaque, "")
	if err := fc.lowerTryCatch(v.Block, v.Handler); err != nil {
		return err
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeCatchAll))
	for _, s := range v.Finalizer.Body {
		if err := fc.lowerStmt(s); err != nil {
			return err
		}
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeRethrow, 0), ir.Simple(wasmcore.OpcodeEnd))
	fc.popFrame()
	for _, s := range v.Finalizer.Body {
		if err := fc.lowerStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (fc *funcCtx) lowerTryCatch(block *ast.BlockStatement, handler *ast.CatchClause) error {
	tag := fc.gen.exceptionTag()
	fc.pushFrame(frameOpaque, "")
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeTry, int64(wasmcore.BlockTypeEmpty)))
	for _, s := range block.Body {
		if err := fc.lowerStmt(s); err != nil {
			return err
		}
	}
	if handler != nil {
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeCatch, int64(tag.Index)))
		if handler.Param != nil {
			fc.assignLocal(handler.Param.Name)
		} else {
			fc.fn.Emit(ir.Simple(wasmcore.OpcodeDrop), ir.Simple(wasmcore.OpcodeDrop))
		}
		for _, s := range handler.Body.Body {
			if err := fc.lowerStmt(s); err != nil {
				return err
			}
		}
	}
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeEnd))
	fc.popFrame()
	return nil
}

// lowerSwitch lowers a switch statement as a cascade of sticky equality
// tests: a `matched` flag is
// OR'd in by every case whose test equals the discriminant, and stays
// set for every case below it, reproducing fallthrough without a real
// jump table. Case tests are evaluated unconditionally for every case
// rather than short-circuited at the first match, a deliberate
// simplification; `default`, when present, must be the last case.
func (fc *funcCtx) lowerSwitch(v *ast.SwitchStatement) error {
	for i, c := range v.Cases {
		if c.Test == nil && i != len(v.Cases)-1 {
			return unsupported(c, "a switch's default case must be last")
		}
	}
	fc.pushFrame(frameBlock, "")
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.BlockTypeEmpty)))

	if err := fc.lowerExpr(v.Discriminant); err != nil {
		return err
	}
	dt := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	dv := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalSet, int64(dt)),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(dv)),
	)
	matched := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32Const, 0), ir.Simple(wasmcore.OpcodeLocalSet, int64(matched)))

	discHint := fc.typeHint(v.Discriminant)
	for _, c := range v.Cases {
		if c.Test != nil {
			fc.fn.Emit(
				ir.Simple(wasmcore.OpcodeLocalGet, int64(dv)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(dt)),
			)
			if err := fc.lowerExpr(c.Test); err != nil {
				return err
			}
			if err := fc.lowerBinaryOpCore(c, "==", discHint, fc.typeHint(c.Test)); err != nil {
				return err
			}
			if err := fc.pushCondition(); err != nil {
				return err
			}
			fc.fn.Emit(
				ir.Simple(wasmcore.OpcodeLocalGet, int64(matched)),
				ir.Simple(wasmcore.OpcodeI32Or),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(matched)),
			)
		} else {
			fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32Const, 1), ir.Simple(wasmcore.OpcodeLocalSet, int64(matched)))
		}
		fc.fn.Emit(
			ir.Simple(wasmcore.OpcodeLocalGet, int64(matched)),
			ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.BlockTypeEmpty)),
		)
		fc.pushFrame(frameOpaque, "")
		for _, s := range c.Consequent {
			if err := fc.lowerStmt(s); err != nil {
				return err
			}
		}
		fc.popFrame()
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeEnd))
	}

	fc.fn.Emit(ir.Simple(wasmcore.OpcodeEnd))
	fc.popFrame()
	return nil
}

// lowerNestedFunctionDeclaration reserves a function declared inside
// another function's body. Captures are supported only through the
// traced closure-factory initializer pattern (see closures.go); a nested
// declaration the analyzer flagged as capturing anything is an
// UnsupportedError rather than silently dropping the capture.
func (fc *funcCtx) lowerNestedFunctionDeclaration(v *ast.FunctionDeclaration) error {
	if _, ok := fc.gen.funcByName[v.Id.Name]; ok {
		return nil
	}
	if len(fc.gen.captureNamesFor(v)) > 0 {
		return unsupported(v, "nested function declarations that capture outer variables are not supported; assign a closure expression to a variable instead")
	}
	fc.gen.reserveNamedFunction(v.Id.Name, &v.Function, v)
	return nil
}
