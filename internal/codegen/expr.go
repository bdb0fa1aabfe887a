package codegen

import (
	"github.com/wasmlang/compiler/ast"
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/types"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

// typeHint returns a best-effort static type hint for n: the shape of
// the expression itself, plus — for a bare identifier — whatever hint
// its most recent declaration or assignment recorded in fc.declHint.
// It is safe to call before n has been lowered.
func (fc *funcCtx) typeHint(n ast.Node) types.Hint {
	switch v := n.(type) {
	case *ast.Identifier:
		if h, ok := fc.declHint[v.Name]; ok {
			return h
		}
		return types.UnknownHint
	case *ast.Literal:
		switch v.Kind {
		case ast.LiteralNumber:
			return types.HintOf(types.Number)
		case ast.LiteralString:
			return types.HintOf(types.String)
		case ast.LiteralBoolean:
			return types.HintOf(types.Boolean)
		case ast.LiteralNull:
			return types.HintOf(types.Null)
		case ast.LiteralRegex:
			return types.HintOf(types.Regex)
		}
	case *ast.ArrayExpression:
		return types.HintOf(types.Array)
	case *ast.ObjectExpression:
		return types.HintOf(types.Object)
	case *ast.FunctionExpression, *ast.ArrowFunctionExpression:
		return types.HintOf(types.Function)
	case *ast.BinaryExpression:
		if isComparisonOp(v.Operator) {
			return types.HintOf(types.Boolean)
		}
		return types.HintOf(types.Number)
	case *ast.UnaryExpression:
		switch v.Operator {
		case "!":
			return types.HintOf(types.Boolean)
		case "typeof":
			return types.HintOf(types.String)
		case "void":
			return types.HintOf(types.Undefined)
		default:
			return types.HintOf(types.Number)
		}
	case *ast.UpdateExpression:
		return types.HintOf(types.Number)
	case *ast.AssignmentExpression:
		if v.Operator == "=" {
			return fc.typeHint(v.Right)
		}
		return types.HintOf(types.Number)
	}
	return types.UnknownHint
}

func isComparisonOp(op string) bool {
	switch op {
	case "<", "<=", ">", ">=", "==", "!=":
		return true
	}
	return false
}

// lowerExpr pushes the (value f64, type-id i32) pair n evaluates to
// (Expression lowering).
func (fc *funcCtx) lowerExpr(n ast.Node) error {
	switch v := n.(type) {
	case *ast.Literal:
		return fc.lowerLiteral(v)
	case *ast.Identifier:
		fc.loadLocal(v.Name)
		return nil
	case *ast.BinaryExpression:
		return fc.lowerBinary(v)
	case *ast.LogicalExpression:
		return fc.lowerLogical(v)
	case *ast.UnaryExpression:
		return fc.lowerUnary(v)
	case *ast.UpdateExpression:
		return fc.lowerUpdate(v)
	case *ast.AssignmentExpression:
		return fc.lowerAssignment(v)
	case *ast.ConditionalExpression:
		return fc.lowerConditional(v)
	case *ast.CallExpression:
		return fc.lowerCall(v)
	case *ast.NewExpression:
		return fc.lowerCall(&ast.CallExpression{Callee: v.Callee, Arguments: v.Arguments})
	case *ast.MemberExpression:
		return fc.lowerMemberRead(v)
	case *ast.ArrayExpression:
		return fc.lowerArrayLiteral(v)
	case *ast.ObjectExpression:
		return fc.lowerObjectLiteral(v)
	case *ast.FunctionExpression:
		return fc.lowerFunctionLiteralValue(v)
	case *ast.ArrowFunctionExpression:
		return fc.lowerFunctionLiteralValue(v)
	}
	return unsupported(n, "unsupported expression node %q", n.Type())
}

func (fc *funcCtx) lowerLiteral(v *ast.Literal) error {
	switch v.Kind {
	case ast.LiteralNumber:
		fc.fn.Emit(ir.F64Const(v.Num), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)))
	case ast.LiteralString:
		ptr := fc.gen.allocateStaticString(v.Str)
		fc.fn.Emit(
			ir.Simple(wasmcore.OpcodeI32Const, int64(ptr)),
			ir.Simple(wasmcore.OpcodeF64ConvertI32S),
			ir.Simple(wasmcore.OpcodeI32Const, int64(types.String)),
		)
	case ast.LiteralBoolean:
		b := int64(0)
		if v.Bool {
			b = 1
		}
		fc.fn.Emit(ir.F64Const(float64(b)), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Boolean)))
	case ast.LiteralNull:
		fc.fn.Emit(ir.F64Const(0), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Null)))
	default:
		return unsupported(v, "unsupported literal kind")
	}
	return nil
}

// lowerBinaryOpCore assumes (leftVal, leftType, rightVal, rightType) are
// already pushed on the stack, in that order, and emits op's result,
// leaving a fresh (value, type) pair (Binary `+`,
// Comparison). Both BinaryExpression and compound-assignment lowering
// share this.
func (fc *funcCtx) lowerBinaryOpCore(node ast.Node, op string, leftHint, rightHint types.Hint) error {
	bothNumber := leftHint.IsConcreteNumber() && rightHint.IsConcreteNumber()
	switch op {
	case "+":
		if bothNumber {
			fc.numericValuesOnly()
			fc.fn.Emit(ir.Simple(wasmcore.OpcodeF64Add), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)))
			return nil
		}
		add := fc.gen.reg.RuntimeAdd()
		fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(add.Index)} }))
		return nil
	case "-", "*", "/":
		fc.numericValuesOnly()
		fc.fn.Emit(ir.Simple(numericOpcode(op)), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)))
		return nil
	case "%":
		fc.numericValuesOnly()
		mod := fc.gen.modFn
		if mod == nil {
			mod = fc.gen.floatMod()
			fc.gen.modFn = mod
		}
		fc.fn.Emit(
			ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(mod.Index)} }),
			ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)),
		)
		return nil
	case "<", "<=", ">", ">=", "==", "!=":
		if bothNumber {
			fc.numericValuesOnly()
			fc.fn.Emit(
				ir.Simple(compareNumOpcode(op)),
				ir.Simple(wasmcore.OpcodeF64ConvertI32S),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Boolean)),
			)
			return nil
		}
		cmp := fc.gen.reg.RuntimeCompare(op)
		fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(cmp.Index)} }))
		return nil
	}
	return unsupported(node, "unsupported binary operator %q", op)
}

// dropType drops the top-of-stack i32 type tag, leaving the f64 value
// beneath it.
func (fc *funcCtx) dropType() {
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeDrop))
}

// numericValuesOnly narrows a four-value stack [lv, lt, rv, rt] down to
// [lv, rv], discarding both type tags. Wasm has no stack-reordering
// instruction besides locals, so the pair is routed through scratch
// locals rather than shuffled in place.
func (fc *funcCtx) numericValuesOnly() {
	rt := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	rv := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
	lt := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalSet, int64(rt)),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(rv)),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(lt)),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(rv)),
	)
}

func numericOpcode(op string) wasmcore.Opcode {
	switch op {
	case "-":
		return wasmcore.OpcodeF64Sub
	case "*":
		return wasmcore.OpcodeF64Mul
	default:
		return wasmcore.OpcodeF64Div
	}
}

func compareNumOpcode(op string) wasmcore.Opcode {
	switch op {
	case "<":
		return wasmcore.OpcodeF64Lt
	case "<=":
		return wasmcore.OpcodeF64Le
	case ">":
		return wasmcore.OpcodeF64Gt
	case ">=":
		return wasmcore.OpcodeF64Ge
	case "!=":
		return wasmcore.OpcodeF64Ne
	default:
		return wasmcore.OpcodeF64Eq
	}
}

func (fc *funcCtx) lowerBinary(v *ast.BinaryExpression) error {
	if err := fc.lowerExpr(v.Left); err != nil {
		return err
	}
	if err := fc.lowerExpr(v.Right); err != nil {
		return err
	}
	return fc.lowerBinaryOpCore(v, v.Operator, fc.typeHint(v.Left), fc.typeHint(v.Right))
}

// lowerLogical lowers "&&"/"||" via the scratch-local pattern (an empty-
// blocktype if/else that assigns two result locals, loaded after `end`),
// avoiding the Wasm multi-value block types this compiler's IR does not
// model.
func (fc *funcCtx) lowerLogical(v *ast.LogicalExpression) error {
	if err := fc.lowerExpr(v.Left); err != nil {
		return err
	}
	lv := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
	lt := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalSet, int64(lt)),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(lv)),
	)
	toBool := fc.gen.toBoolFn
	if toBool == nil {
		toBool = fc.gen.toBoolean()
		fc.gen.toBoolFn = toBool
	}
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalGet, int64(lv)),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(lt)),
		ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(toBool.Index)} }),
	)
	if v.Operator == "||" {
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32Eqz))
	}
	resV := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
	resT := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.BlockTypeEmpty)))
	if err := fc.lowerExpr(v.Right); err != nil {
		return err
	}
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalSet, int64(resT)),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(resV)),
		ir.Simple(wasmcore.OpcodeElse),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(lt)),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(resT)),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(lv)),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(resV)),
		ir.Simple(wasmcore.OpcodeEnd),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(resV)),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(resT)),
	)
	return nil
}

func (fc *funcCtx) lowerUnary(v *ast.UnaryExpression) error {
	switch v.Operator {
	case "-":
		if err := fc.lowerExpr(v.Argument); err != nil {
			return err
		}
		fc.dropType()
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeF64Neg), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)))
		return nil
	case "+":
		if err := fc.lowerExpr(v.Argument); err != nil {
			return err
		}
		fc.dropType()
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)))
		return nil
	case "!":
		if err := fc.lowerExpr(v.Argument); err != nil {
			return err
		}
		toBool := fc.gen.toBoolFn
		if toBool == nil {
			toBool = fc.gen.toBoolean()
			fc.gen.toBoolFn = toBool
		}
		fc.fn.Emit(
			ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(toBool.Index)} }),
			ir.Simple(wasmcore.OpcodeI32Eqz),
			ir.Simple(wasmcore.OpcodeF64ConvertI32S),
			ir.Simple(wasmcore.OpcodeI32Const, int64(types.Boolean)),
		)
		return nil
	case "typeof":
		if err := fc.lowerExpr(v.Argument); err != nil {
			return err
		}
		typeofFn := fc.gen.typeofFn
		if typeofFn == nil {
			typeofFn = fc.gen.typeofValue()
			fc.gen.typeofFn = typeofFn
		}
		fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(typeofFn.Index)} }))
		return nil
	case "void":
		if err := fc.lowerExpr(v.Argument); err != nil {
			return err
		}
		fc.dropType()
		fc.dropType()
		fc.fn.Emit(ir.F64Const(0), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Undefined)))
		return nil
	}
	return unsupported(v, "unsupported unary operator %q", v.Operator)
}

func (fc *funcCtx) lowerUpdate(v *ast.UpdateExpression) error {
	ident, ok := v.Argument.(*ast.Identifier)
	if !ok {
		return unsupported(v, "update expression target must be an identifier")
	}
	fc.loadLocal(ident.Name)
	fc.dropType()
	delta := 1.0
	if v.Operator == "--" {
		delta = -1.0
	}
	old := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalTee, int64(old)),
		ir.F64Const(delta),
		ir.Simple(wasmcore.OpcodeF64Add),
	)
	newv := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeLocalTee, int64(newv)), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)))
	fc.assignLocal(ident.Name)
	fc.declHint[ident.Name] = types.HintOf(types.Number)
	if v.Prefix {
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeLocalGet, int64(newv)), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)))
	} else {
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeLocalGet, int64(old)), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)))
	}
	return nil
}

func (fc *funcCtx) lowerAssignment(v *ast.AssignmentExpression) error {
	if mem, ok := v.Left.(*ast.MemberExpression); ok {
		return fc.lowerMemberAssign(mem, v)
	}
	ident, ok := v.Left.(*ast.Identifier)
	if !ok {
		return unsupported(v, "unsupported assignment target")
	}
	if v.Operator == "=" {
		fc.declHint[ident.Name] = fc.typeHint(v.Right)
		if err := fc.lowerExpr(v.Right); err != nil {
			return err
		}
		valType := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
		valV := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeLocalSet, int64(valType)), ir.Simple(wasmcore.OpcodeLocalSet, int64(valV)))
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeLocalGet, int64(valV)), ir.Simple(wasmcore.OpcodeLocalGet, int64(valType)))
		fc.assignLocal(ident.Name)
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeLocalGet, int64(valV)), ir.Simple(wasmcore.OpcodeLocalGet, int64(valType)))
		return nil
	}
	op := v.Operator[:len(v.Operator)-1] // "+=" -> "+"
	fc.loadLocal(ident.Name)
	if err := fc.lowerExpr(v.Right); err != nil {
		return err
	}
	if err := fc.lowerBinaryOpCore(v, op, fc.typeHint(v.Left), fc.typeHint(v.Right)); err != nil {
		return err
	}
	fc.declHint[ident.Name] = types.HintOf(types.Number)
	valType := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	valV := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeLocalSet, int64(valType)), ir.Simple(wasmcore.OpcodeLocalSet, int64(valV)))
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeLocalGet, int64(valV)), ir.Simple(wasmcore.OpcodeLocalGet, int64(valType)))
	fc.assignLocal(ident.Name)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeLocalGet, int64(valV)), ir.Simple(wasmcore.OpcodeLocalGet, int64(valType)))
	return nil
}

// lowerConditional lowers the ternary via the same scratch-local pattern
// as "&&"/"||".
func (fc *funcCtx) lowerConditional(v *ast.ConditionalExpression) error {
	if err := fc.lowerExpr(v.Test); err != nil {
		return err
	}
	toBool := fc.gen.toBoolFn
	if toBool == nil {
		toBool = fc.gen.toBoolean()
		fc.gen.toBoolFn = toBool
	}
	fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(toBool.Index)} }))
	resV := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
	resT := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.BlockTypeEmpty)))
	if err := fc.lowerExpr(v.Consequent); err != nil {
		return err
	}
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalSet, int64(resT)),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(resV)),
		ir.Simple(wasmcore.OpcodeElse),
	)
	if err := fc.lowerExpr(v.Alternate); err != nil {
		return err
	}
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalSet, int64(resT)),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(resV)),
		ir.Simple(wasmcore.OpcodeEnd),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(resV)),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(resT)),
	)
	return nil
}

// lowerCall lowers a CallExpression (Call). Three callee
// shapes resolve: a plain identifier naming a reserved top-level function
// (direct dispatch, no environment); a plain identifier traced to a
// closure target (see closures.go); or a member access on a receiver
// whose static type hint resolves a built-in prototype method. Anything
// else — in particular calling a function value obtained through any
// path other than the traced closure-factory pattern, since this IR has
// no call_indirect/table — is an UnsupportedError.
func (fc *funcCtx) lowerCall(v *ast.CallExpression) error {
	switch callee := v.Callee.(type) {
	case *ast.Identifier:
		if fn, ok := fc.gen.funcByName[callee.Name]; ok {
			return fc.emitDirectCall(fn, v.Arguments, nil)
		}
		if target, ok := fc.gen.closureTarget[callee.Name]; ok {
			var pushEnv func() error
			if len(fc.gen.funcEnv[target]) > 0 {
				pushEnv = func() error {
					fc.loadLocal(callee.Name)
					fc.dropType()
					fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32TruncF64S))
					return nil
				}
			}
			return fc.emitDirectCall(target, v.Arguments, pushEnv)
		}
		return fc.lowerHostCall(callee, v.Arguments)
	case *ast.MemberExpression:
		return fc.lowerMethodCall(callee, v.Arguments)
	}
	return unsupported(v, "call target is not statically resolvable")
}

// emitDirectCall pushes every argument as a (value, type) pair, then —
// when pushEnv is non-nil — the callee's trailing environment pointer,
// and emits a deferred call to target's final index. target is
// demand-materialized here if it has not been lowered yet, the payoff
// of reserving every function ahead of its body.
func (fc *funcCtx) emitDirectCall(target *ir.Function, args []ast.Node, pushEnv func() error) error {
	for _, a := range args {
		if err := fc.lowerExpr(a); err != nil {
			return err
		}
	}
	if pushEnv != nil {
		if err := pushEnv(); err != nil {
			return err
		}
	}
	if err := target.EnsureLowered(); err != nil {
		return err
	}
	fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(target.Index)} }))
	return nil
}

// lowerHostCall dispatches the fixed set of host imports callable by bare
// name (Runtime import interface); any other unresolved
// identifier callee is a diag.UnsupportedError. callee anchors every
// diagnostic here, including the unresolved-name case: it is always a real
// node, unlike an argument list that may be empty.
func (fc *funcCtx) lowerHostCall(callee *ast.Identifier, args []ast.Node) error {
	name := callee.Name
	switch name {
	case "print":
		if len(args) != 1 {
			return unsupported(callee, "print expects exactly one argument")
		}
		if err := fc.lowerExpr(args[0]); err != nil {
			return err
		}
		fc.dropType()
		imp := fc.gen.reg.Print()
		fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(imp.Index)} }))
		fc.fn.Emit(ir.F64Const(0), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Undefined)))
		return nil
	case "printChar":
		if len(args) != 1 {
			return unsupported(callee, "printChar expects exactly one argument")
		}
		if err := fc.lowerExpr(args[0]); err != nil {
			return err
		}
		fc.dropType()
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32TruncF64S))
		imp := fc.gen.reg.PrintChar()
		fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(imp.Index)} }))
		fc.fn.Emit(ir.F64Const(0), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Undefined)))
		return nil
	case "time", "timeOrigin":
		var imp *ir.Import
		if name == "time" {
			imp = fc.gen.reg.Time()
		} else {
			imp = fc.gen.reg.TimeOrigin()
		}
		fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(imp.Index)} }))
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)))
		return nil
	}
	return unsupported(callee, "unresolved call target %q", name)
}

// lowerMethodCall dispatches a built-in prototype method, keyed by the
// receiver's STATIC type hint since this core's method table is
// resolved at compile time, not by a runtime vtable lookup.
func (fc *funcCtx) lowerMethodCall(member *ast.MemberExpression, args []ast.Node) error {
	if member.Computed {
		return unsupported(member, "computed method calls are not supported")
	}
	name, ok := member.Property.(*ast.Identifier)
	if !ok {
		return unsupported(member, "method name must be a plain identifier")
	}
	recvHint := fc.typeHint(member.Object)
	if recvHint.IsUnion || recvHint.Concrete == types.Unknown {
		return unsupported(member, "cannot resolve method %q: receiver type is not statically known", name.Name)
	}
	fn, ok := fc.gen.reg.Method(recvHint.Concrete, name.Name)
	if !ok {
		return unsupported(member, "unsupported method %q on %s", name.Name, recvHint.Concrete.Name())
	}
	if err := fc.lowerExpr(member.Object); err != nil {
		return err
	}
	switch recvHint.Concrete {
	case types.Number:
		fc.dropType() // receiver is the raw f64 number itself
	default:
		fc.dropType()
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32TruncF64S)) // receiver is an i32 pointer
	}
	switch {
	case recvHint.Concrete == types.Array && name.Name == "push":
		if len(args) != 1 {
			return unsupported(member, "push expects exactly one argument")
		}
		if err := fc.lowerExpr(args[0]); err != nil {
			return err
		}
	case recvHint.Concrete == types.String && name.Name == "charAt":
		if len(args) != 1 {
			return unsupported(member, "charAt expects exactly one argument")
		}
		if err := fc.lowerExpr(args[0]); err != nil {
			return err
		}
		fc.dropType()
	case len(args) != 0:
		return unsupported(member, "%q takes no arguments", name.Name)
	}
	fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(fn.Index)} }))
	return nil
}

// lowerMemberRead lowers a property/element READ (supplemented
// coverage). A computed access on an Array or String reads one element/
// byte by index; a non-computed access on an Object reads a property by
// interned key pointer; anything else (computed object access, since keys
// would need runtime string comparison rather than pointer equality) is
// unsupported.
func (fc *funcCtx) lowerMemberRead(v *ast.MemberExpression) error {
	recvHint := fc.typeHint(v.Object)
	if v.Computed {
		switch recvHint.Concrete {
		case types.Array:
			return fc.lowerArrayIndexRead(v)
		case types.String:
			fn, _ := fc.gen.reg.Method(types.String, "charAt")
			if err := fc.lowerExpr(v.Object); err != nil {
				return err
			}
			fc.dropType()
			fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32TruncF64S))
			if err := fc.lowerExpr(v.Property); err != nil {
				return err
			}
			fc.dropType()
			fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(fn.Index)} }))
			return nil
		}
		return unsupported(v, "computed member access is only supported on arrays and strings")
	}
	ident, ok := v.Property.(*ast.Identifier)
	if !ok {
		return unsupported(v, "member property must be a plain identifier")
	}
	if recvHint.Concrete == types.Array || recvHint.Concrete == types.String {
		if fn, ok := fc.gen.reg.Method(recvHint.Concrete, ident.Name); ok {
			if err := fc.lowerExpr(v.Object); err != nil {
				return err
			}
			fc.dropType()
			fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32TruncF64S))
			fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(fn.Index)} }))
			return nil
		}
	}
	if err := fc.lowerExpr(v.Object); err != nil {
		return err
	}
	fc.dropType()
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32TruncF64S))
	keyPtr := fc.gen.internString(ident.Name)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32Const, int64(keyPtr)))
	getFn := fc.gen.objectGet()
	fc.fn.Emit(ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(getFn.Index)} }))
	return nil
}

// arrayElementAddr pushes arrPtr+4+idx*12, the address of an array
// element's (value, type) pair, consuming nothing already on the stack:
// it lowers v.Object and v.Property itself.
func (fc *funcCtx) arrayElementAddr(v *ast.MemberExpression) error {
	if err := fc.lowerExpr(v.Object); err != nil {
		return err
	}
	fc.dropType()
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeI32TruncF64S))
	if err := fc.lowerExpr(v.Property); err != nil {
		return err
	}
	fc.dropType()
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeI32TruncF64S),
		ir.Simple(wasmcore.OpcodeI32Const, 12),
		ir.Simple(wasmcore.OpcodeI32Mul),
		ir.Simple(wasmcore.OpcodeI32Add),
		ir.Simple(wasmcore.OpcodeI32Const, 4),
		ir.Simple(wasmcore.OpcodeI32Add),
	)
	return nil
}

func (fc *funcCtx) lowerArrayIndexRead(v *ast.MemberExpression) error {
	if err := fc.arrayElementAddr(v); err != nil {
		return err
	}
	addr := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalTee, int64(addr)),
		ir.Simple(wasmcore.OpcodeF64Load, 0, 0),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(addr)),
		ir.Simple(wasmcore.OpcodeI32Load, 0, 8),
	)
	return nil
}

// lowerMemberAssign lowers `arr[i] = expr` and its compound forms.
// Assigning to an object property, or to a string index, is outside
// this core's scope: object
// literals are treated as having a fixed property set once constructed,
// and strings are immutable, matching the source language itself.
func (fc *funcCtx) lowerMemberAssign(mem *ast.MemberExpression, v *ast.AssignmentExpression) error {
	if !mem.Computed || fc.typeHint(mem.Object).Concrete != types.Array {
		return unsupported(v, "assignment target must be a computed array index")
	}
	if err := fc.arrayElementAddr(mem); err != nil {
		return err
	}
	addr := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	fc.fn.Emit(ir.Simple(wasmcore.OpcodeLocalSet, int64(addr)))
	if v.Operator != "=" {
		fc.fn.Emit(
			ir.Simple(wasmcore.OpcodeLocalGet, int64(addr)),
			ir.Simple(wasmcore.OpcodeF64Load, 0, 0),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(addr)),
			ir.Simple(wasmcore.OpcodeI32Load, 0, 8),
		)
		if err := fc.lowerExpr(v.Right); err != nil {
			return err
		}
		op := v.Operator[:len(v.Operator)-1]
		if err := fc.lowerBinaryOpCore(v, op, fc.typeHint(mem), fc.typeHint(v.Right)); err != nil {
			return err
		}
	} else {
		if err := fc.lowerExpr(v.Right); err != nil {
			return err
		}
	}
	resT := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	resV := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalSet, int64(resT)),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(resV)),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(addr)),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(resV)),
		ir.Simple(wasmcore.OpcodeF64Store, 0, 0),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(addr)),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(resT)),
		ir.Simple(wasmcore.OpcodeI32Store, 0, 8),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(resV)),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(resT)),
	)
	return nil
}

// lowerArrayLiteral lays out a fixed-size array literal directly on the
// heap: [length i32][(value f64, type i32) per element]*length, the same
// shape ArrayPush grows into (supplemented coverage).
func (fc *funcCtx) lowerArrayLiteral(v *ast.ArrayExpression) error {
	n := int64(len(v.Elements))
	size := 4 + n*12
	alloc := fc.gen.reg.Alloc()
	ptr := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeI32Const, size),
		ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(alloc.Index)} }),
		ir.Simple(wasmcore.OpcodeLocalTee, int64(ptr)),
		ir.Simple(wasmcore.OpcodeI32Const, n),
		ir.Simple(wasmcore.OpcodeI32Store, 0, 0),
	)
	for i, el := range v.Elements {
		off := int64(4 + int64(i)*12)
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeLocalGet, int64(ptr)))
		if el == nil {
			fc.fn.Emit(ir.F64Const(0), ir.Simple(wasmcore.OpcodeI32Const, int64(types.Undefined)))
		} else if err := fc.lowerExpr(el); err != nil {
			return err
		}
		valT := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
		valV := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
		fc.fn.Emit(
			ir.Simple(wasmcore.OpcodeLocalSet, int64(valT)),
			ir.Simple(wasmcore.OpcodeLocalSet, int64(valV)),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(valV)),
			ir.Simple(wasmcore.OpcodeF64Store, 0, off),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(ptr)),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(valT)),
			ir.Simple(wasmcore.OpcodeI32Store, 0, off+8),
		)
	}
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalGet, int64(ptr)),
		ir.Simple(wasmcore.OpcodeF64ConvertI32S),
		ir.Simple(wasmcore.OpcodeI32Const, int64(types.Array)),
	)
	return nil
}

// lowerObjectLiteral lays out an object literal as a fixed-size entry
// table: [count i32][(keyPtr i32, value f64, type i32) per property]*count,
// 16 bytes per entry (see objectGet in runtime_helpers.go). Every
// non-computed key is interned so later reads can compare by pointer.
func (fc *funcCtx) lowerObjectLiteral(v *ast.ObjectExpression) error {
	n := int64(len(v.Properties))
	size := 4 + n*16
	alloc := fc.gen.reg.Alloc()
	ptr := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeI32Const, size),
		ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(alloc.Index)} }),
		ir.Simple(wasmcore.OpcodeLocalTee, int64(ptr)),
		ir.Simple(wasmcore.OpcodeI32Const, n),
		ir.Simple(wasmcore.OpcodeI32Store, 0, 0),
	)
	for i, p := range v.Properties {
		if p.Computed {
			return unsupported(p, "computed object keys are not supported")
		}
		keyIdent, ok := p.Key.(*ast.Identifier)
		var keyName string
		if ok {
			keyName = keyIdent.Name
		} else if lit, ok := p.Key.(*ast.Literal); ok && lit.Kind == ast.LiteralString {
			keyName = lit.Str
		} else {
			return unsupported(p, "object key must be an identifier or string literal")
		}
		keyPtr := fc.gen.internString(keyName)
		off := int64(4 + int64(i)*16)
		fc.fn.Emit(
			ir.Simple(wasmcore.OpcodeLocalGet, int64(ptr)),
			ir.Simple(wasmcore.OpcodeI32Const, int64(keyPtr)),
			ir.Simple(wasmcore.OpcodeI32Store, 0, off),
		)
		if err := fc.lowerExpr(p.Value); err != nil {
			return err
		}
		valT := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
		valV := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
		fc.fn.Emit(
			ir.Simple(wasmcore.OpcodeLocalSet, int64(valT)),
			ir.Simple(wasmcore.OpcodeLocalSet, int64(valV)),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(ptr)),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(valV)),
			ir.Simple(wasmcore.OpcodeF64Store, 0, off+4),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(ptr)),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(valT)),
			ir.Simple(wasmcore.OpcodeI32Store, 0, off+12),
		)
	}
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalGet, int64(ptr)),
		ir.Simple(wasmcore.OpcodeF64ConvertI32S),
		ir.Simple(wasmcore.OpcodeI32Const, int64(types.Object)),
	)
	return nil
}
