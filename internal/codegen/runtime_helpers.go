package codegen

import (
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/types"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

// runtimeFunc mirrors builtins.Registry's reserve-then-build protocol for
// the handful of runtime helpers that are codegen's own plumbing rather
// than language built-ins (state machine).
func (g *Generator) runtimeFunc(name string, paramNames []string, params, results []wasmcore.ValueType, build func(f *ir.Function)) *ir.Function {
	if f, ok := g.module.FunctionByName(name); ok {
		return f
	}
	f := g.module.ReserveFunction(name, paramNames, params)
	f.Internal = true
	f.Results = results
	build(f)
	f.State = ir.Lowered
	return f
}

// toBoolean converts a (value, type) pair into a plain i32 0/1, following
// ECMAScript's ToBoolean table for the type tags this core supports
// (Dynamic dispatch by value type): undefined/null are always
// false; numbers are false only for 0 and NaN; strings are false only
// when empty; everything else (object/array/function/...) is true.
func (g *Generator) toBoolean() *ir.Function {
	return g.runtimeFunc("#toBoolean", []string{"v", "t"},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		[]wasmcore.ValueType{wasmcore.ValueTypeI32},
		func(f *ir.Function) {
			f.Emit(
				// undefined or null -> false
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Undefined)),
				ir.Simple(wasmcore.OpcodeI32Eq),
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Null)),
				ir.Simple(wasmcore.OpcodeI32Eq),
				ir.Simple(wasmcore.OpcodeI32Or),
				ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.ValueTypeI32)),
				ir.Simple(wasmcore.OpcodeI32Const, 0),
				ir.Simple(wasmcore.OpcodeElse),
				// number: v != 0 && v == v (false for NaN)
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)),
				ir.Simple(wasmcore.OpcodeI32Eq),
				ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.ValueTypeI32)),
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.F64Const(0),
				ir.Simple(wasmcore.OpcodeF64Ne),
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeF64Eq),
				ir.Simple(wasmcore.OpcodeI32And),
				ir.Simple(wasmcore.OpcodeElse),
				// string: length prefix != 0
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.String)),
				ir.Simple(wasmcore.OpcodeI32Eq),
				ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.ValueTypeI32)),
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32TruncF64S),
				ir.Simple(wasmcore.OpcodeI32Load, 0, 0),
				ir.Simple(wasmcore.OpcodeI32Const, 0),
				ir.Simple(wasmcore.OpcodeI32Ne),
				ir.Simple(wasmcore.OpcodeElse),
				// boolean: v != 0; everything else (object/array/function/...): true
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Boolean)),
				ir.Simple(wasmcore.OpcodeI32Eq),
				ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.ValueTypeI32)),
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.F64Const(0),
				ir.Simple(wasmcore.OpcodeF64Ne),
				ir.Simple(wasmcore.OpcodeElse),
				ir.Simple(wasmcore.OpcodeI32Const, 1),
				ir.Simple(wasmcore.OpcodeEnd),
				ir.Simple(wasmcore.OpcodeEnd),
				ir.Simple(wasmcore.OpcodeEnd),
				ir.Simple(wasmcore.OpcodeEnd),
				ir.Simple(wasmcore.OpcodeReturn),
			)
		})
}

// floatMod implements `%` between two raw f64 values the way ECMAScript
// defines it for finite operands: a - trunc(a/b)*b, the same
// truncated-division remainder as C's fmod, computed entirely in f64 so
// fractional operands (5.5 % 2 == 1.5) round-trip exactly instead of
// being coerced through an integer type.
func (g *Generator) floatMod() *ir.Function {
	return g.runtimeFunc("#floatMod", []string{"a", "b"},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeF64},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64},
		func(f *ir.Function) {
			f.Emit(
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeF64Div),
				ir.Simple(wasmcore.OpcodeF64Trunc),
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeF64Mul),
				ir.Simple(wasmcore.OpcodeF64Sub),
				ir.Simple(wasmcore.OpcodeReturn),
			)
		})
}

// typeIDNames maps a runtime type-id to its `typeof` source-level string,
// laid out as interned static data so the typeof helper below can compare
// against fixed i32 constants.
var typeIDNames = []struct {
	id   types.ID
	name string
}{
	{types.Undefined, "undefined"},
	{types.Null, "object"},
	{types.Boolean, "boolean"},
	{types.Number, "number"},
	{types.String, "string"},
	{types.Object, "object"},
	{types.Array, "object"},
	{types.Function, "function"},
	{types.Symbol, "symbol"},
	{types.BigInt, "bigint"},
}

// typeofValue builds the `typeof` runtime helper: `(v f64, t i32) -> (f64, i32)`
// returning a String pointing at the matching interned name, defaulting to
// "object" for any tag not explicitly listed.
func (g *Generator) typeofValue() *ir.Function {
	return g.runtimeFunc("#typeofValue", []string{"v", "t"},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		func(f *ir.Function) {
			def := g.internString("object")
			var body []ir.Instruction
			for _, e := range typeIDNames {
				ptr := g.internString(e.name)
				body = append(body,
					ir.Simple(wasmcore.OpcodeLocalGet, 1),
					ir.Simple(wasmcore.OpcodeI32Const, int64(e.id)),
					ir.Simple(wasmcore.OpcodeI32Eq),
					ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.BlockTypeEmpty)),
					ir.Simple(wasmcore.OpcodeI32Const, int64(ptr)),
					ir.Simple(wasmcore.OpcodeF64ConvertI32S),
					ir.Simple(wasmcore.OpcodeI32Const, int64(types.String)),
					ir.Simple(wasmcore.OpcodeReturn),
					ir.Simple(wasmcore.OpcodeEnd),
				)
			}
			body = append(body,
				ir.Simple(wasmcore.OpcodeI32Const, int64(def)),
				ir.Simple(wasmcore.OpcodeF64ConvertI32S),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.String)),
				ir.Simple(wasmcore.OpcodeReturn),
			)
			f.Emit(body...)
		})
}

// objectGet implements a property read by linear scan over an object
// literal's entry table, comparing keys by pointer equality since every
// non-computed property key is interned (see internString): the layout is
// `[count i32][keyPtr i32, valF64 f64, valType i32]*count`, 16 bytes per
// entry starting at offset 4.
func (g *Generator) objectGet() *ir.Function {
	if g.objectGetFn != nil {
		return g.objectGetFn
	}
	g.objectGetFn = g.runtimeFunc("#objectGet", []string{"objPtr", "keyPtr"},
		[]wasmcore.ValueType{wasmcore.ValueTypeI32, wasmcore.ValueTypeI32},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		func(f *ir.Function) {
			count := f.AddLocal("count", wasmcore.ValueTypeI32)
			i := f.AddLocal("i", wasmcore.ValueTypeI32)
			entry := f.AddLocal("entry", wasmcore.ValueTypeI32)
			f.Emit(
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32Load, 0, 0),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(count)),
				ir.Simple(wasmcore.OpcodeI32Const, 0),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(i)),
				ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.BlockTypeEmpty)),
				ir.Simple(wasmcore.OpcodeLoop, int64(wasmcore.BlockTypeEmpty)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(i)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(count)),
				ir.Simple(wasmcore.OpcodeI32GeU),
				ir.Simple(wasmcore.OpcodeBrIf, 1),
				// entry = objPtr + 4 + i*16
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(i)),
				ir.Simple(wasmcore.OpcodeI32Const, 16),
				ir.Simple(wasmcore.OpcodeI32Mul),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(entry)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(entry)),
				ir.Simple(wasmcore.OpcodeI32Load, 0, 0),
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeI32Eq),
				ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.BlockTypeEmpty)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(entry)),
				ir.Simple(wasmcore.OpcodeF64Load, 0, 4),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(entry)),
				ir.Simple(wasmcore.OpcodeI32Load, 0, 12),
				ir.Simple(wasmcore.OpcodeReturn),
				ir.Simple(wasmcore.OpcodeEnd),
				// i++
				ir.Simple(wasmcore.OpcodeLocalGet, int64(i)),
				ir.Simple(wasmcore.OpcodeI32Const, 1),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(i)),
				ir.Simple(wasmcore.OpcodeBr, 0),
				ir.Simple(wasmcore.OpcodeEnd),
				ir.Simple(wasmcore.OpcodeEnd),
				ir.F64Const(0),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Undefined)),
				ir.Simple(wasmcore.OpcodeReturn),
			)
		})
	return g.objectGetFn
}
