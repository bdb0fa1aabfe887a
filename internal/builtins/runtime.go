package builtins

import (
	"math"

	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/types"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

// Alloc returns the bump allocator: `alloc(size i32) -> ptr i32`. It
// grows linear memory with `memory.grow` when the requested size would
// overrun the current page count, growing the configurable runtime
// heap reserved atop static data.
func (r *Registry) Alloc() *ir.Function {
	return r.runtimeFunc("#alloc", []string{"size"}, []wasmcore.ValueType{wasmcore.ValueTypeI32},
		[]wasmcore.ValueType{wasmcore.ValueTypeI32},
		func(f *ir.Function) {
			heapTop := r.HeapTop()
			ptr := f.AddLocal("ptr", wasmcore.ValueTypeI32)
			needed := f.AddLocal("needed", wasmcore.ValueTypeI32)
			f.Emit(
				// ptr = heap_top
				ir.Simple(wasmcore.OpcodeGlobalGet, int64(heapTop.Slot)),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(ptr)),
				// heap_top += size
				ir.Simple(wasmcore.OpcodeGlobalGet, int64(heapTop.Slot)),
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalTee, int64(needed)),
				ir.Simple(wasmcore.OpcodeGlobalSet, int64(heapTop.Slot)),
				// if needed > memory.size*page_size: memory.grow(1)
				ir.Simple(wasmcore.OpcodeLocalGet, int64(needed)),
				ir.Simple(wasmcore.OpcodeMemorySize, 0),
				ir.Simple(wasmcore.OpcodeI32Const, 16), // log2(65536) = 16: memory.size<<16 == byte size
				ir.Simple(wasmcore.OpcodeI32Shl),
				ir.Simple(wasmcore.OpcodeI32GtU),
				ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.BlockTypeEmpty)),
				ir.Simple(wasmcore.OpcodeI32Const, 1),
				ir.Simple(wasmcore.OpcodeMemoryGrow, 0),
				ir.Simple(wasmcore.OpcodeDrop),
				ir.Simple(wasmcore.OpcodeEnd),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(ptr)),
				ir.Simple(wasmcore.OpcodeReturn),
			)
		})
}

// copyBytes emits a byte-copy loop `copy(dst i32, src i32, len i32)`
// built from core load8/store8 opcodes only, avoiding the bulk-memory
// proposal's `memory.copy` so the assembler never needs to encode a
// 0xFC-prefixed multi-byte opcode.
func (r *Registry) copyBytes() *ir.Function {
	return r.runtimeFunc("#copyBytes", []string{"dst", "src", "len"},
		[]wasmcore.ValueType{wasmcore.ValueTypeI32, wasmcore.ValueTypeI32, wasmcore.ValueTypeI32},
		nil,
		func(f *ir.Function) {
			i := f.AddLocal("i", wasmcore.ValueTypeI32)
			f.Emit(
				ir.Simple(wasmcore.OpcodeI32Const, 0),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(i)),
				ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.BlockTypeEmpty)),
				ir.Simple(wasmcore.OpcodeLoop, int64(wasmcore.BlockTypeEmpty)),
				// if i >= len: break
				ir.Simple(wasmcore.OpcodeLocalGet, int64(i)),
				ir.Simple(wasmcore.OpcodeLocalGet, 2),
				ir.Simple(wasmcore.OpcodeI32GeU),
				ir.Simple(wasmcore.OpcodeBrIf, 1),
				// mem[dst+i] = mem[src+i]
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(i)),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(i)),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeI32Load8U, 0, 0),
				ir.Simple(wasmcore.OpcodeI32Store8, 0, 0),
				// i++
				ir.Simple(wasmcore.OpcodeLocalGet, int64(i)),
				ir.Simple(wasmcore.OpcodeI32Const, 1),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(i)),
				ir.Simple(wasmcore.OpcodeBr, 0),
				ir.Simple(wasmcore.OpcodeEnd),
				ir.Simple(wasmcore.OpcodeEnd),
			)
		})
}

// StringConcat implements runtime `+` between two strings. Strings are
// represented as a pointer to a 4-byte length prefix followed by UTF-8
// bytes (the same shape string literals get when the code generator
// allocates them into a data page).
func (r *Registry) StringConcat() *ir.Function {
	return r.runtimeFunc("#stringConcat", []string{"aPtr", "bPtr"},
		[]wasmcore.ValueType{wasmcore.ValueTypeI32, wasmcore.ValueTypeI32},
		[]wasmcore.ValueType{wasmcore.ValueTypeI32},
		func(f *ir.Function) {
			alloc := r.Alloc()
			copyFn := r.copyBytes()
			aLen := f.AddLocal("aLen", wasmcore.ValueTypeI32)
			bLen := f.AddLocal("bLen", wasmcore.ValueTypeI32)
			out := f.AddLocal("out", wasmcore.ValueTypeI32)
			f.Emit(
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32Load, 0, 0),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(aLen)),
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeI32Load, 0, 0),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(bLen)),
				// out = alloc(4 + aLen + bLen)
				ir.Simple(wasmcore.OpcodeLocalGet, int64(aLen)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(bLen)),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(alloc.Index)} }),
				ir.Simple(wasmcore.OpcodeLocalTee, int64(out)),
				// out's length prefix = aLen + bLen
				ir.Simple(wasmcore.OpcodeLocalGet, int64(aLen)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(bLen)),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeI32Store, 0, 0),
				// copy a's bytes to out+4
				ir.Simple(wasmcore.OpcodeLocalGet, int64(out)),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(aLen)),
				ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(copyFn.Index)} }),
				// copy b's bytes to out+4+aLen
				ir.Simple(wasmcore.OpcodeLocalGet, int64(out)),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(aLen)),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(bLen)),
				ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(copyFn.Index)} }),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(out)),
				ir.Simple(wasmcore.OpcodeReturn),
			)
		})
}

// RuntimeAdd implements the generic `+` fallback the code generator
// emits when both operands of a BinaryExpression are not statically
// known numbers. It dispatches on the runtime type-id pair: numeric
// add when both are Number, string concatenation when both are
// String, otherwise the general dynamic-dispatch fallback coerced to
// NaN/Number here, since full ToPrimitive coercion is outside this
// core's scope.
func (r *Registry) RuntimeAdd() *ir.Function {
	return r.runtimeFunc("#runtimeAdd", []string{"aVal", "aType", "bVal", "bType"},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32, wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		func(f *ir.Function) {
			concat := r.StringConcat()
			f.Emit(
				// both Number?
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)),
				ir.Simple(wasmcore.OpcodeI32Eq),
				ir.Simple(wasmcore.OpcodeLocalGet, 3),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)),
				ir.Simple(wasmcore.OpcodeI32Eq),
				ir.Simple(wasmcore.OpcodeI32And),
				ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.ValueTypeF64)),
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeLocalGet, 2),
				ir.Simple(wasmcore.OpcodeF64Add),
				ir.Simple(wasmcore.OpcodeElse),
				// both String? (value channel carries the i32 pointer
				// numerically converted to f64)
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.String)),
				ir.Simple(wasmcore.OpcodeI32Eq),
				ir.Simple(wasmcore.OpcodeLocalGet, 3),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.String)),
				ir.Simple(wasmcore.OpcodeI32Eq),
				ir.Simple(wasmcore.OpcodeI32And),
				ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.ValueTypeF64)),
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32TruncF64S),
				ir.Simple(wasmcore.OpcodeLocalGet, 2),
				ir.Simple(wasmcore.OpcodeI32TruncF64S),
				ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(concat.Index)} }),
				ir.Simple(wasmcore.OpcodeF64ConvertI32S),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.String)),
				ir.Simple(wasmcore.OpcodeReturn),
				ir.Simple(wasmcore.OpcodeElse),
				// general fallback: NaN
				ir.F64Const(math.NaN()),
				ir.Simple(wasmcore.OpcodeEnd),
				ir.Simple(wasmcore.OpcodeEnd),
				// type-id result of the numeric and NaN-fallback paths:
				// Number (NaN is still a Number per IEEE-754/ECMAScript
				// convention). The string path returned String above.
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)),
				ir.Simple(wasmcore.OpcodeReturn),
			)
		})
}

// RuntimeCompare builds the generic fallback for one comparison
// operator ("<", "<=", ">", ">=", "==", "!=") when at least one operand
// of a comparison's operands is not statically known to be Number. The
// result is (0 or 1 as f64, Boolean type-id).
func (r *Registry) RuntimeCompare(op string) *ir.Function {
	name := "#runtimeCompare_" + op
	return r.runtimeFunc(name, []string{"aVal", "aType", "bVal", "bType"},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32, wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		func(f *ir.Function) {
			cmpOp := compareOpcode(op)
			f.Emit(
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeLocalGet, 2),
				ir.Simple(cmpOp),
				ir.Simple(wasmcore.OpcodeF64ConvertI32S),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Boolean)),
				ir.Simple(wasmcore.OpcodeReturn),
			)
		})
}

func compareOpcode(op string) wasmcore.Opcode {
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

// ArrayPush implements `Array.prototype.push`: grows the backing store
// by one element (a (value f64, type i32) pair, 12 bytes) and writes
// the length-prefixed header. The backing store's shape is
// [length i32][elements...], mirroring StringConcat's length-prefix
// convention for strings.
func (r *Registry) ArrayPush() *ir.Function {
	return r.runtimeFunc("#arrayPush", []string{"arrPtr", "val", "valType"},
		[]wasmcore.ValueType{wasmcore.ValueTypeI32, wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		func(f *ir.Function) {
			alloc := r.Alloc()
			copyFn := r.copyBytes()
			length := f.AddLocal("length", wasmcore.ValueTypeI32)
			newArr := f.AddLocal("newArr", wasmcore.ValueTypeI32)
			elemAddr := f.AddLocal("elemAddr", wasmcore.ValueTypeI32)
			f.Emit(
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32Load, 0, 0),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(length)),
				// newArr = alloc(4 + (length+1)*12)
				ir.Simple(wasmcore.OpcodeLocalGet, int64(length)),
				ir.Simple(wasmcore.OpcodeI32Const, 1),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeI32Const, 12),
				ir.Simple(wasmcore.OpcodeI32Mul),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(alloc.Index)} }),
				ir.Simple(wasmcore.OpcodeLocalTee, int64(newArr)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(length)),
				ir.Simple(wasmcore.OpcodeI32Const, 1),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeI32Store, 0, 0),
				// copy existing elements
				ir.Simple(wasmcore.OpcodeLocalGet, int64(newArr)),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(length)),
				ir.Simple(wasmcore.OpcodeI32Const, 12),
				ir.Simple(wasmcore.OpcodeI32Mul),
				ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(copyFn.Index)} }),
				// write the new element at the tail
				ir.Simple(wasmcore.OpcodeLocalGet, int64(newArr)),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(length)),
				ir.Simple(wasmcore.OpcodeI32Const, 12),
				ir.Simple(wasmcore.OpcodeI32Mul),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalTee, int64(elemAddr)),
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeF64Store, 0, 0),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(elemAddr)),
				ir.Simple(wasmcore.OpcodeLocalGet, 2),
				ir.Simple(wasmcore.OpcodeI32Store, 0, 8),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(newArr)),
				ir.Simple(wasmcore.OpcodeF64ConvertI32S),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Array)),
				ir.Simple(wasmcore.OpcodeReturn),
			)
		})
}

// ArrayLength implements the `.length` accessor.
func (r *Registry) ArrayLength() *ir.Function {
	return r.runtimeFunc("#arrayLength", []string{"arrPtr"},
		[]wasmcore.ValueType{wasmcore.ValueTypeI32},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		func(f *ir.Function) {
			f.Emit(
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32Load, 0, 0),
				ir.Simple(wasmcore.OpcodeF64ConvertI32S),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)),
				ir.Simple(wasmcore.OpcodeReturn),
			)
		})
}

// StringLength implements the `.length` accessor.
func (r *Registry) StringLength() *ir.Function {
	return r.runtimeFunc("#stringLength", []string{"strPtr"},
		[]wasmcore.ValueType{wasmcore.ValueTypeI32},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		func(f *ir.Function) {
			f.Emit(
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32Load, 0, 0),
				ir.Simple(wasmcore.OpcodeF64ConvertI32S),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.Number)),
				ir.Simple(wasmcore.OpcodeReturn),
			)
		})
}

// StringCharAt returns a one-byte substring as a new heap string.
func (r *Registry) StringCharAt() *ir.Function {
	return r.runtimeFunc("#stringCharAt", []string{"strPtr", "index"},
		[]wasmcore.ValueType{wasmcore.ValueTypeI32, wasmcore.ValueTypeF64},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		func(f *ir.Function) {
			alloc := r.Alloc()
			out := f.AddLocal("out", wasmcore.ValueTypeI32)
			idx := f.AddLocal("idx", wasmcore.ValueTypeI32)
			f.Emit(
				ir.Simple(wasmcore.OpcodeLocalGet, 1),
				ir.Simple(wasmcore.OpcodeI32TruncF64S),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(idx)),
				ir.Simple(wasmcore.OpcodeI32Const, 5), // 4-byte length prefix + 1 byte
				ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(alloc.Index)} }),
				ir.Simple(wasmcore.OpcodeLocalTee, int64(out)),
				ir.Simple(wasmcore.OpcodeI32Const, 1),
				ir.Simple(wasmcore.OpcodeI32Store, 0, 0),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(out)),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(idx)),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeI32Load8U, 0, 0),
				ir.Simple(wasmcore.OpcodeI32Store8, 0, 0),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(out)),
				ir.Simple(wasmcore.OpcodeF64ConvertI32S),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.String)),
				ir.Simple(wasmcore.OpcodeReturn),
			)
		})
}

// NumberToString converts an integer-valued Number (negative or
// non-negative) into a decimal string by repeated division on its
// absolute value, prefixing '-' when the input was negative; the
// fractional part of a non-integer Number is truncated rather than
// rendered, a narrowing scope recorded in DESIGN.md.
func (r *Registry) NumberToString() *ir.Function {
	return r.runtimeFunc("#numberToString", []string{"n"},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64},
		[]wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		func(f *ir.Function) {
			alloc := r.Alloc()
			digits := f.AddLocal("digits", wasmcore.ValueTypeI32)
			n := f.AddLocal("nInt", wasmcore.ValueTypeI32)
			negative := f.AddLocal("negative", wasmcore.ValueTypeI32)
			buf := f.AddLocal("buf", wasmcore.ValueTypeI32)
			i := f.AddLocal("i", wasmcore.ValueTypeI32)
			out := f.AddLocal("out", wasmcore.ValueTypeI32)
			f.Emit(
				ir.Simple(wasmcore.OpcodeLocalGet, 0),
				ir.Simple(wasmcore.OpcodeI32TruncF64S),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(n)),
				// negative = n < 0; n = abs(n)
				ir.Simple(wasmcore.OpcodeLocalGet, int64(n)),
				ir.Simple(wasmcore.OpcodeI32Const, 0),
				ir.Simple(wasmcore.OpcodeI32LtS),
				ir.Simple(wasmcore.OpcodeLocalTee, int64(negative)),
				ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.BlockTypeEmpty)),
				ir.Simple(wasmcore.OpcodeI32Const, 0),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(n)),
				ir.Simple(wasmcore.OpcodeI32Sub),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(n)),
				ir.Simple(wasmcore.OpcodeEnd),
				// scratch buffer for up to 20 digits, written back to front
				ir.Simple(wasmcore.OpcodeI32Const, 20),
				ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(alloc.Index)} }),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(buf)),
				ir.Simple(wasmcore.OpcodeI32Const, 20),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(i)),
				// special case 0
				ir.Simple(wasmcore.OpcodeLocalGet, int64(n)),
				ir.Simple(wasmcore.OpcodeI32Eqz),
				ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.BlockTypeEmpty)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(i)),
				ir.Simple(wasmcore.OpcodeI32Const, 1),
				ir.Simple(wasmcore.OpcodeI32Sub),
				ir.Simple(wasmcore.OpcodeLocalTee, int64(i)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(buf)),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeI32Const, int64('0')),
				ir.Simple(wasmcore.OpcodeI32Store8, 0, 0),
				ir.Simple(wasmcore.OpcodeEnd),
				ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.BlockTypeEmpty)),
				ir.Simple(wasmcore.OpcodeLoop, int64(wasmcore.BlockTypeEmpty)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(n)),
				ir.Simple(wasmcore.OpcodeI32Eqz),
				ir.Simple(wasmcore.OpcodeBrIf, 1),
				// i--
				ir.Simple(wasmcore.OpcodeLocalGet, int64(i)),
				ir.Simple(wasmcore.OpcodeI32Const, 1),
				ir.Simple(wasmcore.OpcodeI32Sub),
				ir.Simple(wasmcore.OpcodeLocalTee, int64(i)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(buf)),
				ir.Simple(wasmcore.OpcodeI32Add),
				// buf[i] = '0' + (n % 10)
				ir.Simple(wasmcore.OpcodeLocalGet, int64(n)),
				ir.Simple(wasmcore.OpcodeI32Const, 10),
				ir.Simple(wasmcore.OpcodeI32RemU),
				ir.Simple(wasmcore.OpcodeI32Const, int64('0')),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeI32Store8, 0, 0),
				// n /= 10
				ir.Simple(wasmcore.OpcodeLocalGet, int64(n)),
				ir.Simple(wasmcore.OpcodeI32Const, 10),
				ir.Simple(wasmcore.OpcodeI32DivU),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(n)),
				ir.Simple(wasmcore.OpcodeBr, 0),
				ir.Simple(wasmcore.OpcodeEnd),
				ir.Simple(wasmcore.OpcodeEnd),
				// prepend '-' when the original input was negative
				ir.Simple(wasmcore.OpcodeLocalGet, int64(negative)),
				ir.Simple(wasmcore.OpcodeIf, int64(wasmcore.BlockTypeEmpty)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(i)),
				ir.Simple(wasmcore.OpcodeI32Const, 1),
				ir.Simple(wasmcore.OpcodeI32Sub),
				ir.Simple(wasmcore.OpcodeLocalTee, int64(i)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(buf)),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeI32Const, int64('-')),
				ir.Simple(wasmcore.OpcodeI32Store8, 0, 0),
				ir.Simple(wasmcore.OpcodeEnd),
				// digits = 20 - i
				ir.Simple(wasmcore.OpcodeI32Const, 20),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(i)),
				ir.Simple(wasmcore.OpcodeI32Sub),
				ir.Simple(wasmcore.OpcodeLocalSet, int64(digits)),
				// out = alloc(4 + digits); out[0:4] = digits; copy
				ir.Simple(wasmcore.OpcodeLocalGet, int64(digits)),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(alloc.Index)} }),
				ir.Simple(wasmcore.OpcodeLocalTee, int64(out)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(digits)),
				ir.Simple(wasmcore.OpcodeI32Store, 0, 0),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(out)),
				ir.Simple(wasmcore.OpcodeI32Const, 4),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(buf)),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(i)),
				ir.Simple(wasmcore.OpcodeI32Add),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(digits)),
				ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(r.copyBytes().Index)} }),
				ir.Simple(wasmcore.OpcodeLocalGet, int64(out)),
				ir.Simple(wasmcore.OpcodeF64ConvertI32S),
				ir.Simple(wasmcore.OpcodeI32Const, int64(types.String)),
				ir.Simple(wasmcore.OpcodeReturn),
			)
		})
}
