// Package wasmcore holds the fixed tables defined by the WebAssembly 1.0
// binary format: value types, section ids, opcodes and limits encoding.
// Nothing here is specific to the source language; it is the vocabulary
// every later stage (ir, assemble) shares.
package wasmcore

// ValueType is a Wasm binary value type byte.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#binary-valtype
type ValueType = byte

const (
	ValueTypeI32 ValueType = 0x7f
	ValueTypeI64 ValueType = 0x7e
	ValueTypeF32 ValueType = 0x7d
	ValueTypeF64 ValueType = 0x7c
)

// ValueTypeName returns the Wasm text-format name for t, or "unknown".
func ValueTypeName(t ValueType) string {
	switch t {
	case ValueTypeI32:
		return "i32"
	case ValueTypeI64:
		return "i64"
	case ValueTypeF32:
		return "f32"
	case ValueTypeF64:
		return "f64"
	}
	return "unknown"
}

// BlockType encodes the empty block type used by control instructions
// that produce no result, or one of the ValueType bytes for a
// single-result block.
const BlockTypeEmpty = 0x40
