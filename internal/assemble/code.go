package assemble

import (
	"fmt"

	"github.com/wasmlang/compiler/internal/diag"
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/leb128"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

// blockTypeOpcodes carry a single block-type immediate: BlockTypeEmpty
// or a ValueType byte. Both already are their own one-byte
// signed-LEB128 encoding (0x40 and 0x7c-0x7f all decode as small
// negative numbers in that form), so the byte is written directly
// rather than re-run through the signed-LEB128 encoder.
func isBlockTypeOpcode(c wasmcore.Opcode) bool {
	switch c {
	case wasmcore.OpcodeBlock, wasmcore.OpcodeLoop, wasmcore.OpcodeIf, wasmcore.OpcodeTry:
		return true
	}
	return false
}

// memargOpcodes take a (align, offset) pair, each an unsigned LEB128 u32
// (Encoding rules).
func isMemargOpcode(c wasmcore.Opcode) bool {
	switch c {
	case wasmcore.OpcodeI32Load, wasmcore.OpcodeI64Load, wasmcore.OpcodeF32Load, wasmcore.OpcodeF64Load,
		wasmcore.OpcodeI32Load8S, wasmcore.OpcodeI32Load8U, wasmcore.OpcodeI32Load16S, wasmcore.OpcodeI32Load16U,
		wasmcore.OpcodeI32Store, wasmcore.OpcodeI64Store, wasmcore.OpcodeF32Store, wasmcore.OpcodeF64Store,
		wasmcore.OpcodeI32Store8, wasmcore.OpcodeI32Store16:
		return true
	}
	return false
}

// indexOpcodes take a single unsigned LEB128 u32 operand: a local slot,
// a global slot, a branch depth, a function index, or a tag index.
func isIndexOpcode(c wasmcore.Opcode) bool {
	switch c {
	case wasmcore.OpcodeLocalGet, wasmcore.OpcodeLocalSet, wasmcore.OpcodeLocalTee,
		wasmcore.OpcodeGlobalGet, wasmcore.OpcodeGlobalSet,
		wasmcore.OpcodeBr, wasmcore.OpcodeBrIf,
		wasmcore.OpcodeCall, wasmcore.OpcodeReturnCall,
		wasmcore.OpcodeCatch, wasmcore.OpcodeThrow, wasmcore.OpcodeRethrow:
		return true
	}
	return false
}

// encodeInstruction appends ins's binary encoding (opcode byte plus
// whatever immediates its family takes) to out. ins must not be
// Deferred; the caller resolves every deferred instruction first
// (Deferred resolution).
func encodeInstruction(out []byte, ins ir.Instruction) ([]byte, error) {
	if ins.IsDeferred() {
		return nil, diag.UnresolvedReference("deferred instruction %v survived to assembly", ins.Code)
	}
	out = append(out, ins.Code)
	switch {
	case ins.IsF64Const:
		return append(out, leb128.EncodeF64(ins.F64Operand)...), nil
	case ins.IsF32Const:
		return append(out, leb128.EncodeF32(ins.F32Operand)...), nil
	case ins.Code == wasmcore.OpcodeI32Const:
		return append(out, leb128.EncodeInt32(int32(ins.Operands[0]))...), nil
	case ins.Code == wasmcore.OpcodeI64Const:
		return append(out, leb128.EncodeInt64(ins.Operands[0])...), nil
	case isBlockTypeOpcode(ins.Code):
		return append(out, byte(ins.Operands[0])), nil
	case ins.Code == wasmcore.OpcodeMemorySize || ins.Code == wasmcore.OpcodeMemoryGrow:
		return append(out, byte(ins.Operands[0])), nil
	case isMemargOpcode(ins.Code):
		if len(ins.Operands) != 2 {
			return nil, fmt.Errorf("opcode %#x: want 2 memarg operands, got %d", ins.Code, len(ins.Operands))
		}
		out = append(out, leb128.EncodeUint32(uint32(ins.Operands[0]))...)
		return append(out, leb128.EncodeUint32(uint32(ins.Operands[1]))...), nil
	case isIndexOpcode(ins.Code):
		if len(ins.Operands) != 1 {
			return nil, fmt.Errorf("opcode %#x: want 1 index operand, got %d", ins.Code, len(ins.Operands))
		}
		return append(out, leb128.EncodeUint32(uint32(ins.Operands[0]))...), nil
	default:
		// No-operand opcode: End, Else, CatchAll, Drop, Return,
		// Unreachable, every arithmetic/comparison/conversion opcode.
		return out, nil
	}
}

// localRun is one grouped-local declaration: count consecutive locals of
// the same type ("grouped-local run-length encoding").
type localRun struct {
	count uint32
	typ   wasmcore.ValueType
}

func groupLocals(locals []ir.Local, firstNonParam int) []localRun {
	var runs []localRun
	for _, l := range locals[firstNonParam:] {
		if len(runs) > 0 && runs[len(runs)-1].typ == l.Type {
			runs[len(runs)-1].count++
			continue
		}
		runs = append(runs, localRun{count: 1, typ: l.Type})
	}
	return runs
}

// encodeFunctionBody encodes one code-section entry: body-byte-length
// prefix, grouped-local declarations, instructions, and a trailing `end`
// if the body did not already supply one.
func encodeFunctionBody(f *ir.Function) ([]byte, error) {
	runs := groupLocals(f.Locals, len(f.Params))
	var body []byte
	body = append(body, leb128.EncodeUint32(uint32(len(runs)))...)
	for _, r := range runs {
		body = append(body, leb128.EncodeUint32(r.count)...)
		body = append(body, r.typ)
	}
	for _, ins := range f.Instructions {
		var err error
		body, err = encodeInstruction(body, ins)
		if err != nil {
			return nil, fmt.Errorf("function %q: %w", f.Name, err)
		}
	}
	if len(f.Instructions) == 0 || f.Instructions[len(f.Instructions)-1].Code != wasmcore.OpcodeEnd {
		body = append(body, wasmcore.OpcodeEnd)
	}
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
	return append(out, body...), nil
}

// encodeInitExpr encodes a global's constant initializer followed by its
// terminating `end`.
func encodeInitExpr(ins []ir.Instruction) ([]byte, error) {
	var out []byte
	for _, in := range ins {
		var err error
		out, err = encodeInstruction(out, in)
		if err != nil {
			return nil, err
		}
	}
	return append(out, wasmcore.OpcodeEnd), nil
}
