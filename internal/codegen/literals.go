package codegen

import (
	"encoding/binary"

	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

// allocateStaticBytes lays data out at the next free offset in the
// module's static-data region (String literal: "allocate
// in a data page"), 4-byte aligned so every length-prefixed payload's
// header itself starts on an aligned boundary.
func (g *Generator) allocateStaticBytes(data []byte) uint32 {
	if g.dataCursor == 0 {
		g.dataCursor = 8 // low memory stays reserved (builtins.Registry.HeapTop).
	}
	offset := g.dataCursor
	g.module.AddData(g.nextAnonName(), data, offset)
	size := uint32(len(data))
	g.dataCursor = offset + ((size + 3) &^ 3)
	return offset
}

// allocateStaticString lays out s as [length u32-LE][utf8 bytes], the
// length-prefixed shape every runtime string carries (builtins package's
// StringConcat et al.).
func (g *Generator) allocateStaticString(s string) uint32 {
	buf := make([]byte, 4+len(s))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(s)))
	copy(buf[4:], s)
	return g.allocateStaticBytes(buf)
}

// internString returns the same pointer for repeated uses of the same
// Go string, so object property keys can be compared by pointer
// equality instead of a runtime byte scan (see objectGet).
func (g *Generator) internString(s string) uint32 {
	if g.internedStrings == nil {
		g.internedStrings = map[string]uint32{}
	}
	if p, ok := g.internedStrings[s]; ok {
		return p
	}
	p := g.allocateStaticString(s)
	g.internedStrings[s] = p
	return p
}

// finalizeHeapBase points the bump allocator's initial cursor past every
// static literal laid out during generation, whether or not the heap
// global was ever touched.
func (g *Generator) finalizeHeapBase() {
	base := g.dataCursor
	if base == 0 {
		base = 8
	}
	heapTop := g.reg.HeapTop()
	heapTop.Init = []ir.Instruction{ir.Simple(wasmcore.OpcodeI32Const, int64(base))}
}
