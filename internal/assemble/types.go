package assemble

import (
	"github.com/wasmlang/compiler/internal/leb128"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

// funcType is one entry of the Wasm binary type section: a vector of
// parameter value types and a vector of result value types.
type funcType struct {
	params  []wasmcore.ValueType
	results []wasmcore.ValueType
}

// typeTable deduplicates function signatures (does not
// mandate deduplication explicitly, but every binary encoder in the
// teacher pack's format does it, and a distinct type-section entry per
// call site would bloat the type section for no observable benefit).
type typeTable struct {
	order []funcType
	index map[string]uint32
}

func newTypeTable() *typeTable {
	return &typeTable{index: map[string]uint32{}}
}

func sigKey(params, results []wasmcore.ValueType) string {
	return string(params) + "\x00" + string(results)
}

// indexFor returns ft's type-section index, registering it if this is
// the first time this exact (params, results) pair has been seen.
func (t *typeTable) indexFor(params, results []wasmcore.ValueType) uint32 {
	k := sigKey(params, results)
	if i, ok := t.index[k]; ok {
		return i
	}
	idx := uint32(len(t.order))
	t.order = append(t.order, funcType{params: params, results: results})
	t.index[k] = idx
	return idx
}

// encodeFuncType encodes one type-section entry: the 0x60 func-type tag
// followed by the parameter and result vectors.
func encodeFuncType(ft funcType) []byte {
	var out []byte
	out = append(out, 0x60)
	out = append(out, leb128.EncodeUint32(uint32(len(ft.params)))...)
	out = append(out, ft.params...)
	out = append(out, leb128.EncodeUint32(uint32(len(ft.results)))...)
	out = append(out, ft.results...)
	return out
}
