// Package assemble implements the binary encoder: it resolves every
// deferred instruction the code generator left behind, tree-shakes
// unreferenced host imports, and serializes the IR module into a Wasm
// binary in the exact section order the Wasm core specification requires.
//
// The split across files follows tetratelabs-wazero's own binary
// encoder package (internal/wasm/binary), which groups encoding logic
// by the construct it encodes (code.go, the type table, the name
// section) rather than putting everything in one file.
package assemble

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/wasmlang/compiler/internal/config"
	"github.com/wasmlang/compiler/internal/diag"
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/leb128"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

// callOpcodes reference a function (import or module-defined) by its
// combined index, the only operand family tree-shaking needs to rewrite.
func isCallOpcode(c wasmcore.Opcode) bool {
	return c == wasmcore.OpcodeCall || c == wasmcore.OpcodeReturnCall
}

// shakeImports drops every host import never referenced by a call
// instruction anywhere in the module, renumbering surviving imports to
// occupy the low indices and renumbering functions likewise, rewriting
// every call-family operand and every function's own Index in place.
// It returns the number of imports dropped.
//
// Reachability here is "referenced by some call instruction in the
// module" rather than the stricter "unreachable from any exported
// function" transitive closure: since every top-level declared
// function is itself an export, the two coincide unless a private
// closure that is never called from any exported function still
// imports something — a case this compiler's own call-resolution
// (closures.go) never produces, since an unreferenced closure is
// never reserved in the first place.
func shakeImports(m *ir.Module) int {
	oldImportCount := uint32(len(m.Imports))
	used := make([]bool, oldImportCount)
	for _, f := range m.Functions {
		for _, ins := range f.Instructions {
			if !isCallOpcode(ins.Code) || len(ins.Operands) == 0 {
				continue
			}
			idx := uint32(ins.Operands[0])
			if idx < oldImportCount {
				used[idx] = true
			}
		}
	}

	var kept []*ir.Import
	remap := make(map[uint32]uint32, oldImportCount)
	for _, imp := range m.Imports {
		if !used[imp.Index] {
			continue
		}
		remap[imp.Index] = uint32(len(kept))
		kept = append(kept, imp)
	}
	newImportCount := uint32(len(kept))
	dropped := int(oldImportCount) - len(kept)

	remapIdx := func(old uint32) uint32 {
		if old < oldImportCount {
			return remap[old]
		}
		return old - oldImportCount + newImportCount
	}

	for i, imp := range kept {
		imp.Index = uint32(i)
	}
	for _, f := range m.Functions {
		f.Index = remapIdx(f.Index)
		for i := range f.Instructions {
			ins := &f.Instructions[i]
			if !isCallOpcode(ins.Code) || len(ins.Operands) == 0 {
				continue
			}
			ins.Operands[0] = int64(remapIdx(uint32(ins.Operands[0])))
		}
	}
	m.MainIndex = remapIdx(m.MainIndex)
	m.Imports = kept
	return dropped
}

// appendSection appends a section unless body is empty, in which case
// the section is omitted entirely (legal: an empty vector section and
// an absent one are observably identical, and wazero's own encoder
// omits sections with nothing in them).
func appendSection(out []byte, id wasmcore.SectionID, body []byte) []byte {
	if len(body) == 0 {
		return out
	}
	out = append(out, id)
	out = append(out, leb128.EncodeUint32(uint32(len(body)))...)
	return append(out, body...)
}

func encodeTypeSection(t *typeTable) []byte {
	if len(t.order) == 0 {
		return nil
	}
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(t.order)))...)
	for _, ft := range t.order {
		out = append(out, encodeFuncType(ft)...)
	}
	return out
}

func encodeImportSection(imports []*ir.Import, typeIdx []uint32) []byte {
	if len(imports) == 0 {
		return nil
	}
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(imports)))...)
	for i, imp := range imports {
		out = append(out, encodeNameString(imp.Module)...)
		out = append(out, encodeNameString(imp.Name)...)
		out = append(out, wasmcore.ExternTypeFunc)
		out = append(out, leb128.EncodeUint32(typeIdx[i])...)
	}
	return out
}

func encodeFunctionSection(typeIdx []uint32) []byte {
	if len(typeIdx) == 0 {
		return nil
	}
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(typeIdx)))...)
	for _, idx := range typeIdx {
		out = append(out, leb128.EncodeUint32(idx)...)
	}
	return out
}

func encodeMemorySection(pages uint32) []byte {
	var out []byte
	out = append(out, leb128.EncodeUint32(1)...) // exactly one memory 
	out = append(out, wasmcore.LimitsFlagNoMax)
	return append(out, leb128.EncodeUint32(pages)...)
}

func encodeTagSection(typeIdx []uint32) []byte {
	if len(typeIdx) == 0 {
		return nil
	}
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(typeIdx)))...)
	for _, idx := range typeIdx {
		out = append(out, 0x00) // tag attribute: 0 = exception
		out = append(out, leb128.EncodeUint32(idx)...)
	}
	return out
}

func encodeGlobalSection(globals []*ir.Global) ([]byte, error) {
	if len(globals) == 0 {
		return nil, nil
	}
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(globals)))...)
	for _, g := range globals {
		out = append(out, g.Type)
		if g.Mutable {
			out = append(out, 0x01)
		} else {
			out = append(out, 0x00)
		}
		init, err := encodeInitExpr(g.Init)
		if err != nil {
			return nil, err
		}
		out = append(out, init...)
	}
	return out, nil
}

func encodeExportSection(m *ir.Module) []byte {
	var out []byte
	count := uint32(0)
	var body []byte
	for _, f := range m.Functions {
		if f.Exported == "" {
			continue
		}
		body = append(body, encodeNameString(f.Exported)...)
		body = append(body, wasmcore.ExternTypeFunc)
		body = append(body, leb128.EncodeUint32(f.Index)...)
		count++
	}
	if m.MemoryExportName != "" {
		body = append(body, encodeNameString(m.MemoryExportName)...)
		body = append(body, wasmcore.ExternTypeMemory)
		body = append(body, leb128.EncodeUint32(0)...)
		count++
	}
	out = append(out, leb128.EncodeUint32(count)...)
	return append(out, body...)
}

func encodeDataSection(data []*ir.DataSegment) []byte {
	if len(data) == 0 {
		return nil
	}
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(data)))...)
	for _, d := range data {
		out = append(out, leb128.EncodeUint32(0)...) // active, memory index 0
		out = append(out, wasmcore.OpcodeI32Const)
		out = append(out, leb128.EncodeInt32(int32(d.Offset))...)
		out = append(out, wasmcore.OpcodeEnd)
		out = append(out, leb128.EncodeUint32(uint32(len(d.Bytes)))...)
		out = append(out, d.Bytes...)
	}
	return out
}

func encodeCodeSection(funcs []*ir.Function) ([]byte, error) {
	if len(funcs) == 0 {
		return nil, nil
	}
	var out []byte
	out = append(out, leb128.EncodeUint32(uint32(len(funcs)))...)
	for _, f := range funcs {
		body, err := encodeFunctionBody(f)
		if err != nil {
			return nil, err
		}
		out = append(out, body...)
	}
	return out, nil
}

// Assemble serializes m into a binary Wasm module.
func Assemble(m *ir.Module, cfg config.Config, logger logrus.FieldLogger) ([]byte, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if err := m.ResolveDeferred(); err != nil {
		return nil, err
	}
	for _, f := range m.Functions {
		for _, ins := range f.Instructions {
			if ins.IsDeferred() {
				return nil, diag.UnresolvedReference("function %q retains an unresolved deferred instruction", f.Name)
			}
		}
		if f.State != ir.Lowered {
			return nil, diag.Encoding("function %q reached assembly in state %s, not LOWERED", f.Name, f.State)
		}
	}

	dropped := shakeImports(m)
	logger.WithField("stage", "assemble").WithField("importsDropped", dropped).Debug("tree-shaking finished")

	// m.Functions is kept in reservation order for name-section and
	// debugging stability, but the code and function sections must list
	// entries in final index order ("surviving imports are
	// renumbered ... Functions are likewise renumbered").
	ordered := append([]*ir.Function{}, m.Functions...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	types := newTypeTable()
	importTypeIdx := make([]uint32, len(m.Imports))
	for i, imp := range m.Imports {
		importTypeIdx[i] = types.indexFor(imp.Params, imp.Results)
	}
	funcTypeIdx := make([]uint32, len(ordered))
	for i, f := range ordered {
		funcTypeIdx[i] = types.indexFor(f.Params, f.Results)
	}
	tagTypeIdx := make([]uint32, len(m.Tags))
	for i, tag := range m.Tags {
		tagTypeIdx[i] = types.indexFor(tag.Params, nil)
	}

	globalBody, err := encodeGlobalSection(m.Globals)
	if err != nil {
		return nil, err
	}
	codeBody, err := encodeCodeSection(ordered)
	if err != nil {
		return nil, err
	}

	var out []byte
	out = append(out, wasmcore.Magic[:]...)
	out = append(out, wasmcore.Version[:]...)
	out = appendSection(out, wasmcore.SectionIDType, encodeTypeSection(types))
	out = appendSection(out, wasmcore.SectionIDImport, encodeImportSection(m.Imports, importTypeIdx))
	out = appendSection(out, wasmcore.SectionIDFunction, encodeFunctionSection(funcTypeIdx))
	// Table section: omitted. This IR has no call_indirect/table support
	// at all (codegen/closures.go resolves every call target statically).
	out = appendSection(out, wasmcore.SectionIDMemory, encodeMemorySection(m.MemoryPages))
	out = appendSection(out, wasmcore.SectionIDTag, encodeTagSection(tagTypeIdx))
	out = appendSection(out, wasmcore.SectionIDGlobal, globalBody)
	out = appendSection(out, wasmcore.SectionIDExport, encodeExportSection(m))
	// Start section: omitted. The host calls the exported "m" entry
	// point directly; there is no implicit module-instantiation-time call.
	// Element section: omitted along with the table section above.
	// Data-count section: omitted. Every segment here is active with a
	// compile-time-constant offset; data-count only matters to the
	// bulk-memory instructions (memory.init/data.drop) this compiler
	// never emits.
	out = appendSection(out, wasmcore.SectionIDCode, codeBody)
	out = appendSection(out, wasmcore.SectionIDData, encodeDataSection(m.Data))
	out = appendSection(out, wasmcore.SectionIDCustom, encodeNameSection(ordered))

	return out, nil
}
