// Package ir defines the typed intermediate representation the code
// generator produces, the peephole optimizer rewrites, and the
// assembler serializes into a Wasm module.
package ir

import "github.com/wasmlang/compiler/internal/wasmcore"

// Instruction is a tuple (opcode, operands...). Operands are raw
// integers/floats, not yet LEB-encoded; F64Operand and F32Operand carry
// an operand that is specifically a constant of that kind, since LEB128
// operands and IEEE754 operands cannot share a single int64 slice
// without a type tag.
//
// The opcode of a deferred instruction is known at emission time —
// e.g. `call` to a not-yet-assigned function index — only its
// Operands are not; the resolver runs once every function has a known
// index and fills them in, which is what lets mutually recursive
// functions call each other before either has a final index.
type Instruction struct {
	Code       wasmcore.Opcode
	Operands   []int64
	IsF64Const bool
	F64Operand float64
	IsF32Const bool
	F32Operand float32

	Deferred bool
	Resolver func() []int64
}

// Simple builds a non-deferred instruction with integer operands.
func Simple(code wasmcore.Opcode, operands ...int64) Instruction {
	return Instruction{Code: code, Operands: operands}
}

// F64Const builds a const.f64 instruction.
func F64Const(v float64) Instruction {
	return Instruction{Code: wasmcore.OpcodeF64Const, IsF64Const: true, F64Operand: v}
}

// F32Const builds a const.f32 instruction.
func F32Const(v float32) Instruction {
	return Instruction{Code: wasmcore.OpcodeF32Const, IsF32Const: true, F32Operand: v}
}

// DeferredCall builds a `call`-family instruction whose target function
// index is not yet known; resolve is invoked once every function in the
// module has been assigned its final index (Instruction).
func DeferredCall(code wasmcore.Opcode, resolve func() []int64) Instruction {
	return Instruction{Code: code, Deferred: true, Resolver: resolve}
}

// IsDeferred reports whether i is still an unresolved placeholder.
func (i Instruction) IsDeferred() bool { return i.Deferred }

// Local is one entry of a function's local table (Function
// record: local table mapping local name to {slot-index, type}).
type Local struct {
	Name string
	Type wasmcore.ValueType
	Slot uint32
}

// LoweringState is a function's position in its lowering state machine:
//
//	UNSEEN → SCHEDULED → LOWERING → DEFERRED_PATCHED → LOWERED
type LoweringState int

const (
	Unseen LoweringState = iota
	Scheduled
	Lowering
	DeferredPatched
	Lowered
)

func (s LoweringState) String() string {
	switch s {
	case Unseen:
		return "UNSEEN"
	case Scheduled:
		return "SCHEDULED"
	case Lowering:
		return "LOWERING"
	case DeferredPatched:
		return "DEFERRED_PATCHED"
	case Lowered:
		return "LOWERED"
	}
	return "INVALID"
}

// Function is one function record.
type Function struct {
	Name    string
	Index   uint32
	Params  []wasmcore.ValueType
	// Results is (value-scalar, type-id) — exactly two entries — for
	// every function reachable from source code. Internal plumbing
	// helpers the built-in registry generates for its
	// own bookkeeping (byte copies, the bump allocator) are not
	// source-callable and are exempt; TwoResults reports which case a
	// given Function is in.
	Results      []wasmcore.ValueType
	Locals       []Local
	localsByName map[string]uint32
	Instructions []Instruction

	Internal    bool
	Async       bool
	Generator   bool
	Variadic    bool
	Constructor bool

	State LoweringState
	// Thunk lazily materializes Instructions on first demand. It is
	// cleared once State reaches Lowered.
	Thunk func() error

	// Exported, when non-empty, is the name under which the assembler
	// emits an export section entry for this function.
	Exported string
}

// NewFunction allocates a function record with its parameter locals
// already populated (slots 0..len(params)-1); subsequent locals are
// numbered contiguously from there.
func NewFunction(name string, index uint32, paramNames []string, params []wasmcore.ValueType) *Function {
	f := &Function{
		Name:         name,
		Index:        index,
		Params:       params,
		Results:      []wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32},
		localsByName: map[string]uint32{},
	}
	for i, p := range params {
		slot := uint32(i)
		nm := ""
		if i < len(paramNames) {
			nm = paramNames[i]
		}
		f.Locals = append(f.Locals, Local{Name: nm, Type: p, Slot: slot})
		if nm != "" {
			f.localsByName[nm] = slot
		}
	}
	return f
}

// TwoResults reports whether f follows the (value, type-id) calling
// convention every source-reachable function must use.
func (f *Function) TwoResults() bool {
	return len(f.Results) == 2 && f.Results[1] == wasmcore.ValueTypeI32
}

// AddLocal appends a new local after every existing one (params
// included) and returns its slot index.
func (f *Function) AddLocal(name string, t wasmcore.ValueType) uint32 {
	slot := uint32(len(f.Locals))
	f.Locals = append(f.Locals, Local{Name: name, Type: t, Slot: slot})
	if name != "" {
		f.localsByName[name] = slot
	}
	return slot
}

// Local looks up a previously added local by name.
func (f *Function) Local(name string) (uint32, bool) {
	slot, ok := f.localsByName[name]
	return slot, ok
}

// Emit appends instructions to the function body.
func (f *Function) Emit(ins ...Instruction) { f.Instructions = append(f.Instructions, ins...) }

// EnsureLowered runs Thunk if the function has not yet been lowered,
// detecting reentrant lowering (direct/mutual recursion) via the
// Lowering state.
func (f *Function) EnsureLowered() error {
	switch f.State {
	case Lowered:
		return nil
	case Lowering:
		// The caller is responsible for having already inserted a
		// Deferred instruction before recursing; nothing further to do
		// here.
		return nil
	}
	f.State = Lowering
	if f.Thunk != nil {
		if err := f.Thunk(); err != nil {
			return err
		}
	}
	f.State = Lowered
	f.Thunk = nil
	return nil
}

// Global is one module-level global.
type Global struct {
	Name    string
	Slot    uint32
	Type    wasmcore.ValueType
	Mutable bool
	Init    []Instruction
}

// DataSegment is a named block of passive-turned-active bytes destined
// for the binary's data section. Offset is the linear-memory address
// reserved for it at codegen time.
type DataSegment struct {
	Name   string
	Bytes  []byte
	Offset uint32
}

// Page is one symbolic region of linear memory.
type Page struct {
	Name    string
	Ordinal uint32
}

// Tag is a Wasm exception tag: an index plus its parameter types.
type Tag struct {
	Name   string
	Index  uint32
	Params []wasmcore.ValueType
}

// Exception binds a language-level error constructor name to the Tag
// thrown/caught for it.
type Exception struct {
	ConstructorName string
	Tag             *Tag
}

// Import is a host-supplied function the module depends on. Tree-shaking
// may drop any Import never referenced by a reachable instruction.
type Import struct {
	Module string
	Name   string
	Index  uint32
	Params []wasmcore.ValueType
	// Results mirrors the host signature exactly (not padded to two
	// entries the way module-defined functions are) since imports are
	// host functions, not compiled source functions.
	Results []wasmcore.ValueType
}

// Module is the aggregate IR the optimizer rewrites and the assembler
// serializes (Module).
type Module struct {
	MemoryExportName string
	MemoryPages      uint32

	Imports   []*Import
	Functions []*Function
	Globals   []*Global
	Tags      []*Tag
	Exceptions []*Exception
	Pages     []*Page
	Data      []*DataSegment

	// MainIndex is the function index of the synthetic `#main` entry
	// point (Synthetic entry).
	MainIndex uint32

	nextFuncIndex uint32
}

// NewModule creates an empty module with the conventional memory export
// name (Binary output: "Linear memory is exported under the
// conventional name `$`").
func NewModule() *Module {
	return &Module{MemoryExportName: "$", MemoryPages: 1}
}

// ReserveFunction allocates the next function index without requiring
// the function body to exist yet, so forward/recursive references can
// be resolved before the function is lowered (Cyclic
// references between functions).
func (m *Module) ReserveFunction(name string, paramNames []string, params []wasmcore.ValueType) *Function {
	idx := uint32(len(m.Imports)) + m.nextFuncIndex
	m.nextFuncIndex++
	f := NewFunction(name, idx, paramNames, params)
	f.State = Scheduled
	m.Functions = append(m.Functions, f)
	return f
}

// AddImport appends a host import and returns it with its index
// assigned (Built-ins: "Import ordinals are assigned at
// first use").
func (m *Module) AddImport(module, name string, params, results []wasmcore.ValueType) *Import {
	for _, existing := range m.Imports {
		if existing.Module == module && existing.Name == name {
			return existing
		}
	}
	imp := &Import{Module: module, Name: name, Index: uint32(len(m.Imports)), Params: params, Results: results}
	m.Imports = append(m.Imports, imp)
	// Module-defined function indices follow all imports; since we just
	// grew the import table, shift every already-reserved function
	// index up by one to preserve "imports precede defined functions"
	// (Section order / Tree-shaking renumbering happens
	// again, definitively, in the assembler — this keeps indices
	// consistent for any deferred resolver captured before assembly).
	for _, f := range m.Functions {
		f.Index++
	}
	return imp
}

// AddGlobal appends a module-level global.
func (m *Module) AddGlobal(name string, t wasmcore.ValueType, mutable bool, init []Instruction) *Global {
	g := &Global{Name: name, Slot: uint32(len(m.Globals)), Type: t, Mutable: mutable, Init: init}
	m.Globals = append(m.Globals, g)
	return g
}

// AddTag appends an exception tag.
func (m *Module) AddTag(name string, params []wasmcore.ValueType) *Tag {
	t := &Tag{Name: name, Index: uint32(len(m.Tags)), Params: params}
	m.Tags = append(m.Tags, t)
	return t
}

// AddPage appends a symbolic linear-memory region.
func (m *Module) AddPage(name string) *Page {
	p := &Page{Name: name, Ordinal: uint32(len(m.Pages))}
	m.Pages = append(m.Pages, p)
	return p
}

// AddData appends a data segment reserved at the given offset.
func (m *Module) AddData(name string, bytes []byte, offset uint32) *DataSegment {
	d := &DataSegment{Name: name, Bytes: bytes, Offset: offset}
	m.Data = append(m.Data, d)
	return d
}

// FunctionByName finds a previously reserved function.
func (m *Module) FunctionByName(name string) (*Function, bool) {
	for _, f := range m.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// ResolveDeferred walks every function body and replaces each deferred
// instruction by invoking its resolver (Deferred
// resolution). It must run after every function reachable from `#main`
// has been lowered and before assembly.
func (m *Module) ResolveDeferred() error {
	for _, f := range m.Functions {
		for i := range f.Instructions {
			ins := &f.Instructions[i]
			if ins.IsDeferred() {
				ins.Operands = ins.Resolver()
				ins.Deferred = false
				ins.Resolver = nil
			}
		}
	}
	return nil
}
