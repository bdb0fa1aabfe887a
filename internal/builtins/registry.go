// Package builtins is the built-in registry: host import descriptors
// plus prebuilt IR for the source language's standard-library
// prototype methods, dispatched by a static (type-id, method-name) table.
package builtins

import (
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/types"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

// Registry lazily contributes imports and runtime-support functions to a
// Module, assigning import ordinals and function indices at first use.
type Registry struct {
	module *ir.Module

	print      *ir.Import
	printChar  *ir.Import
	timeImp    *ir.Import
	timeOrigin *ir.Import

	heapTop *ir.Global

	lazy map[string]*ir.Function

	methods map[methodKey]func() *ir.Function
}

type methodKey struct {
	recv types.ID
	name string
}

// New builds a Registry bound to m. It registers no imports or functions
// until one is actually requested.
func New(m *ir.Module) *Registry {
	r := &Registry{module: m, lazy: map[string]*ir.Function{}}
	r.methods = map[methodKey]func() *ir.Function{
		{types.Array, "push"}:     r.ArrayPush,
		{types.Array, "length"}:   r.ArrayLength,
		{types.String, "length"}:  r.StringLength,
		{types.String, "charAt"}:  r.StringCharAt,
		{types.Number, "toString"}: r.NumberToString,
	}
	return r
}

// Print returns the `print (f64) →` host import.
func (r *Registry) Print() *ir.Import {
	if r.print == nil {
		r.print = r.module.AddImport("env", "print", []wasmcore.ValueType{wasmcore.ValueTypeF64}, nil)
	}
	return r.print
}

// PrintChar returns the `printChar (i32) →` host import.
func (r *Registry) PrintChar() *ir.Import {
	if r.printChar == nil {
		r.printChar = r.module.AddImport("env", "printChar", []wasmcore.ValueType{wasmcore.ValueTypeI32}, nil)
	}
	return r.printChar
}

// Time returns the `time → f64` host import (monotonic milliseconds).
func (r *Registry) Time() *ir.Import {
	if r.timeImp == nil {
		r.timeImp = r.module.AddImport("env", "time", nil, []wasmcore.ValueType{wasmcore.ValueTypeF64})
	}
	return r.timeImp
}

// TimeOrigin returns the `timeOrigin → f64` host import.
func (r *Registry) TimeOrigin() *ir.Import {
	if r.timeOrigin == nil {
		r.timeOrigin = r.module.AddImport("env", "timeOrigin", nil, []wasmcore.ValueType{wasmcore.ValueTypeF64})
	}
	return r.timeOrigin
}

// HeapTop returns the module's bump-allocator cursor global, creating it
// (initialized past the reserved static-data region) on first use.
func (r *Registry) HeapTop() *ir.Global {
	if r.heapTop == nil {
		// Static data for string literals is laid out starting at
		// byte 8 (the first 8 bytes are reserved so offset 0 is never a
		// valid pointer, making a null object reference detectable).
		r.heapTop = r.module.AddGlobal("heap_top", wasmcore.ValueTypeI32, true,
			[]ir.Instruction{ir.Simple(wasmcore.OpcodeI32Const, 8)})
	}
	return r.heapTop
}

// Method looks up the prebuilt IR for a prototype method, building it
// lazily on first request. A method's function is reserved when it is
// first requested, so function indices follow first-use order, not the
// order of the map literal in New — this affects only index assignment
// and tree-shaking statistics, not reachability.
func (r *Registry) Method(recv types.ID, name string) (*ir.Function, bool) {
	build, ok := r.methods[methodKey{recv, name}]
	if !ok {
		return nil, false
	}
	return build(), true
}

// runtimeFunc memoizes a lazily-constructed runtime support function by
// name, following the same reserve-then-thunk protocol codegen uses for
// source functions (state machine) so recursive runtime
// helpers (none currently are, but ToString-family growth might add
// one) are handled uniformly.
func (r *Registry) runtimeFunc(name string, paramNames []string, params []wasmcore.ValueType, results []wasmcore.ValueType, build func(f *ir.Function)) *ir.Function {
	if f, ok := r.lazy[name]; ok {
		return f
	}
	f := r.module.ReserveFunction(name, paramNames, params)
	f.Internal = true
	f.Results = results
	r.lazy[name] = f
	build(f)
	f.State = ir.Lowered
	return f
}
