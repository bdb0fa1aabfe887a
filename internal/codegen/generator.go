// Package codegen lowers an annotated ast.Program into the typed ir.Module
// the peephole optimizer and assembler consume (Code
// Generator). It drives per-function lazy lowering the same way the
// teacher's frontend drives SSA construction: a stack of values paired
// with a stack of control frames, one compile method per AST node kind
// (tetratelabs-wazero/internal/engine/wazevo/frontend/lower.go), with the
// family of compile methods shaped like
// tetratelabs-wazero/internal/engine/compiler/compiler.go's one-method-
// per-operation interface.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wasmlang/compiler/ast"
	"github.com/wasmlang/compiler/internal/analyzer"
	"github.com/wasmlang/compiler/internal/builtins"
	"github.com/wasmlang/compiler/internal/config"
	"github.com/wasmlang/compiler/internal/diag"
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/types"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

// Generator owns the module under construction and every piece of state
// shared across functions: the built-in registry, the analyzer's
// binding table, and the handful of module-wide runtime helpers codegen
// itself needs (distinct from builtins.Registry's, which are language
// built-ins rather than codegen plumbing).
type Generator struct {
	module *ir.Module
	reg    *builtins.Registry
	info   *analyzer.Info
	cfg    config.Config

	bindings map[string]*analyzer.Binding

	// funcByName holds every statically named function (top-level
	// declarations and named function expressions), keyed by its unique
	// binding name, reserved up front so forward and recursive calls can
	// be lowered before the callee's body is materialized.
	funcByName map[string]*ir.Function

	// closureTarget traces the common closure-factory pattern —
	// `let c = (function(){ ... return function(){...}; })();` — so a
	// later `c()` call can be lowered as a direct `call` to the traced
	// function literal instead of requiring a dynamic call_indirect/
	// table dispatch. This is a deliberate narrowing (see DESIGN.md):
	// only the traced patterns (direct function-literal initializer, or
	// an IIFE whose body returns one) resolve; anything else reaching a
	// call site as an unresolved callee is an UnsupportedError.
	closureTarget map[string]*ir.Function

	// funcEnv records, for every closure-eligible *ir.Function, the
	// ordered list of outer unique binding names it captures — the
	// layout of its trailing hidden environment pointer: the inner
	// function receives the cell pointer at construction.
	funcEnv map[*ir.Function][]string

	objectGetFn *ir.Function
	toBoolFn    *ir.Function
	modFn       *ir.Function
	typeofFn    *ir.Function

	// excTag is the single exception tag every `throw`/`catch` lowers
	// through (Exception tag and exception record): this
	// source language has no user-declared error classes, so one
	// generic (value, type-id) tag suffices for every throw site.
	excTag *ir.Tag

	// litFn memoizes the *ir.Function reserved for a given function-literal
	// AST node (FunctionExpression/ArrowFunctionExpression), so tracing a
	// closure-factory pattern and later lowering the literal as an
	// ordinary expression both resolve to the same reservation instead of
	// double-reserving it (Closures).
	litFn map[ast.Node]*ir.Function

	anonCounter     int
	dataCursor      uint32
	internedStrings map[string]uint32
}

// Generate lowers prog into a fresh ir.Module. info is the result of
// analyzer.Analyze (or a zero-value *analyzer.Info with an empty Program
// scope when config.Config.Closures is off — in that mode no binding is
// renamed or promoted to a heap cell: every variable is a plain local
// keyed by its source name, and no reference is lowered as a global
// access).
func Generate(prog *ast.Program, info *analyzer.Info, cfg config.Config) (*ir.Module, error) {
	m := ir.NewModule()
	g := &Generator{
		module:        m,
		reg:           builtins.New(m),
		info:          info,
		cfg:           cfg,
		bindings:      info.BindingsByUniqueName(),
		funcByName:    map[string]*ir.Function{},
		closureTarget: map[string]*ir.Function{},
		funcEnv:       map[*ir.Function][]string{},
		litFn:         map[ast.Node]*ir.Function{},
	}

	// Reserve every top-level function declaration before lowering #main
	// so forward references (a function called before its textual
	// declaration) and recursive self-calls resolve without a second
	// pass (Cyclic references between functions).
	var topLevelFns []*ast.FunctionDeclaration
	for _, s := range prog.Body {
		if fd, ok := s.(*ast.FunctionDeclaration); ok {
			topLevelFns = append(topLevelFns, fd)
			g.reserveNamedFunction(fd.Id.Name, &fd.Function, fd)
		}
	}

	main := m.ReserveFunction("#main", nil, nil)
	// Exported as "m" (Binary output contract), distinct from
	// its internal Name: every other lookup in this package keys off the
	// latter.
	main.Exported = "m"
	m.MainIndex = main.Index
	main.Thunk = func() error {
		fc := g.newFuncCtx(main)
		for _, s := range prog.Body {
			if _, ok := s.(*ast.FunctionDeclaration); ok {
				continue
			}
			if err := fc.lowerStmt(s); err != nil {
				return err
			}
		}
		main.Emit(
			ir.F64Const(0),
			ir.Simple(wasmcore.OpcodeI32Const, int64(types.Undefined)),
			ir.Simple(wasmcore.OpcodeReturn),
		)
		return nil
	}
	if err := main.EnsureLowered(); err != nil {
		return nil, err
	}

	// Every top-level declared function is exported (Binary
	// output: "plus one export per declared top-level function"), so it
	// must be fully materialized even if #main never called it.
	for _, fd := range topLevelFns {
		fn := g.funcByName[fd.Id.Name]
		fn.Exported = fd.Id.Name
		if err := fn.EnsureLowered(); err != nil {
			return nil, err
		}
	}

	if err := m.ResolveDeferred(); err != nil {
		return nil, err
	}
	g.finalizeHeapBase()
	return m, nil
}

// reserveNamedFunction reserves fn's IR function and installs its lazy
// thunk, without lowering it (Per-function lazy lowering).
func (g *Generator) reserveNamedFunction(uniqueName string, fn *ast.Function, owner ast.Node) *ir.Function {
	captures := g.captureNamesFor(owner)
	paramNames, params := g.paramSignature(fn, len(captures) > 0)
	irFn := g.module.ReserveFunction(uniqueName, paramNames, params)
	if len(captures) > 0 {
		g.funcEnv[irFn] = captures
	}
	g.funcByName[uniqueName] = irFn
	irFn.Thunk = func() error {
		fc := g.newFuncCtx(irFn)
		fc.bindEnv(captures)
		for _, s := range fn.Body.Body {
			if err := fc.lowerStmt(s); err != nil {
				return err
			}
		}
		irFn.Emit(
			ir.F64Const(0),
			ir.Simple(wasmcore.OpcodeI32Const, int64(types.Undefined)),
			ir.Simple(wasmcore.OpcodeReturn),
		)
		return nil
	}
	return irFn
}

// captureNamesFor looks up the environment layout the analyzer computed
// for a function-scope-forming node, or nil when it captures nothing.
func (g *Generator) captureNamesFor(owner ast.Node) []string {
	scope, ok := g.info.Scopes[owner]
	if !ok {
		return nil
	}
	return g.info.Captures[scope]
}

// paramSignature builds the (names, types) pair for a function's Wasm
// parameters: every declared JS parameter becomes a (value f64, type
// i32) pair, per the same convention every runtime value uses; a
// closure gets one trailing i32 "env" parameter (Closures).
func (g *Generator) paramSignature(fn *ast.Function, needsEnv bool) ([]string, []wasmcore.ValueType) {
	var names []string
	var params []wasmcore.ValueType
	for _, p := range fn.Params {
		names = append(names, p.Name, p.Name+"$type")
		params = append(params, wasmcore.ValueTypeF64, wasmcore.ValueTypeI32)
	}
	if needsEnv {
		names = append(names, "$env")
		params = append(params, wasmcore.ValueTypeI32)
	}
	return names, params
}

// funcCtx carries one function's own lowering state: its local-slot
// tables and the open block/loop frame stack break/continue address by
// depth (Statement lowering).
type funcCtx struct {
	gen *Generator
	fn  *ir.Function

	// valueSlot/typeSlot map a JS binding's unique name to the pair of
	// Wasm locals holding its (value, type-id), when it is stored as a
	// plain local rather than a heap cell.
	valueSlot map[string]uint32
	typeSlot  map[string]uint32
	// cellSlot maps a captured binding's unique name to the local
	// holding its heap cell pointer (Closures).
	cellSlot map[string]uint32
	// envSlot, when non-zero length, names the local holding this
	// function's incoming environment pointer.
	envSlot uint32
	hasEnv  bool

	// declHint tracks each binding's most recently known static type hint
	// (Type tracking), updated at every declaration and
	// plain "=" assignment so a later member/index access or method call
	// through a variable — not just through an inline literal — can
	// still resolve its receiver's concrete type.
	declHint map[string]types.Hint

	frames []frame
}

type frameKind int

const (
	frameBlock  frameKind = iota // a break target: a loop's outer block, a switch, or a labeled block
	frameLoop                    // a continue target: the inner block wrapping one loop iteration's body
	frameOpaque                  // any other open block/if/try that still occupies a branch-depth slot
)

type frame struct {
	kind  frameKind
	label string
}

func (fc *funcCtx) pushFrame(kind frameKind, label string) {
	fc.frames = append(fc.frames, frame{kind: kind, label: label})
}

func (fc *funcCtx) popFrame() {
	fc.frames = fc.frames[:len(fc.frames)-1]
}

// branchDepth finds the nearest open frame break/continue should target
// and returns its relative Wasm branch depth (Statement
// lowering), counting every open block/loop/if in between — including
// ones with no label of their own (frameOpaque) — since each occupies
// one level of `br`'s relative-depth numbering.
func (fc *funcCtx) branchDepth(label string, wantContinue bool) (int, bool) {
	targetKind := frameBlock
	if wantContinue {
		targetKind = frameLoop
	}
	for i := len(fc.frames) - 1; i >= 0; i-- {
		f := fc.frames[i]
		if f.kind != targetKind {
			continue
		}
		if label != "" && f.label != label {
			continue
		}
		depth := len(fc.frames) - 1 - i
		// Every frameLoop sits directly inside its loop's `loop`
		// instruction, which has no frame of its own: a branch that
		// leaves a frameLoop also crosses that loop's level.
		for _, inner := range fc.frames[i+1:] {
			if inner.kind == frameLoop {
				depth++
			}
		}
		return depth, true
	}
	return 0, false
}

// exceptionTag returns the module's single generic exception tag,
// reserving it on first use.
func (g *Generator) exceptionTag() *ir.Tag {
	if g.excTag == nil {
		g.excTag = g.module.AddTag("#exception", []wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32})
	}
	return g.excTag
}

func (g *Generator) newFuncCtx(fn *ir.Function) *funcCtx {
	fc := &funcCtx{
		gen:       g,
		fn:        fn,
		valueSlot: map[string]uint32{},
		typeSlot:  map[string]uint32{},
		cellSlot:  map[string]uint32{},
		declHint:  map[string]types.Hint{},
	}
	for _, l := range fn.Locals {
		switch {
		case strings.HasSuffix(l.Name, "$type"):
			fc.typeSlot[strings.TrimSuffix(l.Name, "$type")] = l.Slot
		case l.Name == "$env":
			fc.envSlot = l.Slot
			fc.hasEnv = true
		case l.Name != "":
			fc.valueSlot[l.Name] = l.Slot
		}
	}
	// Promote any parameter the analyzer flagged captured to a heap
	// cell: the external calling convention is unchanged (callers still
	// pass a plain (value, type) pair), but the body addresses it
	// through a cell from here on so a nested closure can share the
	// same storage (Closures). Parameter names are sorted
	// first so the emitted prologue order is deterministic.
	var capturedParams []string
	for name := range fc.valueSlot {
		if b := g.bindings[name]; b != nil && b.Captured {
			capturedParams = append(capturedParams, name)
		}
	}
	sort.Strings(capturedParams)
	for _, name := range capturedParams {
		vSlot := fc.valueSlot[name]
		tSlot := fc.typeSlot[name]
		g.allocCell(fn)
		cellSlot := fn.AddLocal("$cell_"+name, wasmcore.ValueTypeI32)
		fn.Emit(
			ir.Simple(wasmcore.OpcodeLocalTee, int64(cellSlot)),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(vSlot)),
			ir.Simple(wasmcore.OpcodeF64Store, 0, 0),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(cellSlot)),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(tSlot)),
			ir.Simple(wasmcore.OpcodeI32Store, 0, 8),
		)
		fc.cellSlot[name] = cellSlot
		delete(fc.valueSlot, name)
		delete(fc.typeSlot, name)
	}
	return fc
}

// bindEnv loads each captured cell pointer out of the incoming $env
// record (one i32 pointer per captured name) into a dedicated local so
// the body addresses them like any other captured binding.
func (fc *funcCtx) bindEnv(captures []string) {
	if len(captures) == 0 {
		return
	}
	for i, name := range captures {
		slot := fc.fn.AddLocal("$cell_"+name, wasmcore.ValueTypeI32)
		fc.cellSlot[name] = slot
		fc.fn.Emit(
			ir.Simple(wasmcore.OpcodeLocalGet, int64(fc.envSlot)),
			ir.Simple(wasmcore.OpcodeI32Load, 0, int64(i*4)),
			ir.Simple(wasmcore.OpcodeLocalSet, int64(slot)),
		)
	}
}

// declareLocal allocates storage for a new JS binding — a heap cell if
// the analyzer flagged it captured, otherwise a plain (value, type)
// local pair — without consuming anything on the stack. assignLocal
// stores an already-evaluated (value, type) pair into whichever
// storage declareLocal picked.
func (fc *funcCtx) declareLocal(uniqueName string) {
	if _, ok := fc.cellSlot[uniqueName]; ok {
		return
	}
	if _, ok := fc.valueSlot[uniqueName]; ok {
		return
	}
	b := fc.gen.bindings[uniqueName]
	if b != nil && b.Captured {
		fc.gen.allocCell(fc.fn)
		slot := fc.fn.AddLocal("$cell_"+uniqueName, wasmcore.ValueTypeI32)
		fc.cellSlot[uniqueName] = slot
		fc.fn.Emit(ir.Simple(wasmcore.OpcodeLocalSet, int64(slot)))
		return
	}
	v := fc.fn.AddLocal(uniqueName, wasmcore.ValueTypeF64)
	t := fc.fn.AddLocal(uniqueName+"$type", wasmcore.ValueTypeI32)
	fc.valueSlot[uniqueName] = v
	fc.typeSlot[uniqueName] = t
}

// assignLocal stores the (value, type) pair currently on top of the
// stack (value pushed first, type pushed last so type is on top) into
// uniqueName's existing storage, calling declareLocal first if it has
// none yet.
func (fc *funcCtx) assignLocal(uniqueName string) {
	fc.declareLocal(uniqueName)
	if cell, ok := fc.cellSlot[uniqueName]; ok {
		// Stack on entry: [value, type] (type on top). Stash both in
		// scratch locals, then write them through the cell pointer.
		tmpType := fc.fn.AddLocal("", wasmcore.ValueTypeI32)
		tmpValue := fc.fn.AddLocal("", wasmcore.ValueTypeF64)
		fc.fn.Emit(
			ir.Simple(wasmcore.OpcodeLocalSet, int64(tmpType)),
			ir.Simple(wasmcore.OpcodeLocalSet, int64(tmpValue)),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(cell)),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(tmpValue)),
			ir.Simple(wasmcore.OpcodeF64Store, 0, 0),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(cell)),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(tmpType)),
			ir.Simple(wasmcore.OpcodeI32Store, 0, 8),
		)
		return
	}
	v, t := fc.valueSlot[uniqueName], fc.typeSlot[uniqueName]
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalSet, int64(t)),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(v)),
	)
}

// loadLocal pushes uniqueName's (value, type) pair, reading through its
// cell if the analyzer flagged it captured.
func (fc *funcCtx) loadLocal(uniqueName string) {
	if cell, ok := fc.cellSlot[uniqueName]; ok {
		fc.fn.Emit(
			ir.Simple(wasmcore.OpcodeLocalGet, int64(cell)),
			ir.Simple(wasmcore.OpcodeF64Load, 0, 0),
			ir.Simple(wasmcore.OpcodeLocalGet, int64(cell)),
			ir.Simple(wasmcore.OpcodeI32Load, 0, 8),
		)
		return
	}
	v, t := fc.valueSlot[uniqueName], fc.typeSlot[uniqueName]
	fc.fn.Emit(
		ir.Simple(wasmcore.OpcodeLocalGet, int64(v)),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(t)),
	)
}

// allocCell emits `alloc(12)`, leaving the new cell's pointer on the
// stack (12 bytes: an 8-byte value slot plus a 4-byte type-id slot —
// a heap cell with a single slot).
func (g *Generator) allocCell(fn *ir.Function) {
	alloc := g.reg.Alloc()
	fn.Emit(
		ir.Simple(wasmcore.OpcodeI32Const, 12),
		ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(alloc.Index)} }),
	)
}

// unsupported builds the standard UnsupportedError for a node the
// generator does not lower (Errors).
func unsupported(n ast.Node, format string, args ...interface{}) error {
	pos := n.Pos()
	return diag.Unsupported(diag.Position{Line: pos.Line, Column: pos.Column}, format, args...)
}

func (g *Generator) nextAnonName() string {
	g.anonCounter++
	return fmt.Sprintf("#anon%d", g.anonCounter)
}
