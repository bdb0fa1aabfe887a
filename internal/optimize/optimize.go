// Package optimize implements the peephole optimizer: an ordered list
// of local, provably-sound Rule rewrites applied to each Lowered
// function's instruction sequence until a fixed point is reached,
// repeated Config.OptPasses times.
//
// The pass-ordering idiom follows tetratelabs-wazero's own SSA
// optimizer (internal/engine/wazevo/ssa/pass.go): a small set of
// named, single-purpose rewrites run in a fixed order rather than one
// monolithic rewrite function. Unlike wazero's CFG-level passes, every
// rule here operates on a flat instruction slice — this IR has no
// basic-block graph, only the block/loop/if nesting already present
// in the instruction stream.
package optimize

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/wasmlang/compiler/internal/config"
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

// lastTypeLocal is the synthetic local name the dead-type-tag-writes
// rule targets. No current code generator pattern
// emits a local under this name, but a future one might (e.g. a
// multi-way dispatch helper caching the last-seen type tag), so the
// rule stays in the table rather than being deleted as dead code.
const lastTypeLocal = "#last_type"

// Rule is one entry of the canonical rule table. Apply
// inspects ins starting at index i and, if its pattern matches at that
// position, returns the replacement instructions plus how many of the
// original instructions the match consumed. ok is false when the
// pattern does not match at i, in which case replacement and consumed
// are meaningless.
type Rule struct {
	Name  string
	Apply func(ins []ir.Instruction, i int) (replacement []ir.Instruction, consumed int, ok bool)
}

// Rules is the fixed table of peephole rewrites, applied in this
// order. ruleTailCall is appended separately by rulesFor, since it
// only fires when Config.TailCall is enabled.
var Rules = []Rule{
	{Name: "tee-reload", Apply: ruleTeeReload},
	{Name: "dead-load", Apply: ruleDeadLoad},
	{Name: "tee-drop", Apply: ruleTeeDrop},
	{Name: "dead-const", Apply: ruleDeadConst},
	{Name: "eqz-canonicalization", Apply: ruleEqzCanonicalization},
	{Name: "identity-conversion", Apply: ruleIdentityConversion},
	{Name: "const-trunc-fold", Apply: ruleConstTruncFold},
	{Name: "empty-block", Apply: ruleEmptyBlock},
}

var ruleTailCallEntry = Rule{Name: "tail-call", Apply: ruleTailCall}

func rulesFor(cfg config.Config) []Rule {
	if !cfg.TailCall {
		return Rules
	}
	return append(append([]Rule{}, Rules...), ruleTailCallEntry)
}

// ruleTeeReload: `local.set k; local.get k` -> `local.tee k`.
func ruleTeeReload(ins []ir.Instruction, i int) ([]ir.Instruction, int, bool) {
	if i+1 >= len(ins) {
		return nil, 0, false
	}
	a, b := ins[i], ins[i+1]
	if a.Code != wasmcore.OpcodeLocalSet || b.Code != wasmcore.OpcodeLocalGet {
		return nil, 0, false
	}
	if len(a.Operands) != 1 || len(b.Operands) != 1 || a.Operands[0] != b.Operands[0] {
		return nil, 0, false
	}
	return []ir.Instruction{ir.Simple(wasmcore.OpcodeLocalTee, a.Operands[0])}, 2, true
}

// ruleDeadLoad: `local.get k; drop` -> nothing.
func ruleDeadLoad(ins []ir.Instruction, i int) ([]ir.Instruction, int, bool) {
	if i+1 >= len(ins) {
		return nil, 0, false
	}
	if ins[i].Code != wasmcore.OpcodeLocalGet || ins[i+1].Code != wasmcore.OpcodeDrop {
		return nil, 0, false
	}
	return nil, 2, true
}

// ruleTeeDrop: `local.tee k; drop` -> `local.set k` (the tee's value was
// never read, only its storing side effect mattered).
func ruleTeeDrop(ins []ir.Instruction, i int) ([]ir.Instruction, int, bool) {
	if i+1 >= len(ins) {
		return nil, 0, false
	}
	a, b := ins[i], ins[i+1]
	if a.Code != wasmcore.OpcodeLocalTee || b.Code != wasmcore.OpcodeDrop {
		return nil, 0, false
	}
	return []ir.Instruction{ir.Simple(wasmcore.OpcodeLocalSet, a.Operands[0])}, 2, true
}

// ruleDeadConst: `<const>; drop` -> nothing.
func ruleDeadConst(ins []ir.Instruction, i int) ([]ir.Instruction, int, bool) {
	if i+1 >= len(ins) {
		return nil, 0, false
	}
	if ins[i+1].Code != wasmcore.OpcodeDrop || !isConst(ins[i]) {
		return nil, 0, false
	}
	return nil, 2, true
}

func isConst(in ir.Instruction) bool {
	if in.IsF64Const || in.IsF32Const {
		return true
	}
	switch in.Code {
	case wasmcore.OpcodeI32Const, wasmcore.OpcodeI64Const:
		return true
	}
	return false
}

// ruleEqzCanonicalization: `i32.const 0; i32.eq` -> `i32.eqz`.
func ruleEqzCanonicalization(ins []ir.Instruction, i int) ([]ir.Instruction, int, bool) {
	if i+1 >= len(ins) {
		return nil, 0, false
	}
	a, b := ins[i], ins[i+1]
	if a.Code != wasmcore.OpcodeI32Const || len(a.Operands) != 1 || a.Operands[0] != 0 {
		return nil, 0, false
	}
	if b.Code != wasmcore.OpcodeI32Eq {
		return nil, 0, false
	}
	return []ir.Instruction{ir.Simple(wasmcore.OpcodeI32Eqz)}, 2, true
}

// identityConversionPairs are the opcode pairs this IR can actually
// emit whose composition is the identity function: a value converted
// out of a type and immediately back loses nothing and changes
// nothing observable. i32->i64->i32 is the canonical case;
// f64.convert_i32_s followed by i32.trunc_f64_s is its analogous f64
// round-trip (every i32 is exactly representable as f64, so
// truncating straight back recovers the original bits).
var identityConversionPairs = [][2]wasmcore.Opcode{
	{wasmcore.OpcodeI64ExtendI32S, wasmcore.OpcodeI32WrapI64},
	{wasmcore.OpcodeF64ConvertI32S, wasmcore.OpcodeI32TruncF64S},
}

func ruleIdentityConversion(ins []ir.Instruction, i int) ([]ir.Instruction, int, bool) {
	if i+1 >= len(ins) {
		return nil, 0, false
	}
	for _, pair := range identityConversionPairs {
		if ins[i].Code == pair[0] && ins[i+1].Code == pair[1] {
			return nil, 2, true
		}
	}
	return nil, 0, false
}

// ruleConstTruncFold: `<f64.const c>; i32.trunc_f64_s` -> `i32.const
// floor(c)`.
func ruleConstTruncFold(ins []ir.Instruction, i int) ([]ir.Instruction, int, bool) {
	if i+1 >= len(ins) {
		return nil, 0, false
	}
	a, b := ins[i], ins[i+1]
	if !a.IsF64Const || b.Code != wasmcore.OpcodeI32TruncF64S {
		return nil, 0, false
	}
	return []ir.Instruction{ir.Simple(wasmcore.OpcodeI32Const, int64(math.Floor(a.F64Operand)))}, 2, true
}

// ruleEmptyBlock: an empty `block ... end` with nothing between the two
// is never the target of a branch (there is nothing inside it for a
// branch to originate from), so it can always be stripped.
func ruleEmptyBlock(ins []ir.Instruction, i int) ([]ir.Instruction, int, bool) {
	if i+1 >= len(ins) {
		return nil, 0, false
	}
	if ins[i].Code != wasmcore.OpcodeBlock || ins[i+1].Code != wasmcore.OpcodeEnd {
		return nil, 0, false
	}
	return nil, 2, true
}

// ruleTailCall: `call f; return` -> `return_call f`. Only included when
// Config.TailCall is set, since return_call requires host support for
// the tail-call proposal.
func ruleTailCall(ins []ir.Instruction, i int) ([]ir.Instruction, int, bool) {
	if i+1 >= len(ins) {
		return nil, 0, false
	}
	a, b := ins[i], ins[i+1]
	if a.Code != wasmcore.OpcodeCall || b.Code != wasmcore.OpcodeReturn {
		return nil, 0, false
	}
	tail := a
	tail.Code = wasmcore.OpcodeReturnCall
	return []ir.Instruction{tail}, 2, true
}

// isControlFlow bounds the dead-type-tag-write scan below: a
// branch, call, or structured-control instruction may jump to or be
// reached from code this linear scan cannot see, so the scan gives up
// and assumes the write might still be read rather than risk discarding
// a live one.
func isControlFlow(c wasmcore.Opcode) bool {
	switch c {
	case wasmcore.OpcodeBlock, wasmcore.OpcodeLoop, wasmcore.OpcodeIf, wasmcore.OpcodeElse, wasmcore.OpcodeEnd,
		wasmcore.OpcodeBr, wasmcore.OpcodeBrIf, wasmcore.OpcodeBrTable, wasmcore.OpcodeReturn,
		wasmcore.OpcodeCall, wasmcore.OpcodeCallIndirect, wasmcore.OpcodeReturnCall, wasmcore.OpcodeReturnCallIndirect,
		wasmcore.OpcodeUnreachable,
		wasmcore.OpcodeTry, wasmcore.OpcodeCatch, wasmcore.OpcodeCatchAll, wasmcore.OpcodeThrow, wasmcore.OpcodeRethrow:
		return true
	}
	return false
}

// eliminateDeadTypeTagWrites elides any write to the synthetic
// #last_type local that has no later read, turning the write into a
// drop so the stack effect (one value consumed) is unchanged — a
// later pass over the table above then has a chance to fold that drop
// together with whatever produced the value.
func eliminateDeadTypeTagWrites(f *ir.Function) int {
	slot, ok := f.Local(lastTypeLocal)
	if !ok {
		return 0
	}
	ins := f.Instructions
	removed := 0
	for i := range ins {
		cur := ins[i]
		if cur.Code != wasmcore.OpcodeLocalSet || len(cur.Operands) != 1 || uint32(cur.Operands[0]) != slot {
			continue
		}
		dead := true
		for j := i + 1; j < len(ins); j++ {
			nxt := ins[j]
			if len(nxt.Operands) == 1 && uint32(nxt.Operands[0]) == slot {
				if nxt.Code == wasmcore.OpcodeLocalGet {
					dead = false
				}
				break
			}
			if isControlFlow(nxt.Code) {
				dead = false
				break
			}
		}
		if dead {
			ins[i] = ir.Simple(wasmcore.OpcodeDrop)
			removed++
		}
	}
	f.Instructions = ins
	return removed
}

// Stats tallies how many times each rule fired, across every function
// a single Optimize call processed.
type Stats struct {
	Rewrites map[string]int
}

func newStats() Stats { return Stats{Rewrites: map[string]int{}} }

// OptimizeFunction applies rulesFor(cfg) to f.Instructions, running each
// pass to a fixed point and repeating for cfg.OptPasses configurable
// passes. f must already be ir.Lowered; only a Lowered function's
// instruction stream is stable enough to rewrite, so that is the
// caller's responsibility.
func OptimizeFunction(f *ir.Function, cfg config.Config, stats Stats) {
	rules := rulesFor(cfg)
	for pass := 0; pass < cfg.OptPasses; pass++ {
		for {
			changed := false
			out := make([]ir.Instruction, 0, len(f.Instructions))
			ins := f.Instructions
			i := 0
			for i < len(ins) {
				matched := false
				for _, r := range rules {
					replacement, consumed, ok := r.Apply(ins, i)
					if !ok {
						continue
					}
					out = append(out, replacement...)
					i += consumed
					stats.Rewrites[r.Name]++
					changed, matched = true, true
					break
				}
				if !matched {
					out = append(out, ins[i])
					i++
				}
			}
			f.Instructions = out
			if n := eliminateDeadTypeTagWrites(f); n > 0 {
				stats.Rewrites["dead-type-tag-write"] += n
				changed = true
			}
			if !changed {
				break
			}
		}
	}
}

// Optimize runs OptimizeFunction over every Lowered function in m.
// Unlowered functions never reach this stage in a correct compile, so
// any other function is skipped rather than treated as an error — a
// generator bug, not something this stage should itself fail on.
func Optimize(m *ir.Module, cfg config.Config, logger logrus.FieldLogger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	stats := newStats()
	for _, f := range m.Functions {
		if f.State != ir.Lowered {
			continue
		}
		OptimizeFunction(f, cfg, stats)
	}
	total := 0
	for _, n := range stats.Rewrites {
		total += n
	}
	logger.WithField("stage", "optimize").WithField("rewrites", total).WithField("byRule", stats.Rewrites).Debug("optimizer finished")
	return nil
}
