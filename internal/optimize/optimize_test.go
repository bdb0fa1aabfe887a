package optimize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmlang/compiler/internal/config"
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

func newLoweredFunc(name string, ins ...ir.Instruction) *ir.Function {
	f := ir.NewFunction(name, 0, nil, nil)
	f.Emit(ins...)
	f.State = ir.Lowered
	return f
}

func onePass() config.Config {
	cfg := config.Default()
	cfg.OptPasses = 1
	return cfg
}

func TestTeeReload(t *testing.T) {
	f := newLoweredFunc("f",
		ir.Simple(wasmcore.OpcodeLocalSet, 3),
		ir.Simple(wasmcore.OpcodeLocalGet, 3),
	)
	OptimizeFunction(f, onePass(), newStats())
	require.Equal(t, []ir.Instruction{ir.Simple(wasmcore.OpcodeLocalTee, 3)}, f.Instructions)
}

func TestDeadLoad(t *testing.T) {
	f := newLoweredFunc("f",
		ir.Simple(wasmcore.OpcodeLocalGet, 1),
		ir.Simple(wasmcore.OpcodeDrop),
	)
	OptimizeFunction(f, onePass(), newStats())
	require.Empty(t, f.Instructions)
}

func TestTeeDropBecomesSet(t *testing.T) {
	f := newLoweredFunc("f",
		ir.Simple(wasmcore.OpcodeLocalTee, 2),
		ir.Simple(wasmcore.OpcodeDrop),
	)
	OptimizeFunction(f, onePass(), newStats())
	require.Equal(t, []ir.Instruction{ir.Simple(wasmcore.OpcodeLocalSet, 2)}, f.Instructions)
}

func TestDeadConst(t *testing.T) {
	f := newLoweredFunc("f",
		ir.F64Const(1.5),
		ir.Simple(wasmcore.OpcodeDrop),
		ir.Simple(wasmcore.OpcodeI32Const, 7),
		ir.Simple(wasmcore.OpcodeDrop),
	)
	OptimizeFunction(f, onePass(), newStats())
	require.Empty(t, f.Instructions)
}

func TestEqzCanonicalization(t *testing.T) {
	f := newLoweredFunc("f",
		ir.Simple(wasmcore.OpcodeI32Const, 0),
		ir.Simple(wasmcore.OpcodeI32Eq),
	)
	OptimizeFunction(f, onePass(), newStats())
	require.Equal(t, []ir.Instruction{ir.Simple(wasmcore.OpcodeI32Eqz)}, f.Instructions)
}

func TestEqzCanonicalizationDoesNotFireOnNonzeroConst(t *testing.T) {
	f := newLoweredFunc("f",
		ir.Simple(wasmcore.OpcodeI32Const, 5),
		ir.Simple(wasmcore.OpcodeI32Eq),
	)
	OptimizeFunction(f, onePass(), newStats())
	require.Len(t, f.Instructions, 2)
}

func TestIdentityConversionI32I64I32(t *testing.T) {
	f := newLoweredFunc("f",
		ir.Simple(wasmcore.OpcodeLocalGet, 0),
		ir.Simple(wasmcore.OpcodeI64ExtendI32S),
		ir.Simple(wasmcore.OpcodeI32WrapI64),
	)
	OptimizeFunction(f, onePass(), newStats())
	require.Equal(t, []ir.Instruction{ir.Simple(wasmcore.OpcodeLocalGet, 0)}, f.Instructions)
}

func TestIdentityConversionF64RoundTrip(t *testing.T) {
	f := newLoweredFunc("f",
		ir.Simple(wasmcore.OpcodeLocalGet, 0),
		ir.Simple(wasmcore.OpcodeF64ConvertI32S),
		ir.Simple(wasmcore.OpcodeI32TruncF64S),
	)
	OptimizeFunction(f, onePass(), newStats())
	require.Equal(t, []ir.Instruction{ir.Simple(wasmcore.OpcodeLocalGet, 0)}, f.Instructions)
}

func TestConstTruncFold(t *testing.T) {
	f := newLoweredFunc("f",
		ir.F64Const(3.9),
		ir.Simple(wasmcore.OpcodeI32TruncF64S),
	)
	OptimizeFunction(f, onePass(), newStats())
	require.Equal(t, []ir.Instruction{ir.Simple(wasmcore.OpcodeI32Const, 3)}, f.Instructions)
}

func TestConstTruncFoldNegative(t *testing.T) {
	f := newLoweredFunc("f",
		ir.F64Const(-3.1),
		ir.Simple(wasmcore.OpcodeI32TruncF64S),
	)
	OptimizeFunction(f, onePass(), newStats())
	require.Equal(t, []ir.Instruction{ir.Simple(wasmcore.OpcodeI32Const, -4)}, f.Instructions)
}

func TestEmptyBlockStripped(t *testing.T) {
	f := newLoweredFunc("f",
		ir.Simple(wasmcore.OpcodeLocalGet, 0),
		ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.ValueTypeF64)),
		ir.Simple(wasmcore.OpcodeEnd),
		ir.Simple(wasmcore.OpcodeReturn),
	)
	OptimizeFunction(f, onePass(), newStats())
	require.Equal(t, []ir.Instruction{
		ir.Simple(wasmcore.OpcodeLocalGet, 0),
		ir.Simple(wasmcore.OpcodeReturn),
	}, f.Instructions)
}

func TestTailCallOnlyFiresWhenEnabled(t *testing.T) {
	callIns := ir.Simple(wasmcore.OpcodeCall, 9)
	f := newLoweredFunc("f", callIns, ir.Simple(wasmcore.OpcodeReturn))

	cfg := onePass()
	cfg.TailCall = false
	OptimizeFunction(f, cfg, newStats())
	require.Equal(t, []ir.Instruction{callIns, ir.Simple(wasmcore.OpcodeReturn)}, f.Instructions)

	f2 := newLoweredFunc("f", callIns, ir.Simple(wasmcore.OpcodeReturn))
	cfg.TailCall = true
	OptimizeFunction(f2, cfg, newStats())
	require.Equal(t, []ir.Instruction{ir.Simple(wasmcore.OpcodeReturnCall, 9)}, f2.Instructions)
}

func TestDeadTypeTagWriteElided(t *testing.T) {
	f := ir.NewFunction("f", 0, nil, nil)
	slot := f.AddLocal(lastTypeLocal, wasmcore.ValueTypeI32)
	f.Emit(
		ir.Simple(wasmcore.OpcodeI32Const, 5),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(slot)),
		ir.Simple(wasmcore.OpcodeI32Const, 6),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(slot)),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(slot)),
	)
	f.State = ir.Lowered
	OptimizeFunction(f, onePass(), newStats())
	// The dead first write is elided to a drop, which then collapses with
	// its producing const (dead-const); the surviving second write and
	// its final read fold together into a tee (tee-reload) once nothing
	// separates them anymore.
	require.Equal(t, []ir.Instruction{
		ir.Simple(wasmcore.OpcodeI32Const, 6),
		ir.Simple(wasmcore.OpcodeLocalTee, int64(slot)),
	}, f.Instructions)
}

func TestDeadTypeTagWriteSurvivesAcrossControlFlow(t *testing.T) {
	f := ir.NewFunction("f", 0, nil, nil)
	slot := f.AddLocal(lastTypeLocal, wasmcore.ValueTypeI32)
	f.Emit(
		ir.Simple(wasmcore.OpcodeI32Const, 5),
		ir.Simple(wasmcore.OpcodeLocalSet, int64(slot)),
		ir.Simple(wasmcore.OpcodeBlock, int64(wasmcore.ValueTypeI32)),
		ir.Simple(wasmcore.OpcodeLocalGet, int64(slot)),
		ir.Simple(wasmcore.OpcodeEnd),
	)
	f.State = ir.Lowered
	before := append([]ir.Instruction{}, f.Instructions...)
	OptimizeFunction(f, onePass(), newStats())
	require.Equal(t, before, f.Instructions)
}

func TestOptimizeSkipsUnloweredFunctions(t *testing.T) {
	m := ir.NewModule()
	f := m.ReserveFunction("pending", nil, nil)
	f.Emit(ir.Simple(wasmcore.OpcodeLocalGet, 0), ir.Simple(wasmcore.OpcodeDrop))
	require.NoError(t, Optimize(m, onePass(), nil))
	require.Len(t, f.Instructions, 2)
}

func TestOptimizeCascadesAcrossRules(t *testing.T) {
	f := newLoweredFunc("f",
		ir.Simple(wasmcore.OpcodeLocalSet, 0),
		ir.Simple(wasmcore.OpcodeLocalGet, 0),
		ir.Simple(wasmcore.OpcodeDrop),
	)
	m := ir.NewModule()
	m.Functions = append(m.Functions, f)
	cfg := config.Default()
	cfg.OptPasses = 2
	require.NoError(t, Optimize(m, cfg, nil))
	// tee-reload folds the set+get into a tee, then tee-drop folds the
	// tee+drop into a plain set; nothing in the table removes a write to
	// an ordinary (non-"#last_type") local that is never read again, so
	// the lone set is where the fixed point lands.
	require.Equal(t, []ir.Instruction{ir.Simple(wasmcore.OpcodeLocalSet, 0)}, f.Instructions)
}
