package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

func TestReserveFunctionContiguousLocals(t *testing.T) {
	m := NewModule()
	f := m.ReserveFunction("add", []string{"a", "b"}, []wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeF64})
	require.Len(t, f.Locals, 2)
	slot := f.AddLocal("tmp", wasmcore.ValueTypeF64)
	require.Equal(t, uint32(2), slot)
	got, ok := f.Local("a")
	require.True(t, ok)
	require.Equal(t, uint32(0), got)
}

func TestAddImportShiftsFunctionIndices(t *testing.T) {
	m := NewModule()
	f := m.ReserveFunction("main", nil, nil)
	require.Equal(t, uint32(0), f.Index)
	m.AddImport("env", "print", []wasmcore.ValueType{wasmcore.ValueTypeF64}, nil)
	require.Equal(t, uint32(1), f.Index)
}

func TestResolveDeferred(t *testing.T) {
	m := NewModule()
	callee := m.ReserveFunction("callee", nil, nil)
	caller := m.ReserveFunction("caller", nil, nil)
	caller.Emit(DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(callee.Index)} }))
	require.True(t, caller.Instructions[0].IsDeferred())
	require.NoError(t, m.ResolveDeferred())
	require.False(t, caller.Instructions[0].IsDeferred())
	require.Equal(t, []int64{int64(callee.Index)}, caller.Instructions[0].Operands)
}

func TestLoweringStateMachine(t *testing.T) {
	m := NewModule()
	f := m.ReserveFunction("f", nil, nil)
	require.Equal(t, Scheduled, f.State)
	ran := false
	f.Thunk = func() error { ran = true; return nil }
	require.NoError(t, f.EnsureLowered())
	require.True(t, ran)
	require.Equal(t, Lowered, f.State)
	require.Nil(t, f.Thunk)
}
