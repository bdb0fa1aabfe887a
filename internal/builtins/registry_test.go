package builtins

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/types"
)

func TestPrintImportMemoized(t *testing.T) {
	m := ir.NewModule()
	r := New(m)
	a := r.Print()
	b := r.Print()
	require.Same(t, a, b)
	require.Len(t, m.Imports, 1)
	require.Equal(t, "env", a.Module)
	require.Equal(t, "print", a.Name)
}

func TestHeapTopReservesLowMemory(t *testing.T) {
	m := ir.NewModule()
	r := New(m)
	g := r.HeapTop()
	require.Len(t, m.Globals, 1)
	require.True(t, g.Mutable)
}

func TestMethodLooksUpArrayPush(t *testing.T) {
	m := ir.NewModule()
	r := New(m)
	fn, ok := r.Method(types.Array, "push")
	require.True(t, ok)
	require.Equal(t, "#arrayPush", fn.Name)
	require.Equal(t, ir.Lowered, fn.State)
}

func TestMethodUnknownReceiverMiss(t *testing.T) {
	m := ir.NewModule()
	r := New(m)
	_, ok := r.Method(types.Object, "push")
	require.False(t, ok)
}

func TestRuntimeFuncMemoizesByName(t *testing.T) {
	m := ir.NewModule()
	r := New(m)
	a := r.Alloc()
	b := r.Alloc()
	require.Same(t, a, b)
}

func TestRuntimeAddWiresStringConcatAndAlloc(t *testing.T) {
	m := ir.NewModule()
	r := New(m)
	fn := r.RuntimeAdd()
	require.True(t, fn.Internal)
	// RuntimeAdd's thunk eagerly builds StringConcat, copyBytes and Alloc
	// as dependencies, so every reachable deferred call resolves to an
	// existing function index once the module assembles.
	require.Greater(t, len(m.Functions), 1)
}

func TestRuntimeCompareDistinctPerOperator(t *testing.T) {
	m := ir.NewModule()
	r := New(m)
	lt := r.RuntimeCompare("<")
	gt := r.RuntimeCompare(">")
	require.NotEqual(t, lt.Name, gt.Name)
	require.NotSame(t, lt, gt)
}
