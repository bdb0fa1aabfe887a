package assemble

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/wasmlang/compiler/internal/config"
	"github.com/wasmlang/compiler/internal/diag"
	"github.com/wasmlang/compiler/internal/ir"
	"github.com/wasmlang/compiler/internal/leb128"
	"github.com/wasmlang/compiler/internal/wasmcore"
)

func newLoweredMain(m *ir.Module, ins ...ir.Instruction) *ir.Function {
	main := m.ReserveFunction("#main", nil, nil)
	main.Exported = "m"
	main.Emit(ins...)
	main.State = ir.Lowered
	m.MainIndex = main.Index
	return main
}

func assembleOK(t *testing.T, m *ir.Module) []byte {
	t.Helper()
	out, err := Assemble(m, config.Default(), logrus.StandardLogger())
	require.NoError(t, err)
	return out
}

func TestAssembleMagicAndVersion(t *testing.T) {
	m := ir.NewModule()
	newLoweredMain(m, ir.F64Const(0), ir.Simple(wasmcore.OpcodeI32Const, 0))

	out := assembleOK(t, m)
	require.Equal(t, wasmcore.Magic[:], out[0:4])
	require.Equal(t, wasmcore.Version[:], out[4:8])
}

func TestAssembleSectionOrder(t *testing.T) {
	m := ir.NewModule()
	m.AddImport("env", "unused", nil, nil)
	used := m.AddImport("env", "used", []wasmcore.ValueType{wasmcore.ValueTypeI32}, nil)
	m.AddGlobal("g", wasmcore.ValueTypeI32, false, []ir.Instruction{ir.Simple(wasmcore.OpcodeI32Const, 1)})
	m.AddTag("#exception", []wasmcore.ValueType{wasmcore.ValueTypeF64, wasmcore.ValueTypeI32})
	m.AddData("str0", []byte("hi"), 8)

	newLoweredMain(m,
		ir.Simple(wasmcore.OpcodeI32Const, 0),
		ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(used.Index)} }),
		ir.Simple(wasmcore.OpcodeDrop),
		ir.F64Const(0),
		ir.Simple(wasmcore.OpcodeI32Const, 0),
	)

	out := assembleOK(t, m)
	var ids []byte
	i := 8
	for i < len(out) {
		id := out[i]
		i++
		length, n, err := leb128.LoadUint32(out[i:])
		require.NoError(t, err)
		i += int(n) + int(length)
		ids = append(ids, id)
	}
	require.Equal(t, []byte{
		wasmcore.SectionIDType,
		wasmcore.SectionIDImport,
		wasmcore.SectionIDFunction,
		wasmcore.SectionIDMemory,
		wasmcore.SectionIDTag,
		wasmcore.SectionIDGlobal,
		wasmcore.SectionIDExport,
		wasmcore.SectionIDCode,
		wasmcore.SectionIDData,
		wasmcore.SectionIDCustom,
	}, ids)
}

func TestAssembleTreeShakesUnreferencedImports(t *testing.T) {
	m := ir.NewModule()
	m.AddImport("env", "dead", nil, nil)
	used := m.AddImport("env", "alive", nil, nil)

	main := newLoweredMain(m,
		ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{int64(used.Index)} }),
		ir.F64Const(0),
		ir.Simple(wasmcore.OpcodeI32Const, 0),
	)

	require.NoError(t, m.ResolveDeferred())
	dropped := shakeImports(m)
	require.Equal(t, 1, dropped)
	require.Len(t, m.Imports, 1)
	require.Equal(t, "alive", m.Imports[0].Name)
	require.Equal(t, uint32(0), m.Imports[0].Index)
	require.Equal(t, uint32(1), main.Index)
	require.Equal(t, uint32(1), m.MainIndex)
	require.Equal(t, int64(0), main.Instructions[0].Operands[0])
}

func TestAssembleExportsMainAsM(t *testing.T) {
	m := ir.NewModule()
	newLoweredMain(m, ir.F64Const(0), ir.Simple(wasmcore.OpcodeI32Const, 0))

	out := assembleOK(t, m)
	exportBody := sectionBody(t, out, wasmcore.SectionIDExport)
	count, n, err := leb128.LoadUint32(exportBody)
	require.NoError(t, err)
	require.Equal(t, uint32(2), count) // "m" plus the memory export
	rest := exportBody[n:]
	nameLen, n2, err := leb128.LoadUint32(rest)
	require.NoError(t, err)
	require.Equal(t, "m", string(rest[n2:n2+uint64(nameLen)]))
}

func TestAssembleMemorySectionDeclaresModulePages(t *testing.T) {
	m := ir.NewModule()
	m.MemoryPages = 3
	newLoweredMain(m, ir.F64Const(0), ir.Simple(wasmcore.OpcodeI32Const, 0))

	out := assembleOK(t, m)
	memBody := sectionBody(t, out, wasmcore.SectionIDMemory)
	require.Equal(t, byte(1), memBody[0]) // one memory
	require.Equal(t, byte(wasmcore.LimitsFlagNoMax), memBody[1])
	pages, _, err := leb128.LoadUint32(memBody[2:])
	require.NoError(t, err)
	require.Equal(t, uint32(3), pages)
}

func TestAssembleGroupsAdjacentLocalsOnly(t *testing.T) {
	f := ir.NewFunction("f", 0, nil, nil)
	f.AddLocal("a", wasmcore.ValueTypeI32)
	f.AddLocal("b", wasmcore.ValueTypeI64)
	f.AddLocal("c", wasmcore.ValueTypeI32)
	f.State = ir.Lowered

	runs := groupLocals(f.Locals, 0)
	require.Equal(t, []localRun{
		{count: 1, typ: wasmcore.ValueTypeI32},
		{count: 1, typ: wasmcore.ValueTypeI64},
		{count: 1, typ: wasmcore.ValueTypeI32},
	}, runs)
}

func TestAssembleGroupsMergeStrictlyAdjacentRuns(t *testing.T) {
	f := ir.NewFunction("f", 0, nil, nil)
	f.AddLocal("a", wasmcore.ValueTypeI32)
	f.AddLocal("b", wasmcore.ValueTypeI32)
	f.AddLocal("c", wasmcore.ValueTypeF64)

	runs := groupLocals(f.Locals, 0)
	require.Equal(t, []localRun{
		{count: 2, typ: wasmcore.ValueTypeI32},
		{count: 1, typ: wasmcore.ValueTypeF64},
	}, runs)
}

func TestAssembleFailsOnUnlowerdFunction(t *testing.T) {
	m := ir.NewModule()
	newLoweredMain(m, ir.F64Const(0), ir.Simple(wasmcore.OpcodeI32Const, 0))
	m.ReserveFunction("helper", nil, nil) // left Scheduled, never lowered

	_, err := Assemble(m, config.Default(), logrus.StandardLogger())
	require.Error(t, err)
	require.True(t, diag.Is(err, diag.KindEncoding))
}

func TestAssembleEmitsNameSection(t *testing.T) {
	m := ir.NewModule()
	newLoweredMain(m, ir.F64Const(0), ir.Simple(wasmcore.OpcodeI32Const, 0))
	helper := m.ReserveFunction("helper", []string{"x"}, []wasmcore.ValueType{wasmcore.ValueTypeF64})
	helper.Emit(ir.F64Const(0), ir.Simple(wasmcore.OpcodeI32Const, 0))
	helper.State = ir.Lowered

	out := assembleOK(t, m)
	nameBody := sectionBody(t, out, wasmcore.SectionIDCustom)
	nameLen, n, err := leb128.LoadUint32(nameBody)
	require.NoError(t, err)
	require.Equal(t, "name", string(nameBody[n:n+uint64(nameLen)]))
}

func TestEncodeInstructionRejectsDeferred(t *testing.T) {
	ins := ir.DeferredCall(wasmcore.OpcodeCall, func() []int64 { return []int64{0} })
	_, err := encodeInstruction(nil, ins)
	require.Error(t, err)
	require.True(t, diag.Is(err, diag.KindUnresolvedReference))
}

// sectionBody walks the section stream using the package's own LEB128
// loader, avoiding a hand-maintained parallel decoder just for assertions.
func sectionBody(t *testing.T, out []byte, id byte) []byte {
	t.Helper()
	i := 8
	for i < len(out) {
		gotID := out[i]
		i++
		length, n, err := leb128.LoadUint32(out[i:])
		require.NoError(t, err)
		i += int(n)
		body := out[i : i+int(length)]
		i += int(length)
		if gotID == id {
			return body
		}
	}
	t.Fatalf("section %#x not found", id)
	return nil
}
