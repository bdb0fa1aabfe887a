package wasmcore

// SectionID identifies a top-level section of the binary module format.
//
// See https://www.w3.org/TR/2019/REC-wasm-core-1-20191205/#sections%E2%91%A0
type SectionID = byte

const (
	SectionIDCustom    SectionID = 0
	SectionIDType      SectionID = 1
	SectionIDImport    SectionID = 2
	SectionIDFunction  SectionID = 3
	SectionIDTable     SectionID = 4
	SectionIDMemory    SectionID = 5
	SectionIDGlobal    SectionID = 6
	SectionIDExport    SectionID = 7
	SectionIDStart     SectionID = 8
	SectionIDElement   SectionID = 9
	SectionIDCode      SectionID = 10
	SectionIDData      SectionID = 11
	SectionIDDataCount SectionID = 12
	// SectionIDTag is not part of the Wasm 1.0 core spec; it is reserved
	// by the exception-handling proposal this compiler relies on for
	// throw/catch lowering (Exception tag and exception
	// record). Encoded immediately after the memory section and before
	// globals, matching the proposal's module-binary section ordering.
	SectionIDTag SectionID = 13
)

// Magic and version preface every Wasm binary module.
var (
	Magic   = [4]byte{0x00, 0x61, 0x73, 0x6d}
	Version = [4]byte{0x01, 0x00, 0x00, 0x00}
)

// ExternType classifies an entry of the import or export section.
type ExternType = byte

const (
	ExternTypeFunc   ExternType = 0x00
	ExternTypeTable  ExternType = 0x01
	ExternTypeMemory ExternType = 0x02
	ExternTypeGlobal ExternType = 0x03
	ExternTypeTag    ExternType = 0x04
)

// RefType is the single table element type supported (funcref); used
// when emitting the table section for indirect calls.
const RefTypeFuncref = 0x70

// Limits flags distinguish a bounded (min,max) pair from an unbounded
// (min) one in the memory and table sections.
const (
	LimitsFlagNoMax  = 0x00
	LimitsFlagHasMax = 0x01
)
