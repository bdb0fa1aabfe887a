package wasmcore

// Opcode is a single Wasm instruction byte. Multi-byte "extended" opcodes
// (the 0xFC- and 0xFD-prefixed families) are not needed by this compiler's
// supported language subset and are not modeled.
type Opcode = byte

const (
	OpcodeUnreachable Opcode = 0x00
	OpcodeNop         Opcode = 0x01
	OpcodeBlock       Opcode = 0x02
	OpcodeLoop        Opcode = 0x03
	OpcodeIf          Opcode = 0x04
	OpcodeElse        Opcode = 0x05

	// OpcodeTry/OpcodeCatch/OpcodeCatchAll/OpcodeThrow/OpcodeRethrow
	// belong to the exception-handling proposal this compiler targets
	// for throw/catch lowering (Statement lowering).
	OpcodeTry      Opcode = 0x06
	OpcodeCatch    Opcode = 0x07
	OpcodeThrow    Opcode = 0x08
	OpcodeRethrow  Opcode = 0x09
	OpcodeCatchAll Opcode = 0x19

	OpcodeEnd   Opcode = 0x0b
	OpcodeBr    Opcode = 0x0c
	OpcodeBrIf  Opcode = 0x0d
	OpcodeBrTable Opcode = 0x0e
	OpcodeReturn  Opcode = 0x0f
	OpcodeCall    Opcode = 0x10
	OpcodeCallIndirect Opcode = 0x11
	// OpcodeReturnCall is the tail-call proposal's `return_call`,
	// emitted by the peephole optimizer's `call f; return` rewrite
	//  only when Config.TailCall is enabled.
	OpcodeReturnCall Opcode = 0x12
	OpcodeReturnCallIndirect Opcode = 0x13

	OpcodeDrop   Opcode = 0x1a
	OpcodeSelect Opcode = 0x1b

	OpcodeLocalGet  Opcode = 0x20
	OpcodeLocalSet  Opcode = 0x21
	OpcodeLocalTee  Opcode = 0x22
	OpcodeGlobalGet Opcode = 0x23
	OpcodeGlobalSet Opcode = 0x24

	OpcodeI32Load Opcode = 0x28
	OpcodeI64Load Opcode = 0x29
	OpcodeF32Load Opcode = 0x2a
	OpcodeF64Load Opcode = 0x2b

	OpcodeI32Load8S  Opcode = 0x2c
	OpcodeI32Load8U  Opcode = 0x2d
	OpcodeI32Load16S Opcode = 0x2e
	OpcodeI32Load16U Opcode = 0x2f

	OpcodeI32Store Opcode = 0x36
	OpcodeI64Store Opcode = 0x37
	OpcodeF32Store Opcode = 0x38
	OpcodeF64Store Opcode = 0x39

	OpcodeI32Store8  Opcode = 0x3a
	OpcodeI32Store16 Opcode = 0x3b

	OpcodeMemorySize Opcode = 0x3f
	OpcodeMemoryGrow Opcode = 0x40

	OpcodeI32Const Opcode = 0x41
	OpcodeI64Const Opcode = 0x42
	OpcodeF32Const Opcode = 0x43
	OpcodeF64Const Opcode = 0x44

	// Comparisons. Named after wasm.OpcodeI32Eqz and friends in
	// tetratelabs-wazero's internal/engine/compiler naming convention.
	OpcodeI32Eqz Opcode = 0x45
	OpcodeI32Eq  Opcode = 0x46
	OpcodeI32Ne  Opcode = 0x47
	OpcodeI32LtS Opcode = 0x48
	OpcodeI32LtU Opcode = 0x49
	OpcodeI32GtS Opcode = 0x4a
	OpcodeI32GtU Opcode = 0x4b
	OpcodeI32LeS Opcode = 0x4c
	OpcodeI32LeU Opcode = 0x4d
	OpcodeI32GeS Opcode = 0x4e
	OpcodeI32GeU Opcode = 0x4f

	OpcodeI64Eqz Opcode = 0x50
	OpcodeI64Eq  Opcode = 0x51
	OpcodeI64Ne  Opcode = 0x52
	OpcodeI64LtS Opcode = 0x53
	OpcodeI64GtS Opcode = 0x55
	OpcodeI64LeS Opcode = 0x57
	OpcodeI64GeS Opcode = 0x59

	OpcodeF64Eq Opcode = 0x61
	OpcodeF64Ne Opcode = 0x62
	OpcodeF64Lt Opcode = 0x63
	OpcodeF64Gt Opcode = 0x64
	OpcodeF64Le Opcode = 0x65
	OpcodeF64Ge Opcode = 0x66

	// Arithmetic. See wasm.OpcodeI32Add wasm.OpcodeF64Add etc.
	OpcodeI32Add Opcode = 0x6a
	OpcodeI32Sub Opcode = 0x6b
	OpcodeI32Mul Opcode = 0x6c
	OpcodeI32DivS Opcode = 0x6d
	OpcodeI32DivU Opcode = 0x6e
	OpcodeI32RemS Opcode = 0x6f
	OpcodeI32RemU Opcode = 0x70
	OpcodeI32And  Opcode = 0x71
	OpcodeI32Or   Opcode = 0x72
	OpcodeI32Xor  Opcode = 0x73
	OpcodeI32Shl  Opcode = 0x74
	OpcodeI32ShrS Opcode = 0x75
	OpcodeI32ShrU Opcode = 0x76

	OpcodeI64Add Opcode = 0x7c
	OpcodeI64Sub Opcode = 0x7d
	OpcodeI64Mul Opcode = 0x7e

	OpcodeF64Abs      Opcode = 0x99
	OpcodeF64Neg      Opcode = 0x9a
	OpcodeF64Trunc    Opcode = 0x9d
	OpcodeF64Add      Opcode = 0xa0
	OpcodeF64Sub      Opcode = 0xa1
	OpcodeF64Mul      Opcode = 0xa2
	OpcodeF64Div      Opcode = 0xa3

	// Conversions relevant to the value-type=f64 default and its i32
	// alternative.
	OpcodeI32WrapI64     Opcode = 0xa7
	OpcodeI32TruncF64S   Opcode = 0xaa
	OpcodeI64ExtendI32S  Opcode = 0xac
	OpcodeI64TruncF64S   Opcode = 0xb0
	OpcodeF64ConvertI32S Opcode = 0xb7
	OpcodeF64ConvertI64S Opcode = 0xb9
	OpcodeI32ReinterpretF32 Opcode = 0xbc
	OpcodeI64ReinterpretF64 Opcode = 0xbd
)
