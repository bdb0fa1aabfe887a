// Package types defines the finite enumeration of source-language runtime
// value kinds (Value type tag) and the auxiliary function
// flags carried alongside a function record.
package types

// ID is the small integer naming a value's language-level kind. It is
// pushed alongside every value at runtime as the second of the two
// scalar results every compiled function returns.
type ID int32

const (
	Undefined ID = iota
	Null
	Boolean
	Number
	String
	Object
	Array
	Function
	Symbol
	BigInt
	Regex
	Date
	Error
	Map
	Set
	ArrayBuffer

	// Unknown marks a subexpression whose static type hint could not be
	// narrowed at compile time; it never appears as a runtime tag, only
	// as a codegen-time hint value.
	Unknown ID = -1
)

// Name returns the source-language name of id, or "unknown".
func (id ID) Name() string {
	switch id {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case Boolean:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	case Function:
		return "function"
	case Symbol:
		return "symbol"
	case BigInt:
		return "bigint"
	case Regex:
		return "regex"
	case Date:
		return "date"
	case Error:
		return "error"
	case Map:
		return "map"
	case Set:
		return "set"
	case ArrayBuffer:
		return "arraybuffer"
	}
	return "unknown"
}

// IsNumeric reports whether id is statically known to be the number
// type — the condition under which the code generator may select a
// typed fast path (Binary `+`, Comparison).
func IsNumeric(id ID) bool { return id == Number }

// Hint is a codegen-time static type hint for a subexpression: a concrete
// ID, or Unknown when the generator could not narrow it further
// (Type tracking). Hints never substitute for the runtime
// tag; they only steer fast-path selection and constant folding of
// type-id pushes.
type Hint struct {
	Concrete ID
	IsUnion  bool
	Union    []ID
}

// HintOf returns a concrete hint for id.
func HintOf(id ID) Hint { return Hint{Concrete: id} }

// UnknownHint is the hint for a subexpression with no statically known type.
var UnknownHint = Hint{Concrete: Unknown}

// IsConcreteNumber reports whether h statically guarantees Number.
func (h Hint) IsConcreteNumber() bool {
	return !h.IsUnion && h.Concrete == Number
}

// Flags describes auxiliary properties of a function record
// (Function record).
type Flags struct {
	Internal    bool // contributed by the built-in registry, not user source
	Async       bool
	Generator   bool
	Variadic    bool
	Constructor bool
}
