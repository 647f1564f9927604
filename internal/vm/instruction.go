package vm

// OpCode identifies one VM instruction. Mnemonics follow the surface syntax
// of §6 (case-insensitive in source, canonical upper-case here).
type OpCode byte

const (
	OpNop OpCode = iota
	OpPop
	OpDup

	OpLoadInt
	OpLoadFloat
	OpLoadChar
	OpLoadTrue
	OpLoadFalse
	OpLoadNull

	OpLoadLocal
	OpStoreLocal
	OpLoadArg

	OpAddInt
	OpSubInt
	OpMulInt
	OpDivInt
	OpAddFloat
	OpSubFloat
	OpMulFloat
	OpDivFloat

	OpAnd
	OpOr
	OpNot
	OpXor

	OpCompareEqualInt
	OpCompareNotEqualInt
	OpCompareGreaterInt
	OpCompareGreaterEqualInt
	OpCompareLessInt
	OpCompareLessEqualInt
	OpCompareEqualFloat
	OpCompareNotEqualFloat
	OpCompareGreaterFloat
	OpCompareGreaterEqualFloat
	OpCompareLessFloat
	OpCompareLessEqualFloat

	OpBranch
	OpBranchEqual
	OpBranchNotEqual
	OpBranchGreater
	OpBranchGreaterEqual
	OpBranchLess
	OpBranchLessEqual

	OpLoadString

	OpNewArray
	OpLoadArrayLength
	OpLoadElement
	OpStoreElement

	OpNewObject
	OpLoadField
	OpStoreField

	OpCall
	OpCallInstance
	OpCallVirtual

	OpRet
)

// PayloadKind selects which field of Instruction carries operand data.
type PayloadKind byte

const (
	PayloadNone PayloadKind = iota
	PayloadInt
	PayloadFloat
	PayloadChar
	PayloadString       // field/branch name resolved at verify time, unused after
	PayloadStringConst  // string literal
	PayloadCall         // function call
	PayloadCallInstance // member/virtual call, carries class name too
	PayloadNewObject    // class instantiation
)

// CallTarget describes the statically declared signature of a call-family
// instruction: the callee name, its declared parameter types (excluding an
// implicit `this`), and, for instance calls, the static class type.
type CallTarget struct {
	Name       string
	ClassName  string // "" for non-member calls
	ParamTypes []*Type
}

// Instruction is a single VM opcode plus at most one typed payload. Only one
// of the payload fields is meaningful, selected by Payload.
type Instruction struct {
	Op      OpCode
	Payload PayloadKind

	IntValue    int32
	FloatValue  float32
	CharValue   byte
	StringValue string // field name ("Class::field"), local/arg index text, or branch target label pre-resolution
	Target      int    // resolved branch target VM-instruction index, or local/arg index, or field offset holder

	Call *CallTarget // set for OpCall / OpCallInstance / OpCallVirtual / OpNewObject(ctor)

	// ValueType carries the element type for OpNewArray/OpLoadElement/
	// OpStoreElement, or the field type for OpLoadField/OpStoreField. The
	// compiler derives element width, float-ness and reference-ness from it
	// directly instead of having the loader pre-flatten those into Target/
	// IntValue, so a field or element's GC shape is never lost between
	// loading and code generation.
	ValueType *Type
}
