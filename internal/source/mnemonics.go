package source

import "github.com/svenslaggare/stackjit-go/internal/vm"

// operandKind selects what shape of single operand (§6: "Instructions are
// case-insensitive mnemonics followed by their single operand") a mnemonic
// expects, and which Instruction field(s) the parser/printer read or write
// for it.
type operandKind int

const (
	operandNone operandKind = iota
	operandInt
	operandFloat
	operandChar
	operandString       // quoted string literal -> StringValue
	operandLocalIndex   // integer -> Target (ldloc/stloc/ldarg)
	operandBranchTarget // integer -> Target
	operandType         // type name -> ValueType (newarr/ldelem/stelem)
	operandField        // "Class::field" -> Target (offset) + ValueType, resolved against class layout
	operandClassName    // bare class name -> Call.ClassName (newobj)
	operandCall         // "name(T...)" -> Call
	operandCallInstance // "Class::member(T...)" -> Call
)

type mnemonicInfo struct {
	op       vm.OpCode
	mnemonic string
	operand  operandKind
}

// mnemonicTable is the source of truth both the parser and the printer
// build their lookup maps from, grounded in
// original_source/src/bytecode/bytecodeparser.cpp's own mnemonic set
// (noOperandsInstructions / branchInstructions / stringOperandInstructions)
// where this module's vm.OpCode has a matching opcode, plus this module's
// own newobj/ldfield/stfield shapes where its data model departs from the
// original's (see DESIGN.md).
var mnemonicTable = []mnemonicInfo{
	{vm.OpNop, "nop", operandNone},
	{vm.OpPop, "pop", operandNone},
	{vm.OpDup, "dup", operandNone},

	{vm.OpLoadInt, "ldint", operandInt},
	{vm.OpLoadFloat, "ldfloat", operandFloat},
	{vm.OpLoadChar, "ldchar", operandChar},
	{vm.OpLoadTrue, "ldtrue", operandNone},
	{vm.OpLoadFalse, "ldfalse", operandNone},
	{vm.OpLoadNull, "ldnull", operandNone},

	{vm.OpLoadLocal, "ldloc", operandLocalIndex},
	{vm.OpStoreLocal, "stloc", operandLocalIndex},
	{vm.OpLoadArg, "ldarg", operandLocalIndex},

	{vm.OpAddInt, "addint", operandNone},
	{vm.OpSubInt, "subint", operandNone},
	{vm.OpMulInt, "mulint", operandNone},
	{vm.OpDivInt, "divint", operandNone},
	{vm.OpAddFloat, "addfloat", operandNone},
	{vm.OpSubFloat, "subfloat", operandNone},
	{vm.OpMulFloat, "mulfloat", operandNone},
	{vm.OpDivFloat, "divfloat", operandNone},

	{vm.OpAnd, "and", operandNone},
	{vm.OpOr, "or", operandNone},
	{vm.OpNot, "not", operandNone},
	{vm.OpXor, "xor", operandNone},

	{vm.OpCompareEqualInt, "cmpeq", operandNone},
	{vm.OpCompareNotEqualInt, "cmpne", operandNone},
	{vm.OpCompareGreaterInt, "cmpgt", operandNone},
	{vm.OpCompareGreaterEqualInt, "cmpge", operandNone},
	{vm.OpCompareLessInt, "cmplt", operandNone},
	{vm.OpCompareLessEqualInt, "cmple", operandNone},
	{vm.OpCompareEqualFloat, "cmpeqf", operandNone},
	{vm.OpCompareNotEqualFloat, "cmpnef", operandNone},
	{vm.OpCompareGreaterFloat, "cmpgtf", operandNone},
	{vm.OpCompareGreaterEqualFloat, "cmpgef", operandNone},
	{vm.OpCompareLessFloat, "cmpltf", operandNone},
	{vm.OpCompareLessEqualFloat, "cmplef", operandNone},

	{vm.OpBranch, "br", operandBranchTarget},
	{vm.OpBranchEqual, "breq", operandBranchTarget},
	{vm.OpBranchNotEqual, "brne", operandBranchTarget},
	{vm.OpBranchGreater, "brgt", operandBranchTarget},
	{vm.OpBranchGreaterEqual, "brge", operandBranchTarget},
	{vm.OpBranchLess, "brlt", operandBranchTarget},
	{vm.OpBranchLessEqual, "brle", operandBranchTarget},

	{vm.OpLoadString, "ldstr", operandString},

	{vm.OpNewArray, "newarr", operandType},
	{vm.OpLoadArrayLength, "ldlen", operandNone},
	{vm.OpLoadElement, "ldelem", operandType},
	{vm.OpStoreElement, "stelem", operandType},

	{vm.OpNewObject, "newobj", operandClassName},
	{vm.OpLoadField, "ldfield", operandField},
	{vm.OpStoreField, "stfield", operandField},

	{vm.OpCall, "call", operandCall},
	{vm.OpCallInstance, "callinst", operandCallInstance},
	{vm.OpCallVirtual, "callvirt", operandCallInstance},

	{vm.OpRet, "ret", operandNone},
}

var mnemonicByOp = func() map[vm.OpCode]mnemonicInfo {
	m := make(map[vm.OpCode]mnemonicInfo, len(mnemonicTable))
	for _, info := range mnemonicTable {
		m[info.op] = info
	}
	return m
}()

var infoByMnemonic = func() map[string]mnemonicInfo {
	m := make(map[string]mnemonicInfo, len(mnemonicTable))
	for _, info := range mnemonicTable {
		m[info.mnemonic] = info
	}
	return m
}()
