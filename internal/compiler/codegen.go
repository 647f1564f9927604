package compiler

import (
	"fmt"
	"unsafe"

	"github.com/svenslaggare/stackjit-go/internal/asm"
	"github.com/svenslaggare/stackjit-go/internal/asm/amd64"
	"github.com/svenslaggare/stackjit-go/internal/callconv"
	"github.com/svenslaggare/stackjit-go/internal/heap"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// CallFixup records a not-yet-resolvable call-site displacement: the
// buffer offset of its 4-byte immediate, and the FunctionDefinition it must
// eventually reach. The JIT controller (C7) resolves these once both the
// caller and callee have a native address, patching forward references and
// recursive cycles after the fact (§4.7).
type CallFixup struct {
	Offset int
	Target *vm.FunctionDefinition
}

// Result is one function's compiled body plus the bookkeeping the engine
// needs to place it in executable memory and wire its calls.
type Result struct {
	Code          []byte
	CallFixups    []CallFixup
	MaxStackDepth int
}

// branchFixup is a pending forward jump. Most target a VM instruction index
// (targetI, resolved against instrOffsets once the whole body is emitted);
// the inline fault checks (§4.6, §7 kind 4) instead target one of the
// shared stub blocks emitBody appends after the body proper, named by stub.
type branchFixup struct {
	offset  int
	targetI int
	stub    string
}

// Compile lowers fn's VM instructions to x86-64 machine code. prog resolves
// call targets and class layouts, cc supplies the host ABI, and h resolves
// the GC type descriptors OP_NEW_OBJECT/OP_NEW_ARRAY embed as compile-time
// immediates.
func Compile(fn *vm.ManagedFunction, prog *vm.Program, cc callconv.CallingConvention, h *heap.Heap) (*Result, error) {
	// Pass 1: a throwaway emission whose only purpose is learning the
	// operand stack's high-water mark, so the real prologue can reserve
	// exactly the right frame size up front instead of patching it in.
	trialBuf := asm.NewBuffer()
	trialFrame := NewFrame(trialBuf, fn)
	var trialCalls []CallFixup
	emitPrologue(trialBuf, trialFrame, fn, cc, 0, &trialCalls)
	if _, _, _, err := emitBody(trialBuf, trialFrame, fn, prog, cc, h); err != nil {
		return nil, err
	}

	slots := fn.NumArgs() + fn.NumLocals() + trialFrame.maxDepth
	frameBytes := align16(8 * slots)

	buf := asm.NewBuffer()
	frame := NewFrame(buf, fn)
	// The prologue registers SlotCount() with PushFrame before the body has
	// run any push, so the operand-stack depth comes from the sizing pass.
	frame.maxDepth = trialFrame.maxDepth
	var calls []CallFixup
	emitPrologue(buf, frame, fn, cc, frameBytes, &calls)
	instrOffsets, branches, bodyCalls, err := emitBody(buf, frame, fn, prog, cc, h)
	if err != nil {
		return nil, err
	}
	calls = append(calls, bodyCalls...)

	for _, b := range branches {
		target := instrOffsets[b.targetI]
		buf.PatchInt32LE(b.offset, int32(target-(b.offset+4)))
	}

	return &Result{Code: buf.Bytes(), CallFixups: calls, MaxStackDepth: trialFrame.maxDepth}, nil
}

func align16(n int) int { return (n + 15) &^ 15 }

// emitPrologue reserves the frame, moves incoming ABI arguments onto it,
// and registers the frame with the call stack (§5: "a single contiguous
// buffer pushed/popped by emitted code") so the GC can walk it. frameBytes
// is the frame size in bytes (8 per slot, rounded up to 16), and PushFrame
// receives frame.SlotCount() (params + locals + max operand depth).
// frameBytes is 0 on the throwaway sizing pass, where the PushFrame call is still emitted
// (it costs nothing unreachable code can't absorb) so the trial buffer's
// CallFixup bookkeeping mirrors the real one.
func emitPrologue(buf *asm.Buffer, frame *Frame, fn *vm.ManagedFunction, cc callconv.CallingConvention, frameBytes int, calls *[]CallFixup) {
	amd64.PushRBP(buf)
	amd64.MoveRBPFromRSP(buf)
	if frameBytes > 0 {
		amd64.SubIntFromReg(buf, amd64.SP, int32(frameBytes), false)
	}
	cc.MoveArgsToStack(frame, fn)

	amd64.MoveRegToReg(buf, amd64.DI, amd64.BP, false)
	amd64.MoveIntToReg(buf, amd64.SI, int32(frame.SlotCount()), false)
	emitRuntimeCall(buf, calls, runtimePushFrame)
}

// emitReturn pops the current call's frame off the call stack and then
// materializes the operand-stack's top value into the ABI return register,
// in that order: the PopFrame call, like every runtime helper call, may
// clobber AX/XMM0 as scratch space, so the return value is read from its
// frame slot into the return register only after that call.
func emitReturn(buf *asm.Buffer, frame *Frame, fn *vm.ManagedFunction, cc callconv.CallingConvention, calls *[]CallFixup) {
	emitRuntimeCall(buf, calls, runtimePopFrame)
	cc.MakeReturnValue(frame, fn)
	amd64.Leave(buf)
	amd64.Ret(buf)
}

// emitBody lowers every instruction in order, returning the native offset
// recorded at the start of each VM instruction (for branch resolution), the
// pending intra-function branch fixups that target another instruction,
// and the pending cross-function call fixups (which now also include the
// shared fault stubs' own calls into vmruntime). Stub-targeted branch
// fixups are patched here, once the stub block each needs has been emitted,
// rather than handed back to Compile.
func emitBody(buf *asm.Buffer, frame *Frame, fn *vm.ManagedFunction, prog *vm.Program, cc callconv.CallingConvention, h *heap.Heap) ([]int, []branchFixup, []CallFixup, error) {
	offsets := make([]int, len(fn.Instructions))
	var branches []branchFixup
	var calls []CallFixup
	needStubs := map[string]bool{}

	for i, ins := range fn.Instructions {
		offsets[i] = buf.Len()
		if err := emitInstruction(buf, frame, fn, prog, cc, h, ins, &branches, &calls, needStubs); err != nil {
			return nil, nil, nil, fmt.Errorf("compiling %s at instruction %d: %w", fn.Signature(), i, err)
		}
	}

	if len(fn.Instructions) == 0 || fn.Instructions[len(fn.Instructions)-1].Op != vm.OpRet {
		emitReturn(buf, frame, fn, cc, &calls)
	}

	stubOffsets := emitFaultStubs(buf, needStubs, &calls)

	var instrBranches []branchFixup
	for _, b := range branches {
		if b.stub != "" {
			target := stubOffsets[b.stub]
			buf.PatchInt32LE(b.offset, int32(target-(b.offset+4)))
		} else {
			instrBranches = append(instrBranches, b)
		}
	}

	return offsets, instrBranches, calls, nil
}

// faultStubOrder fixes the order shared stub blocks are appended in, purely
// so output is deterministic across compiles of the same function.
var faultStubOrder = []string{"null", "bounds", "invalidLength"}

func faultStubTarget(name string) *vm.FunctionDefinition {
	switch name {
	case "null":
		return runtimeFaultNullReference
	case "bounds":
		return runtimeFaultArrayBounds
	case "invalidLength":
		return runtimeFaultInvalidLength
	}
	return nil
}

// emitFaultStubs appends one shared block per distinct fault kind this
// function actually checks for, each just a call into the matching
// vmruntime.Fault* handler. None of them return (§7 kind 4: "no exception
// model"), so there is nothing to emit after the call.
func emitFaultStubs(buf *asm.Buffer, needStubs map[string]bool, calls *[]CallFixup) map[string]int {
	offsets := map[string]int{}
	for _, name := range faultStubOrder {
		if !needStubs[name] {
			continue
		}
		offsets[name] = buf.Len()
		emitRuntimeCall(buf, calls, faultStubTarget(name))
	}
	return offsets
}

// emitNullCheck jumps to the shared "null" stub if reg is zero. Used
// wherever LOAD_FIELD, STORE_FIELD, LOAD_ELEMENT, STORE_ELEMENT or
// LOAD_ARRAY_LENGTH's per-opcode recipe calls for a null check ahead of a
// dereference.
func emitNullCheck(a *amd64.Assembler, buf *asm.Buffer, reg amd64.IntRegister, branches *[]branchFixup, needStubs map[string]bool) {
	amd64.CompareIntToReg(buf, reg, 0, false)
	disp := a.Jump(amd64.Equal, false)
	*branches = append(*branches, branchFixup{offset: disp, stub: "null"})
	needStubs["null"] = true
}

// emitBoundsCheck jumps to the shared "bounds" stub if idx is out of range
// for the array referenced by arr (already null-checked). It loads the
// array's length from [arr+ObjectHeaderSize] (a 32-bit store, zero-extended
// by the load into a 64-bit compare) and compares idx against it as
// unsigned: a negative index, carried as a sign-extended 64-bit value,
// reads as a huge unsigned 64-bit value and so fails the same
// `>= length` test a real out-of-range index would (§4.6's "unsigned
// comparison ... exploits negative-index = large-unsigned" trick).
func emitBoundsCheck(a *amd64.Assembler, buf *asm.Buffer, arr, idx amd64.IntRegister, branches *[]branchFixup, needStubs map[string]bool) {
	_ = a.MoveMemoryToReg(amd64.R11, amd64.MemoryOperand{Register: arr, Offset: int32(vm.ObjectHeaderSize)}, amd64.Size32)
	amd64.CompareRegToReg(buf, idx, amd64.R11, false)
	disp := a.Jump(amd64.GreaterOrEqual, true)
	*branches = append(*branches, branchFixup{offset: disp, stub: "bounds"})
	needStubs["bounds"] = true
}

var compareConditions = map[vm.OpCode]amd64.Condition{
	vm.OpCompareEqualInt:          amd64.Equal,
	vm.OpCompareNotEqualInt:       amd64.NotEqual,
	vm.OpCompareGreaterInt:        amd64.Greater,
	vm.OpCompareGreaterEqualInt:   amd64.GreaterOrEqual,
	vm.OpCompareLessInt:           amd64.Less,
	vm.OpCompareLessEqualInt:      amd64.LessOrEqual,
	vm.OpCompareEqualFloat:        amd64.Equal,
	vm.OpCompareNotEqualFloat:     amd64.NotEqual,
	vm.OpCompareGreaterFloat:      amd64.Greater,
	vm.OpCompareGreaterEqualFloat: amd64.GreaterOrEqual,
	vm.OpCompareLessFloat:        amd64.Less,
	vm.OpCompareLessEqualFloat:   amd64.LessOrEqual,
}

// branchConditions maps the fused compare-and-branch family (§4.6: these
// always operate on two Int/Bool/Char-shaped operands — there is no float
// variant, unlike the standalone OpCompareXXX family, which exists so a
// comparison result can be materialized as an ordinary Bool value instead
// of immediately driving control flow).
var branchConditions = map[vm.OpCode]amd64.Condition{
	vm.OpBranchEqual:        amd64.Equal,
	vm.OpBranchNotEqual:     amd64.NotEqual,
	vm.OpBranchGreater:      amd64.Greater,
	vm.OpBranchGreaterEqual: amd64.GreaterOrEqual,
	vm.OpBranchLess:         amd64.Less,
	vm.OpBranchLessEqual:    amd64.LessOrEqual,
}

func emitInstruction(buf *asm.Buffer, frame *Frame, fn *vm.ManagedFunction, prog *vm.Program, cc callconv.CallingConvention, h *heap.Heap, ins vm.Instruction, branches *[]branchFixup, calls *[]CallFixup, needStubs map[string]bool) error {
	a := amd64.NewAssembler(buf)

	switch ins.Op {
	case vm.OpNop:

	case vm.OpPop:
		frame.Discard()

	case vm.OpDup:
		emitDup(a, frame)

	case vm.OpLoadInt:
		amd64.MoveIntToReg(buf, amd64.AX, ins.IntValue, false)
		frame.PushInt(amd64.AX)
	case vm.OpLoadFloat:
		frame.PushFloatImmediate(buf, amd64.Float32Bits(ins.FloatValue))
	case vm.OpLoadChar:
		amd64.MoveIntToReg(buf, amd64.AX, int32(ins.CharValue), false)
		frame.PushInt(amd64.AX)
	case vm.OpLoadTrue:
		amd64.MoveIntToReg(buf, amd64.AX, 1, false)
		frame.PushInt(amd64.AX)
	case vm.OpLoadFalse, vm.OpLoadNull:
		amd64.MoveIntToReg(buf, amd64.AX, 0, false)
		frame.PushInt(amd64.AX)

	case vm.OpLoadLocal:
		emitLoadSlot(a, frame, frame.LocalSlot(ins.Target), fn.Locals[ins.Target].IsFloat())
	case vm.OpStoreLocal:
		emitStoreSlot(a, frame, frame.LocalSlot(ins.Target), fn.Locals[ins.Target].IsFloat())
	case vm.OpLoadArg:
		emitLoadSlot(a, frame, frame.ParamSlot(ins.Target), fn.Params[ins.Target].IsFloat())

	case vm.OpAddInt, vm.OpSubInt, vm.OpMulInt, vm.OpDivInt:
		emitIntArith(buf, frame, ins.Op)
	case vm.OpAddFloat, vm.OpSubFloat, vm.OpMulFloat, vm.OpDivFloat:
		emitFloatArith(buf, frame, ins.Op)

	case vm.OpAnd, vm.OpOr, vm.OpXor:
		emitBitwise(buf, frame, ins.Op)
	case vm.OpNot:
		reg := frame.PopIntTo(amd64.AX)
		amd64.NotReg(buf, reg, false)
		frame.PushInt(reg)

	case vm.OpCompareEqualInt, vm.OpCompareNotEqualInt, vm.OpCompareGreaterInt, vm.OpCompareGreaterEqualInt, vm.OpCompareLessInt, vm.OpCompareLessEqualInt:
		b := frame.PopIntTo(amd64.CX)
		as := frame.PopIntTo(amd64.AX)
		amd64.CompareRegToReg(buf, as, b, false)
		amd64.SetByte(buf, amd64.AX, compareConditions[ins.Op], false)
		frame.PushInt(amd64.AX)
	case vm.OpCompareEqualFloat, vm.OpCompareNotEqualFloat, vm.OpCompareGreaterFloat, vm.OpCompareGreaterEqualFloat, vm.OpCompareLessFloat, vm.OpCompareLessEqualFloat:
		b := frame.PopFloatTo(amd64.XMM1)
		as := frame.PopFloatTo(amd64.XMM0)
		amd64.UComissRegToReg(buf, as, b)
		amd64.SetByte(buf, amd64.AX, compareConditions[ins.Op], true)
		frame.PushInt(amd64.AX)

	case vm.OpBranch:
		disp := a.Jump(amd64.Always, false)
		*branches = append(*branches, branchFixup{offset: disp, targetI: ins.Target})
	case vm.OpBranchEqual, vm.OpBranchNotEqual, vm.OpBranchGreater, vm.OpBranchGreaterEqual, vm.OpBranchLess, vm.OpBranchLessEqual:
		b := frame.PopIntTo(amd64.CX)
		as := frame.PopIntTo(amd64.AX)
		amd64.CompareRegToReg(buf, as, b, false)
		disp := a.Jump(branchConditions[ins.Op], false)
		*branches = append(*branches, branchFixup{offset: disp, targetI: ins.Target})

	case vm.OpLoadString:
		addr := internString(ins.StringValue)
		amd64.MoveLongToReg(buf, amd64.AX, int64(addr))
		frame.PushInt(amd64.AX)

	case vm.OpNewArray:
		emitNewArray(buf, frame, ins, h, calls, branches, needStubs)
	case vm.OpLoadArrayLength:
		ref := frame.PopIntTo(amd64.AX)
		emitNullCheck(a, buf, ref, branches, needStubs)
		_ = a.MoveMemoryToReg(amd64.AX, amd64.MemoryOperand{Register: ref, Offset: int32(vm.ObjectHeaderSize)}, amd64.Size32)
		frame.PushInt(amd64.AX)
	case vm.OpLoadElement:
		emitLoadElement(a, buf, frame, ins, branches, needStubs)
	case vm.OpStoreElement:
		emitStoreElement(a, buf, frame, ins, calls, branches, needStubs)

	case vm.OpNewObject:
		if err := emitNewObject(buf, frame, prog, ins, h, calls); err != nil {
			return err
		}
	case vm.OpLoadField:
		emitLoadField(a, buf, frame, ins, branches, needStubs)
	case vm.OpStoreField:
		emitStoreField(a, buf, frame, ins, calls, branches, needStubs)

	case vm.OpCall:
		target, ok := prog.Lookup(ins.Call.Name, "", ins.Call.ParamTypes)
		if !ok {
			return fmt.Errorf("unresolved call target %q", ins.Call.Name)
		}
		emitManagedCall(buf, frame, cc, target, calls)
	case vm.OpCallInstance:
		target, ok := prog.Lookup(ins.Call.Name, ins.Call.ClassName, ins.Call.ParamTypes)
		if !ok {
			return fmt.Errorf("unresolved instance call target %q on %q", ins.Call.Name, ins.Call.ClassName)
		}
		emitManagedCall(buf, frame, cc, target, calls)
	case vm.OpCallVirtual:
		if err := emitVirtualCall(buf, frame, prog, cc, ins); err != nil {
			return err
		}

	case vm.OpRet:
		emitReturn(buf, frame, fn, cc, calls)

	default:
		return fmt.Errorf("unhandled opcode %d", ins.Op)
	}
	return nil
}

func emitDup(a *amd64.Assembler, frame *Frame) {
	if frame.TopIsFloat() {
		a.MoveFloatMemoryToReg(amd64.XMM0, frame.peekSlot(0))
		frame.PushFloat(amd64.XMM0)
	} else {
		_ = a.MoveMemoryToReg(amd64.AX, frame.peekSlot(0), amd64.Size64)
		frame.PushInt(amd64.AX)
	}
}

func emitLoadSlot(a *amd64.Assembler, frame *Frame, slot amd64.MemoryOperand, isFloat bool) {
	if isFloat {
		a.MoveFloatMemoryToReg(amd64.XMM0, slot)
		frame.PushFloat(amd64.XMM0)
	} else {
		_ = a.MoveMemoryToReg(amd64.AX, slot, amd64.Size64)
		frame.PushInt(amd64.AX)
	}
}

func emitStoreSlot(a *amd64.Assembler, frame *Frame, slot amd64.MemoryOperand, isFloat bool) {
	if isFloat {
		v := frame.PopFloatTo(amd64.XMM0)
		a.MoveFloatRegToMemory(slot, v)
	} else {
		v := frame.PopIntTo(amd64.AX)
		_ = a.MoveRegToMemory(slot, v, amd64.Size64)
	}
}

func emitIntArith(buf *asm.Buffer, frame *Frame, op vm.OpCode) {
	b := frame.PopIntTo(amd64.CX)
	as := frame.PopIntTo(amd64.AX)
	switch op {
	case vm.OpAddInt:
		amd64.AddRegToReg(buf, as, b, false)
	case vm.OpSubInt:
		amd64.SubRegFromReg(buf, as, b, false)
	case vm.OpMulInt:
		amd64.MultRegToReg(buf, as, b, false)
	case vm.OpDivInt:
		amd64.CQO(buf)
		amd64.DivRegFromReg(buf, as, b, false)
	}
	frame.PushInt(as)
}

func emitFloatArith(buf *asm.Buffer, frame *Frame, op vm.OpCode) {
	b := frame.PopFloatTo(amd64.XMM1)
	as := frame.PopFloatTo(amd64.XMM0)
	switch op {
	case vm.OpAddFloat:
		amd64.AddFloatRegToReg(buf, as, b)
	case vm.OpSubFloat:
		amd64.SubFloatRegToReg(buf, as, b)
	case vm.OpMulFloat:
		amd64.MultFloatRegToReg(buf, as, b)
	case vm.OpDivFloat:
		amd64.DivFloatRegToReg(buf, as, b)
	}
	frame.PushFloat(as)
}

func emitBitwise(buf *asm.Buffer, frame *Frame, op vm.OpCode) {
	b := frame.PopIntTo(amd64.CX)
	as := frame.PopIntTo(amd64.AX)
	switch op {
	case vm.OpAnd:
		amd64.AndRegToReg(buf, as, b, false)
	case vm.OpOr:
		amd64.OrRegToReg(buf, as, b, false)
	case vm.OpXor:
		amd64.XorRegToReg(buf, as, b, false)
	}
	frame.PushInt(as)
}

// elementLayout resolves an array element's stored width and GC shape from
// its declared type. Float elements are the one case narrower than a full
// slot (4 bytes); every other element kind — Int, Bool, Char and reference
// elements alike — shares the frame's uniform 8-byte slot width, a
// simplification documented in DESIGN.md.
func elementLayout(t *vm.Type) (size int32, isFloat, isReference bool) {
	if t.IsFloat() {
		return 4, true, false
	}
	return int32(vm.PointerSize), false, t.IsReference()
}

func emitNewArray(buf *asm.Buffer, frame *Frame, ins vm.Instruction, h *heap.Heap, calls *[]CallFixup, branches *[]branchFixup, needStubs map[string]bool) {
	a := amd64.NewAssembler(buf)
	length := frame.PopIntTo(amd64.SI)
	amd64.CompareIntToReg(buf, length, 0, false)
	disp := a.Jump(amd64.Less, false)
	*branches = append(*branches, branchFixup{offset: disp, stub: "invalidLength"})
	needStubs["invalidLength"] = true

	descPtr := h.ArrayDescriptor(ins.ValueType)
	amd64.MoveLongToReg(buf, amd64.DI, int64(descPtr))
	emitRuntimeCall(buf, calls, runtimeNewArray)
	frame.PushInt(amd64.AX)
}

func emitLoadElement(a *amd64.Assembler, buf *asm.Buffer, frame *Frame, ins vm.Instruction, branches *[]branchFixup, needStubs map[string]bool) {
	size, isFloat, _ := elementLayout(ins.ValueType)
	idx := frame.PopIntTo(amd64.CX)
	arr := frame.PopIntTo(amd64.AX)
	emitNullCheck(a, buf, arr, branches, needStubs)
	emitBoundsCheck(a, buf, arr, idx, branches, needStubs)
	computeElementAddress(buf, arr, idx, size)
	if isFloat {
		a.MoveFloatMemoryToReg(amd64.XMM0, amd64.MemoryOperand{Register: arr, Offset: 0})
		frame.PushFloat(amd64.XMM0)
	} else {
		_ = a.MoveMemoryToReg(amd64.AX, amd64.MemoryOperand{Register: arr, Offset: 0}, amd64.Size64)
		frame.PushInt(amd64.AX)
	}
}

func emitStoreElement(a *amd64.Assembler, buf *asm.Buffer, frame *Frame, ins vm.Instruction, calls *[]CallFixup, branches *[]branchFixup, needStubs map[string]bool) {
	size, isFloat, isReference := elementLayout(ins.ValueType)
	var valInt amd64.IntRegister
	var valFloat amd64.FloatRegister
	if isFloat {
		valFloat = frame.PopFloatTo(amd64.XMM1)
	} else {
		valInt = frame.PopIntTo(amd64.DX)
	}
	idx := frame.PopIntTo(amd64.CX)
	arr := frame.PopIntTo(amd64.AX)
	emitNullCheck(a, buf, arr, branches, needStubs)
	emitBoundsCheck(a, buf, arr, idx, branches, needStubs)
	computeElementAddress(buf, arr, idx, size)
	if isFloat {
		a.MoveFloatRegToMemory(amd64.MemoryOperand{Register: arr, Offset: 0}, valFloat)
		return
	}
	_ = a.MoveRegToMemory(amd64.MemoryOperand{Register: arr, Offset: 0}, valInt, amd64.Size64)
	if isReference {
		amd64.MoveRegToReg(buf, amd64.DI, arr, false)
		amd64.MoveRegToReg(buf, amd64.SI, valInt, false)
		emitRuntimeCall(buf, calls, runtimeWriteBarrier)
	}
}

// computeElementAddress overwrites arr in place with the address of
// element idx, given per-element size: arr += headerSize + lengthSize +
// idx*size.
func computeElementAddress(buf *asm.Buffer, arr, idx amd64.IntRegister, size int32) {
	amd64.MoveIntToReg(buf, amd64.SI, size, false)
	amd64.MultRegToReg(buf, idx, amd64.SI, false)
	amd64.AddRegToReg(buf, arr, idx, false)
	amd64.AddIntToReg(buf, arr, int32(vm.ObjectHeaderSize+vm.ArrayLengthSize), false)
}

func emitNewObject(buf *asm.Buffer, frame *Frame, prog *vm.Program, ins vm.Instruction, h *heap.Heap, calls *[]CallFixup) error {
	class, ok := prog.Class(ins.Call.ClassName)
	if !ok {
		return fmt.Errorf("unknown class %q for new object", ins.Call.ClassName)
	}
	descPtr := h.ClassDescriptor(class)
	amd64.MoveLongToReg(buf, amd64.DI, int64(descPtr))
	emitRuntimeCall(buf, calls, runtimeNewObject)
	frame.PushInt(amd64.AX)
	return nil
}

func emitLoadField(a *amd64.Assembler, buf *asm.Buffer, frame *Frame, ins vm.Instruction, branches *[]branchFixup, needStubs map[string]bool) {
	_, isFloat, _ := elementLayout(ins.ValueType)
	obj := frame.PopIntTo(amd64.AX)
	emitNullCheck(a, buf, obj, branches, needStubs)
	slot := amd64.MemoryOperand{Register: obj, Offset: int32(vm.ObjectHeaderSize) + int32(ins.Target)}
	if isFloat {
		a.MoveFloatMemoryToReg(amd64.XMM0, slot)
		frame.PushFloat(amd64.XMM0)
	} else {
		_ = a.MoveMemoryToReg(amd64.AX, slot, amd64.Size64)
		frame.PushInt(amd64.AX)
	}
}

func emitStoreField(a *amd64.Assembler, buf *asm.Buffer, frame *Frame, ins vm.Instruction, calls *[]CallFixup, branches *[]branchFixup, needStubs map[string]bool) {
	_, isFloat, isReference := elementLayout(ins.ValueType)
	var valInt amd64.IntRegister
	var valFloat amd64.FloatRegister
	if isFloat {
		valFloat = frame.PopFloatTo(amd64.XMM0)
	} else {
		valInt = frame.PopIntTo(amd64.DX)
	}
	obj := frame.PopIntTo(amd64.AX)
	emitNullCheck(a, buf, obj, branches, needStubs)
	fieldOffset := int32(vm.ObjectHeaderSize) + int32(ins.Target)
	slot := amd64.MemoryOperand{Register: obj, Offset: fieldOffset}
	if isFloat {
		a.MoveFloatRegToMemory(slot, valFloat)
		return
	}
	_ = a.MoveRegToMemory(slot, valInt, amd64.Size64)
	if isReference {
		amd64.AddIntToReg(buf, obj, fieldOffset, false)
		amd64.MoveRegToReg(buf, amd64.DI, obj, false)
		amd64.MoveRegToReg(buf, amd64.SI, valInt, false)
		emitRuntimeCall(buf, calls, runtimeWriteBarrier)
	}
}

// emitManagedCall emits a call to a user-defined function through the
// shared compile stub (§4.7), rather than a direct call to the callee: the
// callee may not be compiled yet, and even if it is, nothing at codegen
// time can tell a forward reference from a not-yet-reached one. The call
// targets compileStubFunc (already resolved, so its own CallFixup patches
// immediately), immediately followed by target's address embedded as an
// 8-byte immediate. compileStub (stub_amd64.s) reads that immediate off
// the return address, compiles target on first use, rewrites this call
// site's displacement to target's entry point directly, and falls through
// into it -- so only a call site's first execution pays to find out where
// to go; every later execution through the same site is a direct call.
func emitManagedCall(buf *asm.Buffer, frame *Frame, cc callconv.CallingConvention, target *vm.ManagedFunction, calls *[]CallFixup) {
	stackArgs := cc.CallFunctionArguments(frame, target.FunctionDefinition)
	reserve := cc.CalculateStackAlignment(stackArgs) + cc.CalculateShadowStackSize()
	if reserve > 0 {
		amd64.SubIntFromReg(buf, amd64.SP, int32(reserve), false)
	}
	emitRuntimeCall(buf, calls, compileStubFunc)
	buf.WriteUint64LE(uint64(uintptr(unsafe.Pointer(target))))
	if reserve > 0 {
		amd64.AddIntToReg(buf, amd64.SP, int32(reserve), false)
	}
	cc.HandleReturnValue(frame, target.FunctionDefinition, stackArgs)
}

func emitVirtualCall(buf *asm.Buffer, frame *Frame, prog *vm.Program, cc callconv.CallingConvention, ins vm.Instruction) error {
	class, ok := prog.Class(ins.Call.ClassName)
	if !ok {
		return fmt.Errorf("unknown class %q for virtual call", ins.Call.ClassName)
	}
	slot := class.FindVirtualSlot(ins.Call.Name)
	if slot < 0 {
		return fmt.Errorf("no virtual slot for %q on %q", ins.Call.Name, ins.Call.ClassName)
	}
	target := class.VTable[slot].Def

	stackArgs := cc.CallFunctionArguments(frame, target)
	reserve := cc.CalculateStackAlignment(stackArgs) + cc.CalculateShadowStackSize()
	if reserve > 0 {
		amd64.SubIntFromReg(buf, amd64.SP, int32(reserve), false)
	}

	thisReg := cc.IntParamRegisters()[0]
	amd64.MoveRegToReg(buf, amd64.R11, thisReg, false)
	_ = amd64.NewAssembler(buf).MoveMemoryToReg(amd64.R11, amd64.MemoryOperand{Register: amd64.R11, Offset: 0}, amd64.Size64)
	_ = amd64.NewAssembler(buf).MoveMemoryToReg(amd64.R11, amd64.MemoryOperand{Register: amd64.R11, Offset: int32(slot * vm.PointerSize)}, amd64.Size64)
	amd64.CallReg(buf, amd64.R11)

	if reserve > 0 {
		amd64.AddIntToReg(buf, amd64.SP, int32(reserve), false)
	}
	cc.HandleReturnValue(frame, target, stackArgs)
	return nil
}
