package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/svenslaggare/stackjit-go/internal/callconv"
	"github.com/svenslaggare/stackjit-go/internal/heap"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// buildMainCallsAdd wires two functions -- main(), which calls add(2, 3)
// and returns its result, and add(Int, Int), which sums its two arguments
// -- into a program, the same shape cmd/stackvm expects for its own
// "compile only main" entry point.
func buildMainCallsAdd() (*vm.Program, *vm.ManagedFunction) {
	prog := vm.NewProgram()

	add := &vm.FunctionDefinition{Name: "add", Params: []*vm.Type{vm.Int, vm.Int}, ReturnType: vm.Int}
	addMF := &vm.ManagedFunction{
		FunctionDefinition: add,
		Instructions: []vm.Instruction{
			{Op: vm.OpLoadArg, Target: 0},
			{Op: vm.OpLoadArg, Target: 1},
			{Op: vm.OpAddInt},
			{Op: vm.OpRet},
		},
	}
	_ = prog.AddFunction(addMF)

	main := &vm.FunctionDefinition{Name: "main", ReturnType: vm.Int}
	mainMF := &vm.ManagedFunction{
		FunctionDefinition: main,
		Instructions: []vm.Instruction{
			{Op: vm.OpLoadInt, Payload: vm.PayloadInt, IntValue: 2},
			{Op: vm.OpLoadInt, Payload: vm.PayloadInt, IntValue: 3},
			{Op: vm.OpCall, Payload: vm.PayloadCall, Call: &vm.CallTarget{Name: "add", ParamTypes: []*vm.Type{vm.Int, vm.Int}}},
			{Op: vm.OpRet},
		},
	}
	_ = prog.AddFunction(mainMF)

	return prog, mainMF
}

// TestEngineCompileLazilyPatchesCallSiteToDirectCall exercises the
// call-patching invariant a forward reference relies on: main's call to
// add, compiled before add itself, starts out routed through the shared
// compile stub and ends up, after add compiles, calling add directly --
// verified here by actually invoking the compiled main and checking its
// result, rather than inspecting the emitted bytes.
func TestEngineCompileLazilyPatchesCallSiteToDirectCall(t *testing.T) {
	prog, mainMF := buildMainCallsAdd()
	h := heap.NewDefaultHeap()
	cc := callconv.ForGOOS("linux")

	e := NewEngine(prog, cc, h)
	defer e.Close()

	entry, err := e.Compile(mainMF)
	require.NoError(t, err)
	require.NotZero(t, entry)

	addMF, ok := prog.LookupSignature("add(Int Int)")
	require.True(t, ok)
	require.False(t, addMF.IsCompiled(), "add is only compiled lazily, on its call site's first execution")

	result := InvokeMain(entry)
	require.Equal(t, int32(5), result)
	require.True(t, addMF.IsCompiled(), "main's call forced add to compile via the lazy stub")
}

func TestEngineCompileIsIdempotent(t *testing.T) {
	prog, mainMF := buildMainCallsAdd()
	h := heap.NewDefaultHeap()
	cc := callconv.ForGOOS("linux")

	e := NewEngine(prog, cc, h)
	defer e.Close()

	first, err := e.Compile(mainMF)
	require.NoError(t, err)
	second, err := e.Compile(mainMF)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCompileAllResolvesEveryCallSiteUpFront(t *testing.T) {
	prog, mainMF := buildMainCallsAdd()
	h := heap.NewDefaultHeap()
	cc := callconv.ForGOOS("linux")

	e := NewEngine(prog, cc, h)
	defer e.Close()

	require.NoError(t, e.CompileAll())

	addMF, ok := prog.LookupSignature("add(Int Int)")
	require.True(t, ok)
	require.True(t, addMF.IsCompiled())

	result := InvokeMain(mainMF.EntryPoint)
	require.Equal(t, int32(5), result)
}
