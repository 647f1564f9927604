package image

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

func buildSampleProgram() *vm.Program {
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

	extern := &vm.FunctionDefinition{Name: "puts", Params: []*vm.Type{vm.Int}, ReturnType: vm.Void, IsExternal: true}
	_ = prog.AddFunction(&vm.ManagedFunction{FunctionDefinition: extern})

	base := vm.NewClassMetadata("Base", "")
	base.AddField("x", vm.Int)
	base.Layout()
	prog.AddClass(base)

	derived := vm.NewClassMetadata("Derived", "Base")
	for _, f := range base.Fields {
		derived.AddField(f.Name, f.Type)
	}
	derived.AddField("y", vm.Int)
	derived.Layout()
	prog.AddClass(derived)

	getX := &vm.FunctionDefinition{
		Name:       "Base::getX",
		Params:     []*vm.Type{vm.NewClassType("Base")},
		ReturnType: vm.Int,
		IsManaged:  true,
		IsMember:   true,
		ClassName:  "Base",
	}
	getXMF := &vm.ManagedFunction{
		FunctionDefinition: getX,
		Instructions: []vm.Instruction{
			{Op: vm.OpLoadArg, Target: 0},
			{Op: vm.OpLoadField, Target: 0, ValueType: vm.Int},
			{Op: vm.OpRet},
		},
	}
	_ = prog.AddFunction(getXMF)
	base.AppendVirtualMethod(getX)

	return prog
}

func TestEncodeLoadRoundTrip(t *testing.T) {
	prog := buildSampleProgram()

	data, err := Encode(prog)
	require.NoError(t, err)

	img, err := Load(data)
	require.NoError(t, err)

	addFn, ok := img.Program().LookupSignature("add(Int Int)")
	require.True(t, ok)
	require.NoError(t, img.LoadFunctionBody(addFn))
	require.Len(t, addFn.Instructions, 4)
	require.Equal(t, vm.OpAddInt, addFn.Instructions[2].Op)

	externFn, ok := img.Program().LookupSignature("puts(Int)")
	require.True(t, ok)
	require.True(t, externFn.IsExternal)
	require.NoError(t, img.LoadFunctionBody(externFn))

	derived, ok := img.Program().Class("Derived")
	require.True(t, ok)
	require.NoError(t, img.LoadClassBody(derived))
	require.Equal(t, "Base", derived.Parent)
	require.Len(t, derived.Fields, 2)
	xf, ok := derived.Field("x")
	require.True(t, ok)
	require.Equal(t, 0, xf.Offset)
	yf, ok := derived.Field("y")
	require.True(t, ok)
	require.Equal(t, 4, yf.Offset)

	require.Equal(t, 0, derived.FindVirtualSlot("getX"), "vtable slot inherited from Base")
}

func TestLoadFunctionBodyIsIdempotent(t *testing.T) {
	prog := buildSampleProgram()
	data, err := Encode(prog)
	require.NoError(t, err)

	img, err := Load(data)
	require.NoError(t, err)

	fn, ok := img.Program().LookupSignature("add(Int Int)")
	require.True(t, ok)

	require.NoError(t, img.LoadFunctionBody(fn))
	original := fn.Instructions
	require.NoError(t, img.LoadFunctionBody(fn))
	require.Same(t, &original[0], &fn.Instructions[0])
}

func TestLoadAllMaterializesEveryBody(t *testing.T) {
	prog := buildSampleProgram()
	data, err := Encode(prog)
	require.NoError(t, err)

	img, err := Load(data)
	require.NoError(t, err)
	require.NoError(t, img.LoadAll())

	for _, fn := range img.Program().Functions() {
		if fn.IsExternal {
			continue
		}
		require.NotEmpty(t, fn.Instructions, fn.Signature())
	}
	derived, _ := img.Program().Class("Derived")
	require.Equal(t, 8, derived.Size)
}

func TestLoadRejectsTruncatedData(t *testing.T) {
	_, err := Load([]byte{1, 2, 3})
	require.Error(t, err)
}

func TestLoadFunctionBodyRejectsFunctionFromAnotherImage(t *testing.T) {
	prog := buildSampleProgram()
	data, err := Encode(prog)
	require.NoError(t, err)

	imgA, err := Load(data)
	require.NoError(t, err)
	imgB, err := Load(data)
	require.NoError(t, err)

	fnFromB, ok := imgB.Program().LookupSignature("add(Int Int)")
	require.True(t, ok)

	require.Error(t, imgA.LoadFunctionBody(fnFromB))
}
