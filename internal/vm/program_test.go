package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddFunctionRejectsDuplicateSignature(t *testing.T) {
	prog := NewProgram()
	def := func() *FunctionDefinition { return &FunctionDefinition{Name: "f", Params: []*Type{Int}, ReturnType: Void} }

	require.NoError(t, prog.AddFunction(&ManagedFunction{FunctionDefinition: def()}))
	err := prog.AddFunction(&ManagedFunction{FunctionDefinition: def()})
	require.Error(t, err)
}

func TestLookupResolvesFreeAndMemberFunctions(t *testing.T) {
	prog := NewProgram()
	free := &FunctionDefinition{Name: "add", Params: []*Type{Int, Int}, ReturnType: Int}
	require.NoError(t, prog.AddFunction(&ManagedFunction{FunctionDefinition: free}))

	member := &FunctionDefinition{
		Name:       "Point::move",
		Params:     []*Type{NewClassType("Point"), Int},
		ReturnType: Void,
		IsMember:   true,
		ClassName:  "Point",
	}
	require.NoError(t, prog.AddFunction(&ManagedFunction{FunctionDefinition: member}))

	fn, ok := prog.Lookup("add", "", []*Type{Int, Int})
	require.True(t, ok)
	require.Same(t, free, fn.FunctionDefinition)

	fn, ok = prog.Lookup("move", "Point", []*Type{Int})
	require.True(t, ok)
	require.Same(t, member, fn.FunctionDefinition)

	_, ok = prog.Lookup("missing", "", nil)
	require.False(t, ok)
}

func TestLookupSignatureMatchesSignatureString(t *testing.T) {
	prog := NewProgram()
	def := &FunctionDefinition{Name: "main", ReturnType: Int}
	require.NoError(t, prog.AddFunction(&ManagedFunction{FunctionDefinition: def}))

	fn, ok := prog.LookupSignature("main()")
	require.True(t, ok)
	require.Same(t, def, fn.FunctionDefinition)
}

func TestFunctionsPreservesLoadOrder(t *testing.T) {
	prog := NewProgram()
	names := []string{"c", "a", "b"}
	for _, n := range names {
		require.NoError(t, prog.AddFunction(&ManagedFunction{FunctionDefinition: &FunctionDefinition{Name: n, ReturnType: Void}}))
	}

	var got []string
	for _, fn := range prog.Functions() {
		got = append(got, fn.Name)
	}
	require.Equal(t, names, got)
}

func TestClassAndClasses(t *testing.T) {
	prog := NewProgram()
	prog.AddClass(NewClassMetadata("Point", ""))

	c, ok := prog.Class("Point")
	require.True(t, ok)
	require.Equal(t, "Point", c.Name)

	_, ok = prog.Class("Missing")
	require.False(t, ok)

	require.Len(t, prog.Classes(), 1)
}
