package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignatureExcludesImplicitThis(t *testing.T) {
	free := &FunctionDefinition{Name: "add", Params: []*Type{Int, Int}, ReturnType: Int}
	require.Equal(t, "add(Int Int)", free.Signature())

	member := &FunctionDefinition{
		Name:       "Point::move",
		Params:     []*Type{NewClassType("Point"), Int, Int},
		ReturnType: Void,
		IsMember:   true,
		ClassName:  "Point",
	}
	require.Equal(t, "Point::move(Int Int)", member.Signature())
}

func TestMemberNameStripsQualifier(t *testing.T) {
	member := &FunctionDefinition{Name: "Point::move", IsMember: true}
	require.Equal(t, "move", member.MemberName())

	free := &FunctionDefinition{Name: "main"}
	require.Equal(t, "main", free.MemberName())
}

func TestIsCompiledReflectsEntryPoint(t *testing.T) {
	fn := &FunctionDefinition{Name: "f"}
	require.False(t, fn.IsCompiled())
	fn.EntryPoint = 0x1000
	require.True(t, fn.IsCompiled())
}

func TestManagedFunctionArgAndLocalCounts(t *testing.T) {
	mf := &ManagedFunction{
		FunctionDefinition: &FunctionDefinition{Params: []*Type{Int, Float}},
		Locals:             []*Type{Int, Int, Bool},
	}
	require.Equal(t, 2, mf.NumArgs())
	require.Equal(t, 3, mf.NumLocals())
}
