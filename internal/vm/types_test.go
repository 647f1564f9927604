package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTypeNamePrimitives(t *testing.T) {
	cases := map[string]*Type{
		"Void":  Void,
		"Int":   Int,
		"Float": Float,
		"Bool":  Bool,
		"Char":  Char,
	}
	for name, want := range cases {
		got, err := ParseTypeName(name, nil)
		require.NoError(t, err)
		require.True(t, got.Equal(want))
	}
}

func TestParseTypeNameArrayNesting(t *testing.T) {
	got, err := ParseTypeName("Array(Array(Int))", nil)
	require.NoError(t, err)
	require.Equal(t, KindArray, got.Kind())
	require.Equal(t, KindArray, got.Element().Kind())
	require.True(t, got.Element().Element().Equal(Int))
	require.Equal(t, "Array(Array(Int))", got.String())
}

func TestParseTypeNameUnknownClass(t *testing.T) {
	_, err := ParseTypeName("Widget", func(string) bool { return false })
	require.Error(t, err)
}

func TestParseTypeNameKnownClass(t *testing.T) {
	got, err := ParseTypeName("Widget", func(name string) bool { return name == "Widget" })
	require.NoError(t, err)
	require.Equal(t, KindClass, got.Kind())
	require.Equal(t, "Widget", got.ClassName())
}

func TestTypeEqual(t *testing.T) {
	require.True(t, NewArrayType(Int).Equal(NewArrayType(Int)))
	require.False(t, NewArrayType(Int).Equal(NewArrayType(Float)))
	require.True(t, NewClassType("A").Equal(NewClassType("A")))
	require.False(t, NewClassType("A").Equal(NewClassType("B")))
	require.False(t, Int.Equal(Float))
}

func TestIsReferenceAndIsFloat(t *testing.T) {
	require.True(t, NewArrayType(Int).IsReference())
	require.True(t, NewClassType("A").IsReference())
	require.False(t, Int.IsReference())
	require.True(t, Float.IsFloat())
	require.False(t, Int.IsFloat())
}
