package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPrintParseRoundTrip checks that Print's output re-parses into a
// program equivalent to the one it was printed from -- the property
// stackasm -d relies on (its output must itself be valid stackasm input).
func TestPrintParseRoundTrip(t *testing.T) {
	original := `
func add(Int Int) Int {
	.locals 1
	.local 0 Int
	ldarg 0
	ldarg 1
	addint
	stloc 0
	ldloc 0
	ret
}

class Point {
	x Int
	y Int
}

member func Point::getX() Int {
	ldarg 0
	ldfield Point::x
	ret
}
`
	prog, err := Parse(original)
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, Print(prog, &buf))

	reparsed, err := Parse(buf.String())
	require.NoError(t, err)

	addFn, ok := reparsed.LookupSignature("add(Int Int)")
	require.True(t, ok)
	require.Len(t, addFn.Instructions, 6)
	require.Equal(t, 1, addFn.NumLocals())

	getXFn, ok := reparsed.Lookup("getX", "Point", nil)
	require.True(t, ok)
	require.Equal(t, 0, getXFn.Instructions[1].Target)

	class, ok := reparsed.Class("Point")
	require.True(t, ok)
	require.Len(t, class.Fields, 2)
}

func TestPrintNewObjectAndCallOperands(t *testing.T) {
	original := `
class Widget {
}

func make() Widget {
	newobj Widget
	ret
}

func add(Int Int) Int {
	ldarg 0
	ldarg 1
	call add(Int Int)
	ret
}
`
	prog, err := Parse(original)
	require.NoError(t, err)

	var buf strings.Builder
	require.NoError(t, Print(prog, &buf))
	require.Contains(t, buf.String(), "newobj Widget")
	require.Contains(t, buf.String(), "call add(Int Int)")
}
