package source

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFreeFunction(t *testing.T) {
	prog, err := Parse(`
func add(Int Int) Int {
	.locals 0
	ldarg 0
	ldarg 1
	addint
	ret
}
`)
	require.NoError(t, err)

	fn, ok := prog.LookupSignature("add(Int Int)")
	require.True(t, ok)
	require.Len(t, fn.Instructions, 4)
	require.Equal(t, 0, fn.NumLocals())
}

func TestParseClassWithFieldsAndMemberFunction(t *testing.T) {
	prog, err := Parse(`
class Point {
	x Int
	y Int
}

member func Point::getX() Int {
	ldarg 0
	ldfield Point::x
	ret
}
`)
	require.NoError(t, err)

	class, ok := prog.Class("Point")
	require.True(t, ok)
	xf, ok := class.Field("x")
	require.True(t, ok)
	require.Equal(t, 0, xf.Offset)

	fn, ok := prog.Lookup("getX", "Point", nil)
	require.True(t, ok)
	require.Equal(t, 0, fn.Instructions[1].Target)
}

func TestParseInheritedClassPrependsParentFields(t *testing.T) {
	prog, err := Parse(`
class Base {
	x Int
}

class Derived extends Base {
	y Int
}
`)
	require.NoError(t, err)

	derived, ok := prog.Class("Derived")
	require.True(t, ok)
	require.Len(t, derived.Fields, 2)
	xf, _ := derived.Field("x")
	yf, _ := derived.Field("y")
	require.Equal(t, 0, xf.Offset)
	require.Equal(t, 4, yf.Offset)
}

func TestParseVirtualOverrideKeepsSlot(t *testing.T) {
	prog, err := Parse(`
class Base {
}

member func Base::speak(Base) Void {
	ret
}

class Derived extends Base {
}

member func Derived::speak(Derived) Void {
	ret
}
`)
	require.NoError(t, err)

	base, ok := prog.Class("Base")
	require.True(t, ok)
	derived, ok := prog.Class("Derived")
	require.True(t, ok)

	baseSlot := base.FindVirtualSlot("speak")
	derivedSlot := derived.FindVirtualSlot("speak")
	require.Equal(t, baseSlot, derivedSlot)
	require.Equal(t, "Derived::speak", derived.VTable[derivedSlot].Def.Name)
}

func TestParseExternFunctionCannotBeMember(t *testing.T) {
	_, err := Parse(`extern func Point::foo(Int) Int`)
	require.Error(t, err)
}

func TestParseUndeclaredParentIsAnError(t *testing.T) {
	_, err := Parse(`
class Derived extends Ghost {
}
`)
	require.Error(t, err)
}

func TestParseAttributeOnFunction(t *testing.T) {
	prog, err := Parse(`
func main() Int {
	@inline(level=1)
	ldint 0
	ret
}
`)
	require.NoError(t, err)
	fn, ok := prog.LookupSignature("main()")
	require.True(t, ok)
	require.Equal(t, map[string]string{"level": "1"}, fn.Attributes["inline"])
}

func TestParseRejectsUnknownMnemonic(t *testing.T) {
	_, err := Parse(`
func f() Void {
	bogusop
}
`)
	require.Error(t, err)
}
