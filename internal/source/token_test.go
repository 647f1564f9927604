package source

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizeSplitsOnWhitespaceAndPunctuation(t *testing.T) {
	toks, err := Tokenize(`func add(Int Int) Int {
	ldarg 0
	ldarg(1)
}`)
	require.NoError(t, err)
	require.Equal(t, []string{
		"func", "add", "(", "Int", "Int", ")", "Int", "{",
		"ldarg", "0",
		"ldarg", "(", "1", ")",
		"}",
	}, toks)
}

func TestTokenizeStripsLineComments(t *testing.T) {
	toks, err := Tokenize("ldint 1 # push one\nret")
	require.NoError(t, err)
	require.Equal(t, []string{"ldint", "1", "ret"}, toks)
}

func TestTokenizeStringLiteralWithEscapes(t *testing.T) {
	toks, err := Tokenize(`ldstr "hello \"world\""`)
	require.NoError(t, err)
	require.Equal(t, []string{"ldstr", `hello "world"`}, toks)
}

func TestTokenizeUnterminatedStringIsAnError(t *testing.T) {
	_, err := Tokenize(`ldstr "oops`)
	require.Error(t, err)
}

func TestTokenizeAttributeSyntax(t *testing.T) {
	toks, err := Tokenize("@inline(level=1)")
	require.NoError(t, err)
	require.Equal(t, []string{"@", "inline", "(", "level", "=", "1", ")"}, toks)
}
