package source

import (
	"strings"

	"github.com/pkg/errors"
)

// Tokenize splits source text into tokens per §6's surface grammar: `#`
// starts a line comment, a double-quoted string (with `\` escapes) is a
// single token regardless of the characters inside it, and `(`, `)`, `@`,
// `=` are always their own token even when not surrounded by whitespace.
// Everything else is split on whitespace.
//
// Grounded on original_source/src/bytecode/bytecodeparser.cpp's own
// tokenizer, rewritten as a single pass over runes instead of a state
// machine of per-character flags.
func Tokenize(src string) ([]string, error) {
	var tokens []string
	var tok strings.Builder

	flush := func() {
		if tok.Len() > 0 {
			tokens = append(tokens, tok.String())
			tok.Reset()
		}
	}

	runes := []rune(src)
	i := 0
	for i < len(runes) {
		ch := runes[i]

		switch {
		case ch == '#':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}

		case ch == '"':
			i++
			var s strings.Builder
			closed := false
			for i < len(runes) {
				c := runes[i]
				if c == '\\' && i+1 < len(runes) {
					s.WriteRune(runes[i+1])
					i += 2
					continue
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				s.WriteRune(c)
				i++
			}
			if !closed {
				return nil, errors.New("source: unterminated string literal")
			}
			tokens = append(tokens, s.String())

		case ch == '(' || ch == ')' || ch == '@' || ch == '=':
			flush()
			tokens = append(tokens, string(ch))
			i++

		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			flush()
			i++

		default:
			tok.WriteRune(ch)
			i++
		}
	}
	flush()

	return tokens, nil
}
