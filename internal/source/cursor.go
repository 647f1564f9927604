package source

import (
	"strconv"

	"github.com/pkg/errors"
)

// tokenCursor is a read-only position in a token stream, the text-format
// analogue of internal/image's byte cursor.
type tokenCursor struct {
	tokens []string
	pos    int
}

func (c *tokenCursor) atEnd() bool { return c.pos >= len(c.tokens) }

func (c *tokenCursor) peek() (string, bool) {
	if c.atEnd() {
		return "", false
	}
	return c.tokens[c.pos], true
}

func (c *tokenCursor) next() (string, error) {
	if c.atEnd() {
		return "", errors.New("source: unexpected end of input")
	}
	t := c.tokens[c.pos]
	c.pos++
	return t, nil
}

func (c *tokenCursor) expect(want string) error {
	t, err := c.next()
	if err != nil {
		return err
	}
	if t != want {
		return errors.Errorf("source: expected %q, got %q", want, t)
	}
	return nil
}

func (c *tokenCursor) nextInt() (int, error) {
	t, err := c.next()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(t)
	if err != nil {
		return 0, errors.Wrapf(err, "source: expected integer, got %q", t)
	}
	return n, nil
}

func (c *tokenCursor) nextFloat() (float32, error) {
	t, err := c.next()
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(t, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "source: expected float, got %q", t)
	}
	return float32(f), nil
}

// captureBlock consumes a brace-delimited block starting at "{" and returns
// its contents as a flat token slice, without interpreting them -- callers
// parse function bodies only once every function signature and class
// layout in the file is known (mirroring internal/image's eager-definitions
// pass), so the block's tokens must be captured up front and parsed later.
func (c *tokenCursor) captureBlock() ([]string, error) {
	if err := c.expect("{"); err != nil {
		return nil, errors.Wrap(err, "source: expected '{' to start block")
	}
	depth := 1
	var body []string
	for {
		t, err := c.next()
		if err != nil {
			return nil, errors.Wrap(err, "source: unterminated block")
		}
		switch t {
		case "{":
			depth++
		case "}":
			depth--
			if depth == 0 {
				return body, nil
			}
		}
		body = append(body, t)
	}
}
