package source

import "github.com/pkg/errors"

// parseAttribute consumes "name ( key = value ... )" after an already-
// consumed "@" token, matching bytecodeparser.cpp's parseAttribute. Class
// and field attributes are parsed the same way but discarded: neither
// vm.ClassMetadata nor vm.Field carries an attribute container (only
// vm.FunctionDefinition does, per DESIGN.md's note on the binary format's
// asymmetry), so only callers parsing a function body keep the result.
func parseAttribute(c *tokenCursor) (name string, values map[string]string, err error) {
	name, err = c.next()
	if err != nil {
		return "", nil, err
	}
	if err := c.expect("("); err != nil {
		return "", nil, errors.Wrapf(err, "source: attribute %q", name)
	}

	values = map[string]string{}
	for {
		key, err := c.next()
		if err != nil {
			return "", nil, err
		}
		if key == ")" {
			break
		}
		if err := c.expect("="); err != nil {
			return "", nil, errors.Wrapf(err, "source: attribute %q key %q", name, key)
		}
		value, err := c.next()
		if err != nil {
			return "", nil, err
		}
		if _, dup := values[key]; dup {
			return "", nil, errors.Errorf("source: attribute %q key %q already set", name, key)
		}
		values[key] = value
	}

	return name, values, nil
}
