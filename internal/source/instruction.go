package source

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// parseFunctionBody parses one function's captured instruction tokens
// (already brace-stripped by captureBlock) into fn.Instructions/fn.Locals/
// fn.Attributes. prog and classExists are already complete at this point
// (every signature registered, every class laid out), so field, call and
// branch operands all resolve immediately -- there is no separate verify
// pass in this module the way a fuller implementation might stage it.
func parseFunctionBody(tokens []string, fn *vm.ManagedFunction, prog *vm.Program, classExists func(string) bool) error {
	c := &tokenCursor{tokens: tokens}
	localsSet := false

	for !c.atEnd() {
		tok, err := c.next()
		if err != nil {
			return err
		}
		lower := strings.ToLower(tok)

		switch lower {
		case "@":
			name, values, err := parseAttribute(c)
			if err != nil {
				return err
			}
			if fn.Attributes == nil {
				fn.Attributes = map[string]map[string]string{}
			}
			if _, dup := fn.Attributes[name]; dup {
				return errors.Errorf("attribute %q already defined", name)
			}
			fn.Attributes[name] = values

		case ".locals":
			if localsSet {
				return errors.New(".locals already set")
			}
			n, err := c.nextInt()
			if err != nil {
				return errors.Wrap(err, ".locals count")
			}
			if n < 0 {
				return errors.New(".locals count must be >= 0")
			}
			fn.Locals = make([]*vm.Type, n)
			for i := range fn.Locals {
				fn.Locals[i] = vm.Void
			}
			localsSet = true

		case ".local":
			if !localsSet {
				return errors.New(".locals must be set before .local")
			}
			idx, err := c.nextInt()
			if err != nil {
				return errors.Wrap(err, ".local index")
			}
			typeName, err := c.next()
			if err != nil {
				return errors.Wrap(err, ".local type")
			}
			if idx < 0 || idx >= len(fn.Locals) {
				return errors.Errorf("local index %d out of range", idx)
			}
			t, err := vm.ParseTypeName(typeName, classExists)
			if err != nil {
				return errors.Wrapf(err, ".local %d type", idx)
			}
			fn.Locals[idx] = t

		default:
			info, ok := infoByMnemonic[lower]
			if !ok {
				return errors.Errorf("%q is not a valid instruction", tok)
			}
			ins, err := parseOperand(c, info, prog, classExists)
			if err != nil {
				return errors.Wrapf(err, "instruction %q", lower)
			}
			fn.Instructions = append(fn.Instructions, ins)
		}
	}

	return nil
}

func parseOperand(c *tokenCursor, info mnemonicInfo, prog *vm.Program, classExists func(string) bool) (vm.Instruction, error) {
	ins := vm.Instruction{Op: info.op}

	switch info.operand {
	case operandNone:

	case operandInt:
		v, err := c.nextInt()
		if err != nil {
			return ins, err
		}
		ins.Payload = vm.PayloadInt
		ins.IntValue = int32(v)

	case operandFloat:
		v, err := c.nextFloat()
		if err != nil {
			return ins, err
		}
		ins.Payload = vm.PayloadFloat
		ins.FloatValue = v

	case operandChar:
		t, err := c.next()
		if err != nil {
			return ins, err
		}
		v, err := strconv.Atoi(t)
		if err != nil {
			return ins, errors.Wrapf(err, "expected char code, got %q", t)
		}
		ins.Payload = vm.PayloadChar
		ins.CharValue = byte(v)

	case operandString:
		t, err := c.next()
		if err != nil {
			return ins, err
		}
		ins.Payload = vm.PayloadStringConst
		ins.StringValue = t

	case operandLocalIndex:
		idx, err := c.nextInt()
		if err != nil {
			return ins, err
		}
		ins.Target = idx

	case operandBranchTarget:
		target, err := c.nextInt()
		if err != nil {
			return ins, err
		}
		ins.Target = target

	case operandType:
		typeName, err := c.next()
		if err != nil {
			return ins, err
		}
		t, err := vm.ParseTypeName(typeName, classExists)
		if err != nil {
			return ins, errors.Wrapf(err, "type %q", typeName)
		}
		ins.ValueType = t

	case operandField:
		t, err := c.next()
		if err != nil {
			return ins, err
		}
		className, fieldName, err := splitQualified(t)
		if err != nil {
			return ins, err
		}
		class, ok := prog.Class(className)
		if !ok {
			return ins, errors.Errorf("unknown class %q", className)
		}
		field, ok := class.Field(fieldName)
		if !ok {
			return ins, errors.Errorf("unknown field %q on class %q", fieldName, className)
		}
		ins.Target = field.Offset
		ins.ValueType = field.Type

	case operandClassName:
		name, err := c.next()
		if err != nil {
			return ins, err
		}
		ins.Payload = vm.PayloadNewObject
		ins.Call = &vm.CallTarget{ClassName: name}

	case operandCall:
		name, err := c.next()
		if err != nil {
			return ins, err
		}
		params, err := parseCallParams(c, classExists)
		if err != nil {
			return ins, err
		}
		ins.Payload = vm.PayloadCall
		ins.Call = &vm.CallTarget{Name: name, ParamTypes: params}

	case operandCallInstance:
		t, err := c.next()
		if err != nil {
			return ins, err
		}
		className, memberName, err := splitQualified(t)
		if err != nil {
			return ins, err
		}
		params, err := parseCallParams(c, classExists)
		if err != nil {
			return ins, err
		}
		ins.Payload = vm.PayloadCallInstance
		ins.Call = &vm.CallTarget{Name: memberName, ClassName: className, ParamTypes: params}
	}

	return ins, nil
}

// splitQualified splits a "Class::member" token, as used by callinst/
// callvirt/ldfield/stfield operands.
func splitQualified(t string) (class, member string, err error) {
	idx := strings.Index(t, "::")
	if idx < 0 {
		return "", "", errors.Errorf("expected 'Class::name', got %q", t)
	}
	return t[:idx], t[idx+2:], nil
}

func parseCallParams(c *tokenCursor, classExists func(string) bool) ([]*vm.Type, error) {
	if err := c.expect("("); err != nil {
		return nil, errors.Wrap(err, "call parameters")
	}
	var params []*vm.Type
	for {
		t, err := c.next()
		if err != nil {
			return nil, errors.Wrap(err, "call parameters")
		}
		if t == ")" {
			return params, nil
		}
		typ, err := vm.ParseTypeName(t, classExists)
		if err != nil {
			return nil, errors.Wrapf(err, "call parameter %q", t)
		}
		params = append(params, typ)
	}
}
