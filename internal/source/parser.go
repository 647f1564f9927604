// Package source implements the surface assembly language (§6): the
// free-form text format stackasm reads, and (via printer.go) the format
// stackasm -d writes back out. Grounded on
// original_source/src/bytecode/bytecodeparser.cpp, the original's textual
// loader, rewritten in this module's own idiom rather than translated.
//
// Parsing happens in passes for the same reason internal/image's loader
// does: a function's parameter or field type may name a class declared
// later in the same file, so every class name must be known before any
// type name is resolved, and every class must be fully laid out (fields
// offset-assigned, vtable built) before any function body referencing a
// field or virtual call is parsed.
package source

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

type classField struct {
	name     string
	typeName string
}

type pendingClass struct {
	meta   *vm.ClassMetadata
	fields []classField
}

type pendingFunc struct {
	mf   *vm.ManagedFunction
	body []string
}

// Parse builds a *vm.Program from StackJIT surface assembly source.
func Parse(src string) (*vm.Program, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}

	classNames := map[string]bool{}
	prescanClassNames(tokens, classNames)
	classExists := func(name string) bool { return classNames[name] }

	prog := vm.NewProgram()
	c := &tokenCursor{tokens: tokens}

	var pendingFuncs []pendingFunc
	var pendingClasses []pendingClass

	for !c.atEnd() {
		tok, _ := c.peek()
		switch tok {
		case "func":
			c.next()
			fn, err := parseFuncHeader(c, classExists)
			if err != nil {
				return nil, err
			}
			if fn.IsMember {
				return nil, errors.Errorf("source: '::' is only allowed in member functions (%s)", fn.Name)
			}
			body, err := c.captureBlock()
			if err != nil {
				return nil, errors.Wrapf(err, "source: body of %s", fn.Signature())
			}
			mf := &vm.ManagedFunction{FunctionDefinition: fn}
			if err := prog.AddFunction(mf); err != nil {
				return nil, errors.Wrap(err, "source")
			}
			pendingFuncs = append(pendingFuncs, pendingFunc{mf: mf, body: body})

		case "extern":
			c.next()
			if err := c.expect("func"); err != nil {
				return nil, errors.Wrap(err, "source: extern declaration")
			}
			fn, err := parseFuncHeader(c, classExists)
			if err != nil {
				return nil, err
			}
			if fn.IsMember {
				return nil, errors.Errorf("source: extern functions cannot be members (%s)", fn.Name)
			}
			fn.IsExternal = true
			fn.IsManaged = false
			mf := &vm.ManagedFunction{FunctionDefinition: fn}
			if err := prog.AddFunction(mf); err != nil {
				return nil, errors.Wrap(err, "source")
			}

		case "member":
			c.next()
			if err := c.expect("func"); err != nil {
				return nil, errors.Wrap(err, "source: member declaration")
			}
			fn, err := parseFuncHeader(c, classExists)
			if err != nil {
				return nil, err
			}
			if !fn.IsMember {
				return nil, errors.Errorf("source: expected 'Class::name' in member function (%s)", fn.Name)
			}
			body, err := c.captureBlock()
			if err != nil {
				return nil, errors.Wrapf(err, "source: body of %s", fn.Signature())
			}
			mf := &vm.ManagedFunction{FunctionDefinition: fn}
			if err := prog.AddFunction(mf); err != nil {
				return nil, errors.Wrap(err, "source")
			}
			pendingFuncs = append(pendingFuncs, pendingFunc{mf: mf, body: body})

		case "class":
			c.next()
			name, err := c.next()
			if err != nil {
				return nil, errors.Wrap(err, "source: class name")
			}
			parent := ""
			if next, ok := c.peek(); ok && next == "extends" {
				c.next()
				if parent, err = c.next(); err != nil {
					return nil, errors.Wrapf(err, "source: parent of class %s", name)
				}
			}
			meta := vm.NewClassMetadata(name, parent)
			fields, err := parseClassBody(c)
			if err != nil {
				return nil, errors.Wrapf(err, "source: body of class %s", name)
			}
			prog.AddClass(meta)
			pendingClasses = append(pendingClasses, pendingClass{meta: meta, fields: fields})

		default:
			return nil, errors.Errorf("source: unexpected top-level token %q", tok)
		}
	}

	classMembers := map[string][]*vm.FunctionDefinition{}
	for _, pf := range pendingFuncs {
		if pf.mf.IsMember {
			classMembers[pf.mf.ClassName] = append(classMembers[pf.mf.ClassName], pf.mf.FunctionDefinition)
		}
	}

	if err := layoutClasses(prog, pendingClasses, classMembers, classExists); err != nil {
		return nil, err
	}

	for _, pf := range pendingFuncs {
		if err := parseFunctionBody(pf.body, pf.mf, prog, classExists); err != nil {
			return nil, errors.Wrapf(err, "source: parsing body of %s", pf.mf.Signature())
		}
	}

	return prog, nil
}

// prescanClassNames records every "class Name" declaration's name without
// interpreting anything else, so type references anywhere else in the file
// -- including ones appearing earlier in the token stream than the class
// itself -- can resolve against a complete set from the start.
func prescanClassNames(tokens []string, out map[string]bool) {
	for i := 0; i < len(tokens)-1; i++ {
		if tokens[i] == "class" {
			out[tokens[i+1]] = true
		}
	}
}

// parseFuncHeader parses "name(T...) R", with `name` possibly of the form
// "Class::member" (detected the same way
// bytecodeparser.cpp::parse distinguishes member functions: by the
// presence of "::" in the parsed name, not by which keyword introduced
// it). A member function's implicit `this` parameter is prepended here so
// every other component of this module can treat Params uniformly (see
// vm.FunctionDefinition.Signature's own doc comment on this convention).
func parseFuncHeader(c *tokenCursor, classExists func(string) bool) (*vm.FunctionDefinition, error) {
	name, err := c.next()
	if err != nil {
		return nil, errors.Wrap(err, "source: function name")
	}
	if err := c.expect("("); err != nil {
		return nil, errors.Wrapf(err, "source: function %s", name)
	}

	var paramNames []string
	for {
		t, err := c.next()
		if err != nil {
			return nil, errors.Wrapf(err, "source: parameters of %s", name)
		}
		if t == ")" {
			break
		}
		paramNames = append(paramNames, t)
	}

	returnName, err := c.next()
	if err != nil {
		return nil, errors.Wrapf(err, "source: return type of %s", name)
	}

	params := make([]*vm.Type, len(paramNames))
	for i, n := range paramNames {
		t, err := vm.ParseTypeName(n, classExists)
		if err != nil {
			return nil, errors.Wrapf(err, "source: parameter %d of %s", i, name)
		}
		params[i] = t
	}
	returnType, err := vm.ParseTypeName(returnName, classExists)
	if err != nil {
		return nil, errors.Wrapf(err, "source: return type of %s", name)
	}

	fullName := name
	className := ""
	isMember := false
	if idx := strings.Index(name, "::"); idx >= 0 {
		isMember = true
		className = name[:idx]
		fullName = className + "::" + name[idx+2:]
		params = append([]*vm.Type{vm.NewClassType(className)}, params...)
	}

	return &vm.FunctionDefinition{
		Name:       fullName,
		Params:     params,
		ReturnType: returnType,
		IsManaged:  true,
		IsMember:   isMember,
		ClassName:  className,
	}, nil
}

// parseClassBody consumes "{ ( @attr(...) | name Type )* }". Attributes are
// parsed (so malformed ones are still rejected) but discarded -- see
// parseAttribute's own doc comment.
func parseClassBody(c *tokenCursor) ([]classField, error) {
	if err := c.expect("{"); err != nil {
		return nil, err
	}
	var fields []classField
	for {
		t, err := c.next()
		if err != nil {
			return nil, errors.Wrap(err, "source: unterminated class body")
		}
		if t == "}" {
			return fields, nil
		}
		if t == "@" {
			if _, _, err := parseAttribute(c); err != nil {
				return nil, err
			}
			continue
		}
		typeName, err := c.next()
		if err != nil {
			return nil, errors.Wrapf(err, "source: type of field %s", t)
		}
		fields = append(fields, classField{name: t, typeName: typeName})
	}
}

// layoutClasses assigns field offsets and builds the virtual method table
// for every pending class, processing a class only once its parent (if
// any) has already been laid out -- the same "parent fields/slots first"
// rule internal/image's LoadClassBody follows, applied here to however
// many classes a single file declares in whatever order they appear.
func layoutClasses(prog *vm.Program, pending []pendingClass, classMembers map[string][]*vm.FunctionDefinition, classExists func(string) bool) error {
	remaining := pending
	laidOut := map[string]bool{}

	for len(remaining) > 0 {
		var next []pendingClass
		progressed := false

		for _, pc := range remaining {
			if pc.meta.Parent != "" && !laidOut[pc.meta.Parent] {
				next = append(next, pc)
				continue
			}

			if pc.meta.Parent != "" {
				parent, ok := prog.Class(pc.meta.Parent)
				if !ok {
					return errors.Errorf("source: class %s extends unknown class %s", pc.meta.Name, pc.meta.Parent)
				}
				for _, f := range parent.Fields {
					pc.meta.AddField(f.Name, f.Type)
				}
				for _, vmethod := range parent.VTable {
					pc.meta.AppendVirtualMethod(vmethod.Def)
				}
			}

			for _, f := range pc.fields {
				t, err := vm.ParseTypeName(f.typeName, classExists)
				if err != nil {
					return errors.Wrapf(err, "source: field %s on class %s", f.name, pc.meta.Name)
				}
				pc.meta.AddField(f.name, t)
			}
			pc.meta.Layout()

			for _, def := range classMembers[pc.meta.Name] {
				if slot := pc.meta.FindVirtualSlot(def.MemberName()); slot >= 0 {
					pc.meta.OverrideVirtualMethod(slot, def)
				} else {
					pc.meta.AppendVirtualMethod(def)
				}
			}

			laidOut[pc.meta.Name] = true
			progressed = true
		}

		if !progressed {
			return errors.New("source: class hierarchy has a cycle or an undeclared parent")
		}
		remaining = next
	}

	return nil
}
