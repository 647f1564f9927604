package image

import (
	"github.com/pkg/errors"
	"github.com/svenslaggare/stackjit-go/internal/vm"
	"github.com/svenslaggare/stackjit-go/internal/vmlog"
)

var log = vmlog.For(vmlog.Loader)

// rawFuncHeader is one FunctionDef record, captured before any type name is
// resolved against the class table -- resolution happens only once every
// class's name (not yet its body) is known, since a parameter or return
// type may reference a class declared later in the same image.
type rawFuncHeader struct {
	isExternal    bool
	isMember      bool
	className     string
	memberName    string
	qualifiedName string
	paramNames    []string
	returnName    string
	bodyOffset    uint64
}

type rawClassHeader struct {
	name       string
	bodyOffset uint64
}

// Load decodes an image's function and class definitions, resolving every
// signature so call and field-access sites can be checked, without
// materializing any function or class body (§4.8 "Eager vs lazy").
func Load(data []byte) (*Image, error) {
	c := &cursor{data: data}

	numFunctions, err := c.u64()
	if err != nil {
		return nil, errors.Wrap(err, "image: reading function count")
	}
	numClasses, err := c.u64()
	if err != nil {
		return nil, errors.Wrap(err, "image: reading class count")
	}

	funcHeaders := make([]rawFuncHeader, numFunctions)
	for i := range funcHeaders {
		h, err := readFuncHeader(c)
		if err != nil {
			return nil, errors.Wrapf(err, "image: reading function header %d", i)
		}
		funcHeaders[i] = h
	}

	classHeaders := make([]rawClassHeader, numClasses)
	classNames := make(map[string]bool, numClasses)
	for i := range classHeaders {
		name, err := c.str()
		if err != nil {
			return nil, errors.Wrapf(err, "image: reading class name %d", i)
		}
		offset, err := c.u64()
		if err != nil {
			return nil, errors.Wrapf(err, "image: reading class body offset %d", i)
		}
		classHeaders[i] = rawClassHeader{name: name, bodyOffset: offset}
		classNames[name] = true
	}
	classExists := func(name string) bool { return classNames[name] }

	img := &Image{
		data:            data,
		prog:            vm.NewProgram(),
		funcBodyOffset:  map[*vm.ManagedFunction]uint64{},
		classBodyOffset: map[*vm.ClassMetadata]uint64{},
		funcBodyLoaded:  map[*vm.ManagedFunction]bool{},
		classBodyLoaded: map[*vm.ClassMetadata]bool{},
		classMembers:    map[string][]*vm.FunctionDefinition{},
	}

	for i, h := range funcHeaders {
		fn, err := resolveFuncHeader(h, classExists)
		if err != nil {
			return nil, errors.Wrapf(err, "image: resolving function %d", i)
		}
		mf := &vm.ManagedFunction{FunctionDefinition: fn}
		if err := img.prog.AddFunction(mf); err != nil {
			return nil, errors.Wrapf(err, "image: loading function %s", fn.Signature())
		}
		img.funcBodyOffset[mf] = h.bodyOffset
		if fn.IsMember {
			img.classMembers[fn.ClassName] = append(img.classMembers[fn.ClassName], fn)
		}
	}

	for _, h := range classHeaders {
		c := vm.NewClassMetadata(h.name, "")
		img.prog.AddClass(c)
		img.classBodyOffset[c] = h.bodyOffset
	}

	log.WithField("functions", numFunctions).WithField("classes", numClasses).Debug("loaded image definitions")
	return img, nil
}

func readFuncHeader(c *cursor) (rawFuncHeader, error) {
	var h rawFuncHeader

	isExternal, err := c.byte()
	if err != nil {
		return h, err
	}
	h.isExternal = isExternal != 0

	isMember, err := c.byte()
	if err != nil {
		return h, err
	}
	h.isMember = isMember != 0

	if h.isMember {
		if h.className, err = c.str(); err != nil {
			return h, err
		}
		if h.memberName, err = c.str(); err != nil {
			return h, err
		}
	} else {
		if h.qualifiedName, err = c.str(); err != nil {
			return h, err
		}
	}

	numParams, err := c.u64()
	if err != nil {
		return h, err
	}
	h.paramNames = make([]string, numParams)
	for i := range h.paramNames {
		if h.paramNames[i], err = c.str(); err != nil {
			return h, err
		}
	}

	if h.returnName, err = c.str(); err != nil {
		return h, err
	}
	if h.bodyOffset, err = c.u64(); err != nil {
		return h, err
	}
	return h, nil
}

func resolveFuncHeader(h rawFuncHeader, classExists func(string) bool) (*vm.FunctionDefinition, error) {
	params := make([]*vm.Type, len(h.paramNames))
	for i, name := range h.paramNames {
		t, err := typeRef(name, classExists)
		if err != nil {
			return nil, err
		}
		params[i] = t
	}
	returnType, err := typeRef(h.returnName, classExists)
	if err != nil {
		return nil, err
	}

	name := h.qualifiedName
	className := ""
	if h.isMember {
		name = h.className + "::" + h.memberName
		className = h.className
		// The writer omits the implicit `this`; re-insert it first.
		params = append([]*vm.Type{vm.NewClassType(h.className)}, params...)
	}

	return &vm.FunctionDefinition{
		Name:       name,
		Params:     params,
		ReturnType: returnType,
		IsManaged:  !h.isExternal,
		IsMember:   h.isMember,
		ClassName:  className,
		IsExternal: h.isExternal,
	}, nil
}
