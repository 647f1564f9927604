package vm

import (
	"fmt"
	"strings"
)

// FunctionDefinition is the signature-bearing, process-lifetime record
// created when an image's definitions are loaded (§3 "Lifecycles"). Its
// entry point is nil until the JIT controller (C7) compiles the owning
// ManagedFunction for the first time.
type FunctionDefinition struct {
	Name       string // qualified as "Class::member" for member functions
	Params     []*Type
	ReturnType *Type

	IsManaged  bool
	IsMember   bool
	ClassName  string // owning class, "" if not a member
	IsExternal bool   // native runtime function, no VM body

	// Attributes holds the surface syntax's @attr(k=v) annotations, keyed
	// by attribute name then key. Populated during load; no compiler or VM
	// code reads them.
	Attributes map[string]map[string]string

	// EntryPoint is the native address of the compiled body, or 0 before
	// the first call. It is set exactly once, by the JIT controller.
	EntryPoint uintptr
}

// Signature returns the canonical "name(T1 T2 ...)" string that uniquely
// identifies this definition within a loaded image set. For member
// functions the implicit `this` parameter (always inserted first in
// Params) is excluded.
func (f *FunctionDefinition) Signature() string {
	params := f.Params
	if f.IsMember && len(params) > 0 {
		params = params[1:]
	}
	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.String()
	}
	return fmt.Sprintf("%s(%s)", f.Name, strings.Join(names, " "))
}

// MemberName returns the unqualified member name for "Class::member", or
// the whole name if this is not a member function.
func (f *FunctionDefinition) MemberName() string {
	if idx := strings.Index(f.Name, "::"); idx >= 0 {
		return f.Name[idx+2:]
	}
	return f.Name
}

// IsCompiled reports whether this is a compiled, callable function.
func (f *FunctionDefinition) IsCompiled() bool {
	return f.EntryPoint != 0
}

// ManagedFunction is a FunctionDefinition plus its VM body: the
// instruction list, local variable types, the (growing, then immutable)
// emitted byte buffer, and the verifier-computed max operand stack depth.
type ManagedFunction struct {
	*FunctionDefinition

	Instructions []Instruction
	Locals       []*Type

	// GeneratedCode holds the native bytes emitted by C6 for this function.
	// It grows monotonically during compilation, is patched in place for
	// branch/call resolution, and becomes immutable once the containing
	// page is flipped executable.
	GeneratedCode []byte

	// MaxStackDepth is the maximum operand-stack depth observed across all
	// instruction boundaries, recorded by the engine from the compiler's
	// sizing pass. The compiler sizes the operand-stack portion of the
	// frame (§4.5) from that pass directly, not from this field.
	MaxStackDepth int
}

// NumArgs returns the number of formal parameters, including an implicit
// `this` for member functions.
func (m *ManagedFunction) NumArgs() int {
	return len(m.Params)
}

// NumLocals returns the declared local-variable count (".locals N").
func (m *ManagedFunction) NumLocals() int {
	return len(m.Locals)
}
