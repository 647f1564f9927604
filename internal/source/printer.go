package source

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// Print disassembles prog back into surface syntax (§6), functions and
// classes separated by blank lines, the form `stackasm -d` writes to
// standard output for a loaded binary image. Functions are printed in the
// image's own load order; classes in name order, for reproducible output
// across runs of the same image.
func Print(prog *vm.Program, w io.Writer) error {
	for _, fn := range prog.Functions() {
		if err := printFunction(w, prog, fn); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	classes := prog.Classes()
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := printClass(w, prog, classes[name]); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	return nil
}

func printFunction(w io.Writer, prog *vm.Program, fn *vm.ManagedFunction) error {
	params := fn.Params
	name := fn.Name
	if fn.IsMember && len(params) > 0 {
		params = params[1:]
	}

	paramNames := make([]string, len(params))
	for i, p := range params {
		paramNames[i] = p.String()
	}
	header := fmt.Sprintf("%s(%s) %s", name, strings.Join(paramNames, " "), fn.ReturnType.String())

	if fn.IsExternal {
		_, err := fmt.Fprintf(w, "extern func %s\n", header)
		return err
	}

	keyword := "func"
	if fn.IsMember {
		keyword = "member func"
	}
	if _, err := fmt.Fprintf(w, "%s %s {\n", keyword, header); err != nil {
		return err
	}

	if err := printAttributes(w, fn.Attributes, "\t"); err != nil {
		return err
	}

	if len(fn.Locals) > 0 {
		if _, err := fmt.Fprintf(w, "\t.locals %d\n", len(fn.Locals)); err != nil {
			return err
		}
		for i, t := range fn.Locals {
			if _, err := fmt.Fprintf(w, "\t.local %d %s\n", i, t.String()); err != nil {
				return err
			}
		}
	}

	for _, ins := range fn.Instructions {
		line, err := formatInstruction(prog, ins)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "\t%s\n", line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

func printClass(w io.Writer, prog *vm.Program, class *vm.ClassMetadata) error {
	header := class.Name
	if class.Parent != "" {
		header = fmt.Sprintf("%s extends %s", header, class.Parent)
	}
	if _, err := fmt.Fprintf(w, "class %s {\n", header); err != nil {
		return err
	}

	ownFields := class.Fields
	if class.Parent != "" {
		if parent, ok := prog.Class(class.Parent); ok && len(parent.Fields) <= len(class.Fields) {
			ownFields = class.Fields[len(parent.Fields):]
		}
	}
	for _, f := range ownFields {
		if _, err := fmt.Fprintf(w, "\t%s %s\n", f.Name, f.Type.String()); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}

func printAttributes(w io.Writer, attrs map[string]map[string]string, indent string) error {
	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		kv := attrs[name]
		keys := make([]string, 0, len(kv))
		for k := range kv {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%s", k, kv[k])
		}
		if _, err := fmt.Fprintf(w, "%s@%s(%s)\n", indent, name, strings.Join(pairs, " ")); err != nil {
			return err
		}
	}
	return nil
}

func formatInstruction(prog *vm.Program, ins vm.Instruction) (string, error) {
	info, ok := mnemonicByOp[ins.Op]
	if !ok {
		return "", fmt.Errorf("source: no mnemonic for opcode %d", ins.Op)
	}

	switch info.operand {
	case operandNone:
		return info.mnemonic, nil
	case operandInt:
		return fmt.Sprintf("%s %d", info.mnemonic, ins.IntValue), nil
	case operandFloat:
		return fmt.Sprintf("%s %s", info.mnemonic, strconv.FormatFloat(float64(ins.FloatValue), 'g', -1, 32)), nil
	case operandChar:
		return fmt.Sprintf("%s %d", info.mnemonic, ins.CharValue), nil
	case operandString:
		return fmt.Sprintf("%s %s", info.mnemonic, quoteString(ins.StringValue)), nil
	case operandLocalIndex, operandBranchTarget:
		return fmt.Sprintf("%s %d", info.mnemonic, ins.Target), nil
	case operandType:
		return fmt.Sprintf("%s %s", info.mnemonic, ins.ValueType.String()), nil
	case operandField:
		className, fieldName, ok := resolveFieldRef(prog, ins.Target, ins.ValueType)
		if !ok {
			return "", fmt.Errorf("source: cannot resolve field at offset %d for %s", ins.Target, info.mnemonic)
		}
		return fmt.Sprintf("%s %s::%s", info.mnemonic, className, fieldName), nil
	case operandClassName:
		return fmt.Sprintf("%s %s", info.mnemonic, ins.Call.ClassName), nil
	case operandCall:
		return fmt.Sprintf("%s %s(%s)", info.mnemonic, ins.Call.Name, joinTypeNames(ins.Call.ParamTypes)), nil
	case operandCallInstance:
		return fmt.Sprintf("%s %s::%s(%s)", info.mnemonic, ins.Call.ClassName, ins.Call.Name, joinTypeNames(ins.Call.ParamTypes)), nil
	default:
		return "", fmt.Errorf("source: unhandled operand kind for %s", info.mnemonic)
	}
}

func joinTypeNames(types []*vm.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, " ")
}

// resolveFieldRef recovers a field op's "Class::field" spelling from its
// resolved (Target offset, ValueType) pair by scanning every class in prog
// for a matching field. The instruction itself carries only the resolved
// offset and type -- not the qualified name -- by the time it reaches
// here (vm/instruction.go's own note that PayloadString's StringValue is
// "unused after" verification and so isn't preserved through
// internal/image's wire format either). When two classes happen to share
// an identical field shape at the same offset, this picks the first match
// in name order; the instruction still behaves identically either way,
// since parsing the printed result back resolves the offset through
// whichever class is named, not through the original numeric offset.
func resolveFieldRef(prog *vm.Program, offset int, valueType *vm.Type) (className, fieldName string, ok bool) {
	classes := prog.Classes()
	names := make([]string, 0, len(classes))
	for name := range classes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		class := classes[name]
		for _, f := range class.Fields {
			if f.Offset == offset && f.Type.Equal(valueType) {
				return name, f.Name, true
			}
		}
	}
	return "", "", false
}

func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
