package image

import (
	"math"

	"github.com/pkg/errors"
	"github.com/svenslaggare/stackjit-go/internal/asm"
	"github.com/svenslaggare/stackjit-go/internal/vm"
)

// decodeInstruction reads one tagged instruction (§4.8 "tag byte selects
// one of ..."). Target is always present regardless of tag: it carries a
// resolved branch index, local/arg slot, or field offset for ops whose
// payload kind is PayloadNone, so it is read unconditionally rather than
// folded into the tag switch below.
func decodeInstruction(c *cursor, classExists func(string) bool) (vm.Instruction, error) {
	var ins vm.Instruction

	op, err := c.byte()
	if err != nil {
		return ins, errors.Wrap(err, "reading opcode")
	}
	ins.Op = vm.OpCode(op)

	tag, err := c.byte()
	if err != nil {
		return ins, errors.Wrap(err, "reading payload tag")
	}
	ins.Payload = vm.PayloadKind(tag)

	target, err := c.i32()
	if err != nil {
		return ins, errors.Wrap(err, "reading target")
	}
	ins.Target = int(target)

	switch tag {
	case tagNone, tagString:
		// Target alone carries everything these need; StringValue is
		// verify-time scratch state with nothing left to read back
		// (vm/instruction.go's own comment on PayloadString).
	case tagInt:
		v, err := c.i32()
		if err != nil {
			return ins, errors.Wrap(err, "reading int payload")
		}
		ins.IntValue = v
	case tagFloat:
		bits, err := c.u32()
		if err != nil {
			return ins, errors.Wrap(err, "reading float payload")
		}
		ins.FloatValue = math.Float32frombits(bits)
	case tagChar:
		b, err := c.byte()
		if err != nil {
			return ins, errors.Wrap(err, "reading char payload")
		}
		ins.CharValue = b
	case tagStringConst:
		s, err := c.str()
		if err != nil {
			return ins, errors.Wrap(err, "reading string constant")
		}
		ins.StringValue = s
	case tagCall:
		ct, err := decodeCallTarget(c, classExists, false)
		if err != nil {
			return ins, errors.Wrap(err, "reading call target")
		}
		ins.Call = ct
	case tagCallInstance:
		ct, err := decodeCallTarget(c, classExists, true)
		if err != nil {
			return ins, errors.Wrap(err, "reading instance call target")
		}
		ins.Call = ct
	case tagNewObject:
		// Unlike tagCall/tagCallInstance, a constructor target has only a
		// class name -- emitNewObject (codegen.go) reads ins.Call.ClassName,
		// never .Name, and doesn't consume ParamTypes at all (this module
		// models object creation as plain allocation, not a constructor
		// call; see internal/source's own note on newobj). ParamTypes is
		// still round-tripped for symmetry with the source-format encoder.
		className, err := c.str()
		if err != nil {
			return ins, errors.Wrap(err, "reading constructor class name")
		}
		numParams, err := c.u64()
		if err != nil {
			return ins, errors.Wrap(err, "reading constructor param count")
		}
		params := make([]*vm.Type, numParams)
		for i := range params {
			typeName, err := c.str()
			if err != nil {
				return ins, errors.Wrapf(err, "reading constructor param %d", i)
			}
			t, err := typeRef(typeName, classExists)
			if err != nil {
				return ins, err
			}
			params[i] = t
		}
		ins.Call = &vm.CallTarget{ClassName: className, ParamTypes: params}
	default:
		return ins, errors.Errorf("unknown instruction tag %d", tag)
	}

	hasValueType, err := c.byte()
	if err != nil {
		return ins, errors.Wrap(err, "reading value-type presence")
	}
	if hasValueType != 0 {
		name, err := c.str()
		if err != nil {
			return ins, errors.Wrap(err, "reading value-type name")
		}
		t, err := typeRef(name, classExists)
		if err != nil {
			return ins, err
		}
		ins.ValueType = t
	}

	return ins, nil
}

func decodeCallTarget(c *cursor, classExists func(string) bool, withClass bool) (*vm.CallTarget, error) {
	name, err := c.str()
	if err != nil {
		return nil, err
	}
	className := ""
	if withClass {
		if className, err = c.str(); err != nil {
			return nil, err
		}
	}
	numParams, err := c.u64()
	if err != nil {
		return nil, err
	}
	params := make([]*vm.Type, numParams)
	for i := range params {
		typeName, err := c.str()
		if err != nil {
			return nil, err
		}
		t, err := typeRef(typeName, classExists)
		if err != nil {
			return nil, err
		}
		params[i] = t
	}
	return &vm.CallTarget{Name: name, ClassName: className, ParamTypes: params}, nil
}

// encodeInstruction appends ins to buf in the shape decodeInstruction reads
// back. The payload tag is the instruction's own vm.PayloadKind, so adding
// a new PayloadKind value only requires a matching case here rather than a
// separate tag-assignment scheme.
func encodeInstruction(buf *asm.Buffer, ins vm.Instruction) {
	buf.WriteByte(byte(ins.Op))
	buf.WriteByte(byte(ins.Payload))
	buf.WriteInt32LE(int32(ins.Target))

	switch ins.Payload {
	case vm.PayloadNone, vm.PayloadString:
	case vm.PayloadInt:
		buf.WriteInt32LE(ins.IntValue)
	case vm.PayloadFloat:
		buf.WriteUint32LE(math.Float32bits(ins.FloatValue))
	case vm.PayloadChar:
		buf.WriteByte(ins.CharValue)
	case vm.PayloadStringConst:
		writeString(buf, ins.StringValue)
	case vm.PayloadCall:
		encodeCallTarget(buf, ins.Call, false)
	case vm.PayloadCallInstance:
		encodeCallTarget(buf, ins.Call, true)
	case vm.PayloadNewObject:
		writeString(buf, ins.Call.ClassName)
		buf.WriteUint64LE(uint64(len(ins.Call.ParamTypes)))
		for _, p := range ins.Call.ParamTypes {
			writeString(buf, p.String())
		}
	}

	if ins.ValueType != nil {
		buf.WriteByte(1)
		writeString(buf, ins.ValueType.String())
	} else {
		buf.WriteByte(0)
	}
}

func encodeCallTarget(buf *asm.Buffer, ct *vm.CallTarget, withClass bool) {
	writeString(buf, ct.Name)
	if withClass {
		writeString(buf, ct.ClassName)
	}
	buf.WriteUint64LE(uint64(len(ct.ParamTypes)))
	for _, p := range ct.ParamTypes {
		writeString(buf, p.String())
	}
}

func writeString(buf *asm.Buffer, s string) {
	buf.WriteUint64LE(uint64(len(s)))
	buf.Write([]byte(s))
}
