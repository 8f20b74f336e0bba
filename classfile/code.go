package classfile

import "fmt"

type localVarKey struct {
	start, index uint16
}

// code reports a Code attribute: exception handlers, instructions, code
// type annotations and local variables.
func (p *parser) code(m member, data []byte) {
	r := newReader(data)
	r.skip(4) // max_stack, max_locals
	insns := r.bytes(int(r.u4()))

	handlers := int(r.u2())
	for i := 0; i < handlers && !p.done(r); i++ {
		start, end, handler, typeIndex := r.u2(), r.u2(), r.u2(), r.u2()
		if p.done(r) {
			break
		}
		typ, err := p.cp.optionalClass(typeIndex)
		if err != nil {
			p.fail(fmt.Errorf("method %s%s: exception table: %w", m.name, m.desc, err))
			break
		}
		p.emit(TryCatchBlock{Start: int(start), End: int(end), Handler: int(handler), Type: typ})
	}

	attrs := p.readAttributes(r)
	if p.done(r) {
		return
	}

	if err := p.instructions(insns); err != nil {
		p.fail(fmt.Errorf("method %s%s: %w", m.name, m.desc, err))
		return
	}

	p.annotationAttributes(attrs, TargetCode)
	p.localVariables(attrs)
}

func (p *parser) localVariables(attrs []attribute) {
	signatures := make(map[localVarKey]string)
	for _, a := range attrs {
		if a.name != "LocalVariableTypeTable" {
			continue
		}
		r := newReader(a.data)
		n := int(r.u2())
		for i := 0; i < n && !p.done(r); i++ {
			start := r.u2()
			r.skip(4) // length, name
			sigIndex, index := r.u2(), r.u2()
			sig, err := p.cp.utf8(sigIndex)
			if !p.done(r) && err == nil {
				signatures[localVarKey{start, index}] = sig
			}
			p.fail(err)
		}
	}

	for _, a := range attrs {
		if a.name != "LocalVariableTable" {
			continue
		}
		r := newReader(a.data)
		n := int(r.u2())
		for i := 0; i < n && !p.done(r); i++ {
			start, length, nameIndex, descIndex, index := r.u2(), r.u2(), r.u2(), r.u2(), r.u2()
			if p.done(r) {
				break
			}
			name, err := p.cp.utf8(nameIndex)
			p.fail(err)
			desc, err := p.cp.utf8(descIndex)
			p.fail(err)
			p.emit(LocalVariable{
				Name:       name,
				Descriptor: desc,
				Signature:  signatures[localVarKey{start, index}],
				Start:      int(start),
				Length:     int(length),
				Index:      int(index),
			})
		}
	}
}

// instructions walks the bytecode and reports every instruction with a
// constant-pool operand. Returned errors are format errors; visitor errors
// are recorded on p.
func (p *parser) instructions(code []byte) error {
	r := newReader(code)
	for r.remaining() > 0 && p.err == nil {
		offset := r.off
		op := r.u1()
		switch Opcode(op) {
		case Ldc:
			index := uint16(r.u1())
			if r.ok() {
				p.ldc(offset, Ldc, index)
			}
		case LdcW, Ldc2W:
			index := r.u2()
			if r.ok() {
				p.ldc(offset, Opcode(op), index)
			}
		case GetStatic, PutStatic, GetField, PutField:
			index := r.u2()
			if !r.ok() {
				break
			}
			ref, err := p.cp.member(index, tagFieldref)
			if err != nil {
				return err
			}
			p.emit(FieldInsn{Offset: offset, Op: Opcode(op), Owner: ref.owner, Name: ref.name, Descriptor: ref.desc})
		case InvokeVirtual, InvokeSpecial, InvokeStatic, InvokeInterface:
			index := r.u2()
			if Opcode(op) == InvokeInterface {
				r.skip(2) // count, 0
			}
			if !r.ok() {
				break
			}
			ref, err := p.cp.member(index, tagMethodref, tagInterfaceMethodref)
			if err != nil {
				return err
			}
			p.emit(MethodInsn{Offset: offset, Op: Opcode(op), Owner: ref.owner, Name: ref.name, Descriptor: ref.desc, IsInterface: ref.iface})
		case InvokeDynamic:
			index := r.u2()
			r.skip(2)
			if !r.ok() {
				break
			}
			ev, err := p.invokeDynamic(index)
			if err != nil {
				return err
			}
			ev.Offset = offset
			p.emit(ev)
		case New, ANewArray, CheckCast, InstanceOf:
			index := r.u2()
			if !r.ok() {
				break
			}
			typ, err := p.cp.class(index)
			if err != nil {
				return err
			}
			p.emit(TypeInsn{Offset: offset, Op: Opcode(op), Type: typ})
		case MultiANewArray:
			index, dims := r.u2(), int(r.u1())
			if !r.ok() {
				break
			}
			desc, err := p.cp.class(index)
			if err != nil {
				return err
			}
			p.emit(MultiANewArrayInsn{Offset: offset, Descriptor: desc, Dims: dims})
		default:
			if err := skipOperands(r, op); err != nil {
				return fmt.Errorf("at offset %d: %w", offset, err)
			}
		}
		if !r.ok() {
			return fmt.Errorf("instruction at offset %d: %w", offset, r.err)
		}
	}
	return nil
}

func (p *parser) ldc(offset int, op Opcode, index uint16) {
	v, err := p.cp.constant(index, p.bsms, 0)
	if err != nil {
		p.fail(fmt.Errorf("%s at offset %d: %w", op, offset, err))
		return
	}
	p.emit(LdcInsn{Offset: offset, Op: op, Value: v})
}

func (p *parser) invokeDynamic(index uint16) (InvokeDynamicInsn, error) {
	e, err := p.cp.entry(index, tagInvokeDynamic)
	if err != nil {
		return InvokeDynamicInsn{}, err
	}
	name, desc, err := p.cp.nameAndType(e.b)
	if err != nil {
		return InvokeDynamicInsn{}, err
	}
	bsm, args, err := p.cp.bootstrap(e.a, p.bsms, 0)
	if err != nil {
		return InvokeDynamicInsn{}, err
	}
	return InvokeDynamicInsn{Name: name, Descriptor: desc, Bootstrap: bsm, Args: args}, nil
}

// skipOperands advances past the operands of an instruction that has no
// constant-pool reference.
func skipOperands(r *reader, op uint8) error {
	switch op {
	case opTableSwitch:
		r.skip(padding(r.off))
		r.skip(4) // default
		low, high := int32(r.u4()), int32(r.u4())
		if high < low {
			return fmt.Errorf("%w: tableswitch low %d > high %d", ErrBadOpcode, low, high)
		}
		r.skip(4 * (int(high) - int(low) + 1))
	case opLookupSwitch:
		r.skip(padding(r.off))
		r.skip(4) // default
		pairs := int32(r.u4())
		if pairs < 0 {
			return fmt.Errorf("%w: lookupswitch with %d pairs", ErrBadOpcode, pairs)
		}
		r.skip(8 * int(pairs))
	case opWide:
		switch next := r.u1(); {
		case next == opIinc:
			r.skip(4)
		case isWideable(next):
			r.skip(2)
		default:
			if r.ok() {
				return fmt.Errorf("%w: wide 0x%02x", ErrBadOpcode, next)
			}
		}
	default:
		n, ok := operandSize(op)
		if !ok {
			return fmt.Errorf("%w: 0x%02x", ErrBadOpcode, op)
		}
		r.skip(n)
	}
	return nil
}

// padding returns the bytes needed to align off (relative to the start of
// the code array) to a four-byte boundary.
func padding(off int) int {
	return (4 - off%4) % 4
}
