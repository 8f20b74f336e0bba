package classfile

import (
	"fmt"
	"math"
)

const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
	tagModule             = 19
	tagPackage            = 20
)

// maxConstantDepth bounds the nesting of dynamic constants in bootstrap arguments.
const maxConstantDepth = 32

type cpEntry struct {
	tag uint8
	a   uint16 // first index operand, or the reference kind of a method handle
	b   uint16 // second index operand
	num uint64 // raw bits of numeric constants
	str string
}

type constantPool []cpEntry

type bootstrapMethod struct {
	ref  uint16
	args []uint16
}

func readConstantPool(r *reader) (constantPool, error) {
	count := int(r.u2())
	cp := make(constantPool, count)
	for i := 1; i < count && r.ok(); i++ {
		e := &cp[i]
		e.tag = r.u1()
		switch e.tag {
		case tagUtf8:
			s, err := decodeModifiedUTF8(r.bytes(int(r.u2())))
			if err != nil {
				return nil, fmt.Errorf("constant #%d: %w", i, err)
			}
			e.str = s
		case tagInteger, tagFloat:
			e.num = uint64(r.u4())
		case tagLong, tagDouble:
			e.num = r.u8()
			// eight-byte constants take two slots
			i++
		case tagClass, tagString, tagMethodType, tagModule, tagPackage:
			e.a = r.u2()
		case tagFieldref, tagMethodref, tagInterfaceMethodref, tagNameAndType, tagDynamic, tagInvokeDynamic:
			e.a = r.u2()
			e.b = r.u2()
		case tagMethodHandle:
			e.a = uint16(r.u1())
			e.b = r.u2()
		default:
			if r.ok() {
				return nil, fmt.Errorf("%w: unknown tag %d at #%d", ErrBadConstant, e.tag, i)
			}
		}
	}
	if !r.ok() {
		return nil, r.err
	}
	return cp, nil
}

func (cp constantPool) entry(i uint16, tags ...uint8) (*cpEntry, error) {
	if i == 0 || int(i) >= len(cp) {
		return nil, fmt.Errorf("%w: index #%d out of range", ErrBadConstant, i)
	}
	e := &cp[i]
	for _, t := range tags {
		if e.tag == t {
			return e, nil
		}
	}
	return nil, fmt.Errorf("%w: #%d has tag %d, want %v", ErrBadConstant, i, e.tag, tags)
}

func (cp constantPool) utf8(i uint16) (string, error) {
	e, err := cp.entry(i, tagUtf8)
	if err != nil {
		return "", err
	}
	return e.str, nil
}

func (cp constantPool) class(i uint16) (string, error) {
	e, err := cp.entry(i, tagClass)
	if err != nil {
		return "", err
	}
	return cp.utf8(e.a)
}

// optionalClass resolves a class index that may be zero.
func (cp constantPool) optionalClass(i uint16) (string, error) {
	if i == 0 {
		return "", nil
	}
	return cp.class(i)
}

func (cp constantPool) nameAndType(i uint16) (name, desc string, err error) {
	e, err := cp.entry(i, tagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = cp.utf8(e.a); err != nil {
		return "", "", err
	}
	desc, err = cp.utf8(e.b)
	return name, desc, err
}

type memberRef struct {
	owner, name, desc string
	iface             bool
}

func (cp constantPool) member(i uint16, tags ...uint8) (memberRef, error) {
	e, err := cp.entry(i, tags...)
	if err != nil {
		return memberRef{}, err
	}
	owner, err := cp.class(e.a)
	if err != nil {
		return memberRef{}, err
	}
	name, desc, err := cp.nameAndType(e.b)
	if err != nil {
		return memberRef{}, err
	}
	return memberRef{owner: owner, name: name, desc: desc, iface: e.tag == tagInterfaceMethodref}, nil
}

func (cp constantPool) handle(i uint16) (Handle, error) {
	e, err := cp.entry(i, tagMethodHandle)
	if err != nil {
		return Handle{}, err
	}
	kind := HandleKind(e.a)
	var ref memberRef
	switch {
	case kind.IsField():
		ref, err = cp.member(e.b, tagFieldref)
	case kind >= HandleInvokeVirtual && kind <= HandleInvokeInterface:
		ref, err = cp.member(e.b, tagMethodref, tagInterfaceMethodref)
	default:
		err = fmt.Errorf("%w: method handle #%d has kind %d", ErrBadConstant, i, kind)
	}
	if err != nil {
		return Handle{}, err
	}
	return Handle{Kind: kind, Owner: ref.owner, Name: ref.name, Descriptor: ref.desc, IsInterface: ref.iface}, nil
}

// constant resolves a loadable constant. Dynamic constants resolve their
// bootstrap method and arguments recursively.
func (cp constantPool) constant(i uint16, bsms []bootstrapMethod, depth int) (Constant, error) {
	if depth > maxConstantDepth {
		return nil, fmt.Errorf("%w: dynamic constants nested too deeply at #%d", ErrBadConstant, i)
	}
	e, err := cp.entry(i, tagInteger, tagFloat, tagLong, tagDouble, tagString, tagClass, tagMethodType, tagMethodHandle, tagDynamic)
	if err != nil {
		return nil, err
	}
	switch e.tag {
	case tagInteger:
		return IntConst(int32(uint32(e.num))), nil
	case tagFloat:
		return FloatConst(math.Float32frombits(uint32(e.num))), nil
	case tagLong:
		return LongConst(int64(e.num)), nil
	case tagDouble:
		return DoubleConst(math.Float64frombits(e.num)), nil
	case tagString:
		s, err := cp.utf8(e.a)
		return StringConst(s), err
	case tagClass:
		s, err := cp.utf8(e.a)
		return TypeConst{Name: s}, err
	case tagMethodType:
		s, err := cp.utf8(e.a)
		return MethodTypeConst{Descriptor: s}, err
	case tagMethodHandle:
		return cp.handle(i)
	}

	name, desc, err := cp.nameAndType(e.b)
	if err != nil {
		return nil, err
	}
	bsm, args, err := cp.bootstrap(e.a, bsms, depth)
	if err != nil {
		return nil, err
	}
	return DynamicConst{Name: name, Descriptor: desc, Bootstrap: bsm, Args: args}, nil
}

func (cp constantPool) bootstrap(index uint16, bsms []bootstrapMethod, depth int) (Handle, []Constant, error) {
	if int(index) >= len(bsms) {
		return Handle{}, nil, fmt.Errorf("%w: bootstrap method %d out of range", ErrBadConstant, index)
	}
	bsm := bsms[index]
	h, err := cp.handle(bsm.ref)
	if err != nil {
		return Handle{}, nil, err
	}
	args := make([]Constant, 0, len(bsm.args))
	for _, a := range bsm.args {
		c, err := cp.constant(a, bsms, depth+1)
		if err != nil {
			return Handle{}, nil, err
		}
		args = append(args, c)
	}
	return h, args, nil
}
