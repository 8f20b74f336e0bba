// Package classfile reads the JVM class-file format and reports the
// structural elements that can name other types as a stream of events.
package classfile

import (
	"errors"
	"fmt"
	"io"
)

const magic = 0xCAFEBABE

// Format errors returned by Parse, wrapped with the location of the defect.
var (
	ErrBadMagic     = errors.New("classfile: bad magic number")
	ErrTruncated    = errors.New("classfile: truncated class file")
	ErrBadConstant  = errors.New("classfile: invalid constant pool entry")
	ErrBadAttribute = errors.New("classfile: malformed attribute")
	ErrBadOpcode    = errors.New("classfile: invalid opcode")
)

// VisitFunc receives parse events. A non-nil error stops the parse and is
// returned from Parse unchanged.
type VisitFunc func(Event) error

// Parse reads a whole class file from r and reports its events to visit.
func Parse(r io.Reader, visit VisitFunc) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read class file: %w", err)
	}
	return ParseBytes(b, visit)
}

// ParseBytes reports the events of the class file held in b. Events are
// emitted in structural order: the class declaration, class annotations,
// then each field and each method with everything attached to it.
func ParseBytes(b []byte, visit VisitFunc) error {
	p := &parser{visit: visit}
	c, err := p.readClass(newReader(b))
	if err != nil {
		return err
	}
	p.emitClass(c)
	return p.err
}

type attribute struct {
	name string
	data []byte
}

type member struct {
	name  string
	desc  string
	attrs []attribute
}

type class struct {
	name       string
	super      string
	interfaces []string
	fields     []member
	methods    []member
	attrs      []attribute
}

type parser struct {
	cp    constantPool
	bsms  []bootstrapMethod
	visit VisitFunc
	err   error
}

// fail records the first error; everything after it becomes a no-op.
func (p *parser) fail(err error) {
	if p.err == nil && err != nil {
		p.err = err
	}
}

func (p *parser) emit(ev Event) {
	if p.err != nil {
		return
	}
	p.err = p.visit(ev)
}

// done reports whether p or r has failed, moving r's error onto p.
func (p *parser) done(r *reader) bool {
	if !r.ok() {
		p.fail(r.err)
	}
	return p.err != nil
}

func (p *parser) readClass(r *reader) (*class, error) {
	if m := r.u4(); m != magic {
		if !r.ok() {
			return nil, r.err
		}
		return nil, fmt.Errorf("%w: 0x%08X", ErrBadMagic, m)
	}
	r.skip(4) // minor, major

	cp, err := readConstantPool(r)
	if err != nil {
		return nil, err
	}
	p.cp = cp

	r.skip(2) // access flags
	c := &class{}
	thisIndex, superIndex := r.u2(), r.u2()
	ifaces := make([]uint16, r.u2())
	for i := range ifaces {
		ifaces[i] = r.u2()
	}
	c.fields = p.readMembers(r)
	c.methods = p.readMembers(r)
	c.attrs = p.readAttributes(r)
	if p.done(r) {
		return nil, p.err
	}

	if c.name, err = cp.class(thisIndex); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	if c.super, err = cp.optionalClass(superIndex); err != nil {
		return nil, fmt.Errorf("super_class: %w", err)
	}
	for _, idx := range ifaces {
		name, err := cp.class(idx)
		if err != nil {
			return nil, fmt.Errorf("interfaces: %w", err)
		}
		c.interfaces = append(c.interfaces, name)
	}

	if a, ok := findAttribute(c.attrs, "BootstrapMethods"); ok {
		if p.bsms, err = readBootstrapMethods(a.data); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (p *parser) readMembers(r *reader) []member {
	n := int(r.u2())
	members := make([]member, 0, n)
	for i := 0; i < n && !p.done(r); i++ {
		r.skip(2) // access flags
		nameIndex, descIndex := r.u2(), r.u2()
		attrs := p.readAttributes(r)
		if p.done(r) {
			break
		}
		m := member{attrs: attrs}
		var err error
		if m.name, err = p.cp.utf8(nameIndex); err != nil {
			p.fail(err)
			break
		}
		if m.desc, err = p.cp.utf8(descIndex); err != nil {
			p.fail(err)
			break
		}
		members = append(members, m)
	}
	return members
}

func (p *parser) readAttributes(r *reader) []attribute {
	n := int(r.u2())
	attrs := make([]attribute, 0, n)
	for i := 0; i < n && !p.done(r); i++ {
		nameIndex := r.u2()
		data := r.bytes(int(r.u4()))
		if p.done(r) {
			break
		}
		name, err := p.cp.utf8(nameIndex)
		if err != nil {
			p.fail(fmt.Errorf("attribute name: %w", err))
			break
		}
		attrs = append(attrs, attribute{name: name, data: data})
	}
	return attrs
}

func findAttribute(attrs []attribute, name string) (attribute, bool) {
	for _, a := range attrs {
		if a.name == name {
			return a, true
		}
	}
	return attribute{}, false
}

func readBootstrapMethods(data []byte) ([]bootstrapMethod, error) {
	r := newReader(data)
	bsms := make([]bootstrapMethod, r.u2())
	for i := range bsms {
		bsms[i].ref = r.u2()
		bsms[i].args = make([]uint16, r.u2())
		for j := range bsms[i].args {
			bsms[i].args[j] = r.u2()
		}
		if !r.ok() {
			return nil, fmt.Errorf("BootstrapMethods: %w", r.err)
		}
	}
	return bsms, nil
}

// signature returns the Signature attribute's value, or "" when absent.
func (p *parser) signature(attrs []attribute) string {
	a, ok := findAttribute(attrs, "Signature")
	if !ok {
		return ""
	}
	r := newReader(a.data)
	idx := r.u2()
	if p.done(r) {
		return ""
	}
	s, err := p.cp.utf8(idx)
	p.fail(err)
	return s
}

func (p *parser) emitClass(c *class) {
	p.emit(ClassDeclared{
		Name:       c.name,
		Signature:  p.signature(c.attrs),
		SuperName:  c.super,
		Interfaces: c.interfaces,
	})
	p.annotationAttributes(c.attrs, TargetClass)
	for _, f := range c.fields {
		p.emitField(f)
	}
	for _, m := range c.methods {
		p.emitMethod(m)
	}
}

func (p *parser) emitField(f member) {
	ev := FieldDeclared{Name: f.name, Descriptor: f.desc, Signature: p.signature(f.attrs)}
	if a, ok := findAttribute(f.attrs, "ConstantValue"); ok {
		r := newReader(a.data)
		idx := r.u2()
		if p.done(r) {
			return
		}
		v, err := p.cp.constant(idx, p.bsms, 0)
		if err != nil {
			p.fail(fmt.Errorf("field %s: ConstantValue: %w", f.name, err))
			return
		}
		ev.Value = v
	}
	p.emit(ev)
	p.annotationAttributes(f.attrs, TargetField)
}

func (p *parser) emitMethod(m member) {
	ev := MethodDeclared{Name: m.name, Descriptor: m.desc, Signature: p.signature(m.attrs)}
	if a, ok := findAttribute(m.attrs, "Exceptions"); ok {
		r := newReader(a.data)
		n := int(r.u2())
		for i := 0; i < n && !p.done(r); i++ {
			name, err := p.cp.class(r.u2())
			if err != nil {
				p.fail(fmt.Errorf("method %s%s: Exceptions: %w", m.name, m.desc, err))
				return
			}
			ev.Exceptions = append(ev.Exceptions, name)
		}
	}
	p.emit(ev)

	for _, a := range m.attrs {
		switch a.name {
		case "AnnotationDefault":
			r := newReader(a.data)
			p.elementValue(r, annotationContext{target: TargetMethod})
			p.done(r)
		case "RuntimeVisibleParameterAnnotations":
			p.parameterAnnotations(a.data, true)
		case "RuntimeInvisibleParameterAnnotations":
			p.parameterAnnotations(a.data, false)
		}
	}
	p.annotationAttributes(m.attrs, TargetMethod)

	if a, ok := findAttribute(m.attrs, "Code"); ok {
		p.code(m, a.data)
	}
}
