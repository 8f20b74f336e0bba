// Package classfiletest assembles class files from a declarative description
// so that tests can exercise the parser without a Java toolchain.
package classfiletest

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Class describes a class file. Super defaults to java/lang/Object.
type Class struct {
	Name                 string
	Super                string
	Interfaces           []string
	Signature            string
	Annotations          []Annotation
	InvisibleAnnotations []Annotation
	TypeAnnotations      []TypeAnnotation
	Fields               []Field
	Methods              []Method
}

// Field describes a public field. Value becomes its ConstantValue attribute.
type Field struct {
	Name            string
	Descriptor      string
	Signature       string
	Value           any
	Annotations     []Annotation
	TypeAnnotations []TypeAnnotation
}

// Method describes a public method. Default becomes its AnnotationDefault
// attribute; a nil Code omits the Code attribute.
type Method struct {
	Name                 string
	Descriptor           string
	Signature            string
	Exceptions           []string
	Annotations          []Annotation
	TypeAnnotations      []TypeAnnotation
	ParameterAnnotations [][]Annotation
	Default              Value
	Code                 *Code
}

// Code is a Code attribute. Local variables with a Signature also go to the
// LocalVariableTypeTable; type annotations are written as visible.
type Code struct {
	Insns           []Insn
	TryCatch        []TryCatch
	LocalVars       []LocalVar
	TypeAnnotations []TypeAnnotation
}

// TryCatch is an exception-table entry; an empty Type is a catch-all.
type TryCatch struct {
	Start, End, Handler int
	Type                string
}

// LocalVar is a LocalVariableTable entry.
type LocalVar struct {
	Name       string
	Descriptor string
	Signature  string
	Start      int
	Length     int
	Index      int
}

// Annotation uses a field descriptor for Type, e.g. Lcom/acme/Marker;.
type Annotation struct {
	Type     string
	Elements []Element
}

// Element is a named annotation element.
type Element struct {
	Name  string
	Value Value
}

// TypeAnnotation carries raw target_info and type_path bytes.
type TypeAnnotation struct {
	Target byte
	Info   []byte
	Path   []byte
	Annotation
}

// Value is an annotation element value.
type Value interface{ isValue() }

type (
	Enum         struct{ Type, Name string }
	ClassLiteral string
	Nested       Annotation
	Array        []Value
	Int          int32
	Str          string
)

func (Enum) isValue()         {}
func (ClassLiteral) isValue() {}
func (Nested) isValue()       {}
func (Array) isValue()        {}
func (Int) isValue()          {}
func (Str) isValue()          {}

// Insn is a bytecode instruction.
type Insn interface{ isInsn() }

type (
	// Raw is emitted verbatim.
	Raw            []byte
	TypeInsn       struct{ Op byte; Type string }
	FieldInsn      struct{ Op byte; Owner, Name, Descriptor string }
	MethodInsn     struct{ Op byte; Owner, Name, Descriptor string; Interface bool }
	InvokeDynamic  struct{ Name, Descriptor string; Bootstrap Handle; Args []any }
	Ldc            struct{ Value any }
	MultiANewArray struct{ Descriptor string; Dims int }
)

func (Raw) isInsn()            {}
func (TypeInsn) isInsn()       {}
func (FieldInsn) isInsn()      {}
func (MethodInsn) isInsn()     {}
func (InvokeDynamic) isInsn()  {}
func (Ldc) isInsn()            {}
func (MultiANewArray) isInsn() {}

// Loadable constants accepted by Ldc, bootstrap arguments and Field.Value,
// besides int32, float32, int64, float64 and string.
type (
	Type       string
	MethodType string
	Handle     struct {
		Kind       byte
		Owner      string
		Name       string
		Descriptor string
		Interface  bool
	}
	Dynamic struct {
		Name, Descriptor string
		Bootstrap        Handle
		Args             []any
	}
)

// Opcodes used by tests.
const (
	OpNop            = 0x00
	OpAconstNull     = 0x01
	OpIload          = 0x15
	OpAload0         = 0x2a
	OpPop            = 0x57
	OpIinc           = 0x84
	OpGoto           = 0xa7
	OpTableSwitch    = 0xaa
	OpLookupSwitch   = 0xab
	OpReturn         = 0xb1
	OpAreturn        = 0xb0
	OpGetStatic      = 0xb2
	OpPutField       = 0xb5
	OpInvokeVirtual  = 0xb6
	OpInvokeSpecial  = 0xb7
	OpInvokeStatic   = 0xb8
	OpInvokeIface    = 0xb9
	OpNew            = 0xbb
	OpANewArray      = 0xbd
	OpAthrow         = 0xbf
	OpCheckCast      = 0xc0
	OpInstanceOf     = 0xc1
	OpWide           = 0xc4
	OpMultiANewArray = 0xc5
)

// Build assembles c into class-file bytes (major version 61).
func Build(c Class) []byte {
	b := &builder{pool: newPool()}
	return b.class(c)
}

type builder struct {
	pool       *pool
	bootstraps [][]byte
	bsmIndex   map[string]uint16
}

func (b *builder) class(c Class) []byte {
	super := c.Super
	if super == "" {
		super = "java/lang/Object"
	}

	var body []byte
	body = u2(body, 0x0021) // public super
	body = u2(body, b.pool.class(c.Name))
	body = u2(body, b.pool.class(super))
	body = u2(body, uint16(len(c.Interfaces)))
	for _, i := range c.Interfaces {
		body = u2(body, b.pool.class(i))
	}

	body = u2(body, uint16(len(c.Fields)))
	for _, f := range c.Fields {
		body = append(body, b.field(f)...)
	}
	body = u2(body, uint16(len(c.Methods)))
	for _, m := range c.Methods {
		body = append(body, b.method(m)...)
	}

	var attrs [][]byte
	if c.Signature != "" {
		attrs = append(attrs, b.signature(c.Signature))
	}
	attrs = append(attrs, b.annotationAttrs(c.Annotations, c.InvisibleAnnotations, c.TypeAnnotations)...)
	if len(b.bootstraps) > 0 {
		var data []byte
		data = u2(data, uint16(len(b.bootstraps)))
		for _, bsm := range b.bootstraps {
			data = append(data, bsm...)
		}
		attrs = append(attrs, b.attr("BootstrapMethods", data))
	}
	body = append(body, b.attrList(attrs)...)

	var out []byte
	out = u4(out, 0xCAFEBABE)
	out = u2(out, 0)
	out = u2(out, 61)
	out = append(out, b.pool.bytes()...)
	return append(out, body...)
}

func (b *builder) field(f Field) []byte {
	var out []byte
	out = u2(out, 0x0001)
	out = u2(out, b.pool.utf8(f.Name))
	out = u2(out, b.pool.utf8(f.Descriptor))

	var attrs [][]byte
	if f.Signature != "" {
		attrs = append(attrs, b.signature(f.Signature))
	}
	if f.Value != nil {
		attrs = append(attrs, b.attr("ConstantValue", u2(nil, b.constant(f.Value))))
	}
	attrs = append(attrs, b.annotationAttrs(f.Annotations, nil, f.TypeAnnotations)...)
	return append(out, b.attrList(attrs)...)
}

func (b *builder) method(m Method) []byte {
	var out []byte
	out = u2(out, 0x0001)
	out = u2(out, b.pool.utf8(m.Name))
	out = u2(out, b.pool.utf8(m.Descriptor))

	var attrs [][]byte
	if m.Signature != "" {
		attrs = append(attrs, b.signature(m.Signature))
	}
	if len(m.Exceptions) > 0 {
		data := u2(nil, uint16(len(m.Exceptions)))
		for _, e := range m.Exceptions {
			data = u2(data, b.pool.class(e))
		}
		attrs = append(attrs, b.attr("Exceptions", data))
	}
	if m.Default != nil {
		attrs = append(attrs, b.attr("AnnotationDefault", b.elementValue(m.Default)))
	}
	attrs = append(attrs, b.annotationAttrs(m.Annotations, nil, m.TypeAnnotations)...)
	if len(m.ParameterAnnotations) > 0 {
		data := []byte{byte(len(m.ParameterAnnotations))}
		for _, anns := range m.ParameterAnnotations {
			data = u2(data, uint16(len(anns)))
			for _, a := range anns {
				data = append(data, b.annotation(a)...)
			}
		}
		attrs = append(attrs, b.attr("RuntimeVisibleParameterAnnotations", data))
	}
	if m.Code != nil {
		attrs = append(attrs, b.code(*m.Code))
	}
	return append(out, b.attrList(attrs)...)
}

func (b *builder) code(c Code) []byte {
	var insns []byte
	for _, in := range c.Insns {
		insns = append(insns, b.insn(in)...)
	}

	var data []byte
	data = u2(data, 8) // max_stack
	data = u2(data, 8) // max_locals
	data = u4(data, uint32(len(insns)))
	data = append(data, insns...)
	data = u2(data, uint16(len(c.TryCatch)))
	for _, tc := range c.TryCatch {
		data = u2(data, uint16(tc.Start))
		data = u2(data, uint16(tc.End))
		data = u2(data, uint16(tc.Handler))
		if tc.Type == "" {
			data = u2(data, 0)
		} else {
			data = u2(data, b.pool.class(tc.Type))
		}
	}

	var attrs [][]byte
	if len(c.LocalVars) > 0 {
		lvt := u2(nil, uint16(len(c.LocalVars)))
		var lvtt []byte
		typed := 0
		for _, v := range c.LocalVars {
			lvt = u2(lvt, uint16(v.Start))
			lvt = u2(lvt, uint16(v.Length))
			lvt = u2(lvt, b.pool.utf8(v.Name))
			lvt = u2(lvt, b.pool.utf8(v.Descriptor))
			lvt = u2(lvt, uint16(v.Index))
			if v.Signature != "" {
				typed++
				lvtt = u2(lvtt, uint16(v.Start))
				lvtt = u2(lvtt, uint16(v.Length))
				lvtt = u2(lvtt, b.pool.utf8(v.Name))
				lvtt = u2(lvtt, b.pool.utf8(v.Signature))
				lvtt = u2(lvtt, uint16(v.Index))
			}
		}
		attrs = append(attrs, b.attr("LocalVariableTable", lvt))
		if typed > 0 {
			attrs = append(attrs, b.attr("LocalVariableTypeTable", append(u2(nil, uint16(typed)), lvtt...)))
		}
	}
	attrs = append(attrs, b.annotationAttrs(nil, nil, c.TypeAnnotations)...)
	data = append(data, b.attrList(attrs)...)
	return b.attr("Code", data)
}

func (b *builder) insn(in Insn) []byte {
	switch in := in.(type) {
	case Raw:
		return in
	case TypeInsn:
		return u2([]byte{in.Op}, b.pool.class(in.Type))
	case FieldInsn:
		return u2([]byte{in.Op}, b.pool.member(9, in.Owner, in.Name, in.Descriptor))
	case MethodInsn:
		tag := byte(10)
		if in.Interface {
			tag = 11
		}
		out := u2([]byte{in.Op}, b.pool.member(tag, in.Owner, in.Name, in.Descriptor))
		if in.Op == OpInvokeIface {
			out = append(out, 1, 0)
		}
		return out
	case InvokeDynamic:
		bsm := b.bootstrap(in.Bootstrap, in.Args)
		idx := b.pool.add(fmt.Sprintf("indy:%d:%s:%s", bsm, in.Name, in.Descriptor),
			u2(u2([]byte{18}, bsm), b.pool.nameAndType(in.Name, in.Descriptor)), false)
		return append(u2([]byte{0xba}, idx), 0, 0)
	case Ldc:
		idx := b.constant(in.Value)
		switch in.Value.(type) {
		case int64, float64:
			return u2([]byte{0x14}, idx)
		}
		if idx < 256 {
			return []byte{0x12, byte(idx)}
		}
		return u2([]byte{0x13}, idx)
	case MultiANewArray:
		return append(u2([]byte{OpMultiANewArray}, b.pool.class(in.Descriptor)), byte(in.Dims))
	}
	panic(fmt.Sprintf("classfiletest: unknown instruction %T", in))
}

func (b *builder) constant(v any) uint16 {
	p := b.pool
	switch v := v.(type) {
	case int32:
		return p.add(fmt.Sprintf("I:%d", v), u4([]byte{3}, uint32(v)), false)
	case int:
		return b.constant(int32(v))
	case float32:
		return p.add(fmt.Sprintf("F:%v", v), u4([]byte{4}, math.Float32bits(v)), false)
	case int64:
		return p.add(fmt.Sprintf("J:%d", v), u8([]byte{5}, uint64(v)), true)
	case float64:
		return p.add(fmt.Sprintf("D:%v", v), u8([]byte{6}, math.Float64bits(v)), true)
	case string:
		return p.add("S:"+v, u2([]byte{8}, p.utf8(v)), false)
	case Type:
		return p.class(string(v))
	case MethodType:
		return p.add("MT:"+string(v), u2([]byte{16}, p.utf8(string(v))), false)
	case Handle:
		return b.handle(v)
	case Dynamic:
		bsm := b.bootstrap(v.Bootstrap, v.Args)
		return p.add(fmt.Sprintf("condy:%d:%s:%s", bsm, v.Name, v.Descriptor),
			u2(u2([]byte{17}, bsm), p.nameAndType(v.Name, v.Descriptor)), false)
	}
	panic(fmt.Sprintf("classfiletest: unsupported constant %T", v))
}

func (b *builder) handle(h Handle) uint16 {
	tag := byte(10)
	switch {
	case h.Kind <= 4:
		tag = 9
	case h.Interface:
		tag = 11
	}
	ref := b.pool.member(tag, h.Owner, h.Name, h.Descriptor)
	return b.pool.add(fmt.Sprintf("MH:%d:%d", h.Kind, ref), u2([]byte{15, h.Kind}, ref), false)
}

func (b *builder) bootstrap(h Handle, args []any) uint16 {
	if b.bsmIndex == nil {
		b.bsmIndex = make(map[string]uint16)
	}
	data := u2(nil, b.handle(h))
	data = u2(data, uint16(len(args)))
	for _, a := range args {
		data = u2(data, b.constant(a))
	}
	key := string(data)
	if idx, ok := b.bsmIndex[key]; ok {
		return idx
	}
	idx := uint16(len(b.bootstraps))
	b.bootstraps = append(b.bootstraps, data)
	b.bsmIndex[key] = idx
	return idx
}

func (b *builder) signature(sig string) []byte {
	return b.attr("Signature", u2(nil, b.pool.utf8(sig)))
}

func (b *builder) annotationAttrs(visible, invisible []Annotation, typed []TypeAnnotation) [][]byte {
	var attrs [][]byte
	list := func(name string, anns []Annotation) {
		if len(anns) == 0 {
			return
		}
		data := u2(nil, uint16(len(anns)))
		for _, a := range anns {
			data = append(data, b.annotation(a)...)
		}
		attrs = append(attrs, b.attr(name, data))
	}
	list("RuntimeVisibleAnnotations", visible)
	list("RuntimeInvisibleAnnotations", invisible)
	if len(typed) > 0 {
		data := u2(nil, uint16(len(typed)))
		for _, t := range typed {
			data = append(data, t.Target)
			data = append(data, t.Info...)
			data = append(data, byte(len(t.Path)/2))
			data = append(data, t.Path...)
			data = append(data, b.annotation(t.Annotation)...)
		}
		attrs = append(attrs, b.attr("RuntimeVisibleTypeAnnotations", data))
	}
	return attrs
}

func (b *builder) annotation(a Annotation) []byte {
	out := u2(nil, b.pool.utf8(a.Type))
	out = u2(out, uint16(len(a.Elements)))
	for _, e := range a.Elements {
		out = u2(out, b.pool.utf8(e.Name))
		out = append(out, b.elementValue(e.Value)...)
	}
	return out
}

func (b *builder) elementValue(v Value) []byte {
	switch v := v.(type) {
	case Enum:
		return u2(u2([]byte{'e'}, b.pool.utf8(v.Type)), b.pool.utf8(v.Name))
	case ClassLiteral:
		return u2([]byte{'c'}, b.pool.utf8(string(v)))
	case Nested:
		return append([]byte{'@'}, b.annotation(Annotation(v))...)
	case Array:
		out := u2([]byte{'['}, uint16(len(v)))
		for _, e := range v {
			out = append(out, b.elementValue(e)...)
		}
		return out
	case Int:
		return u2([]byte{'I'}, b.constant(int32(v)))
	case Str:
		return u2([]byte{'s'}, b.pool.utf8(string(v)))
	}
	panic(fmt.Sprintf("classfiletest: unsupported element value %T", v))
}

func (b *builder) attr(name string, data []byte) []byte {
	out := u2(nil, b.pool.utf8(name))
	out = u4(out, uint32(len(data)))
	return append(out, data...)
}

func (b *builder) attrList(attrs [][]byte) []byte {
	out := u2(nil, uint16(len(attrs)))
	for _, a := range attrs {
		out = append(out, a...)
	}
	return out
}

// pool is a de-duplicating constant pool.
type pool struct {
	entries [][]byte
	index   map[string]uint16
	next    uint16
}

func newPool() *pool {
	return &pool{index: make(map[string]uint16), next: 1}
}

func (p *pool) add(key string, data []byte, wide bool) uint16 {
	if idx, ok := p.index[key]; ok {
		return idx
	}
	idx := p.next
	p.entries = append(p.entries, data)
	p.index[key] = idx
	p.next++
	if wide {
		p.next++
	}
	return idx
}

func (p *pool) utf8(s string) uint16 {
	return p.add("U:"+s, append(u2([]byte{1}, uint16(len(s))), s...), false)
}

func (p *pool) class(name string) uint16 {
	return p.add("C:"+name, u2([]byte{7}, p.utf8(name)), false)
}

func (p *pool) nameAndType(name, desc string) uint16 {
	n, d := p.utf8(name), p.utf8(desc)
	return p.add(fmt.Sprintf("NT:%d:%d", n, d), u2(u2([]byte{12}, n), d), false)
}

func (p *pool) member(tag byte, owner, name, desc string) uint16 {
	c, nt := p.class(owner), p.nameAndType(name, desc)
	return p.add(fmt.Sprintf("M%d:%d:%d", tag, c, nt), u2(u2([]byte{tag}, c), nt), false)
}

func (p *pool) bytes() []byte {
	out := u2(nil, p.next)
	for _, e := range p.entries {
		out = append(out, e...)
	}
	return out
}

func u2(b []byte, v uint16) []byte { return binary.BigEndian.AppendUint16(b, v) }
func u4(b []byte, v uint32) []byte { return binary.BigEndian.AppendUint32(b, v) }
func u8(b []byte, v uint64) []byte { return binary.BigEndian.AppendUint64(b, v) }
