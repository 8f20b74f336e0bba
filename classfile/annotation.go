package classfile

import "fmt"

type annotationContext struct {
	target         AnnotationTarget
	visible        bool
	typeAnnotation bool
}

// annotationAttributes reports the four Runtime*Annotations attributes in
// attribute order.
func (p *parser) annotationAttributes(attrs []attribute, target AnnotationTarget) {
	for _, a := range attrs {
		ctx := annotationContext{target: target}
		switch a.name {
		case "RuntimeVisibleAnnotations":
			ctx.visible = true
		case "RuntimeInvisibleAnnotations":
		case "RuntimeVisibleTypeAnnotations":
			ctx.visible, ctx.typeAnnotation = true, true
		case "RuntimeInvisibleTypeAnnotations":
			ctx.typeAnnotation = true
		default:
			continue
		}
		p.annotations(a.data, ctx)
	}
}

func (p *parser) annotations(data []byte, ctx annotationContext) {
	r := newReader(data)
	n := int(r.u2())
	for i := 0; i < n && !p.done(r); i++ {
		if ctx.typeAnnotation {
			p.skipTypeAnnotationTarget(r)
		}
		p.annotation(r, ctx, false)
	}
	p.done(r)
}

func (p *parser) parameterAnnotations(data []byte, visible bool) {
	r := newReader(data)
	ctx := annotationContext{target: TargetParameter, visible: visible}
	params := int(r.u1())
	for i := 0; i < params && !p.done(r); i++ {
		n := int(r.u2())
		for j := 0; j < n && !p.done(r); j++ {
			p.annotation(r, ctx, false)
		}
	}
	p.done(r)
}

func (p *parser) annotation(r *reader, ctx annotationContext, nested bool) {
	desc, err := p.cp.utf8(r.u2())
	if p.done(r) {
		return
	}
	if err != nil {
		p.fail(fmt.Errorf("annotation type: %w", err))
		return
	}
	p.emit(AnnotationDeclared{
		Descriptor:     desc,
		Target:         ctx.target,
		Visible:        ctx.visible,
		TypeAnnotation: ctx.typeAnnotation,
		Nested:         nested,
	})

	pairs := int(r.u2())
	for i := 0; i < pairs && !p.done(r); i++ {
		r.skip(2) // element name
		p.elementValue(r, ctx)
	}
}

func (p *parser) elementValue(r *reader, ctx annotationContext) {
	tag := r.u1()
	if p.done(r) {
		return
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		r.skip(2)
	case 'e':
		desc, err := p.cp.utf8(r.u2())
		p.fail(err)
		name, err := p.cp.utf8(r.u2())
		p.fail(err)
		if !p.done(r) {
			p.emit(AnnotationEnumValue{Descriptor: desc, Name: name})
		}
	case 'c':
		desc, err := p.cp.utf8(r.u2())
		p.fail(err)
		if !p.done(r) {
			p.emit(AnnotationClassValue{Descriptor: desc})
		}
	case '@':
		p.annotation(r, ctx, true)
	case '[':
		n := int(r.u2())
		for i := 0; i < n && !p.done(r); i++ {
			p.elementValue(r, ctx)
		}
	default:
		p.fail(fmt.Errorf("%w: element value tag %q", ErrBadAttribute, tag))
	}
}

// skipTypeAnnotationTarget consumes target_type, target_info and type_path.
func (p *parser) skipTypeAnnotationTarget(r *reader) {
	switch target := r.u1(); target {
	case 0x00, 0x01: // type parameter
		r.skip(1)
	case 0x10: // supertype
		r.skip(2)
	case 0x11, 0x12: // type parameter bound
		r.skip(2)
	case 0x13, 0x14, 0x15: // field, return, receiver
	case 0x16: // formal parameter
		r.skip(1)
	case 0x17: // throws
		r.skip(2)
	case 0x40, 0x41: // local variable, resource variable
		r.skip(6 * int(r.u2()))
	case 0x42: // catch
		r.skip(2)
	case 0x43, 0x44, 0x45, 0x46: // instanceof, new, method references
		r.skip(2)
	case 0x47, 0x48, 0x49, 0x4A, 0x4B: // casts, type arguments
		r.skip(3)
	default:
		if r.ok() {
			p.fail(fmt.Errorf("%w: type annotation target 0x%02x", ErrBadAttribute, target))
		}
		return
	}
	r.skip(2 * int(r.u1())) // type_path
}
