package typeref

import "strings"

// Descriptor decodes a field descriptor (Ljava/lang/String;, [I, V) or a
// method descriptor. Method descriptors yield the return type followed by the
// parameter types in declaration order.
func Descriptor(desc string) ([]Ref, error) {
	if strings.HasPrefix(desc, "(") {
		return Method(desc)
	}
	d := &decoder{s: desc}
	var refs []Ref
	if err := d.fieldType(&refs, true); err != nil {
		return nil, err
	}
	if err := d.done(); err != nil {
		return nil, err
	}
	return refs, nil
}

// Method decodes a method descriptor such as (ILjava/util/List;)Ljava/lang/String;.
func Method(desc string) ([]Ref, error) {
	d := &decoder{s: desc}
	if err := d.expect('('); err != nil {
		return nil, err
	}

	var params []Ref
	for d.peek() != ')' {
		if d.eof() {
			return nil, d.errorf("unterminated parameter list")
		}
		if err := d.fieldType(&params, false); err != nil {
			return nil, err
		}
	}
	d.pos++

	var refs []Ref
	if err := d.fieldType(&refs, true); err != nil {
		return nil, err
	}
	if err := d.done(); err != nil {
		return nil, err
	}
	return append(refs, params...), nil
}

// Object decodes the operand of a class constant or type instruction: an
// internal name (java/lang/Object), or an array descriptor ([Ljava/lang/Object;).
func Object(name string) ([]Ref, error) {
	if name == "" {
		return nil, &SyntaxError{Input: name, Msg: "empty internal name"}
	}
	if name[0] == '[' {
		return Descriptor(name)
	}
	return []Ref{Ref(name)}, nil
}

func (d *decoder) fieldType(out *[]Ref, allowVoid bool) error {
	dims := 0
	for d.peek() == '[' {
		d.pos++
		dims++
	}
	if d.eof() {
		return d.errorf("missing type")
	}

	c := d.s[d.pos]
	switch {
	case isBaseType(c):
		d.pos++
		return nil
	case c == 'V':
		if !allowVoid || dims > 0 {
			return d.errorf("void not allowed here")
		}
		d.pos++
		return nil
	case c == 'L':
		end := strings.IndexByte(d.s[d.pos:], ';')
		if end < 0 {
			return d.errorf("unterminated class type")
		}
		name := d.s[d.pos+1 : d.pos+end]
		if name == "" {
			return d.errorf("empty class name")
		}
		d.pos += end + 1
		*out = append(*out, Ref(name))
		return nil
	}
	return d.errorf("invalid type %q", c)
}
