package typeref

// Signature decodes a class or method generic signature, as found in a
// Signature attribute, and returns every class type it names in textual order:
// type parameter bounds, then superclass and interfaces (class signatures) or
// parameters, return type and thrown types (method signatures).
func Signature(sig string) ([]Ref, error) {
	d := &decoder{s: sig}
	var refs []Ref
	if err := d.typeParameters(&refs); err != nil {
		return nil, err
	}

	var err error
	if d.peek() == '(' {
		err = d.methodSignature(&refs)
	} else {
		err = d.classSignature(&refs)
	}
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// TypeSignature decodes a single Java type signature, as attached to fields
// and local variables.
func TypeSignature(sig string) ([]Ref, error) {
	d := &decoder{s: sig}
	var refs []Ref
	if err := d.javaType(&refs); err != nil {
		return nil, err
	}
	if err := d.done(); err != nil {
		return nil, err
	}
	return refs, nil
}

func (d *decoder) classSignature(out *[]Ref) error {
	if d.peek() != 'L' {
		return d.errorf("expected superclass signature")
	}
	for !d.eof() {
		if d.peek() != 'L' {
			return d.errorf("expected interface signature")
		}
		if err := d.classType(out); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) methodSignature(out *[]Ref) error {
	d.pos++
	for d.peek() != ')' {
		if d.eof() {
			return d.errorf("unterminated parameter list")
		}
		if err := d.javaType(out); err != nil {
			return err
		}
	}
	d.pos++

	if d.peek() == 'V' {
		d.pos++
	} else if err := d.javaType(out); err != nil {
		return err
	}

	for !d.eof() {
		if err := d.expect('^'); err != nil {
			return err
		}
		switch d.peek() {
		case 'L':
			if err := d.classType(out); err != nil {
				return err
			}
		case 'T':
			if err := d.typeVariable(); err != nil {
				return err
			}
		default:
			return d.errorf("invalid throws signature")
		}
	}
	return nil
}

// typeParameters consumes an optional <T:Ljava/lang/Object;U::Ljava/lang/Comparable<TU;>;> block.
func (d *decoder) typeParameters(out *[]Ref) error {
	if d.peek() != '<' {
		return nil
	}
	d.pos++
	for d.peek() != '>' {
		start := d.pos
		for !d.eof() && d.s[d.pos] != ':' {
			d.pos++
		}
		if d.eof() || d.pos == start {
			return d.errorf("invalid type parameter")
		}

		// class bound, possibly empty
		d.pos++
		if c := d.peek(); c == 'L' || c == 'T' || c == '[' {
			if err := d.referenceType(out); err != nil {
				return err
			}
		}
		for d.peek() == ':' {
			d.pos++
			if err := d.referenceType(out); err != nil {
				return err
			}
		}
		if d.eof() {
			return d.errorf("unterminated type parameters")
		}
	}
	d.pos++
	return nil
}

func (d *decoder) javaType(out *[]Ref) error {
	if isBaseType(d.peek()) {
		d.pos++
		return nil
	}
	return d.referenceType(out)
}

func (d *decoder) referenceType(out *[]Ref) error {
	switch d.peek() {
	case 'L':
		return d.classType(out)
	case 'T':
		return d.typeVariable()
	case '[':
		d.pos++
		return d.javaType(out)
	}
	if d.eof() {
		return d.errorf("missing reference type")
	}
	return d.errorf("invalid reference type %q", d.s[d.pos])
}

func (d *decoder) typeVariable() error {
	d.pos++
	start := d.pos
	for !d.eof() && d.s[d.pos] != ';' {
		d.pos++
	}
	if d.eof() || d.pos == start {
		return d.errorf("invalid type variable")
	}
	d.pos++
	return nil
}

// classType consumes Lpkg/Outer<...>.Inner<...>; and records pkg/Outer and
// pkg/Outer$Inner. Type arguments are recorded between the two.
func (d *decoder) classType(out *[]Ref) error {
	d.pos++
	outer := ""
	for {
		start := d.pos
		for !d.eof() {
			c := d.s[d.pos]
			if c == '<' || c == '.' || c == ';' {
				break
			}
			d.pos++
		}
		if d.eof() {
			return d.errorf("unterminated class type")
		}
		if d.pos == start {
			return d.errorf("empty class name")
		}

		if outer == "" {
			outer = d.s[start:d.pos]
		} else {
			outer += "$" + d.s[start:d.pos]
		}
		*out = append(*out, Ref(outer))

		if d.peek() == '<' {
			if err := d.typeArguments(out); err != nil {
				return err
			}
		}

		switch d.peek() {
		case ';':
			d.pos++
			return nil
		case '.':
			d.pos++
		default:
			return d.errorf("expected ';' or '.' after class type")
		}
	}
}

func (d *decoder) typeArguments(out *[]Ref) error {
	d.pos++
	if d.peek() == '>' {
		return d.errorf("empty type arguments")
	}
	for d.peek() != '>' {
		switch d.peek() {
		case '*':
			d.pos++
			continue
		case '+', '-':
			d.pos++
		}
		if err := d.referenceType(out); err != nil {
			return err
		}
	}
	d.pos++
	return nil
}
