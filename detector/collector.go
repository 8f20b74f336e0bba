package detector

import (
	"fmt"
	"slices"

	"go-pkgdeps-neo4j/classfile"
	"go-pkgdeps-neo4j/typeref"
)

// classResult is what one class contributes to the aggregate: its dotted
// name and the sorted packages it references.
type classResult struct {
	Class    string
	Packages []string
}

// collector gathers the packages referenced by a single class. A new
// collector is used for every class file.
type collector struct {
	class    string
	internal string
	packages map[string]struct{}
}

func newCollector() *collector {
	return &collector{packages: make(map[string]struct{})}
}

// result returns the staged contribution. It is only meaningful after the
// class parsed without error.
func (c *collector) result() classResult {
	pkgs := make([]string, 0, len(c.packages))
	for p := range c.packages {
		pkgs = append(pkgs, p)
	}
	slices.Sort(pkgs)
	return classResult{Class: c.class, Packages: pkgs}
}

// visit is the classfile.VisitFunc that maps each structural event to the
// class types it names.
func (c *collector) visit(ev classfile.Event) error {
	var err error
	switch ev := ev.(type) {
	case classfile.ClassDeclared:
		c.internal = ev.Name
		c.class = typeref.ClassName(ev.Name)
		c.packages[typeref.PackageOf(ev.Name)] = struct{}{}
		if ev.Signature != "" {
			err = c.refs(typeref.Signature(ev.Signature))
			break
		}
		if ev.SuperName != "" {
			err = c.objects(ev.SuperName)
		}
		if err == nil {
			err = c.objects(ev.Interfaces...)
		}

	case classfile.AnnotationDeclared:
		err = c.refs(typeref.Descriptor(ev.Descriptor))
	case classfile.AnnotationEnumValue:
		err = c.refs(typeref.Descriptor(ev.Descriptor))
	case classfile.AnnotationClassValue:
		err = c.refs(typeref.Descriptor(ev.Descriptor))

	case classfile.FieldDeclared:
		if ev.Value != nil {
			if err = c.constant(ev.Value); err != nil {
				break
			}
		}
		if ev.Signature != "" {
			err = c.refs(typeref.TypeSignature(ev.Signature))
		} else {
			err = c.refs(typeref.Descriptor(ev.Descriptor))
		}

	case classfile.MethodDeclared:
		if ev.Signature != "" {
			err = c.refs(typeref.Signature(ev.Signature))
		} else {
			err = c.refs(typeref.Method(ev.Descriptor))
		}
		if err == nil {
			err = c.objects(ev.Exceptions...)
		}

	case classfile.TryCatchBlock:
		if ev.Type != "" {
			err = c.objects(ev.Type)
		}
	case classfile.TypeInsn:
		err = c.objects(ev.Type)
	case classfile.FieldInsn:
		if err = c.objects(ev.Owner); err == nil {
			err = c.refs(typeref.Descriptor(ev.Descriptor))
		}
	case classfile.MethodInsn:
		if err = c.objects(ev.Owner); err == nil {
			err = c.refs(typeref.Method(ev.Descriptor))
		}
	case classfile.InvokeDynamicInsn:
		if err = c.refs(typeref.Method(ev.Descriptor)); err != nil {
			break
		}
		if err = c.constant(ev.Bootstrap); err != nil {
			break
		}
		for _, arg := range ev.Args {
			if err = c.constant(arg); err != nil {
				break
			}
		}
	case classfile.LdcInsn:
		err = c.constant(ev.Value)
	case classfile.MultiANewArrayInsn:
		err = c.refs(typeref.Descriptor(ev.Descriptor))
	case classfile.LocalVariable:
		if ev.Signature != "" {
			err = c.refs(typeref.TypeSignature(ev.Signature))
		}

	default:
		return fmt.Errorf("unexpected event %T", ev)
	}
	if err != nil {
		return fmt.Errorf("class %s: %w", c.internal, err)
	}
	return nil
}

// constant records the types named by a loadable constant. Numbers and
// strings name nothing.
func (c *collector) constant(v classfile.Constant) error {
	switch v := v.(type) {
	case classfile.TypeConst:
		return c.objects(v.Name)
	case classfile.MethodTypeConst:
		return c.refs(typeref.Method(v.Descriptor))
	case classfile.Handle:
		if err := c.objects(v.Owner); err != nil {
			return err
		}
		if v.Kind.IsField() {
			return c.refs(typeref.Descriptor(v.Descriptor))
		}
		return c.refs(typeref.Method(v.Descriptor))
	case classfile.DynamicConst:
		if err := c.refs(typeref.Descriptor(v.Descriptor)); err != nil {
			return err
		}
		if err := c.constant(v.Bootstrap); err != nil {
			return err
		}
		for _, arg := range v.Args {
			if err := c.constant(arg); err != nil {
				return err
			}
		}
	}
	return nil
}

// objects records internal names or array descriptors.
func (c *collector) objects(names ...string) error {
	for _, name := range names {
		if err := c.refs(typeref.Object(name)); err != nil {
			return err
		}
	}
	return nil
}

func (c *collector) refs(refs []typeref.Ref, err error) error {
	if err != nil {
		return err
	}
	for _, r := range refs {
		c.packages[r.Package()] = struct{}{}
	}
	return nil
}
