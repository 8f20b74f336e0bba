package classfile

// Event is a structural parse event. The set of events is closed: every
// implementation lives in this file.
type Event interface {
	isEvent()
}

// AnnotationTarget tells where an annotation is attached.
type AnnotationTarget int

const (
	TargetClass AnnotationTarget = iota
	TargetField
	TargetMethod
	TargetParameter
	TargetCode
)

func (t AnnotationTarget) String() string {
	switch t {
	case TargetClass:
		return "class"
	case TargetField:
		return "field"
	case TargetMethod:
		return "method"
	case TargetParameter:
		return "parameter"
	case TargetCode:
		return "code"
	}
	return "unknown"
}

// ClassDeclared is always the first event of a class. SuperName is empty for
// java/lang/Object and module-info.
type ClassDeclared struct {
	Name       string
	Signature  string
	SuperName  string
	Interfaces []string
}

// AnnotationDeclared reports an annotation's own type. Nested is set for
// annotation-valued elements of an enclosing annotation.
type AnnotationDeclared struct {
	Descriptor     string
	Target         AnnotationTarget
	Visible        bool
	TypeAnnotation bool
	Nested         bool
}

// AnnotationEnumValue is an enum constant used as an annotation element value.
type AnnotationEnumValue struct {
	Descriptor string
	Name       string
}

// AnnotationClassValue is a class literal used as an annotation element value.
// Descriptor is a return descriptor, so it may be V.
type AnnotationClassValue struct {
	Descriptor string
}

// FieldDeclared reports a field. Value is nil unless a ConstantValue attribute is present.
type FieldDeclared struct {
	Name       string
	Descriptor string
	Signature  string
	Value      Constant
}

// MethodDeclared reports a method and its declared checked exceptions.
type MethodDeclared struct {
	Name       string
	Descriptor string
	Signature  string
	Exceptions []string
}

// TryCatchBlock is an exception-table entry. Type is empty for catch-all handlers.
type TryCatchBlock struct {
	Start, End, Handler int
	Type                string
}

// TypeInsn is new, anewarray, checkcast or instanceof. Type is an internal
// name or, for array classes, an array descriptor.
type TypeInsn struct {
	Offset int
	Op     Opcode
	Type   string
}

// FieldInsn is getstatic, putstatic, getfield or putfield.
type FieldInsn struct {
	Offset     int
	Op         Opcode
	Owner      string
	Name       string
	Descriptor string
}

// MethodInsn is invokevirtual, invokespecial, invokestatic or invokeinterface.
type MethodInsn struct {
	Offset      int
	Op          Opcode
	Owner       string
	Name        string
	Descriptor  string
	IsInterface bool
}

// InvokeDynamicInsn is an invokedynamic call site with its resolved bootstrap method.
type InvokeDynamicInsn struct {
	Offset     int
	Name       string
	Descriptor string
	Bootstrap  Handle
	Args       []Constant
}

// LdcInsn is ldc, ldc_w or ldc2_w.
type LdcInsn struct {
	Offset int
	Op     Opcode
	Value  Constant
}

// MultiANewArrayInsn creates a multi-dimensional array of Descriptor.
type MultiANewArrayInsn struct {
	Offset     int
	Descriptor string
	Dims       int
}

// LocalVariable is a LocalVariableTable entry. Signature comes from the
// matching LocalVariableTypeTable entry, if any.
type LocalVariable struct {
	Name       string
	Descriptor string
	Signature  string
	Start      int
	Length     int
	Index      int
}

func (ClassDeclared) isEvent()        {}
func (AnnotationDeclared) isEvent()   {}
func (AnnotationEnumValue) isEvent()  {}
func (AnnotationClassValue) isEvent() {}
func (FieldDeclared) isEvent()        {}
func (MethodDeclared) isEvent()       {}
func (TryCatchBlock) isEvent()        {}
func (TypeInsn) isEvent()             {}
func (FieldInsn) isEvent()            {}
func (MethodInsn) isEvent()           {}
func (InvokeDynamicInsn) isEvent()    {}
func (LdcInsn) isEvent()              {}
func (MultiANewArrayInsn) isEvent()   {}
func (LocalVariable) isEvent()        {}
