package classfile

// Constant is a loadable constant: an ldc operand, a bootstrap method
// argument or a field's ConstantValue.
type Constant interface {
	isConstant()
}

type (
	IntConst    int32
	FloatConst  float32
	LongConst   int64
	DoubleConst float64
	StringConst string
)

// TypeConst is a class literal. Name is an internal name or an array descriptor.
type TypeConst struct {
	Name string
}

// MethodTypeConst is a CONSTANT_MethodType.
type MethodTypeConst struct {
	Descriptor string
}

// HandleKind is the reference kind of a method handle.
type HandleKind uint8

const (
	HandleGetField HandleKind = iota + 1
	HandleGetStatic
	HandlePutField
	HandlePutStatic
	HandleInvokeVirtual
	HandleInvokeStatic
	HandleInvokeSpecial
	HandleNewInvokeSpecial
	HandleInvokeInterface
)

// IsField reports whether the handle refers to a field, in which case its
// Descriptor is a field descriptor rather than a method descriptor.
func (k HandleKind) IsField() bool {
	return k >= HandleGetField && k <= HandlePutStatic
}

// Handle is a CONSTANT_MethodHandle.
type Handle struct {
	Kind        HandleKind
	Owner       string
	Name        string
	Descriptor  string
	IsInterface bool
}

// DynamicConst is a CONSTANT_Dynamic with its resolved bootstrap method.
type DynamicConst struct {
	Name       string
	Descriptor string
	Bootstrap  Handle
	Args       []Constant
}

func (IntConst) isConstant()        {}
func (FloatConst) isConstant()      {}
func (LongConst) isConstant()       {}
func (DoubleConst) isConstant()     {}
func (StringConst) isConstant()     {}
func (TypeConst) isConstant()       {}
func (MethodTypeConst) isConstant() {}
func (Handle) isConstant()          {}
func (DynamicConst) isConstant()    {}
