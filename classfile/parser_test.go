package classfile_test

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-pkgdeps-neo4j/classfile"
	cft "go-pkgdeps-neo4j/classfile/classfiletest"
)

func collect(t *testing.T, b []byte) []classfile.Event {
	t.Helper()
	var events []classfile.Event
	err := classfile.ParseBytes(b, func(ev classfile.Event) error {
		events = append(events, ev)
		return nil
	})
	require.NoError(t, err)
	return events
}

func TestParseClassDeclaration(t *testing.T) {
	b := cft.Build(cft.Class{
		Name:       "com/acme/Widget",
		Super:      "com/acme/Base",
		Interfaces: []string{"com/acme/Foo", "java/io/Serializable"},
	})

	events := collect(t, b)
	require.Len(t, events, 1)
	want := classfile.ClassDeclared{
		Name:       "com/acme/Widget",
		SuperName:  "com/acme/Base",
		Interfaces: []string{"com/acme/Foo", "java/io/Serializable"},
	}
	if diff := cmp.Diff(want, events[0]); diff != "" {
		t.Errorf("ClassDeclared mismatch (-want +got):\n%s", diff)
	}
}

func TestParseViaReader(t *testing.T) {
	b := cft.Build(cft.Class{Name: "Plain", Signature: "Ljava/lang/Object;"})
	var got []classfile.Event
	err := classfile.Parse(bytes.NewReader(b), func(ev classfile.Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Ljava/lang/Object;", got[0].(classfile.ClassDeclared).Signature)
}

func TestParseMembersAndAnnotations(t *testing.T) {
	b := cft.Build(cft.Class{
		Name: "com/acme/Widget",
		Annotations: []cft.Annotation{{
			Type: "Lcom/acme/Marker;",
			Elements: []cft.Element{
				{Name: "colors", Value: cft.Array{cft.Enum{Type: "Lcom/acme/Color;", Name: "RED"}, cft.Enum{Type: "Lcom/acme/Color;", Name: "BLUE"}}},
				{Name: "type", Value: cft.ClassLiteral("Lorg/other/Thing;")},
				{Name: "inner", Value: cft.Nested{Type: "Lcom/acme/Inner;", Elements: []cft.Element{{Name: "n", Value: cft.Int(3)}}}},
				{Name: "label", Value: cft.Str("x")},
			},
		}},
		InvisibleAnnotations: []cft.Annotation{{Type: "Lcom/acme/Hidden;"}},
		TypeAnnotations: []cft.TypeAnnotation{{
			Target:     0x10,
			Info:       []byte{0xFF, 0xFF},
			Annotation: cft.Annotation{Type: "Lcom/acme/NonNull;"},
		}},
		Fields: []cft.Field{{
			Name:        "LIMIT",
			Descriptor:  "I",
			Value:       int32(7),
			Annotations: []cft.Annotation{{Type: "Lcom/acme/FieldMark;"}},
		}},
		Methods: []cft.Method{{
			Name:                 "run",
			Descriptor:           "(Ljava/lang/String;)V",
			Signature:            "<T:Ljava/lang/Object;>(Ljava/lang/String;)V",
			Exceptions:           []string{"java/io/IOException"},
			Default:              cft.ClassLiteral("V"),
			ParameterAnnotations: [][]cft.Annotation{{{Type: "Lcom/acme/Param;"}}},
		}},
	})

	want := []classfile.Event{
		classfile.ClassDeclared{Name: "com/acme/Widget", SuperName: "java/lang/Object"},
		classfile.AnnotationDeclared{Descriptor: "Lcom/acme/Marker;", Target: classfile.TargetClass, Visible: true},
		classfile.AnnotationEnumValue{Descriptor: "Lcom/acme/Color;", Name: "RED"},
		classfile.AnnotationEnumValue{Descriptor: "Lcom/acme/Color;", Name: "BLUE"},
		classfile.AnnotationClassValue{Descriptor: "Lorg/other/Thing;"},
		classfile.AnnotationDeclared{Descriptor: "Lcom/acme/Inner;", Target: classfile.TargetClass, Visible: true, Nested: true},
		classfile.AnnotationDeclared{Descriptor: "Lcom/acme/Hidden;", Target: classfile.TargetClass},
		classfile.AnnotationDeclared{Descriptor: "Lcom/acme/NonNull;", Target: classfile.TargetClass, Visible: true, TypeAnnotation: true},
		classfile.FieldDeclared{Name: "LIMIT", Descriptor: "I", Value: classfile.IntConst(7)},
		classfile.AnnotationDeclared{Descriptor: "Lcom/acme/FieldMark;", Target: classfile.TargetField, Visible: true},
		classfile.MethodDeclared{
			Name:       "run",
			Descriptor: "(Ljava/lang/String;)V",
			Signature:  "<T:Ljava/lang/Object;>(Ljava/lang/String;)V",
			Exceptions: []string{"java/io/IOException"},
		},
		classfile.AnnotationClassValue{Descriptor: "V"},
		classfile.AnnotationDeclared{Descriptor: "Lcom/acme/Param;", Target: classfile.TargetParameter, Visible: true},
	}
	if diff := cmp.Diff(want, collect(t, b)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCode(t *testing.T) {
	lambda := cft.Handle{Kind: 6, Owner: "java/lang/invoke/LambdaMetafactory", Name: "metafactory",
		Descriptor: "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;"}
	impl := cft.Handle{Kind: 6, Owner: "com/acme/Widget", Name: "lambda$0", Descriptor: "(Lcom/acme/Item;)V"}
	condyBsm := cft.Handle{Kind: 6, Owner: "com/acme/Bootstraps", Name: "make", Descriptor: "()Ljava/lang/Object;"}

	b := cft.Build(cft.Class{
		Name: "com/acme/Widget",
		Methods: []cft.Method{{
			Name:       "work",
			Descriptor: "()V",
			Code: &cft.Code{
				Insns: []cft.Insn{
					cft.TypeInsn{Op: cft.OpNew, Type: "com/acme/Thing"},
					cft.MethodInsn{Op: cft.OpInvokeSpecial, Owner: "com/acme/Thing", Name: "<init>", Descriptor: "()V"},
					cft.FieldInsn{Op: cft.OpGetStatic, Owner: "org/util/Config", Name: "INSTANCE", Descriptor: "Lorg/util/Config;"},
					cft.MethodInsn{Op: cft.OpInvokeIface, Owner: "java/util/List", Name: "size", Descriptor: "()I", Interface: true},
					cft.InvokeDynamic{Name: "accept", Descriptor: "()Ljava/util/function/Consumer;", Bootstrap: lambda,
						Args: []any{cft.MethodType("(Ljava/lang/Object;)V"), impl, cft.MethodType("(Lcom/acme/Item;)V")}},
					cft.Ldc{Value: cft.Type("[Lnet/x/Y;")},
					cft.Ldc{Value: "hello"},
					cft.Ldc{Value: int64(42)},
					cft.Ldc{Value: cft.Dynamic{Name: "c", Descriptor: "Lcom/acme/Const;", Bootstrap: condyBsm, Args: []any{cft.Type("com/acme/Arg")}}},
					cft.MultiANewArray{Descriptor: "[[Lcom/acme/Cell;", Dims: 2},
					cft.Raw{cft.OpReturn},
				},
				TryCatch: []cft.TryCatch{
					{Start: 0, End: 3, Handler: 10, Type: "java/io/IOException"},
					{Start: 0, End: 3, Handler: 12},
				},
				LocalVars: []cft.LocalVar{
					{Name: "this", Descriptor: "Lcom/acme/Widget;", Start: 0, Length: 20, Index: 0},
					{Name: "items", Descriptor: "Ljava/util/List;", Signature: "Ljava/util/List<Lcom/acme/Item;>;", Start: 2, Length: 18, Index: 1},
				},
			},
		}},
	})

	var got []classfile.Event
	for _, ev := range collect(t, b) {
		switch ev.(type) {
		case classfile.ClassDeclared, classfile.MethodDeclared:
			continue
		}
		got = append(got, ev)
	}

	want := []classfile.Event{
		classfile.TryCatchBlock{Start: 0, End: 3, Handler: 10, Type: "java/io/IOException"},
		classfile.TryCatchBlock{Start: 0, End: 3, Handler: 12},
		classfile.TypeInsn{Offset: 0, Op: classfile.New, Type: "com/acme/Thing"},
		classfile.MethodInsn{Offset: 3, Op: classfile.InvokeSpecial, Owner: "com/acme/Thing", Name: "<init>", Descriptor: "()V"},
		classfile.FieldInsn{Offset: 6, Op: classfile.GetStatic, Owner: "org/util/Config", Name: "INSTANCE", Descriptor: "Lorg/util/Config;"},
		classfile.MethodInsn{Offset: 9, Op: classfile.InvokeInterface, Owner: "java/util/List", Name: "size", Descriptor: "()I", IsInterface: true},
		classfile.InvokeDynamicInsn{
			Offset:     14,
			Name:       "accept",
			Descriptor: "()Ljava/util/function/Consumer;",
			Bootstrap:  classfile.Handle{Kind: classfile.HandleInvokeStatic, Owner: lambda.Owner, Name: lambda.Name, Descriptor: lambda.Descriptor},
			Args: []classfile.Constant{
				classfile.MethodTypeConst{Descriptor: "(Ljava/lang/Object;)V"},
				classfile.Handle{Kind: classfile.HandleInvokeStatic, Owner: "com/acme/Widget", Name: "lambda$0", Descriptor: "(Lcom/acme/Item;)V"},
				classfile.MethodTypeConst{Descriptor: "(Lcom/acme/Item;)V"},
			},
		},
		classfile.LdcInsn{Offset: 19, Op: classfile.Ldc, Value: classfile.TypeConst{Name: "[Lnet/x/Y;"}},
		classfile.LdcInsn{Offset: 21, Op: classfile.Ldc, Value: classfile.StringConst("hello")},
		classfile.LdcInsn{Offset: 23, Op: classfile.Ldc2W, Value: classfile.LongConst(42)},
		classfile.LdcInsn{Offset: 26, Op: classfile.Ldc, Value: classfile.DynamicConst{
			Name:       "c",
			Descriptor: "Lcom/acme/Const;",
			Bootstrap:  classfile.Handle{Kind: classfile.HandleInvokeStatic, Owner: "com/acme/Bootstraps", Name: "make", Descriptor: "()Ljava/lang/Object;"},
			Args:       []classfile.Constant{classfile.TypeConst{Name: "com/acme/Arg"}},
		}},
		classfile.MultiANewArrayInsn{Offset: 28, Descriptor: "[[Lcom/acme/Cell;", Dims: 2},
		classfile.LocalVariable{Name: "this", Descriptor: "Lcom/acme/Widget;", Start: 0, Length: 20, Index: 0},
		classfile.LocalVariable{Name: "items", Descriptor: "Ljava/util/List;", Signature: "Ljava/util/List<Lcom/acme/Item;>;", Start: 2, Length: 18, Index: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("code events mismatch (-want +got):\n%s", diff)
	}
}

func TestParseTypeAnnotationTargets(t *testing.T) {
	typeArg := []byte{3, 0} // type_path step: first type argument
	b := cft.Build(cft.Class{
		Name: "ta/Holder",
		Fields: []cft.Field{{
			Name:            "count",
			Descriptor:      "I",
			TypeAnnotations: []cft.TypeAnnotation{{Target: 0x13, Annotation: cft.Annotation{Type: "Lfa/OnField;"}}},
		}},
		Methods: []cft.Method{{
			Name:       "m",
			Descriptor: "(Ljava/util/List;)V",
			TypeAnnotations: []cft.TypeAnnotation{{
				Target:     0x16,
				Info:       []byte{0},
				Path:       typeArg,
				Annotation: cft.Annotation{Type: "Lma/OnParam;"},
			}},
			Code: &cft.Code{
				Insns: []cft.Insn{cft.Raw{cft.OpNop, cft.OpReturn}},
				TypeAnnotations: []cft.TypeAnnotation{
					{
						// local variable spanning two ranges
						Target:     0x40,
						Info:       []byte{0, 2, 0, 0, 0, 1, 0, 1, 0, 1, 0, 1, 0, 2},
						Path:       append(typeArg, 0, 0),
						Annotation: cft.Annotation{Type: "Llv/OnLocal;"},
					},
					{Target: 0x42, Info: []byte{0, 0}, Annotation: cft.Annotation{Type: "Lcatch/OnCatch;"}},
					{
						Target: 0x44,
						Info:   []byte{0, 0},
						Annotation: cft.Annotation{
							Type:     "Lnew/OnNew;",
							Elements: []cft.Element{{Name: "value", Value: cft.ClassLiteral("[Lcl/X;")}},
						},
					},
					{
						Target:     0x47,
						Info:       []byte{0, 1, 0},
						Path:       append([]byte{0, 0}, typeArg...),
						Annotation: cft.Annotation{Type: "Lcast/OnCast;"},
					},
				},
			},
		}},
	})

	typeAnn := func(desc string, target classfile.AnnotationTarget) classfile.AnnotationDeclared {
		return classfile.AnnotationDeclared{Descriptor: desc, Target: target, Visible: true, TypeAnnotation: true}
	}
	want := []classfile.Event{
		classfile.ClassDeclared{Name: "ta/Holder", SuperName: "java/lang/Object"},
		classfile.FieldDeclared{Name: "count", Descriptor: "I"},
		typeAnn("Lfa/OnField;", classfile.TargetField),
		classfile.MethodDeclared{Name: "m", Descriptor: "(Ljava/util/List;)V"},
		typeAnn("Lma/OnParam;", classfile.TargetMethod),
		typeAnn("Llv/OnLocal;", classfile.TargetCode),
		typeAnn("Lcatch/OnCatch;", classfile.TargetCode),
		typeAnn("Lnew/OnNew;", classfile.TargetCode),
		classfile.AnnotationClassValue{Descriptor: "[Lcl/X;"},
		typeAnn("Lcast/OnCast;", classfile.TargetCode),
	}
	if diff := cmp.Diff(want, collect(t, b)); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}

	t.Run("unknown target", func(t *testing.T) {
		b := cft.Build(cft.Class{
			Name:            "ta/Bad",
			TypeAnnotations: []cft.TypeAnnotation{{Target: 0x20, Annotation: cft.Annotation{Type: "Lx/Y;"}}},
		})
		err := classfile.ParseBytes(b, func(classfile.Event) error { return nil })
		assert.ErrorIs(t, err, classfile.ErrBadAttribute)
	})
}

func TestParseSwitchesAndWide(t *testing.T) {
	code := []byte{0x03} // iconst_0
	// tableswitch at 1, padded to 4, low 0, high 1
	code = append(code, cft.OpTableSwitch, 0, 0)
	code = append(code, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1)
	code = append(code, 0, 0, 0, 0, 0, 0, 0, 0)

	b := cft.Build(cft.Class{
		Name: "Switches",
		Methods: []cft.Method{{
			Name:       "m",
			Descriptor: "()V",
			Code: &cft.Code{Insns: []cft.Insn{
				cft.Raw(code),
				cft.TypeInsn{Op: cft.OpNew, Type: "a/First"}, // 24
				// lookupswitch at 27, no padding, one pair
				cft.Raw{cft.OpLookupSwitch, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 5, 0, 0, 0, 0},
				// wide iinc at 44, wide iload at 50
				cft.Raw{cft.OpWide, cft.OpIinc, 0, 1, 0, 5},
				cft.Raw{cft.OpWide, cft.OpIload, 0, 2},
				cft.TypeInsn{Op: cft.OpCheckCast, Type: "b/Second"}, // 54
				cft.Raw{cft.OpReturn},
			}},
		}},
	})

	var insns []classfile.Event
	for _, ev := range collect(t, b) {
		if ti, ok := ev.(classfile.TypeInsn); ok {
			insns = append(insns, ti)
		}
	}
	want := []classfile.Event{
		classfile.TypeInsn{Offset: 24, Op: classfile.New, Type: "a/First"},
		classfile.TypeInsn{Offset: 54, Op: classfile.CheckCast, Type: "b/Second"},
	}
	if diff := cmp.Diff(want, insns); diff != "" {
		t.Errorf("instructions mismatch (-want +got):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	valid := cft.Build(cft.Class{
		Name:    "com/acme/Widget",
		Methods: []cft.Method{{Name: "m", Descriptor: "()V", Code: &cft.Code{Insns: []cft.Insn{cft.Raw{cft.OpReturn}}}}},
	})
	noop := func(classfile.Event) error { return nil }

	t.Run("bad magic", func(t *testing.T) {
		b := append([]byte{0xDE, 0xAD, 0xBE, 0xEF}, valid[4:]...)
		assert.ErrorIs(t, classfile.ParseBytes(b, noop), classfile.ErrBadMagic)
	})

	t.Run("empty", func(t *testing.T) {
		assert.ErrorIs(t, classfile.ParseBytes(nil, noop), classfile.ErrTruncated)
	})

	t.Run("truncated", func(t *testing.T) {
		for _, n := range []int{8, 20, len(valid) / 2, len(valid) - 1} {
			assert.ErrorIs(t, classfile.ParseBytes(valid[:n], noop), classfile.ErrTruncated, "cut at %d", n)
		}
	})

	t.Run("bad opcode", func(t *testing.T) {
		b := cft.Build(cft.Class{
			Name:    "Bad",
			Methods: []cft.Method{{Name: "m", Descriptor: "()V", Code: &cft.Code{Insns: []cft.Insn{cft.Raw{0xcb}}}}},
		})
		assert.ErrorIs(t, classfile.ParseBytes(b, noop), classfile.ErrBadOpcode)
	})

	t.Run("visitor error stops parsing", func(t *testing.T) {
		stop := errors.New("stop")
		calls := 0
		err := classfile.ParseBytes(valid, func(classfile.Event) error {
			calls++
			return stop
		})
		assert.Same(t, stop, err)
		assert.Equal(t, 1, calls)
	})
}

// testdata/Pipeline.class is Pipeline.java in compiled form, including the
// attributes the parser skips (LineNumberTable, StackMapTable, InnerClasses,
// SourceFile). It is not produced by classfiletest.
func TestParseCompiledClass(t *testing.T) {
	b, err := os.ReadFile("testdata/Pipeline.class")
	require.NoError(t, err)
	events := collect(t, b)

	assert.Equal(t, classfile.ClassDeclared{Name: "org/sample/Pipeline", SuperName: "java/lang/Object"}, events[0])

	var first []classfile.Event
	inFirst := false
	for _, ev := range events {
		if m, ok := ev.(classfile.MethodDeclared); ok {
			if inFirst {
				break
			}
			inFirst = m.Name == "first"
		}
		if inFirst {
			first = append(first, ev)
		}
	}

	metafactory := classfile.Handle{
		Kind:       classfile.HandleInvokeStatic,
		Owner:      "java/lang/invoke/LambdaMetafactory",
		Name:       "metafactory",
		Descriptor: "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;",
	}
	want := []classfile.Event{
		classfile.MethodDeclared{
			Name:       "first",
			Descriptor: "(Ljava/util/List;)Ljava/lang/String;",
			Signature:  "<T::Ljava/lang/Comparable<TT;>;>(Ljava/util/List<TT;>;)Ljava/lang/String;",
		},
		classfile.TryCatchBlock{Start: 6, End: 22, Handler: 23, Type: "java/io/UncheckedIOException"},
		classfile.InvokeDynamicInsn{
			Offset:     0,
			Name:       "apply",
			Descriptor: "()Ljava/util/function/Function;",
			Bootstrap:  metafactory,
			Args: []classfile.Constant{
				classfile.MethodTypeConst{Descriptor: "(Ljava/lang/Object;)Ljava/lang/Object;"},
				classfile.Handle{Kind: classfile.HandleInvokeStatic, Owner: "org/sample/Pipeline", Name: "lambda$first$0", Descriptor: "(Ljava/lang/Comparable;)Ljava/lang/String;"},
				classfile.MethodTypeConst{Descriptor: "(Ljava/lang/Comparable;)Ljava/lang/String;"},
			},
		},
		classfile.MethodInsn{Offset: 9, Op: classfile.InvokeInterface, Owner: "java/util/List", Name: "get", Descriptor: "(I)Ljava/lang/Object;", IsInterface: true},
		classfile.MethodInsn{Offset: 14, Op: classfile.InvokeInterface, Owner: "java/util/function/Function", Name: "apply", Descriptor: "(Ljava/lang/Object;)Ljava/lang/Object;", IsInterface: true},
		classfile.TypeInsn{Offset: 19, Op: classfile.CheckCast, Type: "java/lang/String"},
		classfile.AnnotationDeclared{Descriptor: "Lorg/checker/NonNull;", Target: classfile.TargetCode, TypeAnnotation: true},
		classfile.LocalVariable{Name: "items", Descriptor: "Ljava/util/List;", Signature: "Ljava/util/List<TT;>;", Start: 0, Length: 26, Index: 0},
		classfile.LocalVariable{Name: "f", Descriptor: "Ljava/util/function/Function;", Signature: "Ljava/util/function/Function<TT;Ljava/lang/String;>;", Start: 6, Length: 20, Index: 1},
		classfile.LocalVariable{Name: "e", Descriptor: "Ljava/io/UncheckedIOException;", Start: 24, Length: 2, Index: 2},
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("events of first mismatch (-want +got):\n%s", diff)
	}
}
