// Package jvm models the whole-program class table that the shrinker
// operates on: classes, members, descriptors and the symbolic references
// that connect them.
//
// The model is deliberately skeletal. Method bodies are flat lists of
// symbolic instructions carrying references; per-opcode encoding and the
// binary container formats live behind the readers and writers that feed
// this table and are not represented here.
package jvm

import (
	"strings"
)

// TypeRef is a reference to a type by its JVM descriptor,
// e.g. `Lcom/example/Foo;`, `I`, `[Ljava/lang/String;`.
// The zero value is the absence of a type (e.g. a void return).
type TypeRef struct {
	Descriptor string
}

// Primitive and well-known type references.
var (
	Void   = TypeRef{}
	Int    = TypeRef{Descriptor: `I`}
	Bool   = TypeRef{Descriptor: `Z`}
	Object = TypeRef{Descriptor: `Ljava/lang/Object;`}
)

// ClassType builds a TypeRef for a class given its binary name,
// e.g. `com/example/Foo`.
func ClassType(binaryName string) TypeRef {
	return TypeRef{Descriptor: `L` + binaryName + `;`}
}

// IsVoid reports whether the reference is the absent (void) type.
func (t TypeRef) IsVoid() bool { return t.Descriptor == `` }

// IsClassType reports whether the reference names a class or interface type
// rather than a primitive or an array.
func (t TypeRef) IsClassType() bool {
	return strings.HasPrefix(t.Descriptor, `L`) && strings.HasSuffix(t.Descriptor, `;`)
}

// ElementType peels array dimensions off the reference.
// For non-array types it returns the reference unchanged.
func (t TypeRef) ElementType() TypeRef {
	return TypeRef{Descriptor: strings.TrimLeft(t.Descriptor, `[`)}
}

// ArrayDims returns the number of array dimensions on the reference.
func (t TypeRef) ArrayDims() int {
	return len(t.Descriptor) - len(strings.TrimLeft(t.Descriptor, `[`))
}

// BinaryName returns the binary class name for a class-type reference,
// e.g. `com/example/Foo` for `Lcom/example/Foo;`.
// It returns the raw descriptor for non-class types.
func (t TypeRef) BinaryName() string {
	if !t.IsClassType() {
		return t.Descriptor
	}
	return t.Descriptor[1 : len(t.Descriptor)-1]
}

// Package returns the package portion of a class-type reference
// (`com/example` for `Lcom/example/Foo;`), or an empty string for
// types in the unnamed package and for non-class types.
func (t TypeRef) Package() string {
	name := t.BinaryName()
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		return name[:idx]
	}
	return ``
}

// SimpleName returns the class name without its package.
func (t TypeRef) SimpleName() string {
	name := t.BinaryName()
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}

func (t TypeRef) String() string { return t.Descriptor }

// Proto is a method descriptor: the parameter type list and return type,
// without the method name or holder.
type Proto struct {
	Params []TypeRef
	Return TypeRef
}

// NewProto builds a Proto from a return type and parameter types.
func NewProto(ret TypeRef, params ...TypeRef) Proto {
	return Proto{Params: params, Return: ret}
}

// Descriptor returns the JVM descriptor form of the proto,
// e.g. `(ILjava/lang/String;)V`.
func (p Proto) Descriptor() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, param := range p.Params {
		sb.WriteString(param.Descriptor)
	}
	sb.WriteByte(')')
	if p.Return.IsVoid() {
		sb.WriteByte('V')
	} else {
		sb.WriteString(p.Return.Descriptor)
	}
	return sb.String()
}

// AppendParams returns a copy of the proto with the given parameter types
// appended at the end. The receiver is not modified.
func (p Proto) AppendParams(extra ...TypeRef) Proto {
	params := make([]TypeRef, 0, len(p.Params)+len(extra))
	params = append(params, p.Params...)
	params = append(params, extra...)
	return Proto{Params: params, Return: p.Return}
}

func (p Proto) String() string { return p.Descriptor() }

// FieldRef is a reference to a field by holder, name and type.
type FieldRef struct {
	Holder TypeRef
	Name   string
	Type   TypeRef
}

// Key returns the canonical string key of the reference, used wherever
// references are map keys. Two references are the same field iff their
// keys are equal.
func (f FieldRef) Key() string {
	return f.Holder.Descriptor + `->` + f.Name + `:` + f.Type.Descriptor
}

func (f FieldRef) String() string { return f.Key() }

// MethodRef is a reference to a method by holder, name and proto.
type MethodRef struct {
	Holder TypeRef
	Name   string
	Proto  Proto
}

// Key returns the canonical string key of the reference.
func (m MethodRef) Key() string {
	return m.Holder.Descriptor + `->` + m.Name + m.Proto.Descriptor()
}

// IsConstructor reports whether the reference names an instance initializer.
func (m MethodRef) IsConstructor() bool { return m.Name == `<init>` }

// IsClassInitializer reports whether the reference names a static initializer.
func (m MethodRef) IsClassInitializer() bool { return m.Name == `<clinit>` }

func (m MethodRef) String() string { return m.Key() }

// Signature is the holder-independent part of a method reference, used to
// match overrides across a class hierarchy: name plus proto descriptor.
type Signature struct {
	Name string
	Desc string
}

// SignatureOf extracts the holder-independent signature of a method reference.
func SignatureOf(m MethodRef) Signature {
	return Signature{Name: m.Name, Desc: m.Proto.Descriptor()}
}

func (s Signature) String() string { return s.Name + s.Desc }
