// Package classtesting contains common helpers for building small synthetic
// class programs in unit tests.
package classtesting

import (
	"testing"

	"github.com/jshrink/jshrink/jvm"
)

// ClassBuilder assembles a jvm.Class declaratively. Zero-config defaults are
// a public concrete class extending java/lang/Object; every method adjusts
// one aspect and returns the builder.
type ClassBuilder struct {
	c *jvm.Class
}

// Class starts a builder for a public class with the given binary name.
func Class(binaryName string) *ClassBuilder {
	return &ClassBuilder{c: &jvm.Class{
		Flags:      jvm.AccPublic,
		Type:       jvm.ClassType(binaryName),
		Superclass: jvm.Object,
	}}
}

// Interface starts a builder for a public interface.
func Interface(binaryName string) *ClassBuilder {
	b := Class(binaryName)
	b.c.Flags |= jvm.AccInterface | jvm.AccAbstract
	b.c.Superclass = jvm.Object
	return b
}

// Flags replaces the class access flags.
func (b *ClassBuilder) Flags(f jvm.AccessFlags) *ClassBuilder {
	b.c.Flags = f
	return b
}

// Abstract marks the class abstract.
func (b *ClassBuilder) Abstract() *ClassBuilder {
	b.c.Flags |= jvm.AccAbstract
	return b
}

// Extends sets the superclass by binary name.
func (b *ClassBuilder) Extends(binaryName string) *ClassBuilder {
	b.c.Superclass = jvm.ClassType(binaryName)
	return b
}

// Implements appends implemented interfaces by binary name.
func (b *ClassBuilder) Implements(binaryNames ...string) *ClassBuilder {
	for _, name := range binaryNames {
		b.c.Interfaces = append(b.c.Interfaces, jvm.ClassType(name))
	}
	return b
}

// NestHost sets the nest host by binary name.
func (b *ClassBuilder) NestHost(binaryName string) *ClassBuilder {
	b.c.NestHost = jvm.ClassType(binaryName)
	return b
}

// FeatureSplit assigns the class to an artifact partition.
func (b *ClassBuilder) FeatureSplit(name string) *ClassBuilder {
	b.c.FeatureSplit = name
	return b
}

// Annotate attaches a marker annotation of the given type.
func (b *ClassBuilder) Annotate(binaryName string) *ClassBuilder {
	b.c.Annotations = append(b.c.Annotations, jvm.Annotation{Type: jvm.ClassType(binaryName)})
	return b
}

// Field declares a field.
func (b *ClassBuilder) Field(flags jvm.AccessFlags, name string, typ jvm.TypeRef) *ClassBuilder {
	b.c.Fields = append(b.c.Fields, &jvm.Field{Flags: flags, Name: name, Type: typ})
	return b
}

// Method declares a method with the given body. A nil body leaves Code nil,
// as abstract and native methods have.
func (b *ClassBuilder) Method(flags jvm.AccessFlags, name string, proto jvm.Proto, body *jvm.Code) *ClassBuilder {
	b.c.Methods = append(b.c.Methods, &jvm.Method{Flags: flags, Name: name, Proto: proto, Code: body})
	return b
}

// Ctor declares a public constructor with the given parameters and a body
// that just returns.
func (b *ClassBuilder) Ctor(params ...jvm.TypeRef) *ClassBuilder {
	return b.Method(jvm.AccPublic, `<init>`, jvm.NewProto(jvm.Void, params...), Body(Return()))
}

// Virtual declares a public no-arg virtual method whose body invokes nothing
// and returns.
func (b *ClassBuilder) Virtual(name string) *ClassBuilder {
	return b.Method(jvm.AccPublic, name, jvm.NewProto(jvm.Void), Body(Return()))
}

// AbstractMethod declares a public abstract no-arg method.
func (b *ClassBuilder) AbstractMethod(name string) *ClassBuilder {
	b.c.Flags |= jvm.AccAbstract
	return b.Method(jvm.AccPublic|jvm.AccAbstract, name, jvm.NewProto(jvm.Void), nil)
}

// Clinit declares a static initializer with the given body.
func (b *ClassBuilder) Clinit(body *jvm.Code) *ClassBuilder {
	return b.Method(jvm.AccStatic, `<clinit>`, jvm.NewProto(jvm.Void), body)
}

// Build returns the assembled class. The builder must not be reused after.
func (b *ClassBuilder) Build() *jvm.Class { return b.c }

// Program assembles the given classes into a program table, failing the test
// on duplicate definitions.
func Program(t *testing.T, classes ...*jvm.Class) *jvm.Program {
	t.Helper()
	p := jvm.NewProgram()
	for _, c := range classes {
		if _, err := p.Add(c); err != nil {
			t.Fatalf("Failed to build test program: %s", err)
		}
	}
	return p
}

// LiveInfo returns an AppInfo that marks every program class live, in
// program declaration order.
func LiveInfo(p *jvm.Program) *jvm.AppInfo {
	info := jvm.NewAppInfo()
	for _, c := range p.Classes() {
		info.LiveTypes = append(info.LiveTypes, c.Type)
	}
	return info
}

// Body builds a method body from the given instructions.
func Body(instrs ...jvm.Instruction) *jvm.Code {
	return &jvm.Code{Instrs: instrs}
}

// Return builds a return instruction.
func Return() jvm.Instruction { return jvm.Instruction{Op: jvm.OpReturn} }

// InvokeStatic builds a static call to `holder.name()V`.
func InvokeStatic(holder, name string) jvm.Instruction {
	return jvm.Instruction{Op: jvm.OpInvokeStatic, Method: jvm.MethodRef{
		Holder: jvm.ClassType(holder), Name: name, Proto: jvm.NewProto(jvm.Void),
	}}
}

// InvokeVirtual builds a virtual call to `holder.name()V`.
func InvokeVirtual(holder, name string) jvm.Instruction {
	return jvm.Instruction{Op: jvm.OpInvokeVirtual, Method: jvm.MethodRef{
		Holder: jvm.ClassType(holder), Name: name, Proto: jvm.NewProto(jvm.Void),
	}}
}

// GetField builds an instance field read.
func GetField(holder, name string, typ jvm.TypeRef) jvm.Instruction {
	return jvm.Instruction{Op: jvm.OpGetField, Field: jvm.FieldRef{
		Holder: jvm.ClassType(holder), Name: name, Type: typ,
	}}
}

// PutStatic builds a static field write.
func PutStatic(holder, name string, typ jvm.TypeRef) jvm.Instruction {
	return jvm.Instruction{Op: jvm.OpPutStatic, Field: jvm.FieldRef{
		Holder: jvm.ClassType(holder), Name: name, Type: typ,
	}}
}

// NewInstance builds an allocation of the given class.
func NewInstance(binaryName string) jvm.Instruction {
	return jvm.Instruction{Op: jvm.OpNewInstance, Type: jvm.ClassType(binaryName)}
}

// CheckCast builds a checked cast to the given class.
func CheckCast(binaryName string) jvm.Instruction {
	return jvm.Instruction{Op: jvm.OpCheckCast, Type: jvm.ClassType(binaryName)}
}
