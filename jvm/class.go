package jvm

// AccessFlags is the bit set of access and property flags on a class or
// member, following the class-file flag values.
type AccessFlags uint32

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSynchronized AccessFlags = 0x0020
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
)

func (f AccessFlags) IsPublic() bool       { return f&AccPublic != 0 }
func (f AccessFlags) IsPrivate() bool      { return f&AccPrivate != 0 }
func (f AccessFlags) IsProtected() bool    { return f&AccProtected != 0 }
func (f AccessFlags) IsStatic() bool       { return f&AccStatic != 0 }
func (f AccessFlags) IsFinal() bool        { return f&AccFinal != 0 }
func (f AccessFlags) IsSynchronized() bool { return f&AccSynchronized != 0 }
func (f AccessFlags) IsNative() bool       { return f&AccNative != 0 }
func (f AccessFlags) IsInterface() bool    { return f&AccInterface != 0 }
func (f AccessFlags) IsAbstract() bool     { return f&AccAbstract != 0 }
func (f AccessFlags) IsSynthetic() bool    { return f&AccSynthetic != 0 }
func (f AccessFlags) IsAnnotation() bool   { return f&AccAnnotation != 0 }

// IsPackagePrivate reports whether the flags grant only package visibility.
func (f AccessFlags) IsPackagePrivate() bool {
	return f&(AccPublic|AccPrivate|AccProtected) == 0
}

// Field is a field definition owned by a Class.
type Field struct {
	Flags       AccessFlags
	Name        string
	Type        TypeRef
	Annotations []Annotation
}

// Ref returns the reference to this field as declared on the given holder.
func (f *Field) Ref(holder TypeRef) FieldRef {
	return FieldRef{Holder: holder, Name: f.Name, Type: f.Type}
}

// Method is a method definition owned by a Class. Abstract and native
// methods have a nil Code.
type Method struct {
	Flags       AccessFlags
	Name        string
	Proto       Proto
	Code        *Code
	Annotations []Annotation
}

// Ref returns the reference to this method as declared on the given holder.
func (m *Method) Ref(holder TypeRef) MethodRef {
	return MethodRef{Holder: holder, Name: m.Name, Proto: m.Proto}
}

// Signature returns the holder-independent signature of the method.
func (m *Method) Signature() Signature {
	return Signature{Name: m.Name, Desc: m.Proto.Descriptor()}
}

// IsConstructor reports whether the method is an instance initializer.
func (m *Method) IsConstructor() bool { return m.Name == `<init>` }

// IsClassInitializer reports whether the method is the static initializer.
func (m *Method) IsClassInitializer() bool { return m.Name == `<clinit>` }

// IsVirtual reports whether the method participates in virtual dispatch,
// i.e. is a non-static, non-private, non-initializer instance method.
func (m *Method) IsVirtual() bool {
	return !m.Flags.IsStatic() && !m.Flags.IsPrivate() &&
		!m.IsConstructor() && !m.IsClassInitializer()
}

// IsDirect reports whether the method is resolved without virtual dispatch.
func (m *Method) IsDirect() bool { return !m.IsVirtual() }

// Class is a program class definition. It is owned by the Program class
// table and mutated in place only during the tree-fix phase.
type Class struct {
	Flags      AccessFlags
	Type       TypeRef
	Superclass TypeRef
	Interfaces []TypeRef

	Fields  []*Field
	Methods []*Method

	Annotations []Annotation

	// NestHost is the nest host type for classes in an explicit nest,
	// or void when the class hosts its own (implicit) nest.
	NestHost TypeRef

	// FeatureSplit tags the artifact partition the class is assigned to in a
	// multi-artifact build. Empty for the base artifact.
	FeatureSplit string
}

// Package returns the package the class is declared in.
func (c *Class) Package() string { return c.Type.Package() }

// Method returns the declared method with the given signature, or nil.
func (c *Class) Method(sig Signature) *Method {
	for _, m := range c.Methods {
		if m.Name == sig.Name && m.Proto.Descriptor() == sig.Desc {
			return m
		}
	}
	return nil
}

// Field returns the declared field with the given name, or nil.
func (c *Class) Field(name string) *Field {
	for _, f := range c.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// HasMethod reports whether a method with the given signature is declared.
func (c *Class) HasMethod(sig Signature) bool { return c.Method(sig) != nil }

// ClassInitializer returns the static initializer method, or nil.
func (c *Class) ClassInitializer() *Method {
	for _, m := range c.Methods {
		if m.IsClassInitializer() {
			return m
		}
	}
	return nil
}

// Constructors returns the instance initializers in declaration order.
func (c *Class) Constructors() []*Method {
	var ctors []*Method
	for _, m := range c.Methods {
		if m.IsConstructor() {
			ctors = append(ctors, m)
		}
	}
	return ctors
}

// VirtualMethods returns the virtually dispatched methods in declaration order.
func (c *Class) VirtualMethods() []*Method {
	var ms []*Method
	for _, m := range c.Methods {
		if m.IsVirtual() {
			ms = append(ms, m)
		}
	}
	return ms
}

// InstanceFields returns the non-static fields in declaration order.
func (c *Class) InstanceFields() []*Field {
	var fs []*Field
	for _, f := range c.Fields {
		if !f.Flags.IsStatic() {
			fs = append(fs, f)
		}
	}
	return fs
}

// RemoveMethod removes the given method from the class, preserving the
// declaration order of the remaining methods.
func (c *Class) RemoveMethod(target *Method) {
	for i, m := range c.Methods {
		if m == target {
			c.Methods = append(c.Methods[:i], c.Methods[i+1:]...)
			return
		}
	}
}

// HasAbstractMethods reports whether any declared method is abstract.
func (c *Class) HasAbstractMethods() bool {
	for _, m := range c.Methods {
		if m.Flags.IsAbstract() {
			return true
		}
	}
	return false
}
