package policy

import (
	"golang.org/x/tools/container/intsets"

	"github.com/jshrink/jshrink/jvm"
)

// NoInterfaces filters out interface and annotation definitions. Interface
// merging follows different rules and is not handled by this pipeline.
type NoInterfaces struct{}

func (NoInterfaces) Name() string { return `NoInterfaces` }

func (NoInterfaces) CanMerge(c *jvm.Class) bool {
	return !c.Flags.IsInterface() && !c.Flags.IsAnnotation()
}

// NotPinned filters out classes, and holders of members, that must retain
// their identity per the keep rules.
type NotPinned struct {
	appInfo *jvm.AppInfo
}

func NewNotPinned(appInfo *jvm.AppInfo) *NotPinned {
	return &NotPinned{appInfo: appInfo}
}

func (*NotPinned) Name() string { return `NotPinned` }

func (p *NotPinned) CanMerge(c *jvm.Class) bool {
	if p.appInfo.IsPinnedType(c.Type) {
		return false
	}
	for _, f := range c.Fields {
		if p.appInfo.IsPinnedField(f.Ref(c.Type)) {
			return false
		}
	}
	for _, m := range c.Methods {
		if p.appInfo.IsPinnedMethod(m.Ref(c.Type)) {
			return false
		}
	}
	return true
}

// NoHorizontalClassMergingMark filters out classes matching an explicit
// "no horizontal class merging" rule.
type NoHorizontalClassMergingMark struct {
	appInfo *jvm.AppInfo
}

func NewNoHorizontalClassMergingMark(appInfo *jvm.AppInfo) *NoHorizontalClassMergingMark {
	return &NoHorizontalClassMergingMark{appInfo: appInfo}
}

func (*NoHorizontalClassMergingMark) Name() string { return `NoHorizontalClassMergingMark` }

func (p *NoHorizontalClassMergingMark) CanMerge(c *jvm.Class) bool {
	return !p.appInfo.IsNoHorizontalClassMerging(c.Type)
}

// NoAnnotationClasses filters out classes carrying annotations. Annotation
// semantics (retention, reflection) are unknown here, so merging annotated
// classes is unsound.
type NoAnnotationClasses struct{}

func (NoAnnotationClasses) Name() string { return `NoAnnotationClasses` }

func (NoAnnotationClasses) CanMerge(c *jvm.Class) bool {
	if len(c.Annotations) > 0 {
		return false
	}
	for _, f := range c.Fields {
		if len(f.Annotations) > 0 {
			return false
		}
	}
	for _, m := range c.Methods {
		if len(m.Annotations) > 0 {
			return false
		}
	}
	return true
}

// NoNativeMethods filters out classes declaring native methods: the JNI
// binding is resolved by the mangled holder and method name, which merging
// would break.
type NoNativeMethods struct{}

func (NoNativeMethods) Name() string { return `NoNativeMethods` }

func (NoNativeMethods) CanMerge(c *jvm.Class) bool {
	for _, m := range c.Methods {
		if m.Flags.IsNative() {
			return false
		}
	}
	return true
}

// NoStaticSynchronizedMethods filters out classes with static synchronized
// methods: such methods lock the holder class object, and merging holders
// would coarsen distinct locks into one.
type NoStaticSynchronizedMethods struct{}

func (NoStaticSynchronizedMethods) Name() string { return `NoStaticSynchronizedMethods` }

func (NoStaticSynchronizedMethods) CanMerge(c *jvm.Class) bool {
	for _, m := range c.Methods {
		if m.Flags.IsStatic() && m.Flags.IsSynchronized() {
			return false
		}
	}
	return true
}

// NoUnsatisfiedAbstractMethods filters out abstract classes that declare
// abstract methods. Merging such a class requires proving every abstract
// method is trivially satisfiable on the merged target, which this pipeline
// does not attempt beyond the trivial case of none at all.
type NoUnsatisfiedAbstractMethods struct{}

func (NoUnsatisfiedAbstractMethods) Name() string { return `NoUnsatisfiedAbstractMethods` }

func (NoUnsatisfiedAbstractMethods) CanMerge(c *jvm.Class) bool {
	return !c.Flags.IsAbstract() || !c.HasAbstractMethods()
}

// NoRuntimeTypeChecks filters out classes whose own type is the guard of an
// instanceof, checkcast or catch instruction anywhere in the program.
// After merging, instances of every group member answer runtime checks as
// the target type, so a checked source type would change program behavior.
type NoRuntimeTypeChecks struct {
	program *jvm.Program
	checked intsets.Sparse
}

func NewNoRuntimeTypeChecks(program *jvm.Program, appInfo *jvm.AppInfo) *NoRuntimeTypeChecks {
	p := &NoRuntimeTypeChecks{program: program}
	for _, c := range program.Classes() {
		if appInfo.IsRuntimeTypeChecked(c.Type) {
			p.checked.Insert(program.ID(c.Type))
		}
	}
	return p
}

func (*NoRuntimeTypeChecks) Name() string { return `NoRuntimeTypeChecks` }

func (p *NoRuntimeTypeChecks) CanMerge(c *jvm.Class) bool {
	return !p.checked.Has(p.program.ID(c.Type))
}
