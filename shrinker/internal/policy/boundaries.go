package policy

import (
	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker/internal/merge"
)

// RespectPackageBoundaries splits groups so that package-restricted classes
// only merge with classes of their own package.
//
// A class is package-restricted when merging it into another package could
// change which accesses are legal: it is not public, it declares a
// protected or package-private member, or its code accesses a
// package-private or protected target. Unrestricted classes (fully public,
// issuing no such accesses) may merge across packages with each other.
type RespectPackageBoundaries struct {
	program *jvm.Program
}

func NewRespectPackageBoundaries(program *jvm.Program) *RespectPackageBoundaries {
	return &RespectPackageBoundaries{program: program}
}

func (*RespectPackageBoundaries) Name() string { return `RespectPackageBoundaries` }

func (p *RespectPackageBoundaries) Apply(g *merge.Group) []*merge.Group {
	return bucketize(g, func(c *jvm.Class) string {
		if p.restricted(c) {
			return `restricted:` + c.Package()
		}
		return `unrestricted`
	})
}

func (p *RespectPackageBoundaries) restricted(c *jvm.Class) bool {
	if !c.Flags.IsPublic() {
		return true
	}
	for _, f := range c.Fields {
		if memberRestricted(f.Flags) {
			return true
		}
	}
	for _, m := range c.Methods {
		if memberRestricted(m.Flags) {
			return true
		}
	}
	for _, m := range c.Methods {
		if p.codeRestricted(m.Code) {
			return true
		}
	}
	return false
}

func memberRestricted(flags jvm.AccessFlags) bool {
	return flags.IsProtected() || flags.IsPackagePrivate()
}

// codeRestricted conservatively reports whether the body accesses any
// target that is not visible outside its package.
func (p *RespectPackageBoundaries) codeRestricted(code *jvm.Code) bool {
	if code == nil {
		return false
	}
	for _, instr := range code.Instrs {
		switch instr.Op {
		case jvm.OpGetField, jvm.OpPutField, jvm.OpGetStatic, jvm.OpPutStatic:
			holder := p.program.ByType(instr.Field.Holder)
			if holder == nil {
				continue // library targets are public API by construction
			}
			if !holder.Flags.IsPublic() {
				return true
			}
			if f := holder.Field(instr.Field.Name); f != nil && memberRestricted(f.Flags) {
				return true
			}
		case jvm.OpInvokeDirect, jvm.OpInvokeVirtual, jvm.OpInvokeStatic, jvm.OpInvokeSuper, jvm.OpInvokeInterface:
			holder := p.program.ByType(instr.Method.Holder)
			if holder == nil {
				continue
			}
			if !holder.Flags.IsPublic() {
				return true
			}
			sig := jvm.SignatureOf(instr.Method)
			if m := holder.Method(sig); m != nil && memberRestricted(m.Flags) {
				return true
			}
		case jvm.OpNewInstance, jvm.OpCheckCast, jvm.OpInstanceOf:
			if holder := p.program.ByType(instr.Type); holder != nil && !holder.Flags.IsPublic() {
				return true
			}
		}
	}
	return false
}
