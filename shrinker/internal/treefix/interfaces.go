package treefix

import (
	"fmt"

	"github.com/jshrink/jshrink/internal/errorList"
	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker/internal/hierarchy"
	"github.com/jshrink/jshrink/shrinker/lens"
)

// maxInterfaceRounds bounds the interface rename fixed point. Every round
// that changes anything consumes a fresh name, so failing to settle means
// the naming scheme itself is broken.
const maxInterfaceRounds = 1000

// interfaceFixer fixes up interface declarations before any class is
// visited. Interface renames have no single position in the class
// hierarchy, so they are decided once, globally, and every implementing
// class adopts them through mergeRenamesInto.
type interfaceFixer struct {
	program *jvm.Program
	l       lens.Lens
	builder *lens.Builder

	// ifaceIDs is the program interfaces in program order.
	ifaceIDs []int

	// global maps an original virtual-method signature to its globally
	// consistent new name. Two interfaces declaring the same signature
	// always agree on the rename.
	global map[jvm.Signature]string

	// direct holds per-method rename decisions for static interface
	// methods, which do not propagate to implementors.
	direct map[*jvm.Method]string

	// declared holds the original virtual signatures per interface id,
	// captured before any mutation.
	declared map[int][]jvm.Signature

	// closure holds the transitive program superinterfaces per interface
	// id, including the interface itself.
	closure map[int][]int

	reserved map[string]struct{}
	counter  int
}

func newInterfaceFixer(program *jvm.Program, g *hierarchy.Graph, l lens.Lens, builder *lens.Builder) *interfaceFixer {
	x := &interfaceFixer{
		program:  program,
		l:        l,
		builder:  builder,
		ifaceIDs: g.Interfaces(),
		global:   map[jvm.Signature]string{},
		direct:   map[*jvm.Method]string{},
		declared: map[int][]jvm.Signature{},
		closure:  map[int][]int{},
		reserved: map[string]struct{}{},
	}
	for _, id := range x.ifaceIDs {
		c := program.Class(id)
		for _, m := range c.Methods {
			x.reserved[m.Name] = struct{}{}
			if m.IsVirtual() {
				x.declared[id] = append(x.declared[id], m.Signature())
			}
		}
		for _, f := range c.Fields {
			x.reserved[f.Name] = struct{}{}
		}
	}
	for _, id := range x.ifaceIDs {
		x.closure[id] = x.computeClosure(g, id)
	}
	return x
}

// computeClosure returns the transitive program superinterfaces of the
// interface, itself included.
func (x *interfaceFixer) computeClosure(g *hierarchy.Graph, id int) []int {
	var out []int
	seen := map[int]struct{}{}
	stack := []int{id}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[top]; ok {
			continue
		}
		seen[top] = struct{}{}
		out = append(out, top)
		for _, sid := range g.Parents(top) {
			if x.program.Class(sid).Flags.IsInterface() {
				stack = append(stack, sid)
			}
		}
	}
	return out
}

// fix decides and applies every interface rename. Deciding is a fixed
// point: renaming a signature in one interface forces the same rename in
// every other interface declaring it, which can surface new collisions
// there.
func (x *interfaceFixer) fix() error {
	settled := false
	for round := 0; round < maxInterfaceRounds; round++ {
		if !x.decideRound() {
			settled = true
			break
		}
	}
	if !settled {
		return errorList.Internalf(`tree fixer`, `interfaces`,
			`interface rename fixed point did not settle within %d rounds`, maxInterfaceRounds)
	}
	x.apply()
	return nil
}

// decideRound simulates placement of every interface's members under the
// current rename decisions, minting new renames for collisions. It reports
// whether any new decision was made.
func (x *interfaceFixer) decideRound() bool {
	changed := false
	for _, id := range x.ifaceIDs {
		c := x.program.Class(id)
		placed := map[string]struct{}{}
		for _, m := range c.Methods {
			name := x.decidedName(m)
			desc := substProto(m.Proto, x.l).Descriptor()
			if _, dup := placed[name+desc]; dup {
				fresh := x.fresh(m.Name)
				if m.IsVirtual() {
					x.global[m.Signature()] = fresh
				} else {
					x.direct[m] = fresh
				}
				changed = true
				name = fresh
			}
			placed[name+desc] = struct{}{}
		}
	}
	return changed
}

func (x *interfaceFixer) decidedName(m *jvm.Method) string {
	if m.IsVirtual() {
		if name, ok := x.global[m.Signature()]; ok {
			return name
		}
	} else if name, ok := x.direct[m]; ok {
		return name
	}
	return m.Name
}

// apply mutates the interface declarations per the settled decisions and
// registers the rewrites.
func (x *interfaceFixer) apply() {
	for _, id := range x.ifaceIDs {
		c := x.program.Class(id)
		for _, f := range c.Fields {
			old := f.Ref(c.Type)
			f.Type = x.l.LookupType(f.Type)
			if f.Ref(c.Type) != old {
				x.builder.MapField(old, f.Ref(c.Type))
			}
		}
		for _, m := range c.Methods {
			old := m.Ref(c.Type)
			m.Name = x.decidedName(m)
			m.Proto = substProto(m.Proto, x.l)
			if cur := m.Ref(c.Type); cur.Key() != old.Key() {
				x.builder.MapMethod(old, cur)
			}
		}
	}
}

// mergeRenamesInto adds the renames of every interface the class
// (transitively) implements into the branch rename map. Renames inherited
// from the superclass path win: they were themselves derived from the same
// global table unless a deeper collision forced a re-rename.
func (x *interfaceFixer) mergeRenamesInto(c *jvm.Class, renames map[jvm.Signature]string) {
	for _, t := range c.Interfaces {
		id := x.program.ID(t)
		if id < 0 || !x.program.Class(id).Flags.IsInterface() {
			continue
		}
		for _, super := range x.closure[id] {
			for _, sig := range x.declared[super] {
				if name, ok := x.global[sig]; ok {
					if _, taken := renames[sig]; !taken {
						renames[sig] = name
					}
				}
			}
		}
	}
}

// fresh mints a globally unused interface member name.
func (x *interfaceFixer) fresh(base string) string {
	for probe := 0; probe < maxNameProbes; probe++ {
		x.counter++
		name := fmt.Sprintf(`%s$%d`, base, x.counter)
		if _, taken := x.reserved[name]; !taken {
			x.reserved[name] = struct{}{}
			return name
		}
	}
	panic(errorList.Internalf(`tree fixer`, base, `no fresh interface member name found within %d probes`, maxNameProbes))
}
