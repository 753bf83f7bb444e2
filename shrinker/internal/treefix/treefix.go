// Package treefix implements the whole-program fixup pass that runs after
// all groups have merged: every stale type reference is substituted with
// its merge target, and the name collisions the substitution introduces are
// resolved deterministically.
//
// Declaration fixup follows the post-merge class hierarchy top-down, so a
// rename forced on a superclass method propagates to every override below
// it. Interfaces are fixed first against a global reserved-signature table,
// because their renames must be visible to every implementor regardless of
// where it sits in the traversal. Code bodies and annotations are rewritten
// afterwards through the finalized lens.
package treefix

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jshrink/jshrink/internal/errorList"
	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker/internal/hierarchy"
	"github.com/jshrink/jshrink/shrinker/internal/merge"
	"github.com/jshrink/jshrink/shrinker/lens"
)

// maxNameProbes bounds the fresh-name search; exhausting it is an internal
// invariant violation, not an input condition.
const maxNameProbes = 1 << 20

// TreeFixer rewrites the whole program after merging.
type TreeFixer struct {
	program *jvm.Program
	merged  *merge.MergedClasses

	// maxSyntheticArgs bounds the constructor marker chain, shared with the
	// class merger's ceiling.
	maxSyntheticArgs int

	// workers caps the number of hierarchy roots fixed concurrently.
	workers int
}

// New creates a tree fixer for the given post-merge program state.
func New(program *jvm.Program, merged *merge.MergedClasses, maxSyntheticArgs, workers int) *TreeFixer {
	if workers < 1 {
		workers = 1
	}
	return &TreeFixer{
		program:          program,
		merged:           merged,
		maxSyntheticArgs: maxSyntheticArgs,
		workers:          workers,
	}
}

// Run performs the fixup. mergeLens is the frozen lens produced by the
// merge phase; the returned lens chains the fixer's own renames onto it and
// is the final lens of the whole merging phase.
func (f *TreeFixer) Run(ctx context.Context, mergeLens lens.Lens) (final lens.Lens, err error) {
	defer errorList.RecoverInternal(`tree fixer`, `program`, &err)

	builder := lens.NewBuilder(mergeLens)

	// The post-merge hierarchy: supertype references are resolved through
	// the merge lens, so subclasses of a merged-away source hang off the
	// merge target.
	graph, err := hierarchy.BuildResolved(f.program, mergeLens.LookupType)
	if err != nil {
		return lens.Identity(), err
	}

	ifaces := newInterfaceFixer(f.program, graph, mergeLens, builder)
	if err := ifaces.fix(); err != nil {
		return lens.Identity(), err
	}

	components := graph.Components()
	log.Debugf("tree fixer: %d hierarchy components, %d interface renames", len(components), len(ifaces.global))

	// Components share no classes, so they are fixed concurrently; the
	// superclass trees inside one component run sequentially.
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)
	for _, comp := range components {
		comp := comp
		g.Go(func() (err error) {
			defer errorList.RecoverInternal(`tree fixer`, f.program.Class(comp[0]).Type.String(), &err)
			for _, id := range comp {
				if f.isTreeRoot(graph, id) {
					f.fixTree(id, graph, mergeLens, builder, ifaces)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return lens.Identity(), err
	}

	final = builder.Build()

	// Second pass: with every declaration decision made, rewrite the
	// remaining references (supertypes, code bodies, annotations) through
	// the final lens. Classes are independent here.
	g2, _ := errgroup.WithContext(ctx)
	g2.SetLimit(f.workers)
	for _, c := range f.program.Classes() {
		if f.merged.IsMergeSource(c.Type) {
			continue
		}
		c := c
		g2.Go(func() (err error) {
			defer errorList.RecoverInternal(`tree fixer`, c.Type.String(), &err)
			f.rewriteClassRefs(c, final)
			return nil
		})
	}
	if err := g2.Wait(); err != nil {
		return lens.Identity(), err
	}
	return final, nil
}

// fixable reports whether the fixer visits the class in its hierarchy
// walk. Interfaces are handled by the interface fixer, and merged-away
// sources no longer declare anything to fix.
func (f *TreeFixer) fixable(c *jvm.Class) bool {
	return !c.Flags.IsInterface() && !c.Flags.IsAnnotation() && !f.merged.IsMergeSource(c.Type)
}

// isTreeRoot reports whether the class starts one of the superclass trees
// the fixer walks: a fixable class whose superclass is not itself a
// fixable program class.
func (f *TreeFixer) isTreeRoot(g *hierarchy.Graph, id int) bool {
	if !f.fixable(f.program.Class(id)) {
		return false
	}
	super := g.Superclass(id)
	return super < 0 || !f.fixable(f.program.Class(super))
}

// branch is the state threaded down one path of the hierarchy traversal.
// Maps are copied at every fork so sibling subtrees cannot observe each
// other's decisions.
type branch struct {
	// renames maps an original virtual-method signature to the name its
	// holder adopted after collision resolution. Overrides below adopt the
	// same name.
	renames map[jvm.Signature]string

	// reserved is every member name placed on this path, consulted by the
	// fresh-name generator.
	reserved map[string]struct{}
}

func (b branch) fork() branch {
	renames := make(map[jvm.Signature]string, len(b.renames))
	for k, v := range b.renames {
		renames[k] = v
	}
	reserved := make(map[string]struct{}, len(b.reserved))
	for k := range b.reserved {
		reserved[k] = struct{}{}
	}
	return branch{renames: renames, reserved: reserved}
}

// fixTree walks one root's superclass subtree top-down with an explicit
// stack, fixing declarations. The fresh-name counter is root-local, so
// trees can run concurrently while staying deterministic for identical
// input.
func (f *TreeFixer) fixTree(root int, g *hierarchy.Graph, l lens.Lens, builder *lens.Builder, ifaces *interfaceFixer) {
	gen := &nameGen{}

	type frame struct {
		id int
		b  branch
	}
	stack := []frame{{id: root, b: branch{
		renames:  map[jvm.Signature]string{},
		reserved: map[string]struct{}{},
	}}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		c := f.program.Class(top.id)
		b := top.b.fork()
		ifaces.mergeRenamesInto(c, b.renames)
		f.fixClass(c, l, builder, b, gen)

		for _, sub := range g.DirectSubclasses(top.id) {
			if f.fixable(f.program.Class(sub)) {
				stack = append(stack, frame{id: sub, b: b})
			}
		}
	}
}

// fixClass rewrites one class's field and method declarations in place,
// resolving collisions and registering every identity change.
func (f *TreeFixer) fixClass(c *jvm.Class, l lens.Lens, builder *lens.Builder, b branch, gen *nameGen) {
	placed := map[string]struct{}{}
	for _, m := range c.Methods {
		b.reserved[m.Name] = struct{}{}
	}
	for _, fd := range c.Fields {
		b.reserved[fd.Name] = struct{}{}
	}

	// Fields first: two distinct fields may collapse onto the same
	// name/type pair once their types are substituted.
	for _, fd := range c.Fields {
		old := fd.Ref(c.Type)
		fd.Type = l.LookupType(fd.Type)
		if _, dup := placed[fd.Name+`:`+fd.Type.Descriptor]; dup {
			fd.Name = gen.fresh(fd.Name, b.reserved)
		}
		placed[fd.Name+`:`+fd.Type.Descriptor] = struct{}{}
		if fd.Ref(c.Type) != old {
			builder.MapField(old, fd.Ref(c.Type))
		}
	}

	for _, m := range c.Methods {
		f.fixMethod(c, m, l, builder, b, gen, placed)
	}
}

func (f *TreeFixer) fixMethod(c *jvm.Class, m *jvm.Method, l lens.Lens, builder *lens.Builder,
	b branch, gen *nameGen, placed map[string]struct{}) {
	old := m.Ref(c.Type)
	origSig := m.Signature()

	m.Proto = substProto(m.Proto, l)

	var extra []lens.ExtraParam
	if m.IsConstructor() {
		extra = f.resolveConstructorCollision(c, m, placed)
	} else {
		if m.IsVirtual() {
			if adopted, ok := b.renames[origSig]; ok {
				m.Name = adopted
			}
		}
		if _, dup := placed[m.Signature().String()]; dup {
			fresh := gen.fresh(m.Name, b.reserved)
			m.Name = fresh
			if m.IsVirtual() {
				b.renames[origSig] = fresh
			}
		}
	}
	placed[m.Signature().String()] = struct{}{}

	if cur := m.Ref(c.Type); cur.Key() != old.Key() {
		builder.MapMethod(old, cur, extra...)
	}
}

// resolveConstructorCollision appends synthetic marker parameters until the
// constructor descriptor is unique on its class, returning the extra
// parameters call sites must pass (always null markers).
func (f *TreeFixer) resolveConstructorCollision(c *jvm.Class, m *jvm.Method, placed map[string]struct{}) []lens.ExtraParam {
	if _, dup := placed[m.Signature().String()]; !dup {
		return nil
	}
	var extra []lens.ExtraParam
	for i := 0; ; i++ {
		if i >= f.maxSyntheticArgs {
			panic(errorList.Internalf(`tree fixer`, c.Type.String(),
				`cannot disambiguate constructor %s within %d synthetic arguments`, m.Signature(), f.maxSyntheticArgs))
		}
		marker := markerType(c.Type, i)
		m.Proto = m.Proto.AppendParams(marker)
		extra = append(extra, lens.ExtraParam{Type: marker, Marker: true})
		if _, dup := placed[m.Signature().String()]; !dup {
			return extra
		}
	}
}

// markerType mints the i-th synthetic marker type scoped to a class,
// continuing the same naming scheme the class merger uses for its
// discriminator markers.
func markerType(holder jvm.TypeRef, i int) jvm.TypeRef {
	name := holder.BinaryName() + `$$Marker`
	if i > 0 {
		name += fmt.Sprintf(`%d`, i)
	}
	return jvm.ClassType(name)
}

// rewriteClassRefs rewrites the class's remaining references through the
// final lens: supertypes, nest host, annotations and code bodies.
func (f *TreeFixer) rewriteClassRefs(c *jvm.Class, final lens.Lens) {
	c.Superclass = final.LookupType(c.Superclass)
	for i, t := range c.Interfaces {
		c.Interfaces[i] = final.LookupType(t)
	}
	if !c.NestHost.IsVoid() {
		c.NestHost = final.LookupType(c.NestHost)
	}
	c.Annotations = jvm.RewriteAnnotations(c.Annotations, final)
	for _, fd := range c.Fields {
		fd.Annotations = jvm.RewriteAnnotations(fd.Annotations, final)
	}
	for _, m := range c.Methods {
		m.Annotations = jvm.RewriteAnnotations(m.Annotations, final)
		m.Code.RewriteRefs(final)
	}
}

// substProto substitutes every type of the proto through the lens.
func substProto(p jvm.Proto, l lens.Lens) jvm.Proto {
	params := make([]jvm.TypeRef, len(p.Params))
	for i, t := range p.Params {
		params[i] = l.LookupType(t)
	}
	return jvm.Proto{Params: params, Return: l.LookupType(p.Return)}
}

// nameGen mints fresh member names: base$1, base$2, ... skipping anything
// already reserved. The counter is monotonic per generator, so a name is
// never handed out twice even for different bases.
type nameGen struct {
	counter int
}

func (g *nameGen) fresh(base string, reserved map[string]struct{}) string {
	for probe := 0; probe < maxNameProbes; probe++ {
		g.counter++
		name := fmt.Sprintf(`%s$%d`, base, g.counter)
		if _, taken := reserved[name]; !taken {
			reserved[name] = struct{}{}
			return name
		}
	}
	panic(errorList.Internalf(`tree fixer`, base, `no fresh name found within %d probes`, maxNameProbes))
}
