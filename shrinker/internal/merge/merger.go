package merge

import (
	"fmt"
	"sort"

	"github.com/jshrink/jshrink/internal/errorList"
	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker/lens"
)

// Merger merges one committed group at a time into its target class. A
// single Merger may be shared across concurrent groups: the lens builder it
// writes to accepts concurrent inserts, and everything else it touches is
// group-local.
type Merger struct {
	program *jvm.Program
	builder *lens.Builder

	// maxSyntheticArgs bounds the synthetic marker chain appended to merged
	// constructors to resolve descriptor collisions.
	maxSyntheticArgs int
}

// NewMerger creates a merger writing renames into the given lens builder.
func NewMerger(program *jvm.Program, builder *lens.Builder, maxSyntheticArgs int) *Merger {
	return &Merger{
		program:          program,
		builder:          builder,
		maxSyntheticArgs: maxSyntheticArgs,
	}
}

// Merge collapses the group into its target class, moving members,
// synthesizing dispatch bodies and registering every rename. The group must
// be non-trivial; Merge commits the target and class-id field.
//
// It returns the field accesses synthesized for the class-id field.
// Internal invariant violations abort with an error; a failed group means
// the whole merge phase is invalid and must not be emitted.
func (m *Merger) Merge(g *Group) (modifier *FieldAccessModifier, err error) {
	defer errorList.RecoverInternal(`class merger`, g.String(), &err)

	if g.IsTrivial() {
		return nil, errorList.Internalf(`class merger`, g.String(), `group has fewer than 2 classes`)
	}

	w := &groupMerger{
		Merger:   m,
		group:    g,
		modifier: NewFieldAccessModifier(),
	}
	w.selectTarget()
	w.allocateClassIDField()
	w.mergeInstanceFields()
	w.mergeStaticFields()
	w.mergeConstructors()
	w.mergeVirtualMethods()
	w.mergeDirectMethods()
	w.mergeClassInitializers()
	w.eraseSources()
	return w.modifier, nil
}

// groupMerger is the per-group working state.
type groupMerger struct {
	*Merger

	group    *Group
	target   *jvm.Class
	modifier *FieldAccessModifier

	// reservedNames holds every member name already placed on the target,
	// consulted when minting fresh names for collided direct members.
	reservedNames map[string]struct{}

	// freshCounter feeds the deterministic fresh-name generator.
	freshCounter int
}

func (w *groupMerger) internalf(format string, args ...any) error {
	return errorList.Internalf(`class merger`, w.group.String(), format, args...)
}

// selectTarget commits the physical survivor: the member requiring the
// fewest fixups, i.e. the one declaring the most methods, with ties broken
// by group order.
func (w *groupMerger) selectTarget() {
	best := w.group.Classes()[0]
	for _, c := range w.group.Classes()[1:] {
		if len(c.Methods) > len(best.Methods) {
			best = c
		}
	}
	w.group.SetTarget(best)
	w.target = best

	w.reservedNames = map[string]struct{}{}
	for _, c := range w.group.Classes() {
		for _, f := range c.Fields {
			w.reservedNames[f.Name] = struct{}{}
		}
		for _, method := range c.Methods {
			w.reservedNames[method.Name] = struct{}{}
		}
	}

	for _, source := range w.group.Classes() {
		if source != w.target {
			w.builder.MapType(source.Type, w.target.Type)
		}
	}
}

// allocateClassIDField adds the synthetic discriminator field to the
// target. The field name is probed against every member name in the group
// so moving members onto the target cannot collide with it.
func (w *groupMerger) allocateClassIDField() {
	name := w.freshName(`$classId`)
	field := &jvm.Field{
		Flags: jvm.AccPublic | jvm.AccFinal | jvm.AccSynthetic,
		Name:  name,
		Type:  jvm.Int,
	}
	w.target.Fields = append(w.target.Fields, field)
	w.group.SetClassIDField(field.Ref(w.target.Type))
}

// freshName mints a name not yet reserved on the target, reserving it.
// The probe sequence is deterministic: base, base$1, base$2, ...
func (w *groupMerger) freshName(base string) string {
	const maxProbes = 1 << 20
	name := base
	for probe := 1; ; probe++ {
		if _, taken := w.reservedNames[name]; !taken {
			w.reservedNames[name] = struct{}{}
			return name
		}
		if probe > maxProbes {
			panic(w.internalf(`no fresh name found for %q within %d probes`, base, maxProbes))
		}
		name = fmt.Sprintf(`%s$%d`, base, probe)
	}
}

// mergeInstanceFields folds every source class's instance fields into the
// target's field slots. Policies guarantee structurally identical layouts
// (same slot count, same primitive kinds); reference-typed slots may
// disagree on the exact type and widen to java/lang/Object.
func (w *groupMerger) mergeInstanceFields() {
	targetFields := w.target.InstanceFields()
	// The class-id field was appended after layout checks, exclude it.
	targetFields = targetFields[:len(targetFields)-1]

	for _, source := range w.group.Classes() {
		if source == w.target {
			continue
		}
		sourceFields := source.InstanceFields()
		if len(sourceFields) != len(targetFields) {
			panic(w.internalf(`incompatible instance field layout between %s and %s`, source.Type, w.target.Type))
		}
		for i, sf := range sourceFields {
			tf := targetFields[i]
			if sf.Type != tf.Type {
				if !sf.Type.IsClassType() || !tf.Type.IsClassType() {
					panic(w.internalf(`incompatible instance field layout between %s and %s`, source.Type, w.target.Type))
				}
				w.widenField(tf, jvm.Object)
			}
			w.builder.MapField(sf.Ref(source.Type), tf.Ref(w.target.Type))
		}
	}
}

// widenField changes a target field's type, registering the rewrite of the
// target's own original field reference.
func (w *groupMerger) widenField(f *jvm.Field, to jvm.TypeRef) {
	if f.Type == to {
		return
	}
	old := f.Ref(w.target.Type)
	f.Type = to
	w.builder.MapField(old, f.Ref(w.target.Type))
}

// mergeStaticFields moves every source class's static fields onto the
// target, renaming on name collision.
func (w *groupMerger) mergeStaticFields() {
	taken := map[string]struct{}{}
	for _, f := range w.target.Fields {
		taken[f.Name] = struct{}{}
	}
	for _, source := range w.group.Classes() {
		if source == w.target {
			continue
		}
		for _, f := range source.Fields {
			if !f.Flags.IsStatic() {
				continue
			}
			old := f.Ref(source.Type)
			if _, collides := taken[f.Name]; collides {
				f.Name = w.freshName(f.Name)
			}
			taken[f.Name] = struct{}{}
			w.target.Fields = append(w.target.Fields, f)
			w.builder.MapField(old, f.Ref(w.target.Type))
		}
	}
}

// ctorSource is one original constructor participating in a merged
// constructor.
type ctorSource struct {
	class *jvm.Class
	ctor  *jvm.Method
}

// mergeConstructors synthesizes one merged constructor per distinct
// original parameter list. The merged constructor takes the original
// parameters plus a trailing int discriminator and an opaque marker-type
// parameter; further marker parameters are appended until the augmented
// descriptor is collision-free on the target.
func (w *groupMerger) mergeConstructors() {
	var order []string
	byDesc := map[string][]ctorSource{}
	for _, c := range w.group.Classes() {
		for _, ctor := range c.Constructors() {
			desc := ctor.Proto.Descriptor()
			if _, seen := byDesc[desc]; !seen {
				order = append(order, desc)
			}
			byDesc[desc] = append(byDesc[desc], ctorSource{class: c, ctor: ctor})
		}
	}

	// Descriptors already placed on the target by earlier synthesized
	// constructors, for the collision fixed point.
	placed := map[string]struct{}{}

	for _, desc := range order {
		sources := byDesc[desc]
		proto := sources[0].ctor.Proto

		// Widen the marker chain until the augmented descriptor is free.
		markers := 1
		var augmented jvm.Proto
		for {
			extra := []jvm.TypeRef{jvm.Int}
			for i := 0; i < markers; i++ {
				extra = append(extra, w.markerType(i))
			}
			augmented = proto.AppendParams(extra...)
			aDesc := augmented.Descriptor()
			_, clash := placed[aDesc]
			if !clash && !w.declaresConstructor(aDesc) {
				break
			}
			markers++
			if markers > w.maxSyntheticArgs {
				panic(w.internalf(`cannot find a collision-free constructor descriptor for %s within %d synthetic arguments`, desc, w.maxSyntheticArgs))
			}
		}
		placed[augmented.Descriptor()] = struct{}{}

		merged := w.synthesizeConstructor(augmented, sources)
		mergedRef := merged.Ref(w.target.Type)

		for _, src := range sources {
			extra := []lens.ExtraParam{{Type: jvm.Int, Value: w.group.IDOf(src.class)}}
			for i := 0; i < markers; i++ {
				extra = append(extra, lens.ExtraParam{Type: w.markerType(i), Marker: true})
			}
			w.builder.MapMethod(src.ctor.Ref(src.class.Type), mergedRef, extra...)
			w.modifier.RecordWrite(*w.group.ClassIDField(), mergedRef)
		}
	}

	// Drop the original constructors; the synthesized ones replace them.
	for _, desc := range order {
		for _, src := range byDesc[desc] {
			src.class.RemoveMethod(src.ctor)
		}
	}
}

// markerType returns the i-th synthetic marker type for this group. Marker
// types are synthesized classes unique to the merge target, so an augmented
// descriptor can never collide with a user overload taking the same real
// parameters plus an int.
func (w *groupMerger) markerType(i int) jvm.TypeRef {
	name := w.target.Type.BinaryName() + `$$Marker`
	if i > 0 {
		name += fmt.Sprintf(`%d`, i)
	}
	return jvm.ClassType(name)
}

func (w *groupMerger) declaresConstructor(desc string) bool {
	for _, method := range w.target.Methods {
		if method.IsConstructor() && method.Proto.Descriptor() == desc {
			return true
		}
	}
	return false
}

// synthesizeConstructor builds the dispatch constructor aggregating the
// given per-class constructors and appends it to the target.
//
// The body switches on the trailing int discriminator argument. Each arm
// runs the original constructor body unchanged, so a failing super call
// propagates before any target-specific state is observed; the class-id
// field store is placed after the arm body completes.
func (w *groupMerger) synthesizeConstructor(proto jvm.Proto, sources []ctorSource) *jvm.Method {
	merged := &jvm.Method{
		Flags: jvm.AccPublic | jvm.AccSynthetic,
		Name:  `<init>`,
		Proto: proto,
		Code:  &jvm.Code{},
	}

	nextLabel := 0
	newLabel := func() int {
		l := nextLabel
		nextLabel++
		return l
	}

	exit := newLabel()
	cases := map[int]int{}
	type arm struct {
		label int
		tail  int
		src   ctorSource
	}
	arms := make([]arm, len(sources))
	for i, src := range sources {
		arms[i] = arm{label: newLabel(), tail: newLabel(), src: src}
		cases[w.group.IDOf(src.class)] = arms[i].label
	}

	merged.Code.Append(jvm.Instruction{Op: jvm.OpSwitch, Cases: cases})
	for _, a := range arms {
		merged.Code.Append(jvm.Instruction{Op: jvm.OpLabel, Target: a.label})
		nextLabel = appendBodyRedirectingReturns(merged.Code, a.src.ctor.Code, a.tail, nextLabel)
		merged.Code.Append(
			jvm.Instruction{Op: jvm.OpLabel, Target: a.tail},
			jvm.Instruction{Op: jvm.OpConstInt, Value: w.group.IDOf(a.src.class)},
			jvm.Instruction{Op: jvm.OpPutField, Field: *w.group.ClassIDField()},
			jvm.Instruction{Op: jvm.OpGoto, Target: exit},
		)
	}
	merged.Code.Append(
		jvm.Instruction{Op: jvm.OpLabel, Target: exit},
		jvm.Instruction{Op: jvm.OpReturn},
	)

	w.target.Methods = append(w.target.Methods, merged)
	return merged
}

// appendBodyRedirectingReturns appends a clone of body to dst with every
// label shifted above nextLabel and every return rewritten into a goto to
// the continuation label. It returns the next free label id.
func appendBodyRedirectingReturns(dst *jvm.Code, body *jvm.Code, continuation, nextLabel int) int {
	if body == nil {
		return nextLabel
	}
	offset := nextLabel
	max := body.MaxLabel()
	clone := body.Clone()
	for i := range clone.Instrs {
		instr := &clone.Instrs[i]
		switch instr.Op {
		case jvm.OpLabel, jvm.OpGoto:
			instr.Target += offset
		case jvm.OpSwitch:
			shifted := make(map[int]int, len(instr.Cases))
			for k, v := range instr.Cases {
				shifted[k] = v + offset
			}
			instr.Cases = shifted
		case jvm.OpReturn:
			*instr = jvm.Instruction{Op: jvm.OpGoto, Target: continuation}
		}
	}
	dst.Append(clone.Instrs...)
	if max >= 0 {
		return offset + max + 1
	}
	return nextLabel
}

// virtualSource is one original virtual method participating in a merged
// dispatch method.
type virtualSource struct {
	class  *jvm.Class
	method *jvm.Method
}

// mergeVirtualMethods moves singleton virtual methods onto the target and
// synthesizes class-id dispatch for signatures implemented by multiple
// group members.
func (w *groupMerger) mergeVirtualMethods() {
	var order []jvm.Signature
	bySig := map[jvm.Signature][]virtualSource{}
	for _, c := range w.group.Classes() {
		for _, method := range c.VirtualMethods() {
			sig := method.Signature()
			if _, seen := bySig[sig]; !seen {
				order = append(order, sig)
			}
			bySig[sig] = append(bySig[sig], virtualSource{class: c, method: method})
		}
	}

	for _, sig := range order {
		sources := bySig[sig]
		if len(sources) == 1 {
			w.moveVirtual(sources[0])
			continue
		}
		if allAbstract(sources) {
			w.keepAbstract(sig, sources)
			continue
		}
		w.synthesizeVirtualDispatch(sig, sources)
	}
}

func allAbstract(sources []virtualSource) bool {
	for _, src := range sources {
		if !src.method.Flags.IsAbstract() {
			return false
		}
	}
	return true
}

// moveVirtual moves a method declared by a single group member onto the
// target, retargeting its holder.
func (w *groupMerger) moveVirtual(src virtualSource) {
	if src.class == w.target {
		return
	}
	src.class.RemoveMethod(src.method)
	w.target.Methods = append(w.target.Methods, src.method)
	w.builder.MapMethod(src.method.Ref(src.class.Type), src.method.Ref(w.target.Type))
}

// keepAbstract collapses identical abstract declarations into the target's
// single abstract method.
func (w *groupMerger) keepAbstract(sig jvm.Signature, sources []virtualSource) {
	kept := w.target.Method(sig)
	if kept == nil {
		kept = sources[0].method
		sources[0].class.RemoveMethod(kept)
		w.target.Methods = append(w.target.Methods, kept)
	}
	for _, src := range sources {
		if src.class == w.target {
			continue
		}
		src.class.RemoveMethod(src.method)
		w.builder.MapMethod(src.method.Ref(src.class.Type), kept.Ref(w.target.Type))
	}
}

// synthesizeVirtualDispatch replaces the per-class overrides of one
// signature with a single method switching on the class-id field.
func (w *groupMerger) synthesizeVirtualDispatch(sig jvm.Signature, sources []virtualSource) {
	merged := &jvm.Method{
		Flags: sources[0].method.Flags &^ jvm.AccAbstract,
		Name:  sig.Name,
		Proto: sources[0].method.Proto,
		Code:  &jvm.Code{},
	}

	nextLabel := 0
	newLabel := func() int {
		l := nextLabel
		nextLabel++
		return l
	}

	cases := map[int]int{}
	type arm struct {
		label int
		src   virtualSource
	}
	var arms []arm
	for _, src := range sources {
		a := arm{label: newLabel(), src: src}
		arms = append(arms, a)
		cases[w.group.IDOf(src.class)] = a.label
	}

	mergedRef := merged.Ref(w.target.Type)
	merged.Code.Append(
		jvm.Instruction{Op: jvm.OpGetField, Field: *w.group.ClassIDField()},
		jvm.Instruction{Op: jvm.OpSwitch, Cases: cases},
	)
	w.modifier.RecordRead(*w.group.ClassIDField(), mergedRef)

	for _, a := range arms {
		merged.Code.Append(jvm.Instruction{Op: jvm.OpLabel, Target: a.label})
		if a.src.method.Code == nil {
			// An abstract override merged with concrete siblings: the class id
			// of an abstract class is never constructed, the arm is
			// unreachable and throws if ever hit.
			merged.Code.Append(jvm.Instruction{Op: jvm.OpThrow})
			continue
		}
		offset := nextLabel
		clone := a.src.method.Code.Clone()
		maxLabel := clone.MaxLabel()
		for i := range clone.Instrs {
			instr := &clone.Instrs[i]
			switch instr.Op {
			case jvm.OpLabel, jvm.OpGoto:
				instr.Target += offset
			case jvm.OpSwitch:
				shifted := make(map[int]int, len(instr.Cases))
				for k, v := range instr.Cases {
					shifted[k] = v + offset
				}
				instr.Cases = shifted
			}
		}
		merged.Code.Append(clone.Instrs...)
		if maxLabel >= 0 {
			nextLabel = offset + maxLabel + 1
		}
	}

	for _, src := range sources {
		src.class.RemoveMethod(src.method)
		if src.class != w.target {
			w.builder.MapMethod(src.method.Ref(src.class.Type), mergedRef)
		}
	}
	w.target.Methods = append(w.target.Methods, merged)
}

// mergeDirectMethods moves static and private instance methods from the
// sources onto the target. Direct methods never dispatch on the class id;
// a signature collision is resolved by minting a fresh, globally unused
// name for the moved method.
func (w *groupMerger) mergeDirectMethods() {
	taken := map[string]struct{}{}
	for _, method := range w.target.Methods {
		taken[method.Signature().String()] = struct{}{}
	}

	for _, source := range w.group.Classes() {
		if source == w.target {
			continue
		}
		// Collect first: moving mutates the source's method list.
		var directs []*jvm.Method
		for _, method := range source.Methods {
			if method.IsDirect() && !method.IsConstructor() && !method.IsClassInitializer() {
				directs = append(directs, method)
			}
		}
		for _, method := range directs {
			old := method.Ref(source.Type)
			if _, collides := taken[method.Signature().String()]; collides {
				method.Name = w.freshName(method.Name)
			}
			taken[method.Signature().String()] = struct{}{}
			source.RemoveMethod(method)
			w.target.Methods = append(w.target.Methods, method)
			w.builder.MapMethod(old, method.Ref(w.target.Type))
		}
	}
}

// mergeClassInitializers concatenates every group member's static
// initializer into one, in group order. Each body's returns become gotos to
// the next body's entry, which is semantically sequential execution of the
// original initializers.
func (w *groupMerger) mergeClassInitializers() {
	var inits []ctorSource
	for _, c := range w.group.Classes() {
		if clinit := c.ClassInitializer(); clinit != nil {
			inits = append(inits, ctorSource{class: c, ctor: clinit})
		}
	}
	if len(inits) == 0 {
		return
	}
	if len(inits) == 1 && inits[0].class == w.target {
		return
	}

	merged := &jvm.Method{
		Flags: jvm.AccStatic | jvm.AccSynthetic,
		Name:  `<clinit>`,
		Proto: jvm.NewProto(jvm.Void),
		Code:  &jvm.Code{},
	}
	nextLabel := 0
	for _, init := range inits {
		continuation := nextLabel
		nextLabel++
		nextLabel = appendBodyRedirectingReturns(merged.Code, init.ctor.Code, continuation, nextLabel)
		merged.Code.Append(jvm.Instruction{Op: jvm.OpLabel, Target: continuation})
	}
	merged.Code.Append(jvm.Instruction{Op: jvm.OpReturn})

	mergedRef := merged.Ref(w.target.Type)
	for _, init := range inits {
		init.class.RemoveMethod(init.ctor)
		if init.class != w.target {
			w.builder.MapMethod(init.ctor.Ref(init.class.Type), mergedRef)
		}
	}
	w.target.Methods = append(w.target.Methods, merged)
}

// eraseSources empties the member lists of the merged-away classes. The
// class records stay in the table; pruning them is a later pass's job.
func (w *groupMerger) eraseSources() {
	for _, source := range w.group.Classes() {
		if source == w.target {
			continue
		}
		if len(source.Methods) > 0 {
			var leftover []string
			for _, method := range source.Methods {
				leftover = append(leftover, method.Name)
			}
			sort.Strings(leftover)
			panic(w.internalf(`unmerged members left on source %s: %v`, source.Type, leftover))
		}
		source.Fields = nil
		source.Methods = nil
	}
}
