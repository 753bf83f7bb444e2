package policy

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jshrink/jshrink/internal/classtesting"
	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker/internal/merge"
)

// groupNames flattens a partition into binary names for comparison.
func groupNames(groups []*merge.Group) [][]string {
	var out [][]string
	for _, g := range groups {
		var names []string
		for _, c := range g.Classes() {
			names = append(names, c.Type.SimpleName())
		}
		out = append(out, names)
	}
	return out
}

func runChain(classes []*jvm.Class, policies ...Policy) []*merge.Group {
	return Executor{}.Run([]*merge.Group{merge.NewGroup(classes...)}, policies)
}

func TestExecutorDropsTrivialGroups(t *testing.T) {
	a := classtesting.Class(`example/A`).Build()
	b := classtesting.Class(`example/B`).Annotate(`example/Marker`).Build()

	// The filter leaves only A; a one-class group is useless and dropped.
	groups := runChain([]*jvm.Class{a, b}, NoAnnotationClasses{})
	if len(groups) != 0 {
		t.Errorf("Got: %d groups. Want: none, trivial groups are dropped.", len(groups))
	}
}

func TestNoInterfaces(t *testing.T) {
	tests := []struct {
		descr string
		class *jvm.Class
		want  bool
	}{{
		descr: "plain class",
		class: classtesting.Class(`example/A`).Build(),
		want:  true,
	}, {
		descr: "interface",
		class: classtesting.Interface(`example/I`).Build(),
		want:  false,
	}, {
		descr: "annotation definition",
		class: classtesting.Class(`example/Anno`).Flags(jvm.AccPublic | jvm.AccInterface | jvm.AccAnnotation).Build(),
		want:  false,
	}}
	for _, test := range tests {
		t.Run(test.descr, func(t *testing.T) {
			if got := (NoInterfaces{}).CanMerge(test.class); got != test.want {
				t.Errorf("Got: CanMerge(%s) == %t. Want: %t.", test.class.Type, got, test.want)
			}
		})
	}
}

func TestNotPinned(t *testing.T) {
	a := classtesting.Class(`example/A`).Build()
	b := classtesting.Class(`example/B`).Field(jvm.AccPublic, `kept`, jvm.Int).Build()
	c := classtesting.Class(`example/C`).Virtual(`entry`).Build()
	d := classtesting.Class(`example/D`).Build()

	info := jvm.NewAppInfo()
	info.PinType(a.Type)
	info.PinField(b.Fields[0].Ref(b.Type))
	info.PinMethod(c.Methods[0].Ref(c.Type))

	p := NewNotPinned(info)
	for _, test := range []struct {
		class *jvm.Class
		want  bool
	}{{a, false}, {b, false}, {c, false}, {d, true}} {
		if got := p.CanMerge(test.class); got != test.want {
			t.Errorf("Got: CanMerge(%s) == %t. Want: %t.", test.class.Type, got, test.want)
		}
	}
}

func TestNoHorizontalClassMergingMark(t *testing.T) {
	a := classtesting.Class(`example/A`).Build()
	info := jvm.NewAppInfo()
	info.SetNoMerging(a.Type)

	p := NewNoHorizontalClassMergingMark(info)
	if p.CanMerge(a) {
		t.Errorf("Got: CanMerge on an excluded class == true. Want: false.")
	}
	if !p.CanMerge(classtesting.Class(`example/B`).Build()) {
		t.Errorf("Got: CanMerge on an unmarked class == false. Want: true.")
	}
}

func TestNoAnnotationClasses(t *testing.T) {
	onField := classtesting.Class(`example/OnField`).Field(jvm.AccPublic, `x`, jvm.Int).Build()
	onField.Fields[0].Annotations = []jvm.Annotation{{Type: jvm.ClassType(`example/Marker`)}}
	onMethod := classtesting.Class(`example/OnMethod`).Virtual(`run`).Build()
	onMethod.Methods[0].Annotations = []jvm.Annotation{{Type: jvm.ClassType(`example/Marker`)}}

	tests := []struct {
		descr string
		class *jvm.Class
		want  bool
	}{{
		descr: "clean class",
		class: classtesting.Class(`example/Clean`).Virtual(`run`).Build(),
		want:  true,
	}, {
		descr: "annotated class",
		class: classtesting.Class(`example/OnClass`).Annotate(`example/Marker`).Build(),
		want:  false,
	}, {
		descr: "annotated field",
		class: onField,
		want:  false,
	}, {
		descr: "annotated method",
		class: onMethod,
		want:  false,
	}}
	for _, test := range tests {
		t.Run(test.descr, func(t *testing.T) {
			if got := (NoAnnotationClasses{}).CanMerge(test.class); got != test.want {
				t.Errorf("Got: CanMerge(%s) == %t. Want: %t.", test.class.Type, got, test.want)
			}
		})
	}
}

func TestNoNativeMethods(t *testing.T) {
	native := classtesting.Class(`example/Native`).
		Method(jvm.AccPublic|jvm.AccNative, `encode`, jvm.NewProto(jvm.Int), nil).
		Build()
	if (NoNativeMethods{}).CanMerge(native) {
		t.Errorf("Got: CanMerge on a class with a native method == true. Want: false.")
	}
	if !(NoNativeMethods{}).CanMerge(classtesting.Class(`example/Plain`).Virtual(`encode`).Build()) {
		t.Errorf("Got: CanMerge on a class without native methods == false. Want: true.")
	}
}

func TestNoStaticSynchronizedMethods(t *testing.T) {
	locked := classtesting.Class(`example/Locked`).
		Method(jvm.AccPublic|jvm.AccStatic|jvm.AccSynchronized, `tick`, jvm.NewProto(jvm.Void), classtesting.Body(classtesting.Return())).
		Build()
	if (NoStaticSynchronizedMethods{}).CanMerge(locked) {
		t.Errorf("Got: CanMerge with a static synchronized method == true. Want: false.")
	}

	// Instance synchronization locks the instance, not the class object.
	instance := classtesting.Class(`example/Instance`).
		Method(jvm.AccPublic|jvm.AccSynchronized, `tick`, jvm.NewProto(jvm.Void), classtesting.Body(classtesting.Return())).
		Build()
	if !(NoStaticSynchronizedMethods{}).CanMerge(instance) {
		t.Errorf("Got: CanMerge with an instance synchronized method == false. Want: true.")
	}
}

func TestNoUnsatisfiedAbstractMethods(t *testing.T) {
	unsatisfied := classtesting.Class(`example/Partial`).AbstractMethod(`run`).Build()
	if (NoUnsatisfiedAbstractMethods{}).CanMerge(unsatisfied) {
		t.Errorf("Got: CanMerge on an abstract class with abstract methods == true. Want: false.")
	}
	emptyAbstract := classtesting.Class(`example/Empty`).Abstract().Virtual(`run`).Build()
	if !(NoUnsatisfiedAbstractMethods{}).CanMerge(emptyAbstract) {
		t.Errorf("Got: CanMerge on an abstract class without abstract methods == false. Want: true.")
	}
}

func TestNoRuntimeTypeChecks(t *testing.T) {
	a := classtesting.Class(`example/A`).Build()
	b := classtesting.Class(`example/B`).Build()
	p := classtesting.Program(t, a, b)

	info := jvm.NewAppInfo()
	info.AddRuntimeCheck(b.Type)

	policy := NewNoRuntimeTypeChecks(p, info)
	if !policy.CanMerge(a) {
		t.Errorf("Got: CanMerge(%s) == false. Want: true.", a.Type)
	}
	if policy.CanMerge(b) {
		t.Errorf("Got: CanMerge on a runtime-checked type == true. Want: false.")
	}
}

func TestSameFeatureSplit(t *testing.T) {
	classes := []*jvm.Class{
		classtesting.Class(`example/A`).Build(),
		classtesting.Class(`example/B`).FeatureSplit(`feature1`).Build(),
		classtesting.Class(`example/C`).Build(),
		classtesting.Class(`example/D`).FeatureSplit(`feature1`).Build(),
	}
	got := groupNames(runChain(classes, SameFeatureSplit{}))
	want := [][]string{{`A`, `C`}, {`B`, `D`}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SameFeatureSplit returned diff (-want,+got):\n%s", diff)
	}
}

func TestSameNestHost(t *testing.T) {
	classes := []*jvm.Class{
		classtesting.Class(`example/Outer$A`).NestHost(`example/Outer`).Build(),
		classtesting.Class(`example/Other$B`).NestHost(`example/Other`).Build(),
		classtesting.Class(`example/Outer$C`).NestHost(`example/Outer`).Build(),
	}
	got := groupNames(runChain(classes, SameNestHost{}))
	want := [][]string{{`Outer$A`, `Outer$C`}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SameNestHost returned diff (-want,+got):\n%s", diff)
	}
}

func TestSameParentClass(t *testing.T) {
	classes := []*jvm.Class{
		classtesting.Class(`example/A`).Extends(`example/Base`).Build(),
		classtesting.Class(`example/B`).Extends(`example/Base`).Implements(`example/I`).Build(),
		classtesting.Class(`example/C`).Extends(`example/Base`).Build(),
		classtesting.Class(`example/D`).Extends(`example/Base`).Implements(`example/I`).Build(),
		// Same interfaces in a different order is a different shape.
		classtesting.Class(`example/E`).Extends(`example/Base`).Implements(`example/J`, `example/I`).Build(),
		classtesting.Class(`example/F`).Extends(`example/Base`).Implements(`example/I`, `example/J`).Build(),
	}
	got := groupNames(runChain(classes, SameParentClass{}))
	want := [][]string{{`A`, `C`}, {`B`, `D`}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SameParentClass returned diff (-want,+got):\n%s", diff)
	}
}

func TestSameInstanceFields(t *testing.T) {
	str := jvm.ClassType(`java/lang/String`)
	integer := jvm.ClassType(`java/lang/Integer`)
	classes := []*jvm.Class{
		// A and B agree on slot kinds: references widen, so the exact
		// reference type is not part of the shape.
		classtesting.Class(`example/A`).Field(jvm.AccPublic, `ref`, str).Field(jvm.AccPublic, `n`, jvm.Int).Build(),
		classtesting.Class(`example/B`).Field(jvm.AccPublic, `ref`, integer).Field(jvm.AccPublic, `n`, jvm.Int).Build(),
		// Primitive kinds must match exactly.
		classtesting.Class(`example/C`).Field(jvm.AccPublic, `ref`, str).Field(jvm.AccPublic, `n`, jvm.Bool).Build(),
		// A final slot is a different shape from a mutable one.
		classtesting.Class(`example/D`).Field(jvm.AccPublic|jvm.AccFinal, `ref`, str).Field(jvm.AccPublic, `n`, jvm.Int).Build(),
		classtesting.Class(`example/E`).Field(jvm.AccPublic|jvm.AccFinal, `ref`, integer).Field(jvm.AccPublic, `n`, jvm.Int).Build(),
		// Static fields are not part of the instance layout.
		classtesting.Class(`example/F`).
			Field(jvm.AccPublic, `ref`, str).Field(jvm.AccPublic, `n`, jvm.Int).
			Field(jvm.AccPublic|jvm.AccStatic, `shared`, jvm.Bool).Build(),
	}
	got := groupNames(runChain(classes, SameInstanceFields{}))
	want := [][]string{{`A`, `B`, `F`}, {`D`, `E`}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SameInstanceFields returned diff (-want,+got):\n%s", diff)
	}
}

func TestRespectPackageBoundaries(t *testing.T) {
	hidden := classtesting.Class(`pkg1/Hidden`).Flags(0).
		Method(jvm.AccPublic|jvm.AccStatic, `helper`, jvm.NewProto(jvm.Void), classtesting.Body(classtesting.Return())).
		Build()
	classes := []*jvm.Class{
		// Fully public classes may merge across packages.
		classtesting.Class(`pkg1/A`).Virtual(`run`).Build(),
		classtesting.Class(`pkg2/B`).Virtual(`run`).Build(),
		// Package-private class.
		classtesting.Class(`pkg1/C`).Flags(jvm.AccFinal).Build(),
		// Public class whose code reaches into a package-private holder.
		classtesting.Class(`pkg1/D`).
			Method(jvm.AccPublic, `run`, jvm.NewProto(jvm.Void),
				classtesting.Body(classtesting.InvokeStatic(`pkg1/Hidden`, `helper`), classtesting.Return())).
			Build(),
		// Public class declaring a package-private member.
		classtesting.Class(`pkg2/E`).Method(0, `run`, jvm.NewProto(jvm.Void), classtesting.Body(classtesting.Return())).Build(),
		classtesting.Class(`pkg1/F`).Flags(jvm.AccFinal).Build(),
		classtesting.Class(`pkg2/G`).Method(0, `tick`, jvm.NewProto(jvm.Void), classtesting.Body(classtesting.Return())).Build(),
		classtesting.Class(`pkg1/H`).
			Method(jvm.AccPublic, `run`, jvm.NewProto(jvm.Void),
				classtesting.Body(classtesting.InvokeStatic(`pkg1/Hidden`, `helper`), classtesting.Return())).
			Build(),
	}
	program := classtesting.Program(t, append(classes, hidden)...)

	got := groupNames(runChain(classes, NewRespectPackageBoundaries(program)))
	want := [][]string{
		{`A`, `B`},           // unrestricted
		{`C`, `D`, `F`, `H`}, // restricted to pkg1
		{`E`, `G`},           // restricted to pkg2
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RespectPackageBoundaries returned diff (-want,+got):\n%s", diff)
	}
}

func TestMinimizeFieldCasts(t *testing.T) {
	str := jvm.ClassType(`java/lang/String`)
	integer := jvm.ClassType(`java/lang/Integer`)
	double := jvm.ClassType(`java/lang/Double`)
	classes := []*jvm.Class{
		classtesting.Class(`example/A`).Field(jvm.AccPublic, `v`, str).Build(),
		classtesting.Class(`example/B`).Field(jvm.AccPublic, `v`, integer).Build(),
		classtesting.Class(`example/C`).Field(jvm.AccPublic, `v`, str).Build(),
		classtesting.Class(`example/D`).Field(jvm.AccPublic, `v`, double).Build(),
	}

	// A and C agree exactly and merge without widening; B and D have no
	// exact partner and pool into the widened remainder.
	got := groupNames(runChain(classes, MinimizeFieldCasts{}))
	want := [][]string{{`A`, `C`}, {`B`, `D`}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MinimizeFieldCasts returned diff (-want,+got):\n%s", diff)
	}
}

func TestLimitGroupSize(t *testing.T) {
	var classes []*jvm.Class
	for _, name := range []string{`A`, `B`, `C`, `D`} {
		classes = append(classes, classtesting.Class(`example/`+name).Build())
	}

	got := groupNames(runChain(classes, NewLimitGroupSize(3)))
	// A trailing singleton would be unmergeable; the last chunk steals one
	// class from the previous chunk instead.
	want := [][]string{{`A`, `B`}, {`C`, `D`}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LimitGroupSize returned diff (-want,+got):\n%s", diff)
	}
}

func TestNoConstructorCollisions(t *testing.T) {
	classes := []*jvm.Class{
		classtesting.Class(`example/A`).Ctor().Build(),
		classtesting.Class(`example/B`).Ctor().Build(),
		classtesting.Class(`example/C`).Ctor(jvm.Int).Build(),
		classtesting.Class(`example/D`).Ctor(jvm.Bool).Ctor(jvm.Int).Build(),
	}
	groups := (NoConstructorCollisions{}).Apply(merge.NewGroup(classes...))
	want := [][]string{{`A`, `C`}, {`B`, `D`}}
	if diff := cmp.Diff(want, groupNames(groups)); diff != "" {
		t.Errorf("NoConstructorCollisions returned diff (-want,+got):\n%s", diff)
	}
}

func TestDefaultChainOrder(t *testing.T) {
	p := classtesting.Program(t)
	info := jvm.NewAppInfo()

	policies := Default(p, info, Config{MaxGroupSize: 30, MergeConstructors: true})
	if name := policies[len(policies)-1].Name(); name != `LimitGroupSize` {
		t.Errorf("Got: last policy %s. Want: LimitGroupSize, it must observe the final partition.", name)
	}
	for _, p := range policies {
		if _, ok := p.(SingleClassPolicy); ok {
			continue
		}
		if _, ok := p.(MultiClassPolicy); ok {
			continue
		}
		t.Errorf("Got: policy %s implements neither policy kind.", p.Name())
	}

	withSplit := Default(p, info, Config{MaxGroupSize: 30, MergeConstructors: false})
	if len(withSplit) != len(policies)+1 {
		t.Errorf("Got: %d policies with constructor merging disabled. Want: %d.", len(withSplit), len(policies)+1)
	}
}
