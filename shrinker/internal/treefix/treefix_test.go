package treefix

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jshrink/jshrink/internal/classtesting"
	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker/internal/merge"
	"github.com/jshrink/jshrink/shrinker/lens"
)

var (
	typeA = jvm.ClassType(`example/A`)
	typeB = jvm.ClassType(`example/B`)
	typeX = jvm.ClassType(`example/X`)
)

// mergedAB builds the canonical pre-state for these tests: classes A and B
// have been merged into X, their member lists already erased.
func mergedAB(t *testing.T, extra ...*jvm.Class) (*jvm.Program, *merge.MergedClasses, lens.Lens) {
	t.Helper()
	classes := append([]*jvm.Class{
		classtesting.Class(`example/X`).Build(),
		classtesting.Class(`example/A`).Build(),
		classtesting.Class(`example/B`).Build(),
	}, extra...)
	program := classtesting.Program(t, classes...)

	b := lens.NewBuilder(lens.Identity())
	b.MapType(typeA, typeX)
	b.MapType(typeB, typeX)
	mergeLens := b.Build()

	merged := merge.NewMergedClasses()
	merged.Record(typeA, typeX)
	merged.Record(typeB, typeX)
	return program, merged, mergeLens
}

func fix(t *testing.T, program *jvm.Program, merged *merge.MergedClasses, mergeLens lens.Lens) lens.Lens {
	t.Helper()
	final, err := New(program, merged, 3, 1).Run(context.Background(), mergeLens)
	if err != nil {
		t.Fatalf("Got: Run() returned error: %v. Want: no error.", err)
	}
	return final
}

func TestFieldTypeSubstitution(t *testing.T) {
	c := classtesting.Class(`example/C`).Field(jvm.AccPublic, `value`, typeA).Build()
	program, merged, mergeLens := mergedAB(t, c)

	final := fix(t, program, merged, mergeLens)

	if got := c.Fields[0].Type; got != typeX {
		t.Errorf("Got: field type %s. Want: %s.", got, typeX)
	}
	orig := jvm.FieldRef{Holder: c.Type, Name: `value`, Type: typeA}
	want := jvm.FieldRef{Holder: c.Type, Name: `value`, Type: typeX}
	if got := final.LookupField(orig); got != want {
		t.Errorf("Got: LookupField(%s) == %s. Want: %s.", orig, got, want)
	}
}

func TestFieldCollisionAfterSubstitution(t *testing.T) {
	// Same name, distinct types: legal before the merge, colliding after
	// both types substitute to X.
	c := classtesting.Class(`example/C`).
		Field(jvm.AccPublic, `value`, typeA).
		Field(jvm.AccPublic, `value`, typeB).
		Build()
	program, merged, mergeLens := mergedAB(t, c)

	final := fix(t, program, merged, mergeLens)

	if got := c.Fields[0].Name; got != `value` {
		t.Errorf("Got: first field renamed to %q. Want: unchanged.", got)
	}
	if got := c.Fields[1].Name; got == `value` {
		t.Errorf("Got: second field still named %q. Want: a fresh name.", got)
	}
	orig := jvm.FieldRef{Holder: c.Type, Name: `value`, Type: typeB}
	want := jvm.FieldRef{Holder: c.Type, Name: c.Fields[1].Name, Type: typeX}
	if got := final.LookupField(orig); got != want {
		t.Errorf("Got: LookupField(%s) == %s. Want: %s.", orig, got, want)
	}
}

func TestVirtualRenamePropagatesToOverrides(t *testing.T) {
	protoA := jvm.NewProto(jvm.Void, typeA)
	protoB := jvm.NewProto(jvm.Void, typeB)
	c := classtesting.Class(`example/C`).
		Method(jvm.AccPublic, `handle`, protoA, classtesting.Body(classtesting.Return())).
		Method(jvm.AccPublic, `handle`, protoB, classtesting.Body(classtesting.Return())).
		Build()
	d := classtesting.Class(`example/D`).Extends(`example/C`).
		Method(jvm.AccPublic, `handle`, protoB, classtesting.Body(classtesting.Return())).
		Build()
	program, merged, mergeLens := mergedAB(t, c, d)

	final := fix(t, program, merged, mergeLens)

	renamed := c.Methods[1].Name
	if renamed == `handle` {
		t.Fatalf("Got: colliding override still named handle. Want: a fresh name.")
	}
	if got := d.Methods[0].Name; got != renamed {
		t.Errorf("Got: subclass override named %q. Want: %q, renames propagate down the hierarchy.", got, renamed)
	}

	origD := jvm.MethodRef{Holder: d.Type, Name: `handle`, Proto: protoB}
	want := jvm.MethodRef{Holder: d.Type, Name: renamed, Proto: jvm.NewProto(jvm.Void, typeX)}
	if got := final.LookupMethod(origD); got.Key() != want.Key() {
		t.Errorf("Got: LookupMethod(%s) == %s. Want: %s.", origD, got, want)
	}
}

func TestSiblingSubtreesRenameIndependently(t *testing.T) {
	protoA := jvm.NewProto(jvm.Void, typeA)
	protoB := jvm.NewProto(jvm.Void, typeB)
	base := classtesting.Class(`example/Base`).Build()
	left := classtesting.Class(`example/Left`).Extends(`example/Base`).
		Method(jvm.AccPublic, `handle`, protoA, classtesting.Body(classtesting.Return())).
		Method(jvm.AccPublic, `handle`, protoB, classtesting.Body(classtesting.Return())).
		Build()
	right := classtesting.Class(`example/Right`).Extends(`example/Base`).
		Method(jvm.AccPublic, `handle`, protoB, classtesting.Body(classtesting.Return())).
		Build()
	program, merged, mergeLens := mergedAB(t, base, left, right)

	fix(t, program, merged, mergeLens)

	// Left's collision is Left's problem: the sibling keeps its name.
	if got := right.Methods[0].Name; got != `handle` {
		t.Errorf("Got: sibling method renamed to %q. Want: unchanged.", got)
	}
	if got := left.Methods[1].Name; got == `handle` {
		t.Errorf("Got: colliding method still named %q. Want: a fresh name.", got)
	}
}

func TestConstructorCollisionGetsMarker(t *testing.T) {
	protoA := jvm.NewProto(jvm.Void, typeA)
	protoB := jvm.NewProto(jvm.Void, typeB)
	c := classtesting.Class(`example/C`).
		Method(jvm.AccPublic, `<init>`, protoA, classtesting.Body(classtesting.Return())).
		Method(jvm.AccPublic, `<init>`, protoB, classtesting.Body(classtesting.Return())).
		Build()
	program, merged, mergeLens := mergedAB(t, c)

	final := fix(t, program, merged, mergeLens)

	marker := jvm.ClassType(`example/C$$Marker`)
	if diff := cmp.Diff(jvm.NewProto(jvm.Void, typeX, marker), c.Methods[1].Proto); diff != "" {
		t.Errorf("Second constructor proto diff (-want,+got):\n%s", diff)
	}

	orig := jvm.MethodRef{Holder: c.Type, Name: `<init>`, Proto: protoB}
	wantExtra := []lens.ExtraParam{{Type: marker, Marker: true}}
	if diff := cmp.Diff(wantExtra, final.ExtraParams(orig)); diff != "" {
		t.Errorf("ExtraParams(%s) returned diff (-want,+got):\n%s", orig, diff)
	}
}

func TestInterfaceRenamesAreGloballyConsistent(t *testing.T) {
	protoA := jvm.NewProto(jvm.Void, typeA)
	protoB := jvm.NewProto(jvm.Void, typeB)
	iface := classtesting.Interface(`example/I`).
		Method(jvm.AccPublic|jvm.AccAbstract, `handle`, protoA, nil).
		Method(jvm.AccPublic|jvm.AccAbstract, `handle`, protoB, nil).
		Build()
	c := classtesting.Class(`example/C`).Implements(`example/I`).
		Method(jvm.AccPublic, `handle`, protoA, classtesting.Body(classtesting.Return())).
		Method(jvm.AccPublic, `handle`, protoB, classtesting.Body(classtesting.Return())).
		Build()
	program, merged, mergeLens := mergedAB(t, iface, c)

	fix(t, program, merged, mergeLens)

	renamed := iface.Methods[1].Name
	if renamed == `handle` {
		t.Fatalf("Got: colliding interface method still named handle. Want: a fresh name.")
	}
	if got := c.Methods[1].Name; got != renamed {
		t.Errorf("Got: implementor method named %q. Want: %q, the interface's decision.", got, renamed)
	}
}

func TestSupertypesAndCodeRewritten(t *testing.T) {
	c := classtesting.Class(`example/C`).Extends(`example/A`).Implements(`example/I`).
		Method(jvm.AccPublic, `make`, jvm.NewProto(typeB),
			classtesting.Body(
				classtesting.NewInstance(`example/B`),
				classtesting.InvokeVirtual(`example/B`, `run`),
				classtesting.Return())).
		Build()
	iface := classtesting.Interface(`example/I`).Build()
	program, merged, mergeLens := mergedAB(t, c, iface)

	fix(t, program, merged, mergeLens)

	if got := c.Superclass; got != typeX {
		t.Errorf("Got: superclass %s. Want: %s.", got, typeX)
	}
	if got := c.Methods[0].Proto.Return; got != typeX {
		t.Errorf("Got: return type %s. Want: %s.", got, typeX)
	}
	instrs := c.Methods[0].Code.Instrs
	if got := instrs[0].Type; got != typeX {
		t.Errorf("Got: new-instance of %s. Want: %s.", got, typeX)
	}
	if got := instrs[1].Method.Holder; got != typeX {
		t.Errorf("Got: invoke holder %s. Want: %s.", got, typeX)
	}
}

func TestUntouchedProgramGetsNoRenames(t *testing.T) {
	c := classtesting.Class(`example/C`).Virtual(`run`).Field(jvm.AccPublic, `n`, jvm.Int).Build()
	d := classtesting.Class(`example/D`).Extends(`example/C`).Virtual(`run`).Build()
	program := classtesting.Program(t, c, d)

	final := fix(t, program, merge.NewMergedClasses(), lens.Identity())

	if !final.IsIdentity() {
		t.Errorf("Got: renames on a program with no merges. Want: none.")
	}
	if got := d.Methods[0].Name; got != `run` {
		t.Errorf("Got: method renamed to %q. Want: unchanged.", got)
	}
}
