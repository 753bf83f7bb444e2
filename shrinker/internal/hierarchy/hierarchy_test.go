package hierarchy

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jshrink/jshrink/internal/classtesting"
	"github.com/jshrink/jshrink/jvm"
)

func buildDiamond(t *testing.T) *jvm.Program {
	t.Helper()
	return classtesting.Program(t,
		classtesting.Class(`example/Base`).Build(),
		classtesting.Class(`example/Mid`).Extends(`example/Base`).Build(),
		classtesting.Interface(`example/I`).Build(),
		classtesting.Class(`example/Leaf`).Extends(`example/Mid`).Implements(`example/I`).Build(),
	)
}

func TestDepths(t *testing.T) {
	g, err := Build(buildDiamond(t))
	if err != nil {
		t.Fatalf("Got: Build() returned error: %v. Want: no error.", err)
	}

	wantDepths := []int{0, 1, 0, 2}
	for id, want := range wantDepths {
		if got := g.Depth(id); got != want {
			t.Errorf("Got: Depth(%d) == %d. Want: %d.", id, got, want)
		}
	}
	if got := g.DepthCount(); got != 3 {
		t.Errorf("Got: DepthCount() == %d. Want: 3.", got)
	}
}

func TestEdges(t *testing.T) {
	g, err := Build(buildDiamond(t))
	if err != nil {
		t.Fatalf("Got: Build() returned error: %v. Want: no error.", err)
	}

	if diff := cmp.Diff([]int{1, 2}, g.Parents(3)); diff != "" {
		t.Errorf("Parents(3) returned diff (-want,+got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, g.Subclasses(0)); diff != "" {
		t.Errorf("Subclasses(0) returned diff (-want,+got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 2}, g.Roots()); diff != "" {
		t.Errorf("Roots() returned diff (-want,+got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2}, g.Interfaces()); diff != "" {
		t.Errorf("Interfaces() returned diff (-want,+got):\n%s", diff)
	}
}

func TestSuperclassEdges(t *testing.T) {
	g, err := Build(buildDiamond(t))
	if err != nil {
		t.Fatalf("Got: Build() returned error: %v. Want: no error.", err)
	}

	if got := g.Superclass(3); got != 1 {
		t.Errorf("Got: Superclass(3) == %d. Want: 1.", got)
	}
	if got := g.Superclass(0); got != -1 {
		t.Errorf("Got: Superclass(0) == %d. Want: -1, the superclass is a library class.", got)
	}
	// Leaf implements I but does not extend it.
	if got := g.DirectSubclasses(2); len(got) != 0 {
		t.Errorf("Got: DirectSubclasses(2) == %v. Want: none, implementors are not subclasses.", got)
	}
	if diff := cmp.Diff([]int{3}, g.DirectSubclasses(1)); diff != "" {
		t.Errorf("DirectSubclasses(1) returned diff (-want,+got):\n%s", diff)
	}
}

func TestBuildResolved(t *testing.T) {
	// C declares a stale superclass reference to A; the resolver stands in
	// for the merge lens and redirects it to X.
	p := classtesting.Program(t,
		classtesting.Class(`example/X`).Build(),
		classtesting.Class(`example/A`).Build(),
		classtesting.Class(`example/C`).Extends(`example/A`).Build(),
	)
	typeA := jvm.ClassType(`example/A`)
	typeX := jvm.ClassType(`example/X`)
	resolve := func(t jvm.TypeRef) jvm.TypeRef {
		if t == typeA {
			return typeX
		}
		return t
	}

	g, err := BuildResolved(p, resolve)
	if err != nil {
		t.Fatalf("Got: BuildResolved() returned error: %v. Want: no error.", err)
	}
	if got := g.Superclass(2); got != 0 {
		t.Errorf("Got: Superclass(2) == %d. Want: 0, the resolved superclass.", got)
	}
	if diff := cmp.Diff([]int{2}, g.DirectSubclasses(0)); diff != "" {
		t.Errorf("DirectSubclasses(0) returned diff (-want,+got):\n%s", diff)
	}
	if got := g.DirectSubclasses(1); len(got) != 0 {
		t.Errorf("Got: DirectSubclasses(1) == %v. Want: none, every reference resolves away from A.", got)
	}
	if got := g.Depth(2); got != 1 {
		t.Errorf("Got: Depth(2) == %d. Want: 1, below the resolved superclass.", got)
	}
}

func TestLibrarySupertypesIgnored(t *testing.T) {
	p := classtesting.Program(t,
		classtesting.Class(`example/A`).Extends(`java/util/ArrayList`).Build(),
	)
	g, err := Build(p)
	if err != nil {
		t.Fatalf("Got: Build() returned error: %v. Want: no error.", err)
	}
	if got := g.Depth(0); got != 0 {
		t.Errorf("Got: Depth(0) == %d. Want: 0, library supertypes do not add depth.", got)
	}
}

func TestCycleDetected(t *testing.T) {
	p := classtesting.Program(t,
		classtesting.Class(`example/A`).Extends(`example/B`).Build(),
		classtesting.Class(`example/B`).Extends(`example/A`).Build(),
		classtesting.Class(`example/Ok`).Build(),
	)
	_, err := Build(p)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("Got: Build() returned error: %v. Want: ErrCycleDetected.", err)
	}
	want := `cycle detected in the class hierarchy: Lexample/A;, Lexample/B;`
	if err.Error() != want {
		t.Errorf("Got: error message %q. Want: %q.", err.Error(), want)
	}
}

func TestComponents(t *testing.T) {
	p := classtesting.Program(t,
		classtesting.Class(`example/Base`).Build(),
		classtesting.Class(`example/Mid`).Extends(`example/Base`).Build(),
		classtesting.Interface(`example/I`).Build(),
		classtesting.Class(`example/Leaf`).Extends(`example/Mid`).Implements(`example/I`).Build(),
		classtesting.Class(`example/Lone`).Build(),
	)
	g, err := Build(p)
	if err != nil {
		t.Fatalf("Got: Build() returned error: %v. Want: no error.", err)
	}

	want := [][]int{
		{0, 2, 1, 3}, // top-down: depth, then program id
		{4},
	}
	if diff := cmp.Diff(want, g.Components()); diff != "" {
		t.Errorf("Components() returned diff (-want,+got):\n%s", diff)
	}
}

func TestToMermaid(t *testing.T) {
	g, err := Build(buildDiamond(t))
	if err != nil {
		t.Fatalf("Got: Build() returned error: %v. Want: no error.", err)
	}

	want := `flowchart TB
  v0["example/Base"]
  v1["example/Mid"] --> v0
  v2["example/I"]
  v3["example/Leaf"] --> v1 & v2
  subgraph Depth 0
    v0 & v2
  end
  subgraph Depth 1
    v1
  end
  subgraph Depth 2
    v3
  end
`
	if diff := cmp.Diff(want, g.ToMermaid()); diff != "" {
		t.Errorf("ToMermaid() returned diff (-want,+got):\n%s", diff)
	}
}
