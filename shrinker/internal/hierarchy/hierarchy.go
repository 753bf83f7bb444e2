// Package hierarchy computes the class-hierarchy structure the tree fixer
// traverses: per-class depth (superclasses and interfaces before their
// subclasses and implementors), direct subclass edges, and the partition of
// the program into disjoint hierarchy components that can be processed
// independently.
//
// Classes are addressed by their stable program id throughout.
package hierarchy

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/tools/container/intsets"

	"github.com/jshrink/jshrink/jvm"
)

// ErrCycleDetected indicates the class table contains a superclass or
// interface cycle, which is structurally invalid input.
var ErrCycleDetected = errors.New(`cycle detected in the class hierarchy`)

// Graph is the computed hierarchy structure for one program snapshot.
type Graph struct {
	program *jvm.Program

	// parents[id] holds the program ids of the superclass and interfaces of
	// the class, restricted to program classes. Library supertypes do not
	// constrain the traversal order.
	parents [][]int

	// children[id] holds the direct subclasses and implementors, in
	// program id order.
	children [][]int

	// superParent[id] is the program id of the superclass, or -1 when the
	// superclass is not a program class. superChildren is its inverse,
	// restricted to the superclass relation: the tree the fixer's rename
	// propagation walks, as opposed to the full supertype relation above.
	superParent   []int
	superChildren [][]int

	// depth[id] is the hierarchy depth: 0 for classes with no program
	// supertypes, otherwise 1 + max depth of the program supertypes.
	depth []int

	depthCount int
}

// Build computes the hierarchy graph for the program, taking the declared
// supertype references as they are. It returns ErrCycleDetected (wrapped
// with the classes involved) if the supertype relation is cyclic.
func Build(p *jvm.Program) (*Graph, error) {
	return BuildResolved(p, nil)
}

// BuildResolved computes the hierarchy graph after passing every supertype
// reference through resolve, so the post-merge hierarchy can be built while
// class declarations still carry stale references. A nil resolve leaves
// references untouched.
func BuildResolved(p *jvm.Program, resolve func(jvm.TypeRef) jvm.TypeRef) (*Graph, error) {
	if resolve == nil {
		resolve = func(t jvm.TypeRef) jvm.TypeRef { return t }
	}
	n := p.Size()
	g := &Graph{
		program:       p,
		parents:       make([][]int, n),
		children:      make([][]int, n),
		superParent:   make([]int, n),
		superChildren: make([][]int, n),
		depth:         make([]int, n),
	}

	var childSeen intsets.Sparse
	for id := 0; id < n; id++ {
		c := p.Class(id)
		childSeen.Clear()
		addParent := func(t jvm.TypeRef) int {
			pid := p.ID(resolve(t))
			if pid < 0 || pid == id || childSeen.Has(pid) {
				return -1
			}
			childSeen.Insert(pid)
			g.parents[id] = append(g.parents[id], pid)
			g.children[pid] = append(g.children[pid], id)
			return pid
		}
		g.superParent[id] = addParent(c.Superclass)
		if pid := g.superParent[id]; pid >= 0 {
			g.superChildren[pid] = append(g.superChildren[pid], id)
		}
		for _, iface := range c.Interfaces {
			addParent(iface)
		}
	}

	if err := g.assignDepths(); err != nil {
		return nil, err
	}
	return g, nil
}

// assignDepths propagates depths from the roots down using an explicit
// ready stack, the classes still waiting when the stack drains are part of
// a supertype cycle.
func (g *Graph) assignDepths() error {
	n := len(g.parents)
	waiting := make([]int, n)
	var ready []int
	for id := 0; id < n; id++ {
		waiting[id] = len(g.parents[id])
		if waiting[id] == 0 {
			ready = append(ready, id)
		}
	}

	done := 0
	for len(ready) > 0 {
		max := len(ready) - 1
		id := ready[max]
		ready = ready[:max]
		done++

		d := 0
		for _, pid := range g.parents[id] {
			if g.depth[pid]+1 > d {
				d = g.depth[pid] + 1
			}
		}
		g.depth[id] = d
		if d+1 > g.depthCount {
			g.depthCount = d + 1
		}

		for _, cid := range g.children[id] {
			waiting[cid]--
			if waiting[cid] == 0 {
				ready = append(ready, cid)
			}
		}
	}

	if done < n {
		var stuck []string
		for id := 0; id < n; id++ {
			if waiting[id] > 0 {
				stuck = append(stuck, g.program.Class(id).Type.String())
			}
		}
		sort.Strings(stuck)
		return fmt.Errorf("%w: %s", ErrCycleDetected, strings.Join(stuck, `, `))
	}
	return nil
}

// Depth returns the hierarchy depth of the class with the given id.
func (g *Graph) Depth(id int) int { return g.depth[id] }

// DepthCount returns the number of distinct depths.
func (g *Graph) DepthCount() int { return g.depthCount }

// Parents returns the program supertypes of the class, in declaration order.
func (g *Graph) Parents(id int) []int { return g.parents[id] }

// Subclasses returns the direct program subclasses and implementors of the
// class, in program id order.
func (g *Graph) Subclasses(id int) []int { return g.children[id] }

// Superclass returns the program id of the (resolved) superclass of the
// class, or -1 when the superclass is not a program class.
func (g *Graph) Superclass(id int) int { return g.superParent[id] }

// DirectSubclasses returns the classes whose (resolved) superclass is the
// given class, in program id order. Unlike Subclasses it excludes
// interface implementors.
func (g *Graph) DirectSubclasses(id int) []int { return g.superChildren[id] }

// Roots returns the ids of classes with no program supertypes, in program
// id order.
func (g *Graph) Roots() []int {
	var roots []int
	for id := range g.parents {
		if len(g.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	return roots
}

// Interfaces returns the ids of program interfaces, in program id order.
func (g *Graph) Interfaces() []int {
	var ifaces []int
	for id := range g.parents {
		if g.program.Class(id).Flags.IsInterface() {
			ifaces = append(ifaces, id)
		}
	}
	return ifaces
}

// Components partitions the program into connected components of the
// hierarchy graph. Each component is returned top-down (by depth, then
// program id) and components are ordered by their smallest member id, so
// the partition is deterministic for identical input.
//
// Components share no classes, which is what makes it safe to fix up
// multiple components concurrently.
func (g *Graph) Components() [][]int {
	n := len(g.parents)
	rep := make([]int, n)
	for id := range rep {
		rep[id] = id
	}
	var find func(int) int
	find = func(id int) int {
		if rep[id] != id {
			rep[id] = find(rep[id])
		}
		return rep[id]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if rb < ra {
			ra, rb = rb, ra
		}
		rep[rb] = ra
	}
	for id := 0; id < n; id++ {
		for _, pid := range g.parents[id] {
			union(id, pid)
		}
	}

	byRep := map[int][]int{}
	var order []int
	for id := 0; id < n; id++ {
		r := find(id)
		if _, ok := byRep[r]; !ok {
			order = append(order, r)
		}
		byRep[r] = append(byRep[r], id)
	}
	sort.Ints(order)

	components := make([][]int, 0, len(order))
	for _, r := range order {
		members := byRep[r]
		sort.Slice(members, func(i, j int) bool {
			if g.depth[members[i]] != g.depth[members[j]] {
				return g.depth[members[i]] < g.depth[members[j]]
			}
			return members[i] < members[j]
		})
		components = append(components, members)
	}
	return components
}

// ToMermaid returns a Mermaid flowchart of the hierarchy, grouped by depth.
// This is useful for visualizing the traversal order while debugging
// merge and fixup decisions.
func (g *Graph) ToMermaid() string {
	buf := &bytes.Buffer{}
	write := func(format string, args ...any) {
		// Ignore the error since we are writing to a buffer.
		_, _ = buf.WriteString(fmt.Sprintf(format, args...))
	}

	write("flowchart TB\n")
	for id := range g.parents {
		write(`  v%d["%s"]`, id, g.program.Class(id).Type.BinaryName())
		if len(g.parents[id]) > 0 {
			targets := make([]string, len(g.parents[id]))
			for i, pid := range g.parents[id] {
				targets[i] = fmt.Sprintf(`v%d`, pid)
			}
			write(` --> %s`, strings.Join(targets, ` & `))
		}
		write("\n")
	}
	for depth := 0; depth < g.depthCount; depth++ {
		var ids []string
		for id := range g.depth {
			if g.depth[id] == depth {
				ids = append(ids, fmt.Sprintf(`v%d`, id))
			}
		}
		if len(ids) > 0 {
			write("  subgraph Depth %d\n", depth)
			write("    %s\n", strings.Join(ids, ` & `))
			write("  end\n")
		}
	}
	return buf.String()
}
