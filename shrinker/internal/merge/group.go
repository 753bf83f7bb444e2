// Package merge implements per-group horizontal class merging: target
// selection, class-id field allocation, dispatch synthesis for constructors
// and virtual methods, and registration of every rename into the lens
// builder.
package merge

import (
	"fmt"
	"strings"

	"github.com/jshrink/jshrink/jvm"
)

// Group is an ordered collection of classes considered for merging into one
// target. Classes keep the order in which they were collected; the class id
// assigned to each member is its current index, so identical input produces
// identical id assignment.
type Group struct {
	classes []*jvm.Class

	classIDField *jvm.FieldRef
	target       *jvm.Class
}

// NewGroup creates a group over the given classes, preserving their order.
func NewGroup(classes ...*jvm.Class) *Group {
	return &Group{classes: classes}
}

// Size returns the number of classes in the group.
func (g *Group) Size() int { return len(g.classes) }

// IsTrivial reports whether the group is too small to merge.
func (g *Group) IsTrivial() bool { return len(g.classes) < 2 }

// Classes returns the group members in order. The returned slice is the
// group's backing storage and must not be modified by callers.
func (g *Group) Classes() []*jvm.Class { return g.classes }

// Add appends classes to the end of the group.
func (g *Group) Add(classes ...*jvm.Class) {
	g.classes = append(g.classes, classes...)
}

// RemoveIf removes every class for which remove returns true, preserving
// the order of the remaining classes.
func (g *Group) RemoveIf(remove func(*jvm.Class) bool) {
	kept := g.classes[:0]
	for _, c := range g.classes {
		if !remove(c) {
			kept = append(kept, c)
		}
	}
	g.classes = kept
}

// IDOf returns the class id assigned to the given member: its index in the
// group order. Returns -1 if the class is not a member.
func (g *Group) IDOf(c *jvm.Class) int {
	for i, member := range g.classes {
		if member == c {
			return i
		}
	}
	return -1
}

// Target returns the committed merge target, or nil before commit.
func (g *Group) Target() *jvm.Class { return g.target }

// SetTarget commits the physical survivor of the merge. The target must be
// a member of the group.
func (g *Group) SetTarget(target *jvm.Class) {
	if g.IDOf(target) < 0 {
		panic(fmt.Errorf("merge: target %s is not a member of %s", target.Type, g))
	}
	g.target = target
}

// ClassIDField returns the allocated class-id discriminator field, or nil
// before allocation.
func (g *Group) ClassIDField() *jvm.FieldRef { return g.classIDField }

// SetClassIDField records the allocated class-id field.
func (g *Group) SetClassIDField(f jvm.FieldRef) { g.classIDField = &f }

func (g *Group) String() string {
	names := make([]string, len(g.classes))
	for i, c := range g.classes {
		names[i] = c.Type.SimpleName()
	}
	return `[` + strings.Join(names, `, `) + `]`
}
