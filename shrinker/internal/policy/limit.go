package policy

import (
	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker/internal/merge"
)

// LimitGroupSize caps the number of classes per group, bounding the growth
// of synthesized constructors and dispatch methods on any one target.
type LimitGroupSize struct {
	max int
}

func NewLimitGroupSize(max int) *LimitGroupSize {
	return &LimitGroupSize{max: max}
}

func (*LimitGroupSize) Name() string { return `LimitGroupSize` }

func (p *LimitGroupSize) Apply(g *merge.Group) []*merge.Group {
	if p.max < 2 || g.Size() <= p.max {
		return []*merge.Group{g}
	}
	classes := g.Classes()
	var groups []*merge.Group
	for start := 0; start < len(classes); start += p.max {
		end := start + p.max
		if end > len(classes) {
			end = len(classes)
		}
		// Avoid stranding a single trailing class: steal one from the
		// previous full chunk so both remain mergeable.
		if end == len(classes) && end-start == 1 && len(groups) > 0 {
			prev := groups[len(groups)-1]
			tail := prev.Classes()[prev.Size()-1]
			prev.RemoveIf(func(c *jvm.Class) bool { return c == tail })
			groups = append(groups, merge.NewGroup(tail, classes[start]))
			break
		}
		groups = append(groups, merge.NewGroup(classes[start:end]...))
	}
	return groups
}

// NoConstructorCollisions packs classes into subgroups with pairwise
// distinct constructor parameter lists. It is installed only when
// constructor merging is disabled: without dispatch synthesis, two group
// members sharing a constructor descriptor could not both be constructed.
type NoConstructorCollisions struct{}

func (NoConstructorCollisions) Name() string { return `NoConstructorCollisions` }

func (NoConstructorCollisions) Apply(g *merge.Group) []*merge.Group {
	var groups []*merge.Group
	descs := []map[string]struct{}{}

	place := func(c *jvm.Class) {
		ctors := c.Constructors()
	nextGroup:
		for i, taken := range descs {
			for _, ctor := range ctors {
				if _, clash := taken[ctor.Proto.Descriptor()]; clash {
					continue nextGroup
				}
			}
			for _, ctor := range ctors {
				taken[ctor.Proto.Descriptor()] = struct{}{}
			}
			groups[i].Add(c)
			return
		}
		taken := map[string]struct{}{}
		for _, ctor := range ctors {
			taken[ctor.Proto.Descriptor()] = struct{}{}
		}
		descs = append(descs, taken)
		groups = append(groups, merge.NewGroup(c))
	}

	for _, c := range g.Classes() {
		place(c)
	}
	return groups
}
