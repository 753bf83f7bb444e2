package policy

import (
	"strings"

	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker/internal/merge"
)

// MinimizeFieldCasts greedily regroups same-shape candidates to minimize
// the field-type widening the merge would cause. Classes whose reference
// fields agree on the exact declared types merge without widening, so reads
// need no compensating checkcast; classes left without an exact match are
// pooled into one remainder group where widening to java/lang/Object is
// unavoidable anyway.
type MinimizeFieldCasts struct{}

func (MinimizeFieldCasts) Name() string { return `MinimizeFieldCasts` }

func (MinimizeFieldCasts) Apply(g *merge.Group) []*merge.Group {
	exact := bucketize(g, func(c *jvm.Class) string { return exactFieldTypes(c) })

	var groups []*merge.Group
	remainder := merge.NewGroup()
	for _, b := range exact {
		if b.IsTrivial() {
			// No exact-type partner; pool with the other leftovers in first
			// appearance order.
			remainder.Add(b.Classes()...)
			continue
		}
		groups = append(groups, b)
	}
	if !remainder.IsTrivial() {
		groups = append(groups, remainder)
	}
	return groups
}

func exactFieldTypes(c *jvm.Class) string {
	var sb strings.Builder
	for _, f := range c.InstanceFields() {
		sb.WriteString(f.Type.Descriptor)
		sb.WriteByte(';')
	}
	return sb.String()
}
