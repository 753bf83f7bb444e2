package policy

import (
	"strings"

	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker/internal/merge"
)

// SameFeatureSplit splits groups so that no group crosses an artifact
// partition boundary: all members must belong to the same feature split
// (or all to the base artifact).
type SameFeatureSplit struct{}

func (SameFeatureSplit) Name() string { return `SameFeatureSplit` }

func (SameFeatureSplit) Apply(g *merge.Group) []*merge.Group {
	return bucketize(g, func(c *jvm.Class) string { return c.FeatureSplit })
}

// SameNestHost splits groups by nest host: classes of different nests have
// different private-access perimeters and must not collapse into one.
type SameNestHost struct{}

func (SameNestHost) Name() string { return `SameNestHost` }

func (SameNestHost) Apply(g *merge.Group) []*merge.Group {
	return bucketize(g, func(c *jvm.Class) string { return c.NestHost.Descriptor })
}

// SameParentClass splits groups by superclass and implemented interface
// set. Members of a committed group share one supertype shape, so merging
// never changes the answers of supertype-based runtime checks.
type SameParentClass struct{}

func (SameParentClass) Name() string { return `SameParentClass` }

func (SameParentClass) Apply(g *merge.Group) []*merge.Group {
	return bucketize(g, func(c *jvm.Class) string {
		key := c.Superclass.Descriptor
		if len(c.Interfaces) > 0 {
			ifaces := make([]string, len(c.Interfaces))
			for i, t := range c.Interfaces {
				ifaces[i] = t.Descriptor
			}
			// Interface order is declaration order and part of the key:
			// reordering interfaces is observable through reflection.
			key += `+` + strings.Join(ifaces, `+`)
		}
		return key
	})
}

// SameInstanceFields splits groups by instance-field shape: slot count,
// per-slot access flags, and per-slot kind. Primitive slots must match
// exactly; reference slots may hold different class types, which the merger
// widens to java/lang/Object.
type SameInstanceFields struct{}

func (SameInstanceFields) Name() string { return `SameInstanceFields` }

func (SameInstanceFields) Apply(g *merge.Group) []*merge.Group {
	return bucketize(g, func(c *jvm.Class) string { return instanceFieldShape(c) })
}

// instanceFieldShape describes the layout the merger must preserve.
// Reference-typed slots contribute only a reference marker (plus array
// depth), primitives contribute their exact descriptor.
func instanceFieldShape(c *jvm.Class) string {
	var sb strings.Builder
	for _, f := range c.InstanceFields() {
		sb.WriteString(slotKind(f.Type))
		sb.WriteByte(':')
		if f.Flags.IsFinal() {
			sb.WriteByte('f')
		}
		sb.WriteByte(';')
	}
	return sb.String()
}

func slotKind(t jvm.TypeRef) string {
	elem := t.ElementType()
	prefix := strings.Repeat(`[`, t.ArrayDims())
	if elem.IsClassType() {
		return prefix + `L`
	}
	return prefix + elem.Descriptor
}
