package merge

import (
	"github.com/jshrink/jshrink/jvm"
)

// FieldAccessModifier collects the class-id field reads and writes created
// by dispatch synthesis, to be replayed into the program's field-access
// tables once merging has committed. Without this, later dead-field
// elimination would see the class-id fields as unread and strip them.
type FieldAccessModifier struct {
	reads  []fieldAccess
	writes []fieldAccess
}

type fieldAccess struct {
	field   jvm.FieldRef
	context jvm.MethodRef
}

// NewFieldAccessModifier creates an empty modifier.
func NewFieldAccessModifier() *FieldAccessModifier {
	return &FieldAccessModifier{}
}

// RecordRead records a synthesized read of the class-id field.
func (m *FieldAccessModifier) RecordRead(f jvm.FieldRef, context jvm.MethodRef) {
	m.reads = append(m.reads, fieldAccess{field: f, context: context})
}

// RecordWrite records a synthesized write of the class-id field.
func (m *FieldAccessModifier) RecordWrite(f jvm.FieldRef, context jvm.MethodRef) {
	m.writes = append(m.writes, fieldAccess{field: f, context: context})
}

// Merge appends another modifier's records. Used to combine the per-group
// modifiers in group commit order after the parallel merge phase joins.
func (m *FieldAccessModifier) Merge(other *FieldAccessModifier) {
	m.reads = append(m.reads, other.reads...)
	m.writes = append(m.writes, other.writes...)
}

// ApplyTo replays the collected accesses into the given tables.
func (m *FieldAccessModifier) ApplyTo(coll *jvm.FieldAccessCollection) {
	for _, r := range m.reads {
		coll.RecordRead(r.field, r.context)
	}
	for _, w := range m.writes {
		coll.RecordWrite(w.field, w.context)
	}
}
