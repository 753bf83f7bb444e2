package merge

import (
	"github.com/jshrink/jshrink/jvm"
)

// MergedClasses records which types were merged away and where they went:
// the source type → target type erasure produced by committed groups.
// Downstream passes use it to answer "was this type merged" and diagnostics
// use it to report merge decisions. Iteration order is commit order.
type MergedClasses struct {
	targets map[jvm.TypeRef]jvm.TypeRef
	sources []jvm.TypeRef

	targetSet map[jvm.TypeRef]struct{}
}

// NewMergedClasses creates an empty record.
func NewMergedClasses() *MergedClasses {
	return &MergedClasses{
		targets:   map[jvm.TypeRef]jvm.TypeRef{},
		targetSet: map[jvm.TypeRef]struct{}{},
	}
}

// Record adds one source → target erasure.
func (m *MergedClasses) Record(source, target jvm.TypeRef) {
	if _, seen := m.targets[source]; !seen {
		m.sources = append(m.sources, source)
	}
	m.targets[source] = target
	m.targetSet[target] = struct{}{}
}

// IsMergeSource reports whether the type was merged away.
func (m *MergedClasses) IsMergeSource(t jvm.TypeRef) bool {
	_, ok := m.targets[t]
	return ok
}

// IsMergeTarget reports whether the type is the survivor of some group.
func (m *MergedClasses) IsMergeTarget(t jvm.TypeRef) bool {
	_, ok := m.targetSet[t]
	return ok
}

// TargetFor returns the merge target for a source type. For types that were
// not merged away it returns the type itself.
func (m *MergedClasses) TargetFor(t jvm.TypeRef) jvm.TypeRef {
	if target, ok := m.targets[t]; ok {
		return target
	}
	return t
}

// Sources returns the merged-away types in commit order.
func (m *MergedClasses) Sources() []jvm.TypeRef { return m.sources }

// Len returns the number of merged-away types.
func (m *MergedClasses) Len() int { return len(m.sources) }
