package jvm

// AppInfo carries the facts about the program that the reachability
// analysis established before the shrinker runs: the live class order,
// keep-info predicates, and the types observed in runtime type checks.
// The shrinker trusts this information and never re-validates it.
type AppInfo struct {
	// LiveTypes is the live program classes in the deterministic order the
	// reachability analysis produced them. Merge candidates are collected in
	// this order.
	LiveTypes []TypeRef

	// pinnedTypes, pinnedFields and pinnedMethods hold references that must
	// retain their identity.
	pinnedTypes   map[TypeRef]struct{}
	pinnedFields  map[string]struct{}
	pinnedMethods map[string]struct{}

	// noMerging holds types excluded from horizontal class merging by rule.
	noMerging map[TypeRef]struct{}

	// runtimeChecked holds types that appear in instanceof, checkcast or
	// exception-guard instructions.
	runtimeChecked map[TypeRef]struct{}

	// FieldAccess is the program's field-access tables.
	FieldAccess *FieldAccessCollection
}

// NewAppInfo creates an empty AppInfo. Callers populate the live order and
// the predicates via the Pin*/SetNoMerging/AddRuntimeCheck mutators before
// handing it to the shrinker; the shrinker treats it as read-only.
func NewAppInfo() *AppInfo {
	return &AppInfo{
		pinnedTypes:    map[TypeRef]struct{}{},
		pinnedFields:   map[string]struct{}{},
		pinnedMethods:  map[string]struct{}{},
		noMerging:      map[TypeRef]struct{}{},
		runtimeChecked: map[TypeRef]struct{}{},
		FieldAccess:    NewFieldAccessCollection(),
	}
}

// PinType marks a type as identity-preserving.
func (a *AppInfo) PinType(t TypeRef) { a.pinnedTypes[t] = struct{}{} }

// PinField marks a field as identity-preserving.
func (a *AppInfo) PinField(f FieldRef) { a.pinnedFields[f.Key()] = struct{}{} }

// PinMethod marks a method as identity-preserving.
func (a *AppInfo) PinMethod(m MethodRef) { a.pinnedMethods[m.Key()] = struct{}{} }

// SetNoMerging excludes a type from horizontal class merging.
func (a *AppInfo) SetNoMerging(t TypeRef) { a.noMerging[t] = struct{}{} }

// AddRuntimeCheck records that a type is the guard of an instanceof,
// checkcast or catch instruction somewhere in the program.
func (a *AppInfo) AddRuntimeCheck(t TypeRef) { a.runtimeChecked[t] = struct{}{} }

// IsPinnedType reports whether the type must retain its identity.
func (a *AppInfo) IsPinnedType(t TypeRef) bool {
	_, ok := a.pinnedTypes[t]
	return ok
}

// IsPinnedField reports whether the field must retain its identity.
func (a *AppInfo) IsPinnedField(f FieldRef) bool {
	_, ok := a.pinnedFields[f.Key()]
	return ok
}

// IsPinnedMethod reports whether the method must retain its identity.
func (a *AppInfo) IsPinnedMethod(m MethodRef) bool {
	_, ok := a.pinnedMethods[m.Key()]
	return ok
}

// IsNoHorizontalClassMerging reports whether the type is excluded from
// horizontal class merging by an explicit rule.
func (a *AppInfo) IsNoHorizontalClassMerging(t TypeRef) bool {
	_, ok := a.noMerging[t]
	return ok
}

// IsRuntimeTypeChecked reports whether the type appears in any runtime
// type-check instruction.
func (a *AppInfo) IsRuntimeTypeChecked(t TypeRef) bool {
	_, ok := a.runtimeChecked[t]
	return ok
}

// PruneMergedTypes removes the merged-away source types from the live order.
// mergedAway reports whether a type was a merge source.
func (a *AppInfo) PruneMergedTypes(mergedAway func(TypeRef) bool) {
	live := a.LiveTypes[:0]
	for _, t := range a.LiveTypes {
		if !mergedAway(t) {
			live = append(live, t)
		}
	}
	a.LiveTypes = live
}

// FieldAccessInfo records the contexts reading and writing one field.
type FieldAccessInfo struct {
	Field  FieldRef
	Reads  []MethodRef
	Writes []MethodRef
}

// FieldAccessCollection is the program's field-access tables, keyed by
// field reference.
type FieldAccessCollection struct {
	infos map[string]*FieldAccessInfo
}

// NewFieldAccessCollection creates an empty collection.
func NewFieldAccessCollection() *FieldAccessCollection {
	return &FieldAccessCollection{infos: map[string]*FieldAccessInfo{}}
}

// Get returns the access info for the field, or nil if never accessed.
func (c *FieldAccessCollection) Get(f FieldRef) *FieldAccessInfo {
	return c.infos[f.Key()]
}

func (c *FieldAccessCollection) getOrAdd(f FieldRef) *FieldAccessInfo {
	info, ok := c.infos[f.Key()]
	if !ok {
		info = &FieldAccessInfo{Field: f}
		c.infos[f.Key()] = info
	}
	return info
}

// RecordRead records a read of the field from the given context.
func (c *FieldAccessCollection) RecordRead(f FieldRef, context MethodRef) {
	info := c.getOrAdd(f)
	info.Reads = append(info.Reads, context)
}

// RecordWrite records a write of the field from the given context.
func (c *FieldAccessCollection) RecordWrite(f FieldRef, context MethodRef) {
	info := c.getOrAdd(f)
	info.Writes = append(info.Writes, context)
}
