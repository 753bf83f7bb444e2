// Package lens provides the graph lens: an immutable, chainable record of
// every reference rewrite the shrinker performed. Later phases translate
// original-program references to current ones through it.
//
// A lens is a chain of nodes held in a shared arena. Each node carries the
// rewrites contributed by one phase plus the index of the previous node;
// lookups walk the chain newest to oldest and fall through to identity.
// "Updating" a lens never mutates it: a Builder produces a new node that
// references the existing chain, so a lens value held by a concurrent
// reader stays valid forever.
package lens

import (
	"fmt"
	"sync"

	"github.com/jshrink/jshrink/jvm"
)

// node is one link of the lens chain. The maps are keyed by the canonical
// string key of the original reference.
type node struct {
	typeMap   map[jvm.TypeRef]jvm.TypeRef
	fieldMap  map[string]jvm.FieldRef
	methodMap map[string]jvm.MethodRef

	// extraParams records the synthetic parameter types appended to a
	// rewritten method, keyed by the original method key. Call sites use it
	// to materialize the extra arguments (e.g. a class-id constant followed
	// by null markers).
	extraParams map[string][]ExtraParam

	// originals maps a current method key back to one representative
	// original reference, for diagnostics. Many originals may collapse to
	// one current reference; the first registration wins.
	originals map[string]jvm.MethodRef

	// previous is the arena index of the prior node, or -1 for the
	// oldest node of the chain.
	previous int
}

// ExtraParam describes one synthetic parameter appended to a method by the
// shrinker.
type ExtraParam struct {
	Type jvm.TypeRef

	// Value is the constant argument call sites must pass, for
	// discriminator parameters. Marker parameters take a null and
	// leave Value at zero with Marker set.
	Value  int
	Marker bool
}

// Lens is a view of the rewrite chain ending at a particular node.
// The zero value is not valid; use Identity or a Builder.
type Lens struct {
	arena *arena
	head  int
}

// arena owns the nodes of a chain family. Nodes are append-only; existing
// indices never change, which is what makes old Lens values immutable.
type arena struct {
	mu    sync.Mutex
	nodes []*node
}

func (a *arena) add(n *node) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nodes = append(a.nodes, n)
	return len(a.nodes) - 1
}

func (a *arena) at(i int) *node {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nodes[i]
}

// Identity returns a lens with no rewrites.
func Identity() Lens {
	a := &arena{}
	a.add(&node{previous: -1})
	return Lens{arena: a, head: 0}
}

// IsIdentity reports whether the lens performs no rewrites at all.
func (l Lens) IsIdentity() bool {
	for i := l.head; i >= 0; {
		n := l.arena.at(i)
		if len(n.typeMap) > 0 || len(n.fieldMap) > 0 || len(n.methodMap) > 0 {
			return false
		}
		i = n.previous
	}
	return true
}

// chain returns the node indices of the lens, oldest first. Lookups fold
// over this order so that a rewrite recorded by an earlier phase composes
// with renames recorded by later ones.
func (l Lens) chain() []int {
	var idx []int
	for i := l.head; i >= 0; i = l.arena.at(i).previous {
		idx = append(idx, i)
	}
	for i, j := 0, len(idx)-1; i < j; i, j = i+1, j-1 {
		idx[i], idx[j] = idx[j], idx[i]
	}
	return idx
}

// LookupType translates an original type reference to its current one.
func (l Lens) LookupType(t jvm.TypeRef) jvm.TypeRef {
	// Array types follow their element type through the lens.
	if dims := t.ArrayDims(); dims > 0 {
		elem := l.LookupType(t.ElementType())
		return jvm.TypeRef{Descriptor: t.Descriptor[:dims] + elem.Descriptor}
	}
	for _, i := range l.chain() {
		if cur, ok := l.arena.at(i).typeMap[t]; ok {
			t = cur
		}
	}
	return t
}

// LookupField translates an original field reference to its current one.
// Fields that were never explicitly remapped still follow the type rewrites
// of their holder and declared type, which covers references to inherited
// fields of a merged-away holder.
func (l Lens) LookupField(f jvm.FieldRef) jvm.FieldRef {
	for _, i := range l.chain() {
		if cur, ok := l.arena.at(i).fieldMap[f.Key()]; ok {
			f = cur
		}
	}
	f.Holder = l.LookupType(f.Holder)
	f.Type = l.LookupType(f.Type)
	return f
}

// LookupMethod translates an original method reference to its current one.
// Methods that were never explicitly remapped still follow the type
// rewrites of their holder and descriptor, which covers references to
// inherited methods of a merged-away holder.
func (l Lens) LookupMethod(m jvm.MethodRef) jvm.MethodRef {
	for _, i := range l.chain() {
		if cur, ok := l.arena.at(i).methodMap[m.Key()]; ok {
			m = cur
		}
	}
	m.Holder = l.LookupType(m.Holder)
	m.Proto = l.substProto(m.Proto)
	return m
}

func (l Lens) substProto(p jvm.Proto) jvm.Proto {
	params := make([]jvm.TypeRef, len(p.Params))
	for i, t := range p.Params {
		params[i] = l.LookupType(t)
	}
	return jvm.Proto{Params: params, Return: l.LookupType(p.Return)}
}

// ExtraParams returns the synthetic parameters appended to the original
// method across every rewrite, in the order they were appended, or nil if
// the method gained none.
func (l Lens) ExtraParams(m jvm.MethodRef) []ExtraParam {
	var extra []ExtraParam
	for _, i := range l.chain() {
		n := l.arena.at(i)
		if e, ok := n.extraParams[m.Key()]; ok {
			extra = append(extra, e...)
		}
		if cur, ok := n.methodMap[m.Key()]; ok {
			m = cur
		}
	}
	return extra
}

// OriginalMethod returns a representative original reference for a current
// method, unwinding every rewrite in the chain newest to oldest. When
// several originals collapsed into one current method the representative is
// the first one registered. Methods that were never rewritten are their own
// original.
func (l Lens) OriginalMethod(m jvm.MethodRef) jvm.MethodRef {
	for i := l.head; i >= 0; i = l.arena.at(i).previous {
		if orig, ok := l.arena.at(i).originals[m.Key()]; ok {
			m = orig
		}
	}
	return m
}

// RewriteType implements jvm.RefRewriter.
func (l Lens) RewriteType(t jvm.TypeRef) jvm.TypeRef { return l.LookupType(t) }

// RewriteField implements jvm.RefRewriter.
func (l Lens) RewriteField(f jvm.FieldRef) jvm.FieldRef { return l.LookupField(f) }

// RewriteMethod implements jvm.RefRewriter.
func (l Lens) RewriteMethod(m jvm.MethodRef) jvm.MethodRef { return l.LookupMethod(m) }

// Builder accumulates rewrites for one new lens node. It is safe for
// concurrent use: every key may be registered at most once, and a second
// registration of the same original reference panics as an internal
// invariant violation.
type Builder struct {
	mu sync.Mutex
	n  *node

	parent Lens
	built  bool
}

// NewBuilder creates a builder whose Build result will chain to parent.
func NewBuilder(parent Lens) *Builder {
	return &Builder{
		n: &node{
			typeMap:     map[jvm.TypeRef]jvm.TypeRef{},
			fieldMap:    map[string]jvm.FieldRef{},
			methodMap:   map[string]jvm.MethodRef{},
			extraParams: map[string][]ExtraParam{},
			originals:   map[string]jvm.MethodRef{},
		},
		parent: parent,
	}
}

// MapType registers a type rewrite.
func (b *Builder) MapType(from, to jvm.TypeRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkOpen()
	if prev, ok := b.n.typeMap[from]; ok && prev != to {
		panic(fmt.Errorf("lens: type %s already mapped to %s, cannot remap to %s", from, prev, to))
	}
	b.n.typeMap[from] = to
}

// MapField registers a field rewrite.
func (b *Builder) MapField(from, to jvm.FieldRef) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkOpen()
	if prev, ok := b.n.fieldMap[from.Key()]; ok && prev != to {
		panic(fmt.Errorf("lens: field %s already mapped to %s, cannot remap to %s", from, prev, to))
	}
	b.n.fieldMap[from.Key()] = to
}

// MapMethod registers a method rewrite, optionally with synthetic
// parameters appended to the new reference.
func (b *Builder) MapMethod(from, to jvm.MethodRef, extra ...ExtraParam) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkOpen()
	if prev, ok := b.n.methodMap[from.Key()]; ok && prev.Key() != to.Key() {
		panic(fmt.Errorf("lens: method %s already mapped to %s, cannot remap to %s", from, prev, to))
	}
	b.n.methodMap[from.Key()] = to
	if len(extra) > 0 {
		b.n.extraParams[from.Key()] = extra
	}
	if _, ok := b.n.originals[to.Key()]; !ok {
		b.n.originals[to.Key()] = from
	}
}

// HasMethodMapping reports whether the original method has already been
// registered in this builder.
func (b *Builder) HasMethodMapping(from jvm.MethodRef) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.n.methodMap[from.Key()]
	return ok
}

func (b *Builder) checkOpen() {
	if b.built {
		panic(fmt.Errorf("lens: builder used after Build"))
	}
}

// Build freezes the accumulated rewrites into a new immutable lens chained
// to the builder's parent. The builder must not be used afterwards.
func (b *Builder) Build() Lens {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkOpen()
	b.built = true
	b.n.previous = b.parent.head
	idx := b.parent.arena.add(b.n)
	return Lens{arena: b.parent.arena, head: idx}
}
