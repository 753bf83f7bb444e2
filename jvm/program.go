package jvm

import (
	"fmt"
)

// Program is the whole-program class table. Classes are stored in an arena
// and addressed by a stable integer id assigned at insertion time; every
// set or map keyed by a class in the shrinker uses these ids rather than
// pointer identity, so merge decisions are reproducible across runs.
type Program struct {
	classes []*Class
	byType  map[TypeRef]int
}

// NewProgram creates an empty class table.
func NewProgram() *Program {
	return &Program{byType: map[TypeRef]int{}}
}

// Add inserts a class into the table and returns its stable id.
// Adding two classes with the same type is an input error.
func (p *Program) Add(c *Class) (int, error) {
	if _, exists := p.byType[c.Type]; exists {
		return -1, fmt.Errorf("duplicate class definition for %s", c.Type)
	}
	id := len(p.classes)
	p.classes = append(p.classes, c)
	p.byType[c.Type] = id
	return id, nil
}

// MustAdd is Add for programmatically constructed tables where duplicates
// can't happen. Panics on a duplicate definition.
func (p *Program) MustAdd(c *Class) int {
	id, err := p.Add(c)
	if err != nil {
		panic(err)
	}
	return id
}

// Size returns the number of classes in the table.
func (p *Program) Size() int { return len(p.classes) }

// Class returns the class with the given stable id.
func (p *Program) Class(id int) *Class { return p.classes[id] }

// ID returns the stable id for the given class type,
// or -1 if the type is not a program class (e.g. a library type).
func (p *Program) ID(t TypeRef) int {
	if id, ok := p.byType[t]; ok {
		return id
	}
	return -1
}

// ByType returns the program class with the given type, or nil for
// library and primitive types.
func (p *Program) ByType(t TypeRef) *Class {
	if id, ok := p.byType[t]; ok {
		return p.classes[id]
	}
	return nil
}

// Classes returns all program classes in insertion order. The returned
// slice is the table's backing storage and must not be modified.
func (p *Program) Classes() []*Class { return p.classes }
