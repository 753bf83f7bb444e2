package shrinker

import (
	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker/internal/hierarchy"
)

// HierarchyMermaid renders the program class hierarchy as a Mermaid diagram,
// grouped by hierarchy depth. Useful for debugging merge decisions.
func HierarchyMermaid(p *jvm.Program) (string, error) {
	g, err := hierarchy.Build(p)
	if err != nil {
		return "", err
	}
	return g.ToMermaid(), nil
}
