// Package policy implements the merge-eligibility pipeline: an ordered
// chain of soundness rules that partitions the merge candidates into
// disjoint groups, each internally safe to collapse into one class.
//
// Policies come in two kinds. A single-class policy filters individual
// classes out of every group; a multi-class policy splits each group into
// finer groups. Policies never fail for structurally valid input: a class
// a policy dislikes simply ends up alone, and groups reduced below two
// members are silently dropped.
package policy

import (
	log "github.com/sirupsen/logrus"

	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker/internal/merge"
)

// Policy is one rule of the pipeline. Concrete policies implement exactly
// one of SingleClassPolicy or MultiClassPolicy.
type Policy interface {
	Name() string
}

// SingleClassPolicy vets one class at a time.
type SingleClassPolicy interface {
	Policy

	// CanMerge reports whether the class may participate in any group.
	CanMerge(c *jvm.Class) bool
}

// MultiClassPolicy refines one group into zero or more groups.
type MultiClassPolicy interface {
	Policy

	// Apply splits the group. Returned groups must preserve the relative
	// order of the classes they kept; trivial groups may be returned and
	// are dropped by the executor.
	Apply(g *merge.Group) []*merge.Group
}

// Executor runs an ordered policy chain over an initial partition. The run
// is one-pass and never backtracks: each policy sees only the partition the
// previous policies produced.
type Executor struct{}

// Run applies the policies in order and returns the surviving non-trivial
// groups. Group and class iteration follows input order throughout, so the
// resulting partition is deterministic for identical input.
func (Executor) Run(groups []*merge.Group, policies []Policy) []*merge.Group {
	groups = dropTrivial(groups)
	for _, p := range policies {
		before := countClasses(groups)
		switch p := p.(type) {
		case SingleClassPolicy:
			for _, g := range groups {
				g.RemoveIf(func(c *jvm.Class) bool { return !p.CanMerge(c) })
			}
		case MultiClassPolicy:
			var refined []*merge.Group
			for _, g := range groups {
				refined = append(refined, p.Apply(g)...)
			}
			groups = refined
		default:
			panic(`policy must implement SingleClassPolicy or MultiClassPolicy`)
		}
		groups = dropTrivial(groups)

		if after := countClasses(groups); after != before {
			log.Debugf("policy %s removed %d merge candidates (%d remain in %d groups)",
				p.Name(), before-after, after, len(groups))
		}
	}
	return groups
}

func dropTrivial(groups []*merge.Group) []*merge.Group {
	kept := groups[:0]
	for _, g := range groups {
		if !g.IsTrivial() {
			kept = append(kept, g)
		}
	}
	return kept
}

func countClasses(groups []*merge.Group) int {
	n := 0
	for _, g := range groups {
		n += g.Size()
	}
	return n
}

// bucketize splits a group by a string key, preserving class order inside
// each bucket and ordering buckets by first appearance.
func bucketize(g *merge.Group, key func(*jvm.Class) string) []*merge.Group {
	var order []string
	buckets := map[string]*merge.Group{}
	for _, c := range g.Classes() {
		k := key(c)
		b, ok := buckets[k]
		if !ok {
			b = merge.NewGroup()
			buckets[k] = b
			order = append(order, k)
		}
		b.Add(c)
	}
	groups := make([]*merge.Group, 0, len(order))
	for _, k := range order {
		groups = append(groups, buckets[k])
	}
	return groups
}
