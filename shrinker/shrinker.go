// Package shrinker drives the horizontal class-merging phase: candidate
// collection, the policy pipeline, per-group merging, the whole-program
// tree fix, and the final keep-info pruning.
//
// The phase is one internal step of a larger compilation. It consumes the
// live-class order and keep-info the reachability analysis produced, and
// it produces the finalized graph lens every later pass rewrites its
// references through.
package shrinker

import (
	"context"
	"runtime"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jshrink/jshrink/internal/errorList"
	"github.com/jshrink/jshrink/internal/experiments"
	"github.com/jshrink/jshrink/jvm"
	"github.com/jshrink/jshrink/shrinker/internal/hierarchy"
	"github.com/jshrink/jshrink/shrinker/internal/merge"
	"github.com/jshrink/jshrink/shrinker/internal/policy"
	"github.com/jshrink/jshrink/shrinker/internal/treefix"
	"github.com/jshrink/jshrink/shrinker/lens"
)

// Options are the tuning knobs of the merging phase.
type Options struct {
	// Enabled gates the whole phase. A disabled run leaves the program
	// untouched and returns an identity result.
	Enabled bool

	// MaxGroupSize caps the number of classes merged into one target.
	MaxGroupSize int

	// MaxSyntheticArgs caps the marker parameters appended to a constructor
	// to resolve descriptor collisions.
	MaxSyntheticArgs int

	// MergeConstructors permits dispatch-constructor synthesis. When false,
	// groups are split so constructor descriptors never collide.
	MergeConstructors bool

	// Workers caps the concurrency of the merge and tree-fix phases.
	// Zero means one worker per CPU.
	Workers int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() Options {
	return Options{
		Enabled:           true,
		MaxGroupSize:      30,
		MaxSyntheticArgs:  3,
		MergeConstructors: true,
	}
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

// Result is what the phase hands to downstream passes.
type Result struct {
	// Lens is the finalized graph lens covering every rewrite the phase
	// performed.
	Lens lens.Lens

	// MergedClasses records which types were merged away and where.
	MergedClasses *merge.MergedClasses

	// FieldAccess describes the synthesized class-id field accesses that
	// were recorded into the program's field-access tables.
	FieldAccess *merge.FieldAccessModifier
}

// HorizontalClassMerger runs the merging phase over one program snapshot.
type HorizontalClassMerger struct {
	opts Options
}

// NewHorizontalClassMerger creates the phase with the given options.
func NewHorizontalClassMerger(opts Options) *HorizontalClassMerger {
	return &HorizontalClassMerger{opts: opts}
}

// Run executes the phase. The program is mutated in place; appInfo's live
// order and field-access tables are updated to reflect the merge. Any
// internal invariant violation aborts with an error and the program state
// must then be discarded, the lens only describes a fully committed run.
func (h *HorizontalClassMerger) Run(ctx context.Context, program *jvm.Program, appInfo *jvm.AppInfo) (*Result, error) {
	if !h.opts.Enabled {
		return &Result{
			Lens:          lens.Identity(),
			MergedClasses: merge.NewMergedClasses(),
			FieldAccess:   merge.NewFieldAccessModifier(),
		}, nil
	}
	if experiments.Env.MergeInterfaceDefaults {
		log.Warnf("experiment merge-interface-defaults is enabled but interface merging is not performed by this pipeline")
	}

	// Reject structurally invalid input early: a cyclic hierarchy would
	// make the top-down fixup order undefined.
	graph, err := hierarchy.Build(program)
	if err != nil {
		return nil, err
	}
	log.Debugf("horizontal class merging over %d classes (%d hierarchy depths)",
		program.Size(), graph.DepthCount())

	groups := h.runPolicies(program, appInfo)
	if len(groups) == 0 {
		log.Debugf("horizontal class merging: no eligible groups")
		return &Result{
			Lens:          lens.Identity(),
			MergedClasses: merge.NewMergedClasses(),
			FieldAccess:   merge.NewFieldAccessModifier(),
		}, nil
	}

	builder := lens.NewBuilder(lens.Identity())
	modifiers, err := h.mergeGroups(ctx, program, builder, groups)
	if err != nil {
		return nil, err
	}

	merged := merge.NewMergedClasses()
	for _, g := range groups {
		for _, c := range g.Classes() {
			if c != g.Target() {
				merged.Record(c.Type, g.Target().Type)
			}
		}
	}

	mergeLens := builder.Build()
	fixer := treefix.New(program, merged, h.opts.MaxSyntheticArgs, h.opts.workers())
	final, err := fixer.Run(ctx, mergeLens)
	if err != nil {
		return nil, err
	}

	// Combine the per-group field-access records in group commit order and
	// replay them into the program's tables.
	fieldAccess := merge.NewFieldAccessModifier()
	for _, m := range modifiers {
		fieldAccess.Merge(m)
	}
	fieldAccess.ApplyTo(appInfo.FieldAccess)

	appInfo.PruneMergedTypes(merged.IsMergeSource)

	log.Infof("horizontally merged %d classes into %d targets", merged.Len(), len(groups))
	return &Result{Lens: final, MergedClasses: merged, FieldAccess: fieldAccess}, nil
}

// runPolicies collects the merge candidates in live order and applies the
// default policy chain.
func (h *HorizontalClassMerger) runPolicies(program *jvm.Program, appInfo *jvm.AppInfo) []*merge.Group {
	initial := merge.NewGroup()
	for _, t := range appInfo.LiveTypes {
		if c := program.ByType(t); c != nil {
			initial.Add(c)
		}
	}

	policies := policy.Default(program, appInfo, policy.Config{
		MaxGroupSize:      h.opts.MaxGroupSize,
		MergeConstructors: h.opts.MergeConstructors,
	})
	return policy.Executor{}.Run([]*merge.Group{initial}, policies)
}

// maxReportedMergeErrors caps the per-group errors surfaced from one run;
// everything past the cap collapses into ErrTooManyErrors.
const maxReportedMergeErrors = 10

// mergeGroups merges every group, concurrently across groups: groups share
// no classes, and the lens builder accepts concurrent write-once inserts.
// The returned modifiers are indexed by group so callers can combine them
// in deterministic group order after the join. Every failed group is
// reported, not just the first: the phase aborts as a whole either way,
// and the diagnostic should name each offending group.
func (h *HorizontalClassMerger) mergeGroups(ctx context.Context, program *jvm.Program,
	builder *lens.Builder, groups []*merge.Group) ([]*merge.FieldAccessModifier, error) {
	merger := merge.NewMerger(program, builder, h.opts.MaxSyntheticArgs)
	modifiers := make([]*merge.FieldAccessModifier, len(groups))
	mergeErrs := make([]error, len(groups))

	workers := h.opts.workers()
	if experiments.Env.SequentialMerge {
		workers = 1
	}

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			modifiers[i], mergeErrs[i] = merger.Merge(group)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var errs errorList.ErrorList
	for _, err := range mergeErrs {
		errs = errs.Append(err)
	}
	if err := errs.Trim(maxReportedMergeErrors).ErrOrNil(); err != nil {
		return nil, err
	}
	return modifiers, nil
}
