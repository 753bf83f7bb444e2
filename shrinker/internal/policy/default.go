package policy

import (
	"github.com/jshrink/jshrink/jvm"
)

// Config carries the tuning knobs the default policy chain depends on.
type Config struct {
	// MaxGroupSize caps the number of classes merged into one target.
	MaxGroupSize int

	// MergeConstructors permits synthesizing dispatch constructors for
	// colliding constructor descriptors. When false, groups are split so
	// that no two members share a constructor parameter list.
	MergeConstructors bool
}

// Default returns the standard policy chain in its required order:
// eligibility filters first (cheap per-class rejections), then the
// structural bucketing policies, then the package-visibility split, and the
// size cap last so it observes the final partition.
func Default(program *jvm.Program, appInfo *jvm.AppInfo, cfg Config) []Policy {
	policies := []Policy{
		NoInterfaces{},
		NewNotPinned(appInfo),
		NewNoHorizontalClassMergingMark(appInfo),
		NoAnnotationClasses{},
		NoNativeMethods{},
		NoStaticSynchronizedMethods{},
		NoUnsatisfiedAbstractMethods{},
		NewNoRuntimeTypeChecks(program, appInfo),
		SameFeatureSplit{},
		SameNestHost{},
		SameParentClass{},
		SameInstanceFields{},
		NewRespectPackageBoundaries(program),
		MinimizeFieldCasts{},
	}
	if !cfg.MergeConstructors {
		policies = append(policies, NoConstructorCollisions{})
	}
	policies = append(policies, NewLimitGroupSize(cfg.MaxGroupSize))
	return policies
}
