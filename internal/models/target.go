package models

import "fmt"

// TargetKind identifies how a cache entry is invalidated
type TargetKind string

const (
	TargetKindTag  TargetKind = "tag"
	TargetKindPath TargetKind = "path"
)

// PathScope controls how far a path invalidation reaches
type PathScope string

const (
	// PathScopePage invalidates the single route
	PathScopePage PathScope = "page"

	// PathScopeLayout invalidates the route and everything nested under it
	PathScopeLayout PathScope = "layout"
)

// InvalidationTarget is one unit of cache invalidation
type InvalidationTarget struct {
	Kind  TargetKind `json:"kind"`
	Value string     `json:"value"`
	Scope PathScope  `json:"scope,omitempty"`
}

// Tag returns a tag invalidation target
func Tag(tag string) InvalidationTarget {
	return InvalidationTarget{Kind: TargetKindTag, Value: tag}
}

// Path returns a page-scoped path invalidation target
func Path(path string) InvalidationTarget {
	return InvalidationTarget{Kind: TargetKindPath, Value: path, Scope: PathScopePage}
}

// LayoutPath returns a layout-scoped path invalidation target
func LayoutPath(path string) InvalidationTarget {
	return InvalidationTarget{Kind: TargetKindPath, Value: path, Scope: PathScopeLayout}
}

func (t InvalidationTarget) String() string {
	if t.Kind == TargetKindPath && t.Scope == PathScopeLayout {
		return fmt.Sprintf("path:%s (layout)", t.Value)
	}
	return fmt.Sprintf("%s:%s", t.Kind, t.Value)
}

// TargetFailure records a target whose invalidation call failed
type TargetFailure struct {
	Target InvalidationTarget
	Err    error
}

// DispatchReport summarizes the outcome of dispatching a set of targets
type DispatchReport struct {
	Succeeded []InvalidationTarget
	Failed    []TargetFailure
}

// HasFailures returns true if any invalidation call failed
func (r DispatchReport) HasFailures() bool {
	return len(r.Failed) > 0
}

// FailedTargets returns the string form of every failed target
func (r DispatchReport) FailedTargets() []string {
	out := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Target.String())
	}
	return out
}
