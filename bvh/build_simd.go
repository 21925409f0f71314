package bvh

// BuildSIMD constructs a canonical 2-wide BVH using the same binned SAH
// search as Build (spec §4.2, C4), but with the fragment sign convention
// the SIMD backends expect: BMin is stored negated so a running min/max
// update during traversal/refit collapses into a single max operation.
// The returned tree has FragMinFlipped=true; code that reads Frags (the
// binned sweep and partition, Refit) reads bounds through
// Fragment.Bounds with that flag, which negates BMin back.
//
// This package has no vector-register backend (spec §9: the only SIMD
// candidate in the retrieved dependency set, ajroetker/go-highway, needs
// an experimental build tag and only exposes flat dot/transform ops, not
// an AABB-binning primitive), so BuildSIMD runs the scalar binned sweep
// that spec §9 allows as a fallback backend. It exists as a distinct
// entry point — rather than a flag on Build — because the two builders
// commit to different fragment conventions and callers should not be
// able to mix them.
func BuildSIMD(in *Input, opts *Options) *BVH {
	return buildBinned(in, opts, true)
}
