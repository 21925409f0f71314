package bvh

import "github.com/achilleasa/gobvh/types"

// Fragment is a primitive's AABB plus its original index, created once
// per input primitive by the binned and quick builders (spec §3). The
// SBVH builder does not use Fragment: it clips its own working
// fragments and leaves BVH.Frags empty.
//
// The SIMD builder (C4) stores BMin negated so a parent's running min/max
// update collapses into a single componentwise max; the BVH.FragMinFlipped
// flag tells readers of Frags (the binned sweep and partition, Refit)
// whether they need to negate BMin back before using it.
type Fragment struct {
	BMin    types.Vec3
	BMax    types.Vec3
	PrimIdx uint32
	Clipped bool
}

// Bounds returns the fragment's (bmin, bmax), undoing the sign flip when
// flipped is true.
func (f *Fragment) Bounds(flipped bool) (bmin, bmax types.Vec3) {
	if flipped {
		return f.BMin.Neg(), f.BMax
	}
	return f.BMin, f.BMax
}

// Centroid returns the fragment's bounding-box midpoint.
func (f *Fragment) Centroid(flipped bool) types.Vec3 {
	bmin, bmax := f.Bounds(flipped)
	return bmin.Add(bmax).Mul(0.5)
}

// buildFragments creates one fragment per input primitive.
func buildFragments(in *Input, flipMin bool) []Fragment {
	n := in.count()
	frags := make([]Fragment, n)
	for i := uint32(0); i < n; i++ {
		bmin, bmax := in.Bounds(i)
		if flipMin {
			bmin = bmin.Neg()
		}
		frags[i] = Fragment{BMin: bmin, BMax: bmax, PrimIdx: i}
	}
	return frags
}
