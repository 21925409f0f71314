// Package raytrace holds the ray/hit record and the primitive
// intersection routines every traversal kernel in traverse/ calls into.
package raytrace

import "github.com/achilleasa/gobvh/types"

// Hit is the 16-byte hit record spec §6 describes: distance plus
// barycentric u/v and the primitive that was hit. A miss leaves it at
// its initial state (t unchanged, prim left at its sentinel value).
type Hit struct {
	T    float32
	U, V float32
	Prim uint32
}

// NoHit is the sentinel primitive index meaning "nothing hit yet".
const NoHit = ^uint32(0)

// NewHit returns a hit record initialized to the ray's maximum travel
// distance, per spec §6 ("Initial hit.t is the ray's maximum distance").
func NewHit(maxT float32) Hit {
	return Hit{T: maxT, Prim: NoHit}
}

// Ray is the traversal input spec §6 lays out: an origin, a direction,
// and its componentwise safe reciprocal (precomputed once so the slab
// test never divides at runtime), stored as three unpadded Vec3s (36
// bytes), plus the mutable 16-byte hit record every kernel narrows as it
// walks the tree.
type Ray struct {
	O  types.Vec3
	D  types.Vec3
	RD types.Vec3
	Hit Hit
}

// NewRay builds a ray from an origin/direction pair, computing rD via
// types.SafeReciprocal and initializing Hit to maxT.
func NewRay(o, d types.Vec3, maxT float32) Ray {
	return Ray{O: o, D: d, RD: types.SafeReciprocal(d), Hit: NewHit(maxT)}
}
