package bvh

import "github.com/achilleasa/gobvh/types"

// BoundsFunc supplies the AABB of a custom (non-triangle) primitive. It is
// the concrete shape of spec §3's "(b) an AABB supplied by a
// user-provided bounds-of-primitive-i function."
type BoundsFunc func(primIdx uint32) (bmin, bmax types.Vec3)

// IntersectFunc narrows a closest-hit ray against custom primitive
// primIdx, reporting whether it found a closer hit. hitT/hitU/hitV/hitPrim
// name the fields of the ray's hit record it should narrow; it is passed
// the current best distance so it can reject anything farther.
type IntersectFunc func(primIdx uint32, rayO, rayD types.Vec3, bestT float32) (t, u, v float32, ok bool)

// OccludedFunc is IntersectFunc's any-hit sibling: it reports only whether
// primitive primIdx occludes the ray before maxT, without producing
// barycentric coordinates.
type OccludedFunc func(primIdx uint32, rayO, rayD types.Vec3, maxT float32) bool

// Input describes the primitive set a build runs over: either a triangle
// soup (optionally indexed) or a custom AABB set driven by BoundsFunc.
// Exactly one of (Verts) or (BoundsFunc) must be set.
type Input struct {
	// Verts holds 3*N vec4 vertices (w is caller payload, e.g. a packed
	// color) for a triangle soup. Mutually exclusive with BoundsFunc.
	Verts []types.Vec4

	// Indices, if non-nil, holds 3*N indices into Verts; triangle i uses
	// vertices Verts[Indices[3i]], Verts[Indices[3i+1]], Verts[Indices[3i+2]].
	// If nil, triangle i uses Verts[3i], Verts[3i+1], Verts[3i+2] directly.
	Indices []uint32

	// BoundsFunc, if set, makes this an AABB/custom-primitive build, and
	// Verts/Indices are ignored. Mutually exclusive with Verts.
	BoundsFunc BoundsFunc

	// Intersect/Occluded supply the closest-hit/any-hit tests for
	// BoundsFunc-driven leaves; traversal kernels use the built-in
	// Möller-Trumbore test for triangle meshes regardless of these being
	// set. A custom primitive callback that fails to intersect simply
	// returns false/ok=false (spec §4.14).
	Intersect IntersectFunc
	Occluded  OccludedFunc

	// N is the primitive count. For a triangle soup this defaults to
	// len(Verts)/3 (or len(Indices)/3 when indexed) when left zero.
	N uint32
}

// IsTriangleMesh reports whether this input describes triangle geometry
// (as opposed to custom AABB primitives).
func (in *Input) IsTriangleMesh() bool {
	return in.BoundsFunc == nil
}

// count resolves N, defaulting from the vertex/index slices.
func (in *Input) count() uint32 {
	if in.N > 0 {
		return in.N
	}
	if in.Indices != nil {
		return uint32(len(in.Indices) / 3)
	}
	return uint32(len(in.Verts) / 3)
}

// Triangle returns the three world-space vertex positions of primitive i.
// Only valid when IsTriangleMesh() is true.
func (in *Input) Triangle(i uint32) (v0, v1, v2 types.Vec3) {
	var i0, i1, i2 uint32
	if in.Indices != nil {
		i0, i1, i2 = in.Indices[3*i], in.Indices[3*i+1], in.Indices[3*i+2]
	} else {
		i0, i1, i2 = 3*i, 3*i+1, 3*i+2
	}
	return in.Verts[i0].Vec3(), in.Verts[i1].Vec3(), in.Verts[i2].Vec3()
}

// Bounds returns the AABB of primitive i, dispatching to BoundsFunc for
// custom geometry or computing a triangle's bounding box otherwise.
func (in *Input) Bounds(i uint32) (bmin, bmax types.Vec3) {
	if in.BoundsFunc != nil {
		return in.BoundsFunc(i)
	}
	v0, v1, v2 := in.Triangle(i)
	return types.VecMin3(v0, v1, v2), types.VecMax3(v0, v1, v2)
}
