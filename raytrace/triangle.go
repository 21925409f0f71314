package raytrace

import (
	"math"

	"github.com/achilleasa/gobvh/types"
)

// triEpsilon is the |det| rejection threshold spec §4.8/§7 specifies:
// below it the ray is treated as parallel to the triangle's plane (or
// the triangle is degenerate) and the test silently misses.
const triEpsilon = 1e-7

// IntersectTriangle runs a Möller-Trumbore test of ray against triangle
// (v0,v1,v2) and narrows hit.T/U/V/Prim in place if it finds a closer
// hit. Returns whether it updated the hit record.
func IntersectTriangle(ray *Ray, v0, v1, v2 types.Vec3, prim uint32) bool {
	edge1 := v1.Sub(v0)
	edge2 := v2.Sub(v0)
	h := ray.D.Cross(edge2)
	det := edge1.Dot(h)
	if det > -triEpsilon && det < triEpsilon {
		return false
	}
	invDet := 1 / det

	s := ray.O.Sub(v0)
	u := invDet * s.Dot(h)
	if u < 0 || u > 1 {
		return false
	}

	q := s.Cross(edge1)
	v := invDet * ray.D.Dot(q)
	if v < 0 || u+v > 1 {
		return false
	}

	t := invDet * edge2.Dot(q)
	if t < triEpsilon || t >= ray.Hit.T {
		return false
	}

	ray.Hit.T, ray.Hit.U, ray.Hit.V, ray.Hit.Prim = t, u, v, prim
	return true
}

// OccludedTriangle is IntersectTriangle's any-hit sibling: it doesn't
// write the hit record, it only reports whether the ray strikes the
// triangle at a distance below maxT (spec §4.8's "occlusion test is the
// same loop with early return on the first valid hit").
func OccludedTriangle(ray *Ray, v0, v1, v2 types.Vec3, maxT float32) bool {
	edge1 := v1.Sub(v0)
	edge2 := v2.Sub(v0)
	h := ray.D.Cross(edge2)
	det := edge1.Dot(h)
	if det > -triEpsilon && det < triEpsilon {
		return false
	}
	invDet := 1 / det

	s := ray.O.Sub(v0)
	u := invDet * s.Dot(h)
	if u < 0 || u > 1 {
		return false
	}

	q := s.Cross(edge1)
	v := invDet * ray.D.Dot(q)
	if v < 0 || u+v > 1 {
		return false
	}

	t := invDet * edge2.Dot(q)
	return t >= triEpsilon && t < maxT
}

// IntersectEdges is IntersectTriangle with the edge vectors already
// computed, for layouts (quantized GPU, CWBVH) that store a triangle as
// (v0, edge1, edge2) by value so the traversal kernel never re-derives
// edges from three separate vertices.
func IntersectEdges(ray *Ray, v0, edge1, edge2 types.Vec3, prim uint32) bool {
	h := ray.D.Cross(edge2)
	det := edge1.Dot(h)
	if det > -triEpsilon && det < triEpsilon {
		return false
	}
	invDet := 1 / det

	s := ray.O.Sub(v0)
	u := invDet * s.Dot(h)
	if u < 0 || u > 1 {
		return false
	}

	q := s.Cross(edge1)
	v := invDet * ray.D.Dot(q)
	if v < 0 || u+v > 1 {
		return false
	}

	t := invDet * edge2.Dot(q)
	if t < triEpsilon || t >= ray.Hit.T {
		return false
	}

	ray.Hit.T, ray.Hit.U, ray.Hit.V, ray.Hit.Prim = t, u, v, prim
	return true
}

// OccludedEdges is IntersectEdges' any-hit sibling.
func OccludedEdges(ray *Ray, v0, edge1, edge2 types.Vec3, maxT float32) bool {
	h := ray.D.Cross(edge2)
	det := edge1.Dot(h)
	if det > -triEpsilon && det < triEpsilon {
		return false
	}
	invDet := 1 / det

	s := ray.O.Sub(v0)
	u := invDet * s.Dot(h)
	if u < 0 || u > 1 {
		return false
	}

	q := s.Cross(edge1)
	v := invDet * ray.D.Dot(q)
	if v < 0 || u+v > 1 {
		return false
	}

	t := invDet * edge2.Dot(q)
	return t >= triEpsilon && t < maxT
}

// BWTriangle is the Baldwin-Weber precomputed form spec §4.7 calls for:
// a 4x3 transform whose inverse maps world space to a space where the
// triangle is the unit triangle at the origin, so a ray/triangle test
// reduces to transforming the ray and reading off two dot products and
// a ratio instead of the full Möller-Trumbore determinant math. Used by
// the 4-wide CPU layout; CWBVH stores (v0, edge1, edge2) instead.
type BWTriangle struct {
	// N is the transformed plane normal (nx,ny,nz,d) such that a ray's
	// t is (d - (nx*ox+ny*oy+nz*oz)) / (nx*dx+ny*dy+nz*dz).
	N types.Vec4
	// U, V are the projection rows used to recover barycentric
	// coordinates from the transformed hit point.
	U, V     types.Vec4
	OrigPrim uint32
}

// PrecomputeBW builds the Baldwin-Weber transform for triangle
// (v0,v1,v2). Grounded on the classic formulation (Baldwin & Weber,
// "Fast Ray-Triangle Intersections by Coordinate Transformation", 2016):
// the plane row is the triangle's normal/offset, and the two projection
// rows are derived by inverting the edge matrix so that v1 projects to
// barycentric (1,0) and v2 to (0,1).
func PrecomputeBW(v0, v1, v2 types.Vec3, primIdx uint32) BWTriangle {
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	n := e1.Cross(e2)

	// Pick the component of n with the largest magnitude to divide by,
	// matching the reference construction's axis-dominant normalization.
	ax, ay, az := n[0], n[1], n[2]
	var nu, nv, nd types.Vec4
	switch types.XYZ(abs(ax), abs(ay), abs(az)).LargestAxis() {
	case types.AxisX:
		nu = types.XYZW(0, e2[2]/ax, -e2[1]/ax, 0)
		nv = types.XYZW(0, -e1[2]/ax, e1[1]/ax, 0)
		nd = types.XYZW(1, n[1]/ax, n[2]/ax, v0.Dot(n)/ax)
	case types.AxisY:
		nu = types.XYZW(-e2[2]/ay, 0, e2[0]/ay, 0)
		nv = types.XYZW(e1[2]/ay, 0, -e1[0]/ay, 0)
		nd = types.XYZW(n[0]/ay, 1, n[2]/ay, v0.Dot(n)/ay)
	default:
		nu = types.XYZW(e2[1]/az, -e2[0]/az, 0, 0)
		nv = types.XYZW(-e1[1]/az, e1[0]/az, 0, 0)
		nd = types.XYZW(n[0]/az, n[1]/az, 1, v0.Dot(n)/az)
	}
	// Offset the projection rows so v0 itself maps to barycentric (0,0).
	nu[3] = -(v0[0]*nu[0] + v0[1]*nu[1] + v0[2]*nu[2])
	nv[3] = -(v0[0]*nv[0] + v0[1]*nv[1] + v0[2]*nv[2])
	return BWTriangle{
		N:        nd,
		U:        nu,
		V:        nv,
		OrigPrim: primIdx,
	}
}

func abs(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// IntersectBW tests ray against a precomputed Baldwin-Weber triangle.
func IntersectBW(ray *Ray, tri BWTriangle) bool {
	denom := ray.D[0]*tri.N[0] + ray.D[1]*tri.N[1] + ray.D[2]*tri.N[2]
	if denom > -triEpsilon && denom < triEpsilon {
		return false
	}
	t := (tri.N[3] - (ray.O[0]*tri.N[0] + ray.O[1]*tri.N[1] + ray.O[2]*tri.N[2])) / denom
	if t < triEpsilon || t >= ray.Hit.T {
		return false
	}
	hit := ray.O.Add(ray.D.Mul(t))
	u := hit[0]*tri.U[0] + hit[1]*tri.U[1] + hit[2]*tri.U[2] + tri.U[3]
	v := hit[0]*tri.V[0] + hit[1]*tri.V[1] + hit[2]*tri.V[2] + tri.V[3]
	if u < 0 || v < 0 || u+v > 1 {
		return false
	}
	ray.Hit.T, ray.Hit.U, ray.Hit.V, ray.Hit.Prim = t, u, v, tri.OrigPrim
	return true
}

// SlabTest returns the near/far intersection distances of ray against
// box, per spec §4.8: tNear = max over axes of min(t_a,t_b), tFar = min
// over axes of max(t_a,t_b). hit is false (and tNear is left at +Inf)
// when the ray misses, is behind the box, or the box is farther than
// limit.
func SlabTest(ray *Ray, box types.AABB, limit float32) (tNear float32, hit bool) {
	t0 := (box.Min[0] - ray.O[0]) * ray.RD[0]
	t1 := (box.Max[0] - ray.O[0]) * ray.RD[0]
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	tMin, tMax := t0, t1

	for axis := 1; axis < 3; axis++ {
		ta := (box.Min[axis] - ray.O[axis]) * ray.RD[axis]
		tb := (box.Max[axis] - ray.O[axis]) * ray.RD[axis]
		if ta > tb {
			ta, tb = tb, ta
		}
		if ta > tMin {
			tMin = ta
		}
		if tb < tMax {
			tMax = tb
		}
	}

	if tMax < tMin || tMin >= limit || tMax < 0 {
		return float32(math.Inf(1)), false
	}
	return tMin, true
}
