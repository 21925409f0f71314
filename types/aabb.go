package types

import "math"

// AABB is an axis-aligned bounding box. An empty box (no primitive grown
// into it yet) has Min set to +MaxFloat32 and Max set to -MaxFloat32 on
// every lane, so that Union with any real box yields that box unchanged.
type AABB struct {
	Min Vec3
	Max Vec3
}

// EmptyAABB returns a box suitable as the zero value of a Union reduction.
func EmptyAABB() AABB {
	return AABB{
		Min: Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

// Grow extends the box to also enclose p.
func (b AABB) Grow(p Vec3) AABB {
	return AABB{Min: MinVec3(b.Min, p), Max: MaxVec3(b.Max, p)}
}

// Union returns the smallest box enclosing both b and other.
func (b AABB) Union(other AABB) AABB {
	return AABB{Min: MinVec3(b.Min, other.Min), Max: MaxVec3(b.Max, other.Max)}
}

// Extent returns the box's side lengths.
func (b AABB) Extent() Vec3 {
	return b.Max.Sub(b.Min)
}

// Center returns the box's midpoint.
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// SurfaceArea returns the total area of the box's six faces, used
// throughout the SAH cost formula (spec §4.1).
func (b AABB) SurfaceArea() float32 {
	e := b.Extent()
	if e[0] < 0 || e[1] < 0 || e[2] < 0 {
		return 0
	}
	return 2 * (e[0]*e[1] + e[1]*e[2] + e[0]*e[2])
}

// HalfArea returns half the surface area (e[0]*e[1]+e[1]*e[2]+e[0]*e[2]),
// which is all the SAH cost comparison in §4.1 actually needs — cheaper
// to compute per candidate than the full surface area.
func (b AABB) HalfArea() float32 {
	e := b.Extent()
	if e[0] < 0 || e[1] < 0 || e[2] < 0 {
		return 0
	}
	return e[0]*e[1] + e[1]*e[2] + e[0]*e[2]
}

// LongestAxis returns the axis along which the box has the greatest
// extent, used by the quick midpoint builder (spec §4.4).
func (b AABB) LongestAxis() Axis {
	return b.Extent().LargestAxis()
}

// Valid reports whether the box contains at least one point (Min <= Max
// on every axis).
func (b AABB) Valid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Overlap returns the intersection of two boxes; the result may be
// invalid (Min > Max on some axis) if the boxes don't overlap — callers
// that need overlap volume/area should check Valid() first.
func (b AABB) Overlap(other AABB) AABB {
	return AABB{Min: MaxVec3(b.Min, other.Min), Max: MinVec3(b.Max, other.Max)}
}

// TransformedCorners returns the AABB's eight corners, transformed by m.
// Used by TLAS/BLAS instance updates (spec §4.12) to compute a
// world-space hull of a BLAS root AABB under an arbitrary transform.
func (b AABB) TransformedCorners(m Mat4) [8]Vec3 {
	var c [8]Vec3
	for i := 0; i < 8; i++ {
		x := b.Min[0]
		if i&1 != 0 {
			x = b.Max[0]
		}
		y := b.Min[1]
		if i&2 != 0 {
			y = b.Max[1]
		}
		z := b.Min[2]
		if i&4 != 0 {
			z = b.Max[2]
		}
		c[i] = m.TransformPoint(Vec3{x, y, z})
	}
	return c
}

// Transform returns the axis-aligned hull of the box's eight corners
// after applying m (spec §4.12, §3 "A TLAS node's AABB is the
// axis-aligned hull of the eight transformed corners...").
func (b AABB) Transform(m Mat4) AABB {
	corners := b.TransformedCorners(m)
	out := AABB{Min: corners[0], Max: corners[0]}
	for i := 1; i < 8; i++ {
		out.Min = MinVec3(out.Min, corners[i])
		out.Max = MaxVec3(out.Max, corners[i])
	}
	return out
}
