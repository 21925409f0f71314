package traverse

import (
	"github.com/achilleasa/gobvh/bvh"
	"github.com/achilleasa/gobvh/raytrace"
	"github.com/achilleasa/gobvh/types"
)

// packetPlane is one of the four frustum side planes built from the
// packet's corner rays, with its normal pointing away from the frustum
// interior (spec §4.11): a point is inside the plane when its projection
// onto n does not exceed d.
type packetPlane struct {
	n types.Vec3
	d float32
}

// IntersectPacket runs the C13 256-ray coherent packet traversal of spec
// §4.11 against b, narrowing each active ray's Hit in place. It assumes
// the 256 rays share an origin and are laid out as a 16x16 block whose
// corners are rays 0 (top-left), 51 (top-right), 204 (bottom-left) and
// 255 (bottom-right) — the convention spec's REDESIGN FLAGS section
// calls out as a driver convention rather than a library invariant.
// Grounded on tiny_bvh.h's BVH::Intersect256Rays.
func IntersectPacket(b *bvh.BVH, rays *[256]raytrace.Ray) {
	if len(b.Nodes) == 0 {
		return
	}
	planes := buildFrustumPlanes(rays)

	type entry struct {
		node        uint32
		first, last int
	}
	stack := make([]entry, 0, maxStackDepth)
	cur := entry{node: 0, first: 0, last: 255}

	for {
		n := &b.Nodes[cur.node]
		if n.IsLeaf() {
			intersectPacketLeaf(b, rays, n, cur.first, cur.last)
			if len(stack) == 0 {
				return
			}
			cur = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			continue
		}

		leftIdx, rightIdx := n.Left(), n.Right()
		visitLeft, lf, ll, distLeft := testPacketChild(rays, planes, b.Nodes[leftIdx].AABB(), cur.first, cur.last)
		visitRight, rf, rl, distRight := testPacketChild(rays, planes, b.Nodes[rightIdx].AABB(), cur.first, cur.last)

		switch {
		case visitLeft && visitRight:
			if distLeft < distRight {
				stack = append(stack, entry{node: rightIdx, first: rf, last: rl})
				cur = entry{node: leftIdx, first: lf, last: ll}
			} else {
				stack = append(stack, entry{node: leftIdx, first: lf, last: ll})
				cur = entry{node: rightIdx, first: rf, last: rl}
			}
		case visitLeft:
			cur = entry{node: leftIdx, first: lf, last: ll}
		case visitRight:
			cur = entry{node: rightIdx, first: rf, last: rl}
		default:
			if len(stack) == 0 {
				return
			}
			cur = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
	}
}

// buildFrustumPlanes constructs the four outward-facing side planes of
// the packet's frustum from its four corner rays.
func buildFrustumPlanes(rays *[256]raytrace.Ray) [4]packetPlane {
	o := rays[0].O
	p0 := rays[0].O.Add(rays[0].D)     // top-left
	p1 := rays[51].O.Add(rays[51].D)   // top-right
	p2 := rays[204].O.Add(rays[204].D) // bottom-left
	p3 := rays[255].O.Add(rays[255].D) // bottom-right

	left := p0.Sub(o).Cross(p0.Sub(p2)).Normalize()
	right := p3.Sub(o).Cross(p3.Sub(p1)).Normalize()
	top := p1.Sub(o).Cross(p1.Sub(p0)).Normalize()
	bottom := p2.Sub(o).Cross(p2.Sub(p3)).Normalize()

	return [4]packetPlane{
		{n: left, d: o.Dot(left)},
		{n: right, d: o.Dot(right)},
		{n: top, d: o.Dot(top)},
		{n: bottom, d: o.Dot(bottom)},
	}
}

// testPacketChild decides whether the packet's active ray interval
// [first,last] needs to visit box, per spec §4.11's three-step test:
// early-in on the first active ray, early-out against the four frustum
// planes, and otherwise a tightened [first,last] found by advancing and
// retreating the interval's ends past rays that miss. dist is the first
// hitting ray's slab tmin, used to order which child is descended first.
func testPacketChild(rays *[256]raytrace.Ray, planes [4]packetPlane, box types.AABB, first, last int) (visit bool, newFirst, newLast int, dist float32) {
	if d, ok := raytrace.SlabTest(&rays[first], box, rays[first].Hit.T); ok {
		return true, first, last, d
	}

	for _, p := range planes {
		if p.n.Dot(supportCorner(box, p.n)) > p.d {
			return false, first, last, 0
		}
	}

	newFirst = first
	var d float32
	found := false
	for ; newFirst <= last; newFirst++ {
		if t, ok := raytrace.SlabTest(&rays[newFirst], box, rays[newFirst].Hit.T); ok {
			d, found = t, true
			break
		}
	}
	if !found {
		return false, first, last, 0
	}

	newLast = last
	for ; newLast >= newFirst; newLast-- {
		if _, ok := raytrace.SlabTest(&rays[newLast], box, rays[newLast].Hit.T); ok {
			break
		}
	}
	return newLast >= newFirst, newFirst, newLast, d
}

// supportCorner returns box's vertex that minimizes dot(vertex, n): the
// corner closest to satisfying "inside" along n's direction. If even this
// corner's projection exceeds a plane's d, the whole box lies outside it.
func supportCorner(box types.AABB, n types.Vec3) types.Vec3 {
	var c types.Vec3
	for axis := 0; axis < 3; axis++ {
		if n[axis] < 0 {
			c[axis] = box.Max[axis]
		} else {
			c[axis] = box.Min[axis]
		}
	}
	return c
}

// intersectPacketLeaf tests every ray in [first,last] against every
// triangle referenced by leaf n. Packet traversal is defined over
// triangle soups only (spec §4.11); custom BoundsFunc primitives are not
// addressed by the packet entry point.
func intersectPacketLeaf(b *bvh.BVH, rays *[256]raytrace.Ray, n *bvh.Node, first, last int) {
	for _, fragIdx := range b.LeafFragIndices(n) {
		v0, v1, v2 := b.Input.Triangle(fragIdx)
		for i := first; i <= last; i++ {
			raytrace.IntersectTriangle(&rays[i], v0, v1, v2, fragIdx)
		}
	}
}
