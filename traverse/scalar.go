// Package traverse holds the traversal kernels that walk a built tree
// with a ray: the scalar closest-hit/any-hit loop, the SIMD-wide and
// CWBVH kernels, and 256-ray packet traversal.
package traverse

import (
	"github.com/achilleasa/gobvh/bvh"
	"github.com/achilleasa/gobvh/raytrace"
)

const maxStackDepth = 64

type stackEntry struct {
	node uint32
	tmin float32
}

// ClosestHit walks the canonical 2-wide tree b and narrows ray.Hit to
// the nearest Möller-Trumbore intersection (spec §4.8, C10): ordered
// depth-first descent, near child visited first, far child pushed only
// if it can still beat the current best t.
func ClosestHit(b *bvh.BVH, ray *raytrace.Ray) bool {
	stack := make([]stackEntry, 0, maxStackDepth)
	stack = append(stack, stackEntry{node: 0, tmin: 0})
	found := false

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.tmin >= ray.Hit.T {
			continue
		}

		n := &b.Nodes[e.node]
		if n.IsLeaf() {
			for _, fragIdx := range b.LeafFragIndices(n) {
				if intersectLeafPrim(b, ray, fragIdx) {
					found = true
				}
			}
			continue
		}

		left, right := &b.Nodes[n.Left()], &b.Nodes[n.Right()]
		d1, ok1 := raytrace.SlabTest(ray, left.AABB(), ray.Hit.T)
		d2, ok2 := raytrace.SlabTest(ray, right.AABB(), ray.Hit.T)

		near, far := n.Left(), n.Right()
		nd, fd := d1, d2
		nok, fok := ok1, ok2
		if !ok1 || (ok2 && d2 < d1) {
			near, far = n.Right(), n.Left()
			nd, fd = d2, d1
			nok, fok = ok2, ok1
		}

		if fok {
			stack = append(stack, stackEntry{node: far, tmin: fd})
		}
		if nok {
			stack = append(stack, stackEntry{node: near, tmin: nd})
		}
	}
	return found
}

// AnyHit reports whether ray is occluded by anything in b before
// ray.Hit.T, without narrowing the hit record (spec §4.8's any-hit
// variant): the same stack traversal, without near/far ordering of the
// children, returning on the first valid hit.
func AnyHit(b *bvh.BVH, ray *raytrace.Ray) bool {
	stack := make([]stackEntry, 0, maxStackDepth)
	stack = append(stack, stackEntry{node: 0, tmin: 0})

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.tmin >= ray.Hit.T {
			continue
		}

		n := &b.Nodes[e.node]
		if n.IsLeaf() {
			if occludedByLeaf(b, ray, n) {
				return true
			}
			continue
		}

		left, right := &b.Nodes[n.Left()], &b.Nodes[n.Right()]
		d1, ok1 := raytrace.SlabTest(ray, left.AABB(), ray.Hit.T)
		d2, ok2 := raytrace.SlabTest(ray, right.AABB(), ray.Hit.T)
		if ok1 {
			stack = append(stack, stackEntry{node: n.Left(), tmin: d1})
		}
		if ok2 {
			stack = append(stack, stackEntry{node: n.Right(), tmin: d2})
		}
	}
	return false
}

// intersectLeafPrim tests ray against the primitive referenced by
// fragIdx, dispatching to triangle intersection for mesh input or the
// caller's IntersectFunc for BoundsFunc-driven custom primitives (spec
// §4.14), and reports whether it narrowed the hit record.
func intersectLeafPrim(b *bvh.BVH, ray *raytrace.Ray, fragIdx uint32) bool {
	frag := fragAt(b, fragIdx)
	if b.Input.IsTriangleMesh() {
		v0, v1, v2 := b.Input.Triangle(frag)
		return raytrace.IntersectTriangle(ray, v0, v1, v2, frag)
	}
	if b.Input.Intersect == nil {
		return false
	}
	t, u, v, ok := b.Input.Intersect(frag, ray.O, ray.D, ray.Hit.T)
	if !ok {
		return false
	}
	ray.Hit.T, ray.Hit.U, ray.Hit.V, ray.Hit.Prim = t, u, v, frag
	return true
}

func occludedByLeaf(b *bvh.BVH, ray *raytrace.Ray, n *bvh.Node) bool {
	for _, fragIdx := range b.LeafFragIndices(n) {
		frag := fragAt(b, fragIdx)
		if b.Input.IsTriangleMesh() {
			v0, v1, v2 := b.Input.Triangle(frag)
			if raytrace.OccludedTriangle(ray, v0, v1, v2, ray.Hit.T) {
				return true
			}
			continue
		}
		if b.Input.Occluded != nil && b.Input.Occluded(frag, ray.O, ray.D, ray.Hit.T) {
			return true
		}
	}
	return false
}

// fragAt resolves a PrimIdx entry to the original primitive index it
// names. For the binned/quick/SIMD builders PrimIdx entries already are
// fragment indices 1:1 with original primitives; for SBVH or a
// MergeLeafs-compacted tree they are original primitive indices stored
// directly, so both cases resolve the same way from the caller's point
// of view: the value in PrimIdx already is what Input.Triangle/Bounds
// expects.
func fragAt(b *bvh.BVH, idx uint32) uint32 {
	return idx
}
