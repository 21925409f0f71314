package bvh

import "github.com/achilleasa/gobvh/types"

// Refit recomputes every node's AABB bottom-up by decreasing node index,
// without re-splitting or rebalancing (spec §4.5, C7). Leaf bounds come
// from the tree's fragments (re-derived from current vertex positions for
// a triangle mesh, or from the stored fragment bounds for a custom-AABB
// build); interior bounds are the union of their children.
//
// Precondition: b.Refittable and !b.MayHaveHoles. An SBVH tree is never
// refittable (its fragments may be clipped, so they no longer track a
// primitive's true extent); a tree left with holes by MergeLeafs must be
// compacted before it can be refit. Violating either is fatal, per spec
// §4.14/§7.
func Refit(b *BVH, opts *Options) {
	logger := opts.logger()
	if !b.Refittable {
		fatal(logger, ErrNotRefittable)
	}
	if b.MayHaveHoles {
		fatal(logger, ErrHasHoles)
	}

	for i := int(b.UsedNodes); i >= 0; i-- {
		n := &b.Nodes[i]
		if n.IsLeaf() {
			box := types.EmptyAABB()
			for _, fragIdx := range b.LeafFragIndices(n) {
				bmin, bmax := refitFragBounds(b, fragIdx)
				box.Min = types.MinVec3(box.Min, bmin)
				box.Max = types.MaxVec3(box.Max, bmax)
			}
			n.AABBMin, n.AABBMax = box.Min, box.Max
			continue
		}
		left := &b.Nodes[n.Left()]
		right := &b.Nodes[n.Right()]
		n.AABBMin = types.MinVec3(left.AABBMin, right.AABBMin)
		n.AABBMax = types.MaxVec3(left.AABBMax, right.AABBMax)
	}
}

// refitFragBounds returns the up-to-date bounds of fragment fragIdx,
// recomputing a triangle's AABB from its current vertex positions so
// Refit reflects in-place vertex animation, per spec §4.5 ("recompute
// AABB from current vertex positions").
func refitFragBounds(b *BVH, fragIdx uint32) (types.Vec3, types.Vec3) {
	frag := &b.Frags[fragIdx]
	if b.Input.IsTriangleMesh() {
		v0, v1, v2 := b.Input.Triangle(frag.PrimIdx)
		return types.VecMin3(v0, v1, v2), types.VecMax3(v0, v1, v2)
	}
	return frag.Bounds(b.FragMinFlipped)
}
