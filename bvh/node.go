package bvh

import "github.com/achilleasa/gobvh/types"

// Node is the canonical 2-wide BVH node (spec §3): 32 bytes, interior
// when TriCount==0 (children live at LeftFirst, LeftFirst+1) or a leaf
// when TriCount>0 (fragment indices occupy PrimIdx[LeftFirst:LeftFirst+TriCount]).
type Node struct {
	AABBMin   types.Vec3
	LeftFirst uint32
	AABBMax   types.Vec3
	TriCount  uint32
}

// IsLeaf reports whether the node is a leaf.
func (n *Node) IsLeaf() bool {
	return n.TriCount > 0
}

// Left returns the index of the node's left child. Only valid for
// interior nodes.
func (n *Node) Left() uint32 {
	return n.LeftFirst
}

// Right returns the index of the node's right child. Only valid for
// interior nodes; per spec §3 sibling pairs always live at 2k, 2k+1, so
// this is simply Left()+1, but the field is not otherwise constrained —
// call it rather than assume the pairing.
func (n *Node) Right() uint32 {
	return n.LeftFirst + 1
}

// First returns the index of the node's first fragment. Only valid for
// leaves.
func (n *Node) First() uint32 {
	return n.LeftFirst
}

// AABB returns the node's bounding box.
func (n *Node) AABB() types.AABB {
	return types.AABB{Min: n.AABBMin, Max: n.AABBMax}
}

// HalfArea returns the half-area of the node's AABB (used for SAH cost).
func (n *Node) HalfArea() float32 {
	return n.AABB().HalfArea()
}

// BVH is the root handle for a canonical 2-wide hierarchy and the
// fragment/index pools it was built from. All "pointers" are indices
// into Nodes/PrimIdx/Frags, per the arena+index design note in spec §9.
type BVH struct {
	Input *Input

	Nodes  []Node
	PrimIdx []uint32
	Frags  []Fragment

	N         uint32 // original primitive count
	UsedNodes uint32 // nodes actually in use (Nodes may be over-allocated)
	IdxCount  uint32 // entries in PrimIdx actually in use

	// State flags, spec §4.13.
	Refittable     bool
	Rebuildable     bool
	MayHaveHoles    bool
	FragMinFlipped bool

	slack uint32 // spare PrimIdx/Frags slot count; no builder sets it
}

// fragBounds returns the AABB of fragment fragIdx, honouring
// FragMinFlipped.
func (b *BVH) fragBounds(fragIdx uint32) (bmin, bmax types.Vec3) {
	return b.Frags[fragIdx].Bounds(b.FragMinFlipped)
}

// RootAABB returns the AABB of the tree's root node, i.e. the componentwise
// hull of every primitive's bounding box (spec §8 property 1).
func (b *BVH) RootAABB() types.AABB {
	if len(b.Nodes) == 0 {
		return types.EmptyAABB()
	}
	return b.Nodes[0].AABB()
}

// LeafFragIndices returns the slice of PrimIdx entries referenced by a
// leaf node.
func (b *BVH) LeafFragIndices(n *Node) []uint32 {
	return b.PrimIdx[n.First() : n.First()+n.TriCount]
}

// SAHCost computes the surface-area-heuristic cost of the tree as built,
// C_TRAV*interiorCount + C_INT*sum(leaf area * leaf triCount)/rootArea,
// used for reporting (spec §4.6's optimizer goal, and the Stats type in
// SPEC_FULL §4).
func (b *BVH) SAHCost() float32 {
	if b.UsedNodes == 0 {
		return 0
	}
	rootArea := b.Nodes[0].AABB().SurfaceArea()
	if rootArea <= 0 {
		return float32(b.UsedNodes)
	}
	var cost float32
	var walk func(idx uint32)
	walk = func(idx uint32) {
		n := &b.Nodes[idx]
		if n.IsLeaf() {
			cost += cInt * n.AABB().SurfaceArea() * float32(n.TriCount) / rootArea
			return
		}
		cost += cTrav
		walk(n.Left())
		walk(n.Right())
	}
	walk(0)
	return cost
}
