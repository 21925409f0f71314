package layout

import (
	"github.com/achilleasa/gobvh/bvh"
	"github.com/achilleasa/gobvh/types"
)

// GPU2Node is the Aila & Laine "child bounds in parent" 2-wide layout
// (64 bytes): an interior node carries both children's AABBs directly so
// a GPU traversal kernel can run the slab test for both children without
// first fetching either child's cache line. Grounded on tiny_bvh.h's
// BVH_GPU::BVHNode.
//
// One GPU2Node exists per canonical node, in the same index space as the
// source tree (Left/Right name other entries in this same slice), which
// trades tiny_bvh's extra DFS-compaction pass for simplicity — the
// source arena is already densely packed, so the space this would
// recover is marginal.
type GPU2Node struct {
	LMin     types.Vec3
	Left     uint32
	LMax     types.Vec3
	Right    uint32
	RMin     types.Vec3
	TriCount uint32
	RMax     types.Vec3
	First    uint32
}

// IsLeaf reports whether this slot holds a leaf directly (as opposed to
// an interior node with inlined child bounds).
func (n *GPU2Node) IsLeaf() bool {
	return n.TriCount > 0
}

// GPU2 is a converted tree in Aila & Laine layout.
type GPU2 struct {
	Tree  *bvh.BVH
	Nodes []GPU2Node
}

// ToGPU2 converts b into the 2-wide GPU layout.
func ToGPU2(b *bvh.BVH) *GPU2 {
	b.Rebuildable = false
	g := &GPU2{Tree: b}
	if b.UsedNodes == 0 {
		return g
	}
	g.Nodes = make([]GPU2Node, b.UsedNodes+1)
	for i := uint32(0); i <= b.UsedNodes; i++ {
		src := &b.Nodes[i]
		dst := &g.Nodes[i]
		if src.IsLeaf() {
			dst.TriCount, dst.First = src.TriCount, src.First()
			continue
		}
		left, right := &b.Nodes[src.Left()], &b.Nodes[src.Right()]
		dst.LMin, dst.LMax = left.AABBMin, left.AABBMax
		dst.RMin, dst.RMax = right.AABBMin, right.AABBMax
		dst.Left, dst.Right = src.Left(), src.Right()
	}
	return g
}
