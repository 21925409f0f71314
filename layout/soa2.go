package layout

import (
	"github.com/achilleasa/gobvh/bvh"
)

// SoA2Node is the structure-of-arrays sibling of GPU2Node (64 bytes):
// instead of separate lmin/lmax/rmin/rmax vec3s, each axis packs both
// children's min/max into one 4-lane array (lane order lmin, lmax,
// rmin, rmax) so a SIMD slab test can process both children's bounds
// for one axis in a single vector op. Grounded on tiny_bvh.h's
// BVH_SoA::BVHNode/ConvertFrom.
type SoA2Node struct {
	X, Y, Z  [4]float32 // lane order: lmin, lmax, rmin, rmax
	Left     uint32
	Right    uint32
	TriCount uint32
	First    uint32
}

// IsLeaf reports whether this slot holds a leaf directly.
func (n *SoA2Node) IsLeaf() bool {
	return n.TriCount > 0
}

// SoA2 is a converted tree in structure-of-arrays layout.
type SoA2 struct {
	Tree  *bvh.BVH
	Nodes []SoA2Node
}

// ToSoA2 converts b into the SoA 2-wide layout, in the same index space
// as the source tree (as ToGPU2 does).
func ToSoA2(b *bvh.BVH) *SoA2 {
	b.Rebuildable = false
	s := &SoA2{Tree: b}
	if b.UsedNodes == 0 {
		return s
	}
	s.Nodes = make([]SoA2Node, b.UsedNodes+1)
	for i := uint32(0); i <= b.UsedNodes; i++ {
		src := &b.Nodes[i]
		dst := &s.Nodes[i]
		if src.IsLeaf() {
			dst.TriCount, dst.First = src.TriCount, src.First()
			continue
		}
		left, right := &b.Nodes[src.Left()], &b.Nodes[src.Right()]
		dst.X = [4]float32{left.AABBMin[0], left.AABBMax[0], right.AABBMin[0], right.AABBMax[0]}
		dst.Y = [4]float32{left.AABBMin[1], left.AABBMax[1], right.AABBMin[1], right.AABBMax[1]}
		dst.Z = [4]float32{left.AABBMin[2], left.AABBMax[2], right.AABBMin[2], right.AABBMax[2]}
		dst.Left, dst.Right = src.Left(), src.Right()
	}
	return s
}
