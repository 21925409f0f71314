// Package layout converts a canonical 2-wide bvh.BVH into the wider,
// more cache- or GPU-friendly node layouts spec §4.7/§3 describes: a
// 4/8-way intermediate, GPU/SoA 2-wide forms, 4-wide CPU with
// precomputed triangles, a quantized 4-wide GPU form, and CWBVH.
package layout

import (
	"github.com/achilleasa/gobvh/bvh"
	"github.com/achilleasa/gobvh/types"
)

// maxWide is the largest child fan-out any layout in this package packs
// into one node (CWBVH's 8-wide form).
const maxWide = 8

// WideNode is the 4/8-way intermediate node: still one node per
// canonical node (same index space as the source tree, so
// Child entries reference other WideNode indices directly, as in
// tiny_bvh's BVH4/BVH8::ConvertFrom), but with up to Width live
// children collapsed into a single node by repeatedly adopting the
// grandchild pair with the largest surface area.
type WideNode struct {
	AABBMin    types.Vec3
	First      uint32 // valid when TriCount>0: first fragment index
	AABBMax    types.Vec3
	TriCount   uint32
	Child      [maxWide]uint32
	ChildCount uint32
}

// IsLeaf reports whether the node is a leaf (TriCount>0), exactly as
// for the canonical Node.
func (n *WideNode) IsLeaf() bool {
	return n.TriCount > 0
}

// AABB returns the node's bounding box.
func (n *WideNode) AABB() types.AABB {
	return types.AABB{Min: n.AABBMin, Max: n.AABBMax}
}

// Wide is a 4-way or 8-way collapsed tree produced from a canonical
// bvh.BVH. It keeps a reference to the source tree because leaves still
// name fragment ranges into the source's PrimIdx/Frags pools.
type Wide struct {
	Tree  *bvh.BVH
	Nodes []WideNode
	Root  uint32
	Width uint32
}

// ToWide4 collapses b into a 4-wide intermediate tree.
func ToWide4(b *bvh.BVH) *Wide { return toWide(b, 4) }

// ToWide8 collapses b into an 8-wide intermediate tree.
func ToWide8(b *bvh.BVH) *Wide { return toWide(b, 8) }

// toWide implements the greedy child-adoption collapse spec §4.7
// describes, grounded on tiny_bvh.h's BVH4::ConvertFrom/BVH8::ConvertFrom:
// one WideNode is allocated per canonical node (same index space as the
// source, so Child slots reference other entries in this same slice),
// each starts with its original two children, and then repeatedly
// "adopts" whichever current child has the largest surface area and is
// itself an interior node with few enough of its own children that
// folding them in still fits under width — until no child can be
// adopted without exceeding width.
func toWide(b *bvh.BVH, width uint32) *Wide {
	b.Rebuildable = false
	w := &Wide{Tree: b, Width: width}
	if b.UsedNodes == 0 {
		return w
	}
	w.Nodes = make([]WideNode, b.UsedNodes+1)
	for i := uint32(0); i <= b.UsedNodes; i++ {
		src := &b.Nodes[i]
		dst := &w.Nodes[i]
		dst.AABBMin, dst.AABBMax = src.AABBMin, src.AABBMax
		if src.IsLeaf() {
			dst.TriCount, dst.First = src.TriCount, src.First()
			continue
		}
		dst.Child[0], dst.Child[1] = src.Left(), src.Right()
		dst.ChildCount = 2
	}

	stack := make([]uint32, 0, 128)
	stack = append(stack, 0)
	for len(stack) > 0 {
		nodeIdx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &w.Nodes[nodeIdx]

		for node.ChildCount < width {
			bestSlot := -1
			bestArea := float32(-1)
			for i := uint32(0); i < node.ChildCount; i++ {
				child := &w.Nodes[node.Child[i]]
				if child.IsLeaf() || node.ChildCount-1+child.ChildCount > width {
					continue
				}
				area := child.AABB().SurfaceArea()
				if area > bestArea {
					bestArea, bestSlot = area, int(i)
				}
			}
			if bestSlot == -1 {
				break
			}
			child := &w.Nodes[node.Child[bestSlot]]
			node.Child[bestSlot] = child.Child[0]
			for i := uint32(1); i < child.ChildCount; i++ {
				node.Child[node.ChildCount] = child.Child[i]
				node.ChildCount++
			}
		}

		for i := uint32(0); i < node.ChildCount; i++ {
			if !w.Nodes[node.Child[i]].IsLeaf() {
				stack = append(stack, node.Child[i])
			}
		}
	}
	return w
}
