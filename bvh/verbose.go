package bvh

import "github.com/achilleasa/gobvh/types"

// noParent marks a verbose node with no parent (the root).
const noParent = ^uint32(0)

// VerboseNode is the C8 node shape spec §4.6 calls for: explicit left,
// right and parent indices, rather than the canonical layout's implicit
// sibling pairing. The optimizer needs to walk upward (to refit
// ancestors after a splice) and the canonical layout has no parent
// pointer, so optimization always happens on this side representation.
type VerboseNode struct {
	AABBMin, AABBMax types.Vec3
	Left, Right       uint32
	Parent            uint32
	TriCount          uint32
	First             uint32
}

// IsLeaf reports whether the node is a leaf.
func (n *VerboseNode) IsLeaf() bool { return n.TriCount > 0 }

// AABB returns the node's bounding box.
func (n *VerboseNode) AABB() types.AABB {
	return types.AABB{Min: n.AABBMin, Max: n.AABBMax}
}

// Verbose is a BVH expressed with explicit parent pointers, produced by
// ToVerbose and consumed by Optimize/MergeLeafs. It shares the source
// tree's PrimIdx/Frags/Input; ToVerbose and FromVerbose only copy the
// node array, not the fragment pools.
type Verbose struct {
	tree *BVH

	Nodes []VerboseNode
	Root  uint32

	// free holds indices into Nodes that Optimize has vacated (e.g. by
	// splicing a node out) and may hand back out instead of growing
	// Nodes on the next reinsertion.
	free []uint32
}

// ToVerbose builds a parent-pointer view of b's current node array.
// Node indices are preserved 1:1 so FromVerbose can copy straight back.
func ToVerbose(b *BVH) *Verbose {
	nodes := make([]VerboseNode, b.UsedNodes+1)
	for i := uint32(0); i <= b.UsedNodes; i++ {
		if i == 1 {
			// Node index 1 is the reserved pad slot (spec §3), never a
			// real node: seed it as a dead leaf so IsLeaf() short-
			// circuits it everywhere below and pickInteriorNonRoot can
			// never select it as a splice target.
			nodes[i] = VerboseNode{Parent: noParent, TriCount: 1}
			continue
		}
		n := &b.Nodes[i]
		nodes[i] = VerboseNode{
			AABBMin: n.AABBMin, AABBMax: n.AABBMax,
			Parent: noParent,
		}
		if n.IsLeaf() {
			nodes[i].TriCount = n.TriCount
			nodes[i].First = n.First()
		} else {
			nodes[i].Left = n.Left()
			nodes[i].Right = n.Right()
		}
	}
	for i := range nodes {
		if nodes[i].IsLeaf() {
			continue
		}
		nodes[nodes[i].Left].Parent = uint32(i)
		nodes[nodes[i].Right].Parent = uint32(i)
	}
	return &Verbose{tree: b, Nodes: nodes, Root: 0}
}

// FromVerbose copies v's node array back into a canonical BVH sharing
// the same fragment pools as the tree ToVerbose was built from. The
// result keeps its source's Refittable/Rebuildable flags; Optimize and
// MergeLeafs are not layout conversions, so neither clears Rebuildable
// (spec §4.13 — only a true layout conversion does that).
func FromVerbose(v *Verbose) *BVH {
	out := *v.tree
	out.Nodes = make([]Node, len(v.Nodes))
	for i, vn := range v.Nodes {
		out.Nodes[i].AABBMin, out.Nodes[i].AABBMax = vn.AABBMin, vn.AABBMax
		if vn.IsLeaf() {
			out.Nodes[i].LeftFirst = vn.First
			out.Nodes[i].TriCount = vn.TriCount
		} else {
			out.Nodes[i].LeftFirst = vn.Left
			out.Nodes[i].TriCount = 0
		}
	}
	out.UsedNodes = uint32(len(v.Nodes)) - 1
	return &out
}

// refitAncestors recomputes AABBs from node upward to the root after a
// structural change, per spec §4.6 step 2/3 ("Refit ancestors").
func (v *Verbose) refitAncestors(node uint32) {
	for node != noParent {
		n := &v.Nodes[node]
		if !n.IsLeaf() {
			l, r := &v.Nodes[n.Left], &v.Nodes[n.Right]
			n.AABBMin = types.MinVec3(l.AABBMin, r.AABBMin)
			n.AABBMax = types.MaxVec3(l.AABBMax, r.AABBMax)
		}
		p := n.Parent
		if node == v.Root {
			break
		}
		node = p
	}
}

// alloc hands back a free node slot if one exists, otherwise grows Nodes.
func (v *Verbose) alloc() uint32 {
	if n := len(v.free); n > 0 {
		idx := v.free[n-1]
		v.free = v.free[:n-1]
		return idx
	}
	v.Nodes = append(v.Nodes, VerboseNode{})
	return uint32(len(v.Nodes) - 1)
}

func (v *Verbose) release(idx uint32) {
	v.free = append(v.free, idx)
}
