package layout

import (
	"github.com/achilleasa/gobvh/raytrace"
)

// emptyLaneMin/Max are the sentinel bounds tiny_bvh.h's BVH4_CPU::
// ConvertFrom assigns to unused lanes (1e30/1.00001e30): min>max-adjacent
// enough that any slab test against the lane fails without a separate
// "lane active" branch.
const (
	emptyLaneMin = 1e30
	emptyLaneMax = 1.00001e30
)

// CPU4Node is the 4-wide CPU traversal layout (128 bytes): six [4]float32
// arrays hold the four children's bounds one axis-bound at a time (so a
// single SIMD compare tests all four children against one axis), and
// ChildFirst/TriCount select, per lane, either another CPU4Node index
// (TriCount==0) or an offset/count into the node's precomputed
// Baldwin-Weber triangle pool. Grounded on tiny_bvh.h's
// BVH4_CPU::ConvertFrom (Áfra, "Faster Incoherent Ray Traversal Using
// 8-Wide AVX Instructions", 2013 — the 4-wide CPU case of that scheme).
type CPU4Node struct {
	XMin, YMin, ZMin [4]float32
	XMax, YMax, ZMax [4]float32
	ChildFirst       [4]uint32
	TriCount         [4]uint32
}

// CPU4 is a converted tree in 4-wide CPU layout, plus the flattened pool
// of precomputed triangles its leaves index into.
type CPU4 struct {
	Tree  *Wide
	Nodes []CPU4Node
	Tris  []raytrace.BWTriangle
}

// ToCPU4 converts a 4-wide intermediate tree w into CPU4 layout.
func ToCPU4(w *Wide) *CPU4 {
	if w.Width != 4 {
		fatal(ErrWrongWidth)
	}
	out := &CPU4{Tree: w}
	if len(w.Nodes) == 0 {
		return out
	}
	root := &w.Nodes[w.Root]
	if root.IsLeaf() {
		node := blankCPU4Node()
		first := uint32(len(out.Tris))
		out.Tris = appendBWTris(out.Tris, w, root.First, root.TriCount)
		node.ChildFirst[0], node.TriCount[0] = first, root.TriCount
		out.Nodes = append(out.Nodes, node)
		return out
	}
	convertCPU4Node(w, w.Root, out)
	return out
}

func blankCPU4Node() CPU4Node {
	var n CPU4Node
	for lane := 0; lane < 4; lane++ {
		n.XMin[lane], n.YMin[lane], n.ZMin[lane] = emptyLaneMin, emptyLaneMin, emptyLaneMin
		n.XMax[lane], n.YMax[lane], n.ZMax[lane] = emptyLaneMax, emptyLaneMax, emptyLaneMax
	}
	return n
}

func appendBWTris(tris []raytrace.BWTriangle, w *Wide, first, count uint32) []raytrace.BWTriangle {
	for _, fragIdx := range w.Tree.PrimIdx[first : first+count] {
		v0, v1, v2 := w.Tree.Input.Triangle(fragIdx)
		tris = append(tris, raytrace.PrecomputeBW(v0, v1, v2, fragIdx))
	}
	return tris
}

// convertCPU4Node converts the wide node at srcIdx (and everything below
// it) into the output tree, appending nodes and triangles as it goes,
// and returns the new node's index.
func convertCPU4Node(w *Wide, srcIdx uint32, out *CPU4) uint32 {
	src := &w.Nodes[srcIdx]
	idx := uint32(len(out.Nodes))
	out.Nodes = append(out.Nodes, blankCPU4Node())
	node := blankCPU4Node()

	for lane := uint32(0); lane < src.ChildCount; lane++ {
		childIdx := src.Child[lane]
		child := &w.Nodes[childIdx]
		node.XMin[lane], node.YMin[lane], node.ZMin[lane] = child.AABBMin[0], child.AABBMin[1], child.AABBMin[2]
		node.XMax[lane], node.YMax[lane], node.ZMax[lane] = child.AABBMax[0], child.AABBMax[1], child.AABBMax[2]
		if child.IsLeaf() {
			first := uint32(len(out.Tris))
			out.Tris = appendBWTris(out.Tris, w, child.First, child.TriCount)
			node.ChildFirst[lane], node.TriCount[lane] = first, child.TriCount
			continue
		}
		node.ChildFirst[lane] = convertCPU4Node(w, childIdx, out)
	}

	out.Nodes[idx] = node
	return idx
}
