package layout

import (
	"github.com/achilleasa/gobvh/types"
)

// quantLeafBit marks a ChildInfo slot as a leaf (tiny_bvh's 0x80000000).
const quantLeafBit = uint32(1) << 31

// QuantTri is a triangle stored "by value" the way BVH4_GPU's
// non-compressed path does (vertex 0 plus the two edge vectors, so the
// GPU kernel can run the Möller-Trumbore test without re-deriving edges),
// with the original primitive index kept as a plain field rather than
// bit-punned into a vertex's w component.
type QuantTri struct {
	V0, E1, E2 types.Vec3
	PrimIdx    uint32
}

// Quant4Node is the quantized 4-wide GPU layout (64 bytes): a node's own
// AABB plus a decode step (extent/255), four children's bounds quantized
// to a byte per min/max per axis relative to the node, and one
// ChildInfo word per child that is either a node index (interior) or a
// leaf's (offset, triCount) packed with the high bit set. Grounded on
// tiny_bvh.h's BVH4_GPU::ConvertFrom.
type Quant4Node struct {
	AABBMin types.Vec3
	QXMin   [4]uint8
	Step    types.Vec3
	QXMax   [4]uint8
	QYMin   [4]uint8
	QYMax   [4]uint8
	QZMin   [4]uint8
	QZMax   [4]uint8
	ChildInfo [4]uint32
}

// Quant4 is a converted tree in quantized 4-wide GPU layout.
type Quant4 struct {
	Tree  *Wide
	Nodes []Quant4Node
	Tris  []QuantTri
}

// ToQuant4 converts a 4-wide intermediate tree w into Quant4 layout.
func ToQuant4(w *Wide) *Quant4 {
	if w.Width != 4 {
		fatal(ErrWrongWidth)
	}
	out := &Quant4{Tree: w}
	if len(w.Nodes) == 0 {
		return out
	}
	root := &w.Nodes[w.Root]
	if root.IsLeaf() {
		// A single-leaf tree has no interior node to quantize against;
		// fall back to a degenerate node whose one "child" is the whole
		// root AABB with a zero quantization step.
		node := Quant4Node{AABBMin: root.AABBMin}
		first := uint32(len(out.Tris))
		out.Tris = appendQuantTris(out.Tris, w, root.First, root.TriCount)
		node.ChildInfo[0] = quantLeafBit | (root.TriCount << 16) | first
		out.Nodes = append(out.Nodes, node)
		return out
	}
	convertQuant4Node(w, w.Root, out)
	return out
}

func appendQuantTris(tris []QuantTri, w *Wide, first, count uint32) []QuantTri {
	for _, fragIdx := range w.Tree.PrimIdx[first : first+count] {
		v0, v1, v2 := w.Tree.Input.Triangle(fragIdx)
		tris = append(tris, QuantTri{V0: v0, E1: v1.Sub(v0), E2: v2.Sub(v0), PrimIdx: fragIdx})
	}
	return tris
}

func quantScale(extent float32) float32 {
	if extent > 1e-10 {
		return 254.999 / extent
	}
	return 0
}

func convertQuant4Node(w *Wide, srcIdx uint32, out *Quant4) uint32 {
	src := &w.Nodes[srcIdx]
	idx := uint32(len(out.Nodes))
	out.Nodes = append(out.Nodes, Quant4Node{})

	extent := src.AABBMax.Sub(src.AABBMin)
	node := Quant4Node{
		AABBMin: src.AABBMin,
		Step:    extent.Mul(1.0 / 255.0),
	}
	scale := types.XYZ(quantScale(extent[0]), quantScale(extent[1]), quantScale(extent[2]))

	// childInfo entries for children beyond src.ChildCount stay zero,
	// matching tiny_bvh's "orig.child[i] == 0" empty-slot convention.
	for lane := uint32(0); lane < src.ChildCount; lane++ {
		childIdx := src.Child[lane]
		child := &w.Nodes[childIdx]

		relMin := child.AABBMin.Sub(src.AABBMin)
		relMax := child.AABBMax.Sub(src.AABBMin)
		node.QXMin[lane] = quantFloor(relMin[0] * scale[0])
		node.QXMax[lane] = quantCeil(relMax[0] * scale[0])
		node.QYMin[lane] = quantFloor(relMin[1] * scale[1])
		node.QYMax[lane] = quantCeil(relMax[1] * scale[1])
		node.QZMin[lane] = quantFloor(relMin[2] * scale[2])
		node.QZMax[lane] = quantCeil(relMax[2] * scale[2])

		if child.IsLeaf() {
			first := uint32(len(out.Tris))
			out.Tris = appendQuantTris(out.Tris, w, child.First, child.TriCount)
			node.ChildInfo[lane] = quantLeafBit | (child.TriCount << 16) | first
			continue
		}
		node.ChildInfo[lane] = convertQuant4Node(w, childIdx, out)
	}

	out.Nodes[idx] = node
	return idx
}

func quantFloor(v float32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func quantCeil(v float32) uint8 {
	f := quantFloor(v)
	if float32(f) < v && f < 255 {
		f++
	}
	return f
}
