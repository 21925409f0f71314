package layout

import (
	"math"

	"github.com/achilleasa/gobvh/bvh"
	"github.com/achilleasa/gobvh/types"
)

// cwbvhMaxLeafTris is the hard per-leaf cap CWBVH's unary meta-field
// encoding supports (3 unary bits of count, 0b001/0b011/0b111).
const cwbvhMaxLeafTris = 3

// CWBVHNode is the 80-byte compressed 8-wide node spec §3 describes:
// a parent origin, three per-axis exponents plus an 8-bit interior-child
// mask packed alongside them, a child/triangle base index, one meta byte
// per of the 8 child slots (interior offset or unary leaf tri count +
// running triangle offset), and 8x6 bytes of quantized per-child bounds.
// Grounded on tiny_bvh.h's BVH8_CWBVH::ConvertFrom (Ylitie et al.,
// "Efficient Incoherent Ray Traversal on GPUs Through Compressed Wide
// BVHs", 2017).
type CWBVHNode struct {
	Lo                types.Vec3
	Ex, Ey, Ez        int8
	IMask             uint8
	ChildBaseIndex    uint32
	TriangleBaseIndex uint32
	Meta              [8]uint8
	QLoX, QHiX        [8]uint8
	QLoY, QHiY        [8]uint8
	QLoZ, QHiZ        [8]uint8
}

// CWBVHTri is a triangle stored by value for the compressed leaf's
// triangle pool, in the same (v0, edge1, edge2, primIdx) shape as
// Quant4's pool.
type CWBVHTri struct {
	V0, E1, E2 types.Vec3
	PrimIdx    uint32
}

// CWBVH is a converted tree in compressed 8-wide layout.
type CWBVH struct {
	Tree  *bvh.BVH
	Nodes []CWBVHNode
	Tris  []CWBVHTri
}

// ToCWBVH converts an 8-wide intermediate tree w into CWBVH layout. w's
// leaves are first split so none holds more than 3 triangles
// (cwbvhMaxLeafTris), matching tiny_bvh's SplitBVH8Leaf.
func ToCWBVH(w *Wide) *CWBVH {
	if w.Width != 8 {
		fatal(ErrWrongWidth)
	}
	out := &CWBVH{Tree: w.Tree}
	if len(w.Nodes) == 0 {
		return out
	}
	if w.Nodes[w.Root].IsLeaf() {
		fatal(ErrWrongSource)
	}

	type pending struct {
		srcIdx, dstIdx uint32
	}
	queue := []pending{{w.Root, 0}}
	out.Nodes = append(out.Nodes, CWBVHNode{})
	nextDst := uint32(1)

	for len(queue) > 0 {
		task := queue[0]
		queue = queue[1:]

		// Split any over-full leaf child before slotting/quantizing. Done
		// via a value copy of the parent's child list up front: splitting
		// appends to w.Nodes and may reallocate its backing array, which
		// would leave a *WideNode held across the loop pointing at stale
		// memory.
		srcChildren := w.Nodes[task.srcIdx].Child
		srcChildCount := w.Nodes[task.srcIdx].ChildCount
		for i := uint32(0); i < srcChildCount; i++ {
			splitWideLeaf(w, srcChildren[i], cwbvhMaxLeafTris)
		}
		src := w.Nodes[task.srcIdx]

		order := assignOctants(w, &src)

		lo, hi := src.AABBMin, src.AABBMax
		ex := quantExponent(hi[0] - lo[0])
		ey := quantExponent(hi[1] - lo[1])
		ez := quantExponent(hi[2] - lo[2])

		node := CWBVHNode{Lo: lo, Ex: ex, Ey: ey, Ez: ez}
		scale := types.XYZ(exp2(-float32(ex)), exp2(-float32(ey)), exp2(-float32(ez)))

		var childBaseIndex, triangleBaseIndex uint32
		var internalCount, leafTriCount uint32

		for slot := 0; slot < 8; slot++ {
			i := order[slot]
			if i < 0 {
				continue
			}
			childIdx := src.Child[i]
			child := &w.Nodes[childIdx]

			relLo := child.AABBMin.Sub(lo)
			relHi := child.AABBMax.Sub(lo)
			node.QLoX[slot] = quantFloorI(relLo[0] * scale[0])
			node.QLoY[slot] = quantFloorI(relLo[1] * scale[1])
			node.QLoZ[slot] = quantFloorI(relLo[2] * scale[2])
			node.QHiX[slot] = quantCeilI(relHi[0] * scale[0])
			node.QHiY[slot] = quantCeilI(relHi[1] * scale[1])
			node.QHiZ[slot] = quantCeilI(relHi[2] * scale[2])

			if !child.IsLeaf() {
				childNodeAddr := nextDst
				if internalCount == 0 {
					childBaseIndex = childNodeAddr
				}
				internalCount++
				node.IMask |= 1 << uint(slot)
				node.Meta[slot] = (1 << 5) | uint8(24+slot)
				out.Nodes = append(out.Nodes, CWBVHNode{})
				queue = append(queue, pending{childIdx, childNodeAddr})
				nextDst++
				continue
			}

			tcount := child.TriCount
			if tcount > cwbvhMaxLeafTris {
				tcount = cwbvhMaxLeafTris
			}
			if leafTriCount == 0 {
				triangleBaseIndex = uint32(len(out.Tris))
			}
			unary := unaryLeafCount(tcount)
			node.Meta[slot] = (unary << 5) | uint8(leafTriCount)
			leafTriCount += tcount

			for _, fragIdx := range w.Tree.PrimIdx[child.First : child.First+tcount] {
				v0, v1, v2 := w.Tree.Input.Triangle(fragIdx)
				out.Tris = append(out.Tris, CWBVHTri{V0: v0, E1: v1.Sub(v0), E2: v2.Sub(v0), PrimIdx: fragIdx})
			}
		}

		node.ChildBaseIndex = childBaseIndex
		node.TriangleBaseIndex = triangleBaseIndex
		out.Nodes[task.dstIdx] = node
	}
	return out
}

// assignOctants runs the greedy octant slot assignment cost matrix
// tiny_bvh.h's ConvertFrom uses: for each of the 8 octant sign vectors
// and each of src's (up to 8) children, cost is the dot product of the
// child-to-node centroid offset against the octant's sign vector; the
// algorithm repeatedly assigns the globally cheapest still-open
// (slot, child) pair until every live child has a slot, then drops any
// remaining children into whatever slots are left. Returns order[slot]
// = index into src.Child, or -1 for an empty slot.
func assignOctants(w *Wide, src *WideNode) [8]int {
	nodeCentroid := src.AABBMin.Add(src.AABBMax).Mul(0.5)

	var cost [8][8]float32
	for s := 0; s < 8; s++ {
		sign := octantSign(s)
		for i := 0; i < 8; i++ {
			if uint32(i) >= src.ChildCount {
				cost[s][i] = math.MaxFloat32
				continue
			}
			child := &w.Nodes[src.Child[i]]
			centroid := child.AABBMin.Add(child.AABBMax).Mul(0.5)
			cost[s][i] = centroid.Sub(nodeCentroid).Dot(sign)
		}
	}

	assignment := [8]int{-1, -1, -1, -1, -1, -1, -1, -1}
	slotTaken := [8]bool{}
	for {
		minCost := float32(math.MaxFloat32)
		bestSlot, bestChild := -1, -1
		for s := 0; s < 8; s++ {
			if slotTaken[s] {
				continue
			}
			for i := 0; i < 8; i++ {
				if assignment[i] != -1 || uint32(i) >= src.ChildCount {
					continue
				}
				if cost[s][i] < minCost {
					minCost, bestSlot, bestChild = cost[s][i], s, i
				}
			}
		}
		if bestSlot == -1 {
			break
		}
		slotTaken[bestSlot] = true
		assignment[bestChild] = bestSlot
	}
	// any unassigned children (shouldn't happen once ChildCount<=8, but
	// mirror tiny_bvh's fallback pass for safety) take the first open slot
	for i := 0; i < 8; i++ {
		if uint32(i) >= src.ChildCount || assignment[i] != -1 {
			continue
		}
		for s := 0; s < 8; s++ {
			if !slotTaken[s] {
				slotTaken[s] = true
				assignment[i] = s
				break
			}
		}
	}

	var order [8]int
	for s := range order {
		order[s] = -1
	}
	for i, s := range assignment {
		if s != -1 {
			order[s] = i
		}
	}
	return order
}

// octantSign returns the +-1 sign vector for octant index s, per
// tiny_bvh's bit convention (bit2=x, bit1=y, bit0=z; set means -1).
func octantSign(s int) types.Vec3 {
	sx, sy, sz := float32(1), float32(1), float32(1)
	if (s>>2)&1 == 1 {
		sx = -1
	}
	if (s>>1)&1 == 1 {
		sy = -1
	}
	if s&1 == 1 {
		sz = -1
	}
	return types.XYZ(sx, sy, sz)
}

// quantExponent computes the per-axis exponent ex such that
// 2^ex >= extent/255, per tiny_bvh's ceil(log2(extent/255)), clamped to
// an int8 the way the packed meta byte requires.
func quantExponent(extent float32) int8 {
	if extent <= 0 {
		return 0
	}
	e := int32(math.Ceil(float64(log2(extent / 255.0))))
	if e > 127 {
		e = 127
	}
	if e < -127 {
		e = -127
	}
	return int8(e)
}

func log2(x float32) float32 {
	return float32(math.Log2(float64(x)))
}

func exp2(x float32) float32 {
	return float32(math.Exp2(float64(x)))
}

func quantFloorI(v float32) uint8 {
	f := math.Floor(float64(v))
	return clampByte(f)
}

func quantCeilI(v float32) uint8 {
	f := math.Ceil(float64(v))
	return clampByte(f)
}

func clampByte(f float64) uint8 {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f)
}

// unaryLeafCount packs a 1-3 triangle count into CWBVH's unary meta
// encoding (0b001, 0b011, 0b111).
func unaryLeafCount(count uint32) uint8 {
	switch count {
	case 1:
		return 0b001
	case 2:
		return 0b011
	default:
		return 0b111
	}
}

// splitWideLeaf turns a leaf with more than maxPrims triangles into an
// interior node whose children are freshly appended leaves of at most
// maxPrims triangles each, recursing if a single new leaf is still
// over-full (more than maxWide*maxPrims original triangles). Grounded on
// tiny_bvh.h's BVH8::SplitBVH8Leaf; unlike that implementation (which
// reuses the parent's own AABB for split children when the source tree
// isn't refittable, a path tiny_bvh's own comments flag as buggy for
// SBVH trees), this always recomputes each new leaf's tight bounds from
// its fragments, which is correct for every source tree regardless of
// Refittable.
func splitWideLeaf(w *Wide, nodeIdx uint32, maxPrims uint32) {
	if w.Nodes[nodeIdx].TriCount <= maxPrims {
		return
	}
	node := w.Nodes[nodeIdx]

	firstChildIdx := uint32(len(w.Nodes))
	w.Nodes = append(w.Nodes, WideNode{TriCount: node.TriCount, First: node.First})

	nextChild := uint32(1)
	for w.Nodes[firstChildIdx].TriCount > maxPrims && nextChild < maxWide {
		firstChild := &w.Nodes[firstChildIdx]
		childIdx := uint32(len(w.Nodes))
		firstChild.TriCount -= maxPrims
		newFirst := firstChild.First + firstChild.TriCount
		w.Nodes = append(w.Nodes, WideNode{TriCount: maxPrims, First: newFirst})
		node.Child[nextChild] = childIdx
		nextChild++
	}
	node.Child[0] = firstChildIdx
	node.ChildCount = nextChild
	node.TriCount = 0

	for i := uint32(0); i < nextChild; i++ {
		c := &w.Nodes[node.Child[i]]
		c.AABBMin, c.AABBMax = leafBounds(w.Tree, c.First, c.TriCount)
	}
	w.Nodes[nodeIdx] = node

	if w.Nodes[firstChildIdx].TriCount > maxPrims {
		splitWideLeaf(w, firstChildIdx, maxPrims)
	}
}

// leafBounds computes the tight AABB of fragments [first, first+count)
// in tree, dispatching through Input.Bounds so it works for triangle
// meshes and custom AABB primitives alike.
func leafBounds(tree *bvh.BVH, first, count uint32) (types.Vec3, types.Vec3) {
	box := types.EmptyAABB()
	for _, fragIdx := range tree.PrimIdx[first : first+count] {
		bmin, bmax := tree.Input.Bounds(fragIdx)
		box.Min = types.MinVec3(box.Min, bmin)
		box.Max = types.MaxVec3(box.Max, bmax)
	}
	return box.Min, box.Max
}
