package traverse

import (
	"math"
	"math/bits"

	"github.com/achilleasa/gobvh/layout"
	"github.com/achilleasa/gobvh/raytrace"
	"github.com/achilleasa/gobvh/types"
)

// ClosestHitCWBVH is the C12 compressed 8-wide traversal kernel (spec
// §4.10): a stack of pending node addresses, each popped node's 8 child
// slots decoded from their quantized bounds and tested against the ray,
// hit slots sorted into front-to-back order and either pushed back as
// further nodes (interior) or consumed immediately (leaf). tiny_bvh's
// actual GPU kernel gets the same front-to-back guarantee by XORing the
// build-time octant assignment against the ray's octant (octinv) and
// reading off slot order directly from a bitmask, avoiding a runtime
// sort; this decodes each slot's real distance and sorts the small
// (<=8) hit set instead, which is simpler to read and gives the same
// traversal order without the bit-packed "node group / triangle group"
// machinery a GPU kernel needs to stay branch-free.
func ClosestHitCWBVH(c *layout.CWBVH, ray *raytrace.Ray) bool {
	if len(c.Nodes) == 0 {
		return false
	}
	stack := make([]uint32, 0, maxStackDepth)
	stack = append(stack, 0)
	found := false

	for len(stack) > 0 {
		addr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &c.Nodes[addr]

		slots, dist := hitSlotsCWBVH(node, ray)
		sortSlotsByDistance(slots, dist)

		var pushAddr [8]uint32
		var pushDist [8]float32
		nPush := 0
		for _, slot := range slots {
			if dist[slot] >= ray.Hit.T {
				continue
			}
			if node.IMask&(1<<uint(slot)) != 0 {
				pushAddr[nPush] = node.ChildBaseIndex + interiorRank(node.IMask, slot)
				pushDist[nPush] = dist[slot]
				nPush++
				continue
			}
			if intersectCWBVHLeaf(c, ray, node, slot) {
				found = true
			}
		}
		for i := nPush - 1; i >= 0; i-- {
			stack = append(stack, pushAddr[i])
		}
	}
	return found
}

// AnyHitCWBVH is ClosestHitCWBVH's any-hit sibling.
func AnyHitCWBVH(c *layout.CWBVH, ray *raytrace.Ray) bool {
	if len(c.Nodes) == 0 {
		return false
	}
	stack := make([]uint32, 0, maxStackDepth)
	stack = append(stack, 0)

	for len(stack) > 0 {
		addr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &c.Nodes[addr]

		for slot := 0; slot < 8; slot++ {
			if node.Meta[slot] == 0 {
				continue
			}
			t, hit := slabTestCWBVHSlot(node, ray, slot)
			if !hit || t >= ray.Hit.T {
				continue
			}
			if node.IMask&(1<<uint(slot)) != 0 {
				stack = append(stack, node.ChildBaseIndex+interiorRank(node.IMask, slot))
				continue
			}
			if occludedCWBVHLeaf(c, ray, node, slot) {
				return true
			}
		}
	}
	return false
}

// hitSlotsCWBVH decodes and slab-tests every occupied slot of node,
// returning the ones that hit plus every slot's distance.
func hitSlotsCWBVH(node *layout.CWBVHNode, ray *raytrace.Ray) ([]int, [8]float32) {
	var slots []int
	var dist [8]float32
	for slot := 0; slot < 8; slot++ {
		if node.Meta[slot] == 0 {
			continue
		}
		t, hit := slabTestCWBVHSlot(node, ray, slot)
		if hit && t < ray.Hit.T {
			dist[slot] = t
			slots = append(slots, slot)
		}
	}
	return slots, dist
}

// slabTestCWBVHSlot decodes slot's quantized bounds relative to node and
// runs the slab test against ray.
func slabTestCWBVHSlot(node *layout.CWBVHNode, ray *raytrace.Ray, slot int) (float32, bool) {
	sx, sy, sz := exp2f(node.Ex), exp2f(node.Ey), exp2f(node.Ez)
	box := types.AABB{
		Min: types.XYZ(
			node.Lo[0]+float32(node.QLoX[slot])*sx,
			node.Lo[1]+float32(node.QLoY[slot])*sy,
			node.Lo[2]+float32(node.QLoZ[slot])*sz,
		),
		Max: types.XYZ(
			node.Lo[0]+float32(node.QHiX[slot])*sx,
			node.Lo[1]+float32(node.QHiY[slot])*sy,
			node.Lo[2]+float32(node.QHiZ[slot])*sz,
		),
	}
	return raytrace.SlabTest(ray, box, ray.Hit.T)
}

func exp2f(e int8) float32 {
	return float32(math.Exp2(float64(e)))
}

// interiorRank returns how many interior slots precede slot in imask,
// i.e. slot's position within the contiguous run of child nodes starting
// at ChildBaseIndex.
func interiorRank(imask uint8, slot int) uint32 {
	return uint32(bits.OnesCount8(imask & (1<<uint(slot) - 1)))
}

func intersectCWBVHLeaf(c *layout.CWBVH, ray *raytrace.Ray, node *layout.CWBVHNode, slot int) bool {
	found := false
	first, count := cwbvhLeafRange(node, slot)
	for i := first; i < first+count; i++ {
		tri := c.Tris[i]
		if raytrace.IntersectEdges(ray, tri.V0, tri.E1, tri.E2, tri.PrimIdx) {
			found = true
		}
	}
	return found
}

func occludedCWBVHLeaf(c *layout.CWBVH, ray *raytrace.Ray, node *layout.CWBVHNode, slot int) bool {
	first, count := cwbvhLeafRange(node, slot)
	for i := first; i < first+count; i++ {
		tri := c.Tris[i]
		if raytrace.OccludedEdges(ray, tri.V0, tri.E1, tri.E2, ray.Hit.T) {
			return true
		}
	}
	return false
}

// sortSlotsByDistance is sortLanesByDistance's 8-wide sibling, for the
// up-to-8 occupied slots of a CWBVHNode rather than a CPU4Node's 4 lanes.
func sortSlotsByDistance(slots []int, dist [8]float32) {
	for i := 1; i < len(slots); i++ {
		for j := i; j > 0 && dist[slots[j-1]] > dist[slots[j]]; j-- {
			slots[j-1], slots[j] = slots[j], slots[j-1]
		}
	}
}

// cwbvhLeafRange decodes a leaf slot's meta byte into the absolute
// [first, first+count) range of node.TriangleBaseIndex-relative
// triangles it names, per the unary tri-count/offset encoding
// ToCWBVH writes.
func cwbvhLeafRange(node *layout.CWBVHNode, slot int) (first, count uint32) {
	meta := node.Meta[slot]
	unary := meta >> 5
	offset := uint32(meta & 0x1F)
	return node.TriangleBaseIndex + offset, uint32(bits.OnesCount8(unary))
}
