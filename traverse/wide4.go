package traverse

import (
	"github.com/achilleasa/gobvh/layout"
	"github.com/achilleasa/gobvh/raytrace"
)

type cpu4Entry struct {
	node uint32
	tmin float32
}

// ClosestHitCPU4 is the C11 SIMD-wide closest-hit kernel over a
// layout.CPU4 tree: spec §4.9 describes testing all four children's
// AABBs in parallel, packing the hit lanes' distances into a 4-bit mask,
// and visiting front-to-back via a small sort. This builds the same
// per-node ordering with a per-lane scalar slab test (the scalar
// fallback spec §9 allows where no SIMD backend is wired — see
// bvh.BuildSIMD's equivalent choice) rather than a literal 4-wide
// vector compare.
func ClosestHitCPU4(c *layout.CPU4, ray *raytrace.Ray) bool {
	if len(c.Nodes) == 0 {
		return false
	}
	stack := make([]cpu4Entry, 0, maxStackDepth)
	stack = append(stack, cpu4Entry{node: 0, tmin: 0})
	found := false

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.tmin >= ray.Hit.T {
			continue
		}
		node := &c.Nodes[e.node]

		lanes, dist := activeLanesCPU4(node, ray)
		sortLanesByDistance(lanes, dist)

		var pushQueue [4]uint32
		var pushDist [4]float32
		nPush := 0
		for _, lane := range lanes {
			if dist[lane] >= ray.Hit.T {
				continue
			}
			if node.TriCount[lane] == 0 {
				pushQueue[nPush], pushDist[nPush] = node.ChildFirst[lane], dist[lane]
				nPush++
				continue
			}
			if intersectCPU4Leaf(c, ray, node, lane) {
				found = true
			}
		}
		for i := nPush - 1; i >= 0; i-- {
			stack = append(stack, cpu4Entry{node: pushQueue[i], tmin: pushDist[i]})
		}
	}
	return found
}

// AnyHitCPU4 is ClosestHitCPU4's any-hit sibling.
func AnyHitCPU4(c *layout.CPU4, ray *raytrace.Ray) bool {
	if len(c.Nodes) == 0 {
		return false
	}
	stack := make([]cpu4Entry, 0, maxStackDepth)
	stack = append(stack, cpu4Entry{node: 0, tmin: 0})

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.tmin >= ray.Hit.T {
			continue
		}
		node := &c.Nodes[e.node]

		for lane := 0; lane < 4; lane++ {
			t, hit := slabTestLaneCPU4(node, ray, lane)
			if !hit || t >= ray.Hit.T {
				continue
			}
			if node.TriCount[lane] == 0 {
				stack = append(stack, cpu4Entry{node: node.ChildFirst[lane], tmin: t})
				continue
			}
			if occludedCPU4Leaf(c, ray, node, lane) {
				return true
			}
		}
	}
	return false
}

// activeLanesCPU4 runs the per-lane slab test against all 4 of node's
// children and returns the lanes that hit plus every lane's distance
// (stale entries for missed lanes are never read since the caller only
// iterates the returned lanes slice).
func activeLanesCPU4(node *layout.CPU4Node, ray *raytrace.Ray) ([]int, [4]float32) {
	var lanes []int
	var dist [4]float32
	for lane := 0; lane < 4; lane++ {
		t, hit := slabTestLaneCPU4(node, ray, lane)
		if hit && t < ray.Hit.T {
			dist[lane] = t
			lanes = append(lanes, lane)
		}
	}
	return lanes, dist
}

func slabTestLaneCPU4(node *layout.CPU4Node, ray *raytrace.Ray, lane int) (float32, bool) {
	t0 := (node.XMin[lane] - ray.O[0]) * ray.RD[0]
	t1 := (node.XMax[lane] - ray.O[0]) * ray.RD[0]
	if t0 > t1 {
		t0, t1 = t1, t0
	}
	tMin, tMax := t0, t1

	ylo := (node.YMin[lane] - ray.O[1]) * ray.RD[1]
	yhi := (node.YMax[lane] - ray.O[1]) * ray.RD[1]
	if ylo > yhi {
		ylo, yhi = yhi, ylo
	}
	if ylo > tMin {
		tMin = ylo
	}
	if yhi < tMax {
		tMax = yhi
	}

	zlo := (node.ZMin[lane] - ray.O[2]) * ray.RD[2]
	zhi := (node.ZMax[lane] - ray.O[2]) * ray.RD[2]
	if zlo > zhi {
		zlo, zhi = zhi, zlo
	}
	if zlo > tMin {
		tMin = zlo
	}
	if zhi < tMax {
		tMax = zhi
	}

	if tMax < tMin || tMax < 0 {
		return 0, false
	}
	return tMin, true
}

// sortLanesByDistance sorts the (small, <=4 element) lanes slice
// ascending by dist[lane] using a fixed insertion-sort network, matching
// spec §4.9's "sorted by a small network" rather than reaching for a
// general sort for 4 elements.
func sortLanesByDistance(lanes []int, dist [4]float32) {
	for i := 1; i < len(lanes); i++ {
		for j := i; j > 0 && dist[lanes[j-1]] > dist[lanes[j]]; j-- {
			lanes[j-1], lanes[j] = lanes[j], lanes[j-1]
		}
	}
}

func intersectCPU4Leaf(c *layout.CPU4, ray *raytrace.Ray, node *layout.CPU4Node, lane int) bool {
	found := false
	first, count := node.ChildFirst[lane], node.TriCount[lane]
	for i := uint32(0); i < count; i++ {
		if raytrace.IntersectBW(ray, c.Tris[first+i]) {
			found = true
		}
	}
	return found
}

func occludedCPU4Leaf(c *layout.CPU4, ray *raytrace.Ray, node *layout.CPU4Node, lane int) bool {
	first, count := node.ChildFirst[lane], node.TriCount[lane]
	for i := uint32(0); i < count; i++ {
		tri := c.Tris[first+i]
		save := ray.Hit
		if raytrace.IntersectBW(ray, tri) {
			ray.Hit = save
			return true
		}
	}
	return false
}
