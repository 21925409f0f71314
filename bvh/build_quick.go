package bvh

import (
	"time"

	"github.com/achilleasa/gobvh/types"
)

// BuildQuick constructs a canonical 2-wide BVH by splitting each node on
// the midpoint of its longest axis, with no SAH cost evaluation (spec
// §4.4, C6). It trades tree quality for build speed: use it when the
// scene rebuilds every frame and build time, not trace time, dominates.
// The result has Refittable=true, Rebuildable=true, MayHaveHoles=false.
func BuildQuick(in *Input, opts *Options) *BVH {
	logger := opts.logger()
	n := in.count()
	if n == 0 {
		fatal(logger, ErrEmptyInput)
	}

	start := time.Now()

	frags := buildFragments(in, false)
	primIdx := make([]uint32, n)
	for i := range primIdx {
		primIdx[i] = uint32(i)
	}

	nodes := make([]Node, 2, 2*n)

	b := &BVH{
		Input:       in,
		Nodes:       nodes,
		PrimIdx:     primIdx,
		Frags:       frags,
		N:           n,
		UsedNodes:   1,
		IdxCount:    n,
		Refittable:  true,
		Rebuildable: true,
	}

	rootMin, rootMax := types.EmptyAABB().Min, types.EmptyAABB().Max
	for i := range frags {
		bmin, bmax := frags[i].Bounds(false)
		rootMin = types.MinVec3(rootMin, bmin)
		rootMax = types.MaxVec3(rootMax, bmax)
	}
	b.Nodes[0].AABBMin, b.Nodes[0].AABBMax = rootMin, rootMax

	stack := make([]task, 0, 128)
	stack = append(stack, task{node: 0, start: 0, end: n, depth: 0})

	var maxDepth, leafCount int

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if t.depth > maxDepth {
			maxDepth = t.depth
		}

		node := &b.Nodes[t.node]
		count := t.end - t.start
		if count <= opts.minLeaf() {
			b.makeLeaf(node, t.start, count)
			leafCount++
			continue
		}

		nodeAABB := node.AABB()
		axis := nodeAABB.LongestAxis()
		mid := midpointPartition(b, t.start, t.end, axis, nodeAABB.Center()[axis])
		if mid == t.start || mid == t.end {
			b.makeLeaf(node, t.start, count)
			leafCount++
			continue
		}

		leftIdx := uint32(len(b.Nodes))
		rightIdx := leftIdx + 1
		b.Nodes = append(b.Nodes, Node{}, Node{})
		b.UsedNodes += 2

		b.Nodes[leftIdx].AABBMin, b.Nodes[leftIdx].AABBMax = fragRangeBounds(b, t.start, mid)
		b.Nodes[rightIdx].AABBMin, b.Nodes[rightIdx].AABBMax = fragRangeBounds(b, mid, t.end)

		b.Nodes[t.node].LeftFirst = leftIdx
		b.Nodes[t.node].TriCount = 0

		stack = append(stack, task{node: rightIdx, start: mid, end: t.end, depth: t.depth + 1})
		stack = append(stack, task{node: leftIdx, start: t.start, end: mid, depth: t.depth + 1})
	}

	logger.Debugf("bvh: quick midpoint build: %dms, prims=%d nodes=%d leaves=%d maxDepth=%d",
		time.Since(start).Milliseconds(), n, b.UsedNodes, leafCount, maxDepth)
	return b
}

// midpointPartition moves every fragment in [start,end) whose centroid
// lies at or before pos on axis to the front of the range, returning the
// index of the first fragment past it.
func midpointPartition(b *BVH, start, end uint32, axis types.Axis, pos float32) uint32 {
	i, j := start, end
	for i < j {
		c := b.Frags[b.PrimIdx[i]].Centroid(false)
		if c[axis] <= pos {
			i++
			continue
		}
		j--
		b.PrimIdx[i], b.PrimIdx[j] = b.PrimIdx[j], b.PrimIdx[i]
	}
	return i
}

func fragRangeBounds(b *BVH, start, end uint32) (types.Vec3, types.Vec3) {
	box := types.EmptyAABB()
	for i := start; i < end; i++ {
		bmin, bmax := b.Frags[b.PrimIdx[i]].Bounds(false)
		box.Min = types.MinVec3(box.Min, bmin)
		box.Max = types.MaxVec3(box.Max, bmax)
	}
	return box.Min, box.Max
}
