package bvh

import (
	"math"
	"time"

	"github.com/achilleasa/gobvh/log"
	"github.com/achilleasa/gobvh/types"
)

// Cost constants for the surface area heuristic (spec §4.1 step 3).
const (
	cTrav float32 = 1.0
	cInt  float32 = 1.0

	// Bin count used by the binned SAH sweep; the SIMD builder (C4)
	// requires exactly this value.
	binCount = 8

	// minAxisExtentFrac scales the root AABB extent to produce the
	// per-axis degenerate-axis epsilon described in spec §4.1 step 1.
	minAxisExtentFrac float32 = 1e-7
)

// Options configures a builder. Every builder in this package accepts a
// *Options (nil selects the defaults below), following the teacher's
// renderer/options.go functional-options shape, adapted to a plain struct
// since build parameters are rarely toggled individually at call sites.
type Options struct {
	// Logger receives Debug-level build timing/stats reports. Defaults
	// to a package logger named "bvh" when nil.
	Logger log.Logger

	// MinLeafPrims is the largest fragment count that always becomes a
	// leaf without attempting a split. Defaults to 1 for every builder
	// (the SAH/SBVH builders then only split while it helps).
	MinLeafPrims uint32

	// MaxLeafPrims is stored (defaulting to 8 when zero) but no builder
	// in this package reads it: leaf size is not capped, and a node whose
	// every split is rejected becomes a leaf of any size.
	MaxLeafPrims uint32
}

func (o *Options) logger() log.Logger {
	if o == nil || o.Logger == nil {
		return pkgLogger
	}
	return o.Logger
}

func (o *Options) minLeaf() uint32 {
	if o == nil || o.MinLeafPrims == 0 {
		return 1
	}
	return o.MinLeafPrims
}

func (o *Options) maxLeaf() uint32 {
	if o == nil || o.MaxLeafPrims == 0 {
		return 8
	}
	return o.MaxLeafPrims
}

// task is one pending subdivision on the build stack: the node to fill
// in and the half-open fragment-index range [start,end) of PrimIdx it
// owns.
type task struct {
	node  uint32
	start uint32
	end   uint32
	depth int
}

// bin accumulates the fragments whose centroid falls in it along one
// axis: a count plus their tight union bounds.
type bin struct {
	count int
	aabb  types.AABB
}

func newBins() [binCount]bin {
	var bins [binCount]bin
	for i := range bins {
		bins[i].aabb = types.EmptyAABB()
	}
	return bins
}

// Build constructs a canonical 2-wide BVH over in using the binned SAH
// builder (spec §4.1, C3). The result has Refittable=true, Rebuildable=true,
// MayHaveHoles=false and idxCount==N.
func Build(in *Input, opts *Options) *BVH {
	return buildBinned(in, opts, false)
}

// Rebuild re-runs the binned builder over b's input with opts (the logger
// comes from opts, not from b), producing a fresh tree. Spec §4.14 treats rebuilding
// a tree that has been handed to a layout conversion as a caller bug: once
// a conversion has read the canonical node pool, rebuilding it out from
// under that converted view would silently invalidate it.
func Rebuild(b *BVH, opts *Options) *BVH {
	if !b.Rebuildable {
		fatal(opts.logger(), ErrNotRebuildable)
	}
	return Build(b.Input, opts)
}

func buildBinned(in *Input, opts *Options, flipMin bool) *BVH {
	logger := opts.logger()
	n := in.count()
	if n == 0 {
		fatal(logger, ErrEmptyInput)
	}

	start := time.Now()

	frags := buildFragments(in, flipMin)
	primIdx := make([]uint32, n)
	for i := range primIdx {
		primIdx[i] = uint32(i)
	}

	// Node 0 is the root; node 1 is a reserved pad so node 0 and its
	// first child pair share a cache line (spec §3: "node index 1 is
	// reserved as a pad"). Child pairs always occupy (2k, 2k+1).
	nodes := make([]Node, 2, 2*n)

	b := &BVH{
		Input:          in,
		Nodes:          nodes,
		PrimIdx:        primIdx,
		Frags:          frags,
		N:              n,
		UsedNodes:      1,
		IdxCount:       n,
		Refittable:     true,
		Rebuildable:    true,
		FragMinFlipped: flipMin,
	}

	rootMin, rootMax := types.EmptyAABB().Min, types.EmptyAABB().Max
	for i := range frags {
		bmin, bmax := frags[i].Bounds(flipMin)
		rootMin = types.MinVec3(rootMin, bmin)
		rootMax = types.MaxVec3(rootMax, bmax)
	}
	b.Nodes[0].AABBMin, b.Nodes[0].AABBMax = rootMin, rootMax
	rootExtent := rootMax.Sub(rootMin)
	epsilon := types.Vec3{
		rootExtent[0] * minAxisExtentFrac,
		rootExtent[1] * minAxisExtentFrac,
		rootExtent[2] * minAxisExtentFrac,
	}

	stack := make([]task, 0, 128)
	stack = append(stack, task{node: 0, start: 0, end: n, depth: 0})

	var maxDepth, leafCount int

	for len(stack) > 0 {
		t := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		depth := t.depth
		if depth > maxDepth {
			maxDepth = depth
		}

		node := &b.Nodes[t.node]
		count := t.end - t.start
		if count <= opts.minLeaf() {
			b.makeLeaf(node, t.start, count)
			leafCount++
			continue
		}

		split, ok := findBestObjectSplit(b, t.start, t.end, node.AABB(), epsilon)
		if !ok {
			b.makeLeaf(node, t.start, count)
			leafCount++
			continue
		}

		mid := partitionFragments(b, t.start, t.end, split, node.AABB())
		if mid == t.start || mid == t.end {
			// Degenerate partition (every fragment landed on one
			// side) — spec §4.1 "treat N=0 partitions as a terminal
			// condition even when SAH would want to split."
			b.makeLeaf(node, t.start, count)
			leafCount++
			continue
		}

		leftIdx := uint32(len(b.Nodes))
		rightIdx := leftIdx + 1
		b.Nodes = append(b.Nodes, Node{}, Node{})
		b.UsedNodes += 2

		b.Nodes[leftIdx].AABBMin, b.Nodes[leftIdx].AABBMax = split.leftAABB.Min, split.leftAABB.Max
		b.Nodes[rightIdx].AABBMin, b.Nodes[rightIdx].AABBMax = split.rightAABB.Min, split.rightAABB.Max

		b.Nodes[t.node].LeftFirst = leftIdx
		b.Nodes[t.node].TriCount = 0

		stack = append(stack, task{node: rightIdx, start: mid, end: t.end, depth: depth + 1})
		stack = append(stack, task{node: leftIdx, start: t.start, end: mid, depth: depth + 1})
	}

	logger.Debugf("bvh: binned SAH build: %dms, prims=%d nodes=%d leaves=%d maxDepth=%d",
		time.Since(start).Milliseconds(), n, b.UsedNodes, leafCount, maxDepth)
	return b
}

func (b *BVH) makeLeaf(node *Node, start, count uint32) {
	node.LeftFirst = start
	node.TriCount = count
}

// objectSplit is the result of evaluating the binned SAH sweep over one
// node's fragment range.
type objectSplit struct {
	axis               types.Axis
	binIdx             int // last bin index kept on the left
	cost               float32
	leftAABB, rightAABB types.AABB
	leftCount, rightCount int
}

// findBestObjectSplit runs the binned SAH sweep of spec §4.1 steps 2-4
// over fragments[start:end] and returns the best split found, or
// ok=false if no split beats the no-split cost.
func findBestObjectSplit(b *BVH, start, end uint32, nodeAABB types.AABB, epsilon types.Vec3) (objectSplit, bool) {
	count := end - start
	nodeExtent := nodeAABB.Extent()
	best := objectSplit{cost: float32(math.MaxFloat32)}
	found := false

	for axis := types.AxisX; axis <= types.AxisZ; axis++ {
		if nodeExtent[axis] <= epsilon[axis] {
			continue
		}
		binWidth := nodeExtent[axis] / float32(binCount)
		if binWidth <= 0 {
			continue
		}
		invBinWidth := 1.0 / binWidth
		axisMin := nodeAABB.Min[axis]

		bins := newBins()
		for i := start; i < end; i++ {
			frag := &b.Frags[b.PrimIdx[i]]
			c := frag.Centroid(b.FragMinFlipped)
			idx := clampBin(int((c[axis] - axisMin) * invBinWidth))
			bmin, bmax := frag.Bounds(b.FragMinFlipped)
			bins[idx].count++
			bins[idx].aabb = bins[idx].aabb.Union(types.AABB{Min: bmin, Max: bmax})
		}

		// Prefix (left) sweep.
		var leftCount [binCount]int
		var leftArea [binCount]float32
		var leftAABB [binCount]types.AABB
		acc := types.EmptyAABB()
		accCount := 0
		for k := 0; k < binCount; k++ {
			accCount += bins[k].count
			acc = acc.Union(bins[k].aabb)
			leftCount[k] = accCount
			leftArea[k] = acc.HalfArea()
			leftAABB[k] = acc
		}

		// Suffix (right) sweep.
		var rightCount [binCount]int
		var rightArea [binCount]float32
		var rightAABB [binCount]types.AABB
		acc = types.EmptyAABB()
		accCount = 0
		for k := binCount - 1; k >= 0; k-- {
			accCount += bins[k].count
			acc = acc.Union(bins[k].aabb)
			rightCount[k] = accCount
			rightArea[k] = acc.HalfArea()
			rightAABB[k] = acc
		}

		parentArea := nodeAABB.HalfArea()
		if parentArea <= 0 {
			parentArea = 1
		}

		for k := 0; k < binCount-1; k++ {
			nl, nr := leftCount[k], rightCount[k+1]
			if nl == 0 || nr == 0 {
				continue
			}
			cost := cTrav + cInt*(leftArea[k]*float32(nl)+rightArea[k+1]*float32(nr))/parentArea
			if cost < best.cost {
				best = objectSplit{
					axis: axis, binIdx: k, cost: cost,
					leftAABB: leftAABB[k], rightAABB: rightAABB[k+1],
					leftCount: nl, rightCount: nr,
				}
				found = true
			}
		}
	}

	if !found {
		return objectSplit{}, false
	}
	// Terminate if the best split doesn't beat the no-split (leaf) cost.
	if best.cost >= cInt*float32(count) {
		return objectSplit{}, false
	}
	return best, true
}

// partitionFragments performs the classic two-pointer in-place partition
// of PrimIdx[start:end] by recomputing each fragment's bin index on
// split.axis (using the same node-AABB-relative binning as
// findBestObjectSplit) and moving it left iff that bin index is <=
// split.binIdx (spec §4.1 step 5). Returns the index of the first
// fragment on the right side.
func partitionFragments(b *BVH, start, end uint32, split objectSplit, nodeAABB types.AABB) uint32 {
	axis := split.axis
	axisMin := nodeAABB.Min[axis]
	binWidth := nodeAABB.Extent()[axis] / float32(binCount)
	invBinWidth := 1.0 / binWidth

	i, j := start, end
	for i < j {
		frag := &b.Frags[b.PrimIdx[i]]
		c := frag.Centroid(b.FragMinFlipped)
		idx := clampBin(int((c[axis] - axisMin) * invBinWidth))
		if idx <= split.binIdx {
			i++
			continue
		}
		j--
		b.PrimIdx[i], b.PrimIdx[j] = b.PrimIdx[j], b.PrimIdx[i]
	}
	return i
}

func clampBin(idx int) int {
	if idx < 0 {
		return 0
	}
	if idx >= binCount {
		return binCount - 1
	}
	return idx
}
