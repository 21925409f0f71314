package bvh

import (
	"bytes"
	"fmt"

	"github.com/olekukonko/tablewriter"
)

// Stats summarizes a built tree for reporting, following the same
// shape as the teacher's asset/scene build report.
type Stats struct {
	Prims      uint32
	UsedNodes  uint32
	IdxCount   uint32
	Leaves     uint32
	MaxDepth   int
	SAHCost    float32
	Refittable bool
	Rebuildable bool
	MayHaveHoles bool
}

// Stats walks the tree and collects reporting data; unlike the per-build
// counters the builders log at Debug level, this is computed on demand
// from the tree as it currently stands (useful after Optimize/MergeLeafs
// or a Refit, when the build-time counters are stale).
func (b *BVH) Stats() Stats {
	s := Stats{
		Prims:       b.N,
		UsedNodes:   b.UsedNodes,
		IdxCount:    b.IdxCount,
		SAHCost:     b.SAHCost(),
		Refittable:  b.Refittable,
		Rebuildable: b.Rebuildable,
		MayHaveHoles: b.MayHaveHoles,
	}
	if b.UsedNodes == 0 {
		return s
	}
	var walk func(idx uint32, depth int)
	walk = func(idx uint32, depth int) {
		if depth > s.MaxDepth {
			s.MaxDepth = depth
		}
		n := &b.Nodes[idx]
		if n.IsLeaf() {
			s.Leaves++
			return
		}
		walk(n.Left(), depth+1)
		walk(n.Right(), depth+1)
	}
	walk(0, 0)
	return s
}

// String renders the stats as a table, using the teacher's
// olekukonko/tablewriter reporting convention.
func (s Stats) String() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Metric", "Value"})
	table.Append([]string{"Primitives", fmt.Sprintf("%d", s.Prims)})
	table.Append([]string{"Nodes", fmt.Sprintf("%d", s.UsedNodes)})
	table.Append([]string{"Leaves", fmt.Sprintf("%d", s.Leaves)})
	table.Append([]string{"Index entries", fmt.Sprintf("%d", s.IdxCount)})
	table.Append([]string{"Max depth", fmt.Sprintf("%d", s.MaxDepth)})
	table.Append([]string{"SAH cost", fmt.Sprintf("%.4f", s.SAHCost)})
	table.Append([]string{"Refittable", fmt.Sprintf("%v", s.Refittable)})
	table.Append([]string{"Rebuildable", fmt.Sprintf("%v", s.Rebuildable)})
	table.Append([]string{"May have holes", fmt.Sprintf("%v", s.MayHaveHoles)})
	table.Render()
	return buf.String()
}
