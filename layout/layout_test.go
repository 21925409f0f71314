package layout

import (
	"testing"

	"github.com/achilleasa/gobvh/bvh"
	"github.com/achilleasa/gobvh/types"
)

func gridTriangles(n int) []types.Vec4 {
	verts := make([]types.Vec4, 0, n*3)
	for i := 0; i < n; i++ {
		x := float32(i) * 4
		verts = append(verts,
			types.Vec3{x, 0, 0}.Vec4(0),
			types.Vec3{x + 1, 0, 0}.Vec4(0),
			types.Vec3{x, 1, 0}.Vec4(0),
		)
	}
	return verts
}

func buildGrid(t *testing.T, n int) *bvh.BVH {
	t.Helper()
	return bvh.Build(&bvh.Input{Verts: gridTriangles(n)}, nil)
}

// wideLeafTriCount walks w from root and sums every leaf's TriCount, to
// check the collapse in toWide doesn't drop or duplicate fragments.
func wideLeafTriCount(w *Wide) uint32 {
	var total uint32
	var walk func(idx uint32)
	walk = func(idx uint32) {
		n := &w.Nodes[idx]
		if n.IsLeaf() {
			total += n.TriCount
			return
		}
		for i := uint32(0); i < n.ChildCount; i++ {
			walk(n.Child[i])
		}
	}
	walk(w.Root)
	return total
}

func TestToWide4PreservesTriangleCount(t *testing.T) {
	b := buildGrid(t, 50)
	w := ToWide4(b)
	if got := wideLeafTriCount(w); got != b.N {
		t.Fatalf("wide4 leaves cover %d triangles, want %d", got, b.N)
	}
}

func TestToWide8PreservesTriangleCount(t *testing.T) {
	b := buildGrid(t, 50)
	w := ToWide8(b)
	if got := wideLeafTriCount(w); got != b.N {
		t.Fatalf("wide8 leaves cover %d triangles, want %d", got, b.N)
	}
}

func TestToWideCollapsesFanoutWithinWidth(t *testing.T) {
	b := buildGrid(t, 200)
	w := ToWide8(b)
	for i := range w.Nodes {
		n := &w.Nodes[i]
		if !n.IsLeaf() && n.ChildCount > w.Width {
			t.Fatalf("node %d has %d children, exceeds width %d", i, n.ChildCount, w.Width)
		}
	}
}

// The GPU2 and SoA2 triangle-count tests walk the source tree's own index
// space (GPU2/SoA2 keep it) rather than a separate traversal, since
// that's the index space their Left/Right/First fields use.
func TestToGPU2PreservesTriangleCount(t *testing.T) {
	b := buildGrid(t, 50)
	g := ToGPU2(b)

	var total uint32
	var walk func(idx uint32)
	walk = func(idx uint32) {
		n := &g.Nodes[idx]
		if n.IsLeaf() {
			total += n.TriCount
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(0)
	if total != b.N {
		t.Fatalf("gpu2 leaves cover %d triangles, want %d", total, b.N)
	}
}

func TestToSoA2PreservesTriangleCount(t *testing.T) {
	b := buildGrid(t, 50)
	s := ToSoA2(b)

	var total uint32
	var walk func(idx uint32)
	walk = func(idx uint32) {
		n := &s.Nodes[idx]
		if n.IsLeaf() {
			total += n.TriCount
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(0)
	if total != b.N {
		t.Fatalf("soa2 leaves cover %d triangles, want %d", total, b.N)
	}
}

func TestToCPU4PreservesTriangleCount(t *testing.T) {
	b := buildGrid(t, 50)
	c := ToCPU4(ToWide4(b))

	if got := wideLeafTriCount(c.Tree); got != b.N {
		t.Fatalf("cpu4's source wide tree covers %d triangles, want %d", got, b.N)
	}
	if len(c.Tris) != int(b.N) {
		t.Fatalf("cpu4 precomputed triangle pool has %d entries, want %d", len(c.Tris), b.N)
	}
}

func TestToQuant4PreservesTriangleCount(t *testing.T) {
	b := buildGrid(t, 50)
	q := ToQuant4(ToWide4(b))
	if len(q.Tris) != int(b.N) {
		t.Fatalf("quant4 precomputed triangle pool has %d entries, want %d", len(q.Tris), b.N)
	}
}

func TestToCWBVHPreservesTriangleCount(t *testing.T) {
	b := buildGrid(t, 50)
	c := ToCWBVH(ToWide8(b))
	if len(c.Tris) != int(b.N) {
		t.Fatalf("cwbvh precomputed triangle pool has %d entries, want %d", len(c.Tris), b.N)
	}
}

func TestRootAABBMatchesAcrossConversions(t *testing.T) {
	b := buildGrid(t, 30)
	want := b.RootAABB()

	w := ToWide4(b)
	got := w.Nodes[w.Root].AABB()
	if !boundsEqual(got, want, 1e-3) {
		t.Fatalf("wide4 root AABB %v, want %v", got, want)
	}

	g := ToGPU2(b)
	// GPU2 stores child bounds inline at the parent, so the root's own
	// bounds are the union of its two inlined child boxes.
	root := &g.Nodes[0]
	rootUnion := types.AABB{Min: root.LMin, Max: root.LMax}.Union(types.AABB{Min: root.RMin, Max: root.RMax})
	if !boundsEqual(rootUnion, want, 1e-3) {
		t.Fatalf("gpu2 root union %v, want %v", rootUnion, want)
	}
}

func boundsEqual(a, b types.AABB, eps float32) bool {
	for i := 0; i < 3; i++ {
		if abs32(a.Min[i]-b.Min[i]) > eps || abs32(a.Max[i]-b.Max[i]) > eps {
			return false
		}
	}
	return true
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
