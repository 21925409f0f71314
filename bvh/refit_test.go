package bvh

import (
	"testing"

	"github.com/achilleasa/gobvh/types"
)

func TestRefitAfterVertexMove(t *testing.T) {
	in := triangleSoup(gridTriangles(16))
	b := Build(in, nil)

	// Move every vertex two units along X and refit; the root AABB
	// should follow without rebuilding.
	for i := range in.Verts {
		in.Verts[i][0] += 2
	}
	Refit(b, nil)

	want := types.EmptyAABB()
	for _, v := range in.Verts {
		p := v.Vec3()
		want.Min = types.MinVec3(want.Min, p)
		want.Max = types.MaxVec3(want.Max, p)
	}
	if !boundsEqual(b.RootAABB(), want, 1e-3) {
		t.Fatalf("root AABB after refit = %v, want %v", b.RootAABB(), want)
	}
	checkEnclosure(t, b)
}

func TestRefitOnSBVHTreeIsFatalByContract(t *testing.T) {
	// Refit(sbvhTree) calls fatal() -> os.Exit; the SBVH builder setting
	// Refittable=false is what we can check without killing the test
	// binary.
	in := triangleSoup(gridTriangles(8))
	b := BuildSBVH(in, nil)
	if b.Refittable {
		t.Fatal("SBVH tree must report Refittable=false so callers see Refit is unavailable")
	}
}
