package tlas

import (
	"math"
	"testing"

	"github.com/achilleasa/gobvh/bvh"
	"github.com/achilleasa/gobvh/raytrace"
	"github.com/achilleasa/gobvh/types"
)

func translation(x, y, z float32) types.Mat4 {
	m := types.Ident4()
	m[3], m[7], m[11] = x, y, z
	return m
}

func unitTriangleBLAS() *bvh.BVH {
	verts := []types.Vec4{
		{0, 0, 0, 0}, {1, 0, 0, 0}, {0, 1, 0, 0},
	}
	return bvh.Build(&bvh.Input{Verts: verts}, nil)
}

func TestClosestHitTransformsRayIntoInstanceSpace(t *testing.T) {
	blas := unitTriangleBLAS()

	instA := NewBLASInstance(blas)
	instA.SetTransform(translation(0, 0, 0))

	instB := NewBLASInstance(blas)
	instB.SetTransform(translation(10, 0, 0))

	tl := Build([]*BLASInstance{instA, instB}, nil)

	// Aim at instance B's copy of the triangle: world (10.2, 0.2, 0).
	ray := raytrace.NewRay(types.Vec3{10.2, 0.2, -10}, types.Vec3{0, 0, 1}, math.MaxFloat32)
	if !ClosestHit(tl, &ray) {
		t.Fatal("expected a hit on instance B's triangle")
	}

	instIdx, primIdx := UnpackHit(ray.Hit.Prim)
	if instIdx != 1 {
		t.Fatalf("expected instance 1 (B), got %d", instIdx)
	}
	if primIdx != 0 {
		t.Fatalf("expected primitive 0, got %d", primIdx)
	}
	if abs32(ray.Hit.T-10) > 1e-3 {
		t.Fatalf("expected t=10, got %v", ray.Hit.T)
	}
}

func TestClosestHitMissesBetweenInstances(t *testing.T) {
	blas := unitTriangleBLAS()

	instA := NewBLASInstance(blas)
	instA.SetTransform(translation(0, 0, 0))
	instB := NewBLASInstance(blas)
	instB.SetTransform(translation(10, 0, 0))

	tl := Build([]*BLASInstance{instA, instB}, nil)

	ray := raytrace.NewRay(types.Vec3{5, 5, -10}, types.Vec3{0, 0, 1}, math.MaxFloat32)
	if ClosestHit(tl, &ray) {
		instIdx, primIdx := UnpackHit(ray.Hit.Prim)
		t.Fatalf("expected a miss, got instance/prim %d/%d at t=%v", instIdx, primIdx, ray.Hit.T)
	}
}

func TestAnyHitOccludesAcrossInstances(t *testing.T) {
	blas := unitTriangleBLAS()
	instA := NewBLASInstance(blas)
	instA.SetTransform(translation(0, 0, 0))
	instB := NewBLASInstance(blas)
	instB.SetTransform(translation(10, 0, 0))

	tl := Build([]*BLASInstance{instA, instB}, nil)

	ray := raytrace.NewRay(types.Vec3{10.2, 0.2, -10}, types.Vec3{0, 0, 1}, math.MaxFloat32)
	if !AnyHit(tl, &ray) {
		t.Fatal("expected instance B's triangle to occlude the ray")
	}
}

func TestPackUnpackHitRoundTrip(t *testing.T) {
	packed := PackHit(200, 1<<20)
	instIdx, primIdx := UnpackHit(packed)
	if instIdx != 200 || primIdx != 1<<20 {
		t.Fatalf("round trip failed: inst=%d prim=%d", instIdx, primIdx)
	}
}

func TestUpdateRecomputesWorldBounds(t *testing.T) {
	blas := unitTriangleBLAS()
	inst := NewBLASInstance(blas)
	root := blas.RootAABB()

	inst.SetTransform(translation(5, 0, 0))
	want := root.Transform(translation(5, 0, 0))

	if !boundsEqual(inst.WorldBounds, want, 1e-4) {
		t.Fatalf("world bounds %v, want %v", inst.WorldBounds, want)
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
