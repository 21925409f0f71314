package traverse

import (
	"math"
	"testing"

	"github.com/achilleasa/gobvh/bvh"
	"github.com/achilleasa/gobvh/raytrace"
	"github.com/achilleasa/gobvh/types"
)

func triangleGrid(n int) []types.Vec4 {
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
	return bvh.Build(&bvh.Input{Verts: triangleGrid(n)}, nil)
}

func TestClosestHitFindsNearestTriangle(t *testing.T) {
	b := buildGrid(t, 20)

	// A ray straight down the z-axis at triangle index 5's centroid-ish
	// point should hit triangle 5 and nothing closer.
	ray := raytrace.NewRay(types.Vec3{20.3, 0.3, -10}, types.Vec3{0, 0, 1}, math.MaxFloat32)
	if !ClosestHit(b, &ray) {
		t.Fatal("expected a hit")
	}
	if ray.Hit.Prim != 5 {
		t.Fatalf("expected prim 5, got %d", ray.Hit.Prim)
	}
	if ray.Hit.T <= 0 {
		t.Fatalf("expected positive t, got %v", ray.Hit.T)
	}
}

func TestClosestHitMiss(t *testing.T) {
	b := buildGrid(t, 20)
	ray := raytrace.NewRay(types.Vec3{1000, 1000, -10}, types.Vec3{0, 0, 1}, math.MaxFloat32)
	if ClosestHit(b, &ray) {
		t.Fatalf("expected a miss, got hit on prim %d at t=%v", ray.Hit.Prim, ray.Hit.T)
	}
	if ray.Hit.Prim != raytrace.NoHit {
		t.Fatalf("miss must leave Hit.Prim at NoHit, got %d", ray.Hit.Prim)
	}
}

func TestAnyHitAgreesWithClosestHit(t *testing.T) {
	b := buildGrid(t, 30)
	for i := 0; i < 30; i++ {
		x := float32(i) * 4
		o := types.Vec3{x + 0.2, 0.2, -10}
		d := types.Vec3{0, 0, 1}

		closest := raytrace.NewRay(o, d, math.MaxFloat32)
		gotClosest := ClosestHit(b, &closest)

		any := raytrace.NewRay(o, d, math.MaxFloat32)
		gotAny := AnyHit(b, &any)

		if gotClosest != gotAny {
			t.Fatalf("prim %d: ClosestHit=%v AnyHit=%v disagree", i, gotClosest, gotAny)
		}
	}
}

func TestAnyHitRespectsMaxT(t *testing.T) {
	b := buildGrid(t, 5)
	ray := raytrace.NewRay(types.Vec3{0.2, 0.2, -10}, types.Vec3{0, 0, 1}, 5)
	if AnyHit(b, &ray) {
		t.Fatal("triangle is at t=10, should not be occluded within maxT=5")
	}
}
