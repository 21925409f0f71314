package raytrace

import (
	"math"
	"testing"

	"github.com/achilleasa/gobvh/types"
)

func unitTriangle() (types.Vec3, types.Vec3, types.Vec3) {
	return types.Vec3{0, 0, 0}, types.Vec3{1, 0, 0}, types.Vec3{0, 1, 0}
}

func TestIntersectTriangleHit(t *testing.T) {
	v0, v1, v2 := unitTriangle()
	ray := NewRay(types.Vec3{0.2, 0.2, -5}, types.Vec3{0, 0, 1}, math.MaxFloat32)

	if !IntersectTriangle(&ray, v0, v1, v2, 7) {
		t.Fatal("expected a hit")
	}
	if ray.Hit.Prim != 7 {
		t.Fatalf("expected prim 7, got %d", ray.Hit.Prim)
	}
	if abs32(ray.Hit.T-5) > 1e-4 {
		t.Fatalf("expected t=5, got %v", ray.Hit.T)
	}
	if abs32(ray.Hit.U-0.2) > 1e-4 || abs32(ray.Hit.V-0.2) > 1e-4 {
		t.Fatalf("expected u=v=0.2, got u=%v v=%v", ray.Hit.U, ray.Hit.V)
	}
}

func TestIntersectTriangleMissOutsideEdges(t *testing.T) {
	v0, v1, v2 := unitTriangle()
	ray := NewRay(types.Vec3{0.9, 0.9, -5}, types.Vec3{0, 0, 1}, math.MaxFloat32)
	if IntersectTriangle(&ray, v0, v1, v2, 0) {
		t.Fatalf("point (0.9,0.9) lies outside the unit triangle, should miss")
	}
}

func TestIntersectTriangleRejectsFartherThanCurrentHit(t *testing.T) {
	v0, v1, v2 := unitTriangle()
	ray := NewRay(types.Vec3{0.2, 0.2, -5}, types.Vec3{0, 0, 1}, math.MaxFloat32)
	ray.Hit.T = 3 // pretend something closer was already found

	if IntersectTriangle(&ray, v0, v1, v2, 7) {
		t.Fatal("a hit at t=5 must not beat an existing hit at t=3")
	}
	if ray.Hit.T != 3 {
		t.Fatalf("rejected hit must not modify the existing hit record, got t=%v", ray.Hit.T)
	}
}

func TestOccludedTriangleRespectsMaxT(t *testing.T) {
	v0, v1, v2 := unitTriangle()
	ray := NewRay(types.Vec3{0.2, 0.2, -5}, types.Vec3{0, 0, 1}, math.MaxFloat32)
	if OccludedTriangle(&ray, v0, v1, v2, 3) {
		t.Fatal("triangle is at t=5, must not occlude within maxT=3")
	}
	if !OccludedTriangle(&ray, v0, v1, v2, 10) {
		t.Fatal("triangle is at t=5, must occlude within maxT=10")
	}
}

func TestIntersectEdgesMatchesIntersectTriangle(t *testing.T) {
	v0, v1, v2 := unitTriangle()
	e1, e2 := v1.Sub(v0), v2.Sub(v0)

	for _, o := range []types.Vec3{{0.2, 0.2, -5}, {0.05, 0.05, -1}, {0.9, 0.05, -3}} {
		want := NewRay(o, types.Vec3{0, 0, 1}, math.MaxFloat32)
		gotHit := IntersectTriangle(&want, v0, v1, v2, 1)

		got := NewRay(o, types.Vec3{0, 0, 1}, math.MaxFloat32)
		gotEdgesHit := IntersectEdges(&got, v0, e1, e2, 1)

		if gotHit != gotEdgesHit {
			t.Fatalf("origin %v: IntersectTriangle=%v IntersectEdges=%v disagree", o, gotHit, gotEdgesHit)
		}
		if gotHit && (want.Hit.T != got.Hit.T || want.Hit.U != got.Hit.U || want.Hit.V != got.Hit.V) {
			t.Fatalf("origin %v: hit records differ: %+v vs %+v", o, want.Hit, got.Hit)
		}
	}
}

func TestPrecomputeBWMatchesIntersectTriangle(t *testing.T) {
	v0, v1, v2 := unitTriangle()
	bw := PrecomputeBW(v0, v1, v2, 3)

	for _, o := range []types.Vec3{{0.2, 0.2, -5}, {0.05, 0.05, -1}} {
		want := NewRay(o, types.Vec3{0, 0, 1}, math.MaxFloat32)
		gotHit := IntersectTriangle(&want, v0, v1, v2, 3)

		got := NewRay(o, types.Vec3{0, 0, 1}, math.MaxFloat32)
		gotBWHit := IntersectBW(&got, bw)

		if gotHit != gotBWHit {
			t.Fatalf("origin %v: IntersectTriangle=%v IntersectBW=%v disagree", o, gotHit, gotBWHit)
		}
		if gotHit && abs32(want.Hit.T-got.Hit.T) > 1e-4 {
			t.Fatalf("origin %v: t differs: %v vs %v", o, want.Hit.T, got.Hit.T)
		}
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
