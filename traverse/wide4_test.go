package traverse

import (
	"math"
	"testing"

	"github.com/achilleasa/gobvh/layout"
	"github.com/achilleasa/gobvh/raytrace"
	"github.com/achilleasa/gobvh/types"
)

func TestClosestHitCPU4MatchesScalar(t *testing.T) {
	b := buildGrid(t, 40)
	c := layout.ToCPU4(layout.ToWide4(b))

	for i := 0; i < 40; i++ {
		x := float32(i) * 4
		o := types.Vec3{x + 0.1, 0.1, -10}
		d := types.Vec3{0, 0, 1}

		want := raytrace.NewRay(o, d, math.MaxFloat32)
		gotClosest := ClosestHit(b, &want)

		got := raytrace.NewRay(o, d, math.MaxFloat32)
		gotCPU4 := ClosestHitCPU4(c, &got)

		if gotClosest != gotCPU4 {
			t.Fatalf("ray %d: scalar=%v cpu4=%v disagree", i, gotClosest, gotCPU4)
		}
		if gotClosest && (want.Hit.Prim != got.Hit.Prim || abs32(want.Hit.T-got.Hit.T) > 1e-3) {
			t.Fatalf("ray %d: scalar hit %+v, cpu4 hit %+v", i, want.Hit, got.Hit)
		}
	}
}

func TestAnyHitCPU4MatchesScalar(t *testing.T) {
	b := buildGrid(t, 20)
	c := layout.ToCPU4(layout.ToWide4(b))

	o := types.Vec3{1000, 1000, -10}
	d := types.Vec3{0, 0, 1}

	want := raytrace.NewRay(o, d, math.MaxFloat32)
	got := raytrace.NewRay(o, d, math.MaxFloat32)

	if AnyHit(b, &want) || AnyHitCPU4(c, &got) {
		t.Fatal("ray well outside the grid should not be occluded in either kernel")
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
