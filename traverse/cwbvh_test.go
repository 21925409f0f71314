package traverse

import (
	"math"
	"testing"

	"github.com/achilleasa/gobvh/layout"
	"github.com/achilleasa/gobvh/raytrace"
	"github.com/achilleasa/gobvh/types"
)

func TestClosestHitCWBVHMatchesScalar(t *testing.T) {
	b := buildGrid(t, 40)
	c := layout.ToCWBVH(layout.ToWide8(b))

	for i := 0; i < 40; i++ {
		x := float32(i) * 4
		o := types.Vec3{x + 0.1, 0.1, -10}
		d := types.Vec3{0, 0, 1}

		want := raytrace.NewRay(o, d, math.MaxFloat32)
		gotClosest := ClosestHit(b, &want)

		got := raytrace.NewRay(o, d, math.MaxFloat32)
		gotCWBVH := ClosestHitCWBVH(c, &got)

		if gotClosest != gotCWBVH {
			t.Fatalf("ray %d: scalar=%v cwbvh=%v disagree", i, gotClosest, gotCWBVH)
		}
		if gotClosest && (want.Hit.Prim != got.Hit.Prim || abs32(want.Hit.T-got.Hit.T) > 1e-2) {
			t.Fatalf("ray %d: scalar hit %+v, cwbvh hit %+v", i, want.Hit, got.Hit)
		}
	}
}

func TestAnyHitCWBVHMatchesScalar(t *testing.T) {
	b := buildGrid(t, 20)
	c := layout.ToCWBVH(layout.ToWide8(b))

	o := types.Vec3{1000, 1000, -10}
	d := types.Vec3{0, 0, 1}

	want := raytrace.NewRay(o, d, math.MaxFloat32)
	got := raytrace.NewRay(o, d, math.MaxFloat32)

	if AnyHit(b, &want) || AnyHitCWBVH(c, &got) {
		t.Fatal("ray well outside the grid should not be occluded in either kernel")
	}
}
