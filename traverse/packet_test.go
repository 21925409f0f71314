package traverse

import (
	"math"
	"testing"

	"github.com/achilleasa/gobvh/raytrace"
	"github.com/achilleasa/gobvh/types"
)

// TestIntersectPacketMatchesScalarPerRay lays out a 16x16 patch of rays
// aimed at a grid of triangles, so the packet's shared frustum actually
// encloses all 256 rays, and checks each ray's hit against the scalar
// kernel run one ray at a time.
func TestIntersectPacketMatchesScalarPerRay(t *testing.T) {
	b := buildGrid(t, 64)

	var rays [256]raytrace.Ray
	for row := 0; row < 16; row++ {
		for col := 0; col < 16; col++ {
			idx := row*16 + col
			x := float32(col) * 16
			o := types.Vec3{x + 0.3, 0.3, -10}
			d := types.Vec3{0, 0, 1}
			rays[idx] = raytrace.NewRay(o, d, math.MaxFloat32)
		}
	}

	var want [256]raytrace.Ray
	copy(want[:], rays[:])
	for i := range want {
		ClosestHit(b, &want[i])
	}

	IntersectPacket(b, &rays)

	for i := range rays {
		if rays[i].Hit.Prim != want[i].Hit.Prim {
			t.Fatalf("ray %d: packet hit prim %d, scalar hit prim %d", i, rays[i].Hit.Prim, want[i].Hit.Prim)
		}
		if rays[i].Hit.Prim != raytrace.NoHit && abs32(rays[i].Hit.T-want[i].Hit.T) > 1e-3 {
			t.Fatalf("ray %d: packet t=%v, scalar t=%v", i, rays[i].Hit.T, want[i].Hit.T)
		}
	}
}
