package main

import (
	"math/rand"

	"github.com/achilleasa/gobvh/types"
)

// genTriangleSoup scatters n small triangles inside the [-1,1]^3 cube: a
// random centroid plus three random offsets, following the
// math/rand.New(rand.NewSource(seed)) seeding convention the example
// pack's photons4d generator uses for reproducible synthetic runs.
func genTriangleSoup(n uint32, seed int64) []types.Vec4 {
	rng := rand.New(rand.NewSource(seed))
	verts := make([]types.Vec4, 0, 3*n)
	const spread = 0.02

	for i := uint32(0); i < n; i++ {
		cx := rng.Float64()*2 - 1
		cy := rng.Float64()*2 - 1
		cz := rng.Float64()*2 - 1
		for k := 0; k < 3; k++ {
			x := cx + (rng.Float64()*2-1)*spread
			y := cy + (rng.Float64()*2-1)*spread
			z := cz + (rng.Float64()*2-1)*spread
			verts = append(verts, types.Vec4{float32(x), float32(y), float32(z), 0})
		}
	}
	return verts
}

// genRays builds n rays with random origins in the [-4,4]^3 cube (so
// most, but not all, start outside the geometry's [-1,1]^3 cube), each
// aimed at its own random target point inside [-1,1]^3 so they spread
// across the scattered geometry rather than all converging on one point.
func genRays(n uint32, seed int64, maxT float32) []rayPair {
	rng := rand.New(rand.NewSource(seed))
	rays := make([]rayPair, n)
	for i := range rays {
		o := types.Vec3{
			float32(rng.Float64()*2-1) * 4,
			float32(rng.Float64()*2-1) * 4,
			float32(rng.Float64()*2-1) * 4,
		}
		target := types.Vec3{
			float32(rng.Float64()*2 - 1),
			float32(rng.Float64()*2 - 1),
			float32(rng.Float64()*2 - 1),
		}
		d := target.Sub(o).Normalize()
		rays[i] = rayPair{o: o, d: d, maxT: maxT}
	}
	return rays
}

type rayPair struct {
	o, d types.Vec3
	maxT float32
}
