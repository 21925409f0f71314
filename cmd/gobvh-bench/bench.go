package main

import (
	"fmt"
	"math"
	"time"

	"github.com/achilleasa/gobvh/bvh"
	"github.com/achilleasa/gobvh/layout"
	"github.com/achilleasa/gobvh/raytrace"
	"github.com/achilleasa/gobvh/traverse"
)

// buildTree runs the requested builder over a freshly generated
// triangle soup.
func buildTree(builder string, prims uint32, seed int64, opts *bvh.Options) (*bvh.BVH, error) {
	in := &bvh.Input{Verts: genTriangleSoup(prims, seed)}

	switch builder {
	case "bin":
		return bvh.Build(in, opts), nil
	case "simd":
		return bvh.BuildSIMD(in, opts), nil
	case "sbvh":
		return bvh.BuildSBVH(in, opts), nil
	case "quick":
		return bvh.BuildQuick(in, opts), nil
	default:
		return nil, fmt.Errorf("unknown builder %q", builder)
	}
}

// runResult is what a single bench run reports.
type runResult struct {
	builder    string
	layoutName string
	buildTime  float64 // ms
	convTime   float64 // ms
	traceTime  float64 // ms, zero if not traced
	rays       uint32
	hits       uint32
	stats      bvh.Stats
}

func runBench(builder, layoutName string, prims, rays uint32, seed int64, packet bool, opts *bvh.Options) (*runResult, error) {
	t := startTimer()
	b, err := buildTree(builder, prims, seed, opts)
	if err != nil {
		return nil, err
	}
	res := &runResult{builder: builder, layoutName: layoutName, buildTime: ms(t.elapsed())}

	switch layoutName {
	case "bvh2":
		res.stats = b.Stats()
		res.traceScalar(b, rays, seed, packet)
	case "gpu2":
		ct := startTimer()
		g := layout.ToGPU2(b)
		res.convTime = ms(ct.elapsed())
		res.stats = g.Tree.Stats()
	case "soa2":
		ct := startTimer()
		s := layout.ToSoA2(b)
		res.convTime = ms(ct.elapsed())
		res.stats = s.Tree.Stats()
	case "wide4":
		ct := startTimer()
		w := layout.ToWide4(b)
		res.convTime = ms(ct.elapsed())
		res.stats = w.Tree.Stats()
	case "wide8":
		ct := startTimer()
		w := layout.ToWide8(b)
		res.convTime = ms(ct.elapsed())
		res.stats = w.Tree.Stats()
	case "cpu4":
		ct := startTimer()
		c := layout.ToCPU4(layout.ToWide4(b))
		res.convTime = ms(ct.elapsed())
		res.stats = c.Tree.Tree.Stats()
		res.traceCPU4(c, rays, seed)
	case "quant4":
		ct := startTimer()
		q := layout.ToQuant4(layout.ToWide4(b))
		res.convTime = ms(ct.elapsed())
		res.stats = q.Tree.Tree.Stats()
	case "cwbvh":
		ct := startTimer()
		c := layout.ToCWBVH(layout.ToWide8(b))
		res.convTime = ms(ct.elapsed())
		res.stats = c.Tree.Stats()
		res.traceCWBVH(c, rays, seed)
	default:
		return nil, fmt.Errorf("unknown layout %q", layoutName)
	}

	return res, nil
}

func (res *runResult) traceScalar(b *bvh.BVH, rayCount uint32, seed int64, packet bool) {
	if packet {
		if rayCount < 256 {
			rayCount = 256
		}
		blocks := genRays(rayCount, seed+1, math.MaxFloat32)
		tt := startTimer()
		for base := 0; base+256 <= len(blocks); base += 256 {
			var rays [256]raytrace.Ray
			for i := range rays {
				p := blocks[base+i]
				rays[i] = raytrace.NewRay(p.o, p.d, p.maxT)
			}
			traverse.IntersectPacket(b, &rays)
			for i := range rays {
				if rays[i].Hit.Prim != raytrace.NoHit {
					res.hits++
				}
			}
			res.rays += 256
		}
		res.traceTime = ms(tt.elapsed())
		return
	}

	pairs := genRays(rayCount, seed+1, math.MaxFloat32)
	tt := startTimer()
	for _, p := range pairs {
		ray := raytrace.NewRay(p.o, p.d, p.maxT)
		if traverse.ClosestHit(b, &ray) {
			res.hits++
		}
		res.rays++
	}
	res.traceTime = ms(tt.elapsed())
}

func (res *runResult) traceCPU4(c *layout.CPU4, rayCount uint32, seed int64) {
	pairs := genRays(rayCount, seed+1, math.MaxFloat32)
	tt := startTimer()
	for _, p := range pairs {
		ray := raytrace.NewRay(p.o, p.d, p.maxT)
		if traverse.ClosestHitCPU4(c, &ray) {
			res.hits++
		}
		res.rays++
	}
	res.traceTime = ms(tt.elapsed())
}

func (res *runResult) traceCWBVH(c *layout.CWBVH, rayCount uint32, seed int64) {
	pairs := genRays(rayCount, seed+1, math.MaxFloat32)
	tt := startTimer()
	for _, p := range pairs {
		ray := raytrace.NewRay(p.o, p.d, p.maxT)
		if traverse.ClosestHitCWBVH(c, &ray) {
			res.hits++
		}
		res.rays++
	}
	res.traceTime = ms(tt.elapsed())
}

func ms(d time.Duration) float64 {
	return d.Seconds() * 1000
}
