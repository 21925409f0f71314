// Package tlas implements the two-level acceleration structure of spec
// §4.12 (C14): a top-level tree built over BLAS instances' world-space
// bounds, with per-instance ray transforms at traversal time.
package tlas

import (
	"github.com/achilleasa/gobvh/bvh"
	"github.com/achilleasa/gobvh/raytrace"
	"github.com/achilleasa/gobvh/traverse"
	"github.com/achilleasa/gobvh/types"
)

// InstanceBits/PrimitiveBits split the 32-bit hit field a TLAS leaf test
// returns: spec §4.12's "typical: 8 instance bits + 24 primitive bits".
const (
	InstanceBits  = 8
	PrimitiveBits = 32 - InstanceBits
	primitiveMask = uint32(1)<<PrimitiveBits - 1
)

// PackHit combines an instance index and a BLAS-local primitive index
// into the single 32-bit field a TLAS hit record's Prim carries.
func PackHit(instIdx, primIdx uint32) uint32 {
	return instIdx<<PrimitiveBits | (primIdx & primitiveMask)
}

// UnpackHit reverses PackHit.
func UnpackHit(packed uint32) (instIdx, primIdx uint32) {
	return packed >> PrimitiveBits, packed & primitiveMask
}

// TLAS is a top-level tree built over a fixed set of BLAS instances.
type TLAS struct {
	Instances []*BLASInstance
	Tree      *bvh.BVH
}

// Build constructs a TLAS over instances, updating each instance's
// world bounds first. The canonical binned builder runs with
// verts==nil (spec §4.12: "built using the normal binned builder with
// verts==null"), its BoundsFunc reading each instance's WorldBounds.
func Build(instances []*BLASInstance, opts *bvh.Options) *TLAS {
	if len(instances) == 0 {
		fatal(ErrNoInstances)
	}
	for _, inst := range instances {
		inst.Update()
	}
	in := &bvh.Input{
		N: uint32(len(instances)),
		BoundsFunc: func(i uint32) (bmin, bmax types.Vec3) {
			b := instances[i].WorldBounds
			return b.Min, b.Max
		},
	}
	return &TLAS{Instances: instances, Tree: bvh.Build(in, opts)}
}

type stackEntry struct {
	node uint32
	tmin float32
}

// ClosestHit traverses the TLAS and, for every candidate instance,
// transforms ray into that instance's local space before descending
// into its BLAS (spec §4.12): origin by the inverse transform, direction
// by the inverse transform's rotation/scale block, left un-renormalized
// so a hit's t stays comparable between local and world space. The
// closer hit's t/u/v are carried back unmodified; Prim is replaced with
// PackHit(instance, local primitive).
func ClosestHit(t *TLAS, ray *raytrace.Ray) bool {
	if len(t.Tree.Nodes) == 0 {
		return false
	}
	stack := make([]stackEntry, 0, 64)
	stack = append(stack, stackEntry{node: 0, tmin: 0})
	found := false

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.tmin >= ray.Hit.T {
			continue
		}

		n := &t.Tree.Nodes[e.node]
		if n.IsLeaf() {
			for _, instIdx := range t.Tree.LeafFragIndices(n) {
				if intersectInstance(t, ray, instIdx) {
					found = true
				}
			}
			continue
		}

		left, right := &t.Tree.Nodes[n.Left()], &t.Tree.Nodes[n.Right()]
		d1, ok1 := raytrace.SlabTest(ray, left.AABB(), ray.Hit.T)
		d2, ok2 := raytrace.SlabTest(ray, right.AABB(), ray.Hit.T)

		near, far := n.Left(), n.Right()
		nd, fd := d1, d2
		nok, fok := ok1, ok2
		if !ok1 || (ok2 && d2 < d1) {
			near, far = n.Right(), n.Left()
			nd, fd = d2, d1
			nok, fok = ok2, ok1
		}

		if fok {
			stack = append(stack, stackEntry{node: far, tmin: fd})
		}
		if nok {
			stack = append(stack, stackEntry{node: near, tmin: nd})
		}
	}
	return found
}

// AnyHit is ClosestHit's occlusion sibling: it reports whether ray is
// occluded by any instance before ray.Hit.T, without narrowing the hit
// record.
func AnyHit(t *TLAS, ray *raytrace.Ray) bool {
	if len(t.Tree.Nodes) == 0 {
		return false
	}
	stack := make([]stackEntry, 0, 64)
	stack = append(stack, stackEntry{node: 0, tmin: 0})

	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e.tmin >= ray.Hit.T {
			continue
		}

		n := &t.Tree.Nodes[e.node]
		if n.IsLeaf() {
			for _, instIdx := range t.Tree.LeafFragIndices(n) {
				if occludedByInstance(t, ray, instIdx) {
					return true
				}
			}
			continue
		}

		left, right := &t.Tree.Nodes[n.Left()], &t.Tree.Nodes[n.Right()]
		d1, ok1 := raytrace.SlabTest(ray, left.AABB(), ray.Hit.T)
		d2, ok2 := raytrace.SlabTest(ray, right.AABB(), ray.Hit.T)
		if ok1 {
			stack = append(stack, stackEntry{node: n.Left(), tmin: d1})
		}
		if ok2 {
			stack = append(stack, stackEntry{node: n.Right(), tmin: d2})
		}
	}
	return false
}

// localRay transforms ray into inst's local space per spec §4.12: the
// origin by the instance's inverse transform, the direction by the
// inverse transform's linear part, un-normalized, so that a local hit's
// t is directly comparable to ray.Hit.T.
func localRay(inst *BLASInstance, ray *raytrace.Ray) raytrace.Ray {
	o := inst.invTransform.TransformPoint(ray.O)
	d := inst.invTransform.TransformVector(ray.D)
	return raytrace.Ray{O: o, D: d, RD: types.SafeReciprocal(d), Hit: ray.Hit}
}

func intersectInstance(t *TLAS, ray *raytrace.Ray, instIdx uint32) bool {
	inst := t.Instances[instIdx]
	lr := localRay(inst, ray)
	if !traverse.ClosestHit(inst.Blas, &lr) {
		return false
	}
	ray.Hit = lr.Hit
	ray.Hit.Prim = PackHit(instIdx, lr.Hit.Prim)
	return true
}

func occludedByInstance(t *TLAS, ray *raytrace.Ray, instIdx uint32) bool {
	lr := localRay(t.Instances[instIdx], ray)
	return traverse.AnyHit(t.Instances[instIdx].Blas, &lr)
}
