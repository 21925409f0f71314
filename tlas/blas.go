package tlas

import (
	"github.com/achilleasa/gobvh/bvh"
	"github.com/achilleasa/gobvh/types"
)

// BLASInstance places one bottom-level tree into world space (spec
// §4.12): a single BLAS may back several instances, each with its own
// transform and world-space bounds over the BLAS root. Grounded on
// tiny_bvh.h's BLASInstance.
type BLASInstance struct {
	Blas *bvh.BVH

	Transform    types.Mat4
	invTransform types.Mat4

	// WorldBounds is the axis-aligned hull of the BLAS root AABB's eight
	// corners under Transform, recomputed by Update.
	WorldBounds types.AABB
}

// NewBLASInstance wraps blas with an identity transform. Call
// SetTransform (or mutate Transform and call Update directly) before
// building a TLAS over it.
func NewBLASInstance(blas *bvh.BVH) *BLASInstance {
	return &BLASInstance{
		Blas:         blas,
		Transform:    types.Ident4(),
		invTransform: types.Ident4(),
	}
}

// SetTransform replaces the instance's placement and recomputes
// WorldBounds and the cached inverse transform ray traversal needs.
func (inst *BLASInstance) SetTransform(m types.Mat4) {
	inst.Transform = m
	inst.Update()
}

// Update recomputes WorldBounds and the cached inverse transform from
// the instance's current Transform and its BLAS root AABB (spec §4.12:
// "Update() transforms the eight corners of the BLAS root AABB by the
// instance transform and takes their hull").
func (inst *BLASInstance) Update() {
	inst.invTransform = inst.Transform.Inverse()
	inst.WorldBounds = inst.Blas.RootAABB().Transform(inst.Transform)
}
