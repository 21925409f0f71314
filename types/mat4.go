package types

// Mat4 is a 4x4 row-major matrix, stored as 16 consecutive floats
// (row 0 in elements 0-3, row 1 in 4-7, and so on). BLAS instances use it
// to place mesh-local geometry into world space (spec §4.12).
type Mat4 [16]float32

// Ident4 returns the 4x4 identity matrix.
func Ident4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul4 multiplies two row-major matrices, returning m*other.
func (m Mat4) Mul4(other Mat4) Mat4 {
	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[r*4+k] * other[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// TransformPoint applies the matrix to a point, including translation.
func (m Mat4) TransformPoint(p Vec3) Vec3 {
	x := m[0]*p[0] + m[1]*p[1] + m[2]*p[2] + m[3]
	y := m[4]*p[0] + m[5]*p[1] + m[6]*p[2] + m[7]
	z := m[8]*p[0] + m[9]*p[1] + m[10]*p[2] + m[11]
	return Vec3{x, y, z}
}

// TransformVector applies the upper-left 3x3 of the matrix to a direction,
// ignoring translation.
func (m Mat4) TransformVector(v Vec3) Vec3 {
	x := m[0]*v[0] + m[1]*v[1] + m[2]*v[2]
	y := m[4]*v[0] + m[5]*v[1] + m[6]*v[2]
	z := m[8]*v[0] + m[9]*v[1] + m[10]*v[2]
	return Vec3{x, y, z}
}

// Inverse computes the matrix inverse via Gauss-Jordan elimination on an
// augmented [M|I] matrix. BLAS instance updates need it to transform rays
// from world space into mesh-local space (spec §4.12); TLAS/BLAS
// transforms are assumed invertible (non-degenerate instance placement),
// so a singular matrix falls back to the identity rather than erroring.
func (m Mat4) Inverse() Mat4 {
	var a [4][8]float64
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			a[r][c] = float64(m[r*4+c])
		}
		a[r][4+r] = 1
	}

	for col := 0; col < 4; col++ {
		pivot := col
		best := a[col][col]
		if best < 0 {
			best = -best
		}
		for r := col + 1; r < 4; r++ {
			v := a[r][col]
			if v < 0 {
				v = -v
			}
			if v > best {
				best = v
				pivot = r
			}
		}
		if best < 1e-20 {
			return Ident4()
		}
		a[col], a[pivot] = a[pivot], a[col]

		inv := 1.0 / a[col][col]
		for c := 0; c < 8; c++ {
			a[col][c] *= inv
		}
		for r := 0; r < 4; r++ {
			if r == col {
				continue
			}
			factor := a[r][col]
			if factor == 0 {
				continue
			}
			for c := 0; c < 8; c++ {
				a[r][c] -= factor * a[col][c]
			}
		}
	}

	var out Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = float32(a[r][4+c])
		}
	}
	return out
}
