package mathutil

// Mat3 is a 3×3 matrix stored row-major: [r0c0, r0c1, r0c2, r1c0, ...].
// Vectors are columns, so M.MulVec3(v) is M × v.
// Value type for zero heap allocation.
type Mat3 [9]float64

func Mat3Identity() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

func Mat3Diag(x, y, z float64) Mat3 {
	return Mat3{x, 0, 0, 0, y, 0, 0, 0, z}
}

// Mat3FromCols builds a matrix whose columns are x, y and z.
func Mat3FromCols(x, y, z Vec3) Mat3 {
	return Mat3{
		x[0], y[0], z[0],
		x[1], y[1], z[1],
		x[2], y[2], z[2],
	}
}

// Mat3Mul returns a × b.
func Mat3Mul(a, b Mat3) Mat3 {
	var m Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m[r*3+c] = a[r*3+0]*b[0*3+c] + a[r*3+1]*b[1*3+c] + a[r*3+2]*b[2*3+c]
		}
	}
	return m
}

// MulVec3 returns M × v.
func (m Mat3) MulVec3(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// Col returns column c.
func (m Mat3) Col(c int) Vec3 {
	return Vec3{m[c], m[3+c], m[6+c]}
}

func (m Mat3) Det() float64 {
	return m[0]*(m[4]*m[8]-m[5]*m[7]) -
		m[1]*(m[3]*m[8]-m[5]*m[6]) +
		m[2]*(m[3]*m[7]-m[4]*m[6])
}

// Invert returns the inverse and false, or the zero matrix and true
// when m is singular.
func (m Mat3) Invert() (Mat3, bool) {
	d := m.Det()
	if d == 0 {
		return Mat3{}, true
	}
	invD := 1.0 / d
	return Mat3{
		(m[4]*m[8] - m[5]*m[7]) * invD,
		(m[2]*m[7] - m[1]*m[8]) * invD,
		(m[1]*m[5] - m[2]*m[4]) * invD,
		(m[5]*m[6] - m[3]*m[8]) * invD,
		(m[0]*m[8] - m[2]*m[6]) * invD,
		(m[2]*m[3] - m[0]*m[5]) * invD,
		(m[3]*m[7] - m[4]*m[6]) * invD,
		(m[1]*m[6] - m[0]*m[7]) * invD,
		(m[0]*m[4] - m[1]*m[3]) * invD,
	}, false
}

// Inverse is Invert with the identity standing in for singular matrices.
func (m Mat3) Inverse() Mat3 {
	inv, singular := m.Invert()
	if singular {
		return Mat3Identity()
	}
	return inv
}

func (m Mat3) Transpose() Mat3 {
	return Mat3{
		m[0], m[3], m[6],
		m[1], m[4], m[7],
		m[2], m[5], m[8],
	}
}

func (m Mat3) Scale(s float64) Mat3 {
	for i := range m {
		m[i] *= s
	}
	return m
}

func (m Mat3) IsIdentity() bool {
	id := Mat3Identity()
	for i := 0; i < 9; i++ {
		d := m[i] - id[i]
		if d > 1e-8 || d < -1e-8 {
			return false
		}
	}
	return true
}

// LookAt returns the rotation taking +Z to dir, with +Y leaning towards up.
// A zero or parallel up falls back to the shortest-arc rotation.
func LookAt(dir, up Vec3) Mat3 {
	z := dir.Normalize()
	if z.IsZero() {
		return Mat3Identity()
	}
	x := up.Cross(z)
	if x.LenSq() < 1e-20 {
		return Dihedral(Vec3{0, 0, 1}, z)
	}
	x = x.Normalize()
	y := z.Cross(x)
	return Mat3FromCols(x, y, z)
}

// Dihedral returns the shortest-arc rotation taking unit vector a to unit vector b.
func Dihedral(a, b Vec3) Mat3 {
	c := a.Dot(b)
	if c > 1-1e-12 {
		return Mat3Identity()
	}
	if c < -1+1e-12 {
		// 180° about any axis perpendicular to a.
		axis := a.Cross(Vec3{1, 0, 0})
		if axis.LenSq() < 1e-12 {
			axis = a.Cross(Vec3{0, 1, 0})
		}
		axis = axis.Normalize()
		return Mat3{
			2*axis[0]*axis[0] - 1, 2 * axis[0] * axis[1], 2 * axis[0] * axis[2],
			2 * axis[1] * axis[0], 2*axis[1]*axis[1] - 1, 2 * axis[1] * axis[2],
			2 * axis[2] * axis[0], 2 * axis[2] * axis[1], 2*axis[2]*axis[2] - 1,
		}
	}
	v := a.Cross(b)
	k := 1 / (1 + c)
	return Mat3{
		v[0]*v[0]*k + c, v[0]*v[1]*k - v[2], v[0]*v[2]*k + v[1],
		v[1]*v[0]*k + v[2], v[1]*v[1]*k + c, v[1]*v[2]*k - v[0],
		v[2]*v[0]*k - v[1], v[2]*v[1]*k + v[0], v[2]*v[2]*k + c,
	}
}
