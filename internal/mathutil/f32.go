package mathutil

import "github.com/chewxy/math32"

// Single-precision mirrors, used by kernels working on float32 attributes.
type (
	Vec3F [3]float32
	Mat3F [9]float32
	QuatF [4]float32
)

func (m Mat3) F32() Mat3F {
	var r Mat3F
	for i, v := range m {
		r[i] = float32(v)
	}
	return r
}

func (v Vec3) F32() Vec3F {
	return Vec3F{float32(v[0]), float32(v[1]), float32(v[2])}
}

func (q Quat) F32() QuatF {
	return QuatF{float32(q[0]), float32(q[1]), float32(q[2]), float32(q[3])}
}

func (m Mat3F) MulVec3(v Vec3F) Vec3F {
	return Vec3F{
		m[0]*v[0] + m[1]*v[1] + m[2]*v[2],
		m[3]*v[0] + m[4]*v[1] + m[5]*v[2],
		m[6]*v[0] + m[7]*v[1] + m[8]*v[2],
	}
}

// MulVec3T returns Mᵀ × v.
func (m Mat3F) MulVec3T(v Vec3F) Vec3F {
	return Vec3F{
		m[0]*v[0] + m[3]*v[1] + m[6]*v[2],
		m[1]*v[0] + m[4]*v[1] + m[7]*v[2],
		m[2]*v[0] + m[5]*v[1] + m[8]*v[2],
	}
}

func (v Vec3F) LenSq() float32 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

// Rescale scales v so its squared length goes from the current value to origLenSq.
// A zero vector is returned unchanged.
func (v Vec3F) Rescale(origLenSq float32) Vec3F {
	newLenSq := v.LenSq()
	if newLenSq == 0 {
		return v
	}
	s := math32.Sqrt(origLenSq / newLenSq)
	return Vec3F{v[0] * s, v[1] * s, v[2] * s}
}

// MulVec3T returns Mᵀ × v.
func (m Mat3) MulVec3T(v Vec3) Vec3 {
	return Vec3{
		m[0]*v[0] + m[3]*v[1] + m[6]*v[2],
		m[1]*v[0] + m[4]*v[1] + m[7]*v[2],
		m[2]*v[0] + m[5]*v[1] + m[8]*v[2],
	}
}
