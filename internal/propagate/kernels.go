package propagate

import (
	"copytopoints/internal/geo"
	"copytopoints/internal/mathutil"
	"copytopoints/internal/xform"
)

type float interface{ ~float32 | ~float64 }

// kernel transforms one attribute's elements in place by the transform of
// the target they were copied for.
type kernel struct {
	kind geo.TypeInfo

	mats    []mathutil.Mat3
	trans   []mathutil.Vec3
	invs    []mathutil.Mat3
	quats   []mathutil.Quat
	mats32  []mathutil.Mat3F
	trans32 []mathutil.Vec3F
	invs32  []mathutil.Mat3F
	quats32 []mathutil.QuatF
}

func newKernel(kind geo.TypeInfo, c *xform.Cache) *kernel {
	return &kernel{
		kind:    kind,
		mats:    c.Matrices(),
		trans:   c.Translates(),
		invs:    c.Inverses(),
		quats:   c.Quats(),
		mats32:  c.Matrices32(),
		trans32: c.Translates32(),
		invs32:  c.Inverses32(),
		quats32: c.Quats32(),
	}
}

// copyElement copies src element si into dst element di and applies the
// transform of target ti.
func (k *kernel) copyElement(dst *geo.Attribute, di int, src *geo.Attribute, si, ti int) {
	dst.CopyElement(di, src, si)
	t := dst.TupleSize()
	switch dst.Storage() {
	case geo.Float32:
		k.apply32(dst.F32()[di*t:di*t+t], ti)
	case geo.Float64:
		k.apply64(dst.F64()[di*t:di*t+t], ti)
	default:
		v := dst.Tuple(di)
		k.apply64(v, ti)
		dst.SetTuple(di, v)
	}
}

func (k *kernel) apply32(v []float32, ti int) {
	var m *[9]float32
	if k.mats32 != nil {
		m = (*[9]float32)(&k.mats32[ti])
	}
	switch k.kind {
	case geo.TypePoint:
		transformPoint(v, m, (*[3]float32)(&k.trans32[ti]))
	case geo.TypeVector:
		transformVector(v, m)
	case geo.TypeNormal:
		n := mathutil.Vec3F{v[0], v[1], v[2]}
		r := k.invs32[ti].MulVec3T(n).Rescale(n.LenSq())
		copy(v, r[:])
	case geo.TypeQuaternion:
		transformQuat(v, (*[4]float32)(&k.quats32[ti]))
	case geo.TypeHPoint:
		transformHPoint(v, m, (*[3]float32)(&k.trans32[ti]))
	case geo.TypeTransform:
		if len(v) == 9 {
			transformMat3(v, m)
		} else {
			transformMat4(v, m, (*[3]float32)(&k.trans32[ti]))
		}
	}
}

func (k *kernel) apply64(v []float64, ti int) {
	var m *[9]float64
	if k.mats != nil {
		m = (*[9]float64)(&k.mats[ti])
	}
	switch k.kind {
	case geo.TypePoint:
		transformPoint(v, m, (*[3]float64)(&k.trans[ti]))
	case geo.TypeVector:
		transformVector(v, m)
	case geo.TypeNormal:
		n := mathutil.Vec3{v[0], v[1], v[2]}
		r := k.invs[ti].MulVec3T(n)
		if l := r.Len(); l != 0 {
			r = r.Scale(n.Len() / l)
		}
		copy(v, r[:])
	case geo.TypeQuaternion:
		transformQuat(v, (*[4]float64)(&k.quats[ti]))
	case geo.TypeHPoint:
		transformHPoint(v, m, (*[3]float64)(&k.trans[ti]))
	case geo.TypeTransform:
		if len(v) == 9 {
			transformMat3(v, m)
		} else {
			transformMat4(v, m, (*[3]float64)(&k.trans[ti]))
		}
	}
}

// transformPoint computes M·v + t; a nil m only translates.
func transformPoint[F float](v []F, m *[9]F, t *[3]F) {
	if m != nil {
		transformVector(v, m)
	}
	v[0] += t[0]
	v[1] += t[1]
	v[2] += t[2]
}

func transformVector[F float](v []F, m *[9]F) {
	if m == nil {
		return
	}
	x, y, z := v[0], v[1], v[2]
	v[0] = m[0]*x + m[1]*y + m[2]*z
	v[1] = m[3]*x + m[4]*y + m[5]*z
	v[2] = m[6]*x + m[7]*y + m[8]*z
}

// transformQuat composes q after the element's rotation.
func transformQuat[F float](v []F, q *[4]F) {
	x, y, z, w := v[0], v[1], v[2], v[3]
	v[0] = q[3]*x + q[0]*w + q[1]*z - q[2]*y
	v[1] = q[3]*y - q[0]*z + q[1]*w + q[2]*x
	v[2] = q[3]*z + q[0]*y - q[1]*x + q[2]*w
	v[3] = q[3]*w - q[0]*x - q[1]*y - q[2]*z
}

// transformHPoint treats (x,y,z,w) as the homogeneous point (xw,yw,zw,w).
func transformHPoint[F float](v []F, m *[9]F, t *[3]F) {
	w := v[3]
	h := [3]F{v[0] * w, v[1] * w, v[2] * w}
	transformVector(h[:], m)
	for i := range h {
		h[i] += w * t[i]
		if w != 0 {
			h[i] /= w
		}
	}
	copy(v, h[:])
}

// transformMat3 computes M·A.
func transformMat3[F float](a []F, m *[9]F) {
	if m == nil {
		return
	}
	var r [9]F
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i*3+j] = m[i*3]*a[j] + m[i*3+1]*a[3+j] + m[i*3+2]*a[6+j]
		}
	}
	copy(a, r[:])
}

// transformMat4 computes [M|t]·A, with the identity for a nil m.
func transformMat4[F float](a []F, m *[9]F, t *[3]F) {
	l := [16]F{
		1, 0, 0, t[0],
		0, 1, 0, t[1],
		0, 0, 1, t[2],
		0, 0, 0, 1,
	}
	if m != nil {
		for i := 0; i < 3; i++ {
			copy(l[i*4:i*4+3], m[i*3:i*3+3])
		}
	}
	var r [16]F
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			r[i*4+j] = l[i*4]*a[j] + l[i*4+1]*a[4+j] + l[i*4+2]*a[8+j] + l[i*4+3]*a[12+j]
		}
	}
	copy(a, r[:])
}
