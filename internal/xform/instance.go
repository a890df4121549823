package xform

import (
	"copytopoints/internal/geo"
	"copytopoints/internal/mathutil"
)

// Point attributes that orient, scale and place an instance.
const (
	AttrN         = "N"
	AttrV         = "v"
	AttrUp        = "up"
	AttrOrient    = "orient"
	AttrRot       = "rot"
	AttrPScale    = "pscale"
	AttrScale     = "scale"
	AttrTrans     = "trans"
	AttrPivot     = "pivot"
	AttrTransform = "transform"
)

// InstanceAttribs lists the attributes read by the instance matrix, in the
// order their tokens are cached.
var InstanceAttribs = [...]string{
	AttrN, AttrV, AttrUp, AttrOrient, AttrRot,
	AttrPScale, AttrScale, AttrTrans, AttrPivot, AttrTransform,
}

const numInstanceAttribs = len(InstanceAttribs)

// instanceAttribs holds the usable instance attributes of one target.
// Attributes of the wrong shape are treated as absent.
type instanceAttribs struct {
	attrs [numInstanceAttribs]*geo.Attribute
	// implicitN replaces N when set, indexed by point offset.
	implicitN []mathutil.Vec3
}

func findInstanceAttribs(target *geo.Document) instanceAttribs {
	var ia instanceAttribs
	for i, name := range InstanceAttribs {
		a := target.FindAttribute(geo.Point, name)
		if a == nil || !a.IsNumeric() {
			continue
		}
		ok := false
		switch name {
		case AttrOrient, AttrRot:
			ok = a.TupleSize() == 4
		case AttrPScale:
			ok = a.TupleSize() >= 1
		case AttrTransform:
			ok = a.TupleSize() == 9 || a.TupleSize() == 16
		default:
			ok = a.TupleSize() >= 3
		}
		if ok {
			ia.attrs[i] = a
		}
	}
	return ia
}

func (ia *instanceAttribs) get(i int) *geo.Attribute { return ia.attrs[i] }

func (ia *instanceAttribs) hasAny() bool {
	for _, a := range ia.attrs {
		if a != nil {
			return true
		}
	}
	return false
}

// tokens returns the data ids of the instance attributes, NoToken for
// absent ones.
func (ia *instanceAttribs) tokens() [numInstanceAttribs]geo.Token {
	var ids [numInstanceAttribs]geo.Token
	for i, a := range ia.attrs {
		if a != nil {
			ids[i] = a.DataID()
		}
	}
	return ids
}

func vec3(a *geo.Attribute, pt int, def mathutil.Vec3) mathutil.Vec3 {
	if a == nil {
		return def
	}
	return mathutil.Vec3{a.Float(pt, 0), a.Float(pt, 1), a.Float(pt, 2)}
}

func quat(a *geo.Attribute, pt int) (mathutil.Quat, bool) {
	if a == nil {
		return mathutil.QuatIdentity(), false
	}
	return mathutil.Quat{a.Float(pt, 0), a.Float(pt, 1), a.Float(pt, 2), a.Float(pt, 3)}, true
}

// matrix builds the linear part and translation placing an instance at
// target point pt with position p:
//
//	M = R·S
//	t = P + trans − M·pivot
//
// A transform attribute replaces R; a 4×4 one also adds its translation.
func (ia *instanceAttribs) matrix(pt int, p mathutil.Vec3) (mathutil.Mat3, mathutil.Vec3) {
	r := mathutil.Mat3Identity()
	var t4 mathutil.Vec3

	if tr := ia.get(9); tr != nil {
		if tr.TupleSize() == 9 {
			for c := 0; c < 9; c++ {
				r[c] = tr.Float(pt, c)
			}
		} else {
			var m mathutil.Mat4
			for c := 0; c < 16; c++ {
				m[c] = tr.Float(pt, c)
			}
			r = m.Linear()
			t4 = m.Translation()
		}
	} else {
		rot, hasRot := quat(ia.get(4), pt)
		if orient, ok := quat(ia.get(3), pt); ok {
			r = mathutil.QuatToMat3(mathutil.QuatMul(rot, orient))
		} else {
			var dir mathutil.Vec3
			hasDir := true
			switch {
			case ia.implicitN != nil:
				dir = ia.implicitN[pt]
			case ia.get(0) != nil:
				dir = vec3(ia.get(0), pt, mathutil.Vec3{})
			case ia.get(1) != nil:
				dir = vec3(ia.get(1), pt, mathutil.Vec3{})
			default:
				hasDir = false
			}
			if hasDir {
				r = mathutil.LookAt(dir, vec3(ia.get(2), pt, mathutil.Vec3{0, 1, 0}))
			}
			if hasRot {
				r = mathutil.Mat3Mul(mathutil.QuatToMat3(rot), r)
			}
		}
	}

	s := vec3(ia.get(6), pt, mathutil.Vec3{1, 1, 1})
	if ps := ia.get(5); ps != nil {
		s = s.Scale(ps.Float(pt, 0))
	}
	m := mathutil.Mat3Mul(r, mathutil.Mat3Diag(s[0], s[1], s[2]))

	pivot := vec3(ia.get(8), pt, mathutil.Vec3{})
	t := p.Add(vec3(ia.get(7), pt, mathutil.Vec3{})).Add(t4).Sub(m.MulVec3(pivot))
	return m, t
}
