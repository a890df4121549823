package xform

import "copytopoints/internal/geo"

// Classify returns how a numeric attribute reacts to the instance
// transforms, or TypeVoid when it is copied untouched. Types that ignore
// translation only classify when the transforms have a linear part.
func Classify(a *geo.Attribute, hasMatrices bool) geo.TypeInfo {
	if !a.IsNumeric() || !a.NeedsTransform() {
		return geo.TypeVoid
	}
	t := a.TypeInfo()
	switch a.TupleSize() {
	case 3:
		if t == geo.TypePoint || (hasMatrices && (t == geo.TypeVector || t == geo.TypeNormal)) {
			return t
		}
	case 4:
		if (hasMatrices && t == geo.TypeQuaternion) || t == geo.TypeHPoint {
			return t
		}
	case 9:
		if hasMatrices && t == geo.TypeTransform {
			return t
		}
	case 16:
		if t == geo.TypeTransform {
			return t
		}
	}
	return geo.TypeVoid
}

// NeededFor returns the derived arrays a kernel for type t on storage s
// reads.
func NeededFor(t geo.TypeInfo, s geo.Storage, hasMatrices bool) Needed {
	f32 := s == geo.Float32
	var n Needed
	switch t {
	case geo.TypePoint, geo.TypeHPoint:
		if f32 {
			n |= NeedTranslate32
			if hasMatrices {
				n |= NeedMatrix32
			}
		}
	case geo.TypeVector:
		if f32 {
			n |= NeedMatrix32
		}
	case geo.TypeNormal:
		if f32 {
			n |= NeedInverse32
		} else {
			n |= NeedInverse64
		}
	case geo.TypeQuaternion:
		if f32 {
			n |= NeedQuat32
		} else {
			n |= NeedQuat64
		}
	case geo.TypeTransform:
		if f32 {
			n |= NeedMatrix32 | NeedTranslate32
		}
	}
	return n
}
