package geo

import (
	"fmt"
	"sync/atomic"
)

// Token is a version token. Two reads of the same token mean the entity
// has not been written in between. The zero Token is never issued.
type Token uint64

// NoToken marks "no version known"; it never compares equal to a live token
// in cache checks because callers test IsValid first.
const NoToken Token = 0

var tokenCounter atomic.Uint64

// NewToken issues a process-unique token.
func NewToken() Token {
	return Token(tokenCounter.Add(1))
}

func (t Token) IsValid() bool { return t != NoToken }

// Owner is an element class.
type Owner int8

const (
	Vertex Owner = iota
	Point
	Primitive
	Detail
	InvalidOwner Owner = -1
)

// NumElementOwners counts the classes that hold elements (not Detail).
const NumElementOwners = 3

// ElementOwners lists vertex, point and primitive in that order.
var ElementOwners = [NumElementOwners]Owner{Vertex, Point, Primitive}

func (o Owner) String() string {
	switch o {
	case Vertex:
		return "vertex"
	case Point:
		return "point"
	case Primitive:
		return "primitive"
	case Detail:
		return "detail"
	default:
		return "invalid"
	}
}

// ParseOwner accepts the singular or plural class name.
func ParseOwner(s string) (Owner, error) {
	switch s {
	case "vertex", "vertices", "verts":
		return Vertex, nil
	case "point", "points":
		return Point, nil
	case "primitive", "primitives", "prims", "prim":
		return Primitive, nil
	case "detail", "global":
		return Detail, nil
	}
	return InvalidOwner, fmt.Errorf("geo: unknown element class %q", s)
}

// Conflict returns the class that may not hold an attribute of the same
// name: point and vertex attributes share a namespace.
func (o Owner) Conflict() Owner {
	switch o {
	case Point:
		return Vertex
	case Vertex:
		return Point
	}
	return InvalidOwner
}

// Storage is the tag of an attribute's value array.
type Storage int8

const (
	Int32 Storage = iota
	Int64
	Float32
	Float64
	String
)

func (s Storage) String() string {
	switch s {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case String:
		return "string"
	}
	return "invalid"
}

func ParseStorage(s string) (Storage, error) {
	switch s {
	case "int32", "int":
		return Int32, nil
	case "int64":
		return Int64, nil
	case "float32", "float":
		return Float32, nil
	case "float64", "double":
		return Float64, nil
	case "string":
		return String, nil
	}
	return Int32, fmt.Errorf("geo: unknown storage %q", s)
}

func (s Storage) IsFloat() bool   { return s == Float32 || s == Float64 }
func (s Storage) IsInt() bool     { return s == Int32 || s == Int64 }
func (s Storage) IsNumeric() bool { return s != String }

// TypeInfo tags how a numeric attribute reacts to a spatial transform.
type TypeInfo int8

const (
	TypeVoid TypeInfo = iota
	TypePoint
	TypeHPoint
	TypeVector
	TypeNormal
	TypeQuaternion
	TypeTransform
	TypeColor
)

var typeInfoNames = [...]string{"void", "point", "hpoint", "vector", "normal", "quaternion", "transform", "color"}

func (t TypeInfo) String() string {
	if int(t) < len(typeInfoNames) && t >= 0 {
		return typeInfoNames[t]
	}
	return "invalid"
}

func ParseTypeInfo(s string) (TypeInfo, error) {
	if s == "" {
		return TypeVoid, nil
	}
	for i, n := range typeInfoNames {
		if n == s {
			return TypeInfo(i), nil
		}
	}
	return TypeVoid, fmt.Errorf("geo: unknown type info %q", s)
}

// PrimType is a primitive kind.
type PrimType int8

const (
	PrimPoly PrimType = iota
	PrimTet
	PrimSphere
	PrimPacked
)

var primTypeNames = [...]string{"poly", "tet", "sphere", "packed"}

func (p PrimType) String() string {
	if int(p) < len(primTypeNames) && p >= 0 {
		return primTypeNames[p]
	}
	return "invalid"
}

func ParsePrimType(s string) (PrimType, error) {
	for i, n := range primTypeNames {
		if n == s {
			return PrimType(i), nil
		}
	}
	return PrimPoly, fmt.Errorf("geo: unknown primitive type %q", s)
}

// HasPayload reports whether primitives of this kind carry data beyond
// their vertex list and closed flag.
func (p PrimType) HasPayload() bool {
	return p != PrimPoly && p != PrimTet
}

// Transforms reports whether the primitive payload reacts to transforms.
func (p PrimType) Transforms() bool {
	return p == PrimSphere || p == PrimPacked
}

// LOD is the viewport level-of-detail tag of a packed primitive.
type LOD int8

const (
	LODFull LOD = iota
	LODPoints
	LODBox
	LODCentroid
	LODHidden
)

var lodNames = [...]string{"full", "points", "box", "centroid", "hidden"}

func (l LOD) String() string {
	if int(l) < len(lodNames) && l >= 0 {
		return lodNames[l]
	}
	return "invalid"
}

func ParseLOD(s string) (LOD, error) {
	for i, n := range lodNames {
		if n == s {
			return LOD(i), nil
		}
	}
	return LODFull, fmt.Errorf("geo: unknown viewport lod %q", s)
}

// PrimTypeRun is a run of consecutive primitives of one kind.
type PrimTypeRun struct {
	Type  PrimType
	Count int
}
