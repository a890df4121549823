package instance

import (
	"fmt"

	"copytopoints/internal/geo"
	"copytopoints/internal/propagate"
	"copytopoints/internal/realize"
)

// GroupType says how a source group name is interpreted.
type GroupType int8

const (
	GroupGuess GroupType = iota
	GroupPrims
	GroupPoints
)

var groupTypeNames = [...]string{"guess", "prims", "points"}

func (g GroupType) String() string {
	if g >= 0 && int(g) < len(groupTypeNames) {
		return groupTypeNames[g]
	}
	return "invalid"
}

func ParseGroupType(s string) (GroupType, error) {
	if s == "" {
		return GroupGuess, nil
	}
	for i, n := range groupTypeNames {
		if n == s {
			return GroupType(i), nil
		}
	}
	return GroupGuess, fmt.Errorf("instance: unknown group type %q", s)
}

// AttribRequest applies target point attributes and groups whose names
// match Pattern to the copies.
type AttribRequest struct {
	Use     bool
	ApplyTo geo.Owner
	Method  propagate.Method
	// Pattern holds space or comma separated globs; a leading ^ excludes.
	Pattern string
}

// Params are the per-invocation settings of an Operation.
type Params struct {
	SourceGroup     string
	SourceGroupType GroupType
	TargetGroup     string

	UseIDAttrib bool
	IDAttrib    string

	Pack  bool
	Pivot realize.Pivot
	LOD   geo.LOD

	Transform    bool
	UseImplicitN bool

	TargetAttribs []AttribRequest
}

// DefaultIDAttrib is the identifying attribute used when none is named.
const DefaultIDAttrib = "variant"

func DefaultParams() Params {
	return Params{
		IDAttrib:      DefaultIDAttrib,
		Pivot:         realize.PivotCentroid,
		LOD:           geo.LODFull,
		Transform:     true,
		UseImplicitN:  true,
		TargetAttribs: DefaultTargetAttribs(),
	}
}

// DefaultTargetAttribs is the canonical request list: copy everything but
// the instancing attributes, multiply Alpha and add v.
func DefaultTargetAttribs() []AttribRequest {
	return []AttribRequest{
		{Use: true, ApplyTo: geo.Point, Method: propagate.Copy,
			Pattern: "*,^v,^Alpha,^N,^up,^pscale,^scale,^orient,^rot,^pivot,^trans,^transform"},
		{Use: true, ApplyTo: geo.Point, Method: propagate.Multiply, Pattern: "Alpha"},
		{Use: true, ApplyTo: geo.Point, Method: propagate.Add, Pattern: "v"},
	}
}
