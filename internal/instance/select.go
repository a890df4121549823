package instance

import (
	"slices"

	"copytopoints/internal/geo"
)

// selection remembers a group-restricted element set between invocations.
type selection struct {
	present bool
	owner   geo.Owner
	id      geo.Token
	offsets []int
}

// update records g and reports whether the selected set differs from the
// recorded one. Contents are only compared when the token moved.
func (s *selection) update(g *geo.Group) bool {
	if g == nil {
		changed := s.present
		*s = selection{}
		return changed
	}
	changed := !s.present || s.owner != g.Owner() || g.Entries() != len(s.offsets)
	var offsets []int
	if changed || g.DataID() != s.id {
		offsets = g.Offsets()
		changed = changed || !slices.Equal(offsets, s.offsets)
	} else {
		offsets = s.offsets
	}
	*s = selection{present: true, owner: g.Owner(), id: g.DataID(), offsets: offsets}
	return changed
}

// sourceGroups resolves the source group name. An empty name selects
// everything; ok is false when the name matches no group.
func sourceGroups(src *geo.Document, name string, gt GroupType) (points, prims *geo.Group, ok bool) {
	if name == "" {
		return nil, nil, true
	}
	if gt != GroupPoints {
		if g := src.FindGroup(geo.Primitive, name); g != nil {
			return nil, g, true
		}
	}
	if gt != GroupPrims {
		if g := src.FindGroup(geo.Point, name); g != nil {
			return g, nil, true
		}
	}
	return nil, nil, false
}

// targetPoints lists the target points to copy onto, in offset order.
func targetPoints(target *geo.Document, name string) (pts []int, g *geo.Group, ok bool) {
	if name == "" {
		pts = make([]int, target.NumPoints())
		for i := range pts {
			pts[i] = i
		}
		return pts, nil, true
	}
	g = target.FindGroup(geo.Point, name)
	if g == nil {
		return nil, nil, false
	}
	return g.Offsets(), g, true
}
