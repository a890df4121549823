package watch

import (
	"slices"

	"copytopoints/internal/geo"
)

// Merge folds a freshly loaded document into the one already in memory.
// When both have the same topology, old is updated in place and only the
// attributes and groups whose contents differ get new tokens; old is
// returned. Otherwise fresh replaces it.
func Merge(old, fresh *geo.Document) *geo.Document {
	if old == nil || !sameTopology(old, fresh) || !sameEdgeGroups(old, fresh) {
		return fresh
	}

	for _, o := range []geo.Owner{geo.Vertex, geo.Point, geo.Primitive, geo.Detail} {
		for _, a := range old.Attributes(o) {
			if fresh.FindAttribute(o, a.Name()) == nil {
				old.DestroyAttribute(o, a.Name())
			}
		}
		for _, fa := range fresh.Attributes(o) {
			oa := old.FindAttribute(o, fa.Name())
			if oa != nil && oa.MatchesStorage(fa) && oa.TypeInfo() == fa.TypeInfo() &&
				oa.NeedsTransform() == fa.NeedsTransform() && sameValues(old.Count(o), oa, fa) {
				continue
			}
			na := old.CloneAttribute(o, fa)
			for i := 0; i < old.Count(o); i++ {
				na.CopyElement(i, fa, i)
			}
			na.BumpDataID()
		}
	}

	for _, o := range geo.ElementOwners {
		for _, g := range old.Groups(o) {
			if fresh.FindGroup(o, g.Name()) == nil {
				old.DestroyGroup(o, g.Name())
			}
		}
		for _, fg := range fresh.Groups(o) {
			og := old.FindGroup(o, fg.Name())
			if og != nil && og.SameMembers(fg) {
				continue
			}
			og = old.AddGroup(o, fg.Name())
			for i := 0; i < old.Count(o); i++ {
				og.Set(i, fg.Contains(i))
			}
			og.BumpDataID()
		}
	}
	return old
}

// sameTopology compares element counts and primitive wiring. Documents
// holding payload primitives never match, so their payloads are always
// taken from the fresh load.
func sameTopology(a, b *geo.Document) bool {
	if a.NumPoints() != b.NumPoints() || a.NumVertices() != b.NumVertices() || a.NumPrimitives() != b.NumPrimitives() {
		return false
	}
	for prim := 0; prim < a.NumPrimitives(); prim++ {
		if a.PrimitiveType(prim) != b.PrimitiveType(prim) || a.PrimitiveType(prim).HasPayload() ||
			a.IsClosed(prim) != b.IsClosed(prim) ||
			!slices.Equal(a.PointsOfPrimitive(prim), b.PointsOfPrimitive(prim)) {
			return false
		}
	}
	return true
}

func sameEdgeGroups(a, b *geo.Document) bool {
	ag, bg := a.EdgeGroups(), b.EdgeGroups()
	if len(ag) != len(bg) {
		return false
	}
	for i, g := range ag {
		o := bg[i]
		if g.Name() != o.Name() || g.Entries() != o.Entries() {
			return false
		}
		for _, e := range g.Edges() {
			if !o.Contains(e) {
				return false
			}
		}
	}
	return true
}

func sameValues(n int, a, b *geo.Attribute) bool {
	for i := 0; i < n; i++ {
		switch {
		case !a.IsNumeric():
			if a.Str(i) != b.Str(i) {
				return false
			}
		case a.Storage().IsInt():
			for c := 0; c < a.TupleSize(); c++ {
				if a.Int(i, c) != b.Int(i, c) {
					return false
				}
			}
		default:
			if !slices.Equal(a.Tuple(i), b.Tuple(i)) {
				return false
			}
		}
	}
	return true
}
