package piece

import "copytopoints/internal/geo"

// SelectionLists resolves optional source selections to point and
// primitive lists in offset order. A primitive selection brings the points
// its primitives use; a point selection brings the primitives whose points
// are all selected. With neither, everything is selected.
func SelectionLists(src *geo.Document, points, prims *geo.Group) (pts, prs []int) {
	switch {
	case prims != nil:
		prs = prims.Offsets()
		pts = pointsOfPrims(src, prs)
	case points != nil:
		pts = points.Offsets()
		prs = primsOfPoints(src, pts)
	default:
		pts = identityList(src.NumPoints())
		prs = identityList(src.NumPrimitives())
	}
	return pts, prs
}

// FromLists builds a piece over explicit point and primitive lists, with
// vertex lists and build data filled in.
func FromLists(src *geo.Document, points, prims []int) Piece {
	var pc Piece
	pc.Offsets[geo.Point] = points
	pc.Offsets[geo.Primitive] = prims
	verts := vertexList(src, prims)
	pc.Offsets[geo.Vertex] = verts
	pc.RelVtxToPt = RelativeVertexPoints(src, verts, points)
	pc.ComputeBuildData(src)
	return pc
}

func identityList(n int) []int {
	l := make([]int, n)
	for i := range l {
		l[i] = i
	}
	return l
}

// selectionMasks resolves the selections of in to membership masks for
// both classes. Nil masks select everything.
func selectionMasks(in Input) (points, prims []bool) {
	if in.SourcePoints == nil && in.SourcePrims == nil {
		return nil, nil
	}
	pts, prs := SelectionLists(in.Source, in.SourcePoints, in.SourcePrims)
	return membership(in.Source.NumPoints(), pts), membership(in.Source.NumPrimitives(), prs)
}

func membership(n int, offsets []int) []bool {
	m := make([]bool, n)
	for _, i := range offsets {
		m[i] = true
	}
	return m
}
