package piece

import (
	"slices"

	"copytopoints/internal/geo"
	"copytopoints/internal/parallel"
)

// Pieces below this vertex count look points up by scanning.
const relMapThreshold = 16

// Expand fills in the element classes the key did not come from, the
// vertex lists and the relative vertex to point map of every piece.
//
// Point-keyed pieces take the primitives whose points are all in the
// piece. Primitive-keyed pieces take every point their primitives use.
func (p *Partition) Expand(src *geo.Document) {
	parallel.For(len(p.Pieces), 8, 4, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			p.Pieces[i].expand(src, p.SourceOwner, p.selPrims)
		}
	})
}

func (pc *Piece) expand(src *geo.Document, keyOwner geo.Owner, selPrims []bool) {
	points := pc.Offsets[geo.Point]
	prims := pc.Offsets[geo.Primitive]
	if keyOwner == geo.Point {
		prims = primsOfPoints(src, points)
		if selPrims != nil {
			prims = slices.DeleteFunc(prims, func(prim int) bool { return !selPrims[prim] })
		}
	} else {
		points = pointsOfPrims(src, prims)
	}
	pc.Offsets[geo.Point] = points
	pc.Offsets[geo.Primitive] = prims

	verts := vertexList(src, prims)
	pc.Offsets[geo.Vertex] = verts
	pc.RelVtxToPt = RelativeVertexPoints(src, verts, points)
}

// vertexList lists the vertices of prims in primitive order.
func vertexList(src *geo.Document, prims []int) []int {
	var verts []int
	for _, prim := range prims {
		s, n := src.VertexStart(prim), src.VertexCount(prim)
		for v := s; v < s+n; v++ {
			verts = append(verts, v)
		}
	}
	return verts
}

func primsOfPoints(src *geo.Document, points []int) []int {
	if src.NumPrimitives() == 0 || len(points) == 0 {
		return nil
	}
	if len(points) == 1 {
		v := src.FirstVertexOfPoint(points[0])
		if v < 0 {
			return nil
		}
		if src.NextVertex(v) < 0 {
			prim := src.PrimOfVertex(v)
			if src.VertexCount(prim) == 1 {
				return []int{prim}
			}
			return nil
		}
	}
	inPiece := make([]bool, src.NumPoints())
	touched := make([]bool, src.NumPrimitives())
	for _, pt := range points {
		inPiece[pt] = true
		for v := src.FirstVertexOfPoint(pt); v >= 0; v = src.NextVertex(v) {
			touched[src.PrimOfVertex(v)] = true
		}
	}
	var prims []int
	for prim, t := range touched {
		if !t {
			continue
		}
		all := true
		s, n := src.VertexStart(prim), src.VertexCount(prim)
		for v := s; v < s+n && all; v++ {
			all = inPiece[src.PointOfVertex(v)]
		}
		if all {
			prims = append(prims, prim)
		}
	}
	return prims
}

func pointsOfPrims(src *geo.Document, prims []int) []int {
	if len(prims) == 1 && src.VertexCount(prims[0]) == 1 {
		return []int{src.PointOfVertex(src.VertexStart(prims[0]))}
	}
	used := make([]bool, src.NumPoints())
	for _, prim := range prims {
		s, n := src.VertexStart(prim), src.VertexCount(prim)
		for v := s; v < s+n; v++ {
			used[src.PointOfVertex(v)] = true
		}
	}
	var points []int
	for pt, u := range used {
		if u {
			points = append(points, pt)
		}
	}
	return points
}

// RelativeVertexPoints maps each listed vertex to the index of its point
// within points. A vertex whose point is not listed maps to -1.
func RelativeVertexPoints(src *geo.Document, verts, points []int) []int {
	rel := make([]int, len(verts))
	switch {
	case isTrivial(points):
		for i, v := range verts {
			rel[i] = -1
			if pt := src.PointOfVertex(v); len(points) > 0 && pt >= points[0] && pt < points[0]+len(points) {
				rel[i] = pt - points[0]
			}
		}
	case len(verts) < relMapThreshold:
		for i, v := range verts {
			rel[i] = slices.Index(points, src.PointOfVertex(v))
		}
	default:
		index := make(map[int]int, len(points))
		for i, pt := range points {
			index[pt] = i
		}
		for i, v := range verts {
			if r, ok := index[src.PointOfVertex(v)]; ok {
				rel[i] = r
			} else {
				rel[i] = -1
			}
		}
	}
	return rel
}

// isTrivial reports whether the list is a contiguous increasing run.
func isTrivial(list []int) bool {
	for i := 1; i < len(list); i++ {
		if list[i] != list[0]+i {
			return false
		}
	}
	return true
}
