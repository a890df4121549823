// Package realize builds output topology for copies of a source document:
// full per-copy replication, or one packed primitive per target that
// references shared backing geometry.
package realize

import (
	"copytopoints/internal/geo"
	"copytopoints/internal/parallel"
	"copytopoints/internal/piece"
)

// FullCopy replaces the output topology with ncopies copies of pc, which
// must carry build data. It returns the layout mapping output elements
// back to pc's source elements.
func FullCopy(out, src *geo.Document, pc *piece.Piece, ncopies int) *piece.Layout {
	out.ClearAndDestroy()
	layout := piece.UniformLayout(pc.Offsets, ncopies)
	if ncopies <= 0 {
		return layout
	}
	npts := pc.Count(geo.Point)
	start := out.AppendPointBlock(npts * ncopies)
	if pc.Count(geo.Primitive) == 0 {
		return layout
	}
	first := out.BuildPrimitives(geo.BuildSpec{
		Types:         pc.Types,
		StartPoint:    start,
		PointsPerCopy: npts,
		VertexCounts:  pc.VertexCounts,
		VertexPoints:  vertexPoints(pc.ContiguousPoints, npts, pc.RelVtxToPt),
		SharedPoints:  pc.SharedPoints,
		ClosedSpans:   pc.ClosedSpans,
		Copies:        ncopies,
	})
	copyPayload(out, src, first, layout)
	return layout
}

// FullCopyPieces replaces the output topology with one copy of the piece
// of each target, concatenated in target order, built in one block.
// Every piece must carry build data.
func FullCopyPieces(out, src *geo.Document, pieces []piece.Piece, targetToPiece []int) *piece.Layout {
	out.ClearAndDestroy()
	layout := piece.KeyedLayout(pieces, targetToPiece)

	shared, contiguous := false, true
	for i := range pieces {
		shared = shared || pieces[i].SharedPoints
		contiguous = contiguous && pieces[i].ContiguousPoints
	}
	totalPts := layout.Total(geo.Point)
	totalVerts := layout.Total(geo.Vertex)
	start := out.AppendPointBlock(totalPts)
	if layout.Total(geo.Primitive) == 0 {
		return layout
	}

	var types []geo.PrimTypeRun
	var counts []int
	spans := []int{0}
	var vpts []int
	if !contiguous || totalPts != totalVerts {
		vpts = make([]int, 0, totalVerts)
	}
	ptStarts := layout.Starts(geo.Point)
	for t, pi := range targetToPiece {
		pc := &pieces[pi]
		if pc.Count(geo.Primitive) == 0 {
			continue
		}
		types = piece.AppendTypeRuns(types, pc.Types)
		counts = append(counts, pc.VertexCounts...)
		spans = piece.AppendClosedSpans(spans, pc.ClosedSpans)
		if vpts != nil {
			for _, rel := range pc.RelVtxToPt {
				vpts = append(vpts, rel+ptStarts[t])
			}
		}
	}
	first := out.BuildPrimitives(geo.BuildSpec{
		Types:         types,
		StartPoint:    start,
		PointsPerCopy: totalPts,
		VertexCounts:  counts,
		VertexPoints:  vpts,
		SharedPoints:  shared,
		ClosedSpans:   spans,
		Copies:        1,
	})
	copyPayload(out, src, first, layout)
	return layout
}

// vertexPoints drops the relative point map when vertex i uses point i.
func vertexPoints(contiguous bool, npts int, rel []int) []int {
	if contiguous && npts == len(rel) {
		return nil
	}
	return rel
}

// copyPayload copies the per-primitive payload of every built primitive
// whose kind carries one.
func copyPayload(out, src *geo.Document, first int, layout *piece.Layout) {
	if first < 0 {
		return
	}
	n := out.NumPrimitives() - first
	hasPayload := false
	for _, run := range out.PrimitiveTypeRuns() {
		if run.Type.HasPayload() {
			hasPayload = true
			break
		}
	}
	if !hasPayload {
		return
	}
	parallel.For(n, 1024, 512, func(lo, hi int) {
		c := layout.CursorAt(geo.Primitive, lo)
		for i := lo; i < hi; i++ {
			if pd := out.PrimitiveData(first + i); pd != nil {
				pd.CopyFrom(src.PrimitiveData(c.Source()))
			}
			c.Next()
		}
	})
}
