package piece

import "copytopoints/internal/geo"

// ComputeBuildData derives what bulk primitive construction needs from the
// piece's lists: shared and contiguous point flags, vertex counts,
// primitive kind runs and closed spans.
//
// SharedPoints may be set when no point is actually shared, never the
// reverse: with at least one point per vertex the check is only that the
// relative points are strictly increasing.
func (pc *Piece) ComputeBuildData(src *geo.Document) {
	nverts := len(pc.Offsets[geo.Vertex])
	geo.Assert(nverts == len(pc.RelVtxToPt), "piece has %d vertices but %d relative points", nverts, len(pc.RelVtxToPt))

	pc.SharedPoints = true
	pc.ContiguousPoints = false
	if len(pc.Offsets[geo.Point]) >= nverts {
		pc.SharedPoints = false
		pc.ContiguousPoints = isIdentity(pc.RelVtxToPt)
		if !pc.ContiguousPoints && nverts > 0 {
			last := pc.RelVtxToPt[0]
			for _, cur := range pc.RelVtxToPt[1:] {
				if cur <= last {
					pc.SharedPoints = true
					break
				}
				last = cur
			}
		}
	}

	pc.VertexCounts = pc.VertexCounts[:0]
	pc.Types = pc.Types[:0]
	pc.ClosedSpans = pc.ClosedSpans[:0]
	for i, prim := range pc.Offsets[geo.Primitive] {
		pc.VertexCounts = append(pc.VertexCounts, src.VertexCount(prim))

		t := src.PrimitiveType(prim)
		if n := len(pc.Types); n > 0 && pc.Types[n-1].Type == t {
			pc.Types[n-1].Count++
		} else {
			pc.Types = append(pc.Types, geo.PrimTypeRun{Type: t, Count: 1})
		}

		closed := src.IsClosed(prim)
		if i == 0 {
			// Even span indices are open, so a closed first primitive
			// needs an empty open span in front.
			if closed {
				pc.ClosedSpans = append(pc.ClosedSpans, 0)
			}
			pc.ClosedSpans = append(pc.ClosedSpans, 1)
			continue
		}
		if (len(pc.ClosedSpans)&1 == 1) == closed {
			pc.ClosedSpans = append(pc.ClosedSpans, 1)
		} else {
			pc.ClosedSpans[len(pc.ClosedSpans)-1]++
		}
	}
}

func isIdentity(rel []int) bool {
	for i, r := range rel {
		if r != i {
			return false
		}
	}
	return true
}

// AppendClosedSpans merges src spans onto dst, both open-first encoded.
// dst must be non-empty.
func AppendClosedSpans(dst, src []int) []int {
	if len(src) == 0 {
		return dst
	}
	i := 0
	if src[0] == 0 {
		i = 1
	}
	// dst's last span is open when its index is even.
	if (len(dst)-1)&1 == i&1 {
		dst[len(dst)-1] += src[i]
		i++
	}
	return append(dst, src[i:]...)
}

// AppendTypeRuns merges src runs onto dst, joining equal kinds at the seam.
func AppendTypeRuns(dst, src []geo.PrimTypeRun) []geo.PrimTypeRun {
	if len(src) == 0 {
		return dst
	}
	i := 0
	if n := len(dst); n > 0 && dst[n-1].Type == src[0].Type {
		dst[n-1].Count += src[0].Count
		i = 1
	}
	return append(dst, src[i:]...)
}
