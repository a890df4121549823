package geo

import (
	"slices"

	"copytopoints/internal/parallel"
)

const buildParallelThreshold = 4096

// BuildSpec describes ncopies identical blocks of primitives to append.
// Points must already exist: copy c uses points
// [StartPoint + c*PointsPerCopy, StartPoint + (c+1)*PointsPerCopy).
type BuildSpec struct {
	Types         []PrimTypeRun
	StartPoint    int
	PointsPerCopy int
	VertexCounts  []int
	// VertexPoints is the copy-relative point of each vertex; nil means
	// vertex i uses point i.
	VertexPoints []int
	// SharedPoints is set when some point is used by more than one vertex.
	SharedPoints bool
	// ClosedSpans alternates open and closed run lengths, open first.
	ClosedSpans []int
	Copies      int
}

// BuildPrimitives appends Copies blocks of primitives in one allocation and
// wires their topology. Vertices attached to the same point are linked in
// increasing vertex order, so equal inputs give identical topology.
// It returns the first new primitive, or -1 if nothing was built.
func (d *Document) BuildPrimitives(b BuildSpec) int {
	if b.Copies <= 0 || len(b.VertexCounts) == 0 {
		return -1
	}
	nprims := len(b.VertexCounts)
	nverts := 0
	for _, n := range b.VertexCounts {
		nverts += n
	}
	Assert(b.VertexPoints != nil || b.PointsPerCopy == nverts || nverts == 0,
		"1:1 vertex wiring needs %d points per copy, have %d", nverts, b.PointsPerCopy)

	startPrim := len(d.primStart)
	startVtx := len(d.vtxPoint)
	totalPrims := nprims * b.Copies
	totalVerts := nverts * b.Copies

	d.primStart = slices.Grow(d.primStart, totalPrims)
	d.primCount = slices.Grow(d.primCount, totalPrims)
	d.primType = slices.Grow(d.primType, totalPrims)
	d.primClosed = slices.Grow(d.primClosed, totalPrims)
	d.primData = slices.Grow(d.primData, totalPrims)
	vstart := startVtx
	for c := 0; c < b.Copies; c++ {
		for _, run := range b.Types {
			for i := 0; i < run.Count; i++ {
				d.primType = append(d.primType, run.Type)
				var pd *PrimData
				if run.Type.HasPayload() {
					pd = newPrimData()
				}
				d.primData = append(d.primData, pd)
			}
		}
		closed := false
		p := 0
		for _, span := range b.ClosedSpans {
			for i := 0; i < span && p < nprims; i++ {
				d.primClosed = append(d.primClosed, closed)
				p++
			}
			closed = !closed
		}
		for ; p < nprims; p++ {
			d.primClosed = append(d.primClosed, false)
		}
		for _, n := range b.VertexCounts {
			d.primStart = append(d.primStart, vstart)
			d.primCount = append(d.primCount, n)
			vstart += n
		}
	}
	Assert(len(d.primType) == startPrim+totalPrims, "primitive type runs cover %d of %d", len(d.primType)-startPrim, totalPrims)

	d.vtxPoint = resizeSlice(d.vtxPoint, startVtx+totalVerts)
	d.vtxPrim = resizeSlice(d.vtxPrim, startVtx+totalVerts)
	d.vtxNext = resizeSlice(d.vtxNext, startVtx+totalVerts)
	d.vtxPrev = resizeSlice(d.vtxPrev, startVtx+totalVerts)
	d.resizeClass(Vertex)
	d.resizeClass(Primitive)
	d.metaCount.Add(1)

	// Relative vertex order grouped by point, used for shared points.
	var byPoint []int
	if b.VertexPoints != nil && b.SharedPoints {
		byPoint = make([]int, nverts)
		for i := range byPoint {
			byPoint[i] = i
		}
		slices.SortStableFunc(byPoint, func(x, y int) int {
			return b.VertexPoints[x] - b.VertexPoints[y]
		})
	}

	wire := func(lo, hi int) {
		for c := lo; c < hi; c++ {
			sv := startVtx + c*nverts
			sp := b.StartPoint + c*b.PointsPerCopy
			sprim := startPrim + c*nprims
			v := sv
			for p, n := range b.VertexCounts {
				for k := 0; k < n; k++ {
					d.vtxPrim[v] = sprim + p
					v++
				}
			}
			for i := 0; i < nverts; i++ {
				rel := i
				if b.VertexPoints != nil {
					rel = b.VertexPoints[i]
				}
				d.vtxPoint[sv+i] = sp + rel
				d.vtxNext[sv+i] = -1
				d.vtxPrev[sv+i] = -1
			}
			switch {
			case b.VertexPoints == nil:
				for i := 0; i < nverts; i++ {
					d.ptVtx[sp+i] = sv + i
				}
			case !b.SharedPoints:
				for i := 0; i < nverts; i++ {
					d.ptVtx[sp+b.VertexPoints[i]] = sv + i
				}
			default:
				for j := 0; j < nverts; j++ {
					cur := byPoint[j]
					pt := b.VertexPoints[cur]
					if j == 0 || b.VertexPoints[byPoint[j-1]] != pt {
						d.ptVtx[sp+pt] = sv + cur
					} else {
						prev := byPoint[j-1]
						d.vtxPrev[sv+cur] = sv + prev
						d.vtxNext[sv+prev] = sv + cur
					}
				}
			}
		}
	}
	threshold := b.Copies
	if b.Copies >= 2 && b.Copies*nverts >= buildParallelThreshold {
		threshold = 1
	}
	parallel.For(b.Copies, threshold, max(1, 1024/max(nverts, 1)), wire)
	return startPrim
}
