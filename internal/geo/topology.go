package geo

func (d *Document) PointOfVertex(v int) int { return d.vtxPoint[v] }
func (d *Document) PrimOfVertex(v int) int  { return d.vtxPrim[v] }

// FirstVertexOfPoint returns -1 for an unreferenced point.
func (d *Document) FirstVertexOfPoint(pt int) int { return d.ptVtx[pt] }

// NextVertex walks the per-point vertex list; -1 ends it.
func (d *Document) NextVertex(v int) int { return d.vtxNext[v] }
func (d *Document) PrevVertex(v int) int { return d.vtxPrev[v] }

func (d *Document) VertexStart(prim int) int         { return d.primStart[prim] }
func (d *Document) VertexCount(prim int) int         { return d.primCount[prim] }
func (d *Document) PrimitiveType(prim int) PrimType  { return d.primType[prim] }
func (d *Document) IsClosed(prim int) bool           { return d.primClosed[prim] }
func (d *Document) PrimitiveData(prim int) *PrimData { return d.primData[prim] }

// PointsOfPrimitive lists the point of each vertex in order.
func (d *Document) PointsOfPrimitive(prim int) []int {
	s, n := d.primStart[prim], d.primCount[prim]
	return append([]int(nil), d.vtxPoint[s:s+n]...)
}

// VerticesOfPoint lists every vertex wired to pt, in link order.
func (d *Document) VerticesOfPoint(pt int) []int {
	var out []int
	for v := d.ptVtx[pt]; v >= 0; v = d.vtxNext[v] {
		out = append(out, v)
	}
	return out
}

// IsPointReferenced reports whether any vertex uses pt.
func (d *Document) IsPointReferenced(pt int) bool { return d.ptVtx[pt] >= 0 }

// PrimitiveTypeRuns run-length encodes the primitive kinds in offset order.
func (d *Document) PrimitiveTypeRuns() []PrimTypeRun {
	var runs []PrimTypeRun
	for _, t := range d.primType {
		if n := len(runs); n > 0 && runs[n-1].Type == t {
			runs[n-1].Count++
			continue
		}
		runs = append(runs, PrimTypeRun{Type: t, Count: 1})
	}
	return runs
}

// AppendPointBlock adds n unreferenced points and returns the first offset.
func (d *Document) AppendPointBlock(n int) int {
	start := d.npoints
	d.npoints += n
	for i := 0; i < n; i++ {
		d.ptVtx = append(d.ptVtx, -1)
	}
	d.resizeClass(Point)
	d.metaCount.Add(1)
	return start
}

// AppendPrimitive adds a primitive wired to the given points and returns
// its offset. Sphere and packed primitives get a payload.
func (d *Document) AppendPrimitive(t PrimType, closed bool, points []int) int {
	prim := len(d.primStart)
	start := len(d.vtxPoint)
	d.primStart = append(d.primStart, start)
	d.primCount = append(d.primCount, len(points))
	d.primType = append(d.primType, t)
	d.primClosed = append(d.primClosed, closed)
	var pd *PrimData
	if t.HasPayload() {
		pd = newPrimData()
	}
	d.primData = append(d.primData, pd)
	for _, pt := range points {
		v := len(d.vtxPoint)
		d.vtxPoint = append(d.vtxPoint, pt)
		d.vtxPrim = append(d.vtxPrim, prim)
		d.vtxNext = append(d.vtxNext, -1)
		d.vtxPrev = append(d.vtxPrev, -1)
		d.linkVertex(v, pt)
	}
	d.resizeClass(Vertex)
	d.resizeClass(Primitive)
	d.metaCount.Add(1)
	return prim
}

// linkVertex appends v to the tail of pt's vertex list.
func (d *Document) linkVertex(v, pt int) {
	first := d.ptVtx[pt]
	if first < 0 {
		d.ptVtx[pt] = v
		return
	}
	last := first
	for d.vtxNext[last] >= 0 {
		last = d.vtxNext[last]
	}
	d.vtxNext[last] = v
	d.vtxPrev[v] = last
}

// ClearAndDestroy removes every element. Attribute and group definitions
// survive with zero length. Packed references held by primitives are released.
func (d *Document) ClearAndDestroy() {
	d.releasePrimData(nil)
	d.npoints = 0
	d.vtxPoint = d.vtxPoint[:0]
	d.vtxPrim = d.vtxPrim[:0]
	d.vtxNext = d.vtxNext[:0]
	d.vtxPrev = d.vtxPrev[:0]
	d.ptVtx = d.ptVtx[:0]
	d.primStart = d.primStart[:0]
	d.primCount = d.primCount[:0]
	d.primType = d.primType[:0]
	d.primClosed = d.primClosed[:0]
	d.primData = d.primData[:0]
	for _, o := range ElementOwners {
		d.resizeClass(o)
	}
	for _, g := range d.edgeGroups {
		g.Clear()
	}
	d.BumpDataIDsForAddOrRemove(true, true, true)
}

// Clear is ClearAndDestroy plus removal of every attribute but P and of all
// groups. It leaves the document in the empty state used after errors.
func (d *Document) Clear() {
	d.ClearAndDestroy()
	for o := range d.attribs {
		for name := range d.attribs[o] {
			d.DestroyAttribute(Owner(o), name)
		}
	}
	for o := range d.groups {
		clear(d.groups[o])
	}
	clear(d.edgeGroups)
}

func (d *Document) releasePrimData(del []bool) {
	for i, pd := range d.primData {
		if pd == nil || pd.Impl == nil || (del != nil && !del[i]) {
			continue
		}
		pd.Impl.Release()
		pd.Impl = nil
	}
}

// DeletePrimitives removes the flagged primitives and their vertices.
// With andPoints, points left unreferenced by the deletion are removed too.
// Offsets of surviving elements are compacted in order.
func (d *Document) DeletePrimitives(del []bool, andPoints bool) {
	Assert(len(del) == len(d.primStart), "delete flags cover %d of %d primitives", len(del), len(d.primStart))
	d.releasePrimData(del)

	keepPrim := make([]bool, len(d.primStart))
	keepVtx := make([]bool, len(d.vtxPoint))
	touched := make([]bool, d.npoints)
	deleted := false
	for p := range d.primStart {
		keepPrim[p] = !del[p]
		s, n := d.primStart[p], d.primCount[p]
		for v := s; v < s+n; v++ {
			keepVtx[v] = keepPrim[p]
			if del[p] {
				touched[d.vtxPoint[v]] = true
			}
		}
		deleted = deleted || del[p]
	}
	if !deleted {
		return
	}

	// Points used by surviving vertices stay.
	keepPt := make([]bool, d.npoints)
	for pt := range keepPt {
		keepPt[pt] = !andPoints || !touched[pt]
	}
	if andPoints {
		for v, k := range keepVtx {
			if k {
				keepPt[d.vtxPoint[v]] = true
			}
		}
	}

	ptMap := remap(keepPt)
	primMap := remap(keepPrim)

	oldPoint, oldPrim := d.vtxPoint, d.vtxPrim
	var vtxPoint, vtxPrim []int
	for v, k := range keepVtx {
		if k {
			vtxPoint = append(vtxPoint, ptMap[oldPoint[v]])
			vtxPrim = append(vtxPrim, primMap[oldPrim[v]])
		}
	}
	var primCount []int
	var primType []PrimType
	var primClosed []bool
	var primData []*PrimData
	for p, k := range keepPrim {
		if k {
			primCount = append(primCount, d.primCount[p])
			primType = append(primType, d.primType[p])
			primClosed = append(primClosed, d.primClosed[p])
			primData = append(primData, d.primData[p])
		}
	}

	for _, a := range d.attribs[Vertex] {
		a.compact(keepVtx)
	}
	for _, g := range d.groups[Vertex] {
		g.members = compactTuples(g.members, 1, keepVtx)
	}
	for _, a := range d.attribs[Primitive] {
		a.compact(keepPrim)
	}
	for _, g := range d.groups[Primitive] {
		g.members = compactTuples(g.members, 1, keepPrim)
	}
	removedPoints := false
	for _, k := range keepPt {
		removedPoints = removedPoints || !k
	}
	if removedPoints {
		for _, a := range d.attribs[Point] {
			a.compact(keepPt)
		}
		for _, g := range d.groups[Point] {
			g.members = compactTuples(g.members, 1, keepPt)
		}
		for _, eg := range d.edgeGroups {
			edges := make(map[Edge]struct{}, len(eg.edges))
			for e := range eg.edges {
				if keepPt[e[0]] && keepPt[e[1]] {
					edges[MakeEdge(ptMap[e[0]], ptMap[e[1]])] = struct{}{}
				}
			}
			eg.edges = edges
		}
	}

	d.primCount, d.primType, d.primClosed, d.primData = primCount, primType, primClosed, primData
	d.primStart = make([]int, len(primCount))
	start := 0
	for p, n := range primCount {
		d.primStart[p] = start
		start += n
	}
	d.vtxPoint, d.vtxPrim = vtxPoint, vtxPrim
	d.npoints = 0
	for _, k := range keepPt {
		if k {
			d.npoints++
		}
	}
	d.relinkAll()
	d.BumpDataIDsForAddOrRemove(removedPoints, true, true)
}

// relinkAll rebuilds the per-point vertex lists in vertex order.
func (d *Document) relinkAll() {
	nv := len(d.vtxPoint)
	d.vtxNext = resizeSlice(d.vtxNext, nv)
	d.vtxPrev = resizeSlice(d.vtxPrev, nv)
	d.ptVtx = resizeSlice(d.ptVtx, d.npoints)
	for i := range d.ptVtx {
		d.ptVtx[i] = -1
	}
	last := make([]int, d.npoints)
	for v := 0; v < nv; v++ {
		pt := d.vtxPoint[v]
		d.vtxNext[v] = -1
		if d.ptVtx[pt] < 0 {
			d.ptVtx[pt] = v
			d.vtxPrev[v] = -1
		} else {
			d.vtxNext[last[pt]] = v
			d.vtxPrev[v] = last[pt]
		}
		last[pt] = v
	}
}

func (d *Document) resizeClass(o Owner) {
	n := d.Count(o)
	for _, a := range d.attribs[o] {
		a.resize(n)
	}
	for _, g := range d.groups[o] {
		g.resize(n)
	}
}

// remap gives each kept offset its compacted offset; dropped offsets map to -1.
func remap(keep []bool) []int {
	m := make([]int, len(keep))
	n := 0
	for i, k := range keep {
		if k {
			m[i] = n
			n++
		} else {
			m[i] = -1
		}
	}
	return m
}

// HasTransformingPrimitives reports whether any primitive carries a payload
// that reacts to transforms.
func (d *Document) HasTransformingPrimitives() bool {
	for _, t := range d.primType {
		if t.Transforms() {
			return true
		}
	}
	return false
}
