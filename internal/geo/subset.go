package geo

// Subset copies the listed points and primitives, with every attribute and
// group, into a new document. Vertices of the listed primitives must
// reference listed points. Both lists must be in increasing order.
func (d *Document) Subset(points, prims []int) *Document {
	out := New()
	ptMap := make(map[int]int, len(points))
	start := out.AppendPointBlock(len(points))
	for i, pt := range points {
		ptMap[pt] = start + i
	}
	var srcVerts []int
	for _, prim := range prims {
		s, n := d.primStart[prim], d.primCount[prim]
		pts := make([]int, n)
		for k := 0; k < n; k++ {
			mapped, ok := ptMap[d.vtxPoint[s+k]]
			Assert(ok, "primitive %d uses point %d outside the subset", prim, d.vtxPoint[s+k])
			pts[k] = mapped
			srcVerts = append(srcVerts, s+k)
		}
		np := out.AppendPrimitive(d.primType[prim], d.primClosed[prim], pts)
		if pd := d.primData[prim]; pd != nil && out.primData[np] != nil {
			out.primData[np].CopyFrom(pd)
		}
	}

	elems := [NumElementOwners][]int{Vertex: srcVerts, Point: points, Primitive: prims}
	for _, o := range ElementOwners {
		for _, a := range d.Attributes(o) {
			na := out.CloneAttribute(o, a)
			for i, si := range elems[o] {
				na.CopyElement(i, a, si)
			}
		}
		for _, g := range d.Groups(o) {
			ng := out.AddGroup(o, g.name)
			for i, si := range elems[o] {
				ng.members[i] = g.members[si]
			}
		}
	}
	for _, a := range d.Attributes(Detail) {
		out.CloneAttribute(Detail, a).CopyElement(0, a, 0)
	}
	for _, eg := range d.EdgeGroups() {
		ng := out.AddEdgeGroup(eg.name)
		for e := range eg.edges {
			a, okA := ptMap[e[0]]
			b, okB := ptMap[e[1]]
			if okA && okB {
				ng.Add(Edge{a, b})
			}
		}
	}
	return out
}

// ReplaceWithPoints makes d hold only the listed points of src together
// with src's point attributes, point groups and detail attributes. A nil
// list takes every point.
func (d *Document) ReplaceWithPoints(src *Document, points []int) {
	d.Clear()
	if points == nil {
		points = make([]int, src.npoints)
		for i := range points {
			points[i] = i
		}
	}
	d.AppendPointBlock(len(points))
	for _, a := range src.Attributes(Point) {
		na := d.CloneAttribute(Point, a)
		for i, si := range points {
			na.CopyElement(i, a, si)
		}
	}
	for _, g := range src.Groups(Point) {
		ng := d.AddGroup(Point, g.name)
		for i, si := range points {
			ng.members[i] = g.members[si]
		}
	}
	for _, a := range src.Attributes(Detail) {
		d.CloneAttribute(Detail, a).CopyElement(0, a, 0)
	}
	d.BumpDataIDsForAddOrRemove(true, true, true)
}
