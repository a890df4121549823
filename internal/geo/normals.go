package geo

import "copytopoints/internal/mathutil"

// PrimitiveNormal is the Newell normal of a polygon, with length equal to
// twice its area. Non-polygons and degenerate polygons give zero.
func (d *Document) PrimitiveNormal(prim int) mathutil.Vec3 {
	if d.primType[prim] != PrimPoly {
		return mathutil.Vec3{}
	}
	s, n := d.primStart[prim], d.primCount[prim]
	if n < 3 {
		return mathutil.Vec3{}
	}
	p := d.P()
	var nrm mathutil.Vec3
	for i := 0; i < n; i++ {
		a := p.Vec3(d.vtxPoint[s+i])
		b := p.Vec3(d.vtxPoint[s+(i+1)%n])
		nrm[0] += (a[1] - b[1]) * (a[2] + b[2])
		nrm[1] += (a[2] - b[2]) * (a[0] + b[0])
		nrm[2] += (a[0] - b[0]) * (a[1] + b[1])
	}
	return nrm
}

// PointNormals returns area-weighted unit point normals. Points touched by
// no polygon get a zero normal. It returns nil for a document without
// primitives.
func (d *Document) PointNormals() []mathutil.Vec3 {
	if len(d.primStart) == 0 {
		return nil
	}
	out := make([]mathutil.Vec3, d.npoints)
	for prim := range d.primStart {
		n := d.PrimitiveNormal(prim)
		if n.IsZero() {
			continue
		}
		s, c := d.primStart[prim], d.primCount[prim]
		for v := s; v < s+c; v++ {
			pt := d.vtxPoint[v]
			out[pt] = out[pt].Add(n)
		}
	}
	for i := range out {
		out[i] = out[i].Normalize()
	}
	return out
}
