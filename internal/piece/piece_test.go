package piece

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copytopoints/internal/geo"
)

// twoTriangles has two unconnected triangles, points 0-2 and 3-5.
func twoTriangles() *geo.Document {
	d := geo.New()
	d.AppendPointBlock(6)
	d.AppendPrimitive(geo.PrimPoly, true, []int{0, 1, 2})
	d.AppendPrimitive(geo.PrimPoly, true, []int{3, 4, 5})
	return d
}

func intTargets(name string, keys ...int64) (*geo.Document, []int) {
	d := geo.New()
	d.AppendPointBlock(len(keys))
	a := d.AddAttribute(geo.Point, name, geo.Int32, 1)
	pts := make([]int, len(keys))
	for i, k := range keys {
		a.SetInt(i, 0, k)
		pts[i] = i
	}
	return d, pts
}

func TestPrimitiveIndexKeys(t *testing.T) {
	src := twoTriangles()
	tgt, pts := intTargets("variant", 0, 0, 1)

	part, err := Build(Input{Source: src, Targets: pts, TargetKey: tgt.FindAttribute(geo.Point, "variant")})
	require.NoError(t, err)
	require.Len(t, part.Pieces, 2)
	assert.Nil(t, part.SourceKey)
	assert.Equal(t, geo.Primitive, part.SourceOwner)
	assert.Equal(t, []int{0, 0, 1}, part.TargetToPiece)
	assert.Equal(t, []int{0, 1, 2}, part.Targets)

	assert.Equal(t, 2, part.Pieces[0].RefCount)
	assert.Equal(t, []int{0}, part.Pieces[0].Offsets[geo.Primitive])
	assert.Equal(t, 1, part.Pieces[1].RefCount)
	assert.Equal(t, []int{1}, part.Pieces[1].Offsets[geo.Primitive])

	part.Expand(src)
	assert.Equal(t, []int{3, 4, 5}, part.Pieces[1].Offsets[geo.Point])
	assert.Equal(t, []int{3, 4, 5}, part.Pieces[1].Offsets[geo.Vertex])
	assert.Equal(t, []int{0, 1, 2}, part.Pieces[1].RelVtxToPt)
}

func TestPrimitiveIndexRespectsSelectionAndBounds(t *testing.T) {
	src := twoTriangles()
	prims := src.AddGroup(geo.Primitive, "first")
	prims.Set(0, true)
	tgt, pts := intTargets("variant", 1, 0, 7, -1)

	part, err := Build(Input{Source: src, SourcePrims: prims, Targets: pts, TargetKey: tgt.FindAttribute(geo.Point, "variant")})
	require.NoError(t, err)
	require.Len(t, part.Pieces, 1)
	assert.Equal(t, []int{1}, part.Targets)
	assert.Equal(t, []int{0}, part.TargetToPiece)
}

func TestStringKeysNarrowTargets(t *testing.T) {
	src := twoTriangles()
	name := src.AddAttribute(geo.Primitive, "name", geo.String, 1)
	name.SetStr(0, "a")
	name.SetStr(1, "b")

	tgt := geo.New()
	tgt.AppendPointBlock(4)
	key := tgt.AddAttribute(geo.Point, "name", geo.String, 1)
	for i, s := range []string{"b", "", "a", "zzz"} {
		key.SetStr(i, s)
	}

	part, err := Build(Input{Source: src, Targets: []int{0, 1, 2, 3}, TargetKey: key})
	require.NoError(t, err)
	require.Len(t, part.Pieces, 2)
	assert.Same(t, name, part.SourceKey)
	assert.Equal(t, []int{0, 2}, part.Targets)
	assert.Equal(t, []int{1, 0}, part.TargetToPiece)
	assert.Equal(t, []int{0}, part.Pieces[0].Offsets[geo.Primitive])
}

func TestVertexStringKeysUseFirstVertex(t *testing.T) {
	src := twoTriangles()
	name := src.AddAttribute(geo.Vertex, "name", geo.String, 1)
	name.SetStr(0, "a")
	name.SetStr(1, "b")
	name.SetStr(3, "a")

	tgt := geo.New()
	tgt.AppendPointBlock(1)
	key := tgt.AddAttribute(geo.Point, "name", geo.String, 1)
	key.SetStr(0, "a")

	part, err := Build(Input{Source: src, Targets: []int{0}, TargetKey: key})
	require.NoError(t, err)
	assert.Equal(t, geo.Primitive, part.SourceOwner)
	require.Len(t, part.Pieces, 1)
	assert.Equal(t, []int{0, 1}, part.Pieces[0].Offsets[geo.Primitive])
}

func TestKeyErrors(t *testing.T) {
	src := twoTriangles()

	tgt := geo.New()
	tgt.AppendPointBlock(1)
	str := tgt.AddAttribute(geo.Point, "name", geo.String, 1)
	_, err := Build(Input{Source: src, Targets: []int{0}, TargetKey: str})
	assert.ErrorIs(t, err, ErrKeyMissing)

	f := tgt.AddAttribute(geo.Point, "weight", geo.Float32, 1)
	_, err = Build(Input{Source: src, Targets: []int{0}, TargetKey: f})
	assert.ErrorIs(t, err, ErrKeyType)

	_, err = Build(Input{Source: src, Targets: []int{0}})
	assert.ErrorIs(t, err, ErrKeyMissing)
}

func TestSentinelNeverMatches(t *testing.T) {
	src := twoTriangles()
	id := src.AddAttribute(geo.Primitive, "id", geo.Int64, 1)
	id.SetInt(0, 0, IntSentinel)
	id.SetInt(1, 0, 5)
	tgt, pts := intTargets("id", 5, 5)
	tgt.FindAttribute(geo.Point, "id").SetStorage(geo.Int64)
	tgt.FindAttribute(geo.Point, "id").SetInt(0, 0, IntSentinel)

	part, err := Build(Input{Source: src, Targets: pts, TargetKey: tgt.FindAttribute(geo.Point, "id")})
	require.NoError(t, err)
	require.Len(t, part.Pieces, 1)
	assert.Equal(t, []int{1}, part.Targets)
	assert.Equal(t, 1, part.Pieces[0].RefCount)
	assert.Equal(t, []int{1}, part.Pieces[0].Offsets[geo.Primitive])
}

// strip has two quads sharing points 2 and 3.
func strip() *geo.Document {
	d := geo.New()
	d.AppendPointBlock(6)
	d.AppendPrimitive(geo.PrimPoly, true, []int{0, 2, 3, 1})
	d.AppendPrimitive(geo.PrimPoly, true, []int{2, 4, 5, 3})
	return d
}

func pointKeyedStrip(t *testing.T) (*geo.Document, *Partition) {
	t.Helper()
	src := strip()
	key := src.AddAttribute(geo.Point, "part", geo.Int32, 1)
	for pt, k := range []int64{0, 0, 0, 0, 1, 1} {
		key.SetInt(pt, 0, k)
	}
	tgt, pts := intTargets("part", 1, 0, 1)
	part, err := Build(Input{Source: src, Targets: pts, TargetKey: tgt.FindAttribute(geo.Point, "part")})
	require.NoError(t, err)
	part.Expand(src)
	return src, part
}

func TestPointKeysTakeWholePrimitives(t *testing.T) {
	_, part := pointKeyedStrip(t)
	assert.Equal(t, geo.Point, part.SourceOwner)
	require.Len(t, part.Pieces, 2)

	p0 := part.Pieces[0]
	assert.Equal(t, 1, p0.RefCount)
	assert.Equal(t, []int{0, 1, 2, 3}, p0.Offsets[geo.Point])
	assert.Equal(t, []int{0}, p0.Offsets[geo.Primitive])
	assert.Equal(t, []int{0, 1, 2, 3}, p0.Offsets[geo.Vertex])
	assert.Equal(t, []int{0, 2, 3, 1}, p0.RelVtxToPt)

	// The second quad straddles both pieces, so neither takes it.
	p1 := part.Pieces[1]
	assert.Equal(t, 2, p1.RefCount)
	assert.Equal(t, []int{4, 5}, p1.Offsets[geo.Point])
	assert.Empty(t, p1.Offsets[geo.Primitive])
	assert.Empty(t, p1.Offsets[geo.Vertex])
}

func TestComputeBuildData(t *testing.T) {
	src, part := pointKeyedStrip(t)
	p0 := &part.Pieces[0]
	p0.ComputeBuildData(src)
	assert.True(t, p0.SharedPoints)
	assert.False(t, p0.ContiguousPoints)
	assert.Equal(t, []int{4}, p0.VertexCounts)
	assert.Equal(t, []geo.PrimTypeRun{{Type: geo.PrimPoly, Count: 1}}, p0.Types)
	assert.Equal(t, []int{0, 1}, p0.ClosedSpans)

	tris := twoTriangles()
	pc := Piece{Offsets: [geo.NumElementOwners][]int{geo.Point: {0, 1, 2}, geo.Primitive: {0}}}
	pc.expand(tris, geo.Primitive, nil)
	pc.ComputeBuildData(tris)
	assert.False(t, pc.SharedPoints)
	assert.True(t, pc.ContiguousPoints)
}

func TestClosedSpansAlternate(t *testing.T) {
	d := geo.New()
	d.AppendPointBlock(4)
	d.AppendPrimitive(geo.PrimPoly, false, []int{0, 1})
	d.AppendPrimitive(geo.PrimPoly, false, []int{1, 2})
	d.AppendPrimitive(geo.PrimPoly, true, []int{0, 1, 2})
	d.AppendPrimitive(geo.PrimSphere, true, []int{3})

	pc := Piece{Offsets: [geo.NumElementOwners][]int{geo.Primitive: {0, 1, 2, 3}}}
	pc.expand(d, geo.Primitive, nil)
	pc.ComputeBuildData(d)
	assert.Equal(t, []int{2, 2}, pc.ClosedSpans)
	assert.Equal(t, []geo.PrimTypeRun{{Type: geo.PrimPoly, Count: 3}, {Type: geo.PrimSphere, Count: 1}}, pc.Types)
	assert.True(t, pc.SharedPoints)
}

func TestAppendClosedSpans(t *testing.T) {
	spans := []int{0, 2}
	spans = AppendClosedSpans(spans, []int{0, 1})
	assert.Equal(t, []int{0, 3}, spans)
	spans = AppendClosedSpans(spans, []int{1, 2})
	assert.Equal(t, []int{0, 3, 1, 2}, spans)
	spans = AppendClosedSpans(spans, nil)
	assert.Equal(t, []int{0, 3, 1, 2}, spans)

	runs := AppendTypeRuns([]geo.PrimTypeRun{{Type: geo.PrimPoly, Count: 1}},
		[]geo.PrimTypeRun{{Type: geo.PrimPoly, Count: 2}, {Type: geo.PrimTet, Count: 1}})
	assert.Equal(t, []geo.PrimTypeRun{{Type: geo.PrimPoly, Count: 3}, {Type: geo.PrimTet, Count: 1}}, runs)
}

func TestRelativeVertexPointsLargePiece(t *testing.T) {
	d := geo.New()
	d.AppendPointBlock(40)
	var prims []int
	for i := 0; i < 10; i++ {
		// Reversed winding over scattered points.
		prims = append(prims, d.AppendPrimitive(geo.PrimPoly, true, []int{39 - 2*i, 38 - 2*i, i}))
	}
	pc := Piece{Offsets: [geo.NumElementOwners][]int{geo.Primitive: prims}}
	pc.expand(d, geo.Primitive, nil)
	require.Len(t, pc.RelVtxToPt, 30)
	for i, v := range pc.Offsets[geo.Vertex] {
		assert.Equal(t, d.PointOfVertex(v), pc.Offsets[geo.Point][pc.RelVtxToPt[i]])
	}
}

func TestKeyedLayoutCursor(t *testing.T) {
	_, part := pointKeyedStrip(t)
	l := KeyedLayout(part.Pieces, part.TargetToPiece)
	require.Equal(t, []int{1, 0, 1}, part.TargetToPiece)
	assert.Equal(t, 8, l.Total(geo.Point))
	assert.Equal(t, 1, l.Total(geo.Primitive))
	assert.Equal(t, []int{0, 0, 1}, l.Starts(geo.Primitive))

	// Empty copies before and after the only primitive.
	c := l.CursorAt(geo.Primitive, 0)
	assert.Equal(t, 1, c.Target())
	assert.Equal(t, 0, c.Source())

	var targets, sources []int
	c = l.CursorAt(geo.Point, 1)
	for off := 1; off < l.Total(geo.Point); off++ {
		targets = append(targets, c.Target())
		sources = append(sources, c.Source())
		c.Next()
	}
	assert.Equal(t, []int{0, 1, 1, 1, 1, 2, 2}, targets)
	assert.Equal(t, []int{5, 0, 1, 2, 3, 4, 5}, sources)
}

func TestUniformLayoutCursor(t *testing.T) {
	l := UniformLayout([geo.NumElementOwners][]int{geo.Point: {3, 4, 5}}, 2)
	assert.False(t, l.Keyed())
	assert.Equal(t, 6, l.Total(geo.Point))
	assert.Equal(t, 3, l.PerCopy(geo.Point))
	c := l.CursorAt(geo.Point, 4)
	assert.Equal(t, 1, c.Target())
	assert.Equal(t, 4, c.Source())
	c.Next()
	assert.Equal(t, 5, c.Source())
}

func TestPointSelectionLimitsPrimitiveKeys(t *testing.T) {
	src := twoTriangles()
	left := src.AddGroup(geo.Point, "left")
	for _, pt := range []int{0, 1, 2} {
		left.Set(pt, true)
	}
	tgt, pts := intTargets("variant", 0, 1)

	part, err := Build(Input{Source: src, SourcePoints: left, Targets: pts, TargetKey: tgt.FindAttribute(geo.Point, "variant")})
	require.NoError(t, err)
	require.Len(t, part.Pieces, 1)
	assert.Equal(t, []int{0}, part.Targets)
	assert.Equal(t, []int{0}, part.Pieces[0].Offsets[geo.Primitive])
}

func TestPrimitiveSelectionLimitsPointKeys(t *testing.T) {
	src := twoTriangles()
	key := src.AddAttribute(geo.Point, "variant", geo.Int32, 1)
	for pt := 3; pt < 6; pt++ {
		key.SetInt(pt, 0, 1)
	}
	first := src.AddGroup(geo.Primitive, "first")
	first.Set(0, true)
	tgt, pts := intTargets("variant", 0, 1)

	part, err := Build(Input{Source: src, SourcePrims: first, Targets: pts, TargetKey: tgt.FindAttribute(geo.Point, "variant")})
	require.NoError(t, err)
	assert.Equal(t, geo.Point, part.SourceOwner)
	require.Len(t, part.Pieces, 1)
	assert.Equal(t, []int{0}, part.Targets)

	part.Expand(src)
	assert.Equal(t, []int{0, 1, 2}, part.Pieces[0].Offsets[geo.Point])
	assert.Equal(t, []int{0}, part.Pieces[0].Offsets[geo.Primitive])
}
