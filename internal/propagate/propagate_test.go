package propagate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copytopoints/internal/geo"
	"copytopoints/internal/mathutil"
	"copytopoints/internal/piece"
	"copytopoints/internal/xform"
)

type fixture struct {
	src, target, out *geo.Document
	layout           *piece.Layout
	targets          []int
	cache            xform.Cache
	st               *State
	hadMatrices      bool
	attribs, groups  TargetInfoMap
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	src := geo.New()
	src.AppendPointBlock(3)
	src.SetPointPos(0, mathutil.Vec3{0, 0, 0})
	src.SetPointPos(1, mathutil.Vec3{1, 0, 0})
	src.SetPointPos(2, mathutil.Vec3{0, 1, 0})
	src.AppendPrimitive(geo.PrimPoly, true, []int{0, 1, 2})

	target := geo.New()
	target.AppendPointBlock(2)
	target.SetPointPos(0, mathutil.Vec3{10, 0, 0})
	target.SetPointPos(1, mathutil.Vec3{0, 10, 0})

	out := geo.New()
	out.AppendPointBlock(6)
	out.BuildPrimitives(geo.BuildSpec{
		Types:         []geo.PrimTypeRun{{Type: geo.PrimPoly, Count: 1}},
		PointsPerCopy: 3,
		VertexCounts:  []int{3},
		ClosedSpans:   []int{0, 1},
		Copies:        2,
	})
	require.Equal(t, 2, out.NumPrimitives())

	return &fixture{
		src:     src,
		target:  target,
		out:     out,
		layout:  piece.UniformLayout([geo.NumElementOwners][]int{{0, 1, 2}, {0, 1, 2}, {0}}, 2),
		targets: []int{0, 1},
		st:      NewState(),
		attribs: TargetInfoMap{},
		groups:  TargetInfoMap{},
	}
}

// cook runs one full propagation pass the way an invocation does.
func (f *fixture) cook(topo bool) (Stats, Stats) {
	attribs := make(TargetInfoMap, len(f.attribs))
	for k, v := range f.attribs {
		attribs[k] = v
	}
	groups := make(TargetInfoMap, len(f.groups))
	for k, v := range f.groups {
		groups[k] = v
	}
	f.out.BeginEdit()
	defer f.out.EndEdit()

	changed := f.cache.Setup(f.target, f.targets, xform.Options{Transform: true}, false)
	RemoveUnnecessary(f.out, f.src, f.target, f.st, attribs, groups)
	counts, needed := AddFromSourceOrTarget(f.out, f.src, f.target, f.st, attribs, groups, f.cache.HasMatrices())
	f.cache.Compute(needed, changed)
	s := CopyFromSource(SourceParams{
		Out:               f.out,
		Source:            f.src,
		Target:            f.target,
		Layout:            f.layout,
		Counts:            counts,
		Xform:             &f.cache,
		HadMatrices:       f.hadMatrices,
		TopologyChanged:   topo,
		TransformsChanged: changed,
		Attribs:           attribs,
		Groups:            groups,
		State:             f.st,
	})
	tg := CopyFromTarget(TargetParams{
		Out:             f.out,
		Target:          f.target,
		Targets:         f.targets,
		Layout:          f.layout,
		Counts:          counts,
		TopologyChanged: topo,
		Attribs:         attribs,
		Groups:          groups,
		State:           f.st,
	})
	f.hadMatrices = f.cache.HasMatrices()
	return s, tg
}

func assertVec(t *testing.T, want, got mathutil.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-5, "component %d", i)
	}
}

func TestSourcePointsAreTranslated(t *testing.T) {
	f := newFixture(t)
	f.cook(true)
	assertVec(t, mathutil.Vec3{10, 0, 0}, f.out.P().Vec3(0))
	assertVec(t, mathutil.Vec3{11, 0, 0}, f.out.P().Vec3(1))
	assertVec(t, mathutil.Vec3{1, 10, 0}, f.out.P().Vec3(4))
	assertVec(t, mathutil.Vec3{0, 11, 0}, f.out.P().Vec3(5))
}

func TestSecondPassSkipsUnchanged(t *testing.T) {
	f := newFixture(t)
	cd := f.src.AddAttribute(geo.Point, "Cd", geo.Float32, 3)
	cd.SetVec3(1, mathutil.Vec3{1, 0, 0})
	first, _ := f.cook(true)
	assert.Equal(t, 2, first.Copied)

	pID := f.out.P().DataID()
	cdID := f.out.FindAttribute(geo.Point, "Cd").DataID()
	second, _ := f.cook(false)
	assert.Zero(t, second.Copied)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, pID, f.out.P().DataID())
	assert.Equal(t, cdID, f.out.FindAttribute(geo.Point, "Cd").DataID())

	cd.SetVec3(1, mathutil.Vec3{0, 1, 0})
	cd.BumpDataID()
	third, _ := f.cook(false)
	assert.Equal(t, 1, third.Copied)
	assert.Equal(t, pID, f.out.P().DataID())
	assert.NotEqual(t, cdID, f.out.FindAttribute(geo.Point, "Cd").DataID())
	assertVec(t, mathutil.Vec3{0, 1, 0}, f.out.FindAttribute(geo.Point, "Cd").Vec3(4))
}

func TestTopologyChangeRecopiesEverything(t *testing.T) {
	f := newFixture(t)
	f.cook(true)
	s, _ := f.cook(true)
	assert.Equal(t, 1, s.Copied)
	assert.Zero(t, s.Skipped)
}

func TestTargetMultiplyCombines(t *testing.T) {
	f := newFixture(t)
	alpha := f.src.AddAttribute(geo.Point, "Alpha", geo.Float32, 1)
	for i := 0; i < 3; i++ {
		alpha.SetFloat(i, 0, 0.5)
	}
	tAlpha := f.target.AddAttribute(geo.Point, "Alpha", geo.Float32, 1)
	tAlpha.SetFloat(0, 0, 2)
	tAlpha.SetFloat(1, 0, 4)
	f.attribs["Alpha"] = TargetInfo{CopyTo: geo.Point, Method: Multiply}

	_, tg := f.cook(true)
	assert.Equal(t, 1, tg.Copied)
	out := f.out.FindAttribute(geo.Point, "Alpha")
	assert.InDelta(t, 1.0, out.Float(0, 0), 1e-6)
	assert.InDelta(t, 2.0, out.Float(5, 0), 1e-6)

	s, tg := f.cook(false)
	assert.Zero(t, s.Copied)
	assert.Zero(t, tg.Copied)
	assert.InDelta(t, 2.0, out.Float(5, 0), 1e-6)

	// A new target value means the source values are written again before
	// combining, never combined twice.
	tAlpha.SetFloat(1, 0, 3)
	tAlpha.BumpDataID()
	s, tg = f.cook(false)
	assert.Equal(t, 1, s.Copied)
	assert.Equal(t, 1, tg.Copied)
	assert.InDelta(t, 1.0, out.Float(0, 0), 1e-6)
	assert.InDelta(t, 1.5, out.Float(5, 0), 1e-6)
}

func TestMultiplyWithoutSourceBecomesCopy(t *testing.T) {
	f := newFixture(t)
	w := f.target.AddAttribute(geo.Point, "weight", geo.Float64, 1)
	w.SetFloat(0, 0, 3)
	w.SetFloat(1, 0, 7)
	attribs := TargetInfoMap{"weight": {CopyTo: geo.Point, Method: Multiply}}
	counts, _ := AddFromSourceOrTarget(f.out, f.src, f.target, f.st, attribs, TargetInfoMap{}, false)
	assert.Equal(t, Copy, attribs["weight"].Method)
	assert.Equal(t, 1, counts.Target[geo.Point])

	f.attribs = attribs
	f.cook(true)
	out := f.out.FindAttribute(geo.Point, "weight")
	require.NotNil(t, out)
	assert.Equal(t, 3.0, out.Float(2, 0))
	assert.Equal(t, 7.0, out.Float(3, 0))
}

func TestNonCopyRequestMovesToConflictClass(t *testing.T) {
	f := newFixture(t)
	f.src.AddAttribute(geo.Vertex, "uv", geo.Float32, 3)
	f.target.AddAttribute(geo.Point, "uv", geo.Float32, 3)
	attribs := TargetInfoMap{"uv": {CopyTo: geo.Point, Method: Add}}
	AddFromSourceOrTarget(f.out, f.src, f.target, f.st, attribs, TargetInfoMap{}, false)
	assert.Equal(t, geo.Vertex, attribs["uv"].CopyTo)
	assert.Equal(t, Add, attribs["uv"].Method)
	assert.Nil(t, f.out.FindAttribute(geo.Point, "uv"))
}

func TestTargetCopyWinsOverSource(t *testing.T) {
	f := newFixture(t)
	f.src.AddAttribute(geo.Point, "Cd", geo.Float32, 3)
	tcd := f.target.AddAttribute(geo.Point, "Cd", geo.Float32, 3)
	tcd.SetVec3(1, mathutil.Vec3{0, 0, 1})
	f.cook(true)
	require.NotNil(t, f.out.FindAttribute(geo.Point, "Cd"))

	f.attribs["Cd"] = TargetInfo{CopyTo: geo.Vertex, Method: Copy}
	f.cook(true)
	assert.Nil(t, f.out.FindAttribute(geo.Point, "Cd"))
	vcd := f.out.FindAttribute(geo.Vertex, "Cd")
	require.NotNil(t, vcd)
	assertVec(t, mathutil.Vec3{0, 0, 1}, vcd.Vec3(3))
	assertVec(t, mathutil.Vec3{0, 0, 0}, vcd.Vec3(2))
}

func TestRemoveDropsStaleAttributes(t *testing.T) {
	f := newFixture(t)
	f.out.AddAttribute(geo.Point, "junk", geo.Int32, 1)
	f.out.AddAttribute(geo.Primitive, "junk", geo.String, 1)
	f.out.AddGroup(geo.Point, "stale")
	f.out.AddEdgeGroup("seam")
	RemoveUnnecessary(f.out, f.src, f.target, f.st, TargetInfoMap{}, TargetInfoMap{})
	assert.Nil(t, f.out.FindAttribute(geo.Point, "junk"))
	assert.Nil(t, f.out.FindAttribute(geo.Primitive, "junk"))
	assert.Nil(t, f.out.FindGroup(geo.Point, "stale"))
	assert.Nil(t, f.out.FindEdgeGroup("seam"))
	assert.NotNil(t, f.out.P())
}

func TestRemoveReconcilesPositionStorage(t *testing.T) {
	f := newFixture(t)
	f.src.P().SetStorage(geo.Float64)
	f.st.SourceAttribIDs[geo.Point][geo.PName] = f.src.P().DataID()
	RemoveUnnecessary(f.out, f.src, f.target, f.st, TargetInfoMap{}, TargetInfoMap{})
	assert.Equal(t, geo.Float64, f.out.P().Storage())
	assert.NotContains(t, f.st.SourceAttribIDs[geo.Point], geo.PName)
}

func TestGroupCombine(t *testing.T) {
	f := newFixture(t)
	f.src.AddGroup(geo.Point, "sel").Set(0, true)
	f.target.AddGroup(geo.Point, "sel").Set(1, true)
	f.groups["sel"] = TargetInfo{CopyTo: geo.Point, Method: Add}
	f.cook(true)
	g := f.out.FindGroup(geo.Point, "sel")
	require.NotNil(t, g)
	assert.Equal(t, []bool{true, false, false, true, true, true}, g.Members())

	f.groups["sel"] = TargetInfo{CopyTo: geo.Point, Method: Subtract}
	f.cook(false)
	assert.Equal(t, []bool{true, false, false, false, false, false}, g.Members())

	f.groups["sel"] = TargetInfo{CopyTo: geo.Point, Method: Multiply}
	f.cook(false)
	assert.Equal(t, []bool{false, false, false, true, false, false}, g.Members())
}

func TestEdgeGroupsShiftPerCopy(t *testing.T) {
	f := newFixture(t)
	f.src.AddEdgeGroup("seam").Add(geo.Edge{1, 0})
	f.cook(true)
	eg := f.out.FindEdgeGroup("seam")
	require.NotNil(t, eg)
	assert.Equal(t, 2, eg.Entries())
	assert.True(t, eg.Contains(geo.Edge{0, 1}))
	assert.True(t, eg.Contains(geo.Edge{3, 4}))
}

func TestEdgeGroupsSkipUnconnectedPairs(t *testing.T) {
	f := newFixture(t)
	f.src.AppendPointBlock(1)
	f.src.SetPointPos(3, mathutil.Vec3{5, 5, 0})
	f.layout = piece.UniformLayout([geo.NumElementOwners][]int{{0, 1, 2}, {0, 1, 2, 3}, {0}}, 2)
	f.out = geo.New()
	f.out.AppendPointBlock(8)
	f.out.BuildPrimitives(geo.BuildSpec{
		Types:         []geo.PrimTypeRun{{Type: geo.PrimPoly, Count: 1}},
		PointsPerCopy: 4,
		VertexCounts:  []int{3},
		ClosedSpans:   []int{0, 1},
		Copies:        2,
	})

	seam := f.src.AddEdgeGroup("seam")
	seam.Add(geo.Edge{2, 0})
	seam.Add(geo.Edge{0, 3})
	seam.Add(geo.Edge{1, 3})
	f.cook(true)

	eg := f.out.FindEdgeGroup("seam")
	require.NotNil(t, eg)
	assert.Equal(t, 2, eg.Entries())
	assert.True(t, eg.Contains(geo.Edge{0, 2}))
	assert.True(t, eg.Contains(geo.Edge{4, 6}))
	assert.False(t, eg.Contains(geo.Edge{0, 3}))
}

func TestEdgeGroupsLargerThanTopology(t *testing.T) {
	f := newFixture(t)
	seam := f.src.AddEdgeGroup("seam")
	for _, e := range []geo.Edge{{0, 1}, {1, 2}, {2, 0}, {0, 0}, {1, 1}} {
		seam.Add(e)
	}
	f.cook(true)

	eg := f.out.FindEdgeGroup("seam")
	require.NotNil(t, eg)
	assert.Equal(t, 6, eg.Entries())
	assert.True(t, eg.Contains(geo.Edge{3, 5}))
	assert.False(t, eg.Contains(geo.Edge{0, 0}))
}

func TestVectorsRecopiedWhenMatricesGoAway(t *testing.T) {
	f := newFixture(t)
	dir := f.src.AddAttribute(geo.Point, "dir", geo.Float32, 3)
	dir.SetTypeInfo(geo.TypeVector)
	dir.SetVec3(0, mathutil.Vec3{1, 0, 0})
	ps := f.target.AddAttribute(geo.Point, xform.AttrPScale, geo.Float32, 1)
	ps.SetFloat(0, 0, 2)
	ps.SetFloat(1, 0, 2)

	f.cook(true)
	out := f.out.FindAttribute(geo.Point, "dir")
	assertVec(t, mathutil.Vec3{2, 0, 0}, out.Vec3(3))

	f.target.DestroyAttribute(geo.Point, xform.AttrPScale)
	f.cook(false)
	assertVec(t, mathutil.Vec3{1, 0, 0}, out.Vec3(3))
}

func TestNormalKernelKeepsLength(t *testing.T) {
	m := mathutil.Mat3Diag(2, 1, 1)
	k := &kernel{kind: geo.TypeNormal, invs: []mathutil.Mat3{xform.NormalMatrixInverse(m)}}
	v := []float64{1, 1, 0}
	k.apply64(v, 0)
	assert.InDelta(t, 2.0, v[0]*v[0]+v[1]*v[1]+v[2]*v[2], 1e-9)
	assert.InDelta(t, 0.5, v[0]/v[1], 1e-9)

	k32 := &kernel{kind: geo.TypeNormal, invs32: []mathutil.Mat3F{xform.NormalMatrixInverse(m).F32()}}
	v32 := []float32{1, 1, 0}
	k32.apply32(v32, 0)
	assert.InDelta(t, 2.0, float64(v32[0]*v32[0]+v32[1]*v32[1]), 1e-5)
}

func TestHPointKernel(t *testing.T) {
	m := [9]float64(mathutil.Mat3Diag(2, 2, 2))
	tr := [3]float64{1, 0, 0}
	v := []float64{1, 1, 1, 2}
	transformHPoint(v, &m, &tr)
	assert.Equal(t, []float64{3, 2, 2, 2}, v)

	// w = 0 leaves the direction scaled but untranslated.
	d := []float64{1, 0, 0, 0}
	transformHPoint(d, &m, &tr)
	assert.Equal(t, []float64{0, 0, 0, 0}, d)
}

func TestMat4KernelTranslateOnly(t *testing.T) {
	var a [16]float32
	for i, v := range mathutil.Mat4Identity() {
		a[i] = float32(v)
	}
	tr := [3]float32{1, 2, 3}
	transformMat4(a[:], nil, &tr)
	assert.Equal(t, float32(1), a[3])
	assert.Equal(t, float32(2), a[7])
	assert.Equal(t, float32(3), a[11])
	assert.Equal(t, float32(1), a[0])
}

func TestQuatKernelComposes(t *testing.T) {
	qt := mathutil.AxisAngle(mathutil.Vec3{0, 0, 1}, 1)
	q := mathutil.AxisAngle(mathutil.Vec3{1, 0, 0}, 0.5)
	v := q[:]
	transformQuat(v, (*[4]float64)(&qt))
	want := mathutil.QuatMul(qt, q)
	for i := range want {
		assert.InDelta(t, want[i], v[i], 1e-12)
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("mult")
	require.NoError(t, err)
	assert.Equal(t, Multiply, m)
	assert.Equal(t, "sub", Subtract.String())
	_, err = ParseMethod("divide")
	assert.Error(t, err)
}
