package xform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copytopoints/internal/geo"
	"copytopoints/internal/mathutil"
)

func targetPoints(n int) (*geo.Document, []int) {
	d := geo.New()
	d.AppendPointBlock(n)
	pts := make([]int, n)
	for i := range pts {
		pts[i] = i
		d.SetPointPos(i, mathutil.Vec3{float64(i), 2, 0})
	}
	return d, pts
}

func assertVec(t *testing.T, want, got mathutil.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-6, "component %d", i)
	}
}

func TestPositionOnlyHasNoMatrices(t *testing.T) {
	d, pts := targetPoints(3)
	var c Cache
	require.True(t, c.Setup(d, pts, Options{Transform: true, ImplicitN: true}, false))
	assert.False(t, c.HasMatrices())
	assert.Equal(t, 3, c.Len())
	assertVec(t, mathutil.Vec3{2, 2, 0}, c.Translates()[2])
}

func TestSetupSkipsWhenUnchanged(t *testing.T) {
	d, pts := targetPoints(4)
	ps := d.AddAttribute(geo.Point, AttrPScale, geo.Float32, 1)
	for i := range pts {
		ps.SetFloat(i, 0, 2)
	}
	opts := Options{Transform: true}
	var c Cache
	require.True(t, c.Setup(d, pts, opts, false))
	assert.False(t, c.Setup(d, pts, opts, false))

	ps.BumpDataID()
	assert.True(t, c.Setup(d, pts, opts, false))

	// Fewer targets always counts as a change.
	assert.True(t, c.Setup(d, pts[:2], opts, false))
	assert.Equal(t, 2, c.Len())
}

func TestTransformToggleDropsMatrices(t *testing.T) {
	d, pts := targetPoints(2)
	d.AddAttribute(geo.Point, AttrPScale, geo.Float32, 1)
	var c Cache
	c.Setup(d, pts, Options{Transform: true}, false)
	require.True(t, c.HasMatrices())
	assert.True(t, c.Setup(d, pts, Options{Transform: false}, false))
	assert.False(t, c.HasMatrices())
}

func TestInstanceMatrixComposition(t *testing.T) {
	d, pts := targetPoints(1)
	orient := d.AddAttribute(geo.Point, AttrOrient, geo.Float32, 4)
	q := mathutil.AxisAngle(mathutil.Vec3{0, 0, 1}, math.Pi/2)
	orient.SetTuple(0, q[:])
	ps := d.AddAttribute(geo.Point, AttrPScale, geo.Float32, 1)
	ps.SetFloat(0, 0, 2)
	pivot := d.AddAttribute(geo.Point, AttrPivot, geo.Float32, 3)
	pivot.SetVec3(0, mathutil.Vec3{1, 0, 0})
	trans := d.AddAttribute(geo.Point, AttrTrans, geo.Float32, 3)
	trans.SetVec3(0, mathutil.Vec3{0, 0, 5})

	var c Cache
	c.Setup(d, pts, Options{Transform: true}, false)
	require.True(t, c.HasMatrices())
	m, tr := c.Matrices()[0], c.Translates()[0]

	// The pivot lands on P + trans.
	assertVec(t, mathutil.Vec3{0, 2, 5}, m.MulVec3(mathutil.Vec3{1, 0, 0}).Add(tr))
	// +X rotates to +Y and doubles.
	assertVec(t, mathutil.Vec3{0, 2, 0}, m.MulVec3(mathutil.Vec3{1, 0, 0}))
}

func TestTransformAttribOverridesOrientation(t *testing.T) {
	d, pts := targetPoints(1)
	n := d.AddAttribute(geo.Point, AttrN, geo.Float32, 3)
	n.SetVec3(0, mathutil.Vec3{1, 0, 0})
	tr := d.AddAttribute(geo.Point, AttrTransform, geo.Float64, 16)
	m4 := mathutil.FromMat3Translation(mathutil.Mat3Diag(1, 1, 3), mathutil.Vec3{0, 10, 0})
	tr.SetTuple(0, m4[:])

	var c Cache
	c.Setup(d, pts, Options{Transform: true}, false)
	assert.Equal(t, mathutil.Mat3Diag(1, 1, 3), c.Matrices()[0])
	assertVec(t, mathutil.Vec3{0, 12, 0}, c.Translates()[0])
}

func TestImplicitNormalNeedsPrimitives(t *testing.T) {
	d, pts := targetPoints(3)
	var c Cache
	c.Setup(d, pts, Options{Transform: true, ImplicitN: true}, false)
	assert.False(t, c.UsingImplicitN())
	assert.False(t, c.HasMatrices())

	d.AppendPrimitive(geo.PrimPoly, true, []int{0, 1, 2})
	d.SetPointPos(2, mathutil.Vec3{0, 3, 0})
	d.P().BumpDataID()
	assert.True(t, c.Setup(d, pts, Options{Transform: true, ImplicitN: true}, false))
	assert.True(t, c.UsingImplicitN())
	require.True(t, c.HasMatrices())
	// +Z maps onto the polygon normal.
	got := c.Matrices()[0].MulVec3(mathutil.Vec3{0, 0, 1})
	assert.InDelta(t, 1.0, math.Abs(got[2]), 1e-9)

	// Topology edits invalidate the implicit normals.
	assert.False(t, c.Setup(d, pts, Options{Transform: true, ImplicitN: true}, false))
	d.BumpTopology()
	assert.True(t, c.Setup(d, pts, Options{Transform: true, ImplicitN: true}, false))
}

func TestComputeDerivedArrays(t *testing.T) {
	d, pts := targetPoints(2)
	scale := d.AddAttribute(geo.Point, AttrScale, geo.Float32, 3)
	scale.SetVec3(0, mathutil.Vec3{-1, 1, 1})
	scale.SetVec3(1, mathutil.Vec3{2, 2, 2})

	var c Cache
	c.Setup(d, pts, Options{Transform: true}, false)
	c.Compute(NeedInverse64|NeedQuat64|NeedTranslate32, true)

	require.Len(t, c.Inverses(), 2)
	assert.Nil(t, c.Inverses32())
	// Negative determinant flips the inverse.
	assertVec(t, mathutil.Vec3{1, -1, -1}, c.Inverses()[0].MulVec3(mathutil.Vec3{1, 1, 1}))
	assertVec(t, mathutil.Vec3{0.5, 0.5, 0.5}, c.Inverses()[1].MulVec3(mathutil.Vec3{1, 1, 1}))

	q := c.Quats()[1]
	assert.InDelta(t, 1.0, q[3], 1e-9)
	assert.Equal(t, mathutil.Vec3F{1, 2, 0}, c.Translates32()[1])
}

func TestComputeWithoutMatricesDropsDerived(t *testing.T) {
	d, pts := targetPoints(2)
	var c Cache
	c.Setup(d, pts, Options{}, false)
	c.Compute(NeedMatrix32|NeedInverse32|NeedQuat32|NeedTranslate32, true)
	assert.Nil(t, c.Matrices32())
	assert.Nil(t, c.Inverses32())
	assert.Nil(t, c.Quats32())
	assert.Len(t, c.Translates32(), 2)
}

func TestClassify(t *testing.T) {
	mk := func(tuple int, ti geo.TypeInfo) *geo.Attribute {
		a := geo.NewDetachedAttribute("a", geo.Point, geo.Float32, tuple, 1)
		a.SetTypeInfo(ti)
		return a
	}
	assert.Equal(t, geo.TypePoint, Classify(mk(3, geo.TypePoint), false))
	assert.Equal(t, geo.TypeVoid, Classify(mk(3, geo.TypeVector), false))
	assert.Equal(t, geo.TypeNormal, Classify(mk(3, geo.TypeNormal), true))
	assert.Equal(t, geo.TypeHPoint, Classify(mk(4, geo.TypeHPoint), false))
	assert.Equal(t, geo.TypeVoid, Classify(mk(4, geo.TypeQuaternion), false))
	assert.Equal(t, geo.TypeVoid, Classify(mk(9, geo.TypeTransform), false))
	assert.Equal(t, geo.TypeTransform, Classify(mk(16, geo.TypeTransform), false))
	assert.Equal(t, geo.TypeVoid, Classify(mk(3, geo.TypeColor), true))

	frozen := mk(3, geo.TypePoint)
	frozen.SetNonTransforming(true)
	assert.Equal(t, geo.TypeVoid, Classify(frozen, true))
}
