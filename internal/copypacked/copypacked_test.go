package copypacked

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copytopoints/internal/geo"
	"copytopoints/internal/mathutil"
)

// packedSource builds one packed primitive per impl, each with its own point.
func packedSource(impls ...*geo.PackedImpl) *geo.Document {
	d := geo.New()
	d.AppendPointBlock(len(impls))
	for i, impl := range impls {
		prim := d.AppendPrimitive(geo.PrimPacked, false, []int{i})
		d.PrimitiveData(prim).Impl = impl
		d.PrimitiveData(prim).Local = mathutil.Mat3Diag(float64(i+1), float64(i+1), float64(i+1))
		impl.AddRef(1)
	}
	return d
}

func newImpl() *geo.PackedImpl {
	return geo.NewPackedImpl(geo.PackedGeometry, geo.New())
}

func targets(n int) *geo.Document {
	d := geo.New()
	d.AppendPointBlock(n)
	for i := 0; i < n; i++ {
		d.SetPointPos(i, mathutil.Vec3{float64(10 * i), 0, 0})
	}
	return d
}

func TestMatchByID(t *testing.T) {
	a, b := newImpl(), newImpl()
	src := packedSource(a, b)
	srcID := src.AddAttribute(geo.Primitive, AttrID, geo.Int32, 1)
	srcID.SetInt(0, 0, 7)
	srcID.SetInt(1, 0, 3)
	src.AddAttribute(geo.Primitive, "tag", geo.String, 1).SetStr(1, "second")

	pts := targets(3)
	id := pts.AddAttribute(geo.Point, AttrID, geo.Int64, 1)
	id.SetInt(0, 0, 3)
	id.SetInt(1, 0, 7)
	id.SetInt(2, 0, 3)

	out := geo.New()
	res, err := Cook(out, src, pts, Params{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Matched)
	assert.Zero(t, res.Unmatched)
	require.Equal(t, 3, out.NumPrimitives())
	assert.Same(t, b, out.PrimitiveData(0).Impl)
	assert.Same(t, a, out.PrimitiveData(1).Impl)
	assert.Same(t, b, out.PrimitiveData(2).Impl)
	assert.Equal(t, int64(2), a.Refs())
	assert.Equal(t, int64(3), b.Refs())
	assert.Equal(t, mathutil.Mat3Diag(2, 2, 2), out.PrimitiveData(0).Local)
	assert.Equal(t, "second", out.FindAttribute(geo.Primitive, "tag").Str(2))
	assert.Equal(t, mathutil.Vec3{20, 0, 0}, out.P().Vec3(out.PointsOfPrimitive(2)[0]))
}

func TestFirstMatchWinsAndSentinelIsSkipped(t *testing.T) {
	a, b, c := newImpl(), newImpl(), newImpl()
	src := packedSource(a, b, c)
	srcID := src.AddAttribute(geo.Point, AttrID, geo.Int64, 1)
	srcID.SetInt(0, 0, 1)
	srcID.SetInt(1, 0, 1)
	srcID.SetInt(2, 0, math.MinInt64)

	pts := targets(2)
	id := pts.AddAttribute(geo.Point, AttrID, geo.Int64, 1)
	id.SetInt(0, 0, 1)
	id.SetInt(1, 0, math.MinInt64)

	out := geo.New()
	res, err := Cook(out, src, pts, Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Unmatched)
	require.Equal(t, 1, out.NumPrimitives())
	assert.Same(t, a, out.PrimitiveData(0).Impl)
	assert.Equal(t, 2, out.NumPoints())
	assert.Equal(t, int64(1), b.Refs())
}

func TestIDFallsBackToPrimitiveNumber(t *testing.T) {
	a, b := newImpl(), newImpl()
	src := packedSource(a, b)
	pts := targets(3)
	id := pts.AddAttribute(geo.Point, AttrID, geo.Int32, 1)
	id.SetInt(0, 0, 1)
	id.SetInt(1, 0, 5)
	id.SetInt(2, 0, -1)

	out := geo.New()
	res, err := Cook(out, src, pts, Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 2, res.Unmatched)
	assert.Same(t, b, out.PrimitiveData(0).Impl)
	assert.Equal(t, []int{0}, out.PointsOfPrimitive(0))
}

func TestMatchByName(t *testing.T) {
	a, b := newImpl(), newImpl()
	src := packedSource(a, b)
	name := src.AddAttribute(geo.Vertex, AttrName, geo.String, 1)
	name.SetStr(0, "rock")
	name.SetStr(1, "tree")
	src.AddAttribute(geo.Vertex, "uv", geo.Float32, 3).SetVec3(1, mathutil.Vec3{0.5, 0.25, 0})

	pts := targets(2)
	ptName := pts.AddAttribute(geo.Point, AttrName, geo.String, 1)
	ptName.SetStr(0, "tree")

	out := geo.New()
	res, err := Cook(out, src, pts, Params{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Unmatched)
	assert.Same(t, b, out.PrimitiveData(0).Impl)
	assert.Equal(t, mathutil.Vec3{0.5, 0.25, 0}, out.FindAttribute(geo.Vertex, "uv").Vec3(0))
}

func TestPointGroup(t *testing.T) {
	src := packedSource(newImpl())
	pts := targets(4)
	pts.AddAttribute(geo.Point, AttrID, geo.Int32, 1)
	g := pts.AddGroup(geo.Point, "keep")
	g.Set(1, true)
	g.Set(3, true)

	out := geo.New()
	res, err := Cook(out, src, pts, Params{PointGroup: "keep"})
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 2, out.NumPoints())
	assert.Equal(t, 2, out.NumPrimitives())
	assert.Equal(t, mathutil.Vec3{30, 0, 0}, out.P().Vec3(1))

	res, err = Cook(out, src, pts, Params{PointGroup: "missing"})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, 4, out.NumPoints())
}

func TestErrors(t *testing.T) {
	poly := geo.New()
	poly.AppendPointBlock(3)
	poly.AppendPrimitive(geo.PrimPoly, true, []int{0, 1, 2})

	mixed := packedSource(newImpl(), geo.NewPackedImpl("PackedDisk", nil))
	nomatch := packedSource(newImpl())

	for _, tc := range []struct {
		name string
		src  *geo.Document
		want error
	}{
		{"not packed", poly, ErrNotPacked},
		{"mixed", mixed, ErrMixedTypes},
		{"no match attribute", nomatch, ErrNoMatchAttrib},
	} {
		t.Run(tc.name, func(t *testing.T) {
			out := geo.New()
			out.AddAttribute(geo.Point, "junk", geo.Float32, 1)
			_, err := Cook(out, tc.src, targets(2), Params{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))
			assert.Zero(t, out.NumPoints())
			assert.Nil(t, out.FindAttribute(geo.Point, "junk"))
		})
	}
}

func TestEmptySourceKeepsPoints(t *testing.T) {
	out := geo.New()
	res, err := Cook(out, geo.New(), targets(3), Params{})
	require.NoError(t, err)
	assert.Zero(t, res.Matched)
	assert.Equal(t, 3, out.NumPoints())
	assert.Zero(t, out.NumPrimitives())
}
