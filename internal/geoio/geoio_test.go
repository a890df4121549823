package geoio

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copytopoints/internal/geo"
	"copytopoints/internal/mathutil"
)

const triangle = `
version: 1
points: 3
primitives:
  - {type: poly, closed: true, points: [0, 1, 2]}
attributes:
  - {class: point, name: P, storage: float32, tuple: 3, type: point, floats: [0, 0, 0, 1, 0, 0, 0, 1, 0]}
  - {class: point, name: Cd, storage: float32, tuple: 3, type: color, floats: [1, 0, 0, 0, 1, 0, 0, 0, 1]}
  - {class: primitive, name: name, storage: string, strings: [tri]}
  - {class: detail, name: frame, storage: int32, ints: [24]}
groups:
  - {class: point, name: tip, members: [2]}
edge_groups:
  - {name: base, edges: [[1, 0]]}
`

func TestReadTriangle(t *testing.T) {
	d, err := Read(strings.NewReader(triangle))
	require.NoError(t, err)
	assert.Equal(t, 3, d.NumPoints())
	assert.Equal(t, 3, d.NumVertices())
	require.Equal(t, 1, d.NumPrimitives())
	assert.True(t, d.IsClosed(0))
	assert.Equal(t, []int{0, 1, 2}, d.PointsOfPrimitive(0))
	assert.Equal(t, mathutil.Vec3{0, 1, 0}, d.P().Vec3(2))

	cd := d.FindAttribute(geo.Point, "Cd")
	require.NotNil(t, cd)
	assert.Equal(t, geo.TypeColor, cd.TypeInfo())
	assert.Equal(t, mathutil.Vec3{0, 0, 1}, cd.Vec3(2))
	assert.Equal(t, "tri", d.FindAttribute(geo.Primitive, "name").Str(0))
	assert.Equal(t, int64(24), d.FindAttribute(geo.Detail, "frame").Int(0, 0))
	assert.Equal(t, []int{2}, d.FindGroup(geo.Point, "tip").Offsets())
	assert.True(t, d.FindEdgeGroup("base").Contains(geo.Edge{0, 1}))
}

func TestRoundTripKeepsPackedSharing(t *testing.T) {
	inner := geo.New()
	inner.AppendPointBlock(2)
	inner.SetPointPos(1, mathutil.Vec3{2, 0, 0})
	impl := geo.NewPackedImpl(geo.PackedGeometry, inner)

	d := geo.New()
	d.AppendPointBlock(2)
	for i := 0; i < 2; i++ {
		prim := d.AppendPrimitive(geo.PrimPacked, false, []int{i})
		pd := d.PrimitiveData(prim)
		pd.Impl = impl
		pd.Pivot = mathutil.Vec3{1, 0, 0}
		pd.LOD = geo.LODBox
		pd.Local = mathutil.Mat3Diag(2, 2, 2)
	}
	impl.AddRef(2)
	id := d.AddAttribute(geo.Point, "id", geo.Int64, 1)
	id.SetInt(1, 0, math.MinInt64)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, d))
	back, err := Read(&buf)
	require.NoError(t, err)

	require.Equal(t, 2, back.NumPrimitives())
	a, b := back.PrimitiveData(0), back.PrimitiveData(1)
	require.NotNil(t, a.Impl)
	assert.Same(t, a.Impl, b.Impl)
	assert.Equal(t, int64(2), a.Impl.Refs())
	assert.Equal(t, mathutil.Vec3{1, 0, 0}, a.Pivot)
	assert.Equal(t, geo.LODBox, b.LOD)
	assert.Equal(t, mathutil.Mat3Diag(2, 2, 2), a.Local)
	assert.Equal(t, mathutil.Vec3{2, 0, 0}, a.Impl.Geometry().P().Vec3(1))
	assert.Equal(t, int64(math.MinInt64), back.FindAttribute(geo.Point, "id").Int(1, 0))
}

func TestRoundTripIsStable(t *testing.T) {
	d, err := Read(strings.NewReader(triangle))
	require.NoError(t, err)
	var first, second bytes.Buffer
	require.NoError(t, Write(&first, d))
	back, err := Read(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	require.NoError(t, Write(&second, back))
	assert.Equal(t, first.String(), second.String())
}

func TestFileRoundTrip(t *testing.T) {
	d, err := Read(strings.NewReader(triangle))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tri.yaml")
	require.NoError(t, WriteFile(path, d))
	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, d.NumPoints(), back.NumPoints())
	assert.Equal(t, "tri", back.FindAttribute(geo.Primitive, "name").Str(0))
}

func TestMalformed(t *testing.T) {
	for name, doc := range map[string]string{
		"point range":  "points: 2\nprimitives:\n  - {type: poly, points: [0, 5]}\n",
		"value count":  "points: 2\nattributes:\n  - {class: point, name: w, storage: float32, floats: [1]}\n",
		"string count": "points: 1\nattributes:\n  - {class: point, name: s, storage: string, strings: [a, b]}\n",
		"group member": "points: 1\ngroups:\n  - {class: point, name: g, members: [3]}\n",
		"impl ref":     "points: 1\nprimitives:\n  - {type: packed, points: [0], impl: 2}\n",
		"version":      "version: 9\npoints: 0\n",
		"edge":         "points: 1\nedge_groups:\n  - {name: e, edges: [[0, 4]]}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Read(strings.NewReader(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFormat), err.Error())
		})
	}
}

func TestUnknownNamesFail(t *testing.T) {
	_, err := Read(strings.NewReader("points: 1\nprimitives:\n  - {type: nurbs, points: [0]}\n"))
	assert.Error(t, err)
	_, err = Read(strings.NewReader("points: 1\nattributes:\n  - {class: point, name: w, storage: complex, floats: [1]}\n"))
	assert.Error(t, err)
}
