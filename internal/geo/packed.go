package geo

import (
	"sync"
	"sync/atomic"

	"copytopoints/internal/mathutil"
)

// PackedGeometry is the kind name of packed primitives backed by a document.
const PackedGeometry = "PackedGeometry"

// PackedImpl is shared backing geometry referenced by packed primitives.
// Every referencing primitive holds exactly one reference; the bulk
// AddRef at build time must equal the number of primitives created.
type PackedImpl struct {
	kind string
	geo  *Document
	refs atomic.Int64

	boundsOnce sync.Once
	bounds     Box
}

// NewPackedImpl wraps g; the returned impl starts with zero references.
func NewPackedImpl(kind string, g *Document) *PackedImpl {
	return &PackedImpl{kind: kind, geo: g}
}

func (p *PackedImpl) Kind() string        { return p.kind }
func (p *PackedImpl) Geometry() *Document { return p.geo }
func (p *PackedImpl) Refs() int64         { return p.refs.Load() }

func (p *PackedImpl) AddRef(n int) {
	p.refs.Add(int64(n))
}

// Release drops one reference. It reports whether that was the last one.
func (p *PackedImpl) Release() bool {
	n := p.refs.Add(-1)
	Assert(n >= 0, "packed impl released more times than referenced")
	return n == 0
}

// Bounds is computed once and cached.
func (p *PackedImpl) Bounds() Box {
	p.boundsOnce.Do(func() {
		if p.geo != nil {
			p.bounds = p.geo.Bounds()
		}
	})
	return p.bounds
}

// PrimData is the per-primitive payload of sphere and packed primitives.
type PrimData struct {
	Local mathutil.Mat3
	Impl  *PackedImpl
	Pivot mathutil.Vec3
	LOD   LOD
}

func newPrimData() *PrimData {
	return &PrimData{Local: mathutil.Mat3Identity()}
}

// CopyFrom copies the payload; a referenced impl gains one reference.
func (d *PrimData) CopyFrom(o *PrimData) {
	if d.Impl != nil {
		d.Impl.Release()
	}
	*d = *o
	if d.Impl != nil {
		d.Impl.AddRef(1)
	}
}

// Box is an axis-aligned bounding box; the zero Box is empty.
type Box struct {
	Min, Max mathutil.Vec3
	Valid    bool
}

func (b *Box) Enlarge(p mathutil.Vec3) {
	if !b.Valid {
		b.Min, b.Max, b.Valid = p, p, true
		return
	}
	for i := 0; i < 3; i++ {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
}

func (b Box) Center() mathutil.Vec3 {
	if !b.Valid {
		return mathutil.Vec3{}
	}
	return b.Min.Add(b.Max).Scale(0.5)
}

func (b Box) Size() mathutil.Vec3 {
	if !b.Valid {
		return mathutil.Vec3{}
	}
	return b.Max.Sub(b.Min)
}
