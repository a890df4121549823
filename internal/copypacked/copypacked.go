// Package copypacked places existing packed primitives onto points. Each
// output point receives a copy of the packed primitive whose id or name
// matches the point's.
package copypacked

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"copytopoints/internal/geo"
	"copytopoints/internal/logging"
	"copytopoints/internal/metrics"
	"copytopoints/internal/parallel"
)

// Attribute names used for matching.
const (
	AttrID   = "id"
	AttrName = "name"
)

var (
	ErrNotPacked     = errors.New("copypacked: source primitives must be packed primitives")
	ErrMixedTypes    = errors.New("copypacked: source packed primitives must all be the same kind")
	ErrNoMatchAttrib = errors.New("copypacked: points need an id attribute, or points and primitives need a name attribute")
)

const copyParallelThreshold = 1024

type Params struct {
	// PointGroup restricts the points receiving copies. Empty means all.
	PointGroup string
}

type Result struct {
	Warnings []string
	// Matched is the number of points that received a primitive.
	Matched int
	// Unmatched is the number of points left without one.
	Unmatched int
}

// Cook rebuilds out as the selected points of points, each carrying the
// packed primitive of packed that it matches. On error out is empty.
func Cook(out, packed, points *geo.Document, p Params) (res Result, err error) {
	start := time.Now()
	defer func() { metrics.Default.RecordCook(metrics.StrategyCopyPacked, err, time.Since(start)) }()

	out.BeginEdit()
	defer out.EndEdit()

	res, err = cook(out, packed, points, p)
	log := logging.L()
	for _, w := range res.Warnings {
		log.Warn(w, "strategy", metrics.StrategyCopyPacked)
	}
	if err != nil {
		out.Clear()
		log.Error("cook failed", "strategy", metrics.StrategyCopyPacked, "err", err)
		return Result{Warnings: res.Warnings}, err
	}
	log.Debug("cooked",
		"strategy", metrics.StrategyCopyPacked,
		"matched", res.Matched,
		"unmatched", res.Unmatched,
		"elapsed", time.Since(start))
	return res, nil
}

func cook(out, packed, points *geo.Document, p Params) (Result, error) {
	var res Result
	var sel []int
	if p.PointGroup != "" {
		if g := points.FindGroup(geo.Point, p.PointGroup); g != nil {
			sel = g.Offsets()
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf("point group %q not found", p.PointGroup))
		}
	}
	out.ReplaceWithPoints(points, sel)

	nsrc := packed.NumPrimitives()
	if nsrc == 0 {
		return res, nil
	}
	if err := checkKinds(packed); err != nil {
		return res, err
	}

	lookup, err := matcher(out, packed)
	if err != nil {
		return res, err
	}

	n := out.NumPoints()
	if n == 0 {
		return res, nil
	}
	out.BuildPrimitives(geo.BuildSpec{
		Types:         []geo.PrimTypeRun{{Type: geo.PrimPacked, Count: 1}},
		PointsPerCopy: 1,
		VertexCounts:  []int{1},
		Copies:        n,
	})
	out.BumpDataIDsForAddOrRemove(false, true, true)

	primAttribs := cloneAll(out, packed, geo.Primitive)
	vtxAttribs := cloneAll(out, packed, geo.Vertex)

	bad := unmatched{n: n}
	parallel.For(n, copyParallelThreshold, copyParallelThreshold, func(lo, hi int) {
		for prim := lo; prim < hi; prim++ {
			// One point, vertex and primitive per copy, all at the same offset.
			src := lookup(prim)
			if src < 0 {
				bad.add(prim)
				continue
			}
			out.PrimitiveData(prim).CopyFrom(packed.PrimitiveData(src))
			for _, a := range primAttribs {
				a.dst.CopyElement(prim, a.src, src)
			}
			sv := packed.VertexStart(src)
			for _, a := range vtxAttribs {
				a.dst.CopyElement(prim, a.src, sv)
			}
		}
	})

	if del := bad.flags(); del != nil {
		res.Unmatched = bad.count(del)
		out.DeletePrimitives(del, false)
	}
	res.Matched = out.NumPrimitives()
	return res, nil
}

// checkKinds requires every primitive to be packed with one backing kind.
func checkKinds(packed *geo.Document) error {
	if packed.PrimitiveType(0) != geo.PrimPacked {
		return ErrNotPacked
	}
	kind := implKind(packed, 0)
	for prim := 1; prim < packed.NumPrimitives(); prim++ {
		if packed.PrimitiveType(prim) != geo.PrimPacked || implKind(packed, prim) != kind {
			return fmt.Errorf("%w: primitive %d", ErrMixedTypes, prim)
		}
	}
	return nil
}

func implKind(d *geo.Document, prim int) string {
	if pd := d.PrimitiveData(prim); pd != nil && pd.Impl != nil {
		return pd.Impl.Kind()
	}
	return ""
}

type attribPair struct {
	dst, src *geo.Attribute
}

func cloneAll(out, src *geo.Document, o geo.Owner) []attribPair {
	var pairs []attribPair
	for _, a := range src.Attributes(o) {
		pairs = append(pairs, attribPair{dst: out.CloneAttribute(o, a), src: a})
	}
	return pairs
}

// unmatched collects the output primitives to delete. The flag slice is
// only allocated once some primitive fails to match.
type unmatched struct {
	n  int
	mu sync.Mutex
	p  atomic.Pointer[[]bool]
}

func (u *unmatched) add(prim int) {
	flags := u.p.Load()
	if flags == nil {
		u.mu.Lock()
		if flags = u.p.Load(); flags == nil {
			s := make([]bool, u.n)
			flags = &s
			u.p.Store(flags)
		}
		u.mu.Unlock()
	}
	(*flags)[prim] = true
}

func (u *unmatched) flags() []bool {
	if f := u.p.Load(); f != nil {
		return *f
	}
	return nil
}

func (u *unmatched) count(flags []bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

// matcher returns the source primitive matching each output point, or -1.
// Points match by integer id first, then by name.
func matcher(out, packed *geo.Document) (func(pt int) int, error) {
	if ptID := out.FindAttribute(geo.Point, AttrID); ptID != nil && ptID.Storage().IsInt() {
		srcID, owner := findOnPrimitive(packed, AttrID, func(a *geo.Attribute) bool { return a.Storage().IsInt() })
		if srcID == nil {
			// Without a source id, the point id is a primitive number.
			nprims := int64(packed.NumPrimitives())
			return func(pt int) int {
				i := ptID.Int(pt, 0)
				if i < 0 || i >= nprims {
					return -1
				}
				return int(i)
			}, nil
		}
		byID := make(map[int64]int, packed.NumPrimitives())
		for prim := 0; prim < packed.NumPrimitives(); prim++ {
			id := srcID.Int(elementOf(packed, owner, prim), 0)
			if id == math.MinInt64 {
				continue
			}
			if _, ok := byID[id]; !ok {
				byID[id] = prim
			}
		}
		return func(pt int) int {
			id := ptID.Int(pt, 0)
			if id == math.MinInt64 {
				return -1
			}
			if prim, ok := byID[id]; ok {
				return prim
			}
			return -1
		}, nil
	}

	ptName := out.FindAttribute(geo.Point, AttrName)
	srcName, owner := findOnPrimitive(packed, AttrName, func(a *geo.Attribute) bool { return !a.IsNumeric() })
	if ptName == nil || ptName.IsNumeric() || srcName == nil {
		return nil, ErrNoMatchAttrib
	}
	byName := make(map[string]int, packed.NumPrimitives())
	for prim := 0; prim < packed.NumPrimitives(); prim++ {
		name := srcName.Str(elementOf(packed, owner, prim))
		if name == "" {
			continue
		}
		if _, ok := byName[name]; !ok {
			byName[name] = prim
		}
	}
	return func(pt int) int {
		name := ptName.Str(pt)
		if name == "" {
			return -1
		}
		if prim, ok := byName[name]; ok {
			return prim
		}
		return -1
	}, nil
}

// findOnPrimitive looks for a usable attribute on primitives, then
// vertices, then points.
func findOnPrimitive(d *geo.Document, name string, ok func(*geo.Attribute) bool) (*geo.Attribute, geo.Owner) {
	for _, o := range []geo.Owner{geo.Primitive, geo.Vertex, geo.Point} {
		if a := d.FindAttribute(o, name); a != nil && ok(a) {
			return a, o
		}
	}
	return nil, geo.InvalidOwner
}

// elementOf maps a packed primitive to the element holding its attribute
// value. Packed primitives have exactly one vertex.
func elementOf(d *geo.Document, o geo.Owner, prim int) int {
	switch o {
	case geo.Vertex:
		return d.VertexStart(prim)
	case geo.Point:
		return d.PointOfVertex(d.VertexStart(prim))
	}
	return prim
}
