package realize

import (
	"fmt"

	"github.com/google/uuid"

	"copytopoints/internal/geo"
	"copytopoints/internal/mathutil"
	"copytopoints/internal/parallel"
	"copytopoints/internal/piece"
	"copytopoints/internal/propagate"
	"copytopoints/internal/xform"
)

// Pivot is where a packed primitive's local origin sits.
type Pivot int8

const (
	PivotCentroid Pivot = iota
	PivotOrigin
)

func (p Pivot) String() string {
	if p == PivotOrigin {
		return "origin"
	}
	return "centroid"
}

func ParsePivot(s string) (Pivot, error) {
	switch s {
	case "centroid", "":
		return PivotCentroid, nil
	case "origin":
		return PivotOrigin, nil
	}
	return PivotCentroid, fmt.Errorf("realize: unknown pivot %q", s)
}

// State is what the previous invocation built.
type State struct {
	Valid      bool
	Packed     bool
	Count      int
	OutputID   uuid.UUID
	SourceID   uuid.UUID
	SourceMeta uint64
	Pivot      Pivot
	LOD        geo.LOD
}

// Reset forces the next build to start from scratch.
func (s *State) Reset() { *s = State{} }

// RecordFullCopy notes a Full-Copy build of count targets into out.
func (s *State) RecordFullCopy(out *geo.Document, count int) {
	s.Valid = true
	s.Packed = false
	s.Count = count
	s.OutputID = out.ID()
}

func (s *State) recordPacked(out, src *geo.Document, opts PackOptions, count int) {
	s.Valid = true
	s.Packed = true
	s.Count = count
	s.OutputID = out.ID()
	s.SourceID = src.ID()
	s.SourceMeta = src.MetaCount()
	s.Pivot = opts.Pivot
	s.LOD = opts.LOD
}

// PackOptions are the per-invocation packing parameters.
type PackOptions struct {
	Pivot Pivot
	LOD   geo.LOD
}

// PackTargets carries everything the packed strategies need about the
// targets: their transforms and the attribute requests applied to the
// packed points and primitives.
type PackTargets struct {
	Target            *geo.Document
	Points            []int
	Xform             *xform.Cache
	HadMatrices       bool
	TransformsChanged bool
	Attribs, Groups   propagate.TargetInfoMap
	State             *propagate.State
}

// PackResult reports what a packed build changed.
type PackResult struct {
	TopologyChanged bool
	SourceChanged   bool
	Stats           propagate.Stats
}

// Selection restricts the source to explicit lists. A nil Selection packs
// the whole source.
type Selection struct {
	Points, Prims []int
}

// PackAllSame makes one packed primitive per target, all referencing a
// single backing copy of the (selected) source.
func PackAllSame(out, src *geo.Document, sel *Selection, st *State, opts PackOptions, sourceTopologyChanged bool, t PackTargets) PackResult {
	n := len(t.Points)
	topo := !st.Valid || !st.Packed || n != st.Count || out.NumPoints() != n || out.ID() != st.OutputID
	srcChanged := !st.Valid || !st.Packed || src.ID() != st.SourceID || src.MetaCount() != st.SourceMeta || sourceTopologyChanged
	lodChanged := opts.LOD != st.LOD
	intrinsic := srcChanged || opts.Pivot != st.Pivot || lodChanged

	if topo {
		createPackedPrims(out, n)
	}

	var pivot mathutil.Vec3
	centroid := opts.Pivot == PivotCentroid
	if (intrinsic || topo) && n > 0 {
		implChanged := srcChanged || topo
		var impl *geo.PackedImpl
		if implChanged {
			var g *geo.Document
			if sel == nil {
				g = src.Clone()
			} else {
				g = src.Subset(sel.Points, sel.Prims)
			}
			impl = geo.NewPackedImpl(geo.PackedGeometry, g)
			impl.AddRef(n)
		} else {
			impl = out.PrimitiveData(0).Impl
		}
		// Bounds are cached now so concurrent readers never race to compute them.
		if b := impl.Bounds(); centroid && b.Valid {
			pivot = b.Center()
		}
		parallel.For(n, 2048, 1024, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				pd := out.PrimitiveData(i)
				if implChanged {
					setImpl(pd, impl)
				}
				pd.Pivot = pivot
				pd.LOD = opts.LOD
			}
		})
	} else if n > 0 && centroid {
		if b := out.PrimitiveData(0).Impl.Bounds(); b.Valid {
			pivot = b.Center()
		}
	}
	pivotsChanged := opts.Pivot != st.Pivot || (centroid && srcChanged)

	res := PackResult{TopologyChanged: topo, SourceChanged: srcChanged}
	if n > 0 {
		res.Stats = HandleTargetAttribsForPacked(out, topo, &pivot, t)
	}
	bumpPacked(out, res, lodChanged, pivotsChanged, t)
	st.recordPacked(out, src, opts, n)
	return res
}

// PackPieces makes one packed primitive per target, referencing backing
// geometry built once per piece. topo forces new primitives, as decided by
// the caller's piece invalidation; a changed count or output forces them too.
func PackPieces(out, src *geo.Document, part *piece.Partition, st *State, opts PackOptions, topo, sourceTopologyChanged bool, t PackTargets) PackResult {
	n := len(part.TargetToPiece)
	topo = topo || !st.Valid || !st.Packed || n != st.Count || out.NumPoints() != n || out.ID() != st.OutputID
	srcChanged := !st.Valid || !st.Packed || src.ID() != st.SourceID || src.MetaCount() != st.SourceMeta || sourceTopologyChanged
	lodChanged := opts.LOD != st.LOD
	intrinsic := srcChanged || opts.Pivot != st.Pivot || lodChanged
	centroid := opts.Pivot == PivotCentroid

	var impls []*geo.PackedImpl
	if topo || srcChanged {
		createPackedPrims(out, n)
		impls = make([]*geo.PackedImpl, len(part.Pieces))
		parallel.For(len(part.Pieces), 1, 1, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				pc := &part.Pieces[i]
				impl := geo.NewPackedImpl(geo.PackedGeometry, src.Subset(pc.Offsets[geo.Point], pc.Offsets[geo.Primitive]))
				impl.Bounds()
				impl.AddRef(pc.RefCount)
				impls[i] = impl
			}
		})
	}

	if topo || intrinsic {
		parallel.For(n, 256, 256, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				pd := out.PrimitiveData(i)
				if impls != nil {
					setImpl(pd, impls[part.TargetToPiece[i]])
				}
				pd.Pivot = mathutil.Vec3{}
				if b := pd.Impl.Bounds(); centroid && b.Valid {
					pd.Pivot = b.Center()
				}
				pd.LOD = opts.LOD
			}
		})
	}
	pivotsChanged := opts.Pivot != st.Pivot || (centroid && srcChanged)

	// Centroid pivots differ per piece, so each primitive supplies its own.
	var pivot *mathutil.Vec3
	if !centroid {
		pivot = &mathutil.Vec3{}
	}
	res := PackResult{TopologyChanged: topo || srcChanged, SourceChanged: srcChanged}
	res.Stats = HandleTargetAttribsForPacked(out, res.TopologyChanged, pivot, t)
	bumpPacked(out, res, lodChanged, pivotsChanged, t)
	st.recordPacked(out, src, opts, n)
	return res
}

// setImpl points pd at impl. The reference pd now holds must already have
// been added in bulk; a replaced impl loses pd's reference.
func setImpl(pd *geo.PrimData, impl *geo.PackedImpl) {
	if pd.Impl == impl {
		return
	}
	if pd.Impl != nil {
		pd.Impl.Release()
	}
	pd.Impl = impl
}

// createPackedPrims clears out and wires n points to n packed primitives 1:1.
func createPackedPrims(out *geo.Document, n int) {
	out.ClearAndDestroy()
	if n <= 0 {
		return
	}
	start := out.AppendPointBlock(n)
	out.BuildPrimitives(geo.BuildSpec{
		Types:         []geo.PrimTypeRun{{Type: geo.PrimPacked, Count: 1}},
		StartPoint:    start,
		PointsPerCopy: 1,
		VertexCounts:  []int{1},
		Copies:        n,
	})
}

func bumpPacked(out *geo.Document, res PackResult, lodChanged, pivotsChanged bool, t PackTargets) {
	if res.TopologyChanged {
		out.BumpDataIDsForAddOrRemove(true, true, true)
	}
	if res.SourceChanged && out.NumPrimitives() > 0 {
		out.BumpPrimitiveList()
	}
	if t.TransformsChanged || pivotsChanged {
		out.P().BumpDataID()
		if (t.Xform.HasMatrices() || t.HadMatrices) && !res.SourceChanged {
			out.BumpPrimitiveList()
		}
	}
	if lodChanged {
		out.BumpPrimitiveList()
	}
}

// UpdatePackedTransforms sets each packed primitive's local transform from
// its target and places its point at the transformed pivot. A nil pivot
// uses each primitive's own.
func UpdatePackedTransforms(out *geo.Document, xc *xform.Cache, hadMatrices bool, pivot *mathutil.Vec3) {
	n := out.NumPrimitives()
	geo.Assert(n == out.NumPoints(), "%d packed primitives but %d points", n, out.NumPoints())
	if n == 0 {
		return
	}
	mats, trans := xc.Matrices(), xc.Translates()
	p := out.P()
	parallel.For(n, 2048, 1024, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			pd := out.PrimitiveData(i)
			switch {
			case mats != nil:
				pd.Local = mats[i]
			case hadMatrices:
				pd.Local = mathutil.Mat3Identity()
			}
			pv := pd.Pivot
			if pivot != nil {
				pv = *pivot
			}
			if mats != nil {
				pv = mats[i].MulVec3(pv)
			}
			if trans != nil {
				pv = pv.Add(trans[i])
			}
			p.SetVec3(i, pv)
		}
	})
}

// HandleTargetAttribsForPacked updates the packed transforms and applies
// the target requests to the packed points and primitives. Packed output
// never holds source attributes.
func HandleTargetAttribsForPacked(out *geo.Document, topo bool, pivot *mathutil.Vec3, t PackTargets) propagate.Stats {
	UpdatePackedTransforms(out, t.Xform, t.HadMatrices, pivot)

	t.State.ResetSource()
	propagate.RemoveUnnecessary(out, nil, t.Target, t.State, t.Attribs, t.Groups)
	counts, _ := propagate.AddFromSourceOrTarget(out, nil, t.Target, t.State, t.Attribs, t.Groups, false)
	n := len(t.Points)
	return propagate.CopyFromTarget(propagate.TargetParams{
		Out:             out,
		Target:          t.Target,
		Targets:         t.Points,
		Layout:          piece.UniformLayout([geo.NumElementOwners][]int{{0}, {0}, {0}}, n),
		Counts:          counts,
		TopologyChanged: topo,
		Attribs:         t.Attribs,
		Groups:          t.Groups,
		State:           t.State,
	})
}
