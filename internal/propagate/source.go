package propagate

import (
	"copytopoints/internal/geo"
	"copytopoints/internal/mathutil"
	"copytopoints/internal/parallel"
	"copytopoints/internal/piece"
	"copytopoints/internal/xform"
)

// SourceParams configures CopyFromSource.
type SourceParams struct {
	Out    *geo.Document
	Source *geo.Document
	Target *geo.Document
	Layout *piece.Layout
	Counts Counts
	// Xform holds one transform per target copy. Nil copies values
	// untouched.
	Xform *xform.Cache
	// HadMatrices is whether the previous invocation's transforms had a
	// linear part.
	HadMatrices       bool
	TopologyChanged   bool
	TransformsChanged bool
	Attribs, Groups   TargetInfoMap
	State             *State
}

// Stats counts the attributes and groups a pass wrote and skipped.
type Stats struct {
	Copied  int
	Skipped int
}

func (s *Stats) Add(o Stats) {
	s.Copied += o.Copied
	s.Skipped += o.Skipped
}

// CopyFromSource fills every output attribute and group that exists in the
// source, transforming values by type. Entries whose source token, the
// transforms and the target request are all unchanged since the previous
// invocation keep their values, unless the topology was rebuilt.
func CopyFromSource(p SourceParams) Stats {
	var stats Stats
	var tasks parallel.TaskList
	st := p.State
	out, src, layout := p.Out, p.Source, p.Layout
	hasMatrices := p.Xform != nil && p.Xform.HasMatrices()
	topo := p.TopologyChanged

	for _, o := range geo.ElementOwners {
		n := layout.Total(o)
		if n == 0 {
			continue
		}
		for _, dest := range out.Attributes(o) {
			name := dest.Name()
			srcA := src.FindAttribute(o, name)
			if srcA == nil {
				continue
			}
			info, requested := p.Attribs[name]
			if requested && info.Method == Copy && (info.CopyTo == o || info.CopyTo == o.Conflict()) {
				continue
			}
			targetChanged := targetRequestChanged(o, info, requested, st.TargetAttribInfo, name, func() geo.Token {
				if a := p.Target.FindAttribute(geo.Point, name); a != nil {
					return a.DataID()
				}
				return geo.NoToken
			})

			kind := geo.TypeVoid
			if p.Xform != nil {
				kind = xform.Classify(srcA, hasMatrices)
			}
			id, have := st.SourceAttribIDs[o][name]
			unchanged := !topo && !targetChanged && have && id == srcA.DataID()
			if kind != geo.TypeVoid {
				unchanged = unchanged && !p.TransformsChanged
			} else if p.HadMatrices && !hasMatrices && xform.Classify(srcA, true) != geo.TypeVoid {
				// Values still hold the old linear transform.
				unchanged = false
			}
			if unchanged {
				stats.Skipped++
				continue
			}
			st.SourceAttribIDs[o][name] = srcA.DataID()
			dest.BumpDataID()
			delete(st.TargetAttribInfo, name)
			stats.Copied++

			if kind == geo.TypeVoid {
				tasks.AddRange(n, blockGrain, func(lo, hi int) {
					c := layout.CursorAt(o, lo)
					for i := lo; i < hi; i++ {
						dest.CopyElement(i, srcA, c.Source())
						c.Next()
					}
				})
				continue
			}
			k := newKernel(kind, p.Xform)
			tasks.AddRange(n, blockGrain, func(lo, hi int) {
				c := layout.CursorAt(o, lo)
				for i := lo; i < hi; i++ {
					k.copyElement(dest, i, srcA, c.Source(), c.Target())
					c.Next()
				}
			})
		}

		for _, dest := range out.Groups(o) {
			name := dest.Name()
			sg := src.FindGroup(o, name)
			if sg == nil {
				continue
			}
			info, requested := p.Groups[name]
			if requested && info.Method == Copy && info.CopyTo == o {
				continue
			}
			targetChanged := targetRequestChanged(o, info, requested, st.TargetGroupInfo, name, func() geo.Token {
				if g := p.Target.FindGroup(geo.Point, name); g != nil {
					return g.DataID()
				}
				return geo.NoToken
			})
			if id, have := st.SourceGroupIDs[o][name]; !topo && !targetChanged && have && id == sg.DataID() {
				stats.Skipped++
				continue
			}
			st.SourceGroupIDs[o][name] = sg.DataID()
			dest.BumpDataID()
			delete(st.TargetGroupInfo, name)
			stats.Copied++
			tasks.AddRange(n, blockGrain, func(lo, hi int) {
				c := layout.CursorAt(o, lo)
				for i := lo; i < hi; i++ {
					dest.Set(i, sg.Contains(c.Source()))
					c.Next()
				}
			})
		}
	}

	if !layout.Keyed() {
		stats.Add(copyEdgeGroups(p))
	}

	if p.Xform != nil && (topo || p.TransformsChanged) && out.HasTransformingPrimitives() {
		out.BumpPrimitiveList()
		mats := p.Xform.Matrices()
		tasks.AddRange(layout.Total(geo.Primitive), blockGrain, func(lo, hi int) {
			c := layout.CursorAt(geo.Primitive, lo)
			for i := lo; i < hi; i++ {
				if out.PrimitiveType(i).Transforms() {
					pd := out.PrimitiveData(i)
					if !topo {
						pd.CopyFrom(src.PrimitiveData(c.Source()))
					}
					if mats != nil {
						pd.Local = mathutil.Mat3Mul(mats[c.Target()], pd.Local)
					}
				}
				c.Next()
			}
		})
	}

	tasks.Run(work(out, p.Counts.Source) >= parallelWork)
	return stats
}

// targetRequestChanged reports whether the values copied for name were
// combined with a target request last time that no longer applies the same
// way, so the source values must be written again.
func targetRequestChanged(o geo.Owner, info TargetInfo, requested bool, prev TargetInfoMap, name string, targetID func() geo.Token) bool {
	cur := None
	if requested && info.CopyTo == o {
		cur = info.Method
	}
	last := None
	old, had := prev[name]
	if had && old.CopyTo == o {
		last = old.Method
	}
	if cur != last {
		return true
	}
	if last == None {
		return false
	}
	id := targetID()
	return !id.IsValid() || id != old.DataID
}

// copyEdgeGroups copies each source edge group once per target, shifting
// the points by the copy's point block. Only pairs joined by a copied
// primitive are kept.
func copyEdgeGroups(p SourceParams) Stats {
	var stats Stats
	src, out := p.Source, p.Out
	groups := src.EdgeGroups()
	if len(groups) == 0 {
		return stats
	}
	points := p.Layout.List(geo.Point, 0)
	npts := len(points)
	var rel []int
	if npts != src.NumPoints() {
		rel = make([]int, src.NumPoints())
		for i := range rel {
			rel[i] = -1
		}
		for i, pt := range points {
			rel[pt] = i
		}
	}
	ntargets := p.Layout.Targets()

	var edges []geo.Edge
	var connected map[geo.Edge]struct{}
	for _, sg := range groups {
		dest := out.FindEdgeGroup(sg.Name())
		if dest == nil {
			continue
		}
		if id, ok := p.State.SourceEdgeGroupIDs[sg.Name()]; ok && !p.TopologyChanged && id == sg.DataID() {
			stats.Skipped++
			continue
		}
		p.State.SourceEdgeGroupIDs[sg.Name()] = sg.DataID()
		dest.Clear()
		dest.BumpDataID()
		stats.Copied++

		if connected == nil {
			edges, connected = primitiveEdges(src, p.Layout.List(geo.Primitive, 0))
		}
		var keep []geo.Edge
		if sg.Entries() <= len(edges) {
			for _, e := range sg.Edges() {
				if _, ok := connected[geo.MakeEdge(e[0], e[1])]; ok {
					keep = append(keep, e)
				}
			}
		} else {
			for _, e := range edges {
				if sg.Contains(e) {
					keep = append(keep, e)
				}
			}
		}
		for _, e := range keep {
			a, b := e[0], e[1]
			if rel != nil {
				a, b = rel[a], rel[b]
				if a < 0 || b < 0 {
					continue
				}
			}
			for t := 0; t < ntargets; t++ {
				dest.Add(geo.Edge{a + t*npts, b + t*npts})
			}
		}
	}
	return stats
}

// primitiveEdges lists the distinct source edges of prims, in order of
// first use, along with the same edges as a set.
func primitiveEdges(src *geo.Document, prims []int) ([]geo.Edge, map[geo.Edge]struct{}) {
	var edges []geo.Edge
	set := map[geo.Edge]struct{}{}
	add := func(a, b int) {
		if a == b {
			return
		}
		e := geo.MakeEdge(a, b)
		if _, ok := set[e]; !ok {
			set[e] = struct{}{}
			edges = append(edges, e)
		}
	}
	for _, prim := range prims {
		start, n := src.VertexStart(prim), src.VertexCount(prim)
		for i := 1; i < n; i++ {
			add(src.PointOfVertex(start+i-1), src.PointOfVertex(start+i))
		}
		if n > 2 && src.IsClosed(prim) {
			add(src.PointOfVertex(start+n-1), src.PointOfVertex(start))
		}
	}
	return edges, set
}
