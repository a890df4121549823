package propagate

import (
	"maps"
	"slices"

	"copytopoints/internal/geo"
	"copytopoints/internal/xform"
)

// AddFromSourceOrTarget creates the output attributes and groups that the
// source or a target request will fill, copies their metadata and counts
// them per class. Detail attributes are copied from the source right away.
//
// A target Copy request wins over a source attribute of the same name on
// the requested class or its conflicting class. Requests are rewritten in
// place: a non-Copy request on a class the source lacks moves to the
// conflicting class when the source has it there, and a request that had
// to create its destination combines with nothing, so Multiply and Add
// become Copy (and Subtract becomes None for groups).
//
// hasMatrices selects the derived transform arrays reported in the
// returned Needed. src may be nil.
func AddFromSourceOrTarget(out, src, target *geo.Document, st *State, attribs, groups TargetInfoMap, hasMatrices bool) (Counts, xform.Needed) {
	var counts Counts
	var needed xform.Needed

	if src != nil {
		for _, o := range []geo.Owner{geo.Vertex, geo.Point, geo.Primitive, geo.Detail} {
			for _, a := range src.Attributes(o) {
				name := a.Name()
				if o != geo.Detail {
					if info, ok := attribs[name]; ok && info.Method == Copy && (info.CopyTo == o || info.CopyTo == o.Conflict()) {
						if name != geo.PName && out.DestroyAttribute(o, name) {
							delete(st.SourceAttribIDs[o], name)
						}
						continue
					}
				}
				dest := out.FindAttribute(o, name)
				if dest == nil {
					dest = out.CloneAttribute(o, a)
				}
				if o == geo.Detail {
					if id, ok := st.SourceDetailIDs[name]; !ok || id != a.DataID() {
						dest.Replace(a)
						dest.BumpDataID()
						st.SourceDetailIDs[name] = a.DataID()
					}
					continue
				}
				dest.CopyMetadata(a)
				counts.Source[o]++
				needed |= xform.NeededFor(xform.Classify(a, hasMatrices), a.Storage(), hasMatrices)
			}
			if o == geo.Detail {
				continue
			}
			for _, g := range src.Groups(o) {
				if info, ok := groups[g.Name()]; ok && info.Method == Copy && info.CopyTo == o {
					continue
				}
				out.AddGroup(o, g.Name())
				counts.Source[o]++
			}
		}
		for _, eg := range src.EdgeGroups() {
			out.AddEdgeGroup(eg.Name())
		}
	}

	for _, name := range slices.Sorted(maps.Keys(attribs)) {
		info := attribs[name]
		tA := target.FindAttribute(geo.Point, name)
		if tA == nil {
			continue
		}
		if info.Method != Copy && src != nil {
			if src.FindAttribute(info.CopyTo, name) != nil {
				counts.Target[info.CopyTo]++
				continue
			}
			if c := info.CopyTo.Conflict(); c != geo.InvalidOwner && src.FindAttribute(c, name) != nil {
				info.CopyTo = c
				attribs[name] = info
				counts.Target[c]++
				continue
			}
		}
		dest := out.FindAttribute(info.CopyTo, name)
		if dest == nil {
			dest = out.CloneAttribute(info.CopyTo, tA)
			if info.Method == Multiply || info.Method == Add {
				info.Method = Copy
				attribs[name] = info
			}
		}
		dest.CopyMetadata(tA)
		counts.Target[info.CopyTo]++
	}

	for _, name := range slices.Sorted(maps.Keys(groups)) {
		info := groups[name]
		if target.FindGroup(geo.Point, name) == nil {
			continue
		}
		if info.Method != Copy && src != nil && src.FindGroup(info.CopyTo, name) != nil {
			counts.Target[info.CopyTo]++
			continue
		}
		if out.FindGroup(info.CopyTo, name) == nil {
			out.AddGroup(info.CopyTo, name)
			switch info.Method {
			case Multiply, Add:
				info.Method = Copy
			case Subtract:
				info.Method = None
			}
			groups[name] = info
		}
		counts.Target[info.CopyTo]++
	}
	return counts, needed
}
