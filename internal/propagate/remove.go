package propagate

import "copytopoints/internal/geo"

// RemoveUnnecessary deletes output attributes and groups that neither the
// source nor a target request will fill, whose storage no longer matches
// where they come from, or whose provenance switched between source and
// target. P is never deleted; a storage mismatch on P is converted.
//
// src is nil when the output only receives target values.
func RemoveUnnecessary(out, src, target *geo.Document, st *State, attribs, groups TargetInfoMap) {
	for _, o := range []geo.Owner{geo.Vertex, geo.Point, geo.Primitive, geo.Detail} {
		posMismatch := false
		for _, a := range out.Attributes(o) {
			name := a.Name()
			var srcA *geo.Attribute
			if src != nil {
				srcA = src.FindAttribute(o, name)
			}
			isP := o == geo.Point && name == geo.PName
			drop := false
			info, requested := attribs[name]
			switch {
			case o == geo.Detail:
				drop = srcA == nil || !srcA.MatchesStorage(a)
			case !requested || info.CopyTo != o:
				if srcA == nil || !srcA.MatchesStorage(a) {
					if isP {
						posMismatch = srcA != nil
					} else {
						drop = true
					}
				} else if !isP && !st.hasSource(false, o, name) {
					drop = true
				}
			case info.Method == Copy || srcA == nil:
				tA := target.FindAttribute(geo.Point, name)
				drop = tA == nil || !tA.MatchesStorage(a) || (src != nil && st.hasSource(false, o, name))
			case !srcA.MatchesStorage(a):
				drop = true
			default:
				drop = !st.hasSource(false, o, name)
			}
			if !drop {
				continue
			}
			if o == geo.Detail {
				delete(st.SourceDetailIDs, name)
			} else {
				delete(st.SourceAttribIDs[o], name)
				delete(st.TargetAttribInfo, name)
			}
			out.DestroyAttribute(o, name)
		}
		if posMismatch {
			out.P().SetStorage(src.P().Storage())
			out.P().BumpDataID()
			delete(st.SourceAttribIDs[geo.Point], geo.PName)
		}
		if o == geo.Detail {
			continue
		}

		for _, g := range out.Groups(o) {
			name := g.Name()
			hasSrc := src != nil && src.FindGroup(o, name) != nil
			drop := false
			info, requested := groups[name]
			switch {
			case !requested || info.CopyTo != o:
				drop = !hasSrc || !st.hasSource(true, o, name)
			case info.Method == Copy || !hasSrc:
				drop = target.FindGroup(geo.Point, name) == nil || (src != nil && st.hasSource(true, o, name))
			default:
				drop = !st.hasSource(true, o, name)
			}
			if !drop {
				continue
			}
			delete(st.SourceGroupIDs[o], name)
			delete(st.TargetGroupInfo, name)
			out.DestroyGroup(o, name)
		}
	}

	for _, eg := range out.EdgeGroups() {
		if src != nil && src.FindEdgeGroup(eg.Name()) != nil {
			continue
		}
		out.DestroyEdgeGroup(eg.Name())
		delete(st.SourceEdgeGroupIDs, eg.Name())
	}
}
