package propagate

import (
	"maps"
	"slices"

	"copytopoints/internal/geo"
	"copytopoints/internal/parallel"
	"copytopoints/internal/piece"
)

// TargetParams configures CopyFromTarget.
type TargetParams struct {
	Out    *geo.Document
	Target *geo.Document
	// Targets lists the target point of each copy in the layout.
	Targets         []int
	Layout          *piece.Layout
	Counts          Counts
	TopologyChanged bool
	Attribs, Groups TargetInfoMap
	State           *State
}

// CopyFromTarget applies each target request to the copies made for every
// target point. Requests whose target token, class and method match the
// previous invocation are skipped unless the topology was rebuilt.
// Afterwards the requests become the cached ones.
func CopyFromTarget(p TargetParams) Stats {
	var stats Stats
	var tasks parallel.TaskList
	st, out, layout := p.State, p.Out, p.Layout
	attribInfo := make(TargetInfoMap, len(p.Attribs))
	groupInfo := make(TargetInfoMap, len(p.Groups))

	for _, name := range slices.Sorted(maps.Keys(p.Attribs)) {
		info := p.Attribs[name]
		tA := p.Target.FindAttribute(geo.Point, name)
		if tA == nil {
			continue
		}
		info.DataID = tA.DataID()
		attribInfo[name] = info
		if info.Method == None {
			continue
		}
		dest := out.FindAttribute(info.CopyTo, name)
		if dest == nil {
			continue
		}
		if prev, ok := st.TargetAttribInfo[name]; ok && !p.TopologyChanged && prev == info {
			stats.Skipped++
			continue
		}
		dest.BumpDataID()
		stats.Copied++
		combine := combiner(info.Method)
		nc := min(dest.TupleSize(), tA.TupleSize())
		o := info.CopyTo
		tasks.AddRange(layout.Total(o), blockGrain, func(lo, hi int) {
			c := layout.CursorAt(o, lo)
			for i := lo; i < hi; i++ {
				tp := p.Targets[c.Target()]
				if combine == nil {
					dest.CopyElement(i, tA, tp)
				} else {
					for k := 0; k < nc; k++ {
						dest.SetFloat(i, k, combine(dest.Float(i, k), tA.Float(tp, k)))
					}
				}
				c.Next()
			}
		})
	}

	for _, name := range slices.Sorted(maps.Keys(p.Groups)) {
		info := p.Groups[name]
		tg := p.Target.FindGroup(geo.Point, name)
		if tg == nil {
			continue
		}
		info.DataID = tg.DataID()
		groupInfo[name] = info
		if info.Method == None {
			continue
		}
		dest := out.FindGroup(info.CopyTo, name)
		if dest == nil {
			continue
		}
		if prev, ok := st.TargetGroupInfo[name]; ok && !p.TopologyChanged && prev == info {
			stats.Skipped++
			continue
		}
		dest.BumpDataID()
		stats.Copied++
		method := info.Method
		o := info.CopyTo
		tasks.AddRange(layout.Total(o), blockGrain, func(lo, hi int) {
			c := layout.CursorAt(o, lo)
			for i := lo; i < hi; i++ {
				in := tg.Contains(p.Targets[c.Target()])
				switch method {
				case Copy:
					dest.Set(i, in)
				case Multiply:
					if !in {
						dest.Set(i, false)
					}
				case Subtract:
					if in {
						dest.Set(i, false)
					}
				case Add:
					if in {
						dest.Set(i, true)
					}
				}
				c.Next()
			}
		})
	}

	tasks.Run(work(out, p.Counts.Target) >= parallelWork)
	st.TargetAttribInfo = attribInfo
	st.TargetGroupInfo = groupInfo
	return stats
}

// combiner returns nil for Copy.
func combiner(m Method) func(a, b float64) float64 {
	switch m {
	case Multiply:
		return func(a, b float64) float64 { return a * b }
	case Add:
		return func(a, b float64) float64 { return a + b }
	case Subtract:
		return func(a, b float64) float64 { return a - b }
	}
	return nil
}
