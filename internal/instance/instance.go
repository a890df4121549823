// Package instance copies a source document onto the points of a target
// document. An Operation keeps the caches of its previous invocation so
// that re-cooking evolving inputs only redoes what changed.
package instance

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"copytopoints/internal/geo"
	"copytopoints/internal/logging"
	"copytopoints/internal/metrics"
	"copytopoints/internal/piece"
	"copytopoints/internal/propagate"
	"copytopoints/internal/realize"
	"copytopoints/internal/xform"
)

// Result describes one invocation.
type Result struct {
	Warnings []string
	Stats    propagate.Stats
	// Copies is the number of target points instanced onto.
	Copies          int
	TopologyChanged bool
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Cache is everything an Operation carries between invocations.
type Cache struct {
	valid       bool
	xform       xform.Cache
	hadMatrices bool
	attribs     *propagate.State
	realized    realize.State
	layout      *piece.Layout

	pack, keyed bool
	outputID    uuid.UUID
	sourceID    uuid.UUID
	targetID    uuid.UUID
	srcPrimList geo.Token
	srcTopology geo.Token
	sourceSel   selection
	targetSel   selection
	ntargets    int

	whole      piece.Piece
	wholeValid bool

	part        *piece.Partition
	partKey     string
	targetKeyID geo.Token
	srcKeyID    geo.Token
	srcKeyOwner geo.Owner

	// emptySource stands in for a source whose group selects nothing.
	emptySource *geo.Document
}

func (c *Cache) reset() {
	empty := c.emptySource
	*c = Cache{attribs: propagate.NewState(), emptySource: empty}
}

// Operation is one instancing node. It is not safe for concurrent use.
type Operation struct {
	cache   Cache
	metrics *metrics.Metrics
}

func New() *Operation {
	op := &Operation{metrics: metrics.Default}
	op.cache.emptySource = geo.New()
	op.cache.reset()
	return op
}

// WithMetrics reports to m instead of the default metric set.
func (op *Operation) WithMetrics(m *metrics.Metrics) *Operation {
	op.metrics = m
	return op
}

// Reset drops every cache; the next Cook rebuilds from scratch.
func (op *Operation) Reset() { op.cache.reset() }

// Cook writes the copies of src onto target's points into out. On error
// out is left empty and the caches are dropped.
func (op *Operation) Cook(out, src, target *geo.Document, p Params) (res Result, err error) {
	start := time.Now()
	strategy := strategyOf(p)
	defer func() { op.metrics.RecordCook(strategy, err, time.Since(start)) }()

	out.BeginEdit()
	defer out.EndEdit()

	res, err = op.cook(out, src, target, p)
	log := logging.L()
	for _, w := range res.Warnings {
		log.Warn(w, "strategy", strategy)
	}
	if err != nil {
		out.Clear()
		op.cache.reset()
		log.Error("cook failed", "strategy", strategy, "err", err)
		return Result{Warnings: res.Warnings}, err
	}
	op.metrics.RecordTopology(res.TopologyChanged)
	op.metrics.RecordAttributes(res.Stats.Copied, res.Stats.Skipped)
	log.Debug("cooked",
		"strategy", strategy,
		"copies", res.Copies,
		"topology_changed", res.TopologyChanged,
		"copied", res.Stats.Copied,
		"skipped", res.Stats.Skipped,
		"elapsed", time.Since(start))
	return res, nil
}

func strategyOf(p Params) string {
	switch {
	case p.UseIDAttrib && p.Pack:
		return metrics.StrategyKeyedPacked
	case p.UseIDAttrib:
		return metrics.StrategyKeyed
	case p.Pack:
		return metrics.StrategyPacked
	}
	return metrics.StrategyFullCopy
}

func (op *Operation) cook(out, src, target *geo.Document, p Params) (Result, error) {
	var res Result
	c := &op.cache

	srcPoints, srcPrims, ok := sourceGroups(src, p.SourceGroup, p.SourceGroupType)
	if !ok {
		res.warn("source group %q not found", p.SourceGroup)
		src = c.emptySource
	}
	targets, targetGroup, ok := targetPoints(target, p.TargetGroup)
	if !ok {
		res.warn("target group %q not found", p.TargetGroup)
	}

	srcSel := srcPrims
	if srcSel == nil {
		srcSel = srcPoints
	}
	sourceTopoChanged := c.sourceSel.update(srcSel)
	sourceTopoChanged = sourceTopoChanged || !c.valid || src.ID() != c.sourceID ||
		src.PrimListID() != c.srcPrimList || src.TopologyID() != c.srcTopology
	targetsChanged := c.targetSel.update(targetGroup)
	targetsChanged = targetsChanged || !c.valid || target.ID() != c.targetID || len(targets) != c.ntargets
	outputChanged := out.ID() != c.outputID
	modeChanged := !c.valid || p.Pack != c.pack || p.UseIDAttrib != c.keyed

	attribs, groups, err := buildRequests(target, p.TargetAttribs)
	if err != nil {
		return res, err
	}

	nselected := len(targets)
	var part *piece.Partition
	rebuilt := false
	if p.UseIDAttrib {
		c.wholeValid = false
		force := sourceTopoChanged || targetsChanged || outputChanged || modeChanged
		part, rebuilt, err = c.partition(src, target, targets, srcPoints, srcPrims, p, force)
		if err != nil {
			return res, err
		}
		targets = part.Targets
	} else {
		c.part = nil
		if sourceTopoChanged || !c.wholeValid {
			pts, prs := piece.SelectionLists(src, srcPoints, srcPrims)
			c.whole = piece.FromLists(src, pts, prs)
			c.wholeValid = true
		}
	}
	res.Copies = len(targets)

	xformChanged := c.xform.Setup(target, targets, xform.Options{Transform: p.Transform, ImplicitN: p.UseImplicitN}, targetsChanged || rebuilt)
	if xformChanged {
		op.metrics.TransformRecomputes.Inc()
	}

	if p.Pack {
		pt := realize.PackTargets{
			Target:            target,
			Points:            targets,
			Xform:             &c.xform,
			HadMatrices:       c.hadMatrices,
			TransformsChanged: xformChanged,
			Attribs:           attribs,
			Groups:            groups,
			State:             c.attribs,
		}
		opts := realize.PackOptions{Pivot: p.Pivot, LOD: p.LOD}
		var r realize.PackResult
		if part != nil {
			r = realize.PackPieces(out, src, part, &c.realized, opts, rebuilt || modeChanged, sourceTopoChanged, pt)
		} else {
			var sel *realize.Selection
			if srcSel != nil {
				sel = &realize.Selection{Points: c.whole.Offsets[geo.Point], Prims: c.whole.Offsets[geo.Primitive]}
			}
			r = realize.PackAllSame(out, src, sel, &c.realized, opts, sourceTopoChanged, pt)
		}
		res.TopologyChanged = r.TopologyChanged
		res.Stats = r.Stats
		c.layout = nil
	} else {
		topo := modeChanged || outputChanged || sourceTopoChanged || targetsChanged || rebuilt ||
			c.layout == nil || c.realized.Count != len(targets) ||
			out.NumPoints() != c.layout.Total(geo.Point) ||
			out.NumVertices() != c.layout.Total(geo.Vertex) ||
			out.NumPrimitives() != c.layout.Total(geo.Primitive)
		if topo {
			if part != nil {
				c.layout = realize.FullCopyPieces(out, src, part.Pieces, part.TargetToPiece)
			} else {
				c.layout = realize.FullCopy(out, src, &c.whole, len(targets))
			}
			c.attribs.Reset()
			c.realized.RecordFullCopy(out, len(targets))
		}
		res.TopologyChanged = topo
		res.Stats = op.propagate(out, src, target, targets, attribs, groups, topo, xformChanged)
		if part != nil && len(src.EdgeGroups()) > 0 && out.NumPrimitives() > 0 {
			res.warn("edge groups are not copied when copying pieces by %q", p.IDAttrib)
		}
	}

	c.hadMatrices = c.xform.HasMatrices()
	c.valid = true
	c.pack, c.keyed = p.Pack, p.UseIDAttrib
	c.outputID, c.sourceID, c.targetID = out.ID(), src.ID(), target.ID()
	c.srcPrimList, c.srcTopology = src.PrimListID(), src.TopologyID()
	c.ntargets = nselected
	return res, nil
}

// propagate runs the attribute passes of a Full-Copy build.
func (op *Operation) propagate(out, src, target *geo.Document, targets []int, attribs, groups propagate.TargetInfoMap, topo, xformChanged bool) propagate.Stats {
	c := &op.cache
	propagate.RemoveUnnecessary(out, src, target, c.attribs, attribs, groups)
	counts, needed := propagate.AddFromSourceOrTarget(out, src, target, c.attribs, attribs, groups, c.xform.HasMatrices())
	c.xform.Compute(needed, xformChanged)

	stats := propagate.CopyFromSource(propagate.SourceParams{
		Out:               out,
		Source:            src,
		Target:            target,
		Layout:            c.layout,
		Counts:            counts,
		Xform:             &c.xform,
		HadMatrices:       c.hadMatrices,
		TopologyChanged:   topo,
		TransformsChanged: xformChanged,
		Attribs:           attribs,
		Groups:            groups,
		State:             c.attribs,
	})
	stats.Add(propagate.CopyFromTarget(propagate.TargetParams{
		Out:             out,
		Target:          target,
		Targets:         targets,
		Layout:          c.layout,
		Counts:          counts,
		TopologyChanged: topo,
		Attribs:         attribs,
		Groups:          groups,
		State:           c.attribs,
	}))
	return stats
}
