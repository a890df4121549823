package piece

import (
	"sort"

	"copytopoints/internal/geo"
)

// Layout maps output element offsets back to the target they were copied
// for and the source element they came from.
//
// A uniform layout has every target copy the same source lists; a keyed
// layout has each target copy the lists of its piece.
type Layout struct {
	uniform       *[geo.NumElementOwners][]int
	pieces        []Piece
	targetToPiece []int
	starts        [geo.NumElementOwners][]int
	totals        [geo.NumElementOwners]int
	ntargets      int
}

// UniformLayout copies the same source lists once per target.
func UniformLayout(lists [geo.NumElementOwners][]int, ntargets int) *Layout {
	l := &Layout{uniform: &lists, ntargets: ntargets}
	for _, o := range geo.ElementOwners {
		l.totals[o] = len(lists[o]) * ntargets
	}
	return l
}

// KeyedLayout copies targetToPiece[t]'s lists for target t.
func KeyedLayout(pieces []Piece, targetToPiece []int) *Layout {
	l := &Layout{pieces: pieces, targetToPiece: targetToPiece, ntargets: len(targetToPiece)}
	l.starts = OffsetStarts(pieces, targetToPiece)
	for _, o := range geo.ElementOwners {
		for _, pi := range targetToPiece {
			l.totals[o] += pieces[pi].Count(o)
		}
	}
	return l
}

// OffsetStarts gives, per class, the first output offset of each target copy.
func OffsetStarts(pieces []Piece, targetToPiece []int) [geo.NumElementOwners][]int {
	var starts [geo.NumElementOwners][]int
	for _, o := range geo.ElementOwners {
		starts[o] = make([]int, len(targetToPiece))
		n := 0
		for t, pi := range targetToPiece {
			starts[o][t] = n
			n += pieces[pi].Count(o)
		}
	}
	return starts
}

func (l *Layout) Keyed() bool              { return l.uniform == nil }
func (l *Layout) Total(o geo.Owner) int    { return l.totals[o] }
func (l *Layout) Targets() int             { return l.ntargets }
func (l *Layout) Pieces() []Piece          { return l.pieces }
func (l *Layout) TargetToPiece() []int     { return l.targetToPiece }
func (l *Layout) Starts(o geo.Owner) []int { return l.starts[o] }

// List returns the source offsets copied for target t.
func (l *Layout) List(o geo.Owner, t int) []int {
	if l.uniform != nil {
		return l.uniform[o]
	}
	return l.pieces[l.targetToPiece[t]].Offsets[o]
}

// PerCopy is the per-target element count of a uniform layout.
func (l *Layout) PerCopy(o geo.Owner) int {
	if l.uniform != nil {
		return len(l.uniform[o])
	}
	return 0
}

// Cursor walks output offsets of one class in increasing order.
type Cursor struct {
	l      *Layout
	o      geo.Owner
	target int
	rel    int
	list   []int
}

// CursorAt positions a cursor on output offset off, which must be below
// Total(o).
func (l *Layout) CursorAt(o geo.Owner, off int) Cursor {
	c := Cursor{l: l, o: o}
	if l.uniform != nil {
		n := len(l.uniform[o])
		c.list = l.uniform[o]
		c.target, c.rel = off/n, off%n
		return c
	}
	starts := l.starts[o]
	// Last target whose start is <= off; empty pieces share starts with
	// their successor, so take the last one.
	c.target = sort.Search(len(starts), func(i int) bool { return starts[i] > off }) - 1
	geo.Assert(c.target >= 0 && c.target < l.ntargets, "offset %d outside the %s layout", off, o)
	c.rel = off - starts[c.target]
	c.list = l.List(o, c.target)
	return c
}

// Target is the index into the target list of the current copy.
func (c *Cursor) Target() int { return c.target }

// Source is the source offset of the current output element.
func (c *Cursor) Source() int { return c.list[c.rel] }

// Rel is the index of the current element within its copy.
func (c *Cursor) Rel() int { return c.rel }

// Next advances by one output element, skipping copies with no elements.
func (c *Cursor) Next() {
	c.rel++
	for c.rel >= len(c.list) {
		c.rel = 0
		c.target++
		if c.target >= c.l.ntargets {
			return
		}
		c.list = c.l.List(c.o, c.target)
	}
}
