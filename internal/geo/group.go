package geo

// Group is a named membership set over one element class.
// Membership is one bool per element so disjoint ranges can be written
// from different goroutines.
type Group struct {
	name    string
	owner   Owner
	members []bool
	dataID  Token
	epoch   uint64
	doc     *Document
}

func (g *Group) Name() string  { return g.name }
func (g *Group) Owner() Owner  { return g.owner }
func (g *Group) DataID() Token { return g.dataID }
func (g *Group) Len() int      { return len(g.members) }

func (g *Group) Contains(i int) bool { return g.members[i] }

func (g *Group) Set(i int, v bool) { g.members[i] = v }

// Members exposes the backing flags for bulk kernels.
func (g *Group) Members() []bool { return g.members }

func (g *Group) Entries() int {
	n := 0
	for _, m := range g.members {
		if m {
			n++
		}
	}
	return n
}

func (g *Group) IsEmpty() bool {
	for _, m := range g.members {
		if m {
			return false
		}
	}
	return true
}

// Offsets lists member offsets in increasing order.
func (g *Group) Offsets() []int {
	out := make([]int, 0, g.Entries())
	for i, m := range g.members {
		if m {
			out = append(out, i)
		}
	}
	return out
}

func (g *Group) Clear() {
	clear(g.members)
}

// SameMembers reports whether g and o select exactly the same offsets.
func (g *Group) SameMembers(o *Group) bool {
	if len(g.members) != len(o.members) {
		return false
	}
	for i := range g.members {
		if g.members[i] != o.members[i] {
			return false
		}
	}
	return true
}

func (g *Group) BumpDataID() {
	g.doc.touch()
	if g.doc != nil && g.doc.epoch != 0 {
		if g.epoch == g.doc.epoch {
			return
		}
		g.epoch = g.doc.epoch
	}
	g.dataID = NewToken()
}

func (g *Group) resize(n int) {
	g.members = resizeSlice(g.members, n)
}

// Edge is an unordered pair of point offsets, stored low first.
type Edge [2]int

func MakeEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{a, b}
}

// EdgeGroup is a named set of point-pair edges.
type EdgeGroup struct {
	name   string
	edges  map[Edge]struct{}
	dataID Token
	epoch  uint64
	doc    *Document
}

func (g *EdgeGroup) Name() string  { return g.name }
func (g *EdgeGroup) DataID() Token { return g.dataID }
func (g *EdgeGroup) Entries() int  { return len(g.edges) }

func (g *EdgeGroup) Add(e Edge) { g.edges[MakeEdge(e[0], e[1])] = struct{}{} }

func (g *EdgeGroup) Contains(e Edge) bool {
	_, ok := g.edges[MakeEdge(e[0], e[1])]
	return ok
}

func (g *EdgeGroup) Clear() { clear(g.edges) }

// Edges returns the members in no particular order.
func (g *EdgeGroup) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for e := range g.edges {
		out = append(out, e)
	}
	return out
}

func (g *EdgeGroup) BumpDataID() {
	g.doc.touch()
	if g.doc != nil && g.doc.epoch != 0 {
		if g.epoch == g.doc.epoch {
			return
		}
		g.epoch = g.doc.epoch
	}
	g.dataID = NewToken()
}
