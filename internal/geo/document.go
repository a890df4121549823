package geo

import (
	"slices"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"

	"copytopoints/internal/mathutil"
)

// PName is the position attribute. It always exists on points.
const PName = "P"

var epochCounter atomic.Uint64

// Document is an in-memory geometry container: dense vertex, point and
// primitive arrays plus named attributes and groups on each class.
type Document struct {
	id         uuid.UUID
	topologyID Token
	primListID Token
	topoEpoch  uint64
	listEpoch  uint64
	metaCount  atomic.Uint64
	epoch      uint64

	npoints    int
	vtxPoint   []int
	vtxPrim    []int
	vtxNext    []int
	vtxPrev    []int
	ptVtx      []int
	primStart  []int
	primCount  []int
	primType   []PrimType
	primClosed []bool
	primData   []*PrimData

	attribs    [NumElementOwners + 1]map[string]*Attribute
	groups     [NumElementOwners]map[string]*Group
	edgeGroups map[string]*EdgeGroup
}

// New returns an empty document holding only P.
func New() *Document {
	d := &Document{
		id:         uuid.New(),
		topologyID: NewToken(),
		primListID: NewToken(),
		edgeGroups: make(map[string]*EdgeGroup),
	}
	for i := range d.attribs {
		d.attribs[i] = make(map[string]*Attribute)
	}
	for i := range d.groups {
		d.groups[i] = make(map[string]*Group)
	}
	p := d.AddAttribute(Point, PName, Float32, 3)
	p.typeInfo = TypePoint
	return d
}

// ID identifies this document instance; clones get a fresh ID.
func (d *Document) ID() uuid.UUID { return d.id }

func (d *Document) TopologyID() Token  { return d.topologyID }
func (d *Document) PrimListID() Token  { return d.primListID }
func (d *Document) P() *Attribute      { return d.attribs[Point][PName] }
func (d *Document) NumPoints() int     { return d.npoints }
func (d *Document) NumVertices() int   { return len(d.vtxPoint) }
func (d *Document) NumPrimitives() int { return len(d.primStart) }

// Count returns the element count of a class; Detail always has one.
func (d *Document) Count(o Owner) int {
	switch o {
	case Vertex:
		return len(d.vtxPoint)
	case Point:
		return d.npoints
	case Primitive:
		return len(d.primStart)
	case Detail:
		return 1
	}
	return 0
}

// MetaCount advances on every change to topology, attributes or groups,
// including value writes announced through a BumpDataID.
func (d *Document) MetaCount() uint64 { return d.metaCount.Load() }

func (d *Document) touch() {
	if d != nil {
		d.metaCount.Add(1)
	}
}

// BeginEdit opens an edit epoch: until EndEdit, each attribute, group and
// topology token is bumped at most once however many writers touch it.
func (d *Document) BeginEdit() {
	d.epoch = epochCounter.Add(1)
}

func (d *Document) EndEdit() {
	d.epoch = 0
}

func (d *Document) BumpTopology() {
	d.metaCount.Add(1)
	if d.epoch != 0 {
		if d.topoEpoch == d.epoch {
			return
		}
		d.topoEpoch = d.epoch
	}
	d.topologyID = NewToken()
}

func (d *Document) BumpPrimitiveList() {
	d.metaCount.Add(1)
	if d.epoch != 0 {
		if d.listEpoch == d.epoch {
			return
		}
		d.listEpoch = d.epoch
	}
	d.primListID = NewToken()
}

// BumpDataIDsForAddOrRemove bumps every attribute and group of the classes
// whose element set changed, plus the topology and primitive list.
func (d *Document) BumpDataIDsForAddOrRemove(points, vertices, prims bool) {
	flags := [NumElementOwners]bool{Vertex: vertices, Point: points, Primitive: prims}
	for _, o := range ElementOwners {
		if !flags[o] {
			continue
		}
		for _, a := range d.attribs[o] {
			a.BumpDataID()
		}
		for _, g := range d.groups[o] {
			g.BumpDataID()
		}
	}
	if points || vertices {
		for _, g := range d.edgeGroups {
			g.BumpDataID()
		}
	}
	d.BumpTopology()
	d.BumpPrimitiveList()
}

// FindAttribute returns nil when the attribute does not exist.
func (d *Document) FindAttribute(o Owner, name string) *Attribute {
	if o < 0 || int(o) >= len(d.attribs) {
		return nil
	}
	return d.attribs[o][name]
}

// AddAttribute returns the existing attribute when storage and tuple size
// already match, otherwise replaces it.
func (d *Document) AddAttribute(o Owner, name string, s Storage, tuple int) *Attribute {
	if s == String {
		tuple = 1
	}
	if a := d.attribs[o][name]; a != nil {
		if a.storage == s && a.tuple == tuple {
			return a
		}
		if o == Point && name == PName {
			a.SetStorage(s)
			a.BumpDataID()
			return a
		}
	}
	a := &Attribute{name: name, owner: o, storage: s, tuple: tuple, dataID: NewToken(), doc: d}
	a.resize(d.Count(o))
	d.attribs[o][name] = a
	d.touch()
	return a
}

// CloneAttribute creates (or replaces) an attribute with src's name,
// storage and metadata. Values are left zeroed.
func (d *Document) CloneAttribute(o Owner, src *Attribute) *Attribute {
	if o == Point && src.name == PName {
		p := d.P()
		p.SetStorage(src.storage)
		p.CopyMetadata(src)
		return p
	}
	a := src.clone(d, o, d.Count(o))
	d.attribs[o][src.name] = a
	d.touch()
	return a
}

// DestroyAttribute removes an attribute; P cannot be removed.
func (d *Document) DestroyAttribute(o Owner, name string) bool {
	if o == Point && name == PName {
		return false
	}
	if _, ok := d.attribs[o][name]; !ok {
		return false
	}
	delete(d.attribs[o], name)
	d.touch()
	return true
}

// Attributes lists the attributes of a class sorted by name.
func (d *Document) Attributes(o Owner) []*Attribute {
	m := d.attribs[o]
	out := make([]*Attribute, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b *Attribute) int { return strings.Compare(a.name, b.name) })
	return out
}

func (d *Document) FindGroup(o Owner, name string) *Group {
	if o < 0 || int(o) >= len(d.groups) {
		return nil
	}
	return d.groups[o][name]
}

func (d *Document) AddGroup(o Owner, name string) *Group {
	if g := d.groups[o][name]; g != nil {
		return g
	}
	g := &Group{name: name, owner: o, dataID: NewToken(), doc: d}
	g.resize(d.Count(o))
	d.groups[o][name] = g
	d.touch()
	return g
}

func (d *Document) DestroyGroup(o Owner, name string) bool {
	if _, ok := d.groups[o][name]; !ok {
		return false
	}
	delete(d.groups[o], name)
	d.touch()
	return true
}

func (d *Document) Groups(o Owner) []*Group {
	m := d.groups[o]
	out := make([]*Group, 0, len(m))
	for _, g := range m {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *Group) int { return strings.Compare(a.name, b.name) })
	return out
}

func (d *Document) FindEdgeGroup(name string) *EdgeGroup { return d.edgeGroups[name] }

func (d *Document) AddEdgeGroup(name string) *EdgeGroup {
	if g := d.edgeGroups[name]; g != nil {
		return g
	}
	g := &EdgeGroup{name: name, edges: make(map[Edge]struct{}), dataID: NewToken(), doc: d}
	d.edgeGroups[name] = g
	d.touch()
	return g
}

func (d *Document) DestroyEdgeGroup(name string) bool {
	if _, ok := d.edgeGroups[name]; !ok {
		return false
	}
	delete(d.edgeGroups, name)
	d.touch()
	return true
}

func (d *Document) EdgeGroups() []*EdgeGroup {
	out := make([]*EdgeGroup, 0, len(d.edgeGroups))
	for _, g := range d.edgeGroups {
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b *EdgeGroup) int { return strings.Compare(a.name, b.name) })
	return out
}

// Bounds of all point positions.
func (d *Document) Bounds() Box {
	var b Box
	p := d.P()
	for i := 0; i < d.npoints; i++ {
		b.Enlarge(p.Vec3(i))
	}
	return b
}

// PointBounds of the listed points.
func (d *Document) PointBounds(points []int) Box {
	var b Box
	p := d.P()
	for _, i := range points {
		b.Enlarge(p.Vec3(i))
	}
	return b
}

// SetPointPos is a convenience for building fixtures.
func (d *Document) SetPointPos(pt int, v mathutil.Vec3) {
	d.P().SetVec3(pt, v)
}

// Clone returns a deep copy with a fresh identity. Packed references are
// shared and counted.
func (d *Document) Clone() *Document {
	c := New()
	c.npoints = d.npoints
	c.vtxPoint = slices.Clone(d.vtxPoint)
	c.vtxPrim = slices.Clone(d.vtxPrim)
	c.vtxNext = slices.Clone(d.vtxNext)
	c.vtxPrev = slices.Clone(d.vtxPrev)
	c.ptVtx = slices.Clone(d.ptVtx)
	c.primStart = slices.Clone(d.primStart)
	c.primCount = slices.Clone(d.primCount)
	c.primType = slices.Clone(d.primType)
	c.primClosed = slices.Clone(d.primClosed)
	c.primData = make([]*PrimData, len(d.primData))
	for i, pd := range d.primData {
		if pd != nil {
			c.primData[i] = newPrimData()
			c.primData[i].CopyFrom(pd)
		}
	}
	for o := range d.attribs {
		for name, a := range d.attribs[o] {
			ca := &Attribute{doc: c, name: name, owner: a.owner, dataID: NewToken()}
			ca.Replace(a)
			c.attribs[o][name] = ca
		}
	}
	for o := range d.groups {
		for name, g := range d.groups[o] {
			c.groups[o][name] = &Group{name: name, owner: g.owner, members: slices.Clone(g.members), dataID: NewToken(), doc: c}
		}
	}
	for name, g := range d.edgeGroups {
		ng := c.AddEdgeGroup(name)
		for e := range g.edges {
			ng.edges[e] = struct{}{}
		}
	}
	return c
}
