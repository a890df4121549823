// Package geoio reads and writes geometry documents as YAML.
//
// A file lists the point count, the primitives with their point lists,
// then attributes and groups per element class. Numeric attribute values
// are flattened tuples in element order. Packed primitives refer to an
// entry of the top-level packed list, so backing geometry shared by several
// primitives is written once.
package geoio

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"copytopoints/internal/geo"
	"copytopoints/internal/mathutil"
)

const Version = 1

var ErrFormat = errors.New("geoio: malformed document")

type File struct {
	Version    int         `yaml:"version"`
	Points     int         `yaml:"points"`
	Primitives []Primitive `yaml:"primitives,omitempty"`
	Attributes []Attribute `yaml:"attributes,omitempty"`
	Groups     []Group     `yaml:"groups,omitempty"`
	EdgeGroups []EdgeGroup `yaml:"edge_groups,omitempty"`
	Packed     []Packed    `yaml:"packed,omitempty"`
}

type Primitive struct {
	Type   string `yaml:"type"`
	Closed bool   `yaml:"closed,omitempty"`
	Points []int  `yaml:"points,flow"`

	Local *[9]float64 `yaml:"local,omitempty,flow"`
	Impl  *int        `yaml:"impl,omitempty"`
	Pivot *[3]float64 `yaml:"pivot,omitempty,flow"`
	LOD   string      `yaml:"lod,omitempty"`
}

type Attribute struct {
	Class   string `yaml:"class"`
	Name    string `yaml:"name"`
	Storage string `yaml:"storage"`
	Tuple   int    `yaml:"tuple,omitempty"`
	Type    string `yaml:"type,omitempty"`
	// NonTransforming marks attributes copied without transforming.
	NonTransforming bool `yaml:"non_transforming,omitempty"`

	Floats  []float64 `yaml:"floats,omitempty,flow"`
	Ints    []int64   `yaml:"ints,omitempty,flow"`
	Strings []string  `yaml:"strings,omitempty,flow"`
}

type Group struct {
	Class   string `yaml:"class"`
	Name    string `yaml:"name"`
	Members []int  `yaml:"members,flow"`
}

type EdgeGroup struct {
	Name  string   `yaml:"name"`
	Edges [][2]int `yaml:"edges,flow"`
}

type Packed struct {
	Kind     string `yaml:"kind"`
	Geometry *File  `yaml:"geometry"`
}

// Read decodes one document.
func Read(r io.Reader) (*geo.Document, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("geoio: decode: %w", err)
	}
	return f.Document()
}

func ReadFile(path string) (*geo.Document, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geoio: open %s: %w", path, err)
	}
	defer fh.Close()
	d, err := Read(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Write encodes d.
func Write(w io.Writer, d *geo.Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromDocument(d)); err != nil {
		return fmt.Errorf("geoio: encode: %w", err)
	}
	return enc.Close()
}

func WriteFile(path string, d *geo.Document) error {
	fh, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("geoio: create %s: %w", path, err)
	}
	if err := Write(fh, d); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}

// Document builds the in-memory document described by f.
func (f *File) Document() (*geo.Document, error) {
	if f.Version > Version {
		return nil, fmt.Errorf("%w: version %d is newer than %d", ErrFormat, f.Version, Version)
	}
	if f.Points < 0 {
		return nil, fmt.Errorf("%w: negative point count", ErrFormat)
	}

	impls := make([]*geo.PackedImpl, len(f.Packed))
	for i, p := range f.Packed {
		var g *geo.Document
		if p.Geometry != nil {
			var err error
			if g, err = p.Geometry.Document(); err != nil {
				return nil, fmt.Errorf("packed %d: %w", i, err)
			}
		}
		kind := p.Kind
		if kind == "" {
			kind = geo.PackedGeometry
		}
		impls[i] = geo.NewPackedImpl(kind, g)
	}

	d := geo.New()
	d.AppendPointBlock(f.Points)
	for i, p := range f.Primitives {
		if err := f.addPrimitive(d, impls, p); err != nil {
			return nil, fmt.Errorf("primitive %d: %w", i, err)
		}
	}
	for _, a := range f.Attributes {
		if err := addAttribute(d, a); err != nil {
			return nil, fmt.Errorf("attribute %s %q: %w", a.Class, a.Name, err)
		}
	}
	for _, g := range f.Groups {
		o, err := geo.ParseOwner(g.Class)
		if err != nil || o == geo.Detail {
			return nil, fmt.Errorf("%w: group %q has class %q", ErrFormat, g.Name, g.Class)
		}
		grp := d.AddGroup(o, g.Name)
		for _, m := range g.Members {
			if m < 0 || m >= d.Count(o) {
				return nil, fmt.Errorf("%w: group %q member %d out of range", ErrFormat, g.Name, m)
			}
			grp.Set(m, true)
		}
	}
	for _, eg := range f.EdgeGroups {
		grp := d.AddEdgeGroup(eg.Name)
		for _, e := range eg.Edges {
			if e[0] < 0 || e[1] < 0 || e[0] >= f.Points || e[1] >= f.Points {
				return nil, fmt.Errorf("%w: edge group %q edge %v out of range", ErrFormat, eg.Name, e)
			}
			grp.Add(geo.Edge(e))
		}
	}
	return d, nil
}

func (f *File) addPrimitive(d *geo.Document, impls []*geo.PackedImpl, p Primitive) error {
	t, err := geo.ParsePrimType(p.Type)
	if err != nil {
		return err
	}
	for _, pt := range p.Points {
		if pt < 0 || pt >= f.Points {
			return fmt.Errorf("%w: point %d out of range", ErrFormat, pt)
		}
	}
	prim := d.AppendPrimitive(t, p.Closed, p.Points)
	pd := d.PrimitiveData(prim)
	if pd == nil {
		return nil
	}
	if p.Local != nil {
		pd.Local = mathutil.Mat3(*p.Local)
	}
	if p.Pivot != nil {
		pd.Pivot = mathutil.Vec3(*p.Pivot)
	}
	if p.LOD != "" {
		if pd.LOD, err = geo.ParseLOD(p.LOD); err != nil {
			return err
		}
	}
	if p.Impl != nil {
		i := *p.Impl
		if i < 0 || i >= len(impls) {
			return fmt.Errorf("%w: packed reference %d out of range", ErrFormat, i)
		}
		pd.Impl = impls[i]
		pd.Impl.AddRef(1)
	}
	return nil
}

func addAttribute(d *geo.Document, fa Attribute) error {
	o, err := geo.ParseOwner(fa.Class)
	if err != nil {
		return err
	}
	s, err := geo.ParseStorage(fa.Storage)
	if err != nil {
		return err
	}
	ti, err := geo.ParseTypeInfo(fa.Type)
	if err != nil {
		return err
	}
	tuple := max(fa.Tuple, 1)
	n := d.Count(o)

	a := d.AddAttribute(o, fa.Name, s, tuple)
	a.SetTypeInfo(ti)
	a.SetNonTransforming(fa.NonTransforming)
	switch {
	case s == geo.String:
		if len(fa.Strings) != n {
			return fmt.Errorf("%w: %d strings for %d elements", ErrFormat, len(fa.Strings), n)
		}
		for i, v := range fa.Strings {
			a.SetStr(i, v)
		}
	case s.IsInt():
		if len(fa.Ints) != n*tuple {
			return fmt.Errorf("%w: %d ints for %d elements of %d", ErrFormat, len(fa.Ints), n, tuple)
		}
		for i := 0; i < n; i++ {
			for c := 0; c < tuple; c++ {
				a.SetInt(i, c, fa.Ints[i*tuple+c])
			}
		}
	default:
		if len(fa.Floats) != n*tuple {
			return fmt.Errorf("%w: %d floats for %d elements of %d", ErrFormat, len(fa.Floats), n, tuple)
		}
		for i := 0; i < n; i++ {
			a.SetTuple(i, fa.Floats[i*tuple:(i+1)*tuple])
		}
	}
	return nil
}

// FromDocument describes d. Attributes and groups are listed by class,
// then by name.
func FromDocument(d *geo.Document) *File {
	f := &File{Version: Version, Points: d.NumPoints()}
	implIndex := map[*geo.PackedImpl]int{}

	for prim := 0; prim < d.NumPrimitives(); prim++ {
		p := Primitive{
			Type:   d.PrimitiveType(prim).String(),
			Closed: d.IsClosed(prim),
			Points: d.PointsOfPrimitive(prim),
		}
		if pd := d.PrimitiveData(prim); pd != nil {
			local := [9]float64(pd.Local)
			p.Local = &local
			if d.PrimitiveType(prim) == geo.PrimPacked {
				pivot := [3]float64(pd.Pivot)
				p.Pivot = &pivot
				p.LOD = pd.LOD.String()
			}
			if pd.Impl != nil {
				i, ok := implIndex[pd.Impl]
				if !ok {
					i = len(f.Packed)
					implIndex[pd.Impl] = i
					pk := Packed{Kind: pd.Impl.Kind()}
					if g := pd.Impl.Geometry(); g != nil {
						pk.Geometry = FromDocument(g)
					}
					f.Packed = append(f.Packed, pk)
				}
				p.Impl = &i
			}
		}
		f.Primitives = append(f.Primitives, p)
	}

	for _, o := range []geo.Owner{geo.Point, geo.Vertex, geo.Primitive, geo.Detail} {
		for _, a := range d.Attributes(o) {
			f.Attributes = append(f.Attributes, attribute(d, o, a))
		}
	}
	for _, o := range geo.ElementOwners {
		for _, g := range d.Groups(o) {
			f.Groups = append(f.Groups, Group{Class: o.String(), Name: g.Name(), Members: g.Offsets()})
		}
	}
	for _, eg := range d.EdgeGroups() {
		fe := EdgeGroup{Name: eg.Name()}
		edges := eg.Edges()
		slices.SortFunc(edges, func(a, b geo.Edge) int {
			if c := cmp.Compare(a[0], b[0]); c != 0 {
				return c
			}
			return cmp.Compare(a[1], b[1])
		})
		for _, e := range edges {
			fe.Edges = append(fe.Edges, [2]int(e))
		}
		f.EdgeGroups = append(f.EdgeGroups, fe)
	}
	return f
}

func attribute(d *geo.Document, o geo.Owner, a *geo.Attribute) Attribute {
	fa := Attribute{
		Class:           o.String(),
		Name:            a.Name(),
		Storage:         a.Storage().String(),
		Type:            a.TypeInfo().String(),
		NonTransforming: !a.NeedsTransform(),
	}
	if a.TypeInfo() == geo.TypeVoid {
		fa.Type = ""
	}
	n := d.Count(o)
	if a.Storage() == geo.String {
		fa.Strings = make([]string, n)
		for i := range fa.Strings {
			fa.Strings[i] = a.Str(i)
		}
		return fa
	}
	t := a.TupleSize()
	fa.Tuple = t
	if a.Storage().IsInt() {
		fa.Ints = make([]int64, 0, n*t)
		for i := 0; i < n; i++ {
			for c := 0; c < t; c++ {
				fa.Ints = append(fa.Ints, a.Int(i, c))
			}
		}
		return fa
	}
	fa.Floats = make([]float64, 0, n*t)
	for i := 0; i < n; i++ {
		fa.Floats = append(fa.Floats, a.Tuple(i)...)
	}
	return fa
}
