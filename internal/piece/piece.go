// Package piece partitions a source document into pieces keyed by an
// identifying attribute, and maps target points onto those pieces.
package piece

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"copytopoints/internal/geo"
)

var (
	// ErrKeyType is returned for a float or non-point identifying attribute.
	ErrKeyType = errors.New("piece: identifying attribute must be an integer or string")
	// ErrKeyMissing is returned when the identifying attribute cannot be
	// resolved: absent on the target, or a string key with no source
	// attribute of the same name.
	ErrKeyMissing = errors.New("piece: identifying attribute not found")
)

// IntSentinel and StrSentinel are key values that never match.
const (
	IntSentinel int64 = math.MinInt64
	StrSentinel       = ""
)

// Piece is the set of source elements sharing one key value.
type Piece struct {
	// RefCount is the number of target points mapping to this piece.
	RefCount int
	// Offsets lists source offsets per element class, in offset order for
	// points and primitives and in primitive order for vertices.
	Offsets [geo.NumElementOwners][]int
	// RelVtxToPt maps each piece vertex to its index in Offsets[geo.Point].
	RelVtxToPt []int

	// Build data, filled by ComputeBuildData.
	SharedPoints     bool
	ContiguousPoints bool
	VertexCounts     []int
	Types            []geo.PrimTypeRun
	ClosedSpans      []int
}

func (p *Piece) Count(o geo.Owner) int { return len(p.Offsets[o]) }

// Partition is the result of matching target keys against the source.
type Partition struct {
	Pieces        []Piece
	TargetToPiece []int
	// Targets is the narrowed target point list: targets whose key matched
	// no source element are removed.
	Targets []int
	// SourceOwner is the class the source key was read from.
	SourceOwner geo.Owner
	// SourceKey is the source attribute used, nil for the primitive index
	// fallback.
	SourceKey *geo.Attribute

	// selPrims masks the selected source primitives, nil for all.
	selPrims []bool
}

// Input describes one partitioning request.
type Input struct {
	Source *geo.Document
	// Selections restrict the source; nil selects everything.
	SourcePoints *geo.Group
	SourcePrims  *geo.Group
	Targets      []int
	TargetKey    *geo.Attribute
}

// ResolveSourceKey finds the source attribute matching a target key.
// Integer keys look on primitives then points; string keys on primitives,
// vertices then points. A nil result with a nil error means integer keys
// index source primitives directly.
func ResolveSourceKey(src *geo.Document, targetKey *geo.Attribute) (*geo.Attribute, error) {
	if targetKey == nil {
		return nil, ErrKeyMissing
	}
	name := targetKey.Name()
	switch {
	case targetKey.Storage().IsInt():
		for _, o := range []geo.Owner{geo.Primitive, geo.Point} {
			if a := src.FindAttribute(o, name); a != nil && a.Storage().IsInt() {
				return a, nil
			}
		}
		return nil, nil
	case targetKey.Storage() == geo.String:
		for _, o := range []geo.Owner{geo.Primitive, geo.Vertex, geo.Point} {
			if a := src.FindAttribute(o, name); a != nil && a.Storage() == geo.String {
				return a, nil
			}
		}
		return nil, fmt.Errorf("%w: no source string attribute %q", ErrKeyMissing, name)
	}
	return nil, fmt.Errorf("%w: %q is %s", ErrKeyType, name, targetKey.Storage())
}

// Build matches target keys to source elements and returns the pieces
// sorted by key. Pieces without source elements are pruned and their
// targets dropped from the narrowed list.
func Build(in Input) (*Partition, error) {
	if in.TargetKey == nil {
		return nil, ErrKeyMissing
	}
	srcKey, err := ResolveSourceKey(in.Source, in.TargetKey)
	if err != nil {
		return nil, err
	}
	if in.TargetKey.Storage() == geo.String {
		return build(in, srcKey, func(a *geo.Attribute, i int) string { return a.Str(i) }, StrSentinel)
	}
	return build(in, srcKey, func(a *geo.Attribute, i int) int64 { return a.Int(i, 0) }, IntSentinel)
}

type entry struct {
	refs    int
	sources []int
	piece   int
}

func build[K cmp.Ordered](in Input, srcKey *geo.Attribute, get func(*geo.Attribute, int) K, sentinel K) (*Partition, error) {
	src := in.Source
	entries := make(map[K]*entry)
	selPoints, selPrims := selectionMasks(in)

	for _, pt := range in.Targets {
		k := get(in.TargetKey, pt)
		if k == sentinel {
			continue
		}
		e := entries[k]
		if e == nil {
			e = &entry{}
			entries[k] = e
			if srcKey == nil {
				// Integer key as a source primitive index.
				if idx, ok := any(k).(int64); ok && idx >= 0 && idx < int64(src.NumPrimitives()) {
					if selPrims == nil || selPrims[idx] {
						e.sources = append(e.sources, int(idx))
					}
				}
			}
		}
		e.refs++
	}

	owner := geo.Primitive
	if srcKey != nil {
		owner = srcKey.Owner()
		switch owner {
		case geo.Vertex:
			// Each primitive takes the key of its first vertex.
			owner = geo.Primitive
			for prim := 0; prim < src.NumPrimitives(); prim++ {
				if (selPrims != nil && !selPrims[prim]) || src.VertexCount(prim) == 0 {
					continue
				}
				addSource(entries, get(srcKey, src.VertexStart(prim)), sentinel, prim)
			}
		default:
			sel := selPrims
			if owner == geo.Point {
				sel = selPoints
			}
			for i, n := 0, src.Count(owner); i < n; i++ {
				if sel != nil && !sel[i] {
					continue
				}
				addSource(entries, get(srcKey, i), sentinel, i)
			}
		}
	}

	keys := make([]K, 0, len(entries))
	for k, e := range entries {
		if len(e.sources) == 0 {
			delete(entries, k)
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)

	part := &Partition{
		Pieces:      make([]Piece, len(keys)),
		SourceOwner: owner,
		SourceKey:   srcKey,
		selPrims:    selPrims,
	}
	for i, k := range keys {
		e := entries[k]
		e.piece = i
		part.Pieces[i].RefCount = e.refs
		part.Pieces[i].Offsets[owner] = e.sources
	}
	part.Targets = make([]int, 0, len(in.Targets))
	part.TargetToPiece = make([]int, 0, len(in.Targets))
	for _, pt := range in.Targets {
		e := entries[get(in.TargetKey, pt)]
		if e == nil {
			continue
		}
		part.Targets = append(part.Targets, pt)
		part.TargetToPiece = append(part.TargetToPiece, e.piece)
	}
	return part, nil
}

func addSource[K comparable](entries map[K]*entry, k, sentinel K, off int) {
	if k == sentinel {
		return
	}
	if e := entries[k]; e != nil {
		e.sources = append(e.sources, off)
	}
}
