package geo

import (
	"strconv"

	"copytopoints/internal/mathutil"
)

// Attribute is a named, typed array over one element class.
//
// The value array is a closed tagged union selected by Storage; exactly one
// of the slices is in use. Numeric values are stored tuple-interleaved:
// element i, component c lives at index i*TupleSize()+c.
type Attribute struct {
	name     string
	owner    Owner
	storage  Storage
	tuple    int
	typeInfo TypeInfo
	noXform  bool

	i32 []int32
	i64 []int64
	f32 []float32
	f64 []float64
	str []string

	dataID Token
	epoch  uint64
	doc    *Document
}

// NewDetachedAttribute makes an attribute owned by no document.
func NewDetachedAttribute(name string, owner Owner, storage Storage, tuple, n int) *Attribute {
	a := &Attribute{name: name, owner: owner, storage: storage, tuple: tuple, dataID: NewToken()}
	if storage == String {
		a.tuple = 1
	}
	a.resize(n)
	return a
}

func (a *Attribute) Name() string           { return a.name }
func (a *Attribute) Owner() Owner           { return a.owner }
func (a *Attribute) Storage() Storage       { return a.storage }
func (a *Attribute) TupleSize() int         { return a.tuple }
func (a *Attribute) TypeInfo() TypeInfo     { return a.typeInfo }
func (a *Attribute) IsNumeric() bool        { return a.storage != String }
func (a *Attribute) DataID() Token          { return a.dataID }
func (a *Attribute) SetTypeInfo(t TypeInfo) { a.typeInfo = t }

// NeedsTransform is false for attributes explicitly opted out of transforms.
func (a *Attribute) NeedsTransform() bool { return !a.noXform }

func (a *Attribute) SetNonTransforming(v bool) { a.noXform = v }

// BumpDataID issues a new version token. Inside a document edit epoch the
// first bump wins and later bumps in the same epoch are absorbed.
func (a *Attribute) BumpDataID() {
	a.doc.touch()
	if a.doc != nil && a.doc.epoch != 0 {
		if a.epoch == a.doc.epoch {
			return
		}
		a.epoch = a.doc.epoch
	}
	a.dataID = NewToken()
}

// Len is the number of elements.
func (a *Attribute) Len() int {
	switch a.storage {
	case Int32:
		return len(a.i32) / a.tuple
	case Int64:
		return len(a.i64) / a.tuple
	case Float32:
		return len(a.f32) / a.tuple
	case Float64:
		return len(a.f64) / a.tuple
	default:
		return len(a.str)
	}
}

// Raw arrays for bulk kernels. Only the one matching Storage is non-nil.
func (a *Attribute) I32() []int32   { return a.i32 }
func (a *Attribute) I64() []int64   { return a.i64 }
func (a *Attribute) F32() []float32 { return a.f32 }
func (a *Attribute) F64() []float64 { return a.f64 }
func (a *Attribute) Strs() []string { return a.str }

// Float reads component c of element i as float64. Strings parse or read as 0.
func (a *Attribute) Float(i, c int) float64 {
	switch a.storage {
	case Int32:
		return float64(a.i32[i*a.tuple+c])
	case Int64:
		return float64(a.i64[i*a.tuple+c])
	case Float32:
		return float64(a.f32[i*a.tuple+c])
	case Float64:
		return a.f64[i*a.tuple+c]
	default:
		v, _ := strconv.ParseFloat(a.str[i], 64)
		return v
	}
}

// SetFloat writes component c of element i, converting to the storage type.
func (a *Attribute) SetFloat(i, c int, v float64) {
	switch a.storage {
	case Int32:
		a.i32[i*a.tuple+c] = int32(v)
	case Int64:
		a.i64[i*a.tuple+c] = int64(v)
	case Float32:
		a.f32[i*a.tuple+c] = float32(v)
	case Float64:
		a.f64[i*a.tuple+c] = v
	default:
		a.str[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
}

// Int reads component c of element i as int64 without a float round trip.
func (a *Attribute) Int(i, c int) int64 {
	switch a.storage {
	case Int32:
		return int64(a.i32[i*a.tuple+c])
	case Int64:
		return a.i64[i*a.tuple+c]
	default:
		return int64(a.Float(i, c))
	}
}

func (a *Attribute) SetInt(i, c int, v int64) {
	switch a.storage {
	case Int32:
		a.i32[i*a.tuple+c] = int32(v)
	case Int64:
		a.i64[i*a.tuple+c] = v
	default:
		a.SetFloat(i, c, float64(v))
	}
}

func (a *Attribute) Str(i int) string {
	if a.storage == String {
		return a.str[i]
	}
	return strconv.FormatFloat(a.Float(i, 0), 'g', -1, 64)
}

func (a *Attribute) SetStr(i int, s string) {
	if a.storage == String {
		a.str[i] = s
		return
	}
	v, _ := strconv.ParseFloat(s, 64)
	a.SetFloat(i, 0, v)
}

// Vec3 reads the first three components of element i.
func (a *Attribute) Vec3(i int) mathutil.Vec3 {
	var v mathutil.Vec3
	for c := 0; c < 3 && c < a.tuple; c++ {
		v[c] = a.Float(i, c)
	}
	return v
}

func (a *Attribute) SetVec3(i int, v mathutil.Vec3) {
	for c := 0; c < 3 && c < a.tuple; c++ {
		a.SetFloat(i, c, v[c])
	}
}

// Tuple reads element i into a float64 slice of length TupleSize.
func (a *Attribute) Tuple(i int) []float64 {
	t := make([]float64, a.tuple)
	for c := range t {
		t[c] = a.Float(i, c)
	}
	return t
}

func (a *Attribute) SetTuple(i int, vals []float64) {
	for c := 0; c < a.tuple && c < len(vals); c++ {
		a.SetFloat(i, c, vals[c])
	}
}

// MatchesStorage reports whether values can be moved between a and o
// without conversion.
func (a *Attribute) MatchesStorage(o *Attribute) bool {
	return a.storage == o.storage && a.tuple == o.tuple
}

// CopyMetadata copies everything except storage and values.
func (a *Attribute) CopyMetadata(o *Attribute) {
	a.typeInfo = o.typeInfo
	a.noXform = o.noXform
}

// CopyElement copies element si of src into element di of a.
// Matching storage copies the tuple verbatim; otherwise the shared
// components are converted.
func (a *Attribute) CopyElement(di int, src *Attribute, si int) {
	if a.MatchesStorage(src) {
		t := a.tuple
		switch a.storage {
		case Int32:
			copy(a.i32[di*t:di*t+t], src.i32[si*t:si*t+t])
		case Int64:
			copy(a.i64[di*t:di*t+t], src.i64[si*t:si*t+t])
		case Float32:
			copy(a.f32[di*t:di*t+t], src.f32[si*t:si*t+t])
		case Float64:
			copy(a.f64[di*t:di*t+t], src.f64[si*t:si*t+t])
		default:
			a.str[di] = src.str[si]
		}
		return
	}
	if a.storage == String || src.storage == String {
		a.SetStr(di, src.Str(si))
		return
	}
	n := min(a.tuple, src.tuple)
	for c := 0; c < n; c++ {
		a.SetFloat(di, c, src.Float(si, c))
	}
}

// Replace makes a's values a copy of o's; o must match storage.
func (a *Attribute) Replace(o *Attribute) {
	a.storage = o.storage
	a.tuple = o.tuple
	a.i32 = append([]int32(nil), o.i32...)
	a.i64 = append([]int64(nil), o.i64...)
	a.f32 = append([]float32(nil), o.f32...)
	a.f64 = append([]float64(nil), o.f64...)
	a.str = append([]string(nil), o.str...)
	a.CopyMetadata(o)
}

// SetStorage converts the values to a new storage type in place.
func (a *Attribute) SetStorage(s Storage) {
	if s == a.storage {
		return
	}
	n := a.Len()
	b := &Attribute{storage: s, tuple: a.tuple}
	if s == String {
		b.tuple = 1
	}
	b.resize(n)
	for i := 0; i < n; i++ {
		b.CopyElement(i, a, i)
	}
	a.storage, a.tuple = b.storage, b.tuple
	a.i32, a.i64, a.f32, a.f64, a.str = b.i32, b.i64, b.f32, b.f64, b.str
}

func (a *Attribute) resize(n int) {
	t := a.tuple
	switch a.storage {
	case Int32:
		a.i32 = resizeSlice(a.i32, n*t)
	case Int64:
		a.i64 = resizeSlice(a.i64, n*t)
	case Float32:
		a.f32 = resizeSlice(a.f32, n*t)
	case Float64:
		a.f64 = resizeSlice(a.f64, n*t)
	default:
		a.str = resizeSlice(a.str, n)
	}
}

// compact keeps only the elements whose keep flag is set, in order.
func (a *Attribute) compact(keep []bool) {
	t := a.tuple
	switch a.storage {
	case Int32:
		a.i32 = compactTuples(a.i32, t, keep)
	case Int64:
		a.i64 = compactTuples(a.i64, t, keep)
	case Float32:
		a.f32 = compactTuples(a.f32, t, keep)
	case Float64:
		a.f64 = compactTuples(a.f64, t, keep)
	default:
		a.str = compactTuples(a.str, 1, keep)
	}
}

func (a *Attribute) clone(doc *Document, owner Owner, n int) *Attribute {
	c := &Attribute{
		name:     a.name,
		owner:    owner,
		storage:  a.storage,
		tuple:    a.tuple,
		typeInfo: a.typeInfo,
		noXform:  a.noXform,
		dataID:   NewToken(),
		doc:      doc,
	}
	c.resize(n)
	return c
}

func resizeSlice[T any](s []T, n int) []T {
	if n <= len(s) {
		var zero T
		for i := n; i < len(s); i++ {
			s[i] = zero
		}
		return s[:n]
	}
	if n <= cap(s) {
		return s[:n]
	}
	out := make([]T, n)
	copy(out, s)
	return out
}

func compactTuples[T any](s []T, t int, keep []bool) []T {
	w := 0
	for i, k := range keep {
		if !k {
			continue
		}
		if w != i {
			copy(s[w*t:w*t+t], s[i*t:i*t+t])
		}
		w++
	}
	return s[:w*t]
}
