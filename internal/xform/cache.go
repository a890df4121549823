// Package xform derives and caches a per-target-point instance transform.
//
// The double-precision matrices and translates are the master copy. Float32
// mirrors, inverses and quaternions are derived from them on demand.
package xform

import (
	"copytopoints/internal/geo"
	"copytopoints/internal/mathutil"
	"copytopoints/internal/parallel"
)

// Needed flags the derived arrays an attribute pass will read.
type Needed uint8

const (
	NeedTranslate32 Needed = 1 << iota
	NeedMatrix32
	NeedInverse32
	NeedInverse64
	NeedQuat32
	NeedQuat64
)

// Options are the per-invocation transform toggles.
type Options struct {
	// Transform enables orientation and scale attributes. When false only
	// P is used.
	Transform bool
	// ImplicitN derives N from the target primitives when N is absent.
	ImplicitN bool
}

// Cache holds the transforms of the previous invocation and the tokens
// they were computed from.
type Cache struct {
	size           int
	usingImplicitN bool
	primListID     geo.Token
	topologyID     geo.Token
	pID            geo.Token
	attribIDs      [numInstanceAttribs]geo.Token

	matrices     []mathutil.Mat3
	translates   []mathutil.Vec3
	matrices32   []mathutil.Mat3F
	translates32 []mathutil.Vec3F
	inverses     []mathutil.Mat3
	inverses32   []mathutil.Mat3F
	quats        []mathutil.Quat
	quats32      []mathutil.QuatF
}

func (c *Cache) Len() int { return c.size }

// HasMatrices reports whether the transforms have a linear part. Without
// one, instances are only translated.
func (c *Cache) HasMatrices() bool { return c.matrices != nil }

func (c *Cache) UsingImplicitN() bool { return c.usingImplicitN }

func (c *Cache) Matrices() []mathutil.Mat3      { return c.matrices }
func (c *Cache) Translates() []mathutil.Vec3    { return c.translates }
func (c *Cache) Matrices32() []mathutil.Mat3F   { return c.matrices32 }
func (c *Cache) Translates32() []mathutil.Vec3F { return c.translates32 }
func (c *Cache) Inverses() []mathutil.Mat3      { return c.inverses }
func (c *Cache) Inverses32() []mathutil.Mat3F   { return c.inverses32 }
func (c *Cache) Quats() []mathutil.Quat         { return c.quats }
func (c *Cache) Quats32() []mathutil.QuatF      { return c.quats32 }

// Clear drops every array and forgets the cached tokens.
func (c *Cache) Clear() {
	*c = Cache{}
}

func (c *Cache) clearArrays() {
	c.size = 0
	c.matrices, c.translates = nil, nil
	c.matrices32, c.translates32 = nil, nil
	c.inverses, c.inverses32 = nil, nil
	c.quats, c.quats32 = nil, nil
}

// Setup recomputes the transforms for the listed target points if anything
// they depend on changed, and reports whether they changed. A true changed
// argument forces a recompute.
func (c *Cache) Setup(target *geo.Document, points []int, opts Options, changed bool) bool {
	n := len(points)
	if c.size > 0 && n != c.size {
		changed = true
		c.clearArrays()
	}
	if n == 0 {
		c.clearArrays()
		return changed
	}

	var ia instanceAttribs
	usingImplicitN := false
	if opts.Transform {
		ia = findInstanceAttribs(target)
		usingImplicitN = ia.get(0) == nil && opts.ImplicitN && target.NumPrimitives() != 0
	}
	changed = changed || usingImplicitN != c.usingImplicitN
	c.usingImplicitN = usingImplicitN

	if usingImplicitN {
		changed = changed || target.PrimListID() != c.primListID || target.TopologyID() != c.topologyID
		c.primListID = target.PrimListID()
		c.topologyID = target.TopologyID()
	} else {
		c.primListID, c.topologyID = geo.NoToken, geo.NoToken
	}

	ids := ia.tokens()
	p := target.P()
	changed = changed || !c.pID.IsValid() || p.DataID() != c.pID || ids != c.attribIDs
	if !changed {
		return false
	}
	c.attribIDs = ids
	c.pID = p.DataID()
	c.size = n
	// Derived arrays are rebuilt from the new masters on the next Compute.
	c.matrices32, c.translates32 = nil, nil
	c.inverses, c.inverses32 = nil, nil
	c.quats, c.quats32 = nil, nil

	c.translates = resize(c.translates, n)
	translates := c.translates
	if !ia.hasAny() && !usingImplicitN {
		c.matrices = nil
		parallel.For(n, 1024, 512, func(lo, hi int) {
			for i := lo; i < hi; i++ {
				translates[i] = p.Vec3(points[i])
			}
		})
		return true
	}

	if usingImplicitN {
		ia.implicitN = target.PointNormals()
	}
	c.matrices = resize(c.matrices, n)
	matrices := c.matrices
	parallel.For(n, 512, 256, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			pt := points[i]
			matrices[i], translates[i] = ia.matrix(pt, p.Vec3(pt))
		}
	})
	return true
}

// Compute builds the derived arrays flagged in needed. Arrays that already
// exist are only refreshed when changed is true.
func (c *Cache) Compute(needed Needed, changed bool) {
	n := c.size
	if needed&NeedTranslate32 != 0 && n > 0 {
		compute := changed || c.translates32 == nil
		if c.translates32 == nil {
			c.translates32 = make([]mathutil.Vec3F, n)
		}
		if compute {
			src, dst := c.translates, c.translates32
			parallel.For(n, 1024, 512, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					dst[i] = src[i].F32()
				}
			})
		}
	}

	if c.matrices == nil {
		c.matrices32 = nil
		c.inverses, c.inverses32 = nil, nil
		c.quats, c.quats32 = nil, nil
		return
	}
	if n == 0 {
		return
	}
	m := c.matrices

	if needed&NeedMatrix32 != 0 {
		compute := changed || c.matrices32 == nil
		if c.matrices32 == nil {
			c.matrices32 = make([]mathutil.Mat3F, n)
		}
		if compute {
			dst := c.matrices32
			parallel.For(n, 1024, 512, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					dst[i] = m[i].F32()
				}
			})
		}
	}

	if needed&(NeedInverse32|NeedInverse64) != 0 {
		compute := changed
		if needed&NeedInverse32 != 0 && c.inverses32 == nil {
			c.inverses32 = make([]mathutil.Mat3F, n)
			compute = true
		}
		if needed&NeedInverse64 != 0 && c.inverses == nil {
			c.inverses = make([]mathutil.Mat3, n)
			compute = true
		}
		if compute {
			inv64, inv32 := c.inverses, c.inverses32
			parallel.For(n, 512, 256, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					inv := NormalMatrixInverse(m[i])
					if inv64 != nil {
						inv64[i] = inv
					}
					if inv32 != nil {
						inv32[i] = inv.F32()
					}
				}
			})
		}
	}

	if needed&(NeedQuat32|NeedQuat64) != 0 {
		compute := changed
		if needed&NeedQuat32 != 0 && c.quats32 == nil {
			c.quats32 = make([]mathutil.QuatF, n)
			compute = true
		}
		if needed&NeedQuat64 != 0 && c.quats == nil {
			c.quats = make([]mathutil.Quat, n)
			compute = true
		}
		if compute {
			q64, q32 := c.quats, c.quats32
			parallel.For(n, 512, 256, func(lo, hi int) {
				for i := lo; i < hi; i++ {
					q := mathutil.QuatFromMat3(m[i])
					if q64 != nil {
						q64[i] = q
					}
					if q32 != nil {
						q32[i] = q.F32()
					}
				}
			})
		}
	}
}

// NormalMatrixInverse inverts m for transforming normals. A singular m
// gives the identity, and a negative determinant negates the result so
// normals flip under reflection.
func NormalMatrixInverse(m mathutil.Mat3) mathutil.Mat3 {
	inv := m.Inverse()
	if m.Det() < 0 {
		inv = inv.Scale(-1)
	}
	return inv
}

func resize[T any](s []T, n int) []T {
	if cap(s) >= n {
		return s[:n]
	}
	return make([]T, n)
}
