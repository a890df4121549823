package instance

import (
	"errors"
	"fmt"

	"copytopoints/internal/geo"
	"copytopoints/internal/piece"
)

var (
	// ErrIDAttribType is returned when the identifying attribute is not an
	// integer or string.
	ErrIDAttribType = errors.New("instance: identifying attribute has an unusable type")
	// ErrIDAttribMissing is returned when the identifying attribute is
	// absent on the target, or a string key has no source attribute.
	ErrIDAttribMissing = errors.New("instance: identifying attribute not found")
)

func keyError(name string, err error) error {
	switch {
	case errors.Is(err, piece.ErrKeyType):
		return fmt.Errorf("%w: %q: %w", ErrIDAttribType, name, err)
	case errors.Is(err, piece.ErrKeyMissing):
		return fmt.Errorf("%w: %q: %w", ErrIDAttribMissing, name, err)
	}
	return err
}

// partition returns the pieces for this invocation, rebuilding them when
// stale. force marks a change the caller already detected.
func (c *Cache) partition(src, target *geo.Document, targets []int, srcPoints, srcPrims *geo.Group, p Params, force bool) (*piece.Partition, bool, error) {
	key := target.FindAttribute(geo.Point, p.IDAttrib)
	if key == nil {
		return nil, false, fmt.Errorf("%w: no target point attribute %q", ErrIDAttribMissing, p.IDAttrib)
	}
	srcKey, err := piece.ResolveSourceKey(src, key)
	if err != nil {
		return nil, false, keyError(p.IDAttrib, err)
	}
	srcOwner, srcID := geo.InvalidOwner, geo.NoToken
	if srcKey != nil {
		srcOwner, srcID = srcKey.Owner(), srcKey.DataID()
	}

	stale := force || c.part == nil || c.partKey != p.IDAttrib ||
		key.DataID() != c.targetKeyID || srcOwner != c.srcKeyOwner || srcID != c.srcKeyID
	if !stale {
		return c.part, false, nil
	}

	part, err := piece.Build(piece.Input{
		Source:       src,
		SourcePoints: srcPoints,
		SourcePrims:  srcPrims,
		Targets:      targets,
		TargetKey:    key,
	})
	if err != nil {
		return nil, false, keyError(p.IDAttrib, err)
	}
	part.Expand(src)
	if !p.Pack {
		for i := range part.Pieces {
			part.Pieces[i].ComputeBuildData(src)
		}
	}

	c.part = part
	c.partKey = p.IDAttrib
	c.targetKeyID = key.DataID()
	c.srcKeyOwner, c.srcKeyID = srcOwner, srcID
	return part, true, nil
}
