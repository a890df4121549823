package instance

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"copytopoints/internal/geo"
	"copytopoints/internal/propagate"
)

type patternTerm struct {
	exclude bool
	g       glob.Glob
}

// pattern is a compiled name pattern. Terms are applied in order and the
// last term matching a name decides whether it is in.
type pattern []patternTerm

func compilePattern(s string) (pattern, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' })
	p := make(pattern, 0, len(fields))
	for _, f := range fields {
		t := patternTerm{}
		if strings.HasPrefix(f, "^") {
			t.exclude = true
			f = f[1:]
		}
		if f == "" {
			continue
		}
		g, err := glob.Compile(f)
		if err != nil {
			return nil, fmt.Errorf("instance: bad pattern %q: %w", f, err)
		}
		t.g = g
		p = append(p, t)
	}
	return p, nil
}

func (p pattern) match(name string) bool {
	in := false
	for _, t := range p {
		if t.g.Match(name) {
			in = !t.exclude
		}
	}
	return in
}

// buildRequests resolves the request list against the target point
// attributes and groups. The last request matching a name wins. P is
// never taken from the target, and strings cannot be combined
// arithmetically so they are copied.
func buildRequests(target *geo.Document, reqs []AttribRequest) (attribs, groups propagate.TargetInfoMap, err error) {
	type compiled struct {
		req AttribRequest
		pat pattern
	}
	var active []compiled
	for _, r := range reqs {
		if !r.Use {
			continue
		}
		if r.ApplyTo != geo.Vertex && r.ApplyTo != geo.Point && r.ApplyTo != geo.Primitive {
			return nil, nil, fmt.Errorf("instance: cannot apply target attributes to %s", r.ApplyTo)
		}
		pat, err := compilePattern(r.Pattern)
		if err != nil {
			return nil, nil, err
		}
		active = append(active, compiled{r, pat})
	}

	attribs = propagate.TargetInfoMap{}
	groups = propagate.TargetInfoMap{}
	if len(active) == 0 {
		return attribs, groups, nil
	}
	lookup := func(name string) (propagate.TargetInfo, bool) {
		var info propagate.TargetInfo
		found := false
		for _, c := range active {
			if c.pat.match(name) {
				info = propagate.TargetInfo{CopyTo: c.req.ApplyTo, Method: c.req.Method}
				found = true
			}
		}
		return info, found
	}

	for _, a := range target.Attributes(geo.Point) {
		if a.Name() == geo.PName {
			continue
		}
		info, ok := lookup(a.Name())
		if !ok {
			continue
		}
		if !a.IsNumeric() && info.Method != propagate.None {
			info.Method = propagate.Copy
		}
		attribs[a.Name()] = info
	}
	for _, g := range target.Groups(geo.Point) {
		if info, ok := lookup(g.Name()); ok {
			groups[g.Name()] = info
		}
	}
	return attribs, groups, nil
}
