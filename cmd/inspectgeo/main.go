package main

import (
	"fmt"
	"os"

	"copytopoints/internal/geo"
	"copytopoints/internal/geoio"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: inspectgeo <doc.yaml>...")
		os.Exit(2)
	}
	for _, path := range os.Args[1:] {
		d, err := geoio.ReadFile(path)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("=== %s ===\n", path)
		inspect(d)
	}
}

func inspect(d *geo.Document) {
	fmt.Printf("Points: %d, Vertices: %d, Primitives: %d\n", d.NumPoints(), d.NumVertices(), d.NumPrimitives())
	if runs := d.PrimitiveTypeRuns(); len(runs) > 0 {
		fmt.Print("  Prim runs:")
		for _, r := range runs {
			fmt.Printf(" %s x%d", r.Type, r.Count)
		}
		fmt.Println()
	}

	b := d.Bounds()
	if b.Valid {
		s := b.Size()
		fmt.Printf("  BBox: X[%.3f, %.3f] Y[%.3f, %.3f] Z[%.3f, %.3f]\n",
			b.Min[0], b.Max[0], b.Min[1], b.Max[1], b.Min[2], b.Max[2])
		fmt.Printf("  Size: %.3f x %.3f x %.3f\n", s[0], s[1], s[2])
	}

	for _, o := range []geo.Owner{geo.Point, geo.Vertex, geo.Primitive, geo.Detail} {
		for _, a := range d.Attributes(o) {
			extra := ""
			if a.TypeInfo() != geo.TypeVoid {
				extra += " " + a.TypeInfo().String()
			}
			if !a.NeedsTransform() {
				extra += " non-transforming"
			}
			fmt.Printf("  %-9s attrib %-12s %s[%d]%s\n", o, a.Name(), a.Storage(), a.TupleSize(), extra)
		}
	}
	for _, o := range geo.ElementOwners {
		for _, g := range d.Groups(o) {
			fmt.Printf("  %-9s group  %-12s %d/%d\n", o, g.Name(), g.Entries(), g.Len())
		}
	}
	for _, g := range d.EdgeGroups() {
		fmt.Printf("  edge      group  %-12s %d edges\n", g.Name(), g.Entries())
	}

	seen := map[*geo.PackedImpl]bool{}
	var impls []*geo.PackedImpl
	for prim := 0; prim < d.NumPrimitives(); prim++ {
		if pd := d.PrimitiveData(prim); pd != nil && pd.Impl != nil && !seen[pd.Impl] {
			seen[pd.Impl] = true
			impls = append(impls, pd.Impl)
		}
	}
	for _, impl := range impls {
		g := impl.Geometry()
		fmt.Printf("  Packed %q: %d refs, %d points, %d primitives\n", impl.Kind(), impl.Refs(), g.NumPoints(), g.NumPrimitives())
	}
}
