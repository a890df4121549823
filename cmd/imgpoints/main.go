package main

import (
	"flag"
	"fmt"
	"os"

	"copytopoints/internal/geoio"
	"copytopoints/internal/imagepoints"
)

func main() {
	maxDim := flag.Int("size", 64, "Longest side of the point grid in pixels")
	spacing := flag.Float64("spacing", 1, "Distance between neighbouring points")
	cutoff := flag.Int("cutoff", 0, "Drop pixels with alpha at or below this value")
	variants := flag.Int("variants", 0, "Split luminance into this many variant ids (0 = off)")
	variantAttrib := flag.String("variant-attrib", "variant", "Name of the variant id attribute")
	scaleByLuma := flag.Bool("luma-scale", false, "Scale pscale by pixel luminance")
	minCluster := flag.Float64("min-cluster", 0, "Remove opaque clusters smaller than this fraction of the largest")
	maskPath := flag.String("mask", "", "Also write the alpha mask of the grid (.tga or .webp)")
	flag.Parse()

	if flag.NArg() != 2 {
		fmt.Fprintln(os.Stderr, "Usage: imgpoints [flags] <image> <output.yaml>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *cutoff < 0 || *cutoff > 255 {
		fmt.Fprintln(os.Stderr, "Error: -cutoff must be within 0-255")
		os.Exit(2)
	}

	img, err := imagepoints.Load(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	w, h := imagepoints.GridSize(img, *maxDim)
	grid := imagepoints.Resample(img, w, h)
	if *minCluster > 0 {
		grid = imagepoints.RemoveSmallClusters(grid, uint8(*cutoff), *minCluster)
	}

	doc := imagepoints.Points(grid, imagepoints.Options{
		Spacing:       *spacing,
		Cutoff:        uint8(*cutoff),
		Variants:      *variants,
		VariantAttrib: *variantAttrib,
		ScaleByLuma:   *scaleByLuma,
	})
	if err := geoio.WriteFile(flag.Arg(1), doc); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%dx%d grid -> %d points -> %s\n", w, h, doc.NumPoints(), flag.Arg(1))

	if *maskPath != "" {
		if err := imagepoints.Save(*maskPath, imagepoints.Mask(grid, uint8(*cutoff))); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Mask -> %s\n", *maskPath)
	}
}
