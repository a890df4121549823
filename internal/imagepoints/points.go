// Package imagepoints turns images into target point grids: one point per
// visible pixel, carrying the pixel's color, alpha and brightness.
package imagepoints

import (
	"image"

	"copytopoints/internal/geo"
	"copytopoints/internal/mathutil"
	"copytopoints/internal/parallel"
)

// Attribute names written on the grid points.
const (
	AttrCd     = "Cd"
	AttrAlpha  = "Alpha"
	AttrPScale = "pscale"
	AttrPixel  = "pixel"
)

const pointsParallelThreshold = 4096

type Options struct {
	// Spacing is the distance between neighbouring points.
	Spacing float64
	// Cutoff drops pixels whose alpha is at or below it.
	Cutoff uint8
	// Variants, when positive, writes an integer attribute VariantAttrib
	// that splits luminance into that many bands.
	Variants      int
	VariantAttrib string
	// ScaleByLuma sets pscale to Spacing times the pixel luminance instead
	// of Spacing.
	ScaleByLuma bool
}

// Points builds a point cloud in the XY plane from img. Row 0 of the image
// is the top row, so it gets the largest Y. The grid is centered on the
// origin.
func Points(img *image.NRGBA, opts Options) *geo.Document {
	if opts.Spacing <= 0 {
		opts.Spacing = 1
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var kept []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if img.Pix[img.PixOffset(b.Min.X+x, b.Min.Y+y)+3] > opts.Cutoff {
				kept = append(kept, y*w+x)
			}
		}
	}

	d := geo.New()
	d.AppendPointBlock(len(kept))
	cd := d.AddAttribute(geo.Point, AttrCd, geo.Float32, 3)
	cd.SetTypeInfo(geo.TypeColor)
	alpha := d.AddAttribute(geo.Point, AttrAlpha, geo.Float32, 1)
	pscale := d.AddAttribute(geo.Point, AttrPScale, geo.Float32, 1)
	pixel := d.AddAttribute(geo.Point, AttrPixel, geo.Int32, 2)
	var variant *geo.Attribute
	if opts.Variants > 0 && opts.VariantAttrib != "" {
		variant = d.AddAttribute(geo.Point, opts.VariantAttrib, geo.Int32, 1)
	}
	p := d.P()

	ox := float64(w-1) * opts.Spacing / 2
	oy := float64(h-1) * opts.Spacing / 2
	parallel.For(len(kept), pointsParallelThreshold, pointsParallelThreshold, func(lo, hi int) {
		for pt := lo; pt < hi; pt++ {
			x, y := kept[pt]%w, kept[pt]/w
			i := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			r := float64(img.Pix[i]) / 255
			g := float64(img.Pix[i+1]) / 255
			bl := float64(img.Pix[i+2]) / 255
			a := float64(img.Pix[i+3]) / 255
			luma := 0.2126*r + 0.7152*g + 0.0722*bl

			p.SetVec3(pt, mathutil.Vec3{float64(x)*opts.Spacing - ox, oy - float64(y)*opts.Spacing, 0})
			cd.SetVec3(pt, mathutil.Vec3{r, g, bl})
			alpha.SetFloat(pt, 0, a)
			s := opts.Spacing
			if opts.ScaleByLuma {
				s *= luma
			}
			pscale.SetFloat(pt, 0, s)
			pixel.SetInt(pt, 0, int64(x))
			pixel.SetInt(pt, 1, int64(y))
			if variant != nil {
				band := min(int(luma*float64(opts.Variants)), opts.Variants-1)
				variant.SetInt(pt, 0, int64(band))
			}
		}
	})
	return d
}

// Mask returns img with every dropped pixel cleared, as a preview of which
// pixels became points.
func Mask(img *image.NRGBA, cutoff uint8) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(b)
	copy(out.Pix, img.Pix)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := out.PixOffset(x, y)
			if out.Pix[i+3] <= cutoff {
				clear(out.Pix[i : i+4])
			}
		}
	}
	return out
}
