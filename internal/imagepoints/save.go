package imagepoints

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/ftrvxmtrx/tga"
)

// Save writes img as lossless WebP, or as TGA when path ends in .tga.
func Save(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("imagepoints: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("imagepoints: create %s: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".tga") {
		if err := tga.Encode(f, img); err != nil {
			return fmt.Errorf("imagepoints: TGA encode: %w", err)
		}
	} else if err := nativewebp.Encode(f, img, nil); err != nil {
		return fmt.Errorf("imagepoints: WebP encode: %w", err)
	}
	return f.Close()
}
