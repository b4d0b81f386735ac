package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
)

// SaveMosaic encodes the raster as a PNG at path, creating parent
// directories as needed. Occluded pixels are written with alpha 0 so
// that loading the file back reconstructs the same occlusion map.
func SaveMosaic(path string, r *Raster) error {
	img := image.NewNRGBA(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			i := r.Index(x, y)
			a := r.Chans[ChAlpha][i]
			if r.Occluded[i] {
				a = 0
			}
			img.SetNRGBA(x, y, color.NRGBA{
				R: quantize(r.Chans[ChRed][i]),
				G: quantize(r.Chans[ChGreen][i]),
				B: quantize(r.Chans[ChBlue][i]),
				A: quantize(a),
			})
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create mosaic %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode mosaic %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close mosaic %s: %w", path, err)
	}
	return nil
}

// quantize maps a 0..1 channel value to 8 bits. Blend arithmetic can
// push values slightly outside the range, so clamp before rounding.
func quantize(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(math.Round(v * 255.0))
}
