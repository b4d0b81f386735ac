// Package compositor folds tile rasters into a running mosaic, either
// by hard gap-filling or by feathering tile edges with a smoothed
// per-pixel weight.
package compositor

import (
	"fmt"
	"math"

	"github.com/nordsat/world-mosaic/internal/raster"
)

// Config controls soft-edge blending. Widths are given in pixels on a
// 1000-pixel-wide reference grid and scale linearly with the actual
// grid width. Scale additionally normalizes tile brightness toward the
// base on each color channel.
type Config struct {
	ErosionWidth float64
	SmoothWidth  float64
	Scale        bool
}

// Merge folds tile into base and returns the combined raster. A nil
// base yields the tile unchanged. A nil cfg selects the hard gap-fill
// path. A pixel is occluded in the result only when it is occluded in
// both inputs, and the result alpha is the per-pixel maximum of the
// input alphas.
func Merge(base, tile *raster.Raster, cfg *Config) (*raster.Raster, error) {
	if tile == nil {
		return nil, fmt.Errorf("merge: nil tile")
	}
	if base == nil {
		return tile, nil
	}
	if base.Width != tile.Width || base.Height != tile.Height {
		return nil, fmt.Errorf("merge: raster dimensions differ: %dx%d vs %dx%d",
			base.Width, base.Height, tile.Width, tile.Height)
	}

	out := raster.New(base.Width, base.Height)
	for i := range out.Occluded {
		out.Occluded[i] = base.Occluded[i] && tile.Occluded[i]
	}

	if cfg == nil {
		fillGaps(out, base, tile)
	} else {
		blend(out, base, tile, cfg)
	}

	baseAlpha := base.Chans[raster.ChAlpha]
	tileAlpha := tile.Chans[raster.ChAlpha]
	outAlpha := out.Chans[raster.ChAlpha]
	for i := range outAlpha {
		outAlpha[i] = math.Max(baseAlpha[i], tileAlpha[i])
	}
	return out, nil
}

// fillGaps copies tile data where the base is occluded and base data
// where the tile is occluded. Pixels visible in both inputs are left
// at zero.
func fillGaps(out, base, tile *raster.Raster) {
	for c := 0; c < 3; c++ {
		dst := out.Chans[c]
		for i := range dst {
			if base.Occluded[i] {
				dst[i] = tile.Chans[c][i]
			}
			if tile.Occluded[i] {
				dst[i] = base.Chans[c][i]
			}
		}
	}
}

// blend mixes tile over base with a feathered weight, optionally
// normalizing tile brightness to the base first.
func blend(out, base, tile *raster.Raster, cfg *Config) {
	weight := blendWeights(base, tile, cfg)
	for c := 0; c < 3; c++ {
		scaling := 1.0
		if cfg.Scale {
			scaling = overlapScaling(base.Chans[c], tile.Chans[c], out.Occluded)
		}
		dst := out.Chans[c]
		for i := range dst {
			dst[i] = tile.Chans[c][i]*weight[i]/scaling + base.Chans[c][i]*(1-weight[i])
		}
	}
}

// blendWeights builds the tile's per-pixel contribution: 1 where the
// tile has data and 0 where it has none, eroded and box-smoothed so
// tile edges ramp over the base. Where the base itself is occluded the
// weight snaps back to the binary map, so a tile facing a gap is copied
// at full strength instead of fading into nothing.
func blendWeights(base, tile *raster.Raster, cfg *Config) []float64 {
	w, h := tile.Width, tile.Height
	erosionSize := int(cfg.ErosionWidth * float64(w) / 1000.0)
	smoothSize := int(cfg.SmoothWidth * float64(w) / 1000.0)

	hard := make([]float64, w*h)
	for i, occ := range tile.Occluded {
		if !occ {
			hard[i] = 1.0
		}
	}
	weight := boxFilter(erode(hard, w, h, erosionSize), w, h, smoothSize)
	for i, occ := range base.Occluded {
		if occ {
			weight[i] = hard[i]
		}
	}
	return weight
}

// overlapScaling returns the tile/base mean brightness ratio for one
// channel, taken over pixels visible in at least one input whose base
// value is non-zero. An empty sample set or a degenerate ratio yields
// 1.
func overlapScaling(baseCh, tileCh []float64, bothOccluded []bool) float64 {
	var sumBase, sumTile float64
	count := 0
	for i := range baseCh {
		if bothOccluded[i] || baseCh[i] == 0 {
			continue
		}
		sumBase += baseCh[i]
		sumTile += tileCh[i]
		count++
	}
	if count == 0 {
		return 1.0
	}
	scaling := (sumTile / float64(count)) / (sumBase / float64(count))
	if scaling == 0 || math.IsNaN(scaling) || math.IsInf(scaling, 0) {
		return 1.0
	}
	return scaling
}
