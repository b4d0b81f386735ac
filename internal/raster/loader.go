package raster

import (
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"os"
	"time"

	"github.com/nordsat/world-mosaic/internal/grid"
)

// ErrTileUnavailable marks a tile that cannot be read at all, whether
// missing, unreadable or undecodable. Callers distinguish it from
// structural errors such as a dimension mismatch.
var ErrTileUnavailable = errors.New("tile unavailable")

// Tile is a loaded tile raster plus the metadata the aggregator keeps
// alongside it.
type Tile struct {
	Raster    *Raster
	Path      string
	Satellite string
	Time      time.Time
}

// LoadTile decodes the PNG at path into a raster on the given grid,
// normalizing channels to 0..1. When the path names a satellite present
// in limits, alpha is forced to 0 across the columns outside that
// satellite's longitude range. Occlusion is derived from the final
// alpha, so masked columns come back occluded.
func LoadTile(path string, at time.Time, def grid.Definition, limits map[string]grid.LonRange) (Tile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tile{}, fmt.Errorf("open tile %s: %w: %w", path, ErrTileUnavailable, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return Tile{}, fmt.Errorf("decode tile %s: %w: %w", path, ErrTileUnavailable, err)
	}

	b := img.Bounds()
	if b.Dx() != def.Width || b.Dy() != def.Height {
		return Tile{}, fmt.Errorf("tile %s is %dx%d, area %s wants %dx%d",
			path, b.Dx(), b.Dy(), def.Name, def.Width, def.Height)
	}

	ras := New(def.Width, def.Height)
	for y := 0; y < def.Height; y++ {
		for x := 0; x < def.Width; x++ {
			// NRGBA keeps the stored channel values. Premultiplied
			// conversions would zero out colors under transparent pixels.
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := ras.Index(x, y)
			ras.Chans[ChRed][i] = float64(c.R) / 255.0
			ras.Chans[ChGreen][i] = float64(c.G) / 255.0
			ras.Chans[ChBlue][i] = float64(c.B) / 255.0
			ras.Chans[ChAlpha][i] = float64(c.A) / 255.0
		}
	}

	sat, ok := grid.SatelliteFromPath(path, limits)
	if ok {
		maskColumns(ras, grid.MaskIntervals(def.Width, limits[sat]))
	}

	alpha := ras.Chans[ChAlpha]
	for i := range alpha {
		ras.Occluded[i] = alpha[i] == 0
	}

	return Tile{Raster: ras, Path: path, Satellite: sat, Time: at}, nil
}

// LoadMergeBase reads a previously written mosaic at path so new tiles
// can merge onto it. A missing or undecodable file is a fresh start and
// yields a nil raster; any other error means the file exists but cannot
// serve as a base, and the caller must not overwrite it.
func LoadMergeBase(path string, at time.Time, def grid.Definition, limits map[string]grid.LonRange) (*Raster, error) {
	tile, err := LoadTile(path, at, def, limits)
	if errors.Is(err, ErrTileUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tile.Raster, nil
}

// maskColumns zeroes alpha over the given column spans, clamping each
// span to the raster width.
func maskColumns(r *Raster, ivs []grid.Interval) {
	for _, iv := range ivs {
		lo := max(iv.Lo, 0)
		hi := min(iv.Hi, r.Width)
		for y := 0; y < r.Height; y++ {
			row := r.Chans[ChAlpha][y*r.Width : (y+1)*r.Width]
			for x := lo; x < hi; x++ {
				row[x] = 0
			}
		}
	}
}
