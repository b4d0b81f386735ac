// Package raster holds the in-memory image representation shared by the
// tile loader and the compositor: four float64 channels normalized to
// 0..1, plus a per-pixel occlusion map tracking where a raster carries
// no usable data.
package raster

// Channel indices into Raster.Chans.
const (
	ChRed = iota
	ChGreen
	ChBlue
	ChAlpha
)

// NumChans is the number of channels a raster carries.
const NumChans = 4

// Raster is a Width×Height RGBA image stored row-major. Occlusion
// tracks alpha: a pixel decoded with alpha 0 is occluded, and occluded
// pixels are written back with alpha 0.
type Raster struct {
	Width    int
	Height   int
	Chans    [NumChans][]float64
	Occluded []bool
}

// New returns a zeroed raster. Every pixel starts occluded, consistent
// with its zero alpha.
func New(width, height int) *Raster {
	r := &Raster{Width: width, Height: height}
	n := width * height
	for c := range r.Chans {
		r.Chans[c] = make([]float64, n)
	}
	r.Occluded = make([]bool, n)
	for i := range r.Occluded {
		r.Occluded[i] = true
	}
	return r
}

// Index returns the slice offset of pixel (x, y).
func (r *Raster) Index(x, y int) int { return y*r.Width + x }

// SetPixel stores one RGBA pixel and derives its occlusion from alpha.
func (r *Raster) SetPixel(x, y int, red, green, blue, alpha float64) {
	i := r.Index(x, y)
	r.Chans[ChRed][i] = red
	r.Chans[ChGreen][i] = green
	r.Chans[ChBlue][i] = blue
	r.Chans[ChAlpha][i] = alpha
	r.Occluded[i] = alpha == 0
}
