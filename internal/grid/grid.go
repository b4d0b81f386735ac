// Package grid describes the global equirectangular pixel grids that
// composites are rendered on, and the per-satellite longitude coverage
// used to mask tiles against each other.
package grid

import (
	"fmt"
	"sort"
	"strings"
)

// Definition is a named global grid. Longitude -180..180 maps linearly
// onto columns 0..Width, latitude onto rows 0..Height.
type Definition struct {
	Name   string
	Width  int
	Height int
}

// Validate reports whether the definition has usable dimensions.
func (d Definition) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("grid definition has no name")
	}
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("grid definition %q has invalid dimensions %dx%d", d.Name, d.Width, d.Height)
	}
	return nil
}

// Registry maps area names to grid definitions.
type Registry map[string]Definition

// Lookup returns the definition registered under name.
func (r Registry) Lookup(name string) (Definition, error) {
	def, ok := r[name]
	if !ok {
		return Definition{}, fmt.Errorf("unknown area definition %q", name)
	}
	return def, nil
}

// LonRange is the longitude span, in degrees, inside which a satellite's
// imagery is kept. East < West means the span crosses the antimeridian.
type LonRange struct {
	West float64
	East float64
}

// Interval is a half-open span of pixel columns [Lo, Hi).
type Interval struct {
	Lo int
	Hi int
}

// DefaultLonLimits returns the built-in coverage table. The boundaries
// are midway points between the sub-satellite longitudes of the
// operational geostationary fleet. Meteosat-7 and GOES-R carry
// near-empty placeholder spans until they join the composite.
func DefaultLonLimits() map[string]LonRange {
	return map[string]LonRange{
		"Meteosat-11": {West: -37.5, East: 20.75},
		"Meteosat-10": {West: -37.5, East: 20.75},
		"Meteosat-8":  {West: 20.75, East: 91.1},
		"Himawari-8":  {West: 91.1, East: -177.15},
		"GOES-15":     {West: -177.15, East: -105.0},
		"GOES-13":     {West: -105.0, East: -37.5},
		"Meteosat-7":  {West: 41.5, East: 41.50001},
		"GOES-R":      {West: -90.0, East: -90.0001},
	}
}

// MaskIntervals converts a longitude range into the pixel column spans
// that fall OUTSIDE it on a grid of the given width, i.e. the columns
// whose data should be discarded. A range crossing the antimeridian
// yields one interior span, a plain range yields the two flanks.
func MaskIntervals(width int, r LonRange) []Interval {
	scale := 360.0 / float64(width)
	left := int((r.West + 180.0) / scale)
	right := int((r.East + 180.0) / scale)
	if right < left {
		return []Interval{{Lo: right, Hi: left}}
	}
	return []Interval{{Lo: 0, Hi: left}, {Lo: right, Hi: width}}
}

// SatelliteFromPath reports which satellite in limits the tile at path
// belongs to, matching by substring. Names are tried in sorted order so
// the result does not depend on map iteration; the first match wins.
func SatelliteFromPath(path string, limits map[string]LonRange) (string, bool) {
	names := make([]string, 0, len(limits))
	for name := range limits {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.Contains(path, name) {
			return name, true
		}
	}
	return "", false
}
