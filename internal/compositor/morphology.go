package compositor

import "math"

// erode and boxFilter are the two separable window passes used to
// feather tile edges. Both center the window on each pixel with the
// extra sample on the left for even sizes, and reflect out-of-range
// samples back into the raster. A size of one or less is the identity.

func erode(src []float64, w, h, size int) []float64 {
	out := make([]float64, len(src))
	if size <= 1 {
		copy(out, src)
		return out
	}
	lo, hi := windowOffsets(size)

	tmp := make([]float64, len(src))
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		dst := tmp[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			m := math.Inf(1)
			for d := lo; d <= hi; d++ {
				if v := row[reflect(x+d, w)]; v < m {
					m = v
				}
			}
			dst[x] = m
		}
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			m := math.Inf(1)
			for d := lo; d <= hi; d++ {
				if v := tmp[reflect(y+d, h)*w+x]; v < m {
					m = v
				}
			}
			out[y*w+x] = m
		}
	}
	return out
}

func boxFilter(src []float64, w, h, size int) []float64 {
	out := make([]float64, len(src))
	if size <= 1 {
		copy(out, src)
		return out
	}
	lo, hi := windowOffsets(size)
	div := float64(size)

	tmp := make([]float64, len(src))
	for y := 0; y < h; y++ {
		row := src[y*w : (y+1)*w]
		dst := tmp[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum float64
			for d := lo; d <= hi; d++ {
				sum += row[reflect(x+d, w)]
			}
			dst[x] = sum / div
		}
	}
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			var sum float64
			for d := lo; d <= hi; d++ {
				sum += tmp[reflect(y+d, h)*w+x]
			}
			out[y*w+x] = sum / div
		}
	}
	return out
}

// windowOffsets returns the inclusive sample offsets for a centered
// window of the given size.
func windowOffsets(size int) (lo, hi int) {
	return -(size / 2), size - size/2 - 1
}

// reflect maps an out-of-range index back into [0, n) by mirroring at
// the borders.
func reflect(i, n int) int {
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - i - 1
		}
	}
	return i
}
