package vision

import "image"

// Moments holds the zeroth and first spatial moments of a closed polygon.
type Moments struct {
	M00, M10, M01 float64
}

// PolygonMoments computes the moments of the polygon enclosed by contour
// using Green's theorem, the same quantities OpenCV derives from a contour.
// M00 is signed by winding direction; the centroid ratio is not.
func PolygonMoments(contour []image.Point) Moments {
	n := len(contour)
	if n < 3 {
		return Moments{}
	}

	var a00, a10, a01 float64
	prev := contour[n-1]
	for _, p := range contour {
		xp, yp := float64(prev.X), float64(prev.Y)
		x, y := float64(p.X), float64(p.Y)

		cross := xp*y - x*yp
		a00 += cross
		a10 += cross * (xp + x)
		a01 += cross * (yp + y)
		prev = p
	}

	return Moments{
		M00: a00 / 2,
		M10: a10 / 6,
		M01: a01 / 6,
	}
}

// Centroid returns the centre of mass. ok is false for zero mass.
func (m Moments) Centroid() (x, y float64, ok bool) {
	if m.M00 == 0 {
		return 0, 0, false
	}
	return m.M10 / m.M00, m.M01 / m.M00, true
}
