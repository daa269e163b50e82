package vision

import (
	"image"
	"math"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
)

// DefaultMinArea is the smallest contour area, in square pixels, a blob
// must exceed to count as a target.
const DefaultMinArea = 50.0

// Region is one connected blob of the mask.
type Region struct {
	Contour  []image.Point // External boundary
	Area     float64       // Enclosed area (square pixels)
	Centroid image.Point   // Rounded centre of mass
}

// Bounds returns the bounding box of the contour.
func (r Region) Bounds() image.Rectangle {
	if len(r.Contour) == 0 {
		return image.Rectangle{}
	}
	b := image.Rectangle{Min: r.Contour[0], Max: r.Contour[0]}
	for _, p := range r.Contour[1:] {
		b.Min.X = min(b.Min.X, p.X)
		b.Min.Y = min(b.Min.Y, p.Y)
		b.Max.X = max(b.Max.X, p.X)
		b.Max.Y = max(b.Max.Y, p.Y)
	}
	return b
}

// Result is the per-frame detection outcome.
type Result struct {
	Found   bool        // At least one eligible region
	Regions []Region    // Every eligible region, for diagnostics
	Target  image.Point // Centroid of the selected region
	Index   int         // Index of the selected region in Regions
}

// Detector extracts eligible regions from a mask and picks the priority one.
type Detector struct {
	MinArea float64
}

// NewDetector creates a detector with the given minimum area.
func NewDetector(minArea float64) *Detector {
	return &Detector{MinArea: minArea}
}

// Detect finds the external contours of mask, drops those whose area does
// not exceed MinArea, and selects the region whose centroid is nearest aim.
// Not finding anything is a normal outcome, reported through Result.Found.
func (d *Detector) Detect(mask gocv.Mat, aim image.Point) Result {
	if mask.Empty() {
		return Result{Index: -1}
	}

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var regions []Region
	for i := 0; i < contours.Size(); i++ {
		pv := contours.At(i)
		area := gocv.ContourArea(pv)
		if area <= d.MinArea {
			continue
		}

		points := pv.ToPoints()
		cx, cy, ok := PolygonMoments(points).Centroid()
		if !ok {
			continue
		}
		regions = append(regions, Region{
			Contour:  points,
			Area:     area,
			Centroid: image.Pt(int(math.Round(cx)), int(math.Round(cy))),
		})
	}

	idx, found := SelectNearest(regions, aim)
	res := Result{Found: found, Regions: regions, Index: idx}
	if found {
		res.Target = regions[idx].Centroid
	}
	return res
}

// SelectNearest returns the index of the region whose centroid has the
// smallest Euclidean distance to aim. Ties go to the earliest region.
func SelectNearest(regions []Region, aim image.Point) (int, bool) {
	best := -1
	bestDist := math.Inf(1)
	a := []float64{float64(aim.X), float64(aim.Y)}
	c := make([]float64, 2)

	for i, r := range regions {
		c[0], c[1] = float64(r.Centroid.X), float64(r.Centroid.Y)
		dist := floats.Distance(c, a, 2)
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best, best >= 0
}
