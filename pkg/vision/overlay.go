package vision

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	regionColor = color.RGBA{G: 255}
	lineColor   = color.RGBA{R: 255, G: 255, B: 255}
	aimColor    = color.RGBA{R: 255}
)

const aimArm = 8

// DrawOverlay marks every region with a green box, the aim point with a red
// cross and, when a target was found, joins the two with a white line.
func DrawOverlay(img *gocv.Mat, aim image.Point, r Result) {
	for _, region := range r.Regions {
		pv := gocv.NewPointVectorFromPoints(region.Contour)
		gocv.Rectangle(img, gocv.BoundingRect(pv), regionColor, 1)
		pv.Close()
	}

	gocv.Line(img, image.Pt(aim.X-aimArm, aim.Y), image.Pt(aim.X+aimArm, aim.Y), aimColor, 1)
	gocv.Line(img, image.Pt(aim.X, aim.Y-aimArm), image.Pt(aim.X, aim.Y+aimArm), aimColor, 1)

	if r.Found {
		gocv.Line(img, aim, r.Target, lineColor, 1)
	}
}
