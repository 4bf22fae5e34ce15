// Package render draws visual feedback for processed frames and fans it out to wherever it is
// shown or stored.
package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/fogleman/gg"

	"go.viam.com/gatekeeper/vision/objectdetection"
)

var (
	boxColor    = color.NRGBA{G: 255, A: 255}
	bannerColor = color.NRGBA{R: 255, A: 255}
)

// BannerText is drawn on frames where the gate fired.
const BannerText = "GATE OPENING"

// Label is the text drawn above a qualifying detection.
func Label(targetName string, d objectdetection.Detection) string {
	return fmt.Sprintf("%s: %.2f", strings.ToUpper(targetName), d.Confidence)
}

// Overlay returns a copy of img with a green box and label per qualifying detection and, when
// opening is set, the red gate banner. img itself is not modified.
func Overlay(img image.Image, qualifying []objectdetection.Detection, opening bool, targetName string) image.Image {
	dc := gg.NewContextForImage(img)
	origin := img.Bounds().Min
	height := float64(img.Bounds().Dy())
	textSize := clamp(height/30, 10, 32)

	for _, d := range qualifying {
		box := d.BoundingBox.Sub(origin)
		drawRectangleEmpty(dc, box, boxColor, 2)
		labelAt := image.Pt(box.Min.X, box.Min.Y-int(textSize)-2)
		if labelAt.Y < 0 {
			labelAt.Y = box.Min.Y + 2
		}
		drawString(dc, Label(targetName, d), labelAt, boxColor, textSize)
	}
	if opening {
		drawString(dc, BannerText, image.Pt(int(textSize), int(textSize)), bannerColor, textSize*1.5)
	}
	return dc.Image()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
