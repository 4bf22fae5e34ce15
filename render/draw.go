package render

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var font *truetype.Font

// init sets up the fonts we want to use.
func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// drawString writes a string with its top left corner at p.
func drawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))
	dc.SetColor(c)
	dc.DrawStringAnchored(text, float64(p.X), float64(p.Y), 0, 1)
}

// drawRectangleEmpty outlines r.
func drawRectangleEmpty(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}
