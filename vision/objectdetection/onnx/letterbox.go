package onnx

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// letterboxFill is the gray YOLO models are trained with for padding.
var letterboxFill = color.NRGBA{R: 114, G: 114, B: 114, A: 255}

// letterbox maps between source pixels and the square model input.
type letterbox struct {
	scale float64
	// padX and padY are whole pixels so that pasting and unmapping agree.
	padX, padY int
	srcW, srcH int
}

func newLetterbox(srcW, srcH, size int) letterbox {
	scale := math.Min(float64(size)/float64(srcW), float64(size)/float64(srcH))
	return letterbox{
		scale: scale,
		padX:  (size - int(math.Round(float64(srcW)*scale))) / 2,
		padY:  (size - int(math.Round(float64(srcH)*scale))) / 2,
		srcW:  srcW,
		srcH:  srcH,
	}
}

// apply resizes img preserving aspect ratio and centers it on a gray square canvas.
func (lb letterbox) apply(img image.Image, size int) *image.NRGBA {
	w := int(math.Round(float64(lb.srcW) * lb.scale))
	h := int(math.Round(float64(lb.srcH) * lb.scale))
	resized := imaging.Resize(img, w, h, imaging.Linear)
	canvas := imaging.New(size, size, letterboxFill)
	return imaging.Paste(canvas, resized, image.Pt(lb.padX, lb.padY))
}

// toSource converts a center/size box in model pixels to a clamped source rectangle.
func (lb letterbox) toSource(cx, cy, w, h float64) image.Rectangle {
	unmap := func(v float64, pad, limit int) int {
		p := (v - float64(pad)) / lb.scale
		return int(math.Round(math.Max(0, math.Min(float64(limit), p))))
	}
	return image.Rect(
		unmap(cx-w/2, lb.padX, lb.srcW),
		unmap(cy-h/2, lb.padY, lb.srcH),
		unmap(cx+w/2, lb.padX, lb.srcW),
		unmap(cy+h/2, lb.padY, lb.srcH),
	)
}

// fillTensor writes img into dst as normalized planar RGB (CHW).
func fillTensor(img *image.NRGBA, dst []float32) {
	b := img.Bounds()
	channelSize := b.Dx() * b.Dy()
	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride:]
		offset := y * b.Dx()
		for x := 0; x < b.Dx(); x++ {
			i := offset + x
			dst[i] = float32(row[x*4]) / 255.0
			dst[channelSize+i] = float32(row[x*4+1]) / 255.0
			dst[channelSize*2+i] = float32(row[x*4+2]) / 255.0
		}
	}
}
