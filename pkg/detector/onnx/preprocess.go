package onnx

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

const (
	stride     = 32
	padGray    = 114
	minSize    = stride
	channelCnt = 3
)

var padColor = color.NRGBA{R: padGray, G: padGray, B: padGray, A: 255}

// letterbox records how the source image was fitted into the square model input.
type letterbox struct {
	scale  float64
	padX   float64
	padY   float64
	srcW   int
	srcH   int
	square int
}

// roundUp rounds size up to the next multiple of the network stride.
func roundUp(size int) int {
	if size < minSize {
		return minSize
	}
	return (size + stride - 1) / stride * stride
}

// anchorCount is the number of candidate boxes a YOLOv8 head emits for a square
// input of the given size, summed over strides 8, 16 and 32.
func anchorCount(size int) int {
	n := 0
	for _, s := range []int{8, 16, 32} {
		g := size / s
		n += g * g
	}
	return n
}

// fit resizes img preserving aspect ratio and centres it on a gray square.
func fit(img image.Image, size int) (*image.NRGBA, letterbox) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := math.Min(float64(size)/float64(w), float64(size)/float64(h))

	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	padX := (size - nw) / 2
	padY := (size - nh) / 2

	resized := imaging.Resize(img, nw, nh, imaging.Linear)
	canvas := imaging.New(size, size, padColor)
	canvas = imaging.Paste(canvas, resized, image.Pt(padX, padY))

	return canvas, letterbox{
		scale:  scale,
		padX:   float64(padX),
		padY:   float64(padY),
		srcW:   w,
		srcH:   h,
		square: size,
	}
}

// fillCHW writes img into dst as normalized RGB planes.
func fillCHW(img *image.NRGBA, dst []float32) {
	size := img.Bounds().Dx()
	plane := size * size
	for y := 0; y < size; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < size; x++ {
			i := y*size + x
			p := row[x*4:]
			dst[i] = float32(p[0]) / 255.0
			dst[plane+i] = float32(p[1]) / 255.0
			dst[2*plane+i] = float32(p[2]) / 255.0
		}
	}
}

// toSource maps a box from model input space back onto the original image.
func (l letterbox) toSource(x1, y1, x2, y2 float64) [4]float64 {
	conv := func(v, pad float64, limit int) float64 {
		v = (v - pad) / l.scale
		return math.Max(0, math.Min(float64(limit), v))
	}
	return [4]float64{
		conv(x1, l.padX, l.srcW),
		conv(y1, l.padY, l.srcH),
		conv(x2, l.padX, l.srcW),
		conv(y2, l.padY, l.srcH),
	}
}
