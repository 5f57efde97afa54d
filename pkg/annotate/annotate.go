// Package annotate draws detection boxes and confidence labels onto images.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/Sei0217/visually-impaired/internal/entity"
)

const (
	strokeRatio   = 0.006
	fontRatio     = 0.045
	minStroke     = 2
	minFontSize   = 16
	labelSep      = " — "
	bitmapSep     = " - "
	labelPadRatio = 0.25
)

var (
	BoxColor   = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	LabelColor = color.NRGBA{R: 0, G: 0, B: 0, A: 255}
	TextColor  = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// Annotator is safe for concurrent use; it holds only the parsed font.
type Annotator struct {
	font     *opentype.Font
	fontPath string
}

// New loads a font the way LoadFont does. A missing font is not an error: the
// annotator falls back to a bitmap face.
func New(override string, candidates []string) *Annotator {
	f, path, err := LoadFont(override, candidates)
	if err != nil {
		return &Annotator{}
	}
	return &Annotator{font: f, fontPath: path}
}

// FontPath is the loaded font file, or "" when the bitmap fallback is used.
func (a *Annotator) FontPath() string {
	return a.fontPath
}

func StrokeWidth(width, height int) int {
	return max(minStroke, int(math.Round(strokeRatio*float64(min(width, height)))))
}

func FontSize(width, height int) int {
	return max(minFontSize, int(math.Round(fontRatio*float64(min(width, height)))))
}

// LabelText joins the label and its rounded percentage. The bitmap face has no
// em dash glyph, so an ASCII hyphen separates them there.
func LabelText(label string, confidence float64, bitmap bool) string {
	sep := labelSep
	if bitmap {
		sep = bitmapSep
	}
	return fmt.Sprintf("%s%s%d%%", label, sep, int(math.Round(confidence*100)))
}

// LabelRect places a label block of size w×h above the box's top-left corner,
// or just inside the box when that would cross the top of bounds. The result
// is clipped to bounds.
func LabelRect(box image.Rectangle, w, h int, bounds image.Rectangle) image.Rectangle {
	top := box.Min.Y - h
	if top < bounds.Min.Y {
		top = max(box.Min.Y, bounds.Min.Y)
	}
	r := image.Rect(box.Min.X, top, box.Min.X+w, top+h)
	return r.Intersect(bounds)
}

// Annotate returns a copy of img with every detection drawn on it. img itself
// is never modified. Box coordinates are relative to the image origin.
func (a *Annotator) Annotate(img image.Image, detections []entity.Detection) *image.NRGBA {
	dst := imaging.Clone(img)
	bounds := dst.Bounds()
	if bounds.Empty() || len(detections) == 0 {
		return dst
	}

	w, h := bounds.Dx(), bounds.Dy()
	stroke := StrokeWidth(w, h)
	size := FontSize(w, h)

	face, scalable := newFace(a.font, size)
	if scalable {
		defer face.Close()
	}
	pad := max(2, int(math.Round(labelPadRatio*float64(size))))

	for _, d := range detections {
		box := toRect(d.BBox).Intersect(bounds)
		if box.Empty() {
			continue
		}
		strokeRect(dst, box, stroke, BoxColor)

		text := LabelText(d.Label, d.Confidence, !scalable)
		tw, th := MeasureText(face, text, size)
		bg := LabelRect(box, tw+2*pad, th+2*pad, bounds)
		if bg.Empty() {
			continue
		}
		fillRect(dst, bg, LabelColor)
		drawText(dst, face, text, bg.Min.X+pad, bg.Min.Y+pad)
	}

	return dst
}

func toRect(b [4]float64) image.Rectangle {
	return image.Rect(
		int(math.Round(b[0])),
		int(math.Round(b[1])),
		int(math.Round(b[2])),
		int(math.Round(b[3])),
	)
}

func fillRect(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r.Intersect(dst.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
}

func strokeRect(dst draw.Image, r image.Rectangle, width int, c color.Color) {
	width = min(width, (r.Dx()+1)/2, (r.Dy()+1)/2)
	if width <= 0 {
		width = 1
	}
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+width), c)
	fillRect(dst, image.Rect(r.Min.X, r.Max.Y-width, r.Max.X, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+width, r.Max.Y), c)
	fillRect(dst, image.Rect(r.Max.X-width, r.Min.Y, r.Max.X, r.Max.Y), c)
}

func drawText(dst draw.Image, face font.Face, text string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(TextColor),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
