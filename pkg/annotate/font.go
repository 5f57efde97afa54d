package annotate

import (
	"errors"
	"fmt"
	"math"
	"os"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// approxCharWidth is the fallback glyph advance as a fraction of the font size.
const approxCharWidth = 0.6

// DefaultFontCandidates are tried in order after the override path.
var DefaultFontCandidates = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/TTF/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
	"/Library/Fonts/Arial.ttf",
	`C:\Windows\Fonts\arial.ttf`,
}

var ErrNoFont = errors.New("no usable font file")

// LoadFont returns the first font that parses, trying override then candidates.
// Empty paths are skipped.
func LoadFont(override string, candidates []string) (*opentype.Font, string, error) {
	paths := make([]string, 0, len(candidates)+1)
	if override != "" {
		paths = append(paths, override)
	}
	paths = append(paths, candidates...)

	var errs []error
	for _, p := range paths {
		if p == "" {
			continue
		}
		f, err := parseFontFile(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		return f, p, nil
	}

	return nil, "", errors.Join(append([]error{ErrNoFont}, errs...)...)
}

func parseFontFile(path string) (*opentype.Font, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f, err := opentype.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

// newFace sizes the loaded font for one image. It reports false when the
// bitmap fallback is returned.
func newFace(f *opentype.Font, size int) (font.Face, bool) {
	if f == nil {
		return basicfont.Face7x13, false
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return basicfont.Face7x13, false
	}
	return face, true
}

// MeasureText returns the pixel width and line height of text. When face is
// nil or cannot measure, it estimates from the character count.
func MeasureText(face font.Face, text string, fontSize int) (int, int) {
	var w, h int
	if face != nil {
		w = font.MeasureString(face, text).Ceil()
		m := face.Metrics()
		h = (m.Ascent + m.Descent).Ceil()
	}

	if w <= 0 && text != "" {
		w = int(math.Ceil(float64(utf8.RuneCountInString(text)) * approxCharWidth * float64(fontSize)))
	}
	if h <= 0 {
		h = fontSize
	}
	return w, h
}
