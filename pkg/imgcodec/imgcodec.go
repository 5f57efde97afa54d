// Package imgcodec decodes uploaded image bytes and encodes annotated images as
// base64 data URIs.
package imgcodec

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	JPEGMime       = "image/jpeg"
	DefaultQuality = 85
	MinQuality     = 85
	MaxQuality     = 90

	// DefaultMaxPixels bounds decoded images; an NRGBA copy of the largest
	// accepted image stays around 100 MB.
	DefaultMaxPixels = 25_000_000

	dataURIPrefix = "data:"
	base64Marker  = ";base64,"
)

var (
	ErrNotImage   = errors.New("payload is not an image")
	ErrEmpty      = errors.New("empty payload")
	ErrNotDataURI = errors.New("not a base64 data uri")
	ErrNilImage   = errors.New("nil image")
	ErrTooLarge   = errors.New("image dimensions exceed limit")

	supportedMimes = map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/gif":  true,
		"image/webp": true,
		"image/bmp":  true,
		"image/tiff": true,
	}
)

// Sniff returns the detected MIME type of data without its parameters.
func Sniff(data []byte) string {
	return strings.Split(mimetype.Detect(data).String(), ";")[0]
}

// Decode checks that data looks like a supported image and decodes it, with
// the pixel count capped at DefaultMaxPixels.
func Decode(data []byte) (image.Image, string, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited reads the image header first and refuses images with more than
// maxPixels pixels before any pixel data is allocated. A non-positive maxPixels
// means DefaultMaxPixels.
func DecodeLimited(data []byte, maxPixels int) (image.Image, string, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	if len(data) == 0 {
		return nil, "", ErrEmpty
	}

	mime := Sniff(data)
	if !supportedMimes[mime] {
		return nil, mime, fmt.Errorf("%w: detected %s", ErrNotImage, mime)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, mime, fmt.Errorf("decode %s header: %w", mime, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, mime, fmt.Errorf("%w: %dx%d, max %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, mime, fmt.Errorf("decode %s: %w", mime, err)
	}

	return img, mime, nil
}

// ClampQuality keeps JPEG quality inside the range the service emits.
func ClampQuality(q int) int {
	if q < MinQuality {
		return MinQuality
	}
	if q > MaxQuality {
		return MaxQuality
	}
	return q
}

func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, ErrNilImage
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: ClampQuality(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeDataURI returns img as "data:image/jpeg;base64,...".
func EncodeDataURI(img image.Image, quality int) (string, error) {
	b, err := EncodeJPEG(img, quality)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:%s;base64,%s", JPEGMime, base64.StdEncoding.EncodeToString(b)), nil
}

// DecodeDataURI is the inverse of EncodeDataURI for any supported image MIME type.
func DecodeDataURI(uri string) (image.Image, error) {
	if !strings.HasPrefix(uri, dataURIPrefix) {
		return nil, ErrNotDataURI
	}

	idx := strings.Index(uri, base64Marker)
	if idx < 0 {
		return nil, ErrNotDataURI
	}

	b, err := base64.StdEncoding.DecodeString(uri[idx+len(base64Marker):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDataURI, err)
	}

	img, _, err := Decode(b)
	return img, err
}
