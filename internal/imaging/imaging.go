// Package imaging prepares uploaded images before they are forwarded to the
// backend: it checks the format, downscales, and re-encodes them.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"github.com/gosimple/slug"
	"golang.org/x/image/draw"

	"github.com/erazemk/sowa/internal/model"
)

// Kind is what an uploaded image is used for.
type Kind string

// Image kinds.
const (
	Portfolio Kind = "portfolio"
	Hero      Kind = "hero"
	Logo      Kind = "logo"
)

// MaxDimension returns the largest width or height kept for k.
func (k Kind) MaxDimension() int {
	switch k {
	case Hero:
		return 2560
	case Logo:
		return 512
	default:
		return 2048
	}
}

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 85

// MaxUploadSize is the largest accepted upload.
const MaxUploadSize = 20 << 20

// MaxPixels bounds width × height of an upload before it is decoded.
const MaxPixels = 40_000_000

// AllowedMIME lists the accepted input MIME types.
var AllowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Process reads image data, validates the format by sniffing bytes,
// downscales it to the kind's maximum, and re-encodes it. Images with
// transparency stay PNG; everything else becomes JPEG. The returned upload
// is named after title.
func Process(kind Kind, title string, r io.Reader) (*model.Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("image larger than %d MB", MaxUploadSize>>20)
	}

	// Sniff actual MIME type from bytes (not trusting client headers).
	detected := http.DetectContentType(data)
	if !AllowedMIME[detected] {
		return nil, fmt.Errorf("unsupported image format: %s (only JPEG and PNG accepted)", detected)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("reading image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("image dimensions %dx%d too large", cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	img = downscale(img, kind.MaxDimension())

	var buf bytes.Buffer
	upload := &model.Upload{}
	if hasAlpha(img) {
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encoding PNG: %w", err)
		}
		upload.ContentType = "image/png"
		upload.Name = FileName(kind, title, ".png")
	} else {
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
			return nil, fmt.Errorf("encoding JPEG: %w", err)
		}
		upload.ContentType = "image/jpeg"
		upload.Name = FileName(kind, title, ".jpg")
	}
	upload.Data = buf.Bytes()
	return upload, nil
}

// FileName builds an ASCII file name from title, falling back to the kind.
func FileName(kind Kind, title, ext string) string {
	name := slug.Make(title)
	if name == "" {
		name = string(kind)
	}
	return name + ext
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

// downscale resizes the image so neither dimension exceeds maxDim.
// Uses high-quality Catmull-Rom interpolation.
// Returns the original image if already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}
	newW = max(newW, 1)
	newH = max(newH, 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
