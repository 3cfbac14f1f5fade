// Package imaging bounds uploaded images to a fixed resolution and format
// before they are sent to the vision advisor or stored.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	// Register decoders for the upload formats the API accepts.
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/gift"
	_ "golang.org/x/image/webp"
)

const (
	// MaxDimension is the bounding box side for normalized output.
	MaxDimension = 1024
	// JPEGQuality matches the fixed re-encode quality of the upstream pipeline.
	JPEGQuality = 80
)

// NormalizedMIMEType is the content type of every normalized image.
const NormalizedMIMEType = "image/jpeg"

// Normalized is a bounded-dimension, re-encoded image ready for advisor
// submission and object storage. It lives only within one pipeline run.
type Normalized struct {
	Data   []byte
	Width  int
	Height int
}

// DataURL returns the base64-embeddable representation used for vision model
// submission.
func (n Normalized) DataURL() string {
	return "data:" + NormalizedMIMEType + ";base64," + base64.StdEncoding.EncodeToString(n.Data)
}

// Normalizer resizes and re-encodes images deterministically. The zero value
// is not usable; construct with NewNormalizer.
type Normalizer struct {
	maxDim  int
	quality int
}

// NewNormalizer returns a normalizer with the fixed pipeline parameters.
func NewNormalizer() *Normalizer {
	return &Normalizer{maxDim: MaxDimension, quality: JPEGQuality}
}

// Normalize decodes the input, scales it to fit within maxDim x maxDim
// preserving aspect ratio (never upscaling), and re-encodes as JPEG.
func (n *Normalizer) Normalize(data []byte) (Normalized, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Normalized{}, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return Normalized{}, fmt.Errorf("decode image: empty bounds")
	}

	targetW, targetH := fitWithin(width, height, n.maxDim)
	out := src
	if targetW != width || targetH != height {
		g := gift.New(gift.Resize(targetW, targetH, gift.LanczosResampling))
		dst := image.NewRGBA(g.Bounds(src.Bounds()))
		g.Draw(dst, src)
		out = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: n.quality}); err != nil {
		return Normalized{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return Normalized{Data: buf.Bytes(), Width: targetW, Height: targetH}, nil
}

// fitWithin scales (w, h) to fit inside a max x max box without upscaling.
func fitWithin(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		scaled := h * max / w
		if scaled < 1 {
			scaled = 1
		}
		return max, scaled
	}
	scaled := w * max / h
	if scaled < 1 {
		scaled = 1
	}
	return scaled, max
}
