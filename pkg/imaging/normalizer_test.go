package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestNormalizeBoundsLargeImage(t *testing.T) {
	n := NewNormalizer()
	out, err := n.Normalize(encodePNG(t, 2048, 1024))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.Width != 1024 || out.Height != 512 {
		t.Fatalf("expected 1024x512, got %dx%d", out.Width, out.Height)
	}
	decoded, format, err := image.Decode(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("expected jpeg output, got %s", format)
	}
	if decoded.Bounds().Dx() != 1024 || decoded.Bounds().Dy() != 512 {
		t.Fatalf("output bytes disagree with reported dimensions")
	}
}

func TestNormalizeTallImagePreservesAspect(t *testing.T) {
	n := NewNormalizer()
	out, err := n.Normalize(encodePNG(t, 500, 2000))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.Width != 256 || out.Height != 1024 {
		t.Fatalf("expected 256x1024, got %dx%d", out.Width, out.Height)
	}
}

func TestNormalizeNeverUpscales(t *testing.T) {
	n := NewNormalizer()
	out, err := n.Normalize(encodePNG(t, 300, 200))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if out.Width != 300 || out.Height != 200 {
		t.Fatalf("small image must keep its dimensions, got %dx%d", out.Width, out.Height)
	}
}

func TestNormalizeIsIdempotentOnDimensions(t *testing.T) {
	n := NewNormalizer()
	first, err := n.Normalize(encodePNG(t, 3000, 1500))
	if err != nil {
		t.Fatalf("first normalize: %v", err)
	}
	second, err := n.Normalize(first.Data)
	if err != nil {
		t.Fatalf("second normalize: %v", err)
	}
	if second.Width != first.Width || second.Height != first.Height {
		t.Fatalf("re-normalizing changed dimensions: %dx%d -> %dx%d",
			first.Width, first.Height, second.Width, second.Height)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	n := NewNormalizer()
	if _, err := n.Normalize([]byte("not an image")); err == nil {
		t.Fatalf("expected decode error for garbage input")
	}
}

func TestDataURLPrefix(t *testing.T) {
	n := NewNormalizer()
	out, err := n.Normalize(encodePNG(t, 64, 64))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !strings.HasPrefix(out.DataURL(), "data:image/jpeg;base64,") {
		t.Fatalf("unexpected data URL prefix: %.40s", out.DataURL())
	}
}
