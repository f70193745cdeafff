package imageproc

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// makeJPEG renders a solid test image of the given size as JPEG bytes.
func makeJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func makePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestCompressKeepsSmallImage(t *testing.T) {
	data := makeJPEG(t, 400, 300)

	result, err := Compress(data, "photo.jpg", DefaultOptions())
	if err != nil {
		t.Fatalf("Compress() returned error: %v", err)
	}

	if result.Format != "jpeg" {
		t.Errorf("Format = %q, expected jpeg", result.Format)
	}
	if result.Width != 400 || result.Height != 300 {
		t.Errorf("dimensions = %dx%d, expected 400x300 untouched", result.Width, result.Height)
	}
	if _, err := base64.StdEncoding.DecodeString(result.Base64); err != nil {
		t.Errorf("Base64 payload does not decode: %v", err)
	}
}

func TestCompressDownsamplesLargeImage(t *testing.T) {
	data := makeJPEG(t, 2500, 1000)

	result, err := Compress(data, "wide.jpeg", DefaultOptions())
	if err != nil {
		t.Fatalf("Compress() returned error: %v", err)
	}

	if result.Width != 2000 {
		t.Errorf("Width = %d, expected long edge scaled to 2000", result.Width)
	}
	if result.Height != 800 {
		t.Errorf("Height = %d, expected aspect ratio preserved (800)", result.Height)
	}
}

func TestCompressUsesSmallerRatio(t *testing.T) {
	// Both dimensions over the cap; the height ratio is the binding one.
	data := makePNG(t, 2400, 3000)

	result, err := Compress(data, "tall.png", DefaultOptions())
	if err != nil {
		t.Fatalf("Compress() returned error: %v", err)
	}

	if result.Height != 2000 {
		t.Errorf("Height = %d, expected 2000", result.Height)
	}
	if result.Width != 1600 {
		t.Errorf("Width = %d, expected 1600", result.Width)
	}
	if result.Format != "png" {
		t.Errorf("Format = %q, expected png", result.Format)
	}
}

func TestCompressRejectsDisallowedExtension(t *testing.T) {
	data := makeJPEG(t, 10, 10)

	_, err := Compress(data, "payload.svg", DefaultOptions())
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("error = %v, expected ErrUnsupportedFormat", err)
	}
}

func TestCompressRejectsOversizePayload(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxBytes = 64

	_, err := Compress(makeJPEG(t, 100, 100), "big.jpg", opts)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("error = %v, expected ErrTooLarge", err)
	}
}

func TestCompressRejectsGarbageData(t *testing.T) {
	_, err := Compress([]byte("definitely not an image"), "fake.png", DefaultOptions())
	if !errors.Is(err, ErrProcessingFailed) {
		t.Errorf("error = %v, expected ErrProcessingFailed", err)
	}
}

func TestAllowedExtension(t *testing.T) {
	tests := []struct {
		filename string
		expected bool
	}{
		{"a.png", true},
		{"a.jpg", true},
		{"a.JPEG", true},
		{"a.gif", true},
		{"a.webp", true},
		{"a.svg", false},
		{"a.bmp", false},
		{"noext", false},
	}

	for _, tt := range tests {
		if got := AllowedExtension(tt.filename); got != tt.expected {
			t.Errorf("AllowedExtension(%q) = %v, expected %v", tt.filename, got, tt.expected)
		}
	}
}
