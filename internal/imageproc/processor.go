// Package imageproc validates and recompresses uploaded images into
// embeddable base64 payloads.
package imageproc

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Processing failure categories.
var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrTooLarge          = errors.New("image exceeds size limit")
	ErrProcessingFailed  = errors.New("image processing failed")
)

// allowedExtensions is the upload allow-list, keyed without the leading dot.
var allowedExtensions = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
}

// Options bounds the ingestion step.
type Options struct {
	MaxBytes     int64
	MaxDimension int
	Quality      int
}

// DefaultOptions matches the upload contract: 5MB in, 2000px per side out,
// JPEG quality 85.
func DefaultOptions() Options {
	return Options{
		MaxBytes:     5 * 1024 * 1024,
		MaxDimension: 2000,
		Quality:      85,
	}
}

// Compressed is a processed upload ready for embedding.
type Compressed struct {
	Base64 string `json:"base64"`
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// AllowedExtension reports whether a filename carries an accepted image
// extension.
func AllowedExtension(filename string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	return allowedExtensions[ext]
}

// Compress validates, downsamples and re-encodes an uploaded image, returning
// it base64-encoded. The aspect ratio is preserved: when either dimension
// exceeds MaxDimension the image is scaled by the smaller of the two ratios.
// WebP input is re-encoded as PNG since Go has no WebP encoder.
func Compress(data []byte, filename string, opts Options) (*Compressed, error) {
	if !AllowedExtension(filename) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrProcessingFailed)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrProcessingFailed, err)
	}

	img = downsample(img, opts.MaxDimension)

	encoded, outFormat, err := encode(img, format, opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrProcessingFailed, err)
	}

	bounds := img.Bounds()
	return &Compressed{
		Base64: base64.StdEncoding.EncodeToString(encoded),
		Format: outFormat,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}

// downsample scales the image so neither dimension exceeds maxDim, keeping
// the aspect ratio. Images already within bounds pass through untouched.
func downsample(img image.Image, maxDim int) image.Image {
	if maxDim <= 0 {
		return img
	}
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width <= maxDim && height <= maxDim {
		return img
	}

	ratioW := float64(maxDim) / float64(width)
	ratioH := float64(maxDim) / float64(height)
	ratio := min(ratioW, ratioH)

	newWidth := int(float64(width) * ratio)
	newHeight := int(float64(height) * ratio)
	return imaging.Resize(img, newWidth, newHeight, imaging.Lanczos)
}

// encode re-encodes in the detected input format.
func encode(img image.Image, format string, quality int) ([]byte, string, error) {
	if quality <= 0 {
		quality = DefaultOptions().Quality
	}

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "jpeg", nil
	case "gif":
		if err := gif.Encode(&buf, img, nil); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "gif", nil
	case "png", "webp":
		encoder := png.Encoder{CompressionLevel: png.BestCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "png", nil
	default:
		return nil, "", fmt.Errorf("no encoder for format %q", format)
	}
}
