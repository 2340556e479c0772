// Package xray turns an uploaded dental X-ray into a normalized tensor that is
// ready for model input. The pipeline is: decode, validate dimensions, resize,
// CLAHE contrast enhancement, scale to [0,1]. Everything here is deterministic.
package xray

import (
	"bytes"
	"image"
	"image/draw"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// Limits are the bounds we enforce on uploaded images before doing any real work.
type Limits struct {
	MaxBytes int64 // Maximum size of the encoded file
	MinDim   int   // Minimum width and height
	MaxDim   int   // Maximum width and height
}

func DefaultLimits() Limits {
	return Limits{
		MaxBytes: 10 * 1024 * 1024,
		MinDim:   100,
		MaxDim:   5000,
	}
}

// Decode validates raw against limits and decodes it into an RGBA image.
// The returned format is one of "jpeg", "png", "bmp".
// Failures are either a *ValidationError (too big, wrong format, dimensions out
// of bounds) or a *DecodeError (corrupt pixel data).
func Decode(raw []byte, limits Limits) (*image.RGBA, string, error) {
	if int64(len(raw)) > limits.MaxBytes {
		return nil, "", validationErrorf("File size %v exceeds maximum of %v bytes", len(raw), limits.MaxBytes)
	}

	// DecodeConfig reads only the header, so we can reject bad dimensions
	// before paying for a full decode of a potentially large image.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err == image.ErrFormat {
		return nil, "", validationErrorf("Unsupported image format. Supported formats: JPEG, PNG, BMP")
	} else if err != nil {
		return nil, "", &DecodeError{Err: err}
	}
	// Explicit allowlist, so that image decoders registered by other packages
	// in the process can't widen what we accept.
	if format != "jpeg" && format != "png" && format != "bmp" {
		return nil, "", validationErrorf("Unsupported image format %v. Supported formats: JPEG, PNG, BMP", format)
	}
	if cfg.Width < limits.MinDim || cfg.Height < limits.MinDim {
		return nil, "", validationErrorf("Image dimensions %vx%v are too small (minimum %vx%v)", cfg.Width, cfg.Height, limits.MinDim, limits.MinDim)
	}
	if cfg.Width > limits.MaxDim || cfg.Height > limits.MaxDim {
		return nil, "", validationErrorf("Image dimensions %vx%v are too large (maximum %vx%v)", cfg.Width, cfg.Height, limits.MaxDim, limits.MaxDim)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", &DecodeError{Err: err}
	}
	return toRGBA(img), format, nil
}

// toRGBA converts any decoded image (grayscale, paletted, NRGBA, ...) into RGBA,
// which is the only representation the rest of the pipeline deals with.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// Ext returns the canonical file extension for a format returned by Decode.
func Ext(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "bmp":
		return ".bmp"
	}
	return ".bin"
}
