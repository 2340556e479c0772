package xray

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

// makeTestImage builds a gradient image so that resize and contrast paths have
// something non-trivial to chew on.
func makeTestImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8((x*7 + y*13) % 256)
			img.Set(x, y, color.RGBA{v, v / 2, 255 - v, 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	buf := bytes.Buffer{}
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func encodePNG(t *testing.T, img image.Image) []byte {
	buf := bytes.Buffer{}
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeBMP(t *testing.T, img image.Image) []byte {
	buf := bytes.Buffer{}
	require.NoError(t, bmp.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeFormats(t *testing.T) {
	img := makeTestImage(120, 150)
	for format, raw := range map[string][]byte{
		"jpeg": encodeJPEG(t, img),
		"png":  encodePNG(t, img),
		"bmp":  encodeBMP(t, img),
	} {
		decoded, gotFormat, err := Decode(raw, DefaultLimits())
		require.NoError(t, err, format)
		require.Equal(t, format, gotFormat)
		require.Equal(t, 120, decoded.Bounds().Dx())
		require.Equal(t, 150, decoded.Bounds().Dy())
	}
}

func TestDecodeDimensionBounds(t *testing.T) {
	// Exactly at the minimum is accepted
	_, _, err := Decode(encodePNG(t, makeTestImage(100, 100)), DefaultLimits())
	require.NoError(t, err)

	// One pixel under is rejected
	_, _, err = Decode(encodePNG(t, makeTestImage(99, 99)), DefaultLimits())
	require.Error(t, err)
	require.True(t, IsValidationError(err))

	// Too large on one axis only
	limits := DefaultLimits()
	limits.MaxDim = 200
	_, _, err = Decode(encodePNG(t, makeTestImage(150, 250)), limits)
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestDecodeSizeCeiling(t *testing.T) {
	raw := encodePNG(t, makeTestImage(200, 200))
	limits := DefaultLimits()
	limits.MaxBytes = int64(len(raw)) - 1
	_, _, err := Decode(raw, limits)
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	require.False(t, IsDecodeError(err))
}

func TestDecodeTruncated(t *testing.T) {
	raw := encodeJPEG(t, makeTestImage(200, 200))
	// Keep the header so DecodeConfig succeeds, but break the scan data
	truncated := raw[:len(raw)/2]
	_, _, err := Decode(truncated, DefaultLimits())
	require.Error(t, err)
	require.True(t, IsDecodeError(err))
	require.False(t, IsValidationError(err))
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	buf := bytes.Buffer{}
	require.NoError(t, gif.Encode(&buf, makeTestImage(120, 120), nil))
	_, _, err := Decode(buf.Bytes(), DefaultLimits())
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode([]byte("not an image at all"), DefaultLimits())
	require.Error(t, err)
	require.True(t, IsValidationError(err))
}

func TestDecodeGrayscaleAndAlpha(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 128, 128))
	for i := range gray.Pix {
		gray.Pix[i] = uint8(i % 256)
	}
	rgba, _, err := Decode(encodePNG(t, gray), DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, 128, rgba.Bounds().Dx())

	nrgba := image.NewNRGBA(image.Rect(0, 0, 128, 128))
	for i := 0; i < len(nrgba.Pix); i += 4 {
		nrgba.Pix[i] = 200
		nrgba.Pix[i+3] = 128
	}
	rgba, _, err = Decode(encodePNG(t, nrgba), DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, 128, rgba.Bounds().Dy())
}

func TestTensorShapeAndRange(t *testing.T) {
	tensor, err := Preprocess(encodeJPEG(t, makeTestImage(300, 200)), DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, InputSize, tensor.Width)
	require.Equal(t, InputSize, tensor.Height)
	require.Equal(t, InputSize*InputSize*3, len(tensor.Data))
	for _, v := range tensor.Data {
		require.GreaterOrEqual(t, v, float32(0))
		require.LessOrEqual(t, v, float32(1))
	}
}

func TestPreprocessDeterministic(t *testing.T) {
	raw := encodePNG(t, makeTestImage(240, 240))
	a, err := Preprocess(raw, DefaultLimits())
	require.NoError(t, err)
	b, err := Preprocess(raw, DefaultLimits())
	require.NoError(t, err)
	require.Equal(t, a.Data, b.Data)
}

func TestTensorNCHW(t *testing.T) {
	tensor := &Tensor{
		Width:  2,
		Height: 2,
		Data: []float32{
			// (0,0)       (1,0)
			0.1, 0.2, 0.3, 0.4, 0.5, 0.6,
			// (0,1)       (1,1)
			0.7, 0.8, 0.9, 1.0, 0.0, 0.5,
		},
	}
	nchw := tensor.NCHW()
	require.Equal(t, []float32{
		0.1, 0.4, 0.7, 1.0, // R plane
		0.2, 0.5, 0.8, 0.0, // G plane
		0.3, 0.6, 0.9, 0.5, // B plane
	}, nchw)
	// At() reads the NHWC original
	require.Equal(t, float32(0.5), tensor.At(1, 0, 1))
}

func TestTensorClone(t *testing.T) {
	a := &Tensor{Width: 1, Height: 1, Data: []float32{0.1, 0.2, 0.3}}
	b := a.Clone()
	b.Data[0] = 0.9
	require.Equal(t, float32(0.1), a.Data[0])
}
