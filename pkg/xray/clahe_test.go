package xray

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeLowContrastRamp(width, height int) []uint8 {
	// Values squeezed into [100, 140]
	plane := make([]uint8, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			plane[y*width+x] = uint8(100 + (x*40)/width)
		}
	}
	return plane
}

func planeRange(plane []uint8) (uint8, uint8) {
	lo, hi := plane[0], plane[0]
	for _, v := range plane {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

func TestClaheStretchesLowContrast(t *testing.T) {
	width, height := 128, 128
	plane := makeLowContrastRamp(width, height)
	loIn, hiIn := planeRange(plane)
	require.Less(t, int(hiIn-loIn), 64)

	eq := claheEqualize(plane, width, height, 8, 2.0)
	require.Equal(t, len(plane), len(eq))
	loOut, hiOut := planeRange(eq)
	require.Greater(t, int(hiOut-loOut), int(hiIn-loIn))
}

func TestClaheDeterministic(t *testing.T) {
	width, height := 96, 64
	plane := makeLowContrastRamp(width, height)
	a := claheEqualize(plane, width, height, 8, 2.0)
	b := claheEqualize(plane, width, height, 8, 2.0)
	require.Equal(t, a, b)
}

func TestClaheUniformPlane(t *testing.T) {
	// A flat region must not get stretched into noise. With clipping, a uniform
	// plane maps every pixel to the same value.
	width, height := 64, 64
	plane := make([]uint8, width*height)
	for i := range plane {
		plane[i] = 128
	}
	eq := claheEqualize(plane, width, height, 8, 2.0)
	lo, hi := planeRange(eq)
	require.Equal(t, lo, hi)
}

func TestClaheSingleTile(t *testing.T) {
	width, height := 50, 50
	plane := makeLowContrastRamp(width, height)
	eq := claheEqualize(plane, width, height, 1, 4.0)
	require.Equal(t, len(plane), len(eq))
}

func TestEnhanceContrastPreservesBlack(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 120, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			if x > 60 {
				img.Set(x, y, color.RGBA{110, 110, 110, 255})
			}
		}
	}
	EnhanceContrast(img, 8, 2.0)
	// Zero-luma pixels are left untouched (gain is undefined there)
	p := img.PixOffset(10, 10)
	require.Equal(t, uint8(0), img.Pix[p])
	require.Equal(t, uint8(255), img.Pix[p+3])
}
