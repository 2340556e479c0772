package heatmap

import (
	"image"
	"image/color"
	"testing"

	"github.com/dentavision/dentavision/pkg/xray"
	"github.com/stretchr/testify/require"
)

func TestRadial(t *testing.T) {
	g := Radial(0.9, 9, 9)
	require.Equal(t, 9, g.W)
	require.Equal(t, 9, g.H)
	// Peak at the center, falling off towards the corners
	require.InDelta(t, 0.9, float64(g.At(4, 4)), 1e-4)
	require.Less(t, g.At(0, 0), g.At(2, 2))
	require.Less(t, g.At(2, 2), g.At(4, 4))
	// Symmetric
	require.InDelta(t, float64(g.At(1, 4)), float64(g.At(7, 4)), 1e-5)
}

func flatTensor(size int) *xray.Tensor {
	tensor := &xray.Tensor{Width: size, Height: size, Data: make([]float32, size*size*3)}
	for i := range tensor.Data {
		tensor.Data[i] = 1.0
	}
	return tensor
}

func TestOcclusion(t *testing.T) {
	// Stub scorer: the score collapses only when the top-left quadrant is
	// occluded, so that cell must come out as the (normalized) hottest.
	tensor := flatTensor(32)
	grid, err := Occlusion(tensor, 2, 2, 0.9, func(in *xray.Tensor) (float32, error) {
		if in.At(0, 0, 0) == 0.5 {
			return 0.1, nil
		}
		return 0.85, nil
	})
	require.NoError(t, err)
	require.Equal(t, float32(1), grid.At(0, 0))
	for _, cell := range []float32{grid.At(1, 0), grid.At(0, 1), grid.At(1, 1)} {
		require.Less(t, cell, float32(0.1))
	}
	// The input tensor itself is never mutated
	require.Equal(t, float32(1), tensor.At(0, 0, 0))
}

func TestOcclusionNoSignal(t *testing.T) {
	// A scorer that never drops below base yields an all-zero grid, not NaNs
	grid, err := Occlusion(flatTensor(16), 4, 4, 0.5, func(in *xray.Tensor) (float32, error) {
		return 0.7, nil
	})
	require.NoError(t, err)
	require.Equal(t, float32(0), grid.Max())
}

func makeGrayImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{90, 90, 90, 255})
		}
	}
	return img
}

func TestRenderDimensions(t *testing.T) {
	original := makeGrayImage(300, 200)
	g := Radial(1, 9, 9)
	out := Render(original, g, 0.4)
	require.Equal(t, 300, out.Bounds().Dx())
	require.Equal(t, 200, out.Bounds().Dy())
}

func TestRenderZeroStrength(t *testing.T) {
	original := makeGrayImage(64, 64)
	out := Render(original, NewGrid(1, 1), 0)
	r, gr, b, _ := out.At(32, 32).RGBA()
	require.Equal(t, uint32(90), r>>8)
	require.Equal(t, uint32(90), gr>>8)
	require.Equal(t, uint32(90), b>>8)
}

func TestRenderHotCenter(t *testing.T) {
	original := makeGrayImage(90, 90)
	out := Render(original, Radial(1, 9, 9), 0.4)
	// Red channel lifted at the hot center, untouched in the cold corner
	rCenter, _, _, _ := out.At(45, 45).RGBA()
	rCorner, _, _, _ := out.At(1, 1).RGBA()
	require.Greater(t, rCenter>>8, uint32(90))
	require.Less(t, rCorner, rCenter)
}
