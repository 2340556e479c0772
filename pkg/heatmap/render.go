package heatmap

import (
	"image"

	"github.com/fogleman/gg"
	"github.com/nfnt/resize"
)

// Render composites a false-color rendition of the grid over the original
// image, at the original's resolution. strength in [0,1] scales the maximum
// overlay opacity; 0 returns a plain copy of the original.
//
// The color ramp runs transparent -> red -> yellow with increasing
// importance, alpha-blended so the underlying radiograph stays visible.
func Render(original image.Image, g *Grid, strength float64) image.Image {
	b := original.Bounds()
	width, height := b.Dx(), b.Dy()

	// Upsample the coarse grid to full resolution. Encoding the cells as an
	// 8-bit gray image and resizing bicubically gives us smooth interpolation
	// between cell centers for free.
	coarse := image.NewGray(image.Rect(0, 0, g.W, g.H))
	for i, v := range g.Cells {
		coarse.Pix[i] = uint8(clamp01(float64(v)) * 255)
	}
	smooth := resize.Resize(uint(width), uint(height), coarse, resize.Bicubic)

	overlay := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gv, _, _, _ := smooth.At(x, y).RGBA()
			intensity := float64(gv>>8) / 255
			alpha := intensity * strength
			// red at low intensity, shading towards yellow at the hot spots
			r := 255.0
			gr := 200 * intensity * intensity
			p := overlay.PixOffset(x, y)
			// Premultiplied alpha, as image.RGBA expects for compositing
			overlay.Pix[p] = uint8(r * alpha)
			overlay.Pix[p+1] = uint8(gr * alpha)
			overlay.Pix[p+2] = 0
			overlay.Pix[p+3] = uint8(alpha * 255)
		}
	}

	dc := gg.NewContextForImage(original)
	dc.DrawImage(overlay, 0, 0)
	return dc.Image()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
