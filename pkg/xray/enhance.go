package xray

import (
	"image"
)

// Enhancement parameters for the human-facing artifact. A stronger clip than
// the model preprocessing, because this one is for dentists' eyes.
const (
	enhanceTiles = 8
	enhanceClip  = 3.0
)

// Enhance produces a contrast-enhanced grayscale rendition of an X-ray at its
// original resolution. This is written alongside the heatmap so that the UI
// can show a cleaned-up radiograph next to the diagnosis.
func Enhance(img image.Image) *image.Gray {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	gray := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			// RGBA returns 16-bit channels
			gray.Pix[y*width+x] = uint8((299*int(r>>8) + 587*int(g>>8) + 114*int(bl>>8) + 500) / 1000)
		}
	}
	gray.Pix = claheEqualize(gray.Pix, width, height, enhanceTiles, enhanceClip)
	return gray
}
