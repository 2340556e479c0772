package xray

import (
	"image"
)

// Contrast-Limited Adaptive Histogram Equalization.
// Radiographs are often low contrast, so we equalize the luminance locally
// before handing the image to the model. The image is divided into a grid of
// tiles, each tile gets its own clipped histogram equalization mapping, and
// per-pixel mappings are bilinearly interpolated between the four surrounding
// tile centers to avoid visible tile seams.

const claheBins = 256

// claheEqualize equalizes an 8-bit plane in place-free fashion and returns the
// result. tiles is the grid size per axis (eg 8 gives an 8x8 grid). clipLimit
// is the histogram clip factor relative to a uniform histogram (2.0 means no
// bin may hold more than twice the average count).
func claheEqualize(plane []uint8, width, height, tiles int, clipLimit float64) []uint8 {
	if tiles < 1 {
		tiles = 1
	}
	tileW := (width + tiles - 1) / tiles
	tileH := (height + tiles - 1) / tiles

	// Build one lookup table per tile
	luts := make([][claheBins]uint8, tiles*tiles)
	for ty := 0; ty < tiles; ty++ {
		for tx := 0; tx < tiles; tx++ {
			x1 := tx * tileW
			y1 := ty * tileH
			x2 := min(x1+tileW, width)
			y2 := min(y1+tileH, height)
			buildTileLUT(plane, width, x1, y1, x2, y2, clipLimit, &luts[ty*tiles+tx])
		}
	}

	// Interpolate between the four surrounding tile mappings for every pixel
	out := make([]uint8, len(plane))
	for y := 0; y < height; y++ {
		// Position of this row relative to tile centers, in tile units
		fy := (float64(y)+0.5)/float64(tileH) - 0.5
		ty0 := int(fy)
		if fy < 0 {
			fy = 0
			ty0 = 0
		}
		wy := fy - float64(ty0)
		ty1 := ty0 + 1
		if ty1 >= tiles {
			ty1 = tiles - 1
		}
		for x := 0; x < width; x++ {
			fx := (float64(x)+0.5)/float64(tileW) - 0.5
			tx0 := int(fx)
			if fx < 0 {
				fx = 0
				tx0 = 0
			}
			wx := fx - float64(tx0)
			tx1 := tx0 + 1
			if tx1 >= tiles {
				tx1 = tiles - 1
			}
			v := plane[y*width+x]
			top := (1-wx)*float64(luts[ty0*tiles+tx0][v]) + wx*float64(luts[ty0*tiles+tx1][v])
			bot := (1-wx)*float64(luts[ty1*tiles+tx0][v]) + wx*float64(luts[ty1*tiles+tx1][v])
			out[y*width+x] = uint8(clamp((1-wy)*top+wy*bot, 0, 255))
		}
	}
	return out
}

// buildTileLUT computes the clipped equalization mapping for one tile.
func buildTileLUT(plane []uint8, stride, x1, y1, x2, y2 int, clipLimit float64, lut *[claheBins]uint8) {
	var hist [claheBins]int
	nPixels := (x2 - x1) * (y2 - y1)
	if nPixels == 0 {
		for i := range lut {
			lut[i] = uint8(i)
		}
		return
	}
	for y := y1; y < y2; y++ {
		row := plane[y*stride : y*stride+stride]
		for x := x1; x < x2; x++ {
			hist[row[x]]++
		}
	}

	// Clip the histogram and redistribute the excess uniformly.
	// This is the "contrast limited" part: it stops near-uniform regions from
	// being stretched into pure noise.
	clip := int(clipLimit * float64(nPixels) / claheBins)
	if clip < 1 {
		clip = 1
	}
	excess := 0
	for i := range hist {
		if hist[i] > clip {
			excess += hist[i] - clip
			hist[i] = clip
		}
	}
	perBin := excess / claheBins
	remainder := excess % claheBins
	for i := range hist {
		hist[i] += perBin
		if i < remainder {
			hist[i]++
		}
	}

	// Cumulative distribution -> mapping
	cum := 0
	scale := 255.0 / float64(nPixels)
	for i := range hist {
		cum += hist[i]
		lut[i] = uint8(clamp(float64(cum)*scale, 0, 255))
	}
}

// EnhanceContrast applies CLAHE to the luminance of an RGBA image, scaling each
// pixel's RGB channels by the luminance gain. This mirrors equalizing the L
// channel of a LAB conversion, without the roundtrip.
func EnhanceContrast(img *image.RGBA, tiles int, clipLimit float64) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	luma := make([]uint8, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			p := img.PixOffset(x, y)
			r := img.Pix[p]
			g := img.Pix[p+1]
			bl := img.Pix[p+2]
			// BT.601 integer luma
			luma[y*width+x] = uint8((299*int(r) + 587*int(g) + 114*int(bl) + 500) / 1000)
		}
	}
	eq := claheEqualize(luma, width, height, tiles, clipLimit)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if luma[i] == 0 {
				continue
			}
			gain := float64(eq[i]) / float64(luma[i])
			p := img.PixOffset(x, y)
			img.Pix[p] = uint8(clamp(float64(img.Pix[p])*gain, 0, 255))
			img.Pix[p+1] = uint8(clamp(float64(img.Pix[p+1])*gain, 0, 255))
			img.Pix[p+2] = uint8(clamp(float64(img.Pix[p+2])*gain, 0, 255))
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
