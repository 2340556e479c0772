// Package heatmap derives an "attention" visualization for a classification:
// a coarse grid of importance values over the model input, rendered as a
// false-color overlay on the original radiograph.
package heatmap

import (
	"github.com/chewxy/math32"
	"github.com/dentavision/dentavision/pkg/xray"
)

// Grid is a coarse importance map over the model input. Cell values are
// normalized to [0,1], where 1 is the most influential region.
type Grid struct {
	W     int
	H     int
	Cells []float32 // len = W*H, row major
}

func NewGrid(w, h int) *Grid {
	return &Grid{W: w, H: h, Cells: make([]float32, w*h)}
}

func (g *Grid) At(x, y int) float32 {
	return g.Cells[y*g.W+x]
}

// Max returns the largest cell value.
func (g *Grid) Max() float32 {
	m := float32(0)
	for _, v := range g.Cells {
		if v > m {
			m = v
		}
	}
	return m
}

// normalize scales cells so the hottest cell is 1. A grid of all zeros stays
// all zeros.
func (g *Grid) normalize() {
	m := g.Max()
	if m <= 0 {
		return
	}
	for i := range g.Cells {
		g.Cells[i] /= m
	}
}

// Scorer returns the model's probability for the class under investigation,
// given a (possibly perturbed) input tensor.
type Scorer func(t *xray.Tensor) (float32, error)

// Occlusion computes an importance grid by occlusion saliency: each grid cell
// of the input is blanked to mid-gray in turn, the model is re-run, and the
// drop in the target class probability becomes that cell's importance.
// base is the unperturbed probability. Cost is gridW*gridH forward passes.
func Occlusion(t *xray.Tensor, gridW, gridH int, base float32, score Scorer) (*Grid, error) {
	g := NewGrid(gridW, gridH)
	cellW := (t.Width + gridW - 1) / gridW
	cellH := (t.Height + gridH - 1) / gridH
	for gy := 0; gy < gridH; gy++ {
		for gx := 0; gx < gridW; gx++ {
			occluded := t.Clone()
			x1 := gx * cellW
			y1 := gy * cellH
			x2 := minInt(x1+cellW, t.Width)
			y2 := minInt(y1+cellH, t.Height)
			for y := y1; y < y2; y++ {
				for x := x1; x < x2; x++ {
					i := (y*t.Width + x) * 3
					occluded.Data[i] = 0.5
					occluded.Data[i+1] = 0.5
					occluded.Data[i+2] = 0.5
				}
			}
			s, err := score(occluded)
			if err != nil {
				return nil, err
			}
			drop := base - s
			if drop < 0 {
				drop = 0
			}
			g.Cells[gy*gridW+gx] = drop
		}
	}
	g.normalize()
	return g, nil
}

// Radial is the cheap fallback when occlusion passes are disabled: a centered
// gaussian blob whose peak is the prediction confidence. This matches the
// demo behavior of highlighting the middle of the radiograph, scaled by how
// sure the model is.
func Radial(confidence float32, gridW, gridH int) *Grid {
	g := NewGrid(gridW, gridH)
	cx := float32(gridW-1) / 2
	cy := float32(gridH-1) / 2
	// Sigma of half the grid radius gives a soft falloff that still reaches
	// the edges.
	sigma := float32(gridW+gridH) / 8
	for y := 0; y < gridH; y++ {
		for x := 0; x < gridW; x++ {
			dx := float32(x) - cx
			dy := float32(y) - cy
			g.Cells[y*gridW+x] = confidence * math32.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
		}
	}
	return g
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
