package xray

import (
	"image"

	"github.com/nfnt/resize"
)

// InputSize is the spatial size the classifier expects.
const InputSize = 224

// CLAHE parameters used for model preprocessing. These match the demo
// pipeline this service was built against (8x8 tiles, clip factor 2).
const (
	preprocessTiles = 8
	preprocessClip  = 2.0
)

// Tensor is a preprocessed image: a single-image batch of InputSize x InputSize
// RGB float32 pixels in [0,1], stored NHWC. It is immutable once built; Clone
// before mutating (the heatmap occlusion pass does this).
type Tensor struct {
	Width  int
	Height int
	Data   []float32 // len = Width*Height*3, layout [y][x][c]
}

// At returns channel c of pixel (x, y).
func (t *Tensor) At(x, y, c int) float32 {
	return t.Data[(y*t.Width+x)*3+c]
}

func (t *Tensor) Clone() *Tensor {
	d := make([]float32, len(t.Data))
	copy(d, t.Data)
	return &Tensor{Width: t.Width, Height: t.Height, Data: d}
}

// NCHW returns the tensor data in channels-first layout, which is what most
// ONNX image models expect. A new slice is returned; the tensor is unchanged.
func (t *Tensor) NCHW() []float32 {
	n := t.Width * t.Height
	out := make([]float32, 3*n)
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			i := y*t.Width + x
			out[i] = t.Data[i*3]
			out[n+i] = t.Data[i*3+1]
			out[2*n+i] = t.Data[i*3+2]
		}
	}
	return out
}

// NHWC returns the raw channels-last data.
func (t *Tensor) NHWC() []float32 {
	return t.Data
}

// BuildTensor resizes img to InputSize x InputSize, applies CLAHE to the
// luminance, and scales pixel values into [0,1].
func BuildTensor(img image.Image) *Tensor {
	resized := resize.Resize(InputSize, InputSize, img, resize.Bilinear)
	rgba := toRGBA(resized)
	EnhanceContrast(rgba, preprocessTiles, preprocessClip)

	t := &Tensor{
		Width:  InputSize,
		Height: InputSize,
		Data:   make([]float32, InputSize*InputSize*3),
	}
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			p := rgba.PixOffset(x, y)
			i := (y*InputSize + x) * 3
			t.Data[i] = float32(rgba.Pix[p]) / 255
			t.Data[i+1] = float32(rgba.Pix[p+1]) / 255
			t.Data[i+2] = float32(rgba.Pix[p+2]) / 255
		}
	}
	return t
}

// Preprocess is the whole pipeline: validate and decode raw bytes, then build
// the model input tensor.
func Preprocess(raw []byte, limits Limits) (*Tensor, error) {
	img, _, err := Decode(raw, limits)
	if err != nil {
		return nil, err
	}
	return BuildTensor(img), nil
}
