package face

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

const (
	EmbeddingSize = 512
	inputSize     = 112
	patchSize     = 8
)

// Embedder turns a face crop into a fixed-length template.
type Embedder interface {
	Embed(img image.Image, box image.Rectangle) []float32
}

// PatchEmbedder summarises 8x8 grayscale patches of a 112x112 face crop by
// their mean, standard deviation, minimum and maximum. The 784 statistics are
// cut to the first 512 and L2-normalized. Enrolled templates depend on this
// exact layout.
type PatchEmbedder struct{}

func NewPatchEmbedder() PatchEmbedder {
	return PatchEmbedder{}
}

// Embed returns the template for the region box of img. An empty region or
// any failure yields the all-zero vector.
func (PatchEmbedder) Embed(img image.Image, box image.Rectangle) (out []float32) {
	defer func() {
		if recover() != nil {
			out = make([]float32, EmbeddingSize)
		}
	}()

	box = box.Intersect(img.Bounds())
	if box.Empty() {
		return make([]float32, EmbeddingSize)
	}

	crop := image.NewRGBA(image.Rect(0, 0, inputSize, inputSize))
	xdraw.BiLinear.Scale(crop, crop.Bounds(), img, box, xdraw.Src, nil)

	gray := grayscale(crop)

	features := make([]float32, 0, (inputSize/patchSize)*(inputSize/patchSize)*4)
	for y := 0; y < inputSize; y += patchSize {
		for x := 0; x < inputSize; x += patchSize {
			features = append(features, patchStats(gray, x, y)...)
		}
	}

	return l2Normalize(features[:EmbeddingSize])
}

// grayscale converts to 8-bit luma (BT.601 weights, rounded) scaled to [0,1].
func grayscale(img *image.RGBA) []float64 {
	gray := make([]float64, inputSize*inputSize)
	for y := 0; y < inputSize; y++ {
		for x := 0; x < inputSize; x++ {
			i := img.PixOffset(x, y)
			r, g, b := float64(img.Pix[i]), float64(img.Pix[i+1]), float64(img.Pix[i+2])
			luma := math.Round(0.299*r + 0.587*g + 0.114*b)
			gray[y*inputSize+x] = math.Min(luma, 255) / 255.0
		}
	}
	return gray
}

func patchStats(gray []float64, x0, y0 int) []float32 {
	var sum float64
	lo, hi := math.Inf(1), math.Inf(-1)
	for y := y0; y < y0+patchSize; y++ {
		for x := x0; x < x0+patchSize; x++ {
			v := gray[y*inputSize+x]
			sum += v
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	n := float64(patchSize * patchSize)
	mean := sum / n

	var variance float64
	for y := y0; y < y0+patchSize; y++ {
		for x := x0; x < x0+patchSize; x++ {
			d := gray[y*inputSize+x] - mean
			variance += d * d
		}
	}
	std := math.Sqrt(variance / n)

	return []float32{float32(mean), float32(std), float32(lo), float32(hi)}
}

func l2Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	norm := vectorNorm(v)
	if norm == 0 {
		return out
	}
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
