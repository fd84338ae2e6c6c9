package face

import (
	"context"
	"fmt"
	"image"

	pigo "github.com/esimov/pigo/core"
	"github.com/spf13/afero"
)

// BBox is a detection box in pixel coordinates of the normalized image.
type BBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (b BBox) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

type Detection struct {
	Box       BBox
	Score     float32
	Landmarks []image.Point
}

// Detector finds candidate faces in an image. Implementations must be safe
// for concurrent use.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

type DetectorOptions struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float32
}

func DefaultDetectorOptions() DetectorOptions {
	return DetectorOptions{
		MinSize:      40,
		MaxSize:      1048,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}
}

// PigoDetector runs a pixel-intensity-comparison cascade. The unpacked
// classifier is read-only after construction.
type PigoDetector struct {
	classifier *pigo.Pigo
	opts       DetectorOptions
}

func NewPigoDetector(cascade []byte, opts DetectorOptions) (*PigoDetector, error) {
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack face cascade: %w", err)
	}
	return &PigoDetector{classifier: classifier, opts: opts}, nil
}

// LoadPigoDetector reads the cascade file from fs.
func LoadPigoDetector(fs afero.Fs, path string, opts DetectorOptions) (*PigoDetector, error) {
	cascade, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read face cascade %s: %w", path, err)
	}
	return NewPigoDetector(cascade, opts)
}

func (d *PigoDetector) Detect(ctx context.Context, img image.Image) ([]Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rgba := Normalize(img, 0)
	cols, rows := rgba.Bounds().Dx(), rgba.Bounds().Dy()

	params := pigo.CascadeParams{
		MinSize:     d.opts.MinSize,
		MaxSize:     d.opts.MaxSize,
		ShiftFactor: d.opts.ShiftFactor,
		ScaleFactor: d.opts.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pigo.RgbToGrayscale(rgba),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}

	dets := d.classifier.RunCascade(params, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.opts.IoUThreshold)

	out := make([]Detection, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.opts.MinQuality {
			continue
		}
		half := det.Scale / 2
		out = append(out, Detection{
			Box: BBox{
				X1: det.Col - half,
				Y1: det.Row - half,
				X2: det.Col - half + det.Scale,
				Y2: det.Row - half + det.Scale,
			},
			Score: det.Q,
		})
	}
	return out, nil
}

// clampDetections clips boxes to bounds, drops empty ones and keeps at most
// limit in detector order.
func clampDetections(dets []Detection, bounds image.Rectangle, limit int) []Detection {
	out := make([]Detection, 0, min(len(dets), limit))
	for _, det := range dets {
		if len(out) >= limit {
			break
		}
		r := det.Box.Rect().Intersect(bounds)
		if r.Empty() {
			continue
		}
		det.Box = BBox{X1: r.Min.X, Y1: r.Min.Y, X2: r.Max.X, Y2: r.Max.Y}
		out = append(out, det)
	}
	return out
}
