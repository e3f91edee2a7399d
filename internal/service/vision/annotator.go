// Package vision decodes meter photos and draws detection overlays on them.
package vision

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"meterease/internal/model"
)

const (
	// PreviewWidth and PreviewHeight are the fixed preview dimensions.
	// Aspect ratio is not preserved.
	PreviewWidth  = 600
	PreviewHeight = 300
)

// ErrInvalidImage is returned when uploaded bytes cannot be decoded.
var ErrInvalidImage = errors.New("invalid image")

// Decode turns encoded image bytes into a BGR matrix. The caller owns the
// returned Mat and must Close it.
func Decode(data []byte) (gocv.Mat, error) {
	if len(data) == 0 {
		return gocv.NewMat(), fmt.Errorf("%w: empty upload", ErrInvalidImage)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.NewMat(), fmt.Errorf("%w: unsupported or corrupt data", ErrInvalidImage)
	}
	return mat, nil
}

// EncodeJPEG encodes mat as JPEG bytes.
func EncodeJPEG(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// Annotator draws boxes and labels for ordered detections.
type Annotator struct {
	BoxColor  color.RGBA
	TextColor color.RGBA
	Thickness int
	FontScale float64
}

// NewAnnotator returns an annotator with the default overlay style.
func NewAnnotator() *Annotator {
	return &Annotator{
		BoxColor:  color.RGBA{R: 255, G: 64, B: 64, A: 0},
		TextColor: color.RGBA{R: 255, G: 255, B: 255, A: 0},
		Thickness: 2,
		FontScale: 0.6,
	}
}

// Annotate draws every detection on a copy of src and resizes the copy to
// the preview size. src is left untouched. The caller must Close the result.
func (a *Annotator) Annotate(src gocv.Mat, detections []model.Detection) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), fmt.Errorf("%w: empty matrix", ErrInvalidImage)
	}

	scene := src.Clone()
	defer scene.Close()

	for _, d := range detections {
		if err := a.drawDetection(&scene, d); err != nil {
			return gocv.NewMat(), err
		}
	}

	preview := gocv.NewMat()
	if err := gocv.Resize(scene, &preview, image.Pt(PreviewWidth, PreviewHeight), 0, 0, gocv.InterpolationLinear); err != nil {
		preview.Close()
		return gocv.NewMat(), fmt.Errorf("failed to resize image: %w", err)
	}
	return preview, nil
}

func (a *Annotator) drawDetection(scene *gocv.Mat, d model.Detection) error {
	box := image.Rect(round(d.Left), round(d.Top), round(d.Right), round(d.Bottom))
	if err := gocv.Rectangle(scene, box, a.BoxColor, a.Thickness); err != nil {
		return fmt.Errorf("failed to draw rectangle: %w", err)
	}

	if d.Label == "" {
		return nil
	}

	// Label sits on a filled strip above the box, or inside it when the box
	// touches the top edge of the image.
	size := gocv.GetTextSize(d.Label, gocv.FontHersheySimplex, a.FontScale, 1)
	pad := 4
	stripTop := box.Min.Y - size.Y - 2*pad
	if stripTop < 0 {
		stripTop = box.Min.Y
	}
	strip := image.Rect(box.Min.X, stripTop, box.Min.X+size.X+2*pad, stripTop+size.Y+2*pad)
	if err := gocv.Rectangle(scene, strip, a.BoxColor, -1); err != nil {
		return fmt.Errorf("failed to draw label background: %w", err)
	}

	origin := image.Pt(strip.Min.X+pad, strip.Max.Y-pad)
	if err := gocv.PutText(scene, d.Label, origin, gocv.FontHersheySimplex, a.FontScale, a.TextColor, 1); err != nil {
		return fmt.Errorf("failed to draw text: %w", err)
	}
	return nil
}

func round(v float64) int {
	return int(math.Round(v))
}
