package annotate

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/pipeline"
)

// ErrNotMat is returned when a frame did not come from a gocv capture.
var ErrNotMat = errors.New("frame is not a gocv.Mat")

var green = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// Annotator draws detection boxes and encodes frames as JPEG.
type Annotator struct {
	quality int
}

// NewAnnotator creates an Annotator. quality outside 1..100 uses the OpenCV default.
func NewAnnotator(quality int) *Annotator {
	return &Annotator{quality: quality}
}

// Label formats the overlay text of a detection.
func Label(d dto.DetectionResult) string {
	return fmt.Sprintf("%s:%.2f", d.Label, d.Confidence)
}

// Annotate draws every detection on a copy of the frame and encodes the copy.
// The frame itself is left untouched.
func (a *Annotator) Annotate(frame pipeline.Frame, detections []dto.DetectionResult) ([]byte, error) {
	mat, ok := frame.(*gocv.Mat)
	if !ok {
		return nil, ErrNotMat
	}
	if len(detections) == 0 {
		return a.encode(*mat)
	}

	canvas := mat.Clone()
	defer canvas.Close()

	for _, detection := range detections {
		if err := gocv.Rectangle(&canvas, detection.Rect(), green, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %w", err)
		}
		pt := image.Pt(detection.X, detection.Y-10)
		if err := gocv.PutText(&canvas, Label(detection), pt, gocv.FontHersheySimplex, 0.5, green, 2); err != nil {
			return nil, fmt.Errorf("failed to draw text: %w", err)
		}
	}
	return a.encode(canvas)
}

// Encode encodes the raw frame.
func (a *Annotator) Encode(frame pipeline.Frame) ([]byte, error) {
	mat, ok := frame.(*gocv.Mat)
	if !ok {
		return nil, ErrNotMat
	}
	return a.encode(*mat)
}

func (a *Annotator) encode(mat gocv.Mat) ([]byte, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("cannot encode empty frame")
	}

	var (
		buf *gocv.NativeByteBuffer
		err error
	)
	if a.quality > 0 && a.quality <= 100 {
		buf, err = gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, a.quality})
	} else {
		buf, err = gocv.IMEncode(gocv.JPEGFileExt, mat)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
