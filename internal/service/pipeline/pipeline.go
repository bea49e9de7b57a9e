// Package pipeline runs one capture session: read, detect, confirm, hand
// confirmed frames to the evidence sink, annotate and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
)

// ErrDeviceBusy is returned by an AcquireFunc while another session holds the device.
var ErrDeviceBusy = errors.New("capture device is in use")

// Frame is one raw frame owned by a single loop iteration.
type Frame interface {
	Close() error
}

// Source yields frames from a leased capture device. Next blocks; any error is terminal.
type Source interface {
	Next() (Frame, error)
	Close() error
}

// Detector runs inference on a frame.
type Detector interface {
	Detect(frame Frame) ([]dto.DetectionResult, error)
}

// Annotator draws detection overlays and encodes frames to JPEG.
type Annotator interface {
	Annotate(frame Frame, detections []dto.DetectionResult) ([]byte, error)
	Encode(frame Frame) ([]byte, error)
}

// EventSink receives confirmed events. Submit may block for backpressure;
// Close waits for everything submitted to be handled.
type EventSink interface {
	Submit(ctx context.Context, event dto.ConfirmedEvent) error
	Close() error
}

// Feed receives every published JPEG for read-only watchers.
type Feed interface {
	UpdateJPEG(jpeg []byte)
}

// Boundary separates parts of the live multipart stream.
const Boundary = "frame"

// ContentType is the Content-Type of the live stream response.
const ContentType = "multipart/x-mixed-replace; boundary=" + Boundary

// Part wraps jpeg as one self-delimited multipart chunk.
func Part(jpeg []byte) []byte {
	header := fmt.Sprintf("--%s\r\nContent-Type: image/jpeg\r\n\r\n", Boundary)
	part := make([]byte, 0, len(header)+len(jpeg)+2)
	part = append(part, header...)
	part = append(part, jpeg...)
	return append(part, '\r', '\n')
}
