package capture

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"gocv.io/x/gocv"

	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/pipeline"
)

var (
	// ErrDeviceBusy is returned by Acquire while another session holds the device.
	ErrDeviceBusy = pipeline.ErrDeviceBusy
	// ErrSourceClosed ends a source: the device failed or the lease was released.
	ErrSourceClosed = errors.New("capture source closed")
)

// Device is the single capture device of the process. It is opened per lease and
// hands out at most one lease at a time.
type Device struct {
	target string
	logger *logger.Logger

	mu     sync.Mutex
	leased bool
}

// NewDevice creates a Device for target, a camera index ("0") or a stream URL/file.
func NewDevice(target string, logger *logger.Logger) *Device {
	return &Device{target: target, logger: logger}
}

// captureTarget converts numeric targets to a device index for gocv.
func captureTarget(target string) interface{} {
	if id, err := strconv.Atoi(target); err == nil {
		return id
	}
	return target
}

// Acquire opens the device and returns the exclusive Source.
func (d *Device) Acquire() (*Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.leased {
		return nil, ErrDeviceBusy
	}

	webcam, err := gocv.OpenVideoCapture(captureTarget(d.target))
	if err != nil {
		return nil, fmt.Errorf("failed to open capture device %s: %w", d.target, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("capture device %s did not open", d.target)
	}

	d.leased = true
	d.logger.Info("Capture device %s leased", d.target)
	return &Source{device: d, webcam: webcam}, nil
}

// Leased reports whether a session currently holds the device.
func (d *Device) Leased() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.leased
}

func (d *Device) release() {
	d.mu.Lock()
	d.leased = false
	d.mu.Unlock()
	d.logger.Info("Capture device %s released", d.target)
}

// Source reads frames from a leased device. Next and Close are serialized so a
// read never races the underlying capture being freed.
type Source struct {
	device *Device
	webcam *gocv.VideoCapture

	mu     sync.Mutex
	closed bool
}

// Next blocks for the next frame. The returned frame is a *gocv.Mat owned by the caller.
func (s *Source) Next() (pipeline.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}

	mat := gocv.NewMat()
	if ok := s.webcam.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrSourceClosed
	}
	return &mat, nil
}

// Close frees the capture and returns the lease.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.webcam.Close()
	s.device.release()
	return err
}
