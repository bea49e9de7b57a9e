package ai

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/TeamViewMore/Poksin-Webcam/internal/config"
	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/pipeline"
)

// MinConfidence drops boxes too weak to draw. The violence cutoff is applied later.
const MinConfidence = 0.25

// ErrNotMat is returned when a frame did not come from a gocv capture.
var ErrNotMat = errors.New("frame is not a gocv.Mat")

// DNNDetector runs an SSD-style network through gocv's dnn module.
type DNNDetector struct {
	net    gocv.Net
	labels []string
	mu     sync.Mutex
	logger *logger.Logger
}

// NewDNNDetector loads the model, optional config and labels named by config.
func NewDNNDetector(config *config.Config, logger *logger.Logger) (*DNNDetector, error) {
	if _, err := os.Stat(config.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", config.ModelPath)
	}
	if config.ConfigPath != "" {
		if _, err := os.Stat(config.ConfigPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", config.ConfigPath)
		}
	}

	labels, err := loadLabels(config.LabelsPath)
	if err != nil {
		logger.Warning("Could not read labels, using class ids: %v", err)
	}

	net := gocv.ReadNet(config.ModelPath, config.ConfigPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network %s", config.ModelPath)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	logger.Info("Detection network initialized: %s (%d labels)", config.ModelPath, len(labels))
	return &DNNDetector{net: net, labels: labels, logger: logger}, nil
}

// Detect returns every box above MinConfidence, in pixel coordinates.
func (d *DNNDetector) Detect(frame pipeline.Frame) ([]dto.DetectionResult, error) {
	mat, ok := frame.(*gocv.Mat)
	if !ok {
		return nil, ErrNotMat
	}
	if mat.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	blob := gocv.BlobFromImage(*mat, 1.0/127.5, image.Pt(300, 300), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	if output.Empty() || output.Total()%7 != 0 {
		return nil, fmt.Errorf("unexpected network output of %d values", output.Total())
	}

	// Rows are [batch_id, class_id, confidence, x1, y1, x2, y2] with relative coordinates.
	rows := output.Reshape(1, output.Total()/7)
	defer rows.Close()

	cols, height := float32(mat.Cols()), float32(mat.Rows())
	var results []dto.DetectionResult
	for i := 0; i < rows.Rows(); i++ {
		confidence := rows.GetFloatAt(i, 2)
		if confidence <= MinConfidence {
			continue
		}
		x := int(rows.GetFloatAt(i, 3) * cols)
		y := int(rows.GetFloatAt(i, 4) * height)
		results = append(results, dto.DetectionResult{
			Label:      d.label(int(rows.GetFloatAt(i, 1))),
			Confidence: float64(confidence),
			X:          x,
			Y:          y,
			Width:      int(rows.GetFloatAt(i, 5)*cols) - x,
			Height:     int(rows.GetFloatAt(i, 6)*height) - y,
		})
	}
	return results, nil
}

// Close frees the network.
func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

func (d *DNNDetector) label(classID int) string {
	return labelFor(d.labels, classID)
}

func labelFor(labels []string, classID int) string {
	if classID >= 0 && classID < len(labels) {
		return labels[classID]
	}
	return fmt.Sprintf("class%d", classID)
}

// loadLabels reads one label per line; line n names class id n.
func loadLabels(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var labels []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		labels = append(labels, strings.TrimSpace(scanner.Text()))
	}
	return labels, scanner.Err()
}
