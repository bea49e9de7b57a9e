// Package confirm debounces per-frame violence detections into confirmed events.
package confirm

import "github.com/TeamViewMore/Poksin-Webcam/internal/dto"

const (
	// DefaultThreshold is the number of consecutive violent frames that confirms an event.
	DefaultThreshold = 5
	// DefaultCutoff is the confidence a detection must strictly exceed.
	DefaultCutoff = 0.75
)

// State tracks the trailing run of violent frames for one capture session.
// It is not safe for concurrent use; a session owns exactly one State.
type State struct {
	count     int
	threshold int
	cutoff    float64
}

// New returns an idle State. Non-positive thresholds fall back to DefaultThreshold.
func New(threshold int, cutoff float64) *State {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &State{threshold: threshold, cutoff: cutoff}
}

// IsViolent reports whether any detection is strictly above cutoff.
func IsViolent(detections []dto.DetectionResult, cutoff float64) bool {
	for _, d := range detections {
		if d.Confidence > cutoff {
			return true
		}
	}
	return false
}

// Observe feeds the detections of one frame and reports whether this frame
// confirmed an event. The counter is back at zero after a confirmation.
func (s *State) Observe(detections []dto.DetectionResult) bool {
	if !IsViolent(detections, s.cutoff) {
		s.count = 0
		return false
	}

	s.count++
	if s.count >= s.threshold {
		s.count = 0
		return true
	}
	return false
}

// Count returns the length of the current trailing violent run.
func (s *State) Count() int {
	return s.count
}

// Threshold returns the configured run length.
func (s *State) Threshold() int {
	return s.threshold
}

// Cutoff returns the configured confidence cutoff.
func (s *State) Cutoff() float64 {
	return s.cutoff
}

// Reset returns the machine to idle.
func (s *State) Reset() {
	s.count = 0
}
