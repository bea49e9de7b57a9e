package dto

import "time"

// ConfirmedEvent is emitted when a run of violent frames reaches the threshold.
type ConfirmedEvent struct {
	SessionID   string
	UserID      int64
	Sequence    uint64
	Image       []byte // JPEG of the confirming frame
	Detections  []DetectionResult
	ConfirmedAt time.Time
}
