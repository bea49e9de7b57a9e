package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/confirm"
)

// submitTimeout bounds how long a confirmed event waits for a free queue slot.
const submitTimeout = 2 * time.Minute

// Session is the context of one running capture session. It owns the device
// lease, the confirmation state and the evidence sink; nothing is process-wide.
type Session struct {
	ID     string
	UserID int64

	source    Source
	detector  Detector
	annotator Annotator
	state     *confirm.State
	sink      EventSink
	feed      Feed
	logger    *logger.Logger
	now       func() time.Time
	onClose   func(*Session)

	frames    atomic.Uint64
	confirmed atomic.Uint64

	mu        sync.Mutex
	ended     bool
	closeOnce sync.Once
	closeErr  error
}

// Stats reports how many frames the session read and how many events it confirmed.
func (s *Session) Stats() (frames, confirmed uint64) {
	return s.frames.Load(), s.confirmed.Load()
}

// Next produces the next multipart part. It returns io.EOF once the source has
// ended and ctx.Err() when the consumer went away. Frames that fail to encode are
// skipped; the stream continues with the next frame.
func (s *Session) Next(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.ended {
			return nil, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := s.source.Next()
		if err != nil {
			s.ended = true
			s.logger.Info("Session %s: capture ended after %d frames: %v", s.ID, s.frames.Load(), err)
			return nil, io.EOF
		}
		seq := s.frames.Add(1)

		jpeg, err := s.process(ctx, frame, seq)
		frame.Close()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warning("Session %s: skipping frame %d: %v", s.ID, seq, err)
			continue
		}

		if s.feed != nil {
			s.feed.UpdateJPEG(jpeg)
		}
		return Part(jpeg), nil
	}
}

// process runs one frame through detect, confirm, evidence hand-off and annotation.
func (s *Session) process(ctx context.Context, frame Frame, seq uint64) ([]byte, error) {
	detections, err := s.detector.Detect(frame)
	if err != nil {
		// The frame is still streamed, without overlay, and is not counted.
		s.logger.Warning("Session %s: inference failed on frame %d: %v", s.ID, seq, err)
		return s.annotator.Encode(frame)
	}

	if s.state.Observe(detections) {
		s.handleConfirmed(ctx, frame, detections, s.confirmed.Add(1))
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	return s.annotator.Annotate(frame, detections)
}

func (s *Session) handleConfirmed(ctx context.Context, frame Frame, detections []dto.DetectionResult, seq uint64) {
	image, err := s.annotator.Encode(frame)
	if err != nil {
		s.logger.Error("Session %s: confirmed event %d dropped, encode failed: %v", s.ID, seq, err)
		return
	}

	event := dto.ConfirmedEvent{
		SessionID:   s.ID,
		UserID:      s.UserID,
		Sequence:    seq,
		Image:       image,
		Detections:  detections,
		ConfirmedAt: s.now(),
	}

	s.logger.Info("Session %s: violence confirmed (event %d, user %d)", s.ID, seq, s.UserID)

	// A confirmed event is kept even if the viewer leaves while the queue is full.
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
	defer cancel()
	if err := s.sink.Submit(submitCtx, event); err != nil {
		s.logger.Error("Session %s: confirmed event %d not queued: %v", s.ID, seq, err)
	}
}

// Close releases the capture device and waits for queued evidence to be persisted.
// It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		errSource := s.source.Close()
		errSink := s.sink.Close()
		s.closeErr = errors.Join(errSource, errSink)

		if s.onClose != nil {
			s.onClose(s)
		}
		frames, confirmed := s.Stats()
		s.logger.Info("Session %s closed: %d frames, %d confirmed events", s.ID, frames, confirmed)
	})
	return s.closeErr
}
