package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/TeamViewMore/Poksin-Webcam/internal/config"
	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/confirm"
)

// ========================================
// Fakes
// ========================================

type fakeFrame struct {
	id         int
	confidence float64
	detectErr  bool
	encodeErr  bool
	closed     bool
}

func (f *fakeFrame) Close() error {
	f.closed = true
	return nil
}

type fakeSource struct {
	frames []*fakeFrame
	pos    int
	closed bool
}

func (s *fakeSource) Next() (Frame, error) {
	if s.closed || s.pos >= len(s.frames) {
		return nil, errors.New("device read failed")
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type fakeDetector struct{}

func (fakeDetector) Detect(frame Frame) ([]dto.DetectionResult, error) {
	f := frame.(*fakeFrame)
	if f.detectErr {
		return nil, errors.New("model call failed")
	}
	if f.confidence == 0 {
		return nil, nil
	}
	return []dto.DetectionResult{{Label: "violence", Confidence: f.confidence, Width: 10, Height: 10}}, nil
}

type fakeAnnotator struct{}

func (fakeAnnotator) Annotate(frame Frame, detections []dto.DetectionResult) ([]byte, error) {
	f := frame.(*fakeFrame)
	if f.encodeErr {
		return nil, errors.New("encode failed")
	}
	return []byte(fmt.Sprintf("annotated-%d-%d", f.id, len(detections))), nil
}

func (fakeAnnotator) Encode(frame Frame) ([]byte, error) {
	f := frame.(*fakeFrame)
	if f.encodeErr {
		return nil, errors.New("encode failed")
	}
	return []byte(fmt.Sprintf("raw-%d", f.id)), nil
}

type fakeSink struct {
	mu     sync.Mutex
	events []dto.ConfirmedEvent
	closed bool
}

func (s *fakeSink) Submit(ctx context.Context, event dto.ConfirmedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type recordingFeed struct {
	frames [][]byte
}

func (f *recordingFeed) UpdateJPEG(jpeg []byte) {
	f.frames = append(f.frames, jpeg)
}

// ========================================
// Helpers
// ========================================

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l := logger.NewLogger(&config.Config{LogDirectory: t.TempDir()})
	t.Cleanup(func() { l.Close() })
	return l
}

// framesFrom builds frames from a pattern: v violent, c clean, x detector failure, e encode failure.
func framesFrom(pattern string) []*fakeFrame {
	frames := make([]*fakeFrame, 0, len(pattern))
	for i, ch := range pattern {
		f := &fakeFrame{id: i + 1}
		switch ch {
		case 'v':
			f.confidence = 0.9
		case 'c':
			f.confidence = 0.3
		case 'x':
			f.detectErr = true
		case 'e':
			f.encodeErr = true
		}
		frames = append(frames, f)
	}
	return frames
}

func newTestSession(t *testing.T, pattern string) (*Session, *fakeSource, *fakeSink, *recordingFeed) {
	t.Helper()
	source := &fakeSource{frames: framesFrom(pattern)}
	sink := &fakeSink{}
	feed := &recordingFeed{}
	s := &Session{
		ID:        "test-session",
		UserID:    7,
		source:    source,
		detector:  fakeDetector{},
		annotator: fakeAnnotator{},
		state:     confirm.New(5, 0.75),
		sink:      sink,
		feed:      feed,
		logger:    newTestLogger(t),
		now:       func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) },
	}
	return s, source, sink, feed
}

func drain(t *testing.T, s *Session) [][]byte {
	t.Helper()
	var parts [][]byte
	for {
		part, err := s.Next(context.Background())
		if err == io.EOF {
			return parts
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		parts = append(parts, part)
	}
}

// ========================================
// Tests
// ========================================

func TestPart_Format(t *testing.T) {
	got := Part([]byte("JPEG"))
	expected := "--frame\r\nContent-Type: image/jpeg\r\n\r\nJPEG\r\n"
	if string(got) != expected {
		t.Errorf("Part() = %q, expected %q", got, expected)
	}
	if ContentType != "multipart/x-mixed-replace; boundary=frame" {
		t.Errorf("Unexpected content type %q", ContentType)
	}
}

func TestSession_StreamsInOrderUntilSourceEnds(t *testing.T) {
	s, source, _, feed := newTestSession(t, "ccc")

	parts := drain(t, s)
	if len(parts) != 3 {
		t.Fatalf("Expected 3 parts, got %d", len(parts))
	}
	for i, part := range parts {
		want := Part([]byte(fmt.Sprintf("annotated-%d-1", i+1)))
		if !bytes.Equal(part, want) {
			t.Errorf("Part %d = %q, expected %q", i, part, want)
		}
	}
	for _, f := range source.frames {
		if !f.closed {
			t.Errorf("Frame %d was not released", f.id)
		}
	}
	if len(feed.frames) != 3 {
		t.Errorf("Expected 3 watcher frames, got %d", len(feed.frames))
	}

	// The sequence is not restartable.
	if _, err := s.Next(context.Background()); err != io.EOF {
		t.Errorf("Expected io.EOF after end, got %v", err)
	}
}

func TestSession_FiveViolentFramesConfirmOnce(t *testing.T) {
	s, _, sink, _ := newTestSession(t, "vvvvv")

	parts := drain(t, s)
	if len(parts) != 5 {
		t.Fatalf("Expected 5 parts, got %d", len(parts))
	}
	if len(sink.events) != 1 {
		t.Fatalf("Expected 1 confirmed event, got %d", len(sink.events))
	}

	ev := sink.events[0]
	if string(ev.Image) != "raw-5" {
		t.Errorf("Expected the raw confirming frame, got %q", ev.Image)
	}
	if ev.UserID != 7 || ev.SessionID != "test-session" || ev.Sequence != 1 {
		t.Errorf("Unexpected event %+v", ev)
	}
	if s.state.Count() != 0 {
		t.Errorf("Expected counter reset, got %d", s.state.Count())
	}
}

func TestSession_FourViolentThenCleanDoesNotConfirm(t *testing.T) {
	s, _, sink, _ := newTestSession(t, "vvvvc")

	drain(t, s)
	if len(sink.events) != 0 {
		t.Errorf("Expected no event, got %d", len(sink.events))
	}
	if s.state.Count() != 0 {
		t.Errorf("Expected counter 0, got %d", s.state.Count())
	}
}

func TestSession_EncodeFailureSkipsFrame(t *testing.T) {
	s, _, _, _ := newTestSession(t, "cec")

	parts := drain(t, s)
	if len(parts) != 2 {
		t.Fatalf("Expected 2 parts, got %d", len(parts))
	}
	if !bytes.Contains(parts[1], []byte("annotated-3")) {
		t.Errorf("Expected frame 3 after skipped frame, got %q", parts[1])
	}
}

func TestSession_InferenceFailureStreamsRawFrameWithoutCounting(t *testing.T) {
	s, _, sink, _ := newTestSession(t, "vvvvxv")

	parts := drain(t, s)
	if len(parts) != 6 {
		t.Fatalf("Expected 6 parts, got %d", len(parts))
	}
	if !bytes.Contains(parts[4], []byte("raw-5")) {
		t.Errorf("Expected raw frame for failed inference, got %q", parts[4])
	}
	// The failed frame neither resets nor advances the run.
	if len(sink.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(sink.events))
	}
	if string(sink.events[0].Image) != "raw-6" {
		t.Errorf("Expected confirmation on frame 6, got %q", sink.events[0].Image)
	}
}

func TestSession_TenViolentFramesConfirmTwice(t *testing.T) {
	s, _, sink, _ := newTestSession(t, "vvvvvvvvvv")

	drain(t, s)
	if len(sink.events) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(sink.events))
	}
	if sink.events[0].Sequence != 1 || sink.events[1].Sequence != 2 {
		t.Errorf("Unexpected sequences %d, %d", sink.events[0].Sequence, sink.events[1].Sequence)
	}
	frames, confirmed := s.Stats()
	if frames != 10 || confirmed != 2 {
		t.Errorf("Unexpected stats %d/%d", frames, confirmed)
	}
}

func TestSession_CancelledContext(t *testing.T) {
	s, source, _, _ := newTestSession(t, "ccc")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if source.pos != 0 {
		t.Errorf("Expected no frame read after cancel, read %d", source.pos)
	}
}

func TestSession_CloseReleasesSourceAndSink(t *testing.T) {
	s, source, sink, _ := newTestSession(t, "c")

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Second Close failed: %v", err)
	}
	if !source.closed || !sink.closed {
		t.Error("Expected source and sink closed")
	}
}

func TestManager_OpenAndClose(t *testing.T) {
	var (
		mu     sync.Mutex
		leased bool
	)
	acquire := func() (Source, error) {
		mu.Lock()
		defer mu.Unlock()
		if leased {
			return nil, errors.New("device busy")
		}
		leased = true
		return &releasingSource{fakeSource: fakeSource{frames: framesFrom("c")}, release: func() {
			mu.Lock()
			leased = false
			mu.Unlock()
		}}, nil
	}

	m := NewManager(Options{
		Acquire:   acquire,
		Detector:  fakeDetector{},
		Annotator: fakeAnnotator{},
		NewSink:   func(string) EventSink { return &fakeSink{} },
		Threshold: 5,
		Cutoff:    0.75,
		Logger:    newTestLogger(t),
	})

	s, err := m.Open(3)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if s.ID == "" || s.UserID != 3 {
		t.Errorf("Unexpected session %q/%d", s.ID, s.UserID)
	}

	if _, err := m.Open(4); err == nil {
		t.Fatal("Expected second Open to fail while the device is leased")
	}

	infos := m.Sessions()
	if len(infos) != 1 || infos[0].ID != s.ID {
		t.Fatalf("Unexpected sessions %+v", infos)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if len(m.Sessions()) != 0 {
		t.Error("Expected session to be forgotten")
	}

	again, err := m.Open(4)
	if err != nil {
		t.Fatalf("Expected Open after Close to succeed: %v", err)
	}
	if again.ID == s.ID {
		t.Error("Expected a fresh session id")
	}
	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if len(m.Sessions()) != 0 {
		t.Error("Expected no sessions after Shutdown")
	}
}

type releasingSource struct {
	fakeSource
	release func()
}

func (s *releasingSource) Close() error {
	s.release()
	return s.fakeSource.Close()
}

// leavingSink cancels the viewer's context while the event waits for a slot.
type leavingSink struct {
	fakeSink
	leave func()
}

func (s *leavingSink) Submit(ctx context.Context, event dto.ConfirmedEvent) error {
	s.leave()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	return s.fakeSink.Submit(ctx, event)
}

func TestSession_ConfirmedEventSurvivesViewerLeavingWhileQueueFull(t *testing.T) {
	s, _, _, _ := newTestSession(t, "vvvvv")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &leavingSink{leave: cancel}
	s.sink = sink

	var err error
	for err == nil {
		_, err = s.Next(ctx)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if len(sink.events) != 1 {
		t.Fatalf("Expected the confirmed event to be queued, got %d", len(sink.events))
	}
	if string(sink.events[0].Image) != "raw-5" {
		t.Errorf("Unexpected event image %q", sink.events[0].Image)
	}
}
