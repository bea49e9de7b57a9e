package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newWatchManager(t *testing.T, pattern string) *Manager {
	t.Helper()
	return NewManager(Options{
		Acquire: func() (Source, error) {
			return &fakeSource{frames: framesFrom(pattern)}, nil
		},
		Detector:  fakeDetector{},
		Annotator: fakeAnnotator{},
		NewSink:   func(string) EventSink { return &fakeSink{} },
		Threshold: 5,
		Cutoff:    0.75,
		Logger:    newTestLogger(t),
	})
}

// startWatch serves m.Watch() in the background and waits until the watcher is registered.
func startWatch(t *testing.T, m *Manager) (*httptest.ResponseRecorder, context.CancelFunc, <-chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/video_feed/7/watch", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Watch().ServeHTTP(rec, req)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for m.watch.Watchers() == 0 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("watcher never registered")
		}
		time.Sleep(time.Millisecond)
	}
	return rec, cancel, done
}

func waitDone(t *testing.T, done <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("watch handler still running after %s", what)
	}
}

// watchedFrames splits a watch body into its frame ids, failing on any malformed part.
func watchedFrames(t *testing.T, body []byte) []int {
	t.Helper()
	header := []byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")
	var ids []int
	for len(body) > 0 {
		if !bytes.HasPrefix(body, header) {
			t.Fatalf("malformed part at %q", body)
		}
		body = body[len(header):]
		end := bytes.Index(body, []byte("\r\n"))
		if end < 0 {
			t.Fatalf("unterminated part %q", body)
		}
		payload := string(body[:end])
		body = body[end+2:]

		var id, boxes int
		if _, err := fmt.Sscanf(payload, "annotated-%d-%d", &id, &boxes); err != nil || boxes != 1 {
			t.Fatalf("unexpected payload %q", payload)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestBroadcast_WatcherReceivesWholePartsWhileSessionRuns(t *testing.T) {
	m := newWatchManager(t, string(bytes.Repeat([]byte("c"), 400)))
	rec, cancel, done := startWatch(t, m)
	defer cancel()

	s, err := m.Open(7)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	for {
		if _, err := s.Next(context.Background()); err != nil {
			if err != io.EOF {
				t.Fatalf("Next failed: %v", err)
			}
			break
		}
	}
	s.Close()

	// Let the watcher write what it already holds before leaving.
	time.Sleep(20 * time.Millisecond)
	cancel()
	waitDone(t, done, "client disconnect")

	if ct := rec.Header().Get("Content-Type"); ct != ContentType {
		t.Errorf("Unexpected content type %q", ct)
	}
	ids := watchedFrames(t, rec.Body.Bytes())
	if len(ids) == 0 {
		t.Fatal("Expected the watcher to receive frames")
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("Frames out of order: %v", ids)
		}
	}
	if m.watch.Watchers() != 0 {
		t.Errorf("Expected watcher removed, got %d", m.watch.Watchers())
	}
}

func TestBroadcast_DisconnectWithoutSession(t *testing.T) {
	m := newWatchManager(t, "c")
	rec, cancel, done := startWatch(t, m)

	cancel()
	waitDone(t, done, "client disconnect")

	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("Expected empty 200 stream, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestBroadcast_ShutdownEndsWatchers(t *testing.T) {
	m := newWatchManager(t, "c")
	_, cancel, done := startWatch(t, m)
	defer cancel()

	if err := m.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	waitDone(t, done, "Shutdown")

	rec := httptest.NewRecorder()
	m.Watch().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/video_feed/7/watch", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 after Shutdown, got %d", rec.Code)
	}
}

func TestBroadcast_PartsAreNotReused(t *testing.T) {
	b := NewBroadcast()
	c, ok := b.subscribe()
	if !ok {
		t.Fatal("subscribe failed")
	}

	b.UpdateJPEG([]byte("first"))
	first := <-c
	b.UpdateJPEG([]byte("second-frame"))
	second := <-c

	if !bytes.Equal(first, Part([]byte("first"))) {
		t.Errorf("First part changed to %q", first)
	}
	if !bytes.Equal(second, Part([]byte("second-frame"))) {
		t.Errorf("Unexpected second part %q", second)
	}
}
