package evidence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/TeamViewMore/Poksin-Webcam/internal/dto"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
)

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("evidence queue closed")

// eventTimeout bounds the persistence of one confirmed event.
const eventTimeout = 2 * time.Minute

// ConfirmedRecorder persists one confirmed event.
type ConfirmedRecorder interface {
	RecordConfirmed(ctx context.Context, event dto.ConfirmedEvent) (*model.Evidence, error)
}

// Queue moves persistence of a session's confirmed events off the frame loop.
// A single worker handles events in submission order, so appends to the day's
// record keep arrival order.
type Queue struct {
	sessionID string
	recorder  ConfirmedRecorder
	events    chan dto.ConfirmedEvent
	logger    *logger.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
	once   sync.Once
}

// NewQueue starts the worker of a queue holding up to size pending events.
func NewQueue(sessionID string, recorder ConfirmedRecorder, size int, logger *logger.Logger) *Queue {
	if size <= 0 {
		size = 1
	}
	q := &Queue{
		sessionID: sessionID,
		recorder:  recorder,
		events:    make(chan dto.ConfirmedEvent, size),
		logger:    logger,
		done:      make(chan struct{}),
	}
	go q.worker()
	return q
}

// Submit enqueues event, blocking while the queue is full.
func (q *Queue) Submit(ctx context.Context, event dto.ConfirmedEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.events <- event:
		return nil
	default:
		q.logger.Warning("Evidence queue of session %s full, frame loop waits", q.sessionID)
	}

	select {
	case q.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued events.
func (q *Queue) Pending() int {
	return len(q.events)
}

// Close stops accepting events and waits until queued ones are persisted.
func (q *Queue) Close() error {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		close(q.events)
		q.mu.Unlock()
	})
	<-q.done
	return nil
}

func (q *Queue) worker() {
	defer close(q.done)

	for event := range q.events {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		if _, err := q.recorder.RecordConfirmed(ctx, event); err != nil {
			q.logger.Error("Session %s: evidence for event %d failed: %v", q.sessionID, event.Sequence, err)
		}
		cancel()
	}
}
