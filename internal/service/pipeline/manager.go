package pipeline

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/confirm"
)

// AcquireFunc leases the capture device. It fails while another session holds it.
type AcquireFunc func() (Source, error)

// SinkFactory builds the evidence sink of a new session.
type SinkFactory func(sessionID string) EventSink

// Options configures a Manager.
type Options struct {
	Acquire   AcquireFunc
	Detector  Detector
	Annotator Annotator
	NewSink   SinkFactory
	Threshold int
	Cutoff    float64
	Logger    *logger.Logger
}

// SessionInfo describes a running session.
type SessionInfo struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	StartedAt time.Time `json:"startedAt"`
	Frames    uint64    `json:"frames"`
	Confirmed uint64    `json:"confirmed"`
}

// Manager opens sessions on the shared capture device and fans the live
// timeline out to read-only watchers.
type Manager struct {
	opts  Options
	watch *Broadcast
	now   func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	started  map[string]time.Time
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:     opts,
		watch:    NewBroadcast(),
		now:      time.Now,
		sessions: make(map[string]*Session),
		started:  make(map[string]time.Time),
	}
}

// Open leases the device and starts a session for userID. The caller owns the
// session and must Close it.
func (m *Manager) Open(userID int64) (*Session, error) {
	source, err := m.opts.Acquire()
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		ID:        id,
		UserID:    userID,
		source:    source,
		detector:  m.opts.Detector,
		annotator: m.opts.Annotator,
		state:     confirm.New(m.opts.Threshold, m.opts.Cutoff),
		sink:      m.opts.NewSink(id),
		feed:      m.watch,
		logger:    m.opts.Logger,
		now:       m.now,
		onClose:   m.forget,
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.started[id] = m.now()
	m.mu.Unlock()

	m.opts.Logger.Info("Session %s opened for user %d", id, userID)
	return s, nil
}

func (m *Manager) forget(s *Session) {
	m.mu.Lock()
	delete(m.sessions, s.ID)
	delete(m.started, s.ID)
	m.mu.Unlock()
}

// Sessions lists running sessions, oldest first.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	infos := make([]SessionInfo, 0, len(m.sessions))
	running := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		infos = append(infos, SessionInfo{ID: id, UserID: s.UserID, StartedAt: m.started[id]})
		running = append(running, s)
	}
	m.mu.Unlock()

	for i, s := range running {
		infos[i].Frames, infos[i].Confirmed = s.Stats()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].StartedAt.Before(infos[j].StartedAt) })
	return infos
}

// Watch serves the leaseholder's annotated timeline as a multipart stream.
// Watchers stay connected across sessions until they leave or Shutdown.
func (m *Manager) Watch() http.Handler {
	return m.watch
}

// Shutdown ends every watch and closes every running session.
func (m *Manager) Shutdown() error {
	m.watch.Close()

	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	var firstErr error
	for _, s := range sessions {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close session %s: %w", s.ID, err)
		}
	}
	return firstErr
}
