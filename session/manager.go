package session

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ronith256-meesho/qw-asr/audio"
	"github.com/ronith256-meesho/qw-asr/internal/observe"
	"github.com/ronith256-meesho/qw-asr/services/stt"
	"github.com/ronith256-meesho/qw-asr/services/vad"
)

// defaultIdleTTL closes sessions with no inbound activity.
const defaultIdleTTL = 10 * time.Minute

// sweepInterval is the idle sweeper cadence.
const sweepInterval = 30 * time.Second

// ManagerOptions configure a session manager.
type ManagerOptions struct {
	Decoder stt.Decoder

	// NewVADModel creates a per-session VAD model instance. Backends that
	// keep per-stream state (Silero LSTM state) return fresh instances;
	// stateless backends may return a shared one.
	NewVADModel func() (vad.Model, error)

	// NewFilter creates the optional per-session pre-VAD denoiser. Nil means
	// no filtering.
	NewFilter func() audio.NoiseFilter

	MaxSessions   int
	IdleTTL       time.Duration
	FrameSize     int
	DecodeTimeout time.Duration

	Logger  *slog.Logger
	Metrics *observe.Metrics
}

// Manager owns the session table: create, lookup, retire. A background
// sweeper closes idle sessions past the TTL, and the maximum concurrent
// session count is enforced at creation.
type Manager struct {
	opts ManagerOptions
	log  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a manager and starts its idle sweeper.
func NewManager(opts ManagerOptions) *Manager {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IdleTTL == 0 {
		opts.IdleTTL = defaultIdleTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:     opts,
		log:      opts.Logger.With("component", "session-manager"),
		sessions: make(map[string]*Session),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go m.sweep()
	return m
}

// Create makes a new session with a random 128-bit id, or fails with
// ErrServerBusy when the concurrent session limit is reached.
func (m *Manager) Create() (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.opts.MaxSessions > 0 && len(m.sessions) >= m.opts.MaxSessions {
		return nil, ErrServerBusy
	}

	model, err := m.opts.NewVADModel()
	if err != nil {
		return nil, err
	}

	var filter audio.NoiseFilter
	if m.opts.NewFilter != nil {
		filter = m.opts.NewFilter()
	}

	raw := uuid.New()
	id := hex.EncodeToString(raw[:])

	s := New(Options{
		ID:            id,
		Decoder:       m.opts.Decoder,
		VADModel:      model,
		Filter:        filter,
		FrameSize:     m.opts.FrameSize,
		Logger:        m.opts.Logger,
		Metrics:       m.opts.Metrics,
		DecodeTimeout: m.opts.DecodeTimeout,
		OnClose:       m.retire,
	})
	m.sessions[id] = s
	m.log.Info("session created", slog.String("session_id", id), slog.Int("active", len(m.sessions)))
	return s, nil
}

// Get looks up a live session by id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len returns the live session count.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// retire removes a closed session from the table.
func (m *Manager) retire(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		m.log.Info("session retired", slog.String("session_id", id), slog.Int("active", len(m.sessions)))
	}
}

// sweep closes sessions whose last activity is older than the idle TTL.
func (m *Manager) sweep() {
	defer close(m.done)
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.closeIdle()
		}
	}
}

func (m *Manager) closeIdle() {
	cutoff := time.Now().Add(-m.opts.IdleTTL)

	m.mu.Lock()
	var idle []*Session
	for _, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.log.Info("closing idle session", slog.String("session_id", s.ID()))
		s.Close()
	}
}

// Shutdown stops the sweeper and closes every live session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.cancel()
	select {
	case <-m.done:
	case <-ctx.Done():
	}

	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
	return nil
}
