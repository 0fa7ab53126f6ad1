package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ronith256-meesho/qw-asr/audio"
	"github.com/ronith256-meesho/qw-asr/internal/observe"
	"github.com/ronith256-meesho/qw-asr/media"
	"github.com/ronith256-meesho/qw-asr/services/stt"
	"github.com/ronith256-meesho/qw-asr/services/vad"
)

// defaultInboundQueueSize bounds the per-session inbound message queue.
const defaultInboundQueueSize = 64

// defaultDecodeTimeout is the upper bound on one streaming-decode call.
const defaultDecodeTimeout = 10 * time.Second

// Options configure a new session.
type Options struct {
	ID       string
	Decoder  stt.Decoder
	VADModel vad.Model

	// Filter is the optional pre-VAD denoiser. Nil means passthrough.
	Filter audio.NoiseFilter

	// FrameSize is the VAD analysis size in samples. Zero selects the
	// recommended default.
	FrameSize int

	Logger  *slog.Logger
	Metrics *observe.Metrics

	DecodeTimeout time.Duration
	QueueSize     int

	// OnClose is invoked once when the session closes, after resources are
	// released. Used by the manager for self-retirement.
	OnClose func(id string)
}

// Session binds one client connection to one endpointer and decoder driver.
// The exported pipeline methods (ApplyConfig, Ingest, Finalize) are
// serialized by an internal mutex; the Enqueue* methods feed the bounded
// inbound queue drained by the session goroutine, which is how the
// connection handler drives the session.
type Session struct {
	id       string
	log      *slog.Logger
	metrics  *observe.Metrics
	decoder  stt.Decoder
	vadModel vad.Model
	filter   audio.NoiseFilter

	frameSize     int
	decodeTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	inbound *inboundQueue
	events  chan Event

	mu             sync.Mutex
	cfg            *Config
	ringbuf        *audio.FrameRingBuffer
	gate           *vad.Gate
	ep             *vad.Endpointer
	driver         *Driver
	audioProcessed bool
	streamSecs     float64
	closed         bool

	lastActivity atomicTime
	closeOnce    sync.Once
	onClose      func(id string)
	pumpDone     chan struct{}
}

// New creates a session and starts its pipeline goroutine.
func New(opts Options) *Session {
	if opts.Filter == nil {
		opts.Filter = audio.Passthrough{}
	}
	if opts.FrameSize == 0 {
		opts.FrameSize = vad.DefaultFrameSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DecodeTimeout == 0 {
		opts.DecodeTimeout = defaultDecodeTimeout
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = defaultInboundQueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:            opts.ID,
		log:           opts.Logger.With("component", "session", "session_id", opts.ID),
		metrics:       opts.Metrics,
		decoder:       opts.Decoder,
		vadModel:      opts.VADModel,
		filter:        opts.Filter,
		frameSize:     opts.FrameSize,
		decodeTimeout: opts.DecodeTimeout,
		ctx:           ctx,
		cancel:        cancel,
		inbound:       newInboundQueue(opts.QueueSize),
		events:        make(chan Event, 64),
		onClose:       opts.OnClose,
		pumpDone:      make(chan struct{}),
	}
	s.lastActivity.set(time.Now())
	s.metrics.SessionOpened(ctx)

	go s.run()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Events is the ordered outbound event stream. The channel is never closed;
// consumers select on Done as well.
func (s *Session) Events() <-chan Event { return s.events }

// Done is closed when the session shuts down.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// LastActivity returns the time of the most recent inbound message.
func (s *Session) LastActivity() time.Time { return s.lastActivity.get() }

// run drains the inbound queue and drives the pipeline. Within a session
// everything is strictly serial; across sessions goroutines run in parallel.
func (s *Session) run() {
	defer close(s.pumpDone)
	for {
		msg, err := s.inbound.pop(s.ctx)
		if err != nil {
			return
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg inboundMsg) {
	switch msg.kind {
	case msgConfig:
		if err := s.ApplyConfig(msg.cfg); err != nil && !errors.Is(err, ErrSessionClosed) {
			s.log.Debug("config rejected", slog.String("error", err.Error()))
		}
	case msgAudio:
		if err := s.Ingest(msg.samples); err != nil && !errors.Is(err, ErrSessionClosed) {
			s.log.Debug("audio rejected", slog.String("error", err.Error()))
		}
	case msgFinalize:
		if err := s.Finalize(); err != nil && !errors.Is(err, ErrSessionClosed) {
			s.log.Debug("finalize rejected", slog.String("error", err.Error()))
		}
	}
}

// EnqueueConfig queues a config control message.
func (s *Session) EnqueueConfig(cfg Config) error {
	return s.enqueue(inboundMsg{kind: msgConfig, cfg: cfg})
}

// EnqueueAudio queues raw samples. It never blocks: under backpressure the
// oldest unframed audio in the queue is dropped first, preferring to preserve
// framed-and-classified audio already inside the pipeline. Overflow is
// counted and logged but not emitted as an error event.
func (s *Session) EnqueueAudio(samples []float32) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	s.lastActivity.set(time.Now())
	dropped, ok := s.inbound.pushAudio(inboundMsg{kind: msgAudio, samples: samples})
	if dropped || !ok {
		s.metrics.RecordDroppedAudio(s.ctx)
		s.log.Warn("inbound queue full, dropped unframed audio")
	}
	return nil
}

// EnqueueFinalize queues a finalize control message.
func (s *Session) EnqueueFinalize() error {
	return s.enqueue(inboundMsg{kind: msgFinalize})
}

func (s *Session) enqueue(msg inboundMsg) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	s.lastActivity.set(time.Now())
	if !s.inbound.push(msg) {
		return fmt.Errorf("%w: inbound queue full", ErrBadMessage)
	}
	return nil
}

// ApplyConfig installs the session configuration. It must be called before
// any audio is processed; before that point a second call is an idempotent
// overwrite, afterwards it fails with ErrConfigAfterAudio and the current
// config is kept.
func (s *Session) ApplyConfig(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.audioProcessed {
		s.emit(errorEvent("config not allowed after audio"))
		return ErrConfigAfterAudio
	}
	if err := cfg.Validate(); err != nil {
		s.emit(errorEvent(fmt.Sprintf("invalid config: %v", err)))
		return fmt.Errorf("%w: %v", ErrBadMessage, err)
	}

	driver, err := NewDriver(s.decoder, cfg, s.log, s.metrics, s.decodeTimeout)
	if err != nil {
		s.emit(errorEvent("transcription backend unavailable"))
		s.closeLocked()
		return err
	}

	s.cfg = &cfg
	s.ringbuf = audio.NewFrameRingBuffer(s.frameSize, media.Speech16kHzMono)
	s.gate = vad.NewGate(s.vadModel, cfg.VADThreshold)
	s.ep = vad.NewEndpointer(vad.EndpointerOptions{
		SilenceThreshold:  cfg.SilenceThreshold,
		MinSpeechDuration: cfg.MinSpeechDuration,
	})
	s.driver = driver
	s.filter.Reset()

	s.log.Info("session configured",
		slog.Float64("vad_threshold", cfg.VADThreshold),
		slog.Float64("silence_threshold", cfg.SilenceThreshold),
		slog.Float64("chunk_size", cfg.ChunkSize),
		slog.String("language", cfg.Language))
	return nil
}

// Ingest pushes audio samples into the frame buffer and drives one pass of
// the pipeline until it runs out of complete frames. It never blocks on the
// network.
func (s *Session) Ingest(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.cfg == nil {
		s.emit(errorEvent("config required"))
		return ErrConfigRequired
	}

	s.audioProcessed = true
	s.streamSecs += float64(len(samples)) / float64(media.Speech16kHzMono.SampleRate)
	s.ringbuf.Push(samples)

	for {
		frame := s.ringbuf.NextFrame()
		if frame == nil {
			return nil
		}
		if err := s.processFrame(frame); err != nil {
			return err
		}
	}
}

// processFrame runs one analysis frame through filter, gate, endpointer and
// driver. Caller holds the session mutex.
func (s *Session) processFrame(frame *media.AudioFrame) error {
	frame = s.filter.Filter(frame)

	c, err := s.gate.Classify(frame)
	if err != nil {
		// Wrong-size frames mark a programming error; the session cannot
		// continue safely.
		s.emit(errorEvent("internal error: invalid analysis frame"))
		s.closeLocked()
		return err
	}

	for _, ev := range s.ep.ProcessFrame(frame, c.IsSpeech) {
		if err := s.handleEndpointEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleEndpointEvent(ev vad.EndpointEvent) error {
	switch ev.Type {
	case vad.EndpointSpeechStart, vad.EndpointSpeechContinue:
		events, err := s.driver.OnSpeechFrames(s.ctx, ev.Frames, s.streamSecs)
		s.emitAll(events)
		if err != nil {
			s.closeLocked()
			return err
		}
	case vad.EndpointSpeechEnd:
		events, err := s.driver.OnSpeechEnd(s.ctx, s.streamSecs)
		s.emitAll(events)
		s.metrics.RecordUtterance(s.ctx)
		if err != nil {
			s.closeLocked()
			return err
		}
	}
	return nil
}

// Finalize forces a Speaking -> Silent transition: any buffered remainder is
// flushed through the decoder and a Final is emitted iff the session is
// currently Speaking. In Silent it is a no-op.
func (s *Session) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.cfg == nil {
		return nil
	}

	remainder := s.ringbuf.Flush()
	if s.ep.State() != vad.StateSpeaking {
		// Sub-frame remainder and any provisional window are discarded; no
		// utterance was committed.
		s.ep.ForceEnd()
		return nil
	}

	if len(remainder) > 0 {
		frame := media.NewAudioFrame(remainder, media.Speech16kHzMono)
		events, err := s.driver.OnSpeechFrames(s.ctx, []*media.AudioFrame{frame}, s.streamSecs)
		s.emitAll(events)
		if err != nil {
			s.closeLocked()
			return err
		}
	}

	s.ep.ForceEnd()
	events, err := s.driver.OnSpeechEnd(s.ctx, s.streamSecs)
	s.emitAll(events)
	s.metrics.RecordUtterance(s.ctx)
	if err != nil {
		s.closeLocked()
		return err
	}
	return nil
}

// Close releases session resources. Further calls on the session fail with
// ErrSessionClosed. Close is idempotent.
func (s *Session) Close() error {
	// Cancel first so an in-flight decode or a blocked emit unwinds before
	// the mutex is taken.
	s.cancel()
	s.mu.Lock()
	s.closeLocked()
	s.mu.Unlock()
	return nil
}

// closeLocked shuts the session down. Caller holds the mutex.
func (s *Session) closeLocked() {
	s.closeOnce.Do(func() {
		s.closed = true
		s.cancel()
		s.metrics.SessionClosed(context.Background())
		s.log.Info("session closed", slog.Float64("stream_seconds", s.streamSecs))
		if s.onClose != nil {
			// Self-retirement is a callback, not a manager back-pointer.
			go s.onClose(s.id)
		}
	})
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) emitAll(events []Event) {
	for _, ev := range events {
		s.emit(ev)
	}
}

// emit delivers one event to the outbound stream, preserving order. It
// suspends under outbound backpressure and gives up when the session is
// cancelled.
func (s *Session) emit(ev Event) {
	ev.SessionID = s.id
	s.metrics.RecordEvent(s.ctx, string(ev.Type))
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// atomicTime is a small guarded timestamp holder.
type atomicTime struct {
	mu sync.Mutex
	t  time.Time
}

func (a *atomicTime) set(t time.Time) {
	a.mu.Lock()
	a.t = t
	a.mu.Unlock()
}

func (a *atomicTime) get() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t
}
