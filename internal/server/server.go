// Package server exposes the websocket recognition endpoint and the HTTP
// operational surface: health, metrics, and the bundled browser test page.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ronith256-meesho/qw-asr/media"
	"github.com/ronith256-meesho/qw-asr/session"
	"github.com/ronith256-meesho/qw-asr/web"
)

const (
	// writeTimeout bounds one outbound websocket write.
	writeTimeout = 10 * time.Second

	// pingInterval keeps idle connections alive through proxies.
	pingInterval = 30 * time.Second

	// maxMessageSize bounds one inbound message. 1 MB of float32 PCM is
	// about 16 seconds at 16 kHz.
	maxMessageSize = 1 << 20
)

// Options configure the gateway server.
type Options struct {
	Addr     string
	Manager  *session.Manager
	Defaults session.Config
	Logger   *slog.Logger

	// Registry, when set, is served on /metrics.
	Registry *prometheus.Registry
}

// Server is the websocket connection handler plus the HTTP mux around it.
type Server struct {
	addr     string
	manager  *session.Manager
	defaults session.Config
	log      *slog.Logger
	registry *prometheus.Registry
	upgrader websocket.Upgrader
}

// New creates a server.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		addr:     opts.Addr,
		manager:  opts.Manager,
		defaults: opts.Defaults,
		log:      opts.Logger.With("component", "server"),
		registry: opts.Registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The gateway assumes a trusted upstream; origin policy is
			// enforced there.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/asr", s.handleASR)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", http.FileServer(http.FS(web.Content())))
	return mux
}

// Run serves until the context is cancelled, then drains gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", slog.String("addr", s.addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "ok")
}

// handleASR is the recognition endpoint: one websocket, one session.
func (s *Server) handleASR(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Create()
	if errors.Is(err, session.ErrServerBusy) {
		// Rejected before upgrade so the client sees a plain HTTP error.
		http.Error(w, "server busy", http.StatusServiceUnavailable)
		return
	}
	if err != nil {
		s.log.Error("session create failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sess.Close()
		s.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	log := s.log.With(slog.String("session_id", sess.ID()))
	log.Info("connection established", slog.String("remote", r.RemoteAddr))

	conn.SetReadLimit(maxMessageSize)

	// Protocol-level errors raised by the read loop are merged into the
	// outbound stream by the write pump, keeping one writer per connection.
	protocolErrs := make(chan session.Event, 8)

	writerDone := make(chan struct{})
	go s.writePump(conn, sess, protocolErrs, writerDone, log)

	// When the session dies first (idle TTL, fatal error) the read loop may
	// be parked in ReadMessage; closing the connection after the writer has
	// drained unblocks it.
	go func() {
		<-sess.Done()
		<-writerDone
		conn.Close()
	}()

	s.readLoop(conn, sess, protocolErrs, log)

	sess.Close()
	<-writerDone
	conn.Close()
	log.Info("connection closed")
}

// writePump is the only goroutine writing to the connection. It serializes
// the session created event, session events, protocol errors, and pings.
func (s *Server) writePump(conn *websocket.Conn, sess *session.Session, protocolErrs <-chan session.Event, done chan<- struct{}, log *slog.Logger) {
	defer close(done)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	write := func(ev session.Event) bool {
		data, err := encodeEvent(ev)
		if err != nil {
			log.Error("event encode failed", slog.String("error", err.Error()))
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Debug("write failed", slog.String("error", err.Error()))
			return false
		}
		return true
	}

	// Exactly once per connection, before any audio is accepted for
	// decoding.
	if !write(session.Event{Type: session.EventSessionCreated, SessionID: sess.ID()}) {
		sess.Close()
		return
	}

	for {
		select {
		case ev := <-sess.Events():
			if !write(ev) {
				sess.Close()
				return
			}
		case ev := <-protocolErrs:
			if !write(ev) {
				sess.Close()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				sess.Close()
				return
			}
		case <-sess.Done():
			// Drain events already produced so a Final racing a close still
			// reaches the client.
			for {
				select {
				case ev := <-sess.Events():
					if !write(ev) {
						return
					}
				default:
					conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

// readLoop parses inbound messages and feeds the session until the client
// disconnects or the session dies.
func (s *Server) readLoop(conn *websocket.Conn, sess *session.Session, protocolErrs chan<- session.Event, log *slog.Logger) {
	emitErr := func(msg string) {
		select {
		case protocolErrs <- session.Event{Type: session.EventError, Message: msg}:
		case <-sess.Done():
		}
	}

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			log.Debug("read ended", slog.String("error", err.Error()))
			return
		}

		select {
		case <-sess.Done():
			return
		default:
		}

		switch kind {
		case websocket.BinaryMessage:
			samples := media.DecodeFloat32LE(data)
			if len(samples) == 0 {
				continue
			}
			if err := sess.EnqueueAudio(samples); err != nil {
				return
			}
		case websocket.TextMessage:
			var ctl controlMessage
			if err := json.Unmarshal(data, &ctl); err != nil {
				emitErr("bad message")
				continue
			}
			switch ctl.Type {
			case msgTypeConfig:
				var msg configMessage
				if err := json.Unmarshal(data, &msg); err != nil {
					emitErr("bad config message")
					continue
				}
				if err := sess.EnqueueConfig(mergeConfig(s.defaults, msg)); err != nil {
					return
				}
			case msgTypeFinalize:
				if err := sess.EnqueueFinalize(); err != nil {
					return
				}
			default:
				emitErr("unknown message type")
			}
		}
	}
}
