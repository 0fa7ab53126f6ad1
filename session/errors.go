package session

import "errors"

var (
	// ErrBadMessage reports a malformed control message. The session keeps
	// running.
	ErrBadMessage = errors.New("session: bad message")

	// ErrConfigRequired reports audio received before a valid config. The
	// audio is discarded.
	ErrConfigRequired = errors.New("session: config required")

	// ErrConfigAfterAudio reports a re-config attempt after audio has been
	// processed. The current config is kept.
	ErrConfigAfterAudio = errors.New("session: config after audio")

	// ErrSessionClosed reports use of a closed session. Callers ignore it
	// silently.
	ErrSessionClosed = errors.New("session: closed")

	// ErrServerBusy reports that the maximum concurrent session count is
	// reached. Connections are rejected before session creation.
	ErrServerBusy = errors.New("session: server busy")
)
