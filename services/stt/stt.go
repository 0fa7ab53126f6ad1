// Package stt defines the streaming-decode contract the recognition gateway
// drives. A Decoder is an external collaborator (a remote model server, a
// hosted API, or a local model) that keeps per-utterance state across calls
// so attention computation and transcript continuity are reused between
// chunks.
package stt

import (
	"context"
	"errors"
	"unicode/utf8"
)

// ErrDecodeTransient reports a decode call that failed once. The driver drops
// the chunk and keeps the session; repeated transient failures escalate to
// ErrDecodeFatal.
var ErrDecodeTransient = errors.New("stt: transient decode failure")

// ErrDecodeFatal reports corrupted decoder state or repeated failures. The
// session closes.
var ErrDecodeFatal = errors.New("stt: fatal decode failure")

// StreamingState is the opaque per-utterance decode state owned by the
// driver. The driver never inspects anything beyond Text and Language; the
// Internal field belongs to the backend that created the state.
type StreamingState struct {
	// Text is the full transcript decoded so far for the current utterance.
	Text string

	// Language is the detected or forced decode language.
	Language string

	// Prompt and Context are the recognition hints the state was created
	// with. They survive state resets between utterances.
	Prompt  string
	Context string

	// Internal is backend-owned: accumulated audio, tokenizer state, remote
	// stream handles, whatever the backend needs for prefix rollback.
	Internal any
}

// DecodeOptions are the per-call knobs the driver supplies. Rollback itself
// is implemented inside the decoder; the driver only chooses the numbers.
type DecodeOptions struct {
	// ChunkID is the monotonic decode call count for the current utterance,
	// starting at 0.
	ChunkID int

	// UnfixedChunkNum is the number of most-recent chunks whose output is
	// treated as provisional.
	UnfixedChunkNum int

	// UnfixedTokenNum is the number of tokens rolled back from the previous
	// output and re-decoded to reduce boundary jitter.
	UnfixedTokenNum int
}

// Decoder is the streaming-decode interface. Implementations must accept
// concurrent calls from different sessions; calls on one state are
// serialized by the owning session.
type Decoder interface {
	// InitStreamingState creates fresh per-utterance state carrying the
	// session's recognition hints.
	InitStreamingState(prompt, context, language string) (*StreamingState, error)

	// StreamingTranscribe decodes one chunk of audio against the state,
	// updating state.Text and state.Language in place.
	StreamingTranscribe(ctx context.Context, samples []float32, state *StreamingState, opts DecodeOptions) error
}

// TrimToRuneBoundary returns s truncated to at most n bytes without cutting a
// UTF-8 code point: if the cut falls mid-rune it retreats to the nearest
// boundary. Used when a rollback cut is expressed in bytes.
func TrimToRuneBoundary(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// DropLastRunes returns s with the trailing n runes removed. A negative or
// zero n returns s unchanged; n beyond the rune count returns the empty
// string. Backends without a real tokenizer use rune-level rollback as the
// token approximation.
func DropLastRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	end := len(s)
	for i := 0; i < n && end > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:end])
		end -= size
	}
	return s[:end]
}
