package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ronith256-meesho/qw-asr/services/stt"
)

// decoderState is the stub's opaque per-utterance state.
type decoderState struct {
	samplesSeen int
}

// Decoder is a stub streaming decoder whose transcript for an utterance is
// "<n>" where n is the cumulative number of samples it has seen since the
// state was initialized. Safe for concurrent use across states.
type Decoder struct {
	mu sync.Mutex

	// FailNext makes the next n StreamingTranscribe calls fail.
	failNext int

	inits   int
	decodes int

	// lastOpts records the knobs of the most recent decode call.
	lastOpts stt.DecodeOptions
}

// NewDecoder creates a stub decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// InitStreamingState implements stt.Decoder.
func (d *Decoder) InitStreamingState(prompt, context, language string) (*stt.StreamingState, error) {
	d.mu.Lock()
	d.inits++
	d.mu.Unlock()

	return &stt.StreamingState{
		Language: language,
		Prompt:   prompt,
		Context:  context,
		Internal: &decoderState{},
	}, nil
}

// StreamingTranscribe implements stt.Decoder.
func (d *Decoder) StreamingTranscribe(ctx context.Context, samples []float32, state *stt.StreamingState, opts stt.DecodeOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	d.decodes++
	d.lastOpts = opts
	shouldFail := d.failNext > 0
	if shouldFail {
		d.failNext--
	}
	d.mu.Unlock()

	if shouldFail {
		return errors.New("mock decode failure")
	}

	ds, ok := state.Internal.(*decoderState)
	if !ok {
		return errors.New("foreign streaming state")
	}
	ds.samplesSeen += len(samples)
	state.Text = fmt.Sprintf("<%d>", ds.samplesSeen)
	return nil
}

// FailNext makes the next n decode calls fail.
func (d *Decoder) FailNext(n int) {
	d.mu.Lock()
	d.failNext = n
	d.mu.Unlock()
}

// Inits returns the number of InitStreamingState calls.
func (d *Decoder) Inits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inits
}

// Decodes returns the number of StreamingTranscribe calls.
func (d *Decoder) Decodes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.decodes
}

// LastOpts returns the knobs of the most recent decode call.
func (d *Decoder) LastOpts() stt.DecodeOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastOpts
}
