// Package vad defines the voice-activity-detection contract used by the
// recognition pipeline: a frame-level probability model, the gate that
// enforces the model's frame-size discipline and classification threshold,
// and the endpointer state machine that turns per-frame classifications into
// utterance boundaries.
package vad

import (
	"errors"
	"fmt"

	"github.com/ronith256-meesho/qw-asr/media"
)

// AllowedFrameSizes are the analysis sizes the VAD model accepts at 16 kHz
// (32, 64 and 96 ms). Feeding any other size is a caller error.
var AllowedFrameSizes = []int{512, 1024, 1536}

// DefaultFrameSize is the recommended analysis size.
const DefaultFrameSize = 512

// ErrInvalidFrameSize reports a frame whose length is not an allowed
// analysis size. It marks a programming error upstream of the gate; sessions
// treat it as fatal.
var ErrInvalidFrameSize = errors.New("vad: invalid frame size")

// Model is a frame-level speech classifier. Prob returns the probability in
// [0, 1] that the frame contains speech. Implementations that share state
// across sessions must guard inference internally; Prob may be called from
// multiple session goroutines.
type Model interface {
	// Prob returns the speech probability for one analysis frame. The frame
	// length is guaranteed by the caller to be an allowed size.
	Prob(frame *media.AudioFrame) (float64, error)
}

// FrameSizeAllowed reports whether n is a legal analysis size.
func FrameSizeAllowed(n int) bool {
	for _, s := range AllowedFrameSizes {
		if n == s {
			return true
		}
	}
	return false
}

// Classification is the gate's per-frame output.
type Classification struct {
	Probability float64
	IsSpeech    bool
}

// Gate wraps a Model with the frame-size contract and the speech threshold.
// A model failure on a single frame yields a silence classification so the
// endpointer fails open; only ErrInvalidFrameSize is returned as an error.
type Gate struct {
	model     Model
	threshold float64
}

// NewGate creates a gate classifying frames as speech when the model
// probability reaches threshold.
func NewGate(model Model, threshold float64) *Gate {
	return &Gate{
		model:     model,
		threshold: threshold,
	}
}

// Classify runs the model on one frame. The returned error is non-nil only
// for contract violations (wrong frame size); transient model failures yield
// a silence classification and a nil error.
func (g *Gate) Classify(frame *media.AudioFrame) (Classification, error) {
	if !FrameSizeAllowed(frame.SampleCount()) {
		return Classification{}, fmt.Errorf("%w: %d samples", ErrInvalidFrameSize, frame.SampleCount())
	}

	p, err := g.model.Prob(frame)
	if err != nil {
		// Fail open: a transient VAD failure must not abort the utterance.
		return Classification{Probability: 0, IsSpeech: false}, nil
	}

	return Classification{
		Probability: p,
		IsSpeech:    p >= g.threshold,
	}, nil
}
