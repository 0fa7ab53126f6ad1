package vad

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/ronith256-meesho/qw-asr/media"
)

// probeModel returns a fixed probability, or an error when failing is set.
type probeModel struct {
	prob    float64
	failing bool
	calls   []int
}

func (m *probeModel) Prob(frame *media.AudioFrame) (float64, error) {
	m.calls = append(m.calls, frame.SampleCount())
	if m.failing {
		return 0, errors.New("model unavailable")
	}
	return m.prob, nil
}

func frameOf(n int) *media.AudioFrame {
	return media.NewAudioFrame(make([]float32, n), media.Speech16kHzMono)
}

func TestFrameSizeAllowed(t *testing.T) {
	is := is.New(t)

	for _, n := range []int{512, 1024, 1536} {
		is.True(FrameSizeAllowed(n))
	}
	for _, n := range []int{0, 1, 511, 900, 2048} {
		is.True(!FrameSizeAllowed(n))
	}
}

func TestGateClassifiesAgainstThreshold(t *testing.T) {
	is := is.New(t)

	model := &probeModel{prob: 0.7}
	gate := NewGate(model, 0.5)

	c, err := gate.Classify(frameOf(512))
	is.NoErr(err)
	is.True(c.IsSpeech)
	is.Equal(c.Probability, 0.7)

	model.prob = 0.5
	c, err = gate.Classify(frameOf(1024))
	is.NoErr(err)
	is.True(c.IsSpeech) // threshold is inclusive

	model.prob = 0.49
	c, err = gate.Classify(frameOf(1536))
	is.NoErr(err)
	is.True(!c.IsSpeech)
}

func TestGateRejectsWrongFrameSize(t *testing.T) {
	is := is.New(t)

	model := &probeModel{prob: 1.0}
	gate := NewGate(model, 0.5)

	_, err := gate.Classify(frameOf(900))
	is.True(errors.Is(err, ErrInvalidFrameSize))
	is.Equal(len(model.calls), 0) // the model must never see a bad frame
}

func TestGateFailsOpenOnModelError(t *testing.T) {
	is := is.New(t)

	model := &probeModel{failing: true}
	gate := NewGate(model, 0.5)

	c, err := gate.Classify(frameOf(512))
	is.NoErr(err) // transient model failure is not a gate error
	is.True(!c.IsSpeech)
	is.Equal(c.Probability, 0.0)
}
