package audio

import (
	"testing"

	"github.com/matryer/is"

	"github.com/ronith256-meesho/qw-asr/media"
)

func constFrame(value float32, n int) *media.AudioFrame {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	return media.NewAudioFrame(samples, media.Speech16kHzMono)
}

func TestPassthroughReturnsInputFrame(t *testing.T) {
	is := is.New(t)

	frame := constFrame(0.3, 512)
	out := Passthrough{}.Filter(frame)
	is.Equal(out, frame)
}

func TestNoiseGatePreservesFrameLength(t *testing.T) {
	is := is.New(t)

	g := NewNoiseGate()
	for i := 0; i < 10; i++ {
		out := g.Filter(constFrame(0.01, 512))
		is.Equal(out.SampleCount(), 512)
	}
}

func TestNoiseGatePassesLoudFramesAfterQuietFloor(t *testing.T) {
	is := is.New(t)

	g := NewNoiseGate()
	// Establish a quiet noise floor.
	for i := 0; i < 20; i++ {
		g.Filter(constFrame(0.01, 512))
	}

	loud := constFrame(0.5, 512)
	out := g.Filter(loud)
	is.Equal(out.Samples[0], float32(0.5)) // loud frame passes untouched
}

func TestNoiseGateAttenuatesFloorLevelFrames(t *testing.T) {
	is := is.New(t)

	g := NewNoiseGate()
	for i := 0; i < 20; i++ {
		g.Filter(constFrame(0.02, 512))
	}

	out := g.Filter(constFrame(0.02, 512))
	is.True(out.Samples[0] < 0.02) // floor-level frame is attenuated
}
