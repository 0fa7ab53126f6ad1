package audio

import (
	"math"

	"github.com/ronith256-meesho/qw-asr/media"
)

// NoiseFilter is an optional pre-VAD denoiser. Implementations consume and
// emit frames of identical length so the VAD analysis cadence is preserved.
// Filters are stateful per session and not safe for concurrent use.
type NoiseFilter interface {
	// Filter denoises a single frame. The returned frame has the same length
	// as the input.
	Filter(frame *media.AudioFrame) *media.AudioFrame

	// Reset clears accumulated filter state.
	Reset()
}

// Passthrough is the identity filter used when no denoiser is configured.
type Passthrough struct{}

func (Passthrough) Filter(frame *media.AudioFrame) *media.AudioFrame { return frame }

func (Passthrough) Reset() {}

// NoiseGate attenuates frames whose RMS energy sits near a running estimate
// of the noise floor. Frames well above the floor pass untouched; frames at
// the floor are scaled down so the VAD sees a cleaner silence baseline.
type NoiseGate struct {
	floor       float64
	adaptRate   float64
	openRatio   float64
	attenuation float32
	primed      bool
}

// NewNoiseGate creates a gate with a slowly adapting noise-floor estimate.
func NewNoiseGate() *NoiseGate {
	return &NoiseGate{
		adaptRate:   0.05,
		openRatio:   2.0,
		attenuation: 0.1,
	}
}

// Filter implements NoiseFilter.
func (g *NoiseGate) Filter(frame *media.AudioFrame) *media.AudioFrame {
	rms := frameRMS(frame.Samples)

	if !g.primed {
		g.floor = rms
		g.primed = true
	} else if rms < g.floor {
		// Track downward fast so a quiet stretch re-calibrates the floor.
		g.floor = rms
	} else {
		g.floor += g.adaptRate * (rms - g.floor)
	}

	if rms >= g.floor*g.openRatio {
		return frame
	}

	out := make([]float32, len(frame.Samples))
	for i, s := range frame.Samples {
		out[i] = s * g.attenuation
	}
	return media.NewAudioFrame(out, frame.Format)
}

// Reset implements NoiseFilter.
func (g *NoiseGate) Reset() {
	g.floor = 0
	g.primed = false
}

func frameRMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
