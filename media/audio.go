package media

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// AudioFormat describes the shape of PCM audio flowing through the pipeline.
type AudioFormat struct {
	SampleRate int
	Channels   int
}

// AudioFrame is a contiguous block of mono float samples in the range
// -1.0..1.0. Frames are immutable once produced; downstream stages must not
// mutate Samples.
type AudioFrame struct {
	Samples []float32
	Format  AudioFormat
}

// Speech16kHzMono is the only format the recognition pipeline accepts.
var Speech16kHzMono = AudioFormat{
	SampleRate: 16000,
	Channels:   1,
}

// NewAudioFrame creates a frame over the given samples. The frame takes
// ownership of the slice.
func NewAudioFrame(samples []float32, format AudioFormat) *AudioFrame {
	return &AudioFrame{
		Samples: samples,
		Format:  format,
	}
}

// Clone creates a deep copy of the audio frame.
func (af *AudioFrame) Clone() *AudioFrame {
	samples := make([]float32, len(af.Samples))
	copy(samples, af.Samples)
	return &AudioFrame{
		Samples: samples,
		Format:  af.Format,
	}
}

// SampleCount returns the number of samples in the frame.
func (af *AudioFrame) SampleCount() int {
	return len(af.Samples)
}

// Duration returns the play time of the frame.
func (af *AudioFrame) Duration() time.Duration {
	if af.Format.SampleRate == 0 {
		return 0
	}
	seconds := float64(len(af.Samples)) / float64(af.Format.SampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// Seconds returns the play time of the frame in seconds.
func (af *AudioFrame) Seconds() float64 {
	if af.Format.SampleRate == 0 {
		return 0
	}
	return float64(len(af.Samples)) / float64(af.Format.SampleRate)
}

// IsEmpty returns true if the frame contains no audio data.
func (af *AudioFrame) IsEmpty() bool {
	return len(af.Samples) == 0
}

// String returns a string representation of the audio frame.
func (af *AudioFrame) String() string {
	return fmt.Sprintf("AudioFrame{samples=%d, rate=%d, duration=%v}",
		len(af.Samples), af.Format.SampleRate, af.Duration())
}

// DecodeFloat32LE converts raw little-endian float32 PCM bytes into samples.
// A trailing partial sample is dropped.
func DecodeFloat32LE(data []byte) []float32 {
	n := len(data) / 4
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples
}

// EncodeFloat32LE converts samples into raw little-endian float32 PCM bytes.
func EncodeFloat32LE(samples []float32) []byte {
	data := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}
	return data
}

// Float32ToPCM16 converts float samples to 16-bit little-endian PCM bytes,
// clamping to the int16 range. Used by decoder backends whose wire or file
// formats carry 16-bit audio.
func Float32ToPCM16(samples []float32) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(data[i*2:], uint16(v))
	}
	return data
}
