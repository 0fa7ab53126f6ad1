package media

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestAudioFrameDuration(t *testing.T) {
	is := is.New(t)

	frame := NewAudioFrame(make([]float32, 16000), Speech16kHzMono)
	is.Equal(frame.Duration(), time.Second) // 16000 samples at 16kHz is one second
	is.Equal(frame.Seconds(), 1.0)
	is.Equal(frame.SampleCount(), 16000)

	empty := NewAudioFrame(nil, Speech16kHzMono)
	is.True(empty.IsEmpty())
	is.Equal(empty.Duration(), time.Duration(0))
}

func TestAudioFrameClone(t *testing.T) {
	is := is.New(t)

	frame := NewAudioFrame([]float32{0.1, 0.2, 0.3}, Speech16kHzMono)
	clone := frame.Clone()
	clone.Samples[0] = 0.9

	is.Equal(frame.Samples[0], float32(0.1)) // clone must not alias the original
	is.Equal(clone.Format, frame.Format)
}

func TestFloat32LERoundTrip(t *testing.T) {
	is := is.New(t)

	in := []float32{0, 0.5, -0.5, 1.0, -1.0, 0.125}
	out := DecodeFloat32LE(EncodeFloat32LE(in))
	is.Equal(out, in)
}

func TestDecodeFloat32LEDropsPartialSample(t *testing.T) {
	is := is.New(t)

	data := EncodeFloat32LE([]float32{0.25, 0.75})
	out := DecodeFloat32LE(data[:len(data)-2])
	is.Equal(len(out), 1)
	is.Equal(out[0], float32(0.25))
}

func TestFloat32ToPCM16Clamps(t *testing.T) {
	is := is.New(t)

	data := Float32ToPCM16([]float32{2.0, -2.0, 0})
	is.Equal(len(data), 6)
	// 2.0 clamps to 32767, -2.0 clamps to -32767
	is.Equal(int16(data[0])|int16(data[1])<<8, int16(32767))
	is.Equal(int16(data[2])|int16(data[3])<<8, int16(-32767))
}
