package audio

import (
	"testing"

	"github.com/matryer/is"

	"github.com/ronith256-meesho/qw-asr/media"
)

func TestFrameRingBufferYieldsExactFrames(t *testing.T) {
	is := is.New(t)

	rb := NewFrameRingBuffer(512, media.Speech16kHzMono)
	is.Equal(rb.NextFrame(), nil) // empty buffer yields no frame

	rb.Push(make([]float32, 300))
	is.Equal(rb.NextFrame(), nil) // 300 < 512

	rb.Push(make([]float32, 300))
	frame := rb.NextFrame()
	is.True(frame != nil)
	is.Equal(frame.SampleCount(), 512)
	is.Equal(rb.Pending(), 88)
	is.Equal(rb.NextFrame(), nil)
}

func TestFrameRingBufferPreservesSampleOrder(t *testing.T) {
	is := is.New(t)

	rb := NewFrameRingBuffer(4, media.Speech16kHzMono)
	rb.Push([]float32{1, 2, 3})
	rb.Push([]float32{4, 5, 6, 7, 8, 9})

	first := rb.NextFrame()
	is.Equal(first.Samples, []float32{1, 2, 3, 4})
	second := rb.NextFrame()
	is.Equal(second.Samples, []float32{5, 6, 7, 8})
	is.Equal(rb.NextFrame(), nil)
	is.Equal(rb.Flush(), []float32{9})
}

func TestFrameRingBufferFlush(t *testing.T) {
	is := is.New(t)

	rb := NewFrameRingBuffer(512, media.Speech16kHzMono)
	is.Equal(rb.Flush(), nil) // nothing buffered

	rb.Push([]float32{0.5, -0.5})
	rem := rb.Flush()
	is.Equal(rem, []float32{0.5, -0.5})
	is.Equal(rb.Pending(), 0)
	is.Equal(rb.Flush(), nil) // flush clears
}

func TestFrameRingBufferFrameDoesNotAliasBuffer(t *testing.T) {
	is := is.New(t)

	rb := NewFrameRingBuffer(2, media.Speech16kHzMono)
	rb.Push([]float32{1, 2, 3, 4})
	frame := rb.NextFrame()
	rb.NextFrame()
	rb.Push([]float32{9, 9})
	is.Equal(frame.Samples, []float32{1, 2}) // earlier frame must stay intact
}
