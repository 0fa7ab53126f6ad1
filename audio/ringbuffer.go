package audio

import (
	"github.com/ronith256-meesho/qw-asr/media"
)

// FrameRingBuffer accumulates arbitrary-length sample pushes and yields
// fixed-size frames for VAD analysis. Trailing samples that do not complete a
// frame are retained until enough samples arrive or Flush is called.
//
// The buffer is not safe for concurrent use; it is owned by a single session
// goroutine.
type FrameRingBuffer struct {
	frameSize int
	format    media.AudioFormat
	buf       []float32
}

// NewFrameRingBuffer creates a buffer that emits frames of exactly frameSize
// samples.
func NewFrameRingBuffer(frameSize int, format media.AudioFormat) *FrameRingBuffer {
	return &FrameRingBuffer{
		frameSize: frameSize,
		format:    format,
		buf:       make([]float32, 0, frameSize*4),
	}
}

// FrameSize returns the fixed frame size in samples.
func (rb *FrameRingBuffer) FrameSize() int {
	return rb.frameSize
}

// Push appends samples. It never blocks.
func (rb *FrameRingBuffer) Push(samples []float32) {
	rb.buf = append(rb.buf, samples...)
}

// NextFrame returns the next complete frame, or nil if fewer than frameSize
// samples are buffered. The returned frame owns its samples.
func (rb *FrameRingBuffer) NextFrame() *media.AudioFrame {
	if len(rb.buf) < rb.frameSize {
		return nil
	}
	samples := make([]float32, rb.frameSize)
	copy(samples, rb.buf[:rb.frameSize])
	n := copy(rb.buf, rb.buf[rb.frameSize:])
	rb.buf = rb.buf[:n]
	return media.NewAudioFrame(samples, rb.format)
}

// Flush returns any buffered remainder of at least one sample and clears the
// buffer. Returns nil when the buffer is empty.
func (rb *FrameRingBuffer) Flush() []float32 {
	if len(rb.buf) == 0 {
		return nil
	}
	out := make([]float32, len(rb.buf))
	copy(out, rb.buf)
	rb.buf = rb.buf[:0]
	return out
}

// Pending returns the number of buffered samples that have not yet formed a
// complete frame.
func (rb *FrameRingBuffer) Pending() int {
	return len(rb.buf)
}
