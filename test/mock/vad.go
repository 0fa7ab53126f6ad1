// Package mock provides stub pipeline collaborators for tests: a
// deterministic VAD model and a sample-counting decoder.
package mock

import (
	"sync"

	"github.com/ronith256-meesho/qw-asr/media"
)

// VAD is a deterministic stub model: it returns probability 1.0 for frames
// containing any nonzero sample and 0.0 for all-zero frames. Safe for
// concurrent use.
type VAD struct {
	mu    sync.Mutex
	calls []int
}

// NewVAD creates a stub VAD model.
func NewVAD() *VAD {
	return &VAD{}
}

// Prob implements vad.Model.
func (v *VAD) Prob(frame *media.AudioFrame) (float64, error) {
	v.mu.Lock()
	v.calls = append(v.calls, frame.SampleCount())
	v.mu.Unlock()

	for _, s := range frame.Samples {
		if s != 0 {
			return 1.0, nil
		}
	}
	return 0.0, nil
}

// FrameSizes returns the length of every frame the model has seen, in order.
func (v *VAD) FrameSizes() []int {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]int, len(v.calls))
	copy(out, v.calls)
	return out
}
