// Package silero runs the Silero VAD ONNX model through ONNX Runtime.
//
// The model keeps per-stream LSTM state, so each session gets its own
// Detector while the ONNX session itself is shared across the process and
// guarded by a short-critical-section lock; inference is milliseconds and
// contention is acceptable.
package silero

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ronith256-meesho/qw-asr/media"
	"github.com/ronith256-meesho/qw-asr/services/vad"
)

const (
	// windowSize is the model's native analysis window at 16 kHz.
	windowSize = 512

	// contextSize is the number of trailing samples from the previous window
	// the model wants prepended to each input.
	contextSize = 64

	// stateSize is the LSTM state layout [2, 1, 128] flattened.
	stateSize = 2 * 1 * 128

	sampleRate = 16000
)

var (
	initOnce sync.Once
	initErr  error
)

func initRuntime() error {
	initOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

// Engine owns the shared ONNX session for the Silero model.
type Engine struct {
	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
	closed  bool
}

// NewEngine loads the Silero VAD model from modelPath.
func NewEngine(modelPath string) (*Engine, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("silero model: %w", err)
	}
	if err := initRuntime(); err != nil {
		return nil, fmt.Errorf("onnxruntime init: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &Engine{session: session}, nil
}

// NewDetector creates a per-session detector with fresh model state.
func (e *Engine) NewDetector() *Detector {
	return &Detector{
		engine:  e,
		context: make([]float32, contextSize),
		state:   make([]float32, stateSize),
	}
}

// Close destroys the shared session. Detectors must not be used afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.session.Destroy()
}

// infer runs one native window through the model, updating state in place.
func (e *Engine) infer(input, state []float32) (float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, fmt.Errorf("silero engine closed")
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(1, int64(len(input))), input)
	if err != nil {
		return 0, fmt.Errorf("input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	stateTensor, err := ort.NewTensor(ort.NewShape(2, 1, 128), state)
	if err != nil {
		return 0, fmt.Errorf("state tensor: %w", err)
	}
	defer stateTensor.Destroy()

	srTensor, err := ort.NewTensor(ort.NewShape(1), []int64{sampleRate})
	if err != nil {
		return 0, fmt.Errorf("sr tensor: %w", err)
	}
	defer srTensor.Destroy()

	outputs := []ort.Value{nil, nil}
	if err := e.session.Run([]ort.Value{inputTensor, stateTensor, srTensor}, outputs); err != nil {
		return 0, fmt.Errorf("inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	probs := outputs[0].(*ort.Tensor[float32]).GetData()
	copy(state, outputs[1].(*ort.Tensor[float32]).GetData())

	if len(probs) == 0 {
		return 0, fmt.Errorf("empty model output")
	}
	return probs[0], nil
}

// Detector is a per-session Silero VAD instance implementing vad.Model.
// Not safe for concurrent use; each session owns one.
type Detector struct {
	engine  *Engine
	context []float32
	state   []float32
}

// Prob implements vad.Model. Frames larger than the native window are split
// into 512-sample windows; the frame probability is the maximum across its
// windows so a burst of speech anywhere in the frame counts.
func (d *Detector) Prob(frame *media.AudioFrame) (float64, error) {
	if !vad.FrameSizeAllowed(frame.SampleCount()) {
		return 0, fmt.Errorf("%w: %d samples", vad.ErrInvalidFrameSize, frame.SampleCount())
	}

	var max float32
	samples := frame.Samples
	for off := 0; off < len(samples); off += windowSize {
		window := samples[off : off+windowSize]
		p, err := d.engine.infer(buildInput(d.context, window), d.state)
		if err != nil {
			return 0, err
		}
		shiftContext(d.context, window)
		if p > max {
			max = p
		}
	}
	return float64(max), nil
}

// Reset clears the per-stream model state.
func (d *Detector) Reset() {
	for i := range d.context {
		d.context[i] = 0
	}
	for i := range d.state {
		d.state[i] = 0
	}
}

// buildInput prepends the previous-window context to the samples as the
// model expects: [1, contextSize+windowSize].
func buildInput(context, window []float32) []float32 {
	input := make([]float32, len(context)+len(window))
	copy(input, context)
	copy(input[len(context):], window)
	return input
}

// shiftContext retains the trailing contextSize samples for the next window.
func shiftContext(context, window []float32) {
	if len(window) >= len(context) {
		copy(context, window[len(window)-len(context):])
		return
	}
	n := copy(context, context[len(window):])
	copy(context[n:], window)
}
