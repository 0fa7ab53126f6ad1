package silero

import (
	"testing"

	"github.com/matryer/is"
)

func TestBuildInputLayout(t *testing.T) {
	is := is.New(t)

	context := []float32{1, 2, 3}
	window := []float32{4, 5, 6, 7}
	input := buildInput(context, window)
	is.Equal(input, []float32{1, 2, 3, 4, 5, 6, 7})

	// Inputs are copied, not aliased.
	input[0] = 9
	is.Equal(context[0], float32(1))
}

func TestShiftContextFullWindow(t *testing.T) {
	is := is.New(t)

	context := make([]float32, 4)
	window := []float32{1, 2, 3, 4, 5, 6}
	shiftContext(context, window)
	is.Equal(context, []float32{3, 4, 5, 6})
}

func TestShiftContextShortWindow(t *testing.T) {
	is := is.New(t)

	context := []float32{1, 2, 3, 4}
	shiftContext(context, []float32{9})
	is.Equal(context, []float32{2, 3, 4, 9})
}

func TestNewEngineMissingModel(t *testing.T) {
	is := is.New(t)

	_, err := NewEngine("/no/such/model.onnx")
	is.True(err != nil)
}
