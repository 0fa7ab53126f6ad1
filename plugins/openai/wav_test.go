package openai

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/matryer/is"

	"github.com/ronith256-meesho/qw-asr/services/stt"
)

func TestEncodeWAVHeader(t *testing.T) {
	is := is.New(t)

	samples := make([]float32, 1600)
	data := encodeWAV(samples, 16000)

	is.Equal(len(data), 44+1600*2) // header plus 16-bit PCM payload
	is.Equal(string(data[0:4]), "RIFF")
	is.Equal(string(data[8:12]), "WAVE")
	is.Equal(string(data[12:16]), "fmt ")
	is.Equal(string(data[36:40]), "data")

	is.Equal(binary.LittleEndian.Uint32(data[24:28]), uint32(16000)) // sample rate
	is.Equal(binary.LittleEndian.Uint16(data[22:24]), uint16(1))     // mono
	is.Equal(binary.LittleEndian.Uint16(data[34:36]), uint16(16))    // bit depth
	is.Equal(binary.LittleEndian.Uint32(data[40:44]), uint32(3200))  // data length
}

func TestTranscriptionHint(t *testing.T) {
	is := is.New(t)

	d := New("test-key")
	state, err := d.InitStreamingState("prompt", "context", "")
	is.NoErr(err)
	is.Equal(transcriptionHint(state), "prompt\ncontext")

	state, _ = d.InitStreamingState("prompt", "", "")
	is.Equal(transcriptionHint(state), "prompt")

	state, _ = d.InitStreamingState("", "context", "")
	is.Equal(transcriptionHint(state), "context")
}

func TestShortWindowIsBuffered(t *testing.T) {
	is := is.New(t)

	d := New("test-key")
	state, err := d.InitStreamingState("", "", "")
	is.NoErr(err)

	// Below the API minimum no request goes out and no text appears.
	err = d.StreamingTranscribe(context.Background(), make([]float32, 100), state, stt.DecodeOptions{})
	is.NoErr(err)
	is.Equal(state.Text, "")
}
