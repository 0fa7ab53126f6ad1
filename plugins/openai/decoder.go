// Package openai backs the streaming-decode contract with the hosted
// Whisper transcription API. The API is not incrementally stateful, so the
// streaming state accumulates the utterance audio and every chunk re-decodes
// the rolling window; prefix rollback is implicit in the full re-decode.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ronith256-meesho/qw-asr/media"
	"github.com/ronith256-meesho/qw-asr/services/stt"
)

// minSamples is the API's minimum accepted duration (100ms at 16 kHz).
const minSamples = 1600

// Decoder implements stt.Decoder over the Whisper transcription endpoint.
// Safe for concurrent calls from different sessions.
type Decoder struct {
	client *openai.Client
	model  string
	log    *slog.Logger
}

// Option configures the decoder.
type Option func(*Decoder)

// WithModel overrides the transcription model.
func WithModel(model string) Option {
	return func(d *Decoder) { d.model = model }
}

// WithLogger sets the decoder logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Decoder) { d.log = log }
}

// New creates a Whisper-backed decoder.
func New(apiKey string, opts ...Option) *Decoder {
	d := &Decoder{
		client: openai.NewClient(apiKey),
		model:  openai.Whisper1,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "openai-decoder")
	return d
}

// utteranceState accumulates the utterance audio between calls.
type utteranceState struct {
	samples []float32
}

// InitStreamingState implements stt.Decoder.
func (d *Decoder) InitStreamingState(prompt, context, language string) (*stt.StreamingState, error) {
	return &stt.StreamingState{
		Language: language,
		Prompt:   prompt,
		Context:  context,
		Internal: &utteranceState{},
	}, nil
}

// StreamingTranscribe implements stt.Decoder: the new samples extend the
// utterance window and the whole window is re-transcribed.
func (d *Decoder) StreamingTranscribe(ctx context.Context, samples []float32, state *stt.StreamingState, opts stt.DecodeOptions) error {
	us, ok := state.Internal.(*utteranceState)
	if !ok {
		return fmt.Errorf("%w: foreign streaming state", stt.ErrDecodeFatal)
	}
	us.samples = append(us.samples, samples...)

	if len(us.samples) < minSamples {
		return nil
	}

	req := openai.AudioRequest{
		Model:    d.model,
		Language: state.Language,
		Prompt:   transcriptionHint(state),
		Format:   openai.AudioResponseFormatJSON,
		Reader:   bytes.NewReader(encodeWAV(us.samples, media.Speech16kHzMono.SampleRate)),
		FilePath: "audio.wav",
	}

	resp, err := d.client.CreateTranscription(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: transcription: %v", stt.ErrDecodeTransient, err)
	}

	state.Text = resp.Text
	if resp.Language != "" {
		state.Language = resp.Language
	}

	d.log.Debug("chunk decoded",
		slog.Int("chunk_id", opts.ChunkID),
		slog.Int("window_samples", len(us.samples)))
	return nil
}

// transcriptionHint folds the session's prompt and context into the Whisper
// prompt field.
func transcriptionHint(state *stt.StreamingState) string {
	switch {
	case state.Prompt != "" && state.Context != "":
		return state.Prompt + "\n" + state.Context
	case state.Prompt != "":
		return state.Prompt
	default:
		return state.Context
	}
}
