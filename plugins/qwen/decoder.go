// Package qwen drives a remote streaming-decode service over websocket. Each
// decode call ships the new audio chunk plus a prefix: the previous
// transcript, with its trailing unfixed tokens removed once the first
// unfixed chunks have passed, so the service can revise word boundaries that
// sit astride chunk seams.
package qwen

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"

	"github.com/ronith256-meesho/qw-asr/media"
	"github.com/ronith256-meesho/qw-asr/services/stt"
)

const handshakeTimeout = 10 * time.Second

// decodeRequest is the per-call header sent before the binary audio payload.
type decodeRequest struct {
	ChunkID         int    `json:"chunk_id"`
	UnfixedChunkNum int    `json:"unfixed_chunk_num"`
	UnfixedTokenNum int    `json:"unfixed_token_num"`
	Prefix          string `json:"prefix"`
	Language        string `json:"language,omitempty"`
	Prompt          string `json:"prompt,omitempty"`
	Context         string `json:"context,omitempty"`
	Samples         int    `json:"samples"`
}

// decodeResponse is the service's reply: the full transcript for the
// utterance so far.
type decodeResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Error    string `json:"error,omitempty"`
}

// Decoder implements stt.Decoder against the remote decode service. Safe for
// concurrent calls from different sessions; calls on one state are
// serialized by the owning session.
type Decoder struct {
	url    string
	apiKey string
	tok    *tokenizer.Tokenizer
	log    *slog.Logger
	dialer *websocket.Dialer
}

// Option configures the decoder.
type Option func(*Decoder)

// WithTokenizer supplies the vocabulary used to express rollback in real
// tokens. Without it rollback falls back to rune granularity.
func WithTokenizer(tok *tokenizer.Tokenizer) Option {
	return func(d *Decoder) { d.tok = tok }
}

// WithAPIKey authenticates requests against the decode service.
func WithAPIKey(key string) Option {
	return func(d *Decoder) { d.apiKey = key }
}

// WithLogger sets the decoder logger.
func WithLogger(log *slog.Logger) Option {
	return func(d *Decoder) { d.log = log }
}

// New creates a decoder for the given websocket endpoint.
func New(url string, opts ...Option) *Decoder {
	d := &Decoder{
		url: url,
		log: slog.Default(),
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	d.log = d.log.With("component", "qwen-decoder")
	return d
}

// LoadTokenizer reads a HuggingFace tokenizer.json vocabulary.
func LoadTokenizer(path string) (*tokenizer.Tokenizer, error) {
	tok, err := pretrained.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return tok, nil
}

// utteranceState is the backend-owned part of the streaming state.
type utteranceState struct {
	samplesSeen int
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

// StreamingTranscribe implements stt.Decoder: one round trip to the decode
// service carrying the rollback prefix and the new samples.
func (d *Decoder) StreamingTranscribe(ctx context.Context, samples []float32, state *stt.StreamingState, opts stt.DecodeOptions) error {
	us, ok := state.Internal.(*utteranceState)
	if !ok {
		return fmt.Errorf("%w: foreign streaming state", stt.ErrDecodeFatal)
	}

	prefix := d.rollbackPrefix(state.Text, opts)

	header := http.Header{}
	if d.apiKey != "" {
		header.Set("Authorization", "Bearer "+d.apiKey)
	}

	conn, resp, err := d.dialer.DialContext(ctx, d.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("%w: dial %s: status %d", stt.ErrDecodeTransient, d.url, resp.StatusCode)
		}
		return fmt.Errorf("%w: dial %s: %v", stt.ErrDecodeTransient, d.url, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	req := decodeRequest{
		ChunkID:         opts.ChunkID,
		UnfixedChunkNum: opts.UnfixedChunkNum,
		UnfixedTokenNum: opts.UnfixedTokenNum,
		Prefix:          prefix,
		Language:        state.Language,
		Prompt:          state.Prompt,
		Context:         state.Context,
		Samples:         len(samples),
	}
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("%w: write header: %v", stt.ErrDecodeTransient, err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, media.EncodeFloat32LE(samples)); err != nil {
		return fmt.Errorf("%w: write audio: %v", stt.ErrDecodeTransient, err)
	}

	var out decodeResponse
	if err := conn.ReadJSON(&out); err != nil {
		return fmt.Errorf("%w: read response: %v", stt.ErrDecodeTransient, err)
	}
	if out.Error != "" {
		return fmt.Errorf("%w: %s", stt.ErrDecodeTransient, out.Error)
	}

	us.samplesSeen += len(samples)
	state.Text = out.Text
	if out.Language != "" {
		state.Language = out.Language
	}

	d.log.Debug("chunk decoded",
		slog.Int("chunk_id", opts.ChunkID),
		slog.Int("samples", len(samples)),
		slog.Int("utterance_samples", us.samplesSeen))
	return nil
}

// rollbackPrefix strips the trailing unfixed tokens from the previous
// transcript. The cut is always on a rune boundary so the prefix stays valid
// UTF-8.
func (d *Decoder) rollbackPrefix(text string, opts stt.DecodeOptions) string {
	if text == "" || opts.UnfixedTokenNum <= 0 {
		return text
	}
	// Rollback only applies after the first unfixed chunks; before that the
	// whole transcript rides along unchanged.
	if opts.ChunkID < opts.UnfixedChunkNum {
		return text
	}

	if d.tok == nil {
		return stt.DropLastRunes(text, opts.UnfixedTokenNum)
	}

	encoding, err := d.tok.EncodeSingle(text, false)
	if err != nil {
		d.log.Warn("tokenize failed, falling back to rune rollback", slog.String("error", err.Error()))
		return stt.DropLastRunes(text, opts.UnfixedTokenNum)
	}
	ids := encoding.GetIds()
	if len(ids) <= opts.UnfixedTokenNum {
		return ""
	}
	return d.tok.Decode(ids[:len(ids)-opts.UnfixedTokenNum], true)
}
