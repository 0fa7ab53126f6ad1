package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ronith256-meesho/qw-asr/internal/observe"
	"github.com/ronith256-meesho/qw-asr/media"
	"github.com/ronith256-meesho/qw-asr/services/stt"
)

// maxConsecutiveDecodeFailures is the escalation point from transient decode
// errors to a fatal session error.
const maxConsecutiveDecodeFailures = 3

// Driver owns the opaque decoder streaming state for one session. It
// accumulates gated audio during speech, triggers streaming decodes at the
// configured chunk cadence, deduplicates partial transcripts, and flushes
// residual audio on speech end.
//
// Not safe for concurrent use; owned by the session goroutine.
type Driver struct {
	decoder       stt.Decoder
	cfg           Config
	log           *slog.Logger
	metrics       *observe.Metrics
	decodeTimeout time.Duration

	state       *stt.StreamingState
	pending     []float32
	chunkID     int
	lastPartial string
	failures    int
}

// NewDriver creates a driver and initializes the decoder streaming state
// with the session's recognition hints.
func NewDriver(decoder stt.Decoder, cfg Config, logger *slog.Logger, metrics *observe.Metrics, decodeTimeout time.Duration) (*Driver, error) {
	state, err := decoder.InitStreamingState(cfg.Prompt, cfg.Context, cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("init streaming state: %w", err)
	}
	return &Driver{
		decoder:       decoder,
		cfg:           cfg,
		log:           logger,
		metrics:       metrics,
		decodeTimeout: decodeTimeout,
		state:         state,
	}, nil
}

// chunkSamples is the decode trigger size in samples.
func (d *Driver) chunkSamples() int {
	return int(d.cfg.ChunkSize * float64(media.Speech16kHzMono.SampleRate))
}

// OnSpeechFrames feeds in-utterance frames. When enough audio has
// accumulated it runs one streaming decode and may emit a Partial event.
// The returned error is fatal; transient decode failures surface as Error
// events.
func (d *Driver) OnSpeechFrames(ctx context.Context, frames []*media.AudioFrame, t float64) ([]Event, error) {
	for _, f := range frames {
		d.pending = append(d.pending, f.Samples...)
	}
	if len(d.pending) < d.chunkSamples() {
		return nil, nil
	}

	events, err := d.decodePending(ctx)
	if err != nil {
		return events, err
	}
	if text := d.state.Text; text != d.lastPartial {
		d.lastPartial = text
		events = append(events, partialEvent(d.state.Language, text, t))
	}
	return events, nil
}

// OnSpeechEnd flushes residual audio through the decoder, emits the Final
// event, and resets the streaming state so the next utterance starts from a
// clean decode context with the same recognition hints.
func (d *Driver) OnSpeechEnd(ctx context.Context, t float64) ([]Event, error) {
	var events []Event
	if len(d.pending) > 0 {
		ev, err := d.decodePending(ctx)
		events = append(events, ev...)
		if err != nil {
			return events, err
		}
	}

	events = append(events, finalEvent(d.state.Language, d.state.Text, t))

	if err := d.reset(); err != nil {
		return events, err
	}
	return events, nil
}

// decodePending runs one streaming decode over the buffered audio. On a
// transient failure the chunk is dropped and an Error event is returned; the
// error return is non-nil only when failures escalate to fatal.
func (d *Driver) decodePending(ctx context.Context) ([]Event, error) {
	samples := d.pending
	d.pending = nil

	opts := stt.DecodeOptions{
		ChunkID:         d.chunkID,
		UnfixedChunkNum: d.cfg.UnfixedChunkNum,
		UnfixedTokenNum: d.cfg.UnfixedTokenNum,
	}

	dctx := ctx
	if d.decodeTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, d.decodeTimeout)
		defer cancel()
	}

	start := time.Now()
	err := d.decoder.StreamingTranscribe(dctx, samples, d.state, opts)
	d.metrics.RecordDecode(ctx, time.Since(start), err == nil)
	if err != nil {
		d.failures++
		d.log.Warn("decode failed, chunk dropped",
			slog.Int("chunk_id", d.chunkID),
			slog.Int("samples", len(samples)),
			slog.Int("consecutive_failures", d.failures),
			slog.String("error", err.Error()))
		if d.failures >= maxConsecutiveDecodeFailures {
			return []Event{errorEvent("transcription backend failed repeatedly")},
				fmt.Errorf("%w: %d consecutive failures", stt.ErrDecodeFatal, d.failures)
		}
		return []Event{errorEvent("transcription failed, audio chunk dropped")}, nil
	}

	d.failures = 0
	d.chunkID++
	return nil, nil
}

// reset reinitializes the per-utterance decode context.
func (d *Driver) reset() error {
	state, err := d.decoder.InitStreamingState(d.cfg.Prompt, d.cfg.Context, d.cfg.Language)
	if err != nil {
		return fmt.Errorf("%w: reset streaming state: %v", stt.ErrDecodeFatal, err)
	}
	d.state = state
	d.pending = nil
	d.chunkID = 0
	d.lastPartial = ""
	return nil
}
