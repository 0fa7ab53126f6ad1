package session

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/ronith256-meesho/qw-asr/media"
	"github.com/ronith256-meesho/qw-asr/services/stt"
	"github.com/ronith256-meesho/qw-asr/test/mock"
)

func newTestDriver(t *testing.T, dec stt.Decoder, cfg Config) *Driver {
	t.Helper()
	d, err := NewDriver(dec, cfg, slog.Default(), nil, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func speechFrames(n, size int) []*media.AudioFrame {
	frames := make([]*media.AudioFrame, n)
	for i := range frames {
		samples := make([]float32, size)
		for j := range samples {
			samples[j] = 1.0
		}
		frames[i] = media.NewAudioFrame(samples, media.Speech16kHzMono)
	}
	return frames
}

func TestDriverDecodesAtChunkCadence(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	dec := mock.NewDecoder()
	cfg := DefaultConfig()
	cfg.ChunkSize = 0.5 // 8000 samples
	d := newTestDriver(t, dec, cfg)

	// 15 frames of 512 = 7680 samples: below the chunk size, no decode.
	events, err := d.OnSpeechFrames(ctx, speechFrames(15, 512), 1.0)
	is.NoErr(err)
	is.Equal(len(events), 0)
	is.Equal(dec.Decodes(), 0)

	// One more frame crosses 8000 and triggers a decode plus a partial.
	events, err = d.OnSpeechFrames(ctx, speechFrames(1, 512), 1.1)
	is.NoErr(err)
	is.Equal(dec.Decodes(), 1)
	is.Equal(len(events), 1)
	is.Equal(events[0].Type, EventPartial)
	is.Equal(events[0].Text, "<8192>")
	is.Equal(events[0].Timestamp, 1.1)
}

func TestDriverSuppressesDuplicatePartials(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	dec := mock.NewDecoder()
	cfg := DefaultConfig()
	cfg.ChunkSize = 0.5
	d := newTestDriver(t, dec, cfg)

	events, err := d.OnSpeechFrames(ctx, speechFrames(16, 512), 0)
	is.NoErr(err)
	is.Equal(len(events), 1)

	// No new decode below the next chunk boundary, so no new partial.
	events, err = d.OnSpeechFrames(ctx, speechFrames(1, 512), 0)
	is.NoErr(err)
	is.Equal(len(events), 0)
}

func TestDriverPassesRollbackKnobs(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	dec := mock.NewDecoder()
	cfg := DefaultConfig()
	cfg.ChunkSize = 0.5
	cfg.UnfixedChunkNum = 7
	cfg.UnfixedTokenNum = 9
	d := newTestDriver(t, dec, cfg)

	_, err := d.OnSpeechFrames(ctx, speechFrames(16, 512), 0)
	is.NoErr(err)

	opts := dec.LastOpts()
	is.Equal(opts.ChunkID, 0)
	is.Equal(opts.UnfixedChunkNum, 7)
	is.Equal(opts.UnfixedTokenNum, 9)

	_, err = d.OnSpeechFrames(ctx, speechFrames(16, 512), 0)
	is.NoErr(err)
	is.Equal(dec.LastOpts().ChunkID, 1) // chunk id is monotonic per utterance
}

func TestDriverFlushAndFinal(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	dec := mock.NewDecoder()
	cfg := DefaultConfig()
	cfg.ChunkSize = 0.5
	d := newTestDriver(t, dec, cfg)

	// 10 frames buffered, below the chunk size.
	_, err := d.OnSpeechFrames(ctx, speechFrames(10, 512), 0)
	is.NoErr(err)
	is.Equal(dec.Decodes(), 0)

	events, err := d.OnSpeechEnd(ctx, 2.5)
	is.NoErr(err)
	is.Equal(dec.Decodes(), 1) // residual audio was flushed

	is.Equal(len(events), 1)
	final := events[0]
	is.Equal(final.Type, EventFinal)
	is.Equal(final.Text, "<5120>") // the tail reached the decoder before the final
	is.Equal(final.Timestamp, 2.5)
	is.True(final.IsSpeechFinal)
}

func TestDriverResetsBetweenUtterances(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	dec := mock.NewDecoder()
	cfg := DefaultConfig()
	cfg.ChunkSize = 0.5
	cfg.Language = "en"
	cfg.Prompt = "domain hint"
	d := newTestDriver(t, dec, cfg)

	_, err := d.OnSpeechFrames(ctx, speechFrames(16, 512), 0)
	is.NoErr(err)
	_, err = d.OnSpeechEnd(ctx, 1)
	is.NoErr(err)

	// Second utterance: the counting state starts fresh, hints persist.
	_, err = d.OnSpeechFrames(ctx, speechFrames(16, 512), 2)
	is.NoErr(err)
	events, err := d.OnSpeechEnd(ctx, 3)
	is.NoErr(err)
	final := events[len(events)-1]
	is.Equal(final.Type, EventFinal)
	is.Equal(final.Text, "<8192>") // not cumulative across utterances
	is.Equal(d.state.Prompt, "domain hint")
	is.Equal(dec.Inits(), 3) // construction plus two resets
}

func TestDriverTransientDecodeFailureDropsChunk(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	dec := mock.NewDecoder()
	cfg := DefaultConfig()
	cfg.ChunkSize = 0.5
	d := newTestDriver(t, dec, cfg)

	dec.FailNext(1)
	events, err := d.OnSpeechFrames(ctx, speechFrames(16, 512), 0)
	is.NoErr(err) // transient: session continues
	is.Equal(len(events), 1)
	is.Equal(events[0].Type, EventError)

	// The failed chunk was dropped; the next decode sees only new audio.
	events, err = d.OnSpeechFrames(ctx, speechFrames(16, 512), 0)
	is.NoErr(err)
	is.Equal(len(events), 1)
	is.Equal(events[0].Type, EventPartial)
	is.Equal(events[0].Text, "<8192>")
}

func TestDriverEscalatesRepeatedFailures(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	dec := mock.NewDecoder()
	cfg := DefaultConfig()
	cfg.ChunkSize = 0.5
	d := newTestDriver(t, dec, cfg)

	dec.FailNext(maxConsecutiveDecodeFailures)

	var fatal error
	for i := 0; i < maxConsecutiveDecodeFailures; i++ {
		_, err := d.OnSpeechFrames(ctx, speechFrames(16, 512), 0)
		if err != nil {
			fatal = err
			break
		}
	}
	is.True(fatal != nil)
	is.True(errors.Is(fatal, stt.ErrDecodeFatal))
}
