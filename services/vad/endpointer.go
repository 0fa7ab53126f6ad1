package vad

import (
	"github.com/ronith256-meesho/qw-asr/media"
)

// EndpointEventType enumerates utterance boundary events.
type EndpointEventType int

const (
	// EndpointSpeechStart marks the Silent -> Speaking transition. The event
	// carries every frame collected during the debounce window so the opening
	// syllables reach the decoder.
	EndpointSpeechStart EndpointEventType = iota

	// EndpointSpeechContinue carries one in-utterance frame, speech or
	// trailing silence still inside the hysteresis window.
	EndpointSpeechContinue

	// EndpointSpeechEnd marks the Speaking -> Silent transition.
	EndpointSpeechEnd
)

// EndpointEvent is one endpointer output.
type EndpointEvent struct {
	Type   EndpointEventType
	Frames []*media.AudioFrame
}

// EndpointerState is the two-state machine position.
type EndpointerState int

const (
	StateSilent EndpointerState = iota
	StateSpeaking
)

func (s EndpointerState) String() string {
	if s == StateSpeaking {
		return "speaking"
	}
	return "silent"
}

// EndpointerOptions tune the utterance boundary machine.
type EndpointerOptions struct {
	// SilenceThreshold is the consecutive silent time within Speaking that
	// triggers endpointing, in seconds.
	SilenceThreshold float64

	// MinSpeechDuration is the debounce: a Silent -> Speaking transition is
	// provisional until this much cumulative speech has been seen. Shorter
	// runs are discarded without reaching the decoder.
	MinSpeechDuration float64
}

// Endpointer converts per-frame speech classifications into utterance
// boundary events with hysteresis on trailing silence. Silent tail frames are
// kept inside the utterance so trailing consonants are not clipped; the
// debounce keeps fleeting VAD false positives from producing empty
// utterances.
//
// Not safe for concurrent use; owned by a single session goroutine.
type Endpointer struct {
	opts EndpointerOptions

	state       EndpointerState
	speechSecs  float64
	silenceSecs float64

	// provisional holds frames seen since the first speech frame while still
	// below the debounce threshold.
	provisional []*media.AudioFrame
}

// NewEndpointer creates an endpointer in the Silent state.
func NewEndpointer(opts EndpointerOptions) *Endpointer {
	return &Endpointer{opts: opts}
}

// State returns the current machine state.
func (e *Endpointer) State() EndpointerState {
	return e.state
}

// ProcessFrame advances the machine by one classified frame and returns zero
// or more events.
func (e *Endpointer) ProcessFrame(frame *media.AudioFrame, isSpeech bool) []EndpointEvent {
	switch e.state {
	case StateSilent:
		return e.processSilent(frame, isSpeech)
	case StateSpeaking:
		return e.processSpeaking(frame, isSpeech)
	}
	return nil
}

func (e *Endpointer) processSilent(frame *media.AudioFrame, isSpeech bool) []EndpointEvent {
	if !isSpeech {
		// A noise spike below the debounce never reaches the decoder.
		e.speechSecs = 0
		e.provisional = e.provisional[:0]
		return nil
	}

	e.provisional = append(e.provisional, frame)
	e.speechSecs += frame.Seconds()
	if e.speechSecs < e.opts.MinSpeechDuration {
		return nil
	}

	frames := make([]*media.AudioFrame, len(e.provisional))
	copy(frames, e.provisional)
	e.provisional = e.provisional[:0]

	e.state = StateSpeaking
	e.silenceSecs = 0
	return []EndpointEvent{{Type: EndpointSpeechStart, Frames: frames}}
}

func (e *Endpointer) processSpeaking(frame *media.AudioFrame, isSpeech bool) []EndpointEvent {
	if isSpeech {
		e.silenceSecs = 0
		return []EndpointEvent{{Type: EndpointSpeechContinue, Frames: []*media.AudioFrame{frame}}}
	}

	// Trailing silence may still carry phonemes; keep it in the utterance.
	e.silenceSecs += frame.Seconds()
	if e.silenceSecs >= e.opts.SilenceThreshold {
		e.reset()
		return []EndpointEvent{
			{Type: EndpointSpeechContinue, Frames: []*media.AudioFrame{frame}},
			{Type: EndpointSpeechEnd},
		}
	}

	return []EndpointEvent{{Type: EndpointSpeechContinue, Frames: []*media.AudioFrame{frame}}}
}

// ForceEnd forces a Speaking -> Silent transition, returning a SpeechEnd
// event if the machine was speaking. Used by explicit finalize.
func (e *Endpointer) ForceEnd() []EndpointEvent {
	if e.state != StateSpeaking {
		// Also drop any provisional window so the next utterance starts clean.
		e.speechSecs = 0
		e.provisional = e.provisional[:0]
		return nil
	}
	e.reset()
	return []EndpointEvent{{Type: EndpointSpeechEnd}}
}

func (e *Endpointer) reset() {
	e.state = StateSilent
	e.speechSecs = 0
	e.silenceSecs = 0
	e.provisional = e.provisional[:0]
}
