package server

import (
	"encoding/json"
	"fmt"

	"github.com/ronith256-meesho/qw-asr/session"
)

// Client message types.
const (
	msgTypeConfig   = "config"
	msgTypeFinalize = "finalize"
)

// controlMessage is the envelope of inbound text messages.
type controlMessage struct {
	Type string `json:"type"`
}

// configMessage is the client's session configuration. Every field is
// optional; omitted fields fall back to the server defaults. Unknown fields
// are ignored.
type configMessage struct {
	Type              string   `json:"type"`
	Context           *string  `json:"context"`
	Language          *string  `json:"language"`
	Prompt            *string  `json:"prompt"`
	UnfixedChunkNum   *int     `json:"unfixed_chunk_num"`
	UnfixedTokenNum   *int     `json:"unfixed_token_num"`
	ChunkSizeSec      *float64 `json:"chunk_size_sec"`
	VADThreshold      *float64 `json:"vad_threshold"`
	SilenceThreshold  *float64 `json:"silence_threshold"`
	MinSpeechDuration *float64 `json:"min_speech_duration"`
}

// mergeConfig overlays the present fields onto the server defaults. An
// explicit null is treated like an omitted field: a null language keeps the
// default language, which means auto-detection only when that default is
// empty.
func mergeConfig(defaults session.Config, msg configMessage) session.Config {
	cfg := defaults
	if msg.Context != nil {
		cfg.Context = *msg.Context
	}
	if msg.Language != nil {
		cfg.Language = *msg.Language
	}
	if msg.Prompt != nil {
		cfg.Prompt = *msg.Prompt
	}
	if msg.UnfixedChunkNum != nil {
		cfg.UnfixedChunkNum = *msg.UnfixedChunkNum
	}
	if msg.UnfixedTokenNum != nil {
		cfg.UnfixedTokenNum = *msg.UnfixedTokenNum
	}
	if msg.ChunkSizeSec != nil {
		cfg.ChunkSize = *msg.ChunkSizeSec
	}
	if msg.VADThreshold != nil {
		cfg.VADThreshold = *msg.VADThreshold
	}
	if msg.SilenceThreshold != nil {
		cfg.SilenceThreshold = *msg.SilenceThreshold
	}
	if msg.MinSpeechDuration != nil {
		cfg.MinSpeechDuration = *msg.MinSpeechDuration
	}
	return cfg
}

// Server -> client wire events.

type sessionCreatedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

type transcriptMessage struct {
	Type          string  `json:"type"`
	Language      string  `json:"language"`
	Text          string  `json:"text"`
	Timestamp     float64 `json:"timestamp"`
	IsSpeechFinal bool    `json:"is_speech_final,omitempty"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// encodeEvent converts a session event into its wire form.
func encodeEvent(ev session.Event) ([]byte, error) {
	switch ev.Type {
	case session.EventSessionCreated:
		return json.Marshal(sessionCreatedMessage{
			Type:      string(ev.Type),
			SessionID: ev.SessionID,
		})
	case session.EventPartial:
		return json.Marshal(transcriptMessage{
			Type:      string(ev.Type),
			Language:  ev.Language,
			Text:      ev.Text,
			Timestamp: ev.Timestamp,
		})
	case session.EventFinal:
		return json.Marshal(transcriptMessage{
			Type:          string(ev.Type),
			Language:      ev.Language,
			Text:          ev.Text,
			Timestamp:     ev.Timestamp,
			IsSpeechFinal: ev.IsSpeechFinal,
		})
	case session.EventError:
		return json.Marshal(errorMessage{
			Type:    string(ev.Type),
			Message: ev.Message,
		})
	}
	return nil, fmt.Errorf("unknown event type %q", ev.Type)
}
