// Package codec translates between the canonical event shape and the two
// wire formats the relay speaks: Twilio Media Stream JSON frames on the
// inbound side and the realtime speech-to-text protocol on the upstream side.
package codec

import (
	"encoding/json"
)

// Frame is one decoded inbound media-stream frame.
type Frame interface{ frame() }

// StartFrame announces a new media stream for a call.
type StartFrame struct {
	CallSID   string
	StreamSID string
}

// MediaFrame carries one base64 audio chunk.
type MediaFrame struct {
	PayloadB64 string
}

// StopFrame ends the media stream.
type StopFrame struct{}

// IgnoredFrame is any event kind we do not recognize. Unknown kinds are
// tolerated so newer Twilio protocol revisions do not break the relay.
type IgnoredFrame struct {
	Event string
}

func (StartFrame) frame()   {}
func (MediaFrame) frame()   {}
func (StopFrame) frame()    {}
func (IgnoredFrame) frame() {}

type mediaEnvelope struct {
	Event string `json:"event"`
	Start struct {
		CallSID   string `json:"callSid"`
		StreamSID string `json:"streamSid"`
	} `json:"start"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media"`
}

// DecodeMediaFrame parses one Twilio media-stream frame. It returns an error
// only when the bytes are not valid JSON; unknown event kinds decode to
// IgnoredFrame.
func DecodeMediaFrame(data []byte) (Frame, error) {
	var env mediaEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Event {
	case "start":
		return StartFrame{CallSID: env.Start.CallSID, StreamSID: env.Start.StreamSID}, nil
	case "media":
		return MediaFrame{PayloadB64: env.Media.Payload}, nil
	case "stop":
		return StopFrame{}, nil
	default:
		return IgnoredFrame{Event: env.Event}, nil
	}
}

type audioChunk struct {
	MessageType string `json:"message_type"`
	AudioBase64 string `json:"audio_base_64"`
}

// EncodeAudioChunk builds the upstream input_audio_chunk message for one
// base64 audio payload. The payload is passed through untouched.
func EncodeAudioChunk(payloadB64 string) ([]byte, error) {
	return json.Marshal(audioChunk{MessageType: "input_audio_chunk", AudioBase64: payloadB64})
}

// ExtractTranscript pulls transcript text and finality out of an upstream
// speech-service message. The service's schema varies across versions, so
// this is an ordered best-effort search: top-level "text", then
// "transcript", then the same keys nested under "data". It never fails;
// ok is false when no transcript text is present, letting callers forward
// the raw message instead.
func ExtractTranscript(raw []byte) (text string, isFinal bool, ok bool) {
	var msg map[string]any
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", false, false
	}

	data, _ := msg["data"].(map[string]any)

	for _, candidate := range []string{
		stringField(msg, "text"),
		stringField(msg, "transcript"),
		stringField(data, "text"),
		stringField(data, "transcript"),
	} {
		if candidate != "" {
			text = candidate
			break
		}
	}
	if text == "" {
		return "", false, false
	}

	isFinal = boolField(msg, "is_final") ||
		boolField(msg, "final") ||
		boolField(data, "is_final") ||
		boolField(data, "final")
	switch stringField(msg, "type") {
	case "final", "transcript_final":
		isFinal = true
	}
	return text, isFinal, true
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func boolField(m map[string]any, key string) bool {
	if m == nil {
		return false
	}
	b, _ := m[key].(bool)
	return b
}
