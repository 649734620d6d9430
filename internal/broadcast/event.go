package broadcast

import "encoding/json"

// Event sources as they appear on the wire.
const (
	SourceTwilio = "twilio"
	SourceSpeech = "eleven"
	SourceReply  = "chatgpt"
	SourceServer = "server"
)

// Event kinds.
const (
	EventStart        = "start"
	EventStop         = "stop"
	EventTranscript   = "transcript"
	EventMessage      = "message"
	EventFirstMessage = "first_message"
	EventClosed       = "closed"
	EventError        = "error"
	EventResponse     = "response"
	EventTTS          = "tts"
)

// Event is one immutable notification fanned out to every subscriber.
// Fields are kind-specific; unused fields are omitted from the JSON.
type Event struct {
	Source      string          `json:"source"`
	Event       string          `json:"event"`
	CallSID     string          `json:"call_sid,omitempty"`
	StreamSID   string          `json:"stream_sid,omitempty"`
	Text        string          `json:"text,omitempty"`
	IsFinal     bool            `json:"is_final,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	Message     json.RawMessage `json:"message,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	AudioBase64 string          `json:"audio_base64,omitempty"`
	AudioID     string          `json:"audio_id,omitempty"`
	Code        int             `json:"code,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Error       string          `json:"error,omitempty"`
}
