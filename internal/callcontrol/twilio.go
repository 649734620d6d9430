// Package callcontrol issues the out-of-band Twilio instructions that move
// a call between plain telephony and the media relay: placing outbound
// calls, answering the voice webhook, and pushing mid-call playback TwiML.
package callcontrol

import (
	"fmt"
	"log"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	"github.com/calebrieck/retech/internal/session"
)

const defaultGreeting = "Hi. Start speaking after the beep."

// Registry exposes the currently active call, if any.
type Registry interface {
	Active() (session.Session, bool)
}

// callAPI is the slice of Twilio's REST surface the bridge uses.
type callAPI interface {
	CreateCall(params *twilioApi.CreateCallParams) (*twilioApi.ApiV2010Call, error)
	UpdateCall(sid string, params *twilioApi.UpdateCallParams) (*twilioApi.ApiV2010Call, error)
}

type Config struct {
	AccountSID string
	AuthToken  string
	// PublicBaseURL is the externally reachable base of this server, used
	// to build webhook and playback URLs.
	PublicBaseURL string
	// MediaStreamURL overrides the derived wss:// media endpoint when the
	// websocket host differs from the webhook host (tunneled setups).
	MediaStreamURL string
	Greeting       string
}

// Bridge talks to the telephony provider's control plane.
type Bridge struct {
	cfg      Config
	api      callAPI
	registry Registry
}

func New(cfg Config, registry Registry) *Bridge {
	if cfg.Greeting == "" {
		cfg.Greeting = defaultGreeting
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &Bridge{cfg: cfg, api: client.Api, registry: registry}
}

// InitiateOutboundCall places a call that will hit the voice webhook once
// answered, and returns the provider-assigned call id.
func (b *Bridge) InitiateOutboundCall(to, from string) (string, error) {
	if b.cfg.PublicBaseURL == "" {
		return "", fmt.Errorf("public base URL not configured; cannot build voice webhook URL")
	}
	params := &twilioApi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetUrl(b.cfg.PublicBaseURL + "/voice")
	params.SetMethod("POST")

	call, err := b.api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("creating outbound call: %w", err)
	}
	if call.Sid == nil {
		return "", fmt.Errorf("provider returned call without sid")
	}
	log.Printf("callcontrol: outbound call initiated sid=%s", *call.Sid)
	return *call.Sid, nil
}

// VoiceResponse renders the webhook markup: greet, pause, then open a
// media stream back to the relay. This is the hand-off from plain
// telephony into the duplex bridge.
func (b *Bridge) VoiceResponse() (string, error) {
	say := &twiml.VoiceSay{Message: b.cfg.Greeting}
	pause := &twiml.VoicePause{Length: "1"}
	stream := &twiml.VoiceStream{Url: b.mediaStreamURL()}
	connect := &twiml.VoiceConnect{InnerElements: []twiml.Element{stream}}

	doc, err := twiml.Voice([]twiml.Element{say, pause, connect})
	if err != nil {
		return "", fmt.Errorf("building voice response: %w", err)
	}
	return doc, nil
}

// RedirectActiveCallToPlayback updates the live call to play the cached
// audio and then re-enter the voice webhook, looping back into listening
// mode. With no active call or no public base URL this is a logged no-op;
// a missed playback must never fail the synthesis path.
func (b *Bridge) RedirectActiveCallToPlayback(audioID string) {
	sess, ok := b.registry.Active()
	if !ok {
		log.Printf("callcontrol: no active call for playback of %s", audioID)
		return
	}
	if b.cfg.PublicBaseURL == "" {
		log.Printf("callcontrol: public base URL not set; cannot play audio into call %s", sess.CallSID)
		return
	}

	play := &twiml.VoicePlay{Url: b.cfg.PublicBaseURL + "/tts/" + audioID}
	redirect := &twiml.VoiceRedirect{Url: b.cfg.PublicBaseURL + "/voice", Method: "POST"}
	doc, err := twiml.Voice([]twiml.Element{play, redirect})
	if err != nil {
		log.Printf("callcontrol: building playback twiml: %v", err)
		return
	}

	params := &twilioApi.UpdateCallParams{}
	params.SetTwiml(doc)
	if _, err := b.api.UpdateCall(sess.CallSID, params); err != nil {
		log.Printf("callcontrol: updating call %s for playback: %v", sess.CallSID, err)
		return
	}
	log.Printf("callcontrol: call %s redirected to play %s", sess.CallSID, audioID)
}

// mediaStreamURL derives the wss:// endpoint of the relay's inbound
// socket from the public base URL unless explicitly overridden.
func (b *Bridge) mediaStreamURL() string {
	if b.cfg.MediaStreamURL != "" {
		return b.cfg.MediaStreamURL
	}
	base := b.cfg.PublicBaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/ws/twilio"
}
