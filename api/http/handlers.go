// Package http exposes the server's REST and WebSocket surface.
package http

import (
	"context"
	"encoding/base64"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/calebrieck/retech/internal/audiocache"
	"github.com/calebrieck/retech/internal/broadcast"
	"github.com/calebrieck/retech/internal/tts"
)

// CallControl is the slice of the telephony bridge the handlers use.
type CallControl interface {
	InitiateOutboundCall(to, from string) (string, error)
	VoiceResponse() (string, error)
	RedirectActiveCallToPlayback(audioID string)
}

// MediaStream accepts the provider's inbound media websocket.
type MediaStream interface {
	HandleMediaStream(c echo.Context) error
}

// Storage archives synthesized clips. Optional; nil disables archiving.
type Storage interface {
	Upload(key, contentType string, data []byte) error
	Health() (int, error)
}

type Handlers struct {
	Events *broadcast.Broadcaster
	Cache  *audiocache.Cache
	Synth  tts.Synthesizer
	Calls  CallControl
	Media  MediaStream
	Store  Storage

	// VoiceAuth guards the telephony webhook; nil leaves it open.
	VoiceAuth echo.MiddlewareFunc

	OutboundTo   string
	OutboundFrom string

	upgrader websocket.Upgrader
}

func NewHandlers() *Handlers {
	return &Handlers{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handlers) Register(e *echo.Echo) {
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.POST("/chatgpt-response", h.replyReceived)
	e.GET("/tts/:id", h.serveTTS)
	e.POST("/call-me", h.callMe)
	if h.VoiceAuth != nil {
		e.POST("/voice", h.voice, h.VoiceAuth)
	} else {
		e.POST("/voice", h.voice)
	}
	e.GET("/ws/client", h.clientSocket)
	e.GET("/ws/twilio", h.Media.HandleMediaStream)
	e.GET("/supabase/health", h.storageHealth)
}

type replyRequest struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// replyReceived accepts generated reply text, announces it to observers,
// and kicks off synthesis in the background. The caller gets an ack
// immediately; synthesis latency never blocks the reply producer.
func (h *Handlers) replyReceived(c echo.Context) error {
	var req replyRequest
	if err := c.Bind(&req); err != nil || req.Text == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "text is required"})
	}

	h.Events.Publish(broadcast.Event{
		Source:   broadcast.SourceReply,
		Event:    broadcast.EventResponse,
		Text:     req.Text,
		Metadata: req.Metadata,
	})

	go h.synthesizeAndPlay(req.Text, req.Metadata)

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// synthesizeAndPlay runs the full reply pipeline: synthesize, cache,
// notify observers, optionally archive, then push playback into the
// active call. Failures are logged and contained here. The caller's
// metadata rides along onto the tts event so observers can correlate
// the clip with the reply turn that produced it.
func (h *Handlers) synthesizeAndPlay(text string, metadata map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	data, contentType, err := h.Synth.Synthesize(ctx, text)
	if err != nil {
		log.Printf("tts pipeline: synthesis failed: %v", err)
		h.Events.Publish(broadcast.Event{
			Source: broadcast.SourceServer,
			Event:  broadcast.EventError,
			Error:  "tts synthesis failed",
		})
		return
	}

	id := h.Cache.Store(data, contentType)
	h.Events.Publish(broadcast.Event{
		Source:      broadcast.SourceSpeech,
		Event:       broadcast.EventTTS,
		Text:        text,
		Metadata:    metadata,
		AudioID:     id,
		AudioBase64: base64.StdEncoding.EncodeToString(data),
	})

	if h.Store != nil {
		if err := h.Store.Upload(id+audioExt(contentType), contentType, data); err != nil {
			log.Printf("tts pipeline: archive failed for %s: %v", id, err)
		}
	}

	h.Calls.RedirectActiveCallToPlayback(id)
}

func audioExt(contentType string) string {
	switch contentType {
	case "audio/mpeg":
		return ".mp3"
	case "audio/basic":
		return ".ulaw"
	default:
		return ".bin"
	}
}

// serveTTS hands a cached clip to the telephony provider. Each clip is
// consumable once; a replayed or expired id is a 404.
func (h *Handlers) serveTTS(c echo.Context) error {
	id := c.Param("id")
	data, contentType, ok := h.Cache.Take(id)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "audio not found"})
	}
	return c.Blob(http.StatusOK, contentType, data)
}

type callMeRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
}

func (h *Handlers) callMe(c echo.Context) error {
	var req callMeRequest
	_ = c.Bind(&req)
	to := req.To
	if to == "" {
		to = h.OutboundTo
	}
	from := req.From
	if from == "" {
		from = h.OutboundFrom
	}
	if to == "" || from == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "to and from numbers required"})
	}

	sid, err := h.Calls.InitiateOutboundCall(to, from)
	if err != nil {
		log.Printf("call-me: outbound call failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to initiate call"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "calling", "sid": sid})
}

func (h *Handlers) voice(c echo.Context) error {
	if params, ok := c.Get("twilioParams").(map[string]string); ok {
		log.Printf("voice webhook: call from %s sid=%s", params["From"], params["CallSid"])
	}

	doc, err := h.Calls.VoiceResponse()
	if err != nil {
		log.Printf("voice webhook: building response: %v", err)
		return c.String(http.StatusInternalServerError, "failed to build TwiML")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml")
	return c.String(http.StatusOK, doc)
}

// clientSocket subscribes an observer to the event stream. Inbound frames
// are drained and discarded; the socket exists to receive.
func (h *Handlers) clientSocket(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	sink := broadcast.NewConnSink(conn, 0)
	h.Events.Subscribe(sink)
	log.Printf("client socket connected, %d subscriber(s)", h.Events.Len())

	defer func() {
		h.Events.Unsubscribe(sink)
		_ = conn.Close()
		log.Printf("client socket closed, %d subscriber(s)", h.Events.Len())
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (h *Handlers) storageHealth(c echo.Context) error {
	if h.Store == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not configured"})
	}
	count, err := h.Store.Health()
	if err != nil {
		log.Printf("storage health check failed: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unreachable"})
	}
	return c.JSON(http.StatusOK, map[string]any{"status": "ok", "bucket_count": count})
}
