package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/toolmind/internal/reasoner"
	"github.com/haasonsaas/toolmind/pkg/models"
)

// Streaming channel tunables, grounded on the teacher's
// gateway.wsControlPlane (internal/gateway/ws_control_plane.go) constants
// of the same names.
const (
	wsReadBufferSize  = 8192
	wsWriteBufferSize = 8192
	wsMaxPayloadBytes = 1 << 20
	wsPongWait        = 45 * time.Second
	wsWriteWait       = 10 * time.Second
)

// openFrame is the client's opening message: {question, history?, options?}
// per spec.md §6's streaming channel contract.
type openFrame struct {
	Question string         `json:"question"`
	History  []models.Event `json:"history,omitempty"`
	Options  *askOptions    `json:"options,omitempty"`
}

// askOptions overrides the agent's default iter_max/t_max for one question.
type askOptions struct {
	IterMax     int `json:"iter_max,omitempty"`
	TMaxSeconds int `json:"t_max_seconds,omitempty"`
}

func (o *askOptions) apply(base reasoner.Config) reasoner.Config {
	cfg := base
	if o == nil {
		return cfg
	}
	if o.IterMax > 0 {
		cfg.IterMax = o.IterMax
	}
	if o.TMaxSeconds > 0 {
		cfg.TMax = time.Duration(o.TMaxSeconds) * time.Second
	}
	return cfg
}

// WSHandler implements the Streaming Orchestrator's bidirectional channel:
// one WebSocket connection per question, opened with a single JSON frame
// and answered with an ordered sequence of event frames until a terminal
// event is sent.
type WSHandler struct {
	agent    *reasoner.Agent
	upgrader websocket.Upgrader
}

// NewWSHandler builds a WSHandler driving questions against agent.
func NewWSHandler(agent *reasoner.Agent) *WSHandler {
	return &WSHandler{
		agent: agent,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  wsReadBufferSize,
			WriteBufferSize: wsWriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	conn.SetReadLimit(wsMaxPayloadBytes)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}

	var open openFrame
	if err := json.Unmarshal(raw, &open); err != nil {
		_ = conn.WriteJSON(models.Event{Kind: models.EventError, Payload: mustMarshal(models.ErrorPayload{
			Message: "invalid open frame: " + err.Error(), Where: "orchestrator",
		})})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	agent := h.agent
	if open.Options != nil {
		agent = h.agent.WithConfig(open.Options.apply(reasoner.DefaultConfig()))
	}

	sink := newBufferedSink(minEventBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer sink.close()
		agent.Ask(ctx, open.Question, open.History, sink)
	}()

	// A disconnected client stops sending and stops reading; the only way
	// to notice without a dedicated heartbeat is to keep reading until the
	// connection errors, per spec.md §4.5's cancellation contract.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for evt := range sink.ch {
		frame, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			cancel()
			break
		}
	}
	<-done
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}
