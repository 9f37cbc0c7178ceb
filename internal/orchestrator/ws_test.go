package orchestrator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/toolmind/internal/reasoner"
	"github.com/haasonsaas/toolmind/internal/toolstore"
	"github.com/haasonsaas/toolmind/pkg/models"
)

// There is no teacher precedent for dialing a gorilla/websocket handler in
// a test (see DESIGN.md); this follows the library's own idiomatic
// httptest.Server + Dial pattern instead.
func newWSTestServer(decisions []map[string]any) *httptest.Server {
	ts := toolstore.NewMemStore()
	or := &fakeOracle{decisions: decisions}
	agent := reasoner.New(ts, noopExecutor{}, or, reasoner.DefaultConfig())
	mux := http.NewServeMux()
	mux.Handle("/ws", NewWSHandler(agent))
	return httptest.NewServer(mux)
}

func TestWSStreamsEventsInOrder(t *testing.T) {
	srv := newWSTestServer([]map[string]any{
		{"state": "exit_response", "reasoning": "direct", "final_answer": "hi", "confidence": "high"},
	})
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	open := openFrame{Question: "what is the answer?"}
	if err := conn.WriteJSON(open); err != nil {
		t.Fatalf("write open frame failed: %v", err)
	}

	var kinds []models.EventKind
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var evt models.Event
		if err := conn.ReadJSON(&evt); err != nil {
			break
		}
		kinds = append(kinds, evt.Kind)
		if evt.Kind == models.EventFinal || evt.Kind == models.EventError || evt.Kind == models.EventTimeout {
			break
		}
	}

	if len(kinds) == 0 {
		t.Fatal("expected at least one event")
	}
	if kinds[0] != models.EventStart {
		t.Fatalf("expected first event to be start, got %s", kinds[0])
	}
	last := kinds[len(kinds)-1]
	if last != models.EventFinal {
		t.Fatalf("expected last event to be final, got %s", last)
	}
}

func TestWSInvalidOpenFrameReturnsError(t *testing.T) {
	srv := newWSTestServer(nil)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var evt models.Event
	if err := json.Unmarshal(raw, &evt); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	if evt.Kind != models.EventError {
		t.Fatalf("expected error event, got %s", evt.Kind)
	}
}
