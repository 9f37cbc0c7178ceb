package models

import (
	"encoding/json"
	"testing"
)

func TestActionPayloadRoundTrip(t *testing.T) {
	action := ActionPayload{UseTool: &UseToolAction{Tool: "add", Args: json.RawMessage(`{"a":1,"b":2}`)}}
	raw, err := json.Marshal(action)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded ActionPayload
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.UseTool == nil || decoded.UseTool.Tool != "add" {
		t.Fatalf("unexpected decoded action: %+v", decoded)
	}
	if decoded.FetchTool != nil || decoded.CreateTool != nil {
		t.Fatalf("expected only use_tool populated, got %+v", decoded)
	}
}

func TestEventKindsAreDistinct(t *testing.T) {
	kinds := []EventKind{EventStart, EventIteration, EventThinking, EventState, EventAction, EventResult, EventFinal, EventTimeout, EventError}
	seen := make(map[EventKind]bool, len(kinds))
	for _, k := range kinds {
		if seen[k] {
			t.Fatalf("duplicate event kind: %s", k)
		}
		seen[k] = true
	}
}
