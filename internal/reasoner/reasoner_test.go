package reasoner

import (
	"context"
	"errors"
	"testing"

	"github.com/haasonsaas/toolmind/internal/sandbox"
	"github.com/haasonsaas/toolmind/internal/toolstore"
	"github.com/haasonsaas/toolmind/pkg/models"
)

// fakeOracle scripts a sequence of decisions, keyed by call order, so tests
// can drive the FSM deterministically without a real LLM.
type fakeOracle struct {
	decisions []map[string]any
	calls     int
}

func (f *fakeOracle) Decide(_ context.Context, _ string, _ []byte) (map[string]any, error) {
	if f.calls >= len(f.decisions) {
		return nil, errors.New("fakeOracle: ran out of scripted decisions")
	}
	d := f.decisions[f.calls]
	f.calls++
	return d, nil
}

// fakeExecutor scripts sandbox.Result values regardless of which tool/args
// are passed, sufficient for exercising the FSM's use_tool branch.
type fakeExecutor struct {
	result sandbox.Result
}

func (f *fakeExecutor) Execute(context.Context, *models.Tool, map[string]any) sandbox.Result {
	return f.result
}

func collectEvents(t *testing.T, a *Agent, question string) []models.Event {
	t.Helper()
	var events []models.Event
	sink := collectorSink(func(evt models.Event) { events = append(events, evt) })
	a.Ask(context.Background(), question, nil, sink)
	return events
}

func TestAskRespondDirectlyExitsResponse(t *testing.T) {
	or := &fakeOracle{decisions: []map[string]any{
		{"state": "exit_response", "reasoning": "no tool needed", "final_answer": "4", "confidence": "high"},
	}}
	ts := toolstore.NewMemStore()
	a := New(ts, &fakeExecutor{}, or, DefaultConfig())

	events := collectEvents(t, a, "what is 2+2?")
	last := events[len(events)-1]
	if last.Kind != models.EventFinal {
		t.Fatalf("expected final event, got %s", last.Kind)
	}
}

func TestAskFetchThenUseTool(t *testing.T) {
	ts := toolstore.NewMemStore()
	tool, err := ts.Create(context.Background(), models.ToolSpec{
		Name:        "add_numbers",
		Description: "adds two numbers",
		Parameters:  []models.Parameter{{Name: "a", Type: models.ParamNumber, Required: true}, {Name: "b", Type: models.ParamNumber, Required: true}},
		Code:        "def run(a, b):\n    return a + b\n",
	})
	if err != nil {
		t.Fatalf("failed to seed tool: %v", err)
	}

	or := &fakeOracle{decisions: []map[string]any{
		{"state": "fetch_tool", "reasoning": "search for an adder", "action": map[string]any{"query": "add numbers"}},
		{"state": "use_tool", "reasoning": "use the adder", "action": map[string]any{"tool": tool.ID, "args": map[string]any{"a": float64(2), "b": float64(2)}}},
		{"state": "exit_response", "reasoning": "got the result", "final_answer": "4", "confidence": "high"},
	}}
	ex := &fakeExecutor{result: sandbox.Result{Value: float64(4)}}
	a := New(ts, ex, or, DefaultConfig())

	events := collectEvents(t, a, "what is 2+2?")

	var sawUseTool, sawFinal bool
	for _, evt := range events {
		if evt.Kind == models.EventState && string(evt.Payload) != "" {
			sawUseTool = sawUseTool || containsState(evt, StateUseTool)
		}
		if evt.Kind == models.EventFinal {
			sawFinal = true
		}
	}
	if !sawUseTool {
		t.Fatalf("expected a use_tool state event among: %+v", events)
	}
	if !sawFinal {
		t.Fatalf("expected a final event")
	}
}

func containsState(evt models.Event, s State) bool {
	return string(evt.Payload) != "" && (stringContains(string(evt.Payload), string(s)))
}

func stringContains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func TestAskCreateToolWithoutSearchIsRejected(t *testing.T) {
	ts := toolstore.NewMemStore()
	or := &fakeOracle{decisions: []map[string]any{
		// from respond, create_tool is table-allowed, but search-before-create
		// requires a prior zero-hit fetch_tool or an explicit "no composition"
		// analysis; neither has happened, so this must be rejected.
		{"state": "create_tool", "reasoning": "just make one", "action": map[string]any{"spec": map[string]any{"name": "x", "description": "d", "code": "def run():\n    return 1\n"}}},
	}}
	a := New(ts, &fakeExecutor{}, or, DefaultConfig())

	events := collectEvents(t, a, "do something obscure")
	last := events[len(events)-1]
	if last.Kind != models.EventError {
		t.Fatalf("expected error event for search-before-create violation, got %s", last.Kind)
	}
}

func TestAskIterationCapForcesExit(t *testing.T) {
	ts := toolstore.NewMemStore()
	// Alternate between two table-legal states (fetch_tool <-> analyze)
	// so the FSM never hits an invalid-transition error before the
	// iteration cap kicks in.
	decisions := make([]map[string]any, 0)
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			decisions = append(decisions, map[string]any{"state": "fetch_tool", "reasoning": "keep searching", "action": map[string]any{"query": "nothing matches"}})
		} else {
			decisions = append(decisions, map[string]any{"state": "analyze_tools_for_composite", "reasoning": "check composability", "action": map[string]any{"candidates": []any{}}})
		}
	}
	or := &fakeOracle{decisions: decisions}
	cfg := DefaultConfig()
	cfg.IterMax = 2
	a := New(ts, &fakeExecutor{}, or, cfg)

	events := collectEvents(t, a, "an unanswerable question")
	last := events[len(events)-1]
	if last.Kind != models.EventFinal {
		t.Fatalf("expected a forced final event at the iteration cap, got %s", last.Kind)
	}
}

func TestAskSyncReturnsFinalPayload(t *testing.T) {
	ts := toolstore.NewMemStore()
	or := &fakeOracle{decisions: []map[string]any{
		{"state": "exit_response", "reasoning": "direct answer", "final_answer": "42", "confidence": "high"},
	}}
	a := New(ts, &fakeExecutor{}, or, DefaultConfig())

	evt, err := a.AskSync(context.Background(), "what is the answer?", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.Kind != models.EventFinal {
		t.Fatalf("expected final event, got %s", evt.Kind)
	}
}
