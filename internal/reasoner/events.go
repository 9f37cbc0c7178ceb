package reasoner

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/toolmind/pkg/models"
)

// EventSink receives AG's ordered event trace. The Streaming Orchestrator
// (SO) implements this over a bounded channel; tests and ask_sync collect
// it directly.
type EventSink interface {
	Emit(ctx context.Context, evt models.Event)
}

// NopSink discards every event, grounded on the teacher's agent.NopSink
// used when no sink is configured.
type NopSink struct{}

func (NopSink) Emit(context.Context, models.Event) {}

// emitter builds and dispatches models.Event values, tracking the current
// iteration number the way the teacher's agent.EventEmitter tracks turn and
// iteration indices.
type emitter struct {
	sink EventSink
	iter int
}

func newEmitter(sink EventSink) *emitter {
	if sink == nil {
		sink = NopSink{}
	}
	return &emitter{sink: sink}
}

func (e *emitter) setIteration(n int) { e.iter = n }

func (e *emitter) emit(ctx context.Context, kind models.EventKind, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage(`{}`)
	}
	e.sink.Emit(ctx, models.Event{
		Kind:            kind,
		IterationNumber: e.iter,
		Payload:         raw,
	})
}

func (e *emitter) start(ctx context.Context, question string) {
	e.emit(ctx, models.EventStart, models.StartPayload{Question: question})
}

func (e *emitter) iteration(ctx context.Context, n int) {
	e.setIteration(n)
	e.emit(ctx, models.EventIteration, models.IterationPayload{Number: n})
}

func (e *emitter) thinking(ctx context.Context, message string) {
	e.emit(ctx, models.EventThinking, models.ThinkingPayload{Message: message})
}

func (e *emitter) state(ctx context.Context, state State, reasoning string) {
	e.emit(ctx, models.EventState, models.StatePayload{State: string(state), Reasoning: reasoning})
}

func (e *emitter) action(ctx context.Context, payload models.ActionPayload) {
	e.emit(ctx, models.EventAction, payload)
}

func (e *emitter) result(ctx context.Context, state State, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		raw = json.RawMessage(`null`)
	}
	e.emit(ctx, models.EventResult, models.ResultPayload{State: string(state), Result: raw})
}

func (e *emitter) final(ctx context.Context, answer string, confidence models.Confidence, iterations int) {
	e.emit(ctx, models.EventFinal, models.FinalPayload{Answer: answer, Confidence: confidence, Iterations: iterations})
}

func (e *emitter) timeout(ctx context.Context, message string, iterations int) {
	e.emit(ctx, models.EventTimeout, models.TimeoutPayload{Message: message, Iterations: iterations})
}

func (e *emitter) error(ctx context.Context, message, where string) {
	e.emit(ctx, models.EventError, models.ErrorPayload{Message: message, Where: where})
}
