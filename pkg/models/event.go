package models

import "encoding/json"

// EventKind is the kind of a streamed reasoning event.
type EventKind string

// Event kinds emitted on a question's ordered stream, per spec §6.
const (
	EventStart     EventKind = "start"
	EventIteration EventKind = "iteration"
	EventThinking  EventKind = "thinking"
	EventState     EventKind = "state"
	EventAction    EventKind = "action"
	EventResult    EventKind = "result"
	EventFinal     EventKind = "final"
	EventTimeout   EventKind = "timeout"
	EventError     EventKind = "error"
)

// Event is one entry on a question's ordered event stream. IterationNumber
// is unset (zero) only for the start event.
type Event struct {
	Kind            EventKind       `json:"kind"`
	IterationNumber int             `json:"iteration_number,omitempty"`
	Payload         json.RawMessage `json:"payload"`
}

// StartPayload is the payload of the start event.
type StartPayload struct {
	Question string `json:"question"`
}

// IterationPayload is the payload of the iteration event.
type IterationPayload struct {
	Number int `json:"number"`
}

// ThinkingPayload is the payload of the thinking event: a purely
// informational, human-readable hint.
type ThinkingPayload struct {
	Message string `json:"message"`
}

// StatePayload is the payload of the state event.
type StatePayload struct {
	State     string `json:"state"`
	Reasoning string `json:"reasoning"`
}

// ActionPayload is the payload of the action event. Exactly one of the
// nested action shapes is populated depending on the state that produced it.
type ActionPayload struct {
	FetchTool                *FetchToolAction                `json:"fetch_tool,omitempty"`
	UseTool                   *UseToolAction                  `json:"use_tool,omitempty"`
	AnalyzeToolsForComposite  *AnalyzeToolsForCompositeAction `json:"analyze_tools_for_composite,omitempty"`
	CreateTool                *CreateToolAction               `json:"create_tool,omitempty"`
}

// FetchToolAction is the action payload for the fetch_tool state.
type FetchToolAction struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// UseToolAction is the action payload for the use_tool state.
type UseToolAction struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// AnalyzeToolsForCompositeAction is the action payload for the
// analyze_tools_for_composite state.
type AnalyzeToolsForCompositeAction struct {
	Candidates []string `json:"candidates"`
}

// CreateToolAction is the action payload for the create_tool state.
type CreateToolAction struct {
	Spec ToolSpecPayload `json:"spec"`
}

// ToolSpecPayload is the wire shape of a tool specification proposed by the
// oracle during create_tool.
type ToolSpecPayload struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category,omitempty"`
	Tags        []string    `json:"tags,omitempty"`
	Parameters  []Parameter `json:"parameters"`
	Code        string      `json:"code"`
}

// ResultPayload is the payload of the result event.
type ResultPayload struct {
	State  string          `json:"state"`
	Result json.RawMessage `json:"result"`
}

// Confidence is the agent's self-reported confidence in its final answer.
type Confidence string

// Confidence levels, downgraded whenever any iteration ended in a non-Ok
// result.
const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// FinalPayload is the payload of the terminal final event.
type FinalPayload struct {
	Answer     string     `json:"answer"`
	Confidence Confidence `json:"confidence"`
	Iterations int        `json:"iterations"`
}

// TimeoutPayload is the payload of the terminal timeout event.
type TimeoutPayload struct {
	Message    string `json:"message"`
	Iterations int    `json:"iterations"`
}

// ErrorPayload is the payload of the terminal error event.
type ErrorPayload struct {
	Message string `json:"message"`
	Where   string `json:"where"`
}
