package models

import "encoding/json"

// HistoryTurn is one prior role/content pair supplied by the caller as
// conversation history.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// IterationRecord captures one pass of the reasoning FSM: the oracle's
// chosen state and reasoning, the side-effecting action it took (if any),
// and the observed result (if any).
type IterationRecord struct {
	Number    int             `json:"number"`
	State     string          `json:"state"`
	Reasoning string          `json:"reasoning"`
	Action    *ActionPayload  `json:"action,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Failed    bool            `json:"failed,omitempty"`
}

// CandidateTool is a tool surfaced by a prior fetch_tool call, kept in the
// scratchpad so later prompts can reference it without re-searching.
type CandidateTool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

// Scratchpad is the transient per-question state threaded through the
// reasoning agent's iterations.
type Scratchpad struct {
	Question   string
	History    []HistoryTurn
	Iterations []IterationRecord
	Candidates []CandidateTool

	// SearchedWithNoResults is true once any fetch_tool in this question
	// returned zero results above threshold, licensing create_tool under
	// the search-before-create policy.
	SearchedWithNoResults bool

	// CompositionExhausted is true once analyze_tools_for_composite has
	// reported "no composition possible", also licensing create_tool.
	CompositionExhausted bool

	// ReuseAvailable is true when the most recent fetch_tool returned at
	// least one candidate above threshold, forcing the next state to
	// use_tool or analyze_tools_for_composite under reuse-before-generate.
	ReuseAvailable bool

	// UsedSinceReuseAvailable tracks whether a use_tool or
	// analyze_tools_for_composite has happened since ReuseAvailable was
	// last set, so create_tool can be validated against it.
	UsedSinceReuseAvailable bool

	AnyIterationFailed bool
}

// AddIteration appends a completed iteration record to the scratchpad.
func (s *Scratchpad) AddIteration(rec IterationRecord) {
	s.Iterations = append(s.Iterations, rec)
	if rec.Failed {
		s.AnyIterationFailed = true
	}
}

// AddCandidates merges newly discovered candidate tools into the scratchpad,
// keeping the highest score seen for each name.
func (s *Scratchpad) AddCandidates(hits []CandidateTool) {
	byName := make(map[string]int, len(s.Candidates))
	for i, c := range s.Candidates {
		byName[c.Name] = i
	}
	for _, hit := range hits {
		if idx, ok := byName[hit.Name]; ok {
			if hit.Score > s.Candidates[idx].Score {
				s.Candidates[idx] = hit
			}
			continue
		}
		byName[hit.Name] = len(s.Candidates)
		s.Candidates = append(s.Candidates, hit)
	}
}

// IterationCount returns the number of completed iterations.
func (s *Scratchpad) IterationCount() int {
	return len(s.Iterations)
}
