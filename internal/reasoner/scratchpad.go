package reasoner

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/toolmind/pkg/models"
)

// iterationRecord is one {state, reasoning, action, result} tuple from a
// completed iteration, kept so later prompts can enumerate prior work per
// spec.md §4.4 step 1.
type iterationRecord struct {
	State     State
	Reasoning string
	Action    map[string]any
	Result    string
}

// candidateTool is a brief catalog entry for a tool AG has seen via
// fetch_tool, carried forward so later prompts don't need to re-search.
type candidateTool struct {
	Name        string
	Description string
}

// scratchPad accumulates one question's working state across iterations:
// history for prompt-building, and the flags the search-before-create /
// reuse-before-generate policies key off of.
type scratchPad struct {
	question   string
	history    []models.Event
	iterations []iterationRecord
	candidates []candidateTool

	// fetchedZeroAboveThreshold is set once any fetch_tool call in this
	// question returns no hits scoring above the configured threshold.
	fetchedZeroAboveThreshold bool
	// noCompositionPossible is set once analyze_tools_for_composite
	// explicitly reports that no composition of existing tools applies.
	noCompositionPossible bool
	// anyFailure downgrades the final confidence when any iteration ended
	// in a non-Ok result.
	anyFailure bool
}

func newScratchPad(question string, history []models.Event) *scratchPad {
	return &scratchPad{question: question, history: history}
}

// canCreate implements the search-before-create policy: create_tool may
// only be entered once reuse has been shown not to apply.
func (s *scratchPad) canCreate() bool {
	return s.fetchedZeroAboveThreshold || s.noCompositionPossible
}

func (s *scratchPad) recordFetch(hits []models.SearchHit, threshold float64) {
	above := false
	for _, hit := range hits {
		if hit.Score >= threshold {
			above = true
			if hit.Tool != nil {
				s.candidates = append(s.candidates, candidateTool{Name: hit.Tool.Name, Description: hit.Tool.Description})
			}
		}
	}
	if !above {
		s.fetchedZeroAboveThreshold = true
	}
}

func (s *scratchPad) recordNoComposition() {
	s.noCompositionPossible = true
}

func (s *scratchPad) recordIteration(rec iterationRecord) {
	s.iterations = append(s.iterations, rec)
}

func (s *scratchPad) recordFailure() {
	s.anyFailure = true
}

// confidenceCap returns the highest confidence level the policies still
// permit for this question's final answer.
func (s *scratchPad) confidenceCap() models.Confidence {
	if s.anyFailure {
		return models.ConfidenceMedium
	}
	return models.ConfidenceHigh
}

// prompt renders the oracle prompt for the next decision: the question,
// prior turn history, enumerated prior iterations, and a brief tool
// catalog, per spec.md §4.4 step 1.
func (s *scratchPad) prompt(current State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n", s.question)
	fmt.Fprintf(&b, "Current state: %s\n", current)

	if len(s.history) > 0 {
		b.WriteString("\nConversation history:\n")
		for _, evt := range s.history {
			fmt.Fprintf(&b, "- %s: %s\n", evt.Kind, string(evt.Payload))
		}
	}

	if len(s.iterations) > 0 {
		b.WriteString("\nPrior iterations:\n")
		for i, it := range s.iterations {
			fmt.Fprintf(&b, "%d. state=%s reasoning=%q action=%v result=%s\n", i+1, it.State, it.Reasoning, it.Action, it.Result)
		}
	}

	if len(s.candidates) > 0 {
		b.WriteString("\nCandidate tools discovered so far:\n")
		for _, c := range s.candidates {
			fmt.Fprintf(&b, "- %s: %s\n", c.Name, c.Description)
		}
	}

	return b.String()
}
