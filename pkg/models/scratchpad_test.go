package models

import "testing"

func TestAddCandidatesKeepsHighestScore(t *testing.T) {
	s := &Scratchpad{}
	s.AddCandidates([]CandidateTool{{Name: "add", Score: 0.4}})
	s.AddCandidates([]CandidateTool{{Name: "add", Score: 0.8}, {Name: "sub", Score: 0.5}})

	if len(s.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(s.Candidates))
	}
	for _, c := range s.Candidates {
		if c.Name == "add" && c.Score != 0.8 {
			t.Fatalf("expected add score to be updated to 0.8, got %v", c.Score)
		}
	}
}

func TestAddIterationTracksFailure(t *testing.T) {
	s := &Scratchpad{}
	s.AddIteration(IterationRecord{Number: 1, State: "respond"})
	if s.AnyIterationFailed {
		t.Fatalf("expected no failure yet")
	}
	s.AddIteration(IterationRecord{Number: 2, State: "use_tool", Failed: true})
	if !s.AnyIterationFailed {
		t.Fatalf("expected AnyIterationFailed to be true")
	}
	if s.IterationCount() != 2 {
		t.Fatalf("expected 2 iterations, got %d", s.IterationCount())
	}
}
