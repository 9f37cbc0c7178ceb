package toolstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/haasonsaas/toolmind/pkg/models"
)

func newTestSpec(name string) models.ToolSpec {
	return models.ToolSpec{
		Name:        name,
		Description: "adds two numbers",
		Category:    "math",
		Tags:        []string{"arithmetic"},
		Parameters: []models.Parameter{
			{Name: "a", Type: models.ParamNumber, Required: true},
			{Name: "b", Type: models.ParamNumber, Required: true},
		},
		Code: "def run(**kwargs):\n    return kwargs['a'] + kwargs['b']\n",
	}
}

func TestMemStoreCreateGetLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	tool, err := store.Create(ctx, newTestSpec("add"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if tool.ID == "" {
		t.Fatalf("expected generated id")
	}
	if !tool.IsActive {
		t.Fatalf("expected tool to default active")
	}

	byID, err := store.GetByID(ctx, tool.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if byID.Name != "add" {
		t.Fatalf("GetByID() name = %q", byID.Name)
	}

	byName, err := store.GetByName(ctx, "add")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if byName.ID != tool.ID {
		t.Fatalf("GetByName() id mismatch")
	}

	if _, err := store.Create(ctx, newTestSpec("add")); !errors.Is(err, ErrNameConflict) {
		t.Fatalf("expected ErrNameConflict, got %v", err)
	}
}

func TestMemStoreUpdateRejectsNameCollision(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	a, _ := store.Create(ctx, newTestSpec("add"))
	_, _ = store.Create(ctx, newTestSpec("subtract"))

	newName := "subtract"
	_, err := store.Update(ctx, a.ID, models.ToolPatch{Name: &newName})
	if !errors.Is(err, ErrNameConflict) {
		t.Fatalf("expected ErrNameConflict, got %v", err)
	}
}

func TestMemStoreBugReportingFlipsIsBugged(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(WithBugThreshold(3))
	tool, _ := store.Create(ctx, newTestSpec("add"))

	for i := 0; i < 2; i++ {
		updated, err := store.ReportBug(ctx, tool.ID, "RuntimeError", "boom", "")
		if err != nil {
			t.Fatalf("ReportBug() error = %v", err)
		}
		if updated.IsBugged {
			t.Fatalf("expected is_bugged false before threshold, bug_count=%d", updated.BugCount)
		}
	}
	updated, err := store.ReportBug(ctx, tool.ID, "RuntimeError", "boom", "")
	if err != nil {
		t.Fatalf("ReportBug() error = %v", err)
	}
	if !updated.IsBugged {
		t.Fatalf("expected is_bugged true at threshold, bug_count=%d", updated.BugCount)
	}
	if updated.BugCount != 3 {
		t.Fatalf("expected bug_count 3, got %d", updated.BugCount)
	}

	cleared, err := store.ClearBugs(ctx, tool.ID)
	if err != nil {
		t.Fatalf("ClearBugs() error = %v", err)
	}
	if cleared.IsBugged || cleared.BugCount != 0 || len(cleared.BugLog) != 0 {
		t.Fatalf("expected bugs cleared, got %+v", cleared)
	}
}

func TestMemStoreBugLogRingBufferCapsAt32(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(WithBugThreshold(1000))
	tool, _ := store.Create(ctx, newTestSpec("add"))

	var last *models.Tool
	for i := 0; i < 40; i++ {
		updated, err := store.ReportBug(ctx, tool.ID, "RuntimeError", "boom", "")
		if err != nil {
			t.Fatalf("ReportBug() error = %v", err)
		}
		last = updated
	}
	if len(last.BugLog) != models.BugLogCap {
		t.Fatalf("expected bug log capped at %d, got %d", models.BugLogCap, len(last.BugLog))
	}
	if last.BugCount != 40 {
		t.Fatalf("expected bug_count to keep counting past the ring cap, got %d", last.BugCount)
	}
}

func TestMemStoreCompactBugLogDropsOldEntriesOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(WithBugThreshold(1000))
	tool, _ := store.Create(ctx, newTestSpec("add"))

	cutoff := time.Now()
	store.mu.Lock()
	stored := store.tools[tool.ID]
	stored.BugLog = []models.BugEntry{
		{Timestamp: cutoff.Add(-time.Hour), ErrorKind: "RuntimeError", Message: "old"},
		{Timestamp: cutoff.Add(time.Hour), ErrorKind: "RuntimeError", Message: "new"},
	}
	store.mu.Unlock()

	compacted, err := store.CompactBugLog(ctx, tool.ID, cutoff)
	if err != nil {
		t.Fatalf("CompactBugLog() error = %v", err)
	}
	if len(compacted.BugLog) != 1 || compacted.BugLog[0].Message != "new" {
		t.Fatalf("expected only the newer entry to survive, got %+v", compacted.BugLog)
	}
}

func TestMemStoreCompactBugLogSkipsBuggedTools(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore(WithBugThreshold(1))
	tool, _ := store.Create(ctx, newTestSpec("add"))
	if _, err := store.ReportBug(ctx, tool.ID, "RuntimeError", "boom", ""); err != nil {
		t.Fatalf("ReportBug() error = %v", err)
	}

	compacted, err := store.CompactBugLog(ctx, tool.ID, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("CompactBugLog() error = %v", err)
	}
	if len(compacted.BugLog) != 1 {
		t.Fatalf("expected bugged tool's log left untouched, got %d entries", len(compacted.BugLog))
	}
}

func TestMemStoreDeactivateExcludesFromListActiveOnly(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	tool, _ := store.Create(ctx, newTestSpec("add"))
	if _, err := store.Deactivate(ctx, tool.ID); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}

	active, err := store.List(ctx, ListOptions{ActiveOnly: true})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected deactivated tool excluded, got %d", len(active))
	}

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected inactive tool still listed without filter, got %d", len(all))
	}
}

func TestMemStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	tool, _ := store.Create(ctx, newTestSpec("add"))
	if err := store.Delete(ctx, tool.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, tool.ID); err != nil {
		t.Fatalf("second Delete() should also succeed, got %v", err)
	}
}

func TestMemStoreCreateRejectsDuplicateParamNames(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	spec := newTestSpec("add")
	spec.Parameters = []models.Parameter{
		{Name: "a", Type: models.ParamNumber},
		{Name: "a", Type: models.ParamNumber},
	}
	_, err := store.Create(ctx, spec)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestMemStoreCreateRejectsInvalidName(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	for _, name := range []string{"25 * 4", "1-tool", "has space", ""} {
		spec := newTestSpec(name)
		_, err := store.Create(ctx, spec)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Create(%q) expected ValidationError, got %v", name, err)
		}
	}
}

func TestMemStoreUpdateRejectsInvalidName(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	tool, _ := store.Create(ctx, newTestSpec("add"))
	bad := "1-tool"
	_, err := store.Update(ctx, tool.ID, models.ToolPatch{Name: &bad})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Update() expected ValidationError, got %v", err)
	}
}

func TestMemStoreRecordExecutionIncrementsCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	tool, _ := store.Create(ctx, newTestSpec("add"))
	if err := store.RecordExecution(ctx, tool.ID); err != nil {
		t.Fatalf("RecordExecution() error = %v", err)
	}
	got, _ := store.GetByID(ctx, tool.ID)
	if got.ExecutionCount != 1 {
		t.Fatalf("expected execution_count 1, got %d", got.ExecutionCount)
	}
	if got.LastExecutedAt == nil {
		t.Fatalf("expected last_executed_at set")
	}
}
