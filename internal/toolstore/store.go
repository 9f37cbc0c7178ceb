package toolstore

import (
	"context"
	"time"

	"github.com/haasonsaas/toolmind/pkg/models"
)

// ListOptions filters and orders Store.List. Results are ordered by
// updated_at descending, ties broken by name ascending.
type ListOptions struct {
	ActiveOnly    bool
	ExcludeBugged bool
	Category      string
}

// SearchOptions parameterizes Store.Search. Zero values trigger the
// configured defaults (see Config).
type SearchOptions struct {
	Limit         int
	Threshold     float64
	ExcludeBugged bool
}

// Store is the durable catalog of tools: CRUD, bug reporting, and semantic
// search, per the Tool Store contract.
type Store interface {
	List(ctx context.Context, opts ListOptions) ([]*models.Tool, error)
	GetByID(ctx context.Context, id string) (*models.Tool, error)
	GetByName(ctx context.Context, name string) (*models.Tool, error)
	Create(ctx context.Context, spec models.ToolSpec) (*models.Tool, error)
	Update(ctx context.Context, id string, patch models.ToolPatch) (*models.Tool, error)
	Delete(ctx context.Context, id string) error

	// ReportBug appends a bug entry, increments bug_count, sets
	// last_error_at, and flips is_bugged when the configured threshold is
	// reached or exceeded.
	ReportBug(ctx context.Context, id string, errorKind, message, stack string) (*models.Tool, error)
	ClearBugs(ctx context.Context, id string) (*models.Tool, error)
	Deactivate(ctx context.Context, id string) (*models.Tool, error)

	// CompactBugLog drops bug_log entries older than olderThan for a tool
	// that is not currently bugged, leaving bug_count/is_bugged untouched.
	// It is a no-op on a bugged tool: its log is left intact until
	// ClearBugs runs. Used by the periodic compaction sweep.
	CompactBugLog(ctx context.Context, id string, olderThan time.Time) (*models.Tool, error)

	// RecordExecution increments execution_count and last_executed_at.
	// Called exactly once per accounted execution, success or failure.
	RecordExecution(ctx context.Context, id string) error

	Search(ctx context.Context, query string, opts SearchOptions) ([]models.SearchHit, error)
}

// Closer is implemented by Store backends that hold external resources
// (a *sql.DB connection pool).
type Closer interface {
	Close() error
}

// SearchTunable is implemented by Store backends whose search weighting can
// be swapped at runtime. Both MemStore and SQLStore implement it; the
// config hot-reload watcher type-asserts a Store against this interface to
// apply a changed SEARCH_WEIGHTS/SYNONYMS without a process restart.
type SearchTunable interface {
	SetSearchWeights(w Weights)
	SetSynonyms(syn map[string][]string)
}
