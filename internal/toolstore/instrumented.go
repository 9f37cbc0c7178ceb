package toolstore

import (
	"context"
	"time"

	"github.com/haasonsaas/toolmind/internal/observability"
	"github.com/haasonsaas/toolmind/pkg/models"
)

// Instrumented wraps a Store with Prometheus metrics and OpenTelemetry
// tracing, the way nexus's gateway wraps its storage and LLM calls.
type Instrumented struct {
	Store
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewInstrumented wraps store with metrics and tracing. Either dependency
// may be nil, in which case that concern is skipped.
func NewInstrumented(store Store, metrics *observability.Metrics, tracer *observability.Tracer) *Instrumented {
	return &Instrumented{Store: store, metrics: metrics, tracer: tracer}
}

func (i *Instrumented) Search(ctx context.Context, query string, opts SearchOptions) ([]models.SearchHit, error) {
	if i.tracer != nil {
		var span interface{ End() }
		ctx, span = i.tracer.TraceToolSearch(ctx, query)
		defer span.End()
	}
	start := time.Now()
	hits, err := i.Store.Search(ctx, query, opts)
	if i.metrics != nil {
		outcome := "hit"
		if err != nil {
			outcome = "error"
		} else if len(hits) == 0 {
			outcome = "miss"
		}
		i.metrics.RecordSearch(outcome, time.Since(start).Seconds())
	}
	return hits, err
}

func (i *Instrumented) ReportBug(ctx context.Context, id string, errorKind, message, stack string) (*models.Tool, error) {
	tool, err := i.Store.ReportBug(ctx, id, errorKind, message, stack)
	if i.metrics != nil && err == nil {
		i.metrics.RecordBugReport(tool.Name)
	}
	return tool, err
}

func (i *Instrumented) Create(ctx context.Context, spec models.ToolSpec) (*models.Tool, error) {
	tool, err := i.Store.Create(ctx, spec)
	if i.metrics != nil {
		i.metrics.RecordMutation("create", err)
	}
	return tool, err
}

func (i *Instrumented) Update(ctx context.Context, id string, patch models.ToolPatch) (*models.Tool, error) {
	tool, err := i.Store.Update(ctx, id, patch)
	if i.metrics != nil {
		i.metrics.RecordMutation("update", err)
	}
	return tool, err
}

func (i *Instrumented) Delete(ctx context.Context, id string) error {
	err := i.Store.Delete(ctx, id)
	if i.metrics != nil {
		i.metrics.RecordMutation("delete", err)
	}
	return err
}

func (i *Instrumented) Deactivate(ctx context.Context, id string) (*models.Tool, error) {
	tool, err := i.Store.Deactivate(ctx, id)
	if i.metrics != nil {
		i.metrics.RecordMutation("deactivate", err)
	}
	return tool, err
}

func (i *Instrumented) ClearBugs(ctx context.Context, id string) (*models.Tool, error) {
	tool, err := i.Store.ClearBugs(ctx, id)
	if i.metrics != nil {
		i.metrics.RecordMutation("clear_bugs", err)
	}
	return tool, err
}

func (i *Instrumented) CompactBugLog(ctx context.Context, id string, olderThan time.Time) (*models.Tool, error) {
	tool, err := i.Store.CompactBugLog(ctx, id, olderThan)
	if i.metrics != nil {
		i.metrics.RecordMutation("compact_bug_log", err)
	}
	return tool, err
}

var _ Store = (*Instrumented)(nil)
