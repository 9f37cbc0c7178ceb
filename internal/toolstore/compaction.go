package toolstore

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/toolmind/internal/observability"
)

// CompactionJob periodically sweeps every tool's bug_log, dropping entries
// older than retention for tools that are not currently bugged. It keeps
// storage bounded without touching bug_count/is_bugged, which only
// ClearBugs resets.
type CompactionJob struct {
	store     Store
	retention time.Duration
	logger    *observability.Logger
	metrics   *observability.Metrics
	cron      *cron.Cron
}

// NewCompactionJob builds a compaction sweep against store. schedule is a
// standard 5-field cron expression; an empty schedule or non-positive
// retention disables the sweep (Start becomes a no-op).
func NewCompactionJob(store Store, schedule string, retention time.Duration, logger *observability.Logger, metrics *observability.Metrics) (*CompactionJob, error) {
	j := &CompactionJob{store: store, retention: retention, logger: logger, metrics: metrics}
	if schedule == "" || retention <= 0 {
		return j, nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, j.sweep); err != nil {
		return nil, err
	}
	j.cron = c
	return j, nil
}

// Start launches the cron scheduler in the background. It is safe to call
// on a disabled job (no schedule configured).
func (j *CompactionJob) Start() {
	if j.cron != nil {
		j.cron.Start()
	}
}

// Stop halts the scheduler and waits for an in-flight sweep to finish.
func (j *CompactionJob) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

func (j *CompactionJob) sweep() {
	ctx := context.Background()
	tools, err := j.store.List(ctx, ListOptions{})
	if err != nil {
		if j.logger != nil {
			j.logger.Error(ctx, "bug log compaction: list tools failed", "error", err)
		}
		return
	}
	cutoff := time.Now().Add(-j.retention)
	var compacted int
	for _, t := range tools {
		if t.IsBugged || len(t.BugLog) == 0 {
			continue
		}
		before := len(t.BugLog)
		updated, err := j.store.CompactBugLog(ctx, t.ID, cutoff)
		if err != nil {
			if j.logger != nil {
				j.logger.Error(ctx, "bug log compaction: compact failed", "tool_id", t.ID, "error", err)
			}
			continue
		}
		if len(updated.BugLog) != before {
			compacted++
			if j.metrics != nil {
				j.metrics.RecordMutation("compact_bug_log_sweep", nil)
			}
		}
	}
	if j.logger != nil {
		j.logger.Info(ctx, "bug log compaction sweep complete", "tools_compacted", compacted, "tools_scanned", len(tools))
	}
}
