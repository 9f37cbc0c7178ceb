package orchestrator

import (
	"context"

	"github.com/haasonsaas/toolmind/pkg/models"
)

// minEventBuffer is the minimum bounded buffer size spec.md §4.5 requires
// between AG and a streaming consumer.
const minEventBuffer = 64

// bufferedSink is an EventSink backed by a bounded channel. Once the
// buffer fills, Emit blocks the agent goroutine until the consumer drains
// it or the event's context is cancelled — the "bounded buffer, then block
// AG" backpressure policy from spec.md §4.5. AG's t_max keeps counting
// while blocked, since the context carrying the deadline is what unblocks
// Emit on cancellation, not a separate timer.
type bufferedSink struct {
	ch chan models.Event
}

func newBufferedSink(size int) *bufferedSink {
	if size < minEventBuffer {
		size = minEventBuffer
	}
	return &bufferedSink{ch: make(chan models.Event, size)}
}

func (s *bufferedSink) Emit(ctx context.Context, evt models.Event) {
	select {
	case s.ch <- evt:
	case <-ctx.Done():
	}
}

// close signals no further events will arrive; callers must stop calling
// Emit before calling close.
func (s *bufferedSink) close() {
	close(s.ch)
}
