package sandbox

import (
	"context"
	"testing"
)

func TestNoopArchiver_AlwaysErrors(t *testing.T) {
	a := noopArchiver{}
	if _, err := a.Archive(context.Background(), "t1", "stack text"); err == nil {
		t.Error("expected noopArchiver to return an error")
	}
}
