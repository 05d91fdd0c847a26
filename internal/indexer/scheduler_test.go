package indexer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"marketScope/internal/model"
)

type countingPasser struct {
	calls  atomic.Int32
	fail   bool
	cancel context.CancelFunc
	stopAt int32
}

func (p *countingPasser) RunPass(context.Context) (model.PassSummary, error) {
	n := p.calls.Add(1)
	if n >= p.stopAt {
		p.cancel()
	}
	if p.fail {
		return model.PassSummary{}, errors.New("rpc down")
	}
	return model.PassSummary{Status: model.PassIndexed}, nil
}

func TestSchedulerRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	passer := &countingPasser{fail: true, cancel: cancel, stopAt: 3}
	err := NewScheduler(passer, 5*time.Millisecond, nil).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := passer.calls.Load(); got < 3 {
		t.Fatalf("failed passes must be retried on the next tick, got %d calls", got)
	}
}
