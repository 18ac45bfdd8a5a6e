package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestProcess_Ordered(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	out, err := Process(context.Background(), items, 3, func(ctx context.Context, job Job[int]) (int, error) {
		return job.Data * 10, nil
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, v := range out {
		if v != items[i]*10 {
			t.Errorf("out[%d] = %d, want %d", i, v, items[i]*10)
		}
	}
}

func TestProcess_Empty(t *testing.T) {
	out, err := Process(context.Background(), []string{}, 2, func(ctx context.Context, job Job[string]) (string, error) {
		t.Error("process should not be called")
		return "", nil
	}, nil)
	if out != nil || err != nil {
		t.Errorf("got %v, %v", out, err)
	}
}

func TestProcess_ReturnsFailure(t *testing.T) {
	boom := errors.New("boom")
	_, err := Process(context.Background(), []int{0, 1, 2}, 1, func(ctx context.Context, job Job[int]) (int, error) {
		if job.Index == 1 {
			return 0, boom
		}
		return job.Data, nil
	}, nil)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
}

func TestProcess_FailureStopsQueuedJobs(t *testing.T) {
	boom := errors.New("boom")
	var calls int32
	_, err := Process(context.Background(), []int{0, 1, 2, 3}, 1, func(ctx context.Context, job Job[int]) (int, error) {
		atomic.AddInt32(&calls, 1)
		if job.Index == 0 {
			return 0, boom
		}
		return job.Data, nil
	}, nil)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("process called %d times after the first failure, want 1", n)
	}
}

func TestPool_Cancel(t *testing.T) {
	pool := NewPool[int, int](context.Background(), PoolOptions{Workers: 1, BufferSize: 2}, func(ctx context.Context, job Job[int]) (int, error) {
		return job.Data, nil
	})
	pool.Cancel()
	results := pool.Run([]Job[int]{{Index: 0, Data: 1}, {Index: 1, Data: 2}})
	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("results[%d].Err = %v, want context.Canceled", i, r.Err)
		}
	}
}

func TestProcessWithErrors_CollectsAll(t *testing.T) {
	var progressCalls int32
	out, errs := ProcessWithErrors(context.Background(), []string{"a", "b", "c"}, 2, func(ctx context.Context, job Job[string]) (string, error) {
		if job.Data == "b" {
			return "", errors.New("bad input")
		}
		return job.Data + "!", nil
	}, func(completed, total int) {
		atomic.AddInt32(&progressCalls, 1)
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
	})

	if out[0] != "a!" || out[2] != "c!" {
		t.Errorf("out = %v", out)
	}
	if errs[0] != nil || errs[1] == nil || errs[2] != nil {
		t.Errorf("errs = %v", errs)
	}
	if atomic.LoadInt32(&progressCalls) != 3 {
		t.Errorf("progress calls = %d, want 3", progressCalls)
	}
}

func TestProcessWithErrors_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, errs := ProcessWithErrors(ctx, []int{1, 2}, 2, func(ctx context.Context, job Job[int]) (int, error) {
		return job.Data, nil
	}, nil)
	for i, err := range errs {
		if !errors.Is(err, context.Canceled) {
			t.Errorf("errs[%d] = %v, want context.Canceled", i, err)
		}
	}
}
