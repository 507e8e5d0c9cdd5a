package thumbnail

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many decode jobs run at once and how long a caller waits
// for one, including the time spent queued for a slot.
type Pool struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

func NewPool(workers int, timeout time.Duration) *Pool {
	if workers <= 0 {
		workers = 2
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers)), timeout: timeout}
}

// Do runs fn on a pool slot. When the deadline passes first, Do returns
// context.DeadlineExceeded immediately; fn keeps its slot until it observes
// the canceled context and returns.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)

	if err := p.sem.Acquire(ctx, 1); err != nil {
		cancel()
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		defer cancel()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// cancel also fires once fn has finished
		select {
		case err := <-done:
			return err
		default:
			return ctx.Err()
		}
	}
}
