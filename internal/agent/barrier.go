package agent

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/danmuck/bondx/internal/logs"
)

var ErrWaitTimeout = errors.New("agent: shutdown wait timed out")

// Barrier is a one-shot shutdown signal. Any number of goroutines may
// signal it; only the first signal counts and records its cause.
type Barrier struct {
	once  sync.Once
	done  chan struct{}
	cause error
}

func NewBarrier() *Barrier {
	return &Barrier{done: make(chan struct{})}
}

// Signal trips the barrier cleanly. It reports whether this call tripped it.
func (b *Barrier) Signal() bool {
	return b.SignalErr(nil)
}

// SignalErr trips the barrier with a cause.
func (b *Barrier) SignalErr(err error) bool {
	fired := false
	b.once.Do(func() {
		b.cause = err
		close(b.done)
		fired = true
	})
	return fired
}

func (b *Barrier) Done() <-chan struct{} {
	return b.done
}

func (b *Barrier) Signalled() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

// Err is the cause recorded by the first signal, nil for a clean one.
func (b *Barrier) Err() error {
	select {
	case <-b.done:
		return b.cause
	default:
		return nil
	}
}

// Wait blocks until the barrier trips or ctx ends.
func (b *Barrier) Wait(ctx context.Context) error {
	select {
	case <-b.done:
		return b.cause
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitTimeout is Wait bounded by d. A non-positive d waits without bound.
func (b *Barrier) WaitTimeout(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return b.Wait(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	err := b.Wait(tctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return ErrWaitTimeout
	}
	return err
}

// NotifyOnSignals trips the barrier on the first of sigs (SIGINT and SIGTERM
// when none are given). The returned stop releases the signal handler.
func (b *Barrier) NotifyOnSignals(ctx context.Context, sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	quit := make(chan struct{})
	var quitOnce sync.Once

	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			logs.Infof("agent.Barrier signal=%s", sig)
			b.Signal()
		case <-ctx.Done():
		case <-quit:
		case <-b.done:
		}
	}()
	return func() {
		quitOnce.Do(func() { close(quit) })
	}
}
