package agent

import (
	"sync"
	"sync/atomic"

	"github.com/danmuck/bondx/internal/logs"
)

// Runner drives one Agent on its own goroutine until Close or the first
// DoWork error.
type Runner struct {
	agent   Agent
	idle    IdleStrategy
	onError ErrorHandler

	started   atomic.Bool
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
	err       error
}

func NewRunner(a Agent, idle IdleStrategy, onError ErrorHandler) *Runner {
	if idle == nil {
		idle = BusySpinIdle{}
	}
	return &Runner{
		agent:   a,
		idle:    idle,
		onError: onError,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the duty-cycle goroutine. Later calls do nothing.
func (r *Runner) Start() {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	logs.Debugf("agent.Runner.Start role=%s", r.agent.RoleName())
	go r.run()
}

func (r *Runner) run() {
	defer close(r.done)
	if s, ok := r.agent.(Starter); ok {
		s.OnStart()
	}
	if c, ok := r.agent.(Closer); ok {
		defer c.OnClose()
	}
	for {
		select {
		case <-r.stop:
			return
		default:
		}
		work, err := r.agent.DoWork()
		if err != nil {
			r.err = err
			logs.Errf("agent.Runner role=%s err=%v", r.agent.RoleName(), err)
			if r.onError != nil {
				r.onError(r.agent.RoleName(), err)
			}
			return
		}
		r.idle.Idle(work)
	}
}

// Done is closed once the agent goroutine has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Err returns the error that stopped the agent, once Done is closed.
func (r *Runner) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Close stops the loop and waits for the goroutine. It is idempotent and
// safe on a runner that was never started.
func (r *Runner) Close() error {
	r.closeOnce.Do(func() {
		close(r.stop)
		logs.Debugf("agent.Runner.Close role=%s", r.agent.RoleName())
	})
	if r.started.Load() {
		<-r.done
	}
	return nil
}
