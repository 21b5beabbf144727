package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/danmuck/bondx/internal/agent"
	"github.com/danmuck/bondx/internal/config"
	"github.com/danmuck/bondx/internal/logs"
	"github.com/danmuck/bondx/internal/transport"
)

// Summary is what one Run achieved.
type Summary struct {
	RunID    string
	Role     config.Role
	Sent     uint64
	Received uint64
	Elapsed  time.Duration
}

// Status is a point-in-time view of a running exchange.
type Status struct {
	RunID     string `json:"run_id"`
	Role      string `json:"role"`
	Channel   string `json:"channel"`
	StreamID  int32  `json:"stream_id"`
	Target    uint64 `json:"target"`
	Sent      uint64 `json:"sent"`
	Received  uint64 `json:"received"`
	ConnState string `json:"conn_state,omitempty"`
	Running   bool   `json:"running"`
	Done      bool   `json:"done"`
}

type Option func(*Exchange)

// WithSink sets where decoded records go. Without it records are counted only.
func WithSink(s Sink) Option {
	return func(e *Exchange) {
		e.sink = s
	}
}

// Exchange runs the agents of one role against one stream.
type Exchange struct {
	cfg     config.ExchangeConfig
	sink    Sink
	runID   string
	barrier *agent.Barrier

	mu       sync.Mutex
	producer *Producer
	consumer *Consumer
	client   *ClientAgent
	running  bool
}

func New(cfg config.ExchangeConfig, opts ...Option) *Exchange {
	e := &Exchange{
		cfg:     cfg,
		runID:   uuid.NewString(),
		barrier: agent.NewBarrier(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exchange) RunID() string {
	return e.runID
}

// Barrier is the shutdown signal shared by this exchange's agents.
func (e *Exchange) Barrier() *agent.Barrier {
	return e.barrier
}

// Ready reports whether the agents are running and the barrier is armed.
func (e *Exchange) Ready() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running && !e.barrier.Signalled()
}

func (e *Exchange) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{
		RunID:    e.runID,
		Role:     string(e.cfg.Role),
		Channel:  e.cfg.ResolvedChannel(),
		StreamID: e.cfg.StreamID,
		Target:   e.cfg.SendCount,
		Running:  e.running,
		Done:     e.barrier.Signalled(),
	}
	if e.producer != nil {
		st.Sent = e.producer.Sent()
	}
	if e.consumer != nil {
		st.Received = e.consumer.Received()
	}
	if e.client != nil {
		st.ConnState = e.client.State().String()
	}
	return st
}

type closer struct {
	name  string
	close func() error
}

// Run acquires the transport, starts the agents of the configured role and
// blocks until the barrier trips, ctx ends or wait_timeout expires. Teardown
// always runs, in reverse acquisition order. An Exchange runs once.
func (e *Exchange) Run(ctx context.Context) (Summary, error) {
	if err := e.cfg.Validate(); err != nil {
		return Summary{}, err
	}
	start := time.Now()
	channel := e.cfg.ResolvedChannel()
	logs.Infof("exchange.Run start run_id=%s role=%s channel=%s stream=%d target=%d",
		e.runID, e.cfg.Role, channel, e.cfg.StreamID, e.cfg.SendCount)

	driver := transport.NewDriver(transport.DriverConfig{IPCTermSlots: e.cfg.IPCTermSlots})
	closers := []closer{{name: "driver", close: driver.Close}}

	if err := e.setup(driver, channel, &closers); err != nil {
		return e.summary(start), errors.Join(err, teardown(closers))
	}

	stopSignals := e.barrier.NotifyOnSignals(ctx)
	waitErr := e.barrier.WaitTimeout(ctx, e.cfg.WaitTimeout)
	stopSignals()
	switch {
	case errors.Is(waitErr, agent.ErrWaitTimeout):
		logs.Warnf("exchange.Run wait timed out after=%s status=%+v", e.cfg.WaitTimeout, e.Status())
	case waitErr != nil:
		logs.Errf("exchange.Run stopped err=%v", waitErr)
	}

	err := errors.Join(waitErr, teardown(closers))
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()

	summary := e.summary(start)
	logs.Infof("exchange.Run done run_id=%s sent=%d received=%d elapsed=%s",
		summary.RunID, summary.Sent, summary.Received, summary.Elapsed)
	return summary, err
}

func (e *Exchange) setup(driver *transport.Driver, channel string, closers *[]closer) error {
	onError := func(role string, err error) {
		e.barrier.SignalErr(fmt.Errorf("%s: %w", role, err))
	}
	newRunner := func(a agent.Agent) (*agent.Runner, error) {
		idle, err := agent.ParseIdleStrategy(e.cfg.IdleStrategy)
		if err != nil {
			return nil, err
		}
		r := agent.NewRunner(a, idle, onError)
		*closers = append(*closers, closer{name: a.RoleName() + " runner", close: r.Close})
		return r, nil
	}

	var (
		pub     transport.Publication
		sub     transport.Subscription
		runners []*agent.Runner
		err     error
	)
	if e.cfg.Role != config.RoleServer {
		pub, err = driver.AddPublication(channel, e.cfg.StreamID)
		if err != nil {
			return err
		}
		*closers = append(*closers, closer{name: "publication", close: pub.Close})
	}
	if e.cfg.Role != config.RoleClient {
		sub, err = driver.AddSubscription(channel, e.cfg.StreamID)
		if err != nil {
			return err
		}
		*closers = append(*closers, closer{name: "subscription", close: sub.Close})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if pub != nil {
		e.producer = NewProducer(pub, ProducerConfig{
			Target:  e.cfg.SendCount,
			Limiter: e.limiter(),
		})
		var a agent.Agent = e.producer
		if e.cfg.Role == config.RoleClient {
			e.client = NewClientAgent(pub, e.producer, e.barrier)
			a = e.client
		}
		r, err := newRunner(a)
		if err != nil {
			return err
		}
		runners = append(runners, r)
	}
	if sub != nil {
		e.consumer = NewConsumer(sub, ConsumerConfig{
			Target:        e.cfg.SendCount,
			FragmentLimit: e.cfg.ResolvedFragmentLimit(),
			Sink:          e.sink,
			Barrier:       e.barrier,
		})
		r, err := newRunner(e.consumer)
		if err != nil {
			return err
		}
		runners = append(runners, r)
	}

	for _, r := range runners {
		r.Start()
	}
	e.running = true
	return nil
}

func (e *Exchange) limiter() *rate.Limiter {
	if e.cfg.OfferRate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(e.cfg.OfferRate), 1)
}

func (e *Exchange) summary(start time.Time) Summary {
	st := e.Status()
	return Summary{
		RunID:    e.runID,
		Role:     e.cfg.Role,
		Sent:     st.Sent,
		Received: st.Received,
		Elapsed:  time.Since(start),
	}
}

func teardown(closers []closer) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		c := closers[i]
		if err := c.close(); err != nil {
			logs.Warnf("exchange.teardown close=%s err=%v", c.name, err)
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
			continue
		}
		logs.Debugf("exchange.teardown closed=%s", c.name)
	}
	return errors.Join(errs...)
}
