package exchange

import (
	"sync/atomic"

	"github.com/danmuck/bondx/internal/agent"
	"github.com/danmuck/bondx/internal/logs"
	"github.com/danmuck/bondx/internal/transport"
)

type ConnState int32

const (
	AwaitingConnect ConnState = iota
	Ready
	Stopped
)

func (s ConnState) String() string {
	switch s {
	case AwaitingConnect:
		return "AWAITING_CONNECT"
	case Ready:
		return "READY"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Observation is what one duty cycle saw of the outside world.
type Observation struct {
	Connected bool
	Done      bool
}

// Transition is the connection state machine. Stopped is terminal.
func Transition(s ConnState, obs Observation) ConnState {
	switch s {
	case AwaitingConnect:
		if obs.Connected {
			return Ready
		}
	case Ready:
		if obs.Done {
			return Stopped
		}
	}
	return s
}

// ClientAgent drives a remote Producer: it waits for the publication to
// connect, publishes until the target, then trips the barrier once.
type ClientAgent struct {
	pub      transport.Publication
	producer *Producer
	barrier  *agent.Barrier

	state     atomic.Int32
	signalled bool
}

func NewClientAgent(pub transport.Publication, producer *Producer, barrier *agent.Barrier) *ClientAgent {
	return &ClientAgent{pub: pub, producer: producer, barrier: barrier}
}

func (c *ClientAgent) State() ConnState {
	return ConnState(c.state.Load())
}

func (c *ClientAgent) setState(next ConnState) bool {
	prev := c.State()
	if prev == next {
		return false
	}
	c.state.Store(int32(next))
	logs.Infof("exchange.ClientAgent state %s -> %s", prev, next)
	return true
}

func (c *ClientAgent) DoWork() (int, error) {
	switch c.State() {
	case AwaitingConnect:
		next := Transition(AwaitingConnect, Observation{Connected: c.pub.IsConnected()})
		if c.setState(next) {
			return 1, nil
		}
		return 0, nil
	case Ready:
		ok, err := c.producer.Step()
		if err != nil {
			return 0, err
		}
		work := 0
		if ok {
			work = 1
		}
		c.setState(Transition(Ready, Observation{Done: c.producer.Done()}))
		return work, nil
	default:
		if c.signalled {
			return 0, nil
		}
		c.signalled = true
		if c.barrier != nil {
			c.barrier.Signal()
		}
		return 1, nil
	}
}

func (c *ClientAgent) RoleName() string {
	return "client"
}
