package exchange

import (
	"fmt"
	"sync/atomic"

	"github.com/danmuck/bondx/internal/agent"
	"github.com/danmuck/bondx/internal/logs"
	"github.com/danmuck/bondx/internal/observability"
	"github.com/danmuck/bondx/internal/protocol"
	"github.com/danmuck/bondx/internal/transport"
)

const DefaultFragmentLimit = 5

type ConsumerConfig struct {
	Target        uint64
	FragmentLimit int
	Sink          Sink
	Barrier       *agent.Barrier
}

// Consumer decodes fragments from one subscription. Step is called from one
// goroutine only.
type Consumer struct {
	sub     transport.Subscription
	cfg     ConsumerConfig
	handler transport.FragmentHandler

	received atomic.Uint64
}

func NewConsumer(sub transport.Subscription, cfg ConsumerConfig) *Consumer {
	if cfg.FragmentLimit <= 0 {
		cfg.FragmentLimit = DefaultFragmentLimit
	}
	c := &Consumer{sub: sub, cfg: cfg}
	c.handler = c.onFragment
	return c
}

// Step polls at most one bounded batch. A decode error stops the batch and
// is returned as fatal.
func (c *Consumer) Step() (int, error) {
	return c.sub.Poll(c.handler, c.cfg.FragmentLimit)
}

func (c *Consumer) onFragment(buf []byte, offset, length int, meta transport.FragmentMeta) error {
	n := c.received.Add(1)
	hdr, rec, _, err := protocol.Decode(buf[:offset+length], offset)
	if err != nil {
		observability.RecordDecodeError(meta.StreamID)
		return fmt.Errorf("exchange: fragment %d at position %d: %w", n, meta.Position, err)
	}
	observability.RecordReceived(meta.StreamID)
	if c.cfg.Sink != nil {
		c.cfg.Sink.Report(n, hdr, rec)
	}
	if n >= c.cfg.Target && c.cfg.Barrier != nil && c.cfg.Barrier.Signal() {
		logs.Infof("exchange.Consumer target reached received=%d", n)
	}
	return nil
}

func (c *Consumer) DoWork() (int, error) {
	return c.Step()
}

func (c *Consumer) RoleName() string {
	return "consumer"
}

func (c *Consumer) Received() uint64 {
	return c.received.Load()
}
