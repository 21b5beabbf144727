package exchange

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/danmuck/bondx/internal/logs"
	"github.com/danmuck/bondx/internal/observability"
	"github.com/danmuck/bondx/internal/protocol"
	"github.com/danmuck/bondx/internal/transport"
)

var ErrPublicationClosed = errors.New("exchange: publication closed")

type ProducerConfig struct {
	Target uint64
	// RequireConnected skips the offer while the publication is unconnected.
	RequireConnected bool
	// Limiter paces offers; nil sends as fast as the transport accepts.
	Limiter *rate.Limiter
	// Build derives the record for an index; nil uses BuildBond.
	Build func(i uint64) protocol.BondRecord
}

// Producer publishes records 1..Target in order. Step is called from one
// goroutine only; the counters may be read from anywhere.
type Producer struct {
	pub   transport.Publication
	cfg   ProducerConfig
	build func(i uint64) protocol.BondRecord
	buf   []byte

	sent     atomic.Uint64
	attempts atomic.Uint64
}

func NewProducer(pub transport.Publication, cfg ProducerConfig) *Producer {
	build := cfg.Build
	if build == nil {
		build = BuildBond
	}
	return &Producer{
		pub:   pub,
		cfg:   cfg,
		build: build,
		buf:   make([]byte, EncodeBufferSize),
	}
}

// Step offers the next index once. It reports whether a record was accepted.
// Flow control leaves the index in place for the next call.
func (p *Producer) Step() (bool, error) {
	sent := p.sent.Load()
	if sent >= p.cfg.Target {
		return false, nil
	}
	if p.cfg.RequireConnected && !p.pub.IsConnected() {
		return false, nil
	}
	if p.cfg.Limiter != nil && !p.cfg.Limiter.Allow() {
		return false, nil
	}

	i := sent + 1
	n := protocol.Encode(p.buf, 0, p.build(i))
	p.attempts.Add(1)
	result := p.pub.Offer(p.buf, 0, n)
	switch {
	case result.Accepted():
		p.sent.Store(i)
		observability.RecordPublished(p.pub.StreamID())
		logs.Tracef("exchange.Producer sent index=%d position=%d", i, int64(result))
		return true, nil
	case result.Retryable():
		observability.RecordOfferRetry(p.pub.StreamID(), result.String())
		logs.Tracef("exchange.Producer retry index=%d result=%s", i, result)
		return false, nil
	default:
		return false, fmt.Errorf("%w: index=%d result=%s", ErrPublicationClosed, i, result)
	}
}

func (p *Producer) DoWork() (int, error) {
	ok, err := p.Step()
	if ok {
		return 1, err
	}
	return 0, err
}

func (p *Producer) RoleName() string {
	return "producer"
}

func (p *Producer) Sent() uint64 {
	return p.sent.Load()
}

// Attempts counts every Offer call, accepted or not.
func (p *Producer) Attempts() uint64 {
	return p.attempts.Load()
}

func (p *Producer) Done() bool {
	return p.sent.Load() >= p.cfg.Target
}
