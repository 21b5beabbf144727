package agent

import (
	"fmt"
	"math/rand"
	"runtime"
	"strings"
	"time"
)

// IdleStrategy decides what a runner does between duty cycles. Idle is
// called after every DoWork with its work count; positive work resets it.
type IdleStrategy interface {
	Idle(work int)
	Reset()
}

const (
	IdleBusySpin = "busy-spin"
	IdleYield    = "yield"
	IdleSleep    = "sleep"
	IdleBackoff  = "backoff"

	defaultSleepPeriod = time.Millisecond
)

// ParseIdleStrategy maps a configured name to a fresh strategy. An empty
// name is busy-spin.
func ParseIdleStrategy(name string) (IdleStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", IdleBusySpin:
		return BusySpinIdle{}, nil
	case IdleYield:
		return YieldingIdle{}, nil
	case IdleSleep:
		return SleepingIdle{Period: defaultSleepPeriod}, nil
	case IdleBackoff:
		return NewBackoffIdle(10, 5, DefaultBackoffConfig()), nil
	default:
		return nil, fmt.Errorf("agent: unknown idle strategy %q", name)
	}
}

// BusySpinIdle never gives up the CPU.
type BusySpinIdle struct{}

func (BusySpinIdle) Idle(int) {}
func (BusySpinIdle) Reset()   {}

// YieldingIdle yields the processor when there was no work.
type YieldingIdle struct{}

func (YieldingIdle) Idle(work int) {
	if work <= 0 {
		runtime.Gosched()
	}
}

func (YieldingIdle) Reset() {}

// SleepingIdle sleeps for Period when there was no work.
type SleepingIdle struct {
	Period time.Duration
}

func (s SleepingIdle) Idle(work int) {
	if work <= 0 {
		time.Sleep(s.Period)
	}
}

func (SleepingIdle) Reset() {}

// BackoffIdle spins, then yields, then parks with a growing delay.
// It is owned by one runner goroutine.
type BackoffIdle struct {
	maxSpins  int
	maxYields int
	cfg       BackoffConfig
	rng       *rand.Rand

	spins  int
	yields int
	parks  int
}

func NewBackoffIdle(maxSpins, maxYields int, cfg BackoffConfig) *BackoffIdle {
	return &BackoffIdle{
		maxSpins:  maxSpins,
		maxYields: maxYields,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *BackoffIdle) Idle(work int) {
	if work > 0 {
		b.Reset()
		return
	}
	switch {
	case b.spins < b.maxSpins:
		b.spins++
	case b.yields < b.maxYields:
		b.yields++
		runtime.Gosched()
	default:
		b.parks++
		time.Sleep(b.ParkDelay())
	}
}

// ParkDelay is the delay the next park would use.
func (b *BackoffIdle) ParkDelay() time.Duration {
	return NextBackoffDelay(b.cfg, b.parks, b.rng)
}

func (b *BackoffIdle) Reset() {
	b.spins = 0
	b.yields = 0
	b.parks = 0
}
