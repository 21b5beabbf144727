package agent

import (
	"math/rand"
	"testing"
	"time"

	"github.com/danmuck/bondx/internal/testutil/testlog"
)

func TestNextBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       false,
	}
	if got := NextBackoffDelay(cfg, 1, nil); got != 250*time.Millisecond {
		t.Fatalf("attempt1 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 2, nil); got != 500*time.Millisecond {
		t.Fatalf("attempt2 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 3, nil); got != time.Second {
		t.Fatalf("attempt3 got=%v", got)
	}
	if got := NextBackoffDelay(cfg, 6, nil); got != 5*time.Second {
		t.Fatalf("attempt6 got=%v", got)
	}
}

func TestNextBackoffDelayJitterRange(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
		Jitter:       true,
	}
	rng := rand.New(rand.NewSource(7))
	got := NextBackoffDelay(cfg, 3, rng)
	if got < 500*time.Millisecond || got > 1500*time.Millisecond {
		t.Fatalf("jitter out of range: %v", got)
	}
}

func TestBackoffIdleProgression(t *testing.T) {
	testlog.Start(t)
	b := NewBackoffIdle(2, 1, BackoffConfig{InitialDelay: time.Microsecond, Multiplier: 2, MaxDelay: 4 * time.Microsecond})
	b.Idle(0)
	b.Idle(0)
	if b.spins != 2 || b.yields != 0 || b.parks != 0 {
		t.Fatalf("expected spin phase, got spins=%d yields=%d parks=%d", b.spins, b.yields, b.parks)
	}
	b.Idle(0)
	if b.yields != 1 {
		t.Fatalf("expected yield phase, got yields=%d", b.yields)
	}
	for i := 0; i < 4; i++ {
		b.Idle(0)
	}
	if b.parks != 4 {
		t.Fatalf("expected 4 parks, got %d", b.parks)
	}
	if got := b.ParkDelay(); got != 4*time.Microsecond {
		t.Fatalf("park delay should cap at max, got %v", got)
	}
	b.Idle(1)
	if b.spins != 0 || b.yields != 0 || b.parks != 0 {
		t.Fatalf("work should reset backoff")
	}
}

func TestParseIdleStrategy(t *testing.T) {
	testlog.Start(t)
	cases := map[string]any{
		"":          BusySpinIdle{},
		"busy-spin": BusySpinIdle{},
		"YIELD":     YieldingIdle{},
		"sleep":     SleepingIdle{Period: defaultSleepPeriod},
	}
	for name, want := range cases {
		got, err := ParseIdleStrategy(name)
		if err != nil {
			t.Fatalf("%q: %v", name, err)
		}
		if got != want {
			t.Fatalf("%q: got %#v want %#v", name, got, want)
		}
	}
	if got, err := ParseIdleStrategy("backoff"); err != nil {
		t.Fatalf("backoff: %v", err)
	} else if _, ok := got.(*BackoffIdle); !ok {
		t.Fatalf("backoff: got %T", got)
	}
	if _, err := ParseIdleStrategy("nap"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
