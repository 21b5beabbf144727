package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/bondx/internal/agent"
	"github.com/danmuck/bondx/internal/testutil/testlog"
	"github.com/danmuck/bondx/internal/transport"
)

func TestTransitionTable(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		from ConnState
		obs  Observation
		want ConnState
	}{
		{AwaitingConnect, Observation{}, AwaitingConnect},
		{AwaitingConnect, Observation{Done: true}, AwaitingConnect},
		{AwaitingConnect, Observation{Connected: true}, Ready},
		{Ready, Observation{Connected: true}, Ready},
		{Ready, Observation{Connected: false}, Ready},
		{Ready, Observation{Done: true}, Stopped},
		{Stopped, Observation{}, Stopped},
		{Stopped, Observation{Connected: true, Done: true}, Stopped},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Transition(tc.from, tc.obs), "%s %+v", tc.from, tc.obs)
	}
	assert.Equal(t, "AWAITING_CONNECT", AwaitingConnect.String())
	assert.Equal(t, "STOPPED", Stopped.String())
}

func TestClientAgentLifecycle(t *testing.T) {
	testlog.Start(t)
	pub := &stubPublication{}
	barrier := agent.NewBarrier()
	c := NewClientAgent(pub, NewProducer(pub, ProducerConfig{Target: 2}), barrier)
	assert.Equal(t, "client", c.RoleName())

	for i := 0; i < 3; i++ {
		work, err := c.DoWork()
		require.NoError(t, err)
		assert.Zero(t, work)
	}
	assert.Equal(t, AwaitingConnect, c.State())
	assert.Zero(t, pub.offers, "no offers before connect")

	pub.connected = true
	_, err := c.DoWork()
	require.NoError(t, err)
	assert.Equal(t, Ready, c.State())

	_, err = c.DoWork()
	require.NoError(t, err)
	assert.Equal(t, Ready, c.State())
	_, err = c.DoWork()
	require.NoError(t, err)
	assert.Equal(t, Stopped, c.State())
	assert.False(t, barrier.Signalled(), "signal happens on the stopped turn")

	work, err := c.DoWork()
	require.NoError(t, err)
	assert.Equal(t, 1, work)
	assert.True(t, barrier.Signalled())

	work, err = c.DoWork()
	require.NoError(t, err)
	assert.Zero(t, work)
	assert.Len(t, pub.frames, 2)
}

func TestClientAgentPropagatesClosedPublication(t *testing.T) {
	testlog.Start(t)
	pub := &stubPublication{connected: true, rejectFirst: 1, reject: transport.Closed}
	c := NewClientAgent(pub, NewProducer(pub, ProducerConfig{Target: 1}), agent.NewBarrier())
	_, err := c.DoWork()
	require.NoError(t, err)
	_, err = c.DoWork()
	assert.ErrorIs(t, err, ErrPublicationClosed)
}
