package exchange

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/bondx/internal/agent"
	"github.com/danmuck/bondx/internal/protocol"
	"github.com/danmuck/bondx/internal/testutil/testlog"
)

func bondFrames(n int) [][]byte {
	frames := make([][]byte, 0, n)
	for i := 1; i <= n; i++ {
		frames = append(frames, encodeBond(uint64(i)))
	}
	return frames
}

func TestConsumerDecodesReportsAndSignalsAtTarget(t *testing.T) {
	testlog.Start(t)
	sub := &stubSubscription{frames: bondFrames(5)}
	sink := &recordingSink{}
	barrier := agent.NewBarrier()
	c := NewConsumer(sub, ConsumerConfig{Target: 5, FragmentLimit: 2, Sink: sink, Barrier: barrier})

	n, err := c.Step()
	require.NoError(t, err)
	assert.Equal(t, 2, n, "poll is bounded by the fragment limit")
	_, err = c.Step()
	require.NoError(t, err)
	assert.False(t, barrier.Signalled(), "4 of 5 received")

	_, err = c.Step()
	require.NoError(t, err)
	assert.True(t, barrier.Signalled())
	assert.NoError(t, barrier.Err())
	assert.False(t, barrier.Signal(), "consumer already signalled")

	indices, records := sink.snapshot()
	require.Equal(t, []uint64{1, 2, 3, 4, 5}, indices)
	for i, rec := range records {
		assert.True(t, rec.Equal(BuildBond(uint64(i+1))), "record %d mismatch", i+1)
	}
	assert.Equal(t, uint64(5), c.Received())
}

func TestConsumerDefaultsFragmentLimit(t *testing.T) {
	testlog.Start(t)
	sub := &stubSubscription{frames: bondFrames(7)}
	c := NewConsumer(sub, ConsumerConfig{Target: 7})
	n, err := c.DoWork()
	require.NoError(t, err)
	assert.Equal(t, DefaultFragmentLimit, n)
	assert.Equal(t, "consumer", c.RoleName())
}

func TestConsumerDecodeErrorIsFatal(t *testing.T) {
	testlog.Start(t)
	frames := bondFrames(3)
	binary.LittleEndian.PutUint16(frames[1][2:4], 42)
	frames[2] = frames[2][:protocol.HeaderSize+10]

	sub := &stubSubscription{frames: frames}
	sink := &recordingSink{}
	barrier := agent.NewBarrier()
	c := NewConsumer(sub, ConsumerConfig{Target: 3, Sink: sink, Barrier: barrier})

	n, err := c.Step()
	assert.ErrorIs(t, err, protocol.ErrSchemaMismatch)
	assert.Equal(t, 2, n, "poll stops at the bad fragment")
	indices, _ := sink.snapshot()
	assert.Equal(t, []uint64{1}, indices)
	assert.False(t, barrier.Signalled())

	_, err = c.Step()
	assert.ErrorIs(t, err, protocol.ErrTruncatedFrame)
}
