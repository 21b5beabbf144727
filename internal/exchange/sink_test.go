package exchange

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/bondx/internal/protocol"
	"github.com/danmuck/bondx/internal/testutil/testlog"
)

func TestTextSinkBlock(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	s := NewTextSink(&out)
	s.Report(2, protocol.MessageHeader{}, BuildBond(2))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 9)
	assert.Equal(t, "//////////////////////// MSG TOP [2] ////////////////////////", lines[0])
	assert.Equal(t, "bond.serialNumber=1232", lines[1])
	assert.Equal(t, "bond.someNumbers=20, 40, 60, 80, ", lines[6])
	assert.Equal(t, "bond.desc="+BondDesc, lines[7])
	assert.Equal(t, "//////////////////////// MSG END [2] ////////////////////////", lines[8])
}

func TestLogSinkEvent(t *testing.T) {
	testlog.Start(t)
	var out bytes.Buffer
	s := LogSink{Logger: zerolog.New(&out)}
	s.Report(1, protocol.MessageHeader{TemplateID: protocol.BondTemplateID}, BuildBond(1))

	var event map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &event))
	assert.Equal(t, "bond", event["message"])
	assert.Equal(t, 1.0, event["index"])
	assert.Equal(t, 1231.0, event["serial_number"])
	assert.Equal(t, "T", event["available"])
	assert.Equal(t, "B", event["rating"])
	assert.Equal(t, BondCode, event["code"])
	assert.Equal(t, []any{10.0, 20.0, 30.0, 40.0}, event["some_numbers"])
	assert.Equal(t, BondDesc, event["desc"])
}

func TestMultiSinkFansOut(t *testing.T) {
	testlog.Start(t)
	a, b := &recordingSink{}, &recordingSink{}
	calls := 0
	m := MultiSink{a, b, SinkFunc(func(uint64, protocol.MessageHeader, protocol.BondRecord) { calls++ })}
	m.Report(4, protocol.MessageHeader{}, BuildBond(4))

	ai, _ := a.snapshot()
	bi, _ := b.snapshot()
	assert.Equal(t, []uint64{4}, ai)
	assert.Equal(t, []uint64{4}, bi)
	assert.Equal(t, 1, calls)
}
