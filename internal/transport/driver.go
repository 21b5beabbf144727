package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/danmuck/bondx/internal/logs"
)

const (
	defaultIPCTermSlots       = 1024
	defaultUDPRecvSlots       = 1024
	defaultUDPWindowBytes     = 64 << 10
	defaultUDPWindowFragments = 128
)

type DriverConfig struct {
	// IPCTermSlots bounds the frames one IPC subscription can hold unread.
	IPCTermSlots int
	// UDPRecvSlots bounds the frames a UDP subscription queues between polls.
	UDPRecvSlots int
	// UDPWindowBytes and UDPWindowFragments bound how far a UDP publisher may
	// run ahead of what the subscription has polled. The fragment window
	// never exceeds UDPRecvSlots.
	UDPWindowBytes     int
	UDPWindowFragments int
}

func (c DriverConfig) WithDefaults() DriverConfig {
	out := c
	if out.IPCTermSlots <= 0 {
		out.IPCTermSlots = defaultIPCTermSlots
	}
	if out.UDPRecvSlots <= 0 {
		out.UDPRecvSlots = defaultUDPRecvSlots
	}
	if out.UDPWindowBytes <= 0 {
		out.UDPWindowBytes = defaultUDPWindowBytes
	}
	if out.UDPWindowFragments <= 0 {
		out.UDPWindowFragments = defaultUDPWindowFragments
	}
	out.UDPWindowFragments = min(out.UDPWindowFragments, out.UDPRecvSlots)
	return out
}

// Driver hands out publications and subscriptions and owns their lifetime.
// IPC handles on the same stream id share one in-process stream.
type Driver struct {
	cfg DriverConfig

	mu      sync.Mutex
	ipc     map[int32]*ipcStream
	handles []io.Closer
	closed  bool
}

func NewDriver(cfg DriverConfig) *Driver {
	return &Driver{
		cfg: cfg.WithDefaults(),
		ipc: make(map[int32]*ipcStream),
	}
}

func (d *Driver) AddPublication(channel string, streamID int32) (Publication, error) {
	ch, err := ParseChannel(channel)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrTransportClosed
	}

	var pub Publication
	switch ch.Kind {
	case ChannelIPC:
		stream := d.ipcStreamLocked(streamID)
		stream.addPublication()
		pub = &IPCPublication{stream: stream}
	case ChannelUDP:
		p, err := dialUDP(ch.Endpoint, streamID)
		if err != nil {
			return nil, err
		}
		pub = p
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, ch)
	}
	d.handles = append(d.handles, pub)
	logs.Infof("transport.Driver.AddPublication channel=%s stream=%d", ch, streamID)
	return pub, nil
}

func (d *Driver) AddSubscription(channel string, streamID int32) (Subscription, error) {
	ch, err := ParseChannel(channel)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrTransportClosed
	}

	var sub Subscription
	switch ch.Kind {
	case ChannelIPC:
		stream := d.ipcStreamLocked(streamID)
		s := &IPCSubscription{stream: stream, ring: newIPCRing(d.cfg.IPCTermSlots)}
		stream.addSubscription(s)
		sub = s
	case ChannelUDP:
		s, err := listenUDP(ch.Endpoint, streamID, d.cfg.UDPRecvSlots,
			newUDPWindow(d.cfg.UDPWindowBytes, d.cfg.UDPWindowFragments))
		if err != nil {
			return nil, err
		}
		sub = s
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, ch)
	}
	d.handles = append(d.handles, sub)
	logs.Infof("transport.Driver.AddSubscription channel=%s stream=%d", ch, streamID)
	return sub, nil
}

func (d *Driver) ipcStreamLocked(streamID int32) *ipcStream {
	stream, ok := d.ipc[streamID]
	if !ok {
		stream = newIPCStream(streamID, d.cfg.IPCTermSlots)
		d.ipc[streamID] = stream
	}
	return stream
}

// Close closes every handle the driver handed out, newest first. Handles
// closed earlier by their owner are skipped by their own idempotent Close.
func (d *Driver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	handles := d.handles
	d.handles = nil
	d.mu.Unlock()

	var errs []error
	for i := len(handles) - 1; i >= 0; i-- {
		if err := handles[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	logs.Infof("transport.Driver.Close handles=%d", len(handles))
	return errors.Join(errs...)
}
