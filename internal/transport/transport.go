package transport

import (
	"errors"
	"fmt"
)

var (
	ErrTransportClosed    = errors.New("transport: closed")
	ErrUnsupportedChannel = errors.New("transport: unsupported channel")
	ErrFrameTooLarge      = errors.New("transport: frame too large")
)

// PublishResult is the outcome of one Offer. Positive values are the new
// stream position; non-positive values are the sentinels below.
type PublishResult int64

const (
	NotConnected        PublishResult = -1
	BackPressured       PublishResult = -2
	AdminAction         PublishResult = -3
	Closed              PublishResult = -4
	MaxPositionExceeded PublishResult = -5
)

func (r PublishResult) Accepted() bool {
	return r > 0
}

// Retryable reports flow control: the same frame may be offered again later.
func (r PublishResult) Retryable() bool {
	switch r {
	case NotConnected, BackPressured, AdminAction:
		return true
	default:
		return false
	}
}

func (r PublishResult) String() string {
	switch r {
	case NotConnected:
		return "NOT_CONNECTED"
	case BackPressured:
		return "BACK_PRESSURED"
	case AdminAction:
		return "ADMIN_ACTION"
	case Closed:
		return "CLOSED"
	case MaxPositionExceeded:
		return "MAX_POSITION_EXCEEDED"
	}
	if r > 0 {
		return fmt.Sprintf("position=%d", int64(r))
	}
	return fmt.Sprintf("unknown(%d)", int64(r))
}

// FragmentMeta describes where a polled fragment came from.
type FragmentMeta struct {
	StreamID  int32
	SessionID int32
	// Position is the stream position after this fragment.
	Position int64
}

// FragmentHandler receives one fragment. buf is only valid for the duration
// of the call. A non-nil error stops the poll and is returned from Poll.
type FragmentHandler func(buf []byte, offset, length int, meta FragmentMeta) error

// Publication is the sending half of a stream.
type Publication interface {
	// Offer copies buf[offset:offset+length] into the stream without blocking.
	Offer(buf []byte, offset, length int) PublishResult
	IsConnected() bool
	StreamID() int32
	Close() error
}

// Subscription is the receiving half of a stream. Poll must not be called
// concurrently on the same subscription.
type Subscription interface {
	// Poll delivers at most fragmentLimit fragments and returns how many were handled.
	Poll(handler FragmentHandler, fragmentLimit int) (int, error)
	IsConnected() bool
	StreamID() int32
	Close() error
}
