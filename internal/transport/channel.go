package transport

import (
	"fmt"
	"net"
	"strings"
)

type ChannelKind string

const (
	ChannelIPC ChannelKind = "ipc"
	ChannelUDP ChannelKind = "udp"
)

// Channel is a parsed channel URI: "ipc" or "udp://host:port".
type Channel struct {
	Kind     ChannelKind
	Endpoint string
}

func (c Channel) String() string {
	if c.Kind == ChannelUDP {
		return "udp://" + c.Endpoint
	}
	return string(c.Kind)
}

func ParseChannel(raw string) (Channel, error) {
	v := strings.TrimSpace(raw)
	switch {
	case v == "ipc":
		return Channel{Kind: ChannelIPC}, nil
	case strings.HasPrefix(v, "udp://"):
		endpoint := strings.TrimPrefix(v, "udp://")
		if _, _, err := net.SplitHostPort(endpoint); err != nil {
			return Channel{}, fmt.Errorf("%w: %q: %v", ErrUnsupportedChannel, raw, err)
		}
		return Channel{Kind: ChannelUDP, Endpoint: endpoint}, nil
	default:
		return Channel{}, fmt.Errorf("%w: %q", ErrUnsupportedChannel, raw)
	}
}
