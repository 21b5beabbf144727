package transport

import (
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
)

// ipcStream is the in-process log for one stream id. Each subscription owns
// a bounded slot ring; an offer lands in every ring or in none.
type ipcStream struct {
	streamID  int32
	sessionID int32
	slots     int

	mu       sync.Mutex
	subs     []*IPCSubscription
	pubs     int
	position int64
}

func newIPCStream(streamID int32, slots int) *ipcStream {
	return &ipcStream{
		streamID:  streamID,
		sessionID: rand.Int32(),
		slots:     slots,
	}
}

func (s *ipcStream) offer(frame []byte) PublishResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return NotConnected
	}
	for _, sub := range s.subs {
		if sub.ring.full() {
			return BackPressured
		}
	}
	if s.position > math.MaxInt64-int64(len(frame)) {
		return MaxPositionExceeded
	}
	s.position += int64(len(frame))
	for _, sub := range s.subs {
		sub.ring.push(frame, s.position)
	}
	return PublishResult(s.position)
}

func (s *ipcStream) addSubscription(sub *IPCSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

func (s *ipcStream) removeSubscription(sub *IPCSubscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.subs {
		if cur == sub {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

func (s *ipcStream) addPublication() {
	s.mu.Lock()
	s.pubs++
	s.mu.Unlock()
}

func (s *ipcStream) removePublication() {
	s.mu.Lock()
	if s.pubs > 0 {
		s.pubs--
	}
	s.mu.Unlock()
}

func (s *ipcStream) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *ipcStream) publicationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pubs
}

// peek returns the oldest undelivered frame of sub. The slot stays reserved
// until advance, so the returned bytes are stable for one handler call.
func (s *ipcStream) peek(sub *IPCSubscription) ([]byte, int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sub.ring.front()
}

func (s *ipcStream) advance(sub *IPCSubscription) {
	s.mu.Lock()
	sub.ring.pop()
	s.mu.Unlock()
}

type ipcRing struct {
	slots     [][]byte
	positions []int64
	head      uint64
	tail      uint64
}

func newIPCRing(n int) ipcRing {
	return ipcRing{
		slots:     make([][]byte, n),
		positions: make([]int64, n),
	}
}

func (r *ipcRing) full() bool {
	return r.tail-r.head == uint64(len(r.slots))
}

func (r *ipcRing) push(frame []byte, position int64) {
	i := r.tail % uint64(len(r.slots))
	r.slots[i] = append(r.slots[i][:0], frame...)
	r.positions[i] = position
	r.tail++
}

func (r *ipcRing) front() ([]byte, int64, bool) {
	if r.head == r.tail {
		return nil, 0, false
	}
	i := r.head % uint64(len(r.slots))
	return r.slots[i], r.positions[i], true
}

func (r *ipcRing) pop() {
	if r.head < r.tail {
		r.head++
	}
}

// IPCPublication offers frames into an in-process stream.
type IPCPublication struct {
	stream *ipcStream
	closed atomic.Bool
}

func (p *IPCPublication) Offer(buf []byte, offset, length int) PublishResult {
	if p.closed.Load() {
		return Closed
	}
	return p.stream.offer(buf[offset : offset+length])
}

func (p *IPCPublication) IsConnected() bool {
	return !p.closed.Load() && p.stream.subscriberCount() > 0
}

func (p *IPCPublication) StreamID() int32 {
	return p.stream.streamID
}

func (p *IPCPublication) Close() error {
	if p.closed.CompareAndSwap(false, true) {
		p.stream.removePublication()
	}
	return nil
}

// IPCSubscription polls an in-process stream.
type IPCSubscription struct {
	stream *ipcStream
	ring   ipcRing
	closed atomic.Bool
}

func (s *IPCSubscription) Poll(handler FragmentHandler, fragmentLimit int) (int, error) {
	if s.closed.Load() {
		return 0, ErrTransportClosed
	}
	count := 0
	for count < fragmentLimit {
		frame, position, ok := s.stream.peek(s)
		if !ok {
			break
		}
		err := handler(frame, 0, len(frame), FragmentMeta{
			StreamID:  s.stream.streamID,
			SessionID: s.stream.sessionID,
			Position:  position,
		})
		s.stream.advance(s)
		count++
		if err != nil {
			return count, err
		}
	}
	return count, nil
}

func (s *IPCSubscription) IsConnected() bool {
	return !s.closed.Load() && s.stream.publicationCount() > 0
}

func (s *IPCSubscription) StreamID() int32 {
	return s.stream.streamID
}

func (s *IPCSubscription) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.stream.removeSubscription(s)
	}
	return nil
}
