package exchange

import (
	"sync"

	"github.com/danmuck/bondx/internal/protocol"
	"github.com/danmuck/bondx/internal/transport"
)

type stubPublication struct {
	rejectFirst int
	reject      transport.PublishResult
	connected   bool

	offers   int
	frames   [][]byte
	position int64
}

func (s *stubPublication) Offer(buf []byte, offset, length int) transport.PublishResult {
	s.offers++
	if s.offers <= s.rejectFirst {
		return s.reject
	}
	s.frames = append(s.frames, append([]byte(nil), buf[offset:offset+length]...))
	s.position += int64(length)
	return transport.PublishResult(s.position)
}

func (s *stubPublication) IsConnected() bool { return s.connected }
func (s *stubPublication) StreamID() int32   { return 10 }
func (s *stubPublication) Close() error      { return nil }

type stubSubscription struct {
	frames [][]byte
	next   int
}

func (s *stubSubscription) Poll(handler transport.FragmentHandler, limit int) (int, error) {
	n := 0
	for n < limit && s.next < len(s.frames) {
		f := s.frames[s.next]
		s.next++
		n++
		if err := handler(f, 0, len(f), transport.FragmentMeta{StreamID: 10, Position: int64(s.next)}); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (s *stubSubscription) IsConnected() bool { return true }
func (s *stubSubscription) StreamID() int32   { return 10 }
func (s *stubSubscription) Close() error      { return nil }

type recordingSink struct {
	mu      sync.Mutex
	indices []uint64
	records []protocol.BondRecord
}

func (r *recordingSink) Report(index uint64, _ protocol.MessageHeader, rec protocol.BondRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indices = append(r.indices, index)
	r.records = append(r.records, rec.Clone())
}

func (r *recordingSink) snapshot() ([]uint64, []protocol.BondRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint64(nil), r.indices...), append([]protocol.BondRecord(nil), r.records...)
}

func encodeBond(i uint64) []byte {
	rec := BuildBond(i)
	buf := make([]byte, protocol.EncodedLength(rec))
	protocol.Encode(buf, 0, rec)
	return buf
}

func decodeIndex(frame []byte) uint64 {
	_, rec, _, err := protocol.Decode(frame, 0)
	if err != nil {
		panic(err)
	}
	return uint64(rec.SerialNumber - serialBase)
}
