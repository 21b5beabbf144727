package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/danmuck/bondx/internal/logs"
)

// Datagram layout:
//
//	[2B magic 0x4258][1B version][1B kind][4B stream][4B session][4B length][payload...]
//
// A status payload carries the receiver window for one publisher session:
//
//	[8B consumed bytes][8B consumed fragments][4B window bytes][4B window fragments]
const (
	overlayMagic      uint16 = 0x4258 // "BX"
	overlayVersion    byte   = 1
	overlayHeaderSize        = 16
	maxUDPPayload            = 65507

	// MaxDatagramFrame is the largest frame a UDP publication can offer.
	MaxDatagramFrame = maxUDPPayload - overlayHeaderSize

	statusPayloadSize = 24
	udpReadBuffer     = 4 << 20

	setupInterval = 50 * time.Millisecond
)

type frameKind byte

const (
	frameData   frameKind = 1
	frameSetup  frameKind = 2
	frameStatus frameKind = 3
)

type overlayHeader struct {
	kind      frameKind
	streamID  int32
	sessionID int32
	length    uint32
}

func putOverlayHeader(dst []byte, h overlayHeader) {
	binary.BigEndian.PutUint16(dst[0:2], overlayMagic)
	dst[2] = overlayVersion
	dst[3] = byte(h.kind)
	binary.LittleEndian.PutUint32(dst[4:8], uint32(h.streamID))
	binary.LittleEndian.PutUint32(dst[8:12], uint32(h.sessionID))
	binary.LittleEndian.PutUint32(dst[12:16], h.length)
}

type statusPayload struct {
	consumedBytes     int64
	consumedFragments int64
	windowBytes       int64
	windowFragments   int64
}

func putStatusPayload(dst []byte, st statusPayload) {
	binary.LittleEndian.PutUint64(dst[0:8], uint64(st.consumedBytes))
	binary.LittleEndian.PutUint64(dst[8:16], uint64(st.consumedFragments))
	binary.LittleEndian.PutUint32(dst[16:20], uint32(st.windowBytes))
	binary.LittleEndian.PutUint32(dst[20:24], uint32(st.windowFragments))
}

func parseStatusPayload(src []byte) statusPayload {
	return statusPayload{
		consumedBytes:     int64(binary.LittleEndian.Uint64(src[0:8])),
		consumedFragments: int64(binary.LittleEndian.Uint64(src[8:16])),
		windowBytes:       int64(binary.LittleEndian.Uint32(src[16:20])),
		windowFragments:   int64(binary.LittleEndian.Uint32(src[20:24])),
	}
}

func parseOverlayHeader(src []byte) (overlayHeader, bool) {
	if len(src) < overlayHeaderSize {
		return overlayHeader{}, false
	}
	if binary.BigEndian.Uint16(src[0:2]) != overlayMagic || src[2] != overlayVersion {
		return overlayHeader{}, false
	}
	h := overlayHeader{
		kind:      frameKind(src[3]),
		streamID:  int32(binary.LittleEndian.Uint32(src[4:8])),
		sessionID: int32(binary.LittleEndian.Uint32(src[8:12])),
		length:    binary.LittleEndian.Uint32(src[12:16]),
	}
	if uint64(h.length) > uint64(len(src)-overlayHeaderSize) {
		return overlayHeader{}, false
	}
	return h, true
}

// UDPPublication sends frames to one UDP endpoint. It counts as connected
// once the remote subscription has answered a setup datagram with a status.
// Frames beyond the last advertised receiver window are refused with
// BackPressured. Offer is not safe for concurrent use.
type UDPPublication struct {
	conn      *net.UDPConn
	streamID  int32
	sessionID int32
	scratch   []byte
	sent      int64

	position          atomic.Int64
	consumedBytes     atomic.Int64
	consumedFragments atomic.Int64
	windowBytes       atomic.Int64
	windowFragments   atomic.Int64
	connected         atomic.Bool
	lastSetup atomic.Int64
	closed    atomic.Bool
	done      chan struct{}
}

func dialUDP(endpoint string, streamID int32) (*UDPPublication, error) {
	raddr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", endpoint, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", endpoint, err)
	}
	p := &UDPPublication{
		conn:      conn,
		streamID:  streamID,
		sessionID: rand.Int32(),
		scratch:   make([]byte, maxUDPPayload),
		done:      make(chan struct{}),
	}
	go p.readStatus()
	return p, nil
}

func (p *UDPPublication) readStatus() {
	defer close(p.done)
	buf := make([]byte, overlayHeaderSize+statusPayloadSize)
	for {
		n, err := p.conn.Read(buf)
		if err != nil {
			if p.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			p.connected.Store(false)
			if !errors.Is(err, syscall.ECONNREFUSED) {
				logs.Warnf("transport.UDPPublication.readStatus stream=%d err=%v", p.streamID, err)
			}
			continue
		}
		h, ok := parseOverlayHeader(buf[:n])
		if !ok || h.kind != frameStatus || h.streamID != p.streamID ||
			h.sessionID != p.sessionID || h.length < statusPayloadSize {
			continue
		}
		p.applyStatus(parseStatusPayload(buf[overlayHeaderSize : overlayHeaderSize+statusPayloadSize]))
		if !p.connected.Swap(true) {
			logs.Debugf("transport.UDPPublication connected stream=%d session=%d", p.streamID, p.sessionID)
		}
	}
}

// applyStatus runs on the reader goroutine only. Consumed counters never move
// backwards, so a reordered status cannot widen the window.
func (p *UDPPublication) applyStatus(st statusPayload) {
	if st.consumedBytes > p.consumedBytes.Load() {
		p.consumedBytes.Store(st.consumedBytes)
	}
	if st.consumedFragments > p.consumedFragments.Load() {
		p.consumedFragments.Store(st.consumedFragments)
	}
	p.windowBytes.Store(st.windowBytes)
	p.windowFragments.Store(st.windowFragments)
}

// windowExhausted reports whether a frame of length bytes would overrun the
// receiver window. An empty window always admits one frame.
func (p *UDPPublication) windowExhausted(length int) bool {
	inFlight := p.sent - p.consumedFragments.Load()
	if inFlight <= 0 {
		return false
	}
	if inFlight >= p.windowFragments.Load() {
		return true
	}
	return p.position.Load()+int64(length)-p.consumedBytes.Load() > p.windowBytes.Load()
}

func (p *UDPPublication) sendSetup() {
	now := time.Now().UnixNano()
	last := p.lastSetup.Load()
	if now-last < int64(setupInterval) || !p.lastSetup.CompareAndSwap(last, now) {
		return
	}
	var frame [overlayHeaderSize]byte
	putOverlayHeader(frame[:], overlayHeader{kind: frameSetup, streamID: p.streamID, sessionID: p.sessionID})
	_, _ = p.conn.Write(frame[:])
}

func (p *UDPPublication) Offer(buf []byte, offset, length int) PublishResult {
	if p.closed.Load() {
		return Closed
	}
	if !p.IsConnected() {
		return NotConnected
	}
	if length > MaxDatagramFrame {
		panic(fmt.Errorf("%w: %d bytes, max %d", ErrFrameTooLarge, length, MaxDatagramFrame))
	}
	if p.windowExhausted(length) {
		// A lost status would otherwise stall the window; setup asks for a fresh one.
		p.sendSetup()
		return BackPressured
	}
	frame := p.scratch[:overlayHeaderSize+length]
	putOverlayHeader(frame, overlayHeader{
		kind:      frameData,
		streamID:  p.streamID,
		sessionID: p.sessionID,
		length:    uint32(length),
	})
	copy(frame[overlayHeaderSize:], buf[offset:offset+length])
	if _, err := p.conn.Write(frame); err != nil {
		switch {
		case errors.Is(err, net.ErrClosed):
			return Closed
		case errors.Is(err, syscall.ECONNREFUSED):
			p.connected.Store(false)
			return NotConnected
		default:
			return BackPressured
		}
	}
	p.sent++
	return PublishResult(p.position.Add(int64(length)))
}

// IsConnected also re-sends the setup datagram while unconnected.
func (p *UDPPublication) IsConnected() bool {
	if p.closed.Load() {
		return false
	}
	if p.connected.Load() {
		return true
	}
	p.sendSetup()
	return false
}

func (p *UDPPublication) StreamID() int32 {
	return p.streamID
}

func (p *UDPPublication) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.conn.Close()
	<-p.done
	return err
}

type udpFragment struct {
	data      []byte
	sessionID int32
}

type udpWindow struct {
	bytes       int64
	fragments   int64
	statusBytes int64
	statusFrags int64
}

func newUDPWindow(bytes, fragments int) udpWindow {
	return udpWindow{
		bytes:       int64(bytes),
		fragments:   int64(fragments),
		statusBytes: max(1, int64(bytes)/4),
		statusFrags: max(1, int64(fragments)/4),
	}
}

// udpSession is one publisher seen by a subscription.
type udpSession struct {
	addr              *net.UDPAddr
	consumedBytes     int64
	consumedFragments int64
	reportedBytes     int64
	reportedFragments int64
}

// UDPSubscription receives frames on a bound UDP endpoint. A reader
// goroutine answers setup datagrams and queues data; Poll never blocks.
// Every publisher session is told how far it may run ahead through status
// datagrams sent on setup and each quarter window consumed.
type UDPSubscription struct {
	conn     *net.UDPConn
	streamID int32
	window   udpWindow
	frames   chan udpFragment
	free     chan []byte
	position int64

	mu       sync.Mutex
	sessions map[int32]*udpSession

	closed  atomic.Bool
	closing chan struct{}
	done    chan struct{}
}

func listenUDP(endpoint string, streamID int32, slots int, window udpWindow) (*UDPSubscription, error) {
	laddr, err := net.ResolveUDPAddr("udp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", endpoint, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", endpoint, err)
	}
	// The kernel caps this at its own maximum; the window keeps us under either.
	if err := conn.SetReadBuffer(udpReadBuffer); err != nil {
		logs.Debugf("transport.UDPSubscription.SetReadBuffer err=%v", err)
	}
	s := &UDPSubscription{
		conn:     conn,
		streamID: streamID,
		window:   window,
		frames:   make(chan udpFragment, slots),
		free:     make(chan []byte, slots),
		sessions: make(map[int32]*udpSession),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// LocalAddr is the bound address, useful when listening on port 0.
func (s *UDPSubscription) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *UDPSubscription) readLoop() {
	defer close(s.done)
	buf := make([]byte, maxUDPPayload)
	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			logs.Warnf("transport.UDPSubscription.readLoop stream=%d err=%v", s.streamID, err)
			continue
		}
		h, ok := parseOverlayHeader(buf[:n])
		if !ok || h.streamID != s.streamID {
			continue
		}
		switch h.kind {
		case frameSetup:
			s.track(h.sessionID, addr)
			s.sendStatus(h.sessionID, addr, s.snapshot(h.sessionID))
		case frameData:
			s.track(h.sessionID, addr)
			data := append(s.takeBuffer(), buf[overlayHeaderSize:overlayHeaderSize+int(h.length)]...)
			select {
			case s.frames <- udpFragment{data: data, sessionID: h.sessionID}:
			case <-s.closing:
				return
			}
		}
	}
}

func (s *UDPSubscription) track(sessionID int32, addr *net.UDPAddr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		logs.Debugf("transport.UDPSubscription publisher stream=%d session=%d addr=%s", s.streamID, sessionID, addr)
		sess = &udpSession{}
		s.sessions[sessionID] = sess
	}
	sess.addr = addr
}

// snapshot marks the session's consumed counters as reported and returns them.
func (s *UDPSubscription) snapshot(sessionID int32) statusPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := statusPayload{windowBytes: s.window.bytes, windowFragments: s.window.fragments}
	if sess, ok := s.sessions[sessionID]; ok {
		sess.reportedBytes = sess.consumedBytes
		sess.reportedFragments = sess.consumedFragments
		st.consumedBytes = sess.consumedBytes
		st.consumedFragments = sess.consumedFragments
	}
	return st
}

// consumed records one polled fragment and returns the status to send, if
// the session has used up a quarter of its window since the last one.
func (s *UDPSubscription) consumed(sessionID int32, length int) (*net.UDPAddr, statusPayload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, statusPayload{}, false
	}
	sess.consumedBytes += int64(length)
	sess.consumedFragments++
	if sess.consumedFragments-sess.reportedFragments < s.window.statusFrags &&
		sess.consumedBytes-sess.reportedBytes < s.window.statusBytes {
		return nil, statusPayload{}, false
	}
	sess.reportedBytes = sess.consumedBytes
	sess.reportedFragments = sess.consumedFragments
	return sess.addr, statusPayload{
		consumedBytes:     sess.consumedBytes,
		consumedFragments: sess.consumedFragments,
		windowBytes:       s.window.bytes,
		windowFragments:   s.window.fragments,
	}, true
}

func (s *UDPSubscription) sendStatus(sessionID int32, addr *net.UDPAddr, st statusPayload) {
	var frame [overlayHeaderSize + statusPayloadSize]byte
	putOverlayHeader(frame[:], overlayHeader{
		kind:      frameStatus,
		streamID:  s.streamID,
		sessionID: sessionID,
		length:    statusPayloadSize,
	})
	putStatusPayload(frame[overlayHeaderSize:], st)
	if _, err := s.conn.WriteToUDP(frame[:], addr); err != nil && !s.closed.Load() {
		logs.Debugf("transport.UDPSubscription.sendStatus addr=%s err=%v", addr, err)
	}
}

func (s *UDPSubscription) takeBuffer() []byte {
	select {
	case b := <-s.free:
		return b[:0]
	default:
		return make([]byte, 0, 4096)
	}
}

func (s *UDPSubscription) recycle(b []byte) {
	select {
	case s.free <- b:
	default:
	}
}

func (s *UDPSubscription) Poll(handler FragmentHandler, fragmentLimit int) (int, error) {
	if s.closed.Load() {
		return 0, ErrTransportClosed
	}
	count := 0
	for count < fragmentLimit {
		select {
		case f := <-s.frames:
			s.position += int64(len(f.data))
			err := handler(f.data, 0, len(f.data), FragmentMeta{
				StreamID:  s.streamID,
				SessionID: f.sessionID,
				Position:  s.position,
			})
			if addr, st, ok := s.consumed(f.sessionID, len(f.data)); ok {
				s.sendStatus(f.sessionID, addr, st)
			}
			s.recycle(f.data)
			count++
			if err != nil {
				return count, err
			}
		default:
			return count, nil
		}
	}
	return count, nil
}

func (s *UDPSubscription) IsConnected() bool {
	if s.closed.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions) > 0
}

func (s *UDPSubscription) StreamID() int32 {
	return s.streamID
}

func (s *UDPSubscription) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.closing)
	err := s.conn.Close()
	<-s.done
	return err
}
