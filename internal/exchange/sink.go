package exchange

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/danmuck/bondx/internal/protocol"
)

// Sink receives every decoded record with its 1-based message index. The
// record's Desc aliases the transport buffer; Clone it to keep it.
type Sink interface {
	Report(index uint64, hdr protocol.MessageHeader, rec protocol.BondRecord)
}

type SinkFunc func(index uint64, hdr protocol.MessageHeader, rec protocol.BondRecord)

func (f SinkFunc) Report(index uint64, hdr protocol.MessageHeader, rec protocol.BondRecord) {
	f(index, hdr, rec)
}

// MultiSink fans a record out to several sinks in order.
type MultiSink []Sink

func (m MultiSink) Report(index uint64, hdr protocol.MessageHeader, rec protocol.BondRecord) {
	for _, s := range m {
		s.Report(index, hdr, rec)
	}
}

// LogSink writes one structured event per record.
type LogSink struct {
	Logger zerolog.Logger
}

func (s LogSink) Report(index uint64, hdr protocol.MessageHeader, rec protocol.BondRecord) {
	s.Logger.Info().
		Uint64("index", index).
		Uint16("template_id", hdr.TemplateID).
		Uint16("version", hdr.Version).
		Int64("serial_number", rec.SerialNumber).
		Int32("expiration", rec.Expiration).
		Stringer("available", rec.Available).
		Stringer("rating", rec.Rating).
		Str("code", rec.CodeString()).
		Ints64("some_numbers", rec.SomeNumbers[:]).
		Bytes("desc", rec.Desc).
		Msg("bond")
}

// TextSink writes the framed text block per record.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (s *TextSink) Report(index uint64, _ protocol.MessageHeader, rec protocol.BondRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "//////////////////////// MSG TOP [%d] ////////////////////////\n", index)
	fmt.Fprintf(s.w, "%s\n", rec.Describe())
	fmt.Fprintf(s.w, "//////////////////////// MSG END [%d] ////////////////////////\n", index)
}
