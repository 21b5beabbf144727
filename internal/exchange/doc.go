// Package exchange wires the Bond codec to the transport port.
//
// Producer encodes one record per index and offers it, retrying the same
// index while the publication reports flow control. Consumer polls a bounded
// batch per duty cycle, decodes each fragment, hands it to a Sink and trips
// the shared barrier once the expected count has arrived. ClientAgent gates a
// remote Producer behind the connection state machine. Exchange runs the
// agents for one role and tears everything down in reverse order.
package exchange
