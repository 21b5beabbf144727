// Package transport is the publish/poll port the exchange agents talk to.
//
// A Driver hands out Publications and Subscriptions for a channel URI and a
// stream id. Two channels exist: "ipc", an in-process stream where every
// subscription owns a bounded ring, and "udp://host:port", a datagram overlay
// whose publication becomes connected after a setup/status exchange with the
// subscription bound at that endpoint. The subscription then advertises a
// receiver window in status datagrams and the publication refuses frames
// beyond it, so an accepted frame is never lost to a full socket buffer.
//
// Offer never blocks. Flow control is reported through the PublishResult
// sentinels and the caller retries the same frame on a later duty cycle.
package transport
