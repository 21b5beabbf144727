// Package protocol owns the Bond wire contract.
//
// Ownership boundary:
// - message header encode/decode
// - Bond record fixed block and var-data layout
// - schema identity checks and decode errors
//
// Frame layout (little-endian):
//
//	header  [blockLength u16][templateId u16][schemaId u16][version u16]
//	block   serialNumber i64, expiration i32, available u8, rating u8,
//	        code [6]byte, someNumbers [4]i64
//	desc    [length u32][bytes]
package protocol
