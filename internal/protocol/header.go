package protocol

import "encoding/binary"

// Schema identity for every frame this package writes.
const (
	SchemaID       uint16 = 1
	SchemaVersion  uint16 = 0
	BondTemplateID uint16 = 1
)

// HeaderSize is the encoded size of MessageHeader.
const HeaderSize = 8

// MessageHeader prefixes every frame.
type MessageHeader struct {
	BlockLength uint16
	TemplateID  uint16
	SchemaID    uint16
	Version     uint16
}

// EncodeHeader writes h at offset. buf must hold HeaderSize bytes from offset.
func EncodeHeader(buf []byte, offset int, h MessageHeader) {
	b := buf[offset : offset+HeaderSize]
	binary.LittleEndian.PutUint16(b[0:2], h.BlockLength)
	binary.LittleEndian.PutUint16(b[2:4], h.TemplateID)
	binary.LittleEndian.PutUint16(b[4:6], h.SchemaID)
	binary.LittleEndian.PutUint16(b[6:8], h.Version)
}

// DecodeHeader reads a header at offset without checking schema identity.
func DecodeHeader(buf []byte, offset int) (MessageHeader, error) {
	if offset < 0 || offset > len(buf) {
		return MessageHeader{}, truncated("header", HeaderSize, 0)
	}
	if have := len(buf) - offset; have < HeaderSize {
		return MessageHeader{}, truncated("header", HeaderSize, have)
	}
	b := buf[offset : offset+HeaderSize]
	return MessageHeader{
		BlockLength: binary.LittleEndian.Uint16(b[0:2]),
		TemplateID:  binary.LittleEndian.Uint16(b[2:4]),
		SchemaID:    binary.LittleEndian.Uint16(b[4:6]),
		Version:     binary.LittleEndian.Uint16(b[6:8]),
	}, nil
}

func bondHeader() MessageHeader {
	return MessageHeader{
		BlockLength: BondBlockLength,
		TemplateID:  BondTemplateID,
		SchemaID:    SchemaID,
		Version:     SchemaVersion,
	}
}
