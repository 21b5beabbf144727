package protocol

import (
	"encoding/binary"
	"fmt"
)

// Decode reads one Bond frame at offset and returns the header, the record
// and the number of bytes consumed.
//
// The header's block length is the acting block length: a longer block from a
// newer schema version is skipped over, a shorter one cannot carry the fixed
// fields and is reported as ErrTruncatedFrame.
func Decode(buf []byte, offset int) (MessageHeader, BondRecord, int, error) {
	hdr, err := DecodeHeader(buf, offset)
	if err != nil {
		return MessageHeader{}, BondRecord{}, 0, err
	}
	if hdr.TemplateID != BondTemplateID || hdr.SchemaID != SchemaID {
		return hdr, BondRecord{}, 0, &SchemaMismatchError{
			TemplateID:     hdr.TemplateID,
			SchemaID:       hdr.SchemaID,
			WantTemplateID: BondTemplateID,
			WantSchemaID:   SchemaID,
		}
	}
	block := int(hdr.BlockLength)
	if block < BondBlockLength {
		return hdr, BondRecord{}, 0, fmt.Errorf("%w: block length %d below %d", ErrTruncatedFrame, block, BondBlockLength)
	}

	pos := offset + HeaderSize
	if have := len(buf) - pos; have < block+DescLengthSize {
		return hdr, BondRecord{}, 0, truncated("fixed block", block+DescLengthSize, have)
	}

	b := buf[pos : pos+BondBlockLength]
	rec := BondRecord{
		SerialNumber: int64(binary.LittleEndian.Uint64(b[offSerialNumber:])),
		Expiration:   int32(binary.LittleEndian.Uint32(b[offExpiration:])),
		Available:    booleanFromByte(b[offAvailable]),
		Rating:       ratingFromByte(b[offRating]),
	}
	copy(rec.Code[:], b[offCode:offCode+CodeLength])
	for i := range rec.SomeNumbers {
		rec.SomeNumbers[i] = int64(binary.LittleEndian.Uint64(b[offSomeNumbers+i*8:]))
	}
	pos += block

	descLen := binary.LittleEndian.Uint32(buf[pos : pos+DescLengthSize])
	pos += DescLengthSize
	if have := len(buf) - pos; uint64(descLen) > uint64(have) {
		return hdr, BondRecord{}, 0, truncated("desc", int(descLen), have)
	}
	end := pos + int(descLen)
	rec.Desc = buf[pos:end:end]
	return hdr, rec, end - offset, nil
}
