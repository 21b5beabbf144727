package protocol

import (
	"encoding/binary"
	"fmt"
)

// EncodedLength returns the frame size Encode writes for rec.
func EncodedLength(rec BondRecord) int {
	return HeaderSize + BondBlockLength + DescLengthSize + len(rec.Desc)
}

// Encode writes rec as a complete frame at offset and returns the bytes written.
// The caller sizes buf; a short buffer is a programming error and panics with
// an error wrapping ErrBufferTooSmall.
func Encode(buf []byte, offset int, rec BondRecord) int {
	n := EncodedLength(rec)
	if offset < 0 || len(buf)-offset < n {
		panic(fmt.Errorf("%w: frame needs %d bytes at offset %d, capacity %d", ErrBufferTooSmall, n, offset, len(buf)))
	}

	EncodeHeader(buf, offset, bondHeader())

	b := buf[offset+HeaderSize : offset+HeaderSize+BondBlockLength]
	binary.LittleEndian.PutUint64(b[offSerialNumber:], uint64(rec.SerialNumber))
	binary.LittleEndian.PutUint32(b[offExpiration:], uint32(rec.Expiration))
	b[offAvailable] = byte(rec.Available)
	b[offRating] = byte(rec.Rating)
	copy(b[offCode:offCode+CodeLength], rec.Code[:])
	for i, v := range rec.SomeNumbers {
		binary.LittleEndian.PutUint64(b[offSomeNumbers+i*8:], uint64(v))
	}

	v := buf[offset+HeaderSize+BondBlockLength : offset+n]
	binary.LittleEndian.PutUint32(v[0:DescLengthSize], uint32(len(rec.Desc)))
	copy(v[DescLengthSize:], rec.Desc)
	return n
}
