package protocol

import (
	"bytes"
	"fmt"
	"strings"
)

// Bond fixed block layout.
const (
	CodeLength        = 6
	SomeNumbersLength = 4
	DescLengthSize    = 4

	offSerialNumber = 0
	offExpiration   = 8
	offAvailable    = 12
	offRating       = 13
	offCode         = 14
	offSomeNumbers  = 20

	BondBlockLength = offSomeNumbers + SomeNumbersLength*8
)

// BooleanType is the Bond availability flag.
type BooleanType uint8

const (
	BooleanF    BooleanType = 0
	BooleanT    BooleanType = 1
	BooleanNull BooleanType = 255
)

func (b BooleanType) String() string {
	switch b {
	case BooleanF:
		return "F"
	case BooleanT:
		return "T"
	default:
		return "NULL_VAL"
	}
}

func booleanFromByte(v byte) BooleanType {
	switch BooleanType(v) {
	case BooleanF, BooleanT:
		return BooleanType(v)
	default:
		return BooleanNull
	}
}

// Rating is a single ASCII character grade.
type Rating uint8

const (
	RatingNull Rating = 0
	RatingA    Rating = 'A'
	RatingB    Rating = 'B'
	RatingC    Rating = 'C'
)

func (r Rating) String() string {
	switch r {
	case RatingA, RatingB, RatingC:
		return string(rune(r))
	default:
		return "NULL_VAL"
	}
}

func ratingFromByte(v byte) Rating {
	switch Rating(v) {
	case RatingA, RatingB, RatingC:
		return Rating(v)
	default:
		return RatingNull
	}
}

// BondRecord is the only payload schema carried on the wire.
//
// A record returned by Decode aliases the decoded buffer through Desc;
// call Clone before keeping it past the fragment callback.
type BondRecord struct {
	SerialNumber int64
	Expiration   int32
	Available    BooleanType
	Rating       Rating
	Code         [CodeLength]byte
	SomeNumbers  [SomeNumbersLength]int64
	Desc         []byte
}

// CodeFromString copies up to CodeLength ASCII bytes of s, zero padding the rest.
func CodeFromString(s string) [CodeLength]byte {
	var code [CodeLength]byte
	copy(code[:], s)
	return code
}

// CodeString returns the code without trailing zero padding.
func (r BondRecord) CodeString() string {
	return string(bytes.TrimRight(r.Code[:], "\x00"))
}

// Clone returns a copy that owns its Desc bytes.
func (r BondRecord) Clone() BondRecord {
	out := r
	if r.Desc != nil {
		out.Desc = append([]byte(nil), r.Desc...)
	}
	return out
}

// Equal reports field-for-field equality, treating nil and empty Desc alike.
func (r BondRecord) Equal(o BondRecord) bool {
	return r.SerialNumber == o.SerialNumber &&
		r.Expiration == o.Expiration &&
		r.Available == o.Available &&
		r.Rating == o.Rating &&
		r.Code == o.Code &&
		r.SomeNumbers == o.SomeNumbers &&
		bytes.Equal(r.Desc, o.Desc)
}

// Describe renders the record one field per line.
func (r BondRecord) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "bond.serialNumber=%d\n", r.SerialNumber)
	fmt.Fprintf(&sb, "bond.expiration=%d\n", r.Expiration)
	fmt.Fprintf(&sb, "bond.available=%s\n", r.Available)
	fmt.Fprintf(&sb, "bond.rating=%s\n", r.Rating)
	fmt.Fprintf(&sb, "bond.code=%s\n", r.CodeString())
	sb.WriteString("bond.someNumbers=")
	for _, n := range r.SomeNumbers {
		fmt.Fprintf(&sb, "%d, ", n)
	}
	fmt.Fprintf(&sb, "\nbond.desc=%s", r.Desc)
	return sb.String()
}
