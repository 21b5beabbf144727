package exchange

import "github.com/danmuck/bondx/internal/protocol"

const (
	BondCode = "BOND07"
	BondDesc = "USA GOV BOND [expiration=2025, discount=10%]"

	// EncodeBufferSize is the per-producer encode buffer.
	EncodeBufferSize = 4096

	serialBase     = 1230
	expirationBase = 2025
)

var (
	bondCode = protocol.CodeFromString(BondCode)
	bondDesc = []byte(BondDesc)
)

// BuildBond derives the record for message index i (1-based). Desc is shared
// and must be treated as read-only.
func BuildBond(i uint64) protocol.BondRecord {
	n := int64(i)
	return protocol.BondRecord{
		SerialNumber: serialBase + n,
		Expiration:   int32(expirationBase + n),
		Available:    protocol.BooleanT,
		Rating:       protocol.RatingB,
		Code:         bondCode,
		SomeNumbers:  [protocol.SomeNumbersLength]int64{10 * n, 20 * n, 30 * n, 40 * n},
		Desc:         bondDesc,
	}
}
