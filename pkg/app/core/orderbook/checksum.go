package orderbook

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"
)

// Checksum hashes an L2 view so subscribers can verify a locally maintained
// copy of the book. Levels are hashed in the order given: bids then asks,
// each as (price, qty) big-endian.
func Checksum(bids, asks []PriceLevel) [32]byte {
	h := sha3.New256()
	var buf [8]byte
	write := func(levels []PriceLevel) {
		binary.BigEndian.PutUint64(buf[:], uint64(len(levels)))
		h.Write(buf[:])
		for _, l := range levels {
			binary.BigEndian.PutUint64(buf[:], uint64(l.Price))
			h.Write(buf[:])
			binary.BigEndian.PutUint64(buf[:], uint64(l.Qty))
			h.Write(buf[:])
		}
	}
	write(bids)
	write(asks)

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
