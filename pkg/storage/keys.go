package storage

import (
	"encoding/binary"
)

// Key prefixes for different data types
const (
	prefixBook = "book:"
	keyIDFloor = "meta:id_floor"
)

// bookKey returns the key of the pos-th order in a saved book
// Format: "book:{uvarint len(symbol)}{symbol}:{8-byte big-endian position}"
// Position keeps keys in the order the book was written: price-time priority.
func bookKey(symbol string, pos uint64) []byte {
	return binary.BigEndian.AppendUint64(bookPrefix(symbol), pos)
}

// bookPrefix returns the prefix for all orders of a symbol
// Format: "book:{uvarint len(symbol)}{symbol}:"
// The length makes the prefix of "A" disjoint from that of "A:B".
func bookPrefix(symbol string) []byte {
	k := binary.AppendUvarint([]byte(prefixBook), uint64(len(symbol)))
	k = append(k, symbol...)
	return append(k, ':')
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
