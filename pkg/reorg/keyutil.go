package reorg

import "encoding/binary"

// keyBytes renders a 64-bit integer key as its big-endian byte
// representation; the segmented path uses 64-bit big-endian integer keys
// throughout.
func keyBytes(k uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, k)
	return b
}

// keyFromBytes is the inverse of keyBytes.
func keyFromBytes(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// commonPrefixLen returns the number of leading bytes shared by a and b.
func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}
