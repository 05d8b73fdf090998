package storage

import "encoding/binary"

// epochKeyLen is the fixed 8-byte big-endian epoch prefix on every
// on-disk key. Big-endian keeps keys from the same epoch lexically
// ordered the same way across compactions, which matters for the
// snapshot-iteration guarantee C4 relies on.
const epochKeyLen = 8

// encodeKey prefixes key with the epoch it was (or will be) written
// under, implementing §9 design (b) for flush_all: a bump of the epoch
// counter invalidates every previously-written key in O(1), since reads
// always encode with the *current* epoch and never see older rows.
func encodeKey(epoch uint64, key []byte) []byte {
	out := make([]byte, epochKeyLen+len(key))
	binary.BigEndian.PutUint64(out[:epochKeyLen], epoch)
	copy(out[epochKeyLen:], key)
	return out
}

// decodeKeyEpoch extracts the epoch prefix from an on-disk key, used by
// the compaction filter to drop rows from superseded epochs.
func decodeKeyEpoch(onDiskKey []byte) (epoch uint64, ok bool) {
	if len(onDiskKey) < epochKeyLen {
		return 0, false
	}
	return binary.BigEndian.Uint64(onDiskKey[:epochKeyLen]), true
}
