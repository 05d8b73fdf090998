package storage

import (
	"sync/atomic"
	"time"

	"github.com/linxGnu/grocksdb"

	"github.com/umit/petracache/internal/codec"
)

// ttlCompactionFilter elides on-disk rows whose TTL has passed or whose
// epoch prefix has been superseded by a flush_all. Per spec §4.4/§9, now
// is sampled once per compaction run (at filter construction), not per
// key, so the decision stays O(12 bytes) and lock-free.
type ttlCompactionFilter struct {
	now          uint64
	currentEpoch uint64
}

var _ grocksdb.CompactionFilter = (*ttlCompactionFilter)(nil)

func (f *ttlCompactionFilter) Name() string { return "petracache-ttl" }

// Filter decodes only the 8-byte expiry header (or the 8-byte key epoch),
// never the value payload, matching the teacher's header-only framing
// discipline in requests.go/responses.go.
func (f *ttlCompactionFilter) Filter(level int, key, value []byte) (remove bool, newValue []byte) {
	if epoch, ok := decodeKeyEpoch(key); ok && epoch < f.currentEpoch {
		return true, nil
	}

	expireAt, err := codec.DecodeExpireAt(value)
	if err != nil {
		// Conservative: keep anything we can't decode (spec §7).
		return false, nil
	}
	if codec.IsExpired(expireAt, f.now) {
		return true, nil
	}
	return false, nil
}

// ttlCompactionFilterFactory hands every compaction run a fresh filter
// with its own now/epoch snapshot.
type ttlCompactionFilterFactory struct {
	epoch *atomic.Uint64
}

var _ grocksdb.CompactionFilterFactory = (*ttlCompactionFilterFactory)(nil)

func (f *ttlCompactionFilterFactory) CreateCompactionFilter(
	context *grocksdb.CompactionFilterContext,
) grocksdb.CompactionFilter {
	return &ttlCompactionFilter{
		now:          uint64(time.Now().Unix()),
		currentEpoch: f.epoch.Load(),
	}
}

func (f *ttlCompactionFilterFactory) Name() string { return "petracache-ttl-factory" }
