// Package storage wraps the LSM engine (grocksdb) behind the get/
// multi_get/set/delete/flush_all contract of spec §4.4, implementing
// memcached's lazy-expiration-on-read semantics and a background TTL
// compaction filter. It bridges the engine's blocking calls onto the
// connection drivers' cooperative goroutines via internal/taskpool,
// choosing per-op whether to block the caller's goroutine inline (cheap,
// expected-cache-hit point gets) or hand off to the pool (batch gets and
// every write, which may hit the WAL) — the design §9 leaves open, here
// resolved in favor of inline point gets.
package storage

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash"
	"github.com/linxGnu/grocksdb"

	"github.com/umit/petracache/internal/codec"
	"github.com/umit/petracache/internal/config"
	"github.com/umit/petracache/internal/taskpool"
	"github.com/umit/petracache/pkg/logger"
)

const minKeyLen = 1
const maxKeyLen = 250

// keyLogSampleRate logs at most 1-in-N lazy-expiration deletes at debug
// level, keyed by xxhash(key) so the sample is deterministic per key
// rather than time-based.
const keyLogSampleRate = 64

// Hit is one result row from MultiGet; Index maps it back to the
// caller's original key slice, since misses and expired keys are
// dropped from the result (spec §4.4).
type Hit struct {
	Index int
	Value codec.Value
}

// Adapter wraps a grocksdb.DB with memcached TTL semantics.
type Adapter struct {
	db    *grocksdb.DB
	ro    *grocksdb.ReadOptions
	wo    *grocksdb.WriteOptions
	opts  *grocksdb.Options
	pool  *taskpool.Pool
	epoch atomic.Uint64
}

// Open configures and opens the engine per the storage.* Config fields,
// installing the TTL compaction filter when enabled.
func Open(cfg config.Storage, offloadConcurrency int) (*Adapter, error) {
	bbto := grocksdb.NewDefaultBlockBasedTableOptions()
	bbto.SetBlockCache(grocksdb.NewLRUCache(uint64(cfg.BlockCacheSize)))

	opts := grocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	opts.SetBlockBasedTableFactory(bbto)
	opts.SetWriteBufferSize(uint64(cfg.WriteBufferSize))
	opts.SetMaxWriteBufferNumber(cfg.MaxWriteBufferNumber)
	opts.SetTargetFileSizeBase(uint64(cfg.TargetFileSizeBase))
	opts.SetMaxBackgroundJobs(cfg.MaxBackgroundJobs)
	if cfg.EnableCompression {
		opts.SetCompression(grocksdb.SnappyCompression)
	} else {
		opts.SetCompression(grocksdb.NoCompression)
	}

	a := &Adapter{
		ro:   grocksdb.NewDefaultReadOptions(),
		wo:   grocksdb.NewDefaultWriteOptions(),
		opts: opts,
		pool: taskpool.New(offloadConcurrency),
	}

	if cfg.EnableTTLCompaction {
		opts.SetCompactionFilterFactory(&ttlCompactionFilterFactory{epoch: &a.epoch})
	}

	db, err := grocksdb.OpenDb(opts, cfg.DBPath)
	if err != nil {
		return nil, wrapBackendErr("open", err)
	}
	a.db = db
	return a, nil
}

// Close flushes and releases the engine handle.
func (a *Adapter) Close() {
	a.pool.Close()
	a.db.Close()
	a.ro.Destroy()
	a.wo.Destroy()
	a.opts.Destroy()
}

func validateKeyLen(key []byte) error {
	if len(key) < minKeyLen || len(key) > maxKeyLen {
		return newStorageErr(ErrInvalidKey, "key length out of range", nil)
	}
	return nil
}

func nowUnix() uint64 { return uint64(time.Now().Unix()) }

// Get returns the live value for key, or (Value{}, false, nil) if it is
// absent or expired. An expired entry is best-effort deleted before
// returning; the delete's own failure is never surfaced to the caller
// (spec §4.4's lazy-expiration race).
func (a *Adapter) Get(ctx context.Context, key []byte) (codec.Value, bool, error) {
	if err := validateKeyLen(key); err != nil {
		return codec.Value{}, false, err
	}

	epoch := a.epoch.Load()
	onDiskKey := encodeKey(epoch, key)

	slice, err := a.db.Get(a.ro, onDiskKey)
	if err != nil {
		return codec.Value{}, false, wrapBackendErr("get", err)
	}
	defer slice.Free()

	if !slice.Exists() {
		return codec.Value{}, false, nil
	}

	v, err := codec.Decode(slice.Data())
	if err != nil {
		return codec.Value{}, false, newStorageErr(ErrCorruption, "decode stored record", err)
	}

	if codec.IsExpired(v.ExpireAt, nowUnix()) {
		a.lazyDelete(epoch, key)
		return codec.Value{}, false, nil
	}

	return codec.Value{ExpireAt: v.ExpireAt, Flags: v.Flags, Data: append([]byte(nil), v.Data...)}, true, nil
}

func (a *Adapter) lazyDelete(epoch uint64, key []byte) {
	if xxhash.Sum64(key)%keyLogSampleRate == 0 {
		logger.Debugf("storage: lazily deleting expired key %q", key)
	}
	// Best-effort: a failure here must never propagate to the reader.
	if err := a.db.Delete(a.wo, encodeKey(epoch, key)); err != nil {
		logger.Warnf("storage: lazy delete failed for key %q: %v", key, err)
	}
}

// MultiGet executes one batched engine call over keys, dropping expired
// and missing entries. Hits keep the relative order of the requested
// keys; callers index back via Hit.Index.
func (a *Adapter) MultiGet(ctx context.Context, keys [][]byte) ([]Hit, error) {
	for _, k := range keys {
		if err := validateKeyLen(k); err != nil {
			return nil, err
		}
	}

	res := <-a.pool.Submit(ctx, func() (any, error) {
		epoch := a.epoch.Load()
		onDiskKeys := make([][]byte, len(keys))
		for i, k := range keys {
			onDiskKeys[i] = encodeKey(epoch, k)
		}

		slices, err := a.db.MultiGet(a.ro, onDiskKeys...)
		if err != nil {
			return nil, err
		}
		defer slices.Destroy()

		now := nowUnix()
		hits := make([]Hit, 0, len(keys))
		for i, s := range slices {
			if !s.Exists() {
				continue
			}
			v, derr := codec.Decode(s.Data())
			if derr != nil {
				logger.Warnf("storage: corrupt record for key %q during multi_get", keys[i])
				continue
			}
			if codec.IsExpired(v.ExpireAt, now) {
				a.lazyDelete(epoch, keys[i])
				continue
			}
			hits = append(hits, Hit{
				Index: i,
				Value: codec.Value{ExpireAt: v.ExpireAt, Flags: v.Flags, Data: append([]byte(nil), v.Data...)},
			})
		}
		return hits, nil
	})

	if res.Err != nil {
		return nil, wrapBackendErr("multi_get", res.Err)
	}
	return res.Value.([]Hit), nil
}

// Set stores value under key, replacing any existing entry.
func (a *Adapter) Set(ctx context.Context, key []byte, value codec.Value) error {
	if err := validateKeyLen(key); err != nil {
		return err
	}

	res := <-a.pool.Submit(ctx, func() (any, error) {
		epoch := a.epoch.Load()
		return nil, a.db.Put(a.wo, encodeKey(epoch, key), codec.Encode(value))
	})
	if res.Err != nil {
		return wrapBackendErr("set", res.Err)
	}
	return nil
}

// Delete removes key, reporting whether a live entry existed.
func (a *Adapter) Delete(ctx context.Context, key []byte) (bool, error) {
	if err := validateKeyLen(key); err != nil {
		return false, err
	}

	_, found, err := a.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	res := <-a.pool.Submit(ctx, func() (any, error) {
		epoch := a.epoch.Load()
		return nil, a.db.Delete(a.wo, encodeKey(epoch, key))
	})
	if res.Err != nil {
		return false, wrapBackendErr("delete", res.Err)
	}
	return true, nil
}

// FlushAll logically deletes every key by bumping the epoch counter
// (§9 design (b)): subsequent reads/writes use the new epoch and never
// see rows written under a prior one; the compaction filter reclaims the
// orphaned rows in the background. delay is accepted for wire
// compatibility but not honored — deferred flush is explicitly left
// unimplemented rather than guessed at, see DESIGN.md.
func (a *Adapter) FlushAll(ctx context.Context, delaySeconds int64) error {
	a.epoch.Add(1)
	return nil
}
