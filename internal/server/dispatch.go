package server

import (
	"context"
	"time"

	"github.com/umit/petracache/internal/codec"
	"github.com/umit/petracache/internal/metrics"
	"github.com/umit/petracache/internal/protocol"
	"github.com/umit/petracache/internal/storage"
)

// Storage is the subset of storage.Adapter the dispatcher needs; a narrow
// interface keeps connection tests independent of a real engine.
type Storage interface {
	Get(ctx context.Context, key []byte) (codec.Value, bool, error)
	MultiGet(ctx context.Context, keys [][]byte) ([]storage.Hit, error)
	Set(ctx context.Context, key []byte, value codec.Value) error
	Delete(ctx context.Context, key []byte) (bool, error)
	FlushAll(ctx context.Context, delaySeconds int64) error
}

// dispatcher maps a parsed Command onto storage operations and formats
// the reply, honoring noreply (spec §4.5).
type dispatcher struct {
	store   Storage
	metrics *metrics.Metrics
	writer  protocol.Writer
	version string
}

func newDispatcher(store Storage, m *metrics.Metrics, version string) *dispatcher {
	return &dispatcher{store: store, metrics: m, writer: protocol.Writer{}, version: version}
}

// dispatchResult signals the connection driver whether to close after
// flushing this reply (e.g. Quit).
type dispatchResult struct {
	closeAfter bool
}

func opName(k protocol.Kind) string {
	switch k {
	case protocol.KindGet:
		return "get"
	case protocol.KindSet:
		return "set"
	case protocol.KindDelete:
		return "delete"
	case protocol.KindVersion:
		return "version"
	case protocol.KindQuit:
		return "quit"
	case protocol.KindStats:
		return "stats"
	case protocol.KindFlushAll:
		return "flush_all"
	default:
		return "unknown"
	}
}

func (d *dispatcher) dispatch(ctx context.Context, cmd protocol.Command, out []byte) ([]byte, dispatchResult) {
	start := time.Now()
	op := opName(cmd.Kind)
	var err error

	switch cmd.Kind {
	case protocol.KindGet:
		out, err = d.handleGet(ctx, cmd, out)
	case protocol.KindSet:
		out, err = d.handleSet(ctx, cmd, out)
	case protocol.KindDelete:
		out, err = d.handleDelete(ctx, cmd, out)
	case protocol.KindVersion:
		out = d.writer.Version(out, d.version)
	case protocol.KindStats:
		out = d.writer.Stat(out, "version", d.version)
		out = d.writer.End(out)
	case protocol.KindFlushAll:
		out, err = d.handleFlushAll(ctx, cmd, out)
	case protocol.KindQuit:
		d.metrics.ObserveCommand(op, time.Since(start).Seconds(), nil)
		return out, dispatchResult{closeAfter: true}
	}

	d.metrics.ObserveCommand(op, time.Since(start).Seconds(), err)
	return out, dispatchResult{}
}

func (d *dispatcher) handleGet(ctx context.Context, cmd protocol.Command, out []byte) ([]byte, error) {
	hits, err := d.store.MultiGet(ctx, cmd.Keys)
	if err != nil {
		out = d.writer.ServerError(out, err.Error())
		return out, err
	}
	for _, h := range hits {
		out = d.writer.Value(out, cmd.Keys[h.Index], h.Value.Flags, h.Value.Data)
	}
	if len(hits) > 0 {
		d.metrics.HitsTotal.Add(float64(len(hits)))
	}
	if misses := len(cmd.Keys) - len(hits); misses > 0 {
		d.metrics.MissesTotal.Add(float64(misses))
	}
	out = d.writer.End(out)
	return out, nil
}

func (d *dispatcher) handleSet(ctx context.Context, cmd protocol.Command, out []byte) ([]byte, error) {
	value := codec.Value{
		ExpireAt: codec.ComputeExpireAt(cmd.Exptime, nowUnix()),
		Flags:    cmd.Flags,
		Data:     cmd.Data,
	}
	err := d.store.Set(ctx, cmd.Key, value)
	if cmd.NoReply {
		return out, err
	}
	if err != nil {
		return d.writer.ServerError(out, err.Error()), err
	}
	return d.writer.Stored(out), nil
}

func (d *dispatcher) handleDelete(ctx context.Context, cmd protocol.Command, out []byte) ([]byte, error) {
	existed, err := d.store.Delete(ctx, cmd.Key)
	if cmd.NoReply {
		return out, err
	}
	if err != nil {
		return d.writer.ServerError(out, err.Error()), err
	}
	if existed {
		return d.writer.Deleted(out), nil
	}
	return d.writer.NotFound(out), nil
}

func (d *dispatcher) handleFlushAll(ctx context.Context, cmd protocol.Command, out []byte) ([]byte, error) {
	err := d.store.FlushAll(ctx, cmd.DelaySeconds)
	if cmd.NoReply {
		return out, err
	}
	if err != nil {
		return d.writer.ServerError(out, err.Error()), err
	}
	return d.writer.Ok(out), nil
}

func nowUnix() uint64 { return uint64(time.Now().Unix()) }
