package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/umit/petracache/internal/metrics"
	"github.com/umit/petracache/internal/protocol"
	"github.com/umit/petracache/pkg/logger"
)

const defaultBufSize = 4096

// bufPools recycles read/write buffers across connection churn, grounded
// on the teacher's bufio.Writer-per-pooled-conn reuse in memcached.go's
// conn type — generalized here to a pair of pools sized from
// Config.Server.Read/WriteBufferSize rather than a package-level
// hardcoded pool, so that configured knob actually governs the
// connection's initial buffer capacity.
type bufPools struct {
	read      sync.Pool
	write     sync.Pool
	readSize  int
	writeSize int
}

// newBufPools builds pools seeded from the configured buffer sizes,
// falling back to defaultBufSize for a non-positive value.
func newBufPools(readSize, writeSize int) *bufPools {
	if readSize <= 0 {
		readSize = defaultBufSize
	}
	if writeSize <= 0 {
		writeSize = defaultBufSize
	}
	p := &bufPools{readSize: readSize, writeSize: writeSize}
	p.read.New = func() any { return make([]byte, 0, readSize) }
	p.write.New = func() any { return make([]byte, 0, writeSize) }
	return p
}

// connection drives one accepted TCP stream through
// read -> parse -> dispatch -> write, per spec §4.6.
type connection struct {
	conn    net.Conn
	parser  *protocol.Parser
	disp    *dispatcher
	metrics *metrics.Metrics
	pools   *bufPools

	readBuf   []byte
	writeBuf  []byte
	readChunk []byte

	idleTimeout time.Duration
	maxBuf      int
}

func newConnection(c net.Conn, p *protocol.Parser, d *dispatcher, idleTimeout time.Duration, m *metrics.Metrics, pools *bufPools) *connection {
	return &connection{
		conn:        c,
		parser:      p,
		disp:        d,
		metrics:     m,
		pools:       pools,
		readBuf:     pools.read.Get().([]byte)[:0],
		writeBuf:    pools.write.Get().([]byte)[:0],
		readChunk:   make([]byte, pools.readSize),
		idleTimeout: idleTimeout,
		maxBuf:      p.Limits.MaxLineLen + p.Limits.MaxValueSize + 2,
	}
}

// serve runs the connection's state machine until the peer disconnects,
// a fatal protocol error occurs, Quit is received, or shutdown fires.
func (c *connection) serve(shutdown <-chan struct{}) {
	defer c.release()

	for {
		if c.idleTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))
		}

		n, err := c.readWithShutdown(c.readChunk, shutdown)
		if err != nil {
			if !errors.Is(err, errShutdown) && !isExpectedClose(err) {
				logger.Warnf("connection %s: read error: %v", c.conn.RemoteAddr(), err)
			}
			return
		}
		c.metrics.BytesIn.Add(float64(n))
		c.readBuf = append(c.readBuf, c.readChunk[:n]...)

		closeAfter, fatal := c.drainBuffer()
		if len(c.writeBuf) > 0 {
			if werr := c.flush(); werr != nil {
				logger.Warnf("connection %s: write error: %v", c.conn.RemoteAddr(), werr)
				return
			}
		}
		if closeAfter || fatal {
			return
		}
		c.compactReadBuffer()
	}
}

var errShutdown = errors.New("connection: shutdown requested")

// readWithShutdown blocks on the socket read but returns errShutdown
// promptly once the shutdown channel fires, by racing a short read
// deadline against the signal — the cooperative-cancellation seam §5
// calls for without requiring per-platform read cancellation primitives.
func (c *connection) readWithShutdown(buf []byte, shutdown <-chan struct{}) (int, error) {
	select {
	case <-shutdown:
		return 0, errShutdown
	default:
	}

	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := c.conn.Read(buf)
		done <- result{n, err}
	}()

	select {
	case r := <-done:
		return r.n, r.err
	case <-shutdown:
		_ = c.conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		r := <-done
		if r.err != nil {
			return 0, errShutdown
		}
		return r.n, r.err
	}
}

// drainBuffer parses and dispatches every complete command currently in
// readBuf, coalescing their replies into one writeBuf flush (spec §4.6).
func (c *connection) drainBuffer() (closeAfter bool, fatal bool) {
	ctx := context.Background()
	offset := 0

	for {
		remaining := c.readBuf[offset:]
		if len(remaining) == 0 {
			break
		}
		if len(remaining) > c.maxBuf {
			c.writeBuf = protocol.Writer{}.ClientError(c.writeBuf, "too large")
			return false, true
		}

		parsed := c.parser.Parse(remaining)
		switch parsed.Status {
		case protocol.StatusNeed:
			goto done
		case protocol.StatusErr:
			perr, _ := parsed.Err.(*protocol.ProtocolError)
			if perr != nil && perr.Fatal() {
				if perr.ServerError() {
					c.writeBuf = protocol.Writer{}.ServerError(c.writeBuf, perr.Error())
				} else {
					c.writeBuf = protocol.Writer{}.ClientError(c.writeBuf, perr.Error())
				}
				return false, true
			}
			c.writeBuf = protocol.Writer{}.Error(c.writeBuf)
			offset += parsed.Consumed
			continue
		case protocol.StatusOK:
			var res dispatchResult
			c.writeBuf, res = c.disp.dispatch(ctx, parsed.Command, c.writeBuf)
			offset += parsed.Consumed
			if res.closeAfter {
				closeAfter = true
				goto done
			}
		}
	}
done:
	c.readBuf = c.readBuf[:copy(c.readBuf, c.readBuf[offset:])]
	return closeAfter, false
}

func (c *connection) flush() error {
	n, err := c.conn.Write(c.writeBuf)
	c.metrics.BytesOut.Add(float64(n))
	c.writeBuf = c.writeBuf[:0]
	return err
}

// compactReadBuffer bounds growth: once consumed bytes have been
// shifted out, reclaim capacity if the buffer's capacity has grown past
// twice maxBuf to avoid unbounded retention from one oversized command.
func (c *connection) compactReadBuffer() {
	if cap(c.readBuf) > c.maxBuf*2 && len(c.readBuf) < c.maxBuf {
		fresh := make([]byte, len(c.readBuf))
		copy(fresh, c.readBuf)
		c.readBuf = fresh
	}
}

func (c *connection) release() {
	_ = c.conn.Close()
	c.pools.read.Put(c.readBuf[:0])   //nolint:staticcheck // pool reuse, not goroutine retention
	c.pools.write.Put(c.writeBuf[:0])
}

func isExpectedClose(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
