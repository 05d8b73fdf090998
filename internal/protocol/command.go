// Package protocol implements the memcached ASCII text protocol: framing
// incoming commands out of a rolling read buffer (zero-copy where
// possible) and formatting outgoing reply lines.
package protocol

// Kind discriminates the Command variants the parser can produce.
type Kind uint8

const (
	// KindGet covers both "get" and "gets" (CAS is never reported).
	KindGet Kind = iota
	KindSet
	KindDelete
	KindVersion
	KindQuit
	KindStats
	KindFlushAll
)

// Command is a parsed request. Key and Data slices are borrowed from the
// connection's read buffer; callers that must outlive the next read (e.g.
// handing work to a blocking storage worker) are responsible for copying.
type Command struct {
	Kind Kind

	// Get
	Keys [][]byte

	// Set
	Key     []byte
	Flags   uint32
	Exptime int64
	Data    []byte

	// Delete / Set
	NoReply bool

	// FlushAll
	DelaySeconds int64
}

// Clone returns a Command whose byte slices are independently owned,
// safe to retain past the lifetime of the buffer it was parsed from.
func (c Command) Clone() Command {
	out := c
	if c.Key != nil {
		out.Key = append([]byte(nil), c.Key...)
	}
	if c.Data != nil {
		out.Data = append([]byte(nil), c.Data...)
	}
	if c.Keys != nil {
		out.Keys = make([][]byte, len(c.Keys))
		for i, k := range c.Keys {
			out.Keys[i] = append([]byte(nil), k...)
		}
	}
	return out
}
