package protocol

import (
	"bytes"
	"strconv"
)

// Status is the outcome of a parse attempt over the connection's rolling
// read buffer.
type Status uint8

const (
	// StatusNeed means more bytes are required before the command can be
	// framed. Need holds a lower bound on additional bytes, or 0 if unknown.
	StatusNeed Status = iota
	StatusOK
	StatusErr
)

// Parsed is the result of Parser.Parse.
type Parsed struct {
	Status   Status
	Need     int
	Command  Command
	Consumed int
	Err      error
}

// Limits bounds what a single command frame may contain.
type Limits struct {
	MaxLineLen   int
	MaxValueSize int
}

// DefaultLimits matches spec defaults: an 8 KiB command line and a 1 MiB value.
var DefaultLimits = Limits{
	MaxLineLen:   8 * 1024,
	MaxValueSize: 1 << 20,
}

// Parser is stateless: all mutable state lives in the caller's buffer.
type Parser struct {
	Limits Limits
}

// NewParser builds a Parser with the given limits.
func NewParser(limits Limits) *Parser {
	return &Parser{Limits: limits}
}

var crlf = []byte("\r\n")

// Parse attempts to frame exactly one command out of buf. It never
// retains buf past the call — borrowed Key/Data slices alias into buf
// and must be copied by the caller before the buffer is reused.
func (p *Parser) Parse(buf []byte) Parsed {
	lineEnd := bytes.Index(buf, crlf)
	if lineEnd < 0 {
		if len(buf) > p.Limits.MaxLineLen {
			return Parsed{Status: StatusErr, Err: newErr(ErrLineTooLong, "line too long")}
		}
		return Parsed{Status: StatusNeed, Need: 0}
	}
	if lineEnd > p.Limits.MaxLineLen {
		return Parsed{Status: StatusErr, Err: newErr(ErrLineTooLong, "line too long")}
	}

	line := buf[:lineEnd]
	fields := splitFields(line)
	lineConsumed := lineEnd + 2
	if len(fields) == 0 {
		return Parsed{Status: StatusErr, Err: newErr(ErrUnknownCommand, "unknown command"), Consumed: lineConsumed}
	}

	verb := string(fields[0])
	switch lowerASCII(verb) {
	case "get", "gets":
		return p.parseGet(fields, lineEnd)
	case "set":
		return p.parseSet(fields, buf, lineEnd)
	case "delete":
		return p.parseDelete(fields, lineEnd)
	case "version":
		return Parsed{Status: StatusOK, Command: Command{Kind: KindVersion}, Consumed: lineConsumed}
	case "quit":
		return Parsed{Status: StatusOK, Command: Command{Kind: KindQuit}, Consumed: lineConsumed}
	case "stats":
		return Parsed{Status: StatusOK, Command: Command{Kind: KindStats}, Consumed: lineConsumed}
	case "flush_all":
		return p.parseFlushAll(fields, lineEnd)
	default:
		// Unknown verbs are recoverable (spec §4.2): the full line is
		// still consumed so the connection can keep reading the stream.
		return Parsed{Status: StatusErr, Err: newErr(ErrUnknownCommand, "unknown command"), Consumed: lineConsumed}
	}
}

func (p *Parser) parseGet(fields [][]byte, lineEnd int) Parsed {
	if len(fields) < 2 {
		return Parsed{Status: StatusErr, Err: newErr(ErrMalformedHeader, "bad command line format")}
	}
	keys := fields[1:]
	for _, k := range keys {
		if err := validateKey(k); err != nil {
			return Parsed{Status: StatusErr, Err: err}
		}
	}
	return Parsed{
		Status:   StatusOK,
		Command:  Command{Kind: KindGet, Keys: keys},
		Consumed: lineEnd + 2,
	}
}

func (p *Parser) parseDelete(fields [][]byte, lineEnd int) Parsed {
	if len(fields) < 2 || len(fields) > 3 {
		return Parsed{Status: StatusErr, Err: newErr(ErrMalformedHeader, "bad command line format")}
	}
	key := fields[1]
	if err := validateKey(key); err != nil {
		return Parsed{Status: StatusErr, Err: err}
	}
	noreply := false
	if len(fields) == 3 {
		if lowerASCII(string(fields[2])) != "noreply" {
			return Parsed{Status: StatusErr, Err: newErr(ErrMalformedHeader, "bad command line format")}
		}
		noreply = true
	}
	return Parsed{
		Status:   StatusOK,
		Command:  Command{Kind: KindDelete, Key: key, NoReply: noreply},
		Consumed: lineEnd + 2,
	}
}

func (p *Parser) parseFlushAll(fields [][]byte, lineEnd int) Parsed {
	var delay int64
	noreply := false
	rest := fields[1:]
	if len(rest) > 0 && lowerASCII(string(rest[len(rest)-1])) == "noreply" {
		noreply = true
		rest = rest[:len(rest)-1]
	}
	if len(rest) == 1 {
		v, err := strconv.ParseInt(string(rest[0]), 10, 64)
		if err != nil {
			return Parsed{Status: StatusErr, Err: newErr(ErrMalformedHeader, "bad command line format")}
		}
		delay = v
	} else if len(rest) > 1 {
		return Parsed{Status: StatusErr, Err: newErr(ErrMalformedHeader, "bad command line format")}
	}
	return Parsed{
		Status:   StatusOK,
		Command:  Command{Kind: KindFlushAll, DelaySeconds: delay, NoReply: noreply},
		Consumed: lineEnd + 2,
	}
}

// parseSet handles "set <key> <flags> <exptime> <bytes> [noreply]\r\n<data>\r\n".
func (p *Parser) parseSet(fields [][]byte, buf []byte, lineEnd int) Parsed {
	if len(fields) < 5 || len(fields) > 6 {
		return Parsed{Status: StatusErr, Err: newErr(ErrMalformedHeader, "bad command line format")}
	}
	key := fields[1]
	if err := validateKey(key); err != nil {
		return Parsed{Status: StatusErr, Err: err}
	}

	flags, err := strconv.ParseUint(string(fields[2]), 10, 32)
	if err != nil {
		return Parsed{Status: StatusErr, Err: newErr(ErrMalformedHeader, "bad command line format")}
	}
	exptime, err := strconv.ParseInt(string(fields[3]), 10, 64)
	if err != nil {
		return Parsed{Status: StatusErr, Err: newErr(ErrMalformedHeader, "bad command line format")}
	}
	nbytes, err := strconv.ParseInt(string(fields[4]), 10, 64)
	if err != nil || nbytes < 0 {
		return Parsed{Status: StatusErr, Err: newErr(ErrMalformedHeader, "bad command line format")}
	}
	if int(nbytes) > p.Limits.MaxValueSize {
		return Parsed{Status: StatusErr, Err: newErr(ErrValueTooLarge, "object too large for cache")}
	}

	noreply := false
	if len(fields) == 6 {
		if lowerASCII(string(fields[5])) != "noreply" {
			return Parsed{Status: StatusErr, Err: newErr(ErrMalformedHeader, "bad command line format")}
		}
		noreply = true
	}

	headerConsumed := lineEnd + 2
	need := int(nbytes) + 2
	if len(buf)-headerConsumed < need {
		return Parsed{Status: StatusNeed, Need: need - (len(buf) - headerConsumed)}
	}

	data := buf[headerConsumed : headerConsumed+int(nbytes)]
	trailer := buf[headerConsumed+int(nbytes) : headerConsumed+need]
	if !bytes.Equal(trailer, crlf) {
		return Parsed{Status: StatusErr, Err: newErr(ErrBadDataBlock, "bad data chunk")}
	}

	return Parsed{
		Status: StatusOK,
		Command: Command{
			Kind:    KindSet,
			Key:     key,
			Flags:   uint32(flags),
			Exptime: exptime,
			Data:    data,
			NoReply: noreply,
		},
		Consumed: headerConsumed + need,
	}
}

// validateKey enforces spec §3: 1..250 bytes, printable ASCII excluding
// space and control characters.
func validateKey(k []byte) *ProtocolError {
	if len(k) < 1 || len(k) > 250 {
		return newErr(ErrInvalidKey, "bad command line format")
	}
	for _, b := range k {
		if b <= 0x20 || b >= 0x7F {
			return newErr(ErrInvalidKey, "bad command line format")
		}
	}
	return nil
}

// splitFields tokenizes a command line on single spaces, the way
// memcached clients format requests (no repeated-space collapsing, to
// keep this a single bytewise scan).
func splitFields(line []byte) [][]byte {
	return bytes.Split(line, []byte(" "))
}

func lowerASCII(s string) string {
	buf := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		buf[i] = c
	}
	return string(buf)
}
