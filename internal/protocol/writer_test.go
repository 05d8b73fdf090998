package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReplyLines(t *testing.T) {
	var w Writer
	assert.Equal(t, "STORED\r\n", string(w.Stored(nil)))
	assert.Equal(t, "DELETED\r\n", string(w.Deleted(nil)))
	assert.Equal(t, "NOT_FOUND\r\n", string(w.NotFound(nil)))
	assert.Equal(t, "END\r\n", string(w.End(nil)))
	assert.Equal(t, "VERSION 1.0\r\n", string(w.Version(nil, "1.0")))
	assert.Equal(t, "CLIENT_ERROR bad\r\n", string(w.ClientError(nil, "bad")))
}

func TestWriterValueBlock(t *testing.T) {
	var w Writer
	got := w.Value(nil, []byte("foo"), 7, []byte("bar"))
	assert.Equal(t, "VALUE foo 7 3\r\nbar\r\n", string(got))
}

func TestFormatSetRoundTrip(t *testing.T) {
	var w Writer
	p := NewParser(DefaultLimits)

	rendered := w.FormatSet(nil, []byte("foo"), 7, 0, []byte("bar"), false)
	parsed := p.Parse(rendered)
	require.Equal(t, StatusOK, parsed.Status)
	assert.Equal(t, len(rendered), parsed.Consumed)
	assert.Equal(t, KindSet, parsed.Command.Kind)
	assert.Equal(t, "foo", string(parsed.Command.Key))
	assert.Equal(t, uint32(7), parsed.Command.Flags)
	assert.Equal(t, "bar", string(parsed.Command.Data))
}

func TestFormatSetRoundTripNoReply(t *testing.T) {
	var w Writer
	p := NewParser(DefaultLimits)

	rendered := w.FormatSet(nil, []byte("k"), 0, 100, []byte("v"), true)
	parsed := p.Parse(rendered)
	require.Equal(t, StatusOK, parsed.Status)
	assert.True(t, parsed.Command.NoReply)
	assert.Equal(t, len(rendered), parsed.Consumed)
}
