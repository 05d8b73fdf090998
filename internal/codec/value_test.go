package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Value
	}{
		{"never expires", Value{ExpireAt: 0, Flags: 7, Data: []byte("bar")}},
		{"future expiry", Value{ExpireAt: 123456, Flags: 0, Data: []byte("")}},
		{"empty data", Value{ExpireAt: 1, Flags: 42, Data: nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := Encode(tt.v)
			got, err := Decode(raw)
			assert.NoError(t, err)
			assert.Equal(t, tt.v.ExpireAt, got.ExpireAt)
			assert.Equal(t, tt.v.Flags, got.Flags)
			assert.Equal(t, len(tt.v.Data), len(got.Data))
		})
	}
}

func TestDecodeCorruption(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruption)
}

func TestIsExpired(t *testing.T) {
	assert.False(t, IsExpired(0, 1000))
	assert.False(t, IsExpired(1000, 999))
	assert.True(t, IsExpired(1000, 1000))
	assert.True(t, IsExpired(1000, 1001))
}

func TestComputeExpireAt(t *testing.T) {
	const now uint64 = 1_000_000

	assert.Equal(t, Never, ComputeExpireAt(0, now))
	assert.Equal(t, now+10, ComputeExpireAt(10, now))
	assert.Equal(t, now+secondsIn30Days, ComputeExpireAt(secondsIn30Days, now))
	assert.Equal(t, uint64(secondsIn30Days+1), ComputeExpireAt(secondsIn30Days+1, now))
	assert.LessOrEqual(t, ComputeExpireAt(-5, now), now)
	assert.Equal(t, uint64(1), ComputeExpireAt(-5, now))
}

func TestComputeExpireAtOverflow(t *testing.T) {
	got := ComputeExpireAt(100, MaxExpireAt)
	assert.Equal(t, uint64(MaxExpireAt), got)
}
