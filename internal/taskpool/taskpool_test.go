package taskpool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRunsTask(t *testing.T) {
	p := New(2)
	defer p.Close()

	res := <-p.Submit(context.Background(), func() (any, error) {
		return 42, nil
	})
	require.NoError(t, res.Err)
	assert.Equal(t, 42, res.Value)
}

func TestSubmitCapsConcurrency(t *testing.T) {
	p := New(1)
	defer p.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	first := p.Submit(context.Background(), func() (any, error) {
		close(started)
		<-release
		return nil, nil
	})

	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	second := p.Submit(ctx, func() (any, error) { return "fast", nil })

	res2 := <-second
	assert.Error(t, res2.Err, "second task should not acquire a slot before the first finishes")

	close(release)
	res1 := <-first
	assert.NoError(t, res1.Err)
}

func TestSubmitAfterCloseErrors(t *testing.T) {
	p := New(1)
	p.Close()

	res := <-p.Submit(context.Background(), func() (any, error) { return nil, nil })
	assert.ErrorIs(t, res.Err, ErrClosed)
}
