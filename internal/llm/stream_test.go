package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailedStreamHasNoChunks(t *testing.T) {
	s := failedStream(ErrNotReady)
	text, err := s.Collect()
	assert.Empty(t, text)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestStreamFinishOnce(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	s := newStream(cancel)
	assert.True(t, s.send(ctx, "a"))
	s.finish(nil)
	s.finish(errors.New("late"))
	text, err := s.Collect()
	assert.Equal(t, "a", text)
	assert.NoError(t, err)
	select {
	case <-s.Done():
	default:
		t.Fatal("done not closed")
	}
}

func TestStreamSendStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	s := newStream(cancel)
	for i := 0; i < chunkBuffer; i++ {
		assert.True(t, s.send(ctx, "x"))
	}
	s.Close()
	assert.False(t, s.send(ctx, "overflow"))
	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
}

func TestStreamCloseDropsBufferedChunks(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	s := newStream(cancel)
	assert.True(t, s.send(ctx, "a"))
	assert.True(t, s.send(ctx, "b"))
	s.Close()
	_, open := <-s.Chunks()
	assert.False(t, open)
	assert.False(t, s.send(ctx, "c"))
	s.finish(context.Cause(ctx))
	assert.ErrorIs(t, s.Err(), context.Canceled)
}
