package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateSlotSubscribeStartsWithCurrent(t *testing.T) {
	s := NewStateSlot(Ready())
	ch, cancel := s.Subscribe()
	defer cancel()
	require.Equal(t, []State{Ready()}, drain(ch))
}

func TestStateSlotSetDedups(t *testing.T) {
	s := NewStateSlot(Idle())
	ch, cancel := s.Subscribe()
	defer cancel()
	assert.False(t, s.Set(Idle()))
	assert.True(t, s.Set(Initializing()))
	assert.False(t, s.Set(Initializing()))
	assert.Equal(t, []StateKind{StateIdle, StateInitializing}, kinds(drain(ch)))
}

func TestStateSlotDropsOldestWhenFull(t *testing.T) {
	s := NewStateSlot(Idle())
	ch, cancel := s.Subscribe()
	defer cancel()
	d := sessionDesc()
	for p := 1; p <= subscriberBuffer+10; p++ {
		s.Set(Downloading(d, p))
	}
	got := drain(ch)
	require.Len(t, got, subscriberBuffer)
	assert.Equal(t, subscriberBuffer+10, got[len(got)-1].Progress, "latest state must survive")
	assert.Equal(t, 11, got[0].Progress)
}

func TestStateSlotUnsubscribeClosesChannel(t *testing.T) {
	s := NewStateSlot(Idle())
	ch, cancel := s.Subscribe()
	cancel()
	cancel()
	<-ch // current state
	_, ok := <-ch
	assert.False(t, ok)
	// Publishing after unsubscribe must not panic.
	s.Set(Ready())
}

func TestStateEqualAndString(t *testing.T) {
	d := sessionDesc()
	assert.True(t, Downloading(d, 5).Equal(Downloading(d, 5)))
	assert.False(t, Downloading(d, 5).Equal(Downloading(d, 6)))
	assert.False(t, Failed("a", d).Equal(Failed("b", d)))
	assert.Equal(t, "downloading(test-model.gguf,5)", Downloading(d, 5).String())
	assert.Equal(t, "ready", Ready().String())
	assert.Equal(t, "error(test-model.gguf: boom)", Failed("boom", d).String())
}
