package llm

import (
	"fmt"
	"sync"

	"tutord/pkg/types"
)

// StateKind enumerates the engine lifecycle states.
type StateKind int

const (
	StateIdle StateKind = iota
	StateInitializing
	StateDownloading
	StateReady
	StateError
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateDownloading:
		return "downloading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the current lifecycle state of an engine. Model is set for
// Downloading and Error, Progress only for Downloading, Message only for Error.
type State struct {
	Kind     StateKind
	Model    types.ModelDescriptor
	Progress int
	Message  string
}

func Idle() State         { return State{Kind: StateIdle} }
func Initializing() State { return State{Kind: StateInitializing} }
func Ready() State        { return State{Kind: StateReady} }

// Downloading reports a download of d at progress percent.
func Downloading(d types.ModelDescriptor, progress int) State {
	return State{Kind: StateDownloading, Model: d, Progress: progress}
}

// Failed is the Error state for d.
func Failed(msg string, d types.ModelDescriptor) State {
	return State{Kind: StateError, Model: d, Message: msg}
}

// Equal compares states by kind, model id, progress and message.
func (s State) Equal(o State) bool {
	return s.Kind == o.Kind && s.Model.ID == o.Model.ID && s.Progress == o.Progress && s.Message == o.Message
}

func (s State) String() string {
	switch s.Kind {
	case StateDownloading:
		return fmt.Sprintf("downloading(%s,%d)", s.Model.ID, s.Progress)
	case StateError:
		return fmt.Sprintf("error(%s: %s)", s.Model.ID, s.Message)
	default:
		return s.Kind.String()
	}
}

// subscriberBuffer bounds each subscriber channel. A slow subscriber loses
// the oldest pending states, never the latest one.
const subscriberBuffer = 128

// StateSlot holds the current state of one engine. The engine is the only
// writer; any number of goroutines may read or subscribe.
type StateSlot struct {
	mu   sync.RWMutex
	cur  State
	subs map[uint64]chan State
	next uint64
}

// NewStateSlot returns a slot holding initial.
func NewStateSlot(initial State) *StateSlot {
	return &StateSlot{cur: initial, subs: make(map[uint64]chan State)}
}

// Get returns the current state.
func (s *StateSlot) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Set publishes st and reports whether it differed from the current state.
// Publishing an equal state is a no-op.
func (s *StateSlot) Set(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur.Equal(st) {
		return false
	}
	s.cur = st
	for _, ch := range s.subs {
		offer(ch, st)
	}
	return true
}

// Subscribe returns a channel that first receives the current state and then
// every change. The returned func unsubscribes and closes the channel.
func (s *StateSlot) Subscribe() (<-chan State, func()) {
	ch := make(chan State, subscriberBuffer)
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	ch <- s.cur
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}

// offer delivers st without blocking, evicting the oldest pending value when
// the buffer is full.
func offer(ch chan State, st State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
