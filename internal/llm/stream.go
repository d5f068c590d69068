package llm

import (
	"context"
	"strings"
	"sync"
)

// chunkBuffer is the capacity of a stream's chunk channel.
const chunkBuffer = 16

// Stream delivers generated text chunks in production order. It ends with
// exactly one terminal event: Chunks is closed and Err reports nil for
// normal completion or the failure cause.
type Stream struct {
	ch     chan string
	done   chan struct{}
	stop   chan struct{}
	err    error
	once   sync.Once
	halted sync.Once
	cancel context.CancelCauseFunc

	// mu serializes sends with closing ch.
	mu       sync.Mutex
	chClosed bool
}

func newStream(cancel context.CancelCauseFunc) *Stream {
	return &Stream{
		ch:     make(chan string, chunkBuffer),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
		cancel: cancel,
	}
}

// failedStream returns a stream that has already terminated with err.
func failedStream(err error) *Stream {
	s := newStream(func(error) {})
	s.finish(err)
	return s
}

// Chunks returns the chunk channel. It is closed after the terminal event.
func (s *Stream) Chunks() <-chan string { return s.ch }

// Done is closed once the stream has terminated.
func (s *Stream) Done() <-chan struct{} { return s.done }

// Err returns the terminal error. It blocks until the stream terminates.
func (s *Stream) Err() error {
	<-s.done
	return s.err
}

// Close stops the producer. Chunks not yet received are discarded: a range
// over Chunks started after Close returns ends without yielding anything.
// Err still reports the terminal cause once the producer has returned.
func (s *Stream) Close() {
	s.cancel(context.Canceled)
	s.halt()
}

// halt stops delivery: pending sends give up, buffered chunks are dropped
// and Chunks is closed.
func (s *Stream) halt() {
	s.halted.Do(func() { close(s.stop) })
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chClosed {
		return
	}
	for len(s.ch) > 0 {
		<-s.ch
	}
	s.chClosed = true
	close(s.ch)
}

// Collect concatenates every chunk and returns the terminal error.
func (s *Stream) Collect() (string, error) {
	var b strings.Builder
	for c := range s.ch {
		b.WriteString(c)
	}
	return b.String(), s.Err()
}

// send blocks until the consumer takes chunk, ctx ends or the stream is
// halted.
func (s *Stream) send(ctx context.Context, chunk string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chClosed || ctx.Err() != nil {
		return false
	}
	select {
	case s.ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	case <-s.stop:
		return false
	}
}

// finish records the terminal event. Later calls are ignored.
func (s *Stream) finish(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		if !s.chClosed {
			s.chClosed = true
			close(s.ch)
		}
		s.mu.Unlock()
		s.err = err
		close(s.done)
	})
}
