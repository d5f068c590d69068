package llm

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"tutord/internal/fetch"
	"tutord/pkg/types"
)

// ModelFetcher downloads a model file to dest.
type ModelFetcher interface {
	Fetch(ctx context.Context, d types.ModelDescriptor, dest string, onProgress fetch.ProgressFunc) (string, error)
}

// lifecycle is the part of the state machine shared by every engine variant:
// state publication, model acquisition and in-flight stream tracking.
type lifecycle struct {
	desc    types.ModelDescriptor
	store   ModelStore
	fetcher ModelFetcher
	slot    *StateSlot
	log     zerolog.Logger

	smu     sync.Mutex
	streams map[*Stream]context.CancelCauseFunc
	wg      sync.WaitGroup
}

func newLifecycle(d types.ModelDescriptor, deps Deps, variant string) *lifecycle {
	return &lifecycle{
		desc:    d,
		store:   deps.Store,
		fetcher: deps.Fetcher,
		slot:    NewStateSlot(Idle()),
		log:     deps.Logger.With().Str("component", "engine").Str("runtime", variant).Str("model", d.ID).Logger(),
		streams: make(map[*Stream]context.CancelCauseFunc),
	}
}

// Descriptor returns the model this engine manages.
func (l *lifecycle) Descriptor() types.ModelDescriptor { return l.desc }

// State returns the current state.
func (l *lifecycle) State() State { return l.slot.Get() }

// Subscribe observes state changes; see StateSlot.Subscribe.
func (l *lifecycle) Subscribe() (<-chan State, func()) { return l.slot.Subscribe() }

func (l *lifecycle) set(st State) {
	if l.slot.Set(st) {
		stateTransitions.WithLabelValues(st.Kind.String()).Inc()
		l.log.Debug().Str("state", st.String()).Msg("state change")
	}
}

// fail moves to Error carrying err's message and the managed descriptor.
func (l *lifecycle) fail(err error) {
	l.log.Error().Err(err).Msg("engine error")
	l.set(Failed(err.Error(), l.desc))
}

// acquire returns the local model path, downloading the file when absent.
// It moves Initializing -> Downloading -> Initializing around the download.
func (l *lifecycle) acquire(ctx context.Context) (string, error) {
	path := l.store.LocalPath(l.desc)
	if l.store.Exists(l.desc) {
		l.log.Debug().Str("path", path).Msg("model present")
		return path, nil
	}
	l.set(Downloading(l.desc, 0))
	progress := 0
	_, err := l.fetcher.Fetch(ctx, l.desc, path, func(pct int) {
		// Indeterminate progress keeps the state at 0.
		if pct > progress {
			progress = pct
			l.set(Downloading(l.desc, pct))
		}
	})
	if err != nil {
		return "", err
	}
	l.set(Initializing())
	return path, nil
}

// openStream registers a new stream derived from ctx.
func (l *lifecycle) openStream(ctx context.Context) (*Stream, context.Context) {
	sctx, cancel := context.WithCancelCause(ctx)
	s := newStream(cancel)
	l.smu.Lock()
	l.streams[s] = cancel
	l.wg.Add(1)
	l.smu.Unlock()
	return s, sctx
}

// closeStream records the terminal event and unregisters s. A generation
// error observed after cancellation is replaced by the cancellation cause.
func (l *lifecycle) closeStream(s *Stream, sctx context.Context, err error) {
	if err != nil && sctx.Err() != nil {
		err = context.Cause(sctx)
	}
	s.finish(err)
	l.smu.Lock()
	if cancel, ok := l.streams[s]; ok {
		delete(l.streams, s)
		cancel(nil)
	}
	l.smu.Unlock()
	l.wg.Done()
}

// stopStreams cancels in-flight streams with ErrClosed and waits for their
// producers to return, so no producer touches resources released afterwards.
func (l *lifecycle) stopStreams() {
	l.smu.Lock()
	live := make([]*Stream, 0, len(l.streams))
	for s, cancel := range l.streams {
		cancel(ErrClosed)
		live = append(live, s)
	}
	l.smu.Unlock()
	for _, s := range live {
		s.halt()
	}
	l.wg.Wait()
}

// release closes c, logging instead of propagating its error.
func (l *lifecycle) release(what string, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		l.log.Warn().Err(err).Str("resource", what).Msg("release failed")
	}
}
