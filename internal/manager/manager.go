package manager

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tutord/internal/catalog"
	"tutord/internal/llm"
	"tutord/pkg/types"
)

// Manager owns the active engine and serializes every call into it.
type Manager struct {
	cat  *catalog.Catalog
	deps llm.Deps
	log  zerolog.Logger
	pub  EventPublisher

	// Queue config
	maxQueueDepth int
	maxWait       time.Duration
	queueCh       chan struct{} // buffered: queue slots
	slot          chan struct{} // size 1: one engine call at a time

	mu        sync.RWMutex
	engine    llm.Orchestrator
	unwatch   func()
	watchDone chan struct{}
	runCtx    context.Context
	runCancel context.CancelFunc
	closed    bool

	// states mirrors the active engine for watchers that outlive a switch.
	states *llm.StateSlot
	bg     sync.WaitGroup

	startTime time.Time
	initTotal atomic.Uint64
}

// New constructs a Manager from Config. No engine is built until the first
// Activate, Switch or Initialize.
func New(cfg Config) (*Manager, error) {
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("manager: catalog is required")
	}
	if cfg.Store == nil || cfg.Fetcher == nil {
		return nil, fmt.Errorf("manager: store and fetcher are required")
	}
	m := &Manager{
		cat:           cfg.Catalog,
		deps:          cfg.deps(),
		log:           cfg.Logger.With().Str("component", "manager").Logger(),
		pub:           cfg.Publisher,
		maxQueueDepth: cfg.MaxQueueDepth,
		maxWait:       cfg.MaxWait,
		slot:          make(chan struct{}, 1),
		states:        llm.NewStateSlot(llm.Idle()),
		startTime:     time.Now(),
	}
	if m.pub == nil {
		m.pub = noopPublisher{}
	}
	if m.maxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	}
	if m.maxWait <= 0 {
		m.maxWait = defaultMaxWait
	}
	m.queueCh = make(chan struct{}, m.maxQueueDepth)
	m.runCtx, m.runCancel = context.WithCancel(context.Background())
	return m, nil
}

// SetEventPublisher replaces the event sink.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.pub = p
	m.mu.Unlock()
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.pub
	m.mu.RUnlock()
	p.Publish(e)
}

// ListModels returns the catalog entries.
func (m *Manager) ListModels() []types.ModelDescriptor { return m.cat.List() }

// DefaultModel returns the catalog default id.
func (m *Manager) DefaultModel() string { return m.cat.DefaultID() }

// Ready reports whether the active engine can generate.
func (m *Manager) Ready() bool {
	eng := m.current()
	return eng != nil && eng.State().Kind == llm.StateReady
}

// State returns the state of the active engine (Idle when none).
func (m *Manager) State() llm.State {
	if eng := m.current(); eng != nil {
		return eng.State()
	}
	return llm.Idle()
}

// WatchStates observes the active engine's state across switches. The
// channel first receives the current state.
func (m *Manager) WatchStates() (<-chan llm.State, func()) { return m.states.Subscribe() }

func (m *Manager) current() llm.Orchestrator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.engine
}

func (m *Manager) activeID() string {
	if eng := m.current(); eng != nil {
		return eng.Descriptor().ID
	}
	return ""
}

// opContext derives a context that also ends when the manager closes the
// engine, so Close interrupts downloads and generations it would otherwise
// wait for.
func (m *Manager) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	m.mu.RLock()
	run := m.runCtx
	m.mu.RUnlock()
	octx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(run, cancel)
	return octx, func() {
		stop()
		cancel()
	}
}

// setEngine installs eng as the active engine and mirrors its state changes
// into m.states and the event publisher. Callers hold the engine slot.
func (m *Manager) setEngine(eng llm.Orchestrator) {
	m.stopWatch()
	ch, unwatch := eng.Subscribe()
	done := make(chan struct{})
	id := eng.Descriptor().ID
	go func() {
		defer close(done)
		for st := range ch {
			m.states.Set(st)
			m.publish(stateEvent(id, st))
		}
	}()
	m.mu.Lock()
	m.engine, m.unwatch, m.watchDone = eng, unwatch, done
	m.mu.Unlock()
}

func (m *Manager) stopWatch() {
	m.mu.Lock()
	unwatch, done := m.unwatch, m.watchDone
	m.unwatch, m.watchDone = nil, nil
	m.mu.Unlock()
	if unwatch != nil {
		unwatch()
		<-done
	}
}
