package manager

import (
	"context"
	"time"

	"github.com/google/uuid"

	"tutord/internal/llm"
)

// Activate makes modelID the active model and initializes it, closing the
// previously active engine first. Re-activating the active model retries its
// initialization. The returned state is the engine's final state (Ready or
// Error); err is only set when the request could not be attempted.
func (m *Manager) Activate(ctx context.Context, modelID string) (llm.State, error) {
	if modelID == "" {
		modelID = m.cat.DefaultID()
	}
	d, ok := m.cat.Get(modelID)
	if !ok {
		return llm.State{}, ErrModelNotFound(modelID)
	}
	if err := llm.Preflight(d, m.deps); err != nil {
		return llm.State{}, err
	}
	octx, done := m.opContext(ctx)
	defer done()
	release, err := m.lock(octx)
	if err != nil {
		return llm.State{}, err
	}
	defer release()
	if m.isClosed() {
		return llm.State{}, ErrShutdown
	}

	eng := m.current()
	if eng == nil || eng.Descriptor().ID != modelID {
		m.publish(Event{Name: EventSwitchStart, ModelID: modelID, Fields: map[string]any{"from": m.activeID()}})
		if eng != nil {
			eng.Close()
		}
		next, err := llm.New(d, m.deps)
		if err != nil {
			return llm.State{}, err
		}
		m.setEngine(next)
		eng = next
		m.log.Info().Str("model", modelID).Str("runtime", string(d.RuntimeOrDefault())).Msg("model selected")
	}
	return m.initialize(octx, eng), nil
}

// Initialize (re)initializes the active model, activating the catalog
// default when nothing was selected yet. It is the retry path after an
// Error state.
func (m *Manager) Initialize(ctx context.Context) (llm.State, error) {
	return m.Activate(ctx, m.activeID())
}

// initialize runs eng.Initialize; callers hold the engine slot.
func (m *Manager) initialize(ctx context.Context, eng llm.Orchestrator) llm.State {
	id := eng.Descriptor().ID
	m.initTotal.Add(1)
	m.publish(Event{Name: EventInitializeStart, ModelID: id})
	start := time.Now()
	eng.Initialize(ctx)
	st := eng.State()
	m.publish(Event{Name: EventInitializeDone, ModelID: id, Fields: map[string]any{"state": st.Kind.String()}})
	ev := m.log.Info()
	if st.Kind == llm.StateError {
		ev = m.log.Warn().Str("error", st.Message)
	}
	ev.Str("model", id).Str("state", st.String()).Dur("dur", time.Since(start)).Msg("initialize done")
	return st
}

// Switch validates modelID and activates it in the background. The returned
// operation id tags the switch_done event; progress is observable through
// WatchStates and Status.
func (m *Manager) Switch(ctx context.Context, modelID string) (string, error) {
	return m.background(modelID)
}

// StartInitialize is Initialize in the background.
func (m *Manager) StartInitialize(ctx context.Context) (string, error) {
	return m.background(m.activeID())
}

func (m *Manager) background(modelID string) (string, error) {
	if modelID == "" {
		modelID = m.cat.DefaultID()
	}
	d, ok := m.cat.Get(modelID)
	if !ok {
		return "", ErrModelNotFound(modelID)
	}
	if err := llm.Preflight(d, m.deps); err != nil {
		return "", err
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrShutdown
	}
	m.bg.Add(1)
	m.mu.Unlock()
	op := uuid.NewString()
	go func() {
		defer m.bg.Done()
		// Detached from the caller; Close and Shutdown still cancel it.
		st, err := m.Activate(context.Background(), modelID)
		f := map[string]any{"op_id": op, "state": st.Kind.String()}
		if err != nil {
			f["error"] = err.Error()
			m.log.Warn().Err(err).Str("op_id", op).Str("model", modelID).Msg("background activate failed")
		}
		m.publish(Event{Name: EventSwitchDone, ModelID: modelID, Fields: f})
	}()
	return op, nil
}

// Reset rebuilds the active engine's session from its loaded model.
func (m *Manager) Reset(ctx context.Context) (llm.State, error) {
	release, err := m.lock(ctx)
	if err != nil {
		return llm.State{}, err
	}
	defer release()
	eng := m.current()
	if eng == nil {
		return llm.State{}, llm.ErrNoEngine
	}
	eng.ResetSession(ctx)
	st := eng.State()
	m.publish(Event{Name: EventReset, ModelID: eng.Descriptor().ID, Fields: map[string]any{"state": st.Kind.String()}})
	return st, nil
}

// Close releases the active engine's resources. In-flight downloads and
// generations are canceled. The model stays selected, so Initialize loads it
// again.
func (m *Manager) Close() {
	m.mu.Lock()
	m.runCancel()
	m.mu.Unlock()

	release, _ := m.lock(context.Background())
	eng := m.current()
	if eng != nil {
		eng.Close()
		m.publish(Event{Name: EventClose, ModelID: eng.Descriptor().ID})
	}
	m.mu.Lock()
	m.runCtx, m.runCancel = context.WithCancel(context.Background())
	m.mu.Unlock()
	release()
}

// Shutdown closes the engine, waits for background operations and stops
// state mirroring. The manager rejects lifecycle operations afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.Close()

	waited := make(chan struct{})
	go func() {
		m.bg.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-ctx.Done():
		return ctx.Err()
	}
	m.stopWatch()
	m.mu.Lock()
	m.runCancel()
	m.mu.Unlock()
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
