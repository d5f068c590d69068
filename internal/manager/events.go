package manager

import "tutord/internal/llm"

// Event represents a manager lifecycle event.
// Minimal and stable: name + model ID and optional fields via key/values.
type Event struct {
	Name    string
	ModelID string
	Fields  map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// Event names.
const (
	EventState           = "state"
	EventSwitchStart     = "switch_start"
	EventSwitchDone      = "switch_done"
	EventInitializeStart = "initialize_start"
	EventInitializeDone  = "initialize_done"
	EventReset           = "reset"
	EventClose           = "close"
)

func stateEvent(modelID string, st llm.State) Event {
	f := map[string]any{"state": st.Kind.String()}
	switch st.Kind {
	case llm.StateDownloading:
		f["progress"] = st.Progress
	case llm.StateError:
		f["message"] = st.Message
	}
	return Event{Name: EventState, ModelID: modelID, Fields: f}
}
