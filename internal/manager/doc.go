// Package manager is the conversation-facing layer on top of the inference
// engines. It is structured into small files by concern:
//
//   - manager.go: core Manager type, constructor, simple getters.
//   - config.go: Config and package defaults; New applies defaults.
//   - errors.go: error types and helpers (IsTooBusy, IsModelNotFound, ...).
//   - admission.go: bounded queue and the single engine slot.
//   - lifecycle.go: Activate/Switch/Initialize/Reset/Close.
//   - generate.go: Generate (NDJSON streaming) and Greeting.
//   - events.go, eventpub_memory.go: Event fan-out.
//   - status.go: Status reporting.
//
// Engines require their calls to be serialized. Every engine call made here
// holds the engine slot, so the engine never sees two callers at once.
package manager
