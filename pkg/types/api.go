package types

// ModelsResponse wraps the list of catalog entries returned by GET /models.
type ModelsResponse struct {
	// Catalog entries in declaration order.
	Models []ModelDescriptor `json:"models"`
	// Identifier of the default model.
	// example: tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf
	Default string `json:"default" example:"tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf"`
}

// StateView is the JSON projection of an engine state.
type StateView struct {
	// One of idle, initializing, downloading, ready, error.
	// example: downloading
	Name string `json:"name" example:"downloading"`
	// Model the state refers to (downloading and error only).
	// example: tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf
	Model string `json:"model,omitempty" example:"tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf"`
	// Download progress 0..100, or -1 when the size is unknown.
	// example: 42
	Progress *int `json:"progress,omitempty" example:"42"`
	// Human-readable error message.
	Message string `json:"message,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Active model identifier (empty when nothing was selected yet).
	// example: tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf
	Model string `json:"model,omitempty" example:"tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf"`
	// Orchestrator variant of the active model.
	// example: session
	Runtime string `json:"runtime,omitempty" example:"session"`
	// Current engine state.
	State StateView `json:"state"`
	// Whether the model file is present on disk.
	// example: true
	Downloaded bool `json:"downloaded"`
	// Requests waiting for the engine.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Requests currently using the engine.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Maximum queued requests allowed before backpressure triggers.
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Total number of initialize calls.
	// example: 3
	InitializeTotal uint64 `json:"initialize_total" example:"3"`
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	// Required user prompt.
	// example: How do I order a coffee?
	Prompt string `json:"prompt" example:"How do I order a coffee?"`
	// Caller-side conversation identifier; generated when empty.
	ConversationID string `json:"conversation_id,omitempty"`
	// Language the learner practices.
	// example: Spanish
	TargetLanguage string `json:"target_language,omitempty" example:"Spanish"`
}

// GreetingRequest is the body of POST /greeting.
type GreetingRequest struct {
	// Conversation topic.
	// example: ordering food
	Topic string `json:"topic" example:"ordering food"`
	// example: Spanish
	TargetLanguage string `json:"target_language,omitempty" example:"Spanish"`
}

// GreetingResponse is returned by POST /greeting.
type GreetingResponse struct {
	Text string `json:"text"`
}

// SwitchRequest is the body of POST /switch.
type SwitchRequest struct {
	// Catalog id of the model to activate.
	// example: tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf
	Model string `json:"model" example:"tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// OperationResponse is returned by the asynchronous POST /switch and
// POST /initialize.
type OperationResponse struct {
	// Operation id; tags the matching switch_done event.
	// example: 5f0c6f5e-3c55-4a8e-9f39-0d1b5c1a6f10
	OpID string `json:"op_id" example:"5f0c6f5e-3c55-4a8e-9f39-0d1b5c1a6f10"`
	// Model being activated.
	// example: tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf
	Model string `json:"model" example:"tinyllama-1.1b-chat-v1.0.Q4_K_M.gguf"`
}
