package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tutord/internal/llm"
	"tutord/internal/manager"
	"tutord/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.ModelDescriptor
	DefaultModel() string
	Status() types.StatusResponse
	Ready() bool
	Switch(ctx context.Context, modelID string) (string, error)
	StartInitialize(ctx context.Context) (string, error)
	Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error
	Greeting(ctx context.Context, req types.GreetingRequest) (string, error)
	Reset(ctx context.Context) (llm.State, error)
	Close()
	WatchStates() (<-chan llm.State, func())
}

// NewMux builds the router for svc.
func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if c := opts.CORS; c.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: c.Origins,
			AllowedMethods: c.Methods,
			AllowedHeaders: c.Headers,
		}))
	}
	// Compression for JSON endpoints; NDJSON and SSE are not in the list.
	r.Use(middleware.Compress(5, "application/json"))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	h := &handlers{svc: svc}
	r.Get("/models", h.models)
	r.Get("/status", h.status)
	r.Post("/switch", h.switchModel)
	r.Post("/initialize", h.initialize)
	r.Post("/generate", h.generate)
	r.Post("/greeting", h.greeting)
	r.Post("/reset", h.reset)
	r.Post("/close", h.closeEngine)
	r.Get("/events", h.events)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

type handlers struct {
	svc Service
}

// models lists the catalog.
//
// @Summary  List catalog models
// @Produce  json
// @Success  200 {object} types.ModelsResponse
// @Router   /models [get]
func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.ModelsResponse{Models: h.svc.ListModels(), Default: h.svc.DefaultModel()})
}

// status reports the active model and engine state.
//
// @Summary  Engine status
// @Produce  json
// @Success  200 {object} types.StatusResponse
// @Router   /status [get]
func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// switchModel activates another catalog model in the background.
//
// @Summary  Switch the active model
// @Accept   json
// @Produce  json
// @Param    body body types.SwitchRequest true "target model"
// @Success  202 {object} types.OperationResponse
// @Failure  404 {object} types.ErrorResponse
// @Router   /switch [post]
func (h *handlers) switchModel(w http.ResponseWriter, r *http.Request) {
	var req types.SwitchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeJSONError(w, http.StatusBadRequest, "model is required")
		return
	}
	op, err := h.svc.Switch(r.Context(), req.Model)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, types.OperationResponse{OpID: op, Model: req.Model})
}

// initialize (re)loads the active model in the background; it is the retry
// path after an error.
//
// @Summary  Initialize the active model
// @Produce  json
// @Success  202 {object} types.OperationResponse
// @Router   /initialize [post]
func (h *handlers) initialize(w http.ResponseWriter, r *http.Request) {
	op, err := h.svc.StartInitialize(r.Context())
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	model := h.svc.Status().Model
	if model == "" {
		model = h.svc.DefaultModel()
	}
	writeJSON(w, http.StatusAccepted, types.OperationResponse{OpID: op, Model: model})
}

// generate streams a reply as NDJSON.
//
// @Summary  Generate a reply
// @Accept   json
// @Produce  application/x-ndjson
// @Param    body body types.GenerateRequest true "prompt"
// @Success  200 {string} string "NDJSON stream"
// @Failure  409 {object} types.ErrorResponse
// @Failure  429 {object} types.ErrorResponse
// @Router   /generate [post]
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	// Headers are committed by the first write; errors before it still get
	// a JSON error response.
	sw := &streamWriter{w: w}
	writer := io.Writer(sw)
	lvl := requestVerbosity(r)
	if lvl <= zerolog.DebugLevel {
		writer = io.MultiWriter(sw, &lineLogger{})
	}
	start := time.Now()
	logReq(r, lvl, "generate start", 0, nil, 0)

	ctx, cancel := requestContext(r.Context(), true)
	defer cancel()
	err := h.svc.Generate(ctx, req, writer, flush)
	switch {
	case err == nil:
		generateOutcomes.WithLabelValues("done").Inc()
		logReq(r, lvl, "generate end", http.StatusOK, nil, time.Since(start))
	case manager.IsStreamError(err) || sw.started:
		generateOutcomes.WithLabelValues("stream_error").Inc()
		logReq(r, lvl, "generate end", http.StatusOK, err, time.Since(start))
	case r.Context().Err() != nil:
		generateOutcomes.WithLabelValues("client_gone").Inc()
	default:
		generateOutcomes.WithLabelValues("rejected").Inc()
		status := statusFor(err)
		writeJSONError(w, status, err.Error())
		logReq(r, lvl, "generate end", status, err, time.Since(start))
	}
}

// streamWriter sets the NDJSON content type on first write.
type streamWriter struct {
	w       http.ResponseWriter
	started bool
}

func (s *streamWriter) Write(p []byte) (int, error) {
	if !s.started {
		s.started = true
		s.w.Header().Set("Content-Type", "application/x-ndjson")
	}
	return s.w.Write(p)
}

// greeting returns an opening line for a topic.
//
// @Summary  Initial greeting
// @Accept   json
// @Produce  json
// @Param    body body types.GreetingRequest true "topic"
// @Success  200 {object} types.GreetingResponse
// @Router   /greeting [post]
func (h *handlers) greeting(w http.ResponseWriter, r *http.Request) {
	var req types.GreetingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Topic) == "" {
		writeJSONError(w, http.StatusBadRequest, "topic is required")
		return
	}
	ctx, cancel := requestContext(r.Context(), true)
	defer cancel()
	text, err := h.svc.Greeting(ctx, req)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.GreetingResponse{Text: text})
}

// reset starts a fresh conversation on the loaded model.
//
// @Summary  Reset the session
// @Produce  json
// @Success  200 {object} types.StateView
// @Failure  409 {object} types.ErrorResponse
// @Router   /reset [post]
func (h *handlers) reset(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Reset(r.Context())
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, manager.StateView(st))
}

// closeEngine releases the engine.
//
// @Summary  Release the engine
// @Produce  json
// @Success  200 {object} types.StateView
// @Router   /close [post]
func (h *handlers) closeEngine(w http.ResponseWriter, r *http.Request) {
	h.svc.Close()
	writeJSON(w, http.StatusOK, h.svc.Status().State)
}

// events streams engine states as server-sent events.
//
// @Summary  Engine state stream
// @Produce  text/event-stream
// @Router   /events [get]
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	ch, stop := h.svc.WatchStates()
	defer stop()
	sseClients.Inc()
	defer sseClients.Dec()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			b, err := json.Marshal(manager.StateView(st))
			if err != nil {
				logError(err, "encode state")
				continue
			}
			if _, err := w.Write([]byte("event: state\ndata: " + string(b) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// decodeJSON enforces the JSON content type and body size limit. It writes
// the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, opts.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies also end up here; report 400 without size details.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
