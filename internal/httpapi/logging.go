package httpapi

import (
	"bytes"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// hlog is the HTTP layer's logger; serve replaces it with a component logger.
var hlog = zerolog.New(os.Stderr).With().Timestamp().Logger()

// SetLogger installs the logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { hlog = l }

func logError(err error, msg string) {
	hlog.Error().Err(err).Msg(msg)
}

// Request verbosity is a zerolog level chosen per request. Milestones
// (start/end) are logged at Info verbosity, failures down to Error, and the
// NDJSON lines of a stream only at Debug. Disabled silences a request.
func parseVerbosity(s string) zerolog.Level {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "", "off":
		return zerolog.Disabled
	case "1":
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

var defaultVerbosity = parseVerbosity(os.Getenv("TUTORD_HTTP_LOG_LEVEL"))

// SetDefaultLogLevel sets the verbosity for requests that do not ask for one.
func SetDefaultLogLevel(s string) { defaultVerbosity = parseVerbosity(s) }

// requestVerbosity honors ?log= first, then the X-Log-Level header.
func requestVerbosity(r *http.Request) zerolog.Level {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseVerbosity(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseVerbosity(v)
	}
	return defaultVerbosity
}

// logReq logs a request milestone if the request's verbosity allows it.
func logReq(r *http.Request, v zerolog.Level, msg string, status int, err error, dur time.Duration) {
	if v > zerolog.InfoLevel && (err == nil || v > zerolog.ErrorLevel) {
		return
	}
	ev := hlog.Info()
	if err != nil {
		ev = hlog.Warn().Err(err)
	}
	ev = ev.Str("path", r.URL.Path)
	if status != 0 {
		ev = ev.Int("status", status).Dur("dur", dur)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Msg(msg)
}

// lineLogger echoes complete NDJSON lines of a stream at debug level.
type lineLogger struct {
	pending []byte
}

func (l *lineLogger) Write(p []byte) (int, error) {
	l.pending = append(l.pending, p...)
	for {
		i := bytes.IndexByte(l.pending, '\n')
		if i < 0 {
			return len(p), nil
		}
		if i > 0 {
			hlog.Debug().Bytes("line", l.pending[:i]).Msg("generate>")
		}
		l.pending = l.pending[i+1:]
	}
}
