package httpapi

import "time"

const defaultMaxBodyBytes int64 = 1 << 20

// Options are the process-wide knobs of the HTTP layer. serve applies them
// once, before the listener starts.
type Options struct {
	// MaxBodyBytes caps JSON request bodies; <= 0 means 1 MiB.
	MaxBodyBytes int64
	// GenerateTimeout bounds /generate and /greeting; 0 disables it.
	GenerateTimeout time.Duration
	CORS            CORSOptions
}

// CORSOptions configures the opt-in CORS middleware.
type CORSOptions struct {
	Enabled bool
	Origins []string
	Methods []string
	Headers []string
}

var opts = Options{MaxBodyBytes: defaultMaxBodyBytes}

// Configure replaces the HTTP options.
func Configure(o Options) {
	SetMaxBodyBytes(o.MaxBodyBytes)
	setGenerateTimeout(o.GenerateTimeout)
	SetCORSOptions(o.CORS.Enabled, o.CORS.Origins, o.CORS.Methods, o.CORS.Headers)
}

// SetMaxBodyBytes sets the body limit; n <= 0 restores the default.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		n = defaultMaxBodyBytes
	}
	opts.MaxBodyBytes = n
}

// SetGenerateTimeoutSeconds sets the generation timeout (0 disables).
func SetGenerateTimeoutSeconds(sec int64) {
	setGenerateTimeout(time.Duration(sec) * time.Second)
}

func setGenerateTimeout(d time.Duration) {
	if d < 0 {
		d = 0
	}
	opts.GenerateTimeout = d
}

// SetCORSOptions enables or disables CORS. The slices are copied.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	opts.CORS = CORSOptions{
		Enabled: enabled,
		Origins: append([]string(nil), origins...),
		Methods: append([]string(nil), methods...),
		Headers: append([]string(nil), headers...),
	}
}
