// Package fetch downloads model files with progress reporting.
//
// A download is a single HTTP GET streamed to "{dest}.part" and renamed into
// place once complete, so dest is either absent or complete. Failures remove
// the partial file. Nothing is retried here; retrying is the caller's call.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"tutord/internal/common/fsutil"
	"tutord/pkg/types"
)

const (
	// DefaultChunkSize is the read size of the copy loop.
	DefaultChunkSize = 4 << 10
	// IndeterminateProgress is reported when the server omits Content-Length.
	IndeterminateProgress = -1

	partSuffix = types.PartialSuffix
)

// ProgressFunc receives download progress in percent (0..100), or
// IndeterminateProgress. It is only called when the value changes.
type ProgressFunc func(percent int)

// Fetcher streams remote model files to disk.
type Fetcher struct {
	client    *http.Client
	chunkSize int
	log       zerolog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the HTTP client (default http.DefaultClient).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithChunkSize overrides the copy buffer size.
func WithChunkSize(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.chunkSize = n
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// New constructs a Fetcher.
func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    http.DefaultClient,
		chunkSize: DefaultChunkSize,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Fetch downloads d.URL to dest. d.NeedsAuth is not honoured: no credentials
// are sent. On failure the returned error is a *FetchError and no file exists
// at dest.
func (f *Fetcher) Fetch(ctx context.Context, d types.ModelDescriptor, dest string, onProgress ProgressFunc) (string, error) {
	log := f.log.With().Str("model", d.ID).Str("url", d.URL).Logger()
	if d.NeedsAuth {
		log.Warn().Msg("model requires auth; downloading without credentials")
	}
	log.Info().Str("dest", dest).Msg("fetch start")
	n, err := f.fetch(ctx, d, dest, onProgress)
	if err != nil {
		fetchTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Int64("bytes", n).Msg("fetch failed")
		return "", err
	}
	fetchTotal.WithLabelValues("ok").Inc()
	log.Info().Int64("bytes", n).Msg("fetch done")
	return dest, nil
}

func (f *Fetcher) fetch(ctx context.Context, d types.ModelDescriptor, dest string, onProgress ProgressFunc) (written int64, err error) {
	fail := func(status int, cause error) error {
		return &FetchError{Model: d.ID, URL: d.URL, StatusCode: status, Err: cause}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return 0, fail(0, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fail(0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fail(resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fail(resp.StatusCode, err)
	}
	part := dest + partSuffix
	out, err := os.Create(part)
	if err != nil {
		return 0, fail(resp.StatusCode, err)
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			if rmErr := fsutil.RemoveIfExists(part); rmErr != nil {
				f.log.Warn().Err(rmErr).Str("path", part).Msg("remove partial download")
			}
		}
	}()

	rep := newReporter(resp.ContentLength, onProgress)
	rep.start()
	buf := make([]byte, f.chunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return written, fail(resp.StatusCode, werr)
			}
			written += int64(n)
			fetchBytes.Add(float64(n))
			rep.update(written)
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return written, fail(resp.StatusCode, rerr)
		}
		if cerr := ctx.Err(); cerr != nil {
			return written, fail(resp.StatusCode, cerr)
		}
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return written, fail(resp.StatusCode, fmt.Errorf("short body: got %d of %d bytes", written, resp.ContentLength))
	}
	if err := out.Sync(); err != nil {
		return written, fail(resp.StatusCode, err)
	}
	if err := out.Close(); err != nil {
		return written, fail(resp.StatusCode, err)
	}
	if err := os.Rename(part, dest); err != nil {
		return written, fail(resp.StatusCode, err)
	}
	rep.finish()
	return written, nil
}

// reporter coalesces progress into integer percent changes.
type reporter struct {
	total int64
	last  int
	fn    ProgressFunc
}

func newReporter(total int64, fn ProgressFunc) *reporter {
	return &reporter{total: total, last: -2, fn: fn}
}

func (r *reporter) start() {
	if r.total < 0 {
		r.emit(IndeterminateProgress)
		return
	}
	r.emit(0)
}

func (r *reporter) update(read int64) {
	if r.total <= 0 {
		return
	}
	pct := int(read * 100 / r.total)
	if pct > 100 {
		pct = 100
	}
	r.emit(pct)
}

// finish reports completion for downloads of known size.
func (r *reporter) finish() {
	if r.total >= 0 {
		r.emit(100)
	}
}

func (r *reporter) emit(pct int) {
	if r.fn == nil || pct == r.last {
		return
	}
	r.last = pct
	r.fn(pct)
}
