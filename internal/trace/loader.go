package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTimeout bounds a single HTTP fetch.
const DefaultTimeout = 30 * time.Second

// maxPayload caps how much of a response body is read.
const maxPayload = 512 << 20

// FileLoader reads traces from the local filesystem. A directory reference
// resolves to the particles.json inside it.
type FileLoader struct {
	Logger *slog.Logger
}

// NewFileLoader creates a FileLoader.
func NewFileLoader(logger *slog.Logger) *FileLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileLoader{Logger: logger}
}

// Fetch implements Loader.
func (l *FileLoader) Fetch(ctx context.Context, ref string) (*Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(ref, "file://")
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FetchError{Ref: ref, Err: ErrNotFound}
		}
		return nil, &FetchError{Ref: ref, Err: err}
	}
	if info.IsDir() {
		path = filepath.Join(path, DefaultFileName)
	}

	start := time.Now()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &FetchError{Ref: ref, Err: ErrNotFound}
		}
		return nil, &FetchError{Ref: ref, Err: err}
	}
	l.Logger.Debug("read trace file", "path", path, "bytes", len(data), "duration", time.Since(start))
	return decode(ref, data)
}

// HTTPLoader fetches traces over HTTP. Non-2xx answers are treated as "no
// data" rather than as errors, matching a browser fetch that resolves empty.
type HTTPLoader struct {
	Client *http.Client
	Logger *slog.Logger
}

// NewHTTPLoader creates an HTTPLoader with the given timeout.
func NewHTTPLoader(timeout time.Duration, logger *slog.Logger) *HTTPLoader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPLoader{
		Client: &http.Client{Timeout: timeout},
		Logger: logger,
	}
}

// Fetch implements Loader.
func (l *HTTPLoader) Fetch(ctx context.Context, ref string) (*Raw, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, &FetchError{Ref: ref, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, &FetchError{Ref: ref, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		l.Logger.Warn("trace fetch returned no data", "ref", ref, "status", resp.StatusCode)
		return nil, nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, &FetchError{Ref: ref, Err: err}
	}
	return decode(ref, data)
}

// NewLoader picks a loader for ref by scheme.
func NewLoader(ref string, timeout time.Duration, logger *slog.Logger) (Loader, error) {
	switch {
	case ref == "":
		return nil, fmt.Errorf("%w: empty reference", ErrUnsupportedRef)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return NewHTTPLoader(timeout, logger), nil
	case strings.Contains(ref, "://") && !strings.HasPrefix(ref, "file://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	default:
		return NewFileLoader(logger), nil
	}
}
