package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/rayview/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRaw_Present(t *testing.T) {
	tests := []struct {
		name    string
		raw     *Raw
		present bool
	}{
		{"nil raw", nil, false},
		{"empty payload", &Raw{}, false},
		{"whitespace", &Raw{Payload: []byte("  \n")}, false},
		{"null", &Raw{Payload: []byte("null")}, false},
		{"false", &Raw{Payload: []byte("false")}, false},
		{"empty object", &Raw{Payload: []byte("{}")}, false},
		{"empty array", &Raw{Payload: []byte(" [] ")}, false},
		{"particles", &Raw{Payload: []byte(`{"rays":[]}`)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.present, tt.raw.Present())
		})
	}
}

func TestFileLoader_Fetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trace.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"rays":[{"speed":1}]}`), 0600))

	l := NewFileLoader(testutil.NewTestLogger(t))
	raw, err := l.Fetch(context.Background(), path)
	require.NoError(t, err)
	require.NotNil(t, raw)
	assert.True(t, raw.Present())
	assert.Equal(t, path, raw.Ref)
}

func TestFileLoader_Directory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte(`{"rays":[1]}`), 0600))

	raw, err := NewFileLoader(testutil.NewTestLogger(t)).Fetch(context.Background(), "file://"+dir)
	require.NoError(t, err)
	assert.True(t, raw.Present())
}

func TestFileLoader_Missing(t *testing.T) {
	_, err := NewFileLoader(testutil.NewTestLogger(t)).Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	var fe *FetchError
	assert.ErrorAs(t, err, &fe)
}

func TestFileLoader_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	raw, err := NewFileLoader(testutil.NewTestLogger(t)).Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestFileLoader_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{rays"), 0600))

	raw, err := NewFileLoader(testutil.NewTestLogger(t)).Fetch(context.Background(), path)
	assert.Error(t, err)
	assert.Nil(t, raw)
}

func TestHTTPLoader_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/particles.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"rays":[{"speed":2}]}`))
		case "/null.json":
			_, _ = w.Write([]byte("null"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewHTTPLoader(time.Second, testutil.NewTestLogger(t))

	raw, err := l.Fetch(context.Background(), srv.URL+"/particles.json")
	require.NoError(t, err)
	assert.True(t, raw.Present())

	raw, err = l.Fetch(context.Background(), srv.URL+"/null.json")
	require.NoError(t, err)
	assert.False(t, raw.Present())

	raw, err = l.Fetch(context.Background(), srv.URL+"/missing.json")
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestNewLoader(t *testing.T) {
	logger := testutil.NewTestLogger(t)

	l, err := NewLoader("https://example.org/particles.json", 0, logger)
	require.NoError(t, err)
	assert.IsType(t, &HTTPLoader{}, l)

	l, err = NewLoader("runs/demo", 0, logger)
	require.NoError(t, err)
	assert.IsType(t, &FileLoader{}, l)

	_, err = NewLoader("s3://bucket/particles.json", 0, logger)
	assert.ErrorIs(t, err, ErrUnsupportedRef)

	_, err = NewLoader("", 0, logger)
	assert.ErrorIs(t, err, ErrUnsupportedRef)
}

func TestLoaderFunc(t *testing.T) {
	called := 0
	var l Loader = LoaderFunc(func(_ context.Context, ref string) (*Raw, error) {
		called++
		return &Raw{Ref: ref, Payload: []byte(`{"x":1}`)}, nil
	})

	raw, err := l.Fetch(context.Background(), "ref")
	require.NoError(t, err)
	assert.Equal(t, "ref", raw.Ref)
	assert.Equal(t, 1, called)
}
