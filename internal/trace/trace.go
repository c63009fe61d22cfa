// Package trace fetches raw particle trace payloads.
//
// The payload is opaque to the rest of rayview until a transformer decodes it;
// this package only distinguishes "data returned" from "no data returned".
//
//   - [Raw]: a fetched payload and the reference it came from
//   - [Loader]: fetches a payload for an opaque reference (path or URL)
//   - [FileLoader], [HTTPLoader]: the two concrete loaders
package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
)

// DefaultFileName is the trace file written next to an instrument run.
const DefaultFileName = "particles.json"

var (
	// ErrNotFound indicates the reference points at nothing.
	ErrNotFound = errors.New("trace: resource not found")

	// ErrUnsupportedRef indicates no loader understands the reference.
	ErrUnsupportedRef = errors.New("trace: unsupported resource reference")
)

// Raw is a parsed-but-uninterpreted trace payload.
type Raw struct {
	Ref     string
	Payload json.RawMessage
}

// Present reports whether the payload carries usable data. Null, false and
// empty containers count as absent.
func (r *Raw) Present() bool {
	if r == nil {
		return false
	}
	p := bytes.TrimSpace(r.Payload)
	if len(p) == 0 {
		return false
	}
	switch string(p) {
	case "null", "false", "{}", "[]", `""`:
		return false
	}
	return true
}

// Loader fetches the raw trace behind ref. A nil Raw with a nil error means
// the resource answered with no data.
type Loader interface {
	Fetch(ctx context.Context, ref string) (*Raw, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, ref string) (*Raw, error)

// Fetch implements Loader.
func (f LoaderFunc) Fetch(ctx context.Context, ref string) (*Raw, error) {
	return f(ctx, ref)
}

// decode checks that data is JSON and wraps it. Invalid JSON is reported as an
// error so callers can log the cause; the payload itself stays opaque.
func decode(ref string, data []byte) (*Raw, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !json.Valid(data) {
		return nil, &FetchError{Ref: ref, Err: errors.New("payload is not valid JSON")}
	}
	return &Raw{Ref: ref, Payload: json.RawMessage(data)}, nil
}

// FetchError wraps a retrieval failure with the reference that caused it.
type FetchError struct {
	Ref string
	Err error
}

func (e *FetchError) Error() string {
	return "trace: fetch " + e.Ref + ": " + e.Err.Error()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
