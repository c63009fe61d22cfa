package viewstate

import (
	"errors"
	"fmt"
)

// Conditions reported by a session. None of them is fatal: each leaves the
// view state and the dataset in their last valid configuration.
var (
	// ErrDataUnavailable indicates the trace loader returned no usable payload.
	ErrDataUnavailable = errors.New("viewstate: ray data unavailable")

	// ErrTransformFailed indicates the payload could not be turned into rays.
	ErrTransformFailed = errors.New("viewstate: ray transform failed")

	// ErrInvalidModeTransition indicates a mode change that is not meaningful
	// in the current state, such as switching to show-all while rays are hidden.
	ErrInvalidModeTransition = errors.New("viewstate: invalid mode transition")

	// ErrIndexOutOfRange indicates a playback index outside the dataset.
	ErrIndexOutOfRange = errors.New("viewstate: playback index out of range")

	// ErrClosed indicates the session scope has ended.
	ErrClosed = errors.New("viewstate: session closed")
)

// Stage names the pipeline step a load failed in.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageTransform Stage = "transform"
)

// LoadError wraps a failed fetch-and-transform pipeline.
type LoadError struct {
	Ref   string
	Stage Stage
	Err   error
}

func (e *LoadError) sentinel() error {
	if e.Stage == StageTransform {
		return ErrTransformFailed
	}
	return ErrDataUnavailable
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (%s)", e.sentinel(), e.Ref)
	}
	return fmt.Sprintf("%v (%s): %v", e.sentinel(), e.Ref, e.Err)
}

func (e *LoadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.sentinel()}
	}
	return []error{e.sentinel(), e.Err}
}

// IndexError reports a rejected playback index.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%v: %d not in [0, %d)", ErrIndexOutOfRange, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}

func invalidTransition(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidModeTransition, reason)
}
