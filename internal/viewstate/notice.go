package viewstate

import (
	"errors"
	"log/slog"
	"time"
)

// NoticeKind classifies a user-visible notification.
type NoticeKind int

const (
	NoticeLoaded NoticeKind = iota
	NoticeDataUnavailable
	NoticeTransformFailed
	NoticeInvalidTransition
	NoticeIndexOutOfRange
	NoticeOther
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeLoaded:
		return "loaded"
	case NoticeDataUnavailable:
		return "data_unavailable"
	case NoticeTransformFailed:
		return "transform_failed"
	case NoticeInvalidTransition:
		return "invalid_mode_transition"
	case NoticeIndexOutOfRange:
		return "index_out_of_range"
	}
	return "other"
}

// MarshalText implements encoding.TextMarshaler.
func (k NoticeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode
// to NoticeOther.
func (k *NoticeKind) UnmarshalText(b []byte) error {
	for nk := NoticeLoaded; nk < NoticeOther; nk++ {
		if nk.String() == string(b) {
			*k = nk
			return nil
		}
	}
	*k = NoticeOther
	return nil
}

// Notice is a recorded warning or status message for the interaction layer.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
	Err     error      `json:"-"`
}

// Level maps the notice to a log level.
func (n Notice) Level() slog.Level {
	if n.Kind == NoticeLoaded {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}

func kindOf(err error) NoticeKind {
	switch {
	case errors.Is(err, ErrDataUnavailable):
		return NoticeDataUnavailable
	case errors.Is(err, ErrTransformFailed):
		return NoticeTransformFailed
	case errors.Is(err, ErrInvalidModeTransition):
		return NoticeInvalidTransition
	case errors.Is(err, ErrIndexOutOfRange):
		return NoticeIndexOutOfRange
	}
	return NoticeOther
}

func noticeFor(err error, at time.Time) Notice {
	return Notice{Kind: kindOf(err), Message: err.Error(), At: at, Err: err}
}
