// Package schedule runs tile decoding off the owning goroutine.
//
// A Scheduler owns one lazily started worker goroutine that builds decoder
// handles and decodes tiles, and a Looper through which every result is
// handed back to the owner. Each job carries the generation key that was
// live when it was submitted; results whose key has expired are reported
// as stale instead of being applied.
package schedule

import (
	"errors"
	"fmt"
)

// Cause classifies a failed decode job.
type Cause int

// Decode failure causes.
const (
	CauseDecoderNotReady Cause = iota + 1
	CauseEmptyGeometry
	CauseNilBuffer
	CauseStaleBeforeDecode
	CauseStaleAfterDecode
	CauseStaleAtCallback
	CauseRecycledAfterRotation
	CauseRotationResultRecycled
	CauseQueueFull
)

func (c Cause) String() string {
	switch c {
	case CauseDecoderNotReady:
		return "decoder-not-ready"
	case CauseEmptyGeometry:
		return "empty-geometry"
	case CauseNilBuffer:
		return "nil-buffer"
	case CauseStaleBeforeDecode:
		return "stale-before-decode"
	case CauseStaleAfterDecode:
		return "stale-after-decode"
	case CauseStaleAtCallback:
		return "stale-at-callback"
	case CauseRecycledAfterRotation:
		return "recycled-after-rotation"
	case CauseRotationResultRecycled:
		return "rotation-result-recycled"
	case CauseQueueFull:
		return "queue-full"
	default:
		return fmt.Sprintf("Cause(%d)", int(c))
	}
}

// Stale reports whether c marks a result discarded for an expired key.
func (c Cause) Stale() bool {
	return c == CauseStaleBeforeDecode || c == CauseStaleAfterDecode || c == CauseStaleAtCallback
}

// ErrStale matches every stale-key DecodeError with errors.Is.
var ErrStale = errors.New("schedule: stale generation")

// DecodeError reports why a tile could not be decoded.
type DecodeError struct {
	Cause Cause
	Msg   string
}

func (e *DecodeError) Error() string {
	if e.Msg == "" {
		return "decode: " + e.Cause.String()
	}
	return "decode: " + e.Cause.String() + ": " + e.Msg
}

// Is matches another *DecodeError with the same cause, and ErrStale for
// stale causes.
func (e *DecodeError) Is(target error) bool {
	if target == ErrStale {
		return e.Cause.Stale()
	}
	var other *DecodeError
	if errors.As(target, &other) {
		return other.Cause == e.Cause
	}
	return false
}

func decodeErr(c Cause, format string, args ...any) *DecodeError {
	return &DecodeError{Cause: c, Msg: fmt.Sprintf(format, args...)}
}
