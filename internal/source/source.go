// Package source defines the outcome type returned by every event source
// adapter, so callers can tell "nothing matched" apart from "the source failed".
package source

// Status describes how a source call ended.
type Status string

const (
	// StatusOK means the source answered; the items may still be empty.
	StatusOK Status = "ok"

	// StatusNotFound means a point lookup found nothing.
	StatusNotFound Status = "not_found"

	// StatusRateLimited means the source kept rate limiting after all retries.
	StatusRateLimited Status = "rate_limited"

	// StatusPermissionDenied means the caller may not read the source.
	StatusPermissionDenied Status = "permission_denied"

	// StatusUnavailable means the source could not be reached or answered badly.
	StatusUnavailable Status = "unavailable"

	// StatusFailed means an unexpected failure that must be surfaced.
	StatusFailed Status = "failed"

	// StatusSkipped means the plan did not query the source.
	StatusSkipped Status = "skipped"
)

// Degraded reports whether the status stands for a swallowed failure.
func (s Status) Degraded() bool {
	switch s {
	case StatusRateLimited, StatusPermissionDenied, StatusUnavailable, StatusFailed:
		return true
	}
	return false
}

// Result carries the items of a list query together with how it ended.
// Items is never nil.
type Result[T any] struct {
	Items  []T
	Status Status
	Err    error
}

// OK returns a successful result.
func OK[T any](items []T) Result[T] {
	if items == nil {
		items = []T{}
	}
	return Result[T]{Items: items, Status: StatusOK}
}

// Fail returns an empty result with the given status and cause.
func Fail[T any](status Status, err error) Result[T] {
	return Result[T]{Items: []T{}, Status: status, Err: err}
}

// Item carries the outcome of a point lookup. Value is nil when the
// lookup found nothing or failed.
type Item[T any] struct {
	Value  *T
	Status Status
	Err    error
}

// Found returns a lookup hit.
func Found[T any](v *T) Item[T] {
	return Item[T]{Value: v, Status: StatusOK}
}

// Missing returns a lookup miss. A miss is not an error.
func Missing[T any]() Item[T] {
	return Item[T]{Status: StatusNotFound}
}

// FailItem returns a failed lookup.
func FailItem[T any](status Status, err error) Item[T] {
	return Item[T]{Status: status, Err: err}
}

// Merge folds several statuses for one source into the one worth reporting:
// any failure wins over success, and success wins over skipped.
func Merge(statuses ...Status) Status {
	out := StatusSkipped
	for _, s := range statuses {
		switch {
		case s == StatusFailed:
			return StatusFailed
		case s.Degraded():
			out = s
		case s == StatusOK || s == StatusNotFound:
			if out == StatusSkipped {
				out = StatusOK
			}
		}
	}
	return out
}
