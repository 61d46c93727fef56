package types

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthorized is returned on a 401-equivalent server response
	ErrNotAuthorized = errors.New("not authorized")

	// ErrAuthRequired is returned when an operation needs a bearer token and none is held
	ErrAuthRequired = errors.New("authentication required")

	// ErrNotSupported is returned by dialects for operations they do not implement
	ErrNotSupported = errors.New("not supported by dialect")

	// ErrStatusNotOK is returned when a structured response carries a status other than "OK"
	ErrStatusNotOK = errors.New("response status not OK")

	// ErrUnrecognizedContentType is returned when a response declares a content
	// type matching neither supported format
	ErrUnrecognizedContentType = errors.New("unrecognized content type")

	// ErrDecode is returned when a response body could not be parsed
	ErrDecode = errors.New("decode failed")

	// ErrNetwork covers transport failures and timeouts; recoverable on the next cycle
	ErrNetwork = errors.New("network failure")

	// ErrStorage is returned when the local store could not complete an operation
	ErrStorage = errors.New("storage failure")

	// ErrInvalidConfig is returned for adapter or endpoint misconfiguration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound is returned when a document does not exist in the store
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a document already exists (e.g. insert of a known key)
	ErrConflict = errors.New("conflict")
)

// Stage names one step of a background sync cycle
type Stage string

const (
	StageFetch   Stage = "fetch"
	StageMerge   Stage = "merge"
	StageDetect  Stage = "detect"
	StagePersist Stage = "persist"
)

// CycleError reports which stage of a sync cycle failed and why.
// The orchestrator never lets a raw error cross its boundary.
type CycleError struct {
	Stage Stage
	Cause error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("sync cycle failed at %s: %v", e.Stage, e.Cause)
}

func (e *CycleError) Unwrap() error {
	return e.Cause
}
