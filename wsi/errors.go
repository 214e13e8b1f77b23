package wsi

import (
	"errors"
	"fmt"
	"net/http"
)

// Error taxonomy for the render service.  Every error surfaced to a client
// maps onto exactly one of these types so the HTTP layer can translate it
// into a status code and a one-line message without inspecting strings.

// ErrTileNotFound signals that a tile object is absent from the backing
// store.  Providers without a missing-tile handler propagate it unchanged.
var ErrTileNotFound = errors.New("tile not found in store")

// MissingParameterError indicates a required path or query parameter was absent.
type MissingParameterError struct {
	Name string
}

func (e MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Name)
}

// ValidationError indicates a parameter that was present but failed validation,
// e.g. a malformed channel descriptor, a non-numeric coordinate, or a bad UUID.
type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string {
	return e.Msg
}

// Invalidf returns a ValidationError with a formatted message.
func Invalidf(format string, args ...interface{}) error {
	return ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// AuthorizationError indicates the requesting user lacks permission on a resource.
type AuthorizationError struct {
	Msg string
}

func (e AuthorizationError) Error() string {
	if e.Msg == "" {
		return "permission denied"
	}
	return e.Msg
}

// TileBoundsError indicates a requested coordinate lies outside the image's
// declared pyramid/channel/time/z extent.  It is distinguishable from a true
// missing-tile storage anomaly, and its message names the offending field.
type TileBoundsError struct {
	Msg string
}

func (e TileBoundsError) Error() string {
	return e.Msg
}

// TileBoundsf returns a TileBoundsError with a formatted message.
func TileBoundsf(format string, args ...interface{}) error {
	return TileBoundsError{Msg: fmt.Sprintf(format, args...)}
}

// OutOfRange returns a TileBoundsError naming the field that exceeded the
// valid inclusive range, e.g. "y=5 outside range (0-4)".
func OutOfRange(field string, value, min, max int) error {
	return TileBoundsError{Msg: fmt.Sprintf("%s=%d outside range (%d-%d)", field, value, min, max)}
}

// NotReadyError indicates the referenced fileset or image has not completed
// ingestion, so no tiles or metadata can be served yet.
type NotReadyError struct {
	FilesetUUID string
}

func (e NotReadyError) Error() string {
	return fmt.Sprintf("fileset has not had metadata extracted yet: %s", e.FilesetUUID)
}

// StorageError wraps a failure of the backing object store or cache below the
// tile provider.  It is a server-side fault and is never retried at this layer.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e StorageError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps an error to the status code documented for the API.
// Unknown errors map to 500.
func HTTPStatus(err error) int {
	var (
		missing    MissingParameterError
		validation ValidationError
		auth       AuthorizationError
		bounds     TileBoundsError
		notReady   NotReadyError
	)
	switch {
	case errors.As(err, &missing):
		return http.StatusBadRequest
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity
	case errors.As(err, &auth):
		return http.StatusForbidden
	case errors.As(err, &bounds):
		return http.StatusNotFound
	case errors.Is(err, ErrTileNotFound):
		return http.StatusNotFound
	case errors.As(err, &notReady):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
